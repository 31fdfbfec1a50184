package mailer

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/emersion/go-message/mail"
	"go.uber.org/zap"

	"agentmail/backend/internal/domain"
)

// IMAPFetcher 通过 IMAP 抓取共享邮箱的邮件快照。
type IMAPFetcher struct {
	host     string
	port     string
	username string
	password string
	tls      bool
	log      *zap.Logger
}

// NewIMAPFetcher 创建 IMAP 抓取器。
func NewIMAPFetcher(host, port, username, password string, tls bool, log *zap.Logger) *IMAPFetcher {
	return &IMAPFetcher{
		host:     host,
		port:     port,
		username: username,
		password: password,
		tls:      tls,
		log:      log,
	}
}

// connect 建立连接并登录，调用方负责 Logout。
func (f *IMAPFetcher) connect(_ context.Context) (*imapclient.Client, error) {
	addr := f.host + ":" + f.port

	var client *imapclient.Client
	var err error
	if f.tls {
		client, err = imapclient.DialTLS(addr, nil)
	} else {
		client, err = imapclient.DialStartTLS(addr, nil)
	}
	if err != nil {
		return nil, domain.NewTransportError("imap dial", err)
	}

	if err := client.Login(f.username, f.password).Wait(); err != nil {
		_ = client.Logout().Wait()
		return nil, domain.NewTransportError("imap login", err)
	}

	return client, nil
}

// Fetch 抓取指定邮箱最近 max 封邮件，最新在前。
func (f *IMAPFetcher) Fetch(ctx context.Context, mailbox string, max int) ([]domain.InboundMessage, error) {
	client, err := f.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = client.Logout().Wait() }()

	selectData, err := client.Select(mailbox, nil).Wait()
	if err != nil {
		return nil, domain.NewTransportError("imap select", err)
	}
	if selectData.NumMessages == 0 {
		return nil, nil
	}

	// 只取序号最高（最近到达）的一段
	from := uint32(1)
	if max > 0 && selectData.NumMessages > uint32(max) {
		from = selectData.NumMessages - uint32(max) + 1
	}
	var seqSet imap.SeqSet
	seqSet.AddRange(from, selectData.NumMessages)

	bodySection := &imap.FetchItemBodySection{Peek: true}
	fetchCmd := client.Fetch(seqSet, &imap.FetchOptions{
		Envelope:    true,
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{bodySection},
	})
	defer fetchCmd.Close()

	var messages []domain.InboundMessage
	for {
		msg := fetchCmd.Next()
		if msg == nil {
			break
		}

		buf, err := msg.Collect()
		if err != nil {
			f.log.Warn("collecting imap message failed", zap.Error(err))
			continue
		}

		messages = append(messages, messageFromBuffer(buf, bodySection))
	}

	if err := fetchCmd.Close(); err != nil {
		return messages, domain.NewTransportError("imap fetch", err)
	}

	// 最新在前
	sort.Slice(messages, func(i, j int) bool {
		return messages[i].ReceivedAt.After(messages[j].ReceivedAt)
	})
	return messages, nil
}

// messageFromBuffer 把 IMAP 抓取结果转换为瞬态邮件对象。
//
// ID 优先取 Message-Id 头（对同一封物理邮件跨抓取稳定），
// 缺失时回退到 UID。
func messageFromBuffer(buf *imapclient.FetchMessageBuffer, section *imap.FetchItemBodySection) domain.InboundMessage {
	msg := domain.InboundMessage{
		ID: fmt.Sprintf("uid-%d", buf.UID),
	}

	if buf.Envelope != nil {
		if buf.Envelope.MessageID != "" {
			msg.ID = buf.Envelope.MessageID
		}
		msg.Subject = buf.Envelope.Subject
		msg.ReceivedAt = buf.Envelope.Date
		if len(buf.Envelope.From) > 0 {
			msg.From = buf.Envelope.From[0].Addr()
		}
		if len(buf.Envelope.To) > 0 {
			msg.To = buf.Envelope.To[0].Addr()
		}
	}
	if msg.ReceivedAt.IsZero() {
		msg.ReceivedAt = time.Now().UTC()
	}

	if raw := buf.FindBodySection(section); raw != nil {
		msg.Body = extractTextBody(raw)
	}

	return msg
}

// extractTextBody 用 go-message 解析 MIME，取 text/plain 部分；
// 解析失败时整体按纯文本处理。
func extractTextBody(raw []byte) string {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return string(raw)
	}
	defer mr.Close()

	var text strings.Builder
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}

		if h, ok := part.Header.(*mail.InlineHeader); ok {
			contentType, _, _ := h.ContentType()
			if contentType == "text/plain" || contentType == "" {
				body, err := io.ReadAll(part.Body)
				if err == nil {
					text.Write(body)
				}
			}
		}
	}
	return text.String()
}
