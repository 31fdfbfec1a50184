package mailer

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-sasl"
	gosmtp "github.com/emersion/go-smtp"
	"github.com/google/uuid"

	"agentmail/backend/internal/domain"
)

// SMTPSender 通过上游 SMTP 服务发送邮件。
type SMTPSender struct {
	addr     string // host:port
	username string
	password string
	helo     string
}

// NewSMTPSender 创建 SMTP 发送器。
func NewSMTPSender(addr, username, password, helo string) *SMTPSender {
	return &SMTPSender{
		addr:     addr,
		username: username,
		password: password,
		helo:     helo,
	}
}

// Send 发送一封邮件并返回生成的 Message-Id。
func (s *SMTPSender) Send(_ context.Context, in SendInput) (string, error) {
	messageID := fmt.Sprintf("%s@%s", uuid.NewString(), s.helo)

	raw, err := buildMessage(in, messageID)
	if err != nil {
		return "", err
	}

	client, err := gosmtp.DialStartTLS(s.addr, nil)
	if err != nil {
		return "", domain.NewTransportError("smtp dial", err)
	}
	defer client.Quit()

	if s.username != "" {
		auth := sasl.NewPlainClient("", s.username, s.password)
		if err := client.Auth(auth); err != nil {
			return "", domain.NewTransportError("smtp auth", err)
		}
	}

	if err := client.Mail(in.From, nil); err != nil {
		return "", domain.NewTransportError("smtp mail from", err)
	}
	if err := client.Rcpt(in.To, nil); err != nil {
		return "", domain.NewTransportError("smtp rcpt to", err)
	}

	wc, err := client.Data()
	if err != nil {
		return "", domain.NewTransportError("smtp data", err)
	}
	if _, err := wc.Write(raw); err != nil {
		wc.Close()
		return "", domain.NewTransportError("smtp write", err)
	}
	if err := wc.Close(); err != nil {
		return "", domain.NewTransportError("smtp close", err)
	}

	return messageID, nil
}

// buildMessage 用 go-message 组装 RFC 5322 邮件。
// HTML 非空时生成 multipart/alternative，纯文本部分在前。
func buildMessage(in SendInput, messageID string) ([]byte, error) {
	var buf bytes.Buffer

	var header mail.Header
	header.SetDate(time.Now().UTC())
	header.SetAddressList("From", []*mail.Address{{Address: in.From}})
	header.SetAddressList("To", []*mail.Address{{Address: in.To}})
	header.SetSubject(in.Subject)
	header.SetMsgIDList("Message-Id", []string{messageID})

	mw, err := mail.CreateWriter(&buf, header)
	if err != nil {
		return nil, fmt.Errorf("create mail writer: %w", err)
	}

	iw, err := mw.CreateInline()
	if err != nil {
		return nil, fmt.Errorf("create inline part: %w", err)
	}

	var textHeader mail.InlineHeader
	textHeader.SetContentType("text/plain", map[string]string{"charset": "utf-8"})
	tw, err := iw.CreatePart(textHeader)
	if err != nil {
		return nil, fmt.Errorf("create text part: %w", err)
	}
	if _, err := tw.Write([]byte(in.Body)); err != nil {
		return nil, err
	}
	tw.Close()

	if strings.TrimSpace(in.HTML) != "" {
		var htmlHeader mail.InlineHeader
		htmlHeader.SetContentType("text/html", map[string]string{"charset": "utf-8"})
		hw, err := iw.CreatePart(htmlHeader)
		if err != nil {
			return nil, fmt.Errorf("create html part: %w", err)
		}
		if _, err := hw.Write([]byte(in.HTML)); err != nil {
			return nil, err
		}
		hw.Close()
	}

	iw.Close()
	mw.Close()

	return buf.Bytes(), nil
}
