package service

import (
	"context"

	"go.uber.org/zap"

	"agentmail/backend/internal/domain"
	"agentmail/backend/internal/extract"
	"agentmail/backend/internal/mailer"
)

// MessageService 拉取式读信路径。
//
// 推送失败的邮件不会重试，拉取是它的兜底：代理随时可以
// 重新读取共享邮箱里属于自己的全部近期邮件，不受水位线影响。
type MessageService struct {
	store       domain.Store
	fetcher     mailer.Fetcher
	log         *zap.Logger
	mailbox     string
	fetchWindow int
}

// NewMessageService 创建读信服务。
func NewMessageService(store domain.Store, fetcher mailer.Fetcher, log *zap.Logger, mailbox string, fetchWindow int) *MessageService {
	if mailbox == "" {
		mailbox = "INBOX"
	}
	if fetchWindow <= 0 {
		fetchWindow = 50
	}
	return &MessageService{
		store:       store,
		fetcher:     fetcher,
		log:         log,
		mailbox:     mailbox,
		fetchWindow: fetchWindow,
	}
}

// List 返回属于指定代理的近期邮件（最新在前），附带提取出的验证码。
func (s *MessageService) List(ctx context.Context, agentID string) ([]domain.MessagePayload, error) {
	agent, err := s.store.GetAgent(agentID)
	if err != nil {
		return nil, err
	}

	messages, err := s.fetcher.Fetch(ctx, s.mailbox, s.fetchWindow)
	if err != nil {
		return nil, err
	}

	var out []domain.MessagePayload
	for _, msg := range messages {
		if !domain.MatchesAgent(agent.Address, msg.To) {
			continue
		}
		out = append(out, domain.MessagePayload{
			ID:         msg.ID,
			From:       msg.From,
			To:         msg.To,
			Subject:    msg.Subject,
			Body:       msg.Body,
			ReceivedAt: msg.ReceivedAt,
			Codes:      extract.Codes(msg.Subject + "\n" + msg.Body),
		})
	}
	return out, nil
}
