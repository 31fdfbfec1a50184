package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"agentmail/backend/internal/domain"
	"agentmail/backend/internal/mailer"
	"agentmail/backend/internal/monitoring"
)

// SendService 代理出站发信路径：配额检查 → 外部 SMTP 发送。
//
// 配额在发送前原子占用。下游发送失败时不返还配额，
// 外部发送方自身的重试语义对本系统不透明，按"已尝试"计数。
type SendService struct {
	store   domain.Store
	sender  mailer.Sender
	quota   *QuotaService
	metrics *monitoring.Metrics
	log     *zap.Logger
}

// NewSendService 创建发信服务。
func NewSendService(store domain.Store, sender mailer.Sender, quota *QuotaService, metrics *monitoring.Metrics, log *zap.Logger) *SendService {
	return &SendService{
		store:   store,
		sender:  sender,
		quota:   quota,
		metrics: metrics,
		log:     log,
	}
}

// SendResult 一次发送的结果。
type SendResult struct {
	ProviderMessageID string `json:"providerMessageId"`
	SendsToday        int    `json:"sendsToday"`
}

// Send 以代理的专属地址为发件人发送一封邮件。
// 配额用尽返回 QuotaExceededError，调用方须等待重置时间。
func (s *SendService) Send(ctx context.Context, agentID, to, subject, body, html string) (*SendResult, error) {
	agent, err := s.store.GetAgent(agentID)
	if err != nil {
		return nil, err
	}

	sendsToday, err := s.quota.CheckAndConsume(agentID, time.Now().UTC())
	if err != nil {
		if domain.IsQuotaExceeded(err) {
			s.metrics.QuotaRejected.Inc()
		}
		return nil, err
	}

	providerID, err := s.sender.Send(ctx, mailer.SendInput{
		From:    agent.Address,
		To:      to,
		Subject: subject,
		Body:    body,
		HTML:    html,
	})
	if err != nil {
		s.metrics.SendFailures.Inc()
		s.log.Warn("outbound mail send failed",
			zap.String("agent_id", agentID),
			zap.String("to", to),
			zap.Error(err),
		)
		return nil, err
	}

	s.metrics.MailsSent.Inc()
	s.log.Info("outbound mail sent",
		zap.String("agent_id", agentID),
		zap.String("provider_message_id", providerID),
		zap.Int("sends_today", sendsToday),
	)
	return &SendResult{
		ProviderMessageID: providerID,
		SendsToday:        sendsToday,
	}, nil
}
