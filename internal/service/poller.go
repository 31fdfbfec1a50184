package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"agentmail/backend/internal/crypto"
	"agentmail/backend/internal/domain"
	"agentmail/backend/internal/extract"
	"agentmail/backend/internal/mailer"
	"agentmail/backend/internal/monitoring"
)

// EventDispatcher 抽象推送出口，便于在测试中替换。
type EventDispatcher interface {
	Dispatch(ctx context.Context, agent *domain.Agent, event *domain.WebhookEvent) error
	DispatchAsync(agent *domain.Agent, event *domain.WebhookEvent)
}

// PollerService 驱动邮件摄取管线。
//
// 每个周期：抓取共享邮箱快照 → 按地址分拣到代理 → 与水位线做差 →
// 提取验证码、按需加密 → 推送 → 推进水位线。
// 水位线推进不以推送成功为条件：系统选择向前推进而不是重试到成功，
// 推送失败的邮件仍可通过拉取接口补读。
type PollerService struct {
	store       domain.Store
	fetcher     mailer.Fetcher
	dispatcher  EventDispatcher
	crypto      *crypto.Service
	metrics     *monitoring.Metrics
	log         *zap.Logger
	mailbox     string
	fetchWindow int
	interval    time.Duration
	concurrency int
}

// PollerOptions 轮询服务配置。
type PollerOptions struct {
	Mailbox     string        // 共享邮箱名，通常 "INBOX"
	FetchWindow int           // 每轮抓取的最近邮件数上限
	Interval    time.Duration // 轮询间隔
	Concurrency int           // 代理扇出的并发上限
}

// NewPollerService 创建轮询服务。
func NewPollerService(
	store domain.Store,
	fetcher mailer.Fetcher,
	dispatcher EventDispatcher,
	cryptoSvc *crypto.Service,
	metrics *monitoring.Metrics,
	log *zap.Logger,
	opts PollerOptions,
) *PollerService {
	if opts.Mailbox == "" {
		opts.Mailbox = "INBOX"
	}
	if opts.FetchWindow <= 0 {
		opts.FetchWindow = 50
	}
	if opts.Interval <= 0 {
		opts.Interval = 30 * time.Second
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 8
	}
	return &PollerService{
		store:       store,
		fetcher:     fetcher,
		dispatcher:  dispatcher,
		crypto:      cryptoSvc,
		metrics:     metrics,
		log:         log,
		mailbox:     opts.Mailbox,
		fetchWindow: opts.FetchWindow,
		interval:    opts.Interval,
		concurrency: opts.Concurrency,
	}
}

// Run 按固定间隔驱动轮询，直到 ctx 取消。
// 停止时不等待在途推送完成，语义上本就允许丢失单次投递。
func (s *PollerService) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.Info("mail ingestion poller started",
		zap.Duration("interval", s.interval),
		zap.Int("fetch_window", s.fetchWindow),
	)

	for {
		select {
		case <-ctx.Done():
			s.log.Info("mail ingestion poller stopped")
			return nil
		case <-ticker.C:
			if err := s.PollOnce(ctx); err != nil {
				s.log.Error("poll cycle failed", zap.Error(err))
			}
		}
	}
}

// PollOnce 同步执行一个完整的摄取周期。定时器与测试共用此入口。
func (s *PollerService) PollOnce(ctx context.Context) error {
	agents := s.store.ListAgentsWithWebhook()
	if len(agents) == 0 {
		return nil
	}

	now := time.Now().UTC()

	// 共享邮箱只抓取一次，再向所有代理扇出，避免重复传输连接。
	// 抓取失败按"本轮无新邮件"处理，不中断后续周期。
	messages, err := s.fetcher.Fetch(ctx, s.mailbox, s.fetchWindow)
	if err != nil {
		s.metrics.PollErrors.Inc()
		s.log.Warn("shared mailbox fetch failed, treating as no new mail", zap.Error(err))
		return nil
	}

	s.metrics.PollCycles.Inc()

	group := new(errgroup.Group)
	group.SetLimit(s.concurrency)
	for i := range agents {
		agent := agents[i]
		group.Go(func() error {
			// 单个代理的失败被隔离在各自的 goroutine 内
			s.pollAgent(&agent, messages, now)
			return nil
		})
	}
	return group.Wait()
}

// pollAgent 处理单个代理：分拣、比对水位线、富化、推送、推进水位线。
func (s *PollerService) pollAgent(agent *domain.Agent, messages []domain.InboundMessage, now time.Time) {
	var matched []domain.InboundMessage
	for _, msg := range messages {
		if domain.MatchesAgent(agent.Address, msg.To) {
			matched = append(matched, msg)
		}
	}

	for _, msg := range matched {
		if !isNewMessage(agent, &msg) {
			continue
		}

		event, err := s.buildEvent(agent, &msg, now)
		if err != nil {
			// 单封邮件的富化失败不影响其余邮件
			s.metrics.WebhookFailures.Inc()
			s.log.Warn("message enrichment failed, skipping delivery",
				zap.String("agent_id", agent.ID),
				zap.String("message_id", msg.ID),
				zap.Error(err),
			)
			continue
		}

		s.metrics.MessagesDispatched.Inc()
		// 经协程池异步推送，成败独立，失败已在推送层记录，不回滚水位线
		s.dispatcher.DispatchAsync(agent, event)
	}

	// 水位线无条件推进：取本轮最新一封匹配邮件的 ID；
	// 无匹配时保留现有 ID，仅更新轮询时间。
	var lastID *string
	if len(matched) > 0 {
		id := matched[0].ID
		lastID = &id
	}
	if err := s.store.AdvanceWatermark(agent.ID, lastID, now); err != nil {
		s.log.Error("failed to advance watermark",
			zap.String("agent_id", agent.ID),
			zap.Error(err),
		)
	}
}

// isNewMessage 判断邮件是否位于代理水位线之后。
//
// ID 与时间两个条件同时生效，冗余是有意的：
// 防御传输方在邮箱压缩后复用消息标识。
func isNewMessage(agent *domain.Agent, msg *domain.InboundMessage) bool {
	if agent.LastMessageID != nil && msg.ID == *agent.LastMessageID {
		return false
	}
	if agent.LastPollAt != nil && !msg.ReceivedAt.After(*agent.LastPollAt) {
		return false
	}
	return true
}

// encryptedContent 加密投递时被封装的内容。
type encryptedContent struct {
	Subject string   `json:"subject"`
	Body    string   `json:"body"`
	Codes   []string `json:"codes,omitempty"`
}

// buildEvent 富化一封新邮件并构造推送信封。
//
// 代理注册了加密公钥时，正文与验证码封进密文，绝不明文降级；
// 加密失败的邮件跳过推送而不是明文发出。
func (s *PollerService) buildEvent(agent *domain.Agent, msg *domain.InboundMessage, now time.Time) (*domain.WebhookEvent, error) {
	codes := extract.Codes(msg.Subject + "\n" + msg.Body)

	payload := &domain.MessagePayload{
		ID:         msg.ID,
		From:       msg.From,
		To:         msg.To,
		Subject:    msg.Subject,
		ReceivedAt: msg.ReceivedAt,
	}

	if agent.WantsEncryption() {
		plaintext, err := json.Marshal(encryptedContent{
			Subject: msg.Subject,
			Body:    msg.Body,
			Codes:   codes,
		})
		if err != nil {
			return nil, err
		}
		encrypted, err := s.crypto.EncryptFor(plaintext, *agent.PublicKey)
		if err != nil {
			return nil, err
		}
		payload.Encrypted = encrypted
	} else {
		payload.Body = msg.Body
		payload.Codes = codes
	}

	return &domain.WebhookEvent{
		ID:        uuid.NewString(),
		Event:     domain.EventMailReceived,
		AgentID:   agent.ID,
		Timestamp: now,
		Message:   payload,
	}, nil
}

// RecordDelivery 手动推进代理水位线（供 HTTP 层与测试使用）。
func (s *PollerService) RecordDelivery(agentID, messageID string, pollTime time.Time) error {
	return s.store.AdvanceWatermark(agentID, &messageID, pollTime)
}
