package service

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"agentmail/backend/internal/domain"
	"agentmail/backend/internal/monitoring"
	"agentmail/backend/internal/pool"
)

// dispatchTimeout 单次推送的超时上限
const dispatchTimeout = 10 * time.Second

// DispatcherService 把邮件通知推送到代理注册的投递目标。
//
// 每次推送独立成败：超时或非 2xx 只记日志与指标，不上抛给轮询器，
// 本轮不重试，也不阻塞其他代理或其他邮件的推送。
type DispatcherService struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	workers    *pool.WorkerPool
	metrics    *monitoring.Metrics
	log        *zap.Logger
}

// NewDispatcherService 创建推送服务。
//
// maxRate 限制整体的出站推送速率（每秒请求数）。
func NewDispatcherService(workers *pool.WorkerPool, metrics *monitoring.Metrics, log *zap.Logger, maxRate int) *DispatcherService {
	if maxRate <= 0 {
		maxRate = 50
	}
	return &DispatcherService{
		httpClient: &http.Client{
			Timeout: dispatchTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(maxRate), maxRate),
		workers: workers,
		metrics: metrics,
		log:     log,
	}
}

// Dispatch 同步推送一条事件到代理的投递目标。
func (s *DispatcherService) Dispatch(ctx context.Context, agent *domain.Agent, event *domain.WebhookEvent) error {
	if !agent.HasWebhook() {
		return nil
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return domain.NewTransportError("webhook dispatch", err)
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, *agent.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return domain.NewTransportError("webhook dispatch", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Event", string(event.Event))
	req.Header.Set("X-Webhook-ID", event.ID)
	if agent.WebhookSecret != "" {
		req.Header.Set("X-Webhook-Signature", sign(payload, agent.WebhookSecret))
	}

	start := time.Now()
	resp, err := s.httpClient.Do(req)
	duration := time.Since(start)

	if err != nil {
		s.metrics.WebhookFailures.Inc()
		s.log.Warn("webhook delivery failed",
			zap.String("agent_id", agent.ID),
			zap.String("event", string(event.Event)),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return domain.NewTransportError("webhook dispatch", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		s.metrics.WebhookFailures.Inc()
		s.log.Warn("webhook delivery rejected",
			zap.String("agent_id", agent.ID),
			zap.String("event", string(event.Event)),
			zap.Int("status", resp.StatusCode),
			zap.Duration("duration", duration),
		)
		return domain.NewTransportError("webhook dispatch",
			fmt.Errorf("HTTP %d", resp.StatusCode))
	}

	s.metrics.WebhooksDelivered.Inc()
	s.log.Debug("webhook delivered",
		zap.String("agent_id", agent.ID),
		zap.String("event", string(event.Event)),
		zap.Duration("duration", duration),
	)
	return nil
}

// DispatchAsync 把推送任务提交到协程池，不等待结果。
// 池满时直接丢弃并记一次失败，保持调用方永不阻塞。
func (s *DispatcherService) DispatchAsync(agent *domain.Agent, event *domain.WebhookEvent) {
	agentCopy := *agent
	submitted := s.workers.TrySubmit(func() {
		ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
		defer cancel()
		_ = s.Dispatch(ctx, &agentCopy, event)
	})
	if !submitted {
		s.metrics.WebhookFailures.Inc()
		s.log.Warn("webhook dispatch queue full, dropping event",
			zap.String("agent_id", agent.ID),
			zap.String("event", string(event.Event)),
		)
	}
}

// NewTestEvent 构造一条投递目标连通性测试事件。
func NewTestEvent(agentID string) *domain.WebhookEvent {
	return &domain.WebhookEvent{
		ID:        uuid.NewString(),
		Event:     domain.EventWebhookTest,
		AgentID:   agentID,
		Timestamp: time.Now().UTC(),
	}
}

// sign 对载荷做 HMAC-SHA256 签名。
func sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}
