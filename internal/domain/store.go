package domain

import "time"

// Store 聚合所有存储接口
type Store interface {
	// ========== Agent Repository ==========
	SaveAgent(agent *Agent) error
	GetAgent(id string) (*Agent, error)
	GetAgentByOwnerID(ownerID string) (*Agent, error)
	GetAgentByAddress(address string) (*Agent, error)
	GetAgentByCredential(credential string) (*Agent, error)
	ListAgents() []Agent
	ListAgentsWithWebhook() []Agent
	UpdateAgent(agent *Agent) error
	DeleteAgent(id string) error

	// ========== Quota / Watermark ==========

	// ConsumeQuota 原子地执行"读取-校验-自增"：
	// 若存量日期 != date 则视当前计数为 0（日期翻转），
	// 计数达到 limit 时返回 ErrQuotaExhausted，否则自增并落盘新日期。
	// 返回自增后的当日计数。
	ConsumeQuota(agentID string, date string, limit int) (int, error)

	// AdvanceWatermark 推进代理的投递水位线。
	// lastMessageID 为 nil 表示保留现有值，仅更新轮询时间。
	AdvanceWatermark(agentID string, lastMessageID *string, polledAt time.Time) error

	// ========== Payment Repository ==========
	SaveIntent(intent *PaymentIntent) error
	GetIntent(reference string) (*PaymentIntent, error)
	MarkIntentConfirmed(reference, signature string) error
	MarkIntentFailed(reference string) error

	// ConsumeIntent 原子地核销一个已确认且未消费的支付意向；
	// 意向不存在、未确认或已消费时返回 ErrIntentUnavailable。
	ConsumeIntent(reference string) error

	Close() error
	Health() error
}
