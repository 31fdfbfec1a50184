package storage

import (
	"time"

	"agentmail/backend/internal/domain"
)

// Store 是核心消费的聚合存储接口。
type Store = domain.Store

// AgentRepository 定义代理数据存取操作。
type AgentRepository interface {
	SaveAgent(agent *domain.Agent) error
	GetAgent(id string) (*domain.Agent, error)
	GetAgentByOwnerID(ownerID string) (*domain.Agent, error)
	GetAgentByAddress(address string) (*domain.Agent, error)
	GetAgentByCredential(credential string) (*domain.Agent, error)
	ListAgents() []domain.Agent
	ListAgentsWithWebhook() []domain.Agent
	UpdateAgent(agent *domain.Agent) error
	DeleteAgent(id string) error
}

// QuotaRepository 定义配额与水位线的原子更新操作。
type QuotaRepository interface {
	ConsumeQuota(agentID string, date string, limit int) (int, error)
	AdvanceWatermark(agentID string, lastMessageID *string, polledAt time.Time) error
}

// PaymentRepository 定义支付意向存取操作。
type PaymentRepository interface {
	SaveIntent(intent *domain.PaymentIntent) error
	GetIntent(reference string) (*domain.PaymentIntent, error)
	MarkIntentConfirmed(reference, signature string) error
	MarkIntentFailed(reference string) error
	ConsumeIntent(reference string) error
}
