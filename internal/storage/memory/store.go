package memory

import (
	"errors"
	"strings"
	"sync"
	"time"

	"agentmail/backend/internal/domain"
)

var (
	ErrAgentNotFound     = errors.New("agent not found")
	ErrAgentExists       = errors.New("agent already exists")
	ErrIntentNotFound    = errors.New("payment intent not found")
	ErrQuotaExhausted    = errors.New("daily quota exhausted")
	ErrIntentUnavailable = errors.New("payment intent not confirmed or already consumed")
)

// Store 使用内存保存代理与支付意向数据，主要用于开发验证与测试。
type Store struct {
	mu           sync.RWMutex
	agents       map[string]*domain.Agent         // agentID -> agent
	byOwner      map[string]string                // ownerID -> agentID
	byAddress    map[string]string                // 小写地址 -> agentID
	byCredential map[string]string                // credential -> agentID
	intents      map[string]*domain.PaymentIntent // reference -> intent
}

// NewStore 创建一个内存存储实例。
func NewStore() *Store {
	return &Store{
		agents:       make(map[string]*domain.Agent),
		byOwner:      make(map[string]string),
		byAddress:    make(map[string]string),
		byCredential: make(map[string]string),
		intents:      make(map[string]*domain.PaymentIntent),
	}
}

// SaveAgent 保存代理，所有者或地址冲突时报错。
func (s *Store) SaveAgent(agent *domain.Agent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byOwner[agent.OwnerID]; exists {
		return ErrAgentExists
	}
	addrKey := strings.ToLower(agent.Address)
	if _, exists := s.byAddress[addrKey]; exists {
		return ErrAgentExists
	}

	now := time.Now().UTC()
	agent.CreatedAt = now
	agent.UpdatedAt = now

	clone := *agent
	s.agents[agent.ID] = &clone
	s.byOwner[agent.OwnerID] = agent.ID
	s.byAddress[addrKey] = agent.ID
	s.byCredential[agent.Credential] = agent.ID
	return nil
}

// GetAgent 根据 ID 获取代理。
func (s *Store) GetAgent(id string) (*domain.Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getLocked(id)
}

func (s *Store) getLocked(id string) (*domain.Agent, error) {
	agent, ok := s.agents[id]
	if !ok {
		return nil, ErrAgentNotFound
	}
	clone := *agent
	return &clone, nil
}

// GetAgentByOwnerID 根据所有者标识获取代理。
func (s *Store) GetAgentByOwnerID(ownerID string) (*domain.Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byOwner[ownerID]
	if !ok {
		return nil, ErrAgentNotFound
	}
	return s.getLocked(id)
}

// GetAgentByAddress 根据收件地址（大小写不敏感）获取代理。
func (s *Store) GetAgentByAddress(address string) (*domain.Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byAddress[strings.ToLower(address)]
	if !ok {
		return nil, ErrAgentNotFound
	}
	return s.getLocked(id)
}

// GetAgentByCredential 根据访问凭证获取代理。
func (s *Store) GetAgentByCredential(credential string) (*domain.Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byCredential[credential]
	if !ok {
		return nil, ErrAgentNotFound
	}
	return s.getLocked(id)
}

// ListAgents 返回全部代理快照。
func (s *Store) ListAgents() []domain.Agent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	agents := make([]domain.Agent, 0, len(s.agents))
	for _, agent := range s.agents {
		agents = append(agents, *agent)
	}
	return agents
}

// ListAgentsWithWebhook 返回注册了投递目标的代理。
func (s *Store) ListAgentsWithWebhook() []domain.Agent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var agents []domain.Agent
	for _, agent := range s.agents {
		if agent.HasWebhook() {
			agents = append(agents, *agent)
		}
	}
	return agents
}

// UpdateAgent 更新代理记录。
func (s *Store) UpdateAgent(agent *domain.Agent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.agents[agent.ID]
	if !ok {
		return ErrAgentNotFound
	}

	delete(s.byCredential, existing.Credential)
	delete(s.byAddress, strings.ToLower(existing.Address))

	agent.UpdatedAt = time.Now().UTC()
	clone := *agent
	s.agents[agent.ID] = &clone
	s.byAddress[strings.ToLower(agent.Address)] = agent.ID
	s.byCredential[agent.Credential] = agent.ID
	return nil
}

// DeleteAgent 删除代理。
func (s *Store) DeleteAgent(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	agent, ok := s.agents[id]
	if !ok {
		return ErrAgentNotFound
	}

	delete(s.byOwner, agent.OwnerID)
	delete(s.byAddress, strings.ToLower(agent.Address))
	delete(s.byCredential, agent.Credential)
	delete(s.agents, id)
	return nil
}

// ConsumeQuota 原子地执行配额的"读取-校验-自增"。
//
// 存量日期与 date 不同视为新的一天（计数从 0 算起），
// 达到 limit 时返回 ErrQuotaExhausted，否则自增并写入新日期。
func (s *Store) ConsumeQuota(agentID string, date string, limit int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	agent, ok := s.agents[agentID]
	if !ok {
		return 0, ErrAgentNotFound
	}

	effective := agent.SendsToday
	if agent.LastSendDate != date {
		effective = 0
	}

	if effective >= limit {
		return effective, ErrQuotaExhausted
	}

	agent.SendsToday = effective + 1
	agent.LastSendDate = date
	agent.UpdatedAt = time.Now().UTC()
	return agent.SendsToday, nil
}

// AdvanceWatermark 推进代理的投递水位线。
func (s *Store) AdvanceWatermark(agentID string, lastMessageID *string, polledAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	agent, ok := s.agents[agentID]
	if !ok {
		return ErrAgentNotFound
	}

	if lastMessageID != nil {
		id := *lastMessageID
		agent.LastMessageID = &id
	}
	t := polledAt
	agent.LastPollAt = &t
	agent.UpdatedAt = time.Now().UTC()
	return nil
}

// SaveIntent 保存支付意向。
func (s *Store) SaveIntent(intent *domain.PaymentIntent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	intent.CreatedAt = time.Now().UTC()
	clone := *intent
	s.intents[intent.Reference] = &clone
	return nil
}

// GetIntent 根据引用获取支付意向。
func (s *Store) GetIntent(reference string) (*domain.PaymentIntent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	intent, ok := s.intents[reference]
	if !ok {
		return nil, ErrIntentNotFound
	}
	clone := *intent
	return &clone, nil
}

// MarkIntentConfirmed 将意向标记为链上已确认。
func (s *Store) MarkIntentConfirmed(reference, signature string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	intent, ok := s.intents[reference]
	if !ok {
		return ErrIntentNotFound
	}

	now := time.Now().UTC()
	intent.Status = domain.PaymentConfirmed
	intent.Signature = signature
	intent.ConfirmedAt = &now
	return nil
}

// MarkIntentFailed 将意向标记为验证失败。
func (s *Store) MarkIntentFailed(reference string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	intent, ok := s.intents[reference]
	if !ok {
		return ErrIntentNotFound
	}
	intent.Status = domain.PaymentFailed
	return nil
}

// ConsumeIntent 核销一个已确认且未消费的意向，至多成功一次。
func (s *Store) ConsumeIntent(reference string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	intent, ok := s.intents[reference]
	if !ok {
		return ErrIntentUnavailable
	}
	if intent.Status != domain.PaymentConfirmed || intent.Consumed {
		return ErrIntentUnavailable
	}

	intent.Consumed = true
	return nil
}

// Close 关闭存储（内存实现为空操作）。
func (s *Store) Close() error {
	return nil
}

// Health 健康检查（内存实现恒为健康）。
func (s *Store) Health() error {
	return nil
}
