package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"agentmail/backend/internal/auth"
	"agentmail/backend/internal/cache"
	"agentmail/backend/internal/crypto"
	"agentmail/backend/internal/domain"
	"agentmail/backend/internal/storage/memory"
	"agentmail/backend/internal/storage/redis"
	"agentmail/backend/internal/verify"
)

// AgentService 管理代理账户的全生命周期：
// 注册、凭证认证、投递目标与加密公钥的维护。
type AgentService struct {
	store     domain.Store
	identity  verify.Identity
	creds     *auth.Manager
	crypto    *crypto.Service
	local     *cache.AgentCache // 进程内 L1 缓存
	cache     *redis.Cache      // 可为 nil，未配置 Redis 时只用 L1
	log       *zap.Logger
	localPart string
	domain    string
}

// NewAgentService 创建代理服务。
func NewAgentService(
	store domain.Store,
	identity verify.Identity,
	creds *auth.Manager,
	cryptoSvc *crypto.Service,
	redisCache *redis.Cache,
	log *zap.Logger,
	localPart, mailDomain string,
) *AgentService {
	return &AgentService{
		store:     store,
		identity:  identity,
		creds:     creds,
		crypto:    cryptoSvc,
		local:     cache.NewAgentCache(time.Minute),
		cache:     redisCache,
		log:       log,
		localPart: localPart,
		domain:    mailDomain,
	}
}

// Register 注册一个新代理。
//
// 流程：第三方身份验证 → 从所有者标识确定性派生收件地址 →
// 可选核销一个已确认的支付意向（至多一次）→ 签发访问凭证。
// 身份验证返回空所有者视为凭证无效。
func (s *AgentService) Register(ctx context.Context, identityCredential, paymentReference string) (*domain.Agent, error) {
	owner, err := s.identity.Verify(ctx, identityCredential)
	if err != nil {
		return nil, domain.NewTransportError("identity verification", err)
	}
	if owner == nil {
		return nil, &domain.AuthError{Reason: "identity credential rejected"}
	}

	// 同一所有者只允许一个代理；先查再建，地址后缀不复用
	if existing, err := s.store.GetAgentByOwnerID(owner.ID); err == nil && existing != nil {
		return nil, domain.NewValidationError("owner %s already has a registered mailbox", owner.ID)
	}

	// 先只校验支付意向，核销推迟到邮箱落库之后，
	// 落库失败时不烧掉意向。
	paid := paymentReference != ""
	if paid {
		intent, err := s.store.GetIntent(paymentReference)
		if err != nil {
			if errors.Is(err, memory.ErrIntentNotFound) {
				return nil, domain.NewValidationError("unknown payment reference")
			}
			return nil, err
		}
		if intent.Status != domain.PaymentConfirmed || intent.Consumed {
			return nil, domain.NewValidationError("payment reference is not confirmed or already used")
		}
	}

	agentID := uuid.NewString()
	credential, err := s.creds.Issue(agentID, owner.ID)
	if err != nil {
		return nil, fmt.Errorf("issue agent credential: %w", err)
	}

	agent := &domain.Agent{
		ID:         agentID,
		OwnerID:    owner.ID,
		OwnerName:  owner.Name,
		Address:    domain.DeriveAddress(owner.ID, s.localPart, s.domain),
		Credential: credential,
		Paid:       paid,
	}
	if err := s.store.SaveAgent(agent); err != nil {
		return nil, err
	}

	// 核销是原子的；并发注册抢占同一意向时，输家回滚刚落库的邮箱。
	if paid {
		if err := s.store.ConsumeIntent(paymentReference); err != nil {
			if delErr := s.store.DeleteAgent(agent.ID); delErr != nil {
				s.log.Error("failed to roll back agent after intent race",
					zap.String("agent_id", agent.ID),
					zap.Error(delErr),
				)
			}
			return nil, domain.NewValidationError("payment reference is not confirmed or already used")
		}
	}

	s.log.Info("agent registered",
		zap.String("agent_id", agent.ID),
		zap.String("address", agent.Address),
		zap.Bool("paid", agent.Paid),
	)
	return agent, nil
}

// Authenticate 校验访问凭证并返回对应代理。
//
// 先验证签名再查存储，凭证必须与落库值一致；
// 配置了 Redis 时热路径命中缓存，绕过数据库。
func (s *AgentService) Authenticate(ctx context.Context, credential string) (*domain.Agent, error) {
	claims, err := s.creds.Parse(credential)
	if err != nil {
		return nil, &domain.AuthError{Reason: "malformed credential"}
	}

	if agent, ok := s.local.Get(credential); ok {
		return agent, nil
	}
	if s.cache != nil {
		if agent, err := s.cache.GetAgentByCredential(ctx, credential); err == nil {
			s.local.Set(credential, agent)
			return agent, nil
		}
	}

	agent, err := s.store.GetAgentByCredential(credential)
	if err != nil {
		return nil, &domain.AuthError{Reason: "credential not recognized"}
	}
	if agent.ID != claims.AgentID {
		return nil, &domain.AuthError{Reason: "credential does not match agent"}
	}

	s.local.Set(credential, agent)
	if s.cache != nil {
		if err := s.cache.CacheAgent(ctx, agent); err != nil {
			s.log.Warn("failed to cache agent", zap.Error(err))
		}
	}
	return agent, nil
}

// Get 按 ID 获取代理。
func (s *AgentService) Get(agentID string) (*domain.Agent, error) {
	return s.store.GetAgent(agentID)
}

// SetWebhook 登记代理的投递目标，返回新生成的签名密钥。
// 每次更换投递目标都会轮换签名密钥。
func (s *AgentService) SetWebhook(ctx context.Context, agentID, rawURL string) (string, error) {
	if err := domain.ValidateWebhookURL(rawURL); err != nil {
		return "", err
	}

	agent, err := s.store.GetAgent(agentID)
	if err != nil {
		return "", err
	}

	secret, err := newWebhookSecret()
	if err != nil {
		return "", err
	}

	agent.WebhookURL = &rawURL
	agent.WebhookSecret = secret
	if err := s.update(ctx, agent); err != nil {
		return "", err
	}

	s.log.Info("agent webhook registered", zap.String("agent_id", agentID))
	return secret, nil
}

// ClearWebhook 注销代理的投递目标，轮询器不再为其推送。
func (s *AgentService) ClearWebhook(ctx context.Context, agentID string) error {
	agent, err := s.store.GetAgent(agentID)
	if err != nil {
		return err
	}

	agent.WebhookURL = nil
	agent.WebhookSecret = ""
	return s.update(ctx, agent)
}

// SetPublicKey 登记代理的加密公钥，此后推送载荷全部加密。
// 公钥必须是 32 字节的 base64 编码，否则拒绝登记。
func (s *AgentService) SetPublicKey(ctx context.Context, agentID, publicKeyB64 string) error {
	if !crypto.ValidatePublicKey(publicKeyB64) {
		return domain.NewValidationError("public key must decode to exactly %d bytes", crypto.PublicKeySize)
	}

	agent, err := s.store.GetAgent(agentID)
	if err != nil {
		return err
	}

	agent.PublicKey = &publicKeyB64
	if err := s.update(ctx, agent); err != nil {
		return err
	}

	s.log.Info("agent encryption key registered", zap.String("agent_id", agentID))
	return nil
}

// ClearPublicKey 注销加密公钥，恢复明文推送。
func (s *AgentService) ClearPublicKey(ctx context.Context, agentID string) error {
	agent, err := s.store.GetAgent(agentID)
	if err != nil {
		return err
	}

	agent.PublicKey = nil
	return s.update(ctx, agent)
}

// EncryptForAgent 用任意有效公钥加密一段载荷，供调用方自取密文。
func (s *AgentService) EncryptForAgent(plaintext []byte, recipientPublicKeyB64 string) (*domain.EncryptedPayload, error) {
	return s.crypto.EncryptFor(plaintext, recipientPublicKeyB64)
}

// ServerPublicKey 返回服务端当前公钥（base64）。
func (s *AgentService) ServerPublicKey() (string, error) {
	return s.crypto.ServerPublicKey()
}

// update 落库并使缓存失效。
func (s *AgentService) update(ctx context.Context, agent *domain.Agent) error {
	if err := s.store.UpdateAgent(agent); err != nil {
		return err
	}
	s.local.Invalidate(agent.Credential)
	if s.cache != nil {
		if err := s.cache.InvalidateAgent(ctx, agent.Credential); err != nil {
			s.log.Warn("failed to invalidate agent cache",
				zap.String("agent_id", agent.ID),
				zap.Error(err),
			)
		}
	}
	return nil
}

// newWebhookSecret 生成 whsec_ 前缀的随机签名密钥。
func newWebhookSecret() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate webhook secret: %w", err)
	}
	return "whsec_" + hex.EncodeToString(buf), nil
}
