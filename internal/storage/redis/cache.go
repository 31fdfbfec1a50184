package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"agentmail/backend/internal/domain"
)

// ErrCacheMiss 缓存未命中
var ErrCacheMiss = errors.New("cache miss")

// Cache 代理认证结果的 Redis 缓存。
//
// 认证中间件每个请求都要按凭证查代理，缓存把热路径上的
// 数据库查询摊平；代理记录变更时由服务层主动失效。
type Cache struct {
	client *goredis.Client
	ttl    time.Duration
}

// NewCache 创建缓存实例。
func NewCache(client *Client, ttl time.Duration) *Cache {
	return &Cache{
		client: client.Client(),
		ttl:    ttl,
	}
}

func credentialKey(credential string) string {
	return fmt.Sprintf("agent:cred:%s", credential)
}

// CacheAgent 按凭证缓存代理。
func (c *Cache) CacheAgent(ctx context.Context, agent *domain.Agent) error {
	data, err := json.Marshal(agent)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, credentialKey(agent.Credential), data, c.ttl).Err()
}

// GetAgentByCredential 按凭证查缓存，未命中返回 ErrCacheMiss。
func (c *Cache) GetAgentByCredential(ctx context.Context, credential string) (*domain.Agent, error) {
	data, err := c.client.Get(ctx, credentialKey(credential)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, err
	}

	var agent domain.Agent
	if err := json.Unmarshal(data, &agent); err != nil {
		return nil, err
	}
	return &agent, nil
}

// InvalidateAgent 清除代理的缓存项。
func (c *Cache) InvalidateAgent(ctx context.Context, credential string) error {
	return c.client.Del(ctx, credentialKey(credential)).Err()
}
