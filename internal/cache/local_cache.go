// Package cache 提供进程内的代理凭证缓存（L1 缓存）。
//
// 认证中间件每个请求都按凭证查代理；未启用 Redis 时，
// 这层缓存把热路径上的存储查询摊平。
package cache

import (
	"sync"
	"time"

	"agentmail/backend/internal/domain"
)

// AgentCache 凭证到代理的本地缓存
//
// 特点：
// - 使用 sync.Map 实现无锁读取
// - 支持 TTL 过期
// - 自动清理过期条目
type AgentCache struct {
	data sync.Map
	ttl  time.Duration
}

type cacheEntry struct {
	agent     domain.Agent
	expiresAt time.Time
}

// NewAgentCache 创建本地凭证缓存。
func NewAgentCache(ttl time.Duration) *AgentCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	c := &AgentCache{ttl: ttl}

	// 启动定期清理
	go c.cleanupLoop()

	return c
}

// Get 按凭证获取缓存的代理。
func (c *AgentCache) Get(credential string) (*domain.Agent, bool) {
	val, ok := c.data.Load(credential)
	if !ok {
		return nil, false
	}

	entry := val.(*cacheEntry)
	if time.Now().After(entry.expiresAt) {
		c.data.Delete(credential)
		return nil, false
	}

	agent := entry.agent
	return &agent, true
}

// Set 按凭证缓存一个代理。
// 凭证单独传入：序列化后的代理副本不携带凭证字段。
func (c *AgentCache) Set(credential string, agent *domain.Agent) {
	c.data.Store(credential, &cacheEntry{
		agent:     *agent,
		expiresAt: time.Now().Add(c.ttl),
	})
}

// Invalidate 删除凭证对应的缓存项。
func (c *AgentCache) Invalidate(credential string) {
	c.data.Delete(credential)
}

// cleanupLoop 定期删除过期条目。
func (c *AgentCache) cleanupLoop() {
	ticker := time.NewTicker(c.ttl)
	defer ticker.Stop()

	for range ticker.C {
		now := time.Now()
		c.data.Range(func(key, val interface{}) bool {
			if now.After(val.(*cacheEntry).expiresAt) {
				c.data.Delete(key)
			}
			return true
		})
	}
}
