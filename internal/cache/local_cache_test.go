package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentmail/backend/internal/domain"
)

func TestAgentCache_SetGet(t *testing.T) {
	c := NewAgentCache(time.Minute)
	agent := &domain.Agent{ID: "a1", Address: "inbox+a1@agent.mail"}

	c.Set("cred-1", agent)

	got, ok := c.Get("cred-1")
	require.True(t, ok)
	assert.Equal(t, "a1", got.ID)

	// 返回的是副本，修改不影响缓存
	got.Address = "changed"
	again, ok := c.Get("cred-1")
	require.True(t, ok)
	assert.Equal(t, "inbox+a1@agent.mail", again.Address)
}

func TestAgentCache_Miss(t *testing.T) {
	c := NewAgentCache(time.Minute)

	_, ok := c.Get("unknown")
	assert.False(t, ok)
}

func TestAgentCache_Invalidate(t *testing.T) {
	c := NewAgentCache(time.Minute)
	c.Set("cred-1", &domain.Agent{ID: "a1"})

	c.Invalidate("cred-1")

	_, ok := c.Get("cred-1")
	assert.False(t, ok)
}

func TestAgentCache_TTLExpiry(t *testing.T) {
	c := NewAgentCache(10 * time.Millisecond)
	c.Set("cred-1", &domain.Agent{ID: "a1"})

	time.Sleep(25 * time.Millisecond)

	_, ok := c.Get("cred-1")
	assert.False(t, ok)
}
