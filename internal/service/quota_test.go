package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentmail/backend/internal/domain"
	"agentmail/backend/internal/storage/memory"
)

func seedAgent(t *testing.T, store *memory.Store, id string) *domain.Agent {
	t.Helper()
	agent := &domain.Agent{
		ID:         id,
		OwnerID:    "owner-" + id,
		Address:    "inbox+" + id + "@agent.mail",
		Credential: "cred-" + id,
	}
	require.NoError(t, store.SaveAgent(agent))
	return agent
}

func TestQuotaService_TenthSendSucceedsEleventhFails(t *testing.T) {
	store := memory.NewStore()
	seedAgent(t, store, "a1")
	quota := NewQuotaService(store, 10)

	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)

	for i := 1; i <= 10; i++ {
		count, err := quota.CheckAndConsume("a1", now)
		require.NoError(t, err, "第 %d 次发送应当放行", i)
		assert.Equal(t, i, count)
	}

	_, err := quota.CheckAndConsume("a1", now)
	require.Error(t, err)

	var qe *domain.QuotaExceededError
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, 10, qe.Limit)
	// 重置时间是当日 UTC 结束
	assert.Equal(t, time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC), qe.ResetAt)
}

func TestQuotaService_NewDayResetsCount(t *testing.T) {
	store := memory.NewStore()
	seedAgent(t, store, "a1")
	quota := NewQuotaService(store, 10)

	day1 := time.Date(2026, 8, 29, 23, 50, 0, 0, time.UTC)
	for i := 0; i < 10; i++ {
		_, err := quota.CheckAndConsume("a1", day1)
		require.NoError(t, err)
	}
	_, err := quota.CheckAndConsume("a1", day1)
	require.Error(t, err)

	// 新日历日不管昨日计数，放行并从 1 计起
	day2 := day1.Add(time.Hour)
	count, err := quota.CheckAndConsume("a1", day2)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestQuotaService_UnknownAgent(t *testing.T) {
	store := memory.NewStore()
	quota := NewQuotaService(store, 10)

	_, err := quota.CheckAndConsume("missing", time.Now())
	assert.ErrorIs(t, err, memory.ErrAgentNotFound)
}
