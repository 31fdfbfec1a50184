package memory

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentmail/backend/internal/domain"
)

func newTestAgent(id string) *domain.Agent {
	return &domain.Agent{
		ID:         id,
		OwnerID:    "owner-" + id,
		Address:    fmt.Sprintf("inbox+%s@agent.mail", id),
		Credential: "cred-" + id,
	}
}

func TestStore_SaveAndGetAgent(t *testing.T) {
	store := NewStore()
	agent := newTestAgent("a1")

	require.NoError(t, store.SaveAgent(agent))

	got, err := store.GetAgent("a1")
	require.NoError(t, err)
	assert.Equal(t, agent.Address, got.Address)

	byOwner, err := store.GetAgentByOwnerID("owner-a1")
	require.NoError(t, err)
	assert.Equal(t, "a1", byOwner.ID)

	byCred, err := store.GetAgentByCredential("cred-a1")
	require.NoError(t, err)
	assert.Equal(t, "a1", byCred.ID)
}

func TestStore_GetAgentByAddress_CaseInsensitive(t *testing.T) {
	store := NewStore()
	require.NoError(t, store.SaveAgent(newTestAgent("a1")))

	got, err := store.GetAgentByAddress("INBOX+A1@AGENT.MAIL")
	require.NoError(t, err)
	assert.Equal(t, "a1", got.ID)
}

func TestStore_SaveAgent_RejectsDuplicateOwner(t *testing.T) {
	store := NewStore()
	require.NoError(t, store.SaveAgent(newTestAgent("a1")))

	dup := newTestAgent("a2")
	dup.OwnerID = "owner-a1"
	assert.ErrorIs(t, store.SaveAgent(dup), ErrAgentExists)
}

func TestStore_ListAgentsWithWebhook(t *testing.T) {
	store := NewStore()

	plain := newTestAgent("a1")
	require.NoError(t, store.SaveAgent(plain))

	hooked := newTestAgent("a2")
	url := "https://hooks.example.com/a2"
	hooked.WebhookURL = &url
	require.NoError(t, store.SaveAgent(hooked))

	agents := store.ListAgentsWithWebhook()
	require.Len(t, agents, 1)
	assert.Equal(t, "a2", agents[0].ID)
}

func TestStore_ConsumeQuota(t *testing.T) {
	store := NewStore()
	agent := newTestAgent("a1")
	agent.SendsToday = 9
	agent.LastSendDate = "2026-08-29"
	require.NoError(t, store.SaveAgent(agent))

	// 第 10 次发送成功
	count, err := store.ConsumeQuota("a1", "2026-08-29", 10)
	require.NoError(t, err)
	assert.Equal(t, 10, count)

	// 第 11 次同日发送被拒
	_, err = store.ConsumeQuota("a1", "2026-08-29", 10)
	assert.ErrorIs(t, err, ErrQuotaExhausted)

	// 新的一天不管昨日计数，归零后从 1 计起
	count, err = store.ConsumeQuota("a1", "2026-08-30", 10)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestStore_ConsumeQuota_ConcurrentNeverExceedsLimit(t *testing.T) {
	store := NewStore()
	require.NoError(t, store.SaveAgent(newTestAgent("a1")))

	const limit = 10
	var wg sync.WaitGroup
	var mu sync.Mutex
	granted := 0

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.ConsumeQuota("a1", "2026-08-29", limit); err == nil {
				mu.Lock()
				granted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, limit, granted, "并发下放行数不得超过日配额")
}

func TestStore_AdvanceWatermark(t *testing.T) {
	store := NewStore()
	require.NoError(t, store.SaveAgent(newTestAgent("a1")))

	now := time.Now().UTC()
	msgID := "msg-1"
	require.NoError(t, store.AdvanceWatermark("a1", &msgID, now))

	agent, err := store.GetAgent("a1")
	require.NoError(t, err)
	require.NotNil(t, agent.LastMessageID)
	assert.Equal(t, "msg-1", *agent.LastMessageID)
	require.NotNil(t, agent.LastPollAt)

	// nil 的 messageID 只更新轮询时间，保留水位线
	later := now.Add(time.Minute)
	require.NoError(t, store.AdvanceWatermark("a1", nil, later))

	agent, err = store.GetAgent("a1")
	require.NoError(t, err)
	assert.Equal(t, "msg-1", *agent.LastMessageID)
	assert.True(t, agent.LastPollAt.Equal(later))
}

func TestStore_IntentLifecycle(t *testing.T) {
	store := NewStore()

	intent := &domain.PaymentIntent{
		Reference: "ref-1",
		Product:   domain.ProductMailboxBasic,
		Status:    domain.PaymentPending,
	}
	require.NoError(t, store.SaveIntent(intent))

	// 未确认不可核销
	assert.ErrorIs(t, store.ConsumeIntent("ref-1"), ErrIntentUnavailable)

	require.NoError(t, store.MarkIntentConfirmed("ref-1", "sig-abc"))

	got, err := store.GetIntent("ref-1")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentConfirmed, got.Status)
	assert.Equal(t, "sig-abc", got.Signature)

	// 首次核销成功，重放被拒
	require.NoError(t, store.ConsumeIntent("ref-1"))
	assert.ErrorIs(t, store.ConsumeIntent("ref-1"), ErrIntentUnavailable)
}

func TestStore_ConsumeIntent_Unknown(t *testing.T) {
	store := NewStore()
	assert.ErrorIs(t, store.ConsumeIntent("missing"), ErrIntentUnavailable)
}
