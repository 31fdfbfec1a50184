package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"agentmail/backend/internal/domain"
	"agentmail/backend/internal/mailer"
	"agentmail/backend/internal/monitoring"
	"agentmail/backend/internal/storage/memory"
)

// stubSender 记录发送请求，可注入失败。
type stubSender struct {
	inputs []mailer.SendInput
	err    error
}

func (s *stubSender) Send(_ context.Context, in mailer.SendInput) (string, error) {
	s.inputs = append(s.inputs, in)
	if s.err != nil {
		return "", s.err
	}
	return "provider-msg-1", nil
}

func newSendFixture(t *testing.T, sender *stubSender, limit int) (*SendService, *domain.Agent, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	agent := &domain.Agent{
		ID:         "a1",
		OwnerID:    "owner-1",
		Address:    "inbox+a1@agent.mail",
		Credential: "cred-a1",
	}
	require.NoError(t, store.SaveAgent(agent))

	svc := NewSendService(store, sender, NewQuotaService(store, limit), monitoring.NewMetrics(), zap.NewNop())
	return svc, agent, store
}

func TestSend_UsesAgentAddressAsSender(t *testing.T) {
	sender := &stubSender{}
	svc, agent, _ := newSendFixture(t, sender, 10)

	result, err := svc.Send(context.Background(), agent.ID, "dest@example.com", "hi", "body", "")
	require.NoError(t, err)
	assert.Equal(t, "provider-msg-1", result.ProviderMessageID)
	assert.Equal(t, 1, result.SendsToday)

	require.Len(t, sender.inputs, 1)
	assert.Equal(t, agent.Address, sender.inputs[0].From)
	assert.Equal(t, "dest@example.com", sender.inputs[0].To)
}

func TestSend_QuotaExhaustedRejectsWithoutSending(t *testing.T) {
	sender := &stubSender{}
	svc, agent, _ := newSendFixture(t, sender, 2)

	for i := 0; i < 2; i++ {
		_, err := svc.Send(context.Background(), agent.ID, "dest@example.com", "hi", "body", "")
		require.NoError(t, err)
	}

	_, err := svc.Send(context.Background(), agent.ID, "dest@example.com", "hi", "body", "")
	require.True(t, domain.IsQuotaExceeded(err))
	assert.Len(t, sender.inputs, 2, "配额拒绝时不触发外部发送")
}

func TestSend_DownstreamFailureStillConsumesQuota(t *testing.T) {
	sender := &stubSender{err: domain.NewTransportError("smtp send", errors.New("connection reset"))}
	svc, agent, store := newSendFixture(t, sender, 10)

	_, err := svc.Send(context.Background(), agent.ID, "dest@example.com", "hi", "body", "")
	var transportErr *domain.TransportError
	require.ErrorAs(t, err, &transportErr)

	// 发送方的重试语义不透明，按"已尝试"计数
	got, err := store.GetAgent(agent.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.SendsToday)
}

func TestSend_UnknownAgent(t *testing.T) {
	svc, _, _ := newSendFixture(t, &stubSender{}, 10)

	_, err := svc.Send(context.Background(), "missing", "dest@example.com", "hi", "body", "")
	assert.Error(t, err)
}
