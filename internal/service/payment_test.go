package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"agentmail/backend/internal/domain"
	"agentmail/backend/internal/storage/memory"
	"agentmail/backend/internal/verify"
)

// stubChain 实现 verify.Chain。
type stubChain struct {
	result *verify.ChainResult
	err    error
	calls  int
}

func (s *stubChain) Verify(_ context.Context, _ string) (*verify.ChainResult, error) {
	s.calls++
	return s.result, s.err
}

func newPaymentService(chain *stubChain) (*PaymentService, *memory.Store) {
	store := memory.NewStore()
	return NewPaymentService(store, chain, zap.NewNop(), nil, ""), store
}

func TestCreateIntent(t *testing.T) {
	svc, store := newPaymentService(&stubChain{})

	intent, err := svc.CreateIntent(domain.ProductMailboxBasic, "requester-1")
	require.NoError(t, err)
	assert.NotEmpty(t, intent.Reference)
	assert.Equal(t, domain.PaymentPending, intent.Status)
	assert.Equal(t, int64(1_000_000), intent.Amount)
	assert.Equal(t, "USDT", intent.Currency)

	stored, err := store.GetIntent(intent.Reference)
	require.NoError(t, err)
	assert.Equal(t, intent.Reference, stored.Reference)

	// 引用不可猜测：两次创建互不相同
	second, err := svc.CreateIntent(domain.ProductMailboxBasic, "requester-1")
	require.NoError(t, err)
	assert.NotEqual(t, intent.Reference, second.Reference)
}

func TestCreateIntent_UnknownProduct(t *testing.T) {
	svc, _ := newPaymentService(&stubChain{})

	_, err := svc.CreateIntent(domain.PaymentProduct("mailbox_platinum"), "requester-1")
	var valErr *domain.ValidationError
	require.ErrorAs(t, err, &valErr)
}

func TestVerify_ConfirmsOnChainSuccess(t *testing.T) {
	chain := &stubChain{result: &verify.ChainResult{Verified: true, Status: "settled", Signature: "0xsig"}}
	svc, _ := newPaymentService(chain)

	intent, err := svc.CreateIntent(domain.ProductMailboxPro, "requester-1")
	require.NoError(t, err)

	verified, err := svc.Verify(context.Background(), intent.Reference)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentConfirmed, verified.Status)
	assert.Equal(t, "0xsig", verified.Signature)
	assert.NotNil(t, verified.ConfirmedAt)
}

func TestVerify_FailsOnChainRejection(t *testing.T) {
	chain := &stubChain{result: &verify.ChainResult{Verified: false, Status: "not found"}}
	svc, _ := newPaymentService(chain)

	intent, err := svc.CreateIntent(domain.ProductMailboxBasic, "requester-1")
	require.NoError(t, err)

	verified, err := svc.Verify(context.Background(), intent.Reference)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentFailed, verified.Status)
}

func TestVerify_TerminalStateSkipsChainCall(t *testing.T) {
	chain := &stubChain{result: &verify.ChainResult{Verified: true}}
	svc, _ := newPaymentService(chain)

	intent, err := svc.CreateIntent(domain.ProductMailboxBasic, "requester-1")
	require.NoError(t, err)

	_, err = svc.Verify(context.Background(), intent.Reference)
	require.NoError(t, err)
	require.Equal(t, 1, chain.calls)

	// 终态不再打链上验证方
	verified, err := svc.Verify(context.Background(), intent.Reference)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentConfirmed, verified.Status)
	assert.Equal(t, 1, chain.calls)
}

func TestVerify_UnknownReference(t *testing.T) {
	svc, _ := newPaymentService(&stubChain{})

	_, err := svc.Verify(context.Background(), "no-such-ref")
	var valErr *domain.ValidationError
	require.ErrorAs(t, err, &valErr)
}

func TestVerify_ChainTransportError(t *testing.T) {
	chain := &stubChain{err: errors.New("chain rpc timeout")}
	svc, _ := newPaymentService(chain)

	intent, err := svc.CreateIntent(domain.ProductMailboxBasic, "requester-1")
	require.NoError(t, err)

	_, err = svc.Verify(context.Background(), intent.Reference)
	var transportErr *domain.TransportError
	require.ErrorAs(t, err, &transportErr)
}
