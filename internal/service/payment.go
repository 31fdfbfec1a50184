package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"agentmail/backend/internal/domain"
	"agentmail/backend/internal/storage/memory"
	"agentmail/backend/internal/verify"
)

// PaymentService 链上支付意向的生命周期管理。
//
// 意向沿 pending → confirmed | failed 单向迁移，
// 已确认的意向在注册时至多被核销一次。
type PaymentService struct {
	store    domain.Store
	chain    verify.Chain
	log      *zap.Logger
	prices   map[domain.PaymentProduct]int64
	currency string
}

// NewPaymentService 创建支付服务。
func NewPaymentService(store domain.Store, chain verify.Chain, log *zap.Logger, prices map[domain.PaymentProduct]int64, currency string) *PaymentService {
	if len(prices) == 0 {
		prices = map[domain.PaymentProduct]int64{
			domain.ProductMailboxBasic: 1_000_000, // 1 USDT（六位小数）
			domain.ProductMailboxPro:   5_000_000, // 5 USDT
		}
	}
	if currency == "" {
		currency = "USDT"
	}
	return &PaymentService{
		store:    store,
		chain:    chain,
		log:      log,
		prices:   prices,
		currency: currency,
	}
}

// CreateIntent 创建一个待确认的支付意向，引用随机不可猜测。
func (s *PaymentService) CreateIntent(product domain.PaymentProduct, requester string) (*domain.PaymentIntent, error) {
	amount, ok := s.prices[product]
	if !ok {
		return nil, domain.NewValidationError("unknown product %q", product)
	}

	intent := &domain.PaymentIntent{
		Reference: uuid.NewString(),
		Product:   product,
		Requester: requester,
		Amount:    amount,
		Currency:  s.currency,
		Status:    domain.PaymentPending,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.SaveIntent(intent); err != nil {
		return nil, err
	}

	s.log.Info("payment intent created",
		zap.String("reference", intent.Reference),
		zap.String("product", string(product)),
		zap.Int64("amount", amount),
	)
	return intent, nil
}

// Verify 向链上验证方查询意向状态并落盘结果。
// 已终态的意向原样返回，不重复查询。
func (s *PaymentService) Verify(ctx context.Context, reference string) (*domain.PaymentIntent, error) {
	intent, err := s.store.GetIntent(reference)
	if err != nil {
		if errors.Is(err, memory.ErrIntentNotFound) {
			return nil, domain.NewValidationError("unknown payment reference")
		}
		return nil, err
	}
	if intent.Status != domain.PaymentPending {
		return intent, nil
	}

	result, err := s.chain.Verify(ctx, reference)
	if err != nil {
		return nil, domain.NewTransportError("chain verification", err)
	}

	if result.Verified {
		if err := s.store.MarkIntentConfirmed(reference, result.Signature); err != nil {
			return nil, err
		}
		s.log.Info("payment intent confirmed", zap.String("reference", reference))
	} else {
		if err := s.store.MarkIntentFailed(reference); err != nil {
			return nil, err
		}
		s.log.Info("payment intent rejected",
			zap.String("reference", reference),
			zap.String("status", result.Status),
		)
	}
	return s.store.GetIntent(reference)
}
