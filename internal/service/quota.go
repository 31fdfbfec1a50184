package service

import (
	"errors"
	"time"

	"agentmail/backend/internal/domain"
	"agentmail/backend/internal/storage/memory"
)

// dateLayout 配额计数对应的日历日格式（UTC）
const dateLayout = "2006-01-02"

// QuotaService 按代理维护每日发送配额状态机。
type QuotaService struct {
	store domain.Store
	limit int
}

// NewQuotaService 创建配额服务。
func NewQuotaService(store domain.Store, limit int) *QuotaService {
	return &QuotaService{
		store: store,
		limit: limit,
	}
}

// Limit 返回每日发送上限。
func (s *QuotaService) Limit() int {
	return s.limit
}

// CheckAndConsume 对代理执行一次配额消耗。
//
// 存储层保证"读取-校验-自增"原子执行；日期翻转时存量计数
// 被逻辑忽略，从 0 重新计起。配额用尽返回 QuotaExceededError，
// 携带当日 UTC 结束的重置时间。
func (s *QuotaService) CheckAndConsume(agentID string, now time.Time) (int, error) {
	day := now.UTC()
	date := day.Format(dateLayout)

	count, err := s.store.ConsumeQuota(agentID, date, s.limit)
	if errors.Is(err, memory.ErrQuotaExhausted) {
		return count, &domain.QuotaExceededError{
			Limit:   s.limit,
			ResetAt: endOfDay(day),
		}
	}
	return count, err
}

// endOfDay 返回所在 UTC 日历日的结束时刻（次日零点）。
func endOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
}
