package domain

import "time"

// PaymentProduct 可购买的产品类型
type PaymentProduct string

const (
	// ProductMailboxBasic 基础代理邮箱
	ProductMailboxBasic PaymentProduct = "mailbox_basic"
	// ProductMailboxPro 高级代理邮箱
	ProductMailboxPro PaymentProduct = "mailbox_pro"
)

// PaymentStatus 支付意向状态
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"   // 已创建，等待链上确认
	PaymentConfirmed PaymentStatus = "confirmed" // 链上验证通过
	PaymentFailed    PaymentStatus = "failed"    // 链上验证失败
)

// PaymentIntent 表示一次链上支付意向。
//
// Reference 唯一且不可猜测；Consumed 保证一个意向至多创建一个邮箱，
// 防止重放。状态只沿 pending → confirmed | failed 迁移。
type PaymentIntent struct {
	Reference   string         `json:"reference" gorm:"primaryKey;type:varchar(36)"`
	Product     PaymentProduct `json:"product" gorm:"type:varchar(32);not null"`
	Requester   string         `json:"requester" gorm:"type:varchar(255)"`
	Amount      int64          `json:"amount"`                           // 最小货币单位计价
	Currency    string         `json:"currency" gorm:"type:varchar(16)"` // 例如 "USDT"
	Status      PaymentStatus  `json:"status" gorm:"type:varchar(16);index;default:pending"`
	Signature   string         `json:"signature,omitempty" gorm:"type:varchar(255)"`
	Consumed    bool           `json:"consumed" gorm:"default:false"`
	CreatedAt   time.Time      `json:"createdAt"`
	ConfirmedAt *time.Time     `json:"confirmedAt,omitempty"`
}
