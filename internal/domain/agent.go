package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// Agent 表示注册到共享收件箱上的一个代理（Agent）账户。
//
// 所有代理共享同一个物理邮箱，通过加号寻址（plus addressing）切分：
// 每个代理拥有形如 inbox+<suffix>@domain 的专属地址，
// suffix 由稳定的所有者标识确定性派生，保证全局唯一且不复用。
type Agent struct {
	ID        string `json:"id" gorm:"primaryKey;type:varchar(36)"`
	OwnerID   string `json:"ownerId" gorm:"type:varchar(128);uniqueIndex;not null"`
	OwnerName string `json:"ownerName" gorm:"type:varchar(255)"`

	// Address 代理专属的收件地址（含 plus 后缀），全局唯一
	Address string `json:"address" gorm:"type:varchar(255);uniqueIndex"`

	// Credential 签发给代理的访问凭证（唯一、保密）
	Credential string `json:"-" gorm:"type:varchar(512);uniqueIndex"`

	// WebhookURL 投递目标，为 nil 表示不推送通知
	WebhookURL *string `json:"webhookUrl,omitempty" gorm:"type:varchar(500)"`

	// WebhookSecret 用于对推送载荷做 HMAC 签名
	WebhookSecret string `json:"-" gorm:"type:varchar(64)"`

	// PublicKey 代理的 NaCl 公钥（base64），非空表示推送载荷需加密
	PublicKey *string `json:"publicKey,omitempty" gorm:"type:varchar(64)"`

	// 配额状态：今日已发送数量与对应日历日（UTC，格式 2006-01-02）。
	// 日期变更后计数在逻辑上归零，直到下一次成功发送才落盘新日期。
	SendsToday   int    `json:"sendsToday" gorm:"default:0"`
	LastSendDate string `json:"lastSendDate" gorm:"type:varchar(10)"`

	// 水位线状态：最近一次已投递的邮件 ID 与最近一次轮询时间，
	// 首次轮询前均为 nil。
	LastMessageID *string    `json:"lastMessageId,omitempty" gorm:"type:varchar(255)"`
	LastPollAt    *time.Time `json:"lastPollAt,omitempty"`

	// Paid 通过链上支付开通的代理标记
	Paid bool `json:"paid" gorm:"default:false"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// AddressSuffix 从稳定的所有者标识确定性派生地址后缀。
//
// 取 SHA-256 摘要前 10 个十六进制字符，同一所有者恒定得到同一后缀，
// 不同所有者碰撞概率可忽略，保证共享邮箱内后缀不复用。
func AddressSuffix(ownerID string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(ownerID))))
	return hex.EncodeToString(sum[:])[:10]
}

// DeriveAddress 为所有者派生完整的代理收件地址。
func DeriveAddress(ownerID, localPart, domain string) string {
	return fmt.Sprintf("%s+%s@%s", localPart, AddressSuffix(ownerID), domain)
}

// MatchesAgent 判断一封邮件的收件地址是否属于指定代理地址。
//
// 匹配规则：大小写不敏感的精确比较。纯函数，便于独立测试。
// 不匹配任何代理的邮件由调用方丢弃。
func MatchesAgent(agentAddress, recipient string) bool {
	return strings.EqualFold(strings.TrimSpace(agentAddress), strings.TrimSpace(recipient))
}

// HasWebhook 报告代理是否注册了投递目标。
func (a *Agent) HasWebhook() bool {
	return a.WebhookURL != nil && *a.WebhookURL != ""
}

// WantsEncryption 报告代理是否要求加密推送载荷。
func (a *Agent) WantsEncryption() bool {
	return a.PublicKey != nil && *a.PublicKey != ""
}
