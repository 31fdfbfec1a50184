package domain

import "time"

// InboundMessage 表示从共享邮箱抓取到的一封邮件。
//
// 这是瞬态对象：由产生它的那一轮轮询独占，分发后即丢弃，不单独持久化。
// ID 对同一封物理邮件在多次抓取间保持稳定（取 Message-Id 头）。
type InboundMessage struct {
	ID         string    `json:"id"`
	From       string    `json:"from"`
	To         string    `json:"to"`
	Subject    string    `json:"subject"`
	Body       string    `json:"body"`
	ReceivedAt time.Time `json:"receivedAt"`
}

// EventType Webhook 事件类型
type EventType string

const (
	// EventMailReceived 新邮件到达
	EventMailReceived EventType = "mail.received"
	// EventWebhookTest 投递目标连通性测试
	EventWebhookTest EventType = "webhook.test"
)

// EncryptedPayload 按接收方公钥加密后的推送载荷。
//
// 三个字段均为 base64 文本；客户端用自己的私钥与 ServerPublicKey
// 做 NaCl box open 还原明文。
type EncryptedPayload struct {
	Ciphertext      string `json:"ciphertext"`
	Nonce           string `json:"nonce"`
	ServerPublicKey string `json:"serverPublicKey"`
}

// MessagePayload Webhook 推送中携带的邮件内容。
//
// 若代理注册了加密公钥，Body 为空而 Encrypted 非空；
// Codes 为启发式提取出的候选验证码集合。
type MessagePayload struct {
	ID         string            `json:"id"`
	From       string            `json:"from"`
	To         string            `json:"to"`
	Subject    string            `json:"subject"`
	Body       string            `json:"body,omitempty"`
	ReceivedAt time.Time         `json:"receivedAt"`
	Codes      []string          `json:"codes,omitempty"`
	Encrypted  *EncryptedPayload `json:"encrypted,omitempty"`
}

// WebhookEvent Webhook 推送的固定信封。
type WebhookEvent struct {
	ID        string          `json:"id"`
	Event     EventType       `json:"event"`
	AgentID   string          `json:"agentId"`
	Timestamp time.Time       `json:"timestamp"`
	Message   *MessagePayload `json:"message,omitempty"`
}
