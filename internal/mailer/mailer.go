// Package mailer 定义共享邮箱的收发协作方契约。
//
// 核心把邮件传输当作外部协作方：抓取失败按"本轮无新邮件"处理，
// 发送失败原样上抛给调用方。
package mailer

import (
	"context"

	"agentmail/backend/internal/domain"
)

// Fetcher 从共享邮箱抓取最近的邮件快照。
type Fetcher interface {
	// Fetch 返回指定邮箱最近 max 封邮件，按最新在前排序。
	// 传输失败返回 TransportError；调用方不得将其视为致命错误。
	Fetch(ctx context.Context, mailbox string, max int) ([]domain.InboundMessage, error)
}

// SendInput 一次外发邮件的内容。
type SendInput struct {
	From    string
	To      string
	Subject string
	Body    string
	HTML    string // 可选的 HTML 正文
}

// Sender 通过共享邮箱对外发送邮件。
type Sender interface {
	// Send 发送一封邮件，成功时返回传输方的消息 ID。
	Send(ctx context.Context, in SendInput) (providerMessageID string, err error)
}
