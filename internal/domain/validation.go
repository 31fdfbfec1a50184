package domain

import (
	"net"
	"net/url"
	"strings"
)

// ValidateWebhookURL 校验投递目标 URL。
//
// 仅接受 http/https 绝对地址，且禁止指向环回地址，
// 避免把内网服务当作投递目标。
func ValidateWebhookURL(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return NewValidationError("webhook url is empty")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return NewValidationError("webhook url is malformed: %v", err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return NewValidationError("webhook url scheme must be http or https")
	}

	host := u.Hostname()
	if host == "" {
		return NewValidationError("webhook url has no host")
	}

	if strings.EqualFold(host, "localhost") {
		return NewValidationError("webhook url must not target localhost")
	}
	if ip := net.ParseIP(host); ip != nil && ip.IsLoopback() {
		return NewValidationError("webhook url must not target a loopback address")
	}

	return nil
}
