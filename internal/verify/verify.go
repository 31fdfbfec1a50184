// Package verify 封装两个外部验证协作方：
// 代理身份验证与链上支付验证。二者都是不透明的 HTTP 服务。
package verify

import "context"

// Owner 身份验证通过后返回的所有者信息。
type Owner struct {
	ID   string `json:"ownerId"`
	Name string `json:"ownerName"`
}

// Identity 第三方代理身份验证协作方。
type Identity interface {
	// Verify 验证身份凭证；凭证无效时返回 (nil, nil)。
	Verify(ctx context.Context, credential string) (*Owner, error)
}

// ChainResult 链上支付验证结果。
type ChainResult struct {
	Verified  bool   `json:"verified"`
	Status    string `json:"status"`
	Signature string `json:"signature,omitempty"`
}

// Chain 链上支付验证协作方。
type Chain interface {
	Verify(ctx context.Context, reference string) (*ChainResult, error)
}
