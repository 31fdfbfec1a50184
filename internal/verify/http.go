package verify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"agentmail/backend/internal/domain"
)

// HTTPIdentity 通过 HTTP 调用身份验证服务。
type HTTPIdentity struct {
	baseURL string
	client  *http.Client
}

// NewHTTPIdentity 创建身份验证客户端。
func NewHTTPIdentity(baseURL string) *HTTPIdentity {
	return &HTTPIdentity{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Verify 验证身份凭证。服务端返回 404 视为凭证无效 (nil, nil)。
func (v *HTTPIdentity) Verify(ctx context.Context, credential string) (*Owner, error) {
	payload, err := json.Marshal(map[string]string{"credential": credential})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		v.baseURL+"/verify", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, domain.NewTransportError("identity verify", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, nil
	case resp.StatusCode >= 300:
		return nil, domain.NewTransportError("identity verify",
			fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	var owner Owner
	if err := json.NewDecoder(resp.Body).Decode(&owner); err != nil {
		return nil, domain.NewTransportError("identity verify", err)
	}
	if owner.ID == "" {
		return nil, nil
	}
	return &owner, nil
}

// HTTPChain 通过 HTTP 调用链上支付验证服务。
type HTTPChain struct {
	baseURL string
	client  *http.Client
}

// NewHTTPChain 创建链上验证客户端。
func NewHTTPChain(baseURL string) *HTTPChain {
	return &HTTPChain{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// Verify 查询一笔支付引用的链上确认状态。
func (v *HTTPChain) Verify(ctx context.Context, reference string) (*ChainResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/payments/%s", v.baseURL, reference), nil)
	if err != nil {
		return nil, err
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, domain.NewTransportError("chain verify", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, domain.NewTransportError("chain verify",
			fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	var result ChainResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, domain.NewTransportError("chain verify", err)
	}
	return &result, nil
}
