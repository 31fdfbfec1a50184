// Package auth 负责代理访问凭证的签发与校验。
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrInvalidCredential 无效的凭证
	ErrInvalidCredential = errors.New("invalid credential")
)

// Claims 代理凭证的自定义声明
type Claims struct {
	AgentID string `json:"agent_id"`
	OwnerID string `json:"owner_id"`
	jwt.RegisteredClaims
}

// Manager 凭证管理器
//
// 凭证是 HS256 签名的 JWT，jti 取随机 UUID 保证唯一；
// 不设过期时间，吊销通过删除代理记录完成。
type Manager struct {
	secret []byte
	issuer string
}

// NewManager 创建凭证管理器。
func NewManager(secret, issuer string) *Manager {
	return &Manager{
		secret: []byte(secret),
		issuer: issuer,
	}
}

// Issue 为代理签发访问凭证。
func (m *Manager) Issue(agentID, ownerID string) (string, error) {
	now := time.Now()

	claims := Claims{
		AgentID: agentID,
		OwnerID: ownerID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    m.issuer,
			Subject:   agentID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign credential: %w", err)
	}
	return signed, nil
}

// Parse 校验凭证并返回声明。
func (m *Manager) Parse(credential string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(credential, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, ErrInvalidCredential
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.AgentID == "" {
		return nil, ErrInvalidCredential
	}
	return claims, nil
}
