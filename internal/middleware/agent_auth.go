package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"agentmail/backend/internal/domain"
)

const (
	// ContextAgentID gin 上下文中代理 ID 的键
	ContextAgentID = "agentID"
	// ContextAgent gin 上下文中代理实体的键
	ContextAgent = "agent"
)

// Authenticator 凭证认证入口，由服务层实现。
type Authenticator interface {
	Authenticate(ctx context.Context, credential string) (*domain.Agent, error)
}

// AgentAuth 代理凭证认证中间件。
//
// 凭证取自 Authorization: Bearer 头或 X-Agent-Token 头，
// 认证通过后把代理实体放进请求上下文。
func AgentAuth(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		credential := extractCredential(c)
		if credential == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "missing credential",
			})
			c.Abort()
			return
		}

		agent, err := auth.Authenticate(c.Request.Context(), credential)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "invalid credential",
			})
			c.Abort()
			return
		}

		c.Set(ContextAgentID, agent.ID)
		c.Set(ContextAgent, agent)
		c.Next()
	}
}

// AgentFromContext 从 gin 上下文取出已认证的代理。
func AgentFromContext(c *gin.Context) (*domain.Agent, bool) {
	value, exists := c.Get(ContextAgent)
	if !exists {
		return nil, false
	}
	agent, ok := value.(*domain.Agent)
	return agent, ok
}

func extractCredential(c *gin.Context) string {
	if header := c.GetHeader("Authorization"); header != "" {
		if token, found := strings.CutPrefix(header, "Bearer "); found {
			return strings.TrimSpace(token)
		}
	}
	return strings.TrimSpace(c.GetHeader("X-Agent-Token"))
}
