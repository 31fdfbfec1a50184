package httptransport

import (
	"github.com/gin-gonic/gin"

	"agentmail/backend/internal/middleware"
	"agentmail/backend/internal/service"
)

// ========== Agent Handlers ==========

// registerAgentRequest 注册代理请求体
type registerAgentRequest struct {
	IdentityCredential string `json:"identityCredential" binding:"required"`
	PaymentReference   string `json:"paymentReference"`
}

// registerAgent 注册新代理：身份验证通过后派生专属收件地址并签发访问凭证。
// 凭证只在本次响应中返回一次。
func (h *Handler) registerAgent(c *gin.Context) {
	var req registerAgentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	agent, err := h.agents.Register(c.Request.Context(), req.IdentityCredential, req.PaymentReference)
	if err != nil {
		writeError(c, err)
		return
	}

	h.metrics.AgentsRegistered.Inc()
	Created(c, gin.H{
		"agent":      agent,
		"credential": agent.Credential,
	})
}

// getAgent 获取当前认证代理的账户信息。
func (h *Handler) getAgent(c *gin.Context) {
	agent, ok := middleware.AgentFromContext(c)
	if !ok {
		Unauthorized(c, "未授权")
		return
	}
	Success(c, agent)
}

// setWebhookRequest 登记投递目标请求体
type setWebhookRequest struct {
	URL string `json:"url" binding:"required"`
}

// setWebhook 登记投递目标，返回新的签名密钥（仅此一次）。
func (h *Handler) setWebhook(c *gin.Context) {
	agent, ok := middleware.AgentFromContext(c)
	if !ok {
		Unauthorized(c, "未授权")
		return
	}

	var req setWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	secret, err := h.agents.SetWebhook(c.Request.Context(), agent.ID, req.URL)
	if err != nil {
		writeError(c, err)
		return
	}

	Success(c, gin.H{
		"url":    req.URL,
		"secret": secret,
	})
}

// deleteWebhook 注销投递目标，停止推送。
func (h *Handler) deleteWebhook(c *gin.Context) {
	agent, ok := middleware.AgentFromContext(c)
	if !ok {
		Unauthorized(c, "未授权")
		return
	}

	if err := h.agents.ClearWebhook(c.Request.Context(), agent.ID); err != nil {
		writeError(c, err)
		return
	}
	NoContent(c)
}

// testWebhook 向投递目标发送一条连通性测试事件。
func (h *Handler) testWebhook(c *gin.Context) {
	agent, ok := middleware.AgentFromContext(c)
	if !ok {
		Unauthorized(c, "未授权")
		return
	}

	// 取最新的代理状态，投递目标可能刚刚登记
	current, err := h.agents.Get(agent.ID)
	if err != nil {
		writeError(c, err)
		return
	}
	if !current.HasWebhook() {
		BadRequest(c, "尚未登记投递目标")
		return
	}

	if err := h.dispatcher.Dispatch(c.Request.Context(), current, service.NewTestEvent(current.ID)); err != nil {
		writeError(c, err)
		return
	}
	Success(c, gin.H{"delivered": true})
}

// setPublicKeyRequest 登记加密公钥请求体
type setPublicKeyRequest struct {
	PublicKey string `json:"publicKey" binding:"required"`
}

// setPublicKey 登记加密公钥，此后推送载荷全部加密投递。
func (h *Handler) setPublicKey(c *gin.Context) {
	agent, ok := middleware.AgentFromContext(c)
	if !ok {
		Unauthorized(c, "未授权")
		return
	}

	var req setPublicKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	if err := h.agents.SetPublicKey(c.Request.Context(), agent.ID, req.PublicKey); err != nil {
		writeError(c, err)
		return
	}

	serverKey, err := h.agents.ServerPublicKey()
	if err != nil {
		writeError(c, err)
		return
	}
	Success(c, gin.H{"serverPublicKey": serverKey})
}

// deletePublicKey 注销加密公钥，恢复明文推送。
func (h *Handler) deletePublicKey(c *gin.Context) {
	agent, ok := middleware.AgentFromContext(c)
	if !ok {
		Unauthorized(c, "未授权")
		return
	}

	if err := h.agents.ClearPublicKey(c.Request.Context(), agent.ID); err != nil {
		writeError(c, err)
		return
	}
	NoContent(c)
}

// listMessages 拉取属于当前代理的近期邮件，推送失败时的兜底读取路径。
func (h *Handler) listMessages(c *gin.Context) {
	agent, ok := middleware.AgentFromContext(c)
	if !ok {
		Unauthorized(c, "未授权")
		return
	}

	messages, err := h.messages.List(c.Request.Context(), agent.ID)
	if err != nil {
		writeError(c, err)
		return
	}
	Success(c, gin.H{
		"messages": messages,
		"count":    len(messages),
	})
}

// sendMessageRequest 发信请求体
type sendMessageRequest struct {
	To      string `json:"to" binding:"required,email"`
	Subject string `json:"subject" binding:"required"`
	Body    string `json:"body" binding:"required"`
	HTML    string `json:"html"`
}

// sendMessage 以代理专属地址发送一封邮件，受每日配额限制。
func (h *Handler) sendMessage(c *gin.Context) {
	agent, ok := middleware.AgentFromContext(c)
	if !ok {
		Unauthorized(c, "未授权")
		return
	}

	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	result, err := h.send.Send(c.Request.Context(), agent.ID, req.To, req.Subject, req.Body, req.HTML)
	if err != nil {
		writeError(c, err)
		return
	}
	Success(c, result)
}
