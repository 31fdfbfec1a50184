package httptransport

import (
	"github.com/gin-gonic/gin"

	"agentmail/backend/internal/domain"
)

// ========== Payment Handlers ==========

// createIntentRequest 创建支付意向请求体
type createIntentRequest struct {
	Product   string `json:"product" binding:"required"`
	Requester string `json:"requester"`
}

// createPaymentIntent 创建一个待确认的支付意向。
func (h *Handler) createPaymentIntent(c *gin.Context) {
	var req createIntentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	intent, err := h.payments.CreateIntent(domain.PaymentProduct(req.Product), req.Requester)
	if err != nil {
		writeError(c, err)
		return
	}
	Created(c, intent)
}

// verifyPaymentIntent 触发链上验证并返回意向的最新状态。
func (h *Handler) verifyPaymentIntent(c *gin.Context) {
	reference := c.Param("reference")
	if reference == "" {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	intent, err := h.payments.Verify(c.Request.Context(), reference)
	if err != nil {
		writeError(c, err)
		return
	}
	Success(c, intent)
}
