package httptransport

import (
	"errors"

	"github.com/gin-gonic/gin"

	"agentmail/backend/internal/domain"
	"agentmail/backend/internal/storage/memory"
)

// 通用错误消息
const (
	MsgInvalidRequest  = "请求参数格式错误"
	MsgAgentNotFound   = "代理不存在"
	MsgInternalError   = "服务器内部错误，请稍后重试"
	MsgUpstreamFailure = "外部服务暂不可用，请稍后重试"
)

// writeError 按错误类别映射 HTTP 响应。
//
// 校验/认证/配额错误带结构化原因返回调用方；
// 其余内部错误返回笼统消息，不泄露内部细节。
func writeError(c *gin.Context, err error) {
	var (
		valErr       *domain.ValidationError
		authErr      *domain.AuthError
		quotaErr     *domain.QuotaExceededError
		transportErr *domain.TransportError
		encErr       *domain.EncryptionError
	)

	switch {
	case errors.As(err, &valErr):
		BadRequest(c, valErr.Error())
	case errors.As(err, &encErr):
		BadRequest(c, encErr.Error())
	case errors.As(err, &authErr):
		Unauthorized(c, authErr.Error())
	case errors.As(err, &quotaErr):
		TooManyRequests(c, quotaErr.Error(), gin.H{
			"limit":   quotaErr.Limit,
			"resetAt": quotaErr.ResetAt,
		})
	case errors.As(err, &transportErr):
		BadGateway(c, MsgUpstreamFailure)
	case errors.Is(err, memory.ErrAgentNotFound):
		NotFound(c, MsgAgentNotFound)
	case errors.Is(err, memory.ErrIntentNotFound):
		NotFound(c, "支付意向不存在")
	default:
		InternalError(c, MsgInternalError)
	}
}
