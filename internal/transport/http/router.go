package httptransport

import (
	"time"

	gincors "github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"agentmail/backend/internal/config"
	"agentmail/backend/internal/middleware"
	"agentmail/backend/internal/monitoring"
	"agentmail/backend/internal/service"
)

// Handler 聚合所有 HTTP 处理逻辑。
type Handler struct {
	agents     *service.AgentService
	messages   *service.MessageService
	send       *service.SendService
	payments   *service.PaymentService
	dispatcher *service.DispatcherService
	metrics    *monitoring.Metrics
}

// RouterDependencies 路由器依赖项
type RouterDependencies struct {
	Config            *config.Config
	AgentService      *service.AgentService
	MessageService    *service.MessageService
	SendService       *service.SendService
	PaymentService    *service.PaymentService
	DispatcherService *service.DispatcherService
	Metrics           *monitoring.Metrics
	Logger            *zap.Logger
}

// NewRouter 创建并返回 Gin 路由实例。
func NewRouter(deps RouterDependencies) *gin.Engine {
	router := gin.New()

	mm := middleware.NewMonitoringMiddleware(deps.Metrics, deps.Logger)

	router.Use(mm.PanicRecovery())
	router.Use(middleware.RequestLogger(deps.Logger))
	router.Use(middleware.SecurityHeaders())
	router.Use(mm.HTTPMetrics())
	router.Use(middleware.BodySizeLimit(middleware.SendBodyLimit))

	// CORS 配置
	corsConfig := gincors.Config{
		AllowOrigins:     deps.Config.CORS.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Agent-Token"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}

	// 如果允许所有来源，则需清空凭证支持。
	for _, origin := range corsConfig.AllowOrigins {
		if origin == "*" {
			corsConfig.AllowCredentials = false
			break
		}
	}
	router.Use(gincors.New(corsConfig))

	handler := &Handler{
		agents:     deps.AgentService,
		messages:   deps.MessageService,
		send:       deps.SendService,
		payments:   deps.PaymentService,
		dispatcher: deps.DispatcherService,
		metrics:    deps.Metrics,
	}

	agentAuth := middleware.AgentAuth(deps.AgentService)

	// Prometheus 指标
	router.GET("/metrics", gin.WrapH(deps.Metrics.HTTPHandler()))

	// V1 API
	v1 := router.Group("/v1")
	{
		// ========== Public Routes（无需认证的公开API） ==========
		v1.POST("/agents", handler.registerAgent)

		paymentRoutes := v1.Group("/payments")
		{
			paymentRoutes.POST("", handler.createPaymentIntent)
			paymentRoutes.POST("/:reference/verify", handler.verifyPaymentIntent)
		}

		// ========== Agent Routes（需要代理凭证） ==========
		agentRoutes := v1.Group("/agent")
		agentRoutes.Use(agentAuth)
		{
			agentRoutes.GET("", handler.getAgent)

			agentRoutes.PUT("/webhook", handler.setWebhook)
			agentRoutes.DELETE("/webhook", handler.deleteWebhook)
			agentRoutes.POST("/webhook/test", handler.testWebhook)

			agentRoutes.PUT("/key", handler.setPublicKey)
			agentRoutes.DELETE("/key", handler.deletePublicKey)

			agentRoutes.GET("/messages", handler.listMessages)
			agentRoutes.POST("/messages", handler.sendMessage)
		}
	}

	return router
}
