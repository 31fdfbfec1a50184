package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"agentmail/backend/internal/auth"
	"agentmail/backend/internal/config"
	"agentmail/backend/internal/crypto"
	"agentmail/backend/internal/domain"
	"agentmail/backend/internal/health"
	"agentmail/backend/internal/logger"
	"agentmail/backend/internal/mailer"
	"agentmail/backend/internal/monitoring"
	"agentmail/backend/internal/pool"
	"agentmail/backend/internal/service"
	"agentmail/backend/internal/storage"
	"agentmail/backend/internal/storage/memory"
	"agentmail/backend/internal/storage/redis"
	sqlstore "agentmail/backend/internal/storage/sql"
	httptransport "agentmail/backend/internal/transport/http"
	"agentmail/backend/internal/verify"
)

// main 启动 HTTP API 与邮件摄取轮询器。
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	// 设置 Gin 模式（基于开发环境标志）
	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	// 初始化日志系统
	log, err := logger.NewLogger(logger.Config{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development,
		LogFile:     cfg.Log.File,
		Compress:    true,
	})
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	log.Info("starting agentmail server",
		zap.String("log_level", cfg.Log.Level),
		zap.Bool("development", cfg.Log.Development),
	)

	// 初始化存储层
	var store storage.Store
	if cfg.Database.Type != "" && cfg.Database.DSN != "" {
		store, err = sqlstore.NewStore(
			cfg.Database.Type,
			cfg.Database.DSN,
			cfg.Database.MaxOpenConns,
			cfg.Database.MaxIdleConns,
			cfg.Database.ConnMaxLifetime,
		)
		if err != nil {
			panic(fmt.Sprintf("failed to initialize database storage: %v", err))
		}
		log.Info("using database storage", zap.String("type", cfg.Database.Type))
	} else {
		store = memory.NewStore()
		log.Info("using memory storage (development mode)")
	}
	defer store.Close()

	// 可选的 Redis 认证缓存
	var (
		redisClient *redis.Client
		agentCache  *redis.Cache
	)
	if cfg.Redis.Enabled {
		redisClient, err = redis.New(&cfg.Redis, log)
		if err != nil {
			panic(fmt.Sprintf("failed to connect to redis: %v", err))
		}
		defer redisClient.Close()
		agentCache = redis.NewCache(redisClient, 10*time.Minute)
	}

	// 初始化监控与健康检查
	metrics := monitoring.NewMetrics()
	healthChecker := health.NewHealthChecker(store, redisClient, log)

	// 邮件传输协作方
	fetcher := mailer.NewIMAPFetcher(
		cfg.Mail.IMAPHost,
		strconv.Itoa(cfg.Mail.IMAPPort),
		cfg.Mail.Username,
		cfg.Mail.Password,
		cfg.Mail.IMAPTLS,
		log,
	)
	sender := mailer.NewSMTPSender(cfg.Mail.SMTPAddr, cfg.Mail.Username, cfg.Mail.Password, cfg.Mail.SMTPHelo)

	// 外部验证协作方
	identity := verify.NewHTTPIdentity(cfg.Payment.IdentityURL)
	chain := verify.NewHTTPChain(cfg.Payment.ChainURL)

	// 推送协程池
	workers := pool.NewWorkerPool(cfg.Agent.PollWorkers, 256, log)

	// 初始化服务层
	cryptoSvc := crypto.NewService()
	credManager := auth.NewManager(cfg.JWT.Secret, cfg.JWT.Issuer)

	agentService := service.NewAgentService(
		store, identity, credManager, cryptoSvc, agentCache, log,
		cfg.Agent.LocalPart, cfg.Agent.MailDomain,
	)
	quotaService := service.NewQuotaService(store, cfg.Agent.DailySendLimit)
	sendService := service.NewSendService(store, sender, quotaService, metrics, log)
	messageService := service.NewMessageService(store, fetcher, log, cfg.Mail.Mailbox, cfg.Agent.FetchWindow)
	paymentService := service.NewPaymentService(store, chain, log, map[domain.PaymentProduct]int64{
		domain.ProductMailboxBasic: cfg.Payment.PriceBasic,
		domain.ProductMailboxPro:   cfg.Payment.PricePro,
	}, cfg.Payment.Currency)
	dispatcher := service.NewDispatcherService(workers, metrics, log, cfg.Agent.DispatchRate)
	poller := service.NewPollerService(store, fetcher, dispatcher, cryptoSvc, metrics, log, service.PollerOptions{
		Mailbox:     cfg.Mail.Mailbox,
		FetchWindow: cfg.Agent.FetchWindow,
		Interval:    cfg.Agent.PollInterval,
		Concurrency: cfg.Agent.PollWorkers,
	})

	// 创建 HTTP 服务器
	httpAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	router := httptransport.NewRouter(httptransport.RouterDependencies{
		Config:            cfg,
		AgentService:      agentService,
		MessageService:    messageService,
		SendService:       sendService,
		PaymentService:    paymentService,
		DispatcherService: dispatcher,
		Metrics:           metrics,
		Logger:            log,
	})

	// 健康检查处理器（用于 Kubernetes 等）
	router.GET("/health/live", gin.WrapH(healthChecker.Handler()))
	router.GET("/health/ready", gin.WrapH(healthChecker.Handler()))

	httpServer := &http.Server{
		Addr:              httpAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// 信号处理
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	workers.Start(ctx)

	group, groupCtx := errgroup.WithContext(ctx)

	// HTTP 服务器 goroutine
	group.Go(func() error {
		log.Info("starting HTTP server", zap.String("address", httpAddr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error", zap.Error(err))
			return err
		}
		return nil
	})

	// 邮件摄取轮询 goroutine
	group.Go(func() error {
		return poller.Run(groupCtx)
	})

	// 优雅关闭 goroutine
	group.Go(func() error {
		<-groupCtx.Done()
		log.Info("shutdown signal received, gracefully shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error("HTTP server shutdown error", zap.Error(err))
		}

		// 在途推送不等待完成，语义上允许丢失单次投递
		workers.Stop()

		log.Info("servers stopped")
		return nil
	})

	if err := group.Wait(); err != nil && err != context.Canceled {
		log.Fatal("server error", zap.Error(err))
	}

	log.Info("server exited cleanly")
}
