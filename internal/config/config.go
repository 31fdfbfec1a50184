package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ServerConfig 定义 HTTP 服务器的监听配置参数
type ServerConfig struct {
	Host string // 监听地址，默认 "0.0.0.0"
	Port int    // 监听端口，默认 8080
}

// AgentConfig 定义代理邮箱的核心业务配置
type AgentConfig struct {
	MailDomain     string        // 共享邮箱域名，如 "agent.mail"
	LocalPart      string        // 共享邮箱本地部分，代理地址为 <local>+<suffix>@<domain>
	PollInterval   time.Duration // 摄取轮询间隔，默认 30s
	FetchWindow    int           // 每轮抓取的最近邮件数上限，默认 50
	DailySendLimit int           // 每代理每日发信上限，默认 10
	DispatchRate   int           // 出站推送速率上限（每秒请求数）
	PollWorkers    int           // 代理扇出的并发上限
}

// MailConfig 定义共享邮箱的收发传输配置
type MailConfig struct {
	IMAPHost string // IMAP 服务器地址
	IMAPPort int    // IMAP 端口，默认 993
	IMAPTLS  bool   // true 走 TLS 直连，false 走 STARTTLS
	SMTPAddr string // SMTP 服务器地址，格式 "host:port"
	SMTPHelo string // SMTP HELO 域名
	Username string // 共享邮箱账号
	Password string // 共享邮箱密码
	Mailbox  string // 抓取的邮箱名，默认 "INBOX"
}

// CORSConfig 定义跨域资源共享 (CORS) 配置
type CORSConfig struct {
	AllowedOrigins []string // 允许的来源列表，"*" 表示允许所有来源
}

// LogConfig 定义日志系统配置
type LogConfig struct {
	Level       string // 日志级别: debug, info, warn, error
	Development bool   // 开发模式: 启用彩色输出和详细堆栈信息
	File        string // 日志文件路径，为空时只写标准输出
}

// DatabaseConfig 定义数据库连接配置（支持 MySQL 和 PostgreSQL）
type DatabaseConfig struct {
	Type            string        // 数据库类型: "mysql" 或 "postgres"，为空使用内存存储
	DSN             string        // 数据库连接字符串
	MaxOpenConns    int           // 最大打开连接数，默认 25
	MaxIdleConns    int           // 最大空闲连接数，默认 5
	ConnMaxLifetime time.Duration // 连接最大生命周期，默认 5 分钟
}

// RedisConfig 定义 Redis 缓存服务配置
type RedisConfig struct {
	Enabled  bool   // 是否启用认证缓存
	Address  string // Redis 服务地址，格式 "host:port"，默认 "localhost:6379"
	Password string // Redis 认证密码，留空表示无密码
	DB       int    // Redis 数据库编号，默认 0
}

// JWTConfig 定义代理访问凭证的签发配置
type JWTConfig struct {
	Secret string // 签名密钥，必须至少 32 字符
	Issuer string // 签发者标识，默认 "agentmail"
}

// PaymentConfig 定义外部验证协作方配置
type PaymentConfig struct {
	IdentityURL string // 代理身份验证服务地址
	ChainURL    string // 链上支付验证服务地址
	Currency    string // 计价货币，默认 "USDT"
	PriceBasic  int64  // 基础邮箱价格（最小货币单位）
	PricePro    int64  // 高级邮箱价格（最小货币单位）
}

// Config 是系统核心配置的根结构体，包含所有子系统的配置
type Config struct {
	Server   ServerConfig   // HTTP 服务器配置
	Agent    AgentConfig    // 代理邮箱业务配置
	Mail     MailConfig     // 共享邮箱传输配置
	CORS     CORSConfig     // 跨域配置
	Log      LogConfig      // 日志配置
	Database DatabaseConfig // 数据库配置
	Redis    RedisConfig    // Redis 配置
	JWT      JWTConfig      // 凭证签发配置
	Payment  PaymentConfig  // 外部验证协作方配置
}

// Load 从环境变量和 .env 文件加载系统配置
//
// 配置加载优先级（从高到低）：
//  1. 系统环境变量（最高优先级）
//  2. .env 文件（如果存在）
//  3. 默认值
//
// 环境变量前缀: AGENTMAIL_
// 例如: AGENTMAIL_SERVER_HOST, AGENTMAIL_JWT_SECRET
func Load() (*Config, error) {
	// 尝试加载 .env 文件（静默失败，因为 .env 文件是可选的）
	loadEnvFile()

	viper.SetEnvPrefix("agentmail")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("agent.mail_domain", "agent.mail")
	viper.SetDefault("agent.local_part", "inbox")
	viper.SetDefault("agent.poll_interval", "30s")
	viper.SetDefault("agent.fetch_window", 50)
	viper.SetDefault("agent.daily_send_limit", 10)
	viper.SetDefault("agent.dispatch_rate", 50)
	viper.SetDefault("agent.poll_workers", 8)
	viper.SetDefault("mail.imap_host", "")
	viper.SetDefault("mail.imap_port", 993)
	viper.SetDefault("mail.imap_tls", true)
	viper.SetDefault("mail.smtp_addr", "")
	viper.SetDefault("mail.smtp_helo", "agent.mail")
	viper.SetDefault("mail.username", "")
	viper.SetDefault("mail.password", "")
	viper.SetDefault("mail.mailbox", "INBOX")
	viper.SetDefault("cors.allowed_origins", "*")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.development", false)
	viper.SetDefault("log.file", "")
	viper.SetDefault("database.type", "") // 默认为空，使用内存存储
	viper.SetDefault("database.dsn", "")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", "5m")
	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.address", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("jwt.secret", "change-me-in-production")
	viper.SetDefault("jwt.issuer", "agentmail")
	viper.SetDefault("payment.identity_url", "")
	viper.SetDefault("payment.chain_url", "")
	viper.SetDefault("payment.currency", "USDT")
	viper.SetDefault("payment.price_basic", 1_000_000)
	viper.SetDefault("payment.price_pro", 5_000_000)

	pollInterval, err := time.ParseDuration(viper.GetString("agent.poll_interval"))
	if err != nil {
		return nil, fmt.Errorf("invalid agent.poll_interval: %w", err)
	}

	mailDomain := strings.ToLower(strings.TrimSpace(viper.GetString("agent.mail_domain")))
	if mailDomain == "" {
		return nil, fmt.Errorf("agent.mail_domain must not be empty")
	}

	fetchWindow := viper.GetInt("agent.fetch_window")
	if fetchWindow <= 0 {
		fetchWindow = 50
	}

	sendLimit := viper.GetInt("agent.daily_send_limit")
	if sendLimit <= 0 {
		sendLimit = 10
	}

	corsOrigins := parseList(viper.GetString("cors.allowed_origins"))
	if len(corsOrigins) == 0 {
		corsOrigins = []string{"*"}
	}

	connMaxLifetime, err := time.ParseDuration(viper.GetString("database.conn_max_lifetime"))
	if err != nil {
		connMaxLifetime = 5 * time.Minute
	}

	jwtSecret := viper.GetString("jwt.secret")

	// 安全检查：禁止使用默认的签名密钥
	if jwtSecret == "change-me-in-production" {
		return nil, fmt.Errorf("SECURITY ERROR: JWT secret cannot be the default value. Please set AGENTMAIL_JWT_SECRET environment variable")
	}

	// 签名密钥必须至少 32 字符
	if len(jwtSecret) < 32 {
		return nil, fmt.Errorf("SECURITY ERROR: JWT secret must be at least 32 characters long")
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: viper.GetString("server.host"),
			Port: viper.GetInt("server.port"),
		},
		Agent: AgentConfig{
			MailDomain:     mailDomain,
			LocalPart:      strings.ToLower(strings.TrimSpace(viper.GetString("agent.local_part"))),
			PollInterval:   pollInterval,
			FetchWindow:    fetchWindow,
			DailySendLimit: sendLimit,
			DispatchRate:   viper.GetInt("agent.dispatch_rate"),
			PollWorkers:    viper.GetInt("agent.poll_workers"),
		},
		Mail: MailConfig{
			IMAPHost: viper.GetString("mail.imap_host"),
			IMAPPort: viper.GetInt("mail.imap_port"),
			IMAPTLS:  viper.GetBool("mail.imap_tls"),
			SMTPAddr: viper.GetString("mail.smtp_addr"),
			SMTPHelo: viper.GetString("mail.smtp_helo"),
			Username: viper.GetString("mail.username"),
			Password: viper.GetString("mail.password"),
			Mailbox:  viper.GetString("mail.mailbox"),
		},
		CORS: CORSConfig{
			AllowedOrigins: corsOrigins,
		},
		Log: LogConfig{
			Level:       viper.GetString("log.level"),
			Development: viper.GetBool("log.development"),
			File:        viper.GetString("log.file"),
		},
		Database: DatabaseConfig{
			Type:            viper.GetString("database.type"),
			DSN:             viper.GetString("database.dsn"),
			MaxOpenConns:    viper.GetInt("database.max_open_conns"),
			MaxIdleConns:    viper.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: connMaxLifetime,
		},
		Redis: RedisConfig{
			Enabled:  viper.GetBool("redis.enabled"),
			Address:  viper.GetString("redis.address"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		JWT: JWTConfig{
			Secret: jwtSecret,
			Issuer: viper.GetString("jwt.issuer"),
		},
		Payment: PaymentConfig{
			IdentityURL: viper.GetString("payment.identity_url"),
			ChainURL:    viper.GetString("payment.chain_url"),
			Currency:    viper.GetString("payment.currency"),
			PriceBasic:  viper.GetInt64("payment.price_basic"),
			PricePro:    viper.GetInt64("payment.price_pro"),
		},
	}

	return cfg, nil
}

// parseList 将逗号分隔的字符串解析为字符串切片
func parseList(value string) []string {
	parts := strings.Split(value, ",")
	items := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}

// loadEnvFile 尝试加载 .env 文件
//
// 加载顺序：
//  1. 当前目录的 .env
//  2. 父目录的 .env（用于从 backend/ 子目录运行的情况）
//
// 注意：
//   - 如果文件不存在，静默失败（.env 是可选的）
//   - 环境变量不会被覆盖（已存在的环境变量优先级更高）
func loadEnvFile() {
	// 尝试当前目录的 .env
	if err := godotenv.Load(".env"); err == nil {
		return
	}

	// 尝试父目录的 .env（从 backend/ 目录运行时）
	parentEnv := filepath.Join("..", ".env")
	if _, err := os.Stat(parentEnv); err == nil {
		_ = godotenv.Load(parentEnv)
	}
}
