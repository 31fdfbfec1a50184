package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad(t *testing.T) {
	// 保存原始环境变量
	originalEnvs := make(map[string]string)
	envKeys := []string{
		"AGENTMAIL_JWT_SECRET",
		"AGENTMAIL_SERVER_HOST",
		"AGENTMAIL_SERVER_PORT",
		"AGENTMAIL_AGENT_MAIL_DOMAIN",
		"AGENTMAIL_AGENT_POLL_INTERVAL",
		"AGENTMAIL_AGENT_DAILY_SEND_LIMIT",
		"AGENTMAIL_MAIL_IMAP_HOST",
		"AGENTMAIL_LOG_LEVEL",
		"AGENTMAIL_LOG_DEVELOPMENT",
	}

	for _, key := range envKeys {
		originalEnvs[key] = os.Getenv(key)
	}

	// 测试后恢复环境变量
	defer func() {
		for key, value := range originalEnvs {
			if value == "" {
				os.Unsetenv(key)
			} else {
				os.Setenv(key, value)
			}
		}
	}()

	t.Run("加载默认配置成功", func(t *testing.T) {
		for _, key := range envKeys {
			os.Unsetenv(key)
		}

		// 设置必需的签名密钥
		os.Setenv("AGENTMAIL_JWT_SECRET", "test-secret-key-for-development-32-chars-long-at-least")

		cfg, err := Load()

		assert.NoError(t, err)
		assert.NotNil(t, cfg)

		// 验证默认值
		assert.Equal(t, "0.0.0.0", cfg.Server.Host)
		assert.Equal(t, 8080, cfg.Server.Port)
		assert.Equal(t, "agent.mail", cfg.Agent.MailDomain)
		assert.Equal(t, "inbox", cfg.Agent.LocalPart)
		assert.Equal(t, 30*time.Second, cfg.Agent.PollInterval)
		assert.Equal(t, 50, cfg.Agent.FetchWindow)
		assert.Equal(t, 10, cfg.Agent.DailySendLimit)
		assert.Equal(t, "INBOX", cfg.Mail.Mailbox)
		assert.Equal(t, []string{"*"}, cfg.CORS.AllowedOrigins)
		assert.Equal(t, "info", cfg.Log.Level)
	})

	t.Run("环境变量覆盖默认值", func(t *testing.T) {
		for _, key := range envKeys {
			os.Unsetenv(key)
		}

		os.Setenv("AGENTMAIL_JWT_SECRET", "test-secret-key-for-development-32-chars-long-at-least")
		os.Setenv("AGENTMAIL_SERVER_PORT", "9090")
		os.Setenv("AGENTMAIL_AGENT_MAIL_DOMAIN", "Mail.Example.COM")
		os.Setenv("AGENTMAIL_AGENT_POLL_INTERVAL", "10s")
		os.Setenv("AGENTMAIL_AGENT_DAILY_SEND_LIMIT", "5")

		cfg, err := Load()

		assert.NoError(t, err)
		assert.Equal(t, 9090, cfg.Server.Port)
		assert.Equal(t, "mail.example.com", cfg.Agent.MailDomain, "域名统一转小写")
		assert.Equal(t, 10*time.Second, cfg.Agent.PollInterval)
		assert.Equal(t, 5, cfg.Agent.DailySendLimit)
	})

	t.Run("缺少JWT密钥时失败", func(t *testing.T) {
		for _, key := range envKeys {
			os.Unsetenv(key)
		}

		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("JWT密钥过短时失败", func(t *testing.T) {
		for _, key := range envKeys {
			os.Unsetenv(key)
		}
		os.Setenv("AGENTMAIL_JWT_SECRET", "too-short")

		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("无效轮询间隔时失败", func(t *testing.T) {
		for _, key := range envKeys {
			os.Unsetenv(key)
		}
		os.Setenv("AGENTMAIL_JWT_SECRET", "test-secret-key-for-development-32-chars-long-at-least")
		os.Setenv("AGENTMAIL_AGENT_POLL_INTERVAL", "not-a-duration")

		_, err := Load()
		assert.Error(t, err)
	})
}

func TestParseList(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, parseList("a, b"))
	assert.Equal(t, []string{"a"}, parseList("a,,"))
	assert.Empty(t, parseList("  "))
}
