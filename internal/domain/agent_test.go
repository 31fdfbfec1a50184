package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAddressSuffix_Deterministic(t *testing.T) {
	a := AddressSuffix("owner-123")
	b := AddressSuffix("owner-123")

	assert.Equal(t, a, b, "同一所有者必须得到同一后缀")
	assert.Len(t, a, 10)
}

func TestAddressSuffix_DistinctOwners(t *testing.T) {
	assert.NotEqual(t, AddressSuffix("owner-a"), AddressSuffix("owner-b"))
}

func TestAddressSuffix_NormalizesCase(t *testing.T) {
	// 所有者标识大小写不影响派生结果
	assert.Equal(t, AddressSuffix("Owner-X"), AddressSuffix("owner-x"))
}

func TestDeriveAddress(t *testing.T) {
	addr := DeriveAddress("owner-123", "inbox", "agent.mail")

	assert.Contains(t, addr, "inbox+")
	assert.Contains(t, addr, "@agent.mail")
	assert.Equal(t, addr, DeriveAddress("owner-123", "inbox", "agent.mail"))
}

func TestMatchesAgent_CaseInsensitiveExact(t *testing.T) {
	agentAddr := "inbox+abc123@agent.mail"

	assert.True(t, MatchesAgent(agentAddr, "INBOX+ABC123@AGENT.MAIL"))
	assert.True(t, MatchesAgent(agentAddr, " inbox+abc123@agent.mail "))
	assert.False(t, MatchesAgent(agentAddr, "inbox+def456@agent.mail"))
	assert.False(t, MatchesAgent(agentAddr, "inbox+abc123x@agent.mail"))
	assert.False(t, MatchesAgent(agentAddr, ""))
}

func TestValidateWebhookURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"https 地址", "https://hooks.example.com/agent", false},
		{"http 地址", "http://hooks.example.com/agent", false},
		{"空地址", "", true},
		{"非法协议", "ftp://example.com/x", true},
		{"缺少 host", "https://", true},
		{"localhost", "http://localhost:8080/hook", true},
		{"环回地址", "http://127.0.0.1/hook", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateWebhookURL(tt.url)
			if tt.wantErr {
				assert.Error(t, err)
				var ve *ValidationError
				assert.ErrorAs(t, err, &ve)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestAgent_Flags(t *testing.T) {
	agent := &Agent{}
	assert.False(t, agent.HasWebhook())
	assert.False(t, agent.WantsEncryption())

	url := "https://hooks.example.com/a"
	key := "ZGVhZGJlZWY="
	agent.WebhookURL = &url
	agent.PublicKey = &key

	assert.True(t, agent.HasWebhook())
	assert.True(t, agent.WantsEncryption())
}
