package mailer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildMessage_PlainText(t *testing.T) {
	raw, err := buildMessage(SendInput{
		From:    "inbox+abc@agent.mail",
		To:      "user@example.com",
		Subject: "hello",
		Body:    "plain body",
	}, "msg-1@agent.mail")
	require.NoError(t, err)

	text := string(raw)
	assert.Contains(t, text, "Subject: hello")
	assert.Contains(t, text, "inbox+abc@agent.mail")
	assert.Contains(t, text, "user@example.com")
	assert.Contains(t, text, "plain body")
	assert.Contains(t, text, "msg-1@agent.mail")
}

func TestBuildMessage_WithHTML(t *testing.T) {
	raw, err := buildMessage(SendInput{
		From:    "inbox+abc@agent.mail",
		To:      "user@example.com",
		Subject: "rich",
		Body:    "text version",
		HTML:    "<p>html version</p>",
	}, "msg-2@agent.mail")
	require.NoError(t, err)

	text := string(raw)
	assert.Contains(t, text, "text version")
	assert.Contains(t, text, "html version")
	// 纯文本与 HTML 两个 part 都应该出现
	assert.True(t, strings.Contains(text, "text/plain"))
	assert.True(t, strings.Contains(text, "text/html"))
}
