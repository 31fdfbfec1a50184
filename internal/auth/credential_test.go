package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-at-least-32-chars!!"

func TestManager_IssueAndParse(t *testing.T) {
	m := NewManager(testSecret, "agentmail")

	credential, err := m.Issue("agent-1", "owner-1")
	require.NoError(t, err)
	require.NotEmpty(t, credential)

	claims, err := m.Parse(credential)
	require.NoError(t, err)
	assert.Equal(t, "agent-1", claims.AgentID)
	assert.Equal(t, "owner-1", claims.OwnerID)
	assert.Equal(t, "agentmail", claims.Issuer)
}

func TestManager_CredentialsAreUnique(t *testing.T) {
	m := NewManager(testSecret, "agentmail")

	first, err := m.Issue("agent-1", "owner-1")
	require.NoError(t, err)
	second, err := m.Issue("agent-1", "owner-1")
	require.NoError(t, err)

	// jti 随机，同一代理两次签发也不相同
	assert.NotEqual(t, first, second)
}

func TestManager_ParseRejectsTampered(t *testing.T) {
	m := NewManager(testSecret, "agentmail")

	credential, err := m.Issue("agent-1", "owner-1")
	require.NoError(t, err)

	_, err = m.Parse(credential + "x")
	assert.ErrorIs(t, err, ErrInvalidCredential)

	_, err = m.Parse("not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidCredential)
}

func TestManager_ParseRejectsWrongSecret(t *testing.T) {
	issuer := NewManager(testSecret, "agentmail")
	other := NewManager("another-secret-key-32-characters!!!", "agentmail")

	credential, err := issuer.Issue("agent-1", "owner-1")
	require.NoError(t, err)

	_, err = other.Parse(credential)
	assert.ErrorIs(t, err, ErrInvalidCredential)
}
