package crypto

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentmail/backend/internal/domain"
)

func TestEncryptFor_RoundTrip(t *testing.T) {
	svc := NewService()

	pub, sec, err := GenerateKeypair()
	require.NoError(t, err)

	plaintext := []byte("your verification code is 482913")
	payload, err := svc.EncryptFor(plaintext, pub)
	require.NoError(t, err)

	assert.NotEmpty(t, payload.Ciphertext)
	assert.NotEmpty(t, payload.Nonce)
	assert.NotEmpty(t, payload.ServerPublicKey)

	recovered, err := Decrypt(payload, sec)
	require.NoError(t, err)
	assert.Equal(t, plaintext, recovered)
}

func TestEncryptFor_WrongSecretKeyFails(t *testing.T) {
	svc := NewService()

	pub, _, err := GenerateKeypair()
	require.NoError(t, err)
	_, otherSec, err := GenerateKeypair()
	require.NoError(t, err)

	payload, err := svc.EncryptFor([]byte("secret"), pub)
	require.NoError(t, err)

	// 错误的私钥必须得到确定的失败，而不是误判成功的垃圾数据
	recovered, err := Decrypt(payload, otherSec)
	assert.Error(t, err)
	assert.Nil(t, recovered)

	var ee *domain.EncryptionError
	assert.ErrorAs(t, err, &ee)
}

func TestEncryptFor_FreshNoncePerCall(t *testing.T) {
	svc := NewService()

	pub, _, err := GenerateKeypair()
	require.NoError(t, err)

	first, err := svc.EncryptFor([]byte("same plaintext"), pub)
	require.NoError(t, err)
	second, err := svc.EncryptFor([]byte("same plaintext"), pub)
	require.NoError(t, err)

	assert.NotEqual(t, first.Nonce, second.Nonce)
	assert.NotEqual(t, first.Ciphertext, second.Ciphertext)
}

func TestEncryptFor_BadRecipientKey(t *testing.T) {
	svc := NewService()

	// 非 base64
	_, err := svc.EncryptFor([]byte("x"), "not base64!!!")
	var ee *domain.EncryptionError
	assert.ErrorAs(t, err, &ee)

	// 长度错误（16 字节）
	short := base64.StdEncoding.EncodeToString(make([]byte, 16))
	_, err = svc.EncryptFor([]byte("x"), short)
	assert.ErrorAs(t, err, &ee)
}

func TestServerKeypair_Memoized(t *testing.T) {
	svc := NewService()

	first, err := svc.ServerKeypair()
	require.NoError(t, err)
	second, err := svc.ServerKeypair()
	require.NoError(t, err)

	assert.Same(t, first, second, "进程内的服务端密钥对只生成一次")
}

func TestNewServiceWithKeypair_Injected(t *testing.T) {
	pubB64, secB64, err := GenerateKeypair()
	require.NoError(t, err)

	pubRaw, _ := base64.StdEncoding.DecodeString(pubB64)
	secRaw, _ := base64.StdEncoding.DecodeString(secB64)
	var pub, sec [PublicKeySize]byte
	copy(pub[:], pubRaw)
	copy(sec[:], secRaw)

	svc := NewServiceWithKeypair(&Keypair{Public: &pub, Secret: &sec})

	serverPub, err := svc.ServerPublicKey()
	require.NoError(t, err)
	assert.Equal(t, pubB64, serverPub)
}

func TestValidatePublicKey(t *testing.T) {
	pub, _, err := GenerateKeypair()
	require.NoError(t, err)

	assert.True(t, ValidatePublicKey(pub))
	assert.False(t, ValidatePublicKey("@@@not-base64@@@"))
	assert.False(t, ValidatePublicKey(base64.StdEncoding.EncodeToString(make([]byte, 16))))
	assert.False(t, ValidatePublicKey(base64.StdEncoding.EncodeToString(make([]byte, 33))))
	assert.False(t, ValidatePublicKey(""))
	assert.True(t, ValidatePublicKey(base64.StdEncoding.EncodeToString(make([]byte, 32))))
}
