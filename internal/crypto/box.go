// Package crypto 基于 NaCl box（X25519 + XSalsa20-Poly1305）
// 为每个接收方做认证公钥加密。
package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"sync"

	"golang.org/x/crypto/nacl/box"

	"agentmail/backend/internal/domain"
)

const (
	// Algorithm 加密算法标识
	Algorithm = "x25519-xsalsa20-poly1305"

	// PublicKeySize X25519 公钥长度
	PublicKeySize = 32

	// NonceSize NaCl box 随机数长度
	NonceSize = 24
)

// Keypair 一对 NaCl box 密钥。
type Keypair struct {
	Public *[PublicKeySize]byte
	Secret *[PublicKeySize]byte
}

// Service 持有进程生命周期内的服务端密钥对。
//
// 密钥对惰性创建、仅创建一次；密文不跨进程持久化，
// 因此重启轮换密钥不会使任何客户端状态失效——
// 客户端总是随密文一起拿到当前的服务端公钥。
// 测试可通过 NewServiceWithKeypair 注入固定密钥。
type Service struct {
	once   sync.Once
	server *Keypair
	genErr error
}

// NewService 创建加密服务，服务端密钥对在首次使用时生成。
func NewService() *Service {
	return &Service{}
}

// NewServiceWithKeypair 用注入的密钥对创建加密服务（测试用）。
func NewServiceWithKeypair(kp *Keypair) *Service {
	s := &Service{server: kp}
	s.once.Do(func() {})
	return s
}

// ServerKeypair 返回进程级服务端密钥对，首次调用时生成。
func (s *Service) ServerKeypair() (*Keypair, error) {
	s.once.Do(func() {
		pub, sec, err := box.GenerateKey(rand.Reader)
		if err != nil {
			s.genErr = err
			return
		}
		s.server = &Keypair{Public: pub, Secret: sec}
	})
	if s.genErr != nil {
		return nil, fmt.Errorf("generate server keypair: %w", s.genErr)
	}
	return s.server, nil
}

// ServerPublicKey 返回 base64 编码的服务端公钥。
func (s *Service) ServerPublicKey() (string, error) {
	kp, err := s.ServerKeypair()
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(kp.Public[:]), nil
}

// EncryptFor 用接收方公钥加密明文。
//
// 每次调用生成全新的 24 字节随机 nonce——同一密钥对下复用 nonce
// 是灾难性的保密性失效，绝不允许发生。
// 返回密文、nonce 与当前服务端公钥，均为 base64 文本。
func (s *Service) EncryptFor(plaintext []byte, recipientPublicKeyB64 string) (*domain.EncryptedPayload, error) {
	recipientKey, err := decodePublicKey(recipientPublicKeyB64)
	if err != nil {
		return nil, err
	}

	kp, err := s.ServerKeypair()
	if err != nil {
		return nil, err
	}

	var nonce [NonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	ciphertext := box.Seal(nil, plaintext, &nonce, recipientKey, kp.Secret)

	return &domain.EncryptedPayload{
		Ciphertext:      base64.StdEncoding.EncodeToString(ciphertext),
		Nonce:           base64.StdEncoding.EncodeToString(nonce[:]),
		ServerPublicKey: base64.StdEncoding.EncodeToString(kp.Public[:]),
	}, nil
}

// Decrypt 用接收方私钥还原 EncryptFor 产出的载荷。
//
// 服务端自身不会调用；提供给客户端 SDK 与测试验证往返一致性。
// 密文被篡改或私钥不匹配时返回确定的失败，不会产出垃圾数据。
func Decrypt(payload *domain.EncryptedPayload, recipientSecretKeyB64 string) ([]byte, error) {
	secretRaw, err := base64.StdEncoding.DecodeString(recipientSecretKeyB64)
	if err != nil || len(secretRaw) != PublicKeySize {
		return nil, &domain.EncryptionError{Reason: "malformed secret key"}
	}
	var secret [PublicKeySize]byte
	copy(secret[:], secretRaw)

	serverKey, err := decodePublicKey(payload.ServerPublicKey)
	if err != nil {
		return nil, err
	}

	nonceRaw, err := base64.StdEncoding.DecodeString(payload.Nonce)
	if err != nil || len(nonceRaw) != NonceSize {
		return nil, &domain.EncryptionError{Reason: "malformed nonce"}
	}
	var nonce [NonceSize]byte
	copy(nonce[:], nonceRaw)

	ciphertext, err := base64.StdEncoding.DecodeString(payload.Ciphertext)
	if err != nil {
		return nil, &domain.EncryptionError{Reason: "malformed ciphertext"}
	}

	plaintext, ok := box.Open(nil, ciphertext, &nonce, serverKey, &secret)
	if !ok {
		return nil, &domain.EncryptionError{Reason: "decryption failed"}
	}
	return plaintext, nil
}

// GenerateKeypair 生成一对客户端密钥，base64 编码返回。
//
// 私钥只返回这一次，服务端绝不持久化。
func GenerateKeypair() (publicB64, secretB64 string, err error) {
	pub, sec, err := box.GenerateKey(rand.Reader)
	if err != nil {
		return "", "", fmt.Errorf("generate keypair: %w", err)
	}
	return base64.StdEncoding.EncodeToString(pub[:]),
		base64.StdEncoding.EncodeToString(sec[:]), nil
}

// ValidatePublicKey 校验 base64 公钥：解码成功且恰为 32 字节才有效。
func ValidatePublicKey(keyB64 string) bool {
	raw, err := base64.StdEncoding.DecodeString(keyB64)
	return err == nil && len(raw) == PublicKeySize
}

// decodePublicKey 解码 base64 公钥，长度不符返回 EncryptionError。
func decodePublicKey(keyB64 string) (*[PublicKeySize]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(keyB64)
	if err != nil {
		return nil, &domain.EncryptionError{Reason: "public key is not valid base64"}
	}
	if len(raw) != PublicKeySize {
		return nil, &domain.EncryptionError{
			Reason: fmt.Sprintf("public key must be %d bytes, got %d", PublicKeySize, len(raw)),
		}
	}
	var key [PublicKeySize]byte
	copy(key[:], raw)
	return &key, nil
}
