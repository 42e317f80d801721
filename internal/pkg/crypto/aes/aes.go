// secfile/internal/pkg/crypto/aes/aes.go
package aes

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"

	"secfile/internal/core/domain"
)

const (
	GCMNonceSize = 12 // GCM standard nonce size
	KeySize      = 32 // AES-256
)

type AESEncryptor struct {
	keySize int
}

func NewAESEncryptor(keySize int) *AESEncryptor {
	return &AESEncryptor{
		keySize: keySize,
	}
}

func (e *AESEncryptor) Algorithm() domain.Algorithm {
	return domain.AlgorithmAES256GCM
}

func (e *AESEncryptor) KeySize() int {
	return e.keySize
}

func (e *AESEncryptor) NonceSize() int {
	return GCMNonceSize
}

func (e *AESEncryptor) GenerateKey() ([]byte, error) {
	key := make([]byte, e.keySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	return key, nil
}

func (e *AESEncryptor) GenerateIV() ([]byte, error) {
	iv := make([]byte, GCMNonceSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return nil, fmt.Errorf("failed to generate IV: %w", err)
	}
	return iv, nil
}

func (e *AESEncryptor) EncryptChunk(chunk []byte, key []byte, iv []byte, ad []byte) ([]byte, error) {
	gcm, err := e.newGCM(key, iv)
	if err != nil {
		return nil, err
	}

	return gcm.Seal(nil, iv, chunk, ad), nil
}

func (e *AESEncryptor) DecryptChunk(encryptedChunk []byte, key []byte, iv []byte, ad []byte) ([]byte, error) {
	gcm, err := e.newGCM(key, iv)
	if err != nil {
		return nil, err
	}

	plaintext, err := gcm.Open(nil, iv, encryptedChunk, ad)
	if err != nil {
		return nil, fmt.Errorf("failed to open chunk: %w", err)
	}
	return plaintext, nil
}

func (e *AESEncryptor) newGCM(key []byte, iv []byte) (cipher.AEAD, error) {
	if len(key) != e.keySize {
		return nil, fmt.Errorf("invalid key size: expected %d, got %d", e.keySize, len(key))
	}

	if len(iv) != GCMNonceSize {
		return nil, fmt.Errorf("invalid IV size: expected %d, got %d", GCMNonceSize, len(iv))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}
