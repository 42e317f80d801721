// Package chacha provides the XChaCha20-Poly1305 implementation of
// ports.Encryptor. The 24-byte nonce makes random per-segment nonces safe for
// any number of segments.
package chacha

import (
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"

	"secfile/internal/core/domain"
)

type XChaChaEncryptor struct{}

func NewXChaChaEncryptor() *XChaChaEncryptor {
	return &XChaChaEncryptor{}
}

func (e *XChaChaEncryptor) Algorithm() domain.Algorithm {
	return domain.AlgorithmXChaCha20Poly1305
}

func (e *XChaChaEncryptor) KeySize() int {
	return chacha20poly1305.KeySize
}

func (e *XChaChaEncryptor) NonceSize() int {
	return chacha20poly1305.NonceSizeX
}

func (e *XChaChaEncryptor) GenerateKey() ([]byte, error) {
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	return key, nil
}

func (e *XChaChaEncryptor) GenerateIV() ([]byte, error) {
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate IV: %w", err)
	}
	return nonce, nil
}

func (e *XChaChaEncryptor) EncryptChunk(chunk []byte, key []byte, iv []byte, ad []byte) ([]byte, error) {
	aead, err := newAEAD(key, iv)
	if err != nil {
		return nil, err
	}
	return aead.Seal(nil, iv, chunk, ad), nil
}

func (e *XChaChaEncryptor) DecryptChunk(encryptedChunk []byte, key []byte, iv []byte, ad []byte) ([]byte, error) {
	aead, err := newAEAD(key, iv)
	if err != nil {
		return nil, err
	}

	plaintext, err := aead.Open(nil, iv, encryptedChunk, ad)
	if err != nil {
		return nil, fmt.Errorf("failed to open chunk: %w", err)
	}
	return plaintext, nil
}

func newAEAD(key, iv []byte) (cipher.AEAD, error) {
	if len(iv) != chacha20poly1305.NonceSizeX {
		return nil, fmt.Errorf("invalid IV size: expected %d, got %d", chacha20poly1305.NonceSizeX, len(iv))
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("invalid key size: %w", err)
	}
	return aead, nil
}
