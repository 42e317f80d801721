package mocks

import (
	"bytes"

	"secfile/internal/core/domain"
)

// MockEncryptor is a pass-through ports.Encryptor whose behaviour can be
// overridden per test.
type MockEncryptor struct {
	AlgorithmFunc    func() domain.Algorithm
	GenerateKeyFunc  func() ([]byte, error)
	GenerateIVFunc   func() ([]byte, error)
	EncryptChunkFunc func(chunk []byte, key []byte, iv []byte, ad []byte) ([]byte, error)
	DecryptChunkFunc func(encryptedChunk []byte, key []byte, iv []byte, ad []byte) ([]byte, error)
}

func NewMockEncryptor() *MockEncryptor {
	return &MockEncryptor{
		AlgorithmFunc: func() domain.Algorithm {
			return domain.AlgorithmAES256GCM
		},
		GenerateKeyFunc: func() ([]byte, error) {
			return bytes.Repeat([]byte{1}, 32), nil
		},
		GenerateIVFunc: func() ([]byte, error) {
			return bytes.Repeat([]byte{2}, 12), nil
		},
		EncryptChunkFunc: func(chunk []byte, key []byte, iv []byte, ad []byte) ([]byte, error) {
			return bytes.Clone(chunk), nil
		},
		DecryptChunkFunc: func(encryptedChunk []byte, key []byte, iv []byte, ad []byte) ([]byte, error) {
			return bytes.Clone(encryptedChunk), nil
		},
	}
}

func (m *MockEncryptor) Algorithm() domain.Algorithm {
	return m.AlgorithmFunc()
}

func (m *MockEncryptor) KeySize() int {
	return 32
}

func (m *MockEncryptor) NonceSize() int {
	return 12
}

func (m *MockEncryptor) GenerateKey() ([]byte, error) {
	return m.GenerateKeyFunc()
}

func (m *MockEncryptor) GenerateIV() ([]byte, error) {
	return m.GenerateIVFunc()
}

func (m *MockEncryptor) EncryptChunk(chunk []byte, key []byte, iv []byte, ad []byte) ([]byte, error) {
	return m.EncryptChunkFunc(chunk, key, iv, ad)
}

func (m *MockEncryptor) DecryptChunk(encryptedChunk []byte, key []byte, iv []byte, ad []byte) ([]byte, error) {
	return m.DecryptChunkFunc(encryptedChunk, key, iv, ad)
}
