// secfile/internal/core/ports/encryption.go
package ports

import (
	"context"

	"secfile/internal/core/domain"
)

// SegmentService is the forward and reverse half of the protection pipeline.
type SegmentService interface {
	Encrypter(ctx context.Context, input domain.EncryptInput) (*domain.EncryptOutput, error)
	Decrypter(ctx context.Context, input domain.DecryptInput) (*domain.DecryptOutput, error)
}

// Encryptor is an AEAD bound to one algorithm. Keys and nonces are passed in
// explicitly so the caller controls their lifetime.
type Encryptor interface {
	Algorithm() domain.Algorithm
	KeySize() int
	NonceSize() int
	GenerateKey() ([]byte, error)
	GenerateIV() ([]byte, error)
	EncryptChunk(chunk []byte, key []byte, iv []byte, ad []byte) ([]byte, error)
	DecryptChunk(encryptedChunk []byte, key []byte, iv []byte, ad []byte) ([]byte, error)
}
