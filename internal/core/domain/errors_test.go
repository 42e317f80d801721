package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDescribe(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, "ok"},
		{"no file", ErrNoFile, "No file selected"},
		{"wrapped credential", fmt.Errorf("%w: open manifest", ErrInvalidCredential), "Invalid key: the credential does not match the encrypted file"},
		{"missing segment", fmt.Errorf("restore: %w", ErrMissingSegment), "Encrypted file is incomplete: a segment is missing"},
		{"io", fmt.Errorf("%w: open source: %w", ErrIO, errors.New("permission denied")), "I/O failure"},
		{"unknown", errors.New("boom"), "Unexpected failure"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Describe(tt.err))
		})
	}
}

func TestValidCredentialName(t *testing.T) {
	assert.True(t, ValidCredentialName("My_Key.pem"))
	assert.True(t, ValidCredentialName("key.PEM"))
	assert.False(t, ValidCredentialName("key.txt"))
	assert.False(t, ValidCredentialName("pem"))
}

func TestAlgorithmID(t *testing.T) {
	for _, alg := range []Algorithm{AlgorithmAES256GCM, AlgorithmXChaCha20Poly1305} {
		got, ok := AlgorithmFromID(alg.ID())
		assert.True(t, ok)
		assert.Equal(t, alg, got)
	}

	_, ok := AlgorithmFromID(0)
	assert.False(t, ok)
}
