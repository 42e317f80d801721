package service

import (
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"

	"secfile/internal/core/domain"
	"secfile/internal/fileutil"
)

const (
	credentialBlockType = "SECFILE CREDENTIAL"
	credentialVersion   = 1

	// CredentialFileName is the name of the credential inside a run's key directory.
	CredentialFileName = "credential.pem"
)

// EncodeCredential renders c as a PEM block. The body is the raw master key;
// the headers carry what is needed to derive the subkeys.
func EncodeCredential(c domain.Credential) []byte {
	headers := map[string]string{
		"Version":    strconv.Itoa(credentialVersion),
		"Algorithm":  string(c.Algorithm),
		"Run-Id":     c.RunID.String(),
		"Created-At": c.CreatedAt.UTC().Format(time.RFC3339),
	}
	if c.Issuer != "" {
		headers["Issuer"] = c.Issuer
	}
	return pem.EncodeToMemory(&pem.Block{
		Type:    credentialBlockType,
		Headers: headers,
		Bytes:   c.Key,
	})
}

// DecodeCredential parses a credential file. Every failure wraps
// domain.ErrInvalidCredential.
func DecodeCredential(data []byte) (domain.Credential, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return domain.Credential{}, fmt.Errorf("%w: no PEM block found", domain.ErrInvalidCredential)
	}
	if block.Type != credentialBlockType {
		return domain.Credential{}, fmt.Errorf("%w: unexpected block type %q", domain.ErrInvalidCredential, block.Type)
	}
	if v := block.Headers["Version"]; v != strconv.Itoa(credentialVersion) {
		return domain.Credential{}, fmt.Errorf("%w: unsupported version %q", domain.ErrInvalidCredential, v)
	}

	alg := domain.Algorithm(block.Headers["Algorithm"])
	if alg.ID() == 0 {
		return domain.Credential{}, fmt.Errorf("%w: unsupported algorithm %q", domain.ErrInvalidCredential, alg)
	}

	runID, err := uuid.Parse(block.Headers["Run-Id"])
	if err != nil {
		return domain.Credential{}, fmt.Errorf("%w: run id: %w", domain.ErrInvalidCredential, err)
	}

	createdAt, err := time.Parse(time.RFC3339, block.Headers["Created-At"])
	if err != nil {
		return domain.Credential{}, fmt.Errorf("%w: created at: %w", domain.ErrInvalidCredential, err)
	}

	if len(block.Bytes) == 0 {
		return domain.Credential{}, fmt.Errorf("%w: empty key", domain.ErrInvalidCredential)
	}

	return domain.Credential{
		RunID:     runID,
		Algorithm: alg,
		Key:       block.Bytes,
		CreatedAt: createdAt,
		Issuer:    block.Headers["Issuer"],
	}, nil
}

// WriteCredential atomically writes c into dir with owner-only permissions and
// returns its path.
func WriteCredential(dir string, c domain.Credential) (string, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("%w: create key dir: %w", domain.ErrIO, err)
	}
	path := filepath.Join(dir, CredentialFileName)
	if err := fileutil.WriteFileAtomic(path, EncodeCredential(c), 0o600); err != nil {
		return "", fmt.Errorf("%w: write credential: %w", domain.ErrIO, err)
	}
	return path, nil
}

func ReadCredential(path string) (domain.Credential, error) {
	if path == "" {
		return domain.Credential{}, domain.ErrNoFile
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Credential{}, fmt.Errorf("%w: read credential: %w", domain.ErrIO, err)
	}
	return DecodeCredential(data)
}
