package service

import (
	"crypto/sha256"
	"fmt"
	"io"

	"github.com/google/uuid"
	"golang.org/x/crypto/hkdf"
)

const (
	segmentKeyInfo  = "secfile/segments"
	manifestKeyInfo = "secfile/manifest"
)

// runKeys are the subkeys derived from a credential's master key. The run id
// is the HKDF salt, so a key reused across runs still yields distinct subkeys.
type runKeys struct {
	segment  []byte
	manifest []byte
}

func deriveKeys(master []byte, runID uuid.UUID, size int) (runKeys, error) {
	segment, err := deriveKey(master, runID, segmentKeyInfo, size)
	if err != nil {
		return runKeys{}, err
	}
	manifest, err := deriveKey(master, runID, manifestKeyInfo, size)
	if err != nil {
		return runKeys{}, err
	}
	return runKeys{segment: segment, manifest: manifest}, nil
}

func deriveKey(master []byte, runID uuid.UUID, info string, size int) ([]byte, error) {
	out := make([]byte, size)
	if _, err := io.ReadFull(hkdf.New(sha256.New, master, runID[:], []byte(info)), out); err != nil {
		return nil, fmt.Errorf("failed to derive %s key: %w", info, err)
	}
	return out, nil
}
