// secfile/internal/core/domain/types.go
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Algorithm names the AEAD used for a run. It is recorded in the credential
// and in every segment header.
type Algorithm string

const (
	AlgorithmAES256GCM         Algorithm = "AES-256-GCM"
	AlgorithmXChaCha20Poly1305 Algorithm = "XCHACHA20-POLY1305"
)

// ID is the one-byte wire identifier of the algorithm.
func (a Algorithm) ID() byte {
	switch a {
	case AlgorithmAES256GCM:
		return 1
	case AlgorithmXChaCha20Poly1305:
		return 2
	default:
		return 0
	}
}

// AlgorithmFromID is the inverse of Algorithm.ID.
func AlgorithmFromID(id byte) (Algorithm, bool) {
	switch id {
	case 1:
		return AlgorithmAES256GCM, true
	case 2:
		return AlgorithmXChaCha20Poly1305, true
	default:
		return "", false
	}
}

// SourceMetadata describes the uploaded file being protected.
type SourceMetadata struct {
	FileName string
	Size     int64
	// Checksum is the hex SHA-256 of the whole plaintext.
	Checksum string
}

// Segment is one ordered chunk of a file on disk, plaintext or decrypted.
type Segment struct {
	Index int
	Size  int64
	Path  string
}

// CiphertextSegment is the sealed form of a Segment.
type CiphertextSegment struct {
	Index int
	Count int
	RunID uuid.UUID
	Path  string
}

// Manifest is sealed next to the ciphertext segments and carries what the
// Restorer needs to rebuild the original file.
type Manifest struct {
	RunID        uuid.UUID `json:"run_id"`
	Algorithm    Algorithm `json:"algorithm"`
	FileName     string    `json:"file_name"`
	OriginalSize int64     `json:"original_size"`
	ChunkSize    int       `json:"chunk_size"`
	SegmentCount int       `json:"segment_count"`
	Checksum     string    `json:"checksum"`
	CreatedAt    time.Time `json:"created_at"`
}

// Credential is the in-memory form of the credential file.
type Credential struct {
	RunID     uuid.UUID
	Algorithm Algorithm
	Key       []byte
	CreatedAt time.Time
	Issuer    string
}

type EncryptionOptions struct {
	ChunkSize int
	Algorithm Algorithm
	Workers   int
}

type EncryptInput struct {
	// RunID is generated when zero.
	RunID         uuid.UUID
	Segments      []Segment
	Source        SourceMetadata
	CiphertextDir string
	KeyDir        string
	Options       EncryptionOptions
}

type EncryptOutput struct {
	RunID          uuid.UUID
	CredentialPath string
	Ciphertext     []CiphertextSegment
	Manifest       Manifest
	EncryptedSize  int64
}

type DecryptInput struct {
	CiphertextDir  string
	CredentialPath string
	PlaintextDir   string
	Workers        int
}

type DecryptOutput struct {
	Segments []Segment
	Manifest Manifest
}

// RestoredFile is the reconstruction target of a decrypt run.
type RestoredFile struct {
	Path     string
	FileName string
	Size     int64
	Checksum string
}
