package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrRunNotFound is returned when no stored objects exist for a run.
var ErrRunNotFound = errors.New("run not found")

// RunInfo summarizes the ciphertext objects stored for one run
type RunInfo struct {
	RunID     uuid.UUID
	Objects   int
	Size      int64
	UpdatedAt time.Time
}

// Store defines the interface for remote ciphertext storage. Only sealed
// segments and the sealed manifest are ever stored; credentials stay local.
type Store interface {
	PutRun(ctx context.Context, runID uuid.UUID, ciphertextDir string) (RunInfo, error)
	GetRun(ctx context.Context, runID uuid.UUID, ciphertextDir string) (RunInfo, error)
	ListRuns(ctx context.Context) ([]RunInfo, error)
	DeleteRun(ctx context.Context, runID uuid.UUID) error
}

// Config holds configuration for storage services
type Config struct {
	BucketName string
	Region     string
	RunPrefix  string
	// Transfers bounds concurrent object uploads and downloads.
	Transfers int
}
