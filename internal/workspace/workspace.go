// Package workspace gives every pipeline run its own directory tree so that
// concurrent runs never share scratch folders.
package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"secfile/internal/core/domain"
)

const (
	SegmentsDir   = "segments"
	CiphertextDir = "ciphertext"
	PlaintextDir  = "plaintext"
	KeyDir        = "key"
	RestoredDir   = "restored"

	runPrefix = "run-"
)

type Workspace struct {
	RunID uuid.UUID
	Root  string
}

// New creates <baseDir>/run-<uuid> with all stage directories.
func New(baseDir string) (*Workspace, error) {
	id := uuid.New()
	ws := &Workspace{
		RunID: id,
		Root:  filepath.Join(baseDir, runPrefix+id.String()),
	}
	for _, dir := range []string{SegmentsDir, CiphertextDir, PlaintextDir, KeyDir, RestoredDir} {
		if err := os.MkdirAll(filepath.Join(ws.Root, dir), 0o700); err != nil {
			return nil, fmt.Errorf("%w: create workspace: %w", domain.ErrIO, err)
		}
	}
	return ws, nil
}

func (w *Workspace) Segments() string   { return filepath.Join(w.Root, SegmentsDir) }
func (w *Workspace) Ciphertext() string { return filepath.Join(w.Root, CiphertextDir) }
func (w *Workspace) Plaintext() string  { return filepath.Join(w.Root, PlaintextDir) }
func (w *Workspace) Key() string        { return filepath.Join(w.Root, KeyDir) }
func (w *Workspace) Restored() string   { return filepath.Join(w.Root, RestoredDir) }

// ClearScratch empties the plaintext staging folders. Ciphertext, key and
// restored output stay in place.
func (w *Workspace) ClearScratch() error {
	return errors.Join(EmptyDir(w.Segments()), EmptyDir(w.Plaintext()))
}

// Discard removes the whole run directory.
func (w *Workspace) Discard() error {
	if err := os.RemoveAll(w.Root); err != nil {
		return fmt.Errorf("%w: discard workspace: %w", domain.ErrIO, err)
	}
	return nil
}

// EmptyDir removes everything inside dir but keeps dir itself. A missing dir
// is not an error.
func EmptyDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: list %s: %w", domain.ErrIO, dir, err)
	}
	for _, entry := range entries {
		if err := os.RemoveAll(filepath.Join(dir, entry.Name())); err != nil {
			return fmt.Errorf("%w: remove %s: %w", domain.ErrIO, entry.Name(), err)
		}
	}
	return nil
}

// List returns the run directories under baseDir.
func List(baseDir string) ([]uuid.UUID, error) {
	entries, err := os.ReadDir(baseDir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: list runs: %w", domain.ErrIO, err)
	}
	var ids []uuid.UUID
	for _, entry := range entries {
		name, ok := strings.CutPrefix(entry.Name(), runPrefix)
		if !entry.IsDir() || !ok {
			continue
		}
		id, err := uuid.Parse(name)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Open returns the existing workspace for id under baseDir.
func Open(baseDir string, id uuid.UUID) (*Workspace, error) {
	ws := &Workspace{RunID: id, Root: filepath.Join(baseDir, runPrefix+id.String())}
	info, err := os.Stat(ws.Root)
	if err != nil {
		return nil, fmt.Errorf("%w: open run %s: %w", domain.ErrIO, id, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: run %s is not a directory", domain.ErrIO, id)
	}
	return ws, nil
}
