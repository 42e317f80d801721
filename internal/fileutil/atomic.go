// Package fileutil provides atomic file write helpers shared by the pipeline stages.
package fileutil

import (
	"fmt"
	"os"
	"path/filepath"
)

// TempContext holds state for an atomic file write operation.
type TempContext struct {
	TmpFile *os.File
	TmpName string
}

// NewTempContext creates a hidden temp file next to outPath so the final
// rename stays on one filesystem. Caller must defer CleanupOnError.
func NewTempContext(outPath string) (*TempContext, error) {
	tmpFile, err := os.CreateTemp(filepath.Dir(outPath), ".tmp-*")
	if err != nil {
		return nil, fmt.Errorf("creating temporary file: %w", err)
	}

	return &TempContext{
		TmpFile: tmpFile,
		TmpName: tmpFile.Name(),
	}, nil
}

// CleanupOnError closes the temp file and removes it if the write failed.
func (tc *TempContext) CleanupOnError(errp *error) {
	tc.TmpFile.Close() //nolint:errcheck // best-effort cleanup

	if *errp != nil {
		os.Remove(tc.TmpName) //nolint:errcheck // best-effort cleanup
	}
}

// Commit flushes the temp file and renames it onto outPath with perm.
func (tc *TempContext) Commit(outPath string, perm os.FileMode) error {
	if err := tc.finish(perm); err != nil {
		return err
	}

	if err := os.Rename(tc.TmpName, outPath); err != nil {
		return fmt.Errorf("renaming output file: %w", err)
	}

	return nil
}

// CommitExclusive is Commit but never replaces an existing outPath; in that
// case the error matches fs.ErrExist.
func (tc *TempContext) CommitExclusive(outPath string, perm os.FileMode) error {
	if err := tc.finish(perm); err != nil {
		return err
	}

	if err := os.Link(tc.TmpName, outPath); err != nil {
		return fmt.Errorf("linking output file: %w", err)
	}

	os.Remove(tc.TmpName) //nolint:errcheck // outPath already holds the data

	return nil
}

func (tc *TempContext) finish(perm os.FileMode) error {
	if err := tc.TmpFile.Sync(); err != nil {
		return fmt.Errorf("syncing temporary file: %w", err)
	}

	if err := tc.TmpFile.Close(); err != nil {
		return fmt.Errorf("closing temporary file: %w", err)
	}

	if err := os.Chmod(tc.TmpName, perm); err != nil {
		return fmt.Errorf("setting file permissions: %w", err)
	}

	return nil
}

// WriteFileAtomic writes data to path so that readers either see the previous
// state or the complete new file.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) (err error) {
	tc, err := NewTempContext(path)
	if err != nil {
		return err
	}

	defer tc.CleanupOnError(&err)

	if _, err = tc.TmpFile.Write(data); err != nil {
		return fmt.Errorf("writing temporary file: %w", err)
	}

	return tc.Commit(path, perm)
}

// WriteFileExclusive writes data to path atomically and fails with
// fs.ErrExist if path already exists.
func WriteFileExclusive(path string, data []byte, perm os.FileMode) (err error) {
	tc, err := NewTempContext(path)
	if err != nil {
		return err
	}

	defer tc.CleanupOnError(&err)

	if _, err = tc.TmpFile.Write(data); err != nil {
		return fmt.Errorf("writing temporary file: %w", err)
	}

	return tc.CommitExclusive(path, perm)
}

// MoveExclusive moves src to dst on the same filesystem and fails with
// fs.ErrExist if dst already exists.
func MoveExclusive(src, dst string) error {
	if err := os.Link(src, dst); err != nil {
		return fmt.Errorf("linking %s: %w", filepath.Base(dst), err)
	}

	if err := os.Remove(src); err != nil {
		return fmt.Errorf("removing %s: %w", filepath.Base(src), err)
	}

	return nil
}
