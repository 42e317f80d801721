package chunking

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"secfile/internal/core/domain"
)

const segmentPattern = "segment_%06d.part"

// SegmentName returns the on-disk name of the plaintext segment at index.
func SegmentName(index int) string {
	return fmt.Sprintf(segmentPattern, index)
}

// Divider splits a source file into fixed-size plaintext segments.
type Divider struct {
	chunkSize  int
	allowEmpty bool
	log        logrus.FieldLogger
}

func NewDivider(chunkSize int, allowEmpty bool, log logrus.FieldLogger) (*Divider, error) {
	if err := ValidateChunkSize(chunkSize); err != nil {
		return nil, err
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Divider{chunkSize: chunkSize, allowEmpty: allowEmpty, log: log}, nil
}

// Divide streams sourcePath into segmentsDir and returns the segments in
// index order along with the source metadata. An empty source yields a single
// zero-length segment unless empty input is disallowed.
func (d *Divider) Divide(ctx context.Context, sourcePath, segmentsDir string) ([]domain.Segment, domain.SourceMetadata, error) {
	var meta domain.SourceMetadata
	if sourcePath == "" {
		return nil, meta, domain.ErrNoFile
	}

	src, err := os.Open(sourcePath)
	if err != nil {
		return nil, meta, fmt.Errorf("%w: open source: %w", domain.ErrIO, err)
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return nil, meta, fmt.Errorf("%w: stat source: %w", domain.ErrIO, err)
	}
	if info.IsDir() {
		return nil, meta, fmt.Errorf("%w: %s is a directory", domain.ErrIO, sourcePath)
	}
	if info.Size() == 0 && !d.allowEmpty {
		return nil, meta, fmt.Errorf("%w: %s", domain.ErrEmptyInput, filepath.Base(sourcePath))
	}

	if err := os.MkdirAll(segmentsDir, 0o700); err != nil {
		return nil, meta, fmt.Errorf("%w: create segments dir: %w", domain.ErrIO, err)
	}

	hasher := sha256.New()
	reader, err := NewChunkReader(io.TeeReader(src, hasher), d.chunkSize)
	if err != nil {
		return nil, meta, err
	}

	var segments []domain.Segment
	buf := make([]byte, d.chunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return nil, meta, err
		}

		chunk, index, err := reader.Next(buf)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, meta, fmt.Errorf("%w: read source: %w", domain.ErrIO, err)
		}

		seg, err := writeSegment(segmentsDir, index, chunk)
		if err != nil {
			return nil, meta, err
		}
		segments = append(segments, seg)
	}

	if len(segments) == 0 {
		seg, err := writeSegment(segmentsDir, 0, nil)
		if err != nil {
			return nil, meta, err
		}
		segments = append(segments, seg)
	}

	d.log.WithFields(logrus.Fields{
		"source":   filepath.Base(sourcePath),
		"bytes":    info.Size(),
		"segments": len(segments),
	}).Debug("divided source into segments")

	meta = domain.SourceMetadata{
		FileName: filepath.Base(sourcePath),
		Size:     info.Size(),
		Checksum: hex.EncodeToString(hasher.Sum(nil)),
	}
	return segments, meta, nil
}

func writeSegment(dir string, index int, data []byte) (domain.Segment, error) {
	path := filepath.Join(dir, SegmentName(index))
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return domain.Segment{}, fmt.Errorf("%w: write segment %d: %w", domain.ErrIO, index, err)
	}
	return domain.Segment{Index: index, Size: int64(len(data)), Path: path}, nil
}

// Plan returns the segment sizes Divide produces for a source of the given
// size.
func Plan(size int64, chunkSize int) []int64 {
	if size <= 0 {
		return []int64{0}
	}

	full := size / int64(chunkSize)
	rest := size % int64(chunkSize)

	sizes := make([]int64, 0, full+1)
	for i := int64(0); i < full; i++ {
		sizes = append(sizes, int64(chunkSize))
	}
	if rest > 0 {
		sizes = append(sizes, rest)
	}
	return sizes
}
