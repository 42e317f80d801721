// Package restore concatenates decrypted segments back into the original file.
package restore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"secfile/internal/core/domain"
	"secfile/internal/fileutil"
)

// FallbackFileName is used when the manifest carries no usable file name.
const FallbackFileName = "restored.bin"

type Restorer struct {
	log logrus.FieldLogger
}

func NewRestorer(log logrus.FieldLogger) *Restorer {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Restorer{log: log}
}

// Restore writes the segments, in index order, to a single file in outDir
// named after the manifest. The file only appears once its size and checksum
// match the manifest.
func (r *Restorer) Restore(ctx context.Context, segments []domain.Segment, manifest domain.Manifest, outDir string) (restored *domain.RestoredFile, err error) {
	ordered := append([]domain.Segment(nil), segments...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Index < ordered[j].Index })

	if len(ordered) != manifest.SegmentCount {
		return nil, fmt.Errorf("%w: have %d segments, manifest has %d", domain.ErrMissingSegment, len(ordered), manifest.SegmentCount)
	}
	for i, seg := range ordered {
		if seg.Index != i {
			return nil, fmt.Errorf("%w: expected segment %d, got %d", domain.ErrMissingSegment, i, seg.Index)
		}
	}

	if err := os.MkdirAll(outDir, 0o700); err != nil {
		return nil, fmt.Errorf("%w: create output dir: %w", domain.ErrIO, err)
	}

	name := SafeFileName(manifest.FileName)
	target := filepath.Join(outDir, name)

	tc, err := fileutil.NewTempContext(target)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrIO, err)
	}
	defer tc.CleanupOnError(&err)

	hasher := sha256.New()
	w := io.MultiWriter(tc.TmpFile, hasher)

	var size int64
	for _, seg := range ordered {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n, err := appendSegment(w, seg)
		if err != nil {
			return nil, err
		}
		size += n
	}

	if size != manifest.OriginalSize {
		return nil, fmt.Errorf("%w: restored %d bytes, expected %d", domain.ErrCorruptSegment, size, manifest.OriginalSize)
	}
	checksum := hex.EncodeToString(hasher.Sum(nil))
	if checksum != manifest.Checksum {
		return nil, fmt.Errorf("%w: checksum mismatch", domain.ErrCorruptSegment)
	}

	if err := tc.Commit(target, 0o600); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrIO, err)
	}

	r.log.WithFields(logrus.Fields{
		"file":     name,
		"bytes":    size,
		"segments": len(ordered),
	}).Debug("restored file")

	return &domain.RestoredFile{
		Path:     target,
		FileName: name,
		Size:     size,
		Checksum: checksum,
	}, nil
}

func appendSegment(w io.Writer, seg domain.Segment) (int64, error) {
	f, err := os.Open(seg.Path)
	if err != nil {
		return 0, fmt.Errorf("%w: open segment %d: %w", domain.ErrIO, seg.Index, err)
	}
	defer f.Close()

	n, err := io.Copy(w, f)
	if err != nil {
		return n, fmt.Errorf("%w: copy segment %d: %w", domain.ErrIO, seg.Index, err)
	}
	return n, nil
}

// SafeFileName reduces name to a bare file name that cannot escape the
// output directory.
func SafeFileName(name string) string {
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	name = strings.TrimSpace(name)
	switch name {
	case "", ".", "..":
		return FallbackFileName
	}
	if strings.HasPrefix(name, ".tmp-") {
		return FallbackFileName
	}
	return name
}
