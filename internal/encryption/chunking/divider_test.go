package chunking

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"secfile/internal/core/domain"
)

func writeSource(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "source.bin")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func newTestDivider(t *testing.T, allowEmpty bool) *Divider {
	t.Helper()
	log := logrus.New()
	log.SetOutput(&bytes.Buffer{})
	d, err := NewDivider(MinChunkSize, allowEmpty, log)
	require.NoError(t, err)
	return d
}

func TestDivider_Divide(t *testing.T) {
	tests := []struct {
		name      string
		size      int
		wantSizes []int64
	}{
		{"empty", 0, []int64{0}},
		{"single byte", 1, []int64{1}},
		{"hello world", 13, []int64{13}},
		{"exact chunk", MinChunkSize, []int64{MinChunkSize}},
		{"multi chunk", 3*MinChunkSize + 5, []int64{MinChunkSize, MinChunkSize, MinChunkSize, 5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := generateData(tt.size)
			src := writeSource(t, data)
			dir := filepath.Join(t.TempDir(), "segments")

			segments, meta, err := newTestDivider(t, true).Divide(context.Background(), src, dir)
			require.NoError(t, err)
			require.Len(t, segments, len(tt.wantSizes))

			sum := sha256.Sum256(data)
			assert.Equal(t, hex.EncodeToString(sum[:]), meta.Checksum)
			assert.Equal(t, int64(tt.size), meta.Size)
			assert.Equal(t, "source.bin", meta.FileName)

			var joined []byte
			for i, seg := range segments {
				assert.Equal(t, i, seg.Index)
				assert.Equal(t, tt.wantSizes[i], seg.Size)
				assert.Equal(t, filepath.Join(dir, SegmentName(i)), seg.Path)

				content, err := os.ReadFile(seg.Path)
				require.NoError(t, err)
				joined = append(joined, content...)
			}
			assert.True(t, bytes.Equal(data, joined), "segments do not reconstruct the source")
			assert.Equal(t, tt.wantSizes, Plan(int64(tt.size), MinChunkSize))
		})
	}
}

func TestDivider_Deterministic(t *testing.T) {
	data := generateData(2*MinChunkSize + 999)
	src := writeSource(t, data)
	d := newTestDivider(t, true)

	first, _, err := d.Divide(context.Background(), src, filepath.Join(t.TempDir(), "a"))
	require.NoError(t, err)
	second, _, err := d.Divide(context.Background(), src, filepath.Join(t.TempDir(), "b"))
	require.NoError(t, err)

	require.Len(t, second, len(first))
	for i := range first {
		assert.Equal(t, first[i].Index, second[i].Index)
		assert.Equal(t, first[i].Size, second[i].Size)
	}
}

func TestDivider_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("empty input rejected", func(t *testing.T) {
		src := writeSource(t, nil)
		_, _, err := newTestDivider(t, false).Divide(ctx, src, t.TempDir())
		assert.ErrorIs(t, err, domain.ErrEmptyInput)
	})

	t.Run("no source", func(t *testing.T) {
		_, _, err := newTestDivider(t, true).Divide(ctx, "", t.TempDir())
		assert.ErrorIs(t, err, domain.ErrNoFile)
	})

	t.Run("missing source", func(t *testing.T) {
		_, _, err := newTestDivider(t, true).Divide(ctx, filepath.Join(t.TempDir(), "nope"), t.TempDir())
		assert.ErrorIs(t, err, domain.ErrIO)
	})

	t.Run("source is a directory", func(t *testing.T) {
		_, _, err := newTestDivider(t, true).Divide(ctx, t.TempDir(), t.TempDir())
		assert.ErrorIs(t, err, domain.ErrIO)
	})

	t.Run("cancelled", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		src := writeSource(t, []byte("data"))
		_, _, err := newTestDivider(t, true).Divide(cctx, src, t.TempDir())
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("invalid chunk size", func(t *testing.T) {
		_, err := NewDivider(10, true, nil)
		assert.Error(t, err)
	})
}
