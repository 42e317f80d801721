package chunking

import (
	"fmt"
	"io"
)

const (
	DefaultChunkSize = 1024 * 1024     // 1MB default segment size
	MinChunkSize     = 64 * 1024       // 64KB minimum segment size
	MaxChunkSize     = 8 * 1024 * 1024 // 8MB maximum segment size
)

// ChunkReader yields the source in chunks of exactly chunkSize bytes; only
// the final chunk may be shorter.
type ChunkReader struct {
	reader    io.Reader
	chunkSize int
	index     int
	done      bool
}

func NewChunkReader(reader io.Reader, chunkSize int) (*ChunkReader, error) {
	if err := ValidateChunkSize(chunkSize); err != nil {
		return nil, err
	}

	return &ChunkReader{
		reader:    reader,
		chunkSize: chunkSize,
	}, nil
}

// ValidateChunkSize checks the configured chunk size against the allowed bounds.
func ValidateChunkSize(size int) error {
	if size < MinChunkSize || size > MaxChunkSize {
		return fmt.Errorf("invalid chunk size: must be between %d and %d bytes", MinChunkSize, MaxChunkSize)
	}
	return nil
}

// Next returns the next chunk and its sequence index. It returns io.EOF once
// the source is exhausted.
func (r *ChunkReader) Next(buf []byte) ([]byte, int, error) {
	if r.done {
		return nil, 0, io.EOF
	}
	if len(buf) < r.chunkSize {
		buf = make([]byte, r.chunkSize)
	}

	n, err := io.ReadFull(r.reader, buf[:r.chunkSize])
	switch {
	case err == io.EOF:
		r.done = true
		return nil, 0, io.EOF
	case err == io.ErrUnexpectedEOF:
		r.done = true
	case err != nil:
		return nil, 0, err
	}

	index := r.index
	r.index++
	return buf[:n], index, nil
}
