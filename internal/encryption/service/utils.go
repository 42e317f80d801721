package service

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"secfile/internal/core/domain"
)

const (
	segmentMagic  = "SFSG"
	manifestMagic = "SFMF"
	formatVersion = byte(1)

	// magic | version | algorithm | run id | index | count | nonce length
	fixedHeaderSize = 4 + 1 + 1 + 16 + 4 + 4 + 1
	maxNonceSize    = 24

	ciphertextPattern = "segment_%06d.enc"
	ciphertextExt     = ".enc"

	// ManifestFileName is the sealed manifest written next to the segments.
	ManifestFileName = "manifest.enc"
)

// CiphertextName returns the on-disk name of the ciphertext segment at index.
// Decryption never relies on it; the index is read from the sealed header.
func CiphertextName(index int) string {
	return fmt.Sprintf(ciphertextPattern, index)
}

// frameHeader prefixes every sealed file and is passed to the AEAD as
// additional data, so index, count and run id cannot be altered undetected.
type frameHeader struct {
	magic     string
	algorithm domain.Algorithm
	runID     uuid.UUID
	index     uint32
	count     uint32
	nonce     []byte
}

func (h frameHeader) marshal() []byte {
	buf := make([]byte, 0, fixedHeaderSize+len(h.nonce))
	buf = append(buf, h.magic...)
	buf = append(buf, formatVersion, h.algorithm.ID())
	buf = append(buf, h.runID[:]...)
	buf = binary.BigEndian.AppendUint32(buf, h.index)
	buf = binary.BigEndian.AppendUint32(buf, h.count)
	buf = append(buf, byte(len(h.nonce)))
	return append(buf, h.nonce...)
}

// parseFrameHeader decodes the header at the start of data and returns it with
// its encoded length.
func parseFrameHeader(data []byte, magic string) (frameHeader, int, error) {
	if len(data) < fixedHeaderSize {
		return frameHeader{}, 0, fmt.Errorf("%w: header truncated", domain.ErrCorruptSegment)
	}
	if string(data[:4]) != magic {
		return frameHeader{}, 0, fmt.Errorf("%w: bad magic %q", domain.ErrCorruptSegment, data[:4])
	}
	if data[4] != formatVersion {
		return frameHeader{}, 0, fmt.Errorf("%w: unsupported format version %d", domain.ErrCorruptSegment, data[4])
	}
	alg, ok := domain.AlgorithmFromID(data[5])
	if !ok {
		return frameHeader{}, 0, fmt.Errorf("%w: unknown algorithm id %d", domain.ErrCorruptSegment, data[5])
	}

	h := frameHeader{magic: magic, algorithm: alg}
	copy(h.runID[:], data[6:22])
	h.index = binary.BigEndian.Uint32(data[22:26])
	h.count = binary.BigEndian.Uint32(data[26:30])

	nonceLen := int(data[30])
	if nonceLen == 0 || nonceLen > maxNonceSize {
		return frameHeader{}, 0, fmt.Errorf("%w: invalid nonce length %d", domain.ErrCorruptSegment, nonceLen)
	}
	end := fixedHeaderSize + nonceLen
	if len(data) < end {
		return frameHeader{}, 0, fmt.Errorf("%w: nonce truncated", domain.ErrCorruptSegment)
	}
	h.nonce = bytes.Clone(data[fixedHeaderSize:end])
	return h, end, nil
}

// readFrameHeader reads just the header of the sealed file at path.
func readFrameHeader(path, magic string) (frameHeader, error) {
	f, err := os.Open(path)
	if err != nil {
		return frameHeader{}, fmt.Errorf("%w: open %s: %w", domain.ErrIO, filepath.Base(path), err)
	}
	defer f.Close()

	buf := make([]byte, fixedHeaderSize+maxNonceSize)
	n, err := io.ReadFull(f, buf)
	if err != nil && err != io.ErrUnexpectedEOF {
		if err == io.EOF {
			return frameHeader{}, fmt.Errorf("%w: %s is empty", domain.ErrCorruptSegment, filepath.Base(path))
		}
		return frameHeader{}, fmt.Errorf("%w: read %s: %w", domain.ErrIO, filepath.Base(path), err)
	}

	h, _, err := parseFrameHeader(buf[:n], magic)
	if err != nil {
		return frameHeader{}, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return h, nil
}

func marshalManifest(m domain.Manifest) ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal manifest: %w", err)
	}
	return data, nil
}

func unmarshalManifest(data []byte) (domain.Manifest, error) {
	var m domain.Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return m, fmt.Errorf("%w: failed to unmarshal manifest: %w", domain.ErrCorruptSegment, err)
	}
	if err := validateManifest(m); err != nil {
		return m, fmt.Errorf("%w: invalid manifest: %w", domain.ErrCorruptSegment, err)
	}
	return m, nil
}

func validateManifest(m domain.Manifest) error {
	if m.Algorithm == "" {
		return fmt.Errorf("missing algorithm in manifest")
	}
	if m.ChunkSize <= 0 {
		return fmt.Errorf("invalid chunk size in manifest: %d", m.ChunkSize)
	}
	if m.OriginalSize < 0 {
		return fmt.Errorf("invalid original size in manifest: %d", m.OriginalSize)
	}
	if m.SegmentCount <= 0 {
		return fmt.Errorf("invalid segment count in manifest: %d", m.SegmentCount)
	}
	if m.Checksum == "" {
		return fmt.Errorf("missing checksum in manifest")
	}
	if m.CreatedAt.IsZero() {
		return fmt.Errorf("missing creation time in manifest")
	}
	return nil
}
