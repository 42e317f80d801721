package service

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"secfile/internal/core/domain"
)

func TestFrameHeaderRoundTrip(t *testing.T) {
	original := frameHeader{
		magic:     segmentMagic,
		algorithm: domain.AlgorithmXChaCha20Poly1305,
		runID:     uuid.New(),
		index:     7,
		count:     12,
		nonce:     bytes.Repeat([]byte{9}, 24),
	}

	encoded := original.marshal()
	if len(encoded) != fixedHeaderSize+24 {
		t.Fatalf("marshal() size = %d, want %d", len(encoded), fixedHeaderSize+24)
	}

	// Trailing ciphertext must not affect the parsed header.
	read, n, err := parseFrameHeader(append(encoded, 0xAA, 0xBB), segmentMagic)
	if err != nil {
		t.Fatalf("parseFrameHeader() error = %v", err)
	}
	if n != len(encoded) {
		t.Errorf("header length = %d, want %d", n, len(encoded))
	}
	if read.algorithm != original.algorithm {
		t.Errorf("Algorithm mismatch: got %v, want %v", read.algorithm, original.algorithm)
	}
	if read.runID != original.runID {
		t.Errorf("RunID mismatch: got %v, want %v", read.runID, original.runID)
	}
	if read.index != original.index || read.count != original.count {
		t.Errorf("Index/count mismatch: got %d/%d, want %d/%d", read.index, read.count, original.index, original.count)
	}
	if !bytes.Equal(read.nonce, original.nonce) {
		t.Errorf("Nonce mismatch")
	}
}

func TestParseFrameHeader_Errors(t *testing.T) {
	valid := frameHeader{
		magic:     segmentMagic,
		algorithm: domain.AlgorithmAES256GCM,
		runID:     uuid.New(),
		nonce:     make([]byte, 12),
	}.marshal()

	mutate := func(f func([]byte)) []byte {
		b := bytes.Clone(valid)
		f(b)
		return b
	}

	tests := []struct {
		name  string
		data  []byte
		magic string
	}{
		{"Truncated", valid[:10], segmentMagic},
		{"Wrong magic", valid, manifestMagic},
		{"Bad version", mutate(func(b []byte) { b[4] = 9 }), segmentMagic},
		{"Unknown algorithm", mutate(func(b []byte) { b[5] = 0 }), segmentMagic},
		{"Zero nonce length", mutate(func(b []byte) { b[30] = 0 }), segmentMagic},
		{"Oversized nonce length", mutate(func(b []byte) { b[30] = 200 }), segmentMagic},
		{"Nonce truncated", valid[:fixedHeaderSize+4], segmentMagic},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := parseFrameHeader(tt.data, tt.magic)
			if !errors.Is(err, domain.ErrCorruptSegment) {
				t.Errorf("parseFrameHeader() error = %v, want ErrCorruptSegment", err)
			}
		})
	}
}

func TestManifestMarshalRoundTrip(t *testing.T) {
	original := domain.Manifest{
		RunID:        uuid.New(),
		Algorithm:    domain.AlgorithmAES256GCM,
		FileName:     "report.pdf",
		OriginalSize: 12345,
		ChunkSize:    1024 * 1024,
		SegmentCount: 1,
		Checksum:     "test-checksum",
		CreatedAt:    time.Now().UTC(),
	}

	data, err := marshalManifest(original)
	if err != nil {
		t.Fatalf("marshalManifest() error = %v", err)
	}
	read, err := unmarshalManifest(data)
	if err != nil {
		t.Fatalf("unmarshalManifest() error = %v", err)
	}

	if read.FileName != original.FileName {
		t.Errorf("FileName mismatch: got %v, want %v", read.FileName, original.FileName)
	}
	if read.OriginalSize != original.OriginalSize {
		t.Errorf("OriginalSize mismatch: got %v, want %v", read.OriginalSize, original.OriginalSize)
	}
	if !original.CreatedAt.Equal(read.CreatedAt) {
		t.Errorf("CreatedAt mismatch: got %v, want %v", read.CreatedAt, original.CreatedAt)
	}
}

func TestValidateManifest(t *testing.T) {
	base := domain.Manifest{
		RunID:        uuid.New(),
		Algorithm:    domain.AlgorithmAES256GCM,
		ChunkSize:    1024,
		SegmentCount: 1,
		Checksum:     "abc",
		CreatedAt:    time.Now(),
	}

	tests := []struct {
		name    string
		mutate  func(*domain.Manifest)
		wantErr bool
	}{
		{"Valid", func(*domain.Manifest) {}, false},
		{"Missing algorithm", func(m *domain.Manifest) { m.Algorithm = "" }, true},
		{"Zero chunk size", func(m *domain.Manifest) { m.ChunkSize = 0 }, true},
		{"Negative size", func(m *domain.Manifest) { m.OriginalSize = -1 }, true},
		{"No segments", func(m *domain.Manifest) { m.SegmentCount = 0 }, true},
		{"Missing checksum", func(m *domain.Manifest) { m.Checksum = "" }, true},
		{"Missing creation time", func(m *domain.Manifest) { m.CreatedAt = time.Time{} }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := base
			tt.mutate(&m)
			if err := validateManifest(m); (err != nil) != tt.wantErr {
				t.Errorf("validateManifest() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
