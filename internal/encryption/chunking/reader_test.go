package chunking

import (
	"bytes"
	"crypto/rand"
	"io"
	"testing"
	"testing/iotest"
)

func generateData(size int) []byte {
	data := make([]byte, size)
	rand.Read(data)
	return data
}

func TestChunkReader(t *testing.T) {
	tests := []struct {
		name      string
		input     []byte
		chunkSize int
		wantErr   bool
	}{
		{
			name:      "Default chunk size",
			input:     bytes.Repeat([]byte{1}, DefaultChunkSize),
			chunkSize: DefaultChunkSize,
		},
		{
			name:      "Minimum chunk size",
			input:     bytes.Repeat([]byte{1}, MinChunkSize),
			chunkSize: MinChunkSize,
		},
		{
			name:      "Below minimum chunk size",
			input:     bytes.Repeat([]byte{1}, 1024),
			chunkSize: MinChunkSize - 1,
			wantErr:   true,
		},
		{
			name:      "Above maximum chunk size",
			input:     bytes.Repeat([]byte{1}, 1024),
			chunkSize: MaxChunkSize + 1,
			wantErr:   true,
		},
		{
			name:      "Zero chunk size",
			input:     generateData(1024),
			chunkSize: 0,
			wantErr:   true,
		},
		{
			name:      "Empty file",
			input:     []byte{},
			chunkSize: DefaultChunkSize,
		},
		{
			name:      "Several chunks with short tail",
			input:     generateData(3*MinChunkSize + 17),
			chunkSize: MinChunkSize,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reader, err := NewChunkReader(bytes.NewReader(tt.input), tt.chunkSize)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewChunkReader() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if tt.wantErr {
				return
			}

			var got []byte
			buf := make([]byte, tt.chunkSize)
			for {
				chunk, _, err := reader.Next(buf)
				if err == io.EOF {
					break
				}
				if err != nil {
					t.Fatalf("ChunkReader.Next() error = %v", err)
				}
				if len(chunk) > tt.chunkSize {
					t.Errorf("Chunk size exceeded: got %d, want <= %d", len(chunk), tt.chunkSize)
				}
				got = append(got, chunk...)
			}

			if !bytes.Equal(got, tt.input) {
				t.Errorf("Total bytes read %d, want %d", len(got), len(tt.input))
			}
		})
	}
}

func TestChunkReader_NextFillsShortReads(t *testing.T) {
	input := generateData(2*MinChunkSize + 100)

	// OneByteReader forces the underlying source to return one byte per Read.
	reader, err := NewChunkReader(iotest.OneByteReader(bytes.NewReader(input)), MinChunkSize)
	if err != nil {
		t.Fatalf("Failed to create chunk reader: %v", err)
	}

	wantSizes := []int{MinChunkSize, MinChunkSize, 100}
	buf := make([]byte, MinChunkSize)
	for i, want := range wantSizes {
		chunk, index, err := reader.Next(buf)
		if err != nil {
			t.Fatalf("Next %d failed: %v", i, err)
		}
		if index != i {
			t.Errorf("Next %d returned index %d", i, index)
		}
		if len(chunk) != want {
			t.Errorf("Next %d returned %d bytes, want %d", i, len(chunk), want)
		}
	}

	if _, _, err := reader.Next(buf); err != io.EOF {
		t.Errorf("Expected EOF, got %v", err)
	}
}
