package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"

	"secfile/internal/core/domain"
	"secfile/internal/encryption/chunking"
	"secfile/internal/encryption/service/mocks"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// divideSource writes data to a temp file and splits it with the minimum
// chunk size so small inputs still produce several segments.
func divideSource(t *testing.T, data []byte) ([]domain.Segment, domain.SourceMetadata) {
	t.Helper()
	src := filepath.Join(t.TempDir(), "test.txt")
	if err := os.WriteFile(src, data, 0o600); err != nil {
		t.Fatalf("Failed to write source: %v", err)
	}
	divider, err := chunking.NewDivider(chunking.MinChunkSize, true, quietLogger())
	if err != nil {
		t.Fatalf("Failed to create divider: %v", err)
	}
	segments, meta, err := divider.Divide(context.Background(), src, filepath.Join(t.TempDir(), "segments"))
	if err != nil {
		t.Fatalf("Failed to divide source: %v", err)
	}
	return segments, meta
}

func TestEncryptionService_Encrypter(t *testing.T) {
	tests := []struct {
		name      string
		input     []byte
		wantErr   error
		setupMock func(*mocks.MockEncryptor)
	}{
		{
			name:  "Success - Small file",
			input: []byte("Hello, World!"),
		},
		{
			name:  "Success - Empty file",
			input: []byte{},
		},
		{
			name:  "Success - Multiple chunks",
			input: bytes.Repeat([]byte("data"), chunking.MinChunkSize),
		},
		{
			name:    "Failure - Key generation fails",
			input:   []byte("test"),
			wantErr: domain.ErrCrypto,
			setupMock: func(m *mocks.MockEncryptor) {
				m.GenerateKeyFunc = func() ([]byte, error) {
					return nil, io.ErrUnexpectedEOF
				}
			},
		},
		{
			name:    "Failure - IV generation fails",
			input:   []byte("test"),
			wantErr: domain.ErrCrypto,
			setupMock: func(m *mocks.MockEncryptor) {
				m.GenerateIVFunc = func() ([]byte, error) {
					return nil, io.ErrUnexpectedEOF
				}
			},
		},
		{
			name:    "Failure - Encryption fails",
			input:   bytes.Repeat([]byte("data"), chunking.MinChunkSize),
			wantErr: domain.ErrCrypto,
			setupMock: func(m *mocks.MockEncryptor) {
				m.EncryptChunkFunc = func(chunk, key, iv, ad []byte) ([]byte, error) {
					return nil, errors.New("cipher failure")
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Setup mock
			mockEncryptor := mocks.NewMockEncryptor()
			if tt.setupMock != nil {
				tt.setupMock(mockEncryptor)
			}

			svc := NewService(WithEncryptor(mockEncryptor), WithLogger(quietLogger()), WithWorkers(2))

			segments, meta := divideSource(t, tt.input)
			ciphertextDir := filepath.Join(t.TempDir(), "ciphertext")
			keyDir := filepath.Join(t.TempDir(), "key")

			output, err := svc.Encrypter(context.Background(), domain.EncryptInput{
				Segments:      segments,
				Source:        meta,
				CiphertextDir: ciphertextDir,
				KeyDir:        keyDir,
				Options:       domain.EncryptionOptions{ChunkSize: chunking.MinChunkSize},
			})

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Encrypter() error = %v, want %v", err, tt.wantErr)
				}
				entries, _ := os.ReadDir(ciphertextDir)
				if len(entries) != 0 {
					t.Errorf("Encrypter() left %d files behind after failure", len(entries))
				}
				if _, statErr := os.Stat(filepath.Join(keyDir, CredentialFileName)); statErr == nil {
					t.Error("Encrypter() wrote a credential despite failing")
				}
				return
			}
			if err != nil {
				t.Fatalf("Encrypter() unexpected error = %v", err)
			}

			if len(output.Ciphertext) != len(segments) {
				t.Errorf("Got %d ciphertext segments, want %d", len(output.Ciphertext), len(segments))
			}
			for i, cs := range output.Ciphertext {
				if cs.Index != i || cs.Count != len(segments) || cs.RunID != output.RunID {
					t.Errorf("Ciphertext segment %d has index %d count %d", i, cs.Index, cs.Count)
				}
				if _, err := os.Stat(cs.Path); err != nil {
					t.Errorf("Ciphertext segment %d missing: %v", i, err)
				}
			}
			if _, err := os.Stat(filepath.Join(ciphertextDir, ManifestFileName)); err != nil {
				t.Errorf("Manifest missing: %v", err)
			}
			if output.Manifest.FileName != "test.txt" || output.Manifest.OriginalSize != int64(len(tt.input)) {
				t.Errorf("Unexpected manifest: %+v", output.Manifest)
			}
			if output.EncryptedSize <= output.Manifest.OriginalSize {
				t.Errorf("EncryptedSize %d should include framing overhead", output.EncryptedSize)
			}

			cred, err := ReadCredential(output.CredentialPath)
			if err != nil {
				t.Fatalf("Failed to read credential: %v", err)
			}
			if cred.RunID != output.RunID {
				t.Errorf("Credential run id = %v, want %v", cred.RunID, output.RunID)
			}
		})
	}
}

func TestEncryptionService_Encrypter_BindsHeaderAsAD(t *testing.T) {
	mockEncryptor := mocks.NewMockEncryptor()
	var ads [][]byte
	mockEncryptor.EncryptChunkFunc = func(chunk, key, iv, ad []byte) ([]byte, error) {
		ads = append(ads, bytes.Clone(ad))
		return bytes.Clone(chunk), nil
	}

	svc := NewService(WithEncryptor(mockEncryptor), WithLogger(quietLogger()), WithWorkers(1))
	segments, meta := divideSource(t, []byte("Hello, World!"))

	_, err := svc.Encrypter(context.Background(), domain.EncryptInput{
		Segments:      segments,
		Source:        meta,
		CiphertextDir: t.TempDir(),
		KeyDir:        t.TempDir(),
	})
	if err != nil {
		t.Fatalf("Encrypter() error = %v", err)
	}

	// One segment plus the manifest.
	if len(ads) != 2 {
		t.Fatalf("EncryptChunk called %d times, want 2", len(ads))
	}
	if string(ads[0][:4]) != segmentMagic || string(ads[1][:4]) != manifestMagic {
		t.Errorf("Additional data is not the frame header")
	}
}

func TestEncryptionService_Encrypter_InvalidInput(t *testing.T) {
	svc := NewService(WithLogger(quietLogger()))

	t.Run("No segments", func(t *testing.T) {
		_, err := svc.Encrypter(context.Background(), domain.EncryptInput{CiphertextDir: t.TempDir(), KeyDir: t.TempDir()})
		if !errors.Is(err, domain.ErrMissingSegment) {
			t.Errorf("Encrypter() error = %v, want ErrMissingSegment", err)
		}
	})

	t.Run("Gap in segments", func(t *testing.T) {
		segments := []domain.Segment{{Index: 0}, {Index: 2}}
		_, err := svc.Encrypter(context.Background(), domain.EncryptInput{Segments: segments, CiphertextDir: t.TempDir(), KeyDir: t.TempDir()})
		if !errors.Is(err, domain.ErrMissingSegment) {
			t.Errorf("Encrypter() error = %v, want ErrMissingSegment", err)
		}
	})

	t.Run("Unsupported algorithm", func(t *testing.T) {
		segments, meta := divideSource(t, []byte("x"))
		_, err := svc.Encrypter(context.Background(), domain.EncryptInput{
			Segments:      segments,
			Source:        meta,
			CiphertextDir: t.TempDir(),
			KeyDir:        t.TempDir(),
			Options:       domain.EncryptionOptions{Algorithm: "DES"},
		})
		if !errors.Is(err, domain.ErrCrypto) {
			t.Errorf("Encrypter() error = %v, want ErrCrypto", err)
		}
	})
}
