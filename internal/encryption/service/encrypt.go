package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"secfile/internal/core/domain"
	"secfile/internal/core/ports"
	"secfile/internal/encryption/chunking"
)

// Encrypter seals every plaintext segment under a fresh per-run key and writes
// the matching credential. On failure nothing it wrote is left behind.
func (s *EncryptionService) Encrypter(ctx context.Context, input domain.EncryptInput) (out *domain.EncryptOutput, err error) {
	enc, err := s.encryptorFor(input.Options.Algorithm)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrCrypto, err)
	}

	segments, err := orderedSegments(input.Segments)
	if err != nil {
		return nil, err
	}

	// Generate encryption key
	master, err := enc.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to generate key: %w", domain.ErrCrypto, err)
	}

	runID := input.RunID
	if runID == uuid.Nil {
		runID = uuid.New()
	}
	keys, err := deriveKeys(master, runID, enc.KeySize())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrCrypto, err)
	}

	if err := os.MkdirAll(input.CiphertextDir, 0o700); err != nil {
		return nil, fmt.Errorf("%w: create ciphertext dir: %w", domain.ErrIO, err)
	}

	var written []string
	defer func() {
		if err != nil {
			for _, path := range written {
				os.Remove(path) //nolint:errcheck // best-effort cleanup
			}
		}
	}()

	count := len(segments)
	sealed := make([]domain.CiphertextSegment, count)
	var encryptedSize atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workerLimit(input.Options.Workers))

	for i, seg := range segments {
		sealed[i] = domain.CiphertextSegment{
			Index: seg.Index,
			Count: count,
			RunID: runID,
			Path:  filepath.Join(input.CiphertextDir, CiphertextName(seg.Index)),
		}
		written = append(written, sealed[i].Path)

		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			n, err := s.sealSegment(enc, keys.segment, runID, seg, count, sealed[i].Path)
			if err != nil {
				return err
			}
			encryptedSize.Add(n)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	checksum := input.Source.Checksum
	if checksum == "" {
		if checksum, err = checksumSegments(segments); err != nil {
			return nil, err
		}
	}

	manifest := domain.Manifest{
		RunID:        runID,
		Algorithm:    enc.Algorithm(),
		FileName:     input.Source.FileName,
		OriginalSize: totalSize(segments),
		ChunkSize:    input.Options.ChunkSize,
		SegmentCount: count,
		Checksum:     checksum,
		CreatedAt:    time.Now().UTC(),
	}
	if manifest.ChunkSize <= 0 {
		manifest.ChunkSize = chunking.DefaultChunkSize
	}

	manifestPath := filepath.Join(input.CiphertextDir, ManifestFileName)
	written = append(written, manifestPath)
	n, err := s.sealManifest(enc, keys.manifest, manifest, manifestPath)
	if err != nil {
		return nil, err
	}
	encryptedSize.Add(n)

	credentialPath, err := WriteCredential(input.KeyDir, domain.Credential{
		RunID:     runID,
		Algorithm: enc.Algorithm(),
		Key:       master,
		CreatedAt: manifest.CreatedAt,
		Issuer:    s.issuer,
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"run_id":    runID,
		"algorithm": enc.Algorithm(),
		"segments":  count,
		"bytes":     manifest.OriginalSize,
	}).Debug("encrypted segments")

	return &domain.EncryptOutput{
		RunID:          runID,
		CredentialPath: credentialPath,
		Ciphertext:     sealed,
		Manifest:       manifest,
		EncryptedSize:  encryptedSize.Load(),
	}, nil
}

func (s *EncryptionService) sealSegment(enc ports.Encryptor, key []byte, runID uuid.UUID, seg domain.Segment, count int, outPath string) (int64, error) {
	data, err := os.ReadFile(seg.Path)
	if err != nil {
		return 0, fmt.Errorf("%w: read segment %d: %w", domain.ErrIO, seg.Index, err)
	}

	// Generate new IV for each segment
	iv, err := enc.GenerateIV()
	if err != nil {
		return 0, fmt.Errorf("%w: failed to generate IV: %w", domain.ErrCrypto, err)
	}

	header := frameHeader{
		magic:     segmentMagic,
		algorithm: enc.Algorithm(),
		runID:     runID,
		index:     uint32(seg.Index),
		count:     uint32(count),
		nonce:     iv,
	}.marshal()

	encrypted, err := enc.EncryptChunk(data, key, iv, header)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to encrypt segment %d: %w", domain.ErrCrypto, seg.Index, err)
	}

	frame := append(header, encrypted...)
	if err := os.WriteFile(outPath, frame, 0o600); err != nil {
		return 0, fmt.Errorf("%w: write ciphertext %d: %w", domain.ErrIO, seg.Index, err)
	}
	return int64(len(frame)), nil
}

func (s *EncryptionService) sealManifest(enc ports.Encryptor, key []byte, m domain.Manifest, outPath string) (int64, error) {
	data, err := marshalManifest(m)
	if err != nil {
		return 0, err
	}

	iv, err := enc.GenerateIV()
	if err != nil {
		return 0, fmt.Errorf("%w: failed to generate IV: %w", domain.ErrCrypto, err)
	}

	header := frameHeader{
		magic:     manifestMagic,
		algorithm: enc.Algorithm(),
		runID:     m.RunID,
		nonce:     iv,
	}.marshal()

	encrypted, err := enc.EncryptChunk(data, key, iv, header)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to encrypt manifest: %w", domain.ErrCrypto, err)
	}

	frame := append(header, encrypted...)
	if err := os.WriteFile(outPath, frame, 0o600); err != nil {
		return 0, fmt.Errorf("%w: write manifest: %w", domain.ErrIO, err)
	}
	return int64(len(frame)), nil
}

// orderedSegments sorts segments by index and requires the indices 0..n-1.
func orderedSegments(in []domain.Segment) ([]domain.Segment, error) {
	if len(in) == 0 {
		return nil, fmt.Errorf("%w: no segments to encrypt", domain.ErrMissingSegment)
	}
	segments := append([]domain.Segment(nil), in...)
	sort.Slice(segments, func(i, j int) bool { return segments[i].Index < segments[j].Index })
	for i, seg := range segments {
		if seg.Index != i {
			return nil, fmt.Errorf("%w: expected segment %d, got %d", domain.ErrMissingSegment, i, seg.Index)
		}
	}
	return segments, nil
}

func checksumSegments(segments []domain.Segment) (string, error) {
	hasher := sha256.New()
	for _, seg := range segments {
		f, err := os.Open(seg.Path)
		if err != nil {
			return "", fmt.Errorf("%w: open segment %d: %w", domain.ErrIO, seg.Index, err)
		}
		_, err = io.Copy(hasher, f)
		f.Close()
		if err != nil {
			return "", fmt.Errorf("%w: hash segment %d: %w", domain.ErrIO, seg.Index, err)
		}
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

func totalSize(segments []domain.Segment) int64 {
	var n int64
	for _, seg := range segments {
		n += seg.Size
	}
	return n
}
