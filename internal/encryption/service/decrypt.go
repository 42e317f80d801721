package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"secfile/internal/core/domain"
	"secfile/internal/core/ports"
	"secfile/internal/encryption/chunking"
)

// Decrypter authenticates the credential against the sealed manifest, checks
// that the ciphertext set is complete, and only then decrypts every segment
// into input.PlaintextDir. Segment order comes from the sealed headers, never
// from file names or directory listing order.
func (s *EncryptionService) Decrypter(ctx context.Context, input domain.DecryptInput) (out *domain.DecryptOutput, err error) {
	cred, err := ReadCredential(input.CredentialPath)
	if err != nil {
		return nil, err
	}

	enc, err := s.encryptorFor(cred.Algorithm)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidCredential, err)
	}
	if len(cred.Key) != enc.KeySize() {
		return nil, fmt.Errorf("%w: key is %d bytes, want %d", domain.ErrInvalidCredential, len(cred.Key), enc.KeySize())
	}

	keys, err := deriveKeys(cred.Key, cred.RunID, enc.KeySize())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrCrypto, err)
	}

	manifest, err := openManifest(enc, keys.manifest, cred, filepath.Join(input.CiphertextDir, ManifestFileName))
	if err != nil {
		return nil, err
	}

	sealed, err := collectCiphertext(input.CiphertextDir, manifest)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(input.PlaintextDir, 0o700); err != nil {
		return nil, fmt.Errorf("%w: create plaintext dir: %w", domain.ErrIO, err)
	}

	segments := make([]domain.Segment, len(sealed))
	defer func() {
		if err != nil {
			for _, seg := range segments {
				if seg.Path != "" {
					os.Remove(seg.Path) //nolint:errcheck // best-effort cleanup
				}
			}
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workerLimit(input.Workers))

	for i, cs := range sealed {
		outPath := filepath.Join(input.PlaintextDir, chunking.SegmentName(cs.Index))
		segments[i].Path = outPath

		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			n, err := openSegment(enc, keys.segment, cs, outPath)
			if err != nil {
				return err
			}
			segments[i] = domain.Segment{Index: cs.Index, Size: n, Path: outPath}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"run_id":   manifest.RunID,
		"segments": len(segments),
	}).Debug("decrypted segments")

	return &domain.DecryptOutput{Segments: segments, Manifest: manifest}, nil
}

func openManifest(enc ports.Encryptor, key []byte, cred domain.Credential, path string) (domain.Manifest, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return domain.Manifest{}, fmt.Errorf("%w: %s not found", domain.ErrMissingSegment, ManifestFileName)
	}
	if err != nil {
		return domain.Manifest{}, fmt.Errorf("%w: read manifest: %w", domain.ErrIO, err)
	}

	h, headerLen, err := parseFrameHeader(data, manifestMagic)
	if err != nil {
		return domain.Manifest{}, fmt.Errorf("manifest: %w", err)
	}
	if h.runID != cred.RunID || h.algorithm != cred.Algorithm {
		return domain.Manifest{}, fmt.Errorf("%w: credential belongs to run %s, ciphertext to run %s",
			domain.ErrInvalidCredential, cred.RunID, h.runID)
	}

	plain, err := enc.DecryptChunk(data[headerLen:], key, h.nonce, data[:headerLen])
	if err != nil {
		return domain.Manifest{}, fmt.Errorf("%w: manifest did not authenticate: %w", domain.ErrInvalidCredential, err)
	}

	m, err := unmarshalManifest(plain)
	if err != nil {
		return domain.Manifest{}, err
	}
	if m.RunID != cred.RunID {
		return domain.Manifest{}, fmt.Errorf("%w: manifest run id mismatch", domain.ErrCorruptSegment)
	}
	return m, nil
}

// collectCiphertext reads the header of every sealed segment in dir and
// returns them ordered by index. Foreign or duplicate segments are corrupt; an
// incomplete sequence is missing.
func collectCiphertext(dir string, m domain.Manifest) ([]domain.CiphertextSegment, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: read ciphertext dir: %w", domain.ErrIO, err)
	}

	seen := make(map[int]string)
	var sealed []domain.CiphertextSegment
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || name == ManifestFileName || !strings.EqualFold(filepath.Ext(name), ciphertextExt) {
			continue
		}

		path := filepath.Join(dir, name)
		h, err := readFrameHeader(path, segmentMagic)
		if err != nil {
			return nil, err
		}
		if h.runID != m.RunID {
			return nil, fmt.Errorf("%w: %s belongs to run %s", domain.ErrCorruptSegment, name, h.runID)
		}
		if h.algorithm != m.Algorithm {
			return nil, fmt.Errorf("%w: %s sealed with %s", domain.ErrCorruptSegment, name, h.algorithm)
		}
		if int(h.count) != m.SegmentCount {
			return nil, fmt.Errorf("%w: %s claims %d segments, manifest has %d", domain.ErrCorruptSegment, name, h.count, m.SegmentCount)
		}
		index := int(h.index)
		if prev, ok := seen[index]; ok {
			return nil, fmt.Errorf("%w: %s and %s both hold segment %d", domain.ErrCorruptSegment, prev, name, index)
		}
		seen[index] = name

		sealed = append(sealed, domain.CiphertextSegment{
			Index: index,
			Count: int(h.count),
			RunID: h.runID,
			Path:  path,
		})
	}

	sort.Slice(sealed, func(i, j int) bool { return sealed[i].Index < sealed[j].Index })
	for i := 0; i < m.SegmentCount; i++ {
		if i >= len(sealed) || sealed[i].Index != i {
			return nil, fmt.Errorf("%w: segment %d of %d", domain.ErrMissingSegment, i, m.SegmentCount)
		}
	}
	if len(sealed) != m.SegmentCount {
		return nil, fmt.Errorf("%w: found %d segments, manifest has %d", domain.ErrCorruptSegment, len(sealed), m.SegmentCount)
	}
	return sealed, nil
}

func openSegment(enc ports.Encryptor, key []byte, cs domain.CiphertextSegment, outPath string) (int64, error) {
	data, err := os.ReadFile(cs.Path)
	if err != nil {
		return 0, fmt.Errorf("%w: read ciphertext %d: %w", domain.ErrIO, cs.Index, err)
	}

	h, headerLen, err := parseFrameHeader(data, segmentMagic)
	if err != nil {
		return 0, fmt.Errorf("segment %d: %w", cs.Index, err)
	}
	if int(h.index) != cs.Index || h.runID != cs.RunID {
		return 0, fmt.Errorf("%w: %s changed while decrypting", domain.ErrCorruptSegment, filepath.Base(cs.Path))
	}

	plain, err := enc.DecryptChunk(data[headerLen:], key, h.nonce, data[:headerLen])
	if err != nil {
		return 0, fmt.Errorf("%w: segment %d did not authenticate: %w", domain.ErrInvalidCredential, cs.Index, err)
	}

	if err := os.WriteFile(outPath, plain, 0o600); err != nil {
		return 0, fmt.Errorf("%w: write plaintext %d: %w", domain.ErrIO, cs.Index, err)
	}
	return int64(len(plain)), nil
}
