// Package pipeline wires the Segmenter, Encryptor, Decryptor and Restorer
// into the protect and recover flows. Every call runs in its own workspace.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"secfile/internal/core/domain"
	"secfile/internal/core/ports"
	"secfile/internal/encryption/chunking"
	"secfile/internal/encryption/restore"
	"secfile/internal/fileutil"
	"secfile/internal/workspace"
)

type Options struct {
	WorkDir      string
	ChunkSize    int
	Algorithm    domain.Algorithm
	Workers      int
	AllowEmpty   bool
	DeleteSource bool
}

type Pipeline struct {
	opts     Options
	divider  *chunking.Divider
	service  ports.SegmentService
	restorer *restore.Restorer
	log      logrus.FieldLogger
}

type ProtectResult struct {
	RunID          uuid.UUID
	Workspace      string
	CiphertextDir  string
	CredentialPath string
	FileName       string
	Segments       int
	OriginalSize   int64
	EncryptedSize  int64
}

type RecoverResult struct {
	RunID     uuid.UUID
	Workspace string
	File      domain.RestoredFile
}

func New(opts Options, service ports.SegmentService, log logrus.FieldLogger) (*Pipeline, error) {
	if opts.WorkDir == "" {
		return nil, errors.New("work dir is required")
	}
	if opts.ChunkSize == 0 {
		opts.ChunkSize = chunking.DefaultChunkSize
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	divider, err := chunking.NewDivider(opts.ChunkSize, opts.AllowEmpty, log)
	if err != nil {
		return nil, err
	}

	return &Pipeline{
		opts:     opts,
		divider:  divider,
		service:  service,
		restorer: restore.NewRestorer(log),
		log:      log,
	}, nil
}

// Protect divides sourcePath, seals the segments and writes the credential.
// The ciphertext and credential are left in the run's workspace; on failure
// the whole workspace is removed.
func (p *Pipeline) Protect(ctx context.Context, sourcePath string) (result *ProtectResult, err error) {
	if sourcePath == "" {
		return nil, domain.ErrNoFile
	}

	ws, err := workspace.New(p.opts.WorkDir)
	if err != nil {
		return nil, err
	}
	log := p.log.WithField("run_id", ws.RunID)
	defer p.discardOnError(ws, log, &err)

	log.WithField("stage", "divide").Info("dividing source")
	segments, source, err := p.divider.Divide(ctx, sourcePath, ws.Segments())
	if err != nil {
		return nil, err
	}

	log.WithFields(logrus.Fields{"stage": "encrypt", "segments": len(segments)}).Info("encrypting segments")
	out, err := p.service.Encrypter(ctx, domain.EncryptInput{
		RunID:         ws.RunID,
		Segments:      segments,
		Source:        source,
		CiphertextDir: ws.Ciphertext(),
		KeyDir:        ws.Key(),
		Options: domain.EncryptionOptions{
			ChunkSize: p.opts.ChunkSize,
			Algorithm: p.opts.Algorithm,
			Workers:   p.opts.Workers,
		},
	})
	if err != nil {
		return nil, err
	}

	if err := ws.ClearScratch(); err != nil {
		return nil, err
	}

	// Nothing below may fail: the source goes only once the run is final.
	if p.opts.DeleteSource {
		if err := os.Remove(sourcePath); err != nil {
			log.WithError(err).Warn("failed to delete source")
		}
	}

	log.WithFields(logrus.Fields{
		"stage":    "done",
		"segments": len(out.Ciphertext),
		"bytes":    source.Size,
	}).Info("protected file")

	return &ProtectResult{
		RunID:          out.RunID,
		Workspace:      ws.Root,
		CiphertextDir:  ws.Ciphertext(),
		CredentialPath: out.CredentialPath,
		FileName:       source.FileName,
		Segments:       len(out.Ciphertext),
		OriginalSize:   source.Size,
		EncryptedSize:  out.EncryptedSize,
	}, nil
}

// Recover decrypts the ciphertext in ciphertextDir with the credential at
// credentialPath and rebuilds the original file in a fresh workspace.
func (p *Pipeline) Recover(ctx context.Context, ciphertextDir, credentialPath string) (result *RecoverResult, err error) {
	if credentialPath == "" {
		return nil, domain.ErrNoFile
	}
	if !domain.ValidCredentialName(credentialPath) {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidFormat, filepath.Base(credentialPath))
	}

	ws, err := workspace.New(p.opts.WorkDir)
	if err != nil {
		return nil, err
	}
	log := p.log.WithField("run_id", ws.RunID)
	defer p.discardOnError(ws, log, &err)

	staged, err := stageCredential(credentialPath, ws.Key())
	if err != nil {
		return nil, err
	}

	log.WithField("stage", "decrypt").Info("decrypting segments")
	out, err := p.service.Decrypter(ctx, domain.DecryptInput{
		CiphertextDir:  ciphertextDir,
		CredentialPath: staged,
		PlaintextDir:   ws.Plaintext(),
		Workers:        p.opts.Workers,
	})
	if err != nil {
		return nil, err
	}

	if err := workspace.EmptyDir(ws.Key()); err != nil {
		return nil, err
	}

	log.WithFields(logrus.Fields{"stage": "restore", "segments": len(out.Segments)}).Info("restoring file")
	restored, err := p.restorer.Restore(ctx, out.Segments, out.Manifest, ws.Restored())
	if err != nil {
		return nil, err
	}

	if err := ws.ClearScratch(); err != nil {
		return nil, err
	}

	log.WithFields(logrus.Fields{
		"stage": "done",
		"file":  restored.FileName,
		"bytes": restored.Size,
	}).Info("recovered file")

	return &RecoverResult{RunID: out.Manifest.RunID, Workspace: ws.Root, File: *restored}, nil
}

func (p *Pipeline) discardOnError(ws *workspace.Workspace, log logrus.FieldLogger, errp *error) {
	if *errp == nil {
		return
	}
	if err := ws.Discard(); err != nil {
		log.WithError(err).Warn("failed to discard workspace")
	}
	log.WithError(*errp).Debug("run discarded")
}

// stageCredential copies the supplied credential into the run's key folder.
func stageCredential(src, keyDir string) (string, error) {
	data, err := os.ReadFile(src)
	if err != nil {
		return "", fmt.Errorf("%w: read credential: %w", domain.ErrIO, err)
	}
	dst := filepath.Join(keyDir, domain.CredentialDownloadName)
	if err := fileutil.WriteFileAtomic(dst, data, 0o600); err != nil {
		return "", fmt.Errorf("%w: stage credential: %w", domain.ErrIO, err)
	}
	return dst, nil
}
