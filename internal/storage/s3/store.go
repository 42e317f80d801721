package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"secfile/internal/core/domain"
	"secfile/internal/storage"
)

const ciphertextExt = ".enc"

// API is the subset of the S3 client the store uses.
type API interface {
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	CreateBucket(ctx context.Context, params *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

type Store struct {
	client API
	config storage.Config
}

var _ storage.Store = (*Store)(nil)

func New(client API, config storage.Config) *Store {
	if config.Transfers <= 0 {
		config.Transfers = DefaultConfig.Transfers
	}
	return &Store{
		client: client,
		config: config,
	}
}

func (s *Store) basePrefix() string {
	prefix := strings.Trim(s.config.RunPrefix, "/")
	if prefix == "" {
		return ""
	}
	return prefix + "/"
}

func (s *Store) runPrefix(runID uuid.UUID) string {
	return s.basePrefix() + runID.String() + "/"
}

// PutRun uploads every sealed file in ciphertextDir under the run's prefix.
func (s *Store) PutRun(ctx context.Context, runID uuid.UUID, ciphertextDir string) (storage.RunInfo, error) {
	entries, err := os.ReadDir(ciphertextDir)
	if err != nil {
		return storage.RunInfo{}, fmt.Errorf("failed to read ciphertext dir: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.Type().IsRegular() && strings.EqualFold(filepath.Ext(entry.Name()), ciphertextExt) {
			names = append(names, entry.Name())
		}
	}
	if len(names) == 0 {
		return storage.RunInfo{}, fmt.Errorf("%w: no ciphertext in %s", domain.ErrMissingSegment, ciphertextDir)
	}

	var size atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.Transfers)

	for _, name := range names {
		g.Go(func() error {
			n, err := s.putObject(gctx, s.runPrefix(runID)+name, filepath.Join(ciphertextDir, name))
			if err != nil {
				return err
			}
			size.Add(n)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return storage.RunInfo{}, err
	}

	return storage.RunInfo{
		RunID:     runID,
		Objects:   len(names),
		Size:      size.Load(),
		UpdatedAt: time.Now().UTC(),
	}, nil
}

func (s *Store) putObject(ctx context.Context, key, filePath string) (int64, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return 0, fmt.Errorf("failed to open %s: %w", filepath.Base(filePath), err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("failed to stat %s: %w", filepath.Base(filePath), err)
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.config.BucketName),
		Key:           aws.String(key),
		Body:          f,
		ContentLength: aws.Int64(info.Size()),
		ContentType:   aws.String("application/octet-stream"),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to store %s: %w", key, err)
	}
	return info.Size(), nil
}

// GetRun downloads every object of the run into ciphertextDir.
func (s *Store) GetRun(ctx context.Context, runID uuid.UUID, ciphertextDir string) (storage.RunInfo, error) {
	objects, err := s.listObjects(ctx, s.runPrefix(runID))
	if err != nil {
		return storage.RunInfo{}, err
	}
	if len(objects) == 0 {
		return storage.RunInfo{}, fmt.Errorf("%w: %s", storage.ErrRunNotFound, runID)
	}

	if err := os.MkdirAll(ciphertextDir, 0o700); err != nil {
		return storage.RunInfo{}, fmt.Errorf("failed to create output directory: %w", err)
	}

	info := storage.RunInfo{RunID: runID, Objects: len(objects)}
	var size atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.Transfers)

	for _, obj := range objects {
		name := path.Base(obj.key)
		if name != filepath.Base(name) || !strings.EqualFold(filepath.Ext(name), ciphertextExt) {
			return storage.RunInfo{}, fmt.Errorf("%w: unexpected object %s", domain.ErrCorruptSegment, obj.key)
		}
		if obj.modified.After(info.UpdatedAt) {
			info.UpdatedAt = obj.modified
		}
	}

	for _, obj := range objects {
		g.Go(func() error {
			n, err := s.getObject(gctx, obj.key, filepath.Join(ciphertextDir, path.Base(obj.key)))
			if err != nil {
				return err
			}
			size.Add(n)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return storage.RunInfo{}, err
	}

	info.Size = size.Load()
	return info, nil
}

func (s *Store) getObject(ctx context.Context, key, filePath string) (int64, error) {
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.config.BucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to get %s: %w", key, err)
	}
	defer result.Body.Close()

	f, err := os.OpenFile(filePath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return 0, fmt.Errorf("failed to create %s: %w", filepath.Base(filePath), err)
	}

	n, err := io.Copy(f, result.Body)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return n, nil
}

// ListRuns groups stored objects by run id.
func (s *Store) ListRuns(ctx context.Context) ([]storage.RunInfo, error) {
	prefix := s.basePrefix()
	objects, err := s.listObjects(ctx, prefix)
	if err != nil {
		return nil, err
	}

	byRun := make(map[uuid.UUID]*storage.RunInfo)
	var order []uuid.UUID
	for _, obj := range objects {
		runPart, _, ok := strings.Cut(strings.TrimPrefix(obj.key, prefix), "/")
		if !ok {
			continue
		}
		runID, err := uuid.Parse(runPart)
		if err != nil {
			continue
		}
		info, seen := byRun[runID]
		if !seen {
			info = &storage.RunInfo{RunID: runID}
			byRun[runID] = info
			order = append(order, runID)
		}
		info.Objects++
		info.Size += obj.size
		if obj.modified.After(info.UpdatedAt) {
			info.UpdatedAt = obj.modified
		}
	}

	runs := make([]storage.RunInfo, 0, len(order))
	for _, id := range order {
		runs = append(runs, *byRun[id])
	}
	return runs, nil
}

func (s *Store) DeleteRun(ctx context.Context, runID uuid.UUID) error {
	objects, err := s.listObjects(ctx, s.runPrefix(runID))
	if err != nil {
		return err
	}
	if len(objects) == 0 {
		return fmt.Errorf("%w: %s", storage.ErrRunNotFound, runID)
	}

	var errs []error
	for _, obj := range objects {
		_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(s.config.BucketName),
			Key:    aws.String(obj.key),
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to delete %s: %w", obj.key, err))
		}
	}
	return errors.Join(errs...)
}

type object struct {
	key      string
	size     int64
	modified time.Time
}

func (s *Store) listObjects(ctx context.Context, prefix string) ([]object, error) {
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.config.BucketName),
		Prefix: aws.String(prefix),
	})

	var objects []object
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list %s: %w", prefix, err)
		}
		for _, obj := range page.Contents {
			objects = append(objects, object{
				key:      aws.ToString(obj.Key),
				size:     aws.ToInt64(obj.Size),
				modified: aws.ToTime(obj.LastModified),
			})
		}
	}
	return objects, nil
}

// GetConfig returns the store configuration
func (s *Store) GetConfig() storage.Config {
	return s.config
}
