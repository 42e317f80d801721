// Package app holds the wiring shared by the secfile binaries.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/sirupsen/logrus"

	"secfile/internal/config"
	"secfile/internal/core/domain"
	"secfile/internal/device"
	"secfile/internal/encryption/service"
	"secfile/internal/logging"
	"secfile/internal/pipeline"
	s3store "secfile/internal/storage/s3"
)

// ErrNoBucket is returned by the storage commands when no bucket is configured.
var ErrNoBucket = errors.New("no bucket configured (set SECFILE_BUCKET or AWS_BUCKET_NAME)")

// Setup loads configuration, applies overrides (command-line flags), validates
// the result and builds the logger.
func Setup(envFile string, overrides ...func(*config.Config) error) (config.Config, *logrus.Logger, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return config.Config{}, nil, err
	}
	for _, override := range overrides {
		if err := override(&cfg); err != nil {
			return config.Config{}, nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, nil, err
	}
	log, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, log, nil
}

// Workers resolves the configured worker count, sizing it from the host when
// unset.
func Workers(cfg config.Config, fp *device.Fingerprinter, log logrus.FieldLogger) int {
	if cfg.Workers > 0 {
		return cfg.Workers
	}
	res, err := fp.GetResources()
	if err != nil {
		log.WithError(err).Debug("hardware inventory incomplete, using runtime defaults")
	}
	return res.Workers(cfg.ChunkSize)
}

// NewPipeline builds the protect/recover pipeline from cfg.
func NewPipeline(cfg config.Config, log *logrus.Logger) (*pipeline.Pipeline, error) {
	fp := device.New()
	workers := Workers(cfg, fp, log)

	svc := service.NewService(
		service.WithWorkers(workers),
		service.WithIssuer(fp.IssuerID()),
		service.WithLogger(log),
	)

	log.WithFields(logrus.Fields{
		"workers":   workers,
		"algorithm": cfg.Algorithm,
		"chunk":     cfg.ChunkSize,
	}).Debug("pipeline configured")

	return pipeline.New(pipeline.Options{
		WorkDir:      cfg.WorkDir,
		ChunkSize:    cfg.ChunkSize,
		Algorithm:    domain.Algorithm(cfg.Algorithm),
		Workers:      workers,
		AllowEmpty:   cfg.AllowEmpty,
		DeleteSource: cfg.DeleteSource,
	}, svc, log)
}

// LoadAWS returns the default AWS configuration pinned to cfg.Region.
func LoadAWS(ctx context.Context, cfg config.Config) (aws.Config, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return aws.Config{}, fmt.Errorf("unable to load SDK config: %w", err)
	}
	return awsCfg, nil
}

// NewStore connects to the configured ciphertext bucket.
func NewStore(ctx context.Context, cfg config.Config) (*s3store.Store, error) {
	if cfg.Bucket == "" {
		return nil, ErrNoBucket
	}
	awsCfg, err := LoadAWS(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return s3store.NewClient(ctx, awsCfg, cfg.Bucket,
		s3store.WithRunPrefix(cfg.RunPrefix),
		s3store.WithTransfers(cfg.Workers),
	)
}
