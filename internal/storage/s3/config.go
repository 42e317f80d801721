package s3

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"secfile/internal/storage"
)

// DefaultConfig provides default configuration values
var DefaultConfig = storage.Config{
	BucketName: "secfile-ciphertext",
	Region:     "us-east-1",
	RunPrefix:  "runs/",
	Transfers:  4,
}

// NewClient creates a new S3 store with the given configuration
func NewClient(ctx context.Context, cfg aws.Config, bucket string, opts ...func(*storage.Config)) (*Store, error) {
	client := s3.NewFromConfig(cfg)

	// Verify bucket exists and is accessible
	_, err := client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(bucket),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to access bucket %s: %w", bucket, err)
	}

	config := DefaultConfig
	config.BucketName = bucket
	config.Region = cfg.Region
	for _, opt := range opts {
		opt(&config)
	}

	return New(client, config), nil
}

// WithRunPrefix sets the key prefix under which runs are stored
func WithRunPrefix(prefix string) func(*storage.Config) {
	return func(c *storage.Config) {
		if prefix != "" {
			c.RunPrefix = prefix
		}
	}
}

// WithTransfers sets how many objects are moved concurrently
func WithTransfers(n int) func(*storage.Config) {
	return func(c *storage.Config) {
		if n > 0 {
			c.Transfers = n
		}
	}
}

// EnsureBucket creates the bucket unless it already exists. It reports
// whether a bucket was created.
func EnsureBucket(ctx context.Context, client API, bucket, region string) (bool, error) {
	if _, err := client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucket)}); err == nil {
		return false, nil
	}

	input := &s3.CreateBucketInput{
		Bucket: aws.String(bucket),
	}
	// Only add location constraint if not in us-east-1
	if region != "" && region != "us-east-1" {
		input.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(region),
		}
	}

	if _, err := client.CreateBucket(ctx, input); err != nil {
		var owned *types.BucketAlreadyOwnedByYou
		if errors.As(err, &owned) {
			return false, nil
		}
		return false, fmt.Errorf("failed to create bucket %s: %w", bucket, err)
	}
	return true, nil
}
