package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/book-expert/logger"

	"github.com/book-expert/audiobook-service/internal/config"
)

// s3SetupTimeout bounds the bucket existence check at startup.
const s3SetupTimeout = 10 * time.Second

// S3Store implements core.BlobStore on an S3-compatible object store.
type S3Store struct {
	client *s3.Client
	bucket string
	log    *logger.Logger
}

// NewS3Store creates an S3-backed blob store and verifies the configured
// bucket is reachable.
func NewS3Store(cfg config.StorageConfig, log *logger.Logger) (*S3Store, error) {
	awsCfg, err := buildAWSConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
			o.UsePathStyle = true
		}
	})

	store := &S3Store{
		client: client,
		bucket: cfg.S3Bucket,
		log:    log,
	}

	ctx, cancel := context.WithTimeout(context.Background(), s3SetupTimeout)
	defer cancel()

	_, err = client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(cfg.S3Bucket)})
	if err != nil {
		return nil, fmt.Errorf("failed to verify bucket '%s': %w", cfg.S3Bucket, err)
	}

	log.Info("S3 blob store initialized: bucket %s", cfg.S3Bucket)

	return store, nil
}

// buildAWSConfig assembles the AWS SDK configuration, preferring static
// credentials from the service configuration over the default chain.
func buildAWSConfig(cfg config.StorageConfig) (aws.Config, error) {
	options := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.S3Region),
	}

	if cfg.S3AccessKey != "" {
		options = append(options, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3AccessKey, cfg.S3SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), options...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	return awsCfg, nil
}

// Put stores a blob in the bucket.
func (s *S3Store) Put(ctx context.Context, key string, data []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return fmt.Errorf("failed to put object '%s' to bucket '%s': %w", key, s.bucket, err)
	}

	return nil
}

// Get retrieves a blob from the bucket. A missing object is reported as
// ErrNotFound.
func (s *S3Store) Get(ctx context.Context, key string) ([]byte, error) {
	output, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noSuchKey *s3types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}

		return nil, fmt.Errorf("failed to get object '%s' from bucket '%s': %w", key, s.bucket, err)
	}

	defer func() {
		closeErr := output.Body.Close()
		if closeErr != nil {
			s.log.Warn("Failed to close S3 object body for '%s': %v", key, closeErr)
		}
	}()

	data, err := io.ReadAll(output.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read object '%s': %w", key, err)
	}

	return data, nil
}

// Delete removes a blob from the bucket. S3 deletes are idempotent, so an
// absent object is not an error.
func (s *S3Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object '%s' from bucket '%s': %w", key, s.bucket, err)
	}

	return nil
}
