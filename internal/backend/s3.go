package backend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Backend writes exports as objects under s3://bucket/prefix
type S3Backend struct {
	bucket string
	prefix string
	region string
	client *s3.Client
}

// NewS3Backend creates a new S3 backend
func NewS3Backend(bucket, prefix, region string) *S3Backend {
	return &S3Backend{
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		region: region,
	}
}

// Type returns the backend type
func (b *S3Backend) Type() BackendType {
	return BackendS3
}

// GetLocation returns the S3 location as s3://bucket/prefix
func (b *S3Backend) GetLocation() string {
	if b.bucket == "" {
		return ""
	}
	if b.prefix != "" {
		return fmt.Sprintf("s3://%s/%s", b.bucket, b.prefix)
	}
	return fmt.Sprintf("s3://%s", b.bucket)
}

// SetLocation accepts s3://bucket/prefix or bucket/prefix
func (b *S3Backend) SetLocation(location string) error {
	if location == "" {
		b.bucket = ""
		b.prefix = ""
		return nil
	}

	location = strings.TrimPrefix(location, "s3://")

	parts := strings.SplitN(location, "/", 2)
	b.bucket = parts[0]
	if len(parts) > 1 {
		b.prefix = strings.Trim(parts[1], "/")
	} else {
		b.prefix = ""
	}

	if b.bucket == "" {
		return fmt.Errorf("invalid S3 location: bucket name required")
	}
	return nil
}

// objectKey returns the full key for a named export
func (b *S3Backend) objectKey(name string) (string, error) {
	if name == "" || strings.Contains(name, "/") {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if b.prefix != "" {
		return path.Join(b.prefix, name), nil
	}
	return name, nil
}

// Init loads the AWS credential chain and checks the bucket is reachable
func (b *S3Backend) Init(ctx context.Context) error {
	if b.bucket == "" {
		return ErrNotConfigured
	}
	if b.client != nil {
		return nil
	}

	var opts []func(*config.LoadOptions) error
	if b.region != "" {
		opts = append(opts, config.WithRegion(b.region))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(cfg)

	_, err = client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(b.bucket),
	})
	if err != nil {
		return fmt.Errorf("failed to access bucket %s: %w", b.bucket, err)
	}

	b.client = client
	return nil
}

// Close releases resources (no-op for S3)
func (b *S3Backend) Close() error {
	return nil
}

// Write uploads one export object
func (b *S3Backend) Write(ctx context.Context, name string, data []byte) error {
	if b.client == nil {
		return ErrNotConfigured
	}

	key, err := b.objectKey(name)
	if err != nil {
		return err
	}

	_, err = b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(b.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(ContentType),
	})
	if err != nil {
		return fmt.Errorf("S3 put failed: %w", err)
	}
	return nil
}

// Read downloads one export object
func (b *S3Backend) Read(ctx context.Context, name string) ([]byte, error) {
	if b.client == nil {
		return nil, ErrNotConfigured
	}

	key, err := b.objectKey(name)
	if err != nil {
		return nil, err
	}

	result, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, ErrNotFound
		}
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("S3 get failed: %w", err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("read body failed: %w", err)
	}
	return data, nil
}

// Exists returns true if the export object exists
func (b *S3Backend) Exists(ctx context.Context, name string) bool {
	if b.client == nil {
		return false
	}

	key, err := b.objectKey(name)
	if err != nil {
		return false
	}

	_, err = b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	return err == nil
}
