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
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"docstream-platform/internal/config"
)

// ErrObjectNotFound is returned when the addressed key does not exist. This
// is the only non-retryable gateway failure.
var ErrObjectNotFound = errors.New("storage: object not found")

// ObjectStore issues presigned upload/download URLs and downloads raw bytes
// from an S3-compatible object store. Keys are tenant-isolated; the bucket is
// shared across tenants.
type ObjectStore struct {
	client   *s3.Client
	presign  *s3.PresignClient
	bucket   string
	maxBytes int64
}

// GenerateKey returns the deterministic object key for a document version.
// Pure function: same inputs always yield the same key.
func GenerateKey(tenantID, documentID string, versionNumber int) string {
	return fmt.Sprintf("tenants/%s/docs/%s/v%d/original", tenantID, documentID, versionNumber)
}

// NewObjectStore builds an S3 client for the configured endpoint. The bucket
// must already exist; access is verified up front.
func NewObjectStore(ctx context.Context, cfg *config.Config) (*ObjectStore, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.ObjectStoreRegion),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.ObjectStoreAccessKey,
			cfg.ObjectStoreSecret,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load object store config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.ObjectStoreEndpoint)
		o.UsePathStyle = true
	})

	if _, err := client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(cfg.ObjectStoreBucket),
	}); err != nil {
		return nil, fmt.Errorf("failed to access bucket %q: %w", cfg.ObjectStoreBucket, err)
	}

	return &ObjectStore{
		client:   client,
		presign:  s3.NewPresignClient(client),
		bucket:   cfg.ObjectStoreBucket,
		maxBytes: cfg.MaxFileSizeBytes,
	}, nil
}

// GetUploadURL returns a time-limited PUT URL bound to the exact content type.
func (o *ObjectStore) GetUploadURL(ctx context.Context, key, contentType string, ttl time.Duration) (string, error) {
	req, err := o.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(o.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", fmt.Errorf("failed to presign upload: %w", err)
	}
	return req.URL, nil
}

// GetDownloadURL returns a time-limited GET URL for an object.
func (o *ObjectStore) GetDownloadURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	req, err := o.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(o.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", fmt.Errorf("failed to presign download: %w", err)
	}
	return req.URL, nil
}

// Download fetches an object's bytes, bounded by the configured size limit.
func (o *ObjectStore) Download(ctx context.Context, key string) ([]byte, error) {
	out, err := o.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(o.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("failed to download %s: %w", key, err)
	}
	defer out.Body.Close()

	var buf bytes.Buffer
	limit := o.maxBytes
	if limit <= 0 {
		limit = 52428800
	}
	n, err := io.Copy(&buf, io.LimitReader(out.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	if n > limit {
		return nil, fmt.Errorf("object %s too large: size limit %d exceeded", key, limit)
	}
	return buf.Bytes(), nil
}

// Delete removes an object. Used by document cleanup; missing keys are not an
// error.
func (o *ObjectStore) Delete(ctx context.Context, key string) error {
	_, err := o.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(o.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}
