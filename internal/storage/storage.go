// Package storage stores user avatars in an S3-compatible object store.
package storage

import (
	"context"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/samber/oops"

	"user_backend/internal/apperror"
	"user_backend/internal/config"
)

// ObjectStore defines the object operations used for avatars
type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Delete(ctx context.Context, key string) error
}

// S3Store is an ObjectStore backed by minio-go.
type S3Store struct {
	client *minio.Client
	bucket string
}

// NewS3Store creates a client for cfg. It does not contact the server.
func NewS3Store(cfg config.S3Config) (*S3Store, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, oops.Code("S3_CONFIG_INVALID").With("endpoint", cfg.Endpoint).Wrap(err)
	}
	return &S3Store{client: client, bucket: cfg.Bucket}, nil
}

// EnsureBucket creates the bucket when it does not exist.
func (s *S3Store) EnsureBucket(ctx context.Context, region string) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return apperror.ExternalService("s3", err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: region}); err != nil {
		return apperror.ExternalService("s3", err)
	}
	return nil
}

// Put uploads an object of the given size.
func (s *S3Store) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	_, err := s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return apperror.ExternalService("s3", err)
	}
	return nil
}

// Delete removes an object. Missing objects are not an error.
func (s *S3Store) Delete(ctx context.Context, key string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return apperror.ExternalService("s3", err)
	}
	return nil
}

// Disabled is used when no object store is configured. Every call fails with
// EXTERNAL_SERVICE_ERROR.
type Disabled struct{}

func (Disabled) Put(context.Context, string, io.Reader, int64, string) error {
	return apperror.ExternalService("s3", oops.Errorf("object storage is disabled"))
}

func (Disabled) Delete(context.Context, string) error {
	return apperror.ExternalService("s3", oops.Errorf("object storage is disabled"))
}
