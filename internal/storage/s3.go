package storage

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Raivel16/gestor-tareas/internal/logger"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Config describes an S3-compatible bucket (MinIO, R2, AWS).
type S3Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	Region    string
	PublicURL string
	MaxBytes  int64
}

// S3Store keeps images in a bucket using the same key layout as LocalStore.
type S3Store struct {
	client    *minio.Client
	bucket    string
	publicURL string
	endpoint  string
	useSSL    bool
	maxBytes  int64
}

// NewS3Store connects to the bucket and creates it when missing.
func NewS3Store(cfg S3Config) (*S3Store, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
		logger.Info("S3 bucket created", "bucket", cfg.Bucket)
	}

	logger.Info("S3 storage initialized", "endpoint", cfg.Endpoint, "bucket", cfg.Bucket, "ssl", cfg.UseSSL)

	return &S3Store{
		client:    client,
		bucket:    cfg.Bucket,
		publicURL: strings.TrimSuffix(cfg.PublicURL, "/"),
		endpoint:  cfg.Endpoint,
		useSSL:    cfg.UseSSL,
		maxBytes:  cfg.MaxBytes,
	}, nil
}

func (s *S3Store) Validate(data []byte, declaredMIME, filename string) (Image, error) {
	return ValidateImage(data, declaredMIME, filename, s.maxBytes)
}

func (s *S3Store) Save(ctx context.Context, ownerID, taskID int64, data []byte, declaredMIME, filename string) (string, error) {
	img, err := s.Validate(data, declaredMIME, filename)
	if err != nil {
		return "", err
	}

	key := objectKey(ownerID, taskID, img.Ext)
	_, err = s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: img.ContentType,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload image: %w", err)
	}

	logger.Debug("image uploaded to S3", "key", key, "content_type", img.ContentType)
	return key, nil
}

func (s *S3Store) Delete(ctx context.Context, ref string) error {
	key := strings.TrimPrefix(ref, "/")
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to delete image: %w", err)
	}
	return nil
}

// URL uses the public URL when set, otherwise a path-style bucket URL.
func (s *S3Store) URL(ref string) string {
	if s.publicURL != "" {
		return s.publicURL + "/" + ref
	}
	scheme := "http"
	if s.useSSL {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/%s/%s", scheme, s.endpoint, s.bucket, ref)
}
