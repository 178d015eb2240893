package storage

import (
	"context"
	"fmt"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/menta2k/aurea-media/pkg/resolver"
)

// MinioConfig configures a MinIO bucket
type MinioConfig struct {
	Endpoint     string
	AccessKey    string
	SecretKey    string
	Bucket       string
	UseSSL       bool
	PublicURL    string
	Prefix       string
	CreateBucket bool
}

// MinioUploader stores assets in a MinIO bucket
type MinioUploader struct {
	client *minio.Client
	cfg    MinioConfig
}

// NewMinioUploader creates an uploader. No request is made until the first
// upload or EnsureBucket.
func NewMinioUploader(cfg MinioConfig) (*MinioUploader, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("storage.minio.endpoint and storage.minio.bucket are required")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	return &MinioUploader{client: client, cfg: cfg}, nil
}

// EnsureBucket creates the bucket when it is missing and CreateBucket is set
func (u *MinioUploader) EnsureBucket(ctx context.Context) error {
	if !u.cfg.CreateBucket {
		return nil
	}
	exists, err := u.client.BucketExists(ctx, u.cfg.Bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket %s: %w", u.cfg.Bucket, err)
	}
	if exists {
		return nil
	}
	if err := u.client.MakeBucket(ctx, u.cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("failed to create bucket %s: %w", u.cfg.Bucket, err)
	}
	return nil
}

// Upload puts the asset under a fresh key and returns its public URL
func (u *MinioUploader) Upload(ctx context.Context, up resolver.Upload) (string, error) {
	key := objectKey(u.cfg.Prefix, up)

	_, err := u.client.PutObject(ctx, u.cfg.Bucket, key, up.Body, up.Size, minio.PutObjectOptions{
		ContentType: up.ContentType,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s to minio: %w", key, err)
	}

	return publicURL(u.baseURL(), key), nil
}

func (u *MinioUploader) baseURL() string {
	if u.cfg.PublicURL != "" {
		return u.cfg.PublicURL
	}
	scheme := "http"
	if u.cfg.UseSSL {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/%s", scheme, u.cfg.Endpoint, u.cfg.Bucket)
}

// Preparer is implemented by uploaders that need setup before first use
type Preparer interface {
	EnsureBucket(ctx context.Context) error
}

// Prepare runs backend setup for uploaders that need it
func Prepare(ctx context.Context, uploader resolver.Uploader) error {
	if p, ok := uploader.(Preparer); ok {
		return p.EnsureBucket(ctx)
	}
	return nil
}
