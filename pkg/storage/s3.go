package storage

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/menta2k/aurea-media/pkg/resolver"
)

// S3Config configures an S3-compatible bucket (AWS, R2, etc.)
type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	PublicURL       string
	Prefix          string
	UsePathStyle    bool
	CacheControl    string
}

// S3Uploader stores assets in an S3-compatible bucket
type S3Uploader struct {
	uploader *manager.Uploader
	cfg      S3Config
}

// NewS3Uploader creates an uploader. Static credentials are used when both
// keys are set; otherwise the default AWS credential chain applies.
func NewS3Uploader(cfg S3Config) (*S3Uploader, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("storage.s3.bucket is required")
	}
	if cfg.Region == "" {
		cfg.Region = "auto"
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return &S3Uploader{
		uploader: manager.NewUploader(client),
		cfg:      cfg,
	}, nil
}

// Upload puts the asset under a fresh key and returns its public URL
func (u *S3Uploader) Upload(ctx context.Context, up resolver.Upload) (string, error) {
	key := objectKey(u.cfg.Prefix, up)

	input := &s3.PutObjectInput{
		Bucket:      aws.String(u.cfg.Bucket),
		Key:         aws.String(key),
		Body:        up.Body,
		ContentType: aws.String(up.ContentType),
	}
	if up.Size >= 0 {
		input.ContentLength = aws.Int64(up.Size)
	}
	if u.cfg.CacheControl != "" {
		input.CacheControl = aws.String(u.cfg.CacheControl)
	}

	result, err := u.uploader.Upload(ctx, input)
	if err != nil {
		return "", fmt.Errorf("failed to upload %s to s3: %w", key, err)
	}

	if u.cfg.PublicURL != "" {
		return publicURL(u.cfg.PublicURL, key), nil
	}
	return result.Location, nil
}
