// Package storage implements the asset storage collaborators that receive
// pending portfolio assets: the portfolio API upload endpoint, S3-compatible
// buckets and MinIO.
package storage

import (
	"fmt"
	"mime"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/menta2k/aurea-media/pkg/resolver"
)

// Backend names accepted by New
const (
	BackendHTTP  = "http"
	BackendS3    = "s3"
	BackendMinio = "minio"
)

// Config selects and configures a storage backend
type Config struct {
	Backend string
	HTTP    HTTPConfig
	S3      S3Config
	Minio   MinioConfig
}

// New builds the uploader for the configured backend
func New(cfg Config) (resolver.Uploader, error) {
	switch strings.ToLower(cfg.Backend) {
	case BackendHTTP, "":
		return NewHTTPUploader(cfg.HTTP)
	case BackendS3:
		return NewS3Uploader(cfg.S3)
	case BackendMinio:
		return NewMinioUploader(cfg.Minio)
	}
	return nil, fmt.Errorf("unknown storage backend: %s (use http, s3 or minio)", cfg.Backend)
}

// objectKey builds a collision-free key that keeps the upload's extension
func objectKey(prefix string, up resolver.Upload) string {
	ext := strings.ToLower(path.Ext(up.Name))
	if ext == "" {
		if exts, err := mime.ExtensionsByType(up.ContentType); err == nil && len(exts) > 0 {
			ext = exts[0]
		}
	}
	key := uuid.NewString() + ext
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return key
	}
	return prefix + "/" + key
}

// publicURL joins a public base URL and an object key
func publicURL(base, key string) string {
	return strings.TrimSuffix(base, "/") + "/" + strings.TrimPrefix(key, "/")
}
