// Package resolver replaces pending local assets in a portfolio document
// with the remote URLs they receive after upload.
//
// Resolution is all-or-nothing: every distinct pending asset is uploaded
// exactly once, concurrently, and the resolved document is returned only if
// all uploads succeed. The input document is never mutated.
package resolver

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Upload is a single binary handed to storage
type Upload struct {
	Name        string
	ContentType string
	// Size is -1 when unknown
	Size int64
	Body io.Reader
}

// Uploader sends one binary to asset storage and returns its remote URL
type Uploader interface {
	Upload(ctx context.Context, upload Upload) (string, error)
}

// UploaderFunc adapts a function to the Uploader interface
type UploaderFunc func(ctx context.Context, upload Upload) (string, error)

func (f UploaderFunc) Upload(ctx context.Context, upload Upload) (string, error) {
	return f(ctx, upload)
}

// Resolver uploads pending assets and substitutes their URLs
type Resolver struct {
	uploader       Uploader
	maxConcurrency int
	logger         *zap.Logger
}

// Option configures a Resolver
type Option func(*Resolver)

// WithMaxConcurrency bounds in-flight uploads; n <= 0 means unbounded
func WithMaxConcurrency(n int) Option {
	return func(r *Resolver) { r.maxConcurrency = n }
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// New creates a Resolver around an uploader
func New(uploader Uploader, opts ...Option) *Resolver {
	r := &Resolver{
		uploader: uploader,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Discover returns one pending asset per distinct preview locator in doc
func (r *Resolver) Discover(doc any) []*PendingAsset {
	seen := make(map[string]struct{})
	var assets []*PendingAsset
	Visit(doc, func(asset *PendingAsset) {
		if _, ok := seen[asset.Preview]; ok {
			return
		}
		seen[asset.Preview] = struct{}{}
		assets = append(assets, asset)
	})
	return assets
}

// Resolve uploads every pending asset in doc and returns a copy of doc with
// each pending node replaced by its remote URL. If any upload fails it
// returns an *UploadError for the first failure and no document. A document
// without pending assets is cloned and no upload is made.
func (r *Resolver) Resolve(ctx context.Context, doc any) (any, error) {
	assets := r.Discover(doc)
	if len(assets) == 0 {
		return Clone(doc), nil
	}

	start := time.Now()
	urls := make([]string, len(assets))

	var g errgroup.Group
	if r.maxConcurrency > 0 {
		g.SetLimit(r.maxConcurrency)
	}
	for i, asset := range assets {
		g.Go(func() error {
			url, err := r.upload(ctx, asset)
			if err != nil {
				r.logger.Warn("upload failed",
					zap.String("name", asset.Blob.Name()),
					zap.Error(err),
				)
				return &UploadError{Preview: asset.Preview, Name: asset.Blob.Name(), Err: err}
			}
			urls[i] = url
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	replacements := make(map[string]string, len(assets))
	for i, asset := range assets {
		replacements[asset.Preview] = urls[i]
	}

	r.logger.Debug("resolved pending assets",
		zap.Int("uploads", len(assets)),
		zap.Duration("elapsed", time.Since(start)),
	)

	return Walk(doc, func(node any) (Action, any) {
		if asset, ok := AsPending(node); ok {
			return Replace, replacements[asset.Preview]
		}
		return Recurse, nil
	}), nil
}

func (r *Resolver) upload(ctx context.Context, asset *PendingAsset) (string, error) {
	body, err := asset.Blob.Open()
	if err != nil {
		return "", fmt.Errorf("open blob: %w", err)
	}
	defer body.Close()

	url, err := r.uploader.Upload(ctx, Upload{
		Name:        asset.Blob.Name(),
		ContentType: asset.Blob.ContentType(),
		Size:        asset.Blob.Size(),
		Body:        body,
	})
	if err != nil {
		return "", err
	}
	if url == "" {
		return "", fmt.Errorf("storage returned an empty URL")
	}

	r.logger.Debug("uploaded asset",
		zap.String("name", asset.Blob.Name()),
		zap.String("url", url),
	)
	return url, nil
}
