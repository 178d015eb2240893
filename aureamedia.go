// Package aureamedia prepares portfolio media for publishing.
//
// It ties together three pieces:
//
//  1. Crop engine (pkg/cropper): rotation-aware crops of a source image
//  2. Resolver (pkg/resolver): uploads pending local assets in a portfolio
//     document and replaces them with their remote URLs
//  3. Suggester (pkg/detection, pkg/vision): proposes a crop region around
//     the subject of an image
//
// Basic usage:
//
//	media := aureamedia.New(aureamedia.Options{Uploader: uploader})
//
//	asset, err := media.Crop(ctx, "photo.jpg", types.CropRegion{X: 10, Y: 10, Width: 400, Height: 400}, 90)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	doc := map[string]any{"avatar": aureamedia.PendingFromCrop(asset, "avatar.jpg", "blob:avatar")}
//	resolved, err := media.Resolve(ctx, doc)
package aureamedia

import (
	"context"
	"errors"
	"fmt"
	"image"

	"go.uber.org/zap"

	"github.com/menta2k/aurea-media/pkg/cropper"
	"github.com/menta2k/aurea-media/pkg/detection"
	"github.com/menta2k/aurea-media/pkg/processing"
	"github.com/menta2k/aurea-media/pkg/resolver"
	"github.com/menta2k/aurea-media/pkg/types"
	"github.com/menta2k/aurea-media/pkg/vision"
)

// Version of the aurea-media library
const Version = "1.0.0"

// ErrNoUploader is returned by Resolve when no uploader is configured
var ErrNoUploader = errors.New("no uploader configured")

// Options configures a Media
type Options struct {
	Cropper cropper.Config
	// Uploader receives pending assets; Resolve fails without one
	Uploader       resolver.Uploader
	MaxConcurrency int
	// Locator finds subjects for SuggestCrop, defaults to saliency
	Locator   detection.Locator
	Processor *processing.Processor
	Logger    *zap.Logger
}

// Media provides a high-level interface for cropping, resolving and
// suggesting crops
type Media struct {
	proc      *processing.Processor
	engine    *cropper.Engine
	resolver  *resolver.Resolver
	suggester *detection.Suggester
	uploader  resolver.Uploader
	logger    *zap.Logger
}

// New creates a Media from options
func New(opts Options) *Media {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	proc := opts.Processor
	if proc == nil {
		proc = processing.NewProcessor()
	}
	locator := opts.Locator
	if locator == nil {
		locator = vision.New()
	}

	engine := cropper.NewWithConfig(proc, opts.Cropper)
	engine.SetLogger(logger.Named("cropper"))

	m := &Media{
		proc:      proc,
		engine:    engine,
		suggester: detection.NewSuggester(locator, logger.Named("suggest")),
		uploader:  opts.Uploader,
		logger:    logger,
	}
	if opts.Uploader != nil {
		m.resolver = resolver.New(opts.Uploader,
			resolver.WithMaxConcurrency(opts.MaxConcurrency),
			resolver.WithLogger(logger.Named("resolver")),
		)
	}
	return m
}

// Processor returns the image processor used for decoding and encoding
func (m *Media) Processor() *processing.Processor {
	return m.proc
}

// Crop rotates the source clockwise by rotation degrees and extracts region
func (m *Media) Crop(ctx context.Context, locator string, region types.CropRegion, rotation float64) (*cropper.CroppedAsset, error) {
	return m.engine.Crop(ctx, locator, region, rotation)
}

// CropImage crops an already decoded image
func (m *Media) CropImage(img image.Image, region types.CropRegion, rotation float64) (*image.NRGBA, error) {
	return m.engine.CropImage(img, region, rotation)
}

// Resolve uploads every pending asset in doc and returns the resolved copy
func (m *Media) Resolve(ctx context.Context, doc any) (any, error) {
	if m.resolver == nil {
		return nil, ErrNoUploader
	}
	return m.resolver.Resolve(ctx, doc)
}

// SuggestCrop decodes the source and proposes an aspectW:aspectH region
// around its subject
func (m *Media) SuggestCrop(ctx context.Context, locator string, aspectW, aspectH int, zoom float64) (*detection.Suggestion, error) {
	img, err := m.proc.Decode(ctx, locator)
	if err != nil {
		return nil, &cropper.DecodeError{Locator: locator, Err: err}
	}
	return m.SuggestCropImage(ctx, img, aspectW, aspectH, zoom)
}

// SuggestCropImage proposes a region for an already decoded image
func (m *Media) SuggestCropImage(ctx context.Context, img image.Image, aspectW, aspectH int, zoom float64) (*detection.Suggestion, error) {
	s, err := m.suggester.Suggest(ctx, img, aspectW, aspectH, zoom)
	if err != nil {
		return nil, fmt.Errorf("crop suggestion failed: %w", err)
	}
	return s, nil
}

// PendingFromCrop wraps a crop result as a pending asset for Resolve
func PendingFromCrop(asset *cropper.CroppedAsset, name, preview string) *resolver.PendingAsset {
	blob := &resolver.BytesBlob{
		Data:     asset.Data,
		Filename: name,
		MIMEType: asset.ContentType,
	}
	return resolver.NewPendingAsset(blob, preview)
}

// GetVersion returns the library version
func GetVersion() string {
	return Version
}
