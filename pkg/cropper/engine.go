package cropper

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"io"
	"math"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"

	"github.com/menta2k/aurea-media/pkg/types"
)

// Codec resolves source locators into rasters and encodes results.
// processing.Processor is the production implementation.
type Codec interface {
	Decode(ctx context.Context, locator string) (image.Image, error)
	Encode(img image.Image, opts types.EncodeOptions) ([]byte, string, error)
}

// Config holds output settings for the crop engine
type Config struct {
	Format     string
	Quality    int
	Lossless   bool
	Background color.Color
}

// DefaultConfig returns JPEG output at quality 95 over a transparent background
func DefaultConfig() Config {
	return Config{
		Format:     "jpeg",
		Quality:    95,
		Background: color.NRGBA{0, 0, 0, 0},
	}
}

// CroppedAsset is an encoded crop result. The caller owns Data.
type CroppedAsset struct {
	Data        []byte
	ContentType string
	Format      string
	Width       int
	Height      int
}

// Reader returns a reader over the encoded bytes
func (a *CroppedAsset) Reader() io.Reader {
	return bytes.NewReader(a.Data)
}

// Size returns the encoded size in bytes
func (a *CroppedAsset) Size() int64 {
	return int64(len(a.Data))
}

// Engine produces rotation-aware crops. It keeps no per-call state and is
// safe for concurrent use.
type Engine struct {
	codec  Codec
	config Config
	logger *zap.Logger
}

// New creates an Engine with the default configuration
func New(codec Codec) *Engine {
	return NewWithConfig(codec, DefaultConfig())
}

// NewWithConfig creates an Engine with a custom configuration
func NewWithConfig(codec Codec, config Config) *Engine {
	def := DefaultConfig()
	if config.Format == "" {
		config.Format = def.Format
	}
	if config.Quality <= 0 || config.Quality > 100 {
		config.Quality = def.Quality
	}
	if config.Background == nil {
		config.Background = def.Background
	}
	return &Engine{
		codec:  codec,
		config: config,
		logger: zap.NewNop(),
	}
}

// SetLogger sets the logger used for crop diagnostics
func (e *Engine) SetLogger(logger *zap.Logger) {
	if logger != nil {
		e.logger = logger
	}
}

// Crop decodes the source, rotates it clockwise by rotation degrees about its
// center and extracts region, which is expressed relative to the rotated,
// centered image. The result has exactly the region's dimensions.
func (e *Engine) Crop(ctx context.Context, locator string, region types.CropRegion, rotation float64) (*CroppedAsset, error) {
	if !region.Valid() {
		return nil, &InvalidRegionError{Region: region}
	}

	src, err := e.codec.Decode(ctx, locator)
	if err != nil {
		return nil, &DecodeError{Locator: locator, Err: err}
	}

	out, err := e.CropImage(src, region, rotation)
	if err != nil {
		return nil, err
	}

	data, contentType, err := e.codec.Encode(out, types.EncodeOptions{
		Format:   e.config.Format,
		Quality:  e.config.Quality,
		Lossless: e.config.Lossless,
	})
	if err != nil {
		return nil, fmt.Errorf("cropper: encode %s: %w", e.config.Format, err)
	}

	w, h := region.Size()
	e.logger.Debug("crop complete",
		zap.String("locator", redactLocator(locator)),
		zap.Int("width", w),
		zap.Int("height", h),
		zap.Float64("rotation", NormalizeRotation(rotation)),
		zap.Int("bytes", len(data)),
	)

	return &CroppedAsset{
		Data:        data,
		ContentType: contentType,
		Format:      e.config.Format,
		Width:       w,
		Height:      h,
	}, nil
}

// CropImage performs the pixel work of Crop on an already decoded image.
//
// Conceptually the source is drawn rotated onto a square safe canvas of side
// SafeCanvasSize(W, H) and the region is copied out of that canvas at an
// offset relative to the unrotated W x H frame centered on it. The rotated
// image always fits inside the safe canvas, so the canvas itself is never
// materialized: pixels are copied straight from the rotated raster, and
// everything else is background.
func (e *Engine) CropImage(src image.Image, region types.CropRegion, rotation float64) (*image.NRGBA, error) {
	if !region.Valid() {
		return nil, &InvalidRegionError{Region: region}
	}

	b := src.Bounds()
	srcW, srcH := b.Dx(), b.Dy()
	if srcW == 0 || srcH == 0 {
		return nil, &DecodeError{Err: fmt.Errorf("source has no pixels")}
	}

	rotation = NormalizeRotation(rotation)
	var rotated *image.NRGBA
	if rotation == 0 {
		rotated = imaging.Clone(src)
	} else {
		// imaging rotates counter-clockwise.
		rotated = imaging.Rotate(src, 360-rotation, e.config.Background)
	}

	safe := SafeCanvasSize(srcW, srcH)
	center := safe / 2

	// Top-left of the rotated raster on the safe canvas.
	rw, rh := rotated.Bounds().Dx(), rotated.Bounds().Dy()
	placeX, placeY := center-rw/2, center-rh/2

	// Top-left of the region on the safe canvas.
	originX := center - srcW/2 + int(math.Round(region.X))
	originY := center - srcH/2 + int(math.Round(region.Y))

	w, h := region.Size()
	out := imaging.New(w, h, e.config.Background)
	out = imaging.Paste(out, rotated, image.Pt(placeX-originX, placeY-originY))

	return out, nil
}

// SafeCanvasSize returns the side of a square canvas that holds a w x h
// image under any rotation about its center.
func SafeCanvasSize(w, h int) int {
	maxSide := math.Max(float64(w), float64(h))
	return 2 * int(math.Ceil(maxSide*math.Sqrt2/2))
}

// NormalizeRotation maps any angle in degrees into [0, 360)
func NormalizeRotation(deg float64) float64 {
	return types.NormalizeRotation(deg)
}

func redactLocator(locator string) string {
	const maxLen = 96
	if len(locator) > maxLen {
		return locator[:maxLen] + "..."
	}
	return locator
}
