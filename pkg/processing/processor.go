package processing

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"math"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"

	"github.com/menta2k/aurea-media/pkg/types"
)

const (
	// DefaultMaxSourceBytes bounds how much of a remote source is read
	DefaultMaxSourceBytes = 64 << 20

	userAgent = "Aurea-Media/1.0"
)

// ErrUnsupportedLocator is returned for locators no decoder can resolve,
// such as browser-only blob: references.
var ErrUnsupportedLocator = errors.New("unsupported image locator")

// Processor resolves image locators, decodes and encodes rasters
type Processor struct {
	client   *http.Client
	maxBytes int64
}

// Option configures a Processor
type Option func(*Processor)

// WithHTTPClient sets the client used for remote sources
func WithHTTPClient(c *http.Client) Option {
	return func(p *Processor) { p.client = c }
}

// WithMaxSourceBytes caps the size of a fetched remote source
func WithMaxSourceBytes(n int64) Option {
	return func(p *Processor) { p.maxBytes = n }
}

// NewProcessor creates a new image processor
func NewProcessor(opts ...Option) *Processor {
	p := &Processor{
		client:   &http.Client{Timeout: 30 * time.Second},
		maxBytes: DefaultMaxSourceBytes,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Decode resolves a locator (http(s) URL, data URI, file:// URL or
// filesystem path) and decodes it into an image
func (p *Processor) Decode(ctx context.Context, locator string) (image.Image, error) {
	switch {
	case strings.HasPrefix(locator, "http://"), strings.HasPrefix(locator, "https://"):
		return p.LoadImageFromURL(ctx, locator)
	case strings.HasPrefix(locator, "data:"):
		return p.LoadImageFromDataURI(locator)
	case strings.HasPrefix(locator, "file://"):
		u, err := url.Parse(locator)
		if err != nil {
			return nil, fmt.Errorf("invalid file URL: %w", err)
		}
		return p.LoadImage(u.Path)
	case strings.HasPrefix(locator, "blob:"):
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedLocator, locator)
	case locator == "":
		return nil, fmt.Errorf("%w: empty locator", ErrUnsupportedLocator)
	}
	return p.LoadImage(locator)
}

// LoadImageFromURL downloads and decodes an image from a URL
func (p *Processor) LoadImageFromURL(ctx context.Context, imageURL string) (image.Image, error) {
	parsedURL, err := url.Parse(imageURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return nil, fmt.Errorf("unsupported URL scheme: %s (only http and https are supported)", parsedURL.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download image: HTTP %d %s", resp.StatusCode, resp.Status)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType != "" && !strings.HasPrefix(contentType, "image/") && !strings.HasPrefix(contentType, "application/octet-stream") {
		return nil, fmt.Errorf("URL does not point to an image (Content-Type: %s)", contentType)
	}

	imageData, err := io.ReadAll(io.LimitReader(resp.Body, p.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}
	if int64(len(imageData)) > p.maxBytes {
		return nil, fmt.Errorf("image exceeds %d bytes", p.maxBytes)
	}

	return p.DecodeBytes(imageData)
}

// LoadImageFromDataURI decodes an inline base64 data URI
func (p *Processor) LoadImageFromDataURI(uri string) (image.Image, error) {
	comma := strings.IndexByte(uri, ',')
	if comma < 0 {
		return nil, fmt.Errorf("malformed data URI")
	}
	meta, payload := uri[len("data:"):comma], uri[comma+1:]
	if !strings.HasSuffix(meta, ";base64") {
		return nil, fmt.Errorf("data URI is not base64 encoded")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to decode data URI: %w", err)
	}
	return p.DecodeBytes(data)
}

// LoadImage loads an image from a file path with WebP support
func (p *Processor) LoadImage(path string) (image.Image, error) {
	if img, err := imaging.Open(path); err == nil {
		return img, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	img, err := p.DecodeBytes(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return img, nil
}

// DecodeBytes decodes an image from byte data with WebP support
func (p *Processor) DecodeBytes(data []byte) (image.Image, error) {
	if img, _, err := image.Decode(bytes.NewReader(data)); err == nil {
		return img, nil
	}

	if img, err := webp.Decode(bytes.NewReader(data)); err == nil {
		return img, nil
	}

	return nil, fmt.Errorf("image: unknown or unsupported format")
}

// Encode encodes an image and returns the bytes and their content type
func (p *Processor) Encode(img image.Image, opts types.EncodeOptions) ([]byte, string, error) {
	var buf bytes.Buffer
	switch strings.ToLower(opts.Format) {
	case "png":
		enc := png.Encoder{CompressionLevel: png.DefaultCompression}
		if err := enc.Encode(&buf, img); err != nil {
			return nil, "", err
		}
		return buf.Bytes(), "image/png", nil
	case "webp":
		if err := webp.Encode(&buf, img, &webp.Options{Lossless: opts.Lossless, Quality: float32(opts.Quality)}); err != nil {
			return nil, "", err
		}
		return buf.Bytes(), "image/webp", nil
	case "jpg", "jpeg", "":
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: opts.Quality}); err != nil {
			return nil, "", err
		}
		return buf.Bytes(), "image/jpeg", nil
	}
	return nil, "", fmt.Errorf("unsupported output format: %s", opts.Format)
}

// PrepareImageForModel converts an image to base64 for sending to vision models
func (p *Processor) PrepareImageForModel(img image.Image, format string, maxDim int, quality int) (string, error) {
	if maxDim > 0 {
		b := img.Bounds()
		w, h := b.Dx(), b.Dy()
		if w > maxDim || h > maxDim {
			if w >= h {
				img = imaging.Resize(img, maxDim, 0, imaging.Lanczos)
			} else {
				img = imaging.Resize(img, 0, maxDim, imaging.Lanczos)
			}
		}
	}

	if strings.ToLower(format) != "png" {
		format = "jpeg"
	}
	data, _, err := p.Encode(img, types.EncodeOptions{Format: format, Quality: quality})
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// CalculateOptimalCropBox calculates the largest box of the given aspect
// ratio centered as close as possible to a point, shrunk by zoom
func (p *Processor) CalculateOptimalCropBox(centerX, centerY float64, targetWidth, targetHeight, imgWidth, imgHeight int, zoom float64) types.Box {
	if zoom <= 0 {
		zoom = 1
	}

	r := float64(targetWidth) / float64(targetHeight)

	cx := centerX * float64(imgWidth)
	cy := centerY * float64(imgHeight)

	// Width is limited by the whole image and by its height scaled by aspect.
	maxWidthPx := math.Min(float64(imgWidth), r*float64(imgHeight))
	widthPx := maxWidthPx * clamp(zoom, 0.01, 1.0)
	heightPx := widthPx / r

	x0 := clamp(cx-widthPx/2, 0, float64(imgWidth)-widthPx)
	y0 := clamp(cy-heightPx/2, 0, float64(imgHeight)-heightPx)

	return types.Box{
		X: x0 / float64(imgWidth),
		Y: y0 / float64(imgHeight),
		W: widthPx / float64(imgWidth),
		H: heightPx / float64(imgHeight),
	}
}

// BoxToRegion converts a normalized box into a pixel crop region
func BoxToRegion(box types.Box, imgWidth, imgHeight int) types.CropRegion {
	return types.CropRegion{
		X:      math.Round(box.X * float64(imgWidth)),
		Y:      math.Round(box.Y * float64(imgHeight)),
		Width:  math.Round(box.W * float64(imgWidth)),
		Height: math.Round(box.H * float64(imgHeight)),
	}
}

// FindNearestPointToCenter finds the nearest point in a box to the image center
func (p *Processor) FindNearestPointToCenter(box types.Box) (float64, float64) {
	cx := clamp(0.5, box.X, box.X+box.W)
	cy := clamp(0.5, box.Y, box.Y+box.H)
	return cx, cy
}

// SaveImage encodes an image and writes it to a file
func (p *Processor) SaveImage(img image.Image, path string, opts types.EncodeOptions) error {
	data, _, err := p.Encode(img, opts)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// CreatePreviewOverlay renders the source rotated clockwise by rotation with
// the crop region outlined, in the same coordinate frame the crop engine uses
func (p *Processor) CreatePreviewOverlay(img image.Image, region types.CropRegion, rotation float64) image.Image {
	b := img.Bounds()
	srcW, srcH := b.Dx(), b.Dy()

	rotation = types.NormalizeRotation(rotation)
	var canvas *image.NRGBA
	if rotation == 0 {
		canvas = imaging.Clone(img)
	} else {
		canvas = imaging.Rotate(img, 360-rotation, color.NRGBA{0, 0, 0, 0})
	}
	w := canvas.Bounds().Dx()
	h := canvas.Bounds().Dy()

	// The region is relative to a srcW x srcH frame centered on the rotated
	// image, using the same integer halves as the crop engine.
	x0 := w/2 - srcW/2 + int(math.Round(region.X))
	y0 := h/2 - srcH/2 + int(math.Round(region.Y))
	rw, rh := region.Size()
	x1 := x0 + rw
	y1 := y0 + rh

	gold := color.NRGBA{255, 204, 0, 255}
	blue := color.NRGBA{0, 170, 255, 255}
	stroke := int(math.Max(2, 0.004*float64(minInt(w, h))))

	for s := 0; s < stroke; s++ {
		drawHLine(canvas, y0+s, x0, x1, gold)
		drawHLine(canvas, y1-1-s, x0, x1, gold)
		drawVLine(canvas, x0+s, y0, y1, gold)
		drawVLine(canvas, x1-1-s, y0, y1, gold)
	}

	ix, iy := w/2, h/2
	drawHLine(canvas, iy, ix-6, ix+6, blue)
	drawVLine(canvas, ix, iy-6, iy+6, blue)

	return canvas
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func drawHLine(img *image.NRGBA, y, x0, x1 int, c color.NRGBA) {
	if y < 0 || y >= img.Bounds().Dy() {
		return
	}
	if x0 > x1 {
		x0, x1 = x1, x0
	}
	if x1 <= 0 || x0 >= img.Bounds().Dx() {
		return
	}
	if x0 < 0 {
		x0 = 0
	}
	if x1 > img.Bounds().Dx() {
		x1 = img.Bounds().Dx()
	}
	i := y*img.Stride + x0*4
	for x := x0; x < x1; x++ {
		img.Pix[i+0] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = c.A
		i += 4
	}
}

func drawVLine(img *image.NRGBA, x, y0, y1 int, c color.NRGBA) {
	if x < 0 || x >= img.Bounds().Dx() {
		return
	}
	if y0 > y1 {
		y0, y1 = y1, y0
	}
	if y1 <= 0 || y0 >= img.Bounds().Dy() {
		return
	}
	if y0 < 0 {
		y0 = 0
	}
	if y1 > img.Bounds().Dy() {
		y1 = img.Bounds().Dy()
	}
	i := y0*img.Stride + x*4
	for y := y0; y < y1; y++ {
		img.Pix[i+0] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = c.A
		i += img.Stride
	}
}
