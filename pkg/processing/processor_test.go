package processing

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/aurea-media/pkg/types"
)

func solidImage(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func pngBytes(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestDecode_Locators(t *testing.T) {
	data := pngBytes(t, solidImage(4, 3, color.NRGBA{255, 0, 0, 255}))

	path := filepath.Join(t.TempDir(), "photo.png")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, userAgent, r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(data)
	}))
	defer srv.Close()

	p := NewProcessor()
	for _, locator := range []string{
		path,
		"file://" + path,
		"data:image/png;base64," + base64.StdEncoding.EncodeToString(data),
		srv.URL + "/photo.png",
	} {
		img, err := p.Decode(context.Background(), locator)
		require.NoError(t, err, locator)
		assert.Equal(t, 4, img.Bounds().Dx(), locator)
		assert.Equal(t, 3, img.Bounds().Dy(), locator)
	}
}

func TestDecode_UnsupportedLocators(t *testing.T) {
	p := NewProcessor()

	_, err := p.Decode(context.Background(), "blob:https://app.example.com/1234")
	assert.ErrorIs(t, err, ErrUnsupportedLocator)

	_, err = p.Decode(context.Background(), "")
	assert.ErrorIs(t, err, ErrUnsupportedLocator)

	_, err = p.Decode(context.Background(), "data:image/png,notbase64")
	assert.Error(t, err)

	_, err = p.Decode(context.Background(), filepath.Join(t.TempDir(), "missing.png"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadImageFromURL_Rejections(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/missing":
			http.NotFound(w, r)
		case "/html":
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte("<html></html>"))
		default:
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write(bytes.Repeat([]byte{1}, 2048))
		}
	}))
	defer srv.Close()

	p := NewProcessor(WithMaxSourceBytes(1024), WithHTTPClient(srv.Client()))

	_, err := p.LoadImageFromURL(context.Background(), srv.URL+"/missing")
	assert.ErrorContains(t, err, "404")

	_, err = p.LoadImageFromURL(context.Background(), srv.URL+"/html")
	assert.ErrorContains(t, err, "does not point to an image")

	_, err = p.LoadImageFromURL(context.Background(), srv.URL+"/big")
	assert.ErrorContains(t, err, "exceeds 1024 bytes")

	_, err = p.LoadImageFromURL(context.Background(), "ftp://example.com/a.png")
	assert.ErrorContains(t, err, "unsupported URL scheme")
}

func TestEncode_Formats(t *testing.T) {
	p := NewProcessor()
	img := solidImage(8, 8, color.NRGBA{10, 200, 30, 255})

	tests := []struct {
		format      string
		contentType string
	}{
		{"png", "image/png"},
		{"jpeg", "image/jpeg"},
		{"jpg", "image/jpeg"},
		{"", "image/jpeg"},
		{"webp", "image/webp"},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			data, ct, err := p.Encode(img, types.EncodeOptions{Format: tt.format, Quality: 90})
			require.NoError(t, err)
			assert.Equal(t, tt.contentType, ct)

			decoded, err := p.DecodeBytes(data)
			require.NoError(t, err)
			assert.Equal(t, img.Bounds().Size(), decoded.Bounds().Size())
		})
	}

	_, _, err := p.Encode(img, types.EncodeOptions{Format: "tiff"})
	assert.Error(t, err)
}

func TestDecodeBytes_Garbage(t *testing.T) {
	_, err := NewProcessor().DecodeBytes([]byte("definitely not an image"))
	assert.Error(t, err)
}

func TestPrepareImageForModel(t *testing.T) {
	p := NewProcessor()
	img := solidImage(400, 100, color.NRGBA{0, 0, 0, 255})

	b64, err := p.PrepareImageForModel(img, "png", 200, 80)
	require.NoError(t, err)

	data, err := base64.StdEncoding.DecodeString(b64)
	require.NoError(t, err)
	decoded, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, image.Pt(200, 50), decoded.Bounds().Size())
}

func TestCalculateOptimalCropBox(t *testing.T) {
	p := NewProcessor()

	tests := []struct {
		name       string
		cx, cy     float64
		tw, th     int
		iw, ih     int
		zoom       float64
		want       types.Box
	}{
		{"square centered", 0.5, 0.5, 1, 1, 200, 100, 1, types.Box{X: 0.25, Y: 0, W: 0.5, H: 1}},
		{"square clamped left", 0.0, 0.5, 1, 1, 200, 100, 1, types.Box{X: 0, Y: 0, W: 0.5, H: 1}},
		{"square clamped right", 1.0, 0.5, 1, 1, 200, 100, 1, types.Box{X: 0.5, Y: 0, W: 0.5, H: 1}},
		{"wide on tall", 0.5, 0.5, 2, 1, 100, 200, 1, types.Box{X: 0, Y: 0.375, W: 1, H: 0.25}},
		{"zero zoom means full", 0.5, 0.5, 1, 1, 100, 100, 0, types.Box{X: 0, Y: 0, W: 1, H: 1}},
		{"half zoom", 0.5, 0.5, 1, 1, 100, 100, 0.5, types.Box{X: 0.25, Y: 0.25, W: 0.5, H: 0.5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := p.CalculateOptimalCropBox(tt.cx, tt.cy, tt.tw, tt.th, tt.iw, tt.ih, tt.zoom)
			assert.InDelta(t, tt.want.X, got.X, 1e-9)
			assert.InDelta(t, tt.want.Y, got.Y, 1e-9)
			assert.InDelta(t, tt.want.W, got.W, 1e-9)
			assert.InDelta(t, tt.want.H, got.H, 1e-9)
		})
	}
}

func TestBoxToRegion(t *testing.T) {
	got := BoxToRegion(types.Box{X: 0.25, Y: 0.1, W: 0.5, H: 0.333}, 200, 300)
	assert.Equal(t, types.CropRegion{X: 50, Y: 30, Width: 100, Height: 100}, got)
}

func TestFindNearestPointToCenter(t *testing.T) {
	p := NewProcessor()

	cx, cy := p.FindNearestPointToCenter(types.Box{X: 0.1, Y: 0.1, W: 0.2, H: 0.2})
	assert.InDelta(t, 0.3, cx, 1e-9)
	assert.InDelta(t, 0.3, cy, 1e-9)

	cx, cy = p.FindNearestPointToCenter(types.Box{X: 0.2, Y: 0.2, W: 0.6, H: 0.6})
	assert.Equal(t, 0.5, cx)
	assert.Equal(t, 0.5, cy)
}

func TestCreatePreviewOverlay(t *testing.T) {
	p := NewProcessor()
	img := solidImage(100, 60, color.NRGBA{0, 0, 0, 255})

	out := p.CreatePreviewOverlay(img, types.CropRegion{X: 10, Y: 10, Width: 40, Height: 30}, 0)
	assert.Equal(t, img.Bounds(), out.Bounds())
	assert.Equal(t, color.NRGBA{255, 204, 0, 255}, color.NRGBAModel.Convert(out.At(10, 10)))
	assert.Equal(t, color.NRGBA{0, 0, 0, 255}, color.NRGBAModel.Convert(out.At(30, 25)))
	// Source is untouched
	assert.Equal(t, color.NRGBA{0, 0, 0, 255}, img.NRGBAAt(10, 10))

	rotated := p.CreatePreviewOverlay(img, types.CropRegion{X: 0, Y: 0, Width: 10, Height: 10}, 90)
	assert.Equal(t, image.Pt(60, 100), rotated.Bounds().Size())
}

func TestCreatePreviewOverlay_OddDimensions(t *testing.T) {
	p := NewProcessor()
	gold := color.NRGBA{255, 204, 0, 255}
	black := color.NRGBA{0, 0, 0, 255}

	// 101x60 rotated by 90 is 60x101. The 101x60 frame starts at
	// 60/2-101/2 = -20 horizontally and 101/2-60/2 = 20 vertically, matching
	// the crop engine's integer halves.
	img := solidImage(101, 60, black)
	out := p.CreatePreviewOverlay(img, types.CropRegion{X: 30, Y: 0, Width: 10, Height: 10}, 90)
	require.Equal(t, image.Pt(60, 101), out.Bounds().Size())

	assert.Equal(t, gold, color.NRGBAModel.Convert(out.At(15, 20)))
	assert.Equal(t, black, color.NRGBAModel.Convert(out.At(15, 19)))
	assert.Equal(t, gold, color.NRGBAModel.Convert(out.At(10, 25)))
	assert.Equal(t, black, color.NRGBAModel.Convert(out.At(9, 25)))
}

func TestCreatePreviewOverlay_NonFiniteRotation(t *testing.T) {
	p := NewProcessor()
	img := solidImage(40, 20, color.NRGBA{0, 0, 0, 255})
	region := types.CropRegion{X: 5, Y: 5, Width: 10, Height: 10}

	for _, rot := range []float64{math.NaN(), math.Inf(1), math.Inf(-1), 360, -720} {
		out := p.CreatePreviewOverlay(img, region, rot)
		assert.Equal(t, img.Bounds(), out.Bounds(), "rotation %v", rot)
		assert.Equal(t, color.NRGBA{255, 204, 0, 255}, color.NRGBAModel.Convert(out.At(5, 5)), "rotation %v", rot)
	}
}

func TestSaveImage(t *testing.T) {
	p := NewProcessor()
	path := filepath.Join(t.TempDir(), "out.png")

	require.NoError(t, p.SaveImage(solidImage(3, 3, color.NRGBA{1, 2, 3, 255}), path, types.EncodeOptions{Format: "png"}))

	img, err := p.LoadImage(path)
	require.NoError(t, err)
	assert.Equal(t, 3, img.Bounds().Dx())
}
