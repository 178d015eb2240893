package aureamedia

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/aurea-media/pkg/cropper"
	"github.com/menta2k/aurea-media/pkg/resolver"
	"github.com/menta2k/aurea-media/pkg/types"
)

// writeTestImage writes a PNG with a bright subject in the right half
func writeTestImage(t *testing.T, width, height int) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if x > 3*width/5 && x < 4*width/5 && y > height/3 && y < 2*height/3 {
				img.Set(x, y, color.NRGBA{255, 255, 255, 255})
			} else {
				img.Set(x, y, color.NRGBA{64, 64, 64, 255})
			}
		}
	}

	path := filepath.Join(t.TempDir(), "photo.png")
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func TestCropThenResolve(t *testing.T) {
	path := writeTestImage(t, 200, 100)

	var uploaded []resolver.Upload
	var bodies [][]byte
	uploader := resolver.UploaderFunc(func(ctx context.Context, up resolver.Upload) (string, error) {
		data, err := io.ReadAll(up.Body)
		if err != nil {
			return "", err
		}
		uploaded = append(uploaded, up)
		bodies = append(bodies, data)
		return "https://cdn.example.com/" + up.Name, nil
	})

	media := New(Options{Cropper: cropper.Config{Format: "png"}, Uploader: uploader, MaxConcurrency: 1})

	asset, err := media.Crop(context.Background(), path, types.CropRegion{X: 0, Y: 0, Width: 50, Height: 40}, 90)
	require.NoError(t, err)
	assert.Equal(t, 50, asset.Width)
	assert.Equal(t, 40, asset.Height)
	assert.Equal(t, "image/png", asset.ContentType)

	doc := map[string]any{
		"title":  "Portfolio",
		"avatar": PendingFromCrop(asset, "avatar.png", "blob:avatar"),
	}
	got, err := media.Resolve(context.Background(), doc)
	require.NoError(t, err)

	assert.Equal(t, map[string]any{
		"title":  "Portfolio",
		"avatar": "https://cdn.example.com/avatar.png",
	}, got)
	require.Len(t, uploaded, 1)
	assert.Equal(t, "image/png", uploaded[0].ContentType)
	assert.Equal(t, asset.Data, bodies[0])
}

func TestResolve_WithoutUploader(t *testing.T) {
	_, err := New(Options{}).Resolve(context.Background(), map[string]any{})
	assert.ErrorIs(t, err, ErrNoUploader)
}

func TestCrop_InvalidRegion(t *testing.T) {
	_, err := New(Options{}).Crop(context.Background(), "unused.png", types.CropRegion{Width: 0, Height: 10}, 0)
	assert.ErrorIs(t, err, cropper.ErrInvalidRegion)
}

func TestSuggestCrop(t *testing.T) {
	path := writeTestImage(t, 200, 100)

	s, err := New(Options{}).SuggestCrop(context.Background(), path, 1, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, 100.0, s.Region.Width)
	assert.Equal(t, 100.0, s.Region.Height)
	assert.Equal(t, 0.0, s.Region.Y)
	// Subject sits right of center, so the square shifts right.
	assert.Greater(t, s.Region.X, 50.0)
}

func TestSuggestCrop_DecodeError(t *testing.T) {
	_, err := New(Options{}).SuggestCrop(context.Background(), "blob:https://app.example.com/1", 1, 1, 1)
	assert.ErrorIs(t, err, cropper.ErrDecode)
}

func TestGetVersion(t *testing.T) {
	assert.Equal(t, Version, GetVersion())
}
