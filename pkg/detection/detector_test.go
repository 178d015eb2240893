package detection

import (
	"context"
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/aurea-media/pkg/types"
)

// fakeVisionClient returns a canned result and records what it was sent
type fakeVisionClient struct {
	result  *types.AnalysisResult
	err     error
	model   string
	prompt  string
	imgB64  string
	queries int
}

func (f *fakeVisionClient) SimpleQuery(ctx context.Context, model, prompt, imgB64 string) (string, error) {
	f.queries++
	return "a white square", f.err
}

func (f *fakeVisionClient) AnalyzeImage(ctx context.Context, model, prompt, imgB64 string) (*types.AnalysisResult, error) {
	f.model, f.prompt, f.imgB64 = model, prompt, imgB64
	if f.err != nil {
		return nil, f.err
	}
	r := *f.result
	return &r, nil
}

// fixedLocator always reports the same subject
type fixedLocator struct {
	result *types.AnalysisResult
	err    error
}

func (l fixedLocator) Locate(ctx context.Context, img image.Image) (*types.AnalysisResult, error) {
	return l.result, l.err
}

func testImage(w, h int) image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 200
	}
	img.Set(0, 0, color.NRGBA{0, 0, 0, 255})
	return img
}

func TestDetector_Locate(t *testing.T) {
	fake := &fakeVisionClient{result: &types.AnalysisResult{
		Primary: types.Primary{
			Label:      "Sculpture",
			Confidence: 0.9,
			Box:        types.Box{X: -0.1, Y: 0.5, W: 0.5, H: 0.9},
			Cx:         1.4,
			Cy:         0.6,
		},
		Description: "bronze sculpture in a gallery",
		Tags:        []string{"Art", "art", " bronze ", "", "gallery", "museum", "statue", "extra"},
	}}

	d := NewDetector(fake, "minicpm-v", WithSendImage("png", 64, 90))
	result, err := d.Locate(context.Background(), testImage(128, 96))
	require.NoError(t, err)

	assert.Equal(t, "minicpm-v", fake.model)
	assert.Equal(t, DefaultPrompt, fake.prompt)
	assert.NotEmpty(t, fake.imgB64)

	assert.Equal(t, "Sculpture", result.Primary.Label)
	assert.Equal(t, types.Box{X: 0, Y: 0.5, W: 0.5, H: 0.5}, result.Primary.Box)
	assert.Equal(t, 1.0, result.Primary.Cx)
	assert.Equal(t, []string{"art", "bronze", "gallery", "museum", "statue"}, result.Tags)
}

func TestDetector_DowngradesFallbackResults(t *testing.T) {
	fake := &fakeVisionClient{result: &types.AnalysisResult{
		Primary:     types.Primary{Label: "person", Confidence: 0.7, Box: types.Box{W: 1, H: 1}},
		Description: "unclear image, generic scene",
	}}

	result, err := NewDetector(fake, "m").DetectSubject(context.Background(), "aGVsbG8=")
	require.NoError(t, err)
	assert.Equal(t, "none", result.Primary.Label)
	assert.Equal(t, 0.0, result.Primary.Confidence)
}

func TestDetector_PropagatesClientError(t *testing.T) {
	cause := errors.New("model offline")
	_, err := NewDetector(&fakeVisionClient{err: cause}, "m").Locate(context.Background(), testImage(8, 8))
	assert.ErrorIs(t, err, cause)
}

func TestDetector_TestVision(t *testing.T) {
	fake := &fakeVisionClient{}
	out, err := NewDetector(fake, "m").TestVision(context.Background(), "aGVsbG8=")
	require.NoError(t, err)
	assert.Equal(t, "a white square", out)
	assert.Equal(t, 1, fake.queries)
}

func TestNormalizeTags(t *testing.T) {
	assert.Equal(t, []string{}, normalizeTags(nil))
	assert.Equal(t, []string{"a", "b"}, normalizeTags([]string{"A", " b", "a"}))
}

func TestSuggest(t *testing.T) {
	tests := []struct {
		name    string
		subject types.Primary
		aspectW int
		aspectH int
		zoom    float64
		want    types.CropRegion
	}{
		{
			name:    "square on landscape, subject right",
			subject: types.Primary{Label: "face", Box: types.Box{X: 0.8, Y: 0.2, W: 0.1, H: 0.2}, Cx: 0.85, Cy: 0.3},
			aspectW: 1, aspectH: 1, zoom: 1,
			want: types.CropRegion{X: 200, Y: 0, Width: 200, Height: 200},
		},
		{
			name:    "square on landscape, subject center",
			subject: types.Primary{Label: "face", Box: types.Box{X: 0.4, Y: 0.4, W: 0.2, H: 0.2}, Cx: 0.5, Cy: 0.5},
			aspectW: 1, aspectH: 1, zoom: 1,
			want: types.CropRegion{X: 100, Y: 0, Width: 200, Height: 200},
		},
		{
			name:    "zoomed in",
			subject: types.Primary{Label: "face", Cx: 0.25, Cy: 0.5},
			aspectW: 1, aspectH: 1, zoom: 0.5,
			want: types.CropRegion{X: 50, Y: 50, Width: 100, Height: 100},
		},
		{
			name:    "wide banner",
			subject: types.Primary{Label: "logo", Cx: 0.5, Cy: 0.9},
			aspectW: 4, aspectH: 1, zoom: 1,
			want: types.CropRegion{X: 0, Y: 100, Width: 400, Height: 100},
		},
		{
			name:    "center clamped into box",
			subject: types.Primary{Label: "face", Box: types.Box{X: 0, Y: 0, W: 0.1, H: 0.1}, Cx: 0.9, Cy: 0.9},
			aspectW: 1, aspectH: 1, zoom: 0.5,
			want: types.CropRegion{X: 0, Y: 0, Width: 100, Height: 100},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSuggester(fixedLocator{result: &types.AnalysisResult{Primary: tt.subject}}, nil)
			got, err := s.Suggest(context.Background(), testImage(400, 200), tt.aspectW, tt.aspectH, tt.zoom)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Region)
			assert.True(t, got.Region.Valid())
			assert.Equal(t, tt.subject.Label, got.Subject.Label)
		})
	}
}

func TestSuggest_Errors(t *testing.T) {
	s := NewSuggester(fixedLocator{result: &types.AnalysisResult{}}, nil)

	_, err := s.Suggest(context.Background(), testImage(10, 10), 0, 1, 1)
	assert.Error(t, err)

	_, err = s.Suggest(context.Background(), image.NewNRGBA(image.Rect(0, 0, 0, 0)), 1, 1, 1)
	assert.Error(t, err)

	cause := errors.New("locator failed")
	_, err = NewSuggester(fixedLocator{err: cause}, nil).Suggest(context.Background(), testImage(10, 10), 1, 1, 1)
	assert.ErrorIs(t, err, cause)
}
