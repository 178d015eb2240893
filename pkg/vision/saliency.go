// Package vision locates the subject of an image without a model, from the
// distribution of edge energy.
package vision

import (
	"context"
	"image"
	"math"
	"sort"

	"github.com/anthonynsimon/bild/blur"
	"github.com/anthonynsimon/bild/effect"
	"github.com/disintegration/imaging"
	"github.com/lucasb-eyer/go-colorful"

	"github.com/menta2k/aurea-media/pkg/client"
	"github.com/menta2k/aurea-media/pkg/types"
)

// SaliencyLocator finds the most detailed region of an image
type SaliencyLocator struct {
	config DetectionConfig
}

// DetectionConfig holds configuration for saliency detection
type DetectionConfig struct {
	// AnalysisSize is the longest side images are reduced to before analysis
	AnalysisSize int
	BlurRadius   float64
	// EdgeThreshold is the mean edge energy below which an image is flat
	EdgeThreshold float64
	// WindowFractions are candidate window sizes relative to the shorter side
	WindowFractions []float64
	MaxColors       int
}

// DefaultConfig returns the default detection configuration
func DefaultConfig() DetectionConfig {
	return DetectionConfig{
		AnalysisSize:    256,
		BlurRadius:      1.0,
		EdgeThreshold:   0.002,
		WindowFractions: []float64{0.25, 0.4, 0.6},
		MaxColors:       3,
	}
}

// New creates a new SaliencyLocator with default configuration
func New() *SaliencyLocator {
	return &SaliencyLocator{config: DefaultConfig()}
}

// NewWithConfig creates a new SaliencyLocator with custom configuration
func NewWithConfig(config DetectionConfig) *SaliencyLocator {
	def := DefaultConfig()
	if config.AnalysisSize <= 0 {
		config.AnalysisSize = def.AnalysisSize
	}
	if len(config.WindowFractions) == 0 {
		config.WindowFractions = def.WindowFractions
	}
	if config.MaxColors <= 0 {
		config.MaxColors = def.MaxColors
	}
	return &SaliencyLocator{config: config}
}

// Region represents a rectangular region of interest in analysis pixels
type Region struct {
	X      int
	Y      int
	Width  int
	Height int
	Score  float64
}

// Center returns the center point of the region
func (r Region) Center() (int, int) {
	return r.X + r.Width/2, r.Y + r.Height/2
}

// Area returns the area of the region
func (r Region) Area() int {
	return r.Width * r.Height
}

// Locate returns the most salient region as a normalized subject
func (d *SaliencyLocator) Locate(ctx context.Context, img image.Image) (*types.AnalysisResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	small := imaging.Fit(img, d.config.AnalysisSize, d.config.AnalysisSize, imaging.Box)
	w, h := small.Bounds().Dx(), small.Bounds().Dy()
	if w < 3 || h < 3 {
		return client.Fallback("image too small for analysis"), nil
	}

	energy := d.edgeEnergy(small)
	sat := newSummedArea(energy, w, h)
	mean := sat.sum(0, 0, w, h) / float64(w*h)
	if mean < d.config.EdgeThreshold {
		return client.Fallback("flat image without a distinct subject", "flat"), nil
	}

	regions := d.findRegions(sat, w, h)
	if len(regions) == 0 {
		return client.Fallback("no salient region"), nil
	}
	best := regions[0]

	cx, cy := weightedCentroid(energy, w, best)

	result := &types.AnalysisResult{
		Primary: types.Primary{
			Label:      "salient region",
			Confidence: math.Min(1, math.Max(0, 1-mean/best.Score)),
			Box: types.Box{
				X: float64(best.X) / float64(w),
				Y: float64(best.Y) / float64(h),
				W: float64(best.Width) / float64(w),
				H: float64(best.Height) / float64(h),
			},
			Cx: cx / float64(w),
			Cy: cy / float64(h),
		},
		Description: "region with the most visual detail",
		Tags:        []string{"saliency"},
	}
	for _, c := range d.DominantColors(small, best) {
		result.Tags = append(result.Tags, c.Hex())
	}
	return result, nil
}

// DetectSubjects returns candidate regions in analysis pixels, best first
func (d *SaliencyLocator) DetectSubjects(img image.Image) []Region {
	small := imaging.Fit(img, d.config.AnalysisSize, d.config.AnalysisSize, imaging.Box)
	w, h := small.Bounds().Dx(), small.Bounds().Dy()
	if w < 3 || h < 3 {
		return nil
	}
	return d.findRegions(newSummedArea(d.edgeEnergy(small), w, h), w, h)
}

// edgeEnergy returns per-pixel Sobel magnitude in [0,1], row-major
func (d *SaliencyLocator) edgeEnergy(img image.Image) []float64 {
	src := img
	if d.config.BlurRadius > 0 {
		src = blur.Gaussian(img, d.config.BlurRadius)
	}
	edges := effect.Sobel(effect.Grayscale(src))

	b := edges.Bounds()
	w, h := b.Dx(), b.Dy()
	energy := make([]float64, w*h)
	// Pixels near the border see padding rather than image content.
	margin := 1 + int(math.Ceil(2*d.config.BlurRadius))
	for y := margin; y < h-margin; y++ {
		row := edges.Pix[y*edges.Stride:]
		for x := margin; x < w-margin; x++ {
			energy[y*w+x] = float64(row[x*4]) / 255
		}
	}
	return energy
}

func (d *SaliencyLocator) findRegions(sat *summedArea, w, h int) []Region {
	short := w
	if h < short {
		short = h
	}

	var regions []Region
	for _, frac := range d.config.WindowFractions {
		size := int(float64(short) * frac)
		if size < 2 {
			continue
		}
		step := size / 4
		if step < 1 {
			step = 1
		}
		for y := 0; y+size <= h; y += step {
			for x := 0; x+size <= w; x += step {
				score := sat.sum(x, y, x+size, y+size) / float64(size*size)
				if score <= d.config.EdgeThreshold {
					continue
				}
				regions = append(regions, Region{X: x, Y: y, Width: size, Height: size, Score: score})
			}
		}
	}

	sort.SliceStable(regions, func(i, j int) bool {
		return regions[i].Score > regions[j].Score
	})
	return regions
}

// weightedCentroid is the energy-weighted center of a region
func weightedCentroid(energy []float64, w int, r Region) (float64, float64) {
	var total, sx, sy float64
	for y := r.Y; y < r.Y+r.Height; y++ {
		for x := r.X; x < r.X+r.Width; x++ {
			e := energy[y*w+x]
			total += e
			sx += e * (float64(x) + 0.5)
			sy += e * (float64(y) + 0.5)
		}
	}
	if total == 0 {
		cx, cy := r.Center()
		return float64(cx), float64(cy)
	}
	return sx / total, sy / total
}

// DominantColors extracts the most frequent quantized colors of a region
func (d *SaliencyLocator) DominantColors(img image.Image, region Region) []colorful.Color {
	bounds := img.Bounds()
	rect := image.Rect(region.X, region.Y, region.X+region.Width, region.Y+region.Height).
		Add(bounds.Min).Intersect(bounds)

	counts := make(map[uint32]int)
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			r, g, b, a := img.At(x, y).RGBA()
			if a == 0 {
				continue
			}
			// Quantize to 16 levels per channel
			key := ((r>>8)&0xf0)<<16 | ((g>>8)&0xf0)<<8 | (b>>8)&0xf0
			counts[key]++
		}
	}

	keys := make([]uint32, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})
	if len(keys) > d.config.MaxColors {
		keys = keys[:d.config.MaxColors]
	}

	colors := make([]colorful.Color, 0, len(keys))
	for _, k := range keys {
		colors = append(colors, colorful.Color{
			R: float64((k>>16)&0xff) / 255,
			G: float64((k>>8)&0xff) / 255,
			B: float64(k&0xff) / 255,
		})
	}
	return colors
}

// summedArea is an integral image over a row-major energy map
type summedArea struct {
	w    int
	sums []float64
}

func newSummedArea(values []float64, w, h int) *summedArea {
	stride := w + 1
	sums := make([]float64, stride*(h+1))
	for y := 0; y < h; y++ {
		var row float64
		for x := 0; x < w; x++ {
			row += values[y*w+x]
			sums[(y+1)*stride+x+1] = sums[y*stride+x+1] + row
		}
	}
	return &summedArea{w: w, sums: sums}
}

// sum returns the total over [x0,x1) x [y0,y1)
func (s *summedArea) sum(x0, y0, x1, y1 int) float64 {
	stride := s.w + 1
	return s.sums[y1*stride+x1] - s.sums[y0*stride+x1] - s.sums[y1*stride+x0] + s.sums[y0*stride+x0]
}
