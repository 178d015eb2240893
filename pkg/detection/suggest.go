package detection

import (
	"context"
	"fmt"
	"image"

	"go.uber.org/zap"

	"github.com/menta2k/aurea-media/pkg/processing"
	"github.com/menta2k/aurea-media/pkg/types"
)

// Suggestion is a proposed crop for an unrotated image
type Suggestion struct {
	Region      types.CropRegion `json:"region"`
	Subject     types.Primary    `json:"subject"`
	Description string           `json:"description,omitempty"`
	Tags        []string         `json:"tags,omitempty"`
}

// Suggester proposes crop regions centered on an image's subject
type Suggester struct {
	locator Locator
	proc    *processing.Processor
	logger  *zap.Logger
}

// NewSuggester creates a suggester around a subject locator
func NewSuggester(locator Locator, logger *zap.Logger) *Suggester {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Suggester{
		locator: locator,
		proc:    processing.NewProcessor(),
		logger:  logger,
	}
}

// Suggest returns the largest aspectW:aspectH region, shrunk by zoom in
// (0,1], that sits as close as possible to the subject
func (s *Suggester) Suggest(ctx context.Context, img image.Image, aspectW, aspectH int, zoom float64) (*Suggestion, error) {
	if aspectW <= 0 || aspectH <= 0 {
		return nil, fmt.Errorf("invalid aspect ratio %d:%d", aspectW, aspectH)
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return nil, fmt.Errorf("invalid image dimensions")
	}

	result, err := s.locator.Locate(ctx, img)
	if err != nil {
		return nil, fmt.Errorf("subject detection failed: %w", err)
	}

	cx, cy := result.Primary.Cx, result.Primary.Cy
	if result.Primary.Box.W > 0 && result.Primary.Box.H > 0 {
		cx = clamp(cx, result.Primary.Box.X, result.Primary.Box.X+result.Primary.Box.W)
		cy = clamp(cy, result.Primary.Box.Y, result.Primary.Box.Y+result.Primary.Box.H)
	}

	box := s.proc.CalculateOptimalCropBox(cx, cy, aspectW, aspectH, w, h, zoom)
	region := processing.BoxToRegion(box, w, h)

	s.logger.Debug("crop suggested",
		zap.String("subject", result.Primary.Label),
		zap.Float64("confidence", result.Primary.Confidence),
		zap.Float64("x", region.X),
		zap.Float64("y", region.Y),
		zap.Float64("width", region.Width),
		zap.Float64("height", region.Height),
	)

	return &Suggestion{
		Region:      region,
		Subject:     result.Primary,
		Description: result.Description,
		Tags:        result.Tags,
	}, nil
}
