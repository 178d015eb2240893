package detection

import (
	"context"
	"fmt"
	"image"
	"strings"

	"github.com/menta2k/aurea-media/pkg/client"
	"github.com/menta2k/aurea-media/pkg/processing"
	"github.com/menta2k/aurea-media/pkg/types"
)

// SimpleTestPrompt checks whether the model can see images at all
const SimpleTestPrompt = `What do you see in this image? Describe it briefly.`

// DefaultPrompt asks for the subject a portfolio crop should keep
const DefaultPrompt = `You locate the subject of a portfolio image (a person, a product, an artwork, a screenshot or a building).

Return JSON only:
{
  "primary": {
    "label": "string",
    "confidence": 0.0,
    "box": {"x": 0.0, "y": 0.0, "w": 0.0, "h": 0.0},
    "cx": 0.0,
    "cy": 0.0
  },
  "description": "short neutral sentence (<= 20 words)",
  "tags": ["tag1", "tag2", "tag3", "tag4", "tag5"]
}

HARD RULES
- All coordinates are normalized to [0,1] (NOT pixels). (x, y) is the top-left corner of the box.
- (cx, cy) is the point a crop should be centered on; for people use the face.
- The box should tightly include the visually dominant subject.
- Description must be brief and factual. Do not guess real identities.
- Tags: lowercase, concise, no punctuation or duplicates.
- If no subject is found, return:
  {
    "primary":{"label":"none","confidence":0.0,"box":{"x":0.25,"y":0.25,"w":0.50,"h":0.50},"cx":0.5,"cy":0.5},
    "description":"centered generic scene",
    "tags":["generic","center","scene"]
  }
- JSON only. No markdown, no code fences, no comments, no trailing commas.`

// Locator finds the primary subject of an image
type Locator interface {
	Locate(ctx context.Context, img image.Image) (*types.AnalysisResult, error)
}

// Detector locates subjects with a vision model
type Detector struct {
	client      client.VisionClient
	model       string
	proc        *processing.Processor
	sendFormat  string
	sendSize    int
	sendQuality int
}

// DetectorOption configures a Detector
type DetectorOption func(*Detector)

// WithSendImage sets how images are encoded for the model
func WithSendImage(format string, maxDim, quality int) DetectorOption {
	return func(d *Detector) {
		d.sendFormat = format
		d.sendSize = maxDim
		d.sendQuality = quality
	}
}

// NewDetector creates a new detector with a vision client
func NewDetector(client client.VisionClient, model string, opts ...DetectorOption) *Detector {
	d := &Detector{
		client:      client,
		model:       model,
		proc:        processing.NewProcessor(),
		sendFormat:  "jpeg",
		sendSize:    1536,
		sendQuality: 85,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Locate encodes the image for the model and detects its primary subject
func (d *Detector) Locate(ctx context.Context, img image.Image) (*types.AnalysisResult, error) {
	imgB64, err := d.proc.PrepareImageForModel(img, d.sendFormat, d.sendSize, d.sendQuality)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare image for model: %w", err)
	}
	return d.DetectSubject(ctx, imgB64)
}

// DetectSubject analyzes a base64 image and detects the primary subject
func (d *Detector) DetectSubject(ctx context.Context, imageB64 string) (*types.AnalysisResult, error) {
	result, err := d.DetectSubjectWithPrompt(ctx, imageB64, DefaultPrompt)
	if err != nil {
		return nil, err
	}
	return validateAndAdjustResult(result), nil
}

// DetectSubjectWithPrompt analyzes an image with a custom prompt
func (d *Detector) DetectSubjectWithPrompt(ctx context.Context, imageB64, prompt string) (*types.AnalysisResult, error) {
	result, err := d.client.AnalyzeImage(ctx, d.model, prompt, imageB64)
	if err != nil {
		return nil, err
	}

	result.Primary.Box = normalizeBox(result.Primary.Box)
	result.Primary.Cx = clamp(result.Primary.Cx, 0, 1)
	result.Primary.Cy = clamp(result.Primary.Cy, 0, 1)
	result.Tags = normalizeTags(result.Tags)

	return result, nil
}

// TestVision checks that the model can see the image with a simple prompt
func (d *Detector) TestVision(ctx context.Context, imageB64 string) (string, error) {
	return d.client.SimpleQuery(ctx, d.model, SimpleTestPrompt, imageB64)
}

// validateAndAdjustResult downgrades results that look like model fallbacks
func validateAndAdjustResult(result *types.AnalysisResult) *types.AnalysisResult {
	if strings.ToLower(result.Primary.Label) == "none" {
		return result
	}

	fallbackIndicators := []string{"unclear", "empty", "parse", "error", "fallback", "non-json", "generic"}
	for _, indicator := range fallbackIndicators {
		if strings.Contains(strings.ToLower(result.Primary.Label), indicator) ||
			strings.Contains(strings.ToLower(result.Description), indicator) {
			result.Primary.Label = "none"
			result.Primary.Confidence = 0.0
			break
		}
	}

	return result
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

// normalizeBox keeps a box inside the unit square
func normalizeBox(b types.Box) types.Box {
	x := clamp(b.X, 0, 1)
	y := clamp(b.Y, 0, 1)
	return types.Box{
		X: x,
		Y: y,
		W: clamp(b.W, 0, 1-x),
		H: clamp(b.H, 0, 1-y),
	}
}

// normalizeTags lowercases, deduplicates and keeps at most 5 tags
func normalizeTags(tags []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, 5)
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
		if len(out) == 5 {
			break
		}
	}
	return out
}
