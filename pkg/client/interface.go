package client

import (
	"context"

	"github.com/menta2k/aurea-media/pkg/types"
)

// VisionClient is a vision model backend that can locate the subject of an image
type VisionClient interface {
	SimpleQuery(ctx context.Context, model, prompt, imgB64 string) (string, error)
	AnalyzeImage(ctx context.Context, model, prompt, imgB64 string) (*types.AnalysisResult, error)
}
