package types

import "math"

// Box represents a normalized bounding box with coordinates in [0,1] range
type Box struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Primary represents the primary subject located in an image
type Primary struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Box        Box     `json:"box"`
	Cx         float64 `json:"cx"`
	Cy         float64 `json:"cy"`
}

// AnalysisResult contains the subject located in a portfolio image
type AnalysisResult struct {
	Primary     Primary  `json:"primary"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}

// CropRegion is a crop rectangle in pixel coordinates of the displayed
// (rotated) image, as produced by the crop UI.
type CropRegion struct {
	X      float64 `json:"x" yaml:"x"`
	Y      float64 `json:"y" yaml:"y"`
	Width  float64 `json:"width" yaml:"width"`
	Height float64 `json:"height" yaml:"height"`
}

// Size returns the output dimensions of the region in whole pixels
func (r CropRegion) Size() (int, int) {
	return int(math.Round(r.Width)), int(math.Round(r.Height))
}

// Valid reports whether the region describes at least one output pixel
func (r CropRegion) Valid() bool {
	if math.IsNaN(r.X) || math.IsNaN(r.Y) || math.IsNaN(r.Width) || math.IsNaN(r.Height) {
		return false
	}
	if r.Width <= 0 || r.Height <= 0 {
		return false
	}
	w, h := r.Size()
	return w >= 1 && h >= 1
}

// NormalizeRotation maps any angle in degrees into [0, 360). NaN and
// infinities map to 0.
func NormalizeRotation(deg float64) float64 {
	if math.IsNaN(deg) || math.IsInf(deg, 0) {
		return 0
	}
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	if deg >= 360 {
		deg = 0
	}
	return deg
}

// EncodeOptions controls how a raster is encoded
type EncodeOptions struct {
	Format   string
	Quality  int
	Lossless bool
}
