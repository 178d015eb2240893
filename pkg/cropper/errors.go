package cropper

import (
	"errors"
	"fmt"

	"github.com/menta2k/aurea-media/pkg/types"
)

var (
	// ErrDecode matches any DecodeError
	ErrDecode = errors.New("cropper: source could not be decoded")

	// ErrInvalidRegion matches any InvalidRegionError
	ErrInvalidRegion = errors.New("cropper: invalid crop region")
)

// DecodeError reports a source image that could not be resolved or decoded
type DecodeError struct {
	Locator string
	Err     error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("cropper: decode %q: %v", e.Locator, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

func (e *DecodeError) Is(target error) bool { return target == ErrDecode }

// InvalidRegionError reports a crop region with no output pixels
type InvalidRegionError struct {
	Region types.CropRegion
}

func (e *InvalidRegionError) Error() string {
	return fmt.Sprintf("cropper: invalid crop region %gx%g at (%g,%g): width and height must be positive",
		e.Region.Width, e.Region.Height, e.Region.X, e.Region.Y)
}

func (e *InvalidRegionError) Is(target error) bool { return target == ErrInvalidRegion }
