package resolver

import (
	"errors"
	"fmt"
)

// ErrUpload matches any UploadError
var ErrUpload = errors.New("resolver: upload failed")

// UploadError reports the first pending asset whose upload failed
type UploadError struct {
	Preview string
	Name    string
	Err     error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("resolver: upload %s (%s): %v", e.Name, e.Preview, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

func (e *UploadError) Is(target error) bool { return target == ErrUpload }
