//go:build !windows
// +build !windows

package cv

import "image"

// ScreenCapture is unavailable on this platform; use DirectoryCapture or a CaptureFunc
type ScreenCapture struct{}

// NewScreenCapture always fails with ErrCaptureUnsupported
func NewScreenCapture() (*ScreenCapture, error) {
	return nil, ErrCaptureUnsupported
}

// Dimensions returns zero
func (sc *ScreenCapture) Dimensions() (width, height int) {
	return 0, 0
}

// CaptureFrame always fails with ErrCaptureUnsupported
func (sc *ScreenCapture) CaptureFrame() (*image.RGBA, error) {
	return nil, ErrCaptureUnsupported
}

// CaptureRegion always fails with ErrCaptureUnsupported
func (sc *ScreenCapture) CaptureRegion(region Region) (*image.RGBA, error) {
	return nil, ErrCaptureUnsupported
}
