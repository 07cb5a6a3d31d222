package cv

import (
	"errors"
	"fmt"
	"image"
	"image/draw"
)

// ErrCaptureUnsupported is returned by screen capture on platforms without a native implementation
var ErrCaptureUnsupported = errors.New("screen capture is not supported on this platform")

// Capturer produces frames. Frames are always *image.RGBA anchored at (0,0).
type Capturer interface {
	CaptureFrame() (*image.RGBA, error)
}

// RegionCapturer is implemented by capturers that can grab a sub-rectangle natively
type RegionCapturer interface {
	Capturer
	CaptureRegion(region Region) (*image.RGBA, error)
}

// CaptureFunc adapts a function to the Capturer interface
type CaptureFunc func() (*image.RGBA, error)

// CaptureFrame calls f
func (f CaptureFunc) CaptureFrame() (*image.RGBA, error) {
	return f()
}

// regionCapture restricts another capturer to a fixed region
type regionCapture struct {
	source Capturer
	region Region
}

// NewRegionCapture returns a capturer that yields only region of source's frames.
// The native region path is used when source supports it.
func NewRegionCapture(source Capturer, region Region) Capturer {
	return &regionCapture{source: source, region: region}
}

func (rc *regionCapture) CaptureFrame() (*image.RGBA, error) {
	if native, ok := rc.source.(RegionCapturer); ok {
		return native.CaptureRegion(rc.region)
	}

	frame, err := rc.source.CaptureFrame()
	if err != nil {
		return nil, err
	}
	if !rc.region.Inside(frame.Bounds()) {
		return nil, fmt.Errorf("region %v outside frame %v", rc.region.Rectangle(), frame.Bounds())
	}
	return CropRegion(frame, rc.region.Rectangle()), nil
}

// Normalize converts any image to *image.RGBA with its origin at (0,0).
// An RGBA that already satisfies this is returned as is.
func Normalize(img image.Image) *image.RGBA {
	bounds := img.Bounds()
	if rgba, ok := img.(*image.RGBA); ok && bounds.Min == (image.Point{}) {
		return rgba
	}

	out := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(out, out.Bounds(), img, bounds.Min, draw.Src)
	return out
}
