//go:build windows
// +build windows

package cv

import (
	"path/filepath"
	"testing"
)

// TestScreenCapture grabs the real desktop; skipped in short mode
func TestScreenCapture(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping screen capture test in short mode")
	}

	capture, err := NewScreenCapture()
	if err != nil {
		t.Fatalf("Failed to create screen capture: %v", err)
	}

	width, height := capture.Dimensions()
	t.Logf("Screen dimensions: %dx%d", width, height)

	frame, err := capture.CaptureFrame()
	if err != nil {
		t.Fatalf("Failed to capture frame: %v", err)
	}

	bounds := frame.Bounds()
	if bounds.Min.X != 0 || bounds.Min.Y != 0 {
		t.Errorf("Frame should start at (0,0), got (%d,%d)", bounds.Min.X, bounds.Min.Y)
	}
	if bounds.Dx() != width || bounds.Dy() != height {
		t.Errorf("Frame size mismatch: expected %dx%d, got %dx%d", width, height, bounds.Dx(), bounds.Dy())
	}

	region := RegionFromRect(10, 20, 100, 50)
	cropped, err := NewRegionCapture(capture, region).CaptureFrame()
	if err != nil {
		t.Fatalf("Failed to capture region: %v", err)
	}
	if cropped.Bounds().Dx() != 100 || cropped.Bounds().Dy() != 50 {
		t.Errorf("Region size mismatch: got %v", cropped.Bounds())
	}

	outputPath := filepath.Join(t.TempDir(), "test_capture.png")
	if err := SavePNG(frame, outputPath); err != nil {
		t.Errorf("Could not save test capture: %v", err)
	}
}
