package cv

import "image"

// Region is a rectangle given by its corners, X2/Y2 exclusive
type Region struct {
	X1, Y1, X2, Y2 int
}

// NewRegion creates a new region
func NewRegion(x1, y1, x2, y2 int) Region {
	return Region{X1: x1, Y1: y1, X2: x2, Y2: y2}
}

// RegionFromRect creates a region from an origin and a size
func RegionFromRect(x, y, width, height int) Region {
	return Region{X1: x, Y1: y, X2: x + width, Y2: y + height}
}

// Width returns the width of the region
func (r Region) Width() int {
	return r.X2 - r.X1
}

// Height returns the height of the region
func (r Region) Height() int {
	return r.Y2 - r.Y1
}

// Empty reports whether the region has no area
func (r Region) Empty() bool {
	return r.Width() <= 0 || r.Height() <= 0
}

// Rectangle converts the region for use with the image package
func (r Region) Rectangle() image.Rectangle {
	return image.Rect(r.X1, r.Y1, r.X2, r.Y2)
}

// Inside reports whether the region lies entirely within bounds
func (r Region) Inside(bounds image.Rectangle) bool {
	return !r.Empty() && r.Rectangle().In(bounds)
}
