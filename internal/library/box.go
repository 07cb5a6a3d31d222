package library

import (
	"fmt"
	"image"
	"strconv"
	"strings"
)

// Box is a rectangle in frame coordinates
type Box struct {
	X, Y, Width, Height int
}

// Rect creates a Box from its origin and size.
func Rect(x, y, width, height int) Box {
	return Box{X: x, Y: y, Width: width, Height: height}
}

// Valid reports whether the box has a positive size.
func (b Box) Valid() bool {
	return b.Width > 0 && b.Height > 0
}

// Within reports whether the box fits inside a width x height area anchored at the origin.
func (b Box) Within(width, height int) bool {
	if b.X < 0 || b.Y < 0 || b.Width < 0 || b.Height < 0 {
		return false
	}
	// Subtract rather than add so huge sizes cannot overflow past the check
	return b.X <= width && b.Width <= width-b.X && b.Y <= height && b.Height <= height-b.Y
}

// Rectangle converts the box to an image.Rectangle.
func (b Box) Rectangle() image.Rectangle {
	return image.Rect(b.X, b.Y, b.X+b.Width, b.Y+b.Height)
}

// Array returns the box as [x, y, width, height].
func (b Box) Array() [4]int {
	return [4]int{b.X, b.Y, b.Width, b.Height}
}

// String formats the box as "x,y,width,height", the form ParseBox accepts.
func (b Box) String() string {
	return fmt.Sprintf("%d,%d,%d,%d", b.X, b.Y, b.Width, b.Height)
}

// ParseBox parses "x,y,width,height". Surrounding whitespace is ignored.
func ParseBox(s string) (Box, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return Box{}, fmt.Errorf("box %q: want x,y,width,height", s)
	}

	var values [4]int
	for i, part := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return Box{}, fmt.Errorf("box %q: %w", s, err)
		}
		values[i] = v
	}

	box := Rect(values[0], values[1], values[2], values[3])
	if !box.Valid() {
		return Box{}, fmt.Errorf("box %q: width and height must be positive", s)
	}
	return box, nil
}
