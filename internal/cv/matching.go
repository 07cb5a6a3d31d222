package cv

import (
	"image"
	"image/color"
	"math"
)

// MatchResult contains template matching results
type MatchResult struct {
	Found      bool
	Location   image.Point
	Confidence float64
}

// DefaultMatchThreshold is the acceptance score for template rules
const DefaultMatchThreshold = 0.8

// MatchConfig configures template matching. Scores are zero-mean normalized
// cross-correlation with negatives clamped to 0.
type MatchConfig struct {
	Threshold float64 // 0.0-1.0, higher = more strict
}

// DefaultMatchConfig returns the settings template rules are evaluated with
func DefaultMatchConfig() *MatchConfig {
	return &MatchConfig{Threshold: DefaultMatchThreshold}
}

// FindTemplate returns the best-scoring location of needle in haystack
func FindTemplate(haystack, needle *image.RGBA, config *MatchConfig) *MatchResult {
	if config == nil {
		config = DefaultMatchConfig()
	}
	if !fits(haystack, needle) {
		return &MatchResult{Found: false}
	}

	bounds := haystack.Bounds()
	needleWidth := needle.Bounds().Dx()
	needleHeight := needle.Bounds().Dy()
	bestScore := -1.0
	best := &MatchResult{}

	for y := 0; y <= bounds.Dy()-needleHeight; y++ {
		for x := 0; x <= bounds.Dx()-needleWidth; x++ {
			score := matchScore(haystack, needle, x, y)
			if score > bestScore {
				bestScore = score
				best.Location = image.Point{x, y}
				best.Confidence = score
				best.Found = score >= config.Threshold
			}
		}
	}

	return best
}

// FindTemplateAll returns every location scoring at or above the threshold, in row-major order
func FindTemplateAll(haystack, needle *image.RGBA, config *MatchConfig) []MatchResult {
	if config == nil {
		config = DefaultMatchConfig()
	}
	if !fits(haystack, needle) {
		return nil
	}

	bounds := haystack.Bounds()
	needleWidth := needle.Bounds().Dx()
	needleHeight := needle.Bounds().Dy()
	var results []MatchResult

	for y := 0; y <= bounds.Dy()-needleHeight; y++ {
		for x := 0; x <= bounds.Dx()-needleWidth; x++ {
			score := matchScore(haystack, needle, x, y)
			if score < config.Threshold {
				continue
			}
			results = append(results, MatchResult{
				Found:      true,
				Location:   image.Point{x, y},
				Confidence: score,
			})
		}
	}

	return results
}

// fits reports whether a non-empty needle lies inside the haystack
func fits(haystack, needle *image.RGBA) bool {
	size := needle.Bounds().Size()
	bounds := haystack.Bounds()
	if bounds.Empty() || size.X == 0 || size.Y == 0 {
		return false
	}
	return size.X <= bounds.Dx() && size.Y <= bounds.Dy()
}

// matchScore compares needle with the haystack patch at (x, y). Both images
// must be anchored at (0,0). Flat patches have no correlation, so they score
// by equality.
func matchScore(haystack, needle *image.RGBA, x, y int) float64 {
	width := needle.Bounds().Dx()
	height := needle.Bounds().Dy()

	c, ok := correlation(haystack, needle, x, y, width, height)
	if ok {
		return math.Max(0, math.Min(1, c))
	}
	if matchSAD(haystack, needle, x, y, width, height) >= 1.0-1.0/255 {
		return 1
	}
	return 0
}

// matchSAD scores a patch by its sum of absolute differences, 1 meaning identical
func matchSAD(haystack, needle *image.RGBA, x, y, width, height int) float64 {
	var sad uint64

	for ny := 0; ny < height; ny++ {
		for nx := 0; nx < width; nx++ {
			hIdx := (y+ny)*haystack.Stride + (x+nx)*4
			nIdx := ny*needle.Stride + nx*4

			sad += uint64(abs(int(haystack.Pix[hIdx]) - int(needle.Pix[nIdx])))
			sad += uint64(abs(int(haystack.Pix[hIdx+1]) - int(needle.Pix[nIdx+1])))
			sad += uint64(abs(int(haystack.Pix[hIdx+2]) - int(needle.Pix[nIdx+2])))
		}
	}

	maxSAD := float64(width * height * 3 * 255)
	return 1.0 - (float64(sad) / maxSAD)
}

// correlation returns the Pearson coefficient over the RGB channels.
// ok is false when either side has no variance.
func correlation(haystack, needle *image.RGBA, x, y, width, height int) (float64, bool) {
	var sumH, sumN, sumHN, sumHH, sumNN float64
	pixelCount := float64(width * height * 3)

	for ny := 0; ny < height; ny++ {
		for nx := 0; nx < width; nx++ {
			hIdx := (y+ny)*haystack.Stride + (x+nx)*4
			nIdx := ny*needle.Stride + nx*4

			for c := 0; c < 3; c++ {
				h := float64(haystack.Pix[hIdx+c])
				n := float64(needle.Pix[nIdx+c])

				sumH += h
				sumN += n
				sumHN += h * n
				sumHH += h * h
				sumNN += n * n
			}
		}
	}

	numerator := sumHN - (sumH * sumN / pixelCount)
	varH := sumHH - (sumH * sumH / pixelCount)
	varN := sumNN - (sumN * sumN / pixelCount)

	// Rounding can leave a tiny residue on flat patches
	if varH < 1e-6 || varN < 1e-6 {
		return 0, false
	}
	return numerator / math.Sqrt(varH*varN), true
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// CropRegion copies rect out of img into a new image anchored at (0,0).
// rect is clipped to img's bounds.
func CropRegion(img *image.RGBA, rect image.Rectangle) *image.RGBA {
	rect = rect.Intersect(img.Bounds())
	cropped := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))

	rowBytes := rect.Dx() * 4
	for y := 0; y < rect.Dy(); y++ {
		src := img.PixOffset(rect.Min.X, rect.Min.Y+y)
		copy(cropped.Pix[y*cropped.Stride:y*cropped.Stride+rowBytes], img.Pix[src:src+rowBytes])
	}

	return cropped
}

// Annotate returns a copy of img with an outline drawn around each rectangle
func Annotate(img *image.RGBA, rects []image.Rectangle, col color.RGBA) *image.RGBA {
	out := image.NewRGBA(img.Bounds())
	copy(out.Pix, img.Pix)

	for _, rect := range rects {
		drawRect(out, rect.Intersect(out.Bounds()), col)
	}
	return out
}

func drawRect(img *image.RGBA, rect image.Rectangle, col color.RGBA) {
	if rect.Empty() {
		return
	}
	// Top and bottom
	for x := rect.Min.X; x < rect.Max.X; x++ {
		img.SetRGBA(x, rect.Min.Y, col)
		img.SetRGBA(x, rect.Max.Y-1, col)
	}
	// Left and right
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		img.SetRGBA(rect.Min.X, y, col)
		img.SetRGBA(rect.Max.X-1, y, col)
	}
}
