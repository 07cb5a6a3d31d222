package cv

import (
	"image"

	"github.com/nfnt/resize"
)

// DigitThreshold is the binarization cutoff used before numeric recognition
const DigitThreshold = 128

// DigitScale is the upscaling factor used before numeric recognition
const DigitScale = 3

// edgeEnhanceMore is a 3x3 sharpening kernel; the weights sum to 1
var edgeEnhanceMore = [3][3]int{
	{-1, -1, -1},
	{-1, 9, -1},
	{-1, -1, -1},
}

// EdgeEnhanceMore sharpens edges strongly. Border pixels sample their nearest neighbour.
func EdgeEnhanceMore(img *image.RGBA) *image.RGBA {
	bounds := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	w, h := bounds.Dx(), bounds.Dy()

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var sum [3]int
			for ky := -1; ky <= 1; ky++ {
				for kx := -1; kx <= 1; kx++ {
					sx := clampInt(x+kx, 0, w-1) + bounds.Min.X
					sy := clampInt(y+ky, 0, h-1) + bounds.Min.Y
					idx := img.PixOffset(sx, sy)
					k := edgeEnhanceMore[ky+1][kx+1]
					sum[0] += k * int(img.Pix[idx])
					sum[1] += k * int(img.Pix[idx+1])
					sum[2] += k * int(img.Pix[idx+2])
				}
			}

			o := out.PixOffset(x, y)
			out.Pix[o] = uint8(clampInt(sum[0], 0, 255))
			out.Pix[o+1] = uint8(clampInt(sum[1], 0, 255))
			out.Pix[o+2] = uint8(clampInt(sum[2], 0, 255))
			out.Pix[o+3] = img.Pix[img.PixOffset(x+bounds.Min.X, y+bounds.Min.Y)+3]
		}
	}

	return out
}

// Upscale enlarges img by an integer factor with bilinear interpolation
func Upscale(img image.Image, factor int) *image.RGBA {
	if factor <= 1 {
		return Normalize(img)
	}
	b := img.Bounds()
	scaled := resize.Resize(uint(b.Dx()*factor), uint(b.Dy()*factor), img, resize.Bilinear)
	return Normalize(scaled)
}

// Grayscale converts to 8-bit luminance with the ITU-R 601 weights
func Grayscale(img *image.RGBA) *image.Gray {
	bounds := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))

	for y := 0; y < bounds.Dy(); y++ {
		for x := 0; x < bounds.Dx(); x++ {
			idx := img.PixOffset(x+bounds.Min.X, y+bounds.Min.Y)
			r := int(img.Pix[idx])
			g := int(img.Pix[idx+1])
			b := int(img.Pix[idx+2])
			gray.Pix[gray.PixOffset(x, y)] = uint8((r*299 + g*587 + b*114) / 1000)
		}
	}

	return gray
}

// Threshold maps pixels below cutoff to black and the rest to white
func Threshold(gray *image.Gray, cutoff uint8) *image.Gray {
	bounds := gray.Bounds()
	out := image.NewGray(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))

	for y := 0; y < bounds.Dy(); y++ {
		for x := 0; x < bounds.Dx(); x++ {
			v := gray.Pix[gray.PixOffset(x+bounds.Min.X, y+bounds.Min.Y)]
			if v >= cutoff {
				out.Pix[out.PixOffset(x, y)] = 255
			}
		}
	}

	return out
}

// PrepareDigits runs the fixed numeric pipeline: edge enhancement, 3x upscale,
// grayscale, then binarization at the midpoint.
func PrepareDigits(img *image.RGBA) *image.Gray {
	enhanced := EdgeEnhanceMore(img)
	scaled := Upscale(enhanced, DigitScale)
	return Threshold(Grayscale(scaled), DigitThreshold)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
