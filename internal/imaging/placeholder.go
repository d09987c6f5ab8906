package imaging

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// Placeholder dimensions and checker cell size.
const (
	placeholderSize = 64
	placeholderCell = 8
)

// Placeholder returns the checkerboard shown in place of an image that could
// not be decoded. Each call returns a fresh image.
func Placeholder() *image.NRGBA {
	light := color.NRGBA{R: 200, G: 200, B: 200, A: 255}
	dark := color.NRGBA{R: 120, G: 120, B: 120, A: 255}

	img := imaging.New(placeholderSize, placeholderSize, light)
	for y := 0; y < placeholderSize; y++ {
		for x := 0; x < placeholderSize; x++ {
			if (x/placeholderCell+y/placeholderCell)%2 == 1 {
				img.SetNRGBA(x, y, dark)
			}
		}
	}
	return img
}
