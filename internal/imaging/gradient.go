package imaging

import (
	"image"
	"math"

	"github.com/disintegration/imaging"
)

// blurSigma is the Gaussian sigma applied before gradients are taken.
const blurSigma = 1.5

// gradientField holds the Sobel gradient magnitude of an image on the 0-255
// intensity scale. Border pixels have no full 3x3 neighbourhood and are left
// at zero.
type gradientField struct {
	width, height int
	mag           []float64
}

// newGradientField converts img to intensity, blurs it and computes the
// gradient magnitude at every interior pixel.
//
// # Algorithm
//
//  1. Grayscale conversion with imaging.Grayscale (luminance weights)
//  2. Gaussian blur, sigma 1.5, with imaging.Blur
//  3. Sobel operators for X and Y gradients,
//     magnitude = sqrt(Gx² + Gy²)
func newGradientField(img image.Image) *gradientField {
	blurred := imaging.Blur(imaging.Grayscale(img), blurSigma)
	bounds := blurred.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	// All channels are equal after grayscale; read red.
	intensity := make([]float64, width*height)
	for y := 0; y < height; y++ {
		row := y * blurred.Stride
		for x := 0; x < width; x++ {
			intensity[y*width+x] = float64(blurred.Pix[row+x*4])
		}
	}

	sobelX := [3][3]float64{
		{-1, 0, 1},
		{-2, 0, 2},
		{-1, 0, 1},
	}
	sobelY := [3][3]float64{
		{-1, -2, -1},
		{0, 0, 0},
		{1, 2, 1},
	}

	g := &gradientField{width: width, height: height, mag: make([]float64, width*height)}
	for y := 1; y < height-1; y++ {
		for x := 1; x < width-1; x++ {
			var gx, gy float64
			for ky := -1; ky <= 1; ky++ {
				for kx := -1; kx <= 1; kx++ {
					v := intensity[(y+ky)*width+x+kx]
					gx += v * sobelX[ky+1][kx+1]
					gy += v * sobelY[ky+1][kx+1]
				}
			}
			g.mag[y*width+x] = math.Sqrt(gx*gx + gy*gy)
		}
	}
	return g
}

// at returns the magnitude at (x, y) and false when the pixel is outside the
// field.
func (g *gradientField) at(x, y int) (float64, bool) {
	if x < 0 || y < 0 || x >= g.width || y >= g.height {
		return 0, false
	}
	return g.mag[y*g.width+x], true
}

// clampFloat constrains v to [lo, hi].
func clampFloat(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(v, hi))
}
