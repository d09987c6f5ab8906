package imaging

import (
	"errors"
	"fmt"
	"image"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/ironsheep/image-annotator/internal/geometry"
)

// Auto-resize tuning.
const (
	// searchFraction is the share of the box extent searched on either side
	// of each edge.
	searchFraction = 0.3
	// minSearch is the smallest search half-window in pixels.
	minSearch = 5.0
	// candidateSteps is the approximate number of edge positions tried.
	candidateSteps = 30.0
	// perpendicularSamples is the approximate number of gradient samples
	// averaged along each candidate edge.
	perpendicularSamples = 20.0
	// confidenceFloor is the minimum average gradient accepted as an edge.
	confidenceFloor = 10.0
	// minRefinedExtent is the smallest width or height a refinement may produce.
	minRefinedExtent = 10.0
)

// ErrProcessingFailed reports that the source image could not be decoded for
// auto-resize.
var ErrProcessingFailed = errors.New("auto-resize processing failed")

// AutoResize snaps the edges of box to the strongest nearby intensity
// boundaries in img.
//
// Parameters:
//   - img: Source image. Its bounds give the clamping region.
//   - box: Box in image pixel coordinates.
//
// Returns:
//   - geometry.Rect: The refined box, or box itself when no refinement applies.
//   - bool: Whether the returned box differs from the input.
//
// # Algorithm
//
// Each side is refined independently. A window of ±30% of the box width
// (left and right sides) or height (top and bottom), at least 5 pixels, is
// clamped to the image. About 30 evenly spaced candidate positions are tried
// in the window and each is scored by the mean gradient of about 20 samples
// along the box's perpendicular extent. The best-scoring candidate wins unless
// its score is below 10, in which case the side stays where it was.
//
// If the four refined sides produce a box narrower or shorter than 10 pixels
// the refinement is discarded and box is returned unchanged. Otherwise the
// result is clamped to the image bounds.
func AutoResize(img image.Image, box geometry.Rect) (geometry.Rect, bool) {
	size := img.Bounds().Size()
	imgW, imgH := float64(size.X), float64(size.Y)
	if size.X < 1 || size.Y < 1 {
		return box, false
	}

	grad := newGradientField(img)
	searchW := math.Max(box.Width*searchFraction, minSearch)
	searchH := math.Max(box.Height*searchFraction, minSearch)

	vertical := func(edge float64) float64 {
		return grad.bestEdge(edge, edge-searchW, edge+searchW, box.Y, box.Bottom(), imgW, imgH, true)
	}
	horizontal := func(edge float64) float64 {
		return grad.bestEdge(edge, edge-searchH, edge+searchH, box.X, box.Right(), imgH, imgW, false)
	}

	left := vertical(box.X)
	right := vertical(box.Right())
	top := horizontal(box.Y)
	bottom := horizontal(box.Bottom())

	refined := geometry.Rect{X: left, Y: top, Width: right - left, Height: bottom - top}
	if refined.Width < minRefinedExtent || refined.Height < minRefinedExtent {
		return box, false
	}
	refined = refined.Clamp(imgW, imgH)
	return refined, refined != box
}

// bestEdge scans candidate positions in [lo, hi] along the moving axis and
// returns the one with the highest mean gradient across [spanLo, spanHi] on
// the other axis. axisLen and spanLen are the image extents along each axis.
// columns selects vertical edges (x varies, y is sampled); otherwise rows.
// The original position is returned when the window is empty or no candidate
// clears the confidence floor.
func (g *gradientField) bestEdge(orig, lo, hi, spanLo, spanHi, axisLen, spanLen float64, columns bool) float64 {
	lo = clampFloat(lo, 0, axisLen-1)
	hi = clampFloat(hi, 0, axisLen-1)
	spanLo = clampFloat(spanLo, 0, spanLen-1)
	spanHi = clampFloat(spanHi, 0, spanLen-1)
	if lo >= hi || spanLo >= spanHi {
		return orig
	}

	step := math.Max((hi-lo)/candidateSteps, 1)
	spanStep := math.Max((spanHi-spanLo)/perpendicularSamples, 1)

	var positions, scores []float64
	samples := make([]float64, 0, int(perpendicularSamples)+2)
	for pos := lo; pos <= hi; pos += step {
		samples = samples[:0]
		for s := spanLo; s <= spanHi; s += spanStep {
			x, y := int(pos), int(s)
			if !columns {
				x, y = y, x
			}
			if v, ok := g.at(x, y); ok {
				samples = append(samples, v)
			}
		}
		score := 0.0
		if len(samples) > 0 {
			score = stat.Mean(samples, nil)
		}
		positions = append(positions, pos)
		scores = append(scores, score)
	}

	best := floats.MaxIdx(scores)
	if scores[best] < confidenceFloor {
		return orig
	}
	return positions[best]
}

// AutoResizeFile decodes the image at path through cache and refines box.
// A decode failure is reported as ErrProcessingFailed.
func AutoResizeFile(cache *ImageCache, path string, box geometry.Rect) (geometry.Rect, bool, error) {
	img, err := cache.Load(path)
	if err != nil {
		return box, false, fmt.Errorf("%w: %w", ErrProcessingFailed, err)
	}
	r, changed := AutoResize(img, box)
	return r, changed, nil
}
