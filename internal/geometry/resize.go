package geometry

import (
	"fmt"
	"math"
)

// Handle identifies one of the eight resize grips drawn around a box.
type Handle string

// Resize handles. Corner handles move two edges, edge handles move one.
const (
	CornerTopLeft     Handle = "corner-tl"
	CornerTopRight    Handle = "corner-tr"
	CornerBottomLeft  Handle = "corner-bl"
	CornerBottomRight Handle = "corner-br"
	EdgeTop           Handle = "edge-t"
	EdgeRight         Handle = "edge-r"
	EdgeBottom        Handle = "edge-b"
	EdgeLeft          Handle = "edge-l"
)

// minEdgeExtent is the smallest width or height an edge drag can produce.
const minEdgeExtent = 1.0

// Handles lists every resize handle in a stable order.
func Handles() []Handle {
	return []Handle{
		CornerTopLeft, CornerTopRight, CornerBottomLeft, CornerBottomRight,
		EdgeTop, EdgeRight, EdgeBottom, EdgeLeft,
	}
}

// ParseHandle validates a handle name received from the front-end.
func ParseHandle(s string) (Handle, error) {
	for _, h := range Handles() {
		if string(h) == s {
			return h, nil
		}
	}
	return "", fmt.Errorf("unknown resize handle: %q", s)
}

// Resize computes the bounds produced by dragging handle h to cursor, starting
// from the bounds orig captured when the drag began.
//
// The geometrically opposite corner or edge stays fixed. Corner handles may
// cross their anchor, in which case the rectangle flips and its extent is
// taken as an absolute difference. Edge handles floor the moved dimension at
// one pixel so a drag can never collapse the box to zero size; the fixed edge
// still stays where it was.
//
// Resize only depends on (h, orig, cursor), never on the previous frame, so a
// drag that revisits a cursor position reproduces the same rectangle. An
// unknown handle returns orig unchanged.
func Resize(h Handle, orig Rect, cursor Point) Rect {
	switch h {
	case CornerTopLeft:
		return cornerResize(Point{X: orig.Right(), Y: orig.Bottom()}, cursor)
	case CornerTopRight:
		return cornerResize(Point{X: orig.X, Y: orig.Bottom()}, cursor)
	case CornerBottomLeft:
		return cornerResize(Point{X: orig.Right(), Y: orig.Y}, cursor)
	case CornerBottomRight:
		return cornerResize(Point{X: orig.X, Y: orig.Y}, cursor)
	case EdgeTop:
		fixed := orig.Bottom()
		height := math.Max(fixed-math.Min(cursor.Y, fixed), minEdgeExtent)
		return Rect{X: orig.X, Y: fixed - height, Width: orig.Width, Height: height}
	case EdgeBottom:
		height := math.Max(cursor.Y-orig.Y, minEdgeExtent)
		return Rect{X: orig.X, Y: orig.Y, Width: orig.Width, Height: height}
	case EdgeLeft:
		fixed := orig.Right()
		width := math.Max(fixed-math.Min(cursor.X, fixed), minEdgeExtent)
		return Rect{X: fixed - width, Y: orig.Y, Width: width, Height: orig.Height}
	case EdgeRight:
		width := math.Max(cursor.X-orig.X, minEdgeExtent)
		return Rect{X: orig.X, Y: orig.Y, Width: width, Height: orig.Height}
	default:
		return orig
	}
}

// cornerResize spans the rectangle between a fixed anchor corner and the cursor.
func cornerResize(anchor, cursor Point) Rect {
	return NormalizeDrag(anchor, cursor)
}
