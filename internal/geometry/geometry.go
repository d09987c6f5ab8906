package geometry

import (
	"math"
	"strconv"
	"strings"
)

// HitRadius is the distance within which a click selects a point annotation.
const HitRadius = 10.0

// Point is a 2D location in image pixel coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Rect is an axis-aligned rectangle described by its top-left corner and extent.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Right returns the X coordinate of the right edge.
func (r Rect) Right() float64 { return r.X + r.Width }

// Bottom returns the Y coordinate of the bottom edge.
func (r Rect) Bottom() float64 { return r.Y + r.Height }

// Contains reports whether p lies inside r. All four edges are inclusive.
func (r Rect) Contains(p Point) bool {
	return p.X >= r.X && p.X <= r.Right() && p.Y >= r.Y && p.Y <= r.Bottom()
}

// Offset returns r translated by (dx, dy).
func (r Rect) Offset(dx, dy float64) Rect {
	return Rect{X: r.X + dx, Y: r.Y + dy, Width: r.Width, Height: r.Height}
}

// Clamp restricts r to the region [0,width] x [0,height].
//
// The left and top edges are raised to zero and the right and bottom edges are
// lowered to the image extent. A rectangle lying entirely outside the region
// collapses to zero width or height rather than going negative.
func (r Rect) Clamp(width, height float64) Rect {
	x := math.Max(r.X, 0)
	y := math.Max(r.Y, 0)
	right := math.Min(r.Right(), width)
	bottom := math.Min(r.Bottom(), height)
	return Rect{
		X:      x,
		Y:      y,
		Width:  math.Max(right-x, 0),
		Height: math.Max(bottom-y, 0),
	}
}

// Distance returns the Euclidean distance between a and b.
func Distance(a, b Point) float64 {
	return math.Hypot(b.X-a.X, b.Y-a.Y)
}

// PointHit reports whether p falls within HitRadius of loc.
func PointHit(loc, p Point) bool {
	return Distance(loc, p) < HitRadius
}

// NormalizeDrag converts a drag from anchor to cursor into a rectangle with a
// top-left origin and non-negative extent, regardless of drag direction.
func NormalizeDrag(anchor, cursor Point) Rect {
	return Rect{
		X:      math.Min(anchor.X, cursor.X),
		Y:      math.Min(anchor.Y, cursor.Y),
		Width:  math.Abs(cursor.X - anchor.X),
		Height: math.Abs(cursor.Y - anchor.Y),
	}
}

// Bounds returns the axis-aligned bounding box of vertices.
// An empty slice yields the zero Rect.
func Bounds(vertices []Point) Rect {
	if len(vertices) == 0 {
		return Rect{}
	}
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, v := range vertices {
		minX = math.Min(minX, v.X)
		minY = math.Min(minY, v.Y)
		maxX = math.Max(maxX, v.X)
		maxY = math.Max(maxY, v.Y)
	}
	return Rect{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}

// Path renders vertices as SVG path commands ("M x0 y0 L x1 y1 ...").
//
// When closed is true a trailing " Z" is appended; the preview drawn while
// vertices are still being collected passes closed=false. An empty slice
// renders as the empty string.
func Path(vertices []Point, closed bool) string {
	if len(vertices) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("M ")
	b.WriteString(formatCoord(vertices[0].X))
	b.WriteByte(' ')
	b.WriteString(formatCoord(vertices[0].Y))
	for _, v := range vertices[1:] {
		b.WriteString(" L ")
		b.WriteString(formatCoord(v.X))
		b.WriteByte(' ')
		b.WriteString(formatCoord(v.Y))
	}
	if closed {
		b.WriteString(" Z")
	}
	return b.String()
}

// PolygonArea returns the unsigned area enclosed by the ordered vertices using
// the shoelace formula. Fewer than three vertices enclose no area.
func PolygonArea(vertices []Point) float64 {
	n := len(vertices)
	if n < 3 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		sum += vertices[i].X*vertices[j].Y - vertices[j].X*vertices[i].Y
	}
	return math.Abs(sum) / 2
}

// OffsetPoints returns a copy of vertices translated by (dx, dy).
func OffsetPoints(vertices []Point, dx, dy float64) []Point {
	if vertices == nil {
		return nil
	}
	out := make([]Point, len(vertices))
	for i, v := range vertices {
		out[i] = Point{X: v.X + dx, Y: v.Y + dy}
	}
	return out
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
