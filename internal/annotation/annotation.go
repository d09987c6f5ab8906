package annotation

import (
	"errors"
	"fmt"

	"github.com/ironsheep/image-annotator/internal/geometry"
)

// Kind is the shape of an annotation.
type Kind string

const (
	KindPoint      Kind = "point"
	KindBox        Kind = "bbox"
	KindRotatedBox Kind = "rbbox"
	KindPolygon    Kind = "polygon"
)

// ParseKind validates a shape kind name.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindPoint, KindBox, KindRotatedBox, KindPolygon:
		return k, nil
	}
	return "", fmt.Errorf("unknown annotation kind: %q", s)
}

// State is the review status of an annotation.
type State string

const (
	// StatePending marks shapes imported from a label file and not yet reviewed.
	StatePending State = "pending"
	// StateManual marks shapes the user drew.
	StateManual State = "manual"
	// StateAccepted marks reviewed shapes that have been edited.
	StateAccepted State = "accepted"
	// StateRejected is the soft-delete tombstone.
	StateRejected State = "rejected"
)

// MinPolygonVertices is the smallest vertex count that forms a polygon.
const MinPolygonVertices = 3

// ErrTooFewVertices is returned when a polygon is created from fewer than
// MinPolygonVertices vertices.
var ErrTooFewVertices = errors.New("polygon needs at least 3 vertices")

// Annotation is one labeled shape.
//
// For points, (X, Y) is the location and the extent is zero. For boxes, (X, Y)
// is the top-left corner. For polygons, Vertices is authoritative and X, Y,
// Width, Height hold the derived bounding box.
type Annotation struct {
	ID       int              `json:"id"`
	Kind     Kind             `json:"type"`
	X        float64          `json:"x"`
	Y        float64          `json:"y"`
	Width    float64          `json:"width"`
	Height   float64          `json:"height"`
	Rotation float64          `json:"rotation"`
	Vertices []geometry.Point `json:"vertices,omitempty"`
	Class    int              `json:"class"`
	State    State            `json:"state"`
	Selected bool             `json:"-"`
}

// Clone returns a deep copy; the vertex slice is never shared.
func (a Annotation) Clone() Annotation {
	c := a
	if a.Vertices != nil {
		c.Vertices = make([]geometry.Point, len(a.Vertices))
		copy(c.Vertices, a.Vertices)
	}
	return c
}

// Bounds returns the annotation's axis-aligned extent.
func (a Annotation) Bounds() geometry.Rect {
	return geometry.Rect{X: a.X, Y: a.Y, Width: a.Width, Height: a.Height}
}

// Location returns the anchor point (the location of a point, the top-left
// corner of anything else).
func (a Annotation) Location() geometry.Point {
	return geometry.Point{X: a.X, Y: a.Y}
}

// IsBox reports whether the shape is an axis-aligned or rotated box, the only
// kinds the YOLO label format can carry.
func (a Annotation) IsBox() bool {
	return a.Kind == KindBox || a.Kind == KindRotatedBox
}

// Rejected reports whether the annotation has been soft-deleted.
func (a Annotation) Rejected() bool { return a.State == StateRejected }

// Hit reports whether p selects the annotation. Points use the hit radius;
// every other kind uses its bounding box, ignoring rotation.
func (a Annotation) Hit(p geometry.Point) bool {
	if a.Kind == KindPoint {
		return geometry.PointHit(a.Location(), p)
	}
	return a.Bounds().Contains(p)
}

// touch applies the implicit Pending -> Accepted transition on edit.
func (a *Annotation) touch() {
	if a.State == StatePending {
		a.State = StateAccepted
	}
}

// Snapshot is an independent copy of a whole collection.
type Snapshot []Annotation

// Clone deep-copies the snapshot. A nil snapshot stays nil.
func (s Snapshot) Clone() Snapshot {
	if s == nil {
		return nil
	}
	out := make(Snapshot, len(s))
	for i, a := range s {
		out[i] = a.Clone()
	}
	return out
}

// MaxID returns the largest id in the snapshot, or 0 when empty.
func (s Snapshot) MaxID() int {
	maxID := 0
	for _, a := range s {
		if a.ID > maxID {
			maxID = a.ID
		}
	}
	return maxID
}
