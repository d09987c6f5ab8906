package annotation

import (
	"github.com/ironsheep/image-annotator/internal/geometry"
)

// PasteOffset is added to x, y and every vertex of a pasted shape so the copy
// does not sit exactly on top of its source.
const PasteOffset = 0.05

// SelectMode is the keyboard modifier that accompanied a selection click.
type SelectMode int

const (
	// SelectPlain selects only the clicked shape.
	SelectPlain SelectMode = iota
	// SelectToggle flips the clicked shape's selection.
	SelectToggle
	// SelectRange selects every shape between the last selected index and the
	// clicked one. With nothing selected it behaves like SelectPlain.
	SelectRange
)

// Shape carries the geometry for Create. Rect is used for points (location
// only) and boxes; Vertices is used for polygons.
type Shape struct {
	Rect     geometry.Rect
	Rotation float64
	Vertices []geometry.Point
}

// Collection is the mutable set of annotations shown for the current image.
//
// Order matters: later entries are drawn on top and win hit tests. Entries are
// never removed, so an index stays valid for the life of the collection.
// Collection is not safe for concurrent use; the editor serializes access.
type Collection struct {
	items  []Annotation
	nextID int
}

// NewCollection builds a working collection from a snapshot. The snapshot is
// deep-copied and the id counter is seeded above the largest id present.
func NewCollection(s Snapshot) *Collection {
	return &Collection{
		items:  s.Clone(),
		nextID: s.MaxID() + 1,
	}
}

// Len returns the number of annotations, rejected ones included.
func (c *Collection) Len() int { return len(c.items) }

// NextID returns the id the next created shape will receive.
func (c *Collection) NextID() int { return c.nextID }

// At returns a copy of the annotation at index i.
func (c *Collection) At(i int) (Annotation, bool) {
	if !c.valid(i) {
		return Annotation{}, false
	}
	return c.items[i].Clone(), true
}

// Each calls fn with a copy of every annotation in order.
func (c *Collection) Each(fn func(i int, a Annotation)) {
	for i, a := range c.items {
		fn(i, a.Clone())
	}
}

// Snapshot returns a deep copy of the collection.
func (c *Collection) Snapshot() Snapshot {
	return Snapshot(c.items).Clone()
}

// Restore replaces the contents with a copy of s, as undo and redo do. The id
// counter never moves backward so ids handed out earlier are not reused.
func (c *Collection) Restore(s Snapshot) {
	c.items = s.Clone()
	if next := s.MaxID() + 1; next > c.nextID {
		c.nextID = next
	}
}

// Create appends a new Manual annotation and returns it.
//
// A polygon with fewer than MinPolygonVertices vertices is refused with
// ErrTooFewVertices; its bounding box is derived from the vertices. Point
// annotations always have zero extent.
func (c *Collection) Create(kind Kind, shape Shape, class int) (Annotation, error) {
	a := Annotation{
		Kind:  kind,
		Class: class,
		State: StateManual,
	}
	switch kind {
	case KindPolygon:
		if len(shape.Vertices) < MinPolygonVertices {
			return Annotation{}, ErrTooFewVertices
		}
		a.Vertices = append([]geometry.Point(nil), shape.Vertices...)
		b := geometry.Bounds(a.Vertices)
		a.X, a.Y, a.Width, a.Height = b.X, b.Y, b.Width, b.Height
	case KindPoint:
		a.X, a.Y = shape.Rect.X, shape.Rect.Y
	case KindRotatedBox:
		a.Rotation = shape.Rotation
		fallthrough
	default:
		a.X, a.Y, a.Width, a.Height = shape.Rect.X, shape.Rect.Y, shape.Rect.Width, shape.Rect.Height
	}
	a.ID = c.nextID
	c.nextID++
	c.items = append(c.items, a)
	return a.Clone(), nil
}

// TopmostAt returns the index of the last non-rejected annotation hit by p,
// or -1 when nothing is hit.
func (c *Collection) TopmostAt(p geometry.Point) int {
	return c.TopmostMatching(p, nil)
}

// TopmostMatching is TopmostAt restricted to annotations accepted by match.
// A nil match accepts everything.
func (c *Collection) TopmostMatching(p geometry.Point, match func(Annotation) bool) int {
	for i := len(c.items) - 1; i >= 0; i-- {
		a := c.items[i]
		if a.Rejected() {
			continue
		}
		if match != nil && !match(a) {
			continue
		}
		if a.Hit(p) {
			return i
		}
	}
	return -1
}

// DeleteAt rejects the topmost annotation under p. It returns the index it
// rejected, or -1.
func (c *Collection) DeleteAt(p geometry.Point) int {
	i := c.TopmostAt(p)
	if i >= 0 {
		c.reject(i)
	}
	return i
}

// Delete rejects the annotation at index i. It reports false when i is out of
// range or already rejected.
func (c *Collection) Delete(i int) bool {
	if !c.valid(i) || c.items[i].Rejected() {
		return false
	}
	c.reject(i)
	return true
}

// DeleteSelected rejects every selected annotation and returns how many it
// rejected.
func (c *Collection) DeleteSelected() int {
	n := 0
	for i := range c.items {
		if c.items[i].Selected && !c.items[i].Rejected() {
			c.reject(i)
			n++
		}
	}
	return n
}

func (c *Collection) reject(i int) {
	c.items[i].State = StateRejected
	c.items[i].Selected = false
}

// ReclassifyAt sets the class of the topmost annotation under p and returns
// its index, or -1.
func (c *Collection) ReclassifyAt(p geometry.Point, class int) int {
	i := c.TopmostAt(p)
	if i >= 0 {
		c.items[i].Class = class
		c.items[i].touch()
	}
	return i
}

// ReclassifySelected sets the class of every selected, non-rejected annotation
// and returns how many changed.
func (c *Collection) ReclassifySelected(class int) int {
	n := 0
	for i := range c.items {
		a := &c.items[i]
		if !a.Selected || a.Rejected() {
			continue
		}
		a.Class = class
		a.touch()
		n++
	}
	return n
}

// Select updates the selection for a click on index i. Rejected shapes cannot
// be selected: plain and toggle clicks on them are ignored and range selection
// skips them. It reports whether i was a selectable index.
func (c *Collection) Select(i int, mode SelectMode) bool {
	if !c.valid(i) || c.items[i].Rejected() {
		return false
	}
	switch mode {
	case SelectToggle:
		c.items[i].Selected = !c.items[i].Selected
	case SelectRange:
		last := -1
		for j := range c.items {
			if c.items[j].Selected {
				last = j
			}
		}
		if last < 0 {
			c.selectOnly(i)
			break
		}
		lo, hi := min(last, i), max(last, i)
		for j := lo; j <= hi; j++ {
			if !c.items[j].Rejected() {
				c.items[j].Selected = true
			}
		}
	default:
		c.selectOnly(i)
	}
	return true
}

func (c *Collection) selectOnly(i int) {
	for j := range c.items {
		c.items[j].Selected = j == i
	}
}

// SelectAll selects every non-rejected annotation.
func (c *Collection) SelectAll() {
	for i := range c.items {
		c.items[i].Selected = !c.items[i].Rejected()
	}
}

// DeselectAll clears the selection.
func (c *Collection) DeselectAll() {
	for i := range c.items {
		c.items[i].Selected = false
	}
}

// Selected returns the indices of selected annotations in order.
func (c *Collection) Selected() []int {
	var out []int
	for i, a := range c.items {
		if a.Selected {
			out = append(out, i)
		}
	}
	return out
}

// Copy returns deep copies of the selected annotations, or nil when nothing
// is selected.
func (c *Collection) Copy() Snapshot {
	var clip Snapshot
	for _, a := range c.items {
		if a.Selected {
			clip = append(clip, a.Clone())
		}
	}
	return clip
}

// Paste appends a copy of each clipboard entry with a fresh id and returns the
// assigned ids. Ids start above the largest id currently in the collection;
// each copy is offset by PasteOffset and arrives unselected with its lifecycle
// state unchanged.
func (c *Collection) Paste(clip Snapshot) []int {
	if len(clip) == 0 {
		return nil
	}
	next := Snapshot(c.items).MaxID() + 1
	ids := make([]int, 0, len(clip))
	for _, src := range clip {
		a := src.Clone()
		a.ID = next
		a.X += PasteOffset
		a.Y += PasteOffset
		a.Vertices = geometry.OffsetPoints(a.Vertices, PasteOffset, PasteOffset)
		a.Selected = false
		c.items = append(c.items, a)
		ids = append(ids, next)
		next++
	}
	if next > c.nextID {
		c.nextID = next
	}
	return ids
}

// SetBounds moves and resizes the annotation at index i to r, as resize and
// auto-resize do, promoting Pending to Accepted.
//
// Polygon vertices are scaled into the new bounds so they stay authoritative.
// Points have no extent and rejected shapes are frozen; both are refused.
func (c *Collection) SetBounds(i int, r geometry.Rect) bool {
	if !c.valid(i) {
		return false
	}
	a := c.items[i]
	return c.SetBoundsFrom(i, r, a.Bounds(), a.Vertices)
}

// SetBoundsFrom is SetBounds with polygon vertices mapped from a reference
// shape instead of the current one. A drag passes the bounds and vertices
// it grabbed, so passing through a zero extent does not lose the outline.
func (c *Collection) SetBoundsFrom(i int, r, from geometry.Rect, vertices []geometry.Point) bool {
	if !c.valid(i) {
		return false
	}
	a := &c.items[i]
	if a.Rejected() || a.Kind == KindPoint {
		return false
	}
	if a.Kind == KindPolygon {
		a.Vertices = fitVertices(vertices, from, r)
	}
	a.X, a.Y, a.Width, a.Height = r.X, r.Y, r.Width, r.Height
	a.touch()
	return true
}

// fitVertices maps vertices from the from rectangle onto the to rectangle.
// A degenerate source axis collapses onto the target's origin on that axis.
func fitVertices(vertices []geometry.Point, from, to geometry.Rect) []geometry.Point {
	out := make([]geometry.Point, len(vertices))
	for i, v := range vertices {
		p := geometry.Point{X: to.X, Y: to.Y}
		if from.Width > 0 {
			p.X += (v.X - from.X) * to.Width / from.Width
		}
		if from.Height > 0 {
			p.Y += (v.Y - from.Y) * to.Height / from.Height
		}
		out[i] = p
	}
	return out
}

func (c *Collection) valid(i int) bool { return i >= 0 && i < len(c.items) }
