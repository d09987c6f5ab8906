package editor

import (
	"errors"
	"fmt"

	"github.com/ironsheep/image-annotator/internal/annotation"
	"github.com/ironsheep/image-annotator/internal/geometry"
	"github.com/ironsheep/image-annotator/internal/imaging"
)

func (e *Editor) startDraw(cmd Command) (outcome, error) {
	switch e.tool {
	case ToolPoint, ToolBox, ToolRotatedBox:
	default:
		return outcome{}, nil
	}
	e.coll.DeselectAll()
	e.draw = &drawGesture{anchor: cmd.Point()}
	r := geometry.Rect{X: cmd.X, Y: cmd.Y}
	return outcome{preview: &r}, nil
}

func (e *Editor) updateDraw(cmd Command) (outcome, error) {
	if e.draw == nil {
		return outcome{}, nil
	}
	r := geometry.NormalizeDrag(e.draw.anchor, cmd.Point())
	return outcome{preview: &r}, nil
}

// finishDraw creates the shape for the active tool. Points land on the
// release position; boxes smaller than MinDrawExtent on either axis are
// dropped.
func (e *Editor) finishDraw(cmd Command) (outcome, error) {
	g := e.draw
	e.draw = nil
	if g == nil {
		return outcome{}, nil
	}
	kind, ok := e.tool.kind()
	if !ok || kind == annotation.KindPolygon {
		return outcome{}, nil
	}

	shape := annotation.Shape{Rect: geometry.NormalizeDrag(g.anchor, cmd.Point())}
	if kind == annotation.KindPoint {
		shape.Rect = geometry.Rect{X: cmd.X, Y: cmd.Y}
	} else if shape.Rect.Width < MinDrawExtent || shape.Rect.Height < MinDrawExtent {
		return outcome{status: "Box too small, discarded"}, nil
	}
	if kind == annotation.KindRotatedBox {
		shape.Rotation = cmd.Rotation
	}

	a, err := e.coll.Create(kind, shape, e.class)
	if err != nil {
		return outcome{}, err
	}
	return outcome{
		status: fmt.Sprintf("Created %s %d (%s)", a.Kind, a.ID, e.classes.Name(a.Class)),
		record: true,
	}, nil
}

func (e *Editor) cancelDraw(Command) (outcome, error) {
	e.draw = nil
	return outcome{}, nil
}

func (e *Editor) addVertex(cmd Command) (outcome, error) {
	if e.tool != ToolPolygon {
		return outcome{}, nil
	}
	e.polygon = append(e.polygon, cmd.Point())
	return outcome{
		status:      fmt.Sprintf("Polygon: %d vertices", len(e.polygon)),
		polygonPath: geometry.Path(e.polygon, false),
	}, nil
}

// finishPolygon creates a polygon from the collected vertices. Fewer than
// three vertices are discarded. Either way the tool returns to neutral.
func (e *Editor) finishPolygon(Command) (outcome, error) {
	vertices := e.polygon
	e.polygon = nil
	if e.tool == ToolPolygon {
		e.tool = ToolNeutral
	}

	a, err := e.coll.Create(annotation.KindPolygon, annotation.Shape{Vertices: vertices}, e.class)
	if errors.Is(err, annotation.ErrTooFewVertices) {
		return outcome{}, nil
	}
	if err != nil {
		return outcome{}, err
	}
	return outcome{
		status: fmt.Sprintf("Polygon created with %d vertices", len(a.Vertices)),
		record: true,
	}, nil
}

func (e *Editor) cancelPolygon(Command) (outcome, error) {
	e.polygon = nil
	if e.tool == ToolPolygon {
		e.tool = ToolNeutral
	}
	return outcome{status: "Polygon cancelled"}, nil
}

// startResize grabs a handle. The bounds and polygon vertices at grab time
// stay the reference for every update, and the collection as it was is kept as the undo entry for
// the whole drag.
func (e *Editor) startResize(cmd Command) (outcome, error) {
	handle, err := geometry.ParseHandle(cmd.Handle)
	if err != nil {
		return outcome{}, fmt.Errorf("%w: %w", ErrInvalidCommand, err)
	}
	e.resize = nil
	a, ok := e.coll.At(cmd.Index)
	if !ok || a.Rejected() || a.Kind == annotation.KindPoint {
		return outcome{}, nil
	}
	e.resize = &resizeGesture{
		index:  cmd.Index,
		handle: handle,
		orig:   a.Bounds(),
		verts:  append([]geometry.Point(nil), a.Vertices...),
		base:   e.coll.Snapshot(),
	}
	return outcome{}, nil
}

func (e *Editor) updateResize(cmd Command) (outcome, error) {
	g := e.resize
	if g == nil {
		return outcome{}, nil
	}
	r := geometry.Resize(g.handle, g.orig, cmd.Point())
	if !e.coll.SetBoundsFrom(g.index, r, g.orig, g.verts) {
		return outcome{}, nil
	}
	out := outcome{preview: &r}
	if !g.pushed {
		g.pushed = true
		out.record = true
		out.base = g.base
	}
	return out, nil
}

func (e *Editor) finishResize(Command) (outcome, error) {
	if e.resize == nil {
		return outcome{}, nil
	}
	e.resize = nil
	return outcome{status: "Resize complete"}, nil
}

// autoResizeAt snaps the topmost box under the cursor to nearby image edges.
func (e *Editor) autoResizeAt(cmd Command) (outcome, error) {
	i := e.coll.TopmostMatching(cmd.Point(), annotation.Annotation.IsBox)
	if i < 0 {
		return outcome{status: "No box at cursor"}, nil
	}
	a, _ := e.coll.At(i)

	refined, changed, err := imaging.AutoResizeFile(e.images, e.frame.Entry.ImagePath, a.Bounds())
	if err != nil {
		e.log.WithError(err).WithField("image", e.frame.Entry.ImagePath).Warn("auto-resize failed")
		return outcome{status: "Auto-resize failed: image processing failed"}, nil
	}
	if !changed {
		return outcome{status: "Auto-resize: no clear edges found"}, nil
	}
	e.coll.SetBounds(i, refined)
	return outcome{
		status: fmt.Sprintf("Auto-resized annotation %d to %.0fx%.0f", a.ID, refined.Width, refined.Height),
		record: true,
	}, nil
}
