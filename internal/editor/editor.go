package editor

import (
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/ironsheep/image-annotator/internal/annotation"
	"github.com/ironsheep/image-annotator/internal/classes"
	"github.com/ironsheep/image-annotator/internal/config"
	"github.com/ironsheep/image-annotator/internal/dataset"
	"github.com/ironsheep/image-annotator/internal/geometry"
	"github.com/ironsheep/image-annotator/internal/history"
	"github.com/ironsheep/image-annotator/internal/imaging"
)

var (
	// ErrUnknownOp is returned by Apply for an operation it does not know.
	ErrUnknownOp = errors.New("unknown operation")
	// ErrInvalidCommand is returned for malformed command arguments.
	ErrInvalidCommand = errors.New("invalid command")
)

// Tool is the active drawing tool.
type Tool string

const (
	ToolNeutral    Tool = "neutral"
	ToolPoint      Tool = "point"
	ToolBox        Tool = "bbox"
	ToolRotatedBox Tool = "rbbox"
	ToolPolygon    Tool = "polygon"
)

// kind returns the annotation kind a tool creates.
func (t Tool) kind() (annotation.Kind, bool) {
	switch t {
	case ToolPoint:
		return annotation.KindPoint, true
	case ToolBox:
		return annotation.KindBox, true
	case ToolRotatedBox:
		return annotation.KindRotatedBox, true
	case ToolPolygon:
		return annotation.KindPolygon, true
	default:
		return "", false
	}
}

// MinDrawExtent is the smallest width and height a dragged box may have.
const MinDrawExtent = 5.0

// Options wires an Editor to its collaborators. Config, Classes and Images
// default to built-ins when nil.
type Options struct {
	Config   *config.Config
	Classes  *classes.Config
	Images   *imaging.ImageCache
	Progress dataset.ProgressStore
	Logger   *logrus.Logger
	// Status receives every human-readable status line.
	Status func(string)
	// Rand replaces the random source for navigation, for tests.
	Rand func(n int) int
}

type drawGesture struct {
	anchor geometry.Point
}

type resizeGesture struct {
	index  int
	handle geometry.Handle
	orig   geometry.Rect
	verts  []geometry.Point
	base   annotation.Snapshot
	pushed bool
}

// Editor is the annotation editing engine for one open dataset.
//
// All state changes go through Apply, which runs one Command at a time under
// the editor lock. Mutating commands capture the collection before they run
// and push it onto the undo history when they change something.
type Editor struct {
	mu sync.Mutex

	cfg      *config.Config
	classes  *classes.Config
	nav      *classes.Navigator
	images   *imaging.ImageCache
	progress dataset.ProgressStore
	log      *logrus.Entry
	status   func(string)
	randIntN func(n int) int

	session *dataset.Session
	frame   *dataset.Frame
	coll    *annotation.Collection
	history *history.History
	view    dataset.ViewState

	clipboard annotation.Snapshot
	tool      Tool
	class     int
	draw      *drawGesture
	polygon   []geometry.Point
	resize    *resizeGesture
}

// New returns an editor with no dataset open.
func New(opts Options) (*Editor, error) {
	e := &Editor{
		cfg:      opts.Config,
		classes:  opts.Classes,
		images:   opts.Images,
		progress: opts.Progress,
		status:   opts.Status,
		randIntN: opts.Rand,
		coll:     annotation.NewCollection(nil),
		view:     dataset.FitView(),
		class:    1,
	}
	if e.cfg == nil {
		e.cfg = config.Default()
	}
	if e.classes == nil {
		e.classes = classes.Default()
	}
	if e.images == nil {
		e.images = imaging.NewImageCache()
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	e.log = logger.WithField("component", "editor")
	e.history = history.New(e.cfg.Editor.UndoDepth)
	e.tool = e.defaultTool()

	if err := e.setClasses(e.classes); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *Editor) setClasses(cfg *classes.Config) error {
	nav, err := cfg.Navigator()
	if err != nil {
		return fmt.Errorf("failed to build class hierarchy: %w", err)
	}
	e.classes = cfg
	e.nav = nav
	if ids := cfg.IDs(); len(ids) > 0 {
		if _, ok := cfg.Find(e.class); !ok {
			e.class = ids[0]
		}
	}
	return nil
}

// toolEnabled applies the annotation-mode switches.
func (e *Editor) toolEnabled(t Tool) bool {
	m := e.cfg.AnnotationModes
	switch t {
	case ToolNeutral:
		return true
	case ToolPoint:
		return m.EnablePoints
	case ToolBox:
		return m.EnableBoxes
	case ToolRotatedBox:
		return m.EnableRotatedBoxes
	case ToolPolygon:
		return m.EnablePolygons
	default:
		return false
	}
}

func (e *Editor) defaultTool() Tool {
	for _, t := range []Tool{ToolBox, ToolPoint, ToolPolygon, ToolRotatedBox} {
		if e.toolEnabled(t) {
			return t
		}
	}
	return ToolNeutral
}

// Apply runs one command.
func (e *Editor) Apply(cmd Command) (*Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	spec, ok := ops[cmd.Op]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownOp, cmd.Op)
	}
	if spec.needsFrame && e.frame == nil {
		return nil, dataset.ErrNoDataset
	}

	var before annotation.Snapshot
	if spec.mutates {
		before = e.coll.Snapshot()
	}
	out, err := spec.fn(e, cmd)
	if err != nil {
		return nil, err
	}
	if spec.mutates && out.record {
		base := before
		if out.base != nil {
			base = out.base
		}
		e.history.Push(base)
	}
	if out.status != "" {
		e.emit(out.status)
	}

	return &Result{
		Op:          cmd.Op,
		Status:      out.status,
		Recorded:    out.record,
		Preview:     out.preview,
		PolygonPath: out.polygonPath,
		Export:      out.export,
		Annotations: e.coll.Snapshot(),
		Session:     e.info(),
	}, nil
}

func (e *Editor) emit(status string) {
	e.log.Debug(status)
	if e.status != nil {
		e.status(status)
	}
}

// install makes frame the displayed image with a fresh working collection.
// Gestures, selection and history never carry across images.
func (e *Editor) install(frame *dataset.Frame) {
	e.frame = frame
	e.coll = annotation.NewCollection(frame.Annotations)
	e.coll.DeselectAll()
	e.history.Clear()
	e.view = frame.View
	e.draw = nil
	e.polygon = nil
	e.resize = nil
	e.nav.Reset()
}

// Annotations returns a copy of the live collection.
func (e *Editor) Annotations() annotation.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.coll.Snapshot()
}

// Thumbnail crops the annotation with the given id out of the current image.
func (e *Editor) Thumbnail(id, maxSide int) (*imaging.Thumbnail, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.frame == nil {
		return nil, dataset.ErrNoDataset
	}
	var (
		target annotation.Annotation
		found  bool
	)
	e.coll.Each(func(_ int, a annotation.Annotation) {
		if a.ID == id {
			target, found = a, true
		}
	})
	if !found {
		return nil, fmt.Errorf("%w: no annotation with id %d", ErrInvalidCommand, id)
	}
	if maxSide <= 0 {
		maxSide = imaging.DefaultThumbnailSize
	}
	return imaging.CropThumbnail(e.frame.Image, target.Bounds(), maxSide)
}

// EdgePreview renders the edge map of the current image.
func (e *Editor) EdgePreview() (*imaging.EdgeDetectResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.frame == nil {
		return nil, dataset.ErrNoDataset
	}
	return imaging.EdgePreview(e.frame.Image)
}
