package editor

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironsheep/image-annotator/internal/annotation"
	"github.com/ironsheep/image-annotator/internal/classes"
	"github.com/ironsheep/image-annotator/internal/config"
	"github.com/ironsheep/image-annotator/internal/dataset"
	"github.com/ironsheep/image-annotator/internal/logging"
)

// writeSquareImage writes a white image with a black square at [lo, hi).
func writeSquareImage(t *testing.T, path string, size, lo, hi int) {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			v := uint8(255)
			if x >= lo && x < hi && y >= lo && y < hi {
				v = 0
			}
			img.SetGray(x, y, color.Gray{Y: v})
		}
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

type statusLog struct {
	mu    sync.Mutex
	lines []string
}

func (s *statusLog) add(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = append(s.lines, line)
}

func (s *statusLog) last() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.lines) == 0 {
		return ""
	}
	return s.lines[len(s.lines)-1]
}

// newTestEditor opens a folder of three 120x120 images.
func newTestEditor(t *testing.T, cfg *config.Config) (*Editor, string, *statusLog) {
	t.Helper()
	dir := t.TempDir()
	for _, name := range []string{"a.png", "b.png", "c.png"} {
		writeSquareImage(t, filepath.Join(dir, name), 120, 40, 80)
	}
	status := &statusLog{}
	e, err := New(Options{Config: cfg, Logger: logging.Discard(), Status: status.add})
	require.NoError(t, err)
	_, err = e.Open(dir)
	require.NoError(t, err)
	return e, dir, status
}

func apply(t *testing.T, e *Editor, cmd Command) *Result {
	t.Helper()
	res, err := e.Apply(cmd)
	require.NoError(t, err)
	return res
}

func drawBox(t *testing.T, e *Editor, x0, y0, x1, y1 float64) *Result {
	t.Helper()
	apply(t, e, Command{Op: OpStartDraw, X: x0, Y: y0})
	apply(t, e, Command{Op: OpUpdateDraw, X: x1, Y: y1})
	return apply(t, e, Command{Op: OpFinishDraw, X: x1, Y: y1})
}

func TestApply_Errors(t *testing.T) {
	e, err := New(Options{Logger: logging.Discard()})
	require.NoError(t, err)

	_, err = e.Apply(Command{Op: "teleport"})
	assert.ErrorIs(t, err, ErrUnknownOp)

	_, err = e.Apply(Command{Op: OpNext})
	assert.ErrorIs(t, err, dataset.ErrNoDataset)

	res, err := e.Apply(Command{Op: OpSetClass, Class: 3})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Session.Class)

	_, err = e.Apply(Command{Op: OpSetClass, Class: 0})
	assert.ErrorIs(t, err, ErrInvalidCommand)
}

func TestDrawBox(t *testing.T) {
	e, _, status := newTestEditor(t, nil)

	res := drawBox(t, e, 10, 10, 13, 40)
	assert.False(t, res.Recorded)
	assert.Empty(t, res.Annotations)

	apply(t, e, Command{Op: OpSetClass, Class: 2})
	res = drawBox(t, e, 50, 60, 10, 20)
	assert.True(t, res.Recorded)
	require.Len(t, res.Annotations, 1)
	a := res.Annotations[0]
	assert.Equal(t, 1, a.ID)
	assert.Equal(t, annotation.KindBox, a.Kind)
	assert.Equal(t, annotation.StateManual, a.State)
	assert.Equal(t, 2, a.Class)
	assert.Equal(t, [4]float64{10, 20, 40, 40}, [4]float64{a.X, a.Y, a.Width, a.Height})
	assert.True(t, res.Session.CanUndo)
	assert.Contains(t, status.last(), "Created bbox 1")
}

func TestUpdateDrawPreview(t *testing.T) {
	e, _, _ := newTestEditor(t, nil)
	apply(t, e, Command{Op: OpStartDraw, X: 30, Y: 30})
	res := apply(t, e, Command{Op: OpUpdateDraw, X: 10, Y: 50})
	require.NotNil(t, res.Preview)
	assert.Equal(t, 10.0, res.Preview.X)
	assert.Equal(t, 20.0, res.Preview.Width)

	apply(t, e, Command{Op: OpCancelDraw})
	res = apply(t, e, Command{Op: OpFinishDraw, X: 90, Y: 90})
	assert.Empty(t, res.Annotations)
}

func TestDrawPointAndRotatedBox(t *testing.T) {
	e, _, _ := newTestEditor(t, nil)

	apply(t, e, Command{Op: OpSetTool, Tool: ToolPoint})
	apply(t, e, Command{Op: OpStartDraw, X: 5, Y: 5})
	res := apply(t, e, Command{Op: OpFinishDraw, X: 5, Y: 5})
	require.Len(t, res.Annotations, 1)
	assert.Equal(t, annotation.KindPoint, res.Annotations[0].Kind)

	apply(t, e, Command{Op: OpSetTool, Tool: ToolRotatedBox})
	apply(t, e, Command{Op: OpStartDraw, X: 10, Y: 10})
	res = apply(t, e, Command{Op: OpFinishDraw, X: 30, Y: 30, Rotation: 15})
	require.Len(t, res.Annotations, 2)
	assert.Equal(t, annotation.KindRotatedBox, res.Annotations[1].Kind)
	assert.Equal(t, 15.0, res.Annotations[1].Rotation)
	assert.Equal(t, 2, res.Annotations[1].ID)
}

func TestToolGating(t *testing.T) {
	cfg := config.Default()
	cfg.AnnotationModes.EnablePoints = false
	e, _, _ := newTestEditor(t, cfg)

	res := apply(t, e, Command{Op: OpSetTool, Tool: ToolPoint})
	assert.Equal(t, ToolBox, res.Session.Tool)
	assert.Contains(t, res.Status, "disabled")

	_, err := e.Apply(Command{Op: OpSetTool, Tool: "lasso"})
	assert.ErrorIs(t, err, ErrInvalidCommand)
}

func TestPolygon(t *testing.T) {
	e, _, _ := newTestEditor(t, nil)
	apply(t, e, Command{Op: OpSetTool, Tool: ToolPolygon})

	apply(t, e, Command{Op: OpAddVertex, X: 0, Y: 0})
	res := apply(t, e, Command{Op: OpAddVertex, X: 10, Y: 0})
	assert.Equal(t, "M 0 0 L 10 0", res.PolygonPath)
	res = apply(t, e, Command{Op: OpFinishPolygon})
	assert.False(t, res.Recorded)
	assert.Empty(t, res.Annotations)
	assert.Equal(t, ToolNeutral, res.Session.Tool)

	apply(t, e, Command{Op: OpSetTool, Tool: ToolPolygon})
	for _, p := range [][2]float64{{0, 0}, {10, 0}, {10, 20}} {
		apply(t, e, Command{Op: OpAddVertex, X: p[0], Y: p[1]})
	}
	res = apply(t, e, Command{Op: OpFinishPolygon})
	assert.True(t, res.Recorded)
	require.Len(t, res.Annotations, 1)
	poly := res.Annotations[0]
	assert.Equal(t, annotation.KindPolygon, poly.Kind)
	assert.Equal(t, 20.0, poly.Height)
	assert.Len(t, poly.Vertices, 3)
}

func TestDeleteAndUndoRedo(t *testing.T) {
	e, _, _ := newTestEditor(t, nil)
	drawBox(t, e, 10, 10, 50, 50)
	drawBox(t, e, 30, 30, 90, 90)
	before := e.Annotations()

	res := apply(t, e, Command{Op: OpDeleteAt, X: 40, Y: 40})
	require.Len(t, res.Annotations, 2)
	assert.Equal(t, annotation.StateRejected, res.Annotations[1].State)
	after := res.Annotations

	// the rejected shape no longer takes hits
	res = apply(t, e, Command{Op: OpDeleteAt, X: 40, Y: 40})
	assert.Equal(t, annotation.StateRejected, res.Annotations[0].State)

	apply(t, e, Command{Op: OpUndo})
	res = apply(t, e, Command{Op: OpUndo})
	assert.Empty(t, cmp.Diff(before, res.Annotations))

	res = apply(t, e, Command{Op: OpRedo})
	assert.Empty(t, cmp.Diff(after, res.Annotations))

	// a new edit drops the redo lineage
	apply(t, e, Command{Op: OpDelete, Index: 0})
	res = apply(t, e, Command{Op: OpRedo})
	assert.Equal(t, "Nothing to redo", res.Status)
	assert.False(t, res.Session.CanRedo)
}

func TestMissDoesNotRecord(t *testing.T) {
	e, _, _ := newTestEditor(t, nil)
	res := apply(t, e, Command{Op: OpDeleteAt, X: 5, Y: 5})
	assert.False(t, res.Recorded)
	assert.False(t, res.Session.CanUndo)

	res = apply(t, e, Command{Op: OpClassifyAt, X: 5, Y: 5, Class: 2})
	assert.False(t, res.Recorded)
}

func TestSelectionAndBulkOps(t *testing.T) {
	e, _, _ := newTestEditor(t, nil)
	drawBox(t, e, 0, 0, 10, 10)
	drawBox(t, e, 20, 20, 30, 30)
	drawBox(t, e, 40, 40, 50, 50)

	res := apply(t, e, Command{Op: OpSelectAt, X: 5, Y: 5})
	assert.Equal(t, []int{0}, res.Session.Selected)
	res = apply(t, e, Command{Op: OpSelect, Index: 2, Mode: "range"})
	assert.Equal(t, []int{0, 1, 2}, res.Session.Selected)
	res = apply(t, e, Command{Op: OpSelect, Index: 1, Mode: "toggle"})
	assert.Equal(t, []int{0, 2}, res.Session.Selected)

	res = apply(t, e, Command{Op: OpClassifySelected, Class: 4})
	assert.True(t, res.Recorded)
	assert.Equal(t, 4, res.Annotations[0].Class)
	assert.Equal(t, 1, res.Annotations[1].Class)

	res = apply(t, e, Command{Op: OpSelectAt, X: 100, Y: 100})
	assert.Empty(t, res.Session.Selected)

	apply(t, e, Command{Op: OpSelectAll})
	res = apply(t, e, Command{Op: OpDeleteSelected})
	assert.Equal(t, "Deleted 3 annotation(s)", res.Status)
	assert.Len(t, res.Annotations, 3)

	_, err := e.Apply(Command{Op: OpSelect, Index: 0, Mode: "lasso"})
	assert.ErrorIs(t, err, ErrInvalidCommand)
}

func TestCopyPaste(t *testing.T) {
	e, _, _ := newTestEditor(t, nil)
	drawBox(t, e, 0, 0, 10, 10)
	drawBox(t, e, 20, 20, 30, 30)

	res := apply(t, e, Command{Op: OpCopy})
	assert.Equal(t, "No annotation selected to copy", res.Status)

	apply(t, e, Command{Op: OpSelectAll})
	apply(t, e, Command{Op: OpCopy})
	res = apply(t, e, Command{Op: OpPaste})
	require.Len(t, res.Annotations, 4)
	assert.Equal(t, 3, res.Annotations[2].ID)
	assert.Equal(t, 4, res.Annotations[3].ID)
	assert.InDelta(t, 20.05, res.Annotations[3].X, 1e-9)
	assert.False(t, res.Annotations[3].Selected)

	// the clipboard survives navigation
	apply(t, e, Command{Op: OpNext})
	res = apply(t, e, Command{Op: OpPaste})
	require.Len(t, res.Annotations, 2)
	assert.Equal(t, 1, res.Annotations[0].ID)
}

func TestResizeGesture(t *testing.T) {
	e, _, _ := newTestEditor(t, nil)
	drawBox(t, e, 10, 10, 50, 50)
	original := e.Annotations()

	apply(t, e, Command{Op: OpStartResize, Index: 0, Handle: "corner-br"})
	res := apply(t, e, Command{Op: OpUpdateResize, X: 70, Y: 60})
	assert.True(t, res.Recorded)
	res = apply(t, e, Command{Op: OpUpdateResize, X: 80, Y: 90})
	assert.False(t, res.Recorded)
	a := res.Annotations[0]
	assert.Equal(t, [4]float64{10, 10, 70, 80}, [4]float64{a.X, a.Y, a.Width, a.Height})
	res = apply(t, e, Command{Op: OpFinishResize})
	assert.Equal(t, "Resize complete", res.Status)

	// one undo reverts the whole drag
	res = apply(t, e, Command{Op: OpUndo})
	assert.Empty(t, cmp.Diff(original, res.Annotations))

	_, err := e.Apply(Command{Op: OpStartResize, Index: 0, Handle: "corner-middle"})
	assert.ErrorIs(t, err, ErrInvalidCommand)
}

func TestResizePolygonThroughZeroWidth(t *testing.T) {
	e, _, _ := newTestEditor(t, nil)
	apply(t, e, Command{Op: OpSetTool, Tool: ToolPolygon})
	for _, p := range [][2]float64{{10, 10}, {50, 10}, {30, 40}} {
		apply(t, e, Command{Op: OpAddVertex, X: p[0], Y: p[1]})
	}
	res := apply(t, e, Command{Op: OpFinishPolygon})
	require.Len(t, res.Annotations, 1)
	grabbed := res.Annotations[0].Vertices

	apply(t, e, Command{Op: OpStartResize, Index: 0, Handle: "corner-br"})
	res = apply(t, e, Command{Op: OpUpdateResize, X: 10, Y: 40})
	assert.Equal(t, 0.0, res.Annotations[0].Width)
	res = apply(t, e, Command{Op: OpUpdateResize, X: 50, Y: 40})
	apply(t, e, Command{Op: OpFinishResize})

	if diff := cmp.Diff(grabbed, res.Annotations[0].Vertices); diff != "" {
		t.Errorf("polygon vertices mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 40.0, res.Annotations[0].Width)
}

func TestResizeRejectedIgnored(t *testing.T) {
	e, _, _ := newTestEditor(t, nil)
	drawBox(t, e, 10, 10, 50, 50)
	apply(t, e, Command{Op: OpDelete, Index: 0})

	apply(t, e, Command{Op: OpStartResize, Index: 0, Handle: "edge-r"})
	res := apply(t, e, Command{Op: OpUpdateResize, X: 100, Y: 20})
	assert.False(t, res.Recorded)
	assert.Equal(t, 40.0, res.Annotations[0].Width)
}

func TestAutoResizeAt(t *testing.T) {
	e, _, _ := newTestEditor(t, nil)
	drawBox(t, e, 35, 35, 85, 85)

	res := apply(t, e, Command{Op: OpAutoResizeAt, X: 60, Y: 60})
	assert.True(t, res.Recorded)
	a := res.Annotations[0]
	assert.InDelta(t, 40, a.X, 2.5)
	assert.InDelta(t, 40, a.Y, 2.5)
	assert.InDelta(t, 40, a.Width, 2.5)
	assert.InDelta(t, 40, a.Height, 2.5)

	res = apply(t, e, Command{Op: OpAutoResizeAt, X: 5, Y: 5})
	assert.False(t, res.Recorded)
	assert.Equal(t, "No box at cursor", res.Status)
}

func TestClassKeyFlat(t *testing.T) {
	e, _, _ := newTestEditor(t, nil)
	drawBox(t, e, 0, 0, 10, 10)

	res := apply(t, e, Command{Op: OpClassKey, Key: 3})
	assert.False(t, res.Recorded)
	assert.Equal(t, 3, res.Session.Class)

	apply(t, e, Command{Op: OpSelect, Index: 0})
	res = apply(t, e, Command{Op: OpClassKey, Key: 2})
	assert.True(t, res.Recorded)
	assert.Equal(t, 2, res.Annotations[0].Class)

	res = apply(t, e, Command{Op: OpClassKey, Key: 9})
	assert.Equal(t, "No class bound to key 9", res.Status)
}

func TestClassKeyHierarchy(t *testing.T) {
	cls := &classes.Config{}
	for i := 1; i <= 7; i++ {
		cls.Classes = append(cls.Classes, classes.Class{ID: i, Name: "c" + string(rune('0'+i))})
	}
	e, err := New(Options{Classes: cls, Logger: logging.Discard()})
	require.NoError(t, err)

	res := apply(t, e, Command{Op: OpClassKey, Key: 2})
	assert.Equal(t, "Select class (1-5)", res.Session.Prompt)
	assert.Len(t, res.Session.Options, 2)

	res = apply(t, e, Command{Op: OpClassBack})
	assert.Equal(t, "Select category (1-5)", res.Session.Prompt)

	apply(t, e, Command{Op: OpClassKey, Key: 2})
	res = apply(t, e, Command{Op: OpClassKey, Key: 2})
	assert.Equal(t, 7, res.Session.Class)
	assert.Equal(t, "c7", res.Session.ClassName)
	assert.Equal(t, "Select category (1-5)", res.Session.Prompt)
}

func TestNavigationKeepsWork(t *testing.T) {
	e, _, _ := newTestEditor(t, nil)
	drawBox(t, e, 10, 10, 50, 50)
	apply(t, e, Command{Op: OpSelect, Index: 0})

	res := apply(t, e, Command{Op: OpNext})
	assert.Equal(t, 1, res.Session.Index)
	assert.Empty(t, res.Annotations)
	assert.False(t, res.Session.CanUndo)

	res = apply(t, e, Command{Op: OpPrev})
	require.Len(t, res.Annotations, 1)
	assert.False(t, res.Annotations[0].Selected)
	assert.False(t, res.Session.CanUndo)

	res = apply(t, e, Command{Op: OpPrev})
	assert.Equal(t, "Already at first image", res.Status)

	res = apply(t, e, Command{Op: OpLast})
	assert.Equal(t, 2, res.Session.Index)
	res = apply(t, e, Command{Op: OpGoto, Index: 0})
	assert.Equal(t, 0, res.Session.Index)

	_, err := e.Apply(Command{Op: OpGoto, Index: 9})
	assert.ErrorIs(t, err, ErrInvalidCommand)
}

func TestNavigationKeepsIDsUnique(t *testing.T) {
	e, _, _ := newTestEditor(t, nil)
	drawBox(t, e, 10, 10, 50, 50)
	drawBox(t, e, 20, 20, 60, 60)
	apply(t, e, Command{Op: OpNext})
	apply(t, e, Command{Op: OpPrev})

	res := drawBox(t, e, 30, 30, 70, 70)
	require.Len(t, res.Annotations, 3)
	assert.Equal(t, 3, res.Annotations[2].ID)
}

func TestViewFollowsSimilarImages(t *testing.T) {
	e, _, _ := newTestEditor(t, nil)
	view := dataset.ViewState{PanX: 12, PanY: 8, Zoom: 2.5}
	apply(t, e, Command{Op: OpViewChanged, View: &view})

	res := apply(t, e, Command{Op: OpNext})
	assert.Equal(t, view, res.Session.View)

	bad := dataset.ViewState{Zoom: -1}
	res = apply(t, e, Command{Op: OpViewChanged, View: &bad})
	assert.Equal(t, 1.0, res.Session.View.Zoom)
}

func TestSaveWritesArtifacts(t *testing.T) {
	e, dir, status := newTestEditor(t, nil)
	drawBox(t, e, 12, 24, 72, 84)
	apply(t, e, Command{Op: OpSetTool, Tool: ToolPoint})
	apply(t, e, Command{Op: OpStartDraw, X: 5, Y: 5})
	apply(t, e, Command{Op: OpFinishDraw, X: 5, Y: 5})

	res := apply(t, e, Command{Op: OpSave})
	assert.Equal(t, "Save successful", res.Status)
	assert.Equal(t, "Save successful", status.last())

	data, err := os.ReadFile(filepath.Join(dir, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "0 0.350000 0.450000 0.500000 0.500000", string(data))

	state, err := dataset.ReadState(filepath.Join(dir, "a.state.json"))
	require.NoError(t, err)
	assert.Len(t, state, 2)
	assert.FileExists(t, filepath.Join(dir, "c.state.json"))

	// reopening restores full fidelity
	e2, err := New(Options{Logger: logging.Discard()})
	require.NoError(t, err)
	opened, err := e2.Open(dir)
	require.NoError(t, err)
	require.Len(t, opened.Annotations, 2)
	assert.Equal(t, annotation.KindPoint, opened.Annotations[1].Kind)
}

func TestSaveKeepsWorkOnMissingImage(t *testing.T) {
	dir := t.TempDir()
	writeSquareImage(t, filepath.Join(dir, "a.png"), 120, 40, 80)
	manifest := filepath.Join(dir, "manifest.json")
	require.NoError(t, os.WriteFile(manifest, []byte(`{"images":[{"image":"gone.png"},{"image":"a.png"}]}`), 0o644))

	e, err := New(Options{Logger: logging.Discard()})
	require.NoError(t, err)
	_, err = e.Open(manifest)
	require.NoError(t, err)

	apply(t, e, Command{Op: OpSetTool, Tool: ToolPoint})
	apply(t, e, Command{Op: OpStartDraw, X: 5, Y: 5})
	apply(t, e, Command{Op: OpFinishDraw, X: 5, Y: 5})

	res := apply(t, e, Command{Op: OpSave})
	assert.Equal(t, "Saved; labels skipped for 1 image(s) of unknown size", res.Status)
	assert.FileExists(t, filepath.Join(dir, "gone.state.json"))
	assert.NoFileExists(t, filepath.Join(dir, "gone.txt"))
	assert.FileExists(t, filepath.Join(dir, "a.txt"))

	e2, err := New(Options{Logger: logging.Discard()})
	require.NoError(t, err)
	opened, err := e2.Open(manifest)
	require.NoError(t, err)
	require.Len(t, opened.Annotations, 1)
	assert.Equal(t, annotation.KindPoint, opened.Annotations[0].Kind)
}

func TestToggleComplete(t *testing.T) {
	e, _, _ := newTestEditor(t, nil)
	res := apply(t, e, Command{Op: OpToggleComplete})
	assert.True(t, res.Session.Completed)
	assert.Equal(t, "Frame marked complete (1/3 complete)", res.Status)
}

func TestExport(t *testing.T) {
	e, dir, _ := newTestEditor(t, nil)
	drawBox(t, e, 10, 10, 50, 50)

	res := apply(t, e, Command{Op: OpExport})
	require.NotNil(t, res.Export)
	assert.Equal(t, filepath.Join(dir, "annotations_coco.json"), res.Export.Path)
	assert.Equal(t, 3, res.Export.Images)
	assert.Equal(t, 1, res.Export.Annotations)

	out := filepath.Join(t.TempDir(), "voc")
	apply(t, e, Command{Op: OpExport, Format: "voc", Path: out})
	assert.FileExists(t, filepath.Join(out, "a.xml"))

	_, err := e.Apply(Command{Op: OpExport, Format: "yolo"})
	assert.ErrorIs(t, err, ErrInvalidCommand)
}

func TestAutoSave(t *testing.T) {
	e, dir, _ := newTestEditor(t, nil)
	drawBox(t, e, 10, 10, 50, 50)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	e.StartAutoSave(ctx, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Join(dir, "a.state.json"))
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)
}

func TestThumbnailAndEdges(t *testing.T) {
	e, _, _ := newTestEditor(t, nil)
	drawBox(t, e, 10, 10, 50, 50)

	thumb, err := e.Thumbnail(1, 0)
	require.NoError(t, err)
	assert.Equal(t, 40, thumb.Width)

	_, err = e.Thumbnail(42, 0)
	assert.ErrorIs(t, err, ErrInvalidCommand)

	edges, err := e.EdgePreview()
	require.NoError(t, err)
	assert.Equal(t, 120, edges.Width)
}

func TestOps(t *testing.T) {
	infos := Ops()
	require.Len(t, infos, len(ops))
	for i := 1; i < len(infos); i++ {
		assert.Less(t, string(infos[i-1].Name), string(infos[i].Name))
	}
}
