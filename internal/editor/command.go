package editor

import (
	"fmt"
	"sort"

	"github.com/ironsheep/image-annotator/internal/annotation"
	"github.com/ironsheep/image-annotator/internal/dataset"
	"github.com/ironsheep/image-annotator/internal/export"
	"github.com/ironsheep/image-annotator/internal/geometry"
)

// Op names an editor operation.
type Op string

const (
	OpStartDraw  Op = "start-draw"
	OpUpdateDraw Op = "update-draw"
	OpFinishDraw Op = "finish-draw"
	OpCancelDraw Op = "cancel-draw"

	OpAddVertex     Op = "add-vertex"
	OpFinishPolygon Op = "finish-polygon"
	OpCancelPolygon Op = "cancel-polygon"

	OpSelect      Op = "select"
	OpSelectAt    Op = "select-at"
	OpSelectAll   Op = "select-all"
	OpDeselectAll Op = "deselect-all"

	OpDeleteAt       Op = "delete-at"
	OpDelete         Op = "delete"
	OpDeleteSelected Op = "delete-selected"

	OpClassifyAt       Op = "classify-at"
	OpClassifySelected Op = "classify-selected"
	OpClassKey         Op = "class-key"
	OpClassBack        Op = "class-back"

	OpStartResize  Op = "start-resize"
	OpUpdateResize Op = "update-resize"
	OpFinishResize Op = "finish-resize"
	OpAutoResizeAt Op = "auto-resize-at"

	OpUndo  Op = "undo"
	OpRedo  Op = "redo"
	OpCopy  Op = "copy"
	OpPaste Op = "paste"

	OpSetTool  Op = "set-tool"
	OpSetClass Op = "set-class"

	OpOpen   Op = "open"
	OpNext   Op = "next"
	OpPrev   Op = "prev"
	OpFirst  Op = "first"
	OpLast   Op = "last"
	OpRandom Op = "random"
	OpGoto   Op = "goto"

	OpViewChanged    Op = "view-changed"
	OpToggleComplete Op = "toggle-complete"
	OpSave           Op = "save"
	OpExport         Op = "export"
)

// Command is one front-end gesture or key action. Only the fields relevant to
// Op are read.
type Command struct {
	Op       Op                 `json:"op"`
	X        float64            `json:"x,omitempty"`
	Y        float64            `json:"y,omitempty"`
	Index    int                `json:"index,omitempty"`
	Mode     string             `json:"mode,omitempty"`
	Handle   string             `json:"handle,omitempty"`
	Class    int                `json:"class,omitempty"`
	Key      int                `json:"key,omitempty"`
	Tool     Tool               `json:"tool,omitempty"`
	Rotation float64            `json:"rotation,omitempty"`
	View     *dataset.ViewState `json:"view,omitempty"`
	Format   string             `json:"format,omitempty"`
	Path     string             `json:"path,omitempty"`
}

// Point returns the command's cursor position.
func (c Command) Point() geometry.Point { return geometry.Point{X: c.X, Y: c.Y} }

// Result reports what a command did. Annotations and Session always describe
// the state after the command. Recorded is true when the command pushed an
// undo entry; a drag gesture records once, on its first effective update,
// so later updates of the same drag report false while still changing the
// annotations.
type Result struct {
	Op       Op     `json:"op"`
	Status   string `json:"status"`
	Recorded bool   `json:"recorded"`

	Preview     *geometry.Rect `json:"preview,omitempty"`
	PolygonPath string         `json:"polygon_path,omitempty"`
	Export      *export.Result `json:"export,omitempty"`

	Annotations annotation.Snapshot `json:"annotations"`
	Session     *SessionInfo        `json:"session"`
}

// outcome is what a handler hands back to Apply.
type outcome struct {
	status string
	// record pushes an undo entry. The pre-command snapshot is used unless
	// base is set.
	record bool
	base   annotation.Snapshot

	preview     *geometry.Rect
	polygonPath string
	export      *export.Result
}

type handler func(e *Editor, cmd Command) (outcome, error)

type opSpec struct {
	fn          handler
	mutates     bool
	needsFrame  bool
	description string
}

// OpInfo describes an operation for clients.
type OpInfo struct {
	Name        Op     `json:"name"`
	Description string `json:"description"`
	Mutates     bool   `json:"mutates"`
}

var ops = map[Op]opSpec{
	OpStartDraw:  {(*Editor).startDraw, false, true, "Begin a drag at x,y with the current tool"},
	OpUpdateDraw: {(*Editor).updateDraw, false, true, "Move the drag cursor to x,y; returns the preview rectangle"},
	OpFinishDraw: {(*Editor).finishDraw, true, true, "End the drag at x,y and create the shape"},
	OpCancelDraw: {(*Editor).cancelDraw, false, true, "Abandon the drag"},

	OpAddVertex:     {(*Editor).addVertex, false, true, "Append polygon vertex x,y"},
	OpFinishPolygon: {(*Editor).finishPolygon, true, true, "Close the polygon (needs 3 vertices)"},
	OpCancelPolygon: {(*Editor).cancelPolygon, false, true, "Discard collected polygon vertices"},

	OpSelect:      {(*Editor).selectIndex, false, true, "Select annotation index with mode plain|toggle|range"},
	OpSelectAt:    {(*Editor).selectAt, false, true, "Select the topmost annotation at x,y with mode plain|toggle|range"},
	OpSelectAll:   {(*Editor).selectAll, false, true, "Select every live annotation"},
	OpDeselectAll: {(*Editor).deselectAll, false, true, "Clear the selection"},

	OpDeleteAt:       {(*Editor).deleteAt, true, true, "Reject the topmost annotation at x,y"},
	OpDelete:         {(*Editor).deleteIndex, true, true, "Reject annotation index"},
	OpDeleteSelected: {(*Editor).deleteSelected, true, true, "Reject every selected annotation"},

	OpClassifyAt:       {(*Editor).classifyAt, true, true, "Set the class of the topmost annotation at x,y"},
	OpClassifySelected: {(*Editor).classifySelected, true, true, "Set the class of every selected annotation"},
	OpClassKey:         {(*Editor).classKey, true, false, "Number key 0-5: walk the class hierarchy or pick a class"},
	OpClassBack:        {(*Editor).classBack, false, false, "Move the class picker up one level"},

	OpStartResize:  {(*Editor).startResize, false, true, "Grab handle of annotation index"},
	OpUpdateResize: {(*Editor).updateResize, true, true, "Drag the grabbed handle to x,y"},
	OpFinishResize: {(*Editor).finishResize, false, true, "Release the grabbed handle"},
	OpAutoResizeAt: {(*Editor).autoResizeAt, true, true, "Snap the topmost box at x,y to image edges"},

	OpUndo:  {(*Editor).undo, false, true, "Restore the previous annotation set"},
	OpRedo:  {(*Editor).redo, false, true, "Reapply an undone change"},
	OpCopy:  {(*Editor).copySelected, false, true, "Copy selected annotations to the clipboard"},
	OpPaste: {(*Editor).paste, true, true, "Paste the clipboard with fresh ids"},

	OpSetTool:  {(*Editor).setTool, false, false, "Choose the drawing tool"},
	OpSetClass: {(*Editor).setClass, false, false, "Choose the class for new shapes"},

	OpOpen:   {(*Editor).openCommand, false, false, "Open a dataset manifest or image folder at path"},
	OpNext:   {stepTo(dataset.StepNext), false, true, "Go to the next image"},
	OpPrev:   {stepTo(dataset.StepPrev), false, true, "Go to the previous image"},
	OpFirst:  {stepTo(dataset.StepFirst), false, true, "Go to the first image"},
	OpLast:   {stepTo(dataset.StepLast), false, true, "Go to the last image"},
	OpRandom: {stepTo(dataset.StepRandom), false, true, "Go to a random image"},
	OpGoto:   {(*Editor).gotoIndex, false, true, "Go to image index"},

	OpViewChanged:    {(*Editor).viewChanged, false, true, "Report the current pan and zoom"},
	OpToggleComplete: {(*Editor).toggleComplete, false, true, "Flip the current image's completed flag"},
	OpSave:           {(*Editor).save, false, true, "Write labels and state for every image"},
	OpExport:         {(*Editor).exportDataset, false, true, "Export to coco or voc at path"},
}

// Ops lists every operation Apply accepts, sorted by name.
func Ops() []OpInfo {
	infos := make([]OpInfo, 0, len(ops))
	for name, spec := range ops {
		infos = append(infos, OpInfo{Name: name, Description: spec.description, Mutates: spec.mutates})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// ParseSelectMode maps "", "plain", "toggle" and "range".
func ParseSelectMode(s string) (annotation.SelectMode, error) {
	switch s {
	case "", "plain":
		return annotation.SelectPlain, nil
	case "toggle":
		return annotation.SelectToggle, nil
	case "range":
		return annotation.SelectRange, nil
	default:
		return 0, fmt.Errorf("%w: unknown select mode %q", ErrInvalidCommand, s)
	}
}
