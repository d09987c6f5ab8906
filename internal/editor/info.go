package editor

import (
	"github.com/ironsheep/image-annotator/internal/classes"
	"github.com/ironsheep/image-annotator/internal/dataset"
)

// SessionInfo summarizes the editor for display.
type SessionInfo struct {
	SessionID      string            `json:"session_id,omitempty"`
	Dataset        string            `json:"dataset,omitempty"`
	Index          int               `json:"index"`
	Total          int               `json:"total"`
	Image          string            `json:"image,omitempty"`
	Width          float64           `json:"width"`
	Height         float64           `json:"height"`
	Completed      bool              `json:"completed"`
	CompletedCount int               `json:"completed_count"`
	View           dataset.ViewState `json:"view"`

	Tool      Tool           `json:"tool"`
	Class     int            `json:"class"`
	ClassName string         `json:"class_name"`
	Prompt    string         `json:"class_prompt,omitempty"`
	Options   []classes.Node `json:"class_options,omitempty"`
	Path      []string       `json:"class_path,omitempty"`

	Selected      []int `json:"selected"`
	CanUndo       bool  `json:"can_undo"`
	CanRedo       bool  `json:"can_redo"`
	Clipboard     int   `json:"clipboard"`
	DrawActive    bool  `json:"draw_active"`
	PolygonPoints int   `json:"polygon_points"`
}

// Info returns the current SessionInfo.
func (e *Editor) Info() *SessionInfo {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.info()
}

func (e *Editor) info() *SessionInfo {
	info := &SessionInfo{
		View:          e.view,
		Tool:          e.tool,
		Class:         e.class,
		ClassName:     e.classes.Name(e.class),
		Selected:      e.coll.Selected(),
		CanUndo:       e.history.CanUndo(),
		CanRedo:       e.history.CanRedo(),
		Clipboard:     len(e.clipboard),
		DrawActive:    e.draw != nil,
		PolygonPoints: len(e.polygon),
	}
	if info.Selected == nil {
		info.Selected = []int{}
	}
	if e.nav.IsHierarchical() {
		info.Prompt = e.nav.Prompt()
		info.Options = e.nav.Options()
		info.Path = e.nav.Breadcrumb()
	}
	if e.session != nil {
		info.SessionID = e.session.ID()
		info.Dataset = e.session.Dataset().Path
		info.Index = e.session.Current()
		info.Total = e.session.Len()
		info.Completed = e.session.Completed(info.Index)
		info.CompletedCount = e.session.CompletedCount()
	}
	if e.frame != nil {
		info.Image = e.frame.Entry.ImagePath
		info.Width = e.frame.Size.Width
		info.Height = e.frame.Size.Height
	}
	return info
}
