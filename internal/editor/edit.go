package editor

import (
	"fmt"
	"strings"

	"github.com/ironsheep/image-annotator/internal/annotation"
	"github.com/ironsheep/image-annotator/internal/classes"
)

func (e *Editor) selectIndex(cmd Command) (outcome, error) {
	mode, err := ParseSelectMode(cmd.Mode)
	if err != nil {
		return outcome{}, err
	}
	e.coll.Select(cmd.Index, mode)
	return outcome{}, nil
}

// selectAt selects the topmost shape under the cursor. A click on empty
// canvas clears the selection unless a modifier is held.
func (e *Editor) selectAt(cmd Command) (outcome, error) {
	mode, err := ParseSelectMode(cmd.Mode)
	if err != nil {
		return outcome{}, err
	}
	i := e.coll.TopmostAt(cmd.Point())
	if i < 0 {
		if mode == annotation.SelectPlain {
			e.coll.DeselectAll()
		}
		return outcome{}, nil
	}
	e.coll.Select(i, mode)
	return outcome{}, nil
}

func (e *Editor) selectAll(Command) (outcome, error) {
	e.coll.SelectAll()
	return outcome{status: fmt.Sprintf("Selected %d annotation(s)", len(e.coll.Selected()))}, nil
}

func (e *Editor) deselectAll(Command) (outcome, error) {
	e.coll.DeselectAll()
	return outcome{}, nil
}

func (e *Editor) deleteAt(cmd Command) (outcome, error) {
	if e.coll.DeleteAt(cmd.Point()) < 0 {
		return outcome{}, nil
	}
	return outcome{status: "Annotation deleted", record: true}, nil
}

func (e *Editor) deleteIndex(cmd Command) (outcome, error) {
	if !e.coll.Delete(cmd.Index) {
		return outcome{}, nil
	}
	return outcome{status: "Annotation deleted", record: true}, nil
}

func (e *Editor) deleteSelected(Command) (outcome, error) {
	n := e.coll.DeleteSelected()
	if n == 0 {
		return outcome{}, nil
	}
	return outcome{status: fmt.Sprintf("Deleted %d annotation(s)", n), record: true}, nil
}

func (e *Editor) classifyAt(cmd Command) (outcome, error) {
	if cmd.Class < 1 {
		return outcome{}, fmt.Errorf("%w: class must be positive", ErrInvalidCommand)
	}
	if e.coll.ReclassifyAt(cmd.Point(), cmd.Class) < 0 {
		return outcome{}, nil
	}
	return outcome{
		status: fmt.Sprintf("Annotation reclassified to %s", e.classes.Name(cmd.Class)),
		record: true,
	}, nil
}

func (e *Editor) classifySelected(cmd Command) (outcome, error) {
	if cmd.Class < 1 {
		return outcome{}, fmt.Errorf("%w: class must be positive", ErrInvalidCommand)
	}
	return e.reclassifySelected(cmd.Class), nil
}

func (e *Editor) reclassifySelected(class int) outcome {
	if e.coll.ReclassifySelected(class) == 0 {
		return outcome{}
	}
	return outcome{
		status: fmt.Sprintf("Selected annotation set to class %s", e.classes.Name(class)),
		record: true,
	}
}

// classKey handles a number key. With a hierarchy the key walks the tree and
// only a leaf picks a class; otherwise the key maps straight to a class. A
// picked class becomes current and is applied to the selection.
func (e *Editor) classKey(cmd Command) (outcome, error) {
	var (
		id int
		ok bool
	)
	if e.nav.IsHierarchical() {
		id, ok = e.nav.Press(cmd.Key)
		if !ok {
			return outcome{status: e.navPrompt()}, nil
		}
	} else {
		if cmd.Key == classes.BackKey {
			return outcome{}, nil
		}
		id, ok = e.classes.ForKey(cmd.Key)
		if !ok {
			return outcome{status: fmt.Sprintf("No class bound to key %d", cmd.Key)}, nil
		}
	}

	e.class = id
	if out := e.reclassifySelected(id); out.record {
		return out, nil
	}
	return outcome{status: "Class: " + e.classes.Name(id)}, nil
}

func (e *Editor) classBack(Command) (outcome, error) {
	e.nav.NavigateUp()
	if !e.nav.IsHierarchical() {
		return outcome{}, nil
	}
	return outcome{status: e.navPrompt()}, nil
}

func (e *Editor) navPrompt() string {
	prompt := e.nav.Prompt()
	if crumbs := e.nav.Breadcrumb(); len(crumbs) > 0 {
		prompt = strings.Join(crumbs, " > ") + " > " + prompt
	}
	return prompt
}

func (e *Editor) undo(Command) (outcome, error) {
	prev, ok := e.history.Undo(e.coll.Snapshot())
	if !ok {
		return outcome{status: "Nothing to undo"}, nil
	}
	e.coll.Restore(prev)
	e.resize = nil
	e.draw = nil
	return outcome{status: "Undo"}, nil
}

func (e *Editor) redo(Command) (outcome, error) {
	next, ok := e.history.Redo(e.coll.Snapshot())
	if !ok {
		return outcome{status: "Nothing to redo"}, nil
	}
	e.coll.Restore(next)
	e.resize = nil
	e.draw = nil
	return outcome{status: "Redo"}, nil
}

func (e *Editor) copySelected(Command) (outcome, error) {
	clip := e.coll.Copy()
	if len(clip) == 0 {
		return outcome{status: "No annotation selected to copy"}, nil
	}
	e.clipboard = clip
	return outcome{status: fmt.Sprintf("Copied %d annotation(s)", len(clip))}, nil
}

// paste keeps the clipboard, so the same shapes can be pasted repeatedly and
// into other images.
func (e *Editor) paste(Command) (outcome, error) {
	if len(e.clipboard) == 0 {
		return outcome{status: "No annotation to paste"}, nil
	}
	ids := e.coll.Paste(e.clipboard)
	return outcome{status: fmt.Sprintf("Pasted %d annotation(s)", len(ids)), record: true}, nil
}

func (e *Editor) setTool(cmd Command) (outcome, error) {
	if _, ok := cmd.Tool.kind(); !ok && cmd.Tool != ToolNeutral {
		return outcome{}, fmt.Errorf("%w: unknown tool %q", ErrInvalidCommand, cmd.Tool)
	}
	if !e.toolEnabled(cmd.Tool) {
		return outcome{status: fmt.Sprintf("Tool %s is disabled", cmd.Tool)}, nil
	}
	if e.tool != cmd.Tool {
		e.draw = nil
		e.polygon = nil
	}
	e.tool = cmd.Tool
	return outcome{status: "Tool: " + string(cmd.Tool)}, nil
}

func (e *Editor) setClass(cmd Command) (outcome, error) {
	if cmd.Class < 1 {
		return outcome{}, fmt.Errorf("%w: class must be positive", ErrInvalidCommand)
	}
	e.class = cmd.Class
	e.nav.Reset()
	return outcome{status: "Class: " + e.classes.Name(cmd.Class)}, nil
}
