// Package history keeps bounded undo and redo stacks of annotation snapshots.
package history

import (
	"github.com/ironsheep/image-annotator/internal/annotation"
)

// DefaultDepth is the number of snapshots each stack retains.
const DefaultDepth = 50

// History is a pair of bounded stacks of whole-collection snapshots.
//
// Every snapshot is deep-copied on the way in and on the way out, so nothing
// the caller mutates later can alter a stored entry. When a stack is full the
// oldest entry is evicted.
type History struct {
	depth int
	undo  []annotation.Snapshot
	redo  []annotation.Snapshot
}

// New creates a history holding at most depth entries per stack. A depth
// below one falls back to DefaultDepth.
func New(depth int) *History {
	if depth < 1 {
		depth = DefaultDepth
	}
	return &History{depth: depth}
}

// Push records the state before an edit and invalidates any redo lineage.
func (h *History) Push(s annotation.Snapshot) {
	h.undo = h.bounded(append(h.undo, s.Clone()))
	h.redo = nil
}

// Undo pops the most recent snapshot and stores current on the redo stack.
// It returns false, leaving both stacks untouched, when there is nothing to
// undo.
func (h *History) Undo(current annotation.Snapshot) (annotation.Snapshot, bool) {
	if len(h.undo) == 0 {
		return nil, false
	}
	prev := h.undo[len(h.undo)-1]
	h.undo = h.undo[:len(h.undo)-1]
	h.redo = h.bounded(append(h.redo, current.Clone()))
	return prev.Clone(), true
}

// Redo is the mirror of Undo.
func (h *History) Redo(current annotation.Snapshot) (annotation.Snapshot, bool) {
	if len(h.redo) == 0 {
		return nil, false
	}
	next := h.redo[len(h.redo)-1]
	h.redo = h.redo[:len(h.redo)-1]
	h.undo = h.bounded(append(h.undo, current.Clone()))
	return next.Clone(), true
}

// CanUndo reports whether Undo would return a snapshot.
func (h *History) CanUndo() bool { return len(h.undo) > 0 }

// CanRedo reports whether Redo would return a snapshot.
func (h *History) CanRedo() bool { return len(h.redo) > 0 }

// Len returns the sizes of the undo and redo stacks.
func (h *History) Len() (undo, redo int) { return len(h.undo), len(h.redo) }

// Clear drops both stacks, as happens when the editor switches images.
func (h *History) Clear() {
	h.undo = nil
	h.redo = nil
}

func (h *History) bounded(stack []annotation.Snapshot) []annotation.Snapshot {
	if over := len(stack) - h.depth; over > 0 {
		stack = append(stack[:0:0], stack[over:]...)
	}
	return stack
}
