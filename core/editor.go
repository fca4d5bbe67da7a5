package core

// Editor is the mutation-operation surface over one live canvas. Every
// successful operation commits exactly one snapshot to the history, so one
// user gesture maps to one undo step; callers that batch intermediate UI
// events (drag frames and the like) issue a single operation on release.
//
// Editors are not safe for concurrent use. The hosting layer must
// serialize mutating calls on one editor.
type Editor struct {
	history  *History[*Canvas]
	selected string
}

// NewEditor starts an editing session on the given canvas. The editor
// takes an isolated copy; the caller's value stays untouched.
func NewEditor(canvas *Canvas) *Editor {
	return &Editor{history: NewHistory(canvas.Clone())}
}

// NewEditorWithDepth is NewEditor with a bounded undo depth.
func NewEditorWithDepth(canvas *Canvas, depth int) *Editor {
	return &Editor{history: NewBoundedHistory(canvas.Clone(), depth)}
}

// Canvas returns the live canvas. Callers must treat it as read-only;
// use Snapshot for a copy that may be handed outward.
func (e *Editor) Canvas() *Canvas {
	return e.history.Current()
}

// Snapshot returns an isolated deep copy of the current canvas, safe to
// hand to persistence or rendering collaborators while editing continues.
func (e *Editor) Snapshot() *Canvas {
	return e.history.Current().Clone()
}

// commit applies a mutation to a fresh copy of the current canvas and
// records the copy on success. A failed mutation leaves canvas, history
// and selection exactly as they were.
func (e *Editor) commit(mutate func(*Canvas) error) error {
	next := e.history.Current().Clone()
	if err := mutate(next); err != nil {
		return err
	}
	e.history.Record(next)
	e.syncSelection()
	return nil
}

// MoveItem commits a position change.
func (e *Editor) MoveItem(id string, p Point) error {
	return e.commit(func(c *Canvas) error { return c.SetPosition(id, p) })
}

// ResizeItem commits a size change.
func (e *Editor) ResizeItem(id string, s Size) error {
	return e.commit(func(c *Canvas) error { return c.SetSize(id, s) })
}

// RotateItem commits a rotation change.
func (e *Editor) RotateItem(id string, degrees float64) error {
	return e.commit(func(c *Canvas) error { return c.SetRotation(id, degrees) })
}

// SetOpacity commits an opacity change (clamped by the canvas).
func (e *Editor) SetOpacity(id string, opacity float64) error {
	return e.commit(func(c *Canvas) error { return c.SetOpacity(id, opacity) })
}

// SetZIndex commits a layer move.
func (e *Editor) SetZIndex(id string, z int) error {
	return e.commit(func(c *Canvas) error { return c.SetZIndex(id, z) })
}

// ToggleLock commits a lock flip.
func (e *Editor) ToggleLock(id string) error {
	return e.commit(func(c *Canvas) error { return c.ToggleLock(id) })
}

// AddItem commits a new item on top of the stack and selects it. The
// editor stores its own copy, so the caller's value stays independent.
func (e *Editor) AddItem(item Item) error {
	if err := e.commit(func(c *Canvas) error { return c.AddItem(item.Clone()) }); err != nil {
		return err
	}
	e.selected = item.Base().ID
	return nil
}

// RemoveItem commits an item removal.
func (e *Editor) RemoveItem(id string) error {
	return e.commit(func(c *Canvas) error { return c.RemoveItem(id) })
}

// SetBackground commits a background change. Setting the value it already
// has is not an edit and raises no history entry.
func (e *Editor) SetBackground(background string) {
	if e.history.Current().Background == background {
		return
	}
	e.commit(func(c *Canvas) error {
		c.SetBackground(background)
		return nil
	})
}

// SetName commits a canvas rename.
func (e *Editor) SetName(name string) {
	if e.history.Current().Name == name {
		return
	}
	e.commit(func(c *Canvas) error {
		c.SetName(name)
		return nil
	})
}

// ResizeCanvas commits a change of the canvas bounds.
func (e *Editor) ResizeCanvas(s Size) error {
	return e.commit(func(c *Canvas) error { return c.Resize(s) })
}

// Undo replaces the live canvas with the previous snapshot. It reports
// false when the past is exhausted.
func (e *Editor) Undo() bool {
	if _, ok := e.history.Undo(); !ok {
		return false
	}
	e.syncSelection()
	return true
}

// Redo replaces the live canvas with the next snapshot. It reports false
// when the future is exhausted.
func (e *Editor) Redo() bool {
	if _, ok := e.history.Redo(); !ok {
		return false
	}
	e.syncSelection()
	return true
}

// CanUndo reports whether an undo step is available.
func (e *Editor) CanUndo() bool { return e.history.CanUndo() }

// CanRedo reports whether a redo step is available.
func (e *Editor) CanRedo() bool { return e.history.CanRedo() }

// Select marks an item as the editing target. Selection is not part of
// the history; undoing never restores an earlier selection.
func (e *Editor) Select(id string) error {
	if e.history.Current().Item(id) == nil {
		return ErrItemNotFound
	}
	e.selected = id
	return nil
}

// ClearSelection drops the current selection.
func (e *Editor) ClearSelection() {
	e.selected = ""
}

// Selection returns the selected item ID, if any.
func (e *Editor) Selection() (string, bool) {
	return e.selected, e.selected != ""
}

// syncSelection clears the selection when the selected item no longer
// exists on the live canvas, so it never dangles across undo/redo.
func (e *Editor) syncSelection() {
	if e.selected != "" && e.history.Current().Item(e.selected) == nil {
		e.selected = ""
	}
}
