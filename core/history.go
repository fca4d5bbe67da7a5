package core

// History is a generic linear undo/redo engine over immutable snapshots of
// any recordable state. It knows nothing about canvases: callers hand in
// fully-owned values and get the same values back, in the same order, no
// matter how many times the undo/redo cursor moves.
//
// The three-part state is the classic editor shape: past (most recent
// last), the live current value, and future (most recent last). Record is
// the only operation that discards anything - a new edit after an undo
// invalidates the whole redo chain.
type History[S any] struct {
	past    []S
	current S
	future  []S
	limit   int // 0 means unbounded
}

// NewHistory creates an unbounded history seeded with the initial state.
func NewHistory[S any](initial S) *History[S] {
	return &History[S]{current: initial}
}

// NewBoundedHistory creates a history that keeps at most limit undo steps.
// Once the bound is exceeded the oldest entry is evicted, never the most
// recent. A limit of 0 means unbounded.
func NewBoundedHistory[S any](initial S, limit int) *History[S] {
	if limit < 0 {
		limit = 0
	}
	return &History[S]{current: initial, limit: limit}
}

// Current returns the live state.
func (h *History[S]) Current() S {
	return h.current
}

// Record commits a new state: the current state moves onto the past stack,
// next becomes current, and any redo history is discarded.
func (h *History[S]) Record(next S) {
	h.past = append(h.past, h.current)
	if h.limit > 0 && len(h.past) > h.limit {
		h.past = append(h.past[:0], h.past[1:]...)
	}
	h.current = next
	h.future = nil
}

// Undo steps back one state. It reports false, leaving everything
// untouched, when there is nothing to undo.
func (h *History[S]) Undo() (S, bool) {
	if len(h.past) == 0 {
		var zero S
		return zero, false
	}
	prev := h.past[len(h.past)-1]
	h.past = h.past[:len(h.past)-1]
	h.future = append(h.future, h.current)
	h.current = prev
	return prev, true
}

// Redo steps forward one state. It reports false, leaving everything
// untouched, when there is nothing to redo.
func (h *History[S]) Redo() (S, bool) {
	if len(h.future) == 0 {
		var zero S
		return zero, false
	}
	next := h.future[len(h.future)-1]
	h.future = h.future[:len(h.future)-1]
	h.past = append(h.past, h.current)
	h.current = next
	return next, true
}

// CanUndo reports whether the past stack is non-empty.
func (h *History[S]) CanUndo() bool {
	return len(h.past) > 0
}

// CanRedo reports whether the future stack is non-empty.
func (h *History[S]) CanRedo() bool {
	return len(h.future) > 0
}

// Depth returns the number of undoable and redoable steps.
func (h *History[S]) Depth() (undo, redo int) {
	return len(h.past), len(h.future)
}
