package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// Mutation errors. Every mutation entry point signals rejection explicitly;
// a non-nil error always means the canvas is unchanged.
var (
	ErrItemNotFound  = errors.New("item not found")
	ErrItemLocked    = errors.New("item is locked")
	ErrInvalidSize   = errors.New("size must be positive")
	ErrDuplicateItem = errors.New("item id already present")
)

// Canvas is the editable aggregate: an ordered set of items plus
// canvas-level metadata. Items are kept in ascending ZIndex order and the
// ZIndex values always form the contiguous set 0..N-1; every mutation
// re-establishes both properties before returning.
type Canvas struct {
	ID         string
	Name       string
	Size       Size
	Background string
	Items      []Item
}

// NewCanvas returns an empty canvas with the given identity and bounds.
func NewCanvas(id, name string, size Size) *Canvas {
	return &Canvas{
		ID:   id,
		Name: name,
		Size: size,
	}
}

// Clone deep-copies the canvas. History snapshots and outward-bound
// snapshots must never share mutable structure with the live canvas.
func (c *Canvas) Clone() *Canvas {
	dup := *c
	dup.Items = make([]Item, len(c.Items))
	for i, item := range c.Items {
		dup.Items[i] = item.Clone()
	}
	return &dup
}

// Item returns the item with the given ID, or nil if absent.
func (c *Canvas) Item(id string) Item {
	for _, item := range c.Items {
		if item.Base().ID == id {
			return item
		}
	}
	return nil
}

// target resolves a mutation target, rejecting missing and locked items.
func (c *Canvas) target(id string) (Item, error) {
	item := c.Item(id)
	if item == nil {
		return nil, fmt.Errorf("%w: %s", ErrItemNotFound, id)
	}
	if item.Base().Locked {
		return nil, fmt.Errorf("%w: %s", ErrItemLocked, id)
	}
	return item, nil
}

// SetPosition moves an item. Positions are unconstrained.
func (c *Canvas) SetPosition(id string, p Point) error {
	item, err := c.target(id)
	if err != nil {
		return err
	}
	item.Base().Position = p
	return nil
}

// SetSize resizes an item. Non-positive extents reject the whole operation.
func (c *Canvas) SetSize(id string, s Size) error {
	item, err := c.target(id)
	if err != nil {
		return err
	}
	if s.Width <= 0 || s.Height <= 0 {
		return fmt.Errorf("%w: %gx%g", ErrInvalidSize, s.Width, s.Height)
	}
	item.Base().Size = s
	return nil
}

// SetRotation sets an item's rotation in degrees. Any value is accepted;
// rendering treats values modulo 360 as equivalent.
func (c *Canvas) SetRotation(id string, degrees float64) error {
	item, err := c.target(id)
	if err != nil {
		return err
	}
	item.Base().Rotation = degrees
	return nil
}

// SetOpacity sets an item's opacity, clamped to [0, 1] on every write.
func (c *Canvas) SetOpacity(id string, opacity float64) error {
	item, err := c.target(id)
	if err != nil {
		return err
	}
	if opacity < 0 {
		opacity = 0
	} else if opacity > 1 {
		opacity = 1
	}
	item.Base().Opacity = opacity
	return nil
}

// SetZIndex moves an item to layer position z, constrained to [0, N-1].
// Every item between the old and new position shifts by one to close the
// gap and open the slot; this is a single-position shift, never a swap, so
// indices stay contiguous and unique.
func (c *Canvas) SetZIndex(id string, z int) error {
	item, err := c.target(id)
	if err != nil {
		return err
	}

	if max := len(c.Items) - 1; z > max {
		z = max
	}
	if z < 0 {
		z = 0
	}

	old := item.Base().ZIndex
	if z == old {
		return nil
	}

	for _, other := range c.Items {
		b := other.Base()
		switch {
		case b.ID == id:
			b.ZIndex = z
		case old < z && b.ZIndex > old && b.ZIndex <= z:
			b.ZIndex--
		case old > z && b.ZIndex >= z && b.ZIndex < old:
			b.ZIndex++
		}
	}
	c.sortByZIndex()
	return nil
}

// ToggleLock flips an item's lock flag. This is the only mutation allowed
// on a locked item.
func (c *Canvas) ToggleLock(id string) error {
	item := c.Item(id)
	if item == nil {
		return fmt.Errorf("%w: %s", ErrItemNotFound, id)
	}
	item.Base().Locked = !item.Base().Locked
	return nil
}

// AddItem places a new item on top of the stack (ZIndex = N). The item's ID
// must not collide with an existing one, and its size must be positive.
func (c *Canvas) AddItem(item Item) error {
	if item.Base().ID == "" {
		return errors.New("item id is required")
	}
	if c.Item(item.Base().ID) != nil {
		return fmt.Errorf("%w: %s", ErrDuplicateItem, item.Base().ID)
	}
	if s := item.Base().Size; s.Width <= 0 || s.Height <= 0 {
		return fmt.Errorf("%w: %gx%g", ErrInvalidSize, s.Width, s.Height)
	}
	if o := item.Base().Opacity; o < 0 {
		item.Base().Opacity = 0
	} else if o > 1 {
		item.Base().Opacity = 1
	}
	item.Base().ZIndex = len(c.Items)
	c.Items = append(c.Items, item)
	return nil
}

// RemoveItem deletes an item and closes its ZIndex slot: every item above
// it shifts down by one. Locked items must be unlocked first.
func (c *Canvas) RemoveItem(id string) error {
	item, err := c.target(id)
	if err != nil {
		return err
	}

	removed := item.Base().ZIndex
	items := make([]Item, 0, len(c.Items)-1)
	for _, other := range c.Items {
		b := other.Base()
		if b.ID == id {
			continue
		}
		if b.ZIndex > removed {
			b.ZIndex--
		}
		items = append(items, other)
	}
	c.Items = items
	return nil
}

// SetBackground replaces the canvas background style. The value is opaque
// to the editing core.
func (c *Canvas) SetBackground(background string) {
	c.Background = background
}

// SetName renames the canvas.
func (c *Canvas) SetName(name string) {
	c.Name = name
}

// Resize changes the canvas bounds. Item positions are untouched.
func (c *Canvas) Resize(s Size) error {
	if s.Width <= 0 || s.Height <= 0 {
		return fmt.Errorf("%w: %gx%g", ErrInvalidSize, s.Width, s.Height)
	}
	c.Size = s
	return nil
}

func (c *Canvas) sortByZIndex() {
	sort.SliceStable(c.Items, func(i, j int) bool {
		return c.Items[i].Base().ZIndex < c.Items[j].Base().ZIndex
	})
}

// Validate checks the canvas invariants: unique IDs, contiguous ZIndex
// values 0..N-1, sequence order agreeing with ZIndex order, and per-item
// field constraints. Used after loading stored canvases and in tests.
func (c *Canvas) Validate() error {
	ids := make(map[string]bool, len(c.Items))
	for i, item := range c.Items {
		b := item.Base()
		if b.ID == "" {
			return fmt.Errorf("item at layer %d has no id", i)
		}
		if ids[b.ID] {
			return fmt.Errorf("duplicate item id %s", b.ID)
		}
		ids[b.ID] = true

		if b.ZIndex != i {
			return fmt.Errorf("item %s: zIndex %d at sequence position %d", b.ID, b.ZIndex, i)
		}
		if b.Size.Width <= 0 || b.Size.Height <= 0 {
			return fmt.Errorf("item %s: non-positive size %gx%g", b.ID, b.Size.Width, b.Size.Height)
		}
		if b.Opacity < 0 || b.Opacity > 1 {
			return fmt.Errorf("item %s: opacity %g out of range", b.ID, b.Opacity)
		}
	}
	return nil
}

// canvasJSON is the stored form of a canvas.
type canvasJSON struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	Size       Size              `json:"size"`
	Background string            `json:"background,omitempty"`
	Items      []json.RawMessage `json:"items"`
}

func (c *Canvas) MarshalJSON() ([]byte, error) {
	out := canvasJSON{
		ID:         c.ID,
		Name:       c.Name,
		Size:       c.Size,
		Background: c.Background,
		Items:      make([]json.RawMessage, 0, len(c.Items)),
	}
	for _, item := range c.Items {
		raw, err := marshalItem(item)
		if err != nil {
			return nil, fmt.Errorf("marshal item %s: %w", item.Base().ID, err)
		}
		out.Items = append(out.Items, raw)
	}
	return json.Marshal(out)
}

func (c *Canvas) UnmarshalJSON(data []byte) error {
	var in canvasJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}

	items := make([]Item, 0, len(in.Items))
	for _, raw := range in.Items {
		item, err := unmarshalItem(raw)
		if err != nil {
			return err
		}
		items = append(items, item)
	}

	c.ID = in.ID
	c.Name = in.Name
	c.Size = in.Size
	c.Background = in.Background
	c.Items = items
	c.sortByZIndex()
	return c.Validate()
}
