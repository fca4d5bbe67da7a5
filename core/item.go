package core

import (
	"encoding/json"
	"fmt"
)

type (
	// Point is a 2D position on the canvas.
	Point struct {
		X float64 `json:"x"`
		Y float64 `json:"y"`
	}

	// Size is a 2D extent. Both components must be positive for items.
	Size struct {
		Width  float64 `json:"width"`
		Height float64 `json:"height"`
	}

	// ItemBase holds the attributes shared by every item kind: identity plus
	// the mutable transform/style set the editor operates on. The engine only
	// ever touches items through this struct, so new kinds need no engine
	// changes.
	ItemBase struct {
		ID       string  `json:"id"`
		Position Point   `json:"position"`
		Size     Size    `json:"size"`
		Rotation float64 `json:"rotation"` // degrees, not normalized
		Opacity  float64 `json:"opacity"`  // always within [0, 1]
		ZIndex   int     `json:"zIndex"`
		Locked   bool    `json:"locked"`
	}

	// Item is a single positioned element on a canvas.
	Item interface {
		Base() *ItemBase
		Kind() string
		Clone() Item
	}
)

// Item kind tags used in the JSON envelope.
const (
	KindShape = "shape"
	KindText  = "text"
	KindImage = "image"
)

type (
	// Shape is a geometric item (rectangle, ellipse, line, ...).
	Shape struct {
		ItemBase
		ShapeType   string  `json:"shapeType"`
		Fill        string  `json:"fill,omitempty"`
		Stroke      string  `json:"stroke,omitempty"`
		StrokeWidth float64 `json:"strokeWidth,omitempty"`
	}

	// Text is a text block item.
	Text struct {
		ItemBase
		Content    string  `json:"content"`
		FontSize   float64 `json:"fontSize,omitempty"`
		FontFamily string  `json:"fontFamily,omitempty"`
		Color      string  `json:"color,omitempty"`
	}

	// Image references an externally stored image.
	Image struct {
		ItemBase
		Source string `json:"source"`
	}
)

func (s *Shape) Base() *ItemBase { return &s.ItemBase }
func (s *Shape) Kind() string    { return KindShape }
func (s *Shape) Clone() Item {
	c := *s
	return &c
}

func (t *Text) Base() *ItemBase { return &t.ItemBase }
func (t *Text) Kind() string    { return KindText }
func (t *Text) Clone() Item {
	c := *t
	return &c
}

func (i *Image) Base() *ItemBase { return &i.ItemBase }
func (i *Image) Kind() string    { return KindImage }
func (i *Image) Clone() Item {
	c := *i
	return &c
}

// DecodeItem parses one item from its enveloped JSON form.
func DecodeItem(data []byte) (Item, error) {
	return unmarshalItem(data)
}

// itemEnvelope is the stored form of an item: the kind tag plus the kind's
// own JSON payload, flattened into one object on the wire.
type itemEnvelope struct {
	Type string `json:"type"`
}

func marshalItem(item Item) ([]byte, error) {
	payload, err := json.Marshal(item)
	if err != nil {
		return nil, err
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil {
		return nil, err
	}
	fields["type"] = json.RawMessage(fmt.Sprintf("%q", item.Kind()))
	return json.Marshal(fields)
}

func unmarshalItem(data []byte) (Item, error) {
	var env itemEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}

	var item Item
	switch env.Type {
	case KindShape:
		item = &Shape{}
	case KindText:
		item = &Text{}
	case KindImage:
		item = &Image{}
	default:
		return nil, fmt.Errorf("unknown item type %q", env.Type)
	}

	if err := json.Unmarshal(data, item); err != nil {
		return nil, err
	}
	return item, nil
}
