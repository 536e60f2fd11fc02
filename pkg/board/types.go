package board

import (
	"fmt"
)

// MaxObjects is the capacity of a single document. Creation operations fail
// once the live object count reaches this limit.
const MaxObjects = 500

// Sticky notes have a fixed footprint and are not resizable.
const (
	StickyNoteWidth  = 180.0
	StickyNoteHeight = 180.0
)

// ObjectType is the closed discriminant over all canvas object kinds.
type ObjectType string

const (
	// TypeStickyNote is a fixed-size note with text and a background color
	TypeStickyNote ObjectType = "sticky-note"

	// TypeRectangle is a resizable, rotatable rectangle shape
	TypeRectangle ObjectType = "rectangle"

	// TypeCircle is a resizable, rotatable circle/ellipse shape
	TypeCircle ObjectType = "circle"

	// TypeText is a free text element; width controls wrap, height derives from content
	TypeText ObjectType = "text"

	// TypeFrame is a grouping container painted behind all other objects
	TypeFrame ObjectType = "frame"

	// TypeConnector is a line/arrow tracking two other objects' attachment points
	TypeConnector ObjectType = "connector"
)

// SnapAnchor selects which attachment port a connector endpoint uses.
type SnapAnchor string

const (
	// AnchorAuto picks whichever port pair minimizes the connector length
	AnchorAuto SnapAnchor = "auto"

	AnchorTop    SnapAnchor = "top"
	AnchorRight  SnapAnchor = "right"
	AnchorBottom SnapAnchor = "bottom"
	AnchorLeft   SnapAnchor = "left"
)

// LineStyle is the connector routing style.
type LineStyle string

const (
	StyleStraight LineStyle = "straight"
	StyleCurved   LineStyle = "curved"
)

// CapStyle is a connector end decoration.
type CapStyle string

const (
	CapNone  CapStyle = "none"
	CapArrow CapStyle = "arrow"
)

// Endpoint is one side of a connector: the object it attaches to and the
// anchor policy for choosing the attachment port on that object.
type Endpoint struct {
	TargetID   string     `json:"targetId"`
	SnapAnchor SnapAnchor `json:"snapAnchor"`
}

// Object is a single canvas entity. It is a tagged union: Type discriminates
// which variant fields are meaningful. The whole value is the unit of
// replication - writers read-merge-write the entire object, never one field.
type Object struct {
	ID       string     `json:"id"`
	Type     ObjectType `json:"type"`
	X        float64    `json:"x"`
	Y        float64    `json:"y"`
	Width    float64    `json:"width"`
	Height   float64    `json:"height"`
	Rotation float64    `json:"rotation"`
	ZIndex   int        `json:"zIndex"`

	// Authorship stamp, rewritten on every mutation
	LastModifiedBy string `json:"lastModifiedBy"`
	LastModifiedAt int64  `json:"lastModifiedAt"` // Unix milliseconds

	// ParentID references a containing frame (ownership by reference, not
	// containment). Empty for top-level objects. Frames never set this.
	ParentID string `json:"parentId,omitempty"`

	// Sticky note / text variants
	Text     string  `json:"text,omitempty"`
	Color    string  `json:"color,omitempty"`
	FontSize float64 `json:"fontSize,omitempty"`

	// Shape / text / frame styling
	Fill   string `json:"fill,omitempty"`
	Stroke string `json:"stroke,omitempty"`

	// Frame variant
	Title       string   `json:"title,omitempty"`
	ChildrenIDs []string `json:"childrenIds,omitempty"`

	// Connector variant. StartPoint/EndPoint cache the current attachment
	// coordinates; they are recomputed whenever either target moves and are
	// cleared when a target disappears.
	Start       *Endpoint `json:"start,omitempty"`
	End         *Endpoint `json:"end,omitempty"`
	StartPoint  *Point    `json:"startPoint,omitempty"`
	EndPoint    *Point    `json:"endPoint,omitempty"`
	StrokeWidth float64   `json:"strokeWidth,omitempty"`
	Style       LineStyle `json:"style,omitempty"`
	StartCap    CapStyle  `json:"startCap,omitempty"`
	EndCap      CapStyle  `json:"endCap,omitempty"`
}

// IsFrame reports whether the object is a grouping frame.
func (o *Object) IsFrame() bool {
	return o.Type == TypeFrame
}

// IsConnector reports whether the object is a connector.
func (o *Object) IsConnector() bool {
	return o.Type == TypeConnector
}

// Resizable reports whether interactive scale gestures may change the
// object's width and height. Sticky notes have a fixed footprint and
// connectors derive their geometry from their targets.
func (o *Object) Resizable() bool {
	switch o.Type {
	case TypeStickyNote, TypeConnector:
		return false
	default:
		return true
	}
}

// Rotatable reports whether interactive rotate gestures apply. Frames and
// connectors never rotate.
func (o *Object) Rotatable() bool {
	switch o.Type {
	case TypeFrame, TypeConnector:
		return false
	default:
		return true
	}
}

// References reports whether the connector attaches to the given object ID
// on either end. Always false for non-connectors.
func (o *Object) References(id string) bool {
	if o.Type != TypeConnector {
		return false
	}
	return (o.Start != nil && o.Start.TargetID == id) ||
		(o.End != nil && o.End.TargetID == id)
}

// Validate checks that the object is a well-formed instance of its declared
// type. It is the schema gate for every value read back from the shared
// document: entries that fail here are treated as malformed and skipped,
// never applied.
func (o *Object) Validate() error {
	if o.ID == "" {
		return fmt.Errorf("object ID cannot be empty")
	}
	if err := o.Type.Validate(); err != nil {
		return err
	}
	if o.Width < 0 || o.Height < 0 {
		return fmt.Errorf("object %s has negative dimensions %gx%g", o.ID, o.Width, o.Height)
	}
	if o.ZIndex < 0 {
		return fmt.Errorf("object %s has negative zIndex %d", o.ID, o.ZIndex)
	}

	switch o.Type {
	case TypeFrame:
		if o.ParentID != "" {
			return fmt.Errorf("frame %s cannot be a child of another frame", o.ID)
		}
		if o.ZIndex != 0 {
			return fmt.Errorf("frame %s must have zIndex 0, got %d", o.ID, o.ZIndex)
		}
		if o.Rotation != 0 {
			return fmt.Errorf("frame %s cannot be rotated", o.ID)
		}

	case TypeConnector:
		if o.Start == nil || o.End == nil {
			return fmt.Errorf("connector %s must have both start and end endpoints", o.ID)
		}
		if o.Start.TargetID == "" || o.End.TargetID == "" {
			return fmt.Errorf("connector %s has an endpoint without a target", o.ID)
		}
		if err := o.Start.SnapAnchor.Validate(); err != nil {
			return fmt.Errorf("connector %s start: %w", o.ID, err)
		}
		if err := o.End.SnapAnchor.Validate(); err != nil {
			return fmt.Errorf("connector %s end: %w", o.ID, err)
		}
		if err := o.Style.Validate(); err != nil {
			return fmt.Errorf("connector %s: %w", o.ID, err)
		}
		if err := o.StartCap.Validate(); err != nil {
			return fmt.Errorf("connector %s start cap: %w", o.ID, err)
		}
		if err := o.EndCap.Validate(); err != nil {
			return fmt.Errorf("connector %s end cap: %w", o.ID, err)
		}

	case TypeText:
		if o.FontSize <= 0 {
			return fmt.Errorf("text %s must have a positive font size", o.ID)
		}
	}

	return nil
}

// Validate checks that the ObjectType is a known discriminant value.
func (t ObjectType) Validate() error {
	switch t {
	case TypeStickyNote, TypeRectangle, TypeCircle, TypeText, TypeFrame, TypeConnector:
		return nil
	default:
		return fmt.Errorf("unknown object type: %q", t)
	}
}

// Validate checks that the SnapAnchor is a known value.
func (a SnapAnchor) Validate() error {
	switch a {
	case AnchorAuto, AnchorTop, AnchorRight, AnchorBottom, AnchorLeft:
		return nil
	default:
		return fmt.Errorf("unknown snap anchor: %q", a)
	}
}

// Validate checks that the LineStyle is a known value.
func (s LineStyle) Validate() error {
	switch s {
	case StyleStraight, StyleCurved:
		return nil
	default:
		return fmt.Errorf("unknown connector style: %q", s)
	}
}

// Validate checks that the CapStyle is a known value.
func (c CapStyle) Validate() error {
	switch c {
	case CapNone, CapArrow:
		return nil
	default:
		return fmt.Errorf("unknown cap style: %q", c)
	}
}

// NewStickyNote builds an unstamped sticky note at the given position.
// The caller (normally the mutation API) assigns ID, zIndex and authorship.
func NewStickyNote(x, y float64, text, color string) *Object {
	return &Object{
		Type:   TypeStickyNote,
		X:      x,
		Y:      y,
		Width:  StickyNoteWidth,
		Height: StickyNoteHeight,
		Text:   text,
		Color:  color,
	}
}

// NewShape builds an unstamped rectangle or circle shape.
func NewShape(t ObjectType, x, y, width, height float64, fill, stroke string) *Object {
	return &Object{
		Type:   t,
		X:      x,
		Y:      y,
		Width:  width,
		Height: height,
		Fill:   fill,
		Stroke: stroke,
	}
}

// NewText builds an unstamped text element. Width controls wrapping; height
// is derived from content by the rendering engine and stored back on commit.
func NewText(x, y, width float64, text string, fontSize float64, fill string) *Object {
	return &Object{
		Type:     TypeText,
		X:        x,
		Y:        y,
		Width:    width,
		Text:     text,
		FontSize: fontSize,
		Fill:     fill,
	}
}

// NewFrame builds an unstamped grouping frame.
func NewFrame(x, y, width, height float64, title, fill string) *Object {
	return &Object{
		Type:        TypeFrame,
		X:           x,
		Y:           y,
		Width:       width,
		Height:      height,
		Title:       title,
		Fill:        fill,
		ChildrenIDs: []string{},
	}
}

// NewConnector builds an unstamped connector between two targets. Cached
// endpoint coordinates are filled in by the mutation API from the targets'
// current geometry.
func NewConnector(startTarget, endTarget string, startAnchor, endAnchor SnapAnchor) *Object {
	return &Object{
		Type:        TypeConnector,
		Start:       &Endpoint{TargetID: startTarget, SnapAnchor: startAnchor},
		End:         &Endpoint{TargetID: endTarget, SnapAnchor: endAnchor},
		Stroke:      "black",
		StrokeWidth: 1,
		Style:       StyleStraight,
		StartCap:    CapNone,
		EndCap:      CapArrow,
	}
}
