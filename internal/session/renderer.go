package session

import "github.com/dyluth/mural/pkg/board"

// Renderer is the outbound instruction surface to the rendering engine.
// The engine core never paints anything itself: it tells the renderer what
// to add, refresh or remove, and the renderer reports gestures back via the
// session's capture methods.
//
// Implementations must tolerate redundant instructions (for example an
// UpdateVisual for an object mid-gesture) because the renderer's transient
// gesture state is authoritative until the commit write lands.
type Renderer interface {
	// CreateVisual instructs the renderer to add a visual for a new object.
	CreateVisual(obj *board.Object)

	// UpdateVisual instructs the renderer to refresh an existing visual
	// from the object's current fields.
	UpdateVisual(obj *board.Object)

	// RemoveVisual instructs the renderer to drop an object's visual.
	RemoveVisual(id string)

	// RefreshConnector instructs the renderer to redraw a connector between
	// the given attachment points, so arrows track moved or resized
	// endpoints even when the move originated remotely.
	RefreshConnector(id string, from, to board.Point)
}

// NopRenderer discards every instruction. Used by headless writers such as
// the CLI and the planner, which mutate the document without painting it.
type NopRenderer struct{}

func (NopRenderer) CreateVisual(*board.Object) {}

func (NopRenderer) UpdateVisual(*board.Object) {}

func (NopRenderer) RemoveVisual(string) {}

func (NopRenderer) RefreshConnector(string, board.Point, board.Point) {}
