package session

import (
	"context"
	"time"

	"github.com/dyluth/mural/pkg/board"
)

// Local-change capture: the state machine that turns interactive
// manipulation signals from the rendering engine into document writes.
//
// During a gesture only throttled previews are written; the gesture end
// produces one unthrottled authoritative commit. A cancelled gesture leaves
// no trace beyond whatever previews were already sent - the renderer simply
// discards its transient state.

// GestureKind distinguishes the interactive manipulations.
type GestureKind int

const (
	GestureMove GestureKind = iota
	GestureScale
	GestureRotate
)

// Transform is the per-object payload of a gesture signal. Only the fields
// relevant to the gesture kind are read: position for move, position and
// size for scale, rotation for rotate.
type Transform struct {
	X, Y          float64
	Width, Height float64
	Rotation      float64
}

type gesture struct {
	kind GestureKind
	ids  []string
	// lastWrite throttles the whole selection on one clock
	lastWrite time.Time
	wrote     bool
}

// StartGesture begins a manipulation of the given objects. No document
// write happens yet.
func (s *Session) StartGesture(kind GestureKind, ids []string) {
	if len(ids) == 0 {
		return
	}
	s.gesture = &gesture{kind: kind, ids: append([]string(nil), ids...)}
}

// MoveGesture handles one incremental movement signal. If the elapsed time
// since the gesture's last preview write is below the adaptive throttle
// interval the signal is dropped; otherwise a preview
// update is written with only the fields this gesture kind changes.
func (s *Session) MoveGesture(ctx context.Context, transforms map[string]Transform) {
	g := s.gesture
	if g == nil {
		return
	}

	if g.wrote {
		interval := time.Duration(board.ThrottleMs(s.userCount, len(g.ids))) * time.Millisecond
		if s.now().Sub(g.lastWrite) < interval {
			return
		}
	}

	updates := s.gestureUpdates(g.kind, transforms)
	if len(updates) == 0 {
		return
	}
	if res := s.BatchUpdate(ctx, updates); !res.OK {
		s.log.Warn("preview write failed", "reason", res.Reason)
		return
	}
	g.lastWrite = s.now()
	g.wrote = true
}

// EndGesture commits the authoritative transforms for every object in the
// gesture, unthrottled, as one atomic batch. A resized frame additionally
// evicts children whose centers ended up outside its new bounds.
func (s *Session) EndGesture(ctx context.Context, finals map[string]Transform) Result {
	g := s.gesture
	if g == nil {
		return fail("no gesture in progress")
	}
	s.gesture = nil

	updates := s.gestureUpdates(g.kind, finals)
	if res := s.BatchUpdate(ctx, updates); !res.OK {
		return res
	}

	if g.kind == GestureScale {
		for _, id := range g.ids {
			if _, isFinal := finals[id]; !isFinal {
				continue
			}
			obj, err := s.store.Get(ctx, id)
			if err != nil {
				continue
			}
			if decoded, err := board.Decode(obj); err == nil && decoded.IsFrame() {
				if res := s.EvictEscapedChildren(ctx, id); !res.OK {
					return res
				}
			}
		}
	}
	return ok()
}

// CancelGesture aborts the active gesture without a commit write. Transient
// renderer state is discarded by the rendering engine itself.
func (s *Session) CancelGesture() {
	s.gesture = nil
}

// CommitText writes a text edit immediately on edit-session end. Text edits
// are infrequent relative to drag events, so they are never throttled.
func (s *Session) CommitText(ctx context.Context, id, text string) Result {
	return s.Update(ctx, id, Patch{Text: &text})
}

// DeleteSelection deletes the active selection with full cascade cleanup,
// then clears it.
func (s *Session) DeleteSelection(ctx context.Context) Result {
	if len(s.selection) == 0 {
		return ok()
	}
	res := s.BatchDelete(ctx, s.selection)
	if res.OK {
		s.selection = nil
	}
	return res
}

// gestureUpdates builds the per-object patches for a gesture signal,
// restricted to the fields the gesture kind is allowed to change.
func (s *Session) gestureUpdates(kind GestureKind, transforms map[string]Transform) []Update {
	updates := make([]Update, 0, len(transforms))
	for id, tr := range transforms {
		tr := tr
		var p Patch
		switch kind {
		case GestureMove:
			p.X, p.Y = &tr.X, &tr.Y
		case GestureScale:
			p.X, p.Y = &tr.X, &tr.Y
			p.Width, p.Height = &tr.Width, &tr.Height
		case GestureRotate:
			p.Rotation = &tr.Rotation
		}
		updates = append(updates, Update{ID: id, Patch: p})
	}
	return updates
}
