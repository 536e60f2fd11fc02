package session

import (
	"context"

	"github.com/dyluth/mural/pkg/board"
)

// Frame membership maintenance after a frame resize.

// EvictEscapedChildren unparents every child whose center no longer lies
// inside the frame's bounds, updating the children list and the evicted
// objects' parentId in one atomic transaction. Children are never deleted
// by eviction, only released to the top level.
func (s *Session) EvictEscapedChildren(ctx context.Context, frameID string) Result {
	objects, err := s.snapshot(ctx)
	if err != nil {
		return fail("failed to read document: %v", err)
	}

	frame, found := objects[frameID]
	if !found {
		return fail("%v: %s", board.ErrNotFound, frameID)
	}
	if !frame.IsFrame() {
		return fail("%v: %s is not a frame", board.ErrInvalidRelationship, frameID)
	}

	bounds := board.FrameBounds(frame)

	var evicted []*board.Object
	kept := make([]string, 0, len(frame.ChildrenIDs))
	for _, childID := range frame.ChildrenIDs {
		child, found := objects[childID]
		if !found {
			// stale reference, drop it from the children list
			continue
		}
		center := board.Center(child)
		if bounds.Contains(center.X, center.Y) {
			kept = append(kept, childID)
			continue
		}
		c := board.Clone(child)
		c.ParentID = ""
		evicted = append(evicted, c)
	}

	if len(evicted) == 0 && len(kept) == len(frame.ChildrenIDs) {
		return ok()
	}

	puts := map[string]*board.Object{}
	f := board.Clone(frame)
	f.ChildrenIDs = kept
	s.stamp(f)
	puts[f.ID] = f
	for _, c := range evicted {
		s.stamp(c)
		puts[c.ID] = c
	}
	return s.applyPuts(ctx, puts, nil)
}

// AdoptAt assigns an object to whichever frame contains the given point,
// choosing the tightest fit when frames overlap. Used by the capture side
// when a drop lands inside a frame. Returns without writing when the
// containing frame is unchanged.
func (s *Session) AdoptAt(ctx context.Context, id string, x, y float64) Result {
	objects, err := s.snapshot(ctx)
	if err != nil {
		return fail("failed to read document: %v", err)
	}

	child, found := objects[id]
	if !found {
		return fail("%v: %s", board.ErrNotFound, id)
	}
	if child.IsFrame() {
		// frames never join other frames
		return ok()
	}

	frames := make([]*board.Object, 0, len(objects))
	for _, o := range objects {
		if o.IsFrame() {
			frames = append(frames, o)
		}
	}

	target := board.FindContainingFrame(x, y, frames)
	targetID := ""
	if target != nil {
		targetID = target.ID
	}
	if targetID == child.ParentID {
		return ok()
	}
	return s.Reparent(ctx, id, child.ParentID, targetID)
}
