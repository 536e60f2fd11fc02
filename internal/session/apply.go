package session

import (
	"context"
	"sort"

	"github.com/dyluth/mural/internal/document"
	"github.com/dyluth/mural/pkg/board"
)

// Remote-change application: replays document change notifications into the
// rendering engine.
//
// Change sets tagged with this session's own token are the echo of writes we
// just made; they update the local mirror but produce no renderer
// instructions, so a local update is never re-applied as if a peer made it.
// Malformed entries are logged and skipped - another participant's possibly
// newer data must never crash this session.

// Run performs the initial load and then applies live change notifications
// until the context ends or the store closes the subscription.
func (s *Session) Run(ctx context.Context) error {
	sub, err := s.store.Subscribe(ctx)
	if err != nil {
		return err
	}
	defer sub.Close()

	if err := s.InitialLoad(ctx); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-sub.Errors():
			if !ok {
				return nil
			}
			s.log.Warn("subscription error", "err", err)
		case cs, ok := <-sub.Events():
			if !ok {
				return nil
			}
			s.ApplyChangeSet(cs)
		}
	}
}

// InitialLoad replays every existing document entry into the rendering
// engine, sorted by ascending zIndex so paint order is correct from the
// first frame. Connector visuals are refreshed afterwards, once all their
// targets exist.
func (s *Session) InitialLoad(ctx context.Context) error {
	objects, err := s.snapshot(ctx)
	if err != nil {
		return err
	}

	ordered := make([]*board.Object, 0, len(objects))
	for _, o := range objects {
		ordered = append(ordered, o)
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].ZIndex != ordered[j].ZIndex {
			return ordered[i].ZIndex < ordered[j].ZIndex
		}
		return ordered[i].ID < ordered[j].ID
	})

	for _, o := range ordered {
		s.applied[o.ID] = o
		s.renderer.CreateVisual(o)
	}
	for _, o := range ordered {
		if o.IsConnector() {
			s.refreshConnectorVisual(o)
		}
	}
	return nil
}

// ApplyChangeSet applies one change notification. One notification may
// bundle many key additions, updates and deletions (batch semantics).
func (s *Session) ApplyChangeSet(cs *document.ChangeSet) {
	own := cs.Origin == s.token

	for _, id := range cs.Deletes {
		_, known := s.applied[id]
		delete(s.applied, id)
		if !own && known {
			s.renderer.RemoveVisual(id)
		}
	}

	for id, raw := range cs.Puts {
		obj, err := board.Decode(raw)
		if err != nil {
			s.log.Warn("skipping malformed remote entry", "id", id, "err", err)
			continue
		}

		_, known := s.applied[id]
		s.applied[id] = obj
		if own {
			// echo of our own write: mirror only, no renderer instruction
			continue
		}

		if known {
			s.renderer.UpdateVisual(obj)
		} else {
			s.renderer.CreateVisual(obj)
		}

		if obj.IsConnector() {
			s.refreshConnectorVisual(obj)
		} else {
			s.refreshAttachedConnectors(id)
		}
	}
}

// refreshAttachedConnectors redraws every connector attached to the given
// object so arrows visually track moved or resized endpoints even when the
// move originated remotely.
func (s *Session) refreshAttachedConnectors(id string) {
	for _, o := range s.applied {
		if o.References(id) {
			s.refreshConnectorVisual(o)
		}
	}
}

func (s *Session) refreshConnectorVisual(conn *board.Object) {
	start, foundStart := s.applied[conn.Start.TargetID]
	end, foundEnd := s.applied[conn.End.TargetID]
	if !foundStart || !foundEnd {
		// target not applied yet (or being cascade-deleted); skip quietly
		return
	}
	from, to := board.ResolveEndpoints(start, end, conn.Start.SnapAnchor, conn.End.SnapAnchor)
	s.renderer.RefreshConnector(conn.ID, from, to)
}
