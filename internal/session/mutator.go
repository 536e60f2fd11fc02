package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/dyluth/mural/internal/document"
	"github.com/dyluth/mural/pkg/board"
)

// Mutation API: the only path that writes to the shared document. Every
// writer - the interactive capture side, an automated planner, a CLI - goes
// through these operations, so capacity, authorship stamping and the
// frame/children and connector-cache invariants hold uniformly.
//
// Failures are values, never panics: each operation returns a Result the
// caller branches on.

// Result reports whether a mutation was applied, with a human-readable
// reason when it was not.
type Result struct {
	OK     bool
	Reason string
}

func ok() Result {
	return Result{OK: true}
}

func fail(format string, a ...any) Result {
	return Result{Reason: fmt.Sprintf(format, a...)}
}

// Patch is a partial update: nil fields are left unchanged. The merge is
// read-merge-write over the whole object, so a Patch never writes less than
// a complete value back to the document.
type Patch struct {
	X        *float64
	Y        *float64
	Width    *float64
	Height   *float64
	Rotation *float64

	Text     *string
	Color    *string
	Fill     *string
	Stroke   *string
	FontSize *float64
	Title    *string

	StrokeWidth *float64
	Style       *board.LineStyle
	StartCap    *board.CapStyle
	EndCap      *board.CapStyle
}

// Update is one item of a BatchUpdate.
type Update struct {
	ID    string
	Patch Patch
}

// CreateStickyNote creates a fixed-size note. Returns the new object's ID,
// or a failed Result if the document is at capacity.
func (s *Session) CreateStickyNote(ctx context.Context, x, y float64, text, color string) (string, Result) {
	return s.create(ctx, board.NewStickyNote(x, y, text, color))
}

// CreateShape creates a rectangle or circle shape.
func (s *Session) CreateShape(ctx context.Context, t board.ObjectType, x, y, width, height float64, fill, stroke string) (string, Result) {
	if t != board.TypeRectangle && t != board.TypeCircle {
		return "", fail("%q is not a shape type", t)
	}
	return s.create(ctx, board.NewShape(t, x, y, width, height, fill, stroke))
}

// CreateText creates a text element.
func (s *Session) CreateText(ctx context.Context, x, y, width float64, text string, fontSize float64, fill string) (string, Result) {
	return s.create(ctx, board.NewText(x, y, width, text, fontSize, fill))
}

// CreateFrame creates a grouping frame. Frames always paint behind other
// objects (zIndex pinned to 0).
func (s *Session) CreateFrame(ctx context.Context, x, y, width, height float64, title, fill string) (string, Result) {
	return s.create(ctx, board.NewFrame(x, y, width, height, title, fill))
}

// CreateConnector creates a connector between two existing objects and
// caches its current attachment points. Fails if either target is missing.
func (s *Session) CreateConnector(ctx context.Context, startID, endID string, startAnchor, endAnchor board.SnapAnchor) (string, Result) {
	return s.create(ctx, board.NewConnector(startID, endID, startAnchor, endAnchor))
}

// create is the shared single-object creation path: capacity check, ID and
// zIndex assignment, authorship stamp, one single-key transaction.
func (s *Session) create(ctx context.Context, obj *board.Object) (string, Result) {
	count, err := s.store.Count(ctx)
	if err != nil {
		return "", fail("failed to read document: %v", err)
	}
	if count >= board.MaxObjects {
		return "", fail("%v (%d objects)", board.ErrCapacityExceeded, count)
	}

	obj = board.Clone(obj)
	if obj.ID == "" {
		obj.ID = uuid.New().String()
	}
	if obj.IsFrame() {
		obj.ZIndex = 0
	} else {
		obj.ZIndex = count
	}

	if obj.IsConnector() {
		objects, err := s.snapshot(ctx)
		if err != nil {
			return "", fail("failed to read document: %v", err)
		}
		if res := refreshConnectorCache(obj, objects); !res.OK {
			return "", res
		}
	}

	s.stamp(obj)
	if err := obj.Validate(); err != nil {
		return "", fail("invalid object: %v", err)
	}

	raw, err := board.Marshal(obj)
	if err != nil {
		return "", fail("%v", err)
	}
	if err := s.store.Apply(ctx, document.Tx{
		Origin: s.token,
		Puts:   map[string]json.RawMessage{obj.ID: raw},
	}); err != nil {
		return "", fail("failed to write object: %v", err)
	}
	return obj.ID, ok()
}

// Update merges a partial patch over an existing object and re-stamps it.
// No-op failure if the ID is absent. Attached connectors' cached endpoints
// are rewritten in the same transaction when the patch moves or resizes the
// object.
func (s *Session) Update(ctx context.Context, id string, patch Patch) Result {
	return s.batchUpdate(ctx, []Update{{ID: id, Patch: patch}}, false)
}

// BatchUpdate applies several partial updates in one atomic transaction, so
// observers receive exactly one change notification. Items whose ID is
// missing are silently skipped while the others still apply.
func (s *Session) BatchUpdate(ctx context.Context, updates []Update) Result {
	return s.batchUpdate(ctx, updates, true)
}

func (s *Session) batchUpdate(ctx context.Context, updates []Update, skipMissing bool) Result {
	if len(updates) == 0 {
		return ok()
	}

	objects, err := s.snapshot(ctx)
	if err != nil {
		return fail("failed to read document: %v", err)
	}

	puts := map[string]*board.Object{}
	geometryChanged := map[string]bool{}

	for _, u := range updates {
		existing, found := objects[u.ID]
		if !found {
			if skipMissing {
				continue
			}
			return fail("%v: %s", board.ErrNotFound, u.ID)
		}

		merged := board.Clone(existing)
		moved := applyPatch(merged, u.Patch)
		s.stamp(merged)
		puts[merged.ID] = merged
		objects[merged.ID] = merged
		if moved {
			geometryChanged[merged.ID] = true
		}
	}

	if len(puts) == 0 {
		return ok()
	}

	// keep attached connectors' cached endpoints within tolerance of the
	// targets' new geometry, in the same transaction
	for _, o := range objects {
		if !o.IsConnector() {
			continue
		}
		if (o.Start != nil && geometryChanged[o.Start.TargetID]) ||
			(o.End != nil && geometryChanged[o.End.TargetID]) {
			// a connector patched in this same batch is refreshed in place,
			// on top of its merged patch
			conn := puts[o.ID]
			if conn == nil {
				conn = board.Clone(o)
			}
			if res := refreshConnectorCache(conn, objects); res.OK {
				s.stamp(conn)
				puts[conn.ID] = conn
			}
		}
	}

	return s.applyPuts(ctx, puts, nil)
}

// Delete removes one object, cascading to relationship cleanup: the object
// leaves its parent frame's children, a deleted frame's children are
// unparented (not deleted), and every connector referencing a deleted object
// is deleted in the same atomic batch.
func (s *Session) Delete(ctx context.Context, id string) Result {
	if _, err := s.store.Get(ctx, id); err != nil {
		if board.IsNotFound(err) {
			return fail("%v: %s", board.ErrNotFound, id)
		}
		return fail("failed to read document: %v", err)
	}
	return s.BatchDelete(ctx, []string{id})
}

// BatchDelete removes several objects and their cascade set in one atomic
// transaction. Missing IDs are silently skipped.
func (s *Session) BatchDelete(ctx context.Context, ids []string) Result {
	if len(ids) == 0 {
		return ok()
	}

	objects, err := s.snapshot(ctx)
	if err != nil {
		return fail("failed to read document: %v", err)
	}

	doomed := map[string]bool{}
	for _, id := range ids {
		if _, found := objects[id]; found {
			doomed[id] = true
		}
	}
	if len(doomed) == 0 {
		return ok()
	}

	// cascade: connectors referencing anything doomed are doomed too, and
	// connectors referencing those connectors in turn
	for {
		grew := false
		for _, o := range objects {
			if doomed[o.ID] || !o.IsConnector() {
				continue
			}
			if (o.Start != nil && doomed[o.Start.TargetID]) ||
				(o.End != nil && doomed[o.End.TargetID]) {
				doomed[o.ID] = true
				grew = true
			}
		}
		if !grew {
			break
		}
	}

	puts := map[string]*board.Object{}
	touch := func(id string) *board.Object {
		if p, found := puts[id]; found {
			return p
		}
		o, found := objects[id]
		if !found || doomed[id] {
			return nil
		}
		c := board.Clone(o)
		puts[id] = c
		return c
	}

	for id := range doomed {
		o := objects[id]

		// a deleted frame unparents its surviving children
		if o.IsFrame() {
			for _, childID := range o.ChildrenIDs {
				if child := touch(childID); child != nil {
					child.ParentID = ""
				}
			}
		}

		// a deleted child leaves its surviving parent's children list
		if o.ParentID != "" {
			if parent := touch(o.ParentID); parent != nil {
				parent.ChildrenIDs = removeID(parent.ChildrenIDs, id)
			}
		}
	}

	for _, p := range puts {
		s.stamp(p)
	}

	deletes := make([]string, 0, len(doomed))
	for id := range doomed {
		deletes = append(deletes, id)
	}
	sort.Strings(deletes)

	return s.applyPuts(ctx, puts, deletes)
}

// BatchCreate inserts several fully-formed objects in one atomic
// transaction. Insertion silently stops once the document reaches capacity
// rather than failing the whole batch. Returns the IDs actually created.
func (s *Session) BatchCreate(ctx context.Context, objs []*board.Object) ([]string, Result) {
	if len(objs) == 0 {
		return nil, ok()
	}

	objects, err := s.snapshot(ctx)
	if err != nil {
		return nil, fail("failed to read document: %v", err)
	}
	count := len(objects)

	puts := map[string]*board.Object{}
	var created []string

	for _, src := range objs {
		if count >= board.MaxObjects {
			break
		}

		obj := board.Clone(src)
		if obj.ID == "" {
			obj.ID = uuid.New().String()
		}
		if obj.IsFrame() {
			obj.ZIndex = 0
		} else {
			obj.ZIndex = count
		}

		if obj.IsConnector() {
			// connectors may target objects created earlier in this batch
			if res := refreshConnectorCache(obj, objects); !res.OK {
				return nil, res
			}
		}

		s.stamp(obj)
		if err := obj.Validate(); err != nil {
			return nil, fail("invalid object: %v", err)
		}

		objects[obj.ID] = obj
		puts[obj.ID] = obj
		created = append(created, obj.ID)
		count++
	}

	if res := s.applyPuts(ctx, puts, nil); !res.OK {
		return nil, res
	}
	return created, ok()
}

// Reparent moves an object between frames (either side may be empty for
// top-level). It atomically removes the ID from the old frame's children,
// adds it to the new frame's children, and updates the child's parentId.
// Rejected before any write when the child is itself a frame.
func (s *Session) Reparent(ctx context.Context, id, fromFrameID, toFrameID string) Result {
	if fromFrameID == toFrameID {
		return ok()
	}

	objects, err := s.snapshot(ctx)
	if err != nil {
		return fail("failed to read document: %v", err)
	}

	child, found := objects[id]
	if !found {
		return fail("%v: %s", board.ErrNotFound, id)
	}
	if child.IsFrame() {
		return fail("%v: frames cannot be nested", board.ErrInvalidRelationship)
	}

	puts := map[string]*board.Object{}

	if fromFrameID != "" {
		from, found := objects[fromFrameID]
		if !found {
			return fail("%v: %s", board.ErrNotFound, fromFrameID)
		}
		if !from.IsFrame() {
			return fail("%v: %s is not a frame", board.ErrInvalidRelationship, fromFrameID)
		}
		c := board.Clone(from)
		c.ChildrenIDs = removeID(c.ChildrenIDs, id)
		puts[c.ID] = c
	}

	if toFrameID != "" {
		to, found := objects[toFrameID]
		if !found {
			return fail("%v: %s", board.ErrNotFound, toFrameID)
		}
		if !to.IsFrame() {
			return fail("%v: %s is not a frame", board.ErrInvalidRelationship, toFrameID)
		}
		c := board.Clone(to)
		if !containsID(c.ChildrenIDs, id) {
			c.ChildrenIDs = append(c.ChildrenIDs, id)
		}
		puts[c.ID] = c
	}

	moved := board.Clone(child)
	moved.ParentID = toFrameID
	puts[moved.ID] = moved

	for _, p := range puts {
		s.stamp(p)
	}
	return s.applyPuts(ctx, puts, nil)
}

// snapshot decodes the whole document into objects, skipping malformed
// entries the same way remote application does.
func (s *Session) snapshot(ctx context.Context) (map[string]*board.Object, error) {
	entries, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}

	objects := make(map[string]*board.Object, len(entries))
	for id, raw := range entries {
		obj, err := board.Decode(raw)
		if err != nil {
			s.log.Warn("skipping malformed document entry", "id", id, "err", err)
			continue
		}
		objects[id] = obj
	}
	return objects, nil
}

// applyPuts marshals and writes one transaction.
func (s *Session) applyPuts(ctx context.Context, puts map[string]*board.Object, deletes []string) Result {
	tx := document.Tx{Origin: s.token, Deletes: deletes}
	if len(puts) > 0 {
		tx.Puts = make(map[string]json.RawMessage, len(puts))
		for id, o := range puts {
			raw, err := board.Marshal(o)
			if err != nil {
				return fail("%v", err)
			}
			tx.Puts[id] = raw
		}
	}
	if err := s.store.Apply(ctx, tx); err != nil {
		return fail("failed to write transaction: %v", err)
	}
	return ok()
}

// applyPatch merges a patch over an object in place, honouring per-kind
// invariants, and reports whether the object's geometry changed.
func applyPatch(o *board.Object, p Patch) bool {
	moved := false
	setF := func(dst *float64, src *float64) {
		if src != nil && *dst != *src {
			*dst = *src
			moved = true
		}
	}

	setF(&o.X, p.X)
	setF(&o.Y, p.Y)
	if o.Resizable() {
		setF(&o.Width, p.Width)
		setF(&o.Height, p.Height)
	}
	if o.Rotatable() {
		setF(&o.Rotation, p.Rotation)
	}

	if p.Text != nil {
		o.Text = *p.Text
	}
	if p.Color != nil {
		o.Color = *p.Color
	}
	if p.Fill != nil {
		o.Fill = *p.Fill
	}
	if p.Stroke != nil {
		o.Stroke = *p.Stroke
	}
	if p.FontSize != nil {
		o.FontSize = *p.FontSize
	}
	if p.Title != nil {
		o.Title = *p.Title
	}
	if p.StrokeWidth != nil {
		o.StrokeWidth = *p.StrokeWidth
	}
	if p.Style != nil {
		o.Style = *p.Style
	}
	if p.StartCap != nil {
		o.StartCap = *p.StartCap
	}
	if p.EndCap != nil {
		o.EndCap = *p.EndCap
	}
	return moved
}

// refreshConnectorCache recomputes a connector's cached endpoints from its
// targets' current geometry. Fails when a target is missing at creation
// time; cascade delete keeps that from happening afterwards.
func refreshConnectorCache(conn *board.Object, objects map[string]*board.Object) Result {
	start, foundStart := objects[conn.Start.TargetID]
	end, foundEnd := objects[conn.End.TargetID]
	if !foundStart || !foundEnd {
		conn.StartPoint = nil
		conn.EndPoint = nil
		return fail("%v: connector target missing", board.ErrNotFound)
	}

	from, to := board.ResolveEndpoints(start, end, conn.Start.SnapAnchor, conn.End.SnapAnchor)
	conn.StartPoint = &from
	conn.EndPoint = &to
	return ok()
}

func removeID(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
