// Package planner executes declarative diagram plans against a document.
//
// A planner is deliberately just another writer: it funnels every change
// through the session mutation API, so capacity, authorship stamping and the
// relationship invariants apply to generated content exactly as they do to
// interactive edits.
package planner

import (
	"bytes"
	"context"
	"fmt"
	"math"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/dyluth/mural/internal/session"
	"github.com/dyluth/mural/pkg/board"
)

const (
	cellWidth  = 240.0
	cellHeight = 240.0
	framePad   = 40.0

	defaultNodeWidth  = 160.0
	defaultNodeHeight = 100.0
)

// Node is one diagram element to create. Key names the node within the plan
// so edges can reference it before any object ID exists.
type Node struct {
	Key   string           `yaml:"key"`
	Type  board.ObjectType `yaml:"type"`
	Label string           `yaml:"label"`
	Color string           `yaml:"color"`
}

// Edge is a connector between two plan nodes.
type Edge struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// Plan is a declarative diagram: nodes laid out on a grid, edges between
// them, optionally grouped under a titled frame.
type Plan struct {
	Title string `yaml:"title"`
	Nodes []Node `yaml:"nodes"`
	Edges []Edge `yaml:"edges"`
}

// LoadPlan parses a YAML plan document. Unknown fields are rejected so a
// typo in a plan file fails loudly instead of silently dropping a node.
func LoadPlan(data []byte) (*Plan, error) {
	var p Plan
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("failed to parse plan: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate checks plan consistency before any document write: node keys must
// be unique and every edge must reference known keys.
func (p *Plan) Validate() error {
	if len(p.Nodes) == 0 {
		return fmt.Errorf("plan has no nodes")
	}

	keys := make(map[string]bool, len(p.Nodes))
	for _, n := range p.Nodes {
		if n.Key == "" {
			return fmt.Errorf("plan node with empty key")
		}
		if keys[n.Key] {
			return fmt.Errorf("duplicate plan node key %q", n.Key)
		}
		keys[n.Key] = true
	}

	for _, e := range p.Edges {
		if !keys[e.From] || !keys[e.To] {
			return fmt.Errorf("edge %s -> %s references an unknown node", e.From, e.To)
		}
	}
	return nil
}

// Execute lays the plan out on a square-ish grid and writes it to the
// document in one atomic batch: every observer sees the whole diagram appear
// at once. Returns the created object ID for each node key.
//
// The batch is built nodes-first so connectors can resolve their cached
// endpoints against batch-mates.
func Execute(ctx context.Context, s *session.Session, p *Plan, originX, originY float64) (map[string]string, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	cols := int(math.Ceil(math.Sqrt(float64(len(p.Nodes)))))
	rows := (len(p.Nodes) + cols - 1) / cols

	var batch []*board.Object
	ids := make(map[string]string, len(p.Nodes))

	var frame *board.Object
	if p.Title != "" {
		frame = board.NewFrame(
			originX-framePad,
			originY-framePad,
			float64(cols)*cellWidth+2*framePad,
			float64(rows)*cellHeight+2*framePad,
			p.Title, "")
		frame.ID = uuid.New().String()
		batch = append(batch, frame)
	}

	for i, n := range p.Nodes {
		x := originX + float64(i%cols)*cellWidth
		y := originY + float64(i/cols)*cellHeight

		obj, err := nodeObject(n, x, y)
		if err != nil {
			return nil, err
		}
		if frame != nil {
			obj.ParentID = frame.ID
			frame.ChildrenIDs = append(frame.ChildrenIDs, obj.ID)
		}
		ids[n.Key] = obj.ID
		batch = append(batch, obj)
	}

	for _, e := range p.Edges {
		conn := board.NewConnector(ids[e.From], ids[e.To], board.AnchorAuto, board.AnchorAuto)
		batch = append(batch, conn)
	}

	created, res := s.BatchCreate(ctx, batch)
	if !res.OK {
		return nil, fmt.Errorf("plan write failed: %s", res.Reason)
	}
	if len(created) < len(batch) {
		return nil, fmt.Errorf("plan truncated at document capacity: %d of %d objects created", len(created), len(batch))
	}
	return ids, nil
}

// nodeObject builds the board object for one plan node. Each object gets its
// ID up front so edges can be wired before the batch is written.
func nodeObject(n Node, x, y float64) (*board.Object, error) {
	var obj *board.Object
	switch n.Type {
	case board.TypeStickyNote, "":
		color := n.Color
		if color == "" {
			color = "yellow"
		}
		obj = board.NewStickyNote(x, y, n.Label, color)
	case board.TypeRectangle, board.TypeCircle:
		obj = board.NewShape(n.Type, x, y, defaultNodeWidth, defaultNodeHeight, n.Color, "black")
		obj.Text = n.Label
	case board.TypeText:
		obj = board.NewText(x, y, defaultNodeWidth, n.Label, 16, n.Color)
	default:
		return nil, fmt.Errorf("plan node %q has unsupported type %q", n.Key, n.Type)
	}
	obj.ID = uuid.New().String()
	return obj, nil
}
