// Package testutil provides test doubles shared by the engine test suites,
// chiefly a recording renderer that captures every outbound visual
// instruction for assertions.
package testutil

import (
	"fmt"

	"github.com/dyluth/mural/pkg/board"
)

// VisualOp is one recorded renderer instruction.
type VisualOp struct {
	Kind string // "create", "update", "remove", "refresh-connector"
	ID   string
	Obj  *board.Object
	From board.Point
	To   board.Point
}

// RecordingRenderer captures renderer instructions for assertions.
// The zero value is ready to use.
type RecordingRenderer struct {
	Ops []VisualOp
}

func (r *RecordingRenderer) CreateVisual(obj *board.Object) {
	r.Ops = append(r.Ops, VisualOp{Kind: "create", ID: obj.ID, Obj: obj})
}

func (r *RecordingRenderer) UpdateVisual(obj *board.Object) {
	r.Ops = append(r.Ops, VisualOp{Kind: "update", ID: obj.ID, Obj: obj})
}

func (r *RecordingRenderer) RemoveVisual(id string) {
	r.Ops = append(r.Ops, VisualOp{Kind: "remove", ID: id})
}

func (r *RecordingRenderer) RefreshConnector(id string, from, to board.Point) {
	r.Ops = append(r.Ops, VisualOp{Kind: "refresh-connector", ID: id, From: from, To: to})
}

// Reset discards the recorded instructions.
func (r *RecordingRenderer) Reset() {
	r.Ops = nil
}

// OpsFor returns the recorded instructions affecting one object ID.
func (r *RecordingRenderer) OpsFor(id string) []VisualOp {
	var out []VisualOp
	for _, op := range r.Ops {
		if op.ID == id {
			out = append(out, op)
		}
	}
	return out
}

// CountKind returns how many instructions of the given kind were recorded.
func (r *RecordingRenderer) CountKind(kind string) int {
	n := 0
	for _, op := range r.Ops {
		if op.Kind == kind {
			n++
		}
	}
	return n
}

// String renders the instruction log, which makes test failures readable.
func (r *RecordingRenderer) String() string {
	out := ""
	for _, op := range r.Ops {
		out += fmt.Sprintf("%s %s\n", op.Kind, op.ID)
	}
	return out
}
