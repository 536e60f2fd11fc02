package board

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
)

// TestMarshalDecode_RoundTrip tests the whole-value wire form for a connector,
// the kind with the most variant fields
func TestMarshalDecode_RoundTrip(t *testing.T) {
	conn := stamped(NewConnector(uuid.New().String(), uuid.New().String(), AnchorLeft, AnchorAuto))
	conn.StartPoint = &Point{X: 10, Y: 20}
	conn.EndPoint = &Point{X: 110, Y: 20}

	raw, err := Marshal(conn)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	got, err := Decode(raw)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	if got.ID != conn.ID || got.Type != TypeConnector {
		t.Errorf("identity fields lost: %+v", got)
	}
	if got.Start == nil || got.Start.SnapAnchor != AnchorLeft {
		t.Errorf("start endpoint lost: %+v", got.Start)
	}
	if got.StartPoint == nil || got.StartPoint.X != 10 {
		t.Errorf("cached endpoint lost: %+v", got.StartPoint)
	}
}

// TestDecode_MalformedJSON tests that unparseable values report ErrMalformedEntry
func TestDecode_MalformedJSON(t *testing.T) {
	_, err := Decode(json.RawMessage(`{"id": "x", "type"`))
	if err == nil {
		t.Fatal("expected decode to fail")
	}
	if !IsMalformed(err) {
		t.Errorf("expected ErrMalformedEntry, got %v", err)
	}
}

// TestDecode_FailsValidation tests that schema-invalid values report ErrMalformedEntry
func TestDecode_FailsValidation(t *testing.T) {
	raw := json.RawMessage(`{"id": "a", "type": "hexagon", "x": 0, "y": 0}`)
	_, err := Decode(raw)
	if err == nil {
		t.Fatal("expected decode to fail")
	}
	if !IsMalformed(err) {
		t.Errorf("expected ErrMalformedEntry, got %v", err)
	}
}

// TestDecode_MissingDiscriminant tests that a value without a type is rejected
func TestDecode_MissingDiscriminant(t *testing.T) {
	raw := json.RawMessage(`{"id": "a", "x": 1, "y": 2}`)
	if _, err := Decode(raw); err == nil {
		t.Fatal("expected decode to reject value without type discriminant")
	}
}

// TestClone_Independence tests that clones do not share mutable state
func TestClone_Independence(t *testing.T) {
	f := stamped(NewFrame(0, 0, 100, 100, "f", ""))
	f.ChildrenIDs = []string{"a", "b"}

	c := Clone(f)
	c.ChildrenIDs[0] = "changed"
	c.X = 999

	if f.ChildrenIDs[0] != "a" {
		t.Error("clone shares childrenIds backing array")
	}
	if f.X != 0 {
		t.Error("clone shares scalar state")
	}

	conn := stamped(NewConnector("a", "b", AnchorAuto, AnchorAuto))
	cc := Clone(conn)
	cc.Start.TargetID = "changed"
	if conn.Start.TargetID != "a" {
		t.Error("clone shares endpoint pointer")
	}
}
