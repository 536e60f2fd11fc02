package planner

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dyluth/mural/internal/document"
	"github.com/dyluth/mural/internal/session"
	"github.com/dyluth/mural/internal/testutil"
	"github.com/dyluth/mural/pkg/board"
)

func newPlanSession(t *testing.T) (*session.Session, *document.AutomergeStore) {
	t.Helper()
	store := document.NewAutomergeStore()
	t.Cleanup(func() { store.Close() })
	return session.New(store, &testutil.RecordingRenderer{}, "planner"), store
}

func getObject(t *testing.T, store document.Store, id string) *board.Object {
	t.Helper()
	raw, err := store.Get(context.Background(), id)
	require.NoError(t, err)
	obj, err := board.Decode(raw)
	require.NoError(t, err)
	return obj
}

func flowPlan() *Plan {
	return &Plan{
		Title: "release flow",
		Nodes: []Node{
			{Key: "build", Type: board.TypeRectangle, Label: "build"},
			{Key: "test", Type: board.TypeRectangle, Label: "test"},
			{Key: "ship", Type: board.TypeStickyNote, Label: "ship it", Color: "green"},
		},
		Edges: []Edge{
			{From: "build", To: "test"},
			{From: "test", To: "ship"},
		},
	}
}

func TestExecute_WritesWholePlanAtomically(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s, store := newPlanSession(t)

	sub, err := store.Subscribe(ctx)
	require.NoError(t, err)
	defer sub.Close()

	ids, err := Execute(ctx, s, flowPlan(), 100, 100)
	require.NoError(t, err)
	require.Len(t, ids, 3)

	// 1 frame + 3 nodes + 2 connectors, announced as one change set
	select {
	case cs := <-sub.Events():
		require.Len(t, cs.Puts, 6)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the plan change set")
	}

	n, err := store.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 6, n)
}

func TestExecute_ConnectsNodesWithCachedEndpoints(t *testing.T) {
	ctx := context.Background()
	s, store := newPlanSession(t)

	ids, err := Execute(ctx, s, flowPlan(), 0, 0)
	require.NoError(t, err)

	entries, err := store.List(ctx)
	require.NoError(t, err)

	connectors := 0
	for id := range entries {
		obj := getObject(t, store, id)
		if !obj.IsConnector() {
			continue
		}
		connectors++
		require.NotNil(t, obj.StartPoint, "connector endpoints resolved against batch-mates")
		require.NotNil(t, obj.EndPoint)
	}
	require.Equal(t, 2, connectors)

	build := getObject(t, store, ids["build"])
	test := getObject(t, store, ids["test"])
	require.NotEqual(t, build.X, test.X, "grid layout separates neighbours")
}

func TestExecute_GroupsNodesUnderTitledFrame(t *testing.T) {
	ctx := context.Background()
	s, store := newPlanSession(t)

	ids, err := Execute(ctx, s, flowPlan(), 0, 0)
	require.NoError(t, err)

	build := getObject(t, store, ids["build"])
	require.NotEmpty(t, build.ParentID)

	frame := getObject(t, store, build.ParentID)
	require.True(t, frame.IsFrame())
	require.Equal(t, "release flow", frame.Title)
	require.Len(t, frame.ChildrenIDs, 3)
	for _, key := range []string{"build", "test", "ship"} {
		require.Contains(t, frame.ChildrenIDs, ids[key])
	}
}

func TestExecute_UntitledPlanHasNoFrame(t *testing.T) {
	ctx := context.Background()
	s, store := newPlanSession(t)

	p := &Plan{Nodes: []Node{{Key: "solo", Label: "alone"}}}
	ids, err := Execute(ctx, s, p, 0, 0)
	require.NoError(t, err)

	obj := getObject(t, store, ids["solo"])
	require.Empty(t, obj.ParentID)
	require.Equal(t, board.TypeStickyNote, obj.Type, "untyped nodes default to sticky notes")

	n, err := store.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestExecute_FailsWhenPlanOverflowsCapacity(t *testing.T) {
	ctx := context.Background()
	s, store := newPlanSession(t)

	filler := make([]*board.Object, 0, board.MaxObjects-1)
	for i := 0; i < board.MaxObjects-1; i++ {
		filler = append(filler, board.NewStickyNote(0, 0, "x", "yellow"))
	}
	_, res := s.BatchCreate(ctx, filler)
	require.True(t, res.OK, res.Reason)

	_, err := Execute(ctx, s, flowPlan(), 0, 0)
	require.Error(t, err)
	require.Contains(t, err.Error(), "capacity")

	n, err := store.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, board.MaxObjects, n, "partial plan still respects the cap")
}

func TestPlanValidate(t *testing.T) {
	tests := []struct {
		name    string
		plan    Plan
		wantErr string
	}{
		{
			name:    "empty plan",
			plan:    Plan{},
			wantErr: "no nodes",
		},
		{
			name: "duplicate key",
			plan: Plan{Nodes: []Node{{Key: "a"}, {Key: "a"}}},
			wantErr: "duplicate",
		},
		{
			name: "edge to unknown node",
			plan: Plan{
				Nodes: []Node{{Key: "a"}},
				Edges: []Edge{{From: "a", To: "ghost"}},
			},
			wantErr: "unknown node",
		},
		{
			name: "valid",
			plan: Plan{
				Nodes: []Node{{Key: "a"}, {Key: "b"}},
				Edges: []Edge{{From: "a", To: "b"}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.plan.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
			} else {
				require.ErrorContains(t, err, tt.wantErr)
			}
		})
	}
}

func TestLoadPlan(t *testing.T) {
	data := []byte(`
title: retro
nodes:
  - key: good
    label: what went well
    color: green
  - key: bad
    label: what didn't
    color: red
edges:
  - from: good
    to: bad
`)
	p, err := LoadPlan(data)
	require.NoError(t, err)
	require.Equal(t, "retro", p.Title)
	require.Len(t, p.Nodes, 2)
	require.Len(t, p.Edges, 1)

	_, err = LoadPlan([]byte("nodes:\n  - key: a\n    shape: oops\n"))
	require.Error(t, err, "unknown fields are rejected")
}
