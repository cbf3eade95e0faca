package intentgraph

import (
	"context"
	"testing"

	"github.com/mandubian/ccos-sub004/ccos/intentgraph/store/memory"
)

func TestCreateAssignsIDAndDefaults(t *testing.T) {
	g := New(memory.New())
	ctx := context.Background()

	id, err := g.Create(ctx, Intent{Goal: "ship the release"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if id == "" {
		t.Fatal("expected a generated id")
	}
	got, err := g.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != StatusActive {
		t.Errorf("expected default status Active, got %s", got.Status)
	}
}

func TestIntentGraphRoundtrip(t *testing.T) {
	g := New(memory.New())
	ctx := context.Background()

	root, _ := g.Create(ctx, Intent{Name: "root", Goal: "G"})
	a, _ := g.Create(ctx, Intent{Name: "a", Goal: "A"})
	b, _ := g.Create(ctx, Intent{Name: "b", Goal: "B"})

	if err := g.AddEdge(ctx, a, root, EdgeIsSubgoalOf); err != nil {
		t.Fatalf("AddEdge a->root: %v", err)
	}
	if err := g.AddEdge(ctx, b, root, EdgeIsSubgoalOf); err != nil {
		t.Fatalf("AddEdge b->root: %v", err)
	}

	children, err := g.GetChildIntents(ctx, root)
	if err != nil {
		t.Fatalf("GetChildIntents: %v", err)
	}
	if len(children) != 2 {
		t.Fatalf("expected 2 children, got %d", len(children))
	}
	names := map[string]bool{}
	for _, c := range children {
		names[c.Name] = true
	}
	if !names["a"] || !names["b"] {
		t.Errorf("expected children a and b, got %v", names)
	}
}

func TestAddEdgeRejectsSecondParent(t *testing.T) {
	g := New(memory.New())
	ctx := context.Background()

	p1, _ := g.Create(ctx, Intent{Goal: "p1"})
	p2, _ := g.Create(ctx, Intent{Goal: "p2"})
	child, _ := g.Create(ctx, Intent{Goal: "child"})

	if err := g.AddEdge(ctx, child, p1, EdgeIsSubgoalOf); err != nil {
		t.Fatalf("first AddEdge: %v", err)
	}
	if err := g.AddEdge(ctx, child, p2, EdgeIsSubgoalOf); err == nil {
		t.Fatal("expected second IsSubgoalOf parent to be rejected")
	}
}

func TestAddEdgeRejectsCycle(t *testing.T) {
	g := New(memory.New())
	ctx := context.Background()

	x, _ := g.Create(ctx, Intent{Goal: "x"})
	y, _ := g.Create(ctx, Intent{Goal: "y"})
	z, _ := g.Create(ctx, Intent{Goal: "z"})

	if err := g.AddEdge(ctx, x, y, EdgeDependsOn); err != nil {
		t.Fatalf("x->y: %v", err)
	}
	if err := g.AddEdge(ctx, y, z, EdgeDependsOn); err != nil {
		t.Fatalf("y->z: %v", err)
	}
	if err := g.AddEdge(ctx, z, x, EdgeDependsOn); err == nil {
		t.Fatal("expected z->x to be rejected as a cycle")
	}
}

func TestRemoveArchivesAndDropsEdges(t *testing.T) {
	g := New(memory.New())
	ctx := context.Background()

	root, _ := g.Create(ctx, Intent{Goal: "root"})
	child, _ := g.Create(ctx, Intent{Goal: "child"})
	if err := g.AddEdge(ctx, child, root, EdgeIsSubgoalOf); err != nil {
		t.Fatalf("AddEdge: %v", err)
	}

	if err := g.Remove(ctx, child); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	got, err := g.Get(ctx, child)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != StatusArchived {
		t.Errorf("expected archived status, got %s", got.Status)
	}
	children, err := g.GetChildIntents(ctx, root)
	if err != nil {
		t.Fatalf("GetChildIntents: %v", err)
	}
	if len(children) != 0 {
		t.Errorf("expected no children after archiving, got %d", len(children))
	}
}
