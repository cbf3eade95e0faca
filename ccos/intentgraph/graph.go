package intentgraph

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mandubian/ccos-sub004/ccos/intentgraph/store"
)

// Graph is the intent graph API: it wraps a storage backend and enforces
// the invariants that do not belong to any one backend — IsSubgoalOf edges
// form a forest (at most one parent per intent), and no edge type admits a
// cycle.
type Graph struct {
	store store.Store
}

// New wraps st with invariant-enforcing graph operations.
func New(st store.Store) *Graph {
	return &Graph{store: st}
}

// Create stores a new intent, assigning an id if in.ID is empty, and
// returns the assigned id.
func (g *Graph) Create(ctx context.Context, in Intent) (string, error) {
	if in.ID == "" {
		in.ID = uuid.New().String()
	}
	now := in.CreatedAt
	if now.IsZero() {
		now = time.Now().UTC()
		in.CreatedAt = now
	}
	in.UpdatedAt = now
	if in.Status == "" {
		in.Status = StatusActive
	}
	if err := g.store.SaveIntent(ctx, &in); err != nil {
		return "", err
	}
	return in.ID, nil
}

// Get returns the intent with the given id, or nil if it does not exist.
func (g *Graph) Get(ctx context.Context, id string) (*Intent, error) {
	in, err := g.store.GetIntent(ctx, id)
	if err != nil {
		if err == store.ErrNotFound {
			return nil, nil
		}
		return nil, err
	}
	return in, nil
}

// GetAll returns every intent in the graph.
func (g *Graph) GetAll(ctx context.Context) ([]*Intent, error) {
	return g.store.ListIntents(ctx)
}

// GetChildIntents returns every intent for which an IsSubgoalOf edge to id
// exists.
func (g *Graph) GetChildIntents(ctx context.Context, id string) ([]*Intent, error) {
	edges, err := g.store.ListEdges(ctx)
	if err != nil {
		return nil, err
	}
	var children []*Intent
	for _, e := range edges {
		if e.Type != EdgeIsSubgoalOf || e.To != id {
			continue
		}
		child, err := g.store.GetIntent(ctx, e.From)
		if err != nil {
			if err == store.ErrNotFound {
				continue
			}
			return nil, err
		}
		children = append(children, child)
	}
	return children, nil
}

// ListEdges returns every edge in the graph, for callers (such as the
// orchestrator ordering sibling intents by DependsOn) that need the full
// relation set rather than a single edge type rooted at one intent.
func (g *Graph) ListEdges(ctx context.Context) ([]Edge, error) {
	return g.store.ListEdges(ctx)
}

// AddEdge adds an edge from->to of the given type, rejecting edges that
// would violate the forest/cycle-free invariants.
func (g *Graph) AddEdge(ctx context.Context, from, to string, typ EdgeType) error {
	if from == to {
		return fmt.Errorf("intent %q cannot relate to itself", from)
	}
	if _, err := g.mustGet(ctx, from); err != nil {
		return err
	}
	if _, err := g.mustGet(ctx, to); err != nil {
		return err
	}
	edges, err := g.store.ListEdges(ctx)
	if err != nil {
		return err
	}
	if typ == EdgeIsSubgoalOf {
		for _, e := range edges {
			if e.Type == EdgeIsSubgoalOf && e.From == from && e.To != to {
				return fmt.Errorf("intent %q already has a parent; IsSubgoalOf edges form a forest", from)
			}
		}
	}
	if wouldCycle(edges, from, to) {
		return fmt.Errorf("edge %s->%s would introduce a cycle", from, to)
	}
	return g.store.SaveEdge(ctx, Edge{From: from, To: to, Type: typ})
}

// Remove archives the intent (sets Status to Archived); it does not delete
// the record or break referential integrity for historical causal-chain
// actions that reference it, but does drop every edge touching it so
// traversal queries stop surfacing it.
func (g *Graph) Remove(ctx context.Context, id string) error {
	in, err := g.mustGet(ctx, id)
	if err != nil {
		return err
	}
	in.Status = StatusArchived
	in.UpdatedAt = time.Now().UTC()
	if err := g.store.SaveIntent(ctx, in); err != nil {
		return err
	}
	return g.store.DeleteEdgesTouching(ctx, id)
}

func (g *Graph) mustGet(ctx context.Context, id string) (*Intent, error) {
	in, err := g.store.GetIntent(ctx, id)
	if err != nil {
		if err == store.ErrNotFound {
			return nil, fmt.Errorf("intent %q does not exist", id)
		}
		return nil, err
	}
	return in, nil
}

// wouldCycle reports whether adding from->to to the existing edge set
// creates a path back from to to from, across every edge type (a cycle in
// any relation is rejected, not just IsSubgoalOf).
func wouldCycle(edges []Edge, from, to string) bool {
	adj := make(map[string][]string, len(edges))
	for _, e := range edges {
		adj[e.From] = append(adj[e.From], e.To)
	}
	visited := map[string]bool{}
	var dfs func(node string) bool
	dfs = func(node string) bool {
		if node == from {
			return true
		}
		if visited[node] {
			return false
		}
		visited[node] = true
		for _, next := range adj[node] {
			if dfs(next) {
				return true
			}
		}
		return false
	}
	return dfs(to)
}
