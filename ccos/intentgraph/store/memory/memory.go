// Package memory provides an in-memory implementation of the intent graph
// store, suitable for development, testing, and single-node deployments
// where persistence across restarts is not required.
package memory

import (
	"context"
	"sync"

	"github.com/mandubian/ccos-sub004/ccos/intentgraph"
	"github.com/mandubian/ccos-sub004/ccos/intentgraph/store"
)

// Store is an in-memory implementation of store.Store. Safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	intents map[string]*intentgraph.Intent
	edges   []intentgraph.Edge
}

var _ store.Store = (*Store)(nil)

// New creates a new in-memory intent graph store.
func New() *Store {
	return &Store{intents: make(map[string]*intentgraph.Intent)}
}

func (s *Store) SaveIntent(ctx context.Context, in *intentgraph.Intent) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *in
	s.intents[in.ID] = &cp
	return nil
}

func (s *Store) GetIntent(ctx context.Context, id string) (*intentgraph.Intent, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	in, ok := s.intents[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *in
	return &cp, nil
}

func (s *Store) ListIntents(ctx context.Context) ([]*intentgraph.Intent, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*intentgraph.Intent, 0, len(s.intents))
	for _, in := range s.intents {
		cp := *in
		out = append(out, &cp)
	}
	return out, nil
}

func (s *Store) SaveEdge(ctx context.Context, e intentgraph.Edge) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.edges {
		if existing == e {
			return nil
		}
	}
	s.edges = append(s.edges, e)
	return nil
}

func (s *Store) ListEdges(ctx context.Context) ([]intentgraph.Edge, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]intentgraph.Edge(nil), s.edges...), nil
}

func (s *Store) DeleteEdgesTouching(ctx context.Context, id string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.edges[:0]
	for _, e := range s.edges {
		if e.From != id && e.To != id {
			kept = append(kept, e)
		}
	}
	s.edges = kept
	return nil
}
