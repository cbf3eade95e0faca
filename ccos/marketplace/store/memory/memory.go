// Package memory provides an in-memory implementation of the marketplace
// store, suitable for development, testing, and single-node deployments.
package memory

import (
	"context"
	"sync"

	"github.com/mandubian/ccos-sub004/ccos/marketplace"
	"github.com/mandubian/ccos-sub004/ccos/marketplace/store"
)

// Store is an in-memory implementation of store.Store. Safe for concurrent use.
type Store struct {
	mu        sync.RWMutex
	manifests map[string]*marketplace.Manifest
}

var _ store.Store = (*Store)(nil)

// New creates a new in-memory marketplace store.
func New() *Store {
	return &Store{manifests: make(map[string]*marketplace.Manifest)}
}

func (s *Store) SaveManifest(ctx context.Context, m *marketplace.Manifest) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *m
	s.manifests[m.ID] = &cp
	return nil
}

func (s *Store) GetManifest(ctx context.Context, id string) (*marketplace.Manifest, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.manifests[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (s *Store) ListManifests(ctx context.Context) ([]*marketplace.Manifest, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*marketplace.Manifest, 0, len(s.manifests))
	for _, m := range s.manifests {
		cp := *m
		out = append(out, &cp)
	}
	return out, nil
}
