// Package memory provides an in-memory orchestrator.PlanStore, suitable for
// development, testing, and single-node deployments, mirroring
// ccos/marketplace/store/memory's concurrency-safe map-backed shape.
package memory

import (
	"context"
	"sync"

	"github.com/mandubian/ccos-sub004/ccos/orchestrator"
	"github.com/mandubian/ccos-sub004/ccos/plan"
)

// Store is an in-memory implementation of orchestrator.PlanStore, keyed by
// intent id. Safe for concurrent use.
type Store struct {
	mu    sync.RWMutex
	plans map[string]plan.Plan
}

var _ orchestrator.PlanStore = (*Store)(nil)

// New creates an empty in-memory plan store.
func New() *Store {
	return &Store{plans: make(map[string]plan.Plan)}
}

// Plan implements orchestrator.PlanStore.
func (s *Store) Plan(_ context.Context, intentID string) (plan.Plan, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.plans[intentID]
	return p, ok, nil
}

// SavePlan implements orchestrator.PlanStore.
func (s *Store) SavePlan(_ context.Context, p plan.Plan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.plans[p.IntentID] = p
	return nil
}
