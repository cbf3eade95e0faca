// Package store defines the persistence layer for the intent graph.
//
// Store is deliberately dumb: it saves and lists raw intents and edges. The
// DAG invariants (forest-shaped subgoal tree, no cycles across any edge
// type) are enforced one layer up, in intentgraph.Graph, so every backend
// gets them for free. Available implementations:
//
//   - memory: in-memory store for development and testing
//   - mongo: MongoDB store for production persistence
package store

import (
	"context"
	"errors"

	"github.com/mandubian/ccos-sub004/ccos/intentgraph"
)

// ErrNotFound is returned when an intent is not found in the store.
var ErrNotFound = errors.New("intent not found")

// Store defines the persistence layer for intents and edges.
// Implementations must be safe for concurrent use.
type Store interface {
	// SaveIntent stores or updates an intent. If an intent with the same id
	// already exists, it is replaced.
	SaveIntent(ctx context.Context, in *intentgraph.Intent) error

	// GetIntent retrieves an intent by id. Returns ErrNotFound if absent.
	GetIntent(ctx context.Context, id string) (*intentgraph.Intent, error)

	// ListIntents returns every intent in the store, in no particular order.
	ListIntents(ctx context.Context) ([]*intentgraph.Intent, error)

	// SaveEdge appends an edge. Duplicate (from, to, type) triples are
	// idempotent.
	SaveEdge(ctx context.Context, e intentgraph.Edge) error

	// ListEdges returns every edge in the store.
	ListEdges(ctx context.Context) ([]intentgraph.Edge, error)

	// DeleteEdgesTouching removes every edge whose From or To equals id.
	DeleteEdgesTouching(ctx context.Context, id string) error
}
