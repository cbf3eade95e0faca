// Package store defines the persistence layer for capability manifests.
// Like the intent graph's store package, this is a dumb save/get/list layer;
// the registration invariant (reject duplicate ids) is enforced one layer
// up in marketplace.Marketplace.
package store

import (
	"context"
	"errors"

	"github.com/mandubian/ccos-sub004/ccos/marketplace"
)

// ErrNotFound is returned when a manifest is not found in the store.
var ErrNotFound = errors.New("capability manifest not found")

// Store defines the persistence layer for capability manifests.
// Implementations must be safe for concurrent use.
type Store interface {
	SaveManifest(ctx context.Context, m *marketplace.Manifest) error
	GetManifest(ctx context.Context, id string) (*marketplace.Manifest, error)
	ListManifests(ctx context.Context) ([]*marketplace.Manifest, error)
}
