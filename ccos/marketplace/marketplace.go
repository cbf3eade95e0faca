package marketplace

import (
	"context"
	"fmt"

	"github.com/mandubian/ccos-sub004/ccos/marketplace/store"
)

// Marketplace is the capability registry API: register, lookup, ranked
// search for a required-capability set, and discovery-adapter orchestration.
type Marketplace struct {
	store   store.Store
	adapters []CapabilityDiscovery
}

// New wraps st with registration/search behavior. adapters are consulted
// in order by Discover.
func New(st store.Store, adapters ...CapabilityDiscovery) *Marketplace {
	return &Marketplace{store: st, adapters: adapters}
}

// Register stores a new manifest, rejecting a duplicate id.
func (m *Marketplace) Register(ctx context.Context, manifest Manifest) error {
	existing, err := m.store.GetManifest(ctx, manifest.ID)
	if err != nil && err != store.ErrNotFound {
		return err
	}
	if existing != nil {
		return fmt.Errorf("capability %q is already registered", manifest.ID)
	}
	manifest.Effects = SortedEffects(manifest.Effects)
	return m.store.SaveManifest(ctx, &manifest)
}

// Get returns the manifest for id, or nil if unregistered.
func (m *Marketplace) Get(ctx context.Context, id string) (*Manifest, error) {
	manifest, err := m.store.GetManifest(ctx, id)
	if err != nil {
		if err == store.ErrNotFound {
			return nil, nil
		}
		return nil, err
	}
	return manifest, nil
}

// List returns every registered manifest.
func (m *Marketplace) List(ctx context.Context) ([]*Manifest, error) {
	return m.store.ListManifests(ctx)
}

// FindForCapabilities returns the registered manifests among required,
// ordered by trust-score descending then cost ascending. Ids with no
// registered manifest are silently omitted; callers compare len(required)
// against len(result) to detect misses.
func (m *Marketplace) FindForCapabilities(ctx context.Context, required []string) ([]Manifest, error) {
	var found []Manifest
	for _, id := range required {
		manifest, err := m.store.GetManifest(ctx, id)
		if err != nil {
			if err == store.ErrNotFound {
				continue
			}
			return nil, err
		}
		found = append(found, *manifest)
	}
	return RankByTrustThenCost(found), nil
}

// Discover runs every configured adapter and registers whatever they
// return, skipping ids already present (a later round's re-discovery of an
// already-registered capability is a no-op, not an error).
func (m *Marketplace) Discover(ctx context.Context) ([]Manifest, error) {
	var all []Manifest
	for _, adapter := range m.adapters {
		found, err := adapter.Discover(ctx)
		if err != nil {
			return all, err
		}
		for _, manifest := range found {
			if existing, _ := m.store.GetManifest(ctx, manifest.ID); existing != nil {
				continue
			}
			manifest.Effects = SortedEffects(manifest.Effects)
			if err := m.store.SaveManifest(ctx, &manifest); err != nil {
				return all, err
			}
			all = append(all, manifest)
		}
	}
	return all, nil
}
