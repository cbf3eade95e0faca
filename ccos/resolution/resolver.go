package resolution

import (
	"context"

	"github.com/mandubian/ccos-sub004/ccos/marketplace"
)

// RiskLevel annotates how much a resolved capability should be trusted
// before it is wired into a plan.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Resolution is one resolver's answer for a single missing capability id.
// Manifest is nil when the capability could not be located at all.
type Resolution struct {
	CapabilityID string
	Manifest     *marketplace.Manifest
	Risk         RiskLevel
	Source       string
	Approved     bool
}

// Resolver attempts to locate a manifest for a missing capability id.
type Resolver interface {
	Resolve(ctx context.Context, capabilityID string) (Resolution, error)
}

// ApprovalFunc decides whether a high-risk Resolution may be registered.
// It is consulted only when AutoApprove is false and Risk is RiskHigh.
type ApprovalFunc func(ctx context.Context, r Resolution) bool

// MarketplaceResolver tries, in order: curated overrides (operator-vetted,
// low risk), the marketplace's own discovery adapters (MCP registry search
// among them, medium risk), and an optional web/doc lookup (high risk,
// since its output is unvetted). High-risk resolutions are gated by
// AutoApprove or Approve.
type MarketplaceResolver struct {
	Market      *marketplace.Marketplace
	Curated     map[string]marketplace.Manifest
	WebLookup   func(ctx context.Context, capabilityID string) (*marketplace.Manifest, error)
	AutoApprove bool
	Approve     ApprovalFunc
}

// Resolve implements Resolver.
func (r *MarketplaceResolver) Resolve(ctx context.Context, capabilityID string) (Resolution, error) {
	if m, ok := r.Curated[capabilityID]; ok {
		manifest := m
		return r.finalize(ctx, Resolution{
			CapabilityID: capabilityID,
			Manifest:     &manifest,
			Risk:         RiskLow,
			Source:       "curated-override",
		})
	}

	if _, err := r.Market.Discover(ctx); err != nil {
		return Resolution{}, err
	}
	if manifest, err := r.Market.Get(ctx, capabilityID); err != nil {
		return Resolution{}, err
	} else if manifest != nil {
		return r.finalize(ctx, Resolution{
			CapabilityID: capabilityID,
			Manifest:     manifest,
			Risk:         RiskMedium,
			Source:       "mcp-registry",
		})
	}

	if r.WebLookup != nil {
		manifest, err := r.WebLookup(ctx, capabilityID)
		if err != nil {
			return Resolution{}, err
		}
		if manifest != nil {
			return r.finalize(ctx, Resolution{
				CapabilityID: capabilityID,
				Manifest:     manifest,
				Risk:         RiskHigh,
				Source:       "web-lookup",
			})
		}
	}

	return Resolution{CapabilityID: capabilityID, Risk: RiskHigh, Source: "unresolved"}, nil
}

func (r *MarketplaceResolver) finalize(ctx context.Context, res Resolution) (Resolution, error) {
	if res.Risk != RiskHigh {
		res.Approved = true
		return res, nil
	}
	if r.AutoApprove {
		res.Approved = true
		return res, nil
	}
	if r.Approve != nil {
		res.Approved = r.Approve(ctx, res)
		return res, nil
	}
	res.Approved = false
	return res, nil
}
