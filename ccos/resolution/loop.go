// Package resolution implements the bounded retry loop that scans a plan
// for capability ids the marketplace does not yet know about, resolves
// them (discovery adapters, curated overrides, web lookup, human
// approval), and asks the planner to re-synthesize until the plan
// stabilizes or a round limit is reached.
package resolution

import (
	"context"
	"fmt"
	"sort"

	"github.com/mandubian/ccos-sub004/ccos/marketplace"
	"github.com/mandubian/ccos-sub004/ccos/plan"
	"github.com/mandubian/ccos-sub004/rtfs/parser"
)

// defaultMaxRounds is the round bound spec.md §4.I names as the default.
const defaultMaxRounds = 3

// Planner regenerates a plan for an intent once the marketplace has been
// updated with newly resolved capabilities.
type Planner interface {
	IntentToPlan(ctx context.Context, intentID string) (plan.Plan, error)
}

// RoundLog records one round of the loop for audit/debugging.
type RoundLog struct {
	Round       int
	Missing     []string
	Resolutions []Resolution
	PlanBody    string
}

// Loop is the resolution loop over one marketplace, resolver, and planner.
type Loop struct {
	Market    *marketplace.Marketplace
	Resolver  Resolver
	Planner   Planner
	MaxRounds int // <= 0 uses defaultMaxRounds
}

func (l *Loop) maxRounds() int {
	if l.MaxRounds <= 0 {
		return defaultMaxRounds
	}
	return l.MaxRounds
}

// Run resolves p's missing capabilities against the marketplace,
// re-synthesizing via Planner for up to maxRounds rounds. It returns the
// new plan if the body changed from p's starting form, or nil if nothing
// changed (spec.md §4.I's Some/None termination rule). logs records every
// intermediate round for audit.
func (l *Loop) Run(ctx context.Context, intentID string, p plan.Plan) (*plan.Plan, []RoundLog, error) {
	current := p
	var logs []RoundLog

	for round := 1; round <= l.maxRounds(); round++ {
		missing, err := l.missingCapabilities(ctx, current)
		if err != nil {
			return nil, logs, err
		}
		if len(missing) == 0 {
			break
		}

		resolutions := make([]Resolution, 0, len(missing))
		for _, id := range missing {
			res, err := l.Resolver.Resolve(ctx, id)
			if err != nil {
				return nil, logs, err
			}
			if res.Approved && res.Manifest != nil {
				if existing, gerr := l.Market.Get(ctx, id); gerr != nil {
					return nil, logs, gerr
				} else if existing == nil {
					if err := l.Market.Register(ctx, *res.Manifest); err != nil {
						return nil, logs, err
					}
				}
			}
			resolutions = append(resolutions, res)
		}

		next, err := l.Planner.IntentToPlan(ctx, intentID)
		if err != nil {
			return nil, logs, err
		}
		logs = append(logs, RoundLog{Round: round, Missing: missing, Resolutions: resolutions, PlanBody: next.Body})

		if next.Body == current.Body {
			break
		}
		current = next
	}

	if current.Body == p.Body {
		return nil, logs, nil
	}
	return &current, logs, nil
}

// missingCapabilities extracts every capability id p.Body's `(call …)`
// sites reference, plus any `:generated-capability` id named in p's
// metadata, and returns those not present in the marketplace, sorted for
// deterministic round logs.
func (l *Loop) missingCapabilities(ctx context.Context, p plan.Plan) ([]string, error) {
	node, perr := parser.ParseOne(p.Body)
	if perr != nil {
		return nil, fmt.Errorf("parse plan body: %s", perr.Error())
	}

	ids := make(map[string]bool)
	collectCapabilityIDs(node, ids)
	if gc := p.Metadata["generated-capability"]; gc != "" {
		ids[gc] = true
	}

	var missing []string
	for id := range ids {
		manifest, err := l.Market.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if manifest == nil {
			missing = append(missing, id)
		}
	}
	sort.Strings(missing)
	return missing, nil
}
