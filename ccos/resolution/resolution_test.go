package resolution

import (
	"context"
	"testing"

	"github.com/mandubian/ccos-sub004/ccos/marketplace"
	"github.com/mandubian/ccos-sub004/ccos/marketplace/store/memory"
	"github.com/mandubian/ccos-sub004/ccos/plan"
	"github.com/stretchr/testify/require"
)

type stubPlanner struct {
	plans []plan.Plan
	idx   int
}

func (p *stubPlanner) IntentToPlan(context.Context, string) (plan.Plan, error) {
	if p.idx >= len(p.plans) {
		return p.plans[len(p.plans)-1], nil
	}
	out := p.plans[p.idx]
	p.idx++
	return out, nil
}

func TestMissingCapabilitiesDetectsUnregisteredCalls(t *testing.T) {
	t.Parallel()

	market := marketplace.New(memory.New())
	loop := &Loop{Market: market}

	p := plan.Plan{Body: `(do (call :weather.get []) (call :ccos.echo []))`}
	missing, err := loop.missingCapabilities(context.Background(), p)
	require.NoError(t, err)
	require.Equal(t, []string{"ccos.echo", "weather.get"}, missing)
}

func TestRunResolvesViaCuratedOverrideAndAccepts(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	market := marketplace.New(memory.New())

	curated := map[string]marketplace.Manifest{
		"weather.get": {ID: "weather.get", Name: "Weather", Provider: marketplace.Provider{Kind: marketplace.ProviderHTTP}},
	}
	resolver := &MarketplaceResolver{Market: market, Curated: curated}

	initial := plan.Plan{IntentID: "intent-1", Body: `(do (call :weather.get []))`}
	regenerated := plan.Plan{IntentID: "intent-1", Body: `(do (call :weather.get {:city "nyc"}))`}
	planner := &stubPlanner{plans: []plan.Plan{regenerated}}

	loop := &Loop{Market: market, Resolver: resolver, Planner: planner}
	result, logs, err := loop.Run(ctx, "intent-1", initial)
	require.NoError(t, err)
	require.NotNil(t, result)
	require.Equal(t, regenerated.Body, result.Body)
	require.Len(t, logs, 1)
	require.Equal(t, []string{"weather.get"}, logs[0].Missing)
	require.True(t, logs[0].Resolutions[0].Approved)

	manifest, err := market.Get(ctx, "weather.get")
	require.NoError(t, err)
	require.NotNil(t, manifest)
}

func TestRunReturnsNilWhenPlanNeverChanges(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	market := marketplace.New(memory.New())
	resolver := &MarketplaceResolver{Market: market}

	p := plan.Plan{IntentID: "intent-1", Body: `(do (call :unknown.cap []))`}
	planner := &stubPlanner{plans: []plan.Plan{p}}

	loop := &Loop{Market: market, Resolver: resolver, Planner: planner}
	result, logs, err := loop.Run(ctx, "intent-1", p)
	require.NoError(t, err)
	require.Nil(t, result)
	require.NotEmpty(t, logs)
	require.False(t, logs[0].Resolutions[0].Approved)
}

func TestRunStopsAtRoundLimit(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	market := marketplace.New(memory.New())
	resolver := &MarketplaceResolver{Market: market}

	bodies := []plan.Plan{
		{IntentID: "intent-1", Body: `(do (call :a []))`},
		{IntentID: "intent-1", Body: `(do (call :b []))`},
		{IntentID: "intent-1", Body: `(do (call :c []))`},
		{IntentID: "intent-1", Body: `(do (call :d []))`},
	}
	planner := &stubPlanner{plans: bodies}

	initial := plan.Plan{IntentID: "intent-1", Body: `(do (call :start []))`}
	loop := &Loop{Market: market, Resolver: resolver, Planner: planner, MaxRounds: 2}
	result, logs, err := loop.Run(ctx, "intent-1", initial)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	require.NotNil(t, result)
	require.Equal(t, bodies[1].Body, result.Body)
}

func TestResolveHighRiskRequiresApproval(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	market := marketplace.New(memory.New())
	manifest := marketplace.Manifest{ID: "web.scrape", Provider: marketplace.Provider{Kind: marketplace.ProviderHTTP}}
	resolver := &MarketplaceResolver{
		Market: market,
		WebLookup: func(context.Context, string) (*marketplace.Manifest, error) {
			return &manifest, nil
		},
	}

	res, err := resolver.Resolve(ctx, "web.scrape")
	require.NoError(t, err)
	require.Equal(t, RiskHigh, res.Risk)
	require.False(t, res.Approved)

	resolver.AutoApprove = true
	res, err = resolver.Resolve(ctx, "web.scrape")
	require.NoError(t, err)
	require.True(t, res.Approved)
}
