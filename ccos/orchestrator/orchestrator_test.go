package orchestrator

import (
	"context"
	"testing"

	"github.com/mandubian/ccos-sub004/ccos/intentgraph"
	memstore "github.com/mandubian/ccos-sub004/ccos/intentgraph/store/memory"
	"github.com/mandubian/ccos-sub004/ccos/marketplace"
	marketmem "github.com/mandubian/ccos-sub004/ccos/marketplace/store/memory"
	"github.com/mandubian/ccos-sub004/ccos/plan"
	"github.com/mandubian/ccos-sub004/ccos/policy"
	"github.com/mandubian/ccos-sub004/rtfs/value"
)

func newTestMarket(t *testing.T) *marketplace.Marketplace {
	t.Helper()
	return marketplace.New(marketmem.New())
}

func registerEcho(t *testing.T, market *marketplace.Marketplace, id string) {
	t.Helper()
	if err := market.Register(context.Background(), marketplace.Manifest{
		ID:       id,
		Name:     id,
		Provider: marketplace.Provider{Kind: marketplace.ProviderLocal, LocalName: id},
	}); err != nil {
		t.Fatalf("register %s: %v", id, err)
	}
}

func TestValidateRejectsUnregisteredCapability(t *testing.T) {
	market := newTestMarket(t)
	o := New(market, intentgraph.New(memstore.New()), nil, nil, nil)

	p := plan.Plan{ID: "p1", IntentID: "i1", Body: `(do (call :unknown-cap []))`}
	err := o.Validate(context.Background(), p, policy.NewFull())
	if err == nil {
		t.Fatalf("expected validation error for unregistered capability")
	}
}

func TestValidateRejectsControlledModeOutsideAllowList(t *testing.T) {
	market := newTestMarket(t)
	registerEcho(t, market, "echo")
	o := New(market, intentgraph.New(memstore.New()), nil, nil, nil)

	p := plan.Plan{ID: "p1", IntentID: "i1", Body: `(do (call :echo ["hi"]))`}
	err := o.Validate(context.Background(), p, policy.NewControlled("other-cap"))
	if err == nil {
		t.Fatalf("expected controlled-mode rejection")
	}
}

func TestValidateAndExecutePlanDispatchesLocalCapability(t *testing.T) {
	market := newTestMarket(t)
	registerEcho(t, market, "echo")
	o := New(market, intentgraph.New(memstore.New()), nil, nil, nil)
	o.NewDispatcher = func(rtctx policy.Context) *Dispatcher {
		d := NewDispatcher(market, rtctx)
		d.Locals["echo"] = func(_ context.Context, args value.Value) (value.Value, *value.Error) {
			return args, nil
		}
		return d
	}

	p := plan.Plan{ID: "p1", IntentID: "i1", Body: `(do (call :echo "hello"))`}
	res := o.ValidateAndExecutePlan(context.Background(), p, policy.NewFull())
	if !res.Success {
		t.Fatalf("expected success, got error %v", res.Error)
	}
	if !value.Equal(res.Value, value.String("hello")) {
		t.Fatalf("got %s", value.Print(res.Value))
	}
	if len(res.Actions) < 3 {
		t.Fatalf("expected at least PlanStart/CapabilityCall/PlanEnd actions, got %d", len(res.Actions))
	}
	if res.Actions[0].Type != "PlanStart" || res.Actions[len(res.Actions)-1].Type != "PlanEnd" {
		t.Fatalf("expected chain to start with PlanStart and end with PlanEnd, got %+v", res.Actions)
	}
}

func TestValidateAndExecutePlanPureModeForbidsCalls(t *testing.T) {
	market := newTestMarket(t)
	registerEcho(t, market, "echo")
	o := New(market, intentgraph.New(memstore.New()), nil, nil, nil)

	p := plan.Plan{ID: "p1", IntentID: "i1", Body: `(do (call :echo "hello"))`}
	res := o.ValidateAndExecutePlan(context.Background(), p, policy.NewPure())
	if res.Success {
		t.Fatalf("expected pure-mode capability call to fail")
	}
	if res.Error == nil || res.Error.ErrKind != value.KindSecurityViolation {
		t.Fatalf("expected KindSecurityViolation, got %+v", res.Error)
	}
}

func TestExecuteIntentGraphRunsChildrenInDependencyOrder(t *testing.T) {
	market := newTestMarket(t)
	registerEcho(t, market, "echo")
	graph := intentgraph.New(memstore.New())
	ctx := context.Background()

	root, err := graph.Create(ctx, intentgraph.Intent{Name: "root", Goal: "root"})
	if err != nil {
		t.Fatalf("create root: %v", err)
	}
	a, err := graph.Create(ctx, intentgraph.Intent{Name: "a", Goal: "a", ParentID: root})
	if err != nil {
		t.Fatalf("create a: %v", err)
	}
	b, err := graph.Create(ctx, intentgraph.Intent{Name: "b", Goal: "b", ParentID: root})
	if err != nil {
		t.Fatalf("create b: %v", err)
	}
	if err := graph.AddEdge(ctx, a, root, intentgraph.EdgeIsSubgoalOf); err != nil {
		t.Fatalf("edge a->root: %v", err)
	}
	if err := graph.AddEdge(ctx, b, root, intentgraph.EdgeIsSubgoalOf); err != nil {
		t.Fatalf("edge b->root: %v", err)
	}
	if err := graph.AddEdge(ctx, b, a, intentgraph.EdgeDependsOn); err != nil {
		t.Fatalf("edge b dependsOn a: %v", err)
	}

	plans := map[string]plan.Plan{
		root: {ID: "plan-root", IntentID: root, Body: `(do (set! "root-ran" true))`},
		a:    {ID: "plan-a", IntentID: a, Body: `(do (set! "a-ran" true))`},
		b:    {ID: "plan-b", IntentID: b, Body: `(do (set! "b-saw-a" (get "a-ran")))`},
	}
	planner := &stubPlanProvider{plans: plans}

	o := New(market, graph, nil, planner, nil)
	res, err := o.ExecuteIntentGraph(ctx, root, policy.NewFull())
	if err != nil {
		t.Fatalf("ExecuteIntentGraph: %v", err)
	}
	if !res.Success {
		t.Fatalf("expected overall success, got error %v", res.Error)
	}
	if len(res.Children) != 2 {
		t.Fatalf("expected 2 children executed, got %d", len(res.Children))
	}
	bRes, ok := res.Children[b]
	if !ok || !bRes.Success {
		t.Fatalf("expected child b to succeed, got %+v", bRes)
	}
}

type stubPlanProvider struct {
	plans map[string]plan.Plan
}

func (s *stubPlanProvider) IntentToPlan(_ context.Context, intentID string) (plan.Plan, error) {
	return s.plans[intentID], nil
}
