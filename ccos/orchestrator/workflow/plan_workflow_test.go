package workflow

import (
	"context"
	"testing"

	"github.com/mandubian/ccos-sub004/ccos/intentgraph"
	memstore "github.com/mandubian/ccos-sub004/ccos/intentgraph/store/memory"
	"github.com/mandubian/ccos-sub004/ccos/marketplace"
	marketmem "github.com/mandubian/ccos-sub004/ccos/marketplace/store/memory"
	"github.com/mandubian/ccos-sub004/ccos/orchestrator"
	"github.com/mandubian/ccos-sub004/ccos/orchestrator/engine/inproc"
	"github.com/mandubian/ccos-sub004/ccos/plan"
	"github.com/mandubian/ccos-sub004/ccos/policy"
	"github.com/mandubian/ccos-sub004/rtfs/value"
)

func TestPlanWorkflowRunsThroughInprocEngine(t *testing.T) {
	ctx := context.Background()
	market := marketplace.New(marketmem.New())
	if err := market.Register(ctx, marketplace.Manifest{
		ID:       "echo",
		Provider: marketplace.Provider{Kind: marketplace.ProviderLocal, LocalName: "echo"},
	}); err != nil {
		t.Fatalf("register: %v", err)
	}

	o := orchestrator.New(market, intentgraph.New(memstore.New()), nil, nil, nil)
	o.NewDispatcher = func(rtctx policy.Context) *orchestrator.Dispatcher {
		d := orchestrator.NewDispatcher(market, rtctx)
		d.Locals["echo"] = func(_ context.Context, args value.Value) (value.Value, *value.Error) {
			return args, nil
		}
		return d
	}

	e := inproc.New()
	if err := Register(ctx, e, o, "ccos-test"); err != nil {
		t.Fatalf("register plan workflow: %v", err)
	}

	p := plan.Plan{ID: "p1", IntentID: "i1", Body: `(do (call :echo "hi"))`}
	out, err := Start(ctx, e, "run-1", "ccos-test", p, policy.NewFull())
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if !out.Success {
		t.Fatalf("expected success, got %+v", out)
	}
	if out.Value != "hi" {
		t.Fatalf("expected value %q, got %v", "hi", out.Value)
	}
	if len(out.Actions) < 3 {
		t.Fatalf("expected recorded actions, got %d", len(out.Actions))
	}
}
