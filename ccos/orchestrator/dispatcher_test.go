package orchestrator

import (
	"context"
	"testing"

	"github.com/mandubian/ccos-sub004/ccos/marketplace"
	marketmem "github.com/mandubian/ccos-sub004/ccos/marketplace/store/memory"
	"github.com/mandubian/ccos-sub004/ccos/policy"
	"github.com/mandubian/ccos-sub004/microvm/stub"
	"github.com/mandubian/ccos-sub004/rtfs/value"
)

func TestDispatchMicroVMCapability(t *testing.T) {
	market := marketplace.New(marketmem.New())
	ctx := context.Background()
	if err := market.Register(ctx, marketplace.Manifest{
		ID: "sandboxed-cap",
		Provider: marketplace.Provider{
			Kind:            marketplace.ProviderMicroVM,
			MicroVMProgram:  "print('hi')",
			MicroVMLanguage: "python",
		},
		Permissions: []string{"sandboxed-cap"},
	}); err != nil {
		t.Fatalf("register: %v", err)
	}

	d := NewDispatcher(market, policy.NewFull())
	provider := stub.New()
	if err := provider.Initialize(ctx); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	d.MicroVMs["sandboxed-cap"] = provider

	result, err := d.Dispatch(ctx, "sandboxed-cap", value.Vector())
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if !value.Equal(result, value.String("print('hi')")) {
		t.Fatalf("got %s", value.Print(result))
	}
}

func TestDispatchRejectsInvalidInputSchema(t *testing.T) {
	market := marketplace.New(marketmem.New())
	ctx := context.Background()
	if err := market.Register(ctx, marketplace.Manifest{
		ID:          "needs-int",
		Provider:    marketplace.Provider{Kind: marketplace.ProviderLocal, LocalName: "needs-int"},
		InputSchema: value.Prim(value.PrimInt),
	}); err != nil {
		t.Fatalf("register: %v", err)
	}

	d := NewDispatcher(market, policy.NewFull())
	d.Locals["needs-int"] = func(_ context.Context, args value.Value) (value.Value, *value.Error) {
		return args, nil
	}

	_, err := d.Dispatch(ctx, "needs-int", value.String("not an int"))
	if err == nil {
		t.Fatalf("expected schema validation error")
	}
	if err.ErrKind != value.KindType {
		t.Fatalf("expected KindType, got %v", err.ErrKind)
	}
}

func TestDispatchRetriesUnderRetryPolicy(t *testing.T) {
	market := marketplace.New(marketmem.New())
	ctx := context.Background()
	if err := market.Register(ctx, marketplace.Manifest{
		ID:       "flaky",
		Provider: marketplace.Provider{Kind: marketplace.ProviderLocal, LocalName: "flaky"},
		Retry:    &marketplace.RetryPolicy{MaxAttempts: 3, BackoffMS: 1},
	}); err != nil {
		t.Fatalf("register: %v", err)
	}

	d := NewDispatcher(market, policy.NewFull())
	var calls int
	d.Locals["flaky"] = func(_ context.Context, args value.Value) (value.Value, *value.Error) {
		calls++
		if calls < 3 {
			return value.Value{}, value.New(value.KindCapability, "transient failure")
		}
		return args, nil
	}

	result, err := d.Dispatch(ctx, "flaky", value.Int(1))
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
	if !value.Equal(result, value.Int(1)) {
		t.Fatalf("got %s", value.Print(result))
	}
}

func TestDispatchGivesUpAfterMaxRetryAttempts(t *testing.T) {
	market := marketplace.New(marketmem.New())
	ctx := context.Background()
	if err := market.Register(ctx, marketplace.Manifest{
		ID:       "always-fails",
		Provider: marketplace.Provider{Kind: marketplace.ProviderLocal, LocalName: "always-fails"},
		Retry:    &marketplace.RetryPolicy{MaxAttempts: 2, BackoffMS: 1},
	}); err != nil {
		t.Fatalf("register: %v", err)
	}

	d := NewDispatcher(market, policy.NewFull())
	var calls int
	d.Locals["always-fails"] = func(_ context.Context, args value.Value) (value.Value, *value.Error) {
		calls++
		return value.Value{}, value.New(value.KindCapability, "permanent failure")
	}

	_, err := d.Dispatch(ctx, "always-fails", value.Nil())
	if err == nil {
		t.Fatalf("expected error after exhausting retries")
	}
	if calls != 2 {
		t.Fatalf("expected 2 attempts, got %d", calls)
	}
}

func TestDispatchUnregisteredCapabilityFails(t *testing.T) {
	market := marketplace.New(marketmem.New())
	d := NewDispatcher(market, policy.NewFull())
	_, err := d.Dispatch(context.Background(), "nope", value.Nil())
	if err == nil || err.ErrKind != value.KindCapability {
		t.Fatalf("expected KindCapability, got %v", err)
	}
}
