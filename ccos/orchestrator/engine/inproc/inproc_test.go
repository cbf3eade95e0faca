package inproc

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/mandubian/ccos-sub004/ccos/orchestrator/engine"
)

func TestWorkflowDelegatesToActivity(t *testing.T) {
	e := New()
	ctx := context.Background()

	if err := e.RegisterActivity(ctx, engine.ActivityDefinition{
		Name: "double",
		Handler: func(_ context.Context, input any) (any, error) {
			n, ok := input.(int)
			if !ok {
				return nil, fmt.Errorf("want int, got %T", input)
			}
			return n * 2, nil
		},
	}); err != nil {
		t.Fatalf("register activity: %v", err)
	}

	if err := e.RegisterWorkflow(ctx, engine.WorkflowDefinition{
		Name: "doubler",
		Handler: func(wfCtx engine.WorkflowContext, input any) (any, error) {
			var out int
			if err := wfCtx.ExecuteActivity(wfCtx.Context(), engine.ActivityRequest{Name: "double", Input: input}, &out); err != nil {
				return nil, err
			}
			return out, nil
		},
	}); err != nil {
		t.Fatalf("register workflow: %v", err)
	}

	handle, err := e.StartWorkflow(ctx, engine.WorkflowStartRequest{ID: "run-1", Workflow: "doubler", Input: 21})
	if err != nil {
		t.Fatalf("start workflow: %v", err)
	}

	runCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	var result int
	if err := handle.Wait(runCtx, &result); err != nil {
		t.Fatalf("wait: %v", err)
	}
	if result != 42 {
		t.Fatalf("expected 42, got %d", result)
	}
}

func TestStartWorkflowUnregisteredFails(t *testing.T) {
	e := New()
	if _, err := e.StartWorkflow(context.Background(), engine.WorkflowStartRequest{ID: "x", Workflow: "nope"}); err == nil {
		t.Fatalf("expected error for unregistered workflow")
	}
}
