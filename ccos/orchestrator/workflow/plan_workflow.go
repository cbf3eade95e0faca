// Package workflow registers validate_and_execute_plan as a durable
// engine.Engine workflow: the workflow itself only delegates to a single
// activity (execute_plan), so a Temporal engine never runs
// Orchestrator.ValidateAndExecutePlan's I/O-performing dispatch inside
// Temporal's replay-constrained workflow goroutine — that happens entirely
// inside the activity, where side effects and retries are expected.
package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/mandubian/ccos-sub004/ccos/orchestrator"
	"github.com/mandubian/ccos-sub004/ccos/orchestrator/engine"
	"github.com/mandubian/ccos-sub004/ccos/plan"
	"github.com/mandubian/ccos-sub004/ccos/policy"
	"github.com/mandubian/ccos-sub004/rtfs/value"
)

// WorkflowName is the workflow engine.Engine registers for plan execution.
const WorkflowName = "ccos.execute_plan"

// ActivityName is the activity WorkflowName's handler delegates to.
const ActivityName = "ccos.execute_plan_activity"

// Input is the JSON/gob-serializable payload a plan-execution run carries
// across the engine boundary; it mirrors plan.Plan and policy.Context
// rather than passing them directly so the Temporal data converter never
// needs to round-trip an rtfs/value.Value.
type Input struct {
	Plan     plan.Plan
	Mode     policy.Mode
	AllowSet []string
}

// ActionSummary is a JSON-safe projection of one causalchain.Action.
type ActionSummary struct {
	ID             string
	ParentActionID string
	Type           string
	FunctionName   string
	Arguments      any
	Result         any
	Success        bool
	Timestamp      time.Time
	IntentID       string
	PlanID         string
}

// Output is the JSON/gob-serializable result of a plan execution.
type Output struct {
	Success      bool
	Value        any
	ErrorMessage string
	Actions      []ActionSummary
}

func toInput(p plan.Plan, rtctx policy.Context) Input {
	allow := make([]string, 0, len(rtctx.AllowList))
	for id, ok := range rtctx.AllowList {
		if ok {
			allow = append(allow, id)
		}
	}
	return Input{Plan: p, Mode: rtctx.Mode, AllowSet: allow}
}

func (in Input) runtimeContext() policy.Context {
	switch in.Mode {
	case policy.ModePure:
		return policy.NewPure()
	case policy.ModeControlled:
		return policy.NewControlled(in.AllowSet...)
	default:
		return policy.NewFull()
	}
}

func toOutput(res orchestrator.ExecutionResult) Output {
	out := Output{Success: res.Success, Value: value.ToJSON(res.Value)}
	if res.Error != nil {
		out.ErrorMessage = res.Error.Error()
	}
	out.Actions = make([]ActionSummary, len(res.Actions))
	for i, a := range res.Actions {
		out.Actions[i] = ActionSummary{
			ID:             a.ID,
			ParentActionID: a.ParentActionID,
			Type:           string(a.Type),
			FunctionName:   a.FunctionName,
			Arguments:      value.ToJSON(a.Arguments),
			Result:         value.ToJSON(a.Result),
			Success:        a.Success,
			Timestamp:      a.Timestamp,
			IntentID:       a.IntentID,
			PlanID:         a.PlanID,
		}
	}
	return out
}

// Register binds WorkflowName and ActivityName on e, delegating the
// activity to o.ValidateAndExecutePlan.
func Register(ctx context.Context, e engine.Engine, o *orchestrator.Orchestrator, queue string) error {
	if err := e.RegisterActivity(ctx, engine.ActivityDefinition{
		Name: ActivityName,
		Handler: func(actx context.Context, raw any) (any, error) {
			in, ok := raw.(Input)
			if !ok {
				return nil, fmt.Errorf("workflow: unexpected activity input type %T", raw)
			}
			res := o.ValidateAndExecutePlan(actx, in.Plan, in.runtimeContext())
			return toOutput(res), nil
		},
	}); err != nil {
		return err
	}
	return e.RegisterWorkflow(ctx, engine.WorkflowDefinition{
		Name:      WorkflowName,
		TaskQueue: queue,
		Handler: func(wfCtx engine.WorkflowContext, raw any) (any, error) {
			in, ok := raw.(Input)
			if !ok {
				return nil, fmt.Errorf("workflow: unexpected workflow input type %T", raw)
			}
			var out Output
			if err := wfCtx.ExecuteActivity(wfCtx.Context(), engine.ActivityRequest{Name: ActivityName, Input: in}, &out); err != nil {
				return nil, err
			}
			return out, nil
		},
	})
}

// Start launches WorkflowName on e for p under rtctx and waits for its
// Output.
func Start(ctx context.Context, e engine.Engine, id, queue string, p plan.Plan, rtctx policy.Context) (Output, error) {
	handle, err := e.StartWorkflow(ctx, engine.WorkflowStartRequest{
		ID:        id,
		Workflow:  WorkflowName,
		TaskQueue: queue,
		Input:     toInput(p, rtctx),
	})
	if err != nil {
		return Output{}, err
	}
	var out Output
	if err := handle.Wait(ctx, &out); err != nil {
		return Output{}, err
	}
	return out, nil
}
