// Package engine abstracts the durable-execution backend a plan workflow
// runs on, so the orchestrator's plan-execution path can run synchronously
// in-process (engine/inproc) or as a durable, retryable Temporal workflow
// (engine/temporal) without the orchestrator itself depending on either.
//
// The abstraction is deliberately narrower than a general workflow engine:
// CCOS plans do not pause for external signals or spawn child workflows, so
// this package only models what execute_intent_graph and
// validate_and_execute_plan actually need — registering one workflow
// definition and one activity definition per deployment, then starting and
// waiting on a single run.
package engine

import (
	"context"
	"time"
)

type (
	// Engine registers workflow/activity definitions and starts runs against
	// a durable-execution backend.
	Engine interface {
		RegisterWorkflow(ctx context.Context, def WorkflowDefinition) error
		RegisterActivity(ctx context.Context, def ActivityDefinition) error
		StartWorkflow(ctx context.Context, req WorkflowStartRequest) (WorkflowHandle, error)
	}

	// WorkflowDefinition binds a workflow handler to a logical name and
	// default task queue.
	WorkflowDefinition struct {
		Name      string
		TaskQueue string
		Handler   WorkflowFunc
	}

	// WorkflowFunc is a workflow entry point. For the Temporal engine this
	// function runs under Temporal's deterministic workflow context, so it
	// must not perform I/O itself — it should delegate any side-effecting
	// work to ExecuteActivity.
	WorkflowFunc func(ctx WorkflowContext, input any) (any, error)

	// WorkflowContext exposes the operations a WorkflowFunc may use.
	WorkflowContext interface {
		// Context returns a Go context valid for the lifetime of the run.
		// On the Temporal engine this is NOT a standard cancellable
		// context — workflow code must still route blocking work through
		// ExecuteActivity rather than using it for direct I/O.
		Context() context.Context
		WorkflowID() string
		RunID() string
		// ExecuteActivity runs a registered activity and blocks until it
		// completes, populating result.
		ExecuteActivity(ctx context.Context, req ActivityRequest, result any) error
		Now() time.Time
	}

	// ActivityDefinition registers a named, side-effecting handler a
	// workflow can invoke via ExecuteActivity.
	ActivityDefinition struct {
		Name    string
		Handler ActivityFunc
		Options ActivityOptions
	}

	// ActivityFunc handles one activity invocation.
	ActivityFunc func(ctx context.Context, input any) (any, error)

	// ActivityOptions describes retry/timeout/queue settings for an
	// activity. Neither the in-process nor the Temporal engine reads these
	// fields when it registers or runs an activity.
	ActivityOptions struct {
		Queue       string
		RetryPolicy RetryPolicy
		Timeout     time.Duration
	}

	// WorkflowStartRequest describes how to launch a workflow execution.
	WorkflowStartRequest struct {
		ID        string
		Workflow  string
		TaskQueue string
		Input     any
	}

	// ActivityRequest describes how to invoke a registered activity from a
	// workflow.
	ActivityRequest struct {
		Name    string
		Input   any
		Timeout time.Duration
	}

	// WorkflowHandle lets a caller wait for or cancel a started run.
	WorkflowHandle interface {
		Wait(ctx context.Context, result any) error
		Cancel(ctx context.Context) error
	}

	// RetryPolicy mirrors a subset of Temporal's retry settings. The
	// in-process engine runs each activity once and does not apply it.
	RetryPolicy struct {
		MaxAttempts        int
		InitialInterval    time.Duration
		BackoffCoefficient float64
	}
)
