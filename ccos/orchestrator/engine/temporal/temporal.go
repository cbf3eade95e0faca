// Package temporal adapts engine.Engine onto Temporal, so plan execution
// survives process restarts and activity failures retry per Temporal's own
// policy instead of the caller's. It registers exactly one workflow and one
// activity per deployment (ccos/orchestrator/workflow's plan-execution
// pair) rather than the teacher's arbitrary multi-queue registration, since
// CCOS has a single workflow shape to run durably.
package temporal

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"github.com/mandubian/ccos-sub004/ccos/orchestrator/engine"
)

// Options configures the Temporal engine adapter.
type Options struct {
	// Client is a pre-configured Temporal client. If nil, HostPort is used
	// to dial one.
	Client client.Client
	// HostPort is the Temporal frontend address, used when Client is nil.
	HostPort string
	// TaskQueue is the default queue workers poll and workflows start on.
	TaskQueue string
}

// Engine implements engine.Engine against a Temporal cluster.
type Engine struct {
	client      client.Client
	closeClient bool
	taskQueue   string

	mu         sync.Mutex
	worker     worker.Worker
	workflows  map[string]engine.WorkflowDefinition
	activities map[string]engine.ActivityDefinition
	started    bool
}

var _ engine.Engine = (*Engine)(nil)

// New dials (or reuses) a Temporal client and prepares a worker for
// opts.TaskQueue. The worker is started lazily on the first StartWorkflow
// call, mirroring the teacher's auto-start default.
func New(opts Options) (*Engine, error) {
	if opts.TaskQueue == "" {
		return nil, fmt.Errorf("temporal engine: task queue is required")
	}
	cli := opts.Client
	closeClient := false
	if cli == nil {
		var err error
		cli, err = client.Dial(client.Options{HostPort: opts.HostPort})
		if err != nil {
			return nil, fmt.Errorf("temporal engine: dial client: %w", err)
		}
		closeClient = true
	}
	e := &Engine{
		client:      cli,
		closeClient: closeClient,
		taskQueue:   opts.TaskQueue,
		workflows:   make(map[string]engine.WorkflowDefinition),
		activities:  make(map[string]engine.ActivityDefinition),
	}
	e.worker = worker.New(cli, opts.TaskQueue, worker.Options{})
	return e, nil
}

// Close shuts down the worker and, if this Engine dialed its own client,
// the client connection.
func (e *Engine) Close() {
	e.mu.Lock()
	started := e.started
	e.mu.Unlock()
	if started {
		e.worker.Stop()
	}
	if e.closeClient {
		e.client.Close()
	}
}

func (e *Engine) RegisterWorkflow(_ context.Context, def engine.WorkflowDefinition) error {
	if def.Name == "" || def.Handler == nil {
		return fmt.Errorf("temporal engine: invalid workflow definition")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, dup := e.workflows[def.Name]; dup {
		return fmt.Errorf("temporal engine: workflow %q already registered", def.Name)
	}
	e.workflows[def.Name] = def
	e.worker.RegisterWorkflowWithOptions(
		func(tctx workflow.Context, input any) (any, error) {
			return def.Handler(&workflowContext{tctx: tctx}, input)
		},
		workflow.RegisterOptions{Name: def.Name},
	)
	return nil
}

func (e *Engine) RegisterActivity(_ context.Context, def engine.ActivityDefinition) error {
	if def.Name == "" || def.Handler == nil {
		return fmt.Errorf("temporal engine: invalid activity definition")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, dup := e.activities[def.Name]; dup {
		return fmt.Errorf("temporal engine: activity %q already registered", def.Name)
	}
	e.activities[def.Name] = def
	e.worker.RegisterActivityWithOptions(def.Handler, worker.RegisterActivityOptions{Name: def.Name})
	return nil
}

func (e *Engine) ensureStarted() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started {
		return nil
	}
	if err := e.worker.Start(); err != nil {
		return fmt.Errorf("temporal engine: start worker: %w", err)
	}
	e.started = true
	return nil
}

func (e *Engine) StartWorkflow(ctx context.Context, req engine.WorkflowStartRequest) (engine.WorkflowHandle, error) {
	if req.Workflow == "" {
		return nil, fmt.Errorf("temporal engine: workflow name is required")
	}
	if err := e.ensureStarted(); err != nil {
		return nil, err
	}
	queue := req.TaskQueue
	if queue == "" {
		queue = e.taskQueue
	}
	run, err := e.client.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        req.ID,
		TaskQueue: queue,
	}, req.Workflow, req.Input)
	if err != nil {
		return nil, fmt.Errorf("temporal engine: start workflow: %w", err)
	}
	return &workflowHandle{client: e.client, run: run}, nil
}

type workflowContext struct {
	tctx workflow.Context
}

func (w *workflowContext) Context() context.Context { return context.Background() }
func (w *workflowContext) WorkflowID() string       { return workflow.GetInfo(w.tctx).WorkflowExecution.ID }
func (w *workflowContext) RunID() string            { return workflow.GetInfo(w.tctx).WorkflowExecution.RunID }
func (w *workflowContext) Now() time.Time           { return workflow.Now(w.tctx) }

func (w *workflowContext) ExecuteActivity(_ context.Context, req engine.ActivityRequest, result any) error {
	actx := w.tctx
	if req.Timeout > 0 {
		actx = workflow.WithActivityOptions(w.tctx, workflow.ActivityOptions{StartToCloseTimeout: req.Timeout})
	} else {
		actx = workflow.WithActivityOptions(w.tctx, workflow.ActivityOptions{StartToCloseTimeout: 5 * time.Minute})
	}
	return workflow.ExecuteActivity(actx, req.Name, req.Input).Get(actx, result)
}

type workflowHandle struct {
	client client.Client
	run    client.WorkflowRun
}

func (h *workflowHandle) Wait(ctx context.Context, result any) error {
	return h.run.Get(ctx, result)
}

func (h *workflowHandle) Cancel(ctx context.Context) error {
	return h.client.CancelWorkflow(ctx, h.run.GetID(), h.run.GetRunID())
}
