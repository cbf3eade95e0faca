// Package inproc is the default engine.Engine: it runs a workflow's
// activities as direct, synchronous function calls in the calling
// process, with no durability or replay. Suitable for development, tests,
// and single-node deployments that don't need Temporal's crash-recovery.
package inproc

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/mandubian/ccos-sub004/ccos/orchestrator/engine"
)

type Engine struct {
	mu         sync.RWMutex
	workflows  map[string]engine.WorkflowDefinition
	activities map[string]engine.ActivityDefinition
}

var _ engine.Engine = (*Engine)(nil)

// New returns an empty in-process engine.
func New() *Engine {
	return &Engine{
		workflows:  make(map[string]engine.WorkflowDefinition),
		activities: make(map[string]engine.ActivityDefinition),
	}
}

func (e *Engine) RegisterWorkflow(_ context.Context, def engine.WorkflowDefinition) error {
	if def.Name == "" || def.Handler == nil {
		return errors.New("inproc: invalid workflow definition")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, dup := e.workflows[def.Name]; dup {
		return fmt.Errorf("inproc: workflow %q already registered", def.Name)
	}
	e.workflows[def.Name] = def
	return nil
}

func (e *Engine) RegisterActivity(_ context.Context, def engine.ActivityDefinition) error {
	if def.Name == "" || def.Handler == nil {
		return errors.New("inproc: invalid activity definition")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, dup := e.activities[def.Name]; dup {
		return fmt.Errorf("inproc: activity %q already registered", def.Name)
	}
	e.activities[def.Name] = def
	return nil
}

func (e *Engine) StartWorkflow(ctx context.Context, req engine.WorkflowStartRequest) (engine.WorkflowHandle, error) {
	e.mu.RLock()
	def, ok := e.workflows[req.Workflow]
	e.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("inproc: workflow %q not registered", req.Workflow)
	}
	if req.ID == "" {
		return nil, errors.New("inproc: workflow id is required")
	}

	wfCtx := &workflowContext{ctx: ctx, id: req.ID, runID: req.ID, eng: e}
	h := &handle{done: make(chan struct{})}

	go func() {
		defer close(h.done)
		res, err := def.Handler(wfCtx, req.Input)
		h.result, h.err = res, err
	}()
	return h, nil
}

type workflowContext struct {
	ctx   context.Context
	id    string
	runID string
	eng   *Engine
}

func (w *workflowContext) Context() context.Context { return w.ctx }
func (w *workflowContext) WorkflowID() string       { return w.id }
func (w *workflowContext) RunID() string            { return w.runID }
func (w *workflowContext) Now() time.Time           { return time.Now() }

func (w *workflowContext) ExecuteActivity(ctx context.Context, req engine.ActivityRequest, result any) error {
	w.eng.mu.RLock()
	def, ok := w.eng.activities[req.Name]
	w.eng.mu.RUnlock()
	if !ok {
		return fmt.Errorf("inproc: activity %q not registered", req.Name)
	}
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}
	res, err := def.Handler(ctx, req.Input)
	if err != nil {
		return err
	}
	return assignResult(result, res)
}

type handle struct {
	done   chan struct{}
	result any
	err    error
}

func (h *handle) Wait(ctx context.Context, result any) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-h.done:
		if h.err != nil {
			return h.err
		}
		return assignResult(result, h.result)
	}
}

// Cancel is a no-op: the in-process engine does not track cancellable
// workflow goroutines.
func (h *handle) Cancel(context.Context) error { return nil }

// assignResult copies src into the value *dst points to, when the types are
// assignment-compatible; dst is typically a pointer the caller passed to
// Wait/ExecuteActivity to receive a typed result.
func assignResult(dst, src any) error {
	if dst == nil || src == nil {
		return nil
	}
	if d, ok := dst.(*any); ok {
		*d = src
		return nil
	}
	dv := reflect.ValueOf(dst)
	if dv.Kind() != reflect.Ptr || dv.IsNil() {
		return fmt.Errorf("inproc: result destination must be a non-nil pointer")
	}
	sv := reflect.ValueOf(src)
	if !sv.IsValid() {
		return nil
	}
	if sv.Type().AssignableTo(dv.Elem().Type()) {
		dv.Elem().Set(sv)
		return nil
	}
	if dv.Elem().Kind() == reflect.Interface && sv.Type().Implements(dv.Elem().Type()) {
		dv.Elem().Set(sv)
		return nil
	}
	return fmt.Errorf("inproc: cannot assign %T into %T", src, dst)
}
