package eval

import (
	"context"

	"github.com/mandubian/ccos-sub004/rtfs/value"
)

// Dispatcher routes `(call :capability-id args)` forms to the orchestrator,
// which owns admissibility checks, schema validation, provider dispatch,
// and causal-chain recording (4.J). The evaluator never calls a capability
// itself — it hands the request to whatever Dispatcher the Host provides.
type Dispatcher interface {
	Dispatch(ctx context.Context, capabilityID string, args value.Value) (value.Value, *value.Error)
}

// StepContext is the ambient, intent-graph-scoped key/value store that
// `(set! "k" v)` and `(get "k")` read and write, letting sibling plans in a
// graph pass values (4.D, 4.J). A single mapping is shared across every
// plan executing within one intent-graph run.
type StepContext interface {
	Set(key string, v value.Value)
	Get(key string) (value.Value, bool)
}

// Tracer observes evaluator lifecycle events for causal-chain recording.
// StepStart/StepEnd bracket a `log-step`/`step` form; CapabilityCall
// records one dispatched call with its result. Implementations append
// these as actions to whatever chain storage they own.
type Tracer interface {
	StepStart(name string)
	StepEnd(name string, err *value.Error)
	CapabilityCall(capabilityID string, args, result value.Value, success bool)
}

// ResourceManager releases resources acquired by `with-resource` exactly
// once per binding, on every exit path.
type ResourceManager interface {
	Release(ctx context.Context, res value.Resource) *value.Error
}

// Host aggregates everything the evaluator needs from its embedding
// orchestrator. Tests and standalone tools can construct one from the
// noop implementations below when they don't need brokered calls.
type Host struct {
	Dispatcher Dispatcher
	Steps      StepContext
	Tracer     Tracer
	Resources  ResourceManager
}

type noopStepContext struct {
	m map[string]value.Value
}

// NewInProcessStepContext returns a StepContext backed by a plain map, for
// single-process use (a distributed deployment would back this with a
// shared store instead).
func NewInProcessStepContext() StepContext {
	return &noopStepContext{m: map[string]value.Value{}}
}

func (s *noopStepContext) Set(key string, v value.Value) { s.m[key] = v }
func (s *noopStepContext) Get(key string) (value.Value, bool) {
	v, ok := s.m[key]
	return v, ok
}

type noopTracer struct{}

// NewNoopTracer returns a Tracer that discards every event, for evaluation
// contexts that don't need causal-chain recording (unit tests, REPL).
func NewNoopTracer() Tracer { return noopTracer{} }

func (noopTracer) StepStart(string)                             {}
func (noopTracer) StepEnd(string, *value.Error)                 {}
func (noopTracer) CapabilityCall(string, value.Value, value.Value, bool) {}

type noopResourceManager struct{}

// NewNoopResourceManager returns a ResourceManager whose Release is a no-op,
// for resources that don't require external cleanup in a given context.
func NewNoopResourceManager() ResourceManager { return noopResourceManager{} }

func (noopResourceManager) Release(context.Context, value.Resource) *value.Error { return nil }
