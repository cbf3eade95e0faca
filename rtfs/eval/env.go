// Package eval implements the RTFS tree-walking evaluator: a single
// environment-stack interpreter over the lowered IR, plus the host
// interfaces (capability dispatch, step context, causal-chain tracing)
// that let an orchestrator observe and broker its execution without the
// evaluator importing orchestrator packages directly.
package eval

import "github.com/mandubian/ccos-sub004/rtfs/value"

// Env is one frame of the binding-id -> Value environment stack. Frames
// chain to a parent so closures can resolve captured bindings.
type Env struct {
	parent *Env
	vars   map[int64]value.Value
}

// NewEnv creates a root environment with no parent.
func NewEnv() *Env {
	return &Env{vars: map[int64]value.Value{}}
}

// Child creates a new environment frame chained to e.
func (e *Env) Child() *Env {
	return &Env{parent: e, vars: map[int64]value.Value{}}
}

// Define binds id to v in this frame.
func (e *Env) Define(id int64, v value.Value) {
	e.vars[id] = v
}

// Lookup resolves id by walking from this frame up to the root.
func (e *Env) Lookup(id int64) (value.Value, bool) {
	for env := e; env != nil; env = env.parent {
		if v, ok := env.vars[id]; ok {
			return v, true
		}
	}
	return value.Value{}, false
}
