// Package stepcontext provides a concurrency-safe eval.StepContext scoped
// to one intent-graph execution. Unlike rtfs/eval's bare in-process map
// (meant for single-threaded evaluation such as tests or a REPL), sibling
// plans within a graph may execute concurrently when the runtime context
// permits (spec.md §4.J), so Set/Get must be safe for concurrent use by
// every plan sharing one graph run.
package stepcontext

import (
	"sync"

	"github.com/mandubian/ccos-sub004/rtfs/eval"
	"github.com/mandubian/ccos-sub004/rtfs/value"
)

// Context is a mutex-guarded key/value store shared by every plan executed
// as part of one intent-graph run.
type Context struct {
	mu sync.RWMutex
	m  map[string]value.Value
}

var _ eval.StepContext = (*Context)(nil)

// New returns an empty Context, scoped to a single graph execution. Callers
// orchestrating nested sub-graphs (a plan that itself triggers
// execute_intent_graph for a child) should construct a fresh Context for
// the nested run rather than reuse the parent's, so values published within
// one graph never leak into an unrelated one.
func New() *Context {
	return &Context{m: make(map[string]value.Value)}
}

func (c *Context) Set(key string, v value.Value) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[key] = v
}

func (c *Context) Get(key string) (value.Value, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.m[key]
	return v, ok
}
