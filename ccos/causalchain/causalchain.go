// Package causalchain implements the append-only action ledger the
// Orchestrator records every plan-execution event to: PlanStart, Step,
// CapabilityCall, PlanEnd, and Error actions, each carrying an opaque
// monotonic id and an optional parent id so causally-related actions (a
// capability call inside a step, an error inside a step) can be traced back
// to their enclosing action.
package causalchain

import (
	"strconv"
	"sync"
	"time"

	"github.com/mandubian/ccos-sub004/rtfs/eval"
	"github.com/mandubian/ccos-sub004/rtfs/value"
)

// ActionType is the closed set of causal-chain action kinds.
type ActionType string

const (
	ActionPlanStart      ActionType = "PlanStart"
	ActionStep           ActionType = "Step"
	ActionCapabilityCall ActionType = "CapabilityCall"
	ActionPlanEnd        ActionType = "PlanEnd"
	ActionError          ActionType = "Error"
)

// Action is a single immutable causal-chain entry.
type Action struct {
	ID             string
	ParentActionID string
	Type           ActionType
	FunctionName   string
	Arguments      value.Value
	Result         value.Value
	Success        bool
	Timestamp      time.Time
	IntentID       string
	PlanID         string
}

// Chain is the append-only, single-writer action log for one plan execution
// or one intent-graph run; the orchestrator starts a fresh Chain for each.
type Chain struct {
	mu      sync.Mutex
	nextSeq int64
	actions []Action
	now     func() time.Time
}

// New returns an empty Chain.
func New() *Chain {
	return &Chain{now: time.Now}
}

func (c *Chain) append(a Action) Action {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextSeq++
	a.ID = strconv.FormatInt(c.nextSeq, 10)
	a.Timestamp = c.now().UTC()
	c.actions = append(c.actions, a)
	return a
}

// Actions returns a snapshot of every action appended so far, oldest first.
func (c *Chain) Actions() []Action {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Action, len(c.actions))
	copy(out, c.actions)
	return out
}

// ForPlan returns a Recorder that appends a PlanStart action and scopes
// every subsequent Step/CapabilityCall/PlanEnd/Error action it records to
// this (intentID, planID) execution.
func (c *Chain) ForPlan(intentID, planID string) *Recorder {
	start := c.append(Action{Type: ActionPlanStart, IntentID: intentID, PlanID: planID})
	return &Recorder{chain: c, intentID: intentID, planID: planID, planStartID: start.ID}
}

// Recorder implements eval.Tracer, scoped to one plan execution. It tracks
// the currently open Step actions so CapabilityCall and nested Step actions
// chain their ParentActionID to the innermost enclosing step, falling back
// to the plan's PlanStart action when no step is open.
type Recorder struct {
	chain       *Chain
	intentID    string
	planID      string
	planStartID string

	mu    sync.Mutex
	stack []string
}

var _ eval.Tracer = (*Recorder)(nil)

func (r *Recorder) parent() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.stack) == 0 {
		return r.planStartID
	}
	return r.stack[len(r.stack)-1]
}

// StepStart implements eval.Tracer.
func (r *Recorder) StepStart(name string) {
	a := r.chain.append(Action{
		Type:           ActionStep,
		ParentActionID: r.parent(),
		FunctionName:   name,
		IntentID:       r.intentID,
		PlanID:         r.planID,
	})
	r.mu.Lock()
	r.stack = append(r.stack, a.ID)
	r.mu.Unlock()
}

// StepEnd implements eval.Tracer. A non-nil err additionally appends an
// Error action parented to the step that failed.
func (r *Recorder) StepEnd(name string, err *value.Error) {
	r.mu.Lock()
	var stepID string
	if len(r.stack) > 0 {
		stepID = r.stack[len(r.stack)-1]
		r.stack = r.stack[:len(r.stack)-1]
	}
	r.mu.Unlock()
	if err == nil {
		return
	}
	r.chain.append(Action{
		Type:           ActionError,
		ParentActionID: stepID,
		FunctionName:   name,
		Result:         value.ErrorVal(err),
		IntentID:       r.intentID,
		PlanID:         r.planID,
	})
}

// CapabilityCall implements eval.Tracer, recording one dispatched
// capability call with its arguments and result.
func (r *Recorder) CapabilityCall(capabilityID string, args, result value.Value, success bool) {
	r.chain.append(Action{
		Type:           ActionCapabilityCall,
		ParentActionID: r.parent(),
		FunctionName:   capabilityID,
		Arguments:      args,
		Result:         result,
		Success:        success,
		IntentID:       r.intentID,
		PlanID:         r.planID,
	})
}

// PlanEnd appends the terminal action for this plan execution.
func (r *Recorder) PlanEnd(success bool) {
	r.chain.append(Action{
		Type:           ActionPlanEnd,
		ParentActionID: r.planStartID,
		Success:        success,
		IntentID:       r.intentID,
		PlanID:         r.planID,
	})
}

// Error appends an orchestrator-boundary error (invalid plan, unregistered
// capability, permission denial) parented directly to PlanStart, per the
// rule that such errors are reported before any action beyond PlanStart is
// committed.
func (r *Recorder) Error(err *value.Error) {
	r.chain.append(Action{
		Type:           ActionError,
		ParentActionID: r.planStartID,
		Result:         value.ErrorVal(err),
		IntentID:       r.intentID,
		PlanID:         r.planID,
	})
}
