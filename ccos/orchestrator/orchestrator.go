// Package orchestrator implements validate_and_execute_plan and
// execute_intent_graph (4.J): parses and lowers a plan body, checks every
// declared capability is admissible before running anything, evaluates the
// body through rtfs/eval with a Dispatcher brokering every capability call,
// and for a graph walks from a root intent, synthesizing and executing a
// plan per intent in dependency order, sharing one step-context across the
// whole run.
package orchestrator

import (
	"context"
	"fmt"
	"sort"

	"github.com/mandubian/ccos-sub004/ccos/causalchain"
	"github.com/mandubian/ccos-sub004/ccos/intentgraph"
	"github.com/mandubian/ccos-sub004/ccos/marketplace"
	"github.com/mandubian/ccos-sub004/ccos/plan"
	"github.com/mandubian/ccos-sub004/ccos/policy"
	"github.com/mandubian/ccos-sub004/ccos/resolution"
	"github.com/mandubian/ccos-sub004/ccos/stepcontext"
	"github.com/mandubian/ccos-sub004/rtfs/eval"
	"github.com/mandubian/ccos-sub004/rtfs/ir"
	"github.com/mandubian/ccos-sub004/rtfs/parser"
	"github.com/mandubian/ccos-sub004/rtfs/value"
)

// ExecutionResult is validate_and_execute_plan / execute_intent_graph's
// return shape: the plan's value on success, plus metadata describing the
// run (the causal-chain actions recorded, and per-intent sub-results for a
// graph run).
type ExecutionResult struct {
	Success  bool
	Value    value.Value
	Error    *value.Error
	Actions  []causalchain.Action
	Children map[string]ExecutionResult
}

// PlanProvider supplies the plan for an intent that doesn't yet have one,
// synthesizing it via the same Planner the resolution loop drives.
// *arbiter.Arbiter satisfies this, as does resolution.Loop's Planner.
type PlanProvider interface {
	IntentToPlan(ctx context.Context, intentID string) (plan.Plan, error)
}

// PlanStore persists the plan chosen for an intent across a graph run, so a
// parent intent with a previously-synthesized plan is not re-synthesized.
type PlanStore interface {
	Plan(ctx context.Context, intentID string) (plan.Plan, bool, error)
	SavePlan(ctx context.Context, p plan.Plan) error
}

// Orchestrator ties the marketplace, intent graph, and a capability
// dispatcher together to validate and run plans.
type Orchestrator struct {
	Market   *marketplace.Marketplace
	Graph    *intentgraph.Graph
	Plans    PlanStore
	Planner  PlanProvider
	Resolver *resolution.Loop

	// NewDispatcher is a hook lower-level tests override; by default it
	// returns a fresh Dispatcher over Market scoped to rtctx, with no
	// registered Local/MCP/MicroVM providers, for callers that only need
	// validation or exercise local-only plans.
	NewDispatcher func(rtctx policy.Context) *Dispatcher
}

// New returns an Orchestrator with the default Dispatcher factory.
func New(market *marketplace.Marketplace, graph *intentgraph.Graph, plans PlanStore, planner PlanProvider, resolver *resolution.Loop) *Orchestrator {
	o := &Orchestrator{Market: market, Graph: graph, Plans: plans, Planner: planner, Resolver: resolver}
	o.NewDispatcher = func(rtctx policy.Context) *Dispatcher { return NewDispatcher(market, rtctx) }
	return o
}

// lowerPlan parses and lowers a plan body to a single evaluable IR node.
func lowerPlan(body string) (ir.Node, *ir.Converter, *value.Error) {
	node, perr := parser.ParseOne(body)
	if perr != nil {
		return nil, nil, perr
	}
	conv := ir.NewConverter(nil)
	lowered, lerr := conv.ConvertOne(node)
	if lerr != nil {
		return nil, nil, lerr
	}
	return lowered, conv, nil
}

// declaredCapabilities returns the sorted set of capability ids a plan body
// calls, reusing the same AST walk the resolution loop uses to compute
// missing dependencies.
func declaredCapabilities(body string) ([]string, *value.Error) {
	node, perr := parser.ParseOne(body)
	if perr != nil {
		return nil, perr
	}
	ids := resolution.CollectCapabilityIDs(node)
	out := make([]string, 0, len(ids))
	for id := range ids {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

// Validate checks that every capability p.Body calls is registered in the
// marketplace and, under a Controlled runtime context, present in its
// allow-list. It does not evaluate anything.
func (o *Orchestrator) Validate(ctx context.Context, p plan.Plan, rtctx policy.Context) *value.Error {
	ids, perr := declaredCapabilities(p.Body)
	if perr != nil {
		return perr
	}
	for _, id := range ids {
		if rtctx.Mode == policy.ModeControlled && !rtctx.AllowList[id] {
			return value.New(value.KindSecurityViolation, "capability %q is not in the controlled context's allow-list", id)
		}
		manifest, err := o.Market.Get(ctx, id)
		if err != nil {
			return value.New(value.KindCapability, "lookup capability %q: %v", id, err)
		}
		if manifest == nil {
			return value.New(value.KindCapability, "plan %s calls unregistered capability %q", p.ID, id)
		}
	}
	return nil
}

// ValidateAndExecutePlan implements 4.J's validate_and_execute_plan: it
// validates the plan's declared capabilities, then evaluates its body,
// recording every step and capability call to a fresh causal-chain
// Recorder scoped to this plan.
func (o *Orchestrator) ValidateAndExecutePlan(ctx context.Context, p plan.Plan, rtctx policy.Context) ExecutionResult {
	if verr := o.Validate(ctx, p, rtctx); verr != nil {
		return ExecutionResult{Success: false, Error: verr}
	}
	chain := causalchain.New()
	return o.executeWithChain(ctx, p, rtctx, stepcontext.New(), chain)
}

func (o *Orchestrator) executeWithChain(ctx context.Context, p plan.Plan, rtctx policy.Context, steps *stepcontext.Context, chain *causalchain.Chain) ExecutionResult {
	lowered, conv, lerr := lowerPlan(p.Body)
	if lerr != nil {
		return ExecutionResult{Success: false, Error: lerr, Actions: chain.Actions()}
	}

	recorder := chain.ForPlan(p.IntentID, p.ID)
	dispatcher := o.NewDispatcher(rtctx)
	host := eval.Host{
		Dispatcher: dispatcher,
		Steps:      steps,
		Tracer:     recorder,
		Resources:  eval.NewNoopResourceManager(),
	}

	env := eval.NewEnv()
	eval.SeedGlobals(env, conv.GlobalBindings())
	result, eerr := eval.New(host).Eval(ctx, env, lowered)

	success := eerr == nil
	if eerr != nil {
		recorder.Error(eerr)
	}
	recorder.PlanEnd(success)

	return ExecutionResult{Success: success, Value: result, Error: eerr, Actions: chain.Actions()}
}

// planFor returns the plan to execute for an intent: its stored plan if one
// exists, else a freshly synthesized one (optionally passed through the
// resolution loop) which is then saved to the store.
func (o *Orchestrator) planFor(ctx context.Context, intentID string) (plan.Plan, error) {
	if o.Plans != nil {
		if p, ok, err := o.Plans.Plan(ctx, intentID); err != nil {
			return plan.Plan{}, err
		} else if ok {
			return p, nil
		}
	}
	if o.Planner == nil {
		return plan.Plan{}, fmt.Errorf("intent %s has no stored plan and no planner is configured", intentID)
	}
	p, err := o.Planner.IntentToPlan(ctx, intentID)
	if err != nil {
		return plan.Plan{}, fmt.Errorf("synthesize plan for intent %s: %w", intentID, err)
	}
	if o.Resolver != nil {
		resolved, _, rerr := o.Resolver.Run(ctx, intentID, p)
		if rerr != nil {
			return plan.Plan{}, fmt.Errorf("resolve capabilities for intent %s: %w", intentID, rerr)
		}
		if resolved != nil {
			p = *resolved
		}
	}
	if o.Plans != nil {
		if err := o.Plans.SavePlan(ctx, p); err != nil {
			return plan.Plan{}, err
		}
	}
	return p, nil
}

// ExecuteIntentGraph implements 4.J's execute_intent_graph: it resolves or
// synthesizes a plan for rootID, executes it, then recurses into every
// child intent related by IsSubgoalOf in topological order with respect to
// DependsOn edges among siblings, all sharing one step-context and runtime
// context for the whole run.
func (o *Orchestrator) ExecuteIntentGraph(ctx context.Context, rootID string, rtctx policy.Context) (ExecutionResult, error) {
	steps := stepcontext.New()
	chain := causalchain.New()
	return o.executeGraphNode(ctx, rootID, rtctx, steps, chain)
}

func (o *Orchestrator) executeGraphNode(ctx context.Context, intentID string, rtctx policy.Context, steps *stepcontext.Context, chain *causalchain.Chain) (ExecutionResult, error) {
	intent, err := o.Graph.Get(ctx, intentID)
	if err != nil {
		return ExecutionResult{}, fmt.Errorf("load intent %s: %w", intentID, err)
	}
	if intent == nil {
		return ExecutionResult{}, fmt.Errorf("intent %s not found", intentID)
	}

	p, err := o.planFor(ctx, intentID)
	if err != nil {
		return ExecutionResult{}, err
	}
	if verr := o.Validate(ctx, p, rtctx); verr != nil {
		return ExecutionResult{Success: false, Error: verr}, nil
	}
	res := o.executeWithChain(ctx, p, rtctx, steps, chain)

	children, err := o.Graph.GetChildIntents(ctx, intentID)
	if err != nil {
		return res, fmt.Errorf("list children of intent %s: %w", intentID, err)
	}
	if len(children) == 0 {
		return res, nil
	}
	childIDs := make([]string, len(children))
	for i, c := range children {
		childIDs[i] = c.ID
	}
	order, err := o.topologicalChildren(ctx, childIDs)
	if err != nil {
		return res, err
	}
	res.Children = make(map[string]ExecutionResult, len(order))
	for _, childID := range order {
		childRes, cerr := o.executeGraphNode(ctx, childID, rtctx, steps, chain)
		if cerr != nil {
			return res, cerr
		}
		res.Children[childID] = childRes
		if !childRes.Success {
			res.Success = false
		}
	}
	return res, nil
}

// topologicalChildren orders siblings by DependsOn edges among themselves;
// siblings with no dependency relation keep their original relative order,
// which callers with a concurrency-permitting runtime may instead dispatch
// in parallel (4.J allows, does not require, concurrent execution of
// independent siblings).
func (o *Orchestrator) topologicalChildren(ctx context.Context, childIDs []string) ([]string, error) {
	set := make(map[string]bool, len(childIDs))
	for _, id := range childIDs {
		set[id] = true
	}

	edges, err := o.Graph.ListEdges(ctx)
	if err != nil {
		return nil, fmt.Errorf("list edges: %w", err)
	}
	dependsOn := make(map[string][]string, len(childIDs))
	for _, e := range edges {
		if e.Type != intentgraph.EdgeDependsOn {
			continue
		}
		if set[e.From] && set[e.To] {
			dependsOn[e.From] = append(dependsOn[e.From], e.To)
		}
	}

	var order []string
	visited := make(map[string]int) // 0 unvisited, 1 in-progress, 2 done
	var visit func(id string) error
	visit = func(id string) error {
		switch visited[id] {
		case 2:
			return nil
		case 1:
			return fmt.Errorf("cyclic DependsOn relation among sibling intents involving %s", id)
		}
		visited[id] = 1
		for _, dep := range dependsOn[id] {
			if set[dep] {
				if err := visit(dep); err != nil {
					return err
				}
			}
		}
		visited[id] = 2
		order = append(order, id)
		return nil
	}
	for _, id := range childIDs {
		if err := visit(id); err != nil {
			return nil, err
		}
	}
	return order, nil
}
