// Package arbiter turns a natural-language goal into intents, intent
// graphs, and RTFS plans by prompting an LLM oracle and parsing its output,
// with optional delegation to a capability-marketplace agent when the
// oracle judges delegation worthwhile.
package arbiter

import (
	"context"
	"fmt"
	"time"

	"github.com/mandubian/ccos-sub004/ccos/arbiter/model"
	"github.com/mandubian/ccos-sub004/ccos/intentgraph"
	"github.com/mandubian/ccos-sub004/ccos/marketplace"
	"github.com/mandubian/ccos-sub004/ccos/plan"
	"github.com/mandubian/ccos-sub004/rtfs/ast"
	"github.com/mandubian/ccos-sub004/rtfs/parser"
)

// Version identifies this Arbiter implementation in Intent.Generation
// records.
const Version = "ccos-arbiter/1"

// Arbiter is the LLM-facing synthesis component: it prompts Provider for
// RTFS text and converts the result into intents, intent graphs, and plans.
type Arbiter struct {
	Provider   model.Client
	Graph      *intentgraph.Graph
	Market     *marketplace.Marketplace
	Audit      *AuditLog
	Delegation *DelegationTracker
	// ProviderName labels audit records; defaults to "arbiter" when empty.
	ProviderName string
	now          func() time.Time
}

// New constructs an Arbiter. graph and market may be nil for callers that
// only need NaturalLanguageToIntent.
func New(provider model.Client, graph *intentgraph.Graph, market *marketplace.Marketplace, audit *AuditLog) *Arbiter {
	return &Arbiter{
		Provider:   provider,
		Graph:      graph,
		Market:     market,
		Audit:      audit,
		Delegation: NewDelegationTracker(),
		now:        time.Now,
	}
}

func (a *Arbiter) providerName() string {
	if a.ProviderName != "" {
		return a.ProviderName
	}
	return "arbiter"
}

// complete issues a single-turn completion request and returns its text.
func (a *Arbiter) complete(ctx context.Context, prompt string) (string, error) {
	resp, err := a.Provider.Complete(ctx, model.Request{
		Messages: []model.Message{{Role: model.ConversationRoleUser, Text: prompt}},
	})
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

func (a *Arbiter) record(event, prompt, response string, fields map[string]any) {
	if a.Audit == nil {
		return
	}
	_ = a.Audit.Append(event, a.providerName(), prompt, response, fields)
}

// NaturalLanguageToIntent prompts the oracle for a single `(intent …)`
// form describing goal and converts it into an Intent record tagged with
// generation method "delegating-llm". It does not persist the intent;
// callers that want it in the graph call Graph.Create with the result.
func (a *Arbiter) NaturalLanguageToIntent(ctx context.Context, goal string) (intentgraph.Intent, error) {
	prompt := intentPrompt(goal)
	response, err := a.complete(ctx, prompt)
	if err != nil {
		a.record("nl_to_intent_error", prompt, "", map[string]any{"error": err.Error()})
		return intentgraph.Intent{}, err
	}
	text := canonicalizeIntentForm(sanitizeRTFS(response))
	block, err := extractBlock(text, "intent")
	if err != nil {
		a.record("nl_to_intent_error", prompt, response, map[string]any{"error": err.Error()})
		return intentgraph.Intent{}, err
	}
	node, perr := parser.ParseOne(block)
	if perr != nil {
		a.record("nl_to_intent_error", prompt, response, map[string]any{"error": perr.Error()})
		return intentgraph.Intent{}, fmt.Errorf("parse intent block: %s", perr.Error())
	}
	intentNode, ok := node.(*ast.Intent)
	if !ok {
		return intentgraph.Intent{}, fmt.Errorf("extracted block is not an (intent ...) form")
	}
	in, err := intentgraph.IntentFromAST(intentNode)
	if err != nil {
		return intentgraph.Intent{}, err
	}
	if in.OriginalRequest == "" {
		in.OriginalRequest = goal
	}
	in.Generation = intentgraph.GenerationMetadata{
		ArbiterVersion: Version,
		GeneratedAt:    a.now().UTC(),
		ReasoningTrace: response,
		Method:         "delegating-llm",
	}
	a.record("nl_to_intent", prompt, response, map[string]any{"intent_name": in.Name})
	return in, nil
}

// NaturalLanguageToIntentGraph prompts the oracle for a single
// `(do (intent …) (intent …) (edge {…}) …)` block, parses it, creates every
// intent and edge in Graph, and returns the root intent's id (the first
// intent form's assigned id).
func (a *Arbiter) NaturalLanguageToIntentGraph(ctx context.Context, goal string) (string, error) {
	if a.Graph == nil {
		return "", fmt.Errorf("arbiter: intent graph not configured")
	}
	prompt := intentGraphPrompt(goal)
	response, err := a.complete(ctx, prompt)
	if err != nil {
		a.record("nl_to_intent_graph_error", prompt, "", map[string]any{"error": err.Error()})
		return "", err
	}
	text := canonicalizeIntentForm(sanitizeRTFS(response))
	block, err := extractBlock(text, "do")
	if err != nil {
		a.record("nl_to_intent_graph_error", prompt, response, map[string]any{"error": err.Error()})
		return "", err
	}
	node, perr := parser.ParseOne(block)
	if perr != nil {
		return "", fmt.Errorf("parse intent graph block: %s", perr.Error())
	}
	doNode, ok := node.(*ast.Do)
	if !ok {
		return "", fmt.Errorf("extracted block is not a (do ...) form")
	}

	var rootID string
	nameToID := make(map[string]string)
	var edges []*ast.Edge
	for _, expr := range doNode.Exprs {
		switch n := expr.(type) {
		case *ast.Intent:
			in, err := intentgraph.IntentFromAST(n)
			if err != nil {
				return "", err
			}
			in.Generation = intentgraph.GenerationMetadata{
				ArbiterVersion: Version,
				GeneratedAt:    a.now().UTC(),
				Method:         "delegating-llm",
			}
			if in.OriginalRequest == "" && rootID == "" {
				in.OriginalRequest = goal
			}
			id, err := a.Graph.Create(ctx, in)
			if err != nil {
				return "", err
			}
			nameToID[n.Name] = id
			if rootID == "" {
				rootID = id
			}
		case *ast.Edge:
			edges = append(edges, n)
		}
	}
	for _, en := range edges {
		e, err := intentgraph.EdgeFromAST(en)
		if err != nil {
			return "", err
		}
		from, to := e.From, e.To
		if id, ok := nameToID[from]; ok {
			from = id
		}
		if id, ok := nameToID[to]; ok {
			to = id
		}
		if err := a.Graph.AddEdge(ctx, from, to, e.Type); err != nil {
			return "", err
		}
	}
	a.record("nl_to_intent_graph", prompt, response, map[string]any{"root_id": rootID})
	return rootID, nil
}

// IntentToPlan synthesizes an RTFS plan for the intent with the given id,
// first asking the oracle whether the intent should be delegated to a
// marketplace agent and, if the delegation confidence clears the adaptive
// per-agent threshold, prompting for a plan that calls through the chosen
// agent's capability. Otherwise it prompts for a direct plan.
func (a *Arbiter) IntentToPlan(ctx context.Context, intentID string) (plan.Plan, error) {
	if a.Graph == nil {
		return plan.Plan{}, fmt.Errorf("arbiter: intent graph not configured")
	}
	in, err := a.Graph.Get(ctx, intentID)
	if err != nil {
		return plan.Plan{}, err
	}
	if in == nil {
		return plan.Plan{}, fmt.Errorf("intent %q not found", intentID)
	}

	decision, err := a.delegationDecision(ctx, *in)
	if err != nil {
		return plan.Plan{}, err
	}

	var prompt string
	metadata := map[string]string{"intent_id": intentID}
	if decision.shouldDelegate(a.Delegation) {
		agents, rerr := a.rankedAgents(ctx, decision.RequiredCapabilities)
		if rerr != nil {
			return plan.Plan{}, rerr
		}
		prompt = delegatedPlanPrompt(*in, decision, agents)
		metadata["delegated"] = "true"
	} else {
		prompt = directPlanPrompt(*in)
		metadata["delegated"] = "false"
	}

	response, err := a.complete(ctx, prompt)
	if err != nil {
		a.record("plan_synthesis_error", prompt, "", map[string]any{"error": err.Error()})
		return plan.Plan{}, err
	}
	body, err := extractPlanBody(response)
	if err != nil {
		a.record("plan_synthesis_error", prompt, response, map[string]any{"error": err.Error()})
		return plan.Plan{}, err
	}
	a.record("plan_synthesis", prompt, response, map[string]any{"intent_id": intentID})
	return plan.Plan{IntentID: intentID, Body: body, Metadata: metadata}, nil
}

// extractPlanBody extracts the (do …) block from response. It refuses a
// response whose only extractable block is an (intent …) form, and one that
// holds no (do …) block at all; a bare (intent …) block is never wrapped in
// (do …).
func extractPlanBody(response string) (string, error) {
	text := sanitizeRTFS(response)
	if block, err := extractBlock(text, "do"); err == nil {
		return block, nil
	}
	if _, err := extractBlock(text, "intent"); err == nil {
		return "", fmt.Errorf("oracle returned an (intent ...) block where a plan was requested; refusing")
	}
	return "", fmt.Errorf("no (do ...) plan block found in response")
}
