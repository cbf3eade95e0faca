package arbiter

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mandubian/ccos-sub004/ccos/intentgraph"
	"github.com/mandubian/ccos-sub004/ccos/marketplace"
)

// delegationDecisionJSON is the oracle's strict JSON answer to "should this
// intent be delegated".
type delegationDecisionJSON struct {
	ShouldDelegate       bool     `json:"should_delegate"`
	Reasoning            string   `json:"reasoning"`
	RequiredCapabilities []string `json:"required_capabilities"`
	DelegationConfidence float64  `json:"delegation_confidence"`
}

func (d delegationDecisionJSON) shouldDelegate(tracker *DelegationTracker) bool {
	if !d.ShouldDelegate {
		return false
	}
	return d.DelegationConfidence > tracker.Threshold(delegationAgentKey(d.RequiredCapabilities))
}

// delegationAgentKey derives a stable tracker key from a capability set so
// feedback accumulates per required-capability combination rather than per
// individual call.
func delegationAgentKey(caps []string) string {
	return strings.Join(caps, ",")
}

// delegationDecision asks the oracle whether in should be delegated and
// parses the strict JSON answer.
func (a *Arbiter) delegationDecision(ctx context.Context, in intentgraph.Intent) (delegationDecisionJSON, error) {
	prompt := delegationPrompt(in)
	response, err := a.complete(ctx, prompt)
	if err != nil {
		a.record("delegation_decision_error", prompt, "", map[string]any{"error": err.Error()})
		return delegationDecisionJSON{}, err
	}
	raw, err := extractJSONObject(response)
	if err != nil {
		a.record("delegation_decision_error", prompt, response, map[string]any{"error": err.Error()})
		return delegationDecisionJSON{}, err
	}
	var decision delegationDecisionJSON
	if err := json.Unmarshal([]byte(raw), &decision); err != nil {
		return delegationDecisionJSON{}, fmt.Errorf("decode delegation decision: %w", err)
	}
	if decision.DelegationConfidence < 0 || decision.DelegationConfidence > 1 {
		return delegationDecisionJSON{}, fmt.Errorf("delegation_confidence %v out of [0,1] range", decision.DelegationConfidence)
	}
	a.record("delegation_decision", prompt, response, map[string]any{
		"should_delegate": decision.ShouldDelegate,
		"confidence":      decision.DelegationConfidence,
	})
	return decision, nil
}

// extractJSONObject scans for the first '{' through the last '}' in text
// and returns that substring, the tolerant JSON-extraction rule the
// delegation-analysis prompt relies on since the oracle may wrap its answer
// in prose despite instructions not to.
func extractJSONObject(text string) (string, error) {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end < 0 || end < start {
		return "", fmt.Errorf("no JSON object found in response")
	}
	return text[start : end+1], nil
}

// rankedAgents looks up marketplace capabilities matching required and
// ranks them by (trust-score desc, cost asc).
func (a *Arbiter) rankedAgents(ctx context.Context, required []string) ([]marketplace.Manifest, error) {
	if a.Market == nil {
		return nil, nil
	}
	return a.Market.FindForCapabilities(ctx, required)
}
