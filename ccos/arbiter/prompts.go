package arbiter

import (
	"fmt"
	"strings"

	"github.com/mandubian/ccos-sub004/ccos/intentgraph"
	"github.com/mandubian/ccos-sub004/ccos/marketplace"
)

func intentPrompt(goal string) string {
	return fmt.Sprintf(`Translate the following goal into a single RTFS intent form.
Emit ONLY a single (intent "name" :goal "…" :constraints {…} :preferences {…} :success-criteria …) form.
Do not emit any prose, explanation, or code fence — just the form.

Goal: %s`, goal)
}

func intentGraphPrompt(goal string) string {
	return fmt.Sprintf(`Decompose the following goal into an intent graph.
Emit ONLY a single (do (intent "name" :goal "…" …) (intent "name2" :goal "…" …) (edge {:from "name" :to "name2" :type :IsSubgoalOf}) …) block.
The first intent form is the root intent. Do not emit any prose, explanation, or code fence — just the block.

Goal: %s`, goal)
}

func delegationPrompt(in intentgraph.Intent) string {
	return fmt.Sprintf(`Decide whether the following intent should be delegated to an external capability-marketplace agent rather than executed directly.
Respond with ONLY a JSON object: {"should_delegate": bool, "reasoning": string, "required_capabilities": [string, …], "delegation_confidence": number between 0 and 1}.

Intent name: %s
Goal: %s`, in.Name, in.Goal)
}

func directPlanPrompt(in intentgraph.Intent) string {
	return fmt.Sprintf(`Synthesize an RTFS plan for the following intent.
Emit ONLY a single (do …) block implementing the plan. Do not emit any prose, explanation, or code fence — just the block.

Intent name: %s
Goal: %s`, in.Name, in.Goal)
}

func delegatedPlanPrompt(in intentgraph.Intent, decision delegationDecisionJSON, agents []marketplace.Manifest) string {
	var b strings.Builder
	fmt.Fprintf(&b, `Synthesize an RTFS plan for the following intent, delegating the work to one of the listed capability-marketplace agents via (call :capability-id args).
Emit ONLY a single (do …) block. Do not emit any prose, explanation, or code fence — just the block.

Intent name: %s
Goal: %s
Delegation reasoning: %s
Candidate agents (ranked, most preferred first):
`, in.Name, in.Goal, decision.Reasoning)
	for _, m := range agents {
		fmt.Fprintf(&b, "- %s (trust=%v cost=%v)\n", m.ID, m.TrustScore, m.Cost)
	}
	return b.String()
}
