package arbiter

import (
	"context"
	"testing"

	"github.com/mandubian/ccos-sub004/ccos/arbiter/model"
	"github.com/mandubian/ccos-sub004/ccos/intentgraph"
	memstore "github.com/mandubian/ccos-sub004/ccos/intentgraph/store/memory"
)

func newTestGraph() *intentgraph.Graph {
	return intentgraph.New(memstore.New())
}

func TestNaturalLanguageToIntent(t *testing.T) {
	stub := &model.StubClient{Default: model.Response{
		Text: `(intent "book-flight" :goal "book a flight to Paris" :constraints {:budget 500})`,
	}}
	a := New(stub, newTestGraph(), nil, nil)
	in, err := a.NaturalLanguageToIntent(context.Background(), "book me a flight to Paris")
	if err != nil {
		t.Fatalf("NaturalLanguageToIntent: %v", err)
	}
	if in.Name != "book-flight" {
		t.Fatalf("expected name book-flight, got %q", in.Name)
	}
	if in.Goal != "book a flight to Paris" {
		t.Fatalf("unexpected goal: %q", in.Goal)
	}
	if in.Generation.Method != "delegating-llm" {
		t.Fatalf("expected generation method delegating-llm, got %q", in.Generation.Method)
	}
}

func TestNaturalLanguageToIntentTolerantOfFenceAndProse(t *testing.T) {
	stub := &model.StubClient{Default: model.Response{
		Text: "Sure, here is the intent:\n```rtfs\n(intent \"x\" :goal \"g\")\n```\nHope that helps!",
	}}
	a := New(stub, newTestGraph(), nil, nil)
	in, err := a.NaturalLanguageToIntent(context.Background(), "g")
	if err != nil {
		t.Fatalf("NaturalLanguageToIntent: %v", err)
	}
	if in.Name != "x" || in.Goal != "g" {
		t.Fatalf("unexpected intent: %+v", in)
	}
}

func TestNaturalLanguageToIntentGraph(t *testing.T) {
	stub := &model.StubClient{Default: model.Response{
		Text: `(do (intent "root" :goal "plan a trip") (intent "book-flight" :goal "book flight") (edge {:from "book-flight" :to "root" :type :IsSubgoalOf}))`,
	}}
	g := newTestGraph()
	a := New(stub, g, nil, nil)
	rootID, err := a.NaturalLanguageToIntentGraph(context.Background(), "plan a trip")
	if err != nil {
		t.Fatalf("NaturalLanguageToIntentGraph: %v", err)
	}
	root, err := g.Get(context.Background(), rootID)
	if err != nil || root == nil {
		t.Fatalf("expected root intent to be stored: %v", err)
	}
	if root.Name != "root" {
		t.Fatalf("expected root intent named root, got %q", root.Name)
	}
	children, err := g.GetChildIntents(context.Background(), rootID)
	if err != nil {
		t.Fatalf("GetChildIntents: %v", err)
	}
	if len(children) != 1 || children[0].Name != "book-flight" {
		t.Fatalf("expected one child book-flight, got %+v", children)
	}
}

func TestIntentToPlanDirect(t *testing.T) {
	g := newTestGraph()
	a := New(&model.StubClient{Responses: []model.Response{
		{Text: `{"should_delegate": false, "reasoning": "simple task", "required_capabilities": [], "delegation_confidence": 0.1}`},
		{Text: `(do (call :noop []))`},
	}}, g, nil, nil)
	id, err := g.Create(context.Background(), intentgraph.Intent{Name: "x", Goal: "g"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	p, err := a.IntentToPlan(context.Background(), id)
	if err != nil {
		t.Fatalf("IntentToPlan: %v", err)
	}
	if p.Body != `(do (call :noop []))` {
		t.Fatalf("unexpected plan body: %q", p.Body)
	}
	if p.Metadata["delegated"] != "false" {
		t.Fatalf("expected non-delegated plan, got metadata %+v", p.Metadata)
	}
}

func TestExtractPlanBodyRefusesBareIntent(t *testing.T) {
	_, err := extractPlanBody(`(intent "x" :goal "g")`)
	if err == nil {
		t.Fatalf("expected refusal for bare intent block")
	}
}
