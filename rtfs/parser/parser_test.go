package parser

import (
	"testing"

	"github.com/mandubian/ccos-sub004/rtfs/ast"
	"github.com/mandubian/ccos-sub004/rtfs/value"
)

func TestParseLiterals(t *testing.T) {
	cases := []struct {
		src  string
		want value.Value
	}{
		{"42", value.Int(42)},
		{"-7", value.Int(-7)},
		{"3.14", value.Float(3.14)},
		{`"hello"`, value.String("hello")},
		{":keyword", value.Keyword("keyword")},
		{"true", value.Bool_(true)},
		{"false", value.Bool_(false)},
		{"nil", value.Nil()},
	}
	for _, c := range cases {
		node, err := ParseOne(c.src)
		if err != nil {
			t.Fatalf("parse %q: %v", c.src, err)
		}
		lit, ok := node.(*ast.Literal)
		if !ok {
			t.Fatalf("parse %q: expected literal node, got %T", c.src, node)
		}
		if !value.Equal(lit.Value, c.want) {
			t.Fatalf("parse %q: got %s, want %s", c.src, value.Print(lit.Value), value.Print(c.want))
		}
	}
}

func TestParsePrintRoundTrip(t *testing.T) {
	srcs := []string{
		"42",
		`"a string"`,
		":kw",
		"[1 2 3]",
		`{:a 1 :b 2}`,
	}
	for _, src := range srcs {
		node, err := ParseOne(src)
		if err != nil {
			t.Fatalf("parse %q: %v", src, err)
		}
		lit, ok := node.(*ast.Literal)
		if !ok {
			continue
		}
		printed := value.Print(lit.Value)
		reparsed, err := ParseOne(printed)
		if err != nil {
			t.Fatalf("reparse %q (from %q): %v", printed, src, err)
		}
		lit2, ok := reparsed.(*ast.Literal)
		if !ok {
			t.Fatalf("reparse %q: expected literal, got %T", printed, reparsed)
		}
		if !value.Equal(lit.Value, lit2.Value) {
			t.Fatalf("round trip mismatch for %q: %s != %s", src, value.Print(lit.Value), value.Print(lit2.Value))
		}
	}
}

func TestParseSymbolNamespace(t *testing.T) {
	node, err := ParseOne("http/get")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	sym, ok := node.(*ast.SymbolRef)
	if !ok {
		t.Fatalf("expected symbol, got %T", node)
	}
	if sym.Namespace != "http" || sym.Name != "get" {
		t.Fatalf("got ns=%q name=%q", sym.Namespace, sym.Name)
	}
}

func TestParseLet(t *testing.T) {
	node, err := ParseOne("(let [x 1 y 2] (+ x y))")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	let, ok := node.(*ast.Let)
	if !ok {
		t.Fatalf("expected Let, got %T", node)
	}
	if len(let.Bindings) != 2 {
		t.Fatalf("expected 2 bindings, got %d", len(let.Bindings))
	}
	if let.Bindings[0].Pattern.Kind != ast.PatternSymbol || let.Bindings[0].Pattern.Name != "x" {
		t.Fatalf("unexpected first binding pattern: %+v", let.Bindings[0].Pattern)
	}
	if len(let.Body) != 1 {
		t.Fatalf("expected 1 body expr, got %d", len(let.Body))
	}
}

func TestParseLetVectorDestructure(t *testing.T) {
	node, err := ParseOne("(let [[a b & rest :as all] xs] a)")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	let := node.(*ast.Let)
	pat := let.Bindings[0].Pattern
	if pat.Kind != ast.PatternVector {
		t.Fatalf("expected vector pattern, got %v", pat.Kind)
	}
	if len(pat.Elements) != 2 {
		t.Fatalf("expected 2 fixed elements, got %d", len(pat.Elements))
	}
	if pat.Rest == nil || pat.Rest.Name != "rest" {
		t.Fatalf("expected rest binding named 'rest', got %+v", pat.Rest)
	}
	if pat.As != "all" {
		t.Fatalf("expected :as binding 'all', got %q", pat.As)
	}
}

func TestParseMapDestructureKeysOverlapRejected(t *testing.T) {
	_, err := ParseOne("(let [{:a x :keys [a]} m] a)")
	if err == nil {
		t.Fatalf("expected error for overlapping :keys and explicit field")
	}
	if err.ErrKind != value.KindParse {
		t.Fatalf("expected parse error kind, got %v", err.ErrKind)
	}
}

func TestParseFn(t *testing.T) {
	node, err := ParseOne("(fn [x & rest] (do x rest))")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	fn, ok := node.(*ast.Fn)
	if !ok {
		t.Fatalf("expected Fn, got %T", node)
	}
	if !fn.Variadic {
		t.Fatalf("expected variadic fn")
	}
	if len(fn.Params) != 2 {
		t.Fatalf("expected 2 params, got %d", len(fn.Params))
	}
}

func TestParseIf(t *testing.T) {
	node, err := ParseOne("(if true 1 2)")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	ifNode, ok := node.(*ast.If)
	if !ok {
		t.Fatalf("expected If, got %T", node)
	}
	if ifNode.Else == nil {
		t.Fatalf("expected else branch")
	}
}

func TestParseIfNoElse(t *testing.T) {
	node, err := ParseOne("(if true 1)")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	ifNode := node.(*ast.If)
	if ifNode.Else != nil {
		t.Fatalf("expected nil else branch")
	}
}

func TestParseMatch(t *testing.T) {
	node, err := ParseOne(`(match x 1 "one" _ "other")`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	m, ok := node.(*ast.Match)
	if !ok {
		t.Fatalf("expected Match, got %T", node)
	}
	if len(m.Clauses) != 2 {
		t.Fatalf("expected 2 clauses, got %d", len(m.Clauses))
	}
	if m.Clauses[1].Pattern.Kind != ast.PatternWildcard {
		t.Fatalf("expected wildcard pattern in second clause")
	}
}

func TestParseTryCatchFinally(t *testing.T) {
	node, err := ParseOne(`(try (risky) (catch :security-violation (handle)) (finally (cleanup)))`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	tc, ok := node.(*ast.TryCatch)
	if !ok {
		t.Fatalf("expected TryCatch, got %T", node)
	}
	if len(tc.Try) != 1 {
		t.Fatalf("expected 1 try expr, got %d", len(tc.Try))
	}
	if len(tc.Catches) != 1 {
		t.Fatalf("expected 1 catch clause, got %d", len(tc.Catches))
	}
	if tc.Catches[0].Pattern.Kind != ast.PatternKeyword || tc.Catches[0].Pattern.Name != "security-violation" {
		t.Fatalf("unexpected catch pattern: %+v", tc.Catches[0].Pattern)
	}
	if len(tc.Finally) != 1 {
		t.Fatalf("expected 1 finally expr, got %d", len(tc.Finally))
	}
}

func TestParseParallel(t *testing.T) {
	node, err := ParseOne(`(parallel [a (f1)] [b (f2)])`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	p, ok := node.(*ast.Parallel)
	if !ok {
		t.Fatalf("expected Parallel, got %T", node)
	}
	if len(p.Bindings) != 2 || p.Bindings[0].Name != "a" || p.Bindings[1].Name != "b" {
		t.Fatalf("unexpected bindings: %+v", p.Bindings)
	}
}

func TestParseWithResource(t *testing.T) {
	node, err := ParseOne(`(with-resource [conn (open-db)] (query conn))`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	w, ok := node.(*ast.WithResource)
	if !ok {
		t.Fatalf("expected WithResource, got %T", node)
	}
	if w.Name != "conn" {
		t.Fatalf("unexpected binding name %q", w.Name)
	}
}

func TestParseCall(t *testing.T) {
	node, err := ParseOne(`(call :weather.get {:city "paris"})`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	c, ok := node.(*ast.Call)
	if !ok {
		t.Fatalf("expected Call, got %T", node)
	}
	if c.CapabilityID != "weather.get" {
		t.Fatalf("unexpected capability id %q", c.CapabilityID)
	}
}

func TestParseIntentAndEdge(t *testing.T) {
	node, err := ParseOne(`(intent "book-trip" :goal "book a trip" :priority 1)`)
	if err != nil {
		t.Fatalf("parse intent: %v", err)
	}
	intent, ok := node.(*ast.Intent)
	if !ok {
		t.Fatalf("expected Intent, got %T", node)
	}
	if intent.Name != "book-trip" {
		t.Fatalf("unexpected intent name %q", intent.Name)
	}
	if len(intent.Options) != 2 {
		t.Fatalf("expected 2 option pairs, got %d", len(intent.Options))
	}

	edgeNode, err := ParseOne(`(edge {:from "i1" :to "i2" :type :depends-on})`)
	if err != nil {
		t.Fatalf("parse edge: %v", err)
	}
	if _, ok := edgeNode.(*ast.Edge); !ok {
		t.Fatalf("expected Edge, got %T", edgeNode)
	}
}

func TestParseModuleAndImport(t *testing.T) {
	node, err := ParseOne(`(module weather (import http/client :as http) (defn get [city] (call :http.get {:url city})))`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	mod, ok := node.(*ast.Module)
	if !ok {
		t.Fatalf("expected Module, got %T", node)
	}
	if mod.Name != "weather" {
		t.Fatalf("unexpected module name %q", mod.Name)
	}
	if len(mod.Forms) != 2 {
		t.Fatalf("expected 2 forms, got %d", len(mod.Forms))
	}
	imp, ok := mod.Forms[0].(*ast.Import)
	if !ok {
		t.Fatalf("expected first form to be Import, got %T", mod.Forms[0])
	}
	if imp.Path != "http/client" || imp.Alias != "http" {
		t.Fatalf("unexpected import: %+v", imp)
	}
}

func TestParseLogStep(t *testing.T) {
	node, err := ParseOne(`(log-step "fetch-weather" (call :weather.get {}))`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	step, ok := node.(*ast.LogStep)
	if !ok {
		t.Fatalf("expected LogStep, got %T", node)
	}
	if step.Name != "fetch-weather" {
		t.Fatalf("unexpected step name %q", step.Name)
	}
}

func TestParseUnterminatedListError(t *testing.T) {
	_, err := ParseOne("(defn f [x]")
	if err == nil {
		t.Fatalf("expected error for unterminated list")
	}
	if err.ErrKind != value.KindParse {
		t.Fatalf("expected parse error kind, got %v", err.ErrKind)
	}
}

func TestParseTrailingInputRejected(t *testing.T) {
	_, err := ParseOne("1 2")
	if err == nil {
		t.Fatalf("expected trailing-input error")
	}
}

func TestParseMultipleTopLevelForms(t *testing.T) {
	items, err := Parse("(def a 1) (def b 2)")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 top-level items, got %d", len(items))
	}
}
