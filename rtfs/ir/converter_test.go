package ir

import (
	"testing"

	"github.com/mandubian/ccos-sub004/rtfs/parser"
)

func lowerOne(t *testing.T, src string) Node {
	t.Helper()
	node, perr := parser.ParseOne(src)
	if perr != nil {
		t.Fatalf("parse %q: %v", src, perr)
	}
	c := NewConverter(nil)
	lowered, lerr := c.ConvertOne(node)
	if lerr != nil {
		t.Fatalf("lower %q: %v", src, lerr)
	}
	return lowered
}

func captureNames(l *Lambda) []string {
	names := make([]string, len(l.Captures))
	for i, c := range l.Captures {
		names[i] = c.Name
	}
	return names
}

func TestCaptureAnalysisSimpleClosure(t *testing.T) {
	// x is a let binding, y is the lambda's own parameter: only x should
	// appear in the lambda's captures.
	node := lowerOne(t, "(let [x 1] (fn [y] (+ x y)))")
	let, ok := node.(*Let)
	if !ok {
		t.Fatalf("expected Let, got %T", node)
	}
	lambda, ok := let.Body[0].(*Lambda)
	if !ok {
		t.Fatalf("expected Lambda body, got %T", let.Body[0])
	}
	names := captureNames(lambda)
	if len(names) != 1 || names[0] != "x" {
		t.Fatalf("expected captures [x], got %v", names)
	}
}

func TestCaptureAnalysisNoFreeVars(t *testing.T) {
	node := lowerOne(t, "(fn [x y] (+ x y))")
	lambda := node.(*Lambda)
	if len(lambda.Captures) != 0 {
		t.Fatalf("expected no captures, got %v", captureNames(lambda))
	}
}

func TestCaptureAnalysisNestedLambdaNotDescended(t *testing.T) {
	// Outer binds a; inner fn [b] references a (outer capture) and b (its
	// own parameter). The outer lambda's own captures must include a, via
	// the inner lambda's bubbled-up capture, without outer ever walking
	// into the inner body directly.
	node := lowerOne(t, "(let [a 1] (fn [] (fn [b] (+ a b))))")
	let := node.(*Let)
	outer, ok := let.Body[0].(*Lambda)
	if !ok {
		t.Fatalf("expected outer Lambda, got %T", let.Body[0])
	}
	outerNames := captureNames(outer)
	if len(outerNames) != 1 || outerNames[0] != "a" {
		t.Fatalf("expected outer captures [a], got %v", outerNames)
	}
	inner, ok := outer.Body[0].(*Lambda)
	if !ok {
		t.Fatalf("expected inner Lambda, got %T", outer.Body[0])
	}
	innerNames := captureNames(inner)
	if len(innerNames) != 1 || innerNames[0] != "a" {
		t.Fatalf("expected inner captures [a], got %v", innerNames)
	}
}

func TestCaptureAnalysisInnerCaptureOfOuterParam(t *testing.T) {
	// Outer's own parameter p is local to the outer lambda, so even though
	// the inner lambda captures it, it must NOT appear in the outer
	// lambda's own captures list.
	node := lowerOne(t, "(fn [p] (fn [q] (+ p q)))")
	outer := node.(*Lambda)
	if len(outer.Captures) != 0 {
		t.Fatalf("expected no captures on outer, got %v", captureNames(outer))
	}
	inner := outer.Body[0].(*Lambda)
	innerNames := captureNames(inner)
	if len(innerNames) != 1 || innerNames[0] != "p" {
		t.Fatalf("expected inner captures [p], got %v", innerNames)
	}
}

func TestLowerUndefinedSymbolError(t *testing.T) {
	node, perr := parser.ParseOne("(+ x 1)")
	if perr != nil {
		t.Fatalf("parse: %v", perr)
	}
	c := NewConverter(nil)
	_, lerr := c.ConvertOne(node)
	if lerr == nil {
		t.Fatalf("expected undefined-symbol error")
	}
}

func TestLowerSelfRecursiveLet(t *testing.T) {
	node := lowerOne(t, "(let [fact (fn [n] (if (= n 0) 1 (* n (fact (- n 1)))))] (fact 5))")
	let := node.(*Let)
	if !let.Bindings[0].IsPreDeclared {
		t.Fatalf("expected fact binding to be pre-declared for self recursion")
	}
}

func TestLowerMapDestructureRejectsKeysOverlap(t *testing.T) {
	_, perr := parser.ParseOne("(let [{:a x :keys [a]} m] a)")
	if perr == nil {
		t.Fatalf("expected parser to reject overlapping pattern before lowering")
	}
}

func TestLowerVectorDestructureLet(t *testing.T) {
	node := lowerOne(t, "(let [[a b] pair] (+ a b))")
	let := node.(*Let)
	if let.Bindings[0].Destructure == nil {
		t.Fatalf("expected destructure binding")
	}
	if let.Bindings[0].Destructure.DestructureKind != DestructureVector {
		t.Fatalf("expected vector destructure kind")
	}
}

func TestLowerSetBangLowersToTaskContextAccess(t *testing.T) {
	node := lowerOne(t, `(set! "k" 1)`)
	access, ok := node.(*TaskContextAccess)
	if !ok {
		t.Fatalf("expected TaskContextAccess, got %T", node)
	}
	if !access.IsSet {
		t.Fatalf("expected IsSet true")
	}
}

func TestLowerSingleArgGetLowersToTaskContextAccess(t *testing.T) {
	node := lowerOne(t, `(get "k")`)
	access, ok := node.(*TaskContextAccess)
	if !ok {
		t.Fatalf("expected TaskContextAccess, got %T", node)
	}
	if access.IsSet {
		t.Fatalf("expected IsSet false")
	}
}

func TestLowerTwoArgGetStaysBuiltinApply(t *testing.T) {
	node, perr := parser.ParseOne(`(get {:a 1} :a)`)
	if perr != nil {
		t.Fatalf("parse: %v", perr)
	}
	c := NewConverter(nil)
	lowered, lerr := c.ConvertOne(node)
	if lerr != nil {
		t.Fatalf("lower: %v", lerr)
	}
	if _, ok := lowered.(*Apply); !ok {
		t.Fatalf("expected ordinary Apply for 2-arg get, got %T", lowered)
	}
}
