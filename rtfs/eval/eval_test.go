package eval

import (
	"context"
	"testing"

	"github.com/mandubian/ccos-sub004/rtfs/ir"
	"github.com/mandubian/ccos-sub004/rtfs/parser"
	"github.com/mandubian/ccos-sub004/rtfs/value"
)

func evalSrc(t *testing.T, src string, host Host) value.Value {
	t.Helper()
	node, perr := parser.ParseOne(src)
	if perr != nil {
		t.Fatalf("parse %q: %v", src, perr)
	}
	c := ir.NewConverter(nil)
	lowered, lerr := c.ConvertOne(node)
	if lerr != nil {
		t.Fatalf("lower %q: %v", src, lerr)
	}
	env := NewEnv()
	SeedGlobals(env, c.GlobalBindings())
	v, eerr := New(host).Eval(context.Background(), env, lowered)
	if eerr != nil {
		t.Fatalf("eval %q: %v", src, eerr)
	}
	return v
}

func evalSrcErr(t *testing.T, src string, host Host) *value.Error {
	t.Helper()
	node, perr := parser.ParseOne(src)
	if perr != nil {
		t.Fatalf("parse %q: %v", src, perr)
	}
	c := ir.NewConverter(nil)
	lowered, lerr := c.ConvertOne(node)
	if lerr != nil {
		return lerr
	}
	env := NewEnv()
	SeedGlobals(env, c.GlobalBindings())
	_, eerr := New(host).Eval(context.Background(), env, lowered)
	return eerr
}

func TestEvalArithmeticAndComparison(t *testing.T) {
	v := evalSrc(t, "(+ 1 2 3)", Host{})
	if !value.Equal(v, value.Int(6)) {
		t.Fatalf("got %s", value.Print(v))
	}
	v = evalSrc(t, "(< 1 2 3)", Host{})
	if !value.Equal(v, value.Bool_(true)) {
		t.Fatalf("got %s", value.Print(v))
	}
	v = evalSrc(t, "(= 1 1 2)", Host{})
	if !value.Equal(v, value.Bool_(false)) {
		t.Fatalf("got %s", value.Print(v))
	}
}

func TestEvalIfFalsey(t *testing.T) {
	if v := evalSrc(t, "(if false 1 2)", Host{}); v.AsInt() != 2 {
		t.Fatalf("got %s", value.Print(v))
	}
	if v := evalSrc(t, "(if nil 1 2)", Host{}); v.AsInt() != 2 {
		t.Fatalf("got %s", value.Print(v))
	}
	if v := evalSrc(t, "(if 0 1 2)", Host{}); v.AsInt() != 1 {
		t.Fatalf("zero must be truthy, got %s", value.Print(v))
	}
}

func TestEvalLetSequentialAndLast(t *testing.T) {
	v := evalSrc(t, "(let [x 1 y (+ x 1)] (+ x y) (* x y))", Host{})
	if v.AsInt() != 2 {
		t.Fatalf("expected last do-style body value 2, got %s", value.Print(v))
	}
}

func TestEvalSelfRecursiveLet(t *testing.T) {
	v := evalSrc(t, "(let [fact (fn [n] (if (= n 0) 1 (* n (fact (- n 1)))))] (fact 5))", Host{})
	if v.AsInt() != 120 {
		t.Fatalf("expected 120, got %s", value.Print(v))
	}
}

func TestEvalClosureCapture(t *testing.T) {
	v := evalSrc(t, "(let [adder (let [x 10] (fn [y] (+ x y)))] (adder 5))", Host{})
	if v.AsInt() != 15 {
		t.Fatalf("expected 15, got %s", value.Print(v))
	}
}

func TestEvalMatchFirstSatisfyingClause(t *testing.T) {
	v := evalSrc(t, `(match 2 1 "one" 2 "two" _ "other")`, Host{})
	if v.AsString() != "two" {
		t.Fatalf("got %s", value.Print(v))
	}
}

func TestEvalMatchNoClauseIsError(t *testing.T) {
	err := evalSrcErr(t, `(match 5 1 "one" 2 "two")`, Host{})
	if err == nil {
		t.Fatalf("expected match failure")
	}
}

func TestEvalTryCatchByKind(t *testing.T) {
	v := evalSrc(t, `(try (/ 1 0) (catch :generic "caught"))`, Host{})
	if v.AsString() != "caught" {
		t.Fatalf("got %s", value.Print(v))
	}
}

func TestEvalTryFinallyRunsOnSuccess(t *testing.T) {
	steps := NewInProcessStepContext()
	evalSrc(t, `(try (set! "a" 1) (finally (set! "b" 2)))`, Host{Steps: steps})
	if _, ok := steps.Get("b"); !ok {
		t.Fatalf("expected finally to run on success path")
	}
}

func TestEvalTryFinallyRunsOnError(t *testing.T) {
	steps := NewInProcessStepContext()
	evalSrcErr(t, `(try (/ 1 0) (finally (set! "ran" true)))`, Host{Steps: steps})
	if _, ok := steps.Get("ran"); !ok {
		t.Fatalf("expected finally to run on error path")
	}
}

func TestEvalParallelResultsInBindingOrder(t *testing.T) {
	v := evalSrc(t, `(parallel [a 1] [b 2] [c 3])`, Host{})
	if !v.IsVector() {
		t.Fatalf("expected vector result")
	}
	n, _ := value.Count(v)
	if n != 3 {
		t.Fatalf("expected 3 bindings, got %d", n)
	}
	if !value.Equal(v, value.Vector(value.Int(1), value.Int(2), value.Int(3))) {
		t.Fatalf("expected [1 2 3] in binding order, got %s", value.Print(v))
	}
}

type recordingResourceManager struct {
	released int
}

func (r *recordingResourceManager) Release(_ context.Context, _ value.Resource) *value.Error {
	r.released++
	return nil
}

func TestEvalWithResourceReleasesExactlyOnce(t *testing.T) {
	rm := &recordingResourceManager{}
	host := Host{Resources: rm, Dispatcher: dispatcherFunc(func(_ context.Context, id string, _ value.Value) (value.Value, *value.Error) {
		return value.ResourceVal("handle-1", "file"), nil
	})}
	v := evalSrc(t, `(with-resource [r (call :resource/open {})] r)`, host)
	if !v.IsResource() {
		t.Fatalf("expected body result to be the bound resource")
	}
	if rm.released != 1 {
		t.Fatalf("expected exactly one release, got %d", rm.released)
	}
}

func TestEvalWithResourceReleasesOnBodyError(t *testing.T) {
	rm := &recordingResourceManager{}
	host := Host{Resources: rm, Dispatcher: dispatcherFunc(func(_ context.Context, _ string, _ value.Value) (value.Value, *value.Error) {
		return value.ResourceVal("handle-2", "file"), nil
	})}
	evalSrcErr(t, `(with-resource [r (call :resource/open {})] (/ 1 0))`, host)
	if rm.released != 1 {
		t.Fatalf("expected release even when body errors, got %d", rm.released)
	}
}

type dispatcherFunc func(ctx context.Context, capabilityID string, args value.Value) (value.Value, *value.Error)

func (f dispatcherFunc) Dispatch(ctx context.Context, capabilityID string, args value.Value) (value.Value, *value.Error) {
	return f(ctx, capabilityID, args)
}

func TestEvalCallDispatchesToHost(t *testing.T) {
	host := Host{Dispatcher: dispatcherFunc(func(_ context.Context, id string, args value.Value) (value.Value, *value.Error) {
		if id != "demo/echo" {
			t.Fatalf("unexpected capability id %s", id)
		}
		return args, nil
	})}
	v := evalSrc(t, `(call :demo/echo {:x 1})`, host)
	if !v.IsMap() {
		t.Fatalf("expected map echoed back")
	}
}

func TestEvalCallWithoutDispatcherIsCapabilityError(t *testing.T) {
	err := evalSrcErr(t, `(call :demo/echo {})`, Host{})
	if err == nil || err.ErrKind != value.KindCapability {
		t.Fatalf("expected capability error, got %v", err)
	}
}

func TestEvalVectorDestructureLet(t *testing.T) {
	v := evalSrc(t, `(let [[a b] [1 2]] (+ a b))`, Host{})
	if v.AsInt() != 3 {
		t.Fatalf("got %s", value.Print(v))
	}
}

func TestEvalMapDestructureKeysLet(t *testing.T) {
	v := evalSrc(t, `(let [{:keys [a b]} {:a 1 :b 2}] (+ a b))`, Host{})
	if v.AsInt() != 3 {
		t.Fatalf("got %s", value.Print(v))
	}
}

func TestEvalUndefinedSymbolError(t *testing.T) {
	err := evalSrcErr(t, "undefined-name", Host{})
	if err == nil || err.ErrKind != value.KindUndefined {
		t.Fatalf("expected undefined-symbol error, got %v", err)
	}
}

func TestEvalLogStepTracesStartAndEnd(t *testing.T) {
	tr := &recordingTracer{}
	evalSrc(t, `(step "greet" (+ 1 2))`, Host{Tracer: tr})
	if len(tr.started) != 1 || tr.started[0] != "greet" {
		t.Fatalf("expected step start recorded, got %v", tr.started)
	}
	if len(tr.ended) != 1 || tr.ended[0] != "greet" {
		t.Fatalf("expected step end recorded, got %v", tr.ended)
	}
}

type recordingTracer struct {
	started []string
	ended   []string
}

func (r *recordingTracer) StepStart(name string) { r.started = append(r.started, name) }
func (r *recordingTracer) StepEnd(name string, _ *value.Error) {
	r.ended = append(r.ended, name)
}
func (r *recordingTracer) CapabilityCall(string, value.Value, value.Value, bool) {}
