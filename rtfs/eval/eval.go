package eval

import (
	"context"

	"github.com/mandubian/ccos-sub004/rtfs/ir"
	"github.com/mandubian/ccos-sub004/rtfs/value"
)

// Evaluator is a tree-walking interpreter over the lowered IR (4.D). It
// carries no mutable state of its own beyond what is passed in per call;
// concurrent evaluations must use separate Envs. A `parallel` form
// evaluates each of its bindings on its own goroutine.
type Evaluator struct {
	Host Host
}

// New constructs an Evaluator against the given Host collaborators.
func New(host Host) *Evaluator {
	return &Evaluator{Host: host}
}

// Eval evaluates one IR node in the given environment, returning its
// Value or a tagged error per the observable contract in 4.D.
func (ev *Evaluator) Eval(ctx context.Context, env *Env, node ir.Node) (value.Value, *value.Error) {
	if err := ctx.Err(); err != nil {
		return value.Value{}, value.New(value.KindCancelled, "evaluation cancelled").WithHint(err.Error())
	}
	switch n := node.(type) {
	case *ir.Literal:
		return n.Value, nil
	case *ir.VariableRef:
		v, ok := env.Lookup(n.BindingID)
		if !ok {
			return value.Value{}, value.New(value.KindUndefined, "undefined symbol: %s", n.Name).WithSpan(n.Span())
		}
		return v, nil
	case *ir.ResourceRef:
		v, ok := env.Lookup(n.BindingID)
		if !ok {
			return value.Value{}, value.New(value.KindUndefined, "undefined resource binding: %s", n.Name).WithSpan(n.Span())
		}
		return v, nil
	case *ir.QualifiedSymbolRef:
		return value.Value{}, value.New(value.KindUndefined, "qualified symbol %s/%s has no bound value in this environment", n.Module, n.Name).WithSpan(n.Span())
	case *ir.Quote:
		return n.Value, nil
	case *ir.Vector:
		return ev.evalVector(ctx, env, n)
	case *ir.Map:
		return ev.evalMap(ctx, env, n)
	case *ir.Apply:
		return ev.evalApply(ctx, env, n)
	case *ir.If:
		return ev.evalIf(ctx, env, n)
	case *ir.Let:
		return ev.evalLet(ctx, env, n)
	case *ir.Do:
		return ev.evalBody(ctx, env, n.Exprs)
	case *ir.Match:
		return ev.evalMatch(ctx, env, n)
	case *ir.TryCatch:
		return ev.evalTryCatch(ctx, env, n)
	case *ir.Parallel:
		return ev.evalParallel(ctx, env, n)
	case *ir.WithResource:
		return ev.evalWithResource(ctx, env, n)
	case *ir.LogStep:
		return ev.evalLogStep(ctx, env, n)
	case *ir.DiscoverAgents:
		return ev.evalDiscoverAgents(ctx, env, n)
	case *ir.TaskContextAccess:
		return ev.evalTaskContextAccess(ctx, env, n)
	case *ir.Call:
		return ev.evalCall(ctx, env, n)
	case *ir.Lambda:
		return value.FunctionVal(&value.Function{
			Arity:    len(n.Params),
			Variadic: n.Variadic,
			Node:     n,
			Env:      env,
		}), nil
	case *ir.VariableDef:
		v, err := ev.Eval(ctx, env, n.Expr)
		if err != nil {
			return value.Value{}, err
		}
		env.Define(n.Binding.BindingID, v)
		return v, nil
	case *ir.FunctionDef:
		fnVal, err := ev.Eval(ctx, env, n.Lambda)
		if err != nil {
			return value.Value{}, err
		}
		fnVal.AsFunction().Name = n.Binding.Name
		env.Define(n.Binding.BindingID, fnVal)
		return fnVal, nil
	case *ir.Module:
		return ev.evalBody(ctx, env, n.Forms)
	case *ir.Import:
		return value.Nil(), nil
	default:
		return value.Value{}, value.New(value.KindGeneric, "evaluator: unsupported IR node")
	}
}

func (ev *Evaluator) evalBody(ctx context.Context, env *Env, exprs []ir.Node) (value.Value, *value.Error) {
	result := value.Nil()
	for _, e := range exprs {
		v, err := ev.Eval(ctx, env, e)
		if err != nil {
			return value.Value{}, err
		}
		result = v
	}
	return result, nil
}

func (ev *Evaluator) evalVector(ctx context.Context, env *Env, n *ir.Vector) (value.Value, *value.Error) {
	items := make([]value.Value, 0, len(n.Items))
	for _, it := range n.Items {
		v, err := ev.Eval(ctx, env, it)
		if err != nil {
			return value.Value{}, err
		}
		items = append(items, v)
	}
	return value.VectorFrom(items), nil
}

func (ev *Evaluator) evalMap(ctx context.Context, env *Env, n *ir.Map) (value.Value, *value.Error) {
	m := value.EmptyMap()
	for _, e := range n.Entries {
		k, err := ev.Eval(ctx, env, e.Key)
		if err != nil {
			return value.Value{}, err
		}
		v, err := ev.Eval(ctx, env, e.Value)
		if err != nil {
			return value.Value{}, err
		}
		key, kerr := value.ToMapKey(k)
		if kerr != nil {
			return value.Value{}, kerr.WithSpan(e.Key.Span())
		}
		assoc, aerr := value.Assoc(m, key, v)
		if aerr != nil {
			return value.Value{}, aerr
		}
		m = assoc
	}
	return m, nil
}

func (ev *Evaluator) evalApply(ctx context.Context, env *Env, n *ir.Apply) (value.Value, *value.Error) {
	fnVal, err := ev.Eval(ctx, env, n.Fn)
	if err != nil {
		return value.Value{}, err
	}
	if !fnVal.IsFunction() {
		return value.Value{}, value.New(value.KindType, "cannot apply non-function value of type %s", fnVal.Tag()).WithSpan(n.Span())
	}
	args := make([]value.Value, 0, len(n.Args))
	for _, a := range n.Args {
		v, err := ev.Eval(ctx, env, a)
		if err != nil {
			return value.Value{}, err
		}
		args = append(args, v)
	}
	return ev.callFunction(ctx, fnVal.AsFunction(), args, n.Span())
}

func (ev *Evaluator) callFunction(ctx context.Context, fn *value.Function, args []value.Value, span *value.Span) (value.Value, *value.Error) {
	if fn.Native != nil {
		return fn.Native(args)
	}
	lambda, ok := fn.Node.(*ir.Lambda)
	if !ok {
		return value.Value{}, value.New(value.KindGeneric, "function value has no callable body")
	}
	if !fn.Variadic && len(args) != len(lambda.Params) {
		return value.Value{}, value.New(value.KindArity, "arity mismatch: expected %d arguments, got %d", len(lambda.Params), len(args)).WithSpan(span)
	}
	if fn.Variadic && len(args) < len(lambda.Params)-1 {
		return value.Value{}, value.New(value.KindArity, "arity mismatch: expected at least %d arguments, got %d", len(lambda.Params)-1, len(args)).WithSpan(span)
	}
	closureEnv, _ := fn.Env.(*Env)
	if closureEnv == nil {
		closureEnv = NewEnv()
	}
	callEnv := closureEnv.Child()
	fixedCount := len(lambda.Params)
	if fn.Variadic {
		fixedCount--
	}
	for i := 0; i < fixedCount; i++ {
		if err := ev.bindParam(callEnv, lambda.Params[i], args[i]); err != nil {
			return value.Value{}, err
		}
	}
	if fn.Variadic {
		rest := args[fixedCount:]
		if err := ev.bindParam(callEnv, lambda.Params[len(lambda.Params)-1], value.VectorFrom(append([]value.Value(nil), rest...))); err != nil {
			return value.Value{}, err
		}
	}
	return ev.evalBody(ctx, callEnv, lambda.Body)
}

func (ev *Evaluator) bindParam(env *Env, p *ir.Param, v value.Value) *value.Error {
	if p.Binding != nil {
		env.Define(p.Binding.BindingID, v)
		return nil
	}
	return ev.bindDestructure(env, p.Destructure, v)
}

func (ev *Evaluator) evalIf(ctx context.Context, env *Env, n *ir.If) (value.Value, *value.Error) {
	cond, err := ev.Eval(ctx, env, n.Cond)
	if err != nil {
		return value.Value{}, err
	}
	if cond.Truthy() {
		return ev.Eval(ctx, env, n.Then)
	}
	if n.Else == nil {
		return value.Nil(), nil
	}
	return ev.Eval(ctx, env, n.Else)
}

func (ev *Evaluator) evalLet(ctx context.Context, env *Env, n *ir.Let) (value.Value, *value.Error) {
	letEnv := env.Child()
	// Materialize pre-declared function-shaped bindings before any
	// initializer runs, so self- and mutual recursion inside their own
	// closures resolves through letEnv.
	for _, b := range n.Bindings {
		if b.IsPreDeclared {
			letEnv.Define(b.Binding.BindingID, value.Nil())
		}
	}
	for _, b := range n.Bindings {
		v, err := ev.Eval(ctx, letEnv, b.Expr)
		if err != nil {
			return value.Value{}, err
		}
		if b.Binding != nil {
			letEnv.Define(b.Binding.BindingID, v)
			continue
		}
		if err := ev.bindDestructure(letEnv, b.Destructure, v); err != nil {
			return value.Value{}, err
		}
	}
	return ev.evalBody(ctx, letEnv, n.Body)
}

func (ev *Evaluator) evalMatch(ctx context.Context, env *Env, n *ir.Match) (value.Value, *value.Error) {
	scrutinee, err := ev.Eval(ctx, env, n.Expr)
	if err != nil {
		return value.Value{}, err
	}
	for _, cl := range n.Clauses {
		clauseEnv := env.Child()
		if !ev.tryBindDestructure(clauseEnv, cl.Destructure, scrutinee) {
			continue
		}
		if cl.Guard != nil {
			guardVal, err := ev.Eval(ctx, clauseEnv, cl.Guard)
			if err != nil {
				return value.Value{}, err
			}
			if !guardVal.Truthy() {
				continue
			}
		}
		return ev.Eval(ctx, clauseEnv, cl.Body)
	}
	return value.Value{}, value.New(value.KindGeneric, "no match clause satisfied").WithSpan(n.Span())
}

func (ev *Evaluator) evalTryCatch(ctx context.Context, env *Env, n *ir.TryCatch) (value.Value, *value.Error) {
	runFinally := func() *value.Error {
		if len(n.Finally) == 0 {
			return nil
		}
		_, ferr := ev.evalBody(ctx, env.Child(), n.Finally)
		return ferr
	}

	result, err := ev.evalBody(ctx, env.Child(), n.Try)
	if err == nil {
		if ferr := runFinally(); ferr != nil {
			return value.Value{}, ferr
		}
		return result, nil
	}
	for _, cc := range n.Catches {
		catchEnv := env.Child()
		if !ev.tryBindCatch(catchEnv, cc.Destructure, err) {
			continue
		}
		v, cerr := ev.evalBody(ctx, catchEnv, cc.Body)
		if ferr := runFinally(); ferr != nil {
			return value.Value{}, ferr
		}
		return v, cerr
	}
	if ferr := runFinally(); ferr != nil {
		return value.Value{}, ferr
	}
	return value.Value{}, err
}

// tryBindCatch matches a catch clause's pattern against a propagating
// error: a keyword pattern matches the error's kind; a symbol pattern
// matches anything and binds the error as a Value; a wildcard matches
// anything without binding.
func (ev *Evaluator) tryBindCatch(env *Env, d *ir.Destructure, err *value.Error) bool {
	switch d.DestructureKind {
	case ir.DestructureKeyword:
		return d.Keyword == string(err.ErrKind)
	case ir.DestructureWildcard:
		return true
	case ir.DestructureSymbol:
		env.Define(d.Binding.BindingID, value.ErrorVal(err))
		return true
	default:
		return ev.tryBindDestructure(env, d, value.ErrorVal(err))
	}
}

func (ev *Evaluator) evalParallel(ctx context.Context, env *Env, n *ir.Parallel) (value.Value, *value.Error) {
	type outcome struct {
		v   value.Value
		err *value.Error
	}
	results := make([]outcome, len(n.Bindings))
	done := make(chan int, len(n.Bindings))
	for i, b := range n.Bindings {
		i, b := i, b
		go func() {
			v, err := ev.Eval(ctx, env.Child(), b.Expr)
			results[i] = outcome{v: v, err: err}
			done <- i
		}()
	}
	for range n.Bindings {
		<-done
	}
	values := make([]value.Value, len(results))
	for i, r := range results {
		if r.err != nil {
			return value.Value{}, r.err
		}
		values[i] = r.v
		env.Define(n.Bindings[i].Binding.BindingID, r.v)
	}
	return value.VectorFrom(values), nil
}

func (ev *Evaluator) evalWithResource(ctx context.Context, env *Env, n *ir.WithResource) (value.Value, *value.Error) {
	initVal, err := ev.Eval(ctx, env, n.Init)
	if err != nil {
		return value.Value{}, err
	}
	resEnv := env.Child()
	resEnv.Define(n.Binding.BindingID, initVal)

	release := func() *value.Error {
		if !initVal.IsResource() || ev.Host.Resources == nil {
			return nil
		}
		return ev.Host.Resources.Release(ctx, initVal.AsResource())
	}

	result, berr := ev.evalBody(ctx, resEnv, n.Body)
	if rerr := release(); rerr != nil && berr == nil {
		return value.Value{}, rerr
	}
	if berr != nil {
		return value.Value{}, berr
	}
	return result, nil
}

func (ev *Evaluator) evalLogStep(ctx context.Context, env *Env, n *ir.LogStep) (value.Value, *value.Error) {
	if ev.Host.Tracer != nil {
		ev.Host.Tracer.StepStart(n.Name)
	}
	v, err := ev.Eval(ctx, env, n.Expr)
	if ev.Host.Tracer != nil {
		ev.Host.Tracer.StepEnd(n.Name, err)
	}
	if err != nil {
		return value.Value{}, err
	}
	return v, nil
}

func (ev *Evaluator) evalDiscoverAgents(ctx context.Context, env *Env, n *ir.DiscoverAgents) (value.Value, *value.Error) {
	_, err := ev.Eval(ctx, env, n.Criteria)
	if err != nil {
		return value.Value{}, err
	}
	// Discovery is a suspension point brokered by the marketplace, not the
	// evaluator; a bare evaluator with no marketplace-backed Dispatcher
	// returns an empty result set rather than failing.
	return value.VectorFrom(nil), nil
}

func (ev *Evaluator) evalTaskContextAccess(ctx context.Context, env *Env, n *ir.TaskContextAccess) (value.Value, *value.Error) {
	if ev.Host.Steps == nil {
		return value.Value{}, value.New(value.KindGeneric, "step context is not available in this evaluator")
	}
	keyVal, err := ev.evalKeyLiteral(ctx, env, n.Key)
	if err != nil {
		return value.Value{}, err
	}
	if n.IsSet {
		v, err := ev.Eval(ctx, env, n.Value)
		if err != nil {
			return value.Value{}, err
		}
		ev.Host.Steps.Set(keyVal, v)
		return v, nil
	}
	v, ok := ev.Host.Steps.Get(keyVal)
	if !ok {
		return value.Nil(), nil
	}
	return v, nil
}

func (ev *Evaluator) evalKeyLiteral(ctx context.Context, env *Env, n ir.Node) (string, *value.Error) {
	v, err := ev.Eval(ctx, env, n)
	if err != nil {
		return "", err
	}
	if !v.IsString() {
		return "", value.New(value.KindType, "step-context key must evaluate to a string")
	}
	return v.AsString(), nil
}

func (ev *Evaluator) evalCall(ctx context.Context, env *Env, n *ir.Call) (value.Value, *value.Error) {
	args, err := ev.Eval(ctx, env, n.Args)
	if err != nil {
		return value.Value{}, err
	}
	if ev.Host.Dispatcher == nil {
		return value.Value{}, value.New(value.KindCapability, "no capability dispatcher configured for id %s", n.CapabilityID).WithSpan(n.Span())
	}
	result, derr := ev.Host.Dispatcher.Dispatch(ctx, n.CapabilityID, args)
	if ev.Host.Tracer != nil {
		ev.Host.Tracer.CapabilityCall(n.CapabilityID, args, result, derr == nil)
	}
	if derr != nil {
		return value.Value{}, derr
	}
	return result, nil
}
