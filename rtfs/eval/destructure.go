package eval

import (
	"github.com/mandubian/ccos-sub004/rtfs/ir"
	"github.com/mandubian/ccos-sub004/rtfs/value"
)

// bindDestructure binds v against d in env, returning an error if v's shape
// doesn't match d (used at let/param sites where a mismatch is a runtime
// error, not a failed match attempt).
func (ev *Evaluator) bindDestructure(env *Env, d *ir.Destructure, v value.Value) *value.Error {
	if ev.tryBindDestructure(env, d, v) {
		return nil
	}
	return value.New(value.KindType, "destructuring pattern did not match value of type %s", v.Tag()).WithSpan(d.Span())
}

// tryBindDestructure attempts to bind v against d, defining every bound
// name in env only if the overall pattern matches. It reports success so
// Match clauses can fall through to the next clause on failure instead of
// erroring.
func (ev *Evaluator) tryBindDestructure(env *Env, d *ir.Destructure, v value.Value) bool {
	switch d.DestructureKind {
	case ir.DestructureSymbol:
		env.Define(d.Binding.BindingID, v)
		return true
	case ir.DestructureWildcard:
		return true
	case ir.DestructureLiteral:
		lit, ok := d.Literal.(*ir.Literal)
		if !ok {
			return false
		}
		return value.Equal(lit.Value, v)
	case ir.DestructureKeyword:
		return v.IsKeyword() && v.AsString() == d.Keyword
	case ir.DestructureVector:
		return ev.tryBindVectorDestructure(env, d, v)
	case ir.DestructureMap:
		return ev.tryBindMapDestructure(env, d, v)
	default:
		return false
	}
}

func (ev *Evaluator) tryBindVectorDestructure(env *Env, d *ir.Destructure, v value.Value) bool {
	if !v.IsSeq() {
		return false
	}
	n, err := value.Count(v)
	if err != nil {
		return false
	}
	if d.Rest == nil && n != len(d.Elements) {
		return false
	}
	if d.Rest != nil && n < len(d.Elements) {
		return false
	}
	for i, elemPat := range d.Elements {
		item, err := value.Nth(v, i)
		if err != nil {
			return false
		}
		if !ev.tryBindDestructure(env, elemPat, item) {
			return false
		}
	}
	if d.Rest != nil {
		restItems := make([]value.Value, 0, n-len(d.Elements))
		for i := len(d.Elements); i < n; i++ {
			item, err := value.Nth(v, i)
			if err != nil {
				return false
			}
			restItems = append(restItems, item)
		}
		env.Define(d.Rest.BindingID, value.VectorFrom(restItems))
	}
	if d.As != nil {
		env.Define(d.As.BindingID, v)
	}
	return true
}

func (ev *Evaluator) tryBindMapDestructure(env *Env, d *ir.Destructure, v value.Value) bool {
	if !v.IsMap() {
		return false
	}
	for _, field := range d.Fields {
		key := value.KeywordKey(field.Key)
		item := value.Get(v, key, value.Nil())
		if !ev.tryBindDestructure(env, field.Pattern, item) {
			return false
		}
	}
	for _, keyBinding := range d.Keys {
		key := value.KeywordKey(keyBinding.Name)
		item := value.Get(v, key, value.Nil())
		env.Define(keyBinding.BindingID, item)
	}
	if d.As != nil {
		env.Define(d.As.BindingID, v)
	}
	return true
}
