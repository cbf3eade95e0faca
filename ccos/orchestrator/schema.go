package orchestrator

import (
	"fmt"

	"github.com/mandubian/ccos-sub004/rtfs/value"
)

// validateAgainstSchema checks v against t, returning a KindType error
// describing the first mismatch found. A nil schema admits anything,
// matching manifests that declare no input/output schema.
func validateAgainstSchema(t *value.Type, v value.Value) *value.Error {
	if t == nil {
		return nil
	}
	switch t.Kind {
	case value.TypeAny:
		return nil
	case value.TypeNever:
		return value.New(value.KindType, "value %s is not admissible under type never", value.Print(v))
	case value.TypePrimitive:
		return validatePrimitive(t.Primitive, v)
	case value.TypeOptional:
		if v.IsNil() {
			return nil
		}
		return validateAgainstSchema(t.Elem, v)
	case value.TypeVectorOf:
		if !v.IsSeq() {
			return value.New(value.KindType, "expected vector, got %s", v.Tag())
		}
		for i, item := range v.Seq() {
			if err := validateAgainstSchema(t.Elem, item); err != nil {
				return err.WithHint(fmt.Sprintf("at index %d", i))
			}
		}
		return nil
	case value.TypeTuple:
		if !v.IsSeq() {
			return value.New(value.KindType, "expected tuple, got %s", v.Tag())
		}
		items := v.Seq()
		if len(items) != len(t.Items) {
			return value.New(value.KindArity, "tuple expects %d elements, got %d", len(t.Items), len(items))
		}
		for i, item := range items {
			if err := validateAgainstSchema(t.Items[i], item); err != nil {
				return err.WithHint(fmt.Sprintf("at index %d", i))
			}
		}
		return nil
	case value.TypeUnion:
		for _, alt := range t.Items {
			if validateAgainstSchema(alt, v) == nil {
				return nil
			}
		}
		return value.New(value.KindType, "value %s matches none of the union's %d alternatives", value.Print(v), len(t.Items))
	case value.TypeMapOf:
		if !v.IsMap() {
			return value.New(value.KindType, "expected map, got %s", v.Tag())
		}
		for _, f := range t.Fields {
			fv, ok := v.MapGet(value.KeywordKey(f.Key))
			if !ok {
				if f.Optional {
					continue
				}
				return value.New(value.KindType, "missing required field %q", f.Key)
			}
			if err := validateAgainstSchema(f.Type, fv); err != nil {
				return err.WithHint(fmt.Sprintf("at field %q", f.Key))
			}
		}
		if t.Wildcard != nil {
			known := make(map[string]bool, len(t.Fields))
			for _, f := range t.Fields {
				known[f.Key] = true
			}
			for _, k := range v.MapKeys() {
				if known[k.String()] {
					continue
				}
				fv, _ := v.MapGet(k)
				if err := validateAgainstSchema(t.Wildcard, fv); err != nil {
					return err.WithHint(fmt.Sprintf("at field %q", k.String()))
				}
			}
		}
		return nil
	case value.TypeFunction:
		if !v.IsFunction() {
			return value.New(value.KindType, "expected function, got %s", v.Tag())
		}
		return nil
	case value.TypeAlias:
		// Aliases resolve to application-defined schemas the orchestrator
		// does not track; admit rather than reject.
		return nil
	default:
		return nil
	}
}

func validatePrimitive(p value.Primitive, v value.Value) *value.Error {
	var ok bool
	switch p {
	case value.PrimInt:
		ok = v.IsInt()
	case value.PrimFloat:
		ok = v.IsNumber()
	case value.PrimBool:
		ok = v.IsBool()
	case value.PrimString:
		ok = v.IsString()
	case value.PrimKeyword:
		ok = v.IsKeyword()
	case value.PrimSymbol:
		ok = v.IsSymbol()
	case value.PrimNil:
		ok = v.IsNil()
	default:
		ok = true
	}
	if !ok {
		return value.New(value.KindType, "expected %s, got %s", p, v.Tag())
	}
	return nil
}
