package eval

import (
	"strings"

	"github.com/mandubian/ccos-sub004/rtfs/ir"
	"github.com/mandubian/ccos-sub004/rtfs/value"
)

// builtinNatives maps each name in the converter's builtins table to its
// runtime implementation. The set of names here must stay in sync with
// ir.builtins; SeedGlobals below skips, without any error, a global name
// this table lacks (top-level def/defn bindings are such names).
var builtinNatives = map[string]func([]value.Value) (value.Value, *value.Error){
	"+": func(args []value.Value) (value.Value, *value.Error) { return value.Arithmetic("+", args) },
	"-": func(args []value.Value) (value.Value, *value.Error) { return value.Arithmetic("-", args) },
	"*": func(args []value.Value) (value.Value, *value.Error) { return value.Arithmetic("*", args) },
	"/": func(args []value.Value) (value.Value, *value.Error) { return value.Arithmetic("/", args) },

	"=":  compareChain("="),
	"<":  compareChain("<"),
	">":  compareChain(">"),
	"<=": compareChain("<="),
	">=": compareChain(">="),
	"not": func(args []value.Value) (value.Value, *value.Error) {
		if len(args) != 1 {
			return value.Value{}, value.New(value.KindArity, "not expects 1 argument, got %d", len(args))
		}
		return value.Bool_(!args[0].Truthy()), nil
	},

	"int?":     predicate(value.Value.IsInt),
	"float?":   predicate(value.Value.IsFloat),
	"bool?":    predicate(value.Value.IsBool),
	"string?":  predicate(value.Value.IsString),
	"keyword?": predicate(value.Value.IsKeyword),
	"symbol?":  predicate(value.Value.IsSymbol),
	"nil?":     predicate(value.Value.IsNil),
	"vector?":  predicate(value.Value.IsVector),
	"list?":    predicate(value.Value.IsList),
	"map?":     predicate(value.Value.IsMap),
	"fn?":      predicate(value.Value.IsFunction),

	"assoc": func(args []value.Value) (value.Value, *value.Error) {
		if len(args) != 3 {
			return value.Value{}, value.New(value.KindArity, "assoc expects 3 arguments, got %d", len(args))
		}
		key, kerr := value.ToMapKey(args[1])
		if kerr != nil {
			return value.Value{}, kerr
		}
		return value.Assoc(args[0], key, args[2])
	},
	"dissoc": func(args []value.Value) (value.Value, *value.Error) {
		if len(args) != 2 {
			return value.Value{}, value.New(value.KindArity, "dissoc expects 2 arguments, got %d", len(args))
		}
		key, kerr := value.ToMapKey(args[1])
		if kerr != nil {
			return value.Value{}, kerr
		}
		return value.Dissoc(args[0], key)
	},
	"get": func(args []value.Value) (value.Value, *value.Error) {
		if len(args) != 2 && len(args) != 3 {
			return value.Value{}, value.New(value.KindArity, "get expects 2 or 3 arguments, got %d", len(args))
		}
		key, kerr := value.ToMapKey(args[1])
		if kerr != nil {
			return value.Value{}, kerr
		}
		dflt := value.Nil()
		if len(args) == 3 {
			dflt = args[2]
		}
		return value.Get(args[0], key, dflt), nil
	},
	"get-in": func(args []value.Value) (value.Value, *value.Error) {
		if len(args) != 2 && len(args) != 3 {
			return value.Value{}, value.New(value.KindArity, "get-in expects 2 or 3 arguments, got %d", len(args))
		}
		pathVal := args[1]
		if !pathVal.IsVector() {
			return value.Value{}, value.New(value.KindType, "get-in: path must be a vector")
		}
		count, _ := value.Count(pathVal)
		path := make([]value.MapKey, 0, count)
		for i := 0; i < count; i++ {
			elem, err := value.Nth(pathVal, i)
			if err != nil {
				return value.Value{}, err
			}
			key, kerr := value.ToMapKey(elem)
			if kerr != nil {
				return value.Value{}, kerr
			}
			path = append(path, key)
		}
		dflt := value.Nil()
		if len(args) == 3 {
			dflt = args[2]
		}
		return value.GetIn(args[0], path, dflt), nil
	},

	"conj": func(args []value.Value) (value.Value, *value.Error) {
		if len(args) < 1 {
			return value.Value{}, value.New(value.KindArity, "conj expects at least 1 argument")
		}
		acc := args[0]
		for _, item := range args[1:] {
			updated, err := value.Conj(acc, item)
			if err != nil {
				return value.Value{}, err
			}
			acc = updated
		}
		return acc, nil
	},
	"nth": func(args []value.Value) (value.Value, *value.Error) {
		if len(args) != 2 {
			return value.Value{}, value.New(value.KindArity, "nth expects 2 arguments, got %d", len(args))
		}
		if !args[1].IsInt() {
			return value.Value{}, value.New(value.KindType, "nth: index must be an int")
		}
		return value.Nth(args[0], int(args[1].AsInt()))
	},
	"first": func(args []value.Value) (value.Value, *value.Error) {
		if len(args) != 1 {
			return value.Value{}, value.New(value.KindArity, "first expects 1 argument, got %d", len(args))
		}
		return value.First(args[0])
	},
	"rest": func(args []value.Value) (value.Value, *value.Error) {
		if len(args) != 1 {
			return value.Value{}, value.New(value.KindArity, "rest expects 1 argument, got %d", len(args))
		}
		return value.Rest(args[0])
	},
	"count": func(args []value.Value) (value.Value, *value.Error) {
		if len(args) != 1 {
			return value.Value{}, value.New(value.KindArity, "count expects 1 argument, got %d", len(args))
		}
		n, err := value.Count(args[0])
		if err != nil {
			return value.Value{}, err
		}
		return value.Int(int64(n)), nil
	},

	"str": func(args []value.Value) (value.Value, *value.Error) {
		var b strings.Builder
		for _, a := range args {
			if a.IsString() {
				b.WriteString(a.AsString())
			} else {
				b.WriteString(value.Print(a))
			}
		}
		return value.String(b.String()), nil
	},
}

func predicate(test func(value.Value) bool) func([]value.Value) (value.Value, *value.Error) {
	return func(args []value.Value) (value.Value, *value.Error) {
		if len(args) != 1 {
			return value.Value{}, value.New(value.KindArity, "predicate expects 1 argument, got %d", len(args))
		}
		return value.Bool_(test(args[0])), nil
	}
}

// compareChain implements the variadic `(op a b c ...)` chained-comparison
// form shared by `= < > <= >=`: true iff every adjacent pair satisfies op.
func compareChain(op string) func([]value.Value) (value.Value, *value.Error) {
	return func(args []value.Value) (value.Value, *value.Error) {
		if len(args) < 2 {
			return value.Value{}, value.New(value.KindArity, "%s expects at least 2 arguments, got %d", op, len(args))
		}
		for i := 0; i < len(args)-1; i++ {
			a, b := args[i], args[i+1]
			if op == "=" {
				if !value.Equal(a, b) {
					return value.Bool_(false), nil
				}
				continue
			}
			cmp, err := value.Compare(a, b)
			if err != nil {
				return value.Value{}, err
			}
			ok := false
			switch op {
			case "<":
				ok = cmp < 0
			case ">":
				ok = cmp > 0
			case "<=":
				ok = cmp <= 0
			case ">=":
				ok = cmp >= 0
			}
			if !ok {
				return value.Bool_(false), nil
			}
		}
		return value.Bool_(true), nil
	}
}

// SeedGlobals populates env with a Native Function value for every binding
// the converter registered in its global scope, matching the converter's
// binding ids so VariableRef lookups resolve. Call this once per evaluator
// setup against the same Converter used to lower the program.
func SeedGlobals(env *Env, globals map[string]ir.BindingInfo) {
	for name, info := range globals {
		native, ok := builtinNatives[name]
		if !ok {
			continue
		}
		env.Define(info.ID, value.FunctionVal(&value.Function{
			Name:   name,
			Native: native,
		}))
	}
}
