package intentgraph

import (
	"fmt"

	"github.com/mandubian/ccos-sub004/rtfs/ast"
	"github.com/mandubian/ccos-sub004/rtfs/value"
)

// IntentFromAST converts a parsed `(intent "name" :goal "…" :constraints {…}
// :preferences {…} :success-criteria …)` form into an Intent record. Option
// values are static literal data, so they are converted directly from the
// AST without running IR lowering.
func IntentFromAST(node *ast.Intent) (Intent, error) {
	in := Intent{Name: node.Name}
	for _, opt := range node.Options {
		keyLit, ok := opt.Key.(*ast.Literal)
		if !ok || !keyLit.Value.IsKeyword() {
			continue
		}
		switch keyLit.Value.AsString() {
		case "goal":
			in.Goal = literalStringIG(opt.Value)
		case "original-request":
			in.OriginalRequest = literalStringIG(opt.Value)
		case "constraints":
			m, err := astValueIG(opt.Value)
			if err != nil {
				return Intent{}, err
			}
			in.Constraints = mapToGoIG(m)
		case "preferences":
			m, err := astValueIG(opt.Value)
			if err != nil {
				return Intent{}, err
			}
			in.Preferences = mapToGoIG(m)
		case "success-criteria":
			v, err := astValueIG(opt.Value)
			if err != nil {
				return Intent{}, err
			}
			in.SuccessCriteria = &v
		case "parent-id":
			in.ParentID = literalStringIG(opt.Value)
		}
	}
	return in, nil
}

// EdgeFromAST converts a parsed `(edge {:from id :to id :type :kw})` form
// into an Edge.
func EdgeFromAST(node *ast.Edge) (Edge, error) {
	var e Edge
	for _, entry := range node.Map.Entries {
		keyLit, ok := entry.Key.(*ast.Literal)
		if !ok || !keyLit.Value.IsKeyword() {
			continue
		}
		switch keyLit.Value.AsString() {
		case "from":
			e.From = literalStringIG(entry.Value)
		case "to":
			e.To = literalStringIG(entry.Value)
		case "type":
			lit, ok := entry.Value.(*ast.Literal)
			if !ok || !lit.Value.IsKeyword() {
				return Edge{}, fmt.Errorf("edge :type must be a keyword")
			}
			e.Type = EdgeType(lit.Value.AsString())
		}
	}
	if e.From == "" || e.To == "" || e.Type == "" {
		return Edge{}, fmt.Errorf("edge missing required :from/:to/:type")
	}
	return e, nil
}

func literalStringIG(node ast.Node) string {
	lit, ok := node.(*ast.Literal)
	if !ok || !lit.Value.IsString() {
		return ""
	}
	return lit.Value.AsString()
}

func mapToGoIG(v value.Value) map[string]value.Value {
	if !v.IsMap() {
		return nil
	}
	out := make(map[string]value.Value)
	for _, k := range v.MapKeys() {
		val, ok := v.MapGet(k)
		if !ok {
			continue
		}
		out[k.String()] = val
	}
	return out
}

// astValueIG converts a literal-data AST node (Literal, Vector, ListExpr, or
// MapExpr) into a Value without running IR lowering, mirroring the
// marketplace package's identical need for static option-value conversion.
func astValueIG(node ast.Node) (value.Value, error) {
	switch n := node.(type) {
	case *ast.Literal:
		return n.Value, nil
	case *ast.Vector:
		items := make([]value.Value, len(n.Items))
		for i, item := range n.Items {
			v, err := astValueIG(item)
			if err != nil {
				return value.Value{}, err
			}
			items[i] = v
		}
		return value.VectorFrom(items), nil
	case *ast.ListExpr:
		items := make([]value.Value, len(n.Items))
		for i, item := range n.Items {
			v, err := astValueIG(item)
			if err != nil {
				return value.Value{}, err
			}
			items[i] = v
		}
		return value.VectorFrom(items), nil
	case *ast.MapExpr:
		m := value.EmptyMap()
		for _, entry := range n.Entries {
			k, err := astValueIG(entry.Key)
			if err != nil {
				return value.Value{}, err
			}
			mk, kerr := value.ToMapKey(k)
			if kerr != nil {
				return value.Value{}, fmt.Errorf("%s", kerr.Error())
			}
			v, err := astValueIG(entry.Value)
			if err != nil {
				return value.Value{}, err
			}
			assoc, aerr := value.Assoc(m, mk, v)
			if aerr != nil {
				return value.Value{}, fmt.Errorf("%s", aerr.Error())
			}
			m = assoc
		}
		return m, nil
	default:
		return value.Nil(), nil
	}
}
