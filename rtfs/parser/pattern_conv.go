package parser

import (
	"github.com/mandubian/ccos-sub004/rtfs/ast"
	"github.com/mandubian/ccos-sub004/rtfs/value"
)

// toPattern converts a parsed destructuring form (symbol, wildcard `_`,
// vector, or map) into a Pattern for use in let bindings and fn/defn
// parameter lists. Literal and keyword patterns are only meaningful in
// match/catch clauses and are rejected here.
func toPattern(n ast.Node) (ast.Pattern, *value.Error) {
	switch node := n.(type) {
	case *ast.SymbolRef:
		if node.Namespace == "" && node.Name == "_" {
			return ast.WildcardPattern(), nil
		}
		if node.Namespace != "" {
			return ast.Pattern{}, value.New(value.KindParse, "binding pattern cannot be namespaced: %s/%s", node.Namespace, node.Name).WithSpan(node.Span())
		}
		return ast.SymbolPattern(node.Name), nil
	case *ast.Vector:
		return toVectorPattern(node)
	case *ast.MapExpr:
		return toMapPattern(node)
	default:
		return ast.Pattern{}, value.New(value.KindParse, "invalid destructuring pattern").WithSpan(n.Span())
	}
}

// toMatchPattern converts a parsed form into a Pattern usable in match or
// catch clauses, additionally accepting literals (including the error-kind
// keyword used by catch) and the `_` wildcard.
func toMatchPattern(n ast.Node) (ast.Pattern, *value.Error) {
	if lit, ok := n.(*ast.Literal); ok {
		if lit.Value.IsKeyword() {
			return ast.KeywordPattern(lit.Value.AsString()), nil
		}
		return ast.LiteralPattern(lit), nil
	}
	return toPattern(n)
}

func toVectorPattern(v *ast.Vector) (ast.Pattern, *value.Error) {
	pat := ast.Pattern{Kind: ast.PatternVector}
	i := 0
	for i < len(v.Items) {
		item := v.Items[i]
		if sym, ok := item.(*ast.SymbolRef); ok && sym.Namespace == "" {
			switch sym.Name {
			case "&":
				if i+1 >= len(v.Items) {
					return ast.Pattern{}, value.New(value.KindParse, "'&' must be followed by a binding").WithSpan(sym.Span())
				}
				restPat, err := toPattern(v.Items[i+1])
				if err != nil {
					return ast.Pattern{}, err
				}
				pat.Rest = &restPat
				i += 2
				continue
			}
		}
		if kw, ok := item.(*ast.Literal); ok && kw.Value.IsKeyword() && kw.Value.AsString() == "as" {
			if i+1 >= len(v.Items) {
				return ast.Pattern{}, value.New(value.KindParse, "':as' must be followed by a binding name").WithSpan(kw.Span())
			}
			nameSym, ok := v.Items[i+1].(*ast.SymbolRef)
			if !ok {
				return ast.Pattern{}, value.New(value.KindParse, "':as' binding must be a symbol").WithSpan(v.Items[i+1].Span())
			}
			pat.As = nameSym.Name
			i += 2
			continue
		}
		elemPat, err := toPattern(item)
		if err != nil {
			return ast.Pattern{}, err
		}
		pat.Elements = append(pat.Elements, elemPat)
		i++
	}
	return pat, nil
}

func toMapPattern(m *ast.MapExpr) (ast.Pattern, *value.Error) {
	pat := ast.Pattern{Kind: ast.PatternMap}
	for _, entry := range m.Entries {
		keyLit, ok := entry.Key.(*ast.Literal)
		if !ok || !keyLit.Value.IsKeyword() {
			return ast.Pattern{}, value.New(value.KindParse, "map pattern keys must be keywords").WithSpan(entry.Key.Span())
		}
		switch keyLit.Value.AsString() {
		case "keys":
			namesVec, ok := entry.Value.(*ast.Vector)
			if !ok {
				return ast.Pattern{}, value.New(value.KindParse, "':keys' value must be a vector of symbols").WithSpan(entry.Value.Span())
			}
			for _, it := range namesVec.Items {
				sym, ok := it.(*ast.SymbolRef)
				if !ok || sym.Namespace != "" {
					return ast.Pattern{}, value.New(value.KindParse, "':keys' entries must be plain symbols").WithSpan(it.Span())
				}
				pat.Keys = append(pat.Keys, sym.Name)
			}
		case "as":
			sym, ok := entry.Value.(*ast.SymbolRef)
			if !ok {
				return ast.Pattern{}, value.New(value.KindParse, "':as' binding must be a symbol").WithSpan(entry.Value.Span())
			}
			pat.As = sym.Name
		default:
			valPat, err := toPattern(entry.Value)
			if err != nil {
				return ast.Pattern{}, err
			}
			pat.Fields = append(pat.Fields, ast.MapPatternField{Key: keyLit.Value.AsString(), Pattern: valPat})
		}
	}
	if rest := restFieldFromAmpersand(m); rest != nil {
		pat.Rest = rest
	}
	if pat.OverlapsKeysAndFields() {
		return ast.Pattern{}, value.New(value.KindParse, ":invalid-pattern: ':keys' name overlaps an explicit field").WithSpan(m.Span())
	}
	return pat, nil
}

// restFieldFromAmpersand looks for a `:& rest-sym` keyword entry in a map
// pattern. The lexer rejects `:&` and readMap rejects a bare `&`, so no map
// pattern parsed from source carries such an entry and this returns nil.
func restFieldFromAmpersand(m *ast.MapExpr) *ast.Pattern {
	for _, entry := range m.Entries {
		keyLit, ok := entry.Key.(*ast.Literal)
		if !ok || !keyLit.Value.IsKeyword() || keyLit.Value.AsString() != "&" {
			continue
		}
		sym, ok := entry.Value.(*ast.SymbolRef)
		if !ok {
			continue
		}
		p := ast.SymbolPattern(sym.Name)
		return &p
	}
	return nil
}
