package arbiter

import (
	"strconv"
	"strings"

	"github.com/mandubian/ccos-sub004/rtfs/ast"
	"github.com/mandubian/ccos-sub004/rtfs/parser"
	"github.com/mandubian/ccos-sub004/rtfs/value"
)

// canonicalizeIntentForm rewrites a map-style intent literal emitted by an
// off-spec model, `{:type "intent" :name "x" :goal "g" …}`, into canonical
// `(intent "x" :goal "g" …)` form. If text does not contain a `{…}` block
// tagged `:type "intent"`, it is returned unchanged.
func canonicalizeIntentForm(text string) string {
	idx := strings.IndexByte(text, '{')
	for idx >= 0 {
		end := matchingBrace(text, idx)
		if end < 0 {
			break
		}
		block := text[idx : end+1]
		if rewritten, ok := rewriteIntentMap(block); ok {
			return text[:idx] + rewritten + text[end+1:]
		}
		next := strings.IndexByte(text[idx+1:], '{')
		if next < 0 {
			break
		}
		idx = idx + 1 + next
	}
	return text
}

func matchingBrace(src string, start int) int {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(src); i++ {
		c := src[i]
		if inString {
			if escaped {
				escaped = false
			} else if c == '\\' {
				escaped = true
			} else if c == '"' {
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// rewriteIntentMap parses block as a map literal and, if it declares
// :type "intent", rebuilds it as an (intent "name" :k v …) form.
func rewriteIntentMap(block string) (string, bool) {
	node, perr := parser.ParseOne(block)
	if perr != nil {
		return "", false
	}
	m, ok := node.(*ast.MapExpr)
	if !ok {
		return "", false
	}
	var name string
	var rest strings.Builder
	sawIntentType := false
	for _, entry := range m.Entries {
		keyLit, ok := entry.Key.(*ast.Literal)
		if !ok || !keyLit.Value.IsKeyword() {
			continue
		}
		key := keyLit.Value.AsString()
		switch key {
		case "type":
			if lit, ok := entry.Value.(*ast.Literal); ok && lit.Value.IsString() && lit.Value.AsString() == "intent" {
				sawIntentType = true
			}
		case "name":
			if lit, ok := entry.Value.(*ast.Literal); ok && lit.Value.IsString() {
				name = lit.Value.AsString()
			}
		default:
			rest.WriteString(" :")
			rest.WriteString(key)
			rest.WriteString(" ")
			rest.WriteString(renderASTValue(entry.Value))
		}
	}
	if !sawIntentType {
		return "", false
	}
	if name == "" {
		name = "unnamed-intent"
	}
	return "(intent " + quoteStringAB(name) + rest.String() + ")", true
}

func renderASTValue(node ast.Node) string {
	switch n := node.(type) {
	case *ast.Literal:
		return literalToRTFS(n.Value)
	case *ast.Vector:
		var b strings.Builder
		b.WriteString("[")
		for i, item := range n.Items {
			if i > 0 {
				b.WriteString(" ")
			}
			b.WriteString(renderASTValue(item))
		}
		b.WriteString("]")
		return b.String()
	case *ast.MapExpr:
		var b strings.Builder
		b.WriteString("{")
		for i, entry := range n.Entries {
			if i > 0 {
				b.WriteString(" ")
			}
			b.WriteString(renderASTValue(entry.Key))
			b.WriteString(" ")
			b.WriteString(renderASTValue(entry.Value))
		}
		b.WriteString("}")
		return b.String()
	default:
		return "nil"
	}
}

func literalToRTFS(v value.Value) string {
	switch {
	case v.IsString():
		return quoteStringAB(v.AsString())
	case v.IsKeyword():
		return ":" + v.AsString()
	case v.IsBool():
		if v.AsBool() {
			return "true"
		}
		return "false"
	case v.IsNil():
		return "nil"
	case v.IsInt():
		return strconv.FormatInt(v.AsInt(), 10)
	case v.IsFloat():
		return strconv.FormatFloat(v.AsFloat(), 'g', -1, 64)
	default:
		return "nil"
	}
}

func quoteStringAB(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}
