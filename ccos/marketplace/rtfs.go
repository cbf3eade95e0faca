package marketplace

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/mandubian/ccos-sub004/rtfs/ast"
	"github.com/mandubian/ccos-sub004/rtfs/parser"
	"github.com/mandubian/ccos-sub004/rtfs/value"
)

// ManifestToRTFS serializes m as a `(capability "id" :description "…" …)`
// s-expression, the persisted capability module form. Effects are emitted
// in canonical (sorted) order so the content hash is stable.
func ManifestToRTFS(m Manifest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "(capability %s", quoteString(m.ID))
	if m.Name != "" {
		fmt.Fprintf(&b, " :name %s", quoteString(m.Name))
	}
	if m.Description != "" {
		fmt.Fprintf(&b, " :description %s", quoteString(m.Description))
	}
	if m.Version != "" {
		fmt.Fprintf(&b, " :version %s", quoteString(m.Version))
	}
	b.WriteString(" :provider ")
	b.WriteString(providerToRTFS(m.Provider))
	if len(m.Permissions) > 0 {
		b.WriteString(" :permissions ")
		writeStringVector(&b, m.Permissions)
	}
	effects := SortedEffects(m.Effects)
	if len(effects) > 0 {
		b.WriteString(" :effects ")
		writeKeywordVector(&b, effects)
	}
	if len(m.Metadata) > 0 {
		b.WriteString(" :metadata ")
		writeMetadataMap(&b, m.Metadata)
	}
	b.WriteString(")")
	return b.String()
}

func providerToRTFS(p Provider) string {
	var b strings.Builder
	b.WriteString("{:type ")
	b.WriteString(":" + string(p.Kind))
	switch p.Kind {
	case ProviderLocal:
		fmt.Fprintf(&b, " :name %s", quoteString(p.LocalName))
	case ProviderMCP:
		fmt.Fprintf(&b, " :server %s :tool %s", quoteString(p.ServerURL), quoteString(p.ToolName))
		if p.TimeoutMS > 0 {
			fmt.Fprintf(&b, " :timeout-ms %d", p.TimeoutMS)
		}
	case ProviderHTTP:
		fmt.Fprintf(&b, " :endpoint %s :method %s", quoteString(p.Endpoint), quoteString(p.Method))
		if p.AuthEnvVar != "" {
			fmt.Fprintf(&b, " :auth-env %s", quoteString(p.AuthEnvVar))
		}
	case ProviderRemoteRTFS:
		fmt.Fprintf(&b, " :module %s", quoteString(p.ModuleURL))
	case ProviderSynthesized:
		fmt.Fprintf(&b, " :plan-ref %s", quoteString(p.PlanRef))
	case ProviderMicroVM:
		fmt.Fprintf(&b, " :program %s :language %s", quoteString(p.MicroVMProgram), quoteString(p.MicroVMLanguage))
	}
	b.WriteString("}")
	return b.String()
}

func quoteString(s string) string {
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
		case '\t':
			b.WriteString(`\t`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}

func writeStringVector(b *strings.Builder, items []string) {
	b.WriteString("[")
	for i, s := range items {
		if i > 0 {
			b.WriteString(" ")
		}
		b.WriteString(quoteString(s))
	}
	b.WriteString("]")
}

func writeKeywordVector(b *strings.Builder, items []string) {
	b.WriteString("[")
	for i, s := range items {
		if i > 0 {
			b.WriteString(" ")
		}
		b.WriteString(":" + strings.TrimPrefix(s, ":"))
	}
	b.WriteString("]")
}

// writeMetadataMap serializes a metadata map with sorted keys so the
// output (and therefore the content hash) is deterministic.
func writeMetadataMap(b *strings.Builder, meta map[string]any) {
	keys := make([]string, 0, len(meta))
	for k := range meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	b.WriteString("{")
	for i, k := range keys {
		if i > 0 {
			b.WriteString(" ")
		}
		fmt.Fprintf(b, ":%s %s", k, anyToRTFS(meta[k]))
	}
	b.WriteString("}")
}

func anyToRTFS(v any) string {
	switch t := v.(type) {
	case nil:
		return "nil"
	case bool:
		return strconv.FormatBool(t)
	case string:
		return quoteString(t)
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case []any:
		var b strings.Builder
		b.WriteString("[")
		for i, e := range t {
			if i > 0 {
				b.WriteString(" ")
			}
			b.WriteString(anyToRTFS(e))
		}
		b.WriteString("]")
		return b.String()
	case map[string]any:
		var b strings.Builder
		writeMetadataMap(&b, t)
		return b.String()
	default:
		return quoteString(fmt.Sprintf("%v", t))
	}
}

// ContentHash computes a stable hash of a manifest's canonical RTFS
// serialization, used as Provenance.ContentHash.
func ContentHash(m Manifest) string {
	sum := sha256.Sum256([]byte(ManifestToRTFS(m)))
	return hex.EncodeToString(sum[:])
}

// RTFSToManifest parses a `(capability …)` s-expression and converts it to
// a Manifest. Fields not in the enumerated round-trip set are carried
// through Metadata verbatim under their keyword name.
func RTFSToManifest(src string) (Manifest, error) {
	node, err := parser.ParseOne(src)
	if err != nil {
		return Manifest{}, fmt.Errorf("parse capability form: %s", err.Error())
	}
	cap, ok := node.(*ast.Capability)
	if !ok {
		return Manifest{}, fmt.Errorf("expected a (capability ...) form, got %T", node)
	}
	m := Manifest{ID: cap.ID, Metadata: map[string]any{}}
	for _, opt := range cap.Options {
		key, ok := opt.Key.(*ast.Literal)
		if !ok || !key.Value.IsKeyword() {
			continue
		}
		name := key.Value.AsString()
		switch name {
		case "name":
			m.Name = literalString(opt.Value)
		case "description":
			m.Description = literalString(opt.Value)
		case "version":
			m.Version = literalString(opt.Value)
		case "provider":
			p, err := providerFromRTFS(opt.Value)
			if err != nil {
				return Manifest{}, err
			}
			m.Provider = p
		case "permissions":
			m.Permissions = stringsFromVector(opt.Value)
		case "effects":
			m.Effects = SortedEffects(keywordsFromVector(opt.Value))
		case "metadata":
			md, err := astValue(opt.Value)
			if err != nil {
				return Manifest{}, err
			}
			for _, k := range md.MapKeys() {
				v, _ := md.MapGet(k)
				m.Metadata[k.String()] = value.ToJSON(v)
			}
		default:
			v, err := astValue(opt.Value)
			if err != nil {
				return Manifest{}, err
			}
			m.Metadata[name] = value.ToJSON(v)
		}
	}
	return m, nil
}

func providerFromRTFS(node ast.Node) (Provider, error) {
	v, err := astValue(node)
	if err != nil {
		return Provider{}, err
	}
	if !v.IsMap() {
		return Provider{}, fmt.Errorf("provider must be a map")
	}
	get := func(k string) string {
		got, ok := v.MapGet(value.KeywordKey(k))
		if !ok || !got.IsString() {
			return ""
		}
		return got.AsString()
	}
	kindVal, _ := v.MapGet(value.KeywordKey("type"))
	p := Provider{Kind: ProviderKind(strings.TrimPrefix(kindVal.AsString(), ":"))}
	switch p.Kind {
	case ProviderLocal:
		p.LocalName = get("name")
	case ProviderMCP:
		p.ServerURL = get("server")
		p.ToolName = get("tool")
		if t, ok := v.MapGet(value.KeywordKey("timeout-ms")); ok && t.IsInt() {
			p.TimeoutMS = int(t.AsInt())
		}
	case ProviderHTTP:
		p.Endpoint = get("endpoint")
		p.Method = get("method")
		p.AuthEnvVar = get("auth-env")
	case ProviderRemoteRTFS:
		p.ModuleURL = get("module")
	case ProviderSynthesized:
		p.PlanRef = get("plan-ref")
	case ProviderMicroVM:
		p.MicroVMProgram = get("program")
		p.MicroVMLanguage = get("language")
	}
	return p, nil
}

func literalString(node ast.Node) string {
	lit, ok := node.(*ast.Literal)
	if !ok || !lit.Value.IsString() {
		return ""
	}
	return lit.Value.AsString()
}

func stringsFromVector(node ast.Node) []string {
	vec, ok := node.(*ast.Vector)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(vec.Items))
	for _, item := range vec.Items {
		out = append(out, literalString(item))
	}
	return out
}

func keywordsFromVector(node ast.Node) []string {
	vec, ok := node.(*ast.Vector)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(vec.Items))
	for _, item := range vec.Items {
		lit, ok := item.(*ast.Literal)
		if !ok || !lit.Value.IsKeyword() {
			continue
		}
		out = append(out, lit.Value.AsString())
	}
	return out
}

// astValue converts a literal-data AST node (Literal, Vector, ListExpr, or
// MapExpr) into a Value, the way a capability form's static option values
// are interpreted without running the full IR lowering/evaluator pipeline.
func astValue(node ast.Node) (value.Value, error) {
	switch n := node.(type) {
	case *ast.Literal:
		return n.Value, nil
	case *ast.Vector:
		items := make([]value.Value, len(n.Items))
		for i, item := range n.Items {
			v, err := astValue(item)
			if err != nil {
				return value.Value{}, err
			}
			items[i] = v
		}
		return value.VectorFrom(items), nil
	case *ast.ListExpr:
		items := make([]value.Value, len(n.Items))
		for i, item := range n.Items {
			v, err := astValue(item)
			if err != nil {
				return value.Value{}, err
			}
			items[i] = v
		}
		return value.VectorFrom(items), nil
	case *ast.MapExpr:
		m := value.EmptyMap()
		for _, entry := range n.Entries {
			k, err := astValue(entry.Key)
			if err != nil {
				return value.Value{}, err
			}
			mk, kerr := value.ToMapKey(k)
			if kerr != nil {
				return value.Value{}, fmt.Errorf("%s", kerr.Error())
			}
			v, err := astValue(entry.Value)
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
