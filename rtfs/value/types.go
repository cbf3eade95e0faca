package value

import "strings"

// TypeKind discriminates the algebraic type-expression union used for
// capability/plan schema display and optional validation. Runtime dispatch
// stays dynamic; type errors surface at call sites, not ahead of time.
type TypeKind int

const (
	TypePrimitive TypeKind = iota
	TypeVectorOf
	TypeTuple
	TypeMapOf
	TypeUnion
	TypeOptional
	TypeFunction
	TypeAny
	TypeNever
	TypeAlias
)

// Primitive enumerates the scalar primitive type names.
type Primitive string

const (
	PrimInt     Primitive = "int"
	PrimFloat   Primitive = "float"
	PrimBool    Primitive = "bool"
	PrimString  Primitive = "string"
	PrimKeyword Primitive = "keyword"
	PrimNil     Primitive = "nil"
	PrimSymbol  Primitive = "symbol"
)

// MapField describes one entry of a TypeMapOf's fixed field set.
type MapField struct {
	Key      string
	Type     *Type
	Optional bool
}

// Type is the algebraic type expression tree.
type Type struct {
	Kind TypeKind

	Primitive Primitive // TypePrimitive
	Elem      *Type     // TypeVectorOf, TypeOptional
	Items     []*Type   // TypeTuple, TypeUnion
	Fields    []MapField
	Wildcard  *Type // TypeMapOf: type for keys not in Fields, if any

	Params   []*Type // TypeFunction
	Result   *Type   // TypeFunction
	Variadic bool    // TypeFunction

	Name string // TypeAlias
}

func Prim(p Primitive) *Type           { return &Type{Kind: TypePrimitive, Primitive: p} }
func VectorOf(t *Type) *Type           { return &Type{Kind: TypeVectorOf, Elem: t} }
func TupleOf(items ...*Type) *Type     { return &Type{Kind: TypeTuple, Items: items} }
func UnionOf(items ...*Type) *Type     { return &Type{Kind: TypeUnion, Items: items} }
func OptionalOf(t *Type) *Type         { return &Type{Kind: TypeOptional, Elem: t} }
func Alias(name string) *Type          { return &Type{Kind: TypeAlias, Name: name} }
func AnyType() *Type                   { return &Type{Kind: TypeAny} }
func NeverType() *Type                 { return &Type{Kind: TypeNever} }
func MapOf(fields []MapField, wildcard *Type) *Type {
	return &Type{Kind: TypeMapOf, Fields: fields, Wildcard: wildcard}
}
func FuncType(params []*Type, result *Type, variadic bool) *Type {
	return &Type{Kind: TypeFunction, Params: params, Result: result, Variadic: variadic}
}

// String renders a type expression in a human-readable schema form, used
// for capability manifest display.
func (t *Type) String() string {
	if t == nil {
		return "any"
	}
	switch t.Kind {
	case TypePrimitive:
		return string(t.Primitive)
	case TypeVectorOf:
		return "[" + t.Elem.String() + "]"
	case TypeTuple:
		parts := make([]string, len(t.Items))
		for i, it := range t.Items {
			parts[i] = it.String()
		}
		return "(" + strings.Join(parts, " ") + ")"
	case TypeMapOf:
		var b strings.Builder
		b.WriteByte('{')
		for i, f := range t.Fields {
			if i > 0 {
				b.WriteByte(' ')
			}
			b.WriteByte(':')
			b.WriteString(f.Key)
			if f.Optional {
				b.WriteByte('?')
			}
			b.WriteByte(' ')
			b.WriteString(f.Type.String())
		}
		if t.Wildcard != nil {
			if len(t.Fields) > 0 {
				b.WriteByte(' ')
			}
			b.WriteString("* ")
			b.WriteString(t.Wildcard.String())
		}
		b.WriteByte('}')
		return b.String()
	case TypeUnion:
		parts := make([]string, len(t.Items))
		for i, it := range t.Items {
			parts[i] = it.String()
		}
		return strings.Join(parts, " | ")
	case TypeOptional:
		return t.Elem.String() + "?"
	case TypeFunction:
		parts := make([]string, len(t.Params))
		for i, p := range t.Params {
			parts[i] = p.String()
		}
		variadic := ""
		if t.Variadic {
			variadic = "..."
		}
		return "(" + strings.Join(parts, " ") + variadic + " -> " + t.Result.String() + ")"
	case TypeAny:
		return "any"
	case TypeNever:
		return "never"
	case TypeAlias:
		return t.Name
	default:
		return "?"
	}
}

// ToJSONSchema converts a Type expression to a JSON-schema-shaped map,
// the reverse of the primitive/object/array mapping in TypeFromJSONSchema,
// which the MCP discovery adapter uses.
func (t *Type) ToJSONSchema() map[string]any {
	if t == nil {
		return map[string]any{}
	}
	switch t.Kind {
	case TypePrimitive:
		switch t.Primitive {
		case PrimInt:
			return map[string]any{"type": "integer"}
		case PrimFloat:
			return map[string]any{"type": "number"}
		case PrimBool:
			return map[string]any{"type": "boolean"}
		case PrimString, PrimKeyword, PrimSymbol:
			return map[string]any{"type": "string"}
		case PrimNil:
			return map[string]any{"type": "null"}
		}
	case TypeVectorOf:
		return map[string]any{"type": "array", "items": t.Elem.ToJSONSchema()}
	case TypeMapOf:
		props := map[string]any{}
		required := []string{}
		for _, f := range t.Fields {
			props[f.Key] = f.Type.ToJSONSchema()
			if !f.Optional {
				required = append(required, f.Key)
			}
		}
		out := map[string]any{"type": "object", "properties": props}
		if len(required) > 0 {
			out["required"] = required
		}
		return out
	case TypeOptional:
		return t.Elem.ToJSONSchema()
	case TypeAny:
		return map[string]any{}
	}
	return map[string]any{}
}

// TypeFromJSONSchema converts a decoded JSON-schema document into a Type
// expression: object->map with keyword keys, array->vector,
// string/number/integer/boolean->corresponding primitive.
func TypeFromJSONSchema(schema map[string]any) *Type {
	raw, _ := schema["type"].(string)
	switch raw {
	case "integer":
		return Prim(PrimInt)
	case "number":
		return Prim(PrimFloat)
	case "boolean":
		return Prim(PrimBool)
	case "string":
		return Prim(PrimString)
	case "null":
		return Prim(PrimNil)
	case "array":
		elem := AnyType()
		if items, ok := schema["items"].(map[string]any); ok {
			elem = TypeFromJSONSchema(items)
		}
		return VectorOf(elem)
	case "object":
		props, _ := schema["properties"].(map[string]any)
		required := map[string]bool{}
		if req, ok := schema["required"].([]any); ok {
			for _, r := range req {
				if s, ok := r.(string); ok {
					required[s] = true
				}
			}
		}
		var fields []MapField
		for k, v := range props {
			sub, _ := v.(map[string]any)
			fields = append(fields, MapField{
				Key:      k,
				Type:     TypeFromJSONSchema(sub),
				Optional: !required[k],
			})
		}
		return MapOf(fields, nil)
	default:
		return AnyType()
	}
}
