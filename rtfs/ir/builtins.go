package ir

import "github.com/mandubian/ccos-sub004/rtfs/value"

// builtins is the fixed table of built-in function names seeded into the
// global scope at converter construction (4.C). Names bind to runtime
// intrinsics by name at evaluation time; types here are advisory only,
// since the runtime stays dynamically typed.
var builtins = map[string]*value.Type{
	"+": value.FuncType([]*value.Type{value.Prim(value.PrimInt)}, value.Prim(value.PrimInt), true),
	"-": value.FuncType([]*value.Type{value.Prim(value.PrimInt)}, value.Prim(value.PrimInt), true),
	"*": value.FuncType([]*value.Type{value.Prim(value.PrimInt)}, value.Prim(value.PrimInt), true),
	"/": value.FuncType([]*value.Type{value.Prim(value.PrimInt)}, value.Prim(value.PrimInt), true),

	"=":  value.FuncType([]*value.Type{value.AnyType()}, value.Prim(value.PrimBool), true),
	"<":  value.FuncType([]*value.Type{value.AnyType()}, value.Prim(value.PrimBool), true),
	">":  value.FuncType([]*value.Type{value.AnyType()}, value.Prim(value.PrimBool), true),
	"<=": value.FuncType([]*value.Type{value.AnyType()}, value.Prim(value.PrimBool), true),
	">=": value.FuncType([]*value.Type{value.AnyType()}, value.Prim(value.PrimBool), true),
	"not": value.FuncType([]*value.Type{value.Prim(value.PrimBool)}, value.Prim(value.PrimBool), false),

	"int?":     value.FuncType([]*value.Type{value.AnyType()}, value.Prim(value.PrimBool), false),
	"float?":   value.FuncType([]*value.Type{value.AnyType()}, value.Prim(value.PrimBool), false),
	"bool?":    value.FuncType([]*value.Type{value.AnyType()}, value.Prim(value.PrimBool), false),
	"string?":  value.FuncType([]*value.Type{value.AnyType()}, value.Prim(value.PrimBool), false),
	"keyword?": value.FuncType([]*value.Type{value.AnyType()}, value.Prim(value.PrimBool), false),
	"symbol?":  value.FuncType([]*value.Type{value.AnyType()}, value.Prim(value.PrimBool), false),
	"nil?":     value.FuncType([]*value.Type{value.AnyType()}, value.Prim(value.PrimBool), false),
	"vector?":  value.FuncType([]*value.Type{value.AnyType()}, value.Prim(value.PrimBool), false),
	"list?":    value.FuncType([]*value.Type{value.AnyType()}, value.Prim(value.PrimBool), false),
	"map?":     value.FuncType([]*value.Type{value.AnyType()}, value.Prim(value.PrimBool), false),
	"fn?":      value.FuncType([]*value.Type{value.AnyType()}, value.Prim(value.PrimBool), false),

	"assoc":  value.FuncType([]*value.Type{value.AnyType(), value.AnyType(), value.AnyType()}, value.AnyType(), false),
	"dissoc": value.FuncType([]*value.Type{value.AnyType(), value.AnyType()}, value.AnyType(), false),
	"get":    value.FuncType([]*value.Type{value.AnyType(), value.AnyType()}, value.AnyType(), true),
	"get-in": value.FuncType([]*value.Type{value.AnyType(), value.VectorOf(value.AnyType())}, value.AnyType(), true),

	"conj":  value.FuncType([]*value.Type{value.AnyType()}, value.AnyType(), true),
	"nth":   value.FuncType([]*value.Type{value.AnyType(), value.Prim(value.PrimInt)}, value.AnyType(), false),
	"first": value.FuncType([]*value.Type{value.AnyType()}, value.AnyType(), false),
	"rest":  value.FuncType([]*value.Type{value.AnyType()}, value.AnyType(), false),
	"count": value.FuncType([]*value.Type{value.AnyType()}, value.Prim(value.PrimInt), false),

	"str": value.FuncType([]*value.Type{value.AnyType()}, value.Prim(value.PrimString), true),
}
