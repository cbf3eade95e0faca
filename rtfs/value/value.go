package value

import (
	"fmt"
	"sort"
)

// Tag discriminates the Value union.
type Tag int

const (
	TagNil Tag = iota
	TagBool
	TagInt
	TagFloat
	TagString
	TagKeyword
	TagSymbol
	TagVector
	TagList
	TagMap
	TagFunction
	TagResource
	TagError
)

func (t Tag) String() string {
	switch t {
	case TagNil:
		return "nil"
	case TagBool:
		return "bool"
	case TagInt:
		return "int"
	case TagFloat:
		return "float"
	case TagString:
		return "string"
	case TagKeyword:
		return "keyword"
	case TagSymbol:
		return "symbol"
	case TagVector:
		return "vector"
	case TagList:
		return "list"
	case TagMap:
		return "map"
	case TagFunction:
		return "function"
	case TagResource:
		return "resource"
	case TagError:
		return "error"
	default:
		return "unknown"
	}
}

// MapKey is the restricted key domain for RTFS maps: keyword, string, or int.
type MapKey struct {
	kind MapKeyKind
	s    string
	i    int64
}

// MapKeyKind discriminates the MapKey union.
type MapKeyKind int

const (
	MapKeyKeyword MapKeyKind = iota
	MapKeyString
	MapKeyInt
)

func KeywordKey(name string) MapKey { return MapKey{kind: MapKeyKeyword, s: name} }
func StringKey(s string) MapKey     { return MapKey{kind: MapKeyString, s: s} }
func IntKey(i int64) MapKey         { return MapKey{kind: MapKeyInt, i: i} }

func (k MapKey) Kind() MapKeyKind { return k.kind }
func (k MapKey) String() string   { return k.s }
func (k MapKey) Int() int64       { return k.i }

func (k MapKey) Less(other MapKey) bool {
	if k.kind != other.kind {
		return k.kind < other.kind
	}
	switch k.kind {
	case MapKeyInt:
		return k.i < other.i
	default:
		return k.s < other.s
	}
}

// orderedMap preserves insertion order for reproducible printing while
// offering O(1) lookup by key.
type orderedMap struct {
	keys   []MapKey
	values map[MapKey]Value
}

func newOrderedMap() *orderedMap {
	return &orderedMap{values: make(map[MapKey]Value)}
}

func (m *orderedMap) set(k MapKey, v Value) {
	if _, ok := m.values[k]; !ok {
		m.keys = append(m.keys, k)
	}
	m.values[k] = v
}

func (m *orderedMap) get(k MapKey) (Value, bool) {
	v, ok := m.values[k]
	return v, ok
}

func (m *orderedMap) delete(k MapKey) {
	if _, ok := m.values[k]; !ok {
		return
	}
	delete(m.values, k)
	for i, existing := range m.keys {
		if existing == k {
			m.keys = append(m.keys[:i], m.keys[i+1:]...)
			break
		}
	}
}

func (m *orderedMap) clone() *orderedMap {
	out := &orderedMap{
		keys:   append([]MapKey(nil), m.keys...),
		values: make(map[MapKey]Value, len(m.values)),
	}
	for k, v := range m.values {
		out.values[k] = v
	}
	return out
}

// Resource is an opaque handle returned by with-resource initializers: an
// id paired with a type tag. The runtime never inspects resource payloads
// directly; release hooks are tracked out-of-band by the evaluator.
type Resource struct {
	ID   string
	Type string
}

// Function is a closure: a lambda IR node (opaque here as `any` to avoid an
// import cycle between value and ir) plus the captured environment.
type Function struct {
	Name    string
	Arity   int
	Variadic bool
	Node    any // *ir.Lambda
	Env     any // *eval.Env
	Native  func(args []Value) (Value, *Error)
}

// Value is the tagged union of runtime values. Zero value is nil.
type Value struct {
	tag Tag

	b Bool
	i int64
	f float64
	s string // string/keyword/symbol payload

	vec []Value
	lst []Value
	mp  *orderedMap

	fn  *Function
	res Resource
	err *Error
}

// Bool is a distinct type so TagBool can carry a typed field without
// colliding with int64 arithmetic storage.
type Bool bool

func Nil() Value                { return Value{tag: TagNil} }
func Bool_(b bool) Value        { return Value{tag: TagBool, b: Bool(b)} }
func Int(i int64) Value         { return Value{tag: TagInt, i: i} }
func Float(f float64) Value     { return Value{tag: TagFloat, f: f} }
func String(s string) Value     { return Value{tag: TagString, s: s} }
func Keyword(name string) Value { return Value{tag: TagKeyword, s: name} }
func Symbol(name string) Value  { return Value{tag: TagSymbol, s: name} }

func Vector(items ...Value) Value { return Value{tag: TagVector, vec: items} }
func List(items ...Value) Value   { return Value{tag: TagList, lst: items} }

func VectorFrom(items []Value) Value { return Value{tag: TagVector, vec: items} }
func ListFrom(items []Value) Value   { return Value{tag: TagList, lst: items} }

func EmptyMap() Value { return Value{tag: TagMap, mp: newOrderedMap()} }

func FunctionVal(fn *Function) Value { return Value{tag: TagFunction, fn: fn} }

func ResourceVal(id, typ string) Value {
	return Value{tag: TagResource, res: Resource{ID: id, Type: typ}}
}

// ErrorVal wraps an *Error as a catchable Value.
func ErrorVal(err *Error) Value { return Value{tag: TagError, err: err} }

func (v Value) Tag() Tag { return v.tag }

func (v Value) IsNil() bool  { return v.tag == TagNil }
func (v Value) IsBool() bool { return v.tag == TagBool }
func (v Value) IsInt() bool  { return v.tag == TagInt }

func (v Value) IsFloat() bool    { return v.tag == TagFloat }
func (v Value) IsNumber() bool   { return v.tag == TagInt || v.tag == TagFloat }
func (v Value) IsString() bool   { return v.tag == TagString }
func (v Value) IsKeyword() bool  { return v.tag == TagKeyword }
func (v Value) IsSymbol() bool   { return v.tag == TagSymbol }
func (v Value) IsVector() bool   { return v.tag == TagVector }
func (v Value) IsList() bool     { return v.tag == TagList }
func (v Value) IsSeq() bool      { return v.tag == TagVector || v.tag == TagList }
func (v Value) IsMap() bool      { return v.tag == TagMap }
func (v Value) IsFunction() bool { return v.tag == TagFunction }
func (v Value) IsResource() bool { return v.tag == TagResource }
func (v Value) IsError() bool    { return v.tag == TagError }

// Truthy implements the evaluator's truthiness rule: everything is truthy
// except false and nil.
func (v Value) Truthy() bool {
	if v.tag == TagNil {
		return false
	}
	if v.tag == TagBool {
		return bool(v.b)
	}
	return true
}

func (v Value) AsBool() bool { return bool(v.b) }
func (v Value) AsInt() int64 { return v.i }
func (v Value) AsFloat() float64 {
	if v.tag == TagInt {
		return float64(v.i)
	}
	return v.f
}
func (v Value) AsString() string  { return v.s } // also Keyword/Symbol name
func (v Value) AsFunction() *Function { return v.fn }
func (v Value) AsResource() Resource  { return v.res }
func (v Value) AsError() *Error       { return v.err }

// Seq returns the underlying element slice for a vector or list.
func (v Value) Seq() []Value {
	switch v.tag {
	case TagVector:
		return v.vec
	case TagList:
		return v.lst
	default:
		return nil
	}
}

// MapKeys returns the map's keys in insertion order. Empty slice for non-maps.
func (v Value) MapKeys() []MapKey {
	if v.tag != TagMap || v.mp == nil {
		return nil
	}
	return append([]MapKey(nil), v.mp.keys...)
}

// MapGet looks up a key in a map Value.
func (v Value) MapGet(k MapKey) (Value, bool) {
	if v.tag != TagMap || v.mp == nil {
		return Value{}, false
	}
	return v.mp.get(k)
}

// Assoc returns a new map with key k set to val, leaving v unmodified
// (maps are immutable; operations return new values per the data model).
func Assoc(v Value, k MapKey, val Value) (Value, *Error) {
	if v.tag != TagMap {
		return Value{}, New(KindType, "assoc: expected map, got %s", v.tag)
	}
	m := v.mp.clone()
	m.set(k, val)
	return Value{tag: TagMap, mp: m}, nil
}

// Dissoc returns a new map without key k.
func Dissoc(v Value, k MapKey) (Value, *Error) {
	if v.tag != TagMap {
		return Value{}, New(KindType, "dissoc: expected map, got %s", v.tag)
	}
	m := v.mp.clone()
	m.delete(k)
	return Value{tag: TagMap, mp: m}, nil
}

// Get looks up key k in map v, returning dflt if absent or v is not a map.
func Get(v Value, k MapKey, dflt Value) Value {
	val, ok := v.MapGet(k)
	if !ok {
		return dflt
	}
	return val
}

// GetIn walks a path of keys through nested maps.
func GetIn(v Value, path []MapKey, dflt Value) Value {
	cur := v
	for _, k := range path {
		val, ok := cur.MapGet(k)
		if !ok {
			return dflt
		}
		cur = val
	}
	return cur
}

// MapFromPairs builds a map Value from alternating key/value Values; keys
// must already be restricted to {keyword,string,int} via ToMapKey.
func MapFromPairs(pairs ...[2]Value) (Value, *Error) {
	m := newOrderedMap()
	for _, p := range pairs {
		k, err := ToMapKey(p[0])
		if err != nil {
			return Value{}, err
		}
		m.set(k, p[1])
	}
	return Value{tag: TagMap, mp: m}, nil
}

// ToMapKey converts a Value (keyword, string, or int) into a MapKey.
func ToMapKey(v Value) (MapKey, *Error) {
	switch v.tag {
	case TagKeyword:
		return KeywordKey(v.s), nil
	case TagString:
		return StringKey(v.s), nil
	case TagInt:
		return IntKey(v.i), nil
	default:
		return MapKey{}, New(KindType, "invalid map key type %s", v.tag)
	}
}

// MapKeyToValue converts a MapKey back into its Value form for iteration.
func MapKeyToValue(k MapKey) Value {
	switch k.kind {
	case MapKeyKeyword:
		return Keyword(k.s)
	case MapKeyInt:
		return Int(k.i)
	default:
		return String(k.s)
	}
}

// Conj appends to a vector (returns new vector) or prepends to a list
// (returns new list), matching RTFS/Lisp conj semantics.
func Conj(v Value, item Value) (Value, *Error) {
	switch v.tag {
	case TagVector:
		out := make([]Value, len(v.vec)+1)
		copy(out, v.vec)
		out[len(v.vec)] = item
		return VectorFrom(out), nil
	case TagList:
		out := make([]Value, len(v.lst)+1)
		out[0] = item
		copy(out[1:], v.lst)
		return ListFrom(out), nil
	default:
		return Value{}, New(KindType, "conj: expected vector or list, got %s", v.tag)
	}
}

// Nth returns the n-th element (0-indexed) of a vector or list.
func Nth(v Value, n int) (Value, *Error) {
	seq := v.Seq()
	if seq == nil {
		return Value{}, New(KindType, "nth: expected vector or list, got %s", v.tag)
	}
	if n < 0 || n >= len(seq) {
		return Value{}, New(KindGeneric, "nth: index %d out of range (len %d)", n, len(seq))
	}
	return seq[n], nil
}

// First returns the first element, or nil for an empty sequence.
func First(v Value) (Value, *Error) {
	seq := v.Seq()
	if seq == nil {
		return Value{}, New(KindType, "first: expected vector or list, got %s", v.tag)
	}
	if len(seq) == 0 {
		return Nil(), nil
	}
	return seq[0], nil
}

// Rest returns every element but the first, preserving the original tag.
func Rest(v Value) (Value, *Error) {
	seq := v.Seq()
	if seq == nil {
		return Value{}, New(KindType, "rest: expected vector or list, got %s", v.tag)
	}
	if len(seq) == 0 {
		if v.tag == TagList {
			return ListFrom(nil), nil
		}
		return VectorFrom(nil), nil
	}
	tail := append([]Value(nil), seq[1:]...)
	if v.tag == TagList {
		return ListFrom(tail), nil
	}
	return VectorFrom(tail), nil
}

// Count returns the element count for vectors, lists, maps, and strings.
func Count(v Value) (int, *Error) {
	switch v.tag {
	case TagVector:
		return len(v.vec), nil
	case TagList:
		return len(v.lst), nil
	case TagMap:
		return len(v.mp.keys), nil
	case TagString:
		return len([]rune(v.s)), nil
	case TagNil:
		return 0, nil
	default:
		return 0, New(KindType, "count: unsupported type %s", v.tag)
	}
}

// Equal implements structural equality across all Values, used by `=`
// which is defined across all types (unlike ordered comparison, which
// errors on mixed types).
func Equal(a, b Value) bool {
	if a.tag != b.tag {
		// int/float cross-tag equality is not promoted: = is structural.
		return false
	}
	switch a.tag {
	case TagNil:
		return true
	case TagBool:
		return a.b == b.b
	case TagInt:
		return a.i == b.i
	case TagFloat:
		return a.f == b.f
	case TagString, TagKeyword, TagSymbol:
		return a.s == b.s
	case TagVector, TagList:
		sa, sb := a.Seq(), b.Seq()
		if len(sa) != len(sb) {
			return false
		}
		for i := range sa {
			if !Equal(sa[i], sb[i]) {
				return false
			}
		}
		return true
	case TagMap:
		if len(a.mp.keys) != len(b.mp.keys) {
			return false
		}
		for _, k := range a.mp.keys {
			bv, ok := b.mp.get(k)
			if !ok || !Equal(a.mp.values[k], bv) {
				return false
			}
		}
		return true
	case TagResource:
		return a.res == b.res
	case TagFunction:
		return a.fn == b.fn
	case TagError:
		return a.err == b.err
	}
	return false
}

// Compare implements structural ordering for like scalar types. Mixed
// types (other than int/float, which promote) are an error, per spec.
func Compare(a, b Value) (int, *Error) {
	if a.tag == TagInt && b.tag == TagInt {
		switch {
		case a.i < b.i:
			return -1, nil
		case a.i > b.i:
			return 1, nil
		default:
			return 0, nil
		}
	}
	if (a.tag == TagInt || a.tag == TagFloat) && (b.tag == TagInt || b.tag == TagFloat) {
		af, bf := a.AsFloat(), b.AsFloat()
		switch {
		case af < bf:
			return -1, nil
		case af > bf:
			return 1, nil
		default:
			return 0, nil
		}
	}
	if a.tag == TagString && b.tag == TagString {
		switch {
		case a.s < b.s:
			return -1, nil
		case a.s > b.s:
			return 1, nil
		default:
			return 0, nil
		}
	}
	return 0, New(KindType, "cannot compare %s with %s", a.tag, b.tag)
}

// Arithmetic implements +, -, *, / as variadic, type-promoting operators:
// any float operand promotes the whole expression to float.
func Arithmetic(op string, args []Value) (Value, *Error) {
	if len(args) == 0 {
		switch op {
		case "+":
			return Int(0), nil
		case "*":
			return Int(1), nil
		default:
			return Value{}, New(KindArity, "%s requires at least 1 argument", op)
		}
	}
	isFloat := false
	for _, a := range args {
		if !a.IsNumber() {
			return Value{}, New(KindType, "%s: non-numeric argument %s", op, a.tag)
		}
		if a.tag == TagFloat {
			isFloat = true
		}
	}
	if isFloat {
		fs := make([]float64, len(args))
		for i, a := range args {
			fs[i] = a.AsFloat()
		}
		return floatArith(op, fs)
	}
	is := make([]int64, len(args))
	for i, a := range args {
		is[i] = a.AsInt()
	}
	return intArith(op, is)
}

func intArith(op string, is []int64) (Value, *Error) {
	switch op {
	case "+":
		var sum int64
		for _, v := range is {
			sum += v
		}
		return Int(sum), nil
	case "*":
		prod := int64(1)
		for _, v := range is {
			prod *= v
		}
		return Int(prod), nil
	case "-":
		if len(is) == 1 {
			return Int(-is[0]), nil
		}
		out := is[0]
		for _, v := range is[1:] {
			out -= v
		}
		return Int(out), nil
	case "/":
		if len(is) == 1 {
			if is[0] == 0 {
				return Value{}, New(KindGeneric, "division by zero")
			}
			return Float(1 / float64(is[0])), nil
		}
		out := is[0]
		for _, v := range is[1:] {
			if v == 0 {
				return Value{}, New(KindGeneric, "division by zero")
			}
			if out%v != 0 {
				return floatArithDivChain(is)
			}
			out /= v
		}
		return Int(out), nil
	default:
		return Value{}, New(KindGeneric, "unsupported arithmetic operator %q", op)
	}
}

func floatArithDivChain(is []int64) (Value, *Error) {
	out := float64(is[0])
	for _, v := range is[1:] {
		out /= float64(v)
	}
	return Float(out), nil
}

func floatArith(op string, fs []float64) (Value, *Error) {
	switch op {
	case "+":
		var sum float64
		for _, v := range fs {
			sum += v
		}
		return Float(sum), nil
	case "*":
		prod := 1.0
		for _, v := range fs {
			prod *= v
		}
		return Float(prod), nil
	case "-":
		if len(fs) == 1 {
			return Float(-fs[0]), nil
		}
		out := fs[0]
		for _, v := range fs[1:] {
			out -= v
		}
		return Float(out), nil
	case "/":
		if len(fs) == 1 {
			if fs[0] == 0 {
				return Value{}, New(KindGeneric, "division by zero")
			}
			return Float(1 / fs[0]), nil
		}
		out := fs[0]
		for _, v := range fs[1:] {
			if v == 0 {
				return Value{}, New(KindGeneric, "division by zero")
			}
			out /= v
		}
		return Float(out), nil
	default:
		return Value{}, New(KindGeneric, "unsupported arithmetic operator %q", op)
	}
}

// SortedMapKeys returns keys sorted for canonical (reproducible-hash)
// serialization, independent of insertion order. Used by the marketplace's
// content-hash computation, not by ordinary printing (which preserves
// insertion order).
func SortedMapKeys(v Value) []MapKey {
	keys := v.MapKeys()
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
	return keys
}

// GoString renders a Value using Go's default formatting, useful only for
// debugging/logging; canonical RTFS printing lives in print.go.
func (v Value) GoString() string {
	return fmt.Sprintf("Value{tag=%s}", v.tag)
}
