// Package ast defines the RTFS abstract syntax tree produced by the parser.
// Every node carries a source Span so later stages (IR lowering, error
// reporting) can point back at the original text.
package ast

import "github.com/mandubian/ccos-sub004/rtfs/value"

// NodeKind discriminates the AST union. TopLevel items are Expression,
// ModuleDefinition, or TaskDefinition (capability definitions count as
// Expression nodes of kind KindCapability).
type NodeKind int

const (
	KindLiteral NodeKind = iota
	KindSymbol
	KindKeyword
	KindVector
	KindList
	KindMap
	KindDef
	KindDefn
	KindFn
	KindLet
	KindDo
	KindIf
	KindMatch
	KindTryCatch
	KindParallel
	KindWithResource
	KindLogStep
	KindStep
	KindDiscoverAgents
	KindIntent
	KindEdge
	KindCapability
	KindModule
	KindImport
	KindQuote
	KindCall
	KindApply // a plain s-expression application, e.g. (+ 1 2) or (f x)
)

// Node is the common interface implemented by every AST node.
type Node interface {
	Kind() NodeKind
	Span() *value.Span
}

type base struct {
	span *value.Span
}

func (b base) Span() *value.Span { return b.span }

// Literal wraps a parsed scalar/collection literal value (int, float,
// string, bool, nil, keyword are represented directly; vectors/lists/maps
// of literals are represented structurally via Vector/ListExpr/MapExpr).
type Literal struct {
	base
	Value value.Value
}

func (l *Literal) Kind() NodeKind { return KindLiteral }

// SymbolRef is a bare or namespaced identifier reference (`x`, `ns/x`).
type SymbolRef struct {
	base
	Namespace string
	Name      string
}

func (s *SymbolRef) Kind() NodeKind { return KindSymbol }

// Vector is a `[...]` literal sequence.
type Vector struct {
	base
	Items []Node
}

func (v *Vector) Kind() NodeKind { return KindVector }

// ListExpr is a parenthesized `(...)` application or special form not
// otherwise recognized; Items[0] is the operator position.
type ListExpr struct {
	base
	Items []Node
}

func (l *ListExpr) Kind() NodeKind { return KindApply }

// MapEntry is one key/value pair of a map literal.
type MapEntry struct {
	Key   Node
	Value Node
}

// MapExpr is a `{...}` literal.
type MapExpr struct {
	base
	Entries []MapEntry
}

func (m *MapExpr) Kind() NodeKind { return KindMap }

// Param is one function parameter, possibly a destructuring pattern.
type Param struct {
	Pattern Pattern
	Type    Node // optional type annotation expression, nil if absent
}

// Def is `(def name expr)`.
type Def struct {
	base
	Name string
	Expr Node
}

func (d *Def) Kind() NodeKind { return KindDef }

// Defn is `(defn name [params] body...)`, sugar for `(def name (fn ...))`.
type Defn struct {
	base
	Name     string
	Params   []Param
	Variadic bool
	Body     []Node
}

func (d *Defn) Kind() NodeKind { return KindDefn }

// Fn is `(fn [params] body...)`.
type Fn struct {
	base
	Params   []Param
	Variadic bool
	Body     []Node
}

func (f *Fn) Kind() NodeKind { return KindFn }

// LetBinding is one `[pattern expr]` pair inside a let form.
type LetBinding struct {
	Pattern Pattern
	Expr    Node
}

// Let is `(let [bindings...] body...)`.
type Let struct {
	base
	Bindings []LetBinding
	Body     []Node
}

func (l *Let) Kind() NodeKind { return KindLet }

// Do is `(do expr...)`.
type Do struct {
	base
	Exprs []Node
}

func (d *Do) Kind() NodeKind { return KindDo }

// If is `(if cond then else?)`.
type If struct {
	base
	Cond Node
	Then Node
	Else Node // nil if absent
}

func (i *If) Kind() NodeKind { return KindIf }

// MatchClause is one `pattern [guard] body` arm of a match form.
type MatchClause struct {
	Pattern Pattern
	Guard   Node // nil if no guard
	Body    Node
}

// Match is `(match expr clause...)`.
type Match struct {
	base
	Expr    Node
	Clauses []MatchClause
}

func (m *Match) Kind() NodeKind { return KindMatch }

// CatchClause is one `(catch pattern body...)` arm.
type CatchClause struct {
	Pattern Pattern
	Body    []Node
}

// TryCatch is `(try body... (catch p body...)* (finally body...)?)`.
type TryCatch struct {
	base
	Try     []Node
	Catches []CatchClause
	Finally []Node
}

func (t *TryCatch) Kind() NodeKind { return KindTryCatch }

// ParallelBinding is one `[name expr]` pair of a parallel form.
type ParallelBinding struct {
	Name string
	Expr Node
}

// Parallel is `(parallel [name expr]...)`.
type Parallel struct {
	base
	Bindings []ParallelBinding
}

func (p *Parallel) Kind() NodeKind { return KindParallel }

// WithResource is `(with-resource [name init-expr] body...)`.
type WithResource struct {
	base
	Name string
	Init Node
	Body []Node
}

func (w *WithResource) Kind() NodeKind { return KindWithResource }

// LogStep is `(log-step "name" expr)`; also the source form that lowers to
// IR's Step node (spec 4.D sugar). Parsed once, used for both log-step and
// the bare `step` keyword some planners emit interchangeably.
type LogStep struct {
	base
	Name string
	Expr Node
}

func (l *LogStep) Kind() NodeKind { return KindLogStep }

// DiscoverAgents is `(discover-agents criteria-expr)`.
type DiscoverAgents struct {
	base
	Criteria Node
}

func (d *DiscoverAgents) Kind() NodeKind { return KindDiscoverAgents }

// Intent is `(intent "name" :goal "..." :constraints {...} ...)`.
type Intent struct {
	base
	Name    string
	Options []MapEntry // keyword-keyed option list, preserves source order
}

func (i *Intent) Kind() NodeKind { return KindIntent }

// Edge is `(edge {:from id :to id :type :kw})`.
type Edge struct {
	base
	Map *MapExpr
}

func (e *Edge) Kind() NodeKind { return KindEdge }

// Capability is `(capability "id" :description "..." ...)`.
type Capability struct {
	base
	ID      string
	Options []MapEntry
}

func (c *Capability) Kind() NodeKind { return KindCapability }

// Module is `(module name (import ...)* form...)`.
type Module struct {
	base
	Name  string
	Forms []Node
}

func (m *Module) Kind() NodeKind { return KindModule }

// Import is `(import ns/name :as alias)`.
type Import struct {
	base
	Path  string
	Alias string
}

func (i *Import) Kind() NodeKind { return KindImport }

// Quote is `(quote expr)`.
type Quote struct {
	base
	Expr Node
}

func (q *Quote) Kind() NodeKind { return KindQuote }

// Call is `(call :capability-id args-map)`.
type Call struct {
	base
	CapabilityID string
	Args         Node
}

func (c *Call) Kind() NodeKind { return KindCall }

// TopLevelKind discriminates top-level program items.
type TopLevelKind int

const (
	TopExpression TopLevelKind = iota
	TopModuleDefinition
	TopTaskDefinition
)

// TopLevel is one parsed unit of a source file or REPL form.
type TopLevel struct {
	TopKind TopLevelKind
	Node    Node
}

// Constructors used by the parser; kept here so span-carrying base structs
// stay unexported while every node type is still trivially constructible.

func NewLiteral(span *value.Span, v value.Value) *Literal { return &Literal{base{span}, v} }
func NewSymbolRef(span *value.Span, ns, name string) *SymbolRef {
	return &SymbolRef{base{span}, ns, name}
}
func NewVector(span *value.Span, items []Node) *Vector { return &Vector{base{span}, items} }
func NewListExpr(span *value.Span, items []Node) *ListExpr {
	return &ListExpr{base{span}, items}
}
func NewMapExpr(span *value.Span, entries []MapEntry) *MapExpr {
	return &MapExpr{base{span}, entries}
}
func NewDef(span *value.Span, name string, expr Node) *Def { return &Def{base{span}, name, expr} }
func NewDefn(span *value.Span, name string, params []Param, variadic bool, body []Node) *Defn {
	return &Defn{base{span}, name, params, variadic, body}
}
func NewFn(span *value.Span, params []Param, variadic bool, body []Node) *Fn {
	return &Fn{base{span}, params, variadic, body}
}
func NewLet(span *value.Span, bindings []LetBinding, body []Node) *Let {
	return &Let{base{span}, bindings, body}
}
func NewDo(span *value.Span, exprs []Node) *Do { return &Do{base{span}, exprs} }
func NewIf(span *value.Span, cond, then, els Node) *If {
	return &If{base{span}, cond, then, els}
}
func NewMatch(span *value.Span, expr Node, clauses []MatchClause) *Match {
	return &Match{base{span}, expr, clauses}
}
func NewTryCatch(span *value.Span, try []Node, catches []CatchClause, finally []Node) *TryCatch {
	return &TryCatch{base{span}, try, catches, finally}
}
func NewParallel(span *value.Span, bindings []ParallelBinding) *Parallel {
	return &Parallel{base{span}, bindings}
}
func NewWithResource(span *value.Span, name string, init Node, body []Node) *WithResource {
	return &WithResource{base{span}, name, init, body}
}
func NewLogStep(span *value.Span, name string, expr Node) *LogStep {
	return &LogStep{base{span}, name, expr}
}
func NewDiscoverAgents(span *value.Span, criteria Node) *DiscoverAgents {
	return &DiscoverAgents{base{span}, criteria}
}
func NewIntent(span *value.Span, name string, opts []MapEntry) *Intent {
	return &Intent{base{span}, name, opts}
}
func NewEdge(span *value.Span, m *MapExpr) *Edge { return &Edge{base{span}, m} }
func NewCapability(span *value.Span, id string, opts []MapEntry) *Capability {
	return &Capability{base{span}, id, opts}
}
func NewModule(span *value.Span, name string, forms []Node) *Module {
	return &Module{base{span}, name, forms}
}
func NewImport(span *value.Span, path, alias string) *Import {
	return &Import{base{span}, path, alias}
}
func NewQuote(span *value.Span, expr Node) *Quote { return &Quote{base{span}, expr} }
func NewCall(span *value.Span, capID string, args Node) *Call {
	return &Call{base{span}, capID, args}
}
