package ir

import (
	"github.com/mandubian/ccos-sub004/rtfs/ast"
	"github.com/mandubian/ccos-sub004/rtfs/value"
)

// ModuleRegistry resolves a qualified symbol's namespace to a module so the
// converter can validate `mod/name` references at lowering time. It is an
// external collaborator the converter consults but does not own.
type ModuleRegistry interface {
	HasExport(module, name string) bool
}

// Converter lowers a sequence of ast.TopLevel items to IR, maintaining a
// scope stack of name -> BindingInfo and a monotonic node-id counter.
type Converter struct {
	nextID   int64
	scopes   []map[string]BindingInfo
	registry ModuleRegistry
}

// NewConverter constructs a Converter with the builtins table seeded into
// the global (bottom) scope.
func NewConverter(registry ModuleRegistry) *Converter {
	c := &Converter{registry: registry}
	c.pushScope()
	for name, typ := range builtins {
		c.defineInScope(0, name, BindingFunction, typ)
	}
	return c
}

func (c *Converter) newID() int64 {
	c.nextID++
	return c.nextID
}

func (c *Converter) pushScope() {
	c.scopes = append(c.scopes, map[string]BindingInfo{})
}

func (c *Converter) popScope() {
	c.scopes = c.scopes[:len(c.scopes)-1]
}

func (c *Converter) defineInScope(depth int, name string, kind BindingKind, typ *value.Type) BindingInfo {
	info := BindingInfo{ID: c.newID(), Name: name, Type: typ, Kind: kind}
	c.scopes[depth][name] = info
	return info
}

// define adds a binding to the innermost (current) scope.
func (c *Converter) define(name string, kind BindingKind, typ *value.Type) BindingInfo {
	return c.defineInScope(len(c.scopes)-1, name, kind, typ)
}

func (c *Converter) lookup(name string) (BindingInfo, bool) {
	for i := len(c.scopes) - 1; i >= 0; i-- {
		if info, ok := c.scopes[i][name]; ok {
			return info, true
		}
	}
	return BindingInfo{}, false
}

// GlobalBindings returns the name -> BindingInfo table of the global
// (bottom) scope, which holds the builtins table seeded at construction
// plus any top-level def/defn the converter has lowered so far. A host
// uses this to seed an evaluator's root Env with matching binding ids.
func (c *Converter) GlobalBindings() map[string]BindingInfo {
	return c.scopes[0]
}

// Convert lowers a full program (the output of parser.Parse) to IR nodes,
// one per top-level item, in source order.
func (c *Converter) Convert(items []ast.TopLevel) ([]Node, *value.Error) {
	out := make([]Node, 0, len(items))
	for _, item := range items {
		node, err := c.convertNode(item.Node)
		if err != nil {
			return nil, err
		}
		out = append(out, node)
	}
	return out, nil
}

// ConvertOne lowers a single already-parsed AST node, for use by callers
// (REPL, plan re-synthesis) that work one form at a time.
func (c *Converter) ConvertOne(n ast.Node) (Node, *value.Error) {
	return c.convertNode(n)
}

func (c *Converter) convertNode(n ast.Node) (Node, *value.Error) {
	switch node := n.(type) {
	case *ast.Literal:
		return &Literal{base: base{id: c.newID(), span: node.Span()}, Value: node.Value}, nil
	case *ast.SymbolRef:
		return c.convertSymbolRef(node)
	case *ast.Vector:
		return c.convertVector(node)
	case *ast.MapExpr:
		return c.convertMap(node)
	case *ast.ListExpr:
		return c.convertApply(node)
	case *ast.Def:
		return c.convertDef(node)
	case *ast.Defn:
		return c.convertDefn(node)
	case *ast.Fn:
		return c.convertFn(node)
	case *ast.Let:
		return c.convertLet(node)
	case *ast.Do:
		return c.convertDo(node)
	case *ast.If:
		return c.convertIf(node)
	case *ast.Match:
		return c.convertMatch(node)
	case *ast.TryCatch:
		return c.convertTryCatch(node)
	case *ast.Parallel:
		return c.convertParallel(node)
	case *ast.WithResource:
		return c.convertWithResource(node)
	case *ast.LogStep:
		return c.convertLogStep(node)
	case *ast.DiscoverAgents:
		return c.convertDiscoverAgents(node)
	case *ast.Intent:
		return c.convertIntentAsLiteral(node)
	case *ast.Edge:
		return c.convertEdgeAsLiteral(node)
	case *ast.Capability:
		return c.convertCapabilityAsLiteral(node)
	case *ast.Module:
		return c.convertModule(node)
	case *ast.Import:
		return &Import{base: base{id: c.newID(), span: node.Span()}, Path: node.Path, Alias: node.Alias}, nil
	case *ast.Quote:
		v, err := astLiteralToValue(node.Expr)
		if err != nil {
			return nil, err
		}
		return &Quote{base: base{id: c.newID(), span: node.Span()}, Value: v}, nil
	case *ast.Call:
		args, err := c.convertNode(node.Args)
		if err != nil {
			return nil, err
		}
		return &Call{base: base{id: c.newID(), span: node.Span()}, CapabilityID: node.CapabilityID, Args: args}, nil
	default:
		return nil, value.New(value.KindLowering, "invalid special form: unrecognized node type").WithSpan(n.Span())
	}
}

func (c *Converter) convertSymbolRef(node *ast.SymbolRef) (Node, *value.Error) {
	if node.Namespace != "" {
		if c.registry != nil && !c.registry.HasExport(node.Namespace, node.Name) {
			return nil, value.New(value.KindUndefined, "undefined qualified symbol %s/%s", node.Namespace, node.Name).WithSpan(node.Span())
		}
		return &QualifiedSymbolRef{base: base{id: c.newID(), span: node.Span()}, Module: node.Namespace, Name: node.Name}, nil
	}
	info, ok := c.lookup(node.Name)
	if !ok {
		return nil, value.New(value.KindUndefined, "undefined symbol: %s", node.Name).WithSpan(node.Span())
	}
	if info.Kind == BindingResource {
		return &ResourceRef{base: base{id: c.newID(), typ: info.Type, span: node.Span()}, Name: node.Name, BindingID: info.ID}, nil
	}
	return &VariableRef{base: base{id: c.newID(), typ: info.Type, span: node.Span()}, Name: node.Name, BindingID: info.ID}, nil
}

func (c *Converter) convertVector(node *ast.Vector) (Node, *value.Error) {
	items := make([]Node, 0, len(node.Items))
	for _, it := range node.Items {
		lowered, err := c.convertNode(it)
		if err != nil {
			return nil, err
		}
		items = append(items, lowered)
	}
	return &Vector{base: base{id: c.newID(), span: node.Span()}, Items: items}, nil
}

func (c *Converter) convertMap(node *ast.MapExpr) (Node, *value.Error) {
	entries := make([]MapEntry, 0, len(node.Entries))
	for _, e := range node.Entries {
		key, err := c.convertNode(e.Key)
		if err != nil {
			return nil, err
		}
		val, err := c.convertNode(e.Value)
		if err != nil {
			return nil, err
		}
		entries = append(entries, MapEntry{Key: key, Value: val})
	}
	return &Map{base: base{id: c.newID(), span: node.Span()}, Entries: entries}, nil
}

func (c *Converter) convertApply(node *ast.ListExpr) (Node, *value.Error) {
	if len(node.Items) == 0 {
		return &Vector{base: base{id: c.newID(), span: node.Span()}}, nil
	}
	if sym, ok := node.Items[0].(*ast.SymbolRef); ok && sym.Namespace == "" {
		if access, handled, err := c.convertTaskContextAccess(node, sym.Name); handled || err != nil {
			return access, err
		}
	}
	fn, err := c.convertNode(node.Items[0])
	if err != nil {
		return nil, err
	}
	args := make([]Node, 0, len(node.Items)-1)
	for _, a := range node.Items[1:] {
		lowered, err := c.convertNode(a)
		if err != nil {
			return nil, err
		}
		args = append(args, lowered)
	}
	return &Apply{base: base{id: c.newID(), span: node.Span()}, Fn: fn, Args: args}, nil
}

// convertTaskContextAccess recognizes the `(set! key val)` / `(get key)`
// step-context intrinsics and lowers them to TaskContextAccess, sparing
// "set!" from needing a global binding and disambiguating single-argument
// "get" (step-context read) from the two/three-argument builtin map "get".
// Any other shape falls through to ordinary Apply lowering.
func (c *Converter) convertTaskContextAccess(node *ast.ListExpr, name string) (Node, bool, *value.Error) {
	args := node.Items[1:]
	switch {
	case name == "set!" && len(args) == 2:
		key, err := c.convertNode(args[0])
		if err != nil {
			return nil, true, err
		}
		val, err := c.convertNode(args[1])
		if err != nil {
			return nil, true, err
		}
		return &TaskContextAccess{base: base{id: c.newID(), span: node.Span()}, IsSet: true, Key: key, Value: val}, true, nil
	case name == "get" && len(args) == 1:
		key, err := c.convertNode(args[0])
		if err != nil {
			return nil, true, err
		}
		return &TaskContextAccess{base: base{id: c.newID(), span: node.Span()}, IsSet: false, Key: key}, true, nil
	default:
		return nil, false, nil
	}
}

func (c *Converter) convertDef(node *ast.Def) (Node, *value.Error) {
	expr, err := c.convertNode(node.Expr)
	if err != nil {
		return nil, err
	}
	info := c.define(node.Name, BindingVariable, expr.Type())
	binding := &VariableBinding{base: base{id: c.newID(), span: node.Span()}, Name: node.Name, BindingID: info.ID}
	return &VariableDef{base: base{id: c.newID(), span: node.Span()}, Binding: binding, Expr: expr}, nil
}

func (c *Converter) convertDefn(node *ast.Defn) (Node, *value.Error) {
	info := c.define(node.Name, BindingFunction, nil)
	binding := &VariableBinding{base: base{id: c.newID(), span: node.Span()}, Name: node.Name, BindingID: info.ID}
	lambda, err := c.convertLambdaParts(node.Span(), node.Params, node.Variadic, node.Body)
	if err != nil {
		return nil, err
	}
	return &FunctionDef{base: base{id: c.newID(), span: node.Span()}, Binding: binding, Lambda: lambda}, nil
}

func (c *Converter) convertFn(node *ast.Fn) (Node, *value.Error) {
	return c.convertLambdaParts(node.Span(), node.Params, node.Variadic, node.Body)
}

// convertLambdaParts lowers a lambda's parameter list and body in a fresh
// scope, then runs capture analysis over the lowered body.
func (c *Converter) convertLambdaParts(span *value.Span, astParams []ast.Param, variadic bool, astBody []ast.Node) (*Lambda, *value.Error) {
	c.pushScope()
	defer c.popScope()

	firstID := c.nextID + 1
	local := map[int64]bool{}
	params := make([]*Param, 0, len(astParams))
	for _, ap := range astParams {
		p, err := c.convertParam(ap, local)
		if err != nil {
			return nil, err
		}
		params = append(params, p)
	}

	body, err := c.convertBody(astBody, local)
	if err != nil {
		return nil, err
	}

	// Every binding defined while lowering this lambda (parameters and the
	// let/match/catch names in its body) and every builtin is not a capture.
	for id := firstID; id <= c.nextID; id++ {
		local[id] = true
	}
	for name, info := range c.scopes[0] {
		if _, ok := builtins[name]; ok {
			local[info.ID] = true
		}
	}
	captures := collectCaptures(body, local)
	return &Lambda{
		base:     base{id: c.newID(), span: span},
		Params:   params,
		Variadic: variadic,
		Body:     body,
		Captures: captures,
	}, nil
}

func (c *Converter) convertParam(ap ast.Param, local map[int64]bool) (*Param, *value.Error) {
	if ap.Pattern.Kind == ast.PatternSymbol || ap.Pattern.Kind == ast.PatternWildcard {
		name := ap.Pattern.Name
		if ap.Pattern.Kind == ast.PatternWildcard {
			name = "_"
		}
		info := c.define(name, BindingParameter, nil)
		local[info.ID] = true
		binding := &VariableBinding{base: base{id: c.newID()}, Name: name, BindingID: info.ID}
		return &Param{base: base{id: c.newID()}, Binding: binding}, nil
	}
	d, err := c.convertDestructure(ap.Pattern, BindingParameter, local)
	if err != nil {
		return nil, err
	}
	return &Param{base: base{id: c.newID()}, Destructure: d}, nil
}

// convertBody lowers a body sequence (lambda body, catch/finally body,
// with-resource body); `local` is accepted for signature symmetry with
// callers that track a lambda-local binding set but is not otherwise used
// here since ordinary body expressions don't pre-declare names themselves.
func (c *Converter) convertBody(exprs []ast.Node, local map[int64]bool) ([]Node, *value.Error) {
	out := make([]Node, 0, len(exprs))
	for _, e := range exprs {
		lowered, err := c.convertNode(e)
		if err != nil {
			return nil, err
		}
		out = append(out, lowered)
	}
	return out, nil
}

func (c *Converter) convertLet(node *ast.Let) (Node, *value.Error) {
	c.pushScope()
	defer c.popScope()

	local := map[int64]bool{}

	// Pass 1: pre-define placeholder bindings for every value that is
	// syntactically a `fn`, so the name is visible while lowering bodies
	// (including its own, enabling self-recursion).
	preDeclared := make([]BindingInfo, len(node.Bindings))
	for i, b := range node.Bindings {
		if _, isFn := b.Expr.(*ast.Fn); isFn && b.Pattern.Kind == ast.PatternSymbol {
			info := c.define(b.Pattern.Name, BindingFunction, nil)
			local[info.ID] = true
			preDeclared[i] = info
		}
	}

	bindings := make([]LetBinding, 0, len(node.Bindings))
	for i, b := range node.Bindings {
		expr, err := c.convertNode(b.Expr)
		if err != nil {
			return nil, err
		}
		if preDeclared[i].ID != 0 {
			binding := &VariableBinding{base: base{id: c.newID()}, Name: b.Pattern.Name, BindingID: preDeclared[i].ID}
			bindings = append(bindings, LetBinding{Binding: binding, Expr: expr, IsPreDeclared: true})
			continue
		}
		if b.Pattern.Kind == ast.PatternSymbol {
			info := c.define(b.Pattern.Name, BindingVariable, expr.Type())
			local[info.ID] = true
			binding := &VariableBinding{base: base{id: c.newID()}, Name: b.Pattern.Name, BindingID: info.ID}
			bindings = append(bindings, LetBinding{Binding: binding, Expr: expr})
			continue
		}
		d, err := c.convertDestructure(b.Pattern, BindingVariable, local)
		if err != nil {
			return nil, err
		}
		bindings = append(bindings, LetBinding{Destructure: d, Expr: expr})
	}

	body, err := c.convertBody(node.Body, local)
	if err != nil {
		return nil, err
	}
	return &Let{base: base{id: c.newID(), span: node.Span()}, Bindings: bindings, Body: body}, nil
}

func (c *Converter) convertDo(node *ast.Do) (Node, *value.Error) {
	exprs := make([]Node, 0, len(node.Exprs))
	for _, e := range node.Exprs {
		lowered, err := c.convertNode(e)
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, lowered)
	}
	return &Do{base: base{id: c.newID(), span: node.Span()}, Exprs: exprs}, nil
}

func (c *Converter) convertIf(node *ast.If) (Node, *value.Error) {
	cond, err := c.convertNode(node.Cond)
	if err != nil {
		return nil, err
	}
	then, err := c.convertNode(node.Then)
	if err != nil {
		return nil, err
	}
	var els Node
	if node.Else != nil {
		els, err = c.convertNode(node.Else)
		if err != nil {
			return nil, err
		}
	}
	return &If{base: base{id: c.newID(), span: node.Span()}, Cond: cond, Then: then, Else: els}, nil
}

func (c *Converter) convertMatch(node *ast.Match) (Node, *value.Error) {
	expr, err := c.convertNode(node.Expr)
	if err != nil {
		return nil, err
	}
	clauses := make([]MatchClause, 0, len(node.Clauses))
	for _, cl := range node.Clauses {
		c.pushScope()
		local := map[int64]bool{}
		d, err := c.convertDestructure(cl.Pattern, BindingVariable, local)
		if err != nil {
			c.popScope()
			return nil, err
		}
		var guard Node
		if cl.Guard != nil {
			guard, err = c.convertNode(cl.Guard)
			if err != nil {
				c.popScope()
				return nil, err
			}
		}
		body, err := c.convertNode(cl.Body)
		c.popScope()
		if err != nil {
			return nil, err
		}
		clauses = append(clauses, MatchClause{Destructure: d, Guard: guard, Body: body})
	}
	return &Match{base: base{id: c.newID(), span: node.Span()}, Expr: expr, Clauses: clauses}, nil
}

func (c *Converter) convertTryCatch(node *ast.TryCatch) (Node, *value.Error) {
	tryBody := make([]Node, 0, len(node.Try))
	for _, e := range node.Try {
		lowered, err := c.convertNode(e)
		if err != nil {
			return nil, err
		}
		tryBody = append(tryBody, lowered)
	}
	catches := make([]CatchClause, 0, len(node.Catches))
	for _, cc := range node.Catches {
		c.pushScope()
		local := map[int64]bool{}
		d, err := c.convertDestructure(cc.Pattern, BindingVariable, local)
		if err != nil {
			c.popScope()
			return nil, err
		}
		body, err := c.convertBody(cc.Body, local)
		c.popScope()
		if err != nil {
			return nil, err
		}
		catches = append(catches, CatchClause{Destructure: d, Body: body})
	}
	var finallyBody []Node
	if len(node.Finally) > 0 {
		finallyBody = make([]Node, 0, len(node.Finally))
		for _, e := range node.Finally {
			lowered, err := c.convertNode(e)
			if err != nil {
				return nil, err
			}
			finallyBody = append(finallyBody, lowered)
		}
	}
	return &TryCatch{base: base{id: c.newID(), span: node.Span()}, Try: tryBody, Catches: catches, Finally: finallyBody}, nil
}

func (c *Converter) convertParallel(node *ast.Parallel) (Node, *value.Error) {
	c.pushScope()
	defer c.popScope()
	bindings := make([]ParallelBinding, 0, len(node.Bindings))
	for _, b := range node.Bindings {
		expr, err := c.convertNode(b.Expr)
		if err != nil {
			return nil, err
		}
		info := c.define(b.Name, BindingVariable, expr.Type())
		binding := &VariableBinding{base: base{id: c.newID()}, Name: b.Name, BindingID: info.ID}
		bindings = append(bindings, ParallelBinding{Binding: binding, Expr: expr})
	}
	return &Parallel{base: base{id: c.newID(), span: node.Span()}, Bindings: bindings}, nil
}

func (c *Converter) convertWithResource(node *ast.WithResource) (Node, *value.Error) {
	init, err := c.convertNode(node.Init)
	if err != nil {
		return nil, err
	}
	c.pushScope()
	defer c.popScope()
	info := c.define(node.Name, BindingResource, nil)
	binding := &VariableBinding{base: base{id: c.newID()}, Name: node.Name, BindingID: info.ID}
	body, err := c.convertBody(node.Body, map[int64]bool{info.ID: true})
	if err != nil {
		return nil, err
	}
	return &WithResource{base: base{id: c.newID(), span: node.Span()}, Binding: binding, Init: init, Body: body}, nil
}

func (c *Converter) convertLogStep(node *ast.LogStep) (Node, *value.Error) {
	expr, err := c.convertNode(node.Expr)
	if err != nil {
		return nil, err
	}
	return &LogStep{base: base{id: c.newID(), span: node.Span()}, Name: node.Name, Expr: expr}, nil
}

func (c *Converter) convertDiscoverAgents(node *ast.DiscoverAgents) (Node, *value.Error) {
	criteria, err := c.convertNode(node.Criteria)
	if err != nil {
		return nil, err
	}
	return &DiscoverAgents{base: base{id: c.newID(), span: node.Span()}, Criteria: criteria}, nil
}

// convertIntentAsLiteral, convertEdgeAsLiteral and convertCapabilityAsLiteral
// lower the declarative `intent`/`edge`/`capability` forms to Map literals;
// the Arbiter and marketplace packages read these maps directly rather than
// needing dedicated IR node kinds, since these forms are never evaluated
// inside a lambda body — they describe data, not control flow.
func (c *Converter) convertIntentAsLiteral(node *ast.Intent) (Node, *value.Error) {
	entries := []MapEntry{{
		Key:   &Literal{base: base{id: c.newID()}, Value: value.Keyword("name")},
		Value: &Literal{base: base{id: c.newID()}, Value: value.String(node.Name)},
	}}
	for _, opt := range node.Options {
		key, err := c.convertNode(opt.Key)
		if err != nil {
			return nil, err
		}
		val, err := c.convertNode(opt.Value)
		if err != nil {
			return nil, err
		}
		entries = append(entries, MapEntry{Key: key, Value: val})
	}
	return &Map{base: base{id: c.newID(), span: node.Span()}, Entries: entries}, nil
}

func (c *Converter) convertEdgeAsLiteral(node *ast.Edge) (Node, *value.Error) {
	return c.convertMap(node.Map)
}

func (c *Converter) convertCapabilityAsLiteral(node *ast.Capability) (Node, *value.Error) {
	entries := []MapEntry{{
		Key:   &Literal{base: base{id: c.newID()}, Value: value.Keyword("id")},
		Value: &Literal{base: base{id: c.newID()}, Value: value.String(node.ID)},
	}}
	for _, opt := range node.Options {
		key, err := c.convertNode(opt.Key)
		if err != nil {
			return nil, err
		}
		val, err := c.convertNode(opt.Value)
		if err != nil {
			return nil, err
		}
		entries = append(entries, MapEntry{Key: key, Value: val})
	}
	return &Map{base: base{id: c.newID(), span: node.Span()}, Entries: entries}, nil
}

func (c *Converter) convertModule(node *ast.Module) (Node, *value.Error) {
	c.pushScope()
	defer c.popScope()
	forms := make([]Node, 0, len(node.Forms))
	for _, f := range node.Forms {
		lowered, err := c.convertNode(f)
		if err != nil {
			return nil, err
		}
		forms = append(forms, lowered)
	}
	return &Module{base: base{id: c.newID(), span: node.Span()}, Name: node.Name, Forms: forms}, nil
}

// convertDestructure lowers an ast.Pattern into an ir.Destructure, defining
// every name it binds in the current scope. Literal and keyword patterns
// reach it only from match/catch clauses; let/param contexts reject those
// at the parser layer already (toPattern vs toMatchPattern), so this
// function trusts its caller.
func (c *Converter) convertDestructure(pat ast.Pattern, kind BindingKind, local map[int64]bool) (*Destructure, *value.Error) {
	switch pat.Kind {
	case ast.PatternSymbol:
		info := c.define(pat.Name, kind, nil)
		local[info.ID] = true
		binding := &VariableBinding{base: base{id: c.newID()}, Name: pat.Name, BindingID: info.ID}
		return &Destructure{base: base{id: c.newID()}, DestructureKind: DestructureSymbol, Binding: binding}, nil
	case ast.PatternWildcard:
		return &Destructure{base: base{id: c.newID()}, DestructureKind: DestructureWildcard}, nil
	case ast.PatternLiteral:
		lit, err := c.convertNode(pat.Literal)
		if err != nil {
			return nil, err
		}
		return &Destructure{base: base{id: c.newID()}, DestructureKind: DestructureLiteral, Literal: lit}, nil
	case ast.PatternKeyword:
		return &Destructure{base: base{id: c.newID()}, DestructureKind: DestructureKeyword, Keyword: pat.Name}, nil
	case ast.PatternVector:
		d := &Destructure{base: base{id: c.newID()}, DestructureKind: DestructureVector}
		for _, elem := range pat.Elements {
			ed, err := c.convertDestructure(elem, kind, local)
			if err != nil {
				return nil, err
			}
			d.Elements = append(d.Elements, ed)
		}
		if pat.Rest != nil {
			info := c.define(pat.Rest.Name, kind, nil)
			local[info.ID] = true
			d.Rest = &VariableBinding{base: base{id: c.newID()}, Name: pat.Rest.Name, BindingID: info.ID}
		}
		if pat.As != "" {
			info := c.define(pat.As, kind, nil)
			local[info.ID] = true
			d.As = &VariableBinding{base: base{id: c.newID()}, Name: pat.As, BindingID: info.ID}
		}
		return d, nil
	case ast.PatternMap:
		if pat.OverlapsKeysAndFields() {
			return nil, value.New(value.KindLowering, "invalid pattern: ':keys' name overlaps an explicit field")
		}
		d := &Destructure{base: base{id: c.newID()}, DestructureKind: DestructureMap}
		for _, f := range pat.Fields {
			fd, err := c.convertDestructure(f.Pattern, kind, local)
			if err != nil {
				return nil, err
			}
			d.Fields = append(d.Fields, DestructureField{Key: f.Key, Pattern: fd})
		}
		for _, k := range pat.Keys {
			info := c.define(k, kind, nil)
			local[info.ID] = true
			d.Keys = append(d.Keys, &VariableBinding{base: base{id: c.newID()}, Name: k, BindingID: info.ID})
		}
		if pat.Rest != nil {
			info := c.define(pat.Rest.Name, kind, nil)
			local[info.ID] = true
			d.Rest = &VariableBinding{base: base{id: c.newID()}, Name: pat.Rest.Name, BindingID: info.ID}
		}
		if pat.As != "" {
			info := c.define(pat.As, kind, nil)
			local[info.ID] = true
			d.As = &VariableBinding{base: base{id: c.newID()}, Name: pat.As, BindingID: info.ID}
		}
		return d, nil
	default:
		return nil, value.New(value.KindLowering, "invalid pattern kind")
	}
}

// astLiteralToValue converts a quoted AST subtree to a Value without
// evaluating it, for `(quote expr)`. Only the literal/collection subset is
// supported since quoting a special form has no defined runtime value.
func astLiteralToValue(n ast.Node) (value.Value, *value.Error) {
	switch node := n.(type) {
	case *ast.Literal:
		return node.Value, nil
	case *ast.SymbolRef:
		if node.Namespace != "" {
			return value.Symbol(node.Namespace + "/" + node.Name), nil
		}
		return value.Symbol(node.Name), nil
	case *ast.Vector:
		items := make([]value.Value, 0, len(node.Items))
		for _, it := range node.Items {
			v, err := astLiteralToValue(it)
			if err != nil {
				return value.Value{}, err
			}
			items = append(items, v)
		}
		return value.VectorFrom(items), nil
	case *ast.ListExpr:
		items := make([]value.Value, 0, len(node.Items))
		for _, it := range node.Items {
			v, err := astLiteralToValue(it)
			if err != nil {
				return value.Value{}, err
			}
			items = append(items, v)
		}
		return value.ListFrom(items), nil
	case *ast.MapExpr:
		m := value.EmptyMap()
		for _, e := range node.Entries {
			k, err := astLiteralToValue(e.Key)
			if err != nil {
				return value.Value{}, err
			}
			v, err := astLiteralToValue(e.Value)
			if err != nil {
				return value.Value{}, err
			}
			key, kerr := value.ToMapKey(k)
			if kerr != nil {
				return value.Value{}, value.New(value.KindLowering, "invalid quoted map key").WithSpan(e.Key.Span())
			}
			assoc, aerr := value.Assoc(m, key, v)
			if aerr != nil {
				return value.Value{}, aerr
			}
			m = assoc
		}
		return m, nil
	default:
		return value.Value{}, value.New(value.KindLowering, "cannot quote this form").WithSpan(n.Span())
	}
}

// collectCaptures walks a lowered lambda body collecting every referenced
// binding id that is not in `local` (the set of ids the lambda itself
// introduced via parameters, destructuring, or internal let/match/catch
// bindings at this lambda's own nesting level). Nested Lambda nodes are not
// descended into; their own precomputed Captures stand in for whatever
// free references they contain, so a binding captured by an inner closure
// still bubbles up correctly to an outer one when it is not local there.
func collectCaptures(body []Node, local map[int64]bool) []BindingInfo {
	seen := map[int64]BindingInfo{}
	var order []int64
	var walk func(n Node)
	record := func(info BindingInfo) {
		if local[info.ID] {
			return
		}
		if _, ok := seen[info.ID]; ok {
			return
		}
		seen[info.ID] = info
		order = append(order, info.ID)
	}
	walk = func(n Node) {
		if n == nil {
			return
		}
		switch node := n.(type) {
		case *Literal:
		case *VariableRef:
			record(BindingInfo{ID: node.BindingID, Name: node.Name, Type: node.Type(), Kind: BindingVariable})
		case *ResourceRef:
			record(BindingInfo{ID: node.BindingID, Name: node.Name, Type: node.Type(), Kind: BindingResource})
		case *QualifiedSymbolRef:
		case *Vector:
			for _, it := range node.Items {
				walk(it)
			}
		case *Map:
			for _, e := range node.Entries {
				walk(e.Key)
				walk(e.Value)
			}
		case *Apply:
			walk(node.Fn)
			for _, a := range node.Args {
				walk(a)
			}
		case *If:
			walk(node.Cond)
			walk(node.Then)
			walk(node.Else)
		case *Let:
			for _, b := range node.Bindings {
				walk(b.Expr)
			}
			for _, b := range node.Body {
				walk(b)
			}
		case *Do:
			for _, e := range node.Exprs {
				walk(e)
			}
		case *Match:
			walk(node.Expr)
			for _, cl := range node.Clauses {
				walk(cl.Guard)
				walk(cl.Body)
			}
		case *TryCatch:
			for _, e := range node.Try {
				walk(e)
			}
			for _, cc := range node.Catches {
				for _, e := range cc.Body {
					walk(e)
				}
			}
			for _, e := range node.Finally {
				walk(e)
			}
		case *Parallel:
			for _, b := range node.Bindings {
				walk(b.Expr)
			}
		case *WithResource:
			walk(node.Init)
			for _, e := range node.Body {
				walk(e)
			}
		case *LogStep:
			walk(node.Expr)
		case *DiscoverAgents:
			walk(node.Criteria)
		case *TaskContextAccess:
			walk(node.Key)
			walk(node.Value)
		case *Call:
			walk(node.Args)
		case *VariableDef:
			walk(node.Expr)
		case *FunctionDef:
			// The nested function's own captures already account for its
			// free variables; nothing further to walk here.
		case *Lambda:
			for _, capture := range node.Captures {
				record(capture)
			}
		case *Module:
			for _, f := range node.Forms {
				walk(f)
			}
		case *Quote:
		case *Import:
		case *Destructure:
		}
	}
	for _, n := range body {
		walk(n)
	}
	out := make([]BindingInfo, 0, len(order))
	for _, id := range order {
		out = append(out, seen[id])
	}
	return out
}
