package parser

import (
	"github.com/mandubian/ccos-sub004/rtfs/ast"
	"github.com/mandubian/ccos-sub004/rtfs/value"
)

type specialFormFn func(p *Parser, start *value.Span) (ast.Node, *value.Error)

// specialForms maps the leading symbol of a list form to its reader. Every
// form enumerated in the specification's grammar (4.B) is represented here;
// anything else falls through to a plain application/call in readList.
var specialForms map[string]specialFormFn

func init() {
	specialForms = map[string]specialFormFn{
		"def":             readDef,
		"defn":            readDefn,
		"fn":              readFn,
		"let":             readLet,
		"do":              readDo,
		"if":              readIf,
		"match":           readMatch,
		"try":             readTryCatch,
		"parallel":        readParallel,
		"with-resource":   readWithResource,
		"log-step":        readLogStep,
		"step":            readLogStep,
		"discover-agents": readDiscoverAgents,
		"intent":          readIntent,
		"edge":            readEdge,
		"capability":      readCapability,
		"module":          readModule,
		"import":          readImportForm,
		"quote":           readQuoteForm,
		"call":            readCall,
	}
}

func readDef(p *Parser, start *value.Span) (ast.Node, *value.Error) {
	nameTok, err := p.expect(TokSymbol, "def name")
	if err != nil {
		return nil, err
	}
	expr, err := p.readForm()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokRParen, "')'"); err != nil {
		return nil, err
	}
	return ast.NewDef(start, nameTok.Text, expr), nil
}

func readDefn(p *Parser, start *value.Span) (ast.Node, *value.Error) {
	nameTok, err := p.expect(TokSymbol, "defn name")
	if err != nil {
		return nil, err
	}
	params, variadic, err := p.readParamVector()
	if err != nil {
		return nil, err
	}
	body, err := p.readBodyUntilRParen(start)
	if err != nil {
		return nil, err
	}
	return ast.NewDefn(start, nameTok.Text, params, variadic, body), nil
}

func readFn(p *Parser, start *value.Span) (ast.Node, *value.Error) {
	params, variadic, err := p.readParamVector()
	if err != nil {
		return nil, err
	}
	body, err := p.readBodyUntilRParen(start)
	if err != nil {
		return nil, err
	}
	return ast.NewFn(start, params, variadic, body), nil
}

func readLet(p *Parser, start *value.Span) (ast.Node, *value.Error) {
	if _, err := p.expect(TokLBracket, "let bindings vector"); err != nil {
		return nil, err
	}
	var bindings []ast.LetBinding
	for {
		tok, err := p.peek(0)
		if err != nil {
			return nil, err
		}
		if tok.Kind == TokRBracket {
			p.next()
			break
		}
		patNode, err := p.readForm()
		if err != nil {
			return nil, err
		}
		pat, err := toPattern(patNode)
		if err != nil {
			return nil, err
		}
		expr, err := p.readForm()
		if err != nil {
			return nil, err
		}
		bindings = append(bindings, ast.LetBinding{Pattern: pat, Expr: expr})
	}
	body, err := p.readBodyUntilRParen(start)
	if err != nil {
		return nil, err
	}
	return ast.NewLet(start, bindings, body), nil
}

func readDo(p *Parser, start *value.Span) (ast.Node, *value.Error) {
	exprs, err := p.readUntilRParen(start)
	if err != nil {
		return nil, err
	}
	return ast.NewDo(start, exprs), nil
}

func readIf(p *Parser, start *value.Span) (ast.Node, *value.Error) {
	cond, err := p.readForm()
	if err != nil {
		return nil, err
	}
	then, err := p.readForm()
	if err != nil {
		return nil, err
	}
	tok, err := p.peek(0)
	if err != nil {
		return nil, err
	}
	var els ast.Node
	if tok.Kind != TokRParen {
		els, err = p.readForm()
		if err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(TokRParen, "')'"); err != nil {
		return nil, err
	}
	return ast.NewIf(start, cond, then, els), nil
}

func readMatch(p *Parser, start *value.Span) (ast.Node, *value.Error) {
	scrutinee, err := p.readForm()
	if err != nil {
		return nil, err
	}
	var clauses []ast.MatchClause
	for {
		tok, err := p.peek(0)
		if err != nil {
			return nil, err
		}
		if tok.Kind == TokRParen {
			p.next()
			break
		}
		patNode, err := p.readForm()
		if err != nil {
			return nil, err
		}
		pat, err := toMatchPattern(patNode)
		if err != nil {
			return nil, err
		}
		var guard ast.Node
		guardTok, err := p.peek(0)
		if err != nil {
			return nil, err
		}
		if guardTok.Kind == TokKeyword && guardTok.Text == "when" {
			p.next()
			guard, err = p.readForm()
			if err != nil {
				return nil, err
			}
		}
		body, err := p.readForm()
		if err != nil {
			return nil, err
		}
		clauses = append(clauses, ast.MatchClause{Pattern: pat, Guard: guard, Body: body})
	}
	return ast.NewMatch(start, scrutinee, clauses), nil
}

func readTryCatch(p *Parser, start *value.Span) (ast.Node, *value.Error) {
	var tryBody []ast.Node
	var catches []ast.CatchClause
	var finallyBody []ast.Node
	for {
		tok, err := p.peek(0)
		if err != nil {
			return nil, err
		}
		if tok.Kind == TokRParen {
			p.next()
			break
		}
		if tok.Kind == TokLParen {
			next, err := p.peek(1)
			if err != nil {
				return nil, err
			}
			if next.Kind == TokSymbol && next.Text == "catch" {
				p.next() // (
				p.next() // catch
				patNode, err := p.readForm()
				if err != nil {
					return nil, err
				}
				pat, err := toMatchPattern(patNode)
				if err != nil {
					return nil, err
				}
				body, err := p.readUntilRParen(start)
				if err != nil {
					return nil, err
				}
				catches = append(catches, ast.CatchClause{Pattern: pat, Body: body})
				continue
			}
			if next.Kind == TokSymbol && next.Text == "finally" {
				p.next()
				p.next()
				body, err := p.readUntilRParen(start)
				if err != nil {
					return nil, err
				}
				finallyBody = body
				continue
			}
		}
		form, err := p.readForm()
		if err != nil {
			return nil, err
		}
		tryBody = append(tryBody, form)
	}
	return ast.NewTryCatch(start, tryBody, catches, finallyBody), nil
}

func readParallel(p *Parser, start *value.Span) (ast.Node, *value.Error) {
	var bindings []ast.ParallelBinding
	for {
		tok, err := p.peek(0)
		if err != nil {
			return nil, err
		}
		if tok.Kind == TokRParen {
			p.next()
			break
		}
		if _, err := p.expect(TokLBracket, "parallel binding vector"); err != nil {
			return nil, err
		}
		nameTok, err := p.expect(TokSymbol, "parallel binding name")
		if err != nil {
			return nil, err
		}
		expr, err := p.readForm()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TokRBracket, "']'"); err != nil {
			return nil, err
		}
		bindings = append(bindings, ast.ParallelBinding{Name: nameTok.Text, Expr: expr})
	}
	return ast.NewParallel(start, bindings), nil
}

func readWithResource(p *Parser, start *value.Span) (ast.Node, *value.Error) {
	if _, err := p.expect(TokLBracket, "with-resource binding vector"); err != nil {
		return nil, err
	}
	nameTok, err := p.expect(TokSymbol, "resource binding name")
	if err != nil {
		return nil, err
	}
	init, err := p.readForm()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokRBracket, "']'"); err != nil {
		return nil, err
	}
	body, err := p.readBodyUntilRParen(start)
	if err != nil {
		return nil, err
	}
	return ast.NewWithResource(start, nameTok.Text, init, body), nil
}

func readLogStep(p *Parser, start *value.Span) (ast.Node, *value.Error) {
	nameTok, err := p.expect(TokString, "step name string")
	if err != nil {
		return nil, err
	}
	expr, err := p.readForm()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokRParen, "')'"); err != nil {
		return nil, err
	}
	return ast.NewLogStep(start, nameTok.Text, expr), nil
}

func readDiscoverAgents(p *Parser, start *value.Span) (ast.Node, *value.Error) {
	criteria, err := p.readForm()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokRParen, "')'"); err != nil {
		return nil, err
	}
	return ast.NewDiscoverAgents(start, criteria), nil
}

func readIntent(p *Parser, start *value.Span) (ast.Node, *value.Error) {
	nameTok, err := p.expect(TokString, "intent name string")
	if err != nil {
		return nil, err
	}
	opts, err := p.readKeywordOptionPairs(start)
	if err != nil {
		return nil, err
	}
	return ast.NewIntent(start, nameTok.Text, opts), nil
}

func readEdge(p *Parser, start *value.Span) (ast.Node, *value.Error) {
	mapNode, err := p.readForm()
	if err != nil {
		return nil, err
	}
	m, ok := mapNode.(*ast.MapExpr)
	if !ok {
		return nil, value.New(value.KindParse, "edge expects a map literal").WithSpan(start)
	}
	if _, err := p.expect(TokRParen, "')'"); err != nil {
		return nil, err
	}
	return ast.NewEdge(start, m), nil
}

func readCapability(p *Parser, start *value.Span) (ast.Node, *value.Error) {
	idTok, err := p.expect(TokString, "capability id string")
	if err != nil {
		return nil, err
	}
	opts, err := p.readKeywordOptionPairs(start)
	if err != nil {
		return nil, err
	}
	return ast.NewCapability(start, idTok.Text, opts), nil
}

func readModule(p *Parser, start *value.Span) (ast.Node, *value.Error) {
	nameTok, err := p.expect(TokSymbol, "module name")
	if err != nil {
		return nil, err
	}
	forms, err := p.readUntilRParen(start)
	if err != nil {
		return nil, err
	}
	return ast.NewModule(start, nameTok.Text, forms), nil
}

func readImportForm(p *Parser, start *value.Span) (ast.Node, *value.Error) {
	pathTok, err := p.expect(TokSymbol, "import path")
	if err != nil {
		return nil, err
	}
	alias := ""
	tok, err := p.peek(0)
	if err != nil {
		return nil, err
	}
	if tok.Kind == TokKeyword && tok.Text == "as" {
		p.next()
		aliasTok, err := p.expect(TokSymbol, "import alias")
		if err != nil {
			return nil, err
		}
		alias = aliasTok.Text
	}
	if _, err := p.expect(TokRParen, "')'"); err != nil {
		return nil, err
	}
	return ast.NewImport(start, pathTok.Text, alias), nil
}

func readQuoteForm(p *Parser, start *value.Span) (ast.Node, *value.Error) {
	expr, err := p.readForm()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokRParen, "')'"); err != nil {
		return nil, err
	}
	return ast.NewQuote(start, expr), nil
}

func readCall(p *Parser, start *value.Span) (ast.Node, *value.Error) {
	idTok, err := p.expect(TokKeyword, "capability id keyword")
	if err != nil {
		return nil, err
	}
	args, err := p.readForm()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokRParen, "')'"); err != nil {
		return nil, err
	}
	return ast.NewCall(start, idTok.Text, args), nil
}

// readBodyUntilRParen reads the remaining forms of a body and wraps
// multiple expressions implicitly the way `do` does, but callers keep the
// raw slice so the evaluator can sequence it directly without allocating an
// extra Do node when there is exactly one body expression.
func (p *Parser) readBodyUntilRParen(start *value.Span) ([]ast.Node, *value.Error) {
	return p.readUntilRParen(start)
}

// readParamVector reads a `[a b & rest]` parameter list for fn/defn,
// returning the parsed Param list and whether the list is variadic.
func (p *Parser) readParamVector() ([]ast.Param, bool, *value.Error) {
	if _, err := p.expect(TokLBracket, "parameter vector"); err != nil {
		return nil, false, err
	}
	var params []ast.Param
	variadic := false
	for {
		tok, err := p.peek(0)
		if err != nil {
			return nil, false, err
		}
		if tok.Kind == TokRBracket {
			p.next()
			break
		}
		if tok.Kind == TokAmpersand {
			p.next()
			nameTok, err := p.expect(TokSymbol, "variadic parameter name")
			if err != nil {
				return nil, false, err
			}
			params = append(params, ast.Param{Pattern: ast.SymbolPattern(nameTok.Text)})
			variadic = true
			continue
		}
		patNode, err := p.readForm()
		if err != nil {
			return nil, false, err
		}
		pat, err := toPattern(patNode)
		if err != nil {
			return nil, false, err
		}
		params = append(params, ast.Param{Pattern: pat})
	}
	return params, variadic, nil
}

// readKeywordOptionPairs reads trailing `:key value` pairs until the
// closing paren, used by intent/capability forms.
func (p *Parser) readKeywordOptionPairs(start *value.Span) ([]ast.MapEntry, *value.Error) {
	var opts []ast.MapEntry
	for {
		tok, err := p.peek(0)
		if err != nil {
			return nil, err
		}
		if tok.Kind == TokRParen {
			p.next()
			break
		}
		keyNode, err := p.readForm()
		if err != nil {
			return nil, err
		}
		val, err := p.readForm()
		if err != nil {
			return nil, err
		}
		opts = append(opts, ast.MapEntry{Key: keyNode, Value: val})
	}
	return opts, nil
}
