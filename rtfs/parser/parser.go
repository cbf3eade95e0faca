package parser

import (
	"github.com/mandubian/ccos-sub004/rtfs/ast"
	"github.com/mandubian/ccos-sub004/rtfs/value"
)

// Parser reads a token stream produced by a Lexer into AST nodes.
type Parser struct {
	lex  *Lexer
	buf  []Token
	done bool
}

// Parse lexes and parses RTFS source text into a sequence of TopLevel
// items. Each item is an Expression, ModuleDefinition, or TaskDefinition
// (capability/intent/edge forms at top level count as Expression).
func Parse(src string) ([]ast.TopLevel, *value.Error) {
	p := &Parser{lex: NewLexer(src)}
	var out []ast.TopLevel
	for {
		tok, err := p.peek(0)
		if err != nil {
			return nil, err
		}
		if tok.Kind == TokEOF {
			break
		}
		node, err := p.readForm()
		if err != nil {
			return nil, err
		}
		out = append(out, ast.TopLevel{TopKind: topKindFor(node), Node: node})
	}
	return out, nil
}

// ParseOne parses exactly one top-level form, erroring if trailing tokens
// remain. Used by the Arbiter's balanced-block extraction to validate a
// single `(do ...)` or `(intent ...)` block.
func ParseOne(src string) (ast.Node, *value.Error) {
	p := &Parser{lex: NewLexer(src)}
	node, err := p.readForm()
	if err != nil {
		return nil, err
	}
	tok, err := p.peek(0)
	if err != nil {
		return nil, err
	}
	if tok.Kind != TokEOF {
		return nil, value.New(value.KindParse, "unexpected trailing input after top-level form").WithSpan(&tok.Span)
	}
	return node, nil
}

func topKindFor(n ast.Node) ast.TopLevelKind {
	switch n.(type) {
	case *ast.Module:
		return ast.TopModuleDefinition
	default:
		return ast.TopExpression
	}
}

func (p *Parser) peek(offset int) (Token, *value.Error) {
	for len(p.buf) <= offset {
		if p.done {
			return p.buf[len(p.buf)-1], nil
		}
		tok, err := p.lex.Next()
		if err != nil {
			return Token{}, err
		}
		p.buf = append(p.buf, tok)
		if tok.Kind == TokEOF {
			p.done = true
		}
	}
	return p.buf[offset], nil
}

func (p *Parser) next() (Token, *value.Error) {
	tok, err := p.peek(0)
	if err != nil {
		return Token{}, err
	}
	if len(p.buf) > 0 {
		p.buf = p.buf[1:]
	}
	return tok, nil
}

func (p *Parser) expect(k TokenKind, what string) (Token, *value.Error) {
	tok, err := p.next()
	if err != nil {
		return Token{}, err
	}
	if tok.Kind != k {
		return Token{}, value.New(value.KindParse, "expected %s, got %q", what, tok.Text).WithSpan(&tok.Span)
	}
	return tok, nil
}

// readForm reads one complete AST node: an atom, a vector, a list (which
// may be a special form), or a map.
func (p *Parser) readForm() (ast.Node, *value.Error) {
	tok, err := p.peek(0)
	if err != nil {
		return nil, err
	}
	switch tok.Kind {
	case TokEOF:
		return nil, value.New(value.KindParse, "unexpected end of input").WithSpan(&tok.Span)
	case TokLParen:
		return p.readList()
	case TokLBracket:
		return p.readVector()
	case TokLBrace:
		return p.readMap()
	case TokQuote:
		p.next()
		inner, err := p.readForm()
		if err != nil {
			return nil, err
		}
		return ast.NewQuote(&tok.Span, inner), nil
	case TokInt:
		p.next()
		return p.literalInt(tok), nil
	case TokFloat:
		p.next()
		return p.literalFloat(tok), nil
	case TokString:
		p.next()
		return ast.NewLiteral(&tok.Span, value.String(tok.Text)), nil
	case TokKeyword:
		p.next()
		return ast.NewLiteral(&tok.Span, value.Keyword(tok.Text)), nil
	case TokSymbol:
		p.next()
		return p.symbolOrLiteral(tok), nil
	case TokAmpersand:
		return nil, value.New(value.KindParse, "unexpected '&' outside destructuring pattern").WithSpan(&tok.Span)
	default:
		return nil, value.New(value.KindParse, "unexpected token %q", tok.Text).WithSpan(&tok.Span)
	}
}

func (p *Parser) literalInt(tok Token) ast.Node {
	var n int64
	neg := false
	s := tok.Text
	if len(s) > 0 && s[0] == '-' {
		neg = true
		s = s[1:]
	}
	for _, r := range s {
		n = n*10 + int64(r-'0')
	}
	if neg {
		n = -n
	}
	return ast.NewLiteral(&tok.Span, value.Int(n))
}

func (p *Parser) literalFloat(tok Token) ast.Node {
	var f float64
	neg := false
	s := tok.Text
	if len(s) > 0 && s[0] == '-' {
		neg = true
		s = s[1:]
	}
	whole := true
	var frac float64 = 0.1
	for _, r := range s {
		if r == '.' {
			whole = false
			continue
		}
		d := float64(r - '0')
		if whole {
			f = f*10 + d
		} else {
			f += d * frac
			frac *= 0.1
		}
	}
	if neg {
		f = -f
	}
	return ast.NewLiteral(&tok.Span, value.Float(f))
}

func (p *Parser) symbolOrLiteral(tok Token) ast.Node {
	switch tok.Text {
	case "true":
		return ast.NewLiteral(&tok.Span, value.Bool_(true))
	case "false":
		return ast.NewLiteral(&tok.Span, value.Bool_(false))
	case "nil":
		return ast.NewLiteral(&tok.Span, value.Nil())
	}
	ns, name := splitNamespace(tok.Text)
	return ast.NewSymbolRef(&tok.Span, ns, name)
}

func splitNamespace(s string) (ns, name string) {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '/' && i > 0 && i < len(s)-1 {
			return s[:i], s[i+1:]
		}
	}
	return "", s
}

func (p *Parser) readVector() (ast.Node, *value.Error) {
	start, err := p.expect(TokLBracket, "'['")
	if err != nil {
		return nil, err
	}
	var items []ast.Node
	for {
		tok, err := p.peek(0)
		if err != nil {
			return nil, err
		}
		if tok.Kind == TokRBracket {
			p.next()
			break
		}
		if tok.Kind == TokEOF {
			return nil, value.New(value.KindParse, "unterminated vector literal").WithSpan(&start.Span)
		}
		if tok.Kind == TokAmpersand {
			p.next()
			items = append(items, ast.NewSymbolRef(&tok.Span, "", "&"))
			continue
		}
		item, err := p.readForm()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return ast.NewVector(&start.Span, items), nil
}

func (p *Parser) readMap() (ast.Node, *value.Error) {
	start, err := p.expect(TokLBrace, "'{'")
	if err != nil {
		return nil, err
	}
	var entries []ast.MapEntry
	for {
		tok, err := p.peek(0)
		if err != nil {
			return nil, err
		}
		if tok.Kind == TokRBrace {
			p.next()
			break
		}
		if tok.Kind == TokEOF {
			return nil, value.New(value.KindParse, "unterminated map literal").WithSpan(&start.Span)
		}
		key, err := p.readForm()
		if err != nil {
			return nil, err
		}
		val, err := p.readForm()
		if err != nil {
			return nil, err
		}
		entries = append(entries, ast.MapEntry{Key: key, Value: val})
	}
	return ast.NewMapExpr(&start.Span, entries), nil
}

// readList reads a `(...)` form and dispatches on the leading symbol to
// recognize special forms; anything else parses as a plain application.
func (p *Parser) readList() (ast.Node, *value.Error) {
	start, err := p.expect(TokLParen, "'('")
	if err != nil {
		return nil, err
	}
	headTok, err := p.peek(0)
	if err != nil {
		return nil, err
	}
	if headTok.Kind == TokSymbol {
		if fn, ok := specialForms[headTok.Text]; ok {
			p.next()
			return fn(p, &start.Span)
		}
	}
	items, err := p.readUntilRParen(&start.Span)
	if err != nil {
		return nil, err
	}
	return ast.NewListExpr(&start.Span, items), nil
}

func (p *Parser) readUntilRParen(start *value.Span) ([]ast.Node, *value.Error) {
	var items []ast.Node
	for {
		tok, err := p.peek(0)
		if err != nil {
			return nil, err
		}
		if tok.Kind == TokRParen {
			p.next()
			return items, nil
		}
		if tok.Kind == TokEOF {
			return nil, value.New(value.KindParse, "unterminated list").WithSpan(start)
		}
		item, err := p.readForm()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
}
