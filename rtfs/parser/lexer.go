// Package parser turns RTFS surface syntax into an AST. The parser is pure
// (no I/O) and hand-written as a lexer plus recursive-descent reader, in the
// tradition of small Lisp-family parsers; it does not depend on a PEG
// library (see DESIGN.md for why the corpus offers no idiomatic Go
// replacement for the original's `pest` grammar).
package parser

import (
	"strings"
	"unicode"

	"github.com/mandubian/ccos-sub004/rtfs/value"
)

// TokenKind enumerates the lexical token categories.
type TokenKind int

const (
	TokEOF TokenKind = iota
	TokLParen
	TokRParen
	TokLBracket
	TokRBracket
	TokLBrace
	TokRBrace
	TokSymbol
	TokKeyword
	TokString
	TokInt
	TokFloat
	TokAmpersand // & in destructuring patterns
	TokQuote     // '
)

// Token is one lexical unit with its source span.
type Token struct {
	Kind TokenKind
	Text string
	Span value.Span
}

// Lexer scans RTFS source text into a token stream, skipping whitespace and
// `;` line comments.
type Lexer struct {
	src       []rune
	pos       int
	line, col int
}

// NewLexer constructs a Lexer over the given source text.
func NewLexer(src string) *Lexer {
	return &Lexer{src: []rune(src), line: 1, col: 1}
}

func (l *Lexer) peek() (rune, bool) {
	if l.pos >= len(l.src) {
		return 0, false
	}
	return l.src[l.pos], true
}

func (l *Lexer) peekAt(offset int) (rune, bool) {
	if l.pos+offset >= len(l.src) {
		return 0, false
	}
	return l.src[l.pos+offset], true
}

func (l *Lexer) advance() (rune, bool) {
	r, ok := l.peek()
	if !ok {
		return 0, false
	}
	l.pos++
	if r == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	return r, true
}

func isWhitespace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\r' || r == '\n'
}

func isSymbolStart(r rune) bool {
	if unicode.IsLetter(r) {
		return true
	}
	switch r {
	case '_', '+', '-', '*', '/', '<', '=', '>', '!', '?':
		return true
	}
	return false
}

func isSymbolCont(r rune) bool {
	return isSymbolStart(r) || unicode.IsDigit(r) || r == '.'
}

func (l *Lexer) skipIgnorable() {
	for {
		r, ok := l.peek()
		if !ok {
			return
		}
		if isWhitespace(r) {
			l.advance()
			continue
		}
		if r == ';' {
			for {
				r2, ok2 := l.peek()
				if !ok2 || r2 == '\n' {
					break
				}
				l.advance()
			}
			continue
		}
		return
	}
}

// Next returns the next token in the stream, or a TokEOF token once the
// source is exhausted.
func (l *Lexer) Next() (Token, *value.Error) {
	l.skipIgnorable()
	startLine, startCol := l.line, l.col
	r, ok := l.peek()
	if !ok {
		return Token{Kind: TokEOF, Span: span(startLine, startCol, l.line, l.col, "")}, nil
	}
	switch {
	case r == '(':
		l.advance()
		return Token{Kind: TokLParen, Text: "(", Span: span(startLine, startCol, l.line, l.col, "(")}, nil
	case r == ')':
		l.advance()
		return Token{Kind: TokRParen, Text: ")", Span: span(startLine, startCol, l.line, l.col, ")")}, nil
	case r == '[':
		l.advance()
		return Token{Kind: TokLBracket, Text: "[", Span: span(startLine, startCol, l.line, l.col, "[")}, nil
	case r == ']':
		l.advance()
		return Token{Kind: TokRBracket, Text: "]", Span: span(startLine, startCol, l.line, l.col, "]")}, nil
	case r == '{':
		l.advance()
		return Token{Kind: TokLBrace, Text: "{", Span: span(startLine, startCol, l.line, l.col, "{")}, nil
	case r == '}':
		l.advance()
		return Token{Kind: TokRBrace, Text: "}", Span: span(startLine, startCol, l.line, l.col, "}")}, nil
	case r == '&':
		l.advance()
		return Token{Kind: TokAmpersand, Text: "&", Span: span(startLine, startCol, l.line, l.col, "&")}, nil
	case r == '\'':
		l.advance()
		return Token{Kind: TokQuote, Text: "'", Span: span(startLine, startCol, l.line, l.col, "'")}, nil
	case r == ':':
		return l.lexKeyword(startLine, startCol)
	case r == '"':
		return l.lexString(startLine, startCol)
	case unicode.IsDigit(r) || (r == '-' && isDigitAhead(l)):
		return l.lexNumber(startLine, startCol)
	case isSymbolStart(r):
		return l.lexSymbol(startLine, startCol)
	default:
		l.advance()
		return Token{}, value.New(value.KindParse, "unexpected character %q", r).
			WithSpan(&value.Span{StartLine: startLine, StartCol: startCol, EndLine: l.line, EndCol: l.col})
	}
}

func isDigitAhead(l *Lexer) bool {
	r, ok := l.peekAt(1)
	return ok && unicode.IsDigit(r)
}

func (l *Lexer) lexKeyword(startLine, startCol int) (Token, *value.Error) {
	l.advance() // consume ':'
	var b strings.Builder
	for {
		r, ok := l.peek()
		if !ok || !isSymbolCont(r) {
			break
		}
		b.WriteRune(r)
		l.advance()
	}
	if b.Len() == 0 {
		return Token{}, value.New(value.KindParse, "empty keyword").
			WithSpan(&value.Span{StartLine: startLine, StartCol: startCol, EndLine: l.line, EndCol: l.col})
	}
	return Token{Kind: TokKeyword, Text: b.String(), Span: span(startLine, startCol, l.line, l.col, ":"+b.String())}, nil
}

func (l *Lexer) lexSymbol(startLine, startCol int) (Token, *value.Error) {
	var b strings.Builder
	r, _ := l.peek()
	b.WriteRune(r)
	l.advance()
	for {
		r, ok := l.peek()
		if !ok || !isSymbolCont(r) {
			// allow namespace separator
			if ok && r == '/' {
				b.WriteRune(r)
				l.advance()
				continue
			}
			break
		}
		b.WriteRune(r)
		l.advance()
	}
	return Token{Kind: TokSymbol, Text: b.String(), Span: span(startLine, startCol, l.line, l.col, b.String())}, nil
}

func (l *Lexer) lexNumber(startLine, startCol int) (Token, *value.Error) {
	var b strings.Builder
	if r, ok := l.peek(); ok && r == '-' {
		b.WriteRune(r)
		l.advance()
	}
	isFloat := false
	for {
		r, ok := l.peek()
		if !ok {
			break
		}
		if unicode.IsDigit(r) {
			b.WriteRune(r)
			l.advance()
			continue
		}
		if r == '.' {
			if r2, ok2 := l.peekAt(1); ok2 && unicode.IsDigit(r2) && !isFloat {
				isFloat = true
				b.WriteRune(r)
				l.advance()
				continue
			}
		}
		break
	}
	kind := TokInt
	if isFloat {
		kind = TokFloat
	}
	return Token{Kind: kind, Text: b.String(), Span: span(startLine, startCol, l.line, l.col, b.String())}, nil
}

func (l *Lexer) lexString(startLine, startCol int) (Token, *value.Error) {
	l.advance() // opening quote
	var b strings.Builder
	for {
		r, ok := l.peek()
		if !ok {
			return Token{}, value.New(value.KindParse, "unterminated string literal").
				WithSpan(&value.Span{StartLine: startLine, StartCol: startCol, EndLine: l.line, EndCol: l.col})
		}
		if r == '"' {
			l.advance()
			break
		}
		if r == '\\' {
			l.advance()
			esc, ok := l.peek()
			if !ok {
				return Token{}, value.New(value.KindParse, "unterminated escape sequence").
					WithSpan(&value.Span{StartLine: l.line, StartCol: l.col, EndLine: l.line, EndCol: l.col})
			}
			switch esc {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case 'r':
				b.WriteByte('\r')
			case '"':
				b.WriteByte('"')
			case '\\':
				b.WriteByte('\\')
			default:
				return Token{}, value.New(value.KindParse, "invalid escape sequence \\%c", esc).
					WithSpan(&value.Span{StartLine: l.line, StartCol: l.col, EndLine: l.line, EndCol: l.col})
			}
			l.advance()
			continue
		}
		b.WriteRune(r)
		l.advance()
	}
	return Token{Kind: TokString, Text: b.String(), Span: span(startLine, startCol, l.line, l.col, b.String())}, nil
}

func span(startLine, startCol, endLine, endCol int, text string) value.Span {
	return value.Span{StartLine: startLine, StartCol: startCol, EndLine: endLine, EndCol: endCol, Text: text}
}
