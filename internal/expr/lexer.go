package expr

import (
	"fmt"
	"strconv"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNumber
	tokIdent
	tokOp
	tokLParen
	tokRParen
	tokComma
)

func (k tokenKind) String() string {
	switch k {
	case tokEOF:
		return "end of expression"
	case tokNumber:
		return "number"
	case tokIdent:
		return "identifier"
	case tokOp:
		return "operator"
	case tokLParen:
		return "'('"
	case tokRParen:
		return "')'"
	case tokComma:
		return "','"
	}
	return "token"
}

type token struct {
	kind tokenKind
	text string
	num  float64
	pos  int // byte offset in the full source
}

// lexer turns one statement into tokens. base is the statement's offset in the full
// source so error positions point into what the user wrote.
type lexer struct {
	src  string
	full string
	base int
	i    int
}

func tokenize(full string, base int, stmt string) ([]token, error) {
	lx := &lexer{src: stmt, full: full, base: base}
	var toks []token
	for {
		tok, err := lx.next()
		if err != nil {
			return nil, err
		}
		toks = append(toks, tok)
		if tok.kind == tokEOF {
			return toks, nil
		}
	}
}

func (lx *lexer) errorf(at int, format string, args ...any) error {
	return newEvalError(lx.full, lx.base+at, fmt.Sprintf(format, args...))
}

func (lx *lexer) next() (token, error) {
	for lx.i < len(lx.src) && isSpace(lx.src[lx.i]) {
		lx.i++
	}
	start := lx.i
	if lx.i >= len(lx.src) {
		return token{kind: tokEOF, pos: lx.base + start}, nil
	}

	c := lx.src[lx.i]
	switch {
	case isDigit(c) || (c == '.' && lx.i+1 < len(lx.src) && isDigit(lx.src[lx.i+1])):
		return lx.number()
	case isIdentStart(c):
		for lx.i < len(lx.src) && isIdentPart(lx.src[lx.i]) {
			lx.i++
		}
		return token{kind: tokIdent, text: lx.src[start:lx.i], pos: lx.base + start}, nil
	case c == '(':
		lx.i++
		return token{kind: tokLParen, text: "(", pos: lx.base + start}, nil
	case c == ')':
		lx.i++
		return token{kind: tokRParen, text: ")", pos: lx.base + start}, nil
	case c == ',':
		lx.i++
		return token{kind: tokComma, text: ",", pos: lx.base + start}, nil
	case c == '+' || c == '-' || c == '/':
		lx.i++
		return token{kind: tokOp, text: string(c), pos: lx.base + start}, nil
	case c == '*':
		lx.i++
		if lx.peek() == '*' {
			lx.i++
			return token{kind: tokOp, text: "**", pos: lx.base + start}, nil
		}
		return token{kind: tokOp, text: "*", pos: lx.base + start}, nil
	case c == '<' || c == '>':
		lx.i++
		if lx.peek() == '=' {
			lx.i++
		}
		return token{kind: tokOp, text: lx.src[start:lx.i], pos: lx.base + start}, nil
	case c == '=' || c == '!':
		if lx.i+1 < len(lx.src) && lx.src[lx.i+1] == '=' {
			lx.i += 2
			return token{kind: tokOp, text: lx.src[start:lx.i], pos: lx.base + start}, nil
		}
		if c == '=' {
			return token{}, lx.errorf(start, "assignment is not allowed inside an expression")
		}
		return token{}, lx.errorf(start, "unexpected character %q", c)
	case c == '.':
		return token{}, lx.errorf(start, "attribute access is not allowed")
	}
	return token{}, lx.errorf(start, "unexpected character %q", c)
}

func (lx *lexer) peek() byte {
	if lx.i < len(lx.src) {
		return lx.src[lx.i]
	}
	return 0
}

func (lx *lexer) number() (token, error) {
	start := lx.i
	for lx.i < len(lx.src) && isDigit(lx.src[lx.i]) {
		lx.i++
	}
	if lx.peek() == '.' {
		lx.i++
		for lx.i < len(lx.src) && isDigit(lx.src[lx.i]) {
			lx.i++
		}
	}
	if c := lx.peek(); c == 'e' || c == 'E' {
		j := lx.i + 1
		if j < len(lx.src) && (lx.src[j] == '+' || lx.src[j] == '-') {
			j++
		}
		if j < len(lx.src) && isDigit(lx.src[j]) {
			lx.i = j
			for lx.i < len(lx.src) && isDigit(lx.src[lx.i]) {
				lx.i++
			}
		}
	}
	if lx.i < len(lx.src) && (isIdentStart(lx.src[lx.i]) || lx.src[lx.i] == '.') {
		return token{}, lx.errorf(start, "malformed number %q", lx.src[start:lx.i+1])
	}

	text := lx.src[start:lx.i]
	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return token{}, lx.errorf(start, "malformed number %q", text)
	}
	return token{kind: tokNumber, text: text, num: v, pos: lx.base + start}, nil
}

func isSpace(c byte) bool      { return c == ' ' || c == '\t' || c == '\n' || c == '\r' }
func isDigit(c byte) bool      { return c >= '0' && c <= '9' }
func isIdentStart(c byte) bool { return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') }
func isIdentPart(c byte) bool  { return isIdentStart(c) || isDigit(c) }

// isIdentifier reports whether s is a plain, non-keyword identifier.
func isIdentifier(s string) bool {
	if s == "" || !isIdentStart(s[0]) {
		return false
	}
	for i := 1; i < len(s); i++ {
		if !isIdentPart(s[i]) {
			return false
		}
	}
	return !keywords[s]
}

var keywords = map[string]bool{"and": true, "or": true, "not": true}
