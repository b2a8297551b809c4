package expr

import (
	"fmt"
	"strings"
)

const (
	maxSourceLen = 4096
	maxDepth     = 64
)

// functions is the complete call whitelist with its arity bounds (-1 = unbounded).
var functions = map[string][2]int{
	"sqrt": {1, 1},
	"abs":  {1, 1},
	"min":  {1, -1},
	"max":  {1, -1},
}

type parser struct {
	full  string
	toks  []token
	i     int
	depth int
}

// parseProgram splits src into statements and parses each right-hand side.
func parseProgram(src string) ([]statement, error) {
	if len(src) > maxSourceLen {
		return nil, newEvalError(src, -1, fmt.Sprintf("expression longer than %d bytes", maxSourceLen))
	}

	var stmts []statement
	offset := 0
	for _, piece := range strings.Split(src, ";") {
		base := offset
		offset += len(piece) + 1
		if strings.TrimSpace(piece) == "" {
			continue
		}

		bind, rhs, rhsBase := splitAssignment(piece)
		if strings.TrimSpace(rhs) == "" {
			return nil, newEvalError(src, base+rhsBase, "missing expression after '='")
		}

		toks, err := tokenize(src, base+rhsBase, rhs)
		if err != nil {
			return nil, err
		}
		p := &parser{full: src, toks: toks}
		n, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if tok := p.peek(); tok.kind != tokEOF {
			return nil, p.errorf(tok, "unexpected %s %q", tok.kind, tok.text)
		}
		stmts = append(stmts, statement{Bind: bind, Expr: n})
	}

	if len(stmts) == 0 {
		return nil, newEvalError(src, -1, "empty expression")
	}
	return stmts, nil
}

// splitAssignment cuts a statement at its first standalone '=' (not part of
// ==, !=, <=, >=). The left side is never parsed: it only names a local binding
// when it is a plain identifier and is discarded otherwise.
func splitAssignment(stmt string) (bind, rhs string, rhsBase int) {
	for i := 0; i < len(stmt); i++ {
		if stmt[i] != '=' {
			continue
		}
		if i+1 < len(stmt) && stmt[i+1] == '=' {
			i++
			continue
		}
		if i > 0 && strings.ContainsRune("<>!=", rune(stmt[i-1])) {
			continue
		}
		lhs := strings.TrimSpace(stmt[:i])
		if isIdentifier(lhs) {
			bind = lhs
		}
		return bind, stmt[i+1:], i + 1
	}
	return "", stmt, 0
}

func (p *parser) peek() token { return p.toks[p.i] }

func (p *parser) advance() token {
	tok := p.toks[p.i]
	if tok.kind != tokEOF {
		p.i++
	}
	return tok
}

func (p *parser) isOp(text string) bool {
	tok := p.peek()
	return tok.kind == tokOp && tok.text == text
}

func (p *parser) isKeyword(word string) bool {
	tok := p.peek()
	return tok.kind == tokIdent && tok.text == word
}

func (p *parser) errorf(tok token, format string, args ...any) error {
	return newEvalError(p.full, tok.pos, fmt.Sprintf(format, args...))
}

func (p *parser) enter(tok token) error {
	p.depth++
	if p.depth > maxDepth {
		return p.errorf(tok, "expression nested deeper than %d levels", maxDepth)
	}
	return nil
}

func (p *parser) leave() { p.depth-- }

func (p *parser) parseExpr() (node, error) {
	return p.parseOr()
}

func (p *parser) parseOr() (node, error) {
	x, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.isKeyword("or") {
		tok := p.advance()
		y, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		x = &binaryExpr{at: tok.pos, op: "or", x: x, y: y}
	}
	return x, nil
}

func (p *parser) parseAnd() (node, error) {
	x, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.isKeyword("and") {
		tok := p.advance()
		y, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		x = &binaryExpr{at: tok.pos, op: "and", x: x, y: y}
	}
	return x, nil
}

func (p *parser) parseNot() (node, error) {
	if p.isKeyword("not") {
		tok := p.advance()
		if err := p.enter(tok); err != nil {
			return nil, err
		}
		defer p.leave()
		x, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &unaryExpr{at: tok.pos, op: "not", x: x}, nil
	}
	return p.parseComparison()
}

var comparisonOps = map[string]bool{"<": true, "<=": true, ">": true, ">=": true, "==": true, "!=": true}

func (p *parser) parseComparison() (node, error) {
	x, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	tok := p.peek()
	if tok.kind != tokOp || !comparisonOps[tok.text] {
		return x, nil
	}
	p.advance()
	y, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	if next := p.peek(); next.kind == tokOp && comparisonOps[next.text] {
		return nil, p.errorf(next, "chained comparisons are not supported; combine them with 'and'")
	}
	return &binaryExpr{at: tok.pos, op: tok.text, x: x, y: y}, nil
}

func (p *parser) parseAdditive() (node, error) {
	x, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for p.isOp("+") || p.isOp("-") {
		tok := p.advance()
		y, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		x = &binaryExpr{at: tok.pos, op: tok.text, x: x, y: y}
	}
	return x, nil
}

func (p *parser) parseTerm() (node, error) {
	x, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.isOp("*") || p.isOp("/") {
		tok := p.advance()
		y, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		x = &binaryExpr{at: tok.pos, op: tok.text, x: x, y: y}
	}
	return x, nil
}

func (p *parser) parseUnary() (node, error) {
	if p.isOp("-") || p.isOp("+") {
		tok := p.advance()
		if err := p.enter(tok); err != nil {
			return nil, err
		}
		defer p.leave()
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &unaryExpr{at: tok.pos, op: tok.text, x: x}, nil
	}
	return p.parsePower()
}

// parsePower binds tighter than unary minus on its left and is right associative,
// so -2 ** 2 is -(2 ** 2) and 2 ** 3 ** 2 is 2 ** (3 ** 2).
func (p *parser) parsePower() (node, error) {
	x, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	if !p.isOp("**") {
		return x, nil
	}
	tok := p.advance()
	if err := p.enter(tok); err != nil {
		return nil, err
	}
	defer p.leave()
	y, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	return &binaryExpr{at: tok.pos, op: "**", x: x, y: y}, nil
}

func (p *parser) parsePrimary() (node, error) {
	tok := p.advance()
	switch tok.kind {
	case tokNumber:
		return &numberLit{at: tok.pos, val: tok.num}, nil

	case tokIdent:
		if keywords[tok.text] {
			return nil, p.errorf(tok, "unexpected keyword %q", tok.text)
		}
		if p.peek().kind == tokLParen {
			return p.parseCall(tok)
		}
		return &identRef{at: tok.pos, name: tok.text}, nil

	case tokLParen:
		if err := p.enter(tok); err != nil {
			return nil, err
		}
		defer p.leave()
		x, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if closing := p.advance(); closing.kind != tokRParen {
			return nil, p.errorf(closing, "expected ')' but found %s", closing.kind)
		}
		return x, nil

	case tokEOF:
		return nil, p.errorf(tok, "unexpected end of expression")
	}
	return nil, p.errorf(tok, "unexpected %s %q", tok.kind, tok.text)
}

func (p *parser) parseCall(name token) (node, error) {
	arity, ok := functions[name.text]
	if !ok {
		return nil, p.errorf(name, "function %q is not allowed (allowed: abs, max, min, sqrt)", name.text)
	}
	open := p.advance()
	if err := p.enter(open); err != nil {
		return nil, err
	}
	defer p.leave()

	var args []node
	if p.peek().kind != tokRParen {
		for {
			arg, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			if p.peek().kind != tokComma {
				break
			}
			p.advance()
		}
	}
	if closing := p.advance(); closing.kind != tokRParen {
		return nil, p.errorf(closing, "expected ')' to close call to %s", name.text)
	}

	if len(args) < arity[0] || (arity[1] >= 0 && len(args) > arity[1]) {
		return nil, p.errorf(name, "%s() takes %s, got %d", name.text, arityText(arity), len(args))
	}
	return &callExpr{at: name.pos, fn: name.text, args: args}, nil
}

func arityText(a [2]int) string {
	switch {
	case a[0] == a[1]:
		return fmt.Sprintf("exactly %d argument(s)", a[0])
	case a[1] < 0:
		return fmt.Sprintf("at least %d argument(s)", a[0])
	}
	return fmt.Sprintf("%d to %d arguments", a[0], a[1])
}
