package expr

import (
	"fmt"
	"math"
	"strconv"

	"github.com/andresuchdata/autoplan/backend-go/internal/domain"
)

// Value is the result of an evaluation: a number or a boolean.
type Value struct {
	isBool bool
	num    float64
	b      bool
}

// Number wraps a float as a Value.
func Number(f float64) Value { return Value{num: f} }

// Bool wraps a boolean as a Value.
func Bool(b bool) Value { return Value{isBool: true, b: b} }

func (v Value) IsBool() bool { return v.isBool }

// Float returns the numeric value; ok is false for booleans.
func (v Value) Float() (float64, bool) { return v.num, !v.isBool }

// Truth returns the boolean value; ok is false for numbers.
func (v Value) Truth() (bool, bool) { return v.b, v.isBool }

func (v Value) String() string {
	if v.isBool {
		return strconv.FormatBool(v.b)
	}
	return strconv.FormatFloat(v.num, 'g', -1, 64)
}

func (v Value) typeName() string {
	if v.isBool {
		return "boolean"
	}
	return "number"
}

// Scope holds the local bindings produced by the assignment statements of a program.
type Scope map[string]Value

// env resolves identifiers against local bindings first, then the item's variables.
type env struct {
	src    string
	vars   domain.VariableSet
	locals Scope
}

func (e *env) lookup(n *identRef) (Value, error) {
	if v, ok := e.locals[n.name]; ok {
		return v, nil
	}
	if f, ok := e.vars[n.name]; ok {
		return Number(f), nil
	}
	return Value{}, &domain.MissingVariableError{Name: n.name, Expr: e.src}
}

func (e *env) errorf(n node, format string, args ...any) error {
	return newEvalError(e.src, n.pos(), fmt.Sprintf(format, args...))
}

func (e *env) eval(n node) (Value, error) {
	switch n := n.(type) {
	case *numberLit:
		return Number(n.val), nil
	case *identRef:
		return e.lookup(n)
	case *unaryExpr:
		return e.evalUnary(n)
	case *binaryExpr:
		return e.evalBinary(n)
	case *callExpr:
		return e.evalCall(n)
	}
	return Value{}, e.errorf(n, "unsupported expression node %T", n)
}

func (e *env) number(n node) (float64, error) {
	v, err := e.eval(n)
	if err != nil {
		return 0, err
	}
	f, ok := v.Float()
	if !ok {
		return 0, e.errorf(n, "expected a number, got a boolean")
	}
	return f, nil
}

func (e *env) boolean(n node) (bool, error) {
	v, err := e.eval(n)
	if err != nil {
		return false, err
	}
	b, ok := v.Truth()
	if !ok {
		return false, e.errorf(n, "expected a boolean, got a number")
	}
	return b, nil
}

func (e *env) finite(n node, f float64) (Value, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Value{}, e.errorf(n, "result is not a finite number")
	}
	return Number(f), nil
}

func (e *env) evalUnary(n *unaryExpr) (Value, error) {
	if n.op == "not" {
		b, err := e.boolean(n.x)
		if err != nil {
			return Value{}, err
		}
		return Bool(!b), nil
	}
	f, err := e.number(n.x)
	if err != nil {
		return Value{}, err
	}
	if n.op == "-" {
		return Number(-f), nil
	}
	return Number(f), nil
}

func (e *env) evalBinary(n *binaryExpr) (Value, error) {
	switch n.op {
	case "and", "or":
		l, err := e.boolean(n.x)
		if err != nil {
			return Value{}, err
		}
		if (n.op == "and" && !l) || (n.op == "or" && l) {
			return Bool(l), nil
		}
		r, err := e.boolean(n.y)
		if err != nil {
			return Value{}, err
		}
		return Bool(r), nil

	case "==", "!=":
		l, err := e.eval(n.x)
		if err != nil {
			return Value{}, err
		}
		r, err := e.eval(n.y)
		if err != nil {
			return Value{}, err
		}
		if l.isBool != r.isBool {
			return Value{}, e.errorf(n, "cannot compare %s with %s", l.typeName(), r.typeName())
		}
		eq := l == r
		if n.op == "!=" {
			eq = !eq
		}
		return Bool(eq), nil
	}

	l, err := e.number(n.x)
	if err != nil {
		return Value{}, err
	}
	r, err := e.number(n.y)
	if err != nil {
		return Value{}, err
	}

	switch n.op {
	case "+":
		return e.finite(n, l+r)
	case "-":
		return e.finite(n, l-r)
	case "*":
		return e.finite(n, l*r)
	case "/":
		if r == 0 {
			return Value{}, e.errorf(n, "division by zero")
		}
		return e.finite(n, l/r)
	case "**":
		return e.finite(n, math.Pow(l, r))
	case "<":
		return Bool(l < r), nil
	case "<=":
		return Bool(l <= r), nil
	case ">":
		return Bool(l > r), nil
	case ">=":
		return Bool(l >= r), nil
	}
	return Value{}, e.errorf(n, "unsupported operator %q", n.op)
}

func (e *env) evalCall(n *callExpr) (Value, error) {
	args := make([]float64, len(n.args))
	for i, a := range n.args {
		f, err := e.number(a)
		if err != nil {
			return Value{}, err
		}
		args[i] = f
	}

	switch n.fn {
	case "sqrt":
		if args[0] < 0 {
			return Value{}, e.errorf(n, "sqrt of negative number %g", args[0])
		}
		return Number(math.Sqrt(args[0])), nil
	case "abs":
		return Number(math.Abs(args[0])), nil
	case "min":
		m := args[0]
		for _, a := range args[1:] {
			m = math.Min(m, a)
		}
		return Number(m), nil
	case "max":
		m := args[0]
		for _, a := range args[1:] {
			m = math.Max(m, a)
		}
		return Number(m), nil
	}
	return Value{}, e.errorf(n, "function %q is not allowed", n.fn)
}

func newEvalError(src string, pos int, msg string) *domain.EvaluationError {
	return &domain.EvaluationError{Expr: src, Pos: pos, Msg: msg}
}
