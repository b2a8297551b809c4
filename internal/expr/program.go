// Package expr evaluates the trigger conditions and action formulas authored in
// blueprints and policies.
//
// Expressions are parsed into a small tree and evaluated against a
// domain.VariableSet; nothing is ever handed to a general purpose interpreter.
// The accepted grammar is numeric literals, identifiers bound in the variable
// set, + - * / ** and parentheses, the comparisons < <= > >= == !=, the
// keywords and/or/not, and the functions sqrt, abs, min and max.
//
// A statement written as "order_quantity = max_level - inventory" is split at
// its first standalone '='. The left side is never parsed; when it is a plain
// identifier it names a binding visible to later statements of the same program
// (statements are separated by ';'), otherwise it is dropped. The value of a
// program is the value of its last statement.
package expr

import (
	"github.com/andresuchdata/autoplan/backend-go/internal/domain"
)

// Program is a compiled, reusable expression. It is safe for concurrent use.
type Program struct {
	src   string
	stmts []statement
}

// Compile parses src without evaluating it.
func Compile(src string) (*Program, error) {
	stmts, err := parseProgram(src)
	if err != nil {
		return nil, err
	}
	return &Program{src: src, stmts: stmts}, nil
}

// Source returns the text the program was compiled from.
func (p *Program) Source() string { return p.src }

// Bindings lists the names assigned by the program, in statement order.
func (p *Program) Bindings() []string {
	var names []string
	for _, s := range p.stmts {
		if s.Bind != "" {
			names = append(names, s.Bind)
		}
	}
	return names
}

// References reports whether any statement of the program reads one of names.
func (p *Program) References(names ...string) bool {
	seen := make(map[string]bool)
	for _, s := range p.stmts {
		collectRefs(s.Expr, seen)
	}
	for _, name := range names {
		if seen[name] {
			return true
		}
	}
	return false
}

// Run evaluates every statement and returns the last value together with the
// local bindings. vars is only read.
func (p *Program) Run(vars domain.VariableSet) (Value, Scope, error) {
	return p.RunWith(vars, nil)
}

// RunWith is Run with extra local bindings visible from the first statement,
// e.g. the values an action program derived before its trigger is checked.
// locals is copied, never written.
func (p *Program) RunWith(vars domain.VariableSet, locals Scope) (Value, Scope, error) {
	scope := make(Scope, len(locals))
	for k, v := range locals {
		scope[k] = v
	}
	e := &env{src: p.src, vars: vars, locals: scope}
	var last Value
	for _, s := range p.stmts {
		v, err := e.eval(s.Expr)
		if err != nil {
			return Value{}, nil, err
		}
		if s.Bind != "" {
			e.locals[s.Bind] = v
		}
		last = v
	}
	return last, e.locals, nil
}

// Evaluate compiles and runs src in one step.
func Evaluate(src string, vars domain.VariableSet) (Value, error) {
	p, err := Compile(src)
	if err != nil {
		return Value{}, err
	}
	v, _, err := p.Run(vars)
	return v, err
}

// EvaluateNumber evaluates an action formula; a boolean result is an error.
func EvaluateNumber(src string, vars domain.VariableSet) (float64, error) {
	v, err := Evaluate(src, vars)
	if err != nil {
		return 0, err
	}
	f, ok := v.Float()
	if !ok {
		return 0, newEvalError(src, -1, "expected a numeric result, got a boolean")
	}
	return f, nil
}

// EvaluateBool evaluates a trigger condition; a numeric result is an error.
func EvaluateBool(src string, vars domain.VariableSet) (bool, error) {
	v, err := Evaluate(src, vars)
	if err != nil {
		return false, err
	}
	return asBool(src, v)
}

// EvaluateBoolIn evaluates a trigger condition with extra local bindings.
func EvaluateBoolIn(src string, vars domain.VariableSet, locals Scope) (bool, error) {
	p, err := Compile(src)
	if err != nil {
		return false, err
	}
	v, _, err := p.RunWith(vars, locals)
	if err != nil {
		return false, err
	}
	return asBool(src, v)
}

func asBool(src string, v Value) (bool, error) {
	b, ok := v.Truth()
	if !ok {
		return false, newEvalError(src, -1, "expected a boolean result, got a number")
	}
	return b, nil
}
