// backend-go/internal/service/sandbox.go
package service

import (
	"errors"
	"fmt"
	"sort"

	"github.com/andresuchdata/autoplan/backend-go/internal/domain"
	"github.com/andresuchdata/autoplan/backend-go/internal/expr"
	"github.com/andresuchdata/autoplan/backend-go/internal/policy"
)

// EvalRequest is one expression sandbox call. Trigger is optional and sees the names
// Action binds.
type EvalRequest struct {
	Action    string             `json:"action"`
	Trigger   string             `json:"trigger,omitempty"`
	Variables map[string]float64 `json:"variables"`
}

type EvalResult struct {
	Value    string            `json:"value"`
	Number   *float64          `json:"number,omitempty"`
	Bindings map[string]string `json:"bindings,omitempty"`
	Fired    *bool             `json:"fired,omitempty"`
}

// EvalError carries the error kind and offset back to the sandbox caller.
type EvalError struct {
	Kind     domain.ErrorKind `json:"kind"`
	Message  string           `json:"message"`
	Position *int             `json:"position,omitempty"`
}

func (e *EvalError) Error() string { return e.Message }

// Evaluate runs an action (and optional trigger) against literal variables the same way
// a replenishment rule does, without touching any item.
func Evaluate(req EvalRequest) (*EvalResult, error) {
	if req.Action == "" {
		return nil, &EvalError{Kind: domain.ErrKindConfig, Message: "action is required"}
	}
	vars := domain.VariableSet(req.Variables)

	prog, err := expr.Compile(req.Action)
	if err != nil {
		return nil, toEvalError(err)
	}
	value, scope, err := prog.Run(vars)
	if err != nil {
		return nil, toEvalError(err)
	}

	res := &EvalResult{Value: value.String()}
	if f, ok := value.Float(); ok {
		res.Number = &f
	}
	if len(scope) > 0 {
		names := make([]string, 0, len(scope))
		for name := range scope {
			names = append(names, name)
		}
		sort.Strings(names)
		res.Bindings = make(map[string]string, len(names))
		for _, name := range names {
			res.Bindings[name] = scope[name].String()
		}
	}

	if req.Trigger != "" {
		fired, err := expr.EvaluateBoolIn(req.Trigger, vars, scope)
		if err != nil {
			return nil, toEvalError(err)
		}
		res.Fired = &fired
	}
	return res, nil
}

func toEvalError(err error) *EvalError {
	out := &EvalError{Kind: domain.KindOf(err), Message: err.Error()}
	var ee *domain.EvaluationError
	if errors.As(err, &ee) && ee.Pos >= 0 {
		pos := ee.Pos
		out.Position = &pos
	}
	return out
}

// ValidatePolicy checks that a policy names a method of bp and that any custom
// trigger or action parses and is allowed by the method.
func ValidatePolicy(bp *domain.Blueprint, p domain.Policy) error {
	name := p.Method
	if name == "" {
		m, ok := bp.Default()
		if !ok {
			return &domain.ConfigError{Msg: "policy names no method and the blueprint has no default"}
		}
		name = m.Name
	}
	method, ok := bp.Method(name)
	if !ok {
		return &domain.MethodNotFoundError{Method: name}
	}

	for _, key := range []string{domain.KeyCustomTrigger, domain.KeyCustomAction} {
		if v, ok := p.Param(key); ok && v != nil {
			if _, isText := v.(string); !isText {
				return &domain.ConfigError{Msg: fmt.Sprintf("%s must be an expression string, got %T", key, v)}
			}
		}
	}

	for _, c := range []struct {
		field, src string
	}{
		{domain.FieldTriggerCondition, policy.CustomTrigger(&p)},
		{domain.FieldActionLogic, policy.CustomAction(&p)},
	} {
		if c.src == "" {
			continue
		}
		if !method.AllowsCustom(c.field) {
			return &domain.ConfigError{Msg: fmt.Sprintf("method %s does not allow a custom %s", method.Name, c.field)}
		}
		if _, err := expr.Compile(c.src); err != nil {
			return &domain.ConfigError{Msg: fmt.Sprintf("custom %s: %v", c.field, err)}
		}
	}
	return nil
}
