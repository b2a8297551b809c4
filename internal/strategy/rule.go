// backend-go/internal/strategy/rule.go
package strategy

import (
	"context"
	"math"

	"github.com/andresuchdata/autoplan/backend-go/internal/domain"
	"github.com/andresuchdata/autoplan/backend-go/internal/expr"
)

// rule runs a replenishment method's trigger condition and action program.
//
// The trigger is checked first and the action only runs when it holds. A
// trigger that reads a name the action binds (inventory < ROP) needs the action
// evaluated first. An order is emitted only when the trigger holds and the
// quantity is positive; quantities are rounded up to whole units.
type rule struct {
	id ID
}

func (s rule) ID() ID { return s.id }

func (s rule) Compute(_ context.Context, in Input) (Result, error) {
	action := in.Policy.ActionExpression
	if action == "" {
		return Result{}, &domain.EvaluationError{Pos: -1, Msg: "method " + in.Policy.MethodName + " has no action expression"}
	}

	// Both programs compile up front so a broken expression fails every item alike.
	prog, err := expr.Compile(action)
	if err != nil {
		return Result{}, err
	}
	var trigger *expr.Program
	if src := in.Policy.TriggerCondition; src != "" {
		if trigger, err = expr.Compile(src); err != nil {
			return Result{}, err
		}
	}

	res := Result{Strategy: s.id, Fired: true}
	if trigger == nil || trigger.References(prog.Bindings()...) {
		qty, scope, err := runAction(prog, in.Variables, nil)
		if err != nil {
			return Result{}, err
		}
		if trigger != nil {
			if res.Fired, err = checkTrigger(trigger, in.Variables, scope); err != nil {
				return Result{}, err
			}
		}
		return withOrder(res, qty, in.Policy.TriggerCondition), nil
	}

	if res.Fired, err = checkTrigger(trigger, in.Variables, nil); err != nil || !res.Fired {
		return res, err
	}
	qty, _, err := runAction(prog, in.Variables, nil)
	if err != nil {
		return Result{}, err
	}
	return withOrder(res, qty, in.Policy.TriggerCondition), nil
}

func runAction(prog *expr.Program, vars domain.VariableSet, locals expr.Scope) (float64, expr.Scope, error) {
	value, scope, err := prog.RunWith(vars, locals)
	if err != nil {
		return 0, nil, err
	}
	qty, ok := value.Float()
	if !ok {
		return 0, nil, &domain.EvaluationError{Expr: prog.Source(), Pos: -1, Msg: "action must produce a quantity, got a boolean"}
	}
	return qty, scope, nil
}

func checkTrigger(trigger *expr.Program, vars domain.VariableSet, locals expr.Scope) (bool, error) {
	v, _, err := trigger.RunWith(vars, locals)
	if err != nil {
		return false, err
	}
	fired, ok := v.Truth()
	if !ok {
		return false, &domain.EvaluationError{Expr: trigger.Source(), Pos: -1, Msg: "expected a boolean result, got a number"}
	}
	return fired, nil
}

func withOrder(res Result, qty float64, trigger string) Result {
	if !res.Fired || qty <= 0 {
		return res
	}
	res.Order = &domain.PlannedOrder{
		Quantity: math.Ceil(qty),
		Trigger:  trigger,
	}
	return res
}

// passthrough is the zero strategy for methods with no implementation.
type passthrough struct{}

func (passthrough) ID() ID { return Passthrough }

func (passthrough) Compute(_ context.Context, in Input) (Result, error) {
	res := Result{Strategy: Passthrough}
	if in.Policy.Kind == domain.KindForecast {
		res.Series = zeros(in.Horizon())
	}
	return res, nil
}
