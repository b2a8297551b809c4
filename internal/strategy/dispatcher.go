// backend-go/internal/strategy/dispatcher.go
package strategy

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/autoplan/backend-go/internal/domain"
)

// Dispatcher runs the strategy for an item's merged method and applies the fallback policy:
//
//   - StrategyError and ExternalStrategyError (and panics) return the fallback value
//     (zero series or no order) with Result.Fallback describing why.
//   - Evaluation and missing variable errors are returned so the caller records a failure.
//   - Methods with no strategy use the pass-through zero strategy.
type Dispatcher struct {
	registry *Registry
}

// NewDispatcher creates a dispatcher over registry.
func NewDispatcher(registry *Registry) *Dispatcher {
	return &Dispatcher{registry: registry}
}

// Compute never panics.
func (d *Dispatcher) Compute(ctx context.Context, in Input) (res Result, err error) {
	s, known := d.registry.Lookup(in.Policy.MethodName)
	if !known {
		s = d.registry.zero
	}

	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("method", in.Policy.MethodName).
				Str("item_id", in.Item.ItemID).
				Str("stack", string(debug.Stack())).
				Msgf("Strategy panicked: %v", r)
			res, err = fallback(in, s.ID(), &domain.StrategyError{
				Method: in.Policy.MethodName,
				Msg:    fmt.Sprintf("recovered panic: %v", r),
			}), nil
		}
	}()

	res, err = s.Compute(ctx, in)
	if err == nil {
		if !known {
			res.Warnings = append(res.Warnings, fmt.Sprintf("method %q has no strategy; pass-through zero result", in.Policy.MethodName))
		}
		return res, nil
	}

	var extErr *domain.ExternalStrategyError
	var stratErr *domain.StrategyError
	switch {
	case errors.As(err, &extErr):
		log.Error().
			Err(err).
			Bool("external", true).
			Str("method", in.Policy.MethodName).
			Str("item_id", in.Item.ItemID).
			Msg("External strategy failed, using fallback")
		return fallback(in, s.ID(), err), nil

	case errors.As(err, &stratErr):
		log.Warn().
			Err(err).
			Str("method", in.Policy.MethodName).
			Str("item_id", in.Item.ItemID).
			Msg("Strategy failed, using fallback")
		return fallback(in, s.ID(), err), nil
	}
	return Result{}, err
}

func fallback(in Input, id ID, cause error) Result {
	res := Result{
		Strategy: id,
		Fallback: &domain.Fallback{Kind: domain.KindOf(cause), Message: cause.Error()},
	}
	if in.Policy.Kind == domain.KindForecast {
		res.Series = zeros(in.Horizon())
	}
	return res
}
