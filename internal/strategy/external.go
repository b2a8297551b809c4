// backend-go/internal/strategy/external.go
package strategy

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/andresuchdata/autoplan/backend-go/internal/domain"
)

// DefaultExternalTimeout bounds one delegated forecast call.
const DefaultExternalTimeout = 30 * time.Second

// ForecastRequest is what a delegated forecaster receives for one item.
type ForecastRequest struct {
	ItemID     string
	LocationID string
	History    []float64
	Horizon    int
	Model      string
	// Logic carries free text instructions for the custom method.
	Logic string
}

// Forecaster produces a forecast outside the process, e.g. through a language model.
type Forecaster interface {
	Forecast(ctx context.Context, req ForecastRequest) ([]float64, error)
}

// external delegates to a Forecaster. Any failure, timeout or wrongly shaped
// answer is an ExternalStrategyError.
type external struct {
	id         ID
	forecaster Forecaster
	timeout    time.Duration
}

func (s *external) ID() ID { return s.id }

func (s *external) Compute(ctx context.Context, in Input) (Result, error) {
	if s.forecaster == nil {
		return Result{}, s.fail("no external forecaster configured", nil)
	}

	req := ForecastRequest{
		ItemID:     in.Item.ItemID,
		LocationID: in.Item.LocationID,
		History:    append([]float64(nil), in.History...),
		Horizon:    in.Horizon(),
		Model:      stringParam(in, "model"),
	}
	switch s.id {
	case LLM:
		window, ok := intParam(in, "context_window", 8)
		if !ok {
			return Result{}, strategyErr(s.id, "context_window must be an integer")
		}
		if window > 0 && len(req.History) > window {
			req.History = req.History[len(req.History)-window:]
		}
	case Custom:
		req.Logic = stringParam(in, "logic")
		if req.Logic == "" {
			return Result{}, strategyErr(s.id, "custom method requires a logic parameter")
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	series, err := s.forecaster.Forecast(callCtx, req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return Result{}, s.fail(fmt.Sprintf("timed out after %s", s.timeout), err)
		}
		return Result{}, s.fail("forecaster call failed", err)
	}

	if len(series) != req.Horizon {
		return Result{}, s.fail(fmt.Sprintf("expected %d values, got %d", req.Horizon, len(series)), nil)
	}
	out := make([]float64, len(series))
	for i, v := range series {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Result{}, s.fail(fmt.Sprintf("value %d is not a finite number", i), nil)
		}
		out[i] = v
	}
	return Result{Strategy: s.id, Series: out}, nil
}

func (s *external) fail(msg string, err error) *domain.ExternalStrategyError {
	return &domain.ExternalStrategyError{Method: string(s.id), Msg: msg, Err: err}
}
