// backend-go/internal/strategy/strategy.go
package strategy

import (
	"context"
	"fmt"
	"strings"

	"github.com/andresuchdata/autoplan/backend-go/internal/domain"
)

// ID identifies a strategy implementation.
type ID string

const (
	MovingAverage         ID = "moving_average"
	LinearRegression      ID = "linear_regression"
	ExponentialSmoothing  ID = "exponential_smoothing"
	SeasonalDecomposition ID = "seasonal_decomposition"
	LLM                   ID = "llm"
	Custom                ID = "custom"
	MinMax                ID = "MinMax"
	ROP                   ID = "ROP"
	EOQ                   ID = "EOQ"
	ConsumptionBased      ID = "Consumption-Based"
	FixedInterval         ID = "Fixed-Interval"
	Passthrough           ID = "passthrough"
)

// Input is everything a strategy may read for one item. It is shared read-only.
type Input struct {
	Item      domain.ItemRecord
	Policy    domain.MergedPolicy
	Variables domain.VariableSet
	History   []float64
}

// Horizon is the number of periods a forecast strategy must produce.
func (in Input) Horizon() int { return in.Policy.EffectiveHorizon }

// Result is the output of one strategy for one item. Forecast strategies fill Series;
// replenishment strategies fill Order when the trigger fired and the quantity is positive.
type Result struct {
	Strategy ID
	Series   []float64
	Order    *domain.PlannedOrder
	Fired    bool
	Fallback *domain.Fallback
	Warnings []string
}

// Strategy computes one planning method.
type Strategy interface {
	ID() ID
	Compute(ctx context.Context, in Input) (Result, error)
}

// zeros is the documented forecast fallback.
func zeros(h int) []float64 {
	if h < 0 {
		h = 0
	}
	return make([]float64, h)
}

func repeat(v float64, h int) []float64 {
	out := make([]float64, h)
	for i := range out {
		out[i] = v
	}
	return out
}

func mean(xs []float64) float64 {
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func strategyErr(id ID, format string, args ...any) *domain.StrategyError {
	return &domain.StrategyError{Method: string(id), Msg: fmt.Sprintf(format, args...)}
}

// intParam reads a whole-number parameter, using def when the policy does not set it.
// Fractional values are rejected rather than truncated.
func intParam(in Input, name string, def int) (int, bool) {
	v, ok := in.Policy.Param(name)
	if !ok || v == nil {
		return def, true
	}
	return domain.ToWholeInt(v)
}

func floatParam(in Input, name string, def float64) (float64, bool) {
	v, ok := in.Policy.Param(name)
	if !ok || v == nil {
		return def, true
	}
	return domain.ToFloat(v)
}

func stringParam(in Input, name string) string {
	v, ok := in.Policy.Param(name)
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return fmt.Sprint(v)
}
