// backend-go/internal/strategy/statistical.go
package strategy

import (
	"context"
	"math"
)

type movingAverage struct{}

func (movingAverage) ID() ID { return MovingAverage }

// Compute holds the mean of the last window observations flat over the horizon.
// A history shorter than the window uses the mean of all of it.
func (movingAverage) Compute(_ context.Context, in Input) (Result, error) {
	window, ok := intParam(in, "window", 4)
	if !ok || window <= 0 {
		return Result{}, strategyErr(MovingAverage, "window must be a positive integer")
	}
	if len(in.History) == 0 {
		return Result{}, strategyErr(MovingAverage, "no sales history")
	}

	h := in.History
	if len(h) >= window {
		h = h[len(h)-window:]
	}
	return Result{Strategy: MovingAverage, Series: repeat(mean(h), in.Horizon())}, nil
}

type linearRegression struct{}

func (linearRegression) ID() ID { return LinearRegression }

// Compute fits value against time index by ordinary least squares and extrapolates.
// With fewer than two points it repeats the last value, or zero.
func (linearRegression) Compute(_ context.Context, in Input) (Result, error) {
	n := len(in.History)
	horizon := in.Horizon()
	if n < 2 {
		last := 0.0
		if n == 1 {
			last = in.History[0]
		}
		return Result{Strategy: LinearRegression, Series: repeat(last, horizon)}, nil
	}

	xMean := float64(n-1) / 2
	yMean := mean(in.History)
	var sxy, sxx float64
	for i, y := range in.History {
		dx := float64(i) - xMean
		sxy += dx * (y - yMean)
		sxx += dx * dx
	}
	slope := sxy / sxx
	intercept := yMean - slope*xMean

	series := make([]float64, horizon)
	for i := range series {
		series[i] = intercept + slope*float64(n+i)
	}
	for _, v := range series {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Result{}, strategyErr(LinearRegression, "regression produced a non-finite value")
		}
	}
	return Result{Strategy: LinearRegression, Series: series}, nil
}

type exponentialSmoothing struct{}

func (exponentialSmoothing) ID() ID { return ExponentialSmoothing }

// Compute applies s_t = alpha*x_t + (1-alpha)*s_{t-1} seeded with the first observation.
func (exponentialSmoothing) Compute(_ context.Context, in Input) (Result, error) {
	alpha, ok := floatParam(in, "alpha", 0.3)
	if !ok || alpha <= 0 || alpha > 1 {
		return Result{}, strategyErr(ExponentialSmoothing, "alpha must be in (0, 1]")
	}
	if len(in.History) == 0 {
		return Result{}, strategyErr(ExponentialSmoothing, "no sales history")
	}

	s := in.History[0]
	for _, x := range in.History[1:] {
		s = alpha*x + (1-alpha)*s
	}
	return Result{Strategy: ExponentialSmoothing, Series: repeat(s, in.Horizon())}, nil
}

type seasonalDecomposition struct{}

func (seasonalDecomposition) ID() ID { return SeasonalDecomposition }

// Compute adds the mean of the last period to the mean of the period before it.
// Histories shorter than two periods use the overall mean.
func (seasonalDecomposition) Compute(_ context.Context, in Input) (Result, error) {
	period, ok := intParam(in, "period", 12)
	if !ok || period <= 0 {
		return Result{}, strategyErr(SeasonalDecomposition, "period must be a positive integer")
	}
	n := len(in.History)
	if n == 0 {
		return Result{}, strategyErr(SeasonalDecomposition, "no sales history")
	}
	if n < 2*period {
		return Result{Strategy: SeasonalDecomposition, Series: repeat(mean(in.History), in.Horizon())}, nil
	}

	seasonal := mean(in.History[n-period:])
	trend := mean(in.History[n-2*period : n-period])
	return Result{Strategy: SeasonalDecomposition, Series: repeat(trend+seasonal, in.Horizon())}, nil
}
