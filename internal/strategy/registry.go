// backend-go/internal/strategy/registry.go
package strategy

import (
	"time"

	"github.com/andresuchdata/autoplan/backend-go/internal/domain"
)

// Registry maps method names to strategies. It is built once and read concurrently.
type Registry struct {
	byName map[string]Strategy
	zero   Strategy
}

// RegistryOptions configures the delegated strategies.
type RegistryOptions struct {
	Forecaster      Forecaster
	ExternalTimeout time.Duration
}

// NewRegistry registers every built-in strategy.
func NewRegistry(opts RegistryOptions) *Registry {
	timeout := opts.ExternalTimeout
	if timeout <= 0 {
		timeout = DefaultExternalTimeout
	}

	r := &Registry{byName: make(map[string]Strategy), zero: passthrough{}}
	for _, s := range []Strategy{
		movingAverage{},
		linearRegression{},
		exponentialSmoothing{},
		seasonalDecomposition{},
		&external{id: LLM, forecaster: opts.Forecaster, timeout: timeout},
		&external{id: Custom, forecaster: opts.Forecaster, timeout: timeout},
		rule{id: MinMax},
		rule{id: ROP},
		rule{id: EOQ},
		rule{id: ConsumptionBased},
		rule{id: FixedInterval},
	} {
		r.Register(s)
	}
	return r
}

// Register adds s under its ID and any extra names. Later registrations win.
func (r *Registry) Register(s Strategy, names ...string) {
	r.byName[domain.NormalizeMethodName(string(s.ID()))] = s
	for _, n := range names {
		r.byName[domain.NormalizeMethodName(n)] = s
	}
}

// Lookup resolves a method name. Unknown names report false.
func (r *Registry) Lookup(method string) (Strategy, bool) {
	s, ok := r.byName[domain.NormalizeMethodName(method)]
	return s, ok
}

// Resolve is Lookup with the pass-through zero strategy for unknown names.
func (r *Registry) Resolve(method string) Strategy {
	if s, ok := r.Lookup(method); ok {
		return s
	}
	return r.zero
}
