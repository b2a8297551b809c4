// backend-go/internal/engine/engine.go
package engine

import (
	"context"
	"fmt"
	"runtime"
	"runtime/debug"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/andresuchdata/autoplan/backend-go/internal/domain"
	"github.com/andresuchdata/autoplan/backend-go/internal/extract"
	"github.com/andresuchdata/autoplan/backend-go/internal/metrics"
	"github.com/andresuchdata/autoplan/backend-go/internal/policy"
	"github.com/andresuchdata/autoplan/backend-go/internal/strategy"
)

// Observer receives per-item and per-batch outcomes. *metrics.Metrics implements it.
type Observer interface {
	ObserveItem(kind domain.Kind, method, outcome string, d time.Duration)
	ObserveFallback(method string, kind domain.ErrorKind)
	ObserveFailure(kind domain.Kind, errKind domain.ErrorKind)
	ObserveBatch(kind domain.Kind, d time.Duration)
}

// Config tunes the engine. The zero value runs one worker per CPU with no item timeout.
type Config struct {
	Workers        int
	HorizonCeiling int
	// ItemTimeout bounds one item pipeline, external calls included. Zero means no bound.
	ItemTimeout time.Duration
	Now         func() time.Time
}

// Engine runs the per-item planning pipeline over a batch.
type Engine struct {
	dispatcher *strategy.Dispatcher
	emitter    *Emitter
	observer   Observer
	cfg        Config
}

// New creates an engine. observer may be nil.
func New(dispatcher *strategy.Dispatcher, cfg Config, observer Observer) *Engine {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if observer == nil {
		observer = noopObserver{}
	}
	return &Engine{
		dispatcher: dispatcher,
		emitter:    NewEmitter(cfg.Now),
		observer:   observer,
		cfg:        cfg,
	}
}

// Batch is the immutable input of one run. Segments is keyed by ItemRecord.Segment.
type Batch struct {
	Kind      domain.Kind
	Blueprint *domain.Blueprint
	Segments  map[string]domain.Policy
	Items     []domain.ItemRecord
}

// outcome is the result of one item. Exactly one field is set.
type outcome struct {
	decision *domain.Decision
	failure  *domain.Failure
	skip     *domain.Skip
}

// RunBatch processes every item and returns the summary in input order. Item errors never
// abort the batch. When ctx is cancelled no new items start; items already running finish
// and the ids that never started are listed in Unprocessed.
func (e *Engine) RunBatch(ctx context.Context, b Batch) (*domain.BatchSummary, error) {
	if b.Blueprint == nil {
		return nil, &domain.ConfigError{Msg: fmt.Sprintf("no blueprint for %s batch", b.Kind)}
	}
	if b.Kind == "" {
		b.Kind = b.Blueprint.AgentType
	}

	started := e.now()
	log.Info().
		Str("kind", string(b.Kind)).
		Int("items", len(b.Items)).
		Int("workers", e.cfg.Workers).
		Msg("Starting planning batch")

	outcomes := make([]*outcome, len(b.Items))

	g := new(errgroup.Group)
	g.SetLimit(e.cfg.Workers)

	for i := range b.Items {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			// Cancelled while waiting for a free worker.
			if ctx.Err() != nil {
				return nil
			}
			outcomes[i] = e.processItem(ctx, b, b.Items[i])
			return nil
		})
	}
	_ = g.Wait()

	summary := &domain.BatchSummary{
		Kind:      b.Kind,
		StartedAt: started,
		Decisions: []domain.Decision{},
		Failures:  []domain.Failure{},
		Skipped:   []domain.Skip{},
	}
	for i, out := range outcomes {
		switch {
		case out == nil:
			summary.Unprocessed = append(summary.Unprocessed, b.Items[i].ItemID)
		case out.decision != nil:
			summary.Decisions = append(summary.Decisions, *out.decision)
		case out.failure != nil:
			summary.Failures = append(summary.Failures, *out.failure)
		case out.skip != nil:
			summary.Skipped = append(summary.Skipped, *out.skip)
		}
	}
	summary.FinishedAt = e.now()
	e.observer.ObserveBatch(b.Kind, summary.FinishedAt.Sub(started))

	ev := log.Info()
	if len(summary.Unprocessed) > 0 {
		ev = log.Warn().Int("unprocessed", len(summary.Unprocessed))
	}
	ev.Str("kind", string(b.Kind)).
		Int("decisions", len(summary.Decisions)).
		Int("failures", len(summary.Failures)).
		Int("skipped", len(summary.Skipped)).
		Dur("duration", summary.FinishedAt.Sub(started)).
		Msg("Planning batch completed")

	return summary, nil
}

// processItem runs merge, extract, dispatch and emit for one item. It never panics.
func (e *Engine) processItem(ctx context.Context, b Batch, item domain.ItemRecord) (out *outcome) {
	start := time.Now()
	method := ""

	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("item_id", item.ItemID).
				Str("stack", string(debug.Stack())).
				Msgf("Item pipeline panicked: %v", r)
			out = e.fail(b.Kind, item, domain.ErrKindInternal, fmt.Sprintf("recovered panic: %v", r))
		}

		result := metrics.OutcomeDecision
		switch {
		case out.failure != nil:
			result = metrics.OutcomeFailure
		case out.skip != nil:
			result = metrics.OutcomeSkipped
		}
		e.observer.ObserveItem(b.Kind, method, result, time.Since(start))
	}()

	// Running items finish even when the batch is cancelled.
	itemCtx := context.WithoutCancel(ctx)
	if e.cfg.ItemTimeout > 0 {
		var cancel context.CancelFunc
		itemCtx, cancel = context.WithTimeout(itemCtx, e.cfg.ItemTimeout)
		defer cancel()
	}

	if item.LoadErr != nil {
		return e.failErr(b.Kind, item, item.LoadErr)
	}

	var segment *domain.Policy
	if p, ok := b.Segments[item.Segment]; ok {
		segment = &p
	}
	product := item.Policy

	method = policy.ResolveMethod(b.Blueprint, segment, &product)
	merged, err := policy.Merge(method, b.Blueprint, segment, &product, policy.Options{HorizonCeiling: e.cfg.HorizonCeiling})
	if err != nil {
		return e.failErr(b.Kind, item, err)
	}

	vars, warnings := extract.Variables(item, merged)
	for _, w := range warnings {
		log.Warn().
			Str("item_id", item.ItemID).
			Str("parameter", w.Parameter).
			Bool("required", w.Required).
			Msg("Skipped parameter during extraction")
	}

	res, err := e.dispatcher.Compute(itemCtx, strategy.Input{
		Item:      item,
		Policy:    merged,
		Variables: vars,
		History:   item.SalesHistory,
	})
	if err != nil {
		return e.failErr(b.Kind, item, err)
	}
	if res.Fallback != nil {
		e.observer.ObserveFallback(merged.MethodName, res.Fallback.Kind)
	}

	if merged.Kind == domain.KindReplenishment && res.Order == nil && res.Fallback == nil {
		reason := "trigger condition not met"
		if res.Fired {
			reason = "non-positive order quantity"
		}
		return &outcome{skip: &domain.Skip{ItemID: item.ItemID, LocationID: item.LocationID, Reason: reason}}
	}

	d := e.emitter.Emit(item, merged, res, warnings)
	return &outcome{decision: &d}
}

func (e *Engine) failErr(kind domain.Kind, item domain.ItemRecord, err error) *outcome {
	errKind := domain.KindOf(err)
	log.Warn().
		Err(err).
		Str("item_id", item.ItemID).
		Str("error_kind", string(errKind)).
		Msg("Item failed")
	return e.fail(kind, item, errKind, err.Error())
}

func (e *Engine) fail(kind domain.Kind, item domain.ItemRecord, errKind domain.ErrorKind, msg string) *outcome {
	e.observer.ObserveFailure(kind, errKind)
	return &outcome{failure: &domain.Failure{
		ItemID:     item.ItemID,
		LocationID: item.LocationID,
		Kind:       errKind,
		Message:    msg,
	}}
}

func (e *Engine) now() time.Time {
	if e.cfg.Now != nil {
		return e.cfg.Now()
	}
	return time.Now()
}

type noopObserver struct{}

func (noopObserver) ObserveItem(domain.Kind, string, string, time.Duration) {}
func (noopObserver) ObserveFallback(string, domain.ErrorKind)               {}
func (noopObserver) ObserveFailure(domain.Kind, domain.ErrorKind)           {}
func (noopObserver) ObserveBatch(domain.Kind, time.Duration)                {}
