package engine

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/andresuchdata/autoplan/backend-go/internal/blueprint"
	"github.com/andresuchdata/autoplan/backend-go/internal/domain"
	"github.com/andresuchdata/autoplan/backend-go/internal/strategy"
)

var fixedNow = time.Date(2026, 3, 15, 10, 30, 0, 0, time.UTC)

func qty(v float64) *float64 { return &v }

func newEngine(t *testing.T, forecaster strategy.Forecaster, obs Observer) *Engine {
	t.Helper()
	reg := strategy.NewRegistry(strategy.RegistryOptions{Forecaster: forecaster, ExternalTimeout: 5 * time.Second})
	return New(strategy.NewDispatcher(reg), Config{Workers: 4, Now: func() time.Time { return fixedNow }}, obs)
}

type recordingObserver struct {
	mu        sync.Mutex
	items     map[string]int
	fallbacks int
	failures  map[domain.ErrorKind]int
	batches   int
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{items: map[string]int{}, failures: map[domain.ErrorKind]int{}}
}

func (o *recordingObserver) ObserveItem(_ domain.Kind, _ string, outcome string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.items[outcome]++
}

func (o *recordingObserver) ObserveFallback(string, domain.ErrorKind) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.fallbacks++
}

func (o *recordingObserver) ObserveFailure(_ domain.Kind, k domain.ErrorKind) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.failures[k]++
}

func (o *recordingObserver) ObserveBatch(domain.Kind, time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.batches++
}

func TestRunBatch_MinMaxOrder(t *testing.T) {
	e := newEngine(t, nil, nil)

	summary, err := e.RunBatch(context.Background(), Batch{
		Kind:      domain.KindReplenishment,
		Blueprint: blueprint.StandardReplenishment(),
		Items: []domain.ItemRecord{{
			ItemID:       "sku-1",
			LocationID:   "loc-1",
			InventoryQty: qty(30),
			Policy:       domain.Policy{Params: map[string]any{"max_level": 200}},
		}},
	})
	if err != nil {
		t.Fatalf("RunBatch() error = %v", err)
	}
	if len(summary.Decisions) != 1 {
		t.Fatalf("decisions = %d, want 1 (failures %+v)", len(summary.Decisions), summary.Failures)
	}

	d := summary.Decisions[0]
	if d.Method != "MinMax" || d.Strategy != string(strategy.MinMax) {
		t.Errorf("method/strategy = %s/%s, want MinMax/MinMax", d.Method, d.Strategy)
	}
	if d.Order == nil || d.Order.Quantity != 170 {
		t.Fatalf("order = %+v, want quantity 170", d.Order)
	}
	wantOrder := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	if !d.Order.OrderDate.Equal(wantOrder) || !d.Order.ExpectedDelivery.Equal(wantOrder.AddDate(0, 0, 7)) {
		t.Errorf("order dates = %v / %v, want %v / +7d", d.Order.OrderDate, d.Order.ExpectedDelivery, wantOrder)
	}
	if !d.GeneratedAt.Equal(fixedNow) {
		t.Errorf("GeneratedAt = %v, want %v", d.GeneratedAt, fixedNow)
	}
}

func TestRunBatch_OneBadActionFailsOneItem(t *testing.T) {
	obs := newRecordingObserver()
	e := newEngine(t, nil, obs)

	items := make([]domain.ItemRecord, 5)
	for i := range items {
		items[i] = domain.ItemRecord{ItemID: fmt.Sprintf("sku-%d", i+1), InventoryQty: qty(30)}
	}
	items[2].Policy.CustomAction = "order_quantity = max_level - * inventory"

	summary, err := e.RunBatch(context.Background(), Batch{
		Blueprint: blueprint.StandardReplenishment(),
		Items:     items,
	})
	if err != nil {
		t.Fatalf("RunBatch() error = %v", err)
	}

	if len(summary.Decisions) != 4 || len(summary.Failures) != 1 {
		t.Fatalf("decisions = %d, failures = %d, want 4 and 1", len(summary.Decisions), len(summary.Failures))
	}
	f := summary.Failures[0]
	if f.ItemID != "sku-3" || f.Kind != domain.ErrKindEvaluation {
		t.Errorf("failure = %+v, want sku-3 evaluation_error", f)
	}
	for i, want := range []string{"sku-1", "sku-2", "sku-4", "sku-5"} {
		if summary.Decisions[i].ItemID != want {
			t.Errorf("decision[%d] = %s, want %s", i, summary.Decisions[i].ItemID, want)
		}
	}
	if summary.Kind != domain.KindReplenishment {
		t.Errorf("Kind = %s, want replenishment", summary.Kind)
	}
	if obs.items["decision"] != 4 || obs.items["failure"] != 1 || obs.failures[domain.ErrKindEvaluation] != 1 || obs.batches != 1 {
		t.Errorf("observer = %+v", obs)
	}
}

func TestRunBatch_SkipsAndMissingInventory(t *testing.T) {
	e := newEngine(t, nil, nil)

	summary, err := e.RunBatch(context.Background(), Batch{
		Blueprint: blueprint.StandardReplenishment(),
		Items: []domain.ItemRecord{
			{ItemID: "stocked", InventoryQty: qty(100)},
			{ItemID: "unknown"},
		},
	})
	if err != nil {
		t.Fatalf("RunBatch() error = %v", err)
	}

	if len(summary.Skipped) != 1 || summary.Skipped[0].ItemID != "stocked" || summary.Skipped[0].Reason != "trigger condition not met" {
		t.Errorf("skipped = %+v", summary.Skipped)
	}
	if len(summary.Failures) != 1 || summary.Failures[0].Kind != domain.ErrKindMissingVariable {
		t.Errorf("failures = %+v, want one missing_variable", summary.Failures)
	}
	if len(summary.Decisions) != 0 {
		t.Errorf("decisions = %+v, want none", summary.Decisions)
	}
}

func TestRunBatch_TriggerNotMetSkipsFailingAction(t *testing.T) {
	e := newEngine(t, nil, nil)

	eoq := domain.Policy{Method: "EOQ", Params: map[string]any{"holding_cost": 0}}
	summary, err := e.RunBatch(context.Background(), Batch{
		Blueprint: blueprint.StandardReplenishment(),
		Items: []domain.ItemRecord{
			{ItemID: "stocked", InventoryQty: qty(1000), Policy: eoq},
			{ItemID: "low", InventoryQty: qty(10), Policy: eoq},
		},
	})
	if err != nil {
		t.Fatalf("RunBatch() error = %v", err)
	}

	if len(summary.Skipped) != 1 || summary.Skipped[0].ItemID != "stocked" || summary.Skipped[0].Reason != "trigger condition not met" {
		t.Errorf("skipped = %+v, want stocked with trigger condition not met", summary.Skipped)
	}
	if len(summary.Failures) != 1 || summary.Failures[0].ItemID != "low" || summary.Failures[0].Kind != domain.ErrKindEvaluation {
		t.Errorf("failures = %+v, want low evaluation_error", summary.Failures)
	}
}

func TestRunBatch_UndecodableItemFailsAlone(t *testing.T) {
	e := newEngine(t, nil, nil)

	summary, err := e.RunBatch(context.Background(), Batch{
		Blueprint: blueprint.StandardReplenishment(),
		Items: []domain.ItemRecord{
			{ItemID: "p1", InventoryQty: qty(30)},
			{ItemID: "p2", InventoryQty: qty(30), LoadErr: &domain.ConfigError{Msg: "invalid policy_overrides for p2"}},
			{ItemID: "p3", InventoryQty: qty(30)},
		},
	})
	if err != nil {
		t.Fatalf("RunBatch() error = %v", err)
	}
	if len(summary.Decisions) != 2 || summary.Decisions[0].ItemID != "p1" || summary.Decisions[1].ItemID != "p3" {
		t.Errorf("decisions = %+v, want p1 and p3", summary.Decisions)
	}
	if len(summary.Failures) != 1 || summary.Failures[0].ItemID != "p2" || summary.Failures[0].Kind != domain.ErrKindConfig {
		t.Errorf("failures = %+v, want p2 config_error", summary.Failures)
	}
}

func TestRunBatch_SegmentPolicy(t *testing.T) {
	e := newEngine(t, nil, nil)

	summary, err := e.RunBatch(context.Background(), Batch{
		Blueprint: blueprint.StandardReplenishment(),
		Segments: map[string]domain.Policy{
			"fast": {Method: "ROP", Params: map[string]any{"safety_stock": 40}},
		},
		Items: []domain.ItemRecord{
			{ItemID: "a", Segment: "fast", InventoryQty: qty(50)},
			{ItemID: "b", Segment: "fast", InventoryQty: qty(50), Policy: domain.Policy{Params: map[string]any{"safety_stock": 0}}},
		},
	})
	if err != nil {
		t.Fatalf("RunBatch() error = %v", err)
	}

	// ROP = 10 * 7 + safety_stock
	want := map[string]float64{"a": 60, "b": 20}
	if len(summary.Decisions) != 2 {
		t.Fatalf("decisions = %+v, failures = %+v", summary.Decisions, summary.Failures)
	}
	for _, d := range summary.Decisions {
		if d.Method != "ROP" || d.Order == nil || d.Order.Quantity != want[d.ItemID] {
			t.Errorf("decision %s = %s %+v, want ROP %v", d.ItemID, d.Method, d.Order, want[d.ItemID])
		}
	}
}

func TestRunBatch_Forecast(t *testing.T) {
	obs := newRecordingObserver()
	e := newEngine(t, nil, obs)

	summary, err := e.RunBatch(context.Background(), Batch{
		Blueprint: blueprint.StandardForecast(),
		Items: []domain.ItemRecord{
			{ItemID: "steady", SalesHistory: []float64{10, 10, 10, 10}},
			{ItemID: "new"},
			{ItemID: "long", SalesHistory: []float64{1, 2}, Policy: domain.Policy{ForecastHorizon: 500}},
		},
	})
	if err != nil {
		t.Fatalf("RunBatch() error = %v", err)
	}
	if len(summary.Decisions) != 3 {
		t.Fatalf("decisions = %d, failures = %+v", len(summary.Decisions), summary.Failures)
	}

	steady := summary.Decisions[0]
	if len(steady.Series) != 3 || steady.Series[2] != 10 || steady.Fallback != nil {
		t.Errorf("steady = %+v, want [10 10 10]", steady)
	}
	wantPeriods := []time.Time{
		time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
	}
	for i, p := range steady.Periods {
		if !p.Equal(wantPeriods[i]) {
			t.Errorf("period[%d] = %v, want %v", i, p, wantPeriods[i])
		}
	}

	fresh := summary.Decisions[1]
	if fresh.Fallback == nil || fresh.Fallback.Kind != domain.ErrKindStrategy || len(fresh.Series) != 3 || fresh.Series[0] != 0 {
		t.Errorf("new item = %+v, want zero fallback", fresh)
	}
	if obs.fallbacks != 1 {
		t.Errorf("fallbacks observed = %d, want 1", obs.fallbacks)
	}

	if got := summary.Decisions[2].Horizon; got != 36 {
		t.Errorf("capped horizon = %d, want 36", got)
	}
}

func TestRunBatch_NoBlueprint(t *testing.T) {
	e := newEngine(t, nil, nil)
	if _, err := e.RunBatch(context.Background(), Batch{Kind: domain.KindForecast}); domain.KindOf(err) != domain.ErrKindConfig {
		t.Errorf("RunBatch() error = %v, want config_error", err)
	}
}

type blockingForecaster struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (f *blockingForecaster) Forecast(ctx context.Context, req strategy.ForecastRequest) ([]float64, error) {
	f.once.Do(func() { close(f.started) })
	<-f.release
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]float64, req.Horizon)
	for i := range out {
		out[i] = 1
	}
	return out, nil
}

func TestRunBatch_CancelStopsNewItems(t *testing.T) {
	fc := &blockingForecaster{started: make(chan struct{}), release: make(chan struct{})}
	reg := strategy.NewRegistry(strategy.RegistryOptions{Forecaster: fc, ExternalTimeout: 5 * time.Second})
	e := New(strategy.NewDispatcher(reg), Config{Workers: 1}, nil)

	items := []domain.ItemRecord{
		{ItemID: "first", SalesHistory: []float64{1}, Policy: domain.Policy{Method: "llm"}},
		{ItemID: "second", SalesHistory: []float64{1}, Policy: domain.Policy{Method: "llm"}},
		{ItemID: "third", SalesHistory: []float64{1}, Policy: domain.Policy{Method: "llm"}},
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan *domain.BatchSummary, 1)
	go func() {
		s, _ := e.RunBatch(ctx, Batch{Blueprint: blueprint.StandardForecast(), Items: items})
		done <- s
	}()

	<-fc.started
	cancel()
	close(fc.release)

	var summary *domain.BatchSummary
	select {
	case summary = <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("RunBatch did not return after cancellation")
	}

	if len(summary.Decisions) != 1 || summary.Decisions[0].ItemID != "first" || summary.Decisions[0].Fallback != nil {
		t.Errorf("decisions = %+v, want the in-flight item completed", summary.Decisions)
	}
	if len(summary.Unprocessed) != 2 || summary.Unprocessed[0] != "second" || summary.Unprocessed[1] != "third" {
		t.Errorf("unprocessed = %v, want [second third]", summary.Unprocessed)
	}
}

func TestRunBatch_PreservesInputOrder(t *testing.T) {
	e := newEngine(t, nil, nil)

	items := make([]domain.ItemRecord, 50)
	for i := range items {
		items[i] = domain.ItemRecord{ItemID: fmt.Sprintf("sku-%02d", i), SalesHistory: []float64{float64(i)}}
	}
	summary, err := e.RunBatch(context.Background(), Batch{Blueprint: blueprint.StandardForecast(), Items: items})
	if err != nil {
		t.Fatalf("RunBatch() error = %v", err)
	}
	for i, d := range summary.Decisions {
		if d.ItemID != items[i].ItemID || d.Series[0] != float64(i) {
			t.Fatalf("decision[%d] = %s %v, want %s", i, d.ItemID, d.Series, items[i].ItemID)
		}
	}
}
