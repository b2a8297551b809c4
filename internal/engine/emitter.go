// backend-go/internal/engine/emitter.go
package engine

import (
	"time"

	"github.com/google/uuid"

	"github.com/andresuchdata/autoplan/backend-go/internal/domain"
	"github.com/andresuchdata/autoplan/backend-go/internal/strategy"
)

const (
	defaultLeadTimeDays = 7
	periodStepDays      = 30
)

// Emitter packages strategy results into decisions.
type Emitter struct {
	now   func() time.Time
	newID func() uuid.UUID
}

// NewEmitter creates an emitter. A nil clock uses time.Now.
func NewEmitter(now func() time.Time) *Emitter {
	if now == nil {
		now = time.Now
	}
	return &Emitter{now: now, newID: uuid.New}
}

// Emit builds the decision for one item. The returned value owns all of its slices.
func (e *Emitter) Emit(item domain.ItemRecord, merged domain.MergedPolicy, res strategy.Result, warnings []domain.ExtractionWarning) domain.Decision {
	now := e.now().UTC()

	d := domain.Decision{
		ID:          e.newID(),
		ItemID:      item.ItemID,
		LocationID:  item.LocationID,
		Kind:        merged.Kind,
		Method:      merged.MethodName,
		Strategy:    string(res.Strategy),
		Horizon:     merged.EffectiveHorizon,
		Fallback:    res.Fallback,
		GeneratedAt: now,
	}

	for _, w := range warnings {
		d.Warnings = append(d.Warnings, w.Error())
	}
	d.Warnings = append(d.Warnings, res.Warnings...)

	if merged.Kind == domain.KindForecast {
		d.Series = append([]float64(nil), res.Series...)
		d.Periods = Periods(now, len(d.Series))
		d.Horizon = len(d.Series)
	}

	if res.Order != nil {
		order := *res.Order
		order.OrderDate, order.ExpectedDelivery = OrderDates(now, merged)
		d.Order = &order
	}
	return d
}

// Periods returns the month start of now + 30*i days for each of the h forecast periods.
func Periods(now time.Time, h int) []time.Time {
	if h <= 0 {
		return nil
	}
	out := make([]time.Time, h)
	for i := range out {
		t := now.AddDate(0, 0, periodStepDays*i)
		out[i] = time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	}
	return out
}

// OrderDates places the order lead_time_offset_days after today and expects delivery
// lead_time days after that.
func OrderDates(now time.Time, merged domain.MergedPolicy) (orderDate, delivery time.Time) {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	offset := 0
	if v, ok := merged.Param("lead_time_offset_days"); ok {
		if n, ok := domain.ToInt(v); ok {
			offset = n
		}
	}
	lead := defaultLeadTimeDays
	if v, ok := merged.Param("lead_time"); ok {
		if n, ok := domain.ToInt(v); ok {
			lead = n
		}
	}

	orderDate = today.AddDate(0, 0, offset)
	return orderDate, orderDate.AddDate(0, 0, lead)
}
