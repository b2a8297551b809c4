// backend-go/internal/domain/decision.go
package domain

import (
	"time"

	"github.com/google/uuid"
)

// ItemRecord is the operational snapshot of one product at one location.
// Nil quantities mean the data source had no value for the row.
type ItemRecord struct {
	ItemID       string    `json:"item_id" db:"product_id"`
	LocationID   string    `json:"location_id" db:"location_id"`
	Segment      string    `json:"segment" db:"segment"`
	InventoryQty *float64  `json:"inventory_qty,omitempty" db:"inventory"`
	ForecastQty  *float64  `json:"forecast_qty,omitempty" db:"forecast_quantity"`
	SalesHistory []float64 `json:"sales_history,omitempty"`
	Policy       Policy    `json:"policy_overrides"`

	// LoadErr is set when the stored row could not be decoded. The item is still
	// handed to the engine, which records it as a failure.
	LoadErr error `json:"-" db:"-"`
}

// PlannedOrder is the replenishment payload of a decision
type PlannedOrder struct {
	Quantity         float64   `json:"quantity"`
	Trigger          string    `json:"trigger"`
	OrderDate        time.Time `json:"order_date"`
	ExpectedDelivery time.Time `json:"expected_delivery"`
}

// Fallback records why a strategy returned its documented fallback value
type Fallback struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

// Decision is the immutable output for one item. Ownership passes to the caller.
type Decision struct {
	ID          uuid.UUID     `json:"id"`
	ItemID      string        `json:"item_id"`
	LocationID  string        `json:"location_id"`
	Kind        Kind          `json:"kind"`
	Method      string        `json:"method"`
	Strategy    string        `json:"strategy"`
	Horizon     int           `json:"horizon"`
	Series      []float64     `json:"series,omitempty"`
	Periods     []time.Time   `json:"periods,omitempty"`
	Order       *PlannedOrder `json:"order,omitempty"`
	Fallback    *Fallback     `json:"fallback,omitempty"`
	Warnings    []string      `json:"warnings,omitempty"`
	GeneratedAt time.Time     `json:"generated_at"`
}

// Failure is a recorded per-item error
type Failure struct {
	ItemID     string    `json:"item_id"`
	LocationID string    `json:"location_id"`
	Kind       ErrorKind `json:"error_kind"`
	Message    string    `json:"message"`
}

// Skip records an item that ran cleanly but produced nothing to persist,
// e.g. a replenishment trigger that did not fire.
type Skip struct {
	ItemID     string `json:"item_id"`
	LocationID string `json:"location_id"`
	Reason     string `json:"reason"`
}

// BatchSummary separates successful decisions from failures for one run
type BatchSummary struct {
	Kind        Kind       `json:"kind"`
	Decisions   []Decision `json:"decisions"`
	Failures    []Failure  `json:"failures"`
	Skipped     []Skip     `json:"skipped"`
	Unprocessed []string   `json:"unprocessed,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	FinishedAt  time.Time  `json:"finished_at"`
}

// RunRecord is the stored header of one persisted batch
type RunRecord struct {
	ID          string    `json:"id" db:"id"`
	CompanyID   string    `json:"company_id" db:"company_id"`
	Kind        Kind      `json:"kind" db:"kind"`
	Decisions   int       `json:"decisions" db:"decisions"`
	Failures    int       `json:"failures" db:"failures"`
	Skipped     int       `json:"skipped" db:"skipped"`
	Unprocessed int       `json:"unprocessed" db:"unprocessed"`
	StartedAt   time.Time `json:"started_at" db:"started_at"`
	FinishedAt  time.Time `json:"finished_at" db:"finished_at"`
}
