// backend-go/internal/repository/postgres/decision_repository.go
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/andresuchdata/autoplan/backend-go/internal/domain"
)

type decisionRepository struct {
	db *DB
}

func NewDecisionRepository(db *DB) *decisionRepository {
	return &decisionRepository{db: db}
}

// decisionRow is the flattened planning_decisions row
type decisionRow struct {
	ID               uuid.UUID  `db:"id"`
	RunID            uuid.UUID  `db:"run_id"`
	ItemID           string     `db:"item_id"`
	LocationID       string     `db:"location_id"`
	Kind             string     `db:"kind"`
	Method           string     `db:"method"`
	Strategy         string     `db:"strategy"`
	Horizon          int        `db:"horizon"`
	Series           []byte     `db:"series"`
	Periods          []byte     `db:"periods"`
	OrderQuantity    *float64   `db:"order_quantity"`
	OrderTrigger     *string    `db:"order_trigger"`
	OrderDate        *time.Time `db:"order_date"`
	ExpectedDelivery *time.Time `db:"expected_delivery"`
	FallbackKind     *string    `db:"fallback_kind"`
	FallbackMessage  *string    `db:"fallback_message"`
	Warnings         []byte     `db:"warnings"`
	GeneratedAt      time.Time  `db:"generated_at"`
}

func newDecisionRow(runID uuid.UUID, d domain.Decision) (decisionRow, error) {
	row := decisionRow{
		ID:          d.ID,
		RunID:       runID,
		ItemID:      d.ItemID,
		LocationID:  d.LocationID,
		Kind:        string(d.Kind),
		Method:      d.Method,
		Strategy:    d.Strategy,
		Horizon:     d.Horizon,
		GeneratedAt: d.GeneratedAt,
	}

	var err error
	if d.Series != nil {
		if row.Series, err = json.Marshal(d.Series); err != nil {
			return row, err
		}
	}
	if d.Periods != nil {
		if row.Periods, err = json.Marshal(d.Periods); err != nil {
			return row, err
		}
	}
	if d.Warnings != nil {
		if row.Warnings, err = json.Marshal(d.Warnings); err != nil {
			return row, err
		}
	}
	if o := d.Order; o != nil {
		row.OrderQuantity = &o.Quantity
		row.OrderTrigger = &o.Trigger
		row.OrderDate = &o.OrderDate
		row.ExpectedDelivery = &o.ExpectedDelivery
	}
	if f := d.Fallback; f != nil {
		kind := string(f.Kind)
		row.FallbackKind = &kind
		row.FallbackMessage = &f.Message
	}
	return row, nil
}

func (row decisionRow) toDomain() (domain.Decision, error) {
	d := domain.Decision{
		ID:          row.ID,
		ItemID:      row.ItemID,
		LocationID:  row.LocationID,
		Kind:        domain.Kind(row.Kind),
		Method:      row.Method,
		Strategy:    row.Strategy,
		Horizon:     row.Horizon,
		GeneratedAt: row.GeneratedAt,
	}
	for _, col := range []struct {
		raw  []byte
		into any
	}{
		{row.Series, &d.Series},
		{row.Periods, &d.Periods},
		{row.Warnings, &d.Warnings},
	} {
		if len(col.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(col.raw, col.into); err != nil {
			return d, fmt.Errorf("invalid stored decision %s: %w", row.ID, err)
		}
	}
	if row.OrderQuantity != nil {
		d.Order = &domain.PlannedOrder{Quantity: *row.OrderQuantity}
		if row.OrderTrigger != nil {
			d.Order.Trigger = *row.OrderTrigger
		}
		if row.OrderDate != nil {
			d.Order.OrderDate = *row.OrderDate
		}
		if row.ExpectedDelivery != nil {
			d.Order.ExpectedDelivery = *row.ExpectedDelivery
		}
	}
	if row.FallbackKind != nil {
		d.Fallback = &domain.Fallback{Kind: domain.ErrorKind(*row.FallbackKind)}
		if row.FallbackMessage != nil {
			d.Fallback.Message = *row.FallbackMessage
		}
	}
	return d, nil
}

func (r *decisionRepository) SaveBatch(ctx context.Context, companyID string, summary *domain.BatchSummary) (string, error) {
	runID := uuid.New()

	err := r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		// 1. Run header
		_, err := tx.ExecContext(ctx, `
			INSERT INTO planning_runs (
				id, company_id, kind, decisions, failures, skipped,
				unprocessed, started_at, finished_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`,
			runID, companyID, string(summary.Kind),
			len(summary.Decisions), len(summary.Failures), len(summary.Skipped), len(summary.Unprocessed),
			summary.StartedAt, summary.FinishedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert planning run: %w", err)
		}

		// 2. Decisions
		if len(summary.Decisions) > 0 {
			stmt, err := tx.PrepareNamedContext(ctx, `
				INSERT INTO planning_decisions (
					id, run_id, item_id, location_id, kind, method, strategy, horizon,
					series, periods, order_quantity, order_trigger, order_date,
					expected_delivery, fallback_kind, fallback_message, warnings, generated_at
				) VALUES (
					:id, :run_id, :item_id, :location_id, :kind, :method, :strategy, :horizon,
					:series, :periods, :order_quantity, :order_trigger, :order_date,
					:expected_delivery, :fallback_kind, :fallback_message, :warnings, :generated_at
				)
			`)
			if err != nil {
				return fmt.Errorf("failed to prepare decision insert: %w", err)
			}
			defer stmt.Close()

			for _, d := range summary.Decisions {
				row, err := newDecisionRow(runID, d)
				if err != nil {
					return fmt.Errorf("failed to encode decision for %s: %w", d.ItemID, err)
				}
				if _, err := stmt.ExecContext(ctx, row); err != nil {
					return fmt.Errorf("failed to insert decision for %s: %w", d.ItemID, err)
				}
			}
		}

		// 3. Failures
		for _, f := range summary.Failures {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO planning_failures (run_id, item_id, location_id, error_kind, message)
				VALUES ($1, $2, $3, $4, $5)
			`, runID, f.ItemID, f.LocationID, string(f.Kind), f.Message)
			if err != nil {
				return fmt.Errorf("failed to insert failure for %s: %w", f.ItemID, err)
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return runID.String(), nil
}

func (r *decisionRepository) ListRuns(ctx context.Context, companyID string, limit int) ([]domain.RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `
		SELECT id::text AS id, company_id, kind, decisions, failures, skipped,
			unprocessed, started_at, finished_at
		FROM planning_runs
		WHERE company_id = $1
		ORDER BY started_at DESC
		LIMIT $2
	`
	var runs []domain.RunRecord
	if err := r.db.SelectContext(ctx, &runs, query, companyID, limit); err != nil {
		return nil, fmt.Errorf("failed to list planning runs: %w", err)
	}
	return runs, nil
}

func (r *decisionRepository) RunDecisions(ctx context.Context, runID string) ([]domain.Decision, error) {
	id, err := uuid.Parse(runID)
	if err != nil {
		return nil, fmt.Errorf("invalid run id %q: %w", runID, err)
	}

	var rows []decisionRow
	if err := r.db.SelectContext(ctx, &rows, `
		SELECT id, run_id, item_id, location_id, kind, method, strategy, horizon,
			series, periods, order_quantity, order_trigger, order_date,
			expected_delivery, fallback_kind, fallback_message, warnings, generated_at
		FROM planning_decisions
		WHERE run_id = $1
		ORDER BY generated_at, item_id
	`, id); err != nil {
		return nil, fmt.Errorf("failed to fetch run decisions: %w", err)
	}

	out := make([]domain.Decision, 0, len(rows))
	for _, row := range rows {
		d, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
