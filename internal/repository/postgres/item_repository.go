// backend-go/internal/repository/postgres/item_repository.go
package postgres

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/autoplan/backend-go/internal/domain"
	"github.com/andresuchdata/autoplan/backend-go/internal/ingest"
)

type itemRepository struct {
	db *DB
}

func NewItemRepository(db *DB) *itemRepository {
	return &itemRepository{db: db}
}

type itemRow struct {
	ProductID        string   `db:"product_id"`
	LocationID       string   `db:"location_id"`
	Segment          string   `db:"segment"`
	Inventory        *float64 `db:"inventory"`
	ForecastQuantity *float64 `db:"forecast_quantity"`
	SalesHistory     []byte   `db:"sales_history"`
	PolicyOverrides  []byte   `db:"policy_overrides"`
}

// FetchItems reads every item of the company. Items are the same for both kinds;
// kind only selects which policy overrides apply.
func (r *itemRepository) FetchItems(ctx context.Context, companyID string, kind domain.Kind) ([]domain.ItemRecord, error) {
	query := `
		SELECT product_id, location_id, segment, inventory, forecast_quantity,
			sales_history, policy_overrides
		FROM planning_items
		WHERE company_id = $1
		ORDER BY product_id, location_id
	`

	var rows []itemRow
	if err := r.db.SelectContext(ctx, &rows, query, companyID); err != nil {
		return nil, fmt.Errorf("failed to fetch planning items: %w", err)
	}

	// A row that does not decode fails on its own in the engine, not the whole fetch.
	items := make([]domain.ItemRecord, 0, len(rows))
	for _, row := range rows {
		item, err := row.toDomain(kind)
		if err != nil {
			log.Warn().Err(err).Str("item_id", row.ProductID).Msg("Undecodable planning item")
			item.LoadErr = err
		}
		items = append(items, item)
	}
	return items, nil
}

// UpsertItems replaces the snapshot of the given items in one transaction.
func (r *itemRepository) UpsertItems(ctx context.Context, companyID string, rows []ingest.ItemRow) (int, error) {
	query := `
		INSERT INTO planning_items (
			company_id, product_id, location_id, segment, inventory, forecast_quantity,
			sales_history, policy_overrides, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		ON CONFLICT (company_id, product_id, location_id)
		DO UPDATE SET
			segment = EXCLUDED.segment,
			inventory = EXCLUDED.inventory,
			forecast_quantity = EXCLUDED.forecast_quantity,
			sales_history = EXCLUDED.sales_history,
			policy_overrides = EXCLUDED.policy_overrides,
			updated_at = NOW()
	`

	err := r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		stmt, err := tx.PreparexContext(ctx, query)
		if err != nil {
			return fmt.Errorf("failed to prepare item upsert: %w", err)
		}
		defer stmt.Close()

		for _, row := range rows {
			history, err := json.Marshal(row.SalesHistory)
			if err != nil {
				return err
			}
			if row.SalesHistory == nil {
				history = []byte("[]")
			}
			overrides := []byte(row.Overrides)
			if len(overrides) == 0 {
				overrides = []byte("{}")
			}

			if _, err := stmt.ExecContext(ctx,
				companyID, row.ItemID, row.LocationID, row.Segment,
				row.InventoryQty, row.ForecastQty, history, overrides,
			); err != nil {
				return fmt.Errorf("failed to upsert item %s: %w", row.ItemID, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

// toDomain decodes the JSON columns. policy_overrides is either a flat policy or an
// object keyed by kind ({"forecast": {...}, "replenishment": {...}}).
func (row itemRow) toDomain(kind domain.Kind) (domain.ItemRecord, error) {
	item := domain.ItemRecord{
		ItemID:       row.ProductID,
		LocationID:   row.LocationID,
		Segment:      row.Segment,
		InventoryQty: row.Inventory,
		ForecastQty:  row.ForecastQuantity,
	}

	if len(row.SalesHistory) > 0 {
		if err := json.Unmarshal(row.SalesHistory, &item.SalesHistory); err != nil {
			return item, &domain.ConfigError{Msg: fmt.Sprintf("invalid sales_history for %s: %v", row.ProductID, err)}
		}
	}

	if len(row.PolicyOverrides) > 0 {
		var byKind map[domain.Kind]json.RawMessage
		if err := json.Unmarshal(row.PolicyOverrides, &byKind); err != nil {
			return item, &domain.ConfigError{Msg: fmt.Sprintf("invalid policy_overrides for %s: %v", row.ProductID, err)}
		}
		raw := []byte(row.PolicyOverrides)
		if scoped, ok := byKind[kind]; ok {
			raw = scoped
		}
		policy, err := decodePolicy(raw)
		if err != nil {
			return item, &domain.ConfigError{Msg: fmt.Sprintf("invalid policy_overrides for %s: %v", row.ProductID, err)}
		}
		item.Policy = policy
	}
	return item, nil
}

// decodePolicy reads a policy where unknown top-level keys are parameters, so both
// {"params": {"max_level": 200}} and {"max_level": 200} work.
func decodePolicy(raw []byte) (domain.Policy, error) {
	var p domain.Policy
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&p); err != nil {
		return p, err
	}

	var flat map[string]any
	dec = json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&flat); err != nil {
		return p, err
	}
	for k, v := range flat {
		switch k {
		case "method", "params", "forecast_horizon", "custom_trigger", "custom_action",
			string(domain.KindForecast), string(domain.KindReplenishment):
			continue
		}
		if p.Params == nil {
			p.Params = make(map[string]any)
		}
		if _, set := p.Params[k]; !set {
			p.Params[k] = v
		}
	}
	return p, nil
}
