// backend-go/internal/repository/postgres/policy_repository.go
package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/andresuchdata/autoplan/backend-go/internal/blueprint"
	"github.com/andresuchdata/autoplan/backend-go/internal/domain"
)

type policyRepository struct {
	db *DB
}

func NewPolicyRepository(db *DB) *policyRepository {
	return &policyRepository{db: db}
}

type segmentPolicyRow struct {
	Segment         string `db:"segment"`
	Method          string `db:"method"`
	Params          []byte `db:"params"`
	ForecastHorizon int    `db:"forecast_horizon"`
	CustomTrigger   string `db:"custom_trigger"`
	CustomAction    string `db:"custom_action"`
}

func (r *policyRepository) SegmentPolicies(ctx context.Context, companyID string, kind domain.Kind) (map[string]domain.Policy, error) {
	query := `
		SELECT segment, method, params, forecast_horizon, custom_trigger, custom_action
		FROM segment_policies
		WHERE company_id = $1 AND kind = $2
	`

	var rows []segmentPolicyRow
	if err := r.db.SelectContext(ctx, &rows, query, companyID, string(kind)); err != nil {
		return nil, fmt.Errorf("failed to fetch segment policies: %w", err)
	}

	out := make(map[string]domain.Policy, len(rows))
	for _, row := range rows {
		p := domain.Policy{
			Method:          row.Method,
			ForecastHorizon: row.ForecastHorizon,
			CustomTrigger:   row.CustomTrigger,
			CustomAction:    row.CustomAction,
		}
		if len(row.Params) > 0 {
			params, err := decodePolicy(wrapParams(row.Params))
			if err != nil {
				return nil, fmt.Errorf("invalid params for segment %s: %w", row.Segment, err)
			}
			p.Params = params.Params
		}
		out[row.Segment] = p
	}
	return out, nil
}

func (r *policyRepository) SaveSegmentPolicy(ctx context.Context, companyID string, kind domain.Kind, segment string, policy domain.Policy) error {
	params, err := json.Marshal(policy.Params)
	if err != nil {
		return fmt.Errorf("failed to encode params: %w", err)
	}
	if policy.Params == nil {
		params = []byte("{}")
	}

	return r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		query := `
			INSERT INTO segment_policies (
				company_id, kind, segment, method, params,
				forecast_horizon, custom_trigger, custom_action, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
			ON CONFLICT (company_id, kind, segment)
			DO UPDATE SET
				method = EXCLUDED.method,
				params = EXCLUDED.params,
				forecast_horizon = EXCLUDED.forecast_horizon,
				custom_trigger = EXCLUDED.custom_trigger,
				custom_action = EXCLUDED.custom_action,
				updated_at = NOW()
		`
		if _, err := tx.ExecContext(ctx, query,
			companyID, string(kind), segment, policy.Method, params,
			policy.ForecastHorizon, policy.CustomTrigger, policy.CustomAction,
		); err != nil {
			return fmt.Errorf("failed to upsert segment policy: %w", err)
		}
		return nil
	})
}

func wrapParams(params []byte) []byte {
	return append(append([]byte(`{"params":`), params...), '}')
}

type blueprintRepository struct {
	db *DB
}

func NewBlueprintRepository(db *DB) *blueprintRepository {
	return &blueprintRepository{db: db}
}

func (r *blueprintRepository) Blueprint(ctx context.Context, kind domain.Kind) (*domain.Blueprint, error) {
	var doc []byte
	err := r.db.GetContext(ctx, &doc, `SELECT document FROM blueprints WHERE kind = $1`, string(kind))
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch blueprint: %w", err)
	}

	bp, err := blueprint.Parse(doc, blueprint.FormatJSON)
	if err != nil {
		return nil, fmt.Errorf("stored %s blueprint: %w", kind, err)
	}
	return bp, nil
}

func (r *blueprintRepository) SaveBlueprint(ctx context.Context, bp *domain.Blueprint) error {
	doc, err := blueprint.Marshal(bp, blueprint.FormatJSON)
	if err != nil {
		return err
	}

	return r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		query := `
			INSERT INTO blueprints (kind, document, updated_at)
			VALUES ($1, $2, NOW())
			ON CONFLICT (kind)
			DO UPDATE SET document = EXCLUDED.document, updated_at = NOW()
		`
		if _, err := tx.ExecContext(ctx, query, string(bp.AgentType), doc); err != nil {
			return fmt.Errorf("failed to upsert blueprint: %w", err)
		}
		return nil
	})
}
