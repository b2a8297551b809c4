// backend-go/internal/repository/planning_repository.go
package repository

import (
	"context"

	"github.com/andresuchdata/autoplan/backend-go/internal/domain"
)

// ItemRepository fetches the operational snapshot the engine plans over.
type ItemRepository interface {
	FetchItems(ctx context.Context, companyID string, kind domain.Kind) ([]domain.ItemRecord, error)
}

// PolicyRepository returns segment policies keyed by segment name.
type PolicyRepository interface {
	SegmentPolicies(ctx context.Context, companyID string, kind domain.Kind) (map[string]domain.Policy, error)
	SaveSegmentPolicy(ctx context.Context, companyID string, kind domain.Kind, segment string, policy domain.Policy) error
}

// BlueprintRepository stores blueprint documents. Blueprint returns nil, nil when no
// document is stored for kind.
type BlueprintRepository interface {
	Blueprint(ctx context.Context, kind domain.Kind) (*domain.Blueprint, error)
	SaveBlueprint(ctx context.Context, bp *domain.Blueprint) error
}

// DecisionRepository persists batch outcomes.
type DecisionRepository interface {
	// SaveBatch writes the run with its decisions and failures in one transaction
	// and returns the run id.
	SaveBatch(ctx context.Context, companyID string, summary *domain.BatchSummary) (string, error)
	ListRuns(ctx context.Context, companyID string, limit int) ([]domain.RunRecord, error)
	RunDecisions(ctx context.Context, runID string) ([]domain.Decision, error)
}
