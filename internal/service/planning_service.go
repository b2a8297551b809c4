// backend-go/internal/service/planning_service.go
package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/autoplan/backend-go/internal/blueprint"
	"github.com/andresuchdata/autoplan/backend-go/internal/cache"
	"github.com/andresuchdata/autoplan/backend-go/internal/domain"
	"github.com/andresuchdata/autoplan/backend-go/internal/engine"
	"github.com/andresuchdata/autoplan/backend-go/internal/repository"
	"github.com/andresuchdata/autoplan/backend-go/internal/storage"
)

// Deps are the planning service collaborators. Items and Policies are required;
// the rest are optional.
type Deps struct {
	Items      repository.ItemRepository
	Policies   repository.PolicyRepository
	Blueprints repository.BlueprintRepository
	Decisions  repository.DecisionRepository
	Catalog    *blueprint.Catalog
	Cache      cache.PlanningCache
	Engine     *engine.Engine
	Exporter   *storage.Exporter
}

type PlanningService struct {
	deps Deps
}

func NewPlanningService(deps Deps) *PlanningService {
	if deps.Cache == nil {
		deps.Cache = cache.NewNoopPlanningCache()
	}
	if deps.Catalog == nil {
		deps.Catalog = blueprint.NewCatalog(nil)
	}
	return &PlanningService{deps: deps}
}

// RunRequest selects what one planning run covers
type RunRequest struct {
	CompanyID string      `json:"company_id"`
	Kind      domain.Kind `json:"kind"`
	// ItemIDs limits the run to these items; empty means all.
	ItemIDs []string `json:"item_ids,omitempty"`
	// DryRun computes decisions without persisting or exporting them.
	DryRun bool `json:"dry_run"`
}

type RunResult struct {
	RunID     string               `json:"run_id,omitempty"`
	ExportKey string               `json:"export_key,omitempty"`
	Summary   *domain.BatchSummary `json:"summary"`
}

// Run fetches inputs once, runs the engine and persists the outcome in one transaction.
// Item-level problems never fail the run; only fetch and persistence errors do.
func (s *PlanningService) Run(ctx context.Context, req RunRequest) (*RunResult, error) {
	if strings.TrimSpace(req.CompanyID) == "" {
		return nil, fmt.Errorf("company id is required")
	}
	kind, ok := domain.ParseKind(string(req.Kind))
	if !ok {
		return nil, &domain.ConfigError{Msg: fmt.Sprintf("unknown planning kind %q", req.Kind)}
	}
	start := time.Now()

	bp, err := s.Blueprint(ctx, kind)
	if err != nil {
		return nil, err
	}
	segments, err := s.SegmentPolicies(ctx, req.CompanyID, kind)
	if err != nil {
		return nil, err
	}
	items, err := s.deps.Items.FetchItems(ctx, req.CompanyID, kind)
	if err != nil {
		return nil, err
	}
	items = filterItems(items, req.ItemIDs)

	summary, err := s.deps.Engine.RunBatch(ctx, engine.Batch{
		Kind:      kind,
		Blueprint: bp,
		Segments:  segments,
		Items:     items,
	})
	if err != nil {
		return nil, err
	}

	result := &RunResult{Summary: summary}
	if req.DryRun || s.deps.Decisions == nil {
		return result, nil
	}

	// Persist even when the caller went away; the decisions are already computed.
	persistCtx := context.WithoutCancel(ctx)
	runID, err := s.deps.Decisions.SaveBatch(persistCtx, req.CompanyID, summary)
	if err != nil {
		return nil, fmt.Errorf("failed to save planning run: %w", err)
	}
	result.RunID = runID

	if s.deps.Exporter != nil {
		key, err := s.deps.Exporter.Export(persistCtx, runID, summary)
		if err != nil {
			log.Warn().Err(err).Str("run_id", runID).Msg("planning: export failed")
		}
		result.ExportKey = key
	}

	log.Info().
		Str("company_id", req.CompanyID).
		Str("kind", string(kind)).
		Str("run_id", runID).
		Dur("duration", time.Since(start)).
		Msg("Planning run saved")
	return result, nil
}

// Blueprint resolves the blueprint for kind: cache, then the repository, then the
// file catalog (which falls back to the standard blueprints).
func (s *PlanningService) Blueprint(ctx context.Context, kind domain.Kind) (*domain.Blueprint, error) {
	if bp, ok, err := s.deps.Cache.GetBlueprint(ctx, kind); err == nil && ok {
		return bp, nil
	} else if err != nil {
		log.Warn().Err(err).Msg("planning: cache get blueprint failed")
	}

	if s.deps.Blueprints != nil {
		bp, err := s.deps.Blueprints.Blueprint(ctx, kind)
		if err != nil {
			return nil, err
		}
		if bp != nil {
			if err := s.deps.Cache.SetBlueprint(ctx, bp); err != nil {
				log.Warn().Err(err).Msg("planning: cache set blueprint failed")
			}
			return bp, nil
		}
	}

	return s.deps.Catalog.Blueprint(ctx, kind)
}

// SaveBlueprint stores bp and drops the cached copy.
func (s *PlanningService) SaveBlueprint(ctx context.Context, bp *domain.Blueprint) error {
	if s.deps.Blueprints == nil {
		return fmt.Errorf("blueprint storage is not configured")
	}
	if err := s.deps.Blueprints.SaveBlueprint(ctx, bp); err != nil {
		return err
	}
	if err := s.deps.Cache.InvalidateBlueprint(ctx, bp.AgentType); err != nil {
		log.Warn().Err(err).Msg("planning: cache invalidate blueprint failed")
	}
	return nil
}

func (s *PlanningService) SegmentPolicies(ctx context.Context, companyID string, kind domain.Kind) (map[string]domain.Policy, error) {
	if policies, ok, err := s.deps.Cache.GetSegmentPolicies(ctx, companyID, kind); err == nil && ok {
		return policies, nil
	} else if err != nil {
		log.Warn().Err(err).Msg("planning: cache get segment policies failed")
	}

	policies, err := s.deps.Policies.SegmentPolicies(ctx, companyID, kind)
	if err != nil {
		return nil, err
	}

	if err := s.deps.Cache.SetSegmentPolicies(ctx, companyID, kind, policies); err != nil {
		log.Warn().Err(err).Msg("planning: cache set segment policies failed")
	}
	return policies, nil
}

// SaveSegmentPolicy checks the policy against the blueprint before storing it, so a
// typo in a method name or expression is reported at write time.
func (s *PlanningService) SaveSegmentPolicy(ctx context.Context, companyID string, kind domain.Kind, segment string, p domain.Policy) error {
	bp, err := s.Blueprint(ctx, kind)
	if err != nil {
		return err
	}
	if err := ValidatePolicy(bp, p); err != nil {
		return err
	}

	if err := s.deps.Policies.SaveSegmentPolicy(ctx, companyID, kind, segment, p); err != nil {
		return err
	}
	if err := s.deps.Cache.InvalidateSegmentPolicies(ctx, companyID, kind); err != nil {
		log.Warn().Err(err).Msg("planning: cache invalidate segment policies failed")
	}
	return nil
}

// Compare reports how an agent config deviates from the blueprint of kind.
func (s *PlanningService) Compare(ctx context.Context, kind domain.Kind, cfg blueprint.AgentConfig) (*blueprint.Comparison, error) {
	bp, err := s.Blueprint(ctx, kind)
	if err != nil {
		return nil, err
	}
	return blueprint.Compare(bp, cfg)
}

func (s *PlanningService) ListRuns(ctx context.Context, companyID string, limit int) ([]domain.RunRecord, error) {
	if s.deps.Decisions == nil {
		return []domain.RunRecord{}, nil
	}
	return s.deps.Decisions.ListRuns(ctx, companyID, limit)
}

func (s *PlanningService) RunDecisions(ctx context.Context, runID string) ([]domain.Decision, error) {
	if s.deps.Decisions == nil {
		return []domain.Decision{}, nil
	}
	return s.deps.Decisions.RunDecisions(ctx, runID)
}

func filterItems(items []domain.ItemRecord, ids []string) []domain.ItemRecord {
	if len(ids) == 0 {
		return items
	}
	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	out := make([]domain.ItemRecord, 0, len(ids))
	for _, it := range items {
		if _, ok := want[it.ItemID]; ok {
			out = append(out, it)
		}
	}
	return out
}
