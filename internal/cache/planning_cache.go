// backend-go/internal/cache/planning_cache.go
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/andresuchdata/autoplan/backend-go/internal/blueprint"
	"github.com/andresuchdata/autoplan/backend-go/internal/config"
	"github.com/andresuchdata/autoplan/backend-go/internal/domain"
)

const (
	planningKeyPrefix      = "planning:"
	blueprintKeyPrefix     = planningKeyPrefix + "blueprint"
	segmentPolicyKeyPrefix = planningKeyPrefix + "segment_policies"
)

// PlanningCache holds blueprints and segment policies between runs.
type PlanningCache interface {
	GetBlueprint(ctx context.Context, kind domain.Kind) (*domain.Blueprint, bool, error)
	SetBlueprint(ctx context.Context, bp *domain.Blueprint) error
	GetSegmentPolicies(ctx context.Context, companyID string, kind domain.Kind) (map[string]domain.Policy, bool, error)
	SetSegmentPolicies(ctx context.Context, companyID string, kind domain.Kind, policies map[string]domain.Policy) error
	InvalidateBlueprint(ctx context.Context, kind domain.Kind) error
	InvalidateSegmentPolicies(ctx context.Context, companyID string, kind domain.Kind) error
	InvalidateAll(ctx context.Context) error
}

type redisPlanningCache struct {
	client *redis.Client
	ttl    time.Duration
}

type noopPlanningCache struct{}

func NewPlanningCache(cfg config.CacheConfig) (PlanningCache, error) {
	if !cfg.Enabled {
		return &noopPlanningCache{}, nil
	}

	client, err := connectRedis(cfg)
	if err != nil {
		return nil, err
	}
	return &redisPlanningCache{client: client, ttl: blueprintTTL(cfg)}, nil
}

func NewNoopPlanningCache() PlanningCache {
	return &noopPlanningCache{}
}

// NewRedisPlanningCache wraps an existing client. ttl <= 0 uses one minute.
func NewRedisPlanningCache(client *redis.Client, ttl time.Duration) PlanningCache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &redisPlanningCache{client: client, ttl: ttl}
}

func (c *redisPlanningCache) GetBlueprint(ctx context.Context, kind domain.Kind) (*domain.Blueprint, bool, error) {
	payload, err := c.client.Get(ctx, blueprintKey(kind)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get failed: %w", err)
	}

	// Parse recompiles and validates, so a stale entry from an older schema misses.
	bp, err := blueprint.Parse(payload, blueprint.FormatJSON)
	if err != nil {
		return nil, false, fmt.Errorf("decode blueprint cache: %w", err)
	}
	return bp, true, nil
}

func (c *redisPlanningCache) SetBlueprint(ctx context.Context, bp *domain.Blueprint) error {
	payload, err := blueprint.Marshal(bp, blueprint.FormatJSON)
	if err != nil {
		return fmt.Errorf("encode blueprint cache: %w", err)
	}

	if err := c.client.Set(ctx, blueprintKey(bp.AgentType), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (c *redisPlanningCache) GetSegmentPolicies(ctx context.Context, companyID string, kind domain.Kind) (map[string]domain.Policy, bool, error) {
	payload, err := c.client.Get(ctx, segmentPolicyKey(companyID, kind)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get failed: %w", err)
	}

	var policies map[string]domain.Policy
	if err := json.Unmarshal(payload, &policies); err != nil {
		return nil, false, fmt.Errorf("decode segment policy cache: %w", err)
	}
	return policies, true, nil
}

func (c *redisPlanningCache) SetSegmentPolicies(ctx context.Context, companyID string, kind domain.Kind, policies map[string]domain.Policy) error {
	payload, err := json.Marshal(policies)
	if err != nil {
		return fmt.Errorf("encode segment policy cache: %w", err)
	}

	if err := c.client.Set(ctx, segmentPolicyKey(companyID, kind), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (c *redisPlanningCache) InvalidateBlueprint(ctx context.Context, kind domain.Kind) error {
	return c.client.Del(ctx, blueprintKey(kind)).Err()
}

func (c *redisPlanningCache) InvalidateSegmentPolicies(ctx context.Context, companyID string, kind domain.Kind) error {
	return c.client.Del(ctx, segmentPolicyKey(companyID, kind)).Err()
}

func (c *redisPlanningCache) InvalidateAll(ctx context.Context) error {
	_, err := unlinkMatching(ctx, c.client, planningKeyPrefix+"*")
	return err
}

func (n *noopPlanningCache) GetBlueprint(ctx context.Context, kind domain.Kind) (*domain.Blueprint, bool, error) {
	return nil, false, nil
}

func (n *noopPlanningCache) SetBlueprint(ctx context.Context, bp *domain.Blueprint) error {
	return nil
}

func (n *noopPlanningCache) GetSegmentPolicies(ctx context.Context, companyID string, kind domain.Kind) (map[string]domain.Policy, bool, error) {
	return nil, false, nil
}

func (n *noopPlanningCache) SetSegmentPolicies(ctx context.Context, companyID string, kind domain.Kind, policies map[string]domain.Policy) error {
	return nil
}

func (n *noopPlanningCache) InvalidateBlueprint(ctx context.Context, kind domain.Kind) error {
	return nil
}

func (n *noopPlanningCache) InvalidateSegmentPolicies(ctx context.Context, companyID string, kind domain.Kind) error {
	return nil
}

func (n *noopPlanningCache) InvalidateAll(ctx context.Context) error {
	return nil
}

func blueprintKey(kind domain.Kind) string {
	return fmt.Sprintf("%s:%s", blueprintKeyPrefix, kind)
}

func segmentPolicyKey(companyID string, kind domain.Kind) string {
	return fmt.Sprintf("%s:%s:%s", segmentPolicyKeyPrefix, strings.ToLower(strings.TrimSpace(companyID)), kind)
}
