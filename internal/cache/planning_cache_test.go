package cache

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/andresuchdata/autoplan/backend-go/internal/blueprint"
	"github.com/andresuchdata/autoplan/backend-go/internal/config"
	"github.com/andresuchdata/autoplan/backend-go/internal/domain"
)

func TestNewPlanningCache_DisabledIsNoop(t *testing.T) {
	c, err := NewPlanningCache(config.CacheConfig{Enabled: false})
	if err != nil {
		t.Fatalf("NewPlanningCache() error = %v", err)
	}
	ctx := context.Background()

	if err := c.SetBlueprint(ctx, blueprint.StandardForecast()); err != nil {
		t.Errorf("SetBlueprint() error = %v", err)
	}
	if bp, ok, err := c.GetBlueprint(ctx, domain.KindForecast); bp != nil || ok || err != nil {
		t.Errorf("GetBlueprint() = %v, %v, %v, want a miss", bp, ok, err)
	}
	if _, ok, _ := c.GetSegmentPolicies(ctx, "acme", domain.KindForecast); ok {
		t.Error("GetSegmentPolicies() hit on the no-op cache")
	}
}

func TestKeys(t *testing.T) {
	if got := blueprintKey(domain.KindReplenishment); got != "planning:blueprint:replenishment" {
		t.Errorf("blueprintKey = %q", got)
	}
	if got := segmentPolicyKey(" ACME ", domain.KindForecast); got != "planning:segment_policies:acme:forecast" {
		t.Errorf("segmentPolicyKey = %q", got)
	}
}

func TestBuildRedisOptions(t *testing.T) {
	tests := []struct {
		name     string
		cfg      config.CacheConfig
		wantAddr string
		wantErr  bool
	}{
		{"defaults", config.CacheConfig{}, "127.0.0.1:6379", false},
		{"host and port", config.CacheConfig{RedisHost: "cache", RedisPort: "6380"}, "cache:6380", false},
		{"url wins", config.CacheConfig{RedisURL: "redis://redis.internal:7000/2", RedisHost: "ignored"}, "redis.internal:7000", false},
		{"bad url", config.CacheConfig{RedisURL: "http://nope"}, "", true},
	}
	for _, tc := range tests {
		opts, err := buildRedisOptions(tc.cfg)
		if tc.wantErr {
			if err == nil {
				t.Errorf("%s: buildRedisOptions() error = nil, want error", tc.name)
			}
			continue
		}
		if err != nil {
			t.Errorf("%s: buildRedisOptions() error = %v", tc.name, err)
			continue
		}
		if opts.Addr != tc.wantAddr {
			t.Errorf("%s: Addr = %q, want %q", tc.name, opts.Addr, tc.wantAddr)
		}
	}
}

func TestRedisPlanningCache_UnreachableServer(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	c := NewRedisPlanningCache(client, time.Minute)
	_, ok, err := c.GetBlueprint(context.Background(), domain.KindForecast)
	if ok || err == nil || !strings.Contains(err.Error(), "redis get failed") {
		t.Errorf("GetBlueprint() = %v, %v, want a wrapped redis error", ok, err)
	}
}

func TestRedisTimeoutsAndTTL(t *testing.T) {
	opts, err := buildRedisOptions(config.CacheConfig{RedisURL: "redis://localhost:6379/0"})
	if err != nil {
		t.Fatalf("buildRedisOptions() error = %v", err)
	}
	if opts.DialTimeout != redisDialTimeout || opts.ReadTimeout != redisIOTimeout {
		t.Errorf("timeouts = %v/%v, want %v/%v", opts.DialTimeout, opts.ReadTimeout, redisDialTimeout, redisIOTimeout)
	}

	if got := blueprintTTL(config.CacheConfig{}); got != defaultCacheTTL {
		t.Errorf("blueprintTTL(zero) = %v, want %v", got, defaultCacheTTL)
	}
	if got := blueprintTTL(config.CacheConfig{BlueprintTTLSeconds: 90}); got != 90*time.Second {
		t.Errorf("blueprintTTL(90) = %v, want 90s", got)
	}
}
