package storage

import (
	"bytes"
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/andresuchdata/autoplan/backend-go/internal/blueprint"
	"github.com/andresuchdata/autoplan/backend-go/internal/domain"
)

func TestLocalStorage(t *testing.T) {
	ctx := context.Background()
	store := NewLocalStorage(t.TempDir())

	if err := store.UploadObject(ctx, "a/one.json", []byte("1"), "application/json"); err != nil {
		t.Fatalf("UploadObject() error = %v", err)
	}
	if err := store.UploadObject(ctx, "b/two.json", []byte("22"), ""); err != nil {
		t.Fatalf("UploadObject() error = %v", err)
	}
	if err := store.UploadObject(ctx, "../escape", []byte("x"), ""); err == nil {
		t.Error("UploadObject(../escape) error = nil, want invalid key")
	}

	objs, err := store.ListObjects(ctx, "a/")
	if err != nil || len(objs) != 1 || objs[0].Key != "a/one.json" || objs[0].Size != 1 {
		t.Errorf("ListObjects(a/) = %+v, %v", objs, err)
	}

	dest := filepath.Join(t.TempDir(), "nested", "two.json")
	if err := store.DownloadObject(ctx, "b/two.json", dest); err != nil {
		t.Fatalf("DownloadObject() error = %v", err)
	}
	if data, _ := os.ReadFile(dest); string(data) != "22" {
		t.Errorf("downloaded = %q, want 22", data)
	}

	empty := NewLocalStorage(filepath.Join(t.TempDir(), "missing"))
	if objs, err := empty.ListObjects(ctx, ""); err != nil || len(objs) != 0 {
		t.Errorf("ListObjects on a missing root = %v, %v, want empty", objs, err)
	}
}

func TestBlueprintObjects(t *testing.T) {
	ctx := context.Background()
	store := NewLocalStorage(t.TempDir())

	key, err := PublishBlueprint(ctx, store, "blueprints/", blueprint.StandardReplenishment())
	if err != nil || key != "blueprints/replenishment.json" {
		t.Fatalf("PublishBlueprint() = %q, %v", key, err)
	}
	yamlDoc, _ := blueprint.Marshal(blueprint.StandardForecast(), blueprint.FormatYAML)
	_ = store.UploadObject(ctx, "blueprints/forecast.yaml", yamlDoc, "")
	_ = store.UploadObject(ctx, "blueprints/README.md", []byte("notes"), "")

	got, err := LoadBlueprints(ctx, store, "blueprints/")
	if err != nil {
		t.Fatalf("LoadBlueprints() error = %v", err)
	}
	if len(got) != 2 || got[domain.KindForecast] == nil || got[domain.KindReplenishment] == nil {
		t.Errorf("LoadBlueprints() = %v, want both kinds", got)
	}

	dir := t.TempDir()
	n, err := SyncBlueprints(ctx, store, "blueprints/", dir)
	if err != nil || n != 2 {
		t.Fatalf("SyncBlueprints() = %d, %v, want 2", n, err)
	}
	if _, err := os.Stat(filepath.Join(dir, "forecast.yaml")); err != nil {
		t.Errorf("synced file missing: %v", err)
	}

	_, _ = PublishBlueprint(ctx, store, "dup/", blueprint.StandardForecast())
	_ = store.UploadObject(ctx, "dup/other.yaml", yamlDoc, "")
	if _, err := LoadBlueprints(ctx, store, "dup/"); domain.KindOf(err) != domain.ErrKindConfig {
		t.Errorf("LoadBlueprints(dup/) error = %v, want config_error", err)
	}
}

func TestExporter(t *testing.T) {
	ctx := context.Background()
	store := NewLocalStorage(t.TempDir())
	day := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)

	summary := &domain.BatchSummary{
		Kind:      domain.KindReplenishment,
		StartedAt: day,
		Decisions: []domain.Decision{
			{
				ID:       uuid.New(),
				ItemID:   "sku-1",
				Kind:     domain.KindReplenishment,
				Method:   "MinMax",
				Strategy: "MinMax",
				Order:    &domain.PlannedOrder{Quantity: 170, OrderDate: day, ExpectedDelivery: day.AddDate(0, 0, 7)},
			},
		},
	}

	key, err := NewExporter(store, "").Export(ctx, "run-1", summary)
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if key != "exports/replenishment/2026-03-15/run-1/decisions.csv" {
		t.Errorf("key = %q", key)
	}

	data, err := store.GetObject(ctx, key)
	if err != nil {
		t.Fatalf("GetObject() error = %v", err)
	}
	rows, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	if err != nil || len(rows) != 2 {
		t.Fatalf("csv rows = %v, %v", rows, err)
	}
	if rows[1][1] != "sku-1" || rows[1][9] != "170" || rows[1][11] != "2026-03-22" {
		t.Errorf("row = %v", rows[1])
	}
	if _, err := store.GetObject(ctx, "exports/replenishment/2026-03-15/run-1/summary.json"); err != nil {
		t.Errorf("summary.json missing: %v", err)
	}
}
