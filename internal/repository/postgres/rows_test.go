package postgres

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/andresuchdata/autoplan/backend-go/internal/domain"
)

func TestItemRow_ToDomain(t *testing.T) {
	inv := 30.0
	tests := []struct {
		name        string
		overrides   string
		kind        domain.Kind
		wantMethod  string
		wantMaxLvl  any
		wantHorizon int
	}{
		{
			name:       "flat params",
			overrides:  `{"max_level": 200}`,
			kind:       domain.KindReplenishment,
			wantMaxLvl: "200",
		},
		{
			name:       "typed policy",
			overrides:  `{"method": "ROP", "params": {"max_level": 150}}`,
			kind:       domain.KindReplenishment,
			wantMethod: "ROP",
			wantMaxLvl: "150",
		},
		{
			name:        "scoped by kind",
			overrides:   `{"forecast": {"method": "llm", "forecast_horizon": 6}, "replenishment": {"max_level": 90}}`,
			kind:        domain.KindForecast,
			wantMethod:  "llm",
			wantHorizon: 6,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			row := itemRow{
				ProductID:       "sku-1",
				Inventory:       &inv,
				SalesHistory:    []byte(`[1, 2.5]`),
				PolicyOverrides: []byte(tc.overrides),
			}
			item, err := row.toDomain(tc.kind)
			if err != nil {
				t.Fatalf("toDomain() error = %v", err)
			}
			if item.Policy.Method != tc.wantMethod || item.Policy.ForecastHorizon != tc.wantHorizon {
				t.Errorf("policy = %+v, want method %q horizon %d", item.Policy, tc.wantMethod, tc.wantHorizon)
			}
			got, _ := item.Policy.Param("max_level")
			if tc.wantMaxLvl == nil && got != nil || tc.wantMaxLvl != nil && !domain.SameValue(got, tc.wantMaxLvl) {
				t.Errorf("max_level = %v, want %v", got, tc.wantMaxLvl)
			}
			if len(item.SalesHistory) != 2 || item.SalesHistory[1] != 2.5 || *item.InventoryQty != 30 {
				t.Errorf("item = %+v", item)
			}
		})
	}
}

func TestItemRow_DecodeErrorsAreConfigErrors(t *testing.T) {
	tests := []struct {
		name      string
		row       itemRow
		wantErr   bool
		wantInErr string
	}{
		{"valid", itemRow{ProductID: "p1", SalesHistory: []byte(`[1, 2]`), PolicyOverrides: []byte(`{"max_level": 200}`)}, false, ""},
		{"mistyped override", itemRow{ProductID: "p2", PolicyOverrides: []byte(`{"forecast_horizon": "12"}`)}, true, "invalid policy_overrides for p2"},
		{"mixed history", itemRow{ProductID: "p3", SalesHistory: []byte(`[1, "x"]`)}, true, "invalid sales_history for p3"},
		{"object history", itemRow{ProductID: "p4", SalesHistory: []byte(`{"a":1}`)}, true, "invalid sales_history for p4"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			item, err := tc.row.toDomain(domain.KindReplenishment)
			if (err != nil) != tc.wantErr {
				t.Fatalf("toDomain() error = %v, wantErr %v", err, tc.wantErr)
			}
			if item.ItemID != tc.row.ProductID {
				t.Errorf("ItemID = %q, want %q", item.ItemID, tc.row.ProductID)
			}
			if !tc.wantErr {
				return
			}
			if domain.KindOf(err) != domain.ErrKindConfig {
				t.Errorf("KindOf = %q, want %q", domain.KindOf(err), domain.ErrKindConfig)
			}
			if !strings.Contains(err.Error(), tc.wantInErr) {
				t.Errorf("error = %q, want it to contain %q", err, tc.wantInErr)
			}
		})
	}
}

func TestSegmentParams(t *testing.T) {
	p, err := decodePolicy(wrapParams([]byte(`{"safety_stock": 40}`)))
	if err != nil {
		t.Fatalf("decodePolicy() error = %v", err)
	}
	if v, _ := p.Param("safety_stock"); !domain.SameValue(v, 40) {
		t.Errorf("safety_stock = %v, want 40", v)
	}
}

func TestDecisionRow(t *testing.T) {
	day := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	in := domain.Decision{
		ID:       uuid.New(),
		ItemID:   "sku-1",
		Kind:     domain.KindReplenishment,
		Method:   "MinMax",
		Strategy: "MinMax",
		Order:    &domain.PlannedOrder{Quantity: 170, Trigger: "inventory < min_level", OrderDate: day, ExpectedDelivery: day.AddDate(0, 0, 7)},
		Warnings: []string{"skipped parameter"},
	}

	row, err := newDecisionRow(uuid.New(), in)
	if err != nil {
		t.Fatalf("newDecisionRow() error = %v", err)
	}
	if row.Series != nil || row.FallbackKind != nil || *row.OrderQuantity != 170 {
		t.Errorf("row = %+v", row)
	}

	out, err := row.toDomain()
	if err != nil {
		t.Fatalf("toDomain() error = %v", err)
	}
	if out.Order == nil || out.Order.Quantity != 170 || !out.Order.ExpectedDelivery.Equal(day.AddDate(0, 0, 7)) {
		t.Errorf("order = %+v", out.Order)
	}
	if out.Fallback != nil || len(out.Warnings) != 1 || out.Series != nil {
		t.Errorf("decision = %+v", out)
	}
}
