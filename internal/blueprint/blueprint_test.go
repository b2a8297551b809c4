package blueprint

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/andresuchdata/autoplan/backend-go/internal/domain"
)

const replenishmentJSON = `{
  "agent_type": "Replenishment",
  "methods": [
    {
      "name": "MinMax",
      "parameters": {
        "inventory": {"default": null, "overridable": false, "source": "inventory", "required": true},
        "min_level": {"default": 50, "overridable": true, "source": "policy"},
        "max_level": {"default": 200, "overridable": true, "source": "policy"}
      },
      "trigger_condition": "inventory < min_level",
      "action_expression": "order_quantity = max_level - inventory"
    },
    {
      "method_name": "Consumption-Based",
      "default": true,
      "parameters": {
        "past_30_day_usage": {"default": 300, "overridable": true, "source": "usage_data"}
      },
      "action_logic": "past_30_day_usage / 30"
    }
  ]
}`

const forecastYAML = `
agent_type: forecasting
default_method: linear_regression
methods:
  - method_name: moving_average
    max_horizon: 12
    parameters:
      window: {default: 4, overridable: true, source: policy}
  - method_name: linear_regression
    aliases: [trend]
    parameters: {}
`

func TestParse_JSON(t *testing.T) {
	bp, err := Parse([]byte(replenishmentJSON), FormatJSON)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if bp.AgentType != domain.KindReplenishment {
		t.Errorf("AgentType = %q, want %q", bp.AgentType, domain.KindReplenishment)
	}
	if bp.DefaultMethod != "Consumption-Based" {
		t.Errorf("DefaultMethod = %q, want Consumption-Based", bp.DefaultMethod)
	}

	mm, ok := bp.Method("MinMax")
	if !ok {
		t.Fatal("MinMax not found")
	}
	if mm.ActionExpression != "order_quantity = max_level - inventory" {
		t.Errorf("ActionExpression = %q", mm.ActionExpression)
	}
	if got := mm.Parameters["inventory"]; got.Overridable || !got.Required || got.Source != domain.SourceInventory {
		t.Errorf("inventory spec = %+v", got)
	}
	if got, _ := domain.ToFloat(mm.Parameters["max_level"].Default); got != 200 {
		t.Errorf("max_level default = %v, want 200", got)
	}

	cb, _ := bp.Method("consumption_based")
	if cb == nil || cb.Parameters["past_30_day_usage"].Source != domain.SourceUsage {
		t.Errorf("usage_data source alias not normalized: %+v", cb)
	}
}

func TestParse_YAML(t *testing.T) {
	bp, err := Parse([]byte(forecastYAML), FormatYAML)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if bp.AgentType != domain.KindForecast {
		t.Errorf("AgentType = %q, want forecast", bp.AgentType)
	}
	ma, ok := bp.Method("moving_average")
	if !ok || ma.MaxHorizon == nil || *ma.MaxHorizon != 12 {
		t.Fatalf("moving_average max_horizon not loaded: %+v", ma)
	}
	if _, ok := bp.Method("Trend"); !ok {
		t.Error("alias lookup failed")
	}
	def, _ := bp.Default()
	if def == nil || def.Name != "linear_regression" {
		t.Errorf("Default() = %v, want linear_regression", def)
	}
}

func TestParse_Rejects(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"not json", `{"agent_type":`},
		{"missing agent type", `{"methods":[{"method_name":"a","parameters":{}}]}`},
		{"unknown agent type", `{"agent_type":"pricing","methods":[{"method_name":"a","parameters":{}}]}`},
		{"no methods", `{"agent_type":"forecast","methods":[]}`},
		{"unnamed method", `{"agent_type":"forecast","methods":[{"parameters":{}}]}`},
		{"unknown source", `{"agent_type":"forecast","methods":[{"method_name":"a","parameters":{"x":{"default":1,"source":"erp"}}}]}`},
		{"bad trigger", `{"agent_type":"replenishment","methods":[{"method_name":"a","parameters":{},"trigger_condition":"__import__('os')"}]}`},
		{"duplicate method", `{"agent_type":"forecast","methods":[{"method_name":"MinMax","parameters":{}},{"method_name":"min-max","parameters":{}}]}`},
		{"unknown default", `{"agent_type":"forecast","default_method":"b","methods":[{"method_name":"a","parameters":{}}]}`},
		{"zero max horizon", `{"agent_type":"forecast","methods":[{"method_name":"a","parameters":{},"max_horizon":0}]}`},
		{"bad customizable field", `{"agent_type":"forecast","methods":[{"method_name":"a","parameters":{},"customizable_fields":["horizon"]}]}`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.doc), FormatJSON)
			if err == nil {
				t.Fatal("Parse() error = nil, want error")
			}
			if got := domain.KindOf(err); got != domain.ErrKindConfig {
				t.Errorf("KindOf(%v) = %q, want %q", err, got, domain.ErrKindConfig)
			}
		})
	}
}

func TestStandardBlueprints_RoundTrip(t *testing.T) {
	for _, kind := range []domain.Kind{domain.KindForecast, domain.KindReplenishment} {
		for _, format := range []Format{FormatJSON, FormatYAML} {
			std, _ := Standard(kind)
			data, err := Marshal(std, format)
			if err != nil {
				t.Fatalf("Marshal(%s, %s) error = %v", kind, format, err)
			}
			bp, err := Parse(data, format)
			if err != nil {
				t.Fatalf("Parse(%s, %s) error = %v", kind, format, err)
			}
			if len(bp.Methods) != len(std.Methods) {
				t.Errorf("%s/%s: methods = %d, want %d", kind, format, len(bp.Methods), len(std.Methods))
			}
			if bp.DefaultMethod != std.DefaultMethod {
				t.Errorf("%s/%s: default = %q, want %q", kind, format, bp.DefaultMethod, std.DefaultMethod)
			}
		}
	}
}

func TestStandardReplenishment_Lookup(t *testing.T) {
	bp := StandardReplenishment()
	tests := map[string]string{
		"MinMax":                        "MinMax",
		"min-max":                       "MinMax",
		"ROP (Reorder Point)":           "ROP",
		"EOQ (Economic Order Quantity)": "EOQ",
		"consumption_based":             "Consumption-Based",
		"fixed interval":                "Fixed-Interval",
	}
	for in, want := range tests {
		m, ok := bp.Method(in)
		if !ok {
			t.Errorf("Method(%q) not found", in)
			continue
		}
		if m.Name != want {
			t.Errorf("Method(%q) = %q, want %q", in, m.Name, want)
		}
	}
	if _, ok := bp.Method("kanban"); ok {
		t.Error("Method(kanban) should not resolve")
	}
}

func TestStandardReplenishment_Customizable(t *testing.T) {
	bp := StandardReplenishment()
	tests := []struct {
		method          string
		trigger, action bool
	}{
		{"MinMax", true, true},
		{"ROP", true, true},
		{"EOQ", false, false},
		{"Consumption-Based", true, false},
		{"Fixed-Interval", false, false},
	}
	for _, tc := range tests {
		m, ok := bp.Method(tc.method)
		if !ok {
			t.Fatalf("Method(%q) not found", tc.method)
		}
		if got := m.AllowsCustom(domain.FieldTriggerCondition); got != tc.trigger {
			t.Errorf("%s: custom trigger allowed = %v, want %v", tc.method, got, tc.trigger)
		}
		if got := m.AllowsCustom(domain.FieldActionLogic); got != tc.action {
			t.Errorf("%s: custom action allowed = %v, want %v", tc.method, got, tc.action)
		}
		if !m.AllowsCustom(domain.FieldParameters) {
			t.Errorf("%s: parameters should be customizable", tc.method)
		}
	}
}

func TestCompare(t *testing.T) {
	bp := StandardReplenishment()
	cmp, err := Compare(bp, AgentConfig{
		MethodName: "minmax",
		Customizations: map[string]any{
			"max_level": json.Number("300"),
			"min_level": 50.0,
			"colour":    "red",
		},
	})
	if err != nil {
		t.Fatalf("Compare() error = %v", err)
	}

	if cmp.Method != "MinMax" || cmp.UsedDefault {
		t.Errorf("Method = %q (default %v), want MinMax matched directly", cmp.Method, cmp.UsedDefault)
	}
	if len(cmp.Deviations) != 2 {
		t.Fatalf("Deviations = %+v, want 2 entries", cmp.Deviations)
	}
	if d := cmp.Deviations[0]; d.Parameter != "inventory" || d.Status != StatusMissingDefault {
		t.Errorf("Deviations[0] = %+v, want inventory missing", d)
	}
	if d := cmp.Deviations[1]; d.Parameter != "max_level" || d.Status != StatusDeviation {
		t.Errorf("Deviations[1] = %+v, want max_level deviation", d)
	}
	if got := cmp.Merged["lead_time"]; got != 7 {
		t.Errorf("Merged[lead_time] = %v, want default 7", got)
	}
	if len(cmp.Unknown) != 1 || cmp.Unknown[0] != "colour" {
		t.Errorf("Unknown = %v, want [colour]", cmp.Unknown)
	}
}

func TestCompare_FallsBackToDefaultMethod(t *testing.T) {
	cmp, err := Compare(StandardReplenishment(), AgentConfig{MethodName: "kanban"})
	if err != nil {
		t.Fatalf("Compare() error = %v", err)
	}
	if cmp.Method != "MinMax" || !cmp.UsedDefault {
		t.Errorf("Method = %q (default %v), want MinMax via default", cmp.Method, cmp.UsedDefault)
	}
}

func writeFile(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "replenishment.json", replenishmentJSON)
	writeFile(t, dir, "forecast.yaml", forecastYAML)
	writeFile(t, dir, "notes.txt", "not a blueprint")

	set, err := LoadDir(dir)
	if err != nil {
		t.Fatalf("LoadDir() error = %v", err)
	}
	if len(set) != 2 {
		t.Fatalf("LoadDir() loaded %d blueprints, want 2", len(set))
	}
	if set[domain.KindForecast].DefaultMethod != "linear_regression" {
		t.Errorf("forecast default = %q", set[domain.KindForecast].DefaultMethod)
	}

	writeFile(t, dir, "replenishment2.yml", "agent_type: replenishment\nmethods:\n  - method_name: x\n    parameters: {}\n")
	if _, err := LoadDir(dir); err == nil {
		t.Error("LoadDir() with two replenishment blueprints should fail")
	}
}

func TestCatalog_FallsBackToStandard(t *testing.T) {
	custom, err := Parse([]byte(forecastYAML), FormatYAML)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	c := NewCatalog(map[domain.Kind]*domain.Blueprint{domain.KindForecast: custom})

	if bp, _ := c.Get(domain.KindForecast); bp != custom {
		t.Error("Get(forecast) did not return the loaded blueprint")
	}
	bp, err := c.Blueprint(context.Background(), domain.KindReplenishment)
	if err != nil {
		t.Fatalf("Blueprint(replenishment) error = %v", err)
	}
	if bp.DefaultMethod != "MinMax" {
		t.Errorf("fallback default = %q, want MinMax", bp.DefaultMethod)
	}
	if _, err := c.Blueprint(context.Background(), domain.Kind("pricing")); err == nil {
		t.Error("Blueprint(pricing) error = nil, want error")
	}
}

func TestWatcher_Reload(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "forecast.yaml", forecastYAML)

	c := NewCatalog(nil)
	w := NewWatcher(dir, c, 20*time.Millisecond)
	if err := w.Reload(); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	bp, _ := c.Get(domain.KindForecast)
	if bp.DefaultMethod != "linear_regression" {
		t.Fatalf("default = %q after reload, want linear_regression", bp.DefaultMethod)
	}

	writeFile(t, dir, "forecast.yaml", "agent_type: [")
	if err := w.Reload(); err == nil {
		t.Fatal("Reload() of a broken file should fail")
	}
	if bp, _ := c.Get(domain.KindForecast); bp.DefaultMethod != "linear_regression" {
		t.Error("a failed reload replaced the catalog")
	}
}

func TestWatcher_RunPicksUpChanges(t *testing.T) {
	dir := t.TempDir()
	c := NewCatalog(nil)
	w := NewWatcher(dir, c, 20*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	defer func() {
		cancel()
		if err := <-done; err != nil {
			t.Errorf("Run() error = %v", err)
		}
	}()

	// Give the watcher time to register the directory.
	time.Sleep(100 * time.Millisecond)
	writeFile(t, dir, "forecast.yaml", forecastYAML)

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if bp, _ := c.Get(domain.KindForecast); bp.DefaultMethod == "linear_regression" {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("catalog was not reloaded after the blueprint file changed")
}
