package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/andresuchdata/autoplan/backend-go/internal/blueprint"
)

func TestParseVars(t *testing.T) {
	tests := []struct {
		in      []string
		want    map[string]float64
		wantErr bool
	}{
		{[]string{"inventory=30", " max_level = 200"}, map[string]float64{"inventory": 30, "max_level": 200}, false},
		{[]string{"inventory"}, nil, true},
		{[]string{"=4"}, nil, true},
		{[]string{"x=abc"}, nil, true},
	}
	for _, tc := range tests {
		got, err := parseVars(tc.in)
		if (err != nil) != tc.wantErr {
			t.Errorf("parseVars(%q) error = %v, wantErr %v", tc.in, err, tc.wantErr)
			continue
		}
		for k, v := range tc.want {
			if got[k] != v {
				t.Errorf("parseVars(%q)[%s] = %v, want %v", tc.in, k, got[k], v)
			}
		}
	}
}

func TestValidatePath(t *testing.T) {
	dir := t.TempDir()
	doc, err := blueprint.Marshal(blueprint.StandardForecast(), blueprint.FormatYAML)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	good := filepath.Join(dir, "forecast.yaml")
	if err := os.WriteFile(good, doc, 0o644); err != nil {
		t.Fatal(err)
	}
	bad := filepath.Join(t.TempDir(), "broken.json")
	if err := os.WriteFile(bad, []byte(`{"agent_type":"forecast","methods":[]}`), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := validatePath(good); err != nil {
		t.Errorf("validatePath(file) error = %v", err)
	}
	if err := validatePath(dir); err != nil {
		t.Errorf("validatePath(dir) error = %v", err)
	}
	if err := validatePath(bad); err == nil {
		t.Error("validatePath(empty methods) error = nil")
	}
	if err := validatePath(t.TempDir()); err == nil {
		t.Error("validatePath(empty dir) error = nil")
	}
}
