package domain

import (
	"encoding/json"
	"testing"
)

func TestToWholeInt(t *testing.T) {
	tests := []struct {
		in   any
		want int
		ok   bool
	}{
		{4, 4, true},
		{4.0, 4, true},
		{json.Number("12"), 12, true},
		{" 7 ", 7, true},
		{2.7, 0, false},
		{0.5, 0, false},
		{"2.5", 0, false},
		{"wide", 0, false},
		{nil, 0, false},
	}
	for _, tc := range tests {
		got, ok := ToWholeInt(tc.in)
		if got != tc.want || ok != tc.ok {
			t.Errorf("ToWholeInt(%#v) = %d, %v, want %d, %v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
	if got, ok := ToInt(2.7); !ok || got != 2 {
		t.Errorf("ToInt(2.7) = %d, %v, want 2, true", got, ok)
	}
}
