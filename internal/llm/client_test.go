package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/andresuchdata/autoplan/backend-go/internal/strategy"
)

func completion(content string) string {
	b, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{{"message": map[string]string{"role": "assistant", "content": content}}},
	})
	return string(b)
}

func TestParseSeries(t *testing.T) {
	tests := []struct {
		in      string
		want    []float64
		wantErr bool
	}{
		{in: "[100, 105, 110]", want: []float64{100, 105, 110}},
		{in: "```json\n[1.5, 2]\n```", want: []float64{1.5, 2}},
		{in: "Here you go: [3, 4] hope it helps", want: []float64{3, 4}},
		{in: "no list here", wantErr: true},
		{in: "[1, \"two\"]", wantErr: true},
		{in: "__import__('os')", wantErr: true},
	}
	for _, tc := range tests {
		got, err := ParseSeries(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseSeries(%q) = %v, want error", tc.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseSeries(%q) error = %v", tc.in, err)
			continue
		}
		if len(got) != len(tc.want) {
			t.Errorf("ParseSeries(%q) = %v, want %v", tc.in, got, tc.want)
			continue
		}
		for i := range got {
			if got[i] != tc.want[i] {
				t.Errorf("ParseSeries(%q) = %v, want %v", tc.in, got, tc.want)
				break
			}
		}
	}
}

func TestClient_Forecast(t *testing.T) {
	var gotAuth string
	var gotReq chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotReq)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(completion("[12, 13]")))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL + "/v1/", APIKey: "secret", Model: "base-model"})
	got, err := c.Forecast(context.Background(), strategy.ForecastRequest{
		ItemID:  "sku-1",
		History: []float64{10, 11},
		Horizon: 2,
		Model:   "override-model",
	})
	if err != nil {
		t.Fatalf("Forecast() error = %v", err)
	}
	if len(got) != 2 || got[0] != 12 || got[1] != 13 {
		t.Errorf("Forecast() = %v, want [12 13]", got)
	}
	if gotAuth != "Bearer secret" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotReq.Model != "override-model" {
		t.Errorf("model = %q, want override-model", gotReq.Model)
	}
	if len(gotReq.Messages) != 2 || !strings.Contains(gotReq.Messages[1].Content, "[10, 11]") {
		t.Errorf("messages = %+v", gotReq.Messages)
	}
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(completion("[1]")))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, MaxRetries: 2, Backoff: time.Millisecond})
	got, err := c.Forecast(context.Background(), strategy.ForecastRequest{Horizon: 1})
	if err != nil {
		t.Fatalf("Forecast() error = %v", err)
	}
	if len(got) != 1 || calls.Load() != 3 {
		t.Errorf("Forecast() = %v after %d calls, want [1] after 3", got, calls.Load())
	}
}

func TestClient_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, MaxRetries: 3, Backoff: time.Millisecond})
	_, err := c.Forecast(context.Background(), strategy.ForecastRequest{Horizon: 1})
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("error = %v, want 401 APIError", err)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestClient_ThroughExternalStrategy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(completion("[5, 6, 7]")))
	}))
	defer srv.Close()

	reg := strategy.NewRegistry(strategy.RegistryOptions{
		Forecaster:      NewClient(Config{BaseURL: srv.URL}),
		ExternalTimeout: 5 * time.Second,
	})
	d := strategy.NewDispatcher(reg)

	in := strategy.Input{History: []float64{1, 2, 3}}
	in.Policy.MethodName = "llm"
	in.Policy.Kind = "forecast"

	// The model answered three values for a two period horizon.
	in.Policy.EffectiveHorizon = 2
	res, err := d.Compute(context.Background(), in)
	if err != nil {
		t.Fatalf("Compute() error = %v", err)
	}
	if res.Fallback == nil || len(res.Series) != 2 || res.Series[0] != 0 {
		t.Errorf("Compute() = %+v, want zero fallback for a wrongly shaped answer", res)
	}

	in.Policy.EffectiveHorizon = 3
	res, err = d.Compute(context.Background(), in)
	if err != nil || res.Fallback != nil || res.Series[2] != 7 {
		t.Errorf("Compute() = %+v, %v, want [5 6 7]", res, err)
	}
}
