// backend-go/internal/llm/client.go
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/autoplan/backend-go/internal/strategy"
)

const (
	defaultModel   = "gpt-4o-mini"
	defaultTimeout = 30 * time.Second
	maxErrorBody   = 2048
)

// Config configures the chat completion client. BaseURL points at an
// OpenAI-compatible API root such as https://api.openai.com/v1.
type Config struct {
	BaseURL    string
	APIKey     string
	Model      string
	Timeout    time.Duration
	MaxRetries int
	// Backoff is the delay before the first retry; it doubles on every attempt.
	Backoff time.Duration
}

// Client asks a chat completion model for demand forecasts.
type Client struct {
	cfg  Config
	http *http.Client
}

// NewClient creates a client. A zero Timeout uses 30s and a zero Backoff uses 1s.
func NewClient(cfg Config) *Client {
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &Client{
		cfg: cfg,
		http: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        32,
				MaxIdleConnsPerHost: 16,
				IdleConnTimeout:     90 * time.Second,
				ForceAttemptHTTP2:   true,
			},
		},
	}
}

// APIError is a non-2xx answer from the model endpoint.
type APIError struct {
	StatusCode int
	Message    string
	Cause      error
}

func (e *APIError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("llm api error (status %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("llm api error: %s", e.Message)
}

func (e *APIError) Unwrap() error { return e.Cause }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Forecast implements strategy.Forecaster.
func (c *Client) Forecast(ctx context.Context, req strategy.ForecastRequest) ([]float64, error) {
	model := req.Model
	if model == "" {
		model = c.cfg.Model
	}

	body, err := json.Marshal(chatRequest{
		Model:    model,
		Messages: buildMessages(req),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal chat request: %w", err)
	}

	content, err := c.complete(ctx, body)
	if err != nil {
		return nil, err
	}
	series, err := ParseSeries(content)
	if err != nil {
		return nil, err
	}
	return series, nil
}

func buildMessages(req strategy.ForecastRequest) []chatMessage {
	history := make([]string, len(req.History))
	for i, v := range req.History {
		history[i] = fmt.Sprintf("%g", v)
	}

	var sb strings.Builder
	if req.Logic != "" {
		fmt.Fprintf(&sb, "Use the following logic to predict demand:\n%s\n\n", req.Logic)
	}
	fmt.Fprintf(&sb, "Product ID: %s\nLocation ID: %s\n", req.ItemID, req.LocationID)
	fmt.Fprintf(&sb, "Sales history (oldest first): [%s]\n\n", strings.Join(history, ", "))
	fmt.Fprintf(&sb, "Forecast the next %d monthly periods. Reply with only a JSON array of exactly %d numbers, like [100, 105, 110].", req.Horizon, req.Horizon)

	system := "You are a demand planner and forecasting expert."
	if req.Logic != "" {
		system = "You are a rule interpreter and forecasting expert."
	}
	return []chatMessage{
		{Role: "system", Content: system},
		{Role: "user", Content: sb.String()},
	}
}

// complete posts a chat request, retrying network errors and 5xx answers with
// exponential backoff. 4xx answers are returned immediately.
func (c *Client) complete(ctx context.Context, body []byte) (string, error) {
	url := c.cfg.BaseURL + "/chat/completions"
	var lastErr error

	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := c.cfg.Backoff * time.Duration(math.Pow(2, float64(attempt-1)))
			log.Debug().Int("attempt", attempt).Dur("backoff", backoff).Msg("Retrying llm request")
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return "", fmt.Errorf("failed to create llm request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		if c.cfg.APIKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			lastErr = &APIError{Message: "request failed", Cause: err}
			log.Warn().Err(err).Int("attempt", attempt+1).Msg("llm request failed, will retry")
			continue
		}

		content, retry, err := readCompletion(resp)
		if err == nil {
			return content, nil
		}
		if !retry {
			return "", err
		}
		lastErr = err
		log.Warn().Err(err).Int("attempt", attempt+1).Msg("llm returned an error status, will retry")
	}
	return "", lastErr
}

func readCompletion(resp *http.Response) (content string, retry bool, err error) {
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", resp.StatusCode >= 500, &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(msg))}
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", false, fmt.Errorf("failed to decode chat response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", false, fmt.Errorf("chat response has no choices")
	}
	return out.Choices[0].Message.Content, false, nil
}

// ParseSeries extracts the first JSON array of numbers from a model reply. Code fences
// and surrounding prose are tolerated; anything else is an error.
func ParseSeries(text string) ([]float64, error) {
	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start < 0 || end < start {
		return nil, fmt.Errorf("no numeric list in model reply %q", truncate(text, 120))
	}

	var series []float64
	if err := json.Unmarshal([]byte(text[start:end+1]), &series); err != nil {
		return nil, fmt.Errorf("unparsable numeric list in model reply: %w", err)
	}
	return series, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
