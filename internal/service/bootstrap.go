// backend-go/internal/service/bootstrap.go
package service

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/autoplan/backend-go/internal/config"
	"github.com/andresuchdata/autoplan/backend-go/internal/engine"
	"github.com/andresuchdata/autoplan/backend-go/internal/llm"
	"github.com/andresuchdata/autoplan/backend-go/internal/strategy"
)

// NewEngine builds the planning engine from configuration. Without LLM_BASE_URL the
// llm and custom methods have no forecaster and fall back to zero series.
func NewEngine(cfg *config.Config, observer engine.Observer) *engine.Engine {
	opts := strategy.RegistryOptions{}
	if cfg.LLM.BaseURL != "" {
		opts.Forecaster = llm.NewClient(llm.Config{
			BaseURL:    cfg.LLM.BaseURL,
			APIKey:     cfg.LLM.APIKey,
			Model:      cfg.LLM.Model,
			Timeout:    cfg.LLM.Timeout(),
			MaxRetries: cfg.LLM.MaxRetries,
		})
		// Every attempt gets the full request timeout plus a little room for backoff.
		opts.ExternalTimeout = time.Duration(cfg.LLM.MaxRetries+1)*cfg.LLM.Timeout() + 5*time.Second
		log.Info().Str("model", cfg.LLM.Model).Msg("LLM forecaster enabled")
	}

	return engine.New(strategy.NewDispatcher(strategy.NewRegistry(opts)), engine.Config{
		Workers:        cfg.Engine.Workers,
		HorizonCeiling: cfg.Engine.HorizonCeiling,
		ItemTimeout:    cfg.Engine.ItemTimeout(),
	}, observer)
}
