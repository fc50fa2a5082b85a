package cli

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/pmholt/eventscout/internal/config"
	"github.com/pmholt/eventscout/internal/enrich"
	"github.com/pmholt/eventscout/internal/geocode"
	"github.com/pmholt/eventscout/internal/llm"
	"github.com/pmholt/eventscout/internal/metrics"
	"github.com/pmholt/eventscout/internal/pipeline"
	"github.com/pmholt/eventscout/internal/scraper"
	"github.com/pmholt/eventscout/internal/sheet"
	"github.com/pmholt/eventscout/internal/storage"
)

// buildPipeline wires the full dependency graph from config. The returned
// store must be closed by the caller.
func buildPipeline(ctx context.Context, cfg config.Config, m *metrics.Metrics, log zerolog.Logger) (*pipeline.Pipeline, *storage.Store, error) {
	llmClient, err := llm.New(llm.Config{
		BaseURL: cfg.LLM.BaseURL,
		APIKey:  cfg.LLM.APIKey,
		Model:   cfg.LLM.Model,
		Timeout: cfg.LLM.Timeout,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("configuring llm client: %w", err)
	}

	store, err := storage.Open(ctx, cfg.Database.URL, log)
	if err != nil {
		return nil, nil, fmt.Errorf("opening database: %w", err)
	}
	if err := store.EnsureSchema(ctx); err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("ensuring schema: %w", err)
	}

	sc := scraper.New(scraper.Config{
		BaseURL:   cfg.Scraper.BaseURL,
		Timeout:   cfg.Scraper.Timeout,
		PageDelay: cfg.Scraper.PageDelay,
	}, log)

	deps := pipeline.Deps{
		Listing:  sc,
		Detail:   sc,
		Classify: enrich.NewClassifier(llmClient, log),
		Geocode:  geocode.New(cfg.Geocoder.BaseURL, log),
		Enhance:  enrich.NewEnhancer(llmClient, log),
		Save:     storage.NewRouter(store, log),
		Metrics:  m,
		Log:      log,
	}
	if cfg.Sheet.URL != "" {
		deps.Feed = sheet.New(cfg.Sheet.URL, log)
	}

	return pipeline.New(deps), store, nil
}

// runOptions translates the config defaults into per-run options.
func runOptions(cfg config.Config) pipeline.Options {
	return pipeline.Options{
		BatchSize:     cfg.Pipeline.BatchSize,
		Enhance:       cfg.Pipeline.Enhance,
		SkipSponsored: cfg.Pipeline.SkipSponsored,
		Categories:    cfg.Pipeline.Categories,
	}
}
