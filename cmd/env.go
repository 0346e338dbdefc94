package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/assembly-cli/internal/resilience"
	"github.com/sells-group/assembly-cli/internal/store"
	"github.com/sells-group/assembly-cli/pkg/gemini"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "assembly.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

func initGemini(ctx context.Context) (gemini.Client, error) {
	return gemini.NewClient(ctx, gemini.Config{
		APIKey:     cfg.Gemini.Key,
		TextModel:  cfg.Gemini.TextModel,
		ImageModel: cfg.Gemini.ImageModel,
	})
}

// backoffFromConfig translates the millisecond-based config knobs into a
// retry budget for the pipeline.
func backoffFromConfig() resilience.BackoffConfig {
	return resilience.BackoffConfig{
		MaxRetries: cfg.Pipeline.MaxRetries,
		BaseDelay:  time.Duration(cfg.Pipeline.BaseDelayMS) * time.Millisecond,
		MaxDelay:   time.Duration(cfg.Pipeline.MaxDelayMS) * time.Millisecond,
	}
}
