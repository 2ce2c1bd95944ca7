package noirgraph

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/soundprediction/noirgraph"
	"github.com/soundprediction/noirgraph/pkg/checkpoint"
	"github.com/soundprediction/noirgraph/pkg/chunker"
	"github.com/soundprediction/noirgraph/pkg/config"
	"github.com/soundprediction/noirgraph/pkg/driver"
	"github.com/soundprediction/noirgraph/pkg/embedder"
	"github.com/soundprediction/noirgraph/pkg/extractor"
	"github.com/soundprediction/noirgraph/pkg/nlp"
	"github.com/soundprediction/noirgraph/pkg/registry"
)

// buildClient wires the graph store, chat models, embedder, registry and
// session store described by cfg into a client.
func buildClient(cfg *config.Config, logger *slog.Logger) (*noirgraph.Client, error) {
	store, err := driver.New(driver.Config{
		Provider:   driver.GraphProvider(cfg.Database.Provider),
		URI:        cfg.Database.URI,
		Username:   cfg.Database.Username,
		Password:   cfg.Database.Password,
		Database:   cfg.Database.Database,
		Dimensions: cfg.Embedding.Dimensions,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create graph driver: %w", err)
	}

	models, err := buildModels(cfg, logger)
	if err != nil {
		return nil, errors.Join(err, store.Close())
	}

	emb, err := buildEmbedder(cfg)
	if err != nil {
		return nil, errors.Join(err, store.Close())
	}

	reg := registry.DefaultCrimeRegistry()
	if cfg.Registry.Path != "" {
		if reg, err = registry.LoadFile(cfg.Registry.Path); err != nil {
			return nil, errors.Join(err, store.Close(), emb.Close())
		}
	}

	sessions, err := checkpoint.NewStore(cfg.Data.Path, cfg.Data.NamePrefix)
	if err != nil {
		return nil, errors.Join(err, store.Close(), emb.Close())
	}

	return noirgraph.NewClient(store, models, emb, &noirgraph.Config{
		Chunking: chunker.Options{
			TargetSize: cfg.Chunking.TargetSize,
			MinSize:    cfg.Chunking.MinSize,
		},
		Extraction: extractor.Options{
			HistoryWindow:     cfg.Pipeline.HistoryWindow,
			SplitConjunctions: cfg.Pipeline.SplitConjunctions,
		},
		Registry:    reg,
		Concurrency: cfg.Pipeline.Concurrency,
		ChunkLimit:  cfg.Pipeline.ChunkLimit,
		Timeout:     cfg.NLP.Timeout,
		Sessions:    sessions,
		Database: noirgraph.DatabaseInfo{
			URI:      cfg.Database.URI,
			Username: cfg.Database.Username,
			Database: cfg.Database.Database,
		},
		Progress: func(stage string, done, total int) {
			logger.Info("Progress", "stage", stage, "done", done, "total", total)
		},
	}, logger)
}

// buildModels creates the small (extraction) and large (resolution) chat
// clients, each wrapped with retries, a circuit breaker and token tracking.
func buildModels(cfg *config.Config, logger *slog.Logger) (noirgraph.LanguageModels, error) {
	var tracker *nlp.ParquetTokenTracker
	if cfg.Telemetry.TokenPath != "" {
		var err error
		tracker, err = nlp.NewTokenTracker(cfg.Telemetry.TokenPath, 0)
		if err != nil {
			return noirgraph.LanguageModels{}, err
		}
	}

	small, err := buildChatClient(cfg, cfg.NLP.SmallModel, tracker, logger)
	if err != nil {
		return noirgraph.LanguageModels{}, err
	}
	if cfg.NLP.LargeModel == cfg.NLP.SmallModel {
		return noirgraph.LanguageModels{Extraction: small, Resolution: small}, nil
	}
	large, err := buildChatClient(cfg, cfg.NLP.LargeModel, tracker, logger)
	if err != nil {
		return noirgraph.LanguageModels{}, errors.Join(err, small.Close())
	}
	return noirgraph.LanguageModels{Extraction: small, Resolution: large}, nil
}

func buildChatClient(cfg *config.Config, model string, tracker *nlp.ParquetTokenTracker, logger *slog.Logger) (nlp.Client, error) {
	temperature := cfg.NLP.Temperature
	maxTokens := cfg.NLP.MaxTokens
	base, err := nlp.NewOpenAIClient(cfg.NLP.APIKey, nlp.Config{
		Model:       model,
		Temperature: &temperature,
		MaxTokens:   &maxTokens,
		BaseURL:     cfg.NLP.BaseURL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create chat client for %s: %w", model, err)
	}

	var client nlp.Client = nlp.NewRetryClient(base, &nlp.RetryConfig{
		MaxRetries:        cfg.Retry.MaxRetries,
		InitialDelay:      cfg.Retry.InitialDelay,
		MaxDelay:          cfg.Retry.MaxDelay,
		BackoffMultiplier: cfg.Retry.BackoffMultiplier,
	}, logger)

	if cb := cfg.CircuitBreaker; cb.Enabled {
		settings := nlp.DefaultCircuitBreakerSettings()
		settings.MaxRequests = cb.MaxRequests
		settings.Interval = cb.Interval
		settings.Timeout = cb.Timeout
		settings.ReadyToTripRatio = cb.ReadyToTripRatio
		client = nlp.NewCircuitBreakerClient(client, settings, logger, model)
	}

	if tracker != nil {
		client = nlp.NewTokenTrackingClient(client, tracker, logger)
	}
	return client, nil
}

// buildEmbedder creates the OpenAI embedder, backed by the badger cache when
// embedding.cache_path is set.
func buildEmbedder(cfg *config.Config) (embedder.Client, error) {
	var emb embedder.Client = embedder.NewOpenAIEmbedder(cfg.NLP.APIKey, embedder.Config{
		Model:      cfg.Embedding.Model,
		BaseURL:    cfg.Embedding.BaseURL,
		Dimensions: cfg.Embedding.Dimensions,
		BatchSize:  cfg.Embedding.BatchSize,
	})
	if cfg.Embedding.CachePath == "" {
		return emb, nil
	}
	db, err := embedder.OpenCache(cfg.Embedding.CachePath)
	if err != nil {
		return nil, errors.Join(err, emb.Close())
	}
	return embedder.NewCachedClient(emb, db, cfg.Embedding.Model), nil
}
