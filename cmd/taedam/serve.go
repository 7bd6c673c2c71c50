package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"taedam/internal/classifier"
	"taedam/internal/config"
	"taedam/internal/engine"
	"taedam/internal/handlers"
	"taedam/internal/history"
	"taedam/internal/llm"
	"taedam/internal/logging"
	"taedam/internal/maintenance"
	"taedam/internal/retrieval"
	"taedam/internal/server"
	"taedam/internal/store"
	"taedam/internal/xerrors"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			return runServe(cfg)
		},
	}
}

func runServe(cfg *config.Config) error {
	logging.SetLevel(logging.ParseLevel(cfg.LogLevel))
	defer func() { _ = logging.Close() }()
	logger := logging.NewComponentLogger("serve")

	db, err := store.Open(cfg.Storage.DBPath)
	if err != nil {
		return err
	}
	logger.Info("store opened at %s", db.Path())
	defer func() { _ = db.Close() }()

	model := llm.NewRetryClient(
		llm.NewOpenAIClient(cfg.LLM.Model, llm.Config{
			APIKey:  cfg.LLM.APIKey,
			BaseURL: cfg.LLM.BaseURL,
			Timeout: cfg.LLM.Timeout,
		}),
		xerrors.RetryConfig{MaxRetries: cfg.LLM.MaxRetries, Backoff: xerrors.DefaultRetryConfig().Backoff},
	)

	retriever, err := buildRetriever(cfg)
	if err != nil {
		return err
	}

	cache, err := history.NewCache(history.Config{
		CacheSize:   cfg.History.CacheSize,
		RecentLimit: cfg.History.RecentLimit,
	}, db, db, model, logging.NewComponentLogger("history"))
	if err != nil {
		return err
	}

	coordinator := maintenance.NewCoordinator(maintenance.Config{
		Workers:   cfg.Maintenance.Workers,
		QueueSize: cfg.Maintenance.QueueSize,
	}, model, db, db, logging.NewComponentLogger("maintenance"))

	registry, err := engine.NewRegistry(
		handlers.NewSafetyHandler(logging.NewComponentLogger("safety")),
		handlers.NewMedicalHandler(retriever, model, logging.NewComponentLogger("medical")),
		handlers.NewDiaryHandler(db, db, model, logging.NewComponentLogger("diary")),
		handlers.NewCasualHandler(model, logging.NewComponentLogger("casual")),
	)
	if err != nil {
		return err
	}

	orchestrator := engine.NewOrchestrator(
		classifier.New(model, logging.NewComponentLogger("classifier")),
		cache,
		coordinator,
		engine.NewDispatcher(registry, logging.NewComponentLogger("dispatcher")),
		logging.NewComponentLogger("engine"),
	)

	srv := server.New(cfg.Server, orchestrator, db, cache, coordinator, logging.NewComponentLogger("server"))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return srv.Run(ctx)
}

// buildRetriever opens the evidence store. The medical handler tolerates a
// nil retriever, but a broken vector store at startup is a config error worth
// failing on.
func buildRetriever(cfg *config.Config) (*retrieval.Retriever, error) {
	embedder, err := retrieval.NewEmbedder(retrieval.EmbedderConfig{
		Model:   cfg.LLM.EmbedModel,
		APIKey:  cfg.LLM.APIKey,
		BaseURL: cfg.LLM.BaseURL,
	})
	if err != nil {
		return nil, fmt.Errorf("build embedder: %w", err)
	}
	vs, err := retrieval.NewVectorStore(retrieval.StoreConfig{
		PersistPath: cfg.Storage.VectorPath,
		Collection:  cfg.Storage.Collection,
	}, embedder)
	if err != nil {
		return nil, fmt.Errorf("open vector store: %w", err)
	}
	return retrieval.NewRetriever(retrieval.RetrieverConfig{}, vs), nil
}
