package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"bank-reconciliation-backend/internal/api"
	"bank-reconciliation-backend/internal/application/importer"
	"bank-reconciliation-backend/internal/application/reporting"
	"bank-reconciliation-backend/internal/application/workflow"
	"bank-reconciliation-backend/internal/domain/matching"
	"bank-reconciliation-backend/internal/domain/scoring"
	"bank-reconciliation-backend/internal/infrastructure/config"
	"bank-reconciliation-backend/internal/infrastructure/logging"
	"bank-reconciliation-backend/internal/infrastructure/storage"
	"bank-reconciliation-backend/internal/notify"
)

// importDefaults maps the matching config section onto import options.
func importDefaults(cfg config.MatchingConfig) importer.Options {
	opts := importer.Options{
		MinScore:   cfg.MinScore,
		MaxMatches: cfg.MaxMatches,
	}
	for _, alg := range cfg.Algorithms {
		opts.Algorithms = append(opts.Algorithms, scoring.Algorithm(alg))
	}
	return opts
}

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.LoadOrEnv()
	logger := logging.NewLogger(cfg.Logging)

	store, err := storage.NewStorage(cfg.Storage.DatabasePath)
	if err != nil {
		logger.Error("failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	engine := matching.NewEngine(scoring.DefaultOptions())

	wf := workflow.NewWorkflow(store,
		notify.NewLogPublisher(logging.NewComponentLogger(cfg.Logging, "notify")),
		logging.NewComponentLogger(cfg.Logging, "workflow"),
		workflow.Config{
			AutoMatchThreshold: cfg.Workflow.AutoMatchThreshold,
			RequeueOnReject:    cfg.Workflow.RequeueOnReject,
		})

	pipeline := importer.NewPipeline(store, nil, engine, wf,
		logging.NewComponentLogger(cfg.Logging, "importer"))

	reportingService := reporting.NewService(store)

	server := api.NewServer(api.Config{
		Port:           cfg.Server.Port,
		AllowedOrigins: cfg.Server.CORSOrigins,
	}, api.Services{
		Pipeline:       pipeline,
		Workflow:       wf,
		Reporting:      reportingService,
		Repo:           store,
		ImportDefaults: importDefaults(cfg.Matching),
	}, logging.NewComponentLogger(cfg.Logging, "api"))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown failed", "error", err)
			os.Exit(1)
		}
	}
}
