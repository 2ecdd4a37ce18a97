package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/easybewerbung/bewerbung-api/internal/catalog"
	"github.com/easybewerbung/bewerbung-api/internal/config"
	"github.com/easybewerbung/bewerbung-api/internal/domain"
	"github.com/easybewerbung/bewerbung-api/internal/generation"
	"github.com/easybewerbung/bewerbung-api/internal/ledger"
	"github.com/easybewerbung/bewerbung-api/internal/platform/anthropic"
	"github.com/easybewerbung/bewerbung-api/internal/platform/gemini"
	"github.com/easybewerbung/bewerbung-api/internal/platform/openai"
	"github.com/easybewerbung/bewerbung-api/internal/platform/postgres"
	"github.com/easybewerbung/bewerbung-api/internal/service"
	"github.com/easybewerbung/bewerbung-api/internal/service/auth"
	"github.com/easybewerbung/bewerbung-api/internal/task"
	"github.com/google/uuid"
)

// application holds the shared dependencies of the server so they can be
// wired once and released together on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB

	jwtService        auth.JWTService
	catalog           *catalog.Catalog
	ledger            *ledger.Ledger
	dispatcher        *generation.Dispatcher
	generationService service.GenerationService
	matchingService   service.MatchingService
	creditService     service.CreditService

	taskRunner *task.TaskRunner
}

// newApplication wires stores, provider clients, services and the task
// runner. The runner is started last so recovered tasks find every factory
// registered.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger, db *sql.DB) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
		db:     db,
	}

	var err error
	app.jwtService, err = auth.NewJWTService(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize JWT service: %w", err)
	}

	matchingProvider := domain.Provider(cfg.LLM.MatchingProvider)
	if err := generation.ValidateModel(matchingProvider, cfg.LLM.MatchingModel); err != nil {
		return nil, fmt.Errorf("invalid matching model: %w", err)
	}

	tasks := postgres.NewPostgresGenerationTaskStore(db, logger)
	documents := postgres.NewPostgresGeneratedDocumentStore(db, logger)
	applications := postgres.NewPostgresApplicationStore(db, logger)
	matching := postgres.NewPostgresMatchingStore(db, logger)

	app.catalog = catalog.New(postgres.NewPostgresTemplateStore(db, logger), logger)
	app.ledger = ledger.New(postgres.NewPostgresCreditStore(db, logger), logger)

	clients, err := setupProviderClients(ctx, cfg.LLM, logger)
	if err != nil {
		return nil, err
	}
	app.dispatcher = generation.NewDispatcher(clients, generation.RetryPolicy{
		MaxRetries:     cfg.LLM.MaxRetries,
		InitialBackoff: cfg.LLM.InitialBackoff,
		MaxBackoff:     cfg.LLM.MaxBackoff,
		Timeout:        cfg.LLM.RequestTimeout,
	}, logger)

	generationDeps := task.GenerationDeps{
		DB:           db,
		Tasks:        tasks,
		Documents:    documents,
		Applications: applications,
		Invoker:      app.dispatcher,
		Credits:      app.ledger,
		Concurrency:  cfg.Tasks.DocumentConcurrency,
		Logger:       logger,
	}
	matchingDeps := task.MatchingDeps{
		DB:           db,
		Matching:     matching,
		Applications: applications,
		Invoker:      app.dispatcher,
		Credits:      app.ledger,
		Provider:     matchingProvider,
		Model:        cfg.LLM.MatchingModel,
		Cost:         cfg.Credits.MatchingScoreCost,
		Logger:       logger,
	}

	app.taskRunner = task.NewTaskRunner(postgres.NewPostgresTaskStore(db, logger), task.TaskRunnerConfig{
		WorkerCount:            cfg.Tasks.WorkerCount,
		QueueSize:              cfg.Tasks.QueueSize,
		StuckTaskAge:           cfg.Tasks.StuckTaskAge,
		StuckTaskCheckInterval: cfg.Tasks.StuckTaskCheckInterval,
	}, logger)
	app.taskRunner.RegisterFactory(task.TaskTypeDocumentGeneration, task.DocumentGenerationFactory(generationDeps))
	app.taskRunner.RegisterFactory(task.TaskTypeMatchingScore, task.MatchingScoreFactory(matchingDeps))

	app.generationService, err = service.NewGenerationService(
		db,
		tasks,
		documents,
		applications,
		app.catalog,
		app.ledger,
		app.taskRunner,
		func(id uuid.UUID) (task.Task, error) {
			t, err := task.NewDocumentGenerationTask(id, generationDeps)
			if err != nil {
				return nil, err
			}
			return t, nil
		},
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create generation service: %w", err)
	}

	app.matchingService, err = service.NewMatchingService(
		matching,
		applications,
		app.ledger,
		app.taskRunner,
		func(id uuid.UUID) (task.Task, error) {
			t, err := task.NewMatchingScoreTask(id, matchingDeps)
			if err != nil {
				return nil, err
			}
			return t, nil
		},
		cfg.Credits.MatchingScoreCost,
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create matching service: %w", err)
	}

	app.creditService, err = service.NewCreditService(app.ledger, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create credit service: %w", err)
	}

	if err := app.taskRunner.Start(); err != nil {
		return nil, fmt.Errorf("failed to start task runner: %w", err)
	}

	logger.Info("Application initialized successfully",
		"providers", len(clients),
		"workers", cfg.Tasks.WorkerCount)
	return app, nil
}

// setupProviderClients creates a client for every provider with an API key.
// Templates naming a provider without a client fail at dispatch.
func setupProviderClients(
	ctx context.Context,
	cfg config.LLMConfig,
	logger *slog.Logger,
) (map[domain.Provider]generation.Client, error) {
	clients := make(map[domain.Provider]generation.Client, len(domain.Providers))

	if cfg.OpenAIAPIKey != "" {
		c, err := openai.NewClient(openai.Config{APIKey: cfg.OpenAIAPIKey, BaseURL: cfg.OpenAIBaseURL}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize OpenAI client: %w", err)
		}
		clients[domain.ProviderOpenAI] = c
	}
	if cfg.AnthropicAPIKey != "" {
		c, err := anthropic.NewClient(anthropic.Config{APIKey: cfg.AnthropicAPIKey, BaseURL: cfg.AnthropicBaseURL}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Anthropic client: %w", err)
		}
		clients[domain.ProviderAnthropic] = c
	}
	if cfg.GoogleAPIKey != "" {
		c, err := gemini.NewClient(ctx, gemini.Config{APIKey: cfg.GoogleAPIKey}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Gemini client: %w", err)
		}
		clients[domain.ProviderGoogle] = c
	}

	for _, p := range domain.Providers {
		if _, ok := clients[p]; !ok {
			logger.Warn("LLM provider not configured", "provider", p)
		}
	}
	return clients, nil
}

// Run serves HTTP until shutdown.
func (app *application) Run(ctx context.Context) error {
	if err := app.startHTTPServer(ctx, app.setupRouter()); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// cleanup stops the task runner and closes the database.
func (app *application) cleanup() {
	if app.taskRunner != nil {
		app.taskRunner.Stop()
	}
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("Error closing database connection", "error", err)
		}
	}
	app.logger.Info("Application shutdown completed")
}
