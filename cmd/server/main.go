// Package main implements the entry point for the bewerbung API server,
// which generates application documents and matching scores through LLM
// providers on behalf of authenticated users.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/easybewerbung/bewerbung-api/internal/config"
	"github.com/easybewerbung/bewerbung-api/internal/platform/logger"
	"github.com/easybewerbung/bewerbung-api/internal/platform/postgres"
)

func main() {
	configPath := flag.String("config", "", "path to a config file (defaults to ./config.yaml when present)")
	migrate := flag.String("migrate", "", "run a migration command (up, down, status, version) and exit")
	flag.Parse()

	if err := run(context.Background(), *configPath, *migrate); err != nil {
		log.Printf("bewerbung-api: %v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath, migrateCmd string) error {
	cfg, l, err := initializeApp(configPath)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	db, err := setupAppDatabase(ctx, cfg, l)
	if err != nil {
		return err
	}

	if migrateCmd != "" {
		defer db.Close()
		return postgres.Migrate(ctx, db, migrateCmd, l)
	}

	app, err := newApplication(ctx, cfg, l, db)
	if err != nil {
		_ = db.Close()
		return err
	}
	return app.Run(ctx)
}

// initializeApp loads configuration and sets up structured logging.
func initializeApp(configPath string) (*config.Config, *slog.Logger, error) {
	cfg, err := config.LoadFrom(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	l, err := logger.Setup(cfg.Server)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to set up logger: %w", err)
	}

	l.Info("Server configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel)
	l.Debug("LLM configuration",
		"openai_key_present", cfg.LLM.OpenAIAPIKey != "",
		"anthropic_key_present", cfg.LLM.AnthropicAPIKey != "",
		"google_key_present", cfg.LLM.GoogleAPIKey != "",
		"matching_provider", cfg.LLM.MatchingProvider,
		"matching_model", cfg.LLM.MatchingModel)

	return cfg, l, nil
}
