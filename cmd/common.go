/*
Copyright © 2025 The weconnect-translate Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/dutchyankee87/weconnect-translate/internal/config"
	"github.com/dutchyankee87/weconnect-translate/internal/detector"
	"github.com/dutchyankee87/weconnect-translate/internal/files"
	"github.com/dutchyankee87/weconnect-translate/internal/logging"
	"github.com/dutchyankee87/weconnect-translate/internal/notify"
	"github.com/dutchyankee87/weconnect-translate/internal/orchestrator"
	"github.com/dutchyankee87/weconnect-translate/internal/review"
	"github.com/dutchyankee87/weconnect-translate/internal/store"
	"github.com/dutchyankee87/weconnect-translate/internal/translator"
)

// app holds the wired components shared by the commands.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	db       *store.Store
	files    *files.Store
	provider translator.Provider
	orch     *orchestrator.Orchestrator
	review   *review.Service
}

func loadConfig(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	envFile, _ := cmd.Flags().GetString("env")
	cfg, err := config.Load(envFile, cmd.Flags())
	if err != nil {
		return nil, nil, err
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, nil, err
	}
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func openStore(path string) (*store.Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	db, err := store.New(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

// newApp wires every component. Without withProvider no provider is built
// and the orchestrator can only look jobs up.
func newApp(cmd *cobra.Command, withProvider bool) (*app, error) {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	var provider translator.Provider
	if withProvider {
		if provider, err = buildProvider(cfg, logger); err != nil {
			return nil, err
		}
	}

	db, err := openStore(cfg.DB)
	if err != nil {
		return nil, err
	}
	fs, err := files.New(cfg.DataDir)
	if err != nil {
		db.Close()
		return nil, err
	}
	outbox, err := notify.NewOutbox(cfg.OutboxDir)
	if err != nil {
		db.Close()
		return nil, err
	}
	notifier := notify.Multi{notify.LogNotifier{Logger: logger}, outbox}

	orch := orchestrator.New(orchestrator.Deps{
		Store:    db,
		Provider: provider,
		Files:    fs,
		Detector: detector.New(),
		Notifier: notifier,
		Logger:   logger,
	}, cfg.Orchestrator)

	return &app{
		cfg:      cfg,
		logger:   logger,
		db:       db,
		files:    fs,
		provider: provider,
		orch:     orch,
		review:   review.NewService(db, notifier, logger),
	}, nil
}

// buildProvider constructs the configured provider behind the rate limiter.
func buildProvider(cfg *config.Config, logger *slog.Logger) (translator.Provider, error) {
	if err := cfg.RequireCredentials(); err != nil {
		return nil, err
	}

	var p translator.Provider
	switch cfg.Provider.Name {
	case "deepl":
		p = translator.NewDeepLService(cfg.Provider.ServiceConfig)
	case "google":
		p = translator.NewGoogleService(cfg.Provider.ServiceConfig)
	default:
		return nil, fmt.Errorf("unknown provider: %s", cfg.Provider.Name)
	}
	return translator.NewThrottled(p, cfg.Provider.ThrottleConfig, logger), nil
}

// Close cancels unfinished jobs and closes the database.
func (a *app) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := a.orch.Shutdown(ctx); err != nil {
		a.logger.Warn("jobs still running at exit", "error", err)
	}
	a.db.Close()
}
