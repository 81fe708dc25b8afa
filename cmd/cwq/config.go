package main

import (
	"fmt"
	"log/slog"

	"github.com/phrazzld/workqueue/internal/config"
	"github.com/phrazzld/workqueue/internal/platform/logger"
)

// loadAppConfig loads the configuration from path, or from the default
// locations when path is empty.
func loadAppConfig(path string) (*config.Config, error) {
	cfg, err := config.LoadFrom(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// setupAppLogger configures the process-wide structured logger.
func setupAppLogger(cfg *config.Config) (*slog.Logger, error) {
	l, err := logger.Setup(cfg.Server)
	if err != nil {
		return nil, fmt.Errorf("failed to set up logger: %w", err)
	}
	l.Info("configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"store", cfg.Queue.Store,
		"workers", cfg.Queue.Workers)
	return l, nil
}
