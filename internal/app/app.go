package app

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/richard-senior/matchpredictor/internal/logger"
	"github.com/richard-senior/matchpredictor/pkg/config"
	"github.com/richard-senior/matchpredictor/pkg/datasource"
	"github.com/richard-senior/matchpredictor/pkg/service"
	"github.com/richard-senior/matchpredictor/pkg/store"
)

// App holds the wired components shared by every entry point
type App struct {
	Config  *config.PredictorConfig
	Store   *store.Store
	Service *service.Service
}

// ConfigureLogging applies the log section of the configuration
func ConfigureLogging(cfg *config.PredictorConfig) error {
	level, err := logger.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	logger.SetLevel(level)
	logger.SetShowDateTime(cfg.Log.ShowDateTime)
	if out := cfg.LogOutputRune(); out != 'c' && cfg.Log.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Log.File), 0755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}
	}
	logger.SetLogFile(cfg.Log.File)
	return logger.SetLogOutput(cfg.LogOutputRune())
}

// Open wires the data source, the store and the service, then loads the current model.
// An empty store DSN runs without a database.
func Open(cfg *config.PredictorConfig) (*App, error) {
	if err := ConfigureLogging(cfg); err != nil {
		return nil, err
	}

	src, err := datasource.New(cfg)
	if err != nil {
		return nil, err
	}

	a := &App{Config: cfg}
	if strings.TrimSpace(cfg.Store.DSN) != "" {
		st, err := store.Open(cfg.Store)
		if err != nil {
			return nil, fmt.Errorf("failed to open store: %w", err)
		}
		a.Store = st
	} else {
		logger.Warn("No store configured, models are only kept in", cfg.Model.Path)
	}

	a.Service = service.New(cfg, src, a.Store)
	if err := a.Service.Bootstrap(); err != nil {
		a.Close()
		return nil, err
	}
	logger.Info("Using", src.Name(), "match data")
	return a, nil
}

// Close releases the store
func (a *App) Close() {
	if a.Store == nil {
		return
	}
	if err := a.Store.Close(); err != nil {
		logger.Warn("Failed to close store", err)
	}
}
