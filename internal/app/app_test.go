package app

import (
	"path/filepath"
	"testing"

	"github.com/richard-senior/matchpredictor/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.PredictorConfig {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Source.CacheDir = filepath.Join(dir, "cache")
	cfg.Model.Path = filepath.Join(dir, "model.json")
	cfg.Store.DSN = filepath.Join(dir, "db", "predictor.db")
	cfg.Log.Output = "console"
	return cfg
}

func TestOpenWithStore(t *testing.T) {
	a, err := Open(testConfig(t))
	require.NoError(t, err)
	defer a.Close()

	assert.NotNil(t, a.Store)
	assert.NotNil(t, a.Service)
	assert.Nil(t, a.Service.Snapshot())

	models, err := a.Service.Models()
	require.NoError(t, err)
	assert.Empty(t, models)
}

func TestOpenWithoutStore(t *testing.T) {
	cfg := testConfig(t)
	cfg.Store.DSN = ""
	a, err := Open(cfg)
	require.NoError(t, err)
	defer a.Close()
	assert.Nil(t, a.Store)
}

func TestConfigureLoggingCreatesLogDirectory(t *testing.T) {
	cfg := testConfig(t)
	cfg.Log.Output = "file"
	cfg.Log.File = filepath.Join(t.TempDir(), "logs", "predictor.log")
	require.NoError(t, ConfigureLogging(cfg))
	assert.FileExists(t, cfg.Log.File)

	cfg.Log.Output = "console"
	require.NoError(t, ConfigureLogging(cfg))
}

func TestConfigureLoggingRejectsBadLevel(t *testing.T) {
	cfg := testConfig(t)
	cfg.Log.Level = "chatty"
	assert.Error(t, ConfigureLogging(cfg))
}
