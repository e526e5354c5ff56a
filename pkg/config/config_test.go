package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 5, cfg.Features.WindowSize)
	assert.Equal(t, 3, cfg.Features.MinHistory)
	assert.Equal(t, 100, cfg.Model.Trees)
	assert.Equal(t, int64(42), cfg.Model.Seed)
	assert.Equal(t, 0.6, cfg.Model.AttackWeight)
	assert.Equal(t, 0.4, cfg.Model.DefenceWeight)
	assert.Equal(t, ServingSeason, cfg.Features.ServingStats)
}

func TestLoadOverlaysYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "predictor.yaml")
	yml := `
source:
  provider: fotmob
  league_id: 48
  cache_ttl: 90m
features:
  window_size: 6
  serving_stats: window
model:
  trees: 10
store:
  driver: pgx
  dsn: postgres://localhost/predictor
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0644))
	t.Setenv("PREDICTOR_ADDR", ":9999")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ProviderFotmob, cfg.Source.Provider)
	assert.Equal(t, 48, cfg.Source.LeagueID)
	assert.Equal(t, 90*time.Minute, cfg.Source.CacheTTL)
	assert.Equal(t, 6, cfg.Features.WindowSize)
	assert.Equal(t, 3, cfg.Features.MinHistory, "unset keys keep their defaults")
	assert.Equal(t, ServingWindow, cfg.Features.ServingStats)
	assert.Equal(t, 10, cfg.Model.Trees)
	assert.Equal(t, DriverPostgres, cfg.Store.Driver)
	assert.Equal(t, ":9999", cfg.Server.Addr)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]func(c *PredictorConfig){
		"window below min history": func(c *PredictorConfig) { c.Features.WindowSize = 2 },
		"zero min history":         func(c *PredictorConfig) { c.Features.MinHistory = 0 },
		"no trees":                 func(c *PredictorConfig) { c.Model.Trees = 0 },
		"weight above one":         func(c *PredictorConfig) { c.Model.AttackWeight = 1.5 },
		"unknown provider":         func(c *PredictorConfig) { c.Source.Provider = "opta" },
		"unknown driver":           func(c *PredictorConfig) { c.Store.Driver = "mysql" },
		"unknown serving mode":     func(c *PredictorConfig) { c.Features.ServingStats = "both" },
		"bad log output":           func(c *PredictorConfig) { c.Log.Output = "syslog" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLogOutputRune(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 'c', cfg.LogOutputRune())
	cfg.Log.Output = "file"
	assert.Equal(t, 'f', cfg.LogOutputRune())
	cfg.Log.Output = "both"
	assert.Equal(t, 'b', cfg.LogOutputRune())
}
