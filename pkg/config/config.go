package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// PredictorConfig contains every tunable of the match predictor.
// Defaults: a trailing window of 5, 100 trees, seed 42.
type PredictorConfig struct {
	Source   SourceConfig  `yaml:"source"`
	Features FeatureConfig `yaml:"features"`
	Model    ModelConfig   `yaml:"model"`
	Store    StoreConfig   `yaml:"store"`
	Server   ServerConfig  `yaml:"server"`
	Train    TrainConfig   `yaml:"train"`
	Log      LogConfig     `yaml:"log"`
}

// SourceConfig describes where match data comes from
type SourceConfig struct {
	Provider     string        `yaml:"provider"` // "football-data" or "fotmob"
	BaseURL      string        `yaml:"base_url"`
	APIKey       string        `yaml:"api_key"`
	Competition  string        `yaml:"competition"` // football-data competition code, eg "PL"
	LeagueID     int           `yaml:"league_id"`   // fotmob league id, eg 47
	Season       int           `yaml:"season"`      // first year of the season, 0 means current
	CacheDir     string        `yaml:"cache_dir"`
	CacheTTL     time.Duration `yaml:"cache_ttl"`
	Timeout      time.Duration `yaml:"timeout"`
	Retries      int           `yaml:"retries"`
	RetryBackoff time.Duration `yaml:"retry_backoff"`
	UserAgent    string        `yaml:"user_agent"`
}

// FeatureConfig controls the trailing window used to derive team form
type FeatureConfig struct {
	WindowSize   int    `yaml:"window_size"`
	MinHistory   int    `yaml:"min_history"`
	ServingStats string `yaml:"serving_stats"` // "season" or "window"
}

// ModelConfig controls the forest and the score blend
type ModelConfig struct {
	Trees           int     `yaml:"trees"`
	Seed            int64   `yaml:"seed"`
	MaxDepth        int     `yaml:"max_depth"` // 0 means unlimited
	MinSamplesSplit int     `yaml:"min_samples_split"`
	MinTrainingRows int     `yaml:"min_training_rows"`
	AttackWeight    float64 `yaml:"attack_weight"`
	DefenceWeight   float64 `yaml:"defence_weight"`
	Path            string  `yaml:"path"`
}

type StoreConfig struct {
	Driver string `yaml:"driver"` // "sqlite" or "pgx"
	DSN    string `yaml:"dsn"`
}

type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// TrainConfig controls scheduled retraining while serving
type TrainConfig struct {
	Schedule string `yaml:"schedule"` // cron expression, empty disables
	OnStart  bool   `yaml:"on_start"`
}

type LogConfig struct {
	Level        string `yaml:"level"`
	Output       string `yaml:"output"` // "console", "file" or "both"
	File         string `yaml:"file"`
	ShowDateTime bool   `yaml:"show_datetime"`
}

const (
	ProviderFootballData = "football-data"
	ProviderFotmob       = "fotmob"

	DriverSQLite   = "sqlite"
	DriverPostgres = "pgx"

	ServingSeason = "season"
	ServingWindow = "window"
)

// Default returns a configuration populated with the standard values
func Default() *PredictorConfig {
	home, _ := os.UserHomeDir()
	base := filepath.Join(home, ".matchpredictor")
	return &PredictorConfig{
		Source: SourceConfig{
			Provider:     ProviderFootballData,
			BaseURL:      "https://api.football-data.org/v4",
			Competition:  "PL",
			LeagueID:     47,
			CacheDir:     filepath.Join(base, "cache"),
			CacheTTL:     6 * time.Hour,
			Timeout:      30 * time.Second,
			Retries:      3,
			RetryBackoff: 2 * time.Second,
			UserAgent:    "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36",
		},
		Features: FeatureConfig{
			WindowSize:   5,
			MinHistory:   3,
			ServingStats: ServingSeason,
		},
		Model: ModelConfig{
			Trees:           100,
			Seed:            42,
			MinSamplesSplit: 2,
			MinTrainingRows: 1,
			AttackWeight:    0.6,
			DefenceWeight:   0.4,
			Path:            filepath.Join(base, "model.json"),
		},
		Store: StoreConfig{
			Driver: DriverSQLite,
			DSN:    filepath.Join(base, "matchpredictor.db"),
		},
		Server: ServerConfig{
			Addr:         ":8000",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 5 * time.Minute,
		},
		Log: LogConfig{
			Level:  "info",
			Output: "console",
			File:   filepath.Join(base, "matchpredictor.log"),
		},
	}
}

// Load reads the YAML file at path over the defaults, then applies environment overrides.
// An empty path skips the file. A .env file in the working directory is honoured if present.
func Load(path string) (*PredictorConfig, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	_ = godotenv.Load()
	cfg.ApplyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overlays values taken from the process environment
func (c *PredictorConfig) ApplyEnv() {
	setString := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	setString("FOOTBALL_DATA_API_KEY", &c.Source.APIKey)
	setString("PREDICTOR_PROVIDER", &c.Source.Provider)
	setString("PREDICTOR_DB_DRIVER", &c.Store.Driver)
	setString("PREDICTOR_DB_DSN", &c.Store.DSN)
	setString("PREDICTOR_MODEL_PATH", &c.Model.Path)
	setString("PREDICTOR_ADDR", &c.Server.Addr)
	setString("PREDICTOR_LOG_LEVEL", &c.Log.Level)
	setString("PREDICTOR_TRAIN_SCHEDULE", &c.Train.Schedule)
}

// Validate checks that the configuration is usable
func (c *PredictorConfig) Validate() error {
	switch c.Source.Provider {
	case ProviderFootballData, ProviderFotmob:
	default:
		return fmt.Errorf("unknown source provider %q", c.Source.Provider)
	}
	if c.Source.Retries < 0 {
		return fmt.Errorf("source retries must be >= 0")
	}

	if c.Features.MinHistory < 1 {
		return fmt.Errorf("features min_history must be >= 1")
	}
	if c.Features.WindowSize < c.Features.MinHistory {
		return fmt.Errorf("features window_size (%d) must be >= min_history (%d)", c.Features.WindowSize, c.Features.MinHistory)
	}
	switch c.Features.ServingStats {
	case ServingSeason, ServingWindow:
	default:
		return fmt.Errorf("unknown serving_stats mode %q", c.Features.ServingStats)
	}

	if c.Model.Trees < 1 {
		return fmt.Errorf("model trees must be >= 1")
	}
	if c.Model.MaxDepth < 0 {
		return fmt.Errorf("model max_depth must be >= 0")
	}
	if c.Model.MinSamplesSplit < 2 {
		return fmt.Errorf("model min_samples_split must be >= 2")
	}
	if c.Model.MinTrainingRows < 1 {
		return fmt.Errorf("model min_training_rows must be >= 1")
	}
	if c.Model.AttackWeight < 0 || c.Model.AttackWeight > 1 || c.Model.DefenceWeight < 0 || c.Model.DefenceWeight > 1 {
		return fmt.Errorf("model score weights must lie in [0,1]")
	}

	switch c.Store.Driver {
	case DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}

	switch strings.ToLower(c.Log.Output) {
	case "console", "file", "both", "":
	default:
		return fmt.Errorf("unknown log output %q", c.Log.Output)
	}
	return nil
}

// LogOutputRune maps the log output setting to the logger package's selector
func (c *PredictorConfig) LogOutputRune() rune {
	switch strings.ToLower(c.Log.Output) {
	case "file":
		return 'f'
	case "both":
		return 'b'
	default:
		return 'c'
	}
}
