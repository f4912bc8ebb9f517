package config

import (
	"log/slog"
	"time"

	"github.com/spf13/viper"

	"github.com/feedyard/feedlot-etl/internal/db"
)

// Pipeline carries the processing policy knobs. Thresholds that look
// like business constants (suspicious multiplier, future-date
// tolerance) are deliberately configuration.
type Pipeline struct {
	BatchSize            int
	Workers              int
	SampleLines          int
	MinConfidence        float64
	FallbackSeparator    string
	SuspiciousMultiplier float64
	FutureDateTolerance  time.Duration
	MaxPlausibleKg       float64
	RetryBase            time.Duration
	MaxRetries           int
	RunTimeout           time.Duration
	DryRunCleanup        bool
}

// Logging selects the slog handler.
type Logging struct {
	Level  string
	Format string
}

// Config is everything the worker needs to start.
type Config struct {
	Database db.Config
	Pipeline Pipeline
	Logging  Logging
}

// DefaultPipeline returns the processing defaults.
func DefaultPipeline() Pipeline {
	return Pipeline{
		BatchSize:            1000,
		Workers:              4,
		SampleLines:          5,
		MinConfidence:        0.7,
		FallbackSeparator:    ";",
		SuspiciousMultiplier: 5.0,
		FutureDateTolerance:  24 * time.Hour,
		MaxPlausibleKg:       50000,
		RetryBase:            5 * time.Second,
		MaxRetries:           3,
		RunTimeout:           10 * time.Minute,
	}
}

// Load reads config.yaml from the given path, with ETL_-prefixed
// environment overrides. A missing file falls back to defaults plus
// environment, which is how the worker runs in containers.
func Load(configPath string) (Config, error) {
	cfg := Config{
		Database: db.DefaultConfig(),
		Pipeline: DefaultPipeline(),
		Logging:  Logging{Level: "info", Format: "text"},
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AutomaticEnv()
	v.SetEnvPrefix("ETL")

	v.BindEnv("database.host")
	v.BindEnv("database.port")
	v.BindEnv("database.user")
	v.BindEnv("database.password")
	v.BindEnv("database.dbname")
	v.BindEnv("database.sslmode")
	v.BindEnv("logging.level")
	v.BindEnv("logging.format")

	if err := v.ReadInConfig(); err != nil {
		slog.Info("no config.yaml found, using defaults and env vars")
	} else {
		slog.Info("loaded config.yaml", "path", v.ConfigFileUsed())
	}

	if v.IsSet("database.host") {
		cfg.Database.Host = v.GetString("database.host")
	}
	if v.IsSet("database.port") {
		cfg.Database.Port = v.GetInt("database.port")
	}
	if v.IsSet("database.user") {
		cfg.Database.User = v.GetString("database.user")
	}
	if v.IsSet("database.password") {
		cfg.Database.Password = v.GetString("database.password")
	}
	if v.IsSet("database.dbname") {
		cfg.Database.DBName = v.GetString("database.dbname")
	}
	if v.IsSet("database.sslmode") {
		cfg.Database.SSLMode = v.GetString("database.sslmode")
	}
	if v.IsSet("database.max_conns") {
		cfg.Database.MaxConns = int32(v.GetInt("database.max_conns"))
	}

	if v.IsSet("pipeline.batch_size") {
		cfg.Pipeline.BatchSize = v.GetInt("pipeline.batch_size")
	}
	if v.IsSet("pipeline.workers") {
		cfg.Pipeline.Workers = v.GetInt("pipeline.workers")
	}
	if v.IsSet("pipeline.sample_lines") {
		cfg.Pipeline.SampleLines = v.GetInt("pipeline.sample_lines")
	}
	if v.IsSet("pipeline.min_confidence") {
		cfg.Pipeline.MinConfidence = v.GetFloat64("pipeline.min_confidence")
	}
	if v.IsSet("pipeline.fallback_separator") {
		cfg.Pipeline.FallbackSeparator = v.GetString("pipeline.fallback_separator")
	}
	if v.IsSet("pipeline.suspicious_multiplier") {
		cfg.Pipeline.SuspiciousMultiplier = v.GetFloat64("pipeline.suspicious_multiplier")
	}
	if v.IsSet("pipeline.future_date_tolerance") {
		cfg.Pipeline.FutureDateTolerance = v.GetDuration("pipeline.future_date_tolerance")
	}
	if v.IsSet("pipeline.max_plausible_kg") {
		cfg.Pipeline.MaxPlausibleKg = v.GetFloat64("pipeline.max_plausible_kg")
	}
	if v.IsSet("pipeline.retry_base") {
		cfg.Pipeline.RetryBase = v.GetDuration("pipeline.retry_base")
	}
	if v.IsSet("pipeline.max_retries") {
		cfg.Pipeline.MaxRetries = v.GetInt("pipeline.max_retries")
	}
	if v.IsSet("pipeline.run_timeout") {
		cfg.Pipeline.RunTimeout = v.GetDuration("pipeline.run_timeout")
	}
	if v.IsSet("pipeline.dry_run_cleanup") {
		cfg.Pipeline.DryRunCleanup = v.GetBool("pipeline.dry_run_cleanup")
	}

	if v.IsSet("logging.level") {
		cfg.Logging.Level = v.GetString("logging.level")
	}
	if v.IsSet("logging.format") {
		cfg.Logging.Format = v.GetString("logging.format")
	}

	return cfg, nil
}
