package config

import "time"

// Config represents the main configuration structure
type Config struct {
	Logging  LoggingConfig  `yaml:"logging" mapstructure:"logging"`
	Output   OutputConfig   `yaml:"output" mapstructure:"output"`
	Pipeline PipelineConfig `yaml:"pipeline" mapstructure:"pipeline"`
	NER      NERConfig      `yaml:"ner" mapstructure:"ner"`
	Cache    CacheConfig    `yaml:"cache" mapstructure:"cache"`
	Audit    AuditConfig    `yaml:"audit" mapstructure:"audit"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"` // json or console
	File   struct {
		Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
		Path    string `yaml:"path" mapstructure:"path"`
	} `yaml:"file" mapstructure:"file"`
}

// OutputConfig controls where the redacted table is written
type OutputConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// PipelineConfig contains row processing configuration
type PipelineConfig struct {
	BatchSize      int `yaml:"batch_size" mapstructure:"batch_size"`
	ProgressReport int `yaml:"progress_report" mapstructure:"progress_report"`
}

// NERConfig selects and configures the named-entity recognition backend
type NERConfig struct {
	Backend       string        `yaml:"backend" mapstructure:"backend"` // gazetteer or http
	GazetteerPath string        `yaml:"gazetteer_path" mapstructure:"gazetteer_path"`
	URL           string        `yaml:"url" mapstructure:"url"`
	Timeout       time.Duration `yaml:"timeout" mapstructure:"timeout"`
	RateLimit     float64       `yaml:"rate_limit" mapstructure:"rate_limit"` // requests per second, 0 = unlimited
	Burst         int           `yaml:"burst" mapstructure:"burst"`
}

// CacheConfig contains Redis cache configuration for NER results
type CacheConfig struct {
	Enabled        bool          `yaml:"enabled" mapstructure:"enabled"`
	RedisURL       string        `yaml:"redis_url" mapstructure:"redis_url"`
	MaxConnections int           `yaml:"max_connections" mapstructure:"max_connections"`
	MinIdleConns   int           `yaml:"min_idle_conns" mapstructure:"min_idle_conns"`
	DefaultTTL     time.Duration `yaml:"default_ttl" mapstructure:"default_ttl"`
	KeyPrefix      string        `yaml:"key_prefix" mapstructure:"key_prefix"`
}

// AuditConfig contains PostgreSQL configuration for the verdict audit trail
type AuditConfig struct {
	Enabled         bool          `yaml:"enabled" mapstructure:"enabled"`
	DatabaseURL     string        `yaml:"database_url" mapstructure:"database_url"`
	MaxOpenConns    int           `yaml:"max_open_conns" mapstructure:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns" mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time" mapstructure:"conn_max_idle_time"`
}

// GetDefaults returns a configuration with sensible defaults
func GetDefaults() *Config {
	cfg := &Config{
		Output: OutputConfig{
			Path: "redacted_output.csv",
		},
		Pipeline: PipelineConfig{
			BatchSize:      500,
			ProgressReport: 1000,
		},
		NER: NERConfig{
			Backend: "gazetteer",
			URL:     "http://localhost:8001",
			Timeout: 10 * time.Second,
			Burst:   1,
		},
		Cache: CacheConfig{
			Enabled:        false,
			RedisURL:       "redis://localhost:6379/0",
			MaxConnections: 10,
			MinIdleConns:   1,
			DefaultTTL:     24 * time.Hour,
			KeyPrefix:      "piiscan",
		},
		Audit: AuditConfig{
			Enabled:         false,
			DatabaseURL:     "postgres://localhost:5432/piiscan?sslmode=disable",
			MaxOpenConns:    4,
			MaxIdleConns:    2,
			ConnMaxLifetime: 30 * time.Minute,
			ConnMaxIdleTime: 5 * time.Minute,
		},
	}
	cfg.Logging.Level = "info"
	cfg.Logging.Format = "json"
	cfg.Logging.File.Path = "logs/piiscan.log"
	return cfg
}
