package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	// Best-effort: a .env in the working directory feeds PIISCAN_* overrides
	_ = godotenv.Load()

	config := GetDefaults()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	v.AddConfigPath("/etc/pii-sentinel/")
	v.AddConfigPath("$HOME/.pii-sentinel/")

	v.SetEnvPrefix("PIISCAN")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	bindEnv(v)

	if configPath != "" {
		if _, err := os.Stat(configPath); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		v.SetConfigFile(configPath)
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found is not an error - we'll use defaults
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// bindEnv registers every key so AutomaticEnv overrides reach Unmarshal
// even when no config file mentions them.
func bindEnv(v *viper.Viper) {
	for _, key := range []string{
		"logging.level", "logging.format", "logging.file.enabled", "logging.file.path",
		"output.path",
		"pipeline.batch_size", "pipeline.progress_report",
		"ner.backend", "ner.gazetteer_path", "ner.url", "ner.timeout", "ner.rate_limit", "ner.burst",
		"cache.enabled", "cache.redis_url", "cache.max_connections", "cache.min_idle_conns",
		"cache.default_ttl", "cache.key_prefix",
		"audit.enabled", "audit.database_url", "audit.max_open_conns", "audit.max_idle_conns",
		"audit.conn_max_lifetime", "audit.conn_max_idle_time",
	} {
		_ = v.BindEnv(key)
	}
}

// validateConfig validates the loaded configuration
func validateConfig(config *Config) error {
	if config.Logging.Level != "debug" && config.Logging.Level != "info" && config.Logging.Level != "warn" && config.Logging.Level != "error" {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", config.Logging.Level)
	}

	if config.Logging.Format != "json" && config.Logging.Format != "console" {
		return fmt.Errorf("invalid log format: %s (must be json or console)", config.Logging.Format)
	}

	if strings.TrimSpace(config.Output.Path) == "" {
		return fmt.Errorf("output path must not be empty")
	}

	if config.Pipeline.BatchSize <= 0 {
		return fmt.Errorf("invalid batch size: %d", config.Pipeline.BatchSize)
	}

	switch config.NER.Backend {
	case "gazetteer":
	case "http":
		if config.NER.URL == "" {
			return fmt.Errorf("ner url is required for the http backend")
		}
		if config.NER.RateLimit < 0 {
			return fmt.Errorf("invalid ner rate limit: %f", config.NER.RateLimit)
		}
	default:
		return fmt.Errorf("invalid ner backend: %s (must be gazetteer or http)", config.NER.Backend)
	}

	if config.Cache.Enabled && config.Cache.RedisURL == "" {
		return fmt.Errorf("cache redis_url is required when the cache is enabled")
	}

	if config.Audit.Enabled && config.Audit.DatabaseURL == "" {
		return fmt.Errorf("audit database_url is required when auditing is enabled")
	}

	return nil
}
