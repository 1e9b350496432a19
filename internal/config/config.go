package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Apify     ApifyConfig     `yaml:"apify" mapstructure:"apify"`
	JobTech   JobTechConfig   `yaml:"jobtech" mapstructure:"jobtech"`
	Places    PlacesConfig    `yaml:"places" mapstructure:"places"`
	Pipeline  PipelineConfig  `yaml:"pipeline" mapstructure:"pipeline"`
	Registry  RegistryConfig  `yaml:"registry" mapstructure:"registry"`
	Alerts    AlertsConfig    `yaml:"alerts" mapstructure:"alerts"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend. The pool bounds apply to
// the postgres driver only.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int    `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int    `yaml:"min_conns" mapstructure:"min_conns"`
}

// AnthropicConfig holds Anthropic API settings for evaluation.
type AnthropicConfig struct {
	Key           string  `yaml:"key" mapstructure:"key"`
	Model         string  `yaml:"model" mapstructure:"model"`
	FallbackModel string  `yaml:"fallback_model" mapstructure:"fallback_model"`
	MaxTokens     int     `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature   float64 `yaml:"temperature" mapstructure:"temperature"`
}

// ApifyConfig holds the scraping backend settings for the LinkedIn and
// Indeed sources.
type ApifyConfig struct {
	Token         string `yaml:"token" mapstructure:"token"`
	BaseURL       string `yaml:"base_url" mapstructure:"base_url"`
	LinkedInActor string `yaml:"linkedin_actor" mapstructure:"linkedin_actor"`
	IndeedActor   string `yaml:"indeed_actor" mapstructure:"indeed_actor"`
	TimeoutSecs   int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// JobTechConfig holds the public job-search API settings for the
// Platsbanken source.
type JobTechConfig struct {
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// PlacesConfig holds Google Places API settings.
type PlacesConfig struct {
	Key         string `yaml:"key" mapstructure:"key"`
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// PipelineConfig configures batch processing.
type PipelineConfig struct {
	Concurrency  int `yaml:"concurrency" mapstructure:"concurrency"`
	DefaultLimit int `yaml:"default_limit" mapstructure:"default_limit"`
}

// RegistryConfig points at the search-definition file.
type RegistryConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// AlertsConfig configures the alert webhook. An empty URL disables delivery.
type AlertsConfig struct {
	WebhookURL string `yaml:"webhook_url" mapstructure:"webhook_url"`
}

// ServerConfig configures the webhook server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("SIGNALS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "signals.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("pipeline.concurrency", 3)
	v.SetDefault("pipeline.default_limit", 25)
	v.SetDefault("registry.path", "searches.yaml")
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.fallback_model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 1024)
	v.SetDefault("anthropic.temperature", 0.2)
	v.SetDefault("apify.base_url", "https://api.apify.com/v2")
	v.SetDefault("apify.linkedin_actor", "bebity~linkedin-jobs-scraper")
	v.SetDefault("apify.indeed_actor", "misceres~indeed-scraper")
	v.SetDefault("apify.timeout_secs", 300)
	v.SetDefault("jobtech.base_url", "https://jobsearch.api.jobtechdev.se")
	v.SetDefault("jobtech.timeout_secs", 30)
	v.SetDefault("places.base_url", "https://places.googleapis.com/v1")
	v.SetDefault("places.timeout_secs", 30)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks that the configuration is usable for the given mode.
// Modes: "run" (pipeline execution), "serve" (webhook server), "store"
// (history and migration commands).
func (c *Config) Validate(mode string) error {
	var problems []string

	check := func(ok bool, msg string) {
		if !ok {
			problems = append(problems, msg)
		}
	}

	switch mode {
	case "run":
		check(c.Store.DatabaseURL != "", "store.database_url is required")
		check(c.Anthropic.Key != "", "anthropic.key is required")
		check(c.Pipeline.Concurrency >= 1 && c.Pipeline.Concurrency <= 20,
			"pipeline.concurrency must be between 1 and 20")
		check(c.Pipeline.DefaultLimit >= 1, "pipeline.default_limit must be >= 1")
	case "serve":
		check(c.Server.Port > 0, "server.port must be > 0")
		check(c.Store.DatabaseURL != "", "store.database_url is required")
		check(c.Anthropic.Key != "", "anthropic.key is required")
		check(c.Pipeline.Concurrency >= 1 && c.Pipeline.Concurrency <= 20,
			"pipeline.concurrency must be between 1 and 20")
	case "store":
		check(c.Store.DatabaseURL != "", "store.database_url is required")
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
