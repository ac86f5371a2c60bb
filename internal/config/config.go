// Package config loads and validates pipeline configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Crawler      CrawlerConfig      `mapstructure:"crawler"`
	Standardizer StandardizerConfig `mapstructure:"standardizer"`
	Loader       LoaderConfig       `mapstructure:"loader"`
	DB           DBConfig           `mapstructure:"db"`
	Logging      LoggingConfig      `mapstructure:"logging"`
}

// ServerConfig controls the operations HTTP server.
type ServerConfig struct {
	Port int `mapstructure:"port"`
	// JobTimeoutMinutes bounds background refresh runs; 0 disables the
	// deadline.
	JobTimeoutMinutes int `mapstructure:"job_timeout_minutes"`
}

// CrawlerConfig governs fetch pacing and retry behavior.
type CrawlerConfig struct {
	BaseURL          string `mapstructure:"base_url"`
	UserAgent        string `mapstructure:"user_agent"`
	StartPage        int    `mapstructure:"start_page"`
	PageLimit        int    `mapstructure:"page_limit"`
	DelayMs          int    `mapstructure:"delay_ms"`
	TimeoutSeconds   int    `mapstructure:"timeout_seconds"`
	MaxRetries       int    `mapstructure:"max_retries"`
	BackoffInitialMs int    `mapstructure:"backoff_initial_ms"`
	BackoffMaxMs     int    `mapstructure:"backoff_max_ms"`
}

// StandardizerConfig tunes name standardization.
type StandardizerConfig struct {
	// ModelURL points at the optional standardization model service;
	// empty disables the model tier.
	ModelURL string `mapstructure:"model_url"`
	// ModelTimeoutSeconds bounds each model call.
	ModelTimeoutSeconds int `mapstructure:"model_timeout_seconds"`
	// FuzzyThreshold is the minimum Jaro-Winkler similarity accepted by
	// the fuzzy tier.
	FuzzyThreshold float64 `mapstructure:"fuzzy_threshold"`
	// Workers is the standardization fan-out width.
	Workers int `mapstructure:"workers"`
}

// LoaderConfig tunes database writes.
type LoaderConfig struct {
	BatchSize int `mapstructure:"batch_size"`
}

// DBConfig controls access to the relational database.
type DBConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	// DataDir enables the developer-local server when set.
	DataDir  string `mapstructure:"data_dir"`
	MaxConns int    `mapstructure:"max_conns"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment. Environment variables use the
// ADMISSIONS prefix with underscores, e.g. ADMISSIONS_DB_PASSWORD.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("ADMISSIONS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.job_timeout_minutes", 0)
	v.SetDefault("crawler.base_url", "https://www.thegradcafe.com/survey/")
	v.SetDefault("crawler.user_agent", "admissions-crawler/1.0")
	v.SetDefault("crawler.start_page", 1)
	v.SetDefault("crawler.page_limit", 0)
	v.SetDefault("crawler.delay_ms", 1000)
	v.SetDefault("crawler.timeout_seconds", 15)
	v.SetDefault("crawler.max_retries", 2)
	v.SetDefault("crawler.backoff_initial_ms", 250)
	v.SetDefault("crawler.backoff_max_ms", 2000)
	v.SetDefault("standardizer.model_timeout_seconds", 5)
	v.SetDefault("standardizer.fuzzy_threshold", 0.90)
	v.SetDefault("standardizer.workers", 4)
	v.SetDefault("loader.batch_size", 200)
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.user", "postgres")
	v.SetDefault("db.name", "admissions")
	v.SetDefault("db.max_conns", 8)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Crawler.BaseURL == "" {
		return fmt.Errorf("crawler.base_url is required")
	}
	if c.Crawler.UserAgent == "" {
		return fmt.Errorf("crawler.user_agent is required")
	}
	if c.Crawler.StartPage < 1 {
		return fmt.Errorf("crawler.start_page must be >= 1")
	}
	if c.Crawler.PageLimit < 0 {
		return fmt.Errorf("crawler.page_limit must be >= 0")
	}
	if c.Crawler.TimeoutSeconds <= 0 {
		return fmt.Errorf("crawler.timeout_seconds must be > 0")
	}
	if c.Standardizer.FuzzyThreshold <= 0 || c.Standardizer.FuzzyThreshold > 1 {
		return fmt.Errorf("standardizer.fuzzy_threshold must be in (0, 1]")
	}
	if c.Standardizer.Workers <= 0 {
		return fmt.Errorf("standardizer.workers must be > 0")
	}
	if c.Loader.BatchSize <= 0 {
		return fmt.Errorf("loader.batch_size must be > 0")
	}
	if c.DB.Name == "" {
		return fmt.Errorf("db.name is required")
	}
	return nil
}

// FetchTimeout converts the crawler timeout into a duration.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.Crawler.TimeoutSeconds) * time.Second
}

// FetchDelay converts the inter-request delay into a duration.
func (c Config) FetchDelay() time.Duration {
	return time.Duration(c.Crawler.DelayMs) * time.Millisecond
}

// BackoffInitial converts the first retry delay into a duration.
func (c Config) BackoffInitial() time.Duration {
	return time.Duration(c.Crawler.BackoffInitialMs) * time.Millisecond
}

// BackoffMax converts the retry delay ceiling into a duration.
func (c Config) BackoffMax() time.Duration {
	return time.Duration(c.Crawler.BackoffMaxMs) * time.Millisecond
}

// ModelTimeout converts the model-call deadline into a duration.
func (c Config) ModelTimeout() time.Duration {
	return time.Duration(c.Standardizer.ModelTimeoutSeconds) * time.Second
}

// JobTimeout converts the background job deadline into a duration.
func (c Config) JobTimeout() time.Duration {
	return time.Duration(c.Server.JobTimeoutMinutes) * time.Minute
}
