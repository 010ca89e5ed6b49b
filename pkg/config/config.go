package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for the edisem engine.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (store credentials, signing keys) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"8090"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version  string `yaml:"-"` // Set at load time, not from config

	// Store is the external linked-data resource store.
	Store StoreConfig `yaml:"store"`

	// Engine holds resource-type configuration and fetch behavior settings.
	Engine EngineConfig `yaml:"engine"`
}

// StoreConfig holds the resource store endpoint and credentials.
type StoreConfig struct {
	// BaseURL is the root of the store's JSON API, e.g.
	// "https://corpus.example.org/api".
	BaseURL string `yaml:"base_url" env:"STORE_BASE_URL"`

	// KeyIdentity is the public half of the store API key pair.
	KeyIdentity string `yaml:"key_identity" env:"STORE_KEY_IDENTITY" env-default:""`

	// KeyCredential is the secret half of the store API key pair.
	// Secret - not in YAML.
	KeyCredential string `yaml:"-" env:"STORE_KEY_CREDENTIAL"`

	// TimeoutSeconds bounds each store round trip.
	TimeoutSeconds int `yaml:"timeout_seconds" env:"STORE_TIMEOUT_SECONDS" env-default:"30"`

	// MaxRetries is the retry budget for transient store failures.
	MaxRetries int `yaml:"max_retries" env:"STORE_MAX_RETRIES" env-default:"3"`
}

// Timeout returns the per-request timeout as a duration.
func (c *StoreConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// EngineConfig holds detail-engine settings.
type EngineConfig struct {
	// TypesDir is the directory of per-resource-type YAML configuration
	// files loaded at startup.
	TypesDir string `yaml:"types_dir" env:"ENGINE_TYPES_DIR" env-default:"configs/types"`

	// RecommendationMax caps recommendation lists when a type's
	// configuration does not set its own cap.
	RecommendationMax int `yaml:"recommendation_max" env:"ENGINE_RECOMMENDATION_MAX" env-default:"8"`
}

// Load reads configuration from config.yaml with environment variable overrides.
// The version parameter is injected at build time and set on the returned Config.
// Environment variables override YAML values. Secrets (STORE_KEY_CREDENTIAL)
// must come from environment variables (yaml:"-" fields).
func Load(version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	// Load config from YAML file with environment variable overrides
	if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
		return nil, fmt.Errorf("failed to read config.yaml: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// validate checks the fields the engine cannot run without.
func (c *Config) validate() error {
	if c.Store.BaseURL == "" {
		return fmt.Errorf("store.base_url is required")
	}
	parsed, err := url.Parse(c.Store.BaseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("store.base_url must be an absolute URL: %q", c.Store.BaseURL)
	}
	if c.Store.TimeoutSeconds <= 0 {
		return fmt.Errorf("store.timeout_seconds must be positive")
	}
	if c.Engine.TypesDir == "" {
		return fmt.Errorf("engine.types_dir is required")
	}
	if _, err := os.Stat(c.Engine.TypesDir); err != nil {
		return fmt.Errorf("engine.types_dir does not exist: %w", err)
	}
	return nil
}
