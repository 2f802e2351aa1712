// Package config holds crawler configuration and its validation rules.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds crawler configuration.
type Config struct {
	BaseURL     string
	SearchPaths []string
	PageParam   string
	UserAgent   string

	Delay       time.Duration
	RandomDelay time.Duration
	Timeout     time.Duration

	MaxRetries      int
	RetryBackoff    time.Duration
	RetryBackoffMax time.Duration

	CheckpointFile     string
	CheckpointInterval int
	Resume             bool

	MaxSkipRatio float64
	MinAttempts  int

	SeenCacheSize    int
	OutputFile       string
	MetricsAddr      string
	Verbose          bool
	RespectRobotsTxt bool
}

// DefaultConfig returns conservative defaults for the target site.
func DefaultConfig() *Config {
	return &Config{
		BaseURL: "https://www.teixeiradecarvalho.com.br",
		SearchPaths: []string{
			"/imoveis/para-alugar",
			"/imoveis/para-comprar",
			"/lancamentos",
			"/busca-avancada",
		},
		PageParam:          "pagina",
		UserAgent:          "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		Delay:              1500 * time.Millisecond,
		RandomDelay:        500 * time.Millisecond,
		Timeout:            15 * time.Second,
		MaxRetries:         3,
		RetryBackoff:       time.Second,
		RetryBackoffMax:    8 * time.Second,
		CheckpointFile:     "output/checkpoint.json",
		CheckpointInterval: 50,
		Resume:             false,
		MaxSkipRatio:       0.5,
		MinAttempts:        20,
		SeenCacheSize:      10000,
		OutputFile:         "output/imoveis.csv",
		MetricsAddr:        "",
		Verbose:            false,
		RespectRobotsTxt:   false,
	}
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base URL cannot be empty")
	}

	parsedURL, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("base URL must include a host")
	}

	if len(c.SearchPaths) == 0 {
		return fmt.Errorf("at least one search path is required")
	}
	if c.PageParam == "" {
		return fmt.Errorf("page parameter cannot be empty")
	}
	if c.Delay < 0 {
		return fmt.Errorf("delay cannot be negative")
	}
	if c.RandomDelay < 0 {
		return fmt.Errorf("random delay cannot be negative")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	if c.RetryBackoff < 0 {
		return fmt.Errorf("retry backoff cannot be negative")
	}
	if c.RetryBackoffMax < 0 {
		return fmt.Errorf("retry backoff max cannot be negative")
	}
	if c.RetryBackoffMax > 0 && c.RetryBackoff > c.RetryBackoffMax {
		return fmt.Errorf("retry backoff (%s) cannot exceed retry backoff max (%s)", c.RetryBackoff, c.RetryBackoffMax)
	}
	if c.CheckpointFile == "" {
		return fmt.Errorf("checkpoint file cannot be empty")
	}
	if c.CheckpointInterval <= 0 {
		return fmt.Errorf("checkpoint interval must be positive")
	}
	if c.MaxSkipRatio <= 0 || c.MaxSkipRatio > 1 {
		return fmt.Errorf("max skip ratio must be in (0, 1]")
	}
	if c.MinAttempts < 0 {
		return fmt.Errorf("min attempts cannot be negative")
	}
	if c.SeenCacheSize <= 0 {
		return fmt.Errorf("seen cache size must be positive")
	}
	if c.OutputFile == "" {
		return fmt.Errorf("output file cannot be empty")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}

	return nil
}

// SiteProfile overrides site-specific settings from a YAML file, so a markup
// change or a new portal does not require a rebuild.
type SiteProfile struct {
	BaseURL     string   `yaml:"base_url"`
	SearchPaths []string `yaml:"search_paths"`
	PageParam   string   `yaml:"page_param"`
	UserAgent   string   `yaml:"user_agent"`
	DelayMS     int      `yaml:"delay_ms"`
}

// ApplyProfile merges a site profile file into the config. Empty profile
// fields leave the current values untouched.
func (c *Config) ApplyProfile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read site profile: %w", err)
	}

	var profile SiteProfile
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return fmt.Errorf("parse site profile: %w", err)
	}

	if profile.BaseURL != "" {
		c.BaseURL = profile.BaseURL
	}
	if len(profile.SearchPaths) > 0 {
		c.SearchPaths = profile.SearchPaths
	}
	if profile.PageParam != "" {
		c.PageParam = profile.PageParam
	}
	if profile.UserAgent != "" {
		c.UserAgent = profile.UserAgent
	}
	if profile.DelayMS > 0 {
		c.Delay = time.Duration(profile.DelayMS) * time.Millisecond
	}
	return nil
}

// LoadEnv loads a .env file when present so env defaults work in development.
func LoadEnv() {
	_ = godotenv.Load()
}

// EnvString reads a string environment variable, reporting whether it was set.
func EnvString(key string) (string, bool) {
	value := os.Getenv(key)
	if value == "" {
		return "", false
	}
	return value, true
}

// EnvInt reads an integer environment variable.
func EnvInt(key string) (int, bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return 0, false, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, false, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return parsed, true, nil
}

// EnvFloat reads a float environment variable.
func EnvFloat(key string) (float64, bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return 0, false, nil
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, false, fmt.Errorf("%s must be a number: %w", key, err)
	}
	return parsed, true, nil
}
