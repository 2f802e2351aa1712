package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name: "empty base url",
			mutate: func(cfg *Config) {
				cfg.BaseURL = ""
			},
			wantErr: "base URL",
		},
		{
			name: "base url without host",
			mutate: func(cfg *Config) {
				cfg.BaseURL = "/relative/path"
			},
			wantErr: "base URL",
		},
		{
			name: "no search paths",
			mutate: func(cfg *Config) {
				cfg.SearchPaths = nil
			},
			wantErr: "search path",
		},
		{
			name: "empty page parameter",
			mutate: func(cfg *Config) {
				cfg.PageParam = ""
			},
			wantErr: "page parameter",
		},
		{
			name: "negative delay",
			mutate: func(cfg *Config) {
				cfg.Delay = -time.Second
			},
			wantErr: "delay",
		},
		{
			name: "zero timeout",
			mutate: func(cfg *Config) {
				cfg.Timeout = 0
			},
			wantErr: "timeout",
		},
		{
			name: "negative max retries",
			mutate: func(cfg *Config) {
				cfg.MaxRetries = -1
			},
			wantErr: "max retries",
		},
		{
			name: "backoff above cap",
			mutate: func(cfg *Config) {
				cfg.RetryBackoff = 10 * time.Second
				cfg.RetryBackoffMax = time.Second
			},
			wantErr: "retry backoff",
		},
		{
			name: "empty checkpoint file",
			mutate: func(cfg *Config) {
				cfg.CheckpointFile = ""
			},
			wantErr: "checkpoint file",
		},
		{
			name: "zero checkpoint interval",
			mutate: func(cfg *Config) {
				cfg.CheckpointInterval = 0
			},
			wantErr: "checkpoint interval",
		},
		{
			name: "skip ratio above one",
			mutate: func(cfg *Config) {
				cfg.MaxSkipRatio = 1.5
			},
			wantErr: "skip ratio",
		},
		{
			name: "zero skip ratio",
			mutate: func(cfg *Config) {
				cfg.MaxSkipRatio = 0
			},
			wantErr: "skip ratio",
		},
		{
			name: "empty output file",
			mutate: func(cfg *Config) {
				cfg.OutputFile = ""
			},
			wantErr: "output file",
		},
		{
			name: "empty user agent",
			mutate: func(cfg *Config) {
				cfg.UserAgent = ""
			},
			wantErr: "user agent",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate, got %v", err)
	}
}

func TestApplyProfile(t *testing.T) {
	profile := `
base_url: "https://imobiliaria.example.com"
search_paths:
  - "/venda"
  - "/aluguel"
page_param: "p"
delay_ms: 2000
`
	path := filepath.Join(t.TempDir(), "profile.yaml")
	if err := os.WriteFile(path, []byte(profile), 0o644); err != nil {
		t.Fatalf("write profile: %v", err)
	}

	cfg := DefaultConfig()
	originalAgent := cfg.UserAgent
	if err := cfg.ApplyProfile(path); err != nil {
		t.Fatalf("apply profile: %v", err)
	}

	if cfg.BaseURL != "https://imobiliaria.example.com" {
		t.Fatalf("base url = %q", cfg.BaseURL)
	}
	if len(cfg.SearchPaths) != 2 || cfg.SearchPaths[0] != "/venda" {
		t.Fatalf("search paths = %v", cfg.SearchPaths)
	}
	if cfg.PageParam != "p" {
		t.Fatalf("page param = %q", cfg.PageParam)
	}
	if cfg.Delay != 2*time.Second {
		t.Fatalf("delay = %v", cfg.Delay)
	}
	if cfg.UserAgent != originalAgent {
		t.Fatalf("user agent should be untouched by an empty profile field")
	}

	if err := cfg.Validate(); err != nil {
		t.Fatalf("profiled config should validate, got %v", err)
	}
}

func TestApplyProfileMissingFile(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.ApplyProfile(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatalf("expected error for missing profile file")
	}
}

func TestEnvHelpers(t *testing.T) {
	t.Setenv("IMOVELSCAN_TEST_INT", "42")
	value, ok, err := EnvInt("IMOVELSCAN_TEST_INT")
	if err != nil || !ok || value != 42 {
		t.Fatalf("EnvInt = (%d, %v, %v), want (42, true, nil)", value, ok, err)
	}

	t.Setenv("IMOVELSCAN_TEST_INT", "not-a-number")
	if _, _, err := EnvInt("IMOVELSCAN_TEST_INT"); err == nil {
		t.Fatalf("expected error for non-numeric value")
	}

	if _, ok, err := EnvInt("IMOVELSCAN_TEST_UNSET"); ok || err != nil {
		t.Fatalf("unset variable should report not set")
	}

	t.Setenv("IMOVELSCAN_TEST_FLOAT", "0.75")
	ratio, ok, err := EnvFloat("IMOVELSCAN_TEST_FLOAT")
	if err != nil || !ok || ratio != 0.75 {
		t.Fatalf("EnvFloat = (%v, %v, %v), want (0.75, true, nil)", ratio, ok, err)
	}
}
