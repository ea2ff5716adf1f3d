package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"classlens/internal/config"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if exists {
		t.Fatal("expected no config file in temp HOME")
	}
	if resolved != filepath.Join(tempHome, ".config", "classlens", "config.toml") {
		t.Fatalf("unexpected resolved path: %q", resolved)
	}
	def := config.Default()
	if cfg.Sampling.FrameInterval != def.Sampling.FrameInterval {
		t.Fatalf("frame interval = %d, want default %d", cfg.Sampling.FrameInterval, def.Sampling.FrameInterval)
	}
	if cfg.Models.Classifier != def.Models.Classifier {
		t.Fatalf("classifier model = %q, want default", cfg.Models.Classifier)
	}
	if cfg.Postgres.Enabled {
		t.Fatal("postgres must be disabled by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
}

func TestLoadLayersFileOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[sampling]
frame_interval = 30
workers = 4

[models]
classifier = "llava:13b"

[prompts]
reflection = ""
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to exist")
	}
	if cfg.Sampling.FrameInterval != 30 || cfg.Sampling.Workers != 4 {
		t.Fatalf("sampling overrides not applied: %+v", cfg.Sampling)
	}
	if cfg.Models.Classifier != "llava:13b" {
		t.Fatalf("classifier override not applied: %q", cfg.Models.Classifier)
	}
	if cfg.Models.Summarizer != config.Default().Models.Summarizer {
		t.Fatalf("summarizer should keep default, got %q", cfg.Models.Summarizer)
	}
	if cfg.Prompts.Reflection != "" {
		t.Fatal("empty reflection prompt in file must disable the default")
	}
	if cfg.Prompts.Classifier == "" {
		t.Fatal("classifier prompt should keep default")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("CLASSLENS_OLLAMA_URL", "http://gpu-box")
	t.Setenv("CLASSLENS_PG_PASSWORD", "hunter2")

	cfg, _, _, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Ollama.BaseURL != "http://gpu-box" {
		t.Fatalf("ollama url = %q, want env override", cfg.Ollama.BaseURL)
	}
	if cfg.Postgres.Password != "hunter2" {
		t.Fatalf("postgres password not taken from env")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"zero interval", func(c *config.Config) { c.Sampling.FrameInterval = 0 }, "frame_interval"},
		{"negative interval", func(c *config.Config) { c.Sampling.FrameInterval = -5 }, "frame_interval"},
		{"negative delay", func(c *config.Config) { c.Sampling.RequestDelay = -1 }, "request_delay"},
		{"zero workers", func(c *config.Config) { c.Sampling.Workers = 0 }, "workers"},
		{"missing classifier model", func(c *config.Config) { c.Models.Classifier = " " }, "models.classifier"},
		{"missing summarizer model", func(c *config.Config) { c.Models.Summarizer = "" }, "models.summarizer"},
		{"missing classifier prompt", func(c *config.Config) { c.Prompts.Classifier = "" }, "prompts.classifier"},
		{"missing summarizer prompt", func(c *config.Config) { c.Prompts.Summarizer = "" }, "prompts.summarizer"},
		{"zero token budget", func(c *config.Config) { c.Summarizing.TokenBudget = 0 }, "token_budget"},
		{"bad ollama port", func(c *config.Config) { c.Ollama.Port = 0 }, "ollama.port"},
		{"postgres enabled without database", func(c *config.Config) {
			c.Postgres.Enabled = true
			c.Postgres.User = "classlens"
		}, "postgres"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestValidateAllowsEmptyReflectionPrompt(t *testing.T) {
	cfg := config.Default()
	cfg.Prompts.Reflection = ""
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty reflection prompt must be valid (disables the pass): %v", err)
	}
}

func TestSampleConfigMatchesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(config.SampleConfig()), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("sample config must parse: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("sample config must validate: %v", err)
	}
	def := config.Default()
	if cfg.Sampling != def.Sampling || cfg.Models != def.Models || cfg.Summarizing != def.Summarizing {
		t.Fatalf("sample config drifted from defaults:\n got %+v %+v %+v", cfg.Sampling, cfg.Models, cfg.Summarizing)
	}
}
