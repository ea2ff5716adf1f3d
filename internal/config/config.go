// Package config loads the pipeline configuration from a TOML file, layered
// over built-in defaults. Validation runs at startup, before ffmpeg or any
// model is invoked.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Sampling controls how frames are pulled from the video and how external
// calls are paced.
type Sampling struct {
	// FrameInterval is the number of seconds between sampled frames.
	FrameInterval int `toml:"frame_interval"`
	// RequestDelay is the minimum number of seconds between classification
	// call initiations. Zero disables throttling.
	RequestDelay int `toml:"request_delay"`
	// Workers bounds concurrent classification calls. 1 means sequential.
	Workers int `toml:"workers"`
}

// Models names the model used for per-frame classification and the one used
// for chunk summaries.
type Models struct {
	Classifier string `toml:"classifier"`
	Summarizer string `toml:"summarizer"`
}

// Ollama holds connection details for the local Ollama server.
type Ollama struct {
	BaseURL string `toml:"base_url"`
	Port    int    `toml:"port"`
}

// Prompts carries the full instruction text for each call type. An empty
// reflection prompt disables the reflection pass.
type Prompts struct {
	Classifier string `toml:"classifier"`
	Reflection string `toml:"reflection"`
	Summarizer string `toml:"summarizer"`
}

// Summarizing controls the chunking of frame records for summary calls.
type Summarizing struct {
	// TokenBudget is the approximate per-call input budget; it already
	// includes slack for the prompt and the reply.
	TokenBudget int `toml:"token_budget"`
}

// Postgres configures optional persistence of runs and frame records.
type Postgres struct {
	Enabled  bool   `toml:"enabled"`
	Host     string `toml:"host"`
	Port     string `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Database string `toml:"database"`
}

// Config is the full, immutable configuration for one pipeline run.
type Config struct {
	Sampling    Sampling    `toml:"sampling"`
	Models      Models      `toml:"models"`
	Ollama      Ollama      `toml:"ollama"`
	Prompts     Prompts     `toml:"prompts"`
	Summarizing Summarizing `toml:"summarizing"`
	Postgres    Postgres    `toml:"postgres"`
}

// SampleConfig returns the annotated sample configuration file, used by
// "classlens config init".
func SampleConfig() string {
	return sampleConfig
}

// DefaultConfigPath returns the conventional config file location.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".config", "classlens", "config.toml"), nil
}

// Load reads the configuration at path, layering it over Default. An empty
// path resolves to DefaultConfigPath. It returns the config, the resolved
// path, and whether a file existed there; a missing file yields the defaults
// rather than an error.
func Load(path string) (*Config, string, bool, error) {
	resolved := path
	if resolved == "" {
		p, err := DefaultConfigPath()
		if err != nil {
			return nil, "", false, err
		}
		resolved = p
	}

	cfg := Default()

	data, err := os.ReadFile(resolved)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnv(cfg)
			return cfg, resolved, false, nil
		}
		return nil, resolved, false, fmt.Errorf("read config %s: %w", resolved, err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, resolved, true, fmt.Errorf("parse config %s: %w", resolved, err)
	}
	applyEnv(cfg)
	return cfg, resolved, true, nil
}

// applyEnv lets deployment-sensitive values override the file.
func applyEnv(cfg *Config) {
	if v := os.Getenv("CLASSLENS_OLLAMA_URL"); v != "" {
		cfg.Ollama.BaseURL = v
	}
	if v := os.Getenv("CLASSLENS_PG_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
}
