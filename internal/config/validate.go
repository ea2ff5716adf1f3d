package config

import (
	"errors"
	"strings"
)

// Validate ensures the configuration is usable. It is called once at
// startup; any error here is fatal before external calls begin.
func (c *Config) Validate() error {
	if err := c.validateSampling(); err != nil {
		return err
	}
	if err := c.validateModels(); err != nil {
		return err
	}
	if err := c.validatePrompts(); err != nil {
		return err
	}
	if err := c.validateSummarizing(); err != nil {
		return err
	}
	return c.validatePostgres()
}

func (c *Config) validateSampling() error {
	if c.Sampling.FrameInterval <= 0 {
		return errors.New("sampling.frame_interval must be a positive number of seconds")
	}
	if c.Sampling.RequestDelay < 0 {
		return errors.New("sampling.request_delay must not be negative")
	}
	if c.Sampling.Workers < 1 {
		return errors.New("sampling.workers must be at least 1")
	}
	return nil
}

func (c *Config) validateModels() error {
	if strings.TrimSpace(c.Models.Classifier) == "" {
		return errors.New("models.classifier must be set")
	}
	if strings.TrimSpace(c.Models.Summarizer) == "" {
		return errors.New("models.summarizer must be set")
	}
	if strings.TrimSpace(c.Ollama.BaseURL) == "" {
		return errors.New("ollama.base_url must be set")
	}
	if c.Ollama.Port <= 0 || c.Ollama.Port > 65535 {
		return errors.New("ollama.port must be a valid TCP port")
	}
	return nil
}

func (c *Config) validatePrompts() error {
	if strings.TrimSpace(c.Prompts.Classifier) == "" {
		return errors.New("prompts.classifier must not be empty")
	}
	if strings.TrimSpace(c.Prompts.Summarizer) == "" {
		return errors.New("prompts.summarizer must not be empty")
	}
	// prompts.reflection may be empty: that disables the reflection pass.
	return nil
}

func (c *Config) validateSummarizing() error {
	if c.Summarizing.TokenBudget <= 0 {
		return errors.New("summarizing.token_budget must be positive")
	}
	return nil
}

func (c *Config) validatePostgres() error {
	if !c.Postgres.Enabled {
		return nil
	}
	if c.Postgres.Host == "" || c.Postgres.Port == "" {
		return errors.New("postgres.host and postgres.port must be set when postgres is enabled")
	}
	if c.Postgres.User == "" || c.Postgres.Database == "" {
		return errors.New("postgres.user and postgres.database must be set when postgres is enabled")
	}
	return nil
}
