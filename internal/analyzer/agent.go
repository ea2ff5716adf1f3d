package analyzer

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"

	"github.com/agent-api/core"
	"github.com/agent-api/core/agent"
	"github.com/agent-api/core/agent/bootstrap"
	"github.com/agent-api/ollama"
	"github.com/go-logr/logr"

	"classlens/internal/config"
)

// Classifier sends one frame image plus an instruction to the vision model
// and returns its raw reply. The reply is free text; callers parse it
// defensively.
type Classifier interface {
	Classify(ctx context.Context, imagePath, input string) (string, error)
}

// Summarizer sends already-serialized frame records to the summary model
// and returns its raw reply.
type Summarizer interface {
	Summarize(ctx context.Context, input string) (string, error)
}

// VisionAgent wraps an agent-api agent behind the Classifier and Summarizer
// capabilities so the pipeline can be tested with deterministic stubs.
type VisionAgent struct {
	agent *agent.Agent
}

// NewVisionAgent builds an agent against the configured Ollama server using
// the given model and system prompt.
func NewVisionAgent(ctx context.Context, logger *slog.Logger, cfg config.Ollama, modelID, systemPrompt string) (*VisionAgent, error) {
	if err := checkOllama(cfg); err != nil {
		return nil, err
	}

	// agent-api logs through logr; bridge the process slog handler.
	logrLogger := logr.FromSlogHandler(logger.Handler())

	provider := ollama.NewProvider(&ollama.ProviderOpts{
		Logger:  &logrLogger,
		BaseURL: cfg.BaseURL,
		Port:    cfg.Port,
	})
	if err := provider.UseModel(ctx, &core.Model{ID: modelID}); err != nil {
		return nil, fmt.Errorf("select model %s: %w", modelID, err)
	}

	a, err := agent.NewAgent(
		bootstrap.WithProvider(provider),
		bootstrap.WithLogger(&logrLogger),
		bootstrap.WithSystemPrompt(systemPrompt),
	)
	if err != nil {
		return nil, fmt.Errorf("create agent: %w", err)
	}
	return &VisionAgent{agent: a}, nil
}

// Classify implements Classifier.
func (v *VisionAgent) Classify(ctx context.Context, imagePath, input string) (string, error) {
	response, err := v.agent.Run(ctx, agent.WithInput(input), agent.WithImagePath(imagePath))
	if err != nil {
		return "", err
	}
	if len(response.Messages) == 0 {
		return "", fmt.Errorf("no response messages received from model")
	}
	// The last message is the model's reply, not the prompt.
	return response.Messages[len(response.Messages)-1].Content, nil
}

// Summarize implements Summarizer.
func (v *VisionAgent) Summarize(ctx context.Context, input string) (string, error) {
	response, err := v.agent.Run(ctx, agent.WithInput(input))
	if err != nil {
		return "", err
	}
	if len(response.Messages) == 0 {
		return "", fmt.Errorf("no response messages received from model")
	}
	return response.Messages[len(response.Messages)-1].Content, nil
}

// checkOllama verifies the Ollama server is reachable before the pipeline
// commits to a run.
func checkOllama(cfg config.Ollama) error {
	url := fmt.Sprintf("%s:%d/api/tags", cfg.BaseURL, cfg.Port)
	if _, err := exec.Command("curl", "-s", url).Output(); err != nil {
		return fmt.Errorf("ollama not reachable at %s: %w", url, err)
	}
	return nil
}
