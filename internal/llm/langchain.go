package llm

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/Lllllllleong/bookflow/internal/config"
)

// langchainGenerator adapts a langchaingo model to the Generator capability.
type langchainGenerator struct {
	llm  llms.Model
	name string
}

func (g *langchainGenerator) Name() string { return g.name }

func (g *langchainGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	response, err := llms.GenerateFromSinglePrompt(ctx, g.llm, prompt)
	if err != nil {
		return "", fmt.Errorf("%s: generate: %w", g.name, err)
	}
	return response, nil
}

// newLangchainGenerator builds a candidate for the openai, anthropic or
// ollama providers.
func newLangchainGenerator(cand config.Candidate, cfg config.Config) (Generator, error) {
	var model llms.Model
	var err error

	switch cand.Provider {
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("OpenAI API key required for candidate %s", cand.Model)
		}
		model, err = openai.New(
			openai.WithToken(cfg.OpenAIAPIKey),
			openai.WithModel(cand.Model),
		)
	case "anthropic":
		if cfg.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("Anthropic API key required for candidate %s", cand.Model)
		}
		model, err = anthropic.New(
			anthropic.WithToken(cfg.AnthropicAPIKey),
			anthropic.WithModel(cand.Model),
		)
	case "ollama":
		model, err = ollama.New(
			ollama.WithModel(cand.Model),
			ollama.WithServerURL(cfg.OllamaHost),
		)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", cand.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s model: %w", cand.Provider, err)
	}

	return &langchainGenerator{
		llm:  model,
		name: cand.Provider + ":" + cand.Model,
	}, nil
}

// NewCandidates builds the ordered fallback list from configuration. The
// returned close func releases the shared Vertex client, if one was needed.
func NewCandidates(ctx context.Context, cfg config.Config) ([]Generator, func() error, error) {
	var vertexClient *VertexClient
	closeFn := func() error { return nil }

	candidates := make([]Generator, 0, len(cfg.Candidates))
	for _, cand := range cfg.Candidates {
		if cand.Provider == "vertex" {
			if vertexClient == nil {
				var err error
				vertexClient, err = NewVertexClient(ctx, cfg.ProjectID, cfg.Region)
				if err != nil {
					return nil, nil, err
				}
				closeFn = vertexClient.Close
			}
			candidates = append(candidates, vertexClient.Generator(cand.Model))
			continue
		}
		gen, err := newLangchainGenerator(cand, cfg)
		if err != nil {
			_ = closeFn()
			return nil, nil, err
		}
		candidates = append(candidates, gen)
	}
	return candidates, closeFn, nil
}
