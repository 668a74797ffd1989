package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
)

// OllamaClient summarizes with a model served by a local Ollama daemon.
type OllamaClient struct {
	llm *ollama.LLM
}

func NewOllamaClient(serverURL, model string) (*OllamaClient, error) {
	l, err := ollama.New(ollama.WithModel(model), ollama.WithServerURL(serverURL))
	if err != nil {
		return nil, fmt.Errorf("failed to init ollama: %w", err)
	}
	return &OllamaClient{llm: l}, nil
}

func (o *OllamaClient) Summarize(ctx context.Context, text string) (string, error) {
	prompt := systemPrompt + "\n\nProject text:\n" + text

	res, err := o.llm.Call(ctx, prompt,
		llms.WithMaxTokens(MaxSummaryTokens),
		llms.WithTemperature(0),
		llms.WithSeed(seed),
	)
	if err != nil {
		return "", fmt.Errorf("ollama call: %w", err)
	}
	return strings.TrimSpace(res), nil
}
