package llm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/kevinmichaelchen/project-summary/internal/config"
	openai "github.com/sashabaranov/go-openai"
)

// Output bounds for every backend.
const (
	MaxSummaryTokens = 200
	MinSummaryTokens = 50

	// seed pins sampling on backends that honor it.
	seed = 42
)

// Summarizer turns aggregate project text into a short summary.
type Summarizer interface {
	Summarize(ctx context.Context, text string) (string, error)
}

var ErrNoChoices = errors.New("no choices returned")

var systemPrompt = fmt.Sprintf(`You are a technical analyst. Given text extracted from a software project (repository metadata, README and source or documentation files), write a single-paragraph summary of what the project does, the technologies it uses and its key features.

The summary must be between %d and %d tokens long. Use only facts present in the text. Return plain prose. No markdown, no lists, no preamble.`, MinSummaryTokens, MaxSummaryTokens)

// Client summarizes through any OpenAI-compatible chat completion API.
type Client struct {
	client *openai.Client
	model  string
}

func NewClient(baseURL, apiKey, model string) *Client {
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = strings.TrimSuffix(baseURL, "/")
	return &Client{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

func (c *Client) Summarize(ctx context.Context, text string) (string, error) {
	s := seed
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
		MaxTokens: MaxSummaryTokens,
		// A zero temperature is dropped by omitempty and the API falls back
		// to its default of 1.
		Temperature: math.SmallestNonzeroFloat32,
		Seed:        &s,
	})
	if err != nil {
		return "", fmt.Errorf("LLM call: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", ErrNoChoices
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// New builds the summarizer selected by cfg.SummarizerBackend.
func New(cfg *config.Config) (Summarizer, error) {
	switch cfg.SummarizerBackend {
	case "", config.BackendOpenAI:
		return NewClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModel), nil
	case config.BackendOllama:
		return NewOllamaClient(cfg.OllamaURL, cfg.OllamaModel)
	default:
		return nil, fmt.Errorf("unknown summarizer backend %q", cfg.SummarizerBackend)
	}
}

// Truncate cuts text to at most maxChars runes. maxChars <= 0 disables it.
func Truncate(text string, maxChars int) string {
	if maxChars <= 0 || utf8.RuneCountInString(text) <= maxChars {
		return text
	}
	n := 0
	for i := range text {
		if n == maxChars {
			return text[:i]
		}
		n++
	}
	return text
}
