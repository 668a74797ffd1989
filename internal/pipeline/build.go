package pipeline

import (
	"fmt"

	"github.com/kevinmichaelchen/project-summary/internal/archive"
	"github.com/kevinmichaelchen/project-summary/internal/config"
	"github.com/kevinmichaelchen/project-summary/internal/github"
	"github.com/kevinmichaelchen/project-summary/internal/llm"
	"github.com/kevinmichaelchen/project-summary/internal/logging"
)

// FromConfig wires the GitHub client, archive extractor and summarizer
// described by cfg. The upload directory is created if missing.
func FromConfig(cfg *config.Config, logger logging.Logger, opts ...Option) (*Pipeline, error) {
	gh := github.NewClient(cfg.GitHubToken,
		github.WithBaseURL(cfg.GitHubAPIURL),
		github.WithTimeout(cfg.GitHubTimeout),
		github.WithHTMLToMarkdown(cfg.HTMLToMarkdown),
		github.WithLogger(logger.With("component", "github")),
	)

	ex, err := archive.NewExtractor(cfg.UploadDir,
		archive.WithMaxEntryBytes(cfg.MaxEntryBytes),
		archive.WithHTMLToMarkdown(cfg.HTMLToMarkdown),
		archive.WithLogger(logger.With("component", "archive")),
	)
	if err != nil {
		return nil, fmt.Errorf("upload directory: %w", err)
	}

	sum, err := llm.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("summarizer: %w", err)
	}

	opts = append([]Option{
		WithMaxInputChars(cfg.MaxInputChars),
		WithLogger(logger.With("component", "pipeline")),
	}, opts...)
	return New(gh, ex, sum, opts...), nil
}
