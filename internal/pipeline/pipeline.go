package pipeline

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/kevinmichaelchen/project-summary/internal/github"
	"github.com/kevinmichaelchen/project-summary/internal/llm"
	"github.com/kevinmichaelchen/project-summary/internal/logging"
	"github.com/kevinmichaelchen/project-summary/internal/models"
	"golang.org/x/sync/errgroup"
)

// RepoFetcher is satisfied by *github.Client.
type RepoFetcher interface {
	Fetch(ctx context.Context, repoURL string) (string, error)
}

// ArchiveExtractor is satisfied by *archive.Extractor.
type ArchiveExtractor interface {
	Extract(ctx context.Context, name string, r io.Reader) (string, error)
}

// Observer receives per-request outcomes, e.g. for metrics.
type Observer interface {
	ExtractorFailed(source string, kind models.ErrorKind)
	Summarized(d time.Duration, err error)
}

type nopObserver struct{}

func (nopObserver) ExtractorFailed(string, models.ErrorKind) {}
func (nopObserver) Summarized(time.Duration, error)          {}

type Pipeline struct {
	repos         RepoFetcher
	archives      ArchiveExtractor
	summarizer    llm.Summarizer
	maxInputChars int
	logger        logging.Logger
	observer      Observer
}

type Option func(*Pipeline)

// WithMaxInputChars bounds the text handed to the summarizer.
func WithMaxInputChars(n int) Option {
	return func(p *Pipeline) { p.maxInputChars = n }
}

func WithLogger(l logging.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

func WithObserver(o Observer) Option {
	return func(p *Pipeline) { p.observer = o }
}

func New(repos RepoFetcher, archives ArchiveExtractor, summarizer llm.Summarizer, opts ...Option) *Pipeline {
	p := &Pipeline{
		repos:      repos,
		archives:   archives,
		summarizer: summarizer,
		logger:     logging.Nop(),
		observer:   nopObserver{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Aggregate runs the extractors a submission asks for and concatenates
// their text, repository section first. Failures are returned separately
// in the same order and never appear in the text.
func (p *Pipeline) Aggregate(ctx context.Context, sub models.Submission) (string, []*models.Error) {
	var (
		repoText, archiveText string
		repoErr, archiveErr   error
	)

	var g errgroup.Group
	if sub.RepoURL != "" && github.IsRepoURL(sub.RepoURL) {
		g.Go(func() error {
			repoText, repoErr = p.repos.Fetch(ctx, sub.RepoURL)
			return nil
		})
	}
	if sub.Archive != nil {
		g.Go(func() error {
			archiveText, archiveErr = p.archives.Extract(ctx, sub.Archive.Name, sub.Archive.Body)
			return nil
		})
	}
	_ = g.Wait()

	var failures []*models.Error
	for _, f := range []struct {
		source string
		err    error
	}{
		{models.SourceGitHub, repoErr},
		{models.SourceArchive, archiveErr},
	} {
		if f.err == nil {
			continue
		}
		me := models.AsError(f.err, f.source)
		p.observer.ExtractorFailed(me.Source, me.Kind)
		p.logger.Warn(ctx, "extractor failed", "source", me.Source, "kind", me.Kind, "error", me)
		failures = append(failures, me)
	}

	return repoText + archiveText, failures
}

// Run produces the summary for a submission. It never returns an error;
// failures are reported in the Result.
func (p *Pipeline) Run(ctx context.Context, sub models.Submission) models.Result {
	text, failures := p.Aggregate(ctx, sub)

	if strings.TrimSpace(text) == "" {
		if len(failures) > 0 {
			return models.Result{Err: failures[0], Warnings: failures[1:]}
		}
		return models.Result{Summary: models.NoDetailsFound}
	}

	p.logger.Debug(ctx, "extracted text before summary", "chars", len(text), "text", text)

	input := llm.Truncate(text, p.maxInputChars)
	if len(input) < len(text) {
		p.logger.Info(ctx, "truncated summarizer input", "from", len(text), "to", len(input))
	}

	start := time.Now()
	summary, err := p.summarizer.Summarize(ctx, input)
	p.observer.Summarized(time.Since(start), err)
	if err != nil {
		p.logger.Error(ctx, "AI summary error", "error", err)
		return models.Result{
			Err: models.NewError(models.KindSummarizer, models.SourceSummarizer,
				fmt.Sprintf("AI summary error: %v", err), err),
			Warnings: failures,
		}
	}

	return models.Result{Summary: summary, Warnings: failures}
}
