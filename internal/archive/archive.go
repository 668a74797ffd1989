// Package archive turns an uploaded ZIP file into text for summarization.
//
// Only entries with a recognized text or source extension are read. Entries
// are read straight from the archive into memory; nothing but the uploaded
// file itself touches the upload directory, and that file is removed before
// Extract returns.
package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/google/uuid"
	"github.com/kevinmichaelchen/project-summary/internal/logging"
	"github.com/kevinmichaelchen/project-summary/internal/models"
	"github.com/klauspost/compress/zip"
)

const DefaultMaxEntryBytes = 1 << 20

// Extensions lists the entry suffixes that are read. Matching is
// case-sensitive.
var Extensions = []string{".txt", ".md", ".py", ".java", ".cpp", ".html", ".css", ".js"}

type Extractor struct {
	dir           string
	maxEntryBytes int64
	converter     *md.Converter
	logger        logging.Logger
}

type Option func(*Extractor)

// WithMaxEntryBytes caps how much of a single entry is read.
func WithMaxEntryBytes(n int64) Option {
	return func(e *Extractor) {
		if n > 0 {
			e.maxEntryBytes = n
		}
	}
}

// WithHTMLToMarkdown renders .html entries as markdown.
func WithHTMLToMarkdown(enabled bool) Option {
	return func(e *Extractor) {
		if enabled {
			e.converter = md.NewConverter("", true, nil)
		} else {
			e.converter = nil
		}
	}
}

func WithLogger(l logging.Logger) Option {
	return func(e *Extractor) { e.logger = l }
}

// NewExtractor creates dir if needed and returns an extractor that uses it
// as scratch space.
func NewExtractor(dir string, opts ...Option) (*Extractor, error) {
	if err := os.MkdirAll(dir, 0o770); err != nil {
		return nil, fmt.Errorf("mkdir %s: %w", dir, err)
	}
	e := &Extractor{
		dir:           dir,
		maxEntryBytes: DefaultMaxEntryBytes,
		logger:        logging.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

func (e *Extractor) Dir() string { return e.dir }

// IsQualifying reports whether an entry name has a recognized extension.
func IsQualifying(name string) bool {
	for _, ext := range Extensions {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}

// Extract returns the concatenated contents of every qualifying non-empty
// entry, each preceded by a header line naming it. If there are none it
// returns models.NoRelevantFiles. Failures are *models.Error values.
func (e *Extractor) Extract(ctx context.Context, name string, r io.Reader) (string, error) {
	entries, err := e.Entries(ctx, name, r)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return models.NoRelevantFiles, nil
	}
	return Render(entries), nil
}

// Render formats entries the way Extract does.
func Render(entries []models.ArchiveEntry) string {
	var b strings.Builder
	for _, ent := range entries {
		fmt.Fprintf(&b, "\n--- %s ---\n%s\n", ent.Path, ent.Content)
	}
	return b.String()
}

// Entries saves r to a uniquely named scratch file, reads every qualifying
// entry from it and removes the scratch file.
func (e *Extractor) Entries(ctx context.Context, name string, r io.Reader) ([]models.ArchiveEntry, error) {
	scratch, err := e.save(r)
	if err != nil {
		e.logger.Error(ctx, "saving upload failed", "upload", name, "error", err)
		return nil, models.NewError(models.KindExtraction, models.SourceArchive,
			fmt.Sprintf("ZIP extraction error: %v", err), err)
	}
	defer func() {
		if err := os.Remove(scratch); err != nil && !errors.Is(err, os.ErrNotExist) {
			e.logger.Warn(ctx, "removing scratch file failed", "path", scratch, "error", err)
		}
	}()

	zr, err := zip.OpenReader(scratch)
	if err != nil {
		e.logger.Error(ctx, "invalid ZIP file uploaded", "upload", name, "error", err)
		return nil, invalidArchive(err)
	}
	defer func() { _ = zr.Close() }()

	var entries []models.ArchiveEntry
	for _, f := range zr.File {
		if err := ctx.Err(); err != nil {
			return nil, models.NewError(models.KindExtraction, models.SourceArchive,
				"ZIP extraction cancelled", err)
		}
		if f.FileInfo().IsDir() || !IsQualifying(f.Name) {
			continue
		}

		content, err := e.readEntry(f)
		if err != nil {
			e.logger.Error(ctx, "reading ZIP entry failed", "upload", name, "entry", f.Name, "error", err)
			if isFormatError(err) {
				return nil, invalidArchive(err)
			}
			return nil, models.NewError(models.KindExtraction, models.SourceArchive,
				fmt.Sprintf("ZIP extraction error: %v", err), err)
		}

		if e.converter != nil && strings.HasSuffix(f.Name, ".html") {
			if converted, err := e.converter.ConvertString(content); err == nil {
				content = strings.TrimSpace(converted)
			} else {
				e.logger.Warn(ctx, "converting HTML entry failed", "entry", f.Name, "error", err)
			}
		}

		if content == "" {
			continue
		}
		entries = append(entries, models.ArchiveEntry{Path: f.Name, Content: content})
	}

	e.logger.Info(ctx, "extracted archive", "upload", name,
		"entries", len(zr.File), "qualifying", len(entries))
	return entries, nil
}

func (e *Extractor) save(r io.Reader) (path string, err error) {
	path = filepath.Join(e.dir, uuid.NewString()+".zip")
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return "", err
	}
	return path, nil
}

// readEntry decodes an entry as UTF-8, dropping invalid byte sequences.
func (e *Extractor) readEntry(f *zip.File) (string, error) {
	rc, err := f.Open()
	if err != nil {
		return "", err
	}
	defer func() { _ = rc.Close() }()

	b, err := io.ReadAll(io.LimitReader(rc, e.maxEntryBytes))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(strings.ToValidUTF8(string(b), "")), nil
}

func isFormatError(err error) bool {
	return errors.Is(err, zip.ErrFormat) || errors.Is(err, zip.ErrChecksum)
}

func invalidArchive(err error) *models.Error {
	return models.NewError(models.KindInvalidArchive, models.SourceArchive,
		"invalid ZIP file, please upload a valid archive", err)
}
