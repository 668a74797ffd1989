package models

import (
	"errors"
	"fmt"
)

// ErrorKind classifies why a submission could not be summarized.
type ErrorKind string

const (
	KindMissingCredential ErrorKind = "missing_credential"
	KindInvalidURL        ErrorKind = "invalid_url"
	KindUpstream          ErrorKind = "upstream"
	KindInvalidArchive    ErrorKind = "invalid_archive"
	KindExtraction        ErrorKind = "extraction"
	KindSummarizer        ErrorKind = "summarizer"
)

// Sources name the component that failed.
const (
	SourceGitHub     = "github"
	SourceArchive    = "archive"
	SourceSummarizer = "summarizer"
)

// Error is returned by every extraction and summarization boundary.
// Message is safe to show to a user; Err carries the underlying cause.
type Error struct {
	Kind    ErrorKind `json:"kind"`
	Source  string    `json:"source"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

func NewError(kind ErrorKind, source, message string, err error) *Error {
	return &Error{Kind: kind, Source: source, Message: message, Err: err}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Source, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Source, e.Message, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// AsError extracts an *Error from err. Errors of any other type are
// reported as KindExtraction against source.
func AsError(err error, source string) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return NewError(KindExtraction, source, err.Error(), err)
}
