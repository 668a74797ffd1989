package models

// Result is the outcome of summarizing a submission. Exactly one of
// Summary and Err is meaningful.
type Result struct {
	Summary string `json:"summary"`
	Err     *Error `json:"error,omitempty"`

	// Warnings are extractor failures that did not prevent a summary.
	Warnings []*Error `json:"warnings,omitempty"`
}

func (r Result) OK() bool { return r.Err == nil }

// Text returns the summary, or the user-facing error message if the
// submission failed.
func (r Result) Text() string {
	if r.Err != nil {
		return r.Err.Message
	}
	return r.Summary
}
