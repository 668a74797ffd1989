package models

import "io"

// Submission is a single request to summarize a project. Either field may
// be empty; an empty submission produces NoDetailsFound.
type Submission struct {
	RepoURL string
	Archive *Upload
}

// Upload is an archive as received from the client.
type Upload struct {
	Name string
	Body io.Reader
}

const (
	NoDetailsFound  = "No project details found."
	NoRelevantFiles = "No relevant files found."
)
