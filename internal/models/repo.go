package models

// Descriptor is what the GitHub fetcher learns about a repository.
type Descriptor struct {
	Owner    string `json:"owner"`
	Name     string `json:"name"`
	Language string `json:"language"`
	Readme   string `json:"readme"`
}

// ArchiveEntry is one qualifying file pulled out of an uploaded archive.
type ArchiveEntry struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}
