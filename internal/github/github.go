package github

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/kevinmichaelchen/project-summary/internal/logging"
	"github.com/kevinmichaelchen/project-summary/internal/models"
)

const (
	DefaultBaseURL = "https://api.github.com"
	DefaultTimeout = 10 * time.Second

	// HostMarker is the substring a submitted link must contain to be
	// treated as a GitHub repository.
	HostMarker = "github.com"
)

// Client is a thin wrapper around the GitHub REST API.
type Client struct {
	token      string
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
	logger     logging.Logger
	converter  *md.Converter
}

type Option func(*Client)

func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimSuffix(u, "/") }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout bounds each outbound request.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

func WithLogger(l logging.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithHTMLToMarkdown converts READMEs written in HTML to markdown.
func WithHTMLToMarkdown(enabled bool) Option {
	return func(c *Client) {
		if enabled {
			c.converter = md.NewConverter("", true, nil)
		} else {
			c.converter = nil
		}
	}
}

func NewClient(token string, opts ...Option) *Client {
	c := &Client{
		token:      token,
		baseURL:    DefaultBaseURL,
		timeout:    DefaultTimeout,
		httpClient: http.DefaultClient,
		logger:     logging.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// IsRepoURL reports whether s looks like a GitHub link at all.
func IsRepoURL(s string) bool {
	return strings.Contains(s, HostMarker)
}

// ParseRepoURL extracts owner and repository name from a GitHub web URL
// such as https://github.com/owner/repo, github.com/owner/repo.git or
// https://github.com/owner/repo/tree/main/docs.
func ParseRepoURL(raw string) (owner, repo string, err error) {
	s := strings.TrimSpace(raw)
	i := strings.Index(s, HostMarker+"/")
	if i < 0 {
		return "", "", fmt.Errorf("%q is not a %s URL", raw, HostMarker)
	}
	if prefix := s[:i]; prefix != "" && !strings.HasSuffix(prefix, "/") && !strings.HasSuffix(prefix, "www.") {
		return "", "", fmt.Errorf("%q is not a %s URL", raw, HostMarker)
	}

	path := s[i+len(HostMarker)+1:]
	if j := strings.IndexAny(path, "?#"); j >= 0 {
		path = path[:j]
	}
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) < 2 {
		return "", "", fmt.Errorf("%q has no owner/repo path", raw)
	}
	owner = parts[0]
	repo = strings.TrimSuffix(parts[1], ".git")
	if owner == "" || repo == "" {
		return "", "", fmt.Errorf("%q has no owner/repo path", raw)
	}
	return owner, repo, nil
}

// FetchDescriptor looks up repository metadata and README for a GitHub
// web URL. Every failure is returned as a *models.Error; a missing or
// undecodable README is not a failure and yields an empty Readme.
func (c *Client) FetchDescriptor(ctx context.Context, repoURL string) (*models.Descriptor, error) {
	if c.token == "" {
		c.logger.Error(ctx, "GitHub token is missing")
		return nil, models.NewError(models.KindMissingCredential, models.SourceGitHub,
			"GitHub token is missing, set GITHUB_TOKEN in the environment or .env file", nil)
	}

	owner, repo, err := ParseRepoURL(repoURL)
	if err != nil {
		return nil, models.NewError(models.KindInvalidURL, models.SourceGitHub,
			"not a GitHub repository URL: "+repoURL, err)
	}

	var meta repoResponse
	if err := c.getJSON(ctx, c.repoEndpoint(owner, repo), &meta); err != nil {
		c.logger.Error(ctx, "GitHub API error", "owner", owner, "repo", repo, "error", err)
		return nil, models.NewError(models.KindUpstream, models.SourceGitHub,
			fmt.Sprintf("error fetching GitHub details: %v", err), err)
	}

	d := &models.Descriptor{
		Owner:    owner,
		Name:     "N/A",
		Language: "Unknown",
	}
	if meta.Name != "" {
		d.Name = meta.Name
	}
	if meta.Language != nil && *meta.Language != "" {
		d.Language = *meta.Language
	}
	d.Readme = c.fetchReadme(ctx, owner, repo)

	c.logger.Info(ctx, "fetched repository", "owner", owner, "repo", repo,
		"language", d.Language, "readme_bytes", len(d.Readme))
	return d, nil
}

// Describe renders a descriptor as the text block handed to the summarizer.
func Describe(d *models.Descriptor) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Project Name: %s\n", d.Name)
	fmt.Fprintf(&b, "Technologies Used: %s\n", d.Language)
	fmt.Fprintf(&b, "README Content: %s\n", d.Readme)
	return b.String()
}

// Fetch is FetchDescriptor followed by Describe.
func (c *Client) Fetch(ctx context.Context, repoURL string) (string, error) {
	d, err := c.FetchDescriptor(ctx, repoURL)
	if err != nil {
		return "", err
	}
	return Describe(d), nil
}

// --- internal ---

type repoResponse struct {
	Name     string  `json:"name"`
	Language *string `json:"language"`
}

type readmeResponse struct {
	Name     string `json:"name"`
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
}

// StatusError is returned for non-2xx API responses.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GitHub API returned %d: %s", e.Code, e.Body)
}

func (c *Client) repoEndpoint(owner, repo string) string {
	return fmt.Sprintf("%s/repos/%s/%s", c.baseURL, url.PathEscape(owner), url.PathEscape(repo))
}

func (c *Client) fetchReadme(ctx context.Context, owner, repo string) string {
	var resp readmeResponse
	err := c.getJSON(ctx, c.repoEndpoint(owner, repo)+"/readme", &resp)
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) && se.Code == http.StatusNotFound {
			c.logger.Debug(ctx, "repository has no README", "owner", owner, "repo", repo)
		} else {
			c.logger.Warn(ctx, "fetching README failed", "owner", owner, "repo", repo, "error", err)
		}
		return ""
	}

	text, err := decodeReadme(resp.Content, resp.Encoding)
	if err != nil {
		c.logger.Warn(ctx, "decoding README failed", "owner", owner, "repo", repo, "error", err)
		return ""
	}

	if c.converter != nil && isHTMLName(resp.Name) {
		converted, err := c.converter.ConvertString(text)
		if err != nil {
			c.logger.Warn(ctx, "converting HTML README failed", "name", resp.Name, "error", err)
			return text
		}
		return converted
	}
	return text
}

// decodeReadme reverses the API's base64 transport encoding. The API wraps
// the payload at 60 columns, so whitespace is dropped before decoding.
func decodeReadme(content, encoding string) (string, error) {
	if encoding != "" && encoding != "base64" {
		return "", fmt.Errorf("unsupported README encoding %q", encoding)
	}
	compact := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, content)

	raw, err := base64.StdEncoding.DecodeString(compact)
	if err != nil {
		return "", fmt.Errorf("base64: %w", err)
	}
	if !utf8.Valid(raw) {
		return "", errors.New("README is not valid UTF-8")
	}
	return string(raw), nil
}

func isHTMLName(name string) bool {
	lower := strings.ToLower(name)
	return strings.HasSuffix(lower, ".html") || strings.HasSuffix(lower, ".htm")
}

func (c *Client) getJSON(ctx context.Context, endpoint string, out any) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Code: resp.StatusCode, Body: excerpt(body, 200)}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}
	return nil
}

func excerpt(b []byte, n int) string {
	s := strings.TrimSpace(string(b))
	if len(s) > n {
		s = s[:n] + "..."
	}
	return s
}
