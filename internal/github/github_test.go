package github

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kevinmichaelchen/project-summary/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAPI serves /repos/{owner}/{repo} and its /readme sub-resource.
type fakeAPI struct {
	hits        atomic.Int64
	repoStatus  int
	repoBody    string
	readmeCode  int
	readmeBody  string
	gotAuth     atomic.Value
	delayRepoBy time.Duration
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.hits.Add(1)
	f.gotAuth.Store(r.Header.Get("Authorization"))
	w.Header().Set("Content-Type", "application/json")

	switch {
	case strings.HasSuffix(r.URL.Path, "/readme"):
		w.WriteHeader(f.readmeCode)
		_, _ = w.Write([]byte(f.readmeBody))
	case strings.HasPrefix(r.URL.Path, "/repos/"):
		if f.delayRepoBy > 0 {
			select {
			case <-time.After(f.delayRepoBy):
			case <-r.Context().Done():
				return
			}
		}
		w.WriteHeader(f.repoStatus)
		_, _ = w.Write([]byte(f.repoBody))
	default:
		http.NotFound(w, r)
	}
}

func readmeJSON(t *testing.T, text string) string {
	t.Helper()
	enc := base64.StdEncoding.EncodeToString([]byte(text))
	// the API wraps base64 at 60 columns
	var wrapped strings.Builder
	for len(enc) > 60 {
		wrapped.WriteString(enc[:60] + "\n")
		enc = enc[60:]
	}
	wrapped.WriteString(enc)
	b, err := json.Marshal(map[string]string{
		"name":     "README.md",
		"content":  wrapped.String(),
		"encoding": "base64",
	})
	require.NoError(t, err)
	return string(b)
}

func newFake(t *testing.T, api *fakeAPI) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	return NewClient("tok", WithBaseURL(srv.URL)), srv
}

func TestFetchDescriptor_Success(t *testing.T) {
	readme := strings.Repeat("A tool that watches stars. ", 10)
	api := &fakeAPI{
		repoStatus: http.StatusOK,
		repoBody:   `{"name":"hello","language":"Go"}`,
		readmeCode: http.StatusOK,
		readmeBody: readmeJSON(t, readme),
	}
	c, _ := newFake(t, api)

	d, err := c.FetchDescriptor(context.Background(), "https://github.com/octo/hello")
	require.NoError(t, err)

	assert.Equal(t, "octo", d.Owner)
	assert.Equal(t, "hello", d.Name)
	assert.Equal(t, "Go", d.Language)
	assert.Equal(t, readme, d.Readme)
	assert.Equal(t, int64(2), api.hits.Load())
	assert.Equal(t, "Bearer tok", api.gotAuth.Load())
}

func TestFetchDescriptor_Defaults(t *testing.T) {
	api := &fakeAPI{
		repoStatus: http.StatusOK,
		repoBody:   `{"language":null}`,
		readmeCode: http.StatusNotFound,
		readmeBody: `{"message":"Not Found"}`,
	}
	c, _ := newFake(t, api)

	d, err := c.FetchDescriptor(context.Background(), "https://github.com/octo/empty")
	require.NoError(t, err)

	assert.Equal(t, "N/A", d.Name)
	assert.Equal(t, "Unknown", d.Language)
	assert.Empty(t, d.Readme)
}

func TestFetchDescriptor_MissingTokenMakesNoCalls(t *testing.T) {
	api := &fakeAPI{repoStatus: http.StatusOK, repoBody: `{}`}
	srv := httptest.NewServer(api)
	defer srv.Close()

	c := NewClient("", WithBaseURL(srv.URL))

	for i := 0; i < 3; i++ {
		d, err := c.FetchDescriptor(context.Background(), "https://github.com/octo/hello")
		require.Nil(t, d)

		var me *models.Error
		require.True(t, errors.As(err, &me))
		assert.Equal(t, models.KindMissingCredential, me.Kind)
		assert.Contains(t, me.Message, "token is missing")
	}
	assert.Zero(t, api.hits.Load())
}

func TestFetchDescriptor_Non2xxIsUpstreamError(t *testing.T) {
	api := &fakeAPI{repoStatus: http.StatusForbidden, repoBody: `{"message":"rate limited"}`}
	c, _ := newFake(t, api)

	_, err := c.FetchDescriptor(context.Background(), "https://github.com/octo/hello")

	var me *models.Error
	require.True(t, errors.As(err, &me))
	assert.Equal(t, models.KindUpstream, me.Kind)
	assert.Equal(t, models.SourceGitHub, me.Source)
	assert.Contains(t, me.Message, "403")

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusForbidden, se.Code)
}

func TestFetchDescriptor_Timeout(t *testing.T) {
	api := &fakeAPI{repoStatus: http.StatusOK, repoBody: `{}`, delayRepoBy: time.Second}
	srv := httptest.NewServer(api)
	defer srv.Close()
	c := NewClient("tok", WithBaseURL(srv.URL), WithTimeout(20*time.Millisecond))

	_, err := c.FetchDescriptor(context.Background(), "https://github.com/octo/slow")

	var me *models.Error
	require.True(t, errors.As(err, &me))
	assert.Equal(t, models.KindUpstream, me.Kind)
}

func TestFetchDescriptor_InvalidURL(t *testing.T) {
	c := NewClient("tok", WithBaseURL("http://127.0.0.1:0"))

	_, err := c.FetchDescriptor(context.Background(), "https://github.com/only-owner")

	var me *models.Error
	require.True(t, errors.As(err, &me))
	assert.Equal(t, models.KindInvalidURL, me.Kind)
}

func TestFetchDescriptor_BadReadmeDegradesToEmpty(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not base64", `{"content":"!!!not base64!!!","encoding":"base64"}`},
		{"not utf8", `{"content":"` + base64.StdEncoding.EncodeToString([]byte{0xff, 0xfe, 0xfd}) + `","encoding":"base64"}`},
		{"unknown encoding", `{"content":"abc","encoding":"rot13"}`},
		{"bad json", `{`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &fakeAPI{
				repoStatus: http.StatusOK,
				repoBody:   `{"name":"hello","language":"Go"}`,
				readmeCode: http.StatusOK,
				readmeBody: tt.body,
			}
			c, _ := newFake(t, api)

			d, err := c.FetchDescriptor(context.Background(), "https://github.com/octo/hello")
			require.NoError(t, err)
			assert.Equal(t, "hello", d.Name)
			assert.Empty(t, d.Readme)
		})
	}
}

func TestFetchDescriptor_HTMLReadmeConverted(t *testing.T) {
	body, err := json.Marshal(map[string]string{
		"name":     "README.html",
		"content":  base64.StdEncoding.EncodeToString([]byte("<h1>Title</h1><p>Body text</p>")),
		"encoding": "base64",
	})
	require.NoError(t, err)
	api := &fakeAPI{
		repoStatus: http.StatusOK,
		repoBody:   `{"name":"site"}`,
		readmeCode: http.StatusOK,
		readmeBody: string(body),
	}
	srv := httptest.NewServer(api)
	defer srv.Close()
	c := NewClient("tok", WithBaseURL(srv.URL), WithHTMLToMarkdown(true))

	d, err := c.FetchDescriptor(context.Background(), "https://github.com/octo/site")
	require.NoError(t, err)

	assert.Contains(t, d.Readme, "Title")
	assert.Contains(t, d.Readme, "Body text")
	assert.NotContains(t, d.Readme, "<h1>")
}

func TestFetch_RendersThreeLines(t *testing.T) {
	api := &fakeAPI{
		repoStatus: http.StatusOK,
		repoBody:   `{"name":"hello","language":"Go"}`,
		readmeCode: http.StatusOK,
		readmeBody: readmeJSON(t, "Hi there"),
	}
	c, _ := newFake(t, api)

	text, err := c.Fetch(context.Background(), "github.com/octo/hello.git")
	require.NoError(t, err)

	assert.Equal(t, "Project Name: hello\nTechnologies Used: Go\nREADME Content: Hi there\n", text)
}

func TestParseRepoURL(t *testing.T) {
	tests := []struct {
		in          string
		owner, repo string
		wantErr     bool
	}{
		{in: "https://github.com/octo/hello", owner: "octo", repo: "hello"},
		{in: "http://github.com/octo/hello/", owner: "octo", repo: "hello"},
		{in: "https://www.github.com/octo/hello.git", owner: "octo", repo: "hello"},
		{in: "github.com/octo/hello", owner: "octo", repo: "hello"},
		{in: "https://github.com/octo/hello/tree/main/docs", owner: "octo", repo: "hello"},
		{in: "https://github.com/octo/hello?tab=readme#top", owner: "octo", repo: "hello"},
		{in: "  https://github.com/octo/hello  ", owner: "octo", repo: "hello"},
		{in: "https://github.com/octo", wantErr: true},
		{in: "https://github.com/", wantErr: true},
		{in: "https://gitlab.com/octo/hello", wantErr: true},
		{in: "https://notgithub.com/octo/hello", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			owner, repo, err := ParseRepoURL(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.owner, owner)
			assert.Equal(t, tt.repo, repo)
		})
	}
}

func TestIsRepoURL(t *testing.T) {
	assert.True(t, IsRepoURL("https://github.com/octo/hello"))
	assert.False(t, IsRepoURL("https://example.com/octo/hello"))
	assert.False(t, IsRepoURL(""))
}
