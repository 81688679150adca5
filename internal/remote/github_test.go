package remote

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/bilgisen/redflag-cms/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeGitHub serves a tiny subset of the contents API backed by a map.
type fakeGitHub struct {
	mu        sync.Mutex
	files     map[string][]byte
	lastWrite githubWriteRequest
	authToken string
}

func newFakeGitHub(t *testing.T) (*fakeGitHub, *GitHubClient) {
	t.Helper()
	fake := &fakeGitHub{files: map[string][]byte{}, authToken: "secret"}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	client := NewGitHubClient(GitHubConfig{
		Token:          "secret",
		Owner:          "redflag",
		Repo:           "site",
		Branch:         "main",
		APIURL:         srv.URL,
		CommitterName:  "CMS Bot",
		CommitterEmail: "bot@example.com",
	})
	return fake, client
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (f *fakeGitHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") != "Bearer "+f.authToken {
		writeJSON(w, http.StatusUnauthorized, githubError{Message: "Bad credentials"})
		return
	}

	const prefix = "/repos/redflag/site/contents/"
	if !strings.HasPrefix(r.URL.Path, prefix) {
		writeJSON(w, http.StatusNotFound, githubError{Message: "Not Found"})
		return
	}
	p := strings.TrimPrefix(r.URL.Path, prefix)

	f.mu.Lock()
	defer f.mu.Unlock()

	switch r.Method {
	case http.MethodGet:
		if content, ok := f.files[p]; ok {
			if r.Header.Get("Accept") == "application/vnd.github.raw" {
				_, _ = w.Write(content)
				return
			}
			item := githubContent{Type: "file", Name: p[strings.LastIndex(p, "/")+1:], Path: p, SHA: utils.GitBlobSHA(content), Size: int64(len(content))}
			if len(content) > 64 {
				item.Encoding = "none"
			} else {
				item.Encoding = "base64"
				item.Content = base64.StdEncoding.EncodeToString(content)
			}
			writeJSON(w, http.StatusOK, item)
			return
		}
		var items []githubContent
		for name, content := range f.files {
			if strings.HasPrefix(name, p+"/") && !strings.Contains(strings.TrimPrefix(name, p+"/"), "/") {
				items = append(items, githubContent{
					Type:        "file",
					Name:        strings.TrimPrefix(name, p+"/"),
					Path:        name,
					SHA:         utils.GitBlobSHA(content),
					Size:        int64(len(content)),
					DownloadURL: "https://raw.example.com/" + name,
				})
			}
		}
		if items == nil {
			writeJSON(w, http.StatusNotFound, githubError{Message: "Not Found"})
			return
		}
		writeJSON(w, http.StatusOK, items)

	case http.MethodPut:
		var req githubWriteRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.lastWrite = req
		current, exists := f.files[p]
		if exists && req.SHA == "" {
			writeJSON(w, http.StatusUnprocessableEntity, githubError{Message: "Invalid request.\n\n\"sha\" wasn't supplied."})
			return
		}
		if exists && req.SHA != utils.GitBlobSHA(current) {
			writeJSON(w, http.StatusConflict, githubError{Message: p + " does not match " + req.SHA})
			return
		}
		content, _ := base64.StdEncoding.DecodeString(req.Content)
		f.files[p] = content
		status := http.StatusOK
		if !exists {
			status = http.StatusCreated
		}
		var out githubWriteResponse
		out.Content.SHA = utils.GitBlobSHA(content)
		writeJSON(w, status, out)

	case http.MethodDelete:
		var req githubWriteRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.lastWrite = req
		current, exists := f.files[p]
		if !exists {
			writeJSON(w, http.StatusNotFound, githubError{Message: "Not Found"})
			return
		}
		if req.SHA != utils.GitBlobSHA(current) {
			writeJSON(w, http.StatusConflict, githubError{Message: p + " does not match " + req.SHA})
			return
		}
		delete(f.files, p)
		writeJSON(w, http.StatusOK, map[string]interface{}{"commit": map[string]string{"sha": "abc"}})
	}
}

func TestGitHubClient_PutGetRoundTrip(t *testing.T) {
	fake, client := newFakeGitHub(t)
	ctx := context.Background()

	sha, err := client.Put(ctx, "content/blog/a.md", []byte("hello"), "Create a", "")
	require.NoError(t, err)
	assert.Equal(t, utils.GitBlobSHA([]byte("hello")), sha)
	assert.Equal(t, "main", fake.lastWrite.Branch)
	require.NotNil(t, fake.lastWrite.Committer)
	assert.Equal(t, "CMS Bot", fake.lastWrite.Committer.Name)

	file, err := client.Get(ctx, "content/blog/a.md")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), file.Content)
	assert.Equal(t, sha, file.SHA)
}

func TestGitHubClient_GetLargeFileFallsBackToRaw(t *testing.T) {
	fake, client := newFakeGitHub(t)
	big := []byte(strings.Repeat("x", 200))
	fake.files["content/blog/big.md"] = big

	file, err := client.Get(context.Background(), "content/blog/big.md")
	require.NoError(t, err)
	assert.Equal(t, big, file.Content)
}

func TestGitHubClient_ErrorKinds(t *testing.T) {
	fake, client := newFakeGitHub(t)
	ctx := context.Background()
	fake.files["content/blog/a.md"] = []byte("v1")

	_, err := client.Get(ctx, "content/blog/missing.md")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = client.Put(ctx, "content/blog/a.md", []byte("v2"), "create again", "")
	assert.ErrorIs(t, err, ErrConflict)

	_, err = client.Put(ctx, "content/blog/a.md", []byte("v2"), "stale", "deadbeef")
	assert.ErrorIs(t, err, ErrConflict)
	assert.True(t, IsRetryable(err))

	err = client.Delete(ctx, "content/blog/a.md", "deadbeef", "stale delete")
	assert.ErrorIs(t, err, ErrConflict)

	err = client.Delete(ctx, "content/blog/missing.md", "deadbeef", "delete")
	assert.ErrorIs(t, err, ErrNotFound)

	fake.authToken = "rotated"
	_, err = client.Get(ctx, "content/blog/a.md")
	assert.ErrorIs(t, err, ErrAuth)
	assert.False(t, IsRetryable(err))
}

func TestGitHubClient_RateLimitIsTransport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-RateLimit-Remaining", "0")
		writeJSON(w, http.StatusForbidden, githubError{Message: "API rate limit exceeded"})
	}))
	defer srv.Close()

	client := NewGitHubClient(GitHubConfig{Token: "t", Owner: "o", Repo: "r", APIURL: srv.URL})
	_, err := client.Get(context.Background(), "x.md")

	var te *TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, http.StatusForbidden, te.StatusCode)
	assert.True(t, IsRetryable(err))
}

func TestGitHubClient_List(t *testing.T) {
	fake, client := newFakeGitHub(t)
	ctx := context.Background()
	fake.files["public/images/a.png"] = []byte("png")
	fake.files["public/images/b.jpg"] = []byte("jpeg!")

	entries, err := client.List(ctx, "public/images")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	for _, e := range entries {
		assert.NotEmpty(t, e.DownloadURL)
		assert.False(t, e.IsDir)
	}

	_, err = client.List(ctx, "public/missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGitHubClient_DeleteRemovesFile(t *testing.T) {
	fake, client := newFakeGitHub(t)
	ctx := context.Background()
	fake.files["content/blog/a.md"] = []byte("v1")

	err := client.Delete(ctx, "content/blog/a.md", utils.GitBlobSHA([]byte("v1")), "Delete a")
	require.NoError(t, err)
	assert.Equal(t, "Delete a", fake.lastWrite.Message)

	_, err = client.Get(ctx, "content/blog/a.md")
	assert.ErrorIs(t, err, ErrNotFound)
}
