package remote

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-resty/resty/v2"
)

const defaultGitHubAPI = "https://api.github.com"

// GitHubConfig holds what the contents API adapter needs. The token is the
// process-wide credential for the repository.
type GitHubConfig struct {
	Token          string
	Owner          string
	Repo           string
	Branch         string
	APIURL         string
	CommitterName  string
	CommitterEmail string
}

// GitHubClient implements Tree on top of the GitHub repository contents API.
// Requests are never retried here; a failed write may be retried by the
// caller after re-reading the marker.
type GitHubClient struct {
	client *resty.Client
	cfg    GitHubConfig
}

type githubContent struct {
	Type        string `json:"type"`
	Encoding    string `json:"encoding"`
	Name        string `json:"name"`
	Path        string `json:"path"`
	SHA         string `json:"sha"`
	Size        int64  `json:"size"`
	Content     string `json:"content"`
	DownloadURL string `json:"download_url"`
}

type githubCommitter struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type githubWriteRequest struct {
	Message   string           `json:"message"`
	Content   string           `json:"content,omitempty"`
	SHA       string           `json:"sha,omitempty"`
	Branch    string           `json:"branch,omitempty"`
	Committer *githubCommitter `json:"committer,omitempty"`
}

type githubWriteResponse struct {
	Content struct {
		SHA string `json:"sha"`
	} `json:"content"`
}

type githubError struct {
	Message string `json:"message"`
}

func NewGitHubClient(cfg GitHubConfig) *GitHubClient {
	if cfg.APIURL == "" {
		cfg.APIURL = defaultGitHubAPI
	}
	client := resty.New().
		SetBaseURL(strings.TrimSuffix(cfg.APIURL, "/")).
		SetHeader("Accept", "application/vnd.github+json").
		SetHeader("X-GitHub-Api-Version", "2022-11-28").
		SetAuthToken(cfg.Token)

	return &GitHubClient{client: client, cfg: cfg}
}

func (g *GitHubClient) contentsURL(p string) string {
	segments := strings.Split(cleanPath(p), "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return fmt.Sprintf("/repos/%s/%s/contents/%s",
		url.PathEscape(g.cfg.Owner), url.PathEscape(g.cfg.Repo), strings.Join(segments, "/"))
}

func (g *GitHubClient) committer() *githubCommitter {
	if g.cfg.CommitterName == "" || g.cfg.CommitterEmail == "" {
		return nil
	}
	return &githubCommitter{Name: g.cfg.CommitterName, Email: g.cfg.CommitterEmail}
}

func (g *GitHubClient) request(ctx context.Context) *resty.Request {
	req := g.client.R().SetContext(ctx)
	if g.cfg.Branch != "" {
		req.SetQueryParam("ref", g.cfg.Branch)
	}
	return req
}

func (g *GitHubClient) Get(ctx context.Context, p string) (*File, error) {
	resp, err := g.request(ctx).Get(g.contentsURL(p))
	if err != nil {
		return nil, transportFailure(ctx, "get "+p, err)
	}
	if resp.IsError() {
		return nil, classify(resp, "get "+p)
	}

	body := resp.Body()
	if len(body) > 0 && body[0] == '[' {
		return nil, fmt.Errorf("get %s: path is a directory: %w", p, ErrNotFound)
	}

	var item githubContent
	if err := json.Unmarshal(body, &item); err != nil {
		return nil, &TransportError{StatusCode: resp.StatusCode(), Message: "decode contents response", Err: err}
	}
	if item.Type != "" && item.Type != "file" {
		return nil, fmt.Errorf("get %s: path is a %s: %w", p, item.Type, ErrNotFound)
	}

	var content []byte
	switch item.Encoding {
	case "base64":
		content, err = base64.StdEncoding.DecodeString(strings.ReplaceAll(item.Content, "\n", ""))
		if err != nil {
			return nil, &TransportError{StatusCode: resp.StatusCode(), Message: "decode base64 content", Err: err}
		}
	case "none", "":
		// Files above the inline size limit come back without content.
		content, err = g.getRaw(ctx, p)
		if err != nil {
			return nil, err
		}
	default:
		return nil, &TransportError{StatusCode: resp.StatusCode(), Message: "unsupported encoding " + item.Encoding}
	}

	return &File{Path: item.Path, Content: content, SHA: item.SHA}, nil
}

func (g *GitHubClient) getRaw(ctx context.Context, p string) ([]byte, error) {
	resp, err := g.request(ctx).
		SetHeader("Accept", "application/vnd.github.raw").
		Get(g.contentsURL(p))
	if err != nil {
		return nil, transportFailure(ctx, "get raw "+p, err)
	}
	if resp.IsError() {
		return nil, classify(resp, "get raw "+p)
	}
	return resp.Body(), nil
}

func (g *GitHubClient) Put(ctx context.Context, p string, content []byte, message, sha string) (string, error) {
	body := githubWriteRequest{
		Message:   message,
		Content:   base64.StdEncoding.EncodeToString(content),
		SHA:       sha,
		Branch:    g.cfg.Branch,
		Committer: g.committer(),
	}

	resp, err := g.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Put(g.contentsURL(p))
	if err != nil {
		return "", transportFailure(ctx, "put "+p, err)
	}
	if resp.IsError() {
		return "", classify(resp, "put "+p)
	}

	var out githubWriteResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return "", &TransportError{StatusCode: resp.StatusCode(), Message: "decode write response", Err: err}
	}
	return out.Content.SHA, nil
}

func (g *GitHubClient) Delete(ctx context.Context, p, sha, message string) error {
	body := githubWriteRequest{
		Message:   message,
		SHA:       sha,
		Branch:    g.cfg.Branch,
		Committer: g.committer(),
	}

	resp, err := g.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Delete(g.contentsURL(p))
	if err != nil {
		return transportFailure(ctx, "delete "+p, err)
	}
	if resp.IsError() {
		return classify(resp, "delete "+p)
	}
	return nil
}

func (g *GitHubClient) List(ctx context.Context, dir string) ([]Entry, error) {
	resp, err := g.request(ctx).Get(g.contentsURL(dir))
	if err != nil {
		return nil, transportFailure(ctx, "list "+dir, err)
	}
	if resp.IsError() {
		return nil, classify(resp, "list "+dir)
	}

	body := resp.Body()
	if len(body) == 0 || body[0] != '[' {
		return nil, fmt.Errorf("list %s: path is not a directory: %w", dir, ErrNotFound)
	}

	var items []githubContent
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, &TransportError{StatusCode: resp.StatusCode(), Message: "decode directory listing", Err: err}
	}

	entries := make([]Entry, 0, len(items))
	for _, item := range items {
		entries = append(entries, Entry{
			Name:        item.Name,
			Path:        item.Path,
			SHA:         item.SHA,
			Size:        item.Size,
			DownloadURL: item.DownloadURL,
			IsDir:       item.Type == "dir",
		})
	}
	return entries, nil
}

func transportFailure(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%s: %w", op, ctxErr)
	}
	return &TransportError{Message: op + ": " + err.Error(), Err: err}
}

// classify maps a GitHub error response onto the error kinds callers
// branch on.
func classify(resp *resty.Response, op string) error {
	var apiErr githubError
	_ = json.Unmarshal(resp.Body(), &apiErr)
	msg := apiErr.Message
	if msg == "" {
		msg = http.StatusText(resp.StatusCode())
	}

	switch code := resp.StatusCode(); {
	case code == http.StatusUnauthorized:
		return fmt.Errorf("%s: %s: %w", op, msg, ErrAuth)
	case code == http.StatusForbidden && !isRateLimited(resp, msg):
		return fmt.Errorf("%s: %s: %w", op, msg, ErrAuth)
	case code == http.StatusNotFound:
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	case code == http.StatusConflict:
		return fmt.Errorf("%s: %s: %w", op, msg, ErrConflict)
	case code == http.StatusUnprocessableEntity && strings.Contains(msg, "sha"):
		return fmt.Errorf("%s: %s: %w", op, msg, ErrConflict)
	default:
		return &TransportError{StatusCode: code, Message: op + ": " + msg}
	}
}

func isRateLimited(resp *resty.Response, msg string) bool {
	return resp.Header().Get("X-RateLimit-Remaining") == "0" ||
		strings.Contains(strings.ToLower(msg), "rate limit")
}
