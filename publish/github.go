package publish

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultGitHubAPI = "https://api.github.com"

// GitHub publishes content through the repository contents API,
// creating or updating the file on the configured branch.
type GitHub struct {
	token      string
	repo       string // owner/repo
	branch     string
	baseURL    string
	httpClient *http.Client
}

// GitHubOption configures the publisher.
type GitHubOption func(*GitHub)

// WithGitHubBaseURL overrides the API base URL, mainly for tests and
// GitHub Enterprise.
func WithGitHubBaseURL(u string) GitHubOption {
	return func(g *GitHub) { g.baseURL = strings.TrimRight(u, "/") }
}

// WithGitHubHTTPClient overrides the HTTP client.
func WithGitHubHTTPClient(c *http.Client) GitHubOption {
	return func(g *GitHub) { g.httpClient = c }
}

// NewGitHub creates a publisher for the given repo ("owner/repo").
func NewGitHub(token, repo, branch string, opts ...GitHubOption) (*GitHub, error) {
	if token == "" || repo == "" {
		return nil, fmt.Errorf("github publisher requires a token and a repo")
	}
	g := &GitHub{
		token:      token,
		repo:       repo,
		branch:     branch,
		baseURL:    defaultGitHubAPI,
		httpClient: &http.Client{Timeout: 20 * time.Second},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

type contentsPayload struct {
	Message string `json:"message"`
	Content string `json:"content"`
	Branch  string `json:"branch"`
	SHA     string `json:"sha,omitempty"`
}

type contentsResponse struct {
	Content struct {
		HTMLURL string `json:"html_url"`
		SHA     string `json:"sha"`
	} `json:"content"`
	SHA     string `json:"sha"`
	Message string `json:"message,omitempty"`
}

// Publish creates or updates path on the branch and returns the file's
// HTML URL. An existing file is updated in place via its blob sha.
func (g *GitHub) Publish(ctx context.Context, path, content, message string) (string, error) {
	url := fmt.Sprintf("%s/repos/%s/contents/%s", g.baseURL, g.repo, path)

	sha, err := g.existingSHA(ctx, url)
	if err != nil {
		return "", err
	}

	payload := contentsPayload{
		Message: message,
		Content: base64.StdEncoding.EncodeToString([]byte(content)),
		Branch:  g.branch,
		SHA:     sha,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal contents payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create publish request: %w", err)
	}
	g.setHeaders(req)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("publish request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read publish response: %w", err)
	}
	var parsed contentsResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", fmt.Errorf("decode publish response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		msg := parsed.Message
		if msg == "" {
			msg = strings.TrimSpace(string(data))
		}
		return "", fmt.Errorf("github returned %d: %s", resp.StatusCode, msg)
	}
	return parsed.Content.HTMLURL, nil
}

// existingSHA probes the path on the branch; an absent file returns "".
func (g *GitHub) existingSHA(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url+"?ref="+g.branch, nil)
	if err != nil {
		return "", fmt.Errorf("create sha probe: %w", err)
	}
	g.setHeaders(req)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("sha probe: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", nil
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read sha probe: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("sha probe returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	var parsed contentsResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", fmt.Errorf("decode sha probe: %w", err)
	}
	return parsed.SHA, nil
}

func (g *GitHub) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+g.token)
	req.Header.Set("Accept", "application/vnd.github+json")
}
