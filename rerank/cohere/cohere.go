// Package cohere implements rerank.Reranker against the Cohere v2 rerank
// endpoint.
package cohere

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/RuokeZhang/IntelliFlow/rerank"
)

const defaultBaseURL = "https://api.cohere.com/v2"

// Reranker calls the Cohere rerank API.
type Reranker struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

// Option configures the reranker.
type Option func(*Reranker)

// WithBaseURL overrides the API base URL, mainly for tests.
func WithBaseURL(u string) Option {
	return func(r *Reranker) { r.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(r *Reranker) { r.httpClient = c }
}

// New creates a Reranker for the given key and model.
func New(apiKey, model string, opts ...Option) *Reranker {
	r := &Reranker{
		apiKey:     apiKey,
		model:      model,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 20 * time.Second},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type rerankRequest struct {
	Model     string   `json:"model"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	TopN      int      `json:"top_n"`
}

type rerankResponse struct {
	Results []struct {
		Index          int     `json:"index"`
		RelevanceScore float64 `json:"relevance_score"`
	} `json:"results"`
	Message string `json:"message,omitempty"`
}

// Rerank submits the query and documents and returns hits ordered by
// relevance score descending.
func (r *Reranker) Rerank(ctx context.Context, query string, documents []string, topN int) ([]rerank.Ranked, error) {
	body, err := json.Marshal(rerankRequest{
		Model:     r.model,
		Query:     query,
		Documents: documents,
		TopN:      topN,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal rerank request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/rerank", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create rerank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+r.apiKey)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rerank request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read rerank response: %w", err)
	}
	var parsed rerankResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("decode rerank response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := parsed.Message
		if msg == "" {
			msg = strings.TrimSpace(string(data))
		}
		return nil, fmt.Errorf("rerank endpoint returned %d: %s", resp.StatusCode, msg)
	}

	ranked := make([]rerank.Ranked, 0, len(parsed.Results))
	for _, hit := range parsed.Results {
		if hit.Index < 0 || hit.Index >= len(documents) {
			return nil, fmt.Errorf("rerank result references document %d of %d", hit.Index, len(documents))
		}
		ranked = append(ranked, rerank.Ranked{Index: hit.Index, Score: hit.RelevanceScore})
	}
	return ranked, nil
}
