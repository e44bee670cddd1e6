package searchclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/oauth2/clientcredentials"
)

// HTTPSearcher talks to a JSON search API over HTTP. It is the
// production Searcher; providers needing OAuth2 client-credential
// auth (rather than a static API key) are built with
// NewOAuthHTTPSearcher.
type HTTPSearcher struct {
	BaseURL    string
	APIKey     string
	httpClient *http.Client
}

// NewHTTPSearcher builds a searcher authenticated with a static API key.
func NewHTTPSearcher(baseURL, apiKey string) *HTTPSearcher {
	return &HTTPSearcher{BaseURL: baseURL, APIKey: apiKey, httpClient: http.DefaultClient}
}

// NewOAuthHTTPSearcher builds a searcher authenticated via OAuth2
// client-credentials — some enterprise search providers (e.g. a
// state-procurement data API) issue bearer tokens instead of static
// keys, and golang.org/x/oauth2's clientcredentials.Config handles the
// token refresh transparently through the returned *http.Client.
func NewOAuthHTTPSearcher(ctx context.Context, baseURL string, cfg clientcredentials.Config) *HTTPSearcher {
	client := cfg.Client(ctx)
	return &HTTPSearcher{BaseURL: baseURL, httpClient: client}
}

type searchRequest struct {
	Query        string `json:"query"`
	Type         string `json:"type"`
	NumResults   int    `json:"num_results"`
	MaxCharacters int   `json:"max_characters"`
}

type searchResponse struct {
	Results []struct {
		URL   string `json:"url"`
		Title string `json:"title"`
		Text  string `json:"text"`
	} `json:"results"`
}

func (s *HTTPSearcher) Search(ctx context.Context, query string) ([]Snippet, error) {
	body, err := json.Marshal(searchRequest{
		Query:         query,
		Type:          "auto",
		NumResults:    MaxResultsPerQuery,
		MaxCharacters: MaxSnippetChars,
	})
	if err != nil {
		return nil, fmt.Errorf("encode search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.BaseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.APIKey)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, &ProviderError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &ProviderError{StatusCode: resp.StatusCode, Body: string(payload)}
	}

	var out searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	snippets := make([]Snippet, 0, len(out.Results))
	for _, r := range out.Results {
		snippets = append(snippets, Snippet{URL: r.URL, Title: r.Title, Content: r.Text})
	}
	return snippets, nil
}
