// Package searchclient wraps a web-search provider behind a small
// interface with retry, jitter, and circuit-breaking, so discovery
// workers never deal with provider-specific error shapes.
package searchclient

import (
	"context"
)

// Snippet is a single search result, trimmed to what the extractor needs.
type Snippet struct {
	URL     string
	Title   string
	Content string
}

// Searcher is the provider-agnostic search contract.
type Searcher interface {
	Search(ctx context.Context, query string) ([]Snippet, error)
}

// MaxSnippetChars caps how much of a single result's content is kept —
// anything past this is summary noise the extractor prompt doesn't need.
const MaxSnippetChars = 10000

// MaxResultsPerQuery bounds each query's result set.
const MaxResultsPerQuery = 5
