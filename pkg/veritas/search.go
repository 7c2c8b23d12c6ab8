package veritas

import (
	"context"
	"errors"
	"fmt"
)

// ErrSearchFailed wraps web search provider failures.
var ErrSearchFailed = errors.New("search failed")

// SearchDepth selects how thorough a web search should be.
type SearchDepth string

const (
	// SearchDepthBasic is the faster, shallower search mode.
	SearchDepthBasic SearchDepth = "basic"
	// SearchDepthAdvanced is the deeper, slower search mode.
	SearchDepthAdvanced SearchDepth = "advanced"
)

// SearchRequest asks the search provider for evidence on a query.
type SearchRequest struct {
	// Query is the text to search for.
	Query string
	// Depth selects the provider search mode.
	Depth SearchDepth
	// MaxResults caps the number of returned results. Zero means provider
	// default.
	MaxResults int
	// IncludeAnswer asks the provider for a synthesized summary answer.
	IncludeAnswer bool
}

// Validate checks the request before it reaches the provider.
func (r SearchRequest) Validate() error {
	if r.Query == "" {
		return fmt.Errorf("search request: missing query")
	}
	switch r.Depth {
	case "", SearchDepthBasic, SearchDepthAdvanced:
	default:
		return fmt.Errorf("search request: unknown depth %q", r.Depth)
	}
	if r.MaxResults < 0 {
		return fmt.Errorf("search request: max results must not be negative")
	}
	return nil
}

// SearchResult is one retrieved document.
type SearchResult struct {
	// Title is the document title.
	Title string
	// URL is the document location.
	URL string
	// Content is the provider-extracted document snippet.
	Content string
	// Score is the provider relevance score when available.
	Score float64
}

// SearchResponse is the full provider answer for one query.
type SearchResponse struct {
	// Answer is the provider-synthesized summary, when requested.
	Answer string
	// Results are the retrieved documents, most relevant first.
	Results []SearchResult
}

// SearchClient retrieves web evidence for claims.
type SearchClient interface {
	// Search runs one query against the provider.
	Search(ctx context.Context, req SearchRequest) (SearchResponse, error)
}
