package factcheck

import (
	"context"
	"log/slog"
	"strings"

	"veritas/pkg/veritas"
)

const (
	evidenceSeparator = "\n\n---\n\n"
	truncationMarker  = "\n... [truncated]"
)

// EvidenceBundle is the retrieval output for one claim.
type EvidenceBundle struct {
	// Evidence is the joined, capped evidence text. Empty means nothing
	// usable was retrieved.
	Evidence string
	// URLs are the source locations in provider order, duplicates kept.
	URLs []string
}

// Retriever turns one claim into an evidence bundle via web search.
type Retriever struct {
	search veritas.SearchClient
	cfg    Config
	logger *slog.Logger
}

// NewRetriever creates a retriever over the shared search client.
func NewRetriever(search veritas.SearchClient, cfg Config, logger *slog.Logger) *Retriever {
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{search: search, cfg: cfg, logger: logger}
}

// Retrieve searches the web for evidence on claim. It never fails: any
// provider error degrades to an empty bundle so the caller can report
// insufficient evidence instead of an internal error.
func (r *Retriever) Retrieve(ctx context.Context, claim string) EvidenceBundle {
	response, err := r.search.Search(ctx, veritas.SearchRequest{
		Query:         claim,
		Depth:         r.cfg.SearchDepth,
		MaxResults:    r.cfg.SearchMaxResults,
		IncludeAnswer: r.cfg.SearchIncludeAnswer,
	})
	if err != nil {
		r.logger.WarnContext(ctx, "evidence search failed", "error", err)
		return EvidenceBundle{}
	}

	return buildEvidenceBundle(response, r.cfg.MaxEvidenceChars)
}

// buildEvidenceBundle assembles the evidence text from a search response.
// URL collection is independent of content contribution: a result with a URL
// but no content still lists its source.
func buildEvidenceBundle(response veritas.SearchResponse, maxChars int) EvidenceBundle {
	var (
		parts []string
		urls  []string
	)

	if answer := strings.TrimSpace(response.Answer); answer != "" {
		parts = append(parts, "Summary: "+answer)
	}

	for _, result := range response.Results {
		if result.URL != "" {
			urls = append(urls, result.URL)
		}
		if content := strings.TrimSpace(result.Content); content != "" {
			parts = append(parts, content)
		}
	}

	evidence := strings.Join(parts, evidenceSeparator)
	evidence = capEvidence(evidence, maxChars)

	return EvidenceBundle{Evidence: evidence, URLs: urls}
}

// capEvidence truncates evidence to maxChars runes after joining and marks
// the cut. The marker is appended on top of the cap, not counted against it.
func capEvidence(evidence string, maxChars int) string {
	if maxChars <= 0 {
		return evidence
	}
	runes := []rune(evidence)
	if len(runes) <= maxChars {
		return evidence
	}
	return string(runes[:maxChars]) + truncationMarker
}
