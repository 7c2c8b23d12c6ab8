package factcheck

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"strings"

	"golang.org/x/sync/singleflight"

	"veritas/pkg/veritas"
)

// ErrVerdictGeneration reports a model call that failed after evidence was
// retrieved. Callers translate it into the user-facing failure reply.
var ErrVerdictGeneration = errors.New("verdict generation failed")

const systemPrompt = `You are a professional fact-checking AI.

Analyze the claim using the provided evidence.
Respond strictly in this format:

<b>Verdict:</b> True / False / Misleading / Partially True / Insufficient Evidence
<b>Confidence:</b> 0-100%
<b>Explanation:</b> Short reasoning based only on the evidence.
Do not add extra commentary.`

const insufficientEvidenceVerdict = "<b>Verdict:</b> Insufficient Evidence\n" +
	"<b>Confidence:</b> 0%\n" +
	"<b>Explanation:</b> No reliable sources found."

// Orchestrator runs the full claim pipeline: cache lookup, evidence
// retrieval, model adjudication, and verdict rendering.
type Orchestrator struct {
	cfg       Config
	provider  veritas.LLMProvider
	retriever *Retriever
	cache     *verdictCache
	flights   singleflight.Group
	logger    *slog.Logger
}

// NewOrchestrator wires the pipeline over a resolved provider and retriever.
func NewOrchestrator(cfg Config, provider veritas.LLMProvider, retriever *Retriever, logger *slog.Logger) (*Orchestrator, error) {
	if provider == nil {
		return nil, fmt.Errorf("new factcheck orchestrator: nil provider")
	}
	if retriever == nil {
		return nil, fmt.Errorf("new factcheck orchestrator: nil retriever")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		cfg:       cfg,
		provider:  provider,
		retriever: retriever,
		cache:     newVerdictCache(),
		logger:    logger,
	}, nil
}

// Check adjudicates one claim and returns the rendered verdict text.
// Identical concurrent claims share one flight; a caller whose context ends
// first abandons the flight without waiting for the others.
func (o *Orchestrator) Check(ctx context.Context, claim, userID string) (string, error) {
	if verdict, hit := o.cache.Get(claim); hit {
		return verdict, nil
	}

	results := o.flights.DoChan(claim, func() (any, error) {
		return o.check(ctx, claim, userID)
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case result := <-results:
		if result.Err != nil {
			return "", result.Err
		}
		verdict, ok := result.Val.(string)
		if !ok {
			return "", fmt.Errorf("factcheck check: unexpected flight result %T", result.Val)
		}
		return verdict, nil
	}
}

func (o *Orchestrator) check(ctx context.Context, claim, userID string) (string, error) {
	// A flight that lost the race to a finished duplicate reuses its result.
	if verdict, hit := o.cache.Get(claim); hit {
		return verdict, nil
	}

	bundle := o.retriever.Retrieve(ctx, claim)
	if strings.TrimSpace(bundle.Evidence) == "" {
		// Not cached: evidence may exist on a later attempt.
		return insufficientEvidenceVerdict, nil
	}

	result, err := o.provider.Generate(ctx, veritas.GenerateRequest{
		Model: o.cfg.Model,
		Messages: []veritas.ChatMessage{
			{Role: veritas.ChatRoleSystem, Content: systemPrompt},
			{Role: veritas.ChatRoleUser, Content: buildClaimPrompt(claim, bundle.Evidence)},
		},
		Temperature:     0,
		MaxOutputTokens: 600,
		Metadata:        map[string]string{"user_id": userID},
	})
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		o.logger.ErrorContext(ctx, "verdict generation failed", "error", err)
		return "", fmt.Errorf("%w: %w", ErrVerdictGeneration, err)
	}

	verdict := renderVerdict(result.Text, bundle.URLs)
	o.cache.Put(claim, verdict)

	return verdict, nil
}

func buildClaimPrompt(claim, evidence string) string {
	return fmt.Sprintf("Claim:\n%s\n\nEvidence:\n%s", claim, evidence)
}

// renderVerdict appends the source list to the model verdict. URLs keep
// provider order, duplicates included, and are escaped for markup rendering.
func renderVerdict(verdict string, urls []string) string {
	text := strings.TrimSpace(verdict)
	if len(urls) == 0 {
		return text
	}

	var out strings.Builder
	out.WriteString(text)
	out.WriteString("\n\n<b>Sources:</b>\n")
	for index, url := range urls {
		if index > 0 {
			out.WriteString("\n")
		}
		out.WriteString("• ")
		out.WriteString(html.EscapeString(url))
	}

	return out.String()
}
