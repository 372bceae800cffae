// Package summarize generates per-product feedback summaries from recent
// classified texts.
package summarize

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/prodpulse/prodpulse/internal/retry"
)

const (
	systemPrompt = `You summarize customer feedback about a product.
Given a list of feedback texts, respond with JSON:
{"overall": <2-3 sentence overall sentiment summary>,
 "delights": [<up to 5 short phrases users praised>],
 "pain_points": [<up to 5 short phrases users complained about>]}.
Base everything strictly on the provided texts.`

	maxListItems = 5
	maxTexts     = 100
)

// ErrNoTexts is returned when the product has no classified texts to summarize.
var ErrNoTexts = errors.New("summarize: no classified texts for product")

// ErrInvalidSummary marks an unusable completion payload.
var ErrInvalidSummary = errors.New("summarize: invalid summary response")

// Summary is the generated per-product digest.
type Summary struct {
	Overall    string   `json:"overall"`
	Delights   []string `json:"delights"`
	PainPoints []string `json:"pain_points"`
}

// Completer runs a JSON-mode chat completion.
type Completer interface {
	CompleteJSON(ctx context.Context, model, system, user string) (string, error)
}

// TextReader lists the newest classified texts for a product.
type TextReader interface {
	ListRecentTexts(ctx context.Context, productID uuid.UUID, limit int) ([]string, error)
}

// Service generates product summaries.
type Service struct {
	completer Completer
	texts     TextReader
	policy    retry.Policy
	model     string
	logger    *slog.Logger
}

// NewService creates a summarize service.
func NewService(completer Completer, texts TextReader, policy retry.Policy, model string, logger *slog.Logger) *Service {
	return &Service{
		completer: completer,
		texts:     texts,
		policy:    policy,
		model:     model,
		logger:    logger,
	}
}

// Summarize builds a summary over the product's most recent classified texts.
func (s *Service) Summarize(ctx context.Context, productID uuid.UUID) (*Summary, error) {
	texts, err := s.texts.ListRecentTexts(ctx, productID, maxTexts)
	if err != nil {
		return nil, fmt.Errorf("list texts: %w", err)
	}

	if len(texts) == 0 {
		return nil, ErrNoTexts
	}

	user, err := json.Marshal(map[string]any{"texts": texts})
	if err != nil {
		return nil, fmt.Errorf("marshal summary request: %w", err)
	}

	var summary *Summary

	err = s.policy.Do(ctx, func(ctx context.Context) error {
		content, completeErr := s.completer.CompleteJSON(ctx, s.model, systemPrompt, string(user))
		if completeErr != nil {
			return completeErr
		}

		parsed, parseErr := parseSummary(content)
		if parseErr != nil {
			// A malformed payload is worth one more attempt: completions
			// are not deterministic.
			return parseErr
		}

		summary = parsed

		return nil
	})
	if err != nil {
		s.logger.Error("summary generation failed", "product_id", productID, "error", err)

		return nil, fmt.Errorf("generate summary: %w", err)
	}

	return summary, nil
}

func parseSummary(content string) (*Summary, error) {
	var summary Summary

	if err := json.Unmarshal([]byte(content), &summary); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSummary, err)
	}

	if strings.TrimSpace(summary.Overall) == "" {
		return nil, fmt.Errorf("%w: empty overall", ErrInvalidSummary)
	}

	summary.Delights = trimList(summary.Delights)
	summary.PainPoints = trimList(summary.PainPoints)

	return &summary, nil
}

func trimList(items []string) []string {
	out := make([]string, 0, len(items))

	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}

		out = append(out, item)

		if len(out) == maxListItems {
			break
		}
	}

	return out
}
