// Package classify turns pending source items into classification results.
// The primary provider is an LLM; a deterministic lexicon scorer covers
// provider outages so classification itself never exhausts an item's retry
// budget.
package classify

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/prodpulse/prodpulse/internal/models"
	"github.com/prodpulse/prodpulse/internal/observability"
	"github.com/prodpulse/prodpulse/internal/pulseerrors"
	"github.com/prodpulse/prodpulse/internal/retry"
	"github.com/prodpulse/prodpulse/internal/textutil"
)

// providerBatchSize caps how many texts share one provider round-trip.
const providerBatchSize = 10

const initialVersion = 1

// fallbackModelTag is recorded on lexicon-scored results.
const fallbackModelTag = "lexicon-v1"

// Result is a provider-produced classification before persistence.
type Result struct {
	Sentiment string
	Score     float64
	Aspects   []models.AspectSentiment
}

// Outcome is one item's verdict within a batch provider call: either a
// Result or the error that invalidated that member.
type Outcome struct {
	Result *Result
	Err    error
}

// Provider classifies a batch of texts. The returned slice is index-aligned
// with texts; a non-nil error means the whole batch failed.
type Provider interface {
	ModelTag() string
	ClassifyBatch(ctx context.Context, texts []string) ([]Outcome, error)
}

// Ledger is the slice of the processing ledger the engine needs.
type Ledger interface {
	ClaimBatch(ctx context.Context, state models.State, limit int, claimedBy string, staleness time.Duration) ([]models.SourceItem, error)
	Release(ctx context.Context, itemID uuid.UUID) error
}

// ResultStore persists a classification result and advances the ledger atomically.
type ResultStore interface {
	CreateAndAdvance(ctx context.Context, result *models.ClassificationResult) error
}

// Engine claims PENDING items and classifies them.
type Engine struct {
	ledger    Ledger
	results   ResultStore
	provider  Provider
	fallback  *Lexicon
	policy    retry.Policy
	metrics   *observability.PipelineMetrics
	logger    *slog.Logger
	batchSize int
	staleness time.Duration
}

// NewEngine creates a classification engine.
func NewEngine(
	ledger Ledger,
	results ResultStore,
	provider Provider,
	policy retry.Policy,
	metrics *observability.PipelineMetrics,
	logger *slog.Logger,
	batchSize int,
	staleness time.Duration,
) *Engine {
	return &Engine{
		ledger:    ledger,
		results:   results,
		provider:  provider,
		fallback:  NewLexicon(),
		policy:    policy,
		metrics:   metrics,
		logger:    logger,
		batchSize: batchSize,
		staleness: staleness,
	}
}

// Report summarizes one classification pass.
type Report struct {
	Claimed    int `json:"claimed"`
	Classified int `json:"classified"`
	Fallbacks  int `json:"fallbacks"`
	EmptyText  int `json:"empty_text"`
	Races      int `json:"races"`
	Errors     int `json:"errors"`
}

// Run claims one batch of PENDING items and classifies each. Per-item
// failures never abort the pass; lost claim races are skipped (another
// worker owns the item now).
func (e *Engine) Run(ctx context.Context) (Report, error) {
	workerID := "classify-" + uuid.NewString()

	items, err := e.ledger.ClaimBatch(ctx, models.StatePending, e.batchSize, workerID, e.staleness)
	if err != nil {
		return Report{}, err
	}

	report := Report{Claimed: len(items)}
	if len(items) == 0 {
		return report, nil
	}

	var pending []models.SourceItem

	for _, item := range items {
		if strings.TrimSpace(item.RawText) == "" {
			e.persist(ctx, &report, item, emptyTextResult(), nil, nil)
			report.EmptyText++

			continue
		}

		pending = append(pending, item)
	}

	chunks := textutil.Chunk(pending, providerBatchSize)

	for idx, chunk := range chunks {
		if ctx.Err() != nil {
			for _, rest := range chunks[idx:] {
				e.releaseAll(ctx, rest)
			}

			return report, ctx.Err()
		}

		e.classifyChunk(ctx, &report, chunk)
	}

	e.logger.Info("classification pass complete",
		"claimed", report.Claimed,
		"classified", report.Classified,
		"fallbacks", report.Fallbacks,
		"empty_text", report.EmptyText,
		"races", report.Races,
		"errors", report.Errors,
	)

	return report, nil
}

// classifyChunk sends one chunk to the primary provider and persists the
// outcomes, falling back per item when the provider cannot serve it.
func (e *Engine) classifyChunk(ctx context.Context, report *Report, chunk []models.SourceItem) {
	texts := make([]string, len(chunk))
	for i, item := range chunk {
		texts[i] = textutil.Normalize(item.RawText)
	}

	var outcomes []Outcome

	err := e.policy.Do(ctx, func(ctx context.Context) error {
		out, err := e.provider.ClassifyBatch(ctx, texts)
		if err != nil {
			if errors.Is(err, ErrInvalidResponse) {
				return retry.Permanent(err)
			}

			return err
		}

		outcomes = out

		return nil
	})
	if err != nil {
		e.logger.Warn("primary provider unavailable, batch falls back", "size", len(chunk), "error", err)
		e.metrics.RecordProviderError(ctx, providerErrorKind(err))
	}

	for i, item := range chunk {
		var result Result

		provider := models.ProviderPrimary
		modelTag := e.provider.ModelTag()

		switch {
		case outcomes != nil && outcomes[i].Result != nil:
			result = *outcomes[i].Result
		default:
			if outcomes != nil && outcomes[i].Err != nil {
				e.logger.Warn("provider rejected item, falling back",
					"source_item_id", item.ID, "error", outcomes[i].Err)
				e.metrics.RecordProviderError(ctx, string(models.FailProviderError))
			}

			sentiment, score := e.fallback.Score(texts[i])
			result = Result{Sentiment: sentiment, Score: score}
			provider = models.ProviderFallback
			modelTag = fallbackModelTag
			report.Fallbacks++
		}

		e.persist(ctx, report, item, result, &provider, &modelTag)
	}
}

// persist writes the result and advances the ledger. A StaleStateError means
// another worker already advanced the item; the loser just skips it.
func (e *Engine) persist(
	ctx context.Context,
	report *Report,
	item models.SourceItem,
	result Result,
	provider, modelTag *string,
) {
	record := &models.ClassificationResult{
		ID:           uuid.New(),
		SourceItemID: item.ID,
		Version:      initialVersion,
		Sentiment:    result.Sentiment,
		Score:        result.Score,
		Aspects:      result.Aspects,
		Provider:     provider,
		ModelTag:     modelTag,
		ClassifiedAt: time.Now().UTC(),
	}

	err := e.results.CreateAndAdvance(ctx, record)
	if err != nil {
		var staleErr *pulseerrors.StaleStateError
		if errors.As(err, &staleErr) {
			report.Races++
			return
		}

		report.Errors++

		e.logger.Error("persist classification failed", "source_item_id", item.ID, "error", err)

		if releaseErr := e.ledger.Release(ctx, item.ID); releaseErr != nil {
			e.logger.Error("release claim failed", "source_item_id", item.ID, "error", releaseErr)
		}

		return
	}

	report.Classified++

	label := ""
	if provider != nil {
		label = *provider
	}

	e.metrics.RecordClassified(ctx, label)
}

// releaseAll clears claims on items the pass did not reach.
func (e *Engine) releaseAll(ctx context.Context, items []models.SourceItem) {
	// The pass context may already be cancelled; release with a fresh one.
	releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	for _, item := range items {
		if err := e.ledger.Release(releaseCtx, item.ID); err != nil {
			e.logger.Error("release claim failed", "source_item_id", item.ID, "error", err)
		}
	}
}

// emptyTextResult is the fixed classification for whitespace-only text: no
// provider call, neutral with score 0, null provider.
func emptyTextResult() Result {
	return Result{Sentiment: models.SentimentNeutral, Score: 0}
}

func providerErrorKind(err error) string {
	var provErr *ProviderError
	if errors.As(err, &provErr) {
		return string(provErr.Reason)
	}

	if errors.Is(err, ErrInvalidResponse) {
		return "invalid_response"
	}

	return string(models.FailProviderError)
}
