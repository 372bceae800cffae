package classify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	openaisdk "github.com/openai/openai-go/v3"

	"github.com/prodpulse/prodpulse/internal/models"
	pulseopenai "github.com/prodpulse/prodpulse/internal/openai"
)

const classifySystemPrompt = `You are a product-feedback sentiment classifier.
For each input text, produce sentiment ("positive", "neutral" or "negative"),
a score in [-1, 1], and aspects mentioned in the text as
{"aspect": <one of the allowed aspects>, "sentiment": <label>} pairs.
Allowed aspects: %s.
Respond with JSON: {"results": [{"sentiment": ..., "score": ..., "aspects": [...]}, ...]},
one result per input text, in input order.`

// ProviderError categorizes a primary-provider failure so the engine can
// decide between retrying and falling back.
type ProviderError struct {
	Reason models.FailReason
	Err    error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("classify provider (%s): %v", e.Reason, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// OpenAIProvider is the primary classification provider, backed by chat
// completions in JSON mode.
type OpenAIProvider struct {
	client *pulseopenai.Client
	model  string
}

// Ensure OpenAIProvider implements Provider.
var _ Provider = (*OpenAIProvider)(nil)

// NewOpenAIProvider creates the primary provider for the given chat model.
func NewOpenAIProvider(client *pulseopenai.Client, model string) *OpenAIProvider {
	return &OpenAIProvider{client: client, model: model}
}

// ModelTag identifies the model recorded on results.
func (p *OpenAIProvider) ModelTag() string {
	return p.model
}

// ClassifyBatch classifies texts in one completion call. A transport or API
// failure returns a *ProviderError; an unusable payload returns
// ErrInvalidResponse. Per-item validation failures are carried in the outcomes.
func (p *OpenAIProvider) ClassifyBatch(ctx context.Context, texts []string) ([]Outcome, error) {
	user, err := json.Marshal(map[string]any{"texts": texts})
	if err != nil {
		return nil, fmt.Errorf("marshal classify request: %w", err)
	}

	system := fmt.Sprintf(classifySystemPrompt, strings.Join(expectedAspects, ", "))

	content, err := p.client.CompleteJSON(ctx, p.model, system, string(user))
	if err != nil {
		return nil, &ProviderError{Reason: failReasonFor(err), Err: err}
	}

	return parseBatchResponse(content, len(texts))
}

// failReasonFor maps an SDK error to a ledger fail reason. HTTP 429 is
// rate_limited; everything else is provider_error.
func failReasonFor(err error) models.FailReason {
	var apiErr *openaisdk.Error
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests {
		return models.FailRateLimited
	}

	return models.FailProviderError
}
