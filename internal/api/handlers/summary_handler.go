package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/prodpulse/prodpulse/internal/api/response"
	"github.com/prodpulse/prodpulse/internal/summarize"
)

// SummaryService generates per-product summaries.
type SummaryService interface {
	Summarize(ctx context.Context, productID uuid.UUID) (*summarize.Summary, error)
}

// SummaryHandler handles summary requests.
type SummaryHandler struct {
	service SummaryService
}

// NewSummaryHandler creates a summary handler.
func NewSummaryHandler(service SummaryService) *SummaryHandler {
	return &SummaryHandler{service: service}
}

// Get handles GET /v1/products/{id}/summary.
func (h *SummaryHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		response.RespondBadRequest(w, "Invalid product ID")

		return
	}

	summary, err := h.service.Summarize(r.Context(), id)
	if err != nil {
		if errors.Is(err, summarize.ErrNoTexts) {
			response.RespondNotFound(w, "No classified texts for this product yet")

			return
		}

		response.RespondInternalServerError(w, "Summary generation failed")

		return
	}

	response.RespondJSON(w, http.StatusOK, summary)
}
