package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/prodpulse/prodpulse/internal/api/response"
	"github.com/prodpulse/prodpulse/internal/search"
	"github.com/prodpulse/prodpulse/internal/vectorstore"
)

const maxTopK = 100

// SearchService performs semantic search over synced items.
type SearchService interface {
	Search(ctx context.Context, query string, topK int, productID *uuid.UUID) ([]vectorstore.Hit, error)
}

// SearchHandler handles semantic search requests.
type SearchHandler struct {
	service SearchService
}

// NewSearchHandler creates a search handler.
func NewSearchHandler(service SearchService) *SearchHandler {
	return &SearchHandler{service: service}
}

// SearchRequest is the body for POST /v1/search.
type SearchRequest struct {
	Query     string     `json:"query"`
	TopK      int        `json:"top_k"`
	ProductID *uuid.UUID `json:"product_id,omitempty"`
}

// SearchResponse is the semantic search response.
type SearchResponse struct {
	Results []vectorstore.Hit `json:"results"`
}

// Search handles POST /v1/search.
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(&req); err != nil {
		response.RespondBadRequest(w, "Invalid request body")

		return
	}

	topK := min(req.TopK, maxTopK)

	hits, err := h.service.Search(r.Context(), req.Query, topK, req.ProductID)
	if err != nil {
		if errors.Is(err, search.ErrEmptyQuery) {
			response.RespondBadRequest(w, "query is required and must be non-empty")

			return
		}

		response.RespondInternalServerError(w, "Search failed")

		return
	}

	if hits == nil {
		hits = []vectorstore.Hit{}
	}

	response.RespondJSON(w, http.StatusOK, SearchResponse{Results: hits})
}
