package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/prodpulse/prodpulse/internal/api/response"
	"github.com/prodpulse/prodpulse/internal/models"
)

// defaultMetricsWindow is used when since/until are not given.
const defaultMetricsWindow = 30 * 24 * time.Hour

// MetricsService computes on-demand metrics snapshots.
type MetricsService interface {
	Snapshot(ctx context.Context, productIDs []uuid.UUID, window models.Window) (*models.MetricsSnapshot, error)
}

// MetricsHandler handles metrics requests.
type MetricsHandler struct {
	service MetricsService
}

// NewMetricsHandler creates a metrics handler.
func NewMetricsHandler(service MetricsService) *MetricsHandler {
	return &MetricsHandler{service: service}
}

// Get handles GET /v1/metrics?product_ids=a,b&since=...&until=...
func (h *MetricsHandler) Get(w http.ResponseWriter, r *http.Request) {
	productIDs, err := parseProductIDs(r.URL.Query().Get("product_ids"))
	if err != nil {
		response.RespondBadRequest(w, err.Error())

		return
	}

	if len(productIDs) == 0 {
		response.RespondBadRequest(w, "product_ids is required")

		return
	}

	window, err := parseWindow(r)
	if err != nil {
		response.RespondBadRequest(w, err.Error())

		return
	}

	snapshot, err := h.service.Snapshot(r.Context(), productIDs, window)
	if err != nil {
		response.RespondInternalServerError(w, "Metrics computation failed")

		return
	}

	response.RespondJSON(w, http.StatusOK, snapshot)
}

func parseProductIDs(raw string) ([]uuid.UUID, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}

	parts := strings.Split(raw, ",")
	ids := make([]uuid.UUID, 0, len(parts))

	for _, part := range parts {
		id, err := uuid.Parse(strings.TrimSpace(part))
		if err != nil {
			return nil, errInvalidProductID
		}

		ids = append(ids, id)
	}

	return ids, nil
}

var (
	errInvalidProductID = errors.New("invalid product id in product_ids")
	errInvalidSince     = errors.New("invalid since timestamp")
	errInvalidUntil     = errors.New("invalid until timestamp")
)

func parseWindow(r *http.Request) (models.Window, error) {
	now := time.Now().UTC()
	window := models.Window{Since: now.Add(-defaultMetricsWindow), Until: now}

	if s := r.URL.Query().Get("since"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return window, errInvalidSince
		}

		window.Since = t
	}

	if s := r.URL.Query().Get("until"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return window, errInvalidUntil
		}

		window.Until = t
	}

	return window, nil
}
