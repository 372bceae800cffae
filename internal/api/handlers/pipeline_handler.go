package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/prodpulse/prodpulse/internal/api/response"
	"github.com/prodpulse/prodpulse/internal/classify"
	"github.com/prodpulse/prodpulse/internal/models"
	"github.com/prodpulse/prodpulse/internal/pulseerrors"
	"github.com/prodpulse/prodpulse/internal/vectorsync"
)

// defaultIngestLookback bounds an ingest trigger without an explicit since.
const defaultIngestLookback = 24 * time.Hour

// Ingestor runs one ingestion pass.
type Ingestor interface {
	Run(ctx context.Context, since time.Time, productHints []string) (models.IngestReport, error)
	Ingest(ctx context.Context, raw []models.RawItem) (models.IngestReport, error)
}

// Classifier runs one classification pass.
type Classifier interface {
	Run(ctx context.Context) (classify.Report, error)
}

// VectorSyncer runs one vector sync pass.
type VectorSyncer interface {
	Run(ctx context.Context) (vectorsync.Report, error)
}

// DriftScanner scans for and repairs ledger/store drift.
type DriftScanner interface {
	Scan(ctx context.Context, from, to uuid.UUID) (models.DriftReport, error)
	Repair(ctx context.Context, findings []models.DriftFinding) (int, error)
}

// Requeuer exposes the ledger's administrative operations.
type Requeuer interface {
	Requeue(ctx context.Context, itemID uuid.UUID) (models.State, error)
	ListFailed(ctx context.Context, limit int) ([]models.ProcessingState, error)
}

// SourceDiscoverer proposes candidate sources (subreddits, channels) for a
// product, keyed by platform.
type SourceDiscoverer interface {
	Discover(ctx context.Context, productName string) (map[string][]string, error)
}

// PipelineHandler exposes the pipeline's trigger and admin operations.
type PipelineHandler struct {
	ingestor   Ingestor
	classifier Classifier
	syncer     VectorSyncer
	scanner    DriftScanner
	requeuer   Requeuer
	discoverer SourceDiscoverer
}

// NewPipelineHandler creates a pipeline handler.
func NewPipelineHandler(
	ingestor Ingestor,
	classifier Classifier,
	syncer VectorSyncer,
	scanner DriftScanner,
	requeuer Requeuer,
	discoverer SourceDiscoverer,
) *PipelineHandler {
	return &PipelineHandler{
		ingestor:   ingestor,
		classifier: classifier,
		syncer:     syncer,
		scanner:    scanner,
		requeuer:   requeuer,
		discoverer: discoverer,
	}
}

// TriggerIngestRequest is the body for POST /v1/pipeline/ingest. When Items
// is set they are ingested directly; otherwise connectors are fetched.
type TriggerIngestRequest struct {
	Since        *time.Time       `json:"since,omitempty"`
	ProductHints []string         `json:"product_hints,omitempty"`
	Items        []models.RawItem `json:"items,omitempty"`
}

// TriggerIngest handles POST /v1/pipeline/ingest.
func (h *PipelineHandler) TriggerIngest(w http.ResponseWriter, r *http.Request) {
	var req TriggerIngestRequest

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(&req); err != nil {
		response.RespondBadRequest(w, "Invalid request body")

		return
	}

	var (
		report models.IngestReport
		err    error
	)

	if len(req.Items) > 0 {
		report, err = h.ingestor.Ingest(r.Context(), req.Items)
	} else {
		since := time.Now().Add(-defaultIngestLookback)
		if req.Since != nil {
			since = *req.Since
		}

		report, err = h.ingestor.Run(r.Context(), since, req.ProductHints)
	}

	if err != nil {
		response.RespondInternalServerError(w, "Ingestion failed")

		return
	}

	response.RespondJSON(w, http.StatusOK, report)
}

// TriggerClassify handles POST /v1/pipeline/classify.
func (h *PipelineHandler) TriggerClassify(w http.ResponseWriter, r *http.Request) {
	report, err := h.classifier.Run(r.Context())
	if err != nil {
		response.RespondInternalServerError(w, "Classification failed")

		return
	}

	response.RespondJSON(w, http.StatusOK, report)
}

// TriggerSync handles POST /v1/pipeline/sync.
func (h *PipelineHandler) TriggerSync(w http.ResponseWriter, r *http.Request) {
	report, err := h.syncer.Run(r.Context())
	if err != nil {
		response.RespondInternalServerError(w, "Vector sync failed")

		return
	}

	response.RespondJSON(w, http.StatusOK, report)
}

// Reconcile handles POST /v1/pipeline/reconcile. The optional from/to query
// parameters bound the external-id range; the default covers all ids.
func (h *PipelineHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	from, to, err := parseIDRange(r)
	if err != nil {
		response.RespondBadRequest(w, err.Error())

		return
	}

	report, err := h.scanner.Scan(r.Context(), from, to)
	if err != nil {
		response.RespondInternalServerError(w, "Reconciliation scan failed")

		return
	}

	response.RespondJSON(w, http.StatusOK, report)
}

// RepairRequest is the body for POST /v1/pipeline/repair: the findings of a
// prior reconciliation scan the operator chose to resolve.
type RepairRequest struct {
	Findings []models.DriftFinding `json:"findings"`
}

// RepairResponse reports how many findings were resolved.
type RepairResponse struct {
	Repaired int `json:"repaired"`
}

// Repair handles POST /v1/pipeline/repair. Repair is never implicit: it only
// acts on findings explicitly submitted by the operator.
func (h *PipelineHandler) Repair(w http.ResponseWriter, r *http.Request) {
	var req RepairRequest

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(&req); err != nil {
		response.RespondBadRequest(w, "Invalid request body")

		return
	}

	if len(req.Findings) == 0 {
		response.RespondBadRequest(w, "findings is required")

		return
	}

	repaired, err := h.scanner.Repair(r.Context(), req.Findings)
	if err != nil {
		response.RespondInternalServerError(w, "Repair failed")

		return
	}

	response.RespondJSON(w, http.StatusOK, RepairResponse{Repaired: repaired})
}

// DiscoverRequest is the body for POST /v1/pipeline/discover.
type DiscoverRequest struct {
	Product string `json:"product"`
}

// DiscoverResponse lists candidate sources per platform.
type DiscoverResponse struct {
	Sources map[string][]string `json:"sources"`
}

// Discover handles POST /v1/pipeline/discover: propose subreddits and
// channels worth watching for a product.
func (h *PipelineHandler) Discover(w http.ResponseWriter, r *http.Request) {
	var req DiscoverRequest

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(&req); err != nil {
		response.RespondBadRequest(w, "Invalid request body")

		return
	}

	product := strings.TrimSpace(req.Product)
	if product == "" {
		response.RespondBadRequest(w, "product is required")

		return
	}

	sources, err := h.discoverer.Discover(r.Context(), product)
	if err != nil {
		response.RespondInternalServerError(w, "Source discovery failed")

		return
	}

	if sources == nil {
		sources = map[string][]string{}
	}

	response.RespondJSON(w, http.StatusOK, DiscoverResponse{Sources: sources})
}

// RequeueResponse reports the state a FAILED item was returned to.
type RequeueResponse struct {
	SourceItemID uuid.UUID    `json:"source_item_id"`
	State        models.State `json:"state"`
}

// Requeue handles POST /v1/items/{id}/requeue.
func (h *PipelineHandler) Requeue(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		response.RespondBadRequest(w, "Invalid item ID")

		return
	}

	state, err := h.requeuer.Requeue(r.Context(), id)
	if err != nil {
		if errors.Is(err, pulseerrors.ErrNotFound) {
			response.RespondNotFound(w, "Item not found or not FAILED")

			return
		}

		response.RespondInternalServerError(w, "Requeue failed")

		return
	}

	response.RespondJSON(w, http.StatusOK, RequeueResponse{SourceItemID: id, State: state})
}

// ListFailed handles GET /v1/items/failed.
func (h *PipelineHandler) ListFailed(w http.ResponseWriter, r *http.Request) {
	limit := parsePositiveInt(r.URL.Query().Get("limit"), 100)

	states, err := h.requeuer.ListFailed(r.Context(), limit)
	if err != nil {
		response.RespondInternalServerError(w, "Listing failed items failed")

		return
	}

	if states == nil {
		states = []models.ProcessingState{}
	}

	response.RespondJSON(w, http.StatusOK, states)
}

func parseIDRange(r *http.Request) (uuid.UUID, uuid.UUID, error) {
	from := uuid.UUID{}

	to := uuid.UUID{}
	for i := range to {
		to[i] = 0xff
	}

	if s := r.URL.Query().Get("from"); s != "" {
		parsed, err := uuid.Parse(s)
		if err != nil {
			return from, to, errors.New("invalid from id")
		}

		from = parsed
	}

	if s := r.URL.Query().Get("to"); s != "" {
		parsed, err := uuid.Parse(s)
		if err != nil {
			return from, to, errors.New("invalid to id")
		}

		to = parsed
	}

	return from, to, nil
}
