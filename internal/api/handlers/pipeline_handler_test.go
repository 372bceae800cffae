package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prodpulse/prodpulse/internal/classify"
	"github.com/prodpulse/prodpulse/internal/models"
	"github.com/prodpulse/prodpulse/internal/pulseerrors"
	"github.com/prodpulse/prodpulse/internal/vectorsync"
)

type mockIngestor struct {
	runFunc    func(ctx context.Context, since time.Time, productHints []string) (models.IngestReport, error)
	ingestFunc func(ctx context.Context, raw []models.RawItem) (models.IngestReport, error)
}

func (m *mockIngestor) Run(ctx context.Context, since time.Time, productHints []string) (models.IngestReport, error) {
	return m.runFunc(ctx, since, productHints)
}

func (m *mockIngestor) Ingest(ctx context.Context, raw []models.RawItem) (models.IngestReport, error) {
	return m.ingestFunc(ctx, raw)
}

type mockClassifier struct {
	runFunc func(ctx context.Context) (classify.Report, error)
}

func (m *mockClassifier) Run(ctx context.Context) (classify.Report, error) {
	return m.runFunc(ctx)
}

type mockVectorSyncer struct {
	runFunc func(ctx context.Context) (vectorsync.Report, error)
}

func (m *mockVectorSyncer) Run(ctx context.Context) (vectorsync.Report, error) {
	return m.runFunc(ctx)
}

type mockDriftScanner struct {
	scanFunc   func(ctx context.Context, from, to uuid.UUID) (models.DriftReport, error)
	repairFunc func(ctx context.Context, findings []models.DriftFinding) (int, error)
}

func (m *mockDriftScanner) Scan(ctx context.Context, from, to uuid.UUID) (models.DriftReport, error) {
	return m.scanFunc(ctx, from, to)
}

func (m *mockDriftScanner) Repair(ctx context.Context, findings []models.DriftFinding) (int, error) {
	return m.repairFunc(ctx, findings)
}

type mockRequeuer struct {
	requeueFunc    func(ctx context.Context, itemID uuid.UUID) (models.State, error)
	listFailedFunc func(ctx context.Context, limit int) ([]models.ProcessingState, error)
}

func (m *mockRequeuer) Requeue(ctx context.Context, itemID uuid.UUID) (models.State, error) {
	return m.requeueFunc(ctx, itemID)
}

func (m *mockRequeuer) ListFailed(ctx context.Context, limit int) ([]models.ProcessingState, error) {
	return m.listFailedFunc(ctx, limit)
}

func TestPipelineHandler_TriggerIngest(t *testing.T) {
	t.Run("direct items skip the connectors", func(t *testing.T) {
		ingestor := &mockIngestor{
			ingestFunc: func(_ context.Context, raw []models.RawItem) (models.IngestReport, error) {
				require.Len(t, raw, 1)

				return models.IngestReport{Inserted: 1}, nil
			},
			runFunc: func(_ context.Context, _ time.Time, _ []string) (models.IngestReport, error) {
				t.Fatal("connector run should not be called when items are provided")

				return models.IngestReport{}, nil
			},
		}
		handler := NewPipelineHandler(ingestor, nil, nil, nil, nil, nil)

		body, err := json.Marshal(TriggerIngestRequest{
			Items: []models.RawItem{{Platform: "reddit", NativeID: "t3_x", Text: "hi", CreatedAt: time.Now()}},
		})
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodPost, "/v1/pipeline/ingest", bytes.NewReader(body))
		rec := httptest.NewRecorder()

		handler.TriggerIngest(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)

		var report models.IngestReport
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
		assert.Equal(t, 1, report.Inserted)
	})

	t.Run("no items runs the connectors with a default lookback", func(t *testing.T) {
		var gotSince time.Time

		ingestor := &mockIngestor{
			runFunc: func(_ context.Context, since time.Time, hints []string) (models.IngestReport, error) {
				gotSince = since

				assert.Equal(t, []string{"widget"}, hints)

				return models.IngestReport{}, nil
			},
		}
		handler := NewPipelineHandler(ingestor, nil, nil, nil, nil, nil)

		req := httptest.NewRequest(http.MethodPost, "/v1/pipeline/ingest",
			bytes.NewReader([]byte(`{"product_hints":["widget"]}`)))
		rec := httptest.NewRecorder()

		handler.TriggerIngest(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.WithinDuration(t, time.Now().Add(-defaultIngestLookback), gotSince, time.Minute)
	})

	t.Run("invalid body maps to 400", func(t *testing.T) {
		handler := NewPipelineHandler(&mockIngestor{}, nil, nil, nil, nil, nil)

		req := httptest.NewRequest(http.MethodPost, "/v1/pipeline/ingest", bytes.NewReader([]byte(`{`)))
		rec := httptest.NewRecorder()

		handler.TriggerIngest(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestPipelineHandler_TriggerClassify(t *testing.T) {
	t.Run("returns the pass report", func(t *testing.T) {
		classifier := &mockClassifier{
			runFunc: func(_ context.Context) (classify.Report, error) {
				return classify.Report{Claimed: 4, Classified: 3, Fallbacks: 1}, nil
			},
		}
		handler := NewPipelineHandler(nil, classifier, nil, nil, nil, nil)

		req := httptest.NewRequest(http.MethodPost, "/v1/pipeline/classify", nil)
		rec := httptest.NewRecorder()

		handler.TriggerClassify(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)

		var report classify.Report
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
		assert.Equal(t, 3, report.Classified)
	})
}

func TestPipelineHandler_Reconcile(t *testing.T) {
	t.Run("defaults cover the full id range", func(t *testing.T) {
		var gotFrom, gotTo uuid.UUID

		scanner := &mockDriftScanner{
			scanFunc: func(_ context.Context, from, to uuid.UUID) (models.DriftReport, error) {
				gotFrom, gotTo = from, to

				return models.DriftReport{}, nil
			},
		}
		handler := NewPipelineHandler(nil, nil, nil, scanner, nil, nil)

		req := httptest.NewRequest(http.MethodPost, "/v1/pipeline/reconcile", nil)
		rec := httptest.NewRecorder()

		handler.Reconcile(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, uuid.UUID{}, gotFrom)
		assert.Equal(t, uuid.MustParse("ffffffff-ffff-ffff-ffff-ffffffffffff"), gotTo)
	})

	t.Run("invalid from id maps to 400", func(t *testing.T) {
		handler := NewPipelineHandler(nil, nil, nil, &mockDriftScanner{}, nil, nil)

		req := httptest.NewRequest(http.MethodPost, "/v1/pipeline/reconcile?from=nope", nil)
		rec := httptest.NewRecorder()

		handler.Reconcile(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestPipelineHandler_Repair(t *testing.T) {
	t.Run("repairs submitted findings", func(t *testing.T) {
		scanner := &mockDriftScanner{
			repairFunc: func(_ context.Context, findings []models.DriftFinding) (int, error) {
				return len(findings), nil
			},
		}
		handler := NewPipelineHandler(nil, nil, nil, scanner, nil, nil)

		body, err := json.Marshal(RepairRequest{
			Findings: []models.DriftFinding{{Kind: models.DriftOrphanedInStore, ExternalID: uuid.New()}},
		})
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodPost, "/v1/pipeline/repair", bytes.NewReader(body))
		rec := httptest.NewRecorder()

		handler.Repair(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)

		var resp RepairResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, 1, resp.Repaired)
	})

	t.Run("empty findings map to 400, repair is never implicit", func(t *testing.T) {
		scanner := &mockDriftScanner{
			repairFunc: func(_ context.Context, _ []models.DriftFinding) (int, error) {
				t.Fatal("repair should not run without findings")

				return 0, nil
			},
		}
		handler := NewPipelineHandler(nil, nil, nil, scanner, nil, nil)

		req := httptest.NewRequest(http.MethodPost, "/v1/pipeline/repair", bytes.NewReader([]byte(`{"findings":[]}`)))
		rec := httptest.NewRecorder()

		handler.Repair(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

type mockDiscoverer struct {
	discoverFunc func(ctx context.Context, productName string) (map[string][]string, error)
}

func (m *mockDiscoverer) Discover(ctx context.Context, productName string) (map[string][]string, error) {
	return m.discoverFunc(ctx, productName)
}

func TestPipelineHandler_Discover(t *testing.T) {
	t.Run("returns candidate sources per platform", func(t *testing.T) {
		discoverer := &mockDiscoverer{
			discoverFunc: func(_ context.Context, product string) (map[string][]string, error) {
				assert.Equal(t, "widget", product)

				return map[string][]string{"reddit": {"r/widgets"}}, nil
			},
		}
		handler := NewPipelineHandler(nil, nil, nil, nil, nil, discoverer)

		req := httptest.NewRequest(http.MethodPost, "/v1/pipeline/discover",
			bytes.NewReader([]byte(`{"product":"  widget  "}`)))
		rec := httptest.NewRecorder()

		handler.Discover(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)

		var resp DiscoverResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, []string{"r/widgets"}, resp.Sources["reddit"])
	})

	t.Run("missing product maps to 400", func(t *testing.T) {
		handler := NewPipelineHandler(nil, nil, nil, nil, nil, &mockDiscoverer{})

		req := httptest.NewRequest(http.MethodPost, "/v1/pipeline/discover",
			bytes.NewReader([]byte(`{"product":"   "}`)))
		rec := httptest.NewRecorder()

		handler.Discover(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("discovery failure maps to 500", func(t *testing.T) {
		discoverer := &mockDiscoverer{
			discoverFunc: func(_ context.Context, _ string) (map[string][]string, error) {
				return nil, errors.New("every platform down")
			},
		}
		handler := NewPipelineHandler(nil, nil, nil, nil, nil, discoverer)

		req := httptest.NewRequest(http.MethodPost, "/v1/pipeline/discover",
			bytes.NewReader([]byte(`{"product":"widget"}`)))
		rec := httptest.NewRecorder()

		handler.Discover(rec, req)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestPipelineHandler_Requeue(t *testing.T) {
	t.Run("requeues a failed item", func(t *testing.T) {
		itemID := uuid.New()
		requeuer := &mockRequeuer{
			requeueFunc: func(_ context.Context, id uuid.UUID) (models.State, error) {
				assert.Equal(t, itemID, id)

				return models.StatePending, nil
			},
		}
		handler := NewPipelineHandler(nil, nil, nil, nil, requeuer, nil)

		req := httptest.NewRequest(http.MethodPost, "/v1/items/"+itemID.String()+"/requeue", nil)
		req.SetPathValue("id", itemID.String())
		rec := httptest.NewRecorder()

		handler.Requeue(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)

		var resp RequeueResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, models.StatePending, resp.State)
	})

	t.Run("unknown or non-failed item maps to 404", func(t *testing.T) {
		requeuer := &mockRequeuer{
			requeueFunc: func(_ context.Context, _ uuid.UUID) (models.State, error) {
				return "", pulseerrors.NewNotFoundError("processing_state", "not found")
			},
		}
		handler := NewPipelineHandler(nil, nil, nil, nil, requeuer, nil)

		itemID := uuid.New()
		req := httptest.NewRequest(http.MethodPost, "/v1/items/"+itemID.String()+"/requeue", nil)
		req.SetPathValue("id", itemID.String())
		rec := httptest.NewRecorder()

		handler.Requeue(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("invalid id maps to 400", func(t *testing.T) {
		handler := NewPipelineHandler(nil, nil, nil, nil, &mockRequeuer{}, nil)

		req := httptest.NewRequest(http.MethodPost, "/v1/items/nope/requeue", nil)
		req.SetPathValue("id", "nope")
		rec := httptest.NewRecorder()

		handler.Requeue(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
