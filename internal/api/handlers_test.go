//nolint:testpackage // Testing internal api requires same package access
package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/rakhimov-me/smax-ai/internal/domain"
	"github.com/rakhimov-me/smax-ai/internal/ingest"
	"github.com/rakhimov-me/smax-ai/internal/logger"
	"github.com/rakhimov-me/smax-ai/internal/spamgate"
	"github.com/rakhimov-me/smax-ai/internal/store"
	"github.com/rakhimov-me/smax-ai/internal/triage"
)

type fixedReader struct {
	rows []domain.RawRow
}

func (f *fixedReader) ListSources(dir string) ([]string, error) {
	return []string{"corpus.xlsx"}, nil
}

func (f *fixedReader) Read(path string) (ingest.Table, error) {
	return ingest.Table{
		Columns: []string{domain.ColumnTitle, domain.ColumnExpert, domain.ColumnGroup, domain.ColumnLabel},
		Rows:    f.rows,
	}, nil
}

func ticketRows(n int) []domain.RawRow {
	rows := make([]domain.RawRow, 0, n)
	for i := 0; i < n; i++ {
		group, expert := "Группа печати", "Иванов Иван"
		title := fmt.Sprintf("Не работает принтер номер %d", i)
		if i%2 == 1 {
			group, expert = "Группа почты", "Петрова Анна"
			title = fmt.Sprintf("Не открывается почта номер %d", i)
		}
		rows = append(rows, domain.RawRow{
			domain.ColumnTitle:  title,
			domain.ColumnExpert: expert,
			domain.ColumnGroup:  group,
			domain.ColumnLabel:  group,
		})
	}
	return rows
}

func newTestRouter(t *testing.T, rows []domain.RawRow) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	gate := spamgate.New(spamgate.Config{Policy: spamgate.PolicyLoose})
	corpus := ingest.New(&fixedReader{rows: rows}, logger.Nop())
	artifacts := store.New(filepath.Join(t.TempDir(), "model"))
	service := triage.New(triage.Config{
		SourceDir:           "dir",
		ConfidenceThreshold: 0.25,
		Estimators:          10,
	}, gate, corpus, artifacts, nil, nil, logger.Nop())

	handler := NewHandler(service, nil, "smax-ai", "test", logger.Nop())
	router := gin.New()
	SetupRoutes(router, handler, nil, 0)
	return router
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestPredict_MissingTitle(t *testing.T) {
	router := newTestRouter(t, nil)

	w := doJSON(t, router, http.MethodPost, "/api/v1/predict", map[string]string{"description": "текст"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestPredict_UntrainedFallback(t *testing.T) {
	router := newTestRouter(t, nil)

	w := doJSON(t, router, http.MethodPost, "/api/v1/predict", map[string]string{"title": "Не работает принтер"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp PredictResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ModelTrained {
		t.Error("model_trained must be false before training")
	}
	if !resp.Prediction.Fallback {
		t.Error("expected the fallback prediction")
	}
	if resp.Prediction.Group != domain.FallbackGroup {
		t.Errorf("unexpected group: %q", resp.Prediction.Group)
	}
	if resp.Timestamp.IsZero() {
		t.Error("expected a timestamp in the envelope")
	}
}

func TestIngestThenPredict(t *testing.T) {
	router := newTestRouter(t, ticketRows(12))

	w := doJSON(t, router, http.MethodPost, "/api/v1/ingest", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var ingResp IngestResponse
	if err := json.Unmarshal(w.Body.Bytes(), &ingResp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if ingResp.RecordsLoaded != 12 || !ingResp.ModelTrained {
		t.Fatalf("unexpected ingest response: %+v", ingResp)
	}

	w = doJSON(t, router, http.MethodPost, "/api/v1/predict", map[string]string{"title": "Не работает принтер на складе"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp PredictResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.ModelTrained {
		t.Error("model_trained must be true after ingest")
	}
	if resp.Prediction.Group != "Группа печати" {
		t.Errorf("expected printing group, got %q", resp.Prediction.Group)
	}
}

func TestIngest_InsufficientData(t *testing.T) {
	router := newTestRouter(t, ticketRows(5))

	w := doJSON(t, router, http.MethodPost, "/api/v1/ingest", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for 5 records, got %d: %s", w.Code, w.Body.String())
	}
}

func TestSetThreshold(t *testing.T) {
	router := newTestRouter(t, nil)

	w := doJSON(t, router, http.MethodPut, "/api/v1/model/threshold", map[string]float64{"threshold": 0.4})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(t, router, http.MethodPut, "/api/v1/model/threshold", map[string]float64{"threshold": 1.5})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for threshold 1.5, got %d", w.Code)
	}

	w = doJSON(t, router, http.MethodPut, "/api/v1/model/threshold", map[string]string{})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing threshold, got %d", w.Code)
	}
}

func TestModelEndpoints(t *testing.T) {
	router := newTestRouter(t, ticketRows(10))

	// Nothing trained yet.
	w := doJSON(t, router, http.MethodPost, "/api/v1/model/save", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 saving untrained model, got %d", w.Code)
	}
	w = doJSON(t, router, http.MethodPost, "/api/v1/model/load", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 loading missing bundle, got %d", w.Code)
	}

	if w = doJSON(t, router, http.MethodPost, "/api/v1/ingest", nil); w.Code != http.StatusOK {
		t.Fatalf("ingest failed: %d %s", w.Code, w.Body.String())
	}
	if w = doJSON(t, router, http.MethodPost, "/api/v1/model/save", nil); w.Code != http.StatusOK {
		t.Fatalf("save failed: %d %s", w.Code, w.Body.String())
	}
	if w = doJSON(t, router, http.MethodPost, "/api/v1/model/clear", nil); w.Code != http.StatusOK {
		t.Fatalf("clear failed: %d %s", w.Code, w.Body.String())
	}

	// Cleared: stats are empty again.
	w = doJSON(t, router, http.MethodGet, "/api/v1/stats", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("stats failed: %d", w.Code)
	}
	var stats struct {
		Data domain.Stats `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.Data.TotalRecords != 0 {
		t.Errorf("expected empty corpus after clear, got %d", stats.Data.TotalRecords)
	}
}

func TestGetData(t *testing.T) {
	router := newTestRouter(t, ticketRows(10))
	if w := doJSON(t, router, http.MethodPost, "/api/v1/ingest", nil); w.Code != http.StatusOK {
		t.Fatalf("ingest failed: %d", w.Code)
	}

	w := doJSON(t, router, http.MethodGet, "/api/v1/data", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp DataResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Groups) != 2 || len(resp.Experts) != 2 {
		t.Errorf("unexpected data lists: %+v", resp)
	}
}

func TestHealthAndReady(t *testing.T) {
	router := newTestRouter(t, nil)

	w := doJSON(t, router, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	w = doJSON(t, router, http.MethodGet, "/ready", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestPredictionStats_Disabled(t *testing.T) {
	router := newTestRouter(t, nil)

	w := doJSON(t, router, http.MethodGet, "/api/v1/stats/predictions", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 with history disabled, got %d", w.Code)
	}
}
