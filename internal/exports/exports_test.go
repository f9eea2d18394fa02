package exports

import (
	"context"
	"encoding/csv"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"leadgen_backend/internal/forecasting/domain"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type stubKeys struct {
	hash    string
	touched int
}

func (s *stubKeys) GetAPIKeyByHash(_ context.Context, keyHash string) (APIKey, error) {
	if keyHash != s.hash {
		return APIKey{}, ErrAPIKeyNotFound
	}
	return APIKey{ID: uuid.New(), IsActive: true}, nil
}

func (s *stubKeys) TouchAPIKey(context.Context, uuid.UUID) { s.touched++ }

type stubLister struct {
	gotWeek time.Time
	items   []domain.ForecastPrediction
}

func (s *stubLister) ListByWeek(_ context.Context, week time.Time) ([]domain.ForecastPrediction, error) {
	s.gotWeek = week
	return s.items, nil
}

func newEngine(keys KeyStore, lister ForecastLister) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewHandler(lister)
	h.now = func() time.Time { return time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC) }
	engine := gin.New()
	group := engine.Group("/exports")
	group.Use(APIKeyAuthMiddleware(keys))
	group.GET("/forecasts.csv", h.ExportForecastsCSV)
	return engine
}

func TestGenerateAPIKeyHashesConsistently(t *testing.T) {
	plaintext, hash, prefix, err := GenerateAPIKey()
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if !strings.HasPrefix(plaintext, apiKeyPrefix) || !strings.HasPrefix(plaintext, prefix) {
		t.Fatalf("unexpected key %q prefix %q", plaintext, prefix)
	}
	if HashKey(plaintext) != hash {
		t.Fatalf("expected hash to match HashKey of plaintext")
	}
}

func TestExportRequiresKey(t *testing.T) {
	keys := &stubKeys{hash: HashKey("surge_good")}
	engine := newEngine(keys, &stubLister{})

	for _, header := range []string{"", "surge_bad"} {
		req := httptest.NewRequest(http.MethodGet, "/exports/forecasts.csv", nil)
		if header != "" {
			req.Header.Set("X-Export-API-Key", header)
		}
		rec := httptest.NewRecorder()
		engine.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("key %q: expected 401, got %d", header, rec.Code)
		}
	}
	if keys.touched != 0 {
		t.Fatalf("rejected keys must not be touched")
	}
}

func TestExportForecastsCSV(t *testing.T) {
	prior := 0.35
	change := 100.0
	lister := &stubLister{items: []domain.ForecastPrediction{{
		RegionID:           "tx-harris",
		TargetWeekStart:    time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC),
		TargetWeekEnd:      time.Date(2026, 10, 25, 0, 0, 0, 0, time.UTC),
		ForecastDate:       time.Date(2026, 10, 14, 0, 0, 0, 0, time.UTC),
		ModelVersion:       "xgboost_tx-harris_20261012T040000Z",
		PSurge:             0.7,
		PriorYearPSurge:    &prior,
		SurgeRiskChangePct: &change,
	}}}
	keys := &stubKeys{hash: HashKey("surge_good")}
	engine := newEngine(keys, lister)

	req := httptest.NewRequest(http.MethodGet, "/exports/forecasts.csv", nil)
	req.Header.Set("X-Export-API-Key", "surge_good")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !lister.gotWeek.Equal(time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected default week 2026-10-19, got %s", lister.gotWeek)
	}
	if keys.touched != 1 {
		t.Fatalf("expected key usage recorded once, got %d", keys.touched)
	}

	records, err := csv.NewReader(rec.Body).ReadAll()
	if err != nil {
		t.Fatalf("invalid csv: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected header plus one row, got %d", len(records))
	}
	row := records[1]
	if row[0] != "tx-harris" || row[5] != "0.7000" || row[11] != "high" || row[12] != "0.3500" {
		t.Fatalf("unexpected row %v", row)
	}
}

func TestExportRejectsBadWeek(t *testing.T) {
	engine := newEngine(&stubKeys{hash: HashKey("surge_good")}, &stubLister{})
	req := httptest.NewRequest(http.MethodGet, "/exports/forecasts.csv?week=19-10-2026", nil)
	req.Header.Set("X-Export-API-Key", "surge_good")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
