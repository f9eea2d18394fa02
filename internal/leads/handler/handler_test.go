package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"leadgen_backend/internal/leads/repository"
	"leadgen_backend/internal/leads/scoring"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type stubScorer struct {
	known   uuid.UUID
	account *uuid.UUID
}

func (s *stubScorer) ScoreForAccount(_ context.Context, leadID uuid.UUID, accountID *uuid.UUID) (scoring.LeadScore, error) {
	s.account = accountID
	if leadID != s.known {
		return scoring.LeadScore{}, repository.ErrNotFound
	}
	return scoring.LeadScore{LeadID: leadID, FinalScore: 61}, nil
}

type stubStored struct{}

func (stubStored) GetScore(context.Context, uuid.UUID) (scoring.LeadScore, error) {
	return scoring.LeadScore{}, repository.ErrNotFound
}

func newEngine(s *stubScorer) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	New(s, stubStored{}).RegisterRoutes(engine.Group("/leads"))
	return engine
}

func get(engine *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestGetScore(t *testing.T) {
	lead := uuid.New()
	account := uuid.New()
	scorer := &stubScorer{known: lead}
	engine := newEngine(scorer)

	w := get(engine, "/leads/"+lead.String()+"/score?accountId="+account.String())
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var s scoring.LeadScore
	if err := json.Unmarshal(w.Body.Bytes(), &s); err != nil || s.FinalScore != 61 {
		t.Fatalf("unexpected body %s", w.Body.String())
	}
	if scorer.account == nil || *scorer.account != account {
		t.Fatalf("expected account to be forwarded")
	}
}

func TestGetScoreErrors(t *testing.T) {
	engine := newEngine(&stubScorer{known: uuid.New()})

	if w := get(engine, "/leads/not-a-uuid/score"); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad lead id, got %d", w.Code)
	}
	if w := get(engine, "/leads/"+uuid.NewString()+"/score?accountId=nope"); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad account id, got %d", w.Code)
	}
	if w := get(engine, "/leads/"+uuid.NewString()+"/score"); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown lead, got %d", w.Code)
	}
	if w := get(engine, "/leads/"+uuid.NewString()+"/score/stored"); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unscored lead, got %d", w.Code)
	}
}
