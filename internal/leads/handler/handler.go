// Package handler exposes lead scores over HTTP.
package handler

import (
	"context"
	"errors"

	"leadgen_backend/internal/leads/repository"
	"leadgen_backend/internal/leads/scoring"
	"leadgen_backend/platform/apperr"
	"leadgen_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Scorer scores a lead, personalized when accountID is set.
type Scorer interface {
	ScoreForAccount(ctx context.Context, leadID uuid.UUID, accountID *uuid.UUID) (scoring.LeadScore, error)
}

// StoredScores reads the nightly score.
type StoredScores interface {
	GetScore(ctx context.Context, leadID uuid.UUID) (scoring.LeadScore, error)
}

type Handler struct {
	scorer Scorer
	stored StoredScores
}

func New(scorer Scorer, stored StoredScores) *Handler {
	return &Handler{scorer: scorer, stored: stored}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/:leadId/score", h.GetScore)
	rg.GET("/:leadId/score/stored", h.GetStoredScore)
}

// GetScore computes a live score; ?accountId= applies that contractor's personalization.
func (h *Handler) GetScore(c *gin.Context) {
	leadID, err := httpkit.UUIDParam(c, "leadId")
	if httpkit.HandleError(c, err) {
		return
	}
	accountID, err := httpkit.OptionalUUIDQuery(c, "accountId")
	if httpkit.HandleError(c, err) {
		return
	}

	score, err := h.scorer.ScoreForAccount(c.Request.Context(), leadID, accountID)
	if httpkit.HandleError(c, mapError(err)) {
		return
	}
	httpkit.OK(c, score)
}

// GetStoredScore returns the score written by the last nightly run.
func (h *Handler) GetStoredScore(c *gin.Context) {
	leadID, err := httpkit.UUIDParam(c, "leadId")
	if httpkit.HandleError(c, err) {
		return
	}
	score, err := h.stored.GetScore(c.Request.Context(), leadID)
	if httpkit.HandleError(c, mapError(err)) {
		return
	}
	httpkit.OK(c, score)
}

func mapError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return apperr.Wrap(apperr.KindNotFound, "lead not found", err)
	default:
		return apperr.Wrap(apperr.KindInternal, "lead scoring failed", err)
	}
}
