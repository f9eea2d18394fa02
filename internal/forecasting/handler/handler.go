// Package handler exposes forecasts over HTTP.
package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"leadgen_backend/internal/forecasting/domain"
	"leadgen_backend/platform/apperr"
	"leadgen_backend/platform/httpkit"
	"leadgen_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

// Forecasts is the read side used by the API.
type Forecasts interface {
	GetLatest(ctx context.Context, regionID string) (*domain.ForecastPrediction, error)
	GetByWeek(ctx context.Context, regionID string, weekStart time.Time) (*domain.ForecastPrediction, error)
}

// Models lists trained model versions.
type Models interface {
	ListVersions(ctx context.Context, regionID string) ([]domain.TrainedModel, error)
}

// Predictor produces on-demand forecasts.
type Predictor interface {
	Predict(ctx context.Context, regionID string, targetDate time.Time, modelVersion string) (*domain.ForecastPrediction, error)
}

// TrainEnqueuer schedules a background training run. May be nil.
type TrainEnqueuer interface {
	EnqueueTrainRegion(ctx context.Context, regionID string, endDate time.Time) error
}

// Regions reports known region ids.
type Regions interface {
	Has(id string) bool
}

type Handler struct {
	forecasts Forecasts
	models    Models
	predictor Predictor
	trainer   TrainEnqueuer
	regions   Regions
	val       *validator.Validator
}

func New(forecasts Forecasts, models Models, predictor Predictor, trainer TrainEnqueuer, regions Regions, val *validator.Validator) *Handler {
	return &Handler{forecasts: forecasts, models: models, predictor: predictor, trainer: trainer, regions: regions, val: val}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/:regionId", h.GetLatest)
	rg.GET("/:regionId/weeks/:weekStart", h.GetByWeek)
	rg.GET("/:regionId/models", h.ListModels)
	rg.POST("/:regionId/predict", h.Predict)
	rg.POST("/:regionId/train", h.Train)
}

// PredictRequest optionally pins the target date and model version.
type PredictRequest struct {
	TargetDate   string `json:"targetDate" validate:"omitempty,datetime=2006-01-02"`
	ModelVersion string `json:"modelVersion" validate:"omitempty,max=200"`
}

func (h *Handler) GetLatest(c *gin.Context) {
	regionID, ok := h.region(c)
	if !ok {
		return
	}
	p, err := h.forecasts.GetLatest(c.Request.Context(), regionID)
	if httpkit.HandleError(c, mapError(err)) {
		return
	}
	if p == nil {
		httpkit.HandleError(c, apperr.NotFound("no forecast for region"))
		return
	}
	httpkit.OK(c, p)
}

func (h *Handler) GetByWeek(c *gin.Context) {
	regionID, ok := h.region(c)
	if !ok {
		return
	}
	week, err := time.Parse(time.DateOnly, c.Param("weekStart"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, "weekStart must be YYYY-MM-DD")
		return
	}
	p, err := h.forecasts.GetByWeek(c.Request.Context(), regionID, week)
	if httpkit.HandleError(c, mapError(err)) {
		return
	}
	if p == nil {
		httpkit.HandleError(c, apperr.NotFound("no forecast for week"))
		return
	}
	httpkit.OK(c, p)
}

func (h *Handler) ListModels(c *gin.Context) {
	regionID, ok := h.region(c)
	if !ok {
		return
	}
	models, err := h.models.ListVersions(c.Request.Context(), regionID)
	if httpkit.HandleError(c, mapError(err)) {
		return
	}
	httpkit.OK(c, gin.H{"items": models})
}

func (h *Handler) Predict(c *gin.Context) {
	regionID, ok := h.region(c)
	if !ok {
		return
	}
	var req PredictRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
			return
		}
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	var target time.Time
	if req.TargetDate != "" {
		target, _ = time.Parse(time.DateOnly, req.TargetDate)
	}
	p, err := h.predictor.Predict(c.Request.Context(), regionID, target, req.ModelVersion)
	if httpkit.HandleError(c, mapError(err)) {
		return
	}
	httpkit.OK(c, p)
}

func (h *Handler) Train(c *gin.Context) {
	regionID, ok := h.region(c)
	if !ok {
		return
	}
	if h.trainer == nil {
		httpkit.HandleError(c, apperr.Unavailable("background training is not configured"))
		return
	}
	if err := h.trainer.EnqueueTrainRegion(c.Request.Context(), regionID, time.Time{}); err != nil {
		httpkit.HandleError(c, apperr.Wrap(apperr.KindInternal, "failed to enqueue training", err))
		return
	}
	httpkit.JSON(c, http.StatusAccepted, gin.H{"status": "queued", "regionId": regionID})
}

func (h *Handler) region(c *gin.Context) (string, bool) {
	regionID := c.Param("regionId")
	if h.regions != nil && !h.regions.Has(regionID) {
		httpkit.HandleError(c, apperr.NotFound("unknown region"))
		return "", false
	}
	return regionID, true
}

// mapError turns pipeline sentinels into typed API errors.
func mapError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrModelNotFound):
		return apperr.Wrap(apperr.KindNotFound, "model not found", err)
	case errors.Is(err, domain.ErrUnsupportedAlgorithm):
		return apperr.Wrap(apperr.KindBadRequest, "unsupported model version", err)
	case errors.Is(err, domain.ErrNoFeatures):
		return apperr.Wrap(apperr.KindUnavailable, "no recent features for region", err)
	case errors.Is(err, domain.ErrInsufficientData):
		return apperr.Wrap(apperr.KindUnavailable, "not enough history for region", err)
	default:
		return apperr.Wrap(apperr.KindInternal, "forecast request failed", err)
	}
}
