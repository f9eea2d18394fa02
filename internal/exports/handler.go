package exports

import (
	"context"
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"leadgen_backend/internal/forecasting/domain"
	"leadgen_backend/internal/forecasting/report"
	"leadgen_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
)

// ForecastLister lists every region's forecast for one target week.
type ForecastLister interface {
	ListByWeek(ctx context.Context, weekStart time.Time) ([]domain.ForecastPrediction, error)
}

var forecastCSVHeader = []string{
	"region_id", "target_week_start", "target_week_end", "forecast_date", "model_version",
	"p_surge", "p80_lower", "p80_upper", "p20_lower", "p20_upper", "confidence_score",
	"risk_level", "prior_year_p_surge", "surge_risk_change_pct",
}

// Handler serves CSV exports.
type Handler struct {
	forecasts ForecastLister
	now       func() time.Time
}

// NewHandler creates a new export handler.
func NewHandler(forecasts ForecastLister) *Handler {
	return &Handler{forecasts: forecasts, now: time.Now}
}

// ExportForecastsCSV streams the forecasts for ?week= (any day in the week,
// default next week) as CSV, one row per region.
func (h *Handler) ExportForecastsCSV(c *gin.Context) {
	week := domain.WeekStart(h.now().UTC().AddDate(0, 0, 7))
	if raw := c.Query("week"); raw != "" {
		parsed, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			httpkit.Error(c, http.StatusBadRequest, "invalid week", "expected YYYY-MM-DD")
			return
		}
		week = domain.WeekStart(parsed)
	}

	items, err := h.forecasts.ListByWeek(c.Request.Context(), week)
	if httpkit.HandleError(c, err) {
		return
	}

	filename := fmt.Sprintf("surge-forecasts-%s.csv", week.Format(time.DateOnly))
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Status(http.StatusOK)

	writer := csv.NewWriter(c.Writer)
	if err := writer.Write(forecastCSVHeader); err != nil {
		return
	}
	for _, p := range items {
		if err := writer.Write(forecastRecord(p)); err != nil {
			return
		}
	}
	writer.Flush()
}

func forecastRecord(p domain.ForecastPrediction) []string {
	return []string{
		p.RegionID,
		p.TargetWeekStart.Format(time.DateOnly),
		p.TargetWeekEnd.Format(time.DateOnly),
		p.ForecastDate.Format(time.DateOnly),
		p.ModelVersion,
		formatFloat(p.PSurge),
		formatFloat(p.P80Lower),
		formatFloat(p.P80Upper),
		formatFloat(p.P20Lower),
		formatFloat(p.P20Upper),
		formatFloat(p.ConfidenceScore),
		string(report.ClassifyRisk(p.PSurge)),
		formatOptional(p.PriorYearPSurge),
		formatOptional(p.SurgeRiskChangePct),
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}

func formatOptional(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}
