// Package labeling turns weekly activity counts into percentile-ranked surge labels.
package labeling

import (
	"context"
	"fmt"
	"time"

	"leadgen_backend/internal/forecasting/domain"
	"leadgen_backend/internal/forecasting/ports"
	"leadgen_backend/platform/logger"
	"leadgen_backend/platform/validator"
)

// DefaultPercentileThreshold marks the top decile of weeks as surges.
const DefaultPercentileThreshold = 90.0

// Labeler computes ActivityWeek labels for a region window.
type Labeler struct {
	activity ports.ActivitySource
	labels   ports.LabelStore
	val      *validator.Validator
	log      *logger.Logger
}

// New creates a Labeler. labels may be nil to compute without persisting.
func New(activity ports.ActivitySource, labels ports.LabelStore, val *validator.Validator, log *logger.Logger) *Labeler {
	if val == nil {
		val = validator.New()
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Labeler{activity: activity, labels: labels, val: val, log: log}
}

// Label returns one ActivityWeek per calendar week touching [start, end]. Weeks
// without activity are zero-filled. Percentile ranks are computed over the
// returned series only, so labels from different windows are not comparable.
func (l *Labeler) Label(ctx context.Context, regionID string, start, end time.Time, threshold float64) ([]domain.ActivityWeek, error) {
	weeks := weekRange(start, end)
	if len(weeks) == 0 {
		return []domain.ActivityWeek{}, nil
	}

	first := weeks[0]
	last := weeks[len(weeks)-1].AddDate(0, 0, 6)
	raw, err := l.activity.GetWeeklyCounts(ctx, regionID, first, last)
	if err != nil {
		return nil, fmt.Errorf("load weekly activity for %s: %w", regionID, err)
	}

	byWeek := make(map[time.Time]domain.WeeklyCounts, len(raw))
	for _, c := range raw {
		ws := domain.WeekStart(c.WeekStart)
		acc := byWeek[ws]
		acc.WeekStart = ws
		acc.PermitCount += c.PermitCount
		acc.ViolationCount += c.ViolationCount
		acc.BidCount += c.BidCount
		byWeek[ws] = acc
	}

	out := make([]domain.ActivityWeek, len(weeks))
	totals := make([]float64, len(weeks))
	for i, ws := range weeks {
		counts, ok := byWeek[ws]
		if !ok {
			counts = domain.WeeklyCounts{WeekStart: ws}
		}
		out[i] = domain.NewActivityWeek(regionID, counts)
		totals[i] = float64(out[i].TotalActivity)
	}

	ranks := PercentileRanks(totals)
	surges := 0
	for i := range out {
		out[i].PercentileRank = ranks[i]
		out[i].IsSurge = ranks[i] >= threshold
		if out[i].IsSurge {
			surges++
		}
	}

	for _, w := range out {
		if err := l.val.Struct(w); err != nil {
			return nil, fmt.Errorf("%w: week %s for %s: %v", domain.ErrInvalidLabel, w.WeekStart.Format(time.DateOnly), regionID, err)
		}
	}

	if l.labels != nil {
		if err := l.labels.UpsertLabels(ctx, regionID, out); err != nil {
			return nil, fmt.Errorf("upsert labels for %s: %w", regionID, err)
		}
	}

	l.log.Info("surge labels computed", "regionId", regionID, "weeks", len(out), "surges", surges, "threshold", threshold)
	return out, nil
}

// weekRange enumerates the Mondays from the week of start through the week of end.
// Zero or inverted dates yield nothing.
func weekRange(start, end time.Time) []time.Time {
	if start.IsZero() || end.IsZero() || end.Before(start) {
		return nil
	}
	first := domain.WeekStart(start)
	last := domain.WeekStart(end)
	weeks := make([]time.Time, 0, int(last.Sub(first).Hours()/(24*7))+1)
	for ws := first; !ws.After(last); ws = ws.AddDate(0, 0, 7) {
		weeks = append(weeks, ws)
	}
	return weeks
}
