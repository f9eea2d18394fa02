// Package report compares current forecasts with the prior year and writes
// the impact summary sent to operators.
package report

import (
	"sort"
	"time"

	"leadgen_backend/internal/forecasting/domain"
)

// RiskLevel buckets a surge probability.
type RiskLevel string

const (
	RiskHigh   RiskLevel = "high"
	RiskMedium RiskLevel = "medium"
	RiskLow    RiskLevel = "low"
)

var riskLevels = []RiskLevel{RiskLow, RiskMedium, RiskHigh}

// Risk directions.
const (
	DirectionSignificantlyIncreased = "Significantly Increased"
	DirectionIncreased              = "Increased"
	DirectionSignificantlyDecreased = "Significantly Decreased"
	DirectionDecreased              = "Decreased"
	DirectionNoBaseline             = "No Baseline"
)

const topN = 3

// ClassifyRisk maps p_surge to a risk level.
func ClassifyRisk(p float64) RiskLevel {
	switch {
	case p >= 0.7:
		return RiskHigh
	case p >= 0.3:
		return RiskMedium
	default:
		return RiskLow
	}
}

// ClassifyDirection maps a change percentage to a direction label. A nil change
// has no baseline to compare against.
func ClassifyDirection(changePct *float64) string {
	if changePct == nil {
		return DirectionNoBaseline
	}
	switch c := *changePct; {
	case c > 10:
		return DirectionSignificantlyIncreased
	case c > 0:
		return DirectionIncreased
	case c < -10:
		return DirectionSignificantlyDecreased
	default:
		return DirectionDecreased
	}
}

// RegionComparison is one region present in both forecast sets.
type RegionComparison struct {
	RegionID        string    `json:"regionId"`
	TargetWeekStart time.Time `json:"targetWeekStart"`
	CurrentPSurge   float64   `json:"currentPSurge"`
	PriorPSurge     float64   `json:"priorPSurge"`
	ChangePct       *float64  `json:"changePct"`
	CurrentRisk     RiskLevel `json:"currentRisk"`
	PriorRisk       RiskLevel `json:"priorRisk"`
	Direction       string    `json:"direction"`
}

// Summary aggregates every compared region.
type Summary struct {
	Regions       int      `json:"regions"`
	AvgCurrent    float64  `json:"avgCurrentPSurge"`
	AvgPrior      float64  `json:"avgPriorPSurge"`
	AvgChangePct  *float64 `json:"avgChangePct"`
	Increased     int      `json:"increased"`
	Decreased     int      `json:"decreased"`
	NoBaseline    int      `json:"noBaseline"`
	HighRiskNow   int      `json:"highRiskNow"`
	HighRiskPrior int      `json:"highRiskPrior"`
}

// TransitionMatrix counts regions by prior risk level (outer) and current risk level (inner).
type TransitionMatrix map[RiskLevel]map[RiskLevel]int

// ComparisonReport is the full output of Compare.
type ComparisonReport struct {
	Regions      []RegionComparison `json:"regions"`
	Transitions  TransitionMatrix   `json:"transitions"`
	Summary      Summary            `json:"summary"`
	TopIncreases []RegionComparison `json:"topIncreases"`
	TopDecreases []RegionComparison `json:"topDecreases"`
	Narrative    string             `json:"narrative"`
}

// Compare joins current and prior forecasts by region. Regions missing from
// either side are dropped. The first forecast seen for a region wins. The
// output depends only on the inputs and their order.
func Compare(current, prior []domain.ForecastPrediction) ComparisonReport {
	priorByRegion := make(map[string]domain.ForecastPrediction, len(prior))
	for _, p := range prior {
		if _, seen := priorByRegion[p.RegionID]; !seen {
			priorByRegion[p.RegionID] = p
		}
	}

	rep := ComparisonReport{
		Regions:      []RegionComparison{},
		Transitions:  newTransitionMatrix(),
		TopIncreases: []RegionComparison{},
		TopDecreases: []RegionComparison{},
	}
	seen := make(map[string]bool, len(current))
	var sumCurrent, sumPrior float64
	for _, c := range current {
		if seen[c.RegionID] {
			continue
		}
		p, ok := priorByRegion[c.RegionID]
		if !ok {
			continue
		}
		seen[c.RegionID] = true

		rc := RegionComparison{
			RegionID:        c.RegionID,
			TargetWeekStart: c.TargetWeekStart,
			CurrentPSurge:   c.PSurge,
			PriorPSurge:     p.PSurge,
			ChangePct:       changePct(c.PSurge, p.PSurge),
			CurrentRisk:     ClassifyRisk(c.PSurge),
			PriorRisk:       ClassifyRisk(p.PSurge),
		}
		rc.Direction = ClassifyDirection(rc.ChangePct)
		rep.Regions = append(rep.Regions, rc)
		rep.Transitions[rc.PriorRisk][rc.CurrentRisk]++

		sumCurrent += c.PSurge
		sumPrior += p.PSurge
		switch {
		case rc.ChangePct == nil:
			rep.Summary.NoBaseline++
		case *rc.ChangePct > 0:
			rep.Summary.Increased++
		default:
			rep.Summary.Decreased++
		}
		if rc.CurrentRisk == RiskHigh {
			rep.Summary.HighRiskNow++
		}
		if rc.PriorRisk == RiskHigh {
			rep.Summary.HighRiskPrior++
		}
	}

	if n := len(rep.Regions); n > 0 {
		rep.Summary.Regions = n
		rep.Summary.AvgCurrent = sumCurrent / float64(n)
		rep.Summary.AvgPrior = sumPrior / float64(n)
		rep.Summary.AvgChangePct = changePct(rep.Summary.AvgCurrent, rep.Summary.AvgPrior)
	}

	rep.TopIncreases = top(rep.Regions, func(c float64) bool { return c > 0 }, func(a, b float64) bool { return a > b })
	rep.TopDecreases = top(rep.Regions, func(c float64) bool { return c < 0 }, func(a, b float64) bool { return a < b })
	rep.Narrative = renderNarrative(rep)
	return rep
}

func changePct(current, prior float64) *float64 {
	if prior == 0 {
		return nil
	}
	v := (current - prior) / prior * 100
	return &v
}

func newTransitionMatrix() TransitionMatrix {
	m := make(TransitionMatrix, len(riskLevels))
	for _, from := range riskLevels {
		m[from] = make(map[RiskLevel]int, len(riskLevels))
		for _, to := range riskLevels {
			m[from][to] = 0
		}
	}
	return m
}

func top(regions []RegionComparison, keep func(float64) bool, before func(a, b float64) bool) []RegionComparison {
	out := make([]RegionComparison, 0, len(regions))
	for _, r := range regions {
		if r.ChangePct != nil && keep(*r.ChangePct) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return before(*out[i].ChangePct, *out[j].ChangePct) })
	if len(out) > topN {
		out = out[:topN]
	}
	return out
}
