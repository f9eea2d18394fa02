package features

import (
	"gonum.org/v1/gonum/stat"
)

var (
	lagWeeks     = []int{1, 2, 4, 8, 12}
	rollingWeeks = []int{4, 12, 26}
	trendWeeks   = []int{4, 12}
)

const (
	seasonalWindow = 52
	// historyWeeks is the lead-in loaded before a range so its first weeks
	// see the longest trailing window.
	historyWeeks = 26
)

// weeklyStats are the permit-derived values shared by every day of a week.
type weeklyStats struct {
	lags     map[int]float64
	means    map[int]float64
	trends   map[int]float64
	seasonal float64
}

// deriveWeekly computes lag, rolling, trend and seasonal values for each week of counts.
func deriveWeekly(counts []float64) []weeklyStats {
	seasonal := seasonalIndex(counts)
	out := make([]weeklyStats, len(counts))
	for i := range counts {
		ws := weeklyStats{
			lags:     make(map[int]float64, len(lagWeeks)),
			means:    make(map[int]float64, len(rollingWeeks)),
			trends:   make(map[int]float64, len(trendWeeks)),
			seasonal: seasonal[i],
		}
		for _, k := range lagWeeks {
			if i-k >= 0 {
				ws.lags[k] = counts[i-k]
			}
		}
		for _, w := range rollingWeeks {
			lo := max(0, i-w+1)
			ws.means[w] = stat.Mean(counts[lo:i+1], nil)
		}
		for _, w := range trendWeeks {
			ws.trends[w] = trendSlope(counts, i, w)
		}
		out[i] = ws
	}
	return out
}

// trendSlope is the OLS slope of count against week index over the w weeks
// ending at i. Windows that start before the series are 0.
func trendSlope(counts []float64, i, w int) float64 {
	lo := i - w + 1
	if lo < 0 || w < 2 {
		return 0
	}
	x := make([]float64, w)
	for j := range x {
		x[j] = float64(j)
	}
	_, beta := stat.LinearRegression(x, counts[lo:i+1], nil, false)
	return beta
}

// seasonalIndex divides each count by the centered 52-week moving average.
// Weeks where the window does not fit, or the average is zero, are 1.0.
func seasonalIndex(counts []float64) []float64 {
	out := make([]float64, len(counts))
	half := seasonalWindow / 2
	for i := range counts {
		out[i] = 1.0
		lo, hi := i-half, i+half
		if lo < 0 || hi > len(counts) {
			continue
		}
		ma := stat.Mean(counts[lo:hi], nil)
		if ma == 0 {
			continue
		}
		out[i] = counts[i] / ma
	}
	return out
}
