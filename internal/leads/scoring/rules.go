package scoring

import (
	"math"
	"strings"
	"time"

	"leadgen_backend/platform/sanitize"
)

const (
	recencyWeight  = 3.0
	tradeWeight    = 2.0
	valueWeight    = 2.0
	propertyWeight = 1.0
	ownerWeight    = 1.0

	unknownTradeScore = 10.0
	maxBaseScore      = 100.0
)

// tradeScores ranks trades by how well their leads convert.
var tradeScores = map[string]float64{
	"roofing":    25,
	"solar":      24,
	"hvac":       23,
	"remodeling": 22,
	"electrical": 21,
	"windows":    20,
	"siding":     19,
	"insulation": 18,
	"concrete":   17,
	"plumbing":   16,
}

// RuleBasedScorer computes the deterministic 0-100 base score.
type RuleBasedScorer struct{}

// Score returns the base score and the weighted contribution of each factor.
// The weighted sum may exceed 100 before the final cap.
func (RuleBasedScorer) Score(lead Lead, now time.Time) (float64, map[string]float64) {
	factors := map[string]float64{
		"recency":       recencyWeight * scoreRecency(lead.CreatedAt, now),
		"trade_match":   tradeWeight * scoreTrade(lead.TradeTags),
		"project_value": valueWeight * scoreValue(lead.Value),
		"property_age":  propertyWeight * scorePropertyAge(lead.YearBuilt, now),
		"owner_type":    ownerWeight * scoreOwner(lead.OwnerKind),
	}
	var sum float64
	for _, v := range factors {
		sum += v
	}
	return math.Min(maxBaseScore, sum), factors
}

// scoreRecency loses one point per day of age, from 25 down to 0.
func scoreRecency(createdAt, now time.Time) float64 {
	daysOld := math.Floor(now.Sub(createdAt).Hours() / 24)
	return math.Max(0, math.Min(25, 25-daysOld))
}

// scoreTrade takes the best-scoring tag. Unrecognized tags score 10; no tags score 0.
func scoreTrade(tags []string) float64 {
	best := 0.0
	for _, tag := range sanitize.Tags(tags) {
		s, ok := tradeScores[tag]
		if !ok {
			s = unknownTradeScore
		}
		best = math.Max(best, s)
	}
	return best
}

func scoreValue(value float64) float64 {
	switch {
	case value >= 50000:
		return 25
	case value >= 15000:
		return 20
	case value >= 5000:
		return 15
	default:
		return 10
	}
}

func scorePropertyAge(yearBuilt int, now time.Time) float64 {
	if yearBuilt <= 0 {
		return 5
	}
	age := now.Year() - yearBuilt
	switch {
	case age >= 25:
		return 15
	case age >= 15:
		return 12
	case age >= 10:
		return 8
	default:
		return 5
	}
}

func scoreOwner(kind string) float64 {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "individual":
		return 10
	case "llc":
		return 7
	default:
		return 5
	}
}
