package scoring

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"leadgen_backend/platform/sanitize"
)

const (
	minPersonalAdjustment = -20.0
	maxPersonalAdjustment = 5.0

	serviceAreaPenalty = 8.0
	tradePenalty       = 5.0
	winRateMinLeads    = 10
)

// reasonAdjustments maps a cancellation reason to its score adjustment.
var reasonAdjustments = map[string]float64{
	"poor_lead_quality":    -15,
	"wrong_lead_type":      -10,
	"not_qualified":        -10,
	"too_expensive":        -5,
	"too_many_competitors": -5,
	"seasonal":             2,
	"financial":            2,
}

// PersonalizedAdjuster shifts a score using one contractor's cancellation history.
type PersonalizedAdjuster struct {
	source CancellationSource
}

// NewPersonalizedAdjuster creates an adjuster backed by source.
func NewPersonalizedAdjuster(source CancellationSource) *PersonalizedAdjuster {
	return &PersonalizedAdjuster{source: source}
}

// Adjust returns the adjustment for accountID and lead, in [-20, +5].
// Accounts without a cancellation profile get 0.
func (p *PersonalizedAdjuster) Adjust(ctx context.Context, accountID uuid.UUID, lead Lead) (float64, error) {
	if p.source == nil {
		return 0, nil
	}
	profile, err := p.source.GetLatestCancellation(ctx, accountID)
	if err != nil {
		return 0, err
	}
	if profile == nil {
		return 0, nil
	}
	return AdjustForProfile(*profile, lead), nil
}

// AdjustForProfile applies the personalization rules to a known profile.
func AdjustForProfile(profile CancellationProfile, lead Lead) float64 {
	adj := reasonAdjustments[sanitize.Tag(profile.PrimaryReason)]

	if areas := profile.PreferredServiceAreas; len(areas) > 0 && !containsCode(areas, lead.Jurisdiction) {
		adj -= serviceAreaPenalty
	}

	if prefs := sanitize.Tags(profile.PreferredTradeTypes); len(prefs) > 0 && !intersects(prefs, sanitize.Tags(lead.TradeTags)) {
		adj -= tradePenalty
	}

	if profile.TotalLeadsPurchased > winRateMinLeads {
		winRate := float64(profile.LeadsWon) / float64(profile.TotalLeadsPurchased)
		switch {
		case winRate < 0.05:
			adj -= 10
		case winRate < 0.10:
			adj -= 5
		}
	}

	return clampFloat(adj, minPersonalAdjustment, maxPersonalAdjustment)
}

func containsCode(list []string, code string) bool {
	want := sanitize.Code(code)
	for _, c := range list {
		if strings.EqualFold(sanitize.Code(c), want) {
			return true
		}
	}
	return false
}

func intersects(a, b []string) bool {
	set := make(map[string]bool, len(a))
	for _, v := range a {
		set[v] = true
	}
	for _, v := range b {
		if set[v] {
			return true
		}
	}
	return false
}
