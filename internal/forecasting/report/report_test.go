package report

import (
	"math"
	"strings"
	"testing"

	"leadgen_backend/internal/forecasting/domain"

	"github.com/google/go-cmp/cmp"
)

func forecast(region string, p float64) domain.ForecastPrediction {
	return domain.ForecastPrediction{RegionID: region, PSurge: p}
}

func TestCompareJoinsAndClassifies(t *testing.T) {
	current := []domain.ForecastPrediction{
		forecast("tx-harris", 0.8),
		forecast("tx-dallas", 0.2),
		forecast("tx-travis", 0.5),
		forecast("tx-only-current", 0.9),
		forecast("tx-zero-prior", 0.4),
	}
	prior := []domain.ForecastPrediction{
		forecast("tx-harris", 0.5),
		forecast("tx-dallas", 0.4),
		forecast("tx-travis", 0.48),
		forecast("tx-only-prior", 0.1),
		forecast("tx-zero-prior", 0),
	}

	rep := Compare(current, prior)

	var regions []string
	for _, r := range rep.Regions {
		regions = append(regions, r.RegionID)
	}
	if diff := cmp.Diff([]string{"tx-harris", "tx-dallas", "tx-travis", "tx-zero-prior"}, regions); diff != "" {
		t.Fatalf("unexpected joined regions (-want +got):\n%s", diff)
	}

	harris := rep.Regions[0]
	if harris.ChangePct == nil || math.Abs(*harris.ChangePct-60) > 1e-9 {
		t.Fatalf("expected +60%% for tx-harris, got %v", harris.ChangePct)
	}
	if harris.Direction != DirectionSignificantlyIncreased || harris.CurrentRisk != RiskHigh || harris.PriorRisk != RiskMedium {
		t.Fatalf("unexpected tx-harris classification %+v", harris)
	}
	if rep.Regions[1].Direction != DirectionSignificantlyDecreased || rep.Regions[1].CurrentRisk != RiskLow {
		t.Fatalf("unexpected tx-dallas classification %+v", rep.Regions[1])
	}
	if rep.Regions[2].Direction != DirectionIncreased {
		t.Fatalf("expected small rise to be Increased, got %s", rep.Regions[2].Direction)
	}
	zero := rep.Regions[3]
	if zero.ChangePct != nil || zero.Direction != DirectionNoBaseline {
		t.Fatalf("expected zero prior to have no change, got %+v", zero)
	}

	if rep.Transitions[RiskMedium][RiskHigh] != 1 || rep.Transitions[RiskMedium][RiskLow] != 1 || rep.Transitions[RiskLow][RiskMedium] != 1 {
		t.Fatalf("unexpected transitions %v", rep.Transitions)
	}
	if rep.Summary.Regions != 4 || rep.Summary.Increased != 2 || rep.Summary.Decreased != 1 || rep.Summary.NoBaseline != 1 {
		t.Fatalf("unexpected summary %+v", rep.Summary)
	}
	if len(rep.TopIncreases) != 2 || rep.TopIncreases[0].RegionID != "tx-harris" {
		t.Fatalf("unexpected top increases %+v", rep.TopIncreases)
	}
	if len(rep.TopDecreases) != 1 || rep.TopDecreases[0].RegionID != "tx-dallas" {
		t.Fatalf("unexpected top decreases %+v", rep.TopDecreases)
	}
	if !strings.Contains(rep.Narrative, "Across 4 regions") || !strings.Contains(rep.Narrative, "tx-harris (+60.0%)") {
		t.Fatalf("unexpected narrative %q", rep.Narrative)
	}
}

func TestCompareIsDeterministicWithTies(t *testing.T) {
	var current, prior []domain.ForecastPrediction
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		current = append(current, forecast(id, 0.6))
		prior = append(prior, forecast(id, 0.3))
	}

	first := Compare(current, prior)
	second := Compare(current, prior)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("compare is not deterministic (-first +second):\n%s", diff)
	}
	var ids []string
	for _, r := range first.TopIncreases {
		ids = append(ids, r.RegionID)
	}
	if diff := cmp.Diff([]string{"a", "b", "c"}, ids); diff != "" {
		t.Fatalf("expected stable order for tied changes (-want +got):\n%s", diff)
	}
}

func TestCompareEmpty(t *testing.T) {
	rep := Compare(nil, []domain.ForecastPrediction{forecast("a", 0.2)})
	if len(rep.Regions) != 0 || rep.Summary.Regions != 0 {
		t.Fatalf("expected empty report, got %+v", rep)
	}
	if rep.Narrative != "No regions have both a current and a prior-year forecast." {
		t.Fatalf("unexpected narrative %q", rep.Narrative)
	}
}

func TestClassifyThresholds(t *testing.T) {
	cases := []struct {
		p    float64
		want RiskLevel
	}{{0.7, RiskHigh}, {0.69, RiskMedium}, {0.3, RiskMedium}, {0.29, RiskLow}}
	for _, tc := range cases {
		if got := ClassifyRisk(tc.p); got != tc.want {
			t.Fatalf("ClassifyRisk(%v) = %s, want %s", tc.p, got, tc.want)
		}
	}

	ten, zero := 10.0, 0.0
	if ClassifyDirection(&ten) != DirectionIncreased {
		t.Fatalf("expected exactly +10 to be Increased")
	}
	if ClassifyDirection(&zero) != DirectionDecreased {
		t.Fatalf("expected no change to be Decreased")
	}
}
