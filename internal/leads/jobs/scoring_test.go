package jobs

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"

	"leadgen_backend/internal/leads/scoring"
)

var errNotFound = errors.New("not found")

type memLeads struct {
	leads  []scoring.Lead
	scores map[uuid.UUID]scoring.LeadScore
	failOn map[uuid.UUID]bool
	pages  int
}

func (m *memLeads) ListLeadsAfter(_ context.Context, cursorTime time.Time, cursorID uuid.UUID, limit int) ([]scoring.Lead, error) {
	m.pages++
	out := []scoring.Lead{}
	for _, l := range m.leads {
		after := l.CreatedAt.After(cursorTime) || (l.CreatedAt.Equal(cursorTime) && l.ID.String() > cursorID.String())
		if after && len(out) < limit {
			out = append(out, l)
		}
	}
	return out, nil
}

func (m *memLeads) GetLead(_ context.Context, id uuid.UUID) (scoring.Lead, error) {
	for _, l := range m.leads {
		if l.ID == id {
			return l, nil
		}
	}
	return scoring.Lead{}, errNotFound
}

func (m *memLeads) UpsertScore(_ context.Context, s scoring.LeadScore) error {
	if m.failOn[s.LeadID] {
		return errors.New("write failed")
	}
	m.scores[s.LeadID] = s
	return nil
}

type memOutcomes []scoring.ScoreOutcome

func (m memOutcomes) ListOutcomes(context.Context, time.Time) ([]scoring.ScoreOutcome, error) {
	return m, nil
}

type memCalibrations struct {
	stored []scoring.Calibration
}

func (m *memCalibrations) ReplaceCalibrations(_ context.Context, cals []scoring.Calibration) error {
	m.stored = cals
	return nil
}

func (m *memCalibrations) ListCalibrations(context.Context) ([]scoring.Calibration, error) {
	return m.stored, nil
}

type noProfiles struct{}

func (noProfiles) GetLatestCancellation(context.Context, uuid.UUID) (*scoring.CancellationProfile, error) {
	return nil, nil
}

type oneProfile struct{ profile scoring.CancellationProfile }

func (o oneProfile) GetLatestCancellation(_ context.Context, accountID uuid.UUID) (*scoring.CancellationProfile, error) {
	if accountID != o.profile.AccountID {
		return nil, nil
	}
	p := o.profile
	return &p, nil
}

func makeLeads(n int) []scoring.Lead {
	base := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	leads := make([]scoring.Lead, n)
	for i := range leads {
		leads[i] = scoring.Lead{
			ID:        uuid.New(),
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
			TradeTags: []string{"roofing"},
			Value:     25000,
			YearBuilt: 1990,
			OwnerKind: "individual",
			RegionID:  "tx-harris",
			State:     "TX",
		}
	}
	sort.Slice(leads, func(a, b int) bool { return leads[a].CreatedAt.Before(leads[b].CreatedAt) })
	return leads
}

func regionOutcomes(n int) memOutcomes {
	out := make(memOutcomes, n)
	for i := range out {
		score := float64(i * 100 / n)
		out[i] = scoring.ScoreOutcome{LeadID: uuid.New(), RegionID: "tx-harris", State: "TX", Score: score, Won: score >= 50}
	}
	return out
}

func TestRunScoresEveryLeadAcrossPages(t *testing.T) {
	leads := makeLeads(5)
	store := &memLeads{leads: leads, scores: map[uuid.UUID]scoring.LeadScore{}, failOn: map[uuid.UUID]bool{leads[2].ID: true}}
	cals := &memCalibrations{}
	engine := scoring.NewEngine(scoring.NewDecayScorer(nil, 90), scoring.NewPersonalizedAdjuster(noProfiles{}), nil, nil)
	job := NewScoringJob(store, regionOutcomes(25), cals, engine, nil, 2, nil)

	res, err := job.Run(context.Background())
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if res.Scored != 4 || res.Failed != 1 {
		t.Fatalf("expected 4 scored and 1 failed, got %+v", res)
	}
	if store.pages != 3 {
		t.Fatalf("expected 3 pages for 5 leads at batch 2, got %d", store.pages)
	}
	if res.Calibrations != 2 || len(cals.stored) != 2 {
		t.Fatalf("expected region and state curves, got %d (%d stored)", res.Calibrations, len(cals.stored))
	}

	s := store.scores[leads[0].ID]
	if s.CalibrationLevel != scoring.LevelRegion || s.CalibratedProbability == nil {
		t.Fatalf("expected region calibration, got %s", s.CalibrationLevel)
	}
	if s.PersonalizedAdjustment != 0 {
		t.Fatalf("batch scoring must not personalize, got %v", s.PersonalizedAdjustment)
	}
	if s.Version != scoring.ScoreVersion {
		t.Fatalf("expected version %s, got %s", scoring.ScoreVersion, s.Version)
	}
}

func TestRunWithoutOutcomesUsesIdentity(t *testing.T) {
	leads := makeLeads(1)
	store := &memLeads{leads: leads, scores: map[uuid.UUID]scoring.LeadScore{}}
	engine := scoring.NewEngine(nil, nil, nil, nil)
	job := NewScoringJob(store, nil, nil, engine, nil, 0, nil)

	if _, err := job.Run(context.Background()); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	s := store.scores[leads[0].ID]
	if s.CalibrationLevel != scoring.LevelNone || s.CalibratedProbability != nil {
		t.Fatalf("expected identity calibration, got %s", s.CalibrationLevel)
	}
}

func TestLoadCalibratorsRestoresCurves(t *testing.T) {
	leads := makeLeads(1)
	fitted := scoring.NewRegionCalibrator(0, 0).Fit(regionOutcomes(25), time.Now())
	engine := scoring.NewEngine(nil, nil, nil, nil)
	job := NewScoringJob(&memLeads{leads: leads}, nil, &memCalibrations{stored: fitted}, engine, nil, 0, nil)

	if err := job.LoadCalibrators(context.Background()); err != nil {
		t.Fatalf("load failed: %v", err)
	}
	s, err := job.ScoreForAccount(context.Background(), leads[0].ID, nil)
	if err != nil {
		t.Fatalf("score failed: %v", err)
	}
	if s.CalibrationLevel != scoring.LevelRegion {
		t.Fatalf("expected region curve after load, got %s", s.CalibrationLevel)
	}
}

func TestScoreForAccountPersonalizes(t *testing.T) {
	leads := makeLeads(1)
	account := uuid.New()
	profile := scoring.CancellationProfile{AccountID: account, PrimaryReason: "poor_lead_quality"}
	engine := scoring.NewEngine(nil, scoring.NewPersonalizedAdjuster(oneProfile{profile: profile}), nil, nil)
	job := NewScoringJob(&memLeads{leads: leads}, nil, nil, engine, nil, 0, nil)

	withAccount, err := job.ScoreForAccount(context.Background(), leads[0].ID, &account)
	if err != nil {
		t.Fatalf("score failed: %v", err)
	}
	without, _ := job.ScoreForAccount(context.Background(), leads[0].ID, nil)
	if withAccount.PersonalizedAdjustment >= 0 || withAccount.FinalScore >= without.FinalScore {
		t.Fatalf("expected negative personalization, got %v (final %v vs %v)",
			withAccount.PersonalizedAdjustment, withAccount.FinalScore, without.FinalScore)
	}

	if _, err := job.ScoreForAccount(context.Background(), uuid.New(), &account); !errors.Is(err, errNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
