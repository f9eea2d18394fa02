package forecaster

import (
	"fmt"
	"time"

	"leadgen_backend/internal/forecasting/domain"
)

// SelectionPolicy picks the model used when a prediction names no version.
type SelectionPolicy interface {
	Name() string
	Select(models []domain.TrainedModel) (domain.TrainedModel, bool)
}

// MostRecentPolicy picks the model with the newest version timestamp. Models
// trained in the same run are ordered gradient_boost, lightgbm, xgboost.
type MostRecentPolicy struct{}

func (MostRecentPolicy) Name() string { return "most_recent" }

func (MostRecentPolicy) Select(models []domain.TrainedModel) (domain.TrainedModel, bool) {
	return pick(models, func(a, b domain.TrainedModel) bool {
		ta, tb := trainedAt(a), trainedAt(b)
		if !ta.Equal(tb) {
			return ta.After(tb)
		}
		return algorithmRank(a.Algorithm) < algorithmRank(b.Algorithm)
	})
}

// BestCVAUCPolicy picks the model with the highest cross-validated AUC,
// breaking ties by recency.
type BestCVAUCPolicy struct{}

func (BestCVAUCPolicy) Name() string { return "best_cv_auc" }

func (BestCVAUCPolicy) Select(models []domain.TrainedModel) (domain.TrainedModel, bool) {
	return pick(models, func(a, b domain.TrainedModel) bool {
		if a.Metrics.CVAUCMean != b.Metrics.CVAUCMean {
			return a.Metrics.CVAUCMean > b.Metrics.CVAUCMean
		}
		ta, tb := trainedAt(a), trainedAt(b)
		if !ta.Equal(tb) {
			return ta.After(tb)
		}
		return algorithmRank(a.Algorithm) < algorithmRank(b.Algorithm)
	})
}

// PolicyByName resolves a configured policy name.
func PolicyByName(name string) (SelectionPolicy, error) {
	switch name {
	case "", "most_recent":
		return MostRecentPolicy{}, nil
	case "best_cv_auc":
		return BestCVAUCPolicy{}, nil
	default:
		return nil, fmt.Errorf("unknown model selection policy %q", name)
	}
}

func pick(models []domain.TrainedModel, better func(a, b domain.TrainedModel) bool) (domain.TrainedModel, bool) {
	var best domain.TrainedModel
	found := false
	for _, m := range models {
		if !m.Algorithm.Valid() {
			continue
		}
		if !found || better(m, best) {
			best, found = m, true
		}
	}
	return best, found
}

func trainedAt(m domain.TrainedModel) time.Time {
	if info, err := domain.ParseVersion(m.ModelVersion); err == nil {
		return info.TrainedAt
	}
	return m.TrainedAt
}

func algorithmRank(a domain.Algorithm) int {
	for i, known := range domain.Algorithms {
		if a == known {
			return i
		}
	}
	return len(domain.Algorithms)
}
