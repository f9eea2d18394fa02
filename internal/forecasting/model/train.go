// Package model trains and serializes the per-region surge classifiers.
package model

import (
	"fmt"

	"gonum.org/v1/gonum/stat"

	"leadgen_backend/internal/forecasting/domain"
)

// DefaultCVSplits is the number of chronological folds used for validation.
const DefaultCVSplits = 5

type recipe struct {
	params    BoosterParams
	scale     bool
	calibrate bool
}

var recipes = map[domain.Algorithm]recipe{
	domain.AlgorithmGradientBoost: {
		params:    BoosterParams{Rounds: 100, LearningRate: 0.1, MaxDepth: 3, MinSamplesLeaf: 1, MinChildWeight: 1e-3},
		scale:     true,
		calibrate: true,
	},
	domain.AlgorithmLightGBM: {
		params: BoosterParams{Rounds: 200, LearningRate: 0.05, MaxLeaves: 31, MinSamplesLeaf: 20, MinChildWeight: 1e-3},
	},
	domain.AlgorithmXGBoost: {
		params: BoosterParams{Rounds: 100, LearningRate: 0.1, MaxDepth: 6, MinSamplesLeaf: 1, MinChildWeight: 1, Lambda: 1},
	},
}

// Result is a fitted artifact with its diagnostics.
type Result struct {
	Artifact    *Artifact
	Metrics     domain.ModelMetrics
	Calibration domain.CalibrationInfo
}

// Train fits algo on time-ordered samples X, y (0/1). Validation uses
// cvSplits expanding-window folds; a fold whose test block holds a single
// class is not scored.
func Train(algo domain.Algorithm, columns []string, X [][]float64, y []float64, cvSplits int) (*Result, error) {
	r, ok := recipes[algo]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedAlgorithm, algo)
	}
	if len(X) != len(y) || len(X) == 0 {
		return nil, fmt.Errorf("%w: %d rows for %d labels", domain.ErrInsufficientData, len(X), len(y))
	}
	if len(X[0]) != len(columns) {
		return nil, fmt.Errorf("expected %d feature columns, got %d", len(columns), len(X[0]))
	}
	if !bothClasses(y) {
		return nil, fmt.Errorf("%w: labels contain a single class", domain.ErrInsufficientData)
	}
	if cvSplits < 2 {
		cvSplits = DefaultCVSplits
	}

	var foldAUCs, oofMargins, oofLabels []float64
	for _, fold := range TimeSeriesSplit(len(y), cvSplits) {
		trainX, trainY := subset(X, y, fold.Train)
		if !bothClasses(trainY) {
			continue
		}
		testX, testY := subset(X, y, fold.Test)
		m := fit(r, trainX, trainY, make([]float64, len(columns)))

		margins := make([]float64, len(testX))
		for i, x := range testX {
			margins[i] = m.margin(x)
		}
		if auc, ok := AUC(margins, testY); ok {
			foldAUCs = append(foldAUCs, auc)
		}
		oofMargins = append(oofMargins, margins...)
		oofLabels = append(oofLabels, testY...)
	}

	importance := make([]float64, len(columns))
	final := fit(r, X, y, importance)
	artifact := &Artifact{
		Algorithm:      algo,
		FeatureColumns: append([]string(nil), columns...),
		Params:         r.params,
		Scaler:         final.scaler,
		Ensemble:       final.ensemble,
	}

	calibration := domain.CalibrationInfo{Method: "none"}
	if r.calibrate {
		if platt, ok := fitPlatt(oofMargins, oofLabels); ok {
			artifact.Calibration = &platt
			calibration = domain.CalibrationInfo{Method: "sigmoid", A: platt.A, B: platt.B, Folds: cvSplits}
		}
	}

	probs := make([]float64, len(X))
	for i, x := range X {
		p, err := artifact.PredictProba(x)
		if err != nil {
			return nil, err
		}
		probs[i] = p
	}

	metrics := domain.ModelMetrics{
		CVFoldsScored:     len(foldAUCs),
		TrainBrier:        Brier(probs, y),
		FeatureImportance: normalizeImportance(columns, importance),
		Samples:           len(y),
	}
	if len(foldAUCs) > 0 {
		metrics.CVAUCMean, metrics.CVAUCStd = stat.PopMeanStdDev(foldAUCs, nil)
	}
	metrics.TrainAUC, _ = AUC(probs, y)
	cls := Classify(probs, y, 0.5)
	metrics.TrainPrecision, metrics.TrainRecall, metrics.TrainF1 = cls.Precision, cls.Recall, cls.F1
	for _, v := range y {
		if v > 0.5 {
			metrics.PositiveSamples++
		}
	}

	return &Result{Artifact: artifact, Metrics: metrics, Calibration: calibration}, nil
}

type fitted struct {
	scaler   *StandardScaler
	ensemble *Ensemble
}

func (f fitted) margin(x []float64) float64 {
	if f.scaler != nil {
		x = f.scaler.Transform(x)
	}
	return f.ensemble.Raw(x)
}

func fit(r recipe, X [][]float64, y []float64, importance []float64) fitted {
	var out fitted
	if r.scale {
		out.scaler = fitScaler(X)
		X = out.scaler.transformAll(X)
	}
	out.ensemble = fitEnsemble(X, y, r.params, importance)
	return out
}

func normalizeImportance(columns []string, gains []float64) map[string]float64 {
	var total float64
	for _, g := range gains {
		total += g
	}
	out := make(map[string]float64, len(columns))
	for i, name := range columns {
		if total > 0 {
			out[name] = gains[i] / total
		} else {
			out[name] = 0
		}
	}
	return out
}
