package model

import (
	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/stat"
)

// AUC is the area under the ROC curve of scores against binary labels.
// A single-class label set has no defined AUC; ok is false.
func AUC(scores, y []float64) (auc float64, ok bool) {
	if !bothClasses(y) {
		return 0, false
	}
	s := append([]float64(nil), scores...)
	classes := make([]bool, len(y))
	for i, v := range y {
		classes[i] = v > 0.5
	}
	stat.SortWeightedLabeled(s, classes, nil)
	tpr, fpr, _ := stat.ROC(nil, s, classes, nil)
	return integrate.Trapezoidal(fpr, tpr), true
}

// Brier is the mean squared error of probabilities against labels.
func Brier(probs, y []float64) float64 {
	if len(y) == 0 {
		return 0
	}
	var sum float64
	for i, p := range probs {
		d := p - y[i]
		sum += d * d
	}
	return sum / float64(len(y))
}

// Classification holds precision, recall and F1 at a fixed decision threshold.
type Classification struct {
	Precision float64
	Recall    float64
	F1        float64
}

// Classify scores predictions at threshold. Undefined ratios are 0.
func Classify(probs, y []float64, threshold float64) Classification {
	var tp, fp, fn float64
	for i, p := range probs {
		predicted := p >= threshold
		actual := y[i] > 0.5
		switch {
		case predicted && actual:
			tp++
		case predicted && !actual:
			fp++
		case !predicted && actual:
			fn++
		}
	}
	var c Classification
	if tp+fp > 0 {
		c.Precision = tp / (tp + fp)
	}
	if tp+fn > 0 {
		c.Recall = tp / (tp + fn)
	}
	if c.Precision+c.Recall > 0 {
		c.F1 = 2 * c.Precision * c.Recall / (c.Precision + c.Recall)
	}
	return c
}

func bothClasses(y []float64) bool {
	var pos, neg bool
	for _, v := range y {
		if v > 0.5 {
			pos = true
		} else {
			neg = true
		}
		if pos && neg {
			return true
		}
	}
	return false
}
