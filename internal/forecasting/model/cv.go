package model

// Fold is one chronological train/test partition of sample indices.
type Fold struct {
	Train []int
	Test  []int
}

// TimeSeriesSplit returns k expanding-window folds over n time-ordered samples.
// Each test block has n/(k+1) samples and always follows its training block.
// Returns nil when the series is too short to give every block a sample.
func TimeSeriesSplit(n, k int) []Fold {
	if k < 1 || n < k+1 {
		return nil
	}
	testSize := n / (k + 1)
	folds := make([]Fold, 0, k)
	for i := 0; i < k; i++ {
		testStart := n - (k-i)*testSize
		f := Fold{Train: make([]int, testStart), Test: make([]int, testSize)}
		for j := range f.Train {
			f.Train[j] = j
		}
		for j := range f.Test {
			f.Test[j] = testStart + j
		}
		folds = append(folds, f)
	}
	return folds
}

func subset(X [][]float64, y []float64, idx []int) ([][]float64, []float64) {
	xs := make([][]float64, len(idx))
	ys := make([]float64, len(idx))
	for i, j := range idx {
		xs[i] = X[j]
		ys[i] = y[j]
	}
	return xs, ys
}
