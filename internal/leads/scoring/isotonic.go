package scoring

import (
	"sort"
)

// Isotonic is a non-decreasing step function fitted by pool-adjacent-violators.
// Block i covers scores from Lo[i] up to the next block and maps them to Values[i].
type Isotonic struct {
	Lo     []float64 `json:"lo"`
	Values []float64 `json:"values"`
}

// FitIsotonic fits success rate against score. Each y is 0 or 1.
func FitIsotonic(x, y []float64) Isotonic {
	n := len(x)
	if n == 0 {
		return Isotonic{}
	}
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return x[idx[a]] < x[idx[b]] })

	type block struct {
		lo     float64
		sum    float64
		weight float64
	}
	var blocks []block
	for i := 0; i < n; {
		// tied scores start out pooled
		j := i
		b := block{lo: x[idx[i]]}
		for j < n && x[idx[j]] == x[idx[i]] {
			b.sum += y[idx[j]]
			b.weight++
			j++
		}
		blocks = append(blocks, b)
		for len(blocks) > 1 {
			last, prev := blocks[len(blocks)-1], blocks[len(blocks)-2]
			if prev.sum/prev.weight <= last.sum/last.weight {
				break
			}
			blocks = blocks[:len(blocks)-2]
			blocks = append(blocks, block{lo: prev.lo, sum: prev.sum + last.sum, weight: prev.weight + last.weight})
		}
		i = j
	}

	iso := Isotonic{Lo: make([]float64, len(blocks)), Values: make([]float64, len(blocks))}
	for i, b := range blocks {
		iso.Lo[i] = b.lo
		iso.Values[i] = b.sum / b.weight
	}
	return iso
}

// Predict returns the fitted rate for score. Scores below the first block take
// the first block's value.
func (f Isotonic) Predict(score float64) float64 {
	if len(f.Values) == 0 {
		return 0
	}
	i := sort.Search(len(f.Lo), func(i int) bool { return f.Lo[i] > score }) - 1
	if i < 0 {
		i = 0
	}
	return f.Values[i]
}
