package labeling

import "sort"

// PercentileRanks returns, for each value, its average-tie rank divided by the
// series length, scaled to (0, 100]. The largest value always ranks 100.
func PercentileRanks(values []float64) []float64 {
	n := len(values)
	ranks := make([]float64, n)
	if n == 0 {
		return ranks
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return values[order[a]] < values[order[b]]
	})

	for i := 0; i < n; {
		j := i
		for j+1 < n && values[order[j+1]] == values[order[i]] {
			j++
		}
		// positions i..j (0-based) share the mean of ranks i+1..j+1
		avg := float64(i+j+2) / 2
		for k := i; k <= j; k++ {
			ranks[order[k]] = avg / float64(n) * 100
		}
		i = j + 1
	}
	return ranks
}
