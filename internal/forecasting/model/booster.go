package model

import (
	"math"
)

// BoosterParams configure a gradient-boosted tree ensemble on logistic loss.
type BoosterParams struct {
	Rounds         int     `json:"rounds"`
	LearningRate   float64 `json:"learningRate"`
	MaxDepth       int     `json:"maxDepth"`
	MaxLeaves      int     `json:"maxLeaves"`
	MinSamplesLeaf int     `json:"minSamplesLeaf"`
	MinChildWeight float64 `json:"minChildWeight"`
	Lambda         float64 `json:"lambda"`
}

// Ensemble is a fitted booster. Leaf values are stored already shrunk by the learning rate.
type Ensemble struct {
	BaseScore float64 `json:"baseScore"`
	Trees     []Tree  `json:"trees"`
}

// Raw returns the log-odds margin for x.
func (e *Ensemble) Raw(x []float64) float64 {
	out := e.BaseScore
	for _, t := range e.Trees {
		out += t.Predict(x)
	}
	return out
}

// fitEnsemble boosts trees on X, y (0/1 labels). importance receives the
// accumulated split gain per feature and must have one slot per column.
func fitEnsemble(X [][]float64, y []float64, p BoosterParams, importance []float64) *Ensemble {
	n := len(y)
	var pos float64
	for _, v := range y {
		pos += v
	}
	mean := clampProb(pos / float64(n))
	ens := &Ensemble{BaseScore: math.Log(mean / (1 - mean))}

	margin := make([]float64, n)
	for i := range margin {
		margin[i] = ens.BaseScore
	}
	g := make([]float64, n)
	h := make([]float64, n)
	rows := make([]int, n)
	for i := range rows {
		rows[i] = i
	}
	tp := treeParams{
		maxDepth:       p.MaxDepth,
		maxLeaves:      p.MaxLeaves,
		minSamplesLeaf: p.MinSamplesLeaf,
		minChildWeight: p.MinChildWeight,
		lambda:         p.Lambda,
	}

	for round := 0; round < p.Rounds; round++ {
		for i := range margin {
			prob := sigmoid(margin[i])
			g[i] = prob - y[i]
			h[i] = math.Max(prob*(1-prob), 1e-16)
		}
		tree := growTree(X, g, h, rows, tp, importance)
		for j := range tree.Nodes {
			if tree.Nodes[j].Leaf {
				tree.Nodes[j].Value *= p.LearningRate
			}
		}
		for i := range margin {
			margin[i] += tree.Predict(X[i])
		}
		ens.Trees = append(ens.Trees, tree)
	}
	return ens
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	ez := math.Exp(z)
	return ez / (1 + ez)
}

func clampProb(p float64) float64 {
	const eps = 1e-6
	return math.Min(math.Max(p, eps), 1-eps)
}
