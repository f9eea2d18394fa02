package model

import (
	"sort"
)

// Node is one node of a regression tree. Leaves carry Value; internal nodes
// route x[Feature] <= Threshold to Left and everything else to Right.
type Node struct {
	Leaf      bool    `json:"leaf"`
	Value     float64 `json:"value,omitempty"`
	Feature   int     `json:"feature,omitempty"`
	Threshold float64 `json:"threshold,omitempty"`
	Left      int     `json:"left,omitempty"`
	Right     int     `json:"right,omitempty"`
}

// Tree is a flattened regression tree rooted at Nodes[0].
type Tree struct {
	Nodes []Node `json:"nodes"`
}

// Predict returns the leaf value reached by x.
func (t Tree) Predict(x []float64) float64 {
	i := 0
	for {
		n := t.Nodes[i]
		if n.Leaf {
			return n.Value
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// treeParams bound how a single tree grows.
type treeParams struct {
	maxDepth       int // 0 = unlimited
	maxLeaves      int // 0 = unlimited
	minSamplesLeaf int
	minChildWeight float64
	lambda         float64
}

type split struct {
	feature   int
	threshold float64
	gain      float64
	left      []int
	right     []int
}

// candidate is a leaf that may still be split.
type candidate struct {
	node  int
	rows  []int
	depth int
	best  *split
}

// growTree fits one Newton-step tree to gradients g and hessians h over rows.
// The highest-gain leaf is expanded first, so a leaf cap gives leaf-wise growth
// and a depth cap alone gives the same tree as level-by-level growth.
// importance accumulates split gain per feature.
func growTree(X [][]float64, g, h []float64, rows []int, p treeParams, importance []float64) Tree {
	t := Tree{Nodes: []Node{{Leaf: true, Value: leafValue(g, h, rows, p.lambda)}}}
	open := []candidate{{node: 0, rows: rows, depth: 0}}
	open[0].best = bestSplit(X, g, h, rows, p)
	leaves := 1

	for len(open) > 0 {
		pick := -1
		for i, c := range open {
			if c.best == nil {
				continue
			}
			if pick < 0 || c.best.gain > open[pick].best.gain {
				pick = i
			}
		}
		if pick < 0 || (p.maxLeaves > 0 && leaves >= p.maxLeaves) {
			break
		}

		c := open[pick]
		open = append(open[:pick], open[pick+1:]...)
		s := c.best
		importance[s.feature] += s.gain

		left := len(t.Nodes)
		right := left + 1
		t.Nodes = append(t.Nodes,
			Node{Leaf: true, Value: leafValue(g, h, s.left, p.lambda)},
			Node{Leaf: true, Value: leafValue(g, h, s.right, p.lambda)},
		)
		t.Nodes[c.node] = Node{Feature: s.feature, Threshold: s.threshold, Left: left, Right: right}
		leaves++

		for _, child := range []candidate{{node: left, rows: s.left, depth: c.depth + 1}, {node: right, rows: s.right, depth: c.depth + 1}} {
			if p.maxDepth > 0 && child.depth >= p.maxDepth {
				continue
			}
			child.best = bestSplit(X, g, h, child.rows, p)
			if child.best != nil {
				open = append(open, child)
			}
		}
	}
	return t
}

func leafValue(g, h []float64, rows []int, lambda float64) float64 {
	var G, H float64
	for _, r := range rows {
		G += g[r]
		H += h[r]
	}
	if H+lambda == 0 {
		return 0
	}
	return -G / (H + lambda)
}

// bestSplit scans every feature for the threshold with the largest positive
// gain that respects the leaf constraints. Returns nil when none exists.
func bestSplit(X [][]float64, g, h []float64, rows []int, p treeParams) *split {
	n := len(rows)
	minLeaf := max(1, p.minSamplesLeaf)
	if n < 2*minLeaf {
		return nil
	}

	var G, H float64
	for _, r := range rows {
		G += g[r]
		H += h[r]
	}
	parent := G * G / (H + p.lambda)

	var best *split
	sorted := make([]int, n)
	features := len(X[rows[0]])
	for f := 0; f < features; f++ {
		copy(sorted, rows)
		sort.SliceStable(sorted, func(a, b int) bool { return X[sorted[a]][f] < X[sorted[b]][f] })

		var GL, HL float64
		for i := 0; i < n-1; i++ {
			r := sorted[i]
			GL += g[r]
			HL += h[r]
			cur, next := X[r][f], X[sorted[i+1]][f]
			if cur == next {
				continue
			}
			nl := i + 1
			if nl < minLeaf || n-nl < minLeaf {
				continue
			}
			GR, HR := G-GL, H-HL
			if HL < p.minChildWeight || HR < p.minChildWeight {
				continue
			}
			gain := 0.5 * (GL*GL/(HL+p.lambda) + GR*GR/(HR+p.lambda) - parent)
			if gain <= 1e-12 || (best != nil && gain <= best.gain) {
				continue
			}
			best = &split{feature: f, threshold: (cur + next) / 2, gain: gain}
		}
	}
	if best == nil {
		return nil
	}

	for _, r := range rows {
		if X[r][best.feature] <= best.threshold {
			best.left = append(best.left, r)
		} else {
			best.right = append(best.right, r)
		}
	}
	return best
}
