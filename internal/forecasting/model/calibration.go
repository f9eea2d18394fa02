package model

import (
	"math"
)

// Platt maps a raw margin f to sigmoid(A*f + B).
type Platt struct {
	A float64 `json:"a"`
	B float64 `json:"b"`
}

// Apply returns the calibrated probability for margin f.
func (p Platt) Apply(f float64) float64 {
	return sigmoid(p.A*f + p.B)
}

// fitPlatt fits sigmoid calibration with Platt's smoothed targets using Newton
// steps on the log loss. ok is false when labels hold a single class.
func fitPlatt(margins, y []float64) (Platt, bool) {
	var pos, neg float64
	for _, v := range y {
		if v > 0.5 {
			pos++
		} else {
			neg++
		}
	}
	if pos == 0 || neg == 0 {
		return Platt{A: 1}, false
	}
	hiTarget := (pos + 1) / (pos + 2)
	loTarget := 1 / (neg + 2)
	t := make([]float64, len(y))
	for i, v := range y {
		if v > 0.5 {
			t[i] = hiTarget
		} else {
			t[i] = loTarget
		}
	}

	a, b := 0.0, math.Log((pos+1)/(neg+1))
	const sigma = 1e-12
	for iter := 0; iter < 100; iter++ {
		var gA, gB, hAA, hAB, hBB float64
		for i, f := range margins {
			p := sigmoid(a*f + b)
			d := p - t[i]
			w := math.Max(p*(1-p), sigma)
			gA += d * f
			gB += d
			hAA += w * f * f
			hAB += w * f
			hBB += w
		}
		hAA += sigma
		hBB += sigma
		det := hAA*hBB - hAB*hAB
		if det == 0 {
			break
		}
		dA := (hBB*gA - hAB*gB) / det
		dB := (hAA*gB - hAB*gA) / det
		a -= dA
		b -= dB
		if math.Abs(dA) < 1e-10 && math.Abs(dB) < 1e-10 {
			break
		}
	}
	if math.IsNaN(a) || math.IsNaN(b) || math.IsInf(a, 0) || math.IsInf(b, 0) {
		return Platt{A: 1}, false
	}
	return Platt{A: a, B: b}, true
}
