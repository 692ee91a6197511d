package warp

import "math"

// SimilaritySolver fits a rotation with uniform scale per pixel:
// factor = Σ conj(phat_j)·w_j·qhat_j / Σ w_j |phat_j|².
type SimilaritySolver struct {
	Tol float64
}

// RigidSolver fits a pure rotation per pixel: the similarity numerator normalized to unit length.
type RigidSolver struct {
	Tol float64
}

// rotationNumerator returns Mnum = Σ conj(phat_j)·w_j·qhat_j together with the
// spreads mu = Σ w_j |phat_j|² and nu = Σ w_j |qhat_j|²
func rotationNumerator(weights []float64, p, q []Point, pstar, qstar Point) (num Vec, mu, nu float64) {
	for j, wj := range weights {
		ph := vecOf(p[j].Sub(pstar))
		qh := vecOf(q[j].Sub(qstar))
		t := ph.Conj().Mul(qh).Scale(wj)
		num.A += t.A
		num.B += t.B
		mu += wj * ph.Norm2()
		nu += wj * qh.Norm2()
	}
	return num, mu, nu
}

// similarityFactor returns Mnum/mu, or false when mu is at or below floor
func similarityFactor(num Vec, mu, floor float64) (Vec, bool) {
	if !(mu > floor) {
		return Vec{}, false
	}
	return num.Scale(1 / mu), true
}

// rigidFactor returns Mnum/|Mnum|, or false when |Mnum| is at or below tol times
// its Cauchy-Schwarz bound √(mu·nu)
func rigidFactor(num Vec, mu, nu, tol float64) (Vec, bool) {
	abs := num.Abs()
	if !(abs > tol*math.Sqrt(mu*nu)) {
		return Vec{}, false
	}
	return num.Scale(1 / abs), true
}

// Solve implements Solver
func (s SimilaritySolver) Solve(dst []Point, w *WeightTensor, p, q, pstar, qstar, v []Point) int {
	degenerate := 0
	for i := range dst {
		if atCentroid(v[i], pstar[i]) {
			dst[i] = qstar[i]
			continue
		}
		weights := w.Row(i)
		num, mu, _ := rotationNumerator(weights, p, q, pstar[i], qstar[i])
		f, ok := similarityFactor(num, mu, noiseFloor(weights, p, s.Tol))
		if !ok {
			dst[i] = fallback(v[i], pstar[i], qstar[i])
			degenerate++
			continue
		}
		dst[i] = vecOf(v[i].Sub(pstar[i])).Mul(f).Point().Add(qstar[i])
	}
	return degenerate
}

// Solve implements Solver
func (s RigidSolver) Solve(dst []Point, w *WeightTensor, p, q, pstar, qstar, v []Point) int {
	degenerate := 0
	for i := range dst {
		if atCentroid(v[i], pstar[i]) {
			dst[i] = qstar[i]
			continue
		}
		weights := w.Row(i)
		num, mu, nu := rotationNumerator(weights, p, q, pstar[i], qstar[i])
		f, ok := rigidFactor(num, mu, nu, s.Tol)
		if !ok || !(mu > noiseFloor(weights, p, s.Tol)) {
			dst[i] = fallback(v[i], pstar[i], qstar[i])
			degenerate++
			continue
		}
		dst[i] = vecOf(v[i].Sub(pstar[i])).Mul(f).Point().Add(qstar[i])
	}
	return degenerate
}
