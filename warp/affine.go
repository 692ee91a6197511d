package warp

import "math"

// AffineSolver fits a general 2x2 linear map per pixel.
//
// With phat_j = p_j - pstar and qhat_j = q_j - qstar as row vectors it solves
// M = A⁻¹B for A = Σ w_j phat_jᵀ phat_j and B = Σ w_j phat_jᵀ qhat_j, then maps
// v to (v - pstar) M + qstar.
type AffineSolver struct {
	Tol float64
}

// mat2 is a row-major 2x2 matrix
type mat2 struct {
	a, b float64
	c, d float64
}

func (m mat2) det() float64 {
	return m.a*m.d - m.b*m.c
}

// inverse returns the closed-form inverse of a symmetric positive semi-definite m,
// and false when its trace is at or below floor or it is singular relative to its scale
func (m mat2) inverse(floor float64) (mat2, bool) {
	trace := m.a + m.d
	det := m.det()
	if !(trace > floor) || math.Abs(det) <= singularRatio*trace*trace {
		return mat2{}, false
	}
	inv := 1 / det
	return mat2{
		a: m.d * inv, b: -m.b * inv,
		c: -m.c * inv, d: m.a * inv,
	}, true
}

func (m mat2) mul(n mat2) mat2 {
	return mat2{
		a: m.a*n.a + m.b*n.c, b: m.a*n.b + m.b*n.d,
		c: m.c*n.a + m.d*n.c, d: m.c*n.b + m.d*n.d,
	}
}

// apply returns the row vector x multiplied on the right by m
func (m mat2) apply(x Point) Point {
	return Point{
		Row: x.Row*m.a + x.Col*m.c,
		Col: x.Row*m.b + x.Col*m.d,
	}
}

// affineNormal accumulates the weighted normal matrix A and cross term B for one pixel
func affineNormal(weights []float64, p, q []Point, pstar, qstar Point) (A, B mat2) {
	for j, wj := range weights {
		ph := p[j].Sub(pstar)
		qh := q[j].Sub(qstar)

		A.a += wj * ph.Row * ph.Row
		A.b += wj * ph.Row * ph.Col
		A.d += wj * ph.Col * ph.Col

		B.a += wj * ph.Row * qh.Row
		B.b += wj * ph.Row * qh.Col
		B.c += wj * ph.Col * qh.Row
		B.d += wj * ph.Col * qh.Col
	}
	A.c = A.b
	return A, B
}

// Solve implements Solver
func (s AffineSolver) Solve(dst []Point, w *WeightTensor, p, q, pstar, qstar, v []Point) int {
	degenerate := 0
	for i := range dst {
		if atCentroid(v[i], pstar[i]) {
			dst[i] = qstar[i]
			continue
		}
		weights := w.Row(i)
		A, B := affineNormal(weights, p, q, pstar[i], qstar[i])
		inv, ok := A.inverse(noiseFloor(weights, p, s.Tol))
		if !ok {
			dst[i] = fallback(v[i], pstar[i], qstar[i])
			degenerate++
			continue
		}
		M := inv.mul(B)
		dst[i] = M.apply(v[i].Sub(pstar[i])).Add(qstar[i])
	}
	return degenerate
}
