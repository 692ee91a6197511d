package warp

// DefaultDegeneracyTol is the relative size, against the control point coordinates,
// below which centred offsets are treated as rounding noise
const DefaultDegeneracyTol = 1e-12

// singularRatio bounds |det A| / trace(A)² for the affine normal matrix.
// A is symmetric positive semi-definite, so the ratio lies in [0, 1/4].
const singularRatio = 1e-10

// Solver fits the locally optimal transform of one family at every pixel and applies it.
//
// Solve writes the mapped coordinate of pixel i to dst[i], using that pixel's weights
// w.Row(i), centroids pstar[i] and qstar[i] and query v[i]. It returns the number of
// pixels whose fit was degenerate; those pixels get the identity linear part in the
// centroid frame, v - pstar + qstar. A query that coincides with pstar maps to qstar
// whatever the linear part, so it is never counted.
type Solver interface {
	Solve(dst []Point, w *WeightTensor, p, q, pstar, qstar, v []Point) int
}

// SolverFor returns the solver for a variant, using tol as its relative degeneracy threshold.
// A non-positive tol selects DefaultDegeneracyTol.
func SolverFor(variant Variant, tol float64) (Solver, error) {
	if tol <= 0 {
		tol = DefaultDegeneracyTol
	}
	switch variant {
	case Affine:
		return AffineSolver{Tol: tol}, nil
	case Similarity:
		return SimilaritySolver{Tol: tol}, nil
	case Rigid:
		return RigidSolver{Tol: tol}, nil
	default:
		return nil, invalidf("unknown variant %d", int(variant))
	}
}

// noiseFloor returns tol² · Σ w_j |x_j|², the weighted spread Σ w_j |x_j - xstar|²
// that rounding of the centroid alone can produce. It scales with the coordinate
// units and with the weight mass, like the spread it is compared to.
func noiseFloor(weights []float64, x []Point, tol float64) float64 {
	var s float64
	for j, wj := range weights {
		s += wj * (x[j].Row*x[j].Row + x[j].Col*x[j].Col)
	}
	return tol * tol * s
}

// atCentroid reports whether v needs no linear part at all
func atCentroid(v, pstar Point) bool {
	return v == pstar
}

// fallback is the degenerate-fit mapping: translate by the centroid offset only
func fallback(v, pstar, qstar Point) Point {
	return v.Sub(pstar).Add(qstar)
}
