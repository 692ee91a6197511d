package warp

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// solveAt runs the weight, centroid and solver pipeline for a single query point
func solveAt(t *testing.T, s Solver, v Point, p, q []Point, alpha float64) (Point, int) {
	t.Helper()
	w := ComputeWeights([]Point{v}, p, alpha, DefaultEps)
	pstar := Centroids(w, p)
	qstar := Centroids(w, q)
	dst := make([]Point, 1)
	n := s.Solve(dst, w, p, q, pstar, qstar, []Point{v})
	return dst[0], n
}

// affineReference solves the same weighted least squares with gonum's dense solver
func affineReference(t *testing.T, v Point, p, q []Point, alpha float64) Point {
	t.Helper()
	w := ComputeWeights([]Point{v}, p, alpha, DefaultEps)
	pstar := Centroids(w, p)[0]
	qstar := Centroids(w, q)[0]

	A := mat.NewDense(2, 2, nil)
	B := mat.NewDense(2, 2, nil)
	for j, wj := range w.Row(0) {
		ph := mat.NewDense(1, 2, []float64{p[j].Row - pstar.Row, p[j].Col - pstar.Col})
		qh := mat.NewDense(1, 2, []float64{q[j].Row - qstar.Row, q[j].Col - qstar.Col})

		var outer mat.Dense
		outer.Mul(ph.T(), ph)
		outer.Scale(wj, &outer)
		A.Add(A, &outer)

		outer.Mul(ph.T(), qh)
		outer.Scale(wj, &outer)
		B.Add(B, &outer)
	}

	var M mat.Dense
	require.NoError(t, M.Solve(A, B))

	x := mat.NewDense(1, 2, []float64{v.Row - pstar.Row, v.Col - pstar.Col})
	var out mat.Dense
	out.Mul(x, &M)
	return Point{Row: out.At(0, 0) + qstar.Row, Col: out.At(0, 1) + qstar.Col}
}

func TestAffineSolver_MatchesDenseSolve(t *testing.T) {
	p := []Point{{1, 2}, {9, 3}, {4, 11}, {12, 12}, {6, 6}}
	q := []Point{{2, 2}, {10, 5}, {3, 12}, {11, 14}, {6, 7}}
	s := AffineSolver{Tol: DefaultDegeneracyTol}

	for _, alpha := range []float64{0.5, 1, 2} {
		for _, v := range []Point{{0, 0}, {5, 5}, {7.5, 2.25}, {13, 1}, {20, 20}} {
			got, n := solveAt(t, s, v, p, q, alpha)
			require.Equal(t, 0, n)
			want := affineReference(t, v, p, q, alpha)
			assert.InDelta(t, want.Row, got.Row, 1e-9, "alpha=%v v=%v", alpha, v)
			assert.InDelta(t, want.Col, got.Col, 1e-9, "alpha=%v v=%v", alpha, v)
		}
	}
}

func TestAffineSolver_ReproducesGlobalAffine(t *testing.T) {
	// q = p·M + t for a fixed M, so the best local fit is that map everywhere
	M := mat2{a: 1.2, b: 0.3, c: -0.4, d: 0.9}
	shift := Point{Row: 2, Col: -1}
	p := []Point{{0, 0}, {10, 0}, {0, 10}, {7, 3}}
	q := make([]Point, len(p))
	for i, pi := range p {
		q[i] = M.apply(pi).Add(shift)
	}

	for _, v := range []Point{{1, 1}, {5, 8}, {-3, 14}} {
		got, n := solveAt(t, AffineSolver{Tol: DefaultDegeneracyTol}, v, p, q, 1)
		require.Equal(t, 0, n)
		assert.True(t, pointsEqualTol(M.apply(v).Add(shift), got, 1e-9), "v=%v got %v", v, got)
	}
}

func TestSimilaritySolver_ReproducesGlobalSimilarity(t *testing.T) {
	theta, scale := 0.4, 1.7
	f := Vec{scale * math.Cos(theta), scale * math.Sin(theta)}
	shift := Point{Row: -3, Col: 5}
	p := []Point{{0, 0}, {10, 2}, {3, 9}}
	q := make([]Point, len(p))
	for i, pi := range p {
		q[i] = vecOf(pi).Mul(f).Point().Add(shift)
	}

	for _, v := range []Point{{2, 2}, {8, 8}, {-5, 1}} {
		got, n := solveAt(t, SimilaritySolver{Tol: DefaultDegeneracyTol}, v, p, q, 1)
		require.Equal(t, 0, n)
		want := vecOf(v).Mul(f).Point().Add(shift)
		assert.True(t, pointsEqualTol(want, got, 1e-9), "v=%v got %v want %v", v, got, want)
	}
}

func TestRigidSolver_ReproducesGlobalRotation(t *testing.T) {
	theta := -1.1
	f := Vec{math.Cos(theta), math.Sin(theta)}
	p := []Point{{0, 0}, {10, 2}, {3, 9}, {6, 6}}
	q := make([]Point, len(p))
	for i, pi := range p {
		q[i] = vecOf(pi).Mul(f).Point()
	}

	for _, v := range []Point{{1, 4}, {9, 9}} {
		got, n := solveAt(t, RigidSolver{Tol: DefaultDegeneracyTol}, v, p, q, 1)
		require.Equal(t, 0, n)
		want := vecOf(v).Mul(f).Point()
		assert.True(t, pointsEqualTol(want, got, 1e-9), "v=%v got %v want %v", v, got, want)
	}
}

func TestRigidFactor_UnitMagnitude(t *testing.T) {
	// scaled control points: the similarity factor carries the scale, the rigid one never does
	p := []Point{{0, 0}, {10, 2}, {3, 9}, {14, 14}}
	q := []Point{{1, 0}, {25, 3}, {5, 20}, {30, 33}}
	grid := NewGrid(16, 16)

	w := ComputeWeights(grid.Coords, p, 1, DefaultEps)
	pstar := Centroids(w, p)
	qstar := Centroids(w, q)
	for i := range grid.Coords {
		num, mu, nu := rotationNumerator(w.Row(i), p, q, pstar[i], qstar[i])
		if num.Abs() == 0 {
			continue
		}
		f, ok := rigidFactor(num, mu, nu, DefaultDegeneracyTol)
		require.True(t, ok)
		assert.InDelta(t, 1.0, f.Abs(), 1e-12)

		s, ok := similarityFactor(num, mu, 0)
		require.True(t, ok)
		assert.Greater(t, s.Abs(), 1.5)
	}
}

func TestRigidDeform_PreservesDistances(t *testing.T) {
	// a rigid map of a single-rotation configuration keeps pixel distances
	theta := 0.3
	f := Vec{math.Cos(theta), math.Sin(theta)}
	p := []Point{{2, 2}, {12, 4}, {6, 13}}
	q := make([]Point, len(p))
	for i, pi := range p {
		q[i] = vecOf(pi).Mul(f).Point()
	}

	grid := NewGrid(8, 8)
	mapped, _, err := NewDeformer(DefaultOptions()).Map(context.Background(), grid, ControlPoints{P: p, Q: q}, Rigid)
	require.NoError(t, err)
	a, b := mapped[0], mapped[len(mapped)-1]
	assert.InDelta(t, grid.Coords[0].Dist2(grid.Coords[len(mapped)-1]), a.Dist2(b), 1e-6)
}

func TestMat2Inverse(t *testing.T) {
	tests := []struct {
		name  string
		m     mat2
		floor float64
		ok    bool
	}{
		{"identity", mat2{a: 1, d: 1}, 0, true},
		{"general", mat2{a: 4, b: 1, c: 1, d: 3}, 0, true},
		{"zero", mat2{}, 0, false},
		{"rank one", mat2{a: 1, b: 1, c: 1, d: 1}, 0, false},
		{"tiny scale", mat2{a: 1e-13, d: 1e-13}, 0, true},
		{"tiny rank one", mat2{a: 1e-13, b: 1e-13, c: 1e-13, d: 1e-13}, 0, false},
		{"below noise floor", mat2{a: 1e-13, d: 1e-13}, 1e-12, false},
		{"negative trace", mat2{a: -1, d: -1}, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv, ok := tt.m.inverse(tt.floor)
			require.Equal(t, tt.ok, ok)
			if !ok {
				return
			}
			id := tt.m.mul(inv)
			assert.InDelta(t, 1, id.a, 1e-12)
			assert.InDelta(t, 0, id.b, 1e-12)
			assert.InDelta(t, 0, id.c, 1e-12)
			assert.InDelta(t, 1, id.d, 1e-12)
		})
	}
}

func TestSimilarityFactor_Guard(t *testing.T) {
	_, ok := similarityFactor(Vec{1, 1}, 0, 0)
	assert.False(t, ok)
	_, ok = similarityFactor(Vec{1, 1}, math.NaN(), 0)
	assert.False(t, ok)
	_, ok = similarityFactor(Vec{1, 1}, 1e-20, 1e-19)
	assert.False(t, ok)
	s, ok := similarityFactor(Vec{2e-20, 0}, 1e-20, 0)
	assert.True(t, ok)
	assert.InDelta(t, 2, s.A, 1e-12)

	_, ok = rigidFactor(Vec{}, 1, 1, DefaultDegeneracyTol)
	assert.False(t, ok)
	_, ok = rigidFactor(Vec{}, 0, 0, DefaultDegeneracyTol)
	assert.False(t, ok)
	f, ok := rigidFactor(Vec{0, -3}, 3, 3, DefaultDegeneracyTol)
	assert.True(t, ok)
	assert.InDelta(t, 0, f.A, 1e-15)
	assert.InDelta(t, -1, f.B, 1e-15)

	// the guard is relative: tiny but well aligned configurations still fit
	f, ok = rigidFactor(Vec{1e-20, 0}, 1e-20, 1e-20, DefaultDegeneracyTol)
	assert.True(t, ok)
	assert.InDelta(t, 1, f.A, 1e-12)
}

func TestNoiseFloor(t *testing.T) {
	p := []Point{{3, 4}, {0, 10}}
	assert.InDelta(t, 1e-4*(0.5*25+0.5*100), noiseFloor([]float64{0.5, 0.5}, p, 1e-2), 1e-15)
	assert.Zero(t, noiseFloor([]float64{1, 0}, []Point{{0, 0}, {5, 5}}, 1e-2))
}

func TestRigidSolver_SymmetricCancellation(t *testing.T) {
	// q mirrors p, so with equal weights Mnum cancels to zero
	p := []Point{{-1, 0}, {1, 0}, {0, -1}, {0, 1}}
	q := []Point{{-1, 0}, {1, 0}, {0, 1}, {0, -1}}
	weights := []float64{0.25, 0.25, 0.25, 0.25}

	num, mu, nu := rotationNumerator(weights, p, q, Point{}, Point{})
	assert.Equal(t, Vec{}, num)
	assert.Equal(t, 1.0, mu)
	assert.Equal(t, 1.0, nu)
	_, ok := rigidFactor(num, mu, nu, DefaultDegeneracyTol)
	assert.False(t, ok)

	// the centre pixel is the centroid itself, which needs no rotation
	got, n := solveAt(t, RigidSolver{Tol: DefaultDegeneracyTol}, Point{0, 0}, p, q, 1)
	assert.Equal(t, 0, n)
	assert.True(t, pointsEqual(Point{0, 0}, got), "got %v", got)
}

// rotateQuarter turns x by 90 degrees about c
func rotateQuarter(x, c Point) Point {
	return vecOf(x.Sub(c)).Mul(Vec{0, 1}).Point().Add(c)
}

func TestSolvers_LargeAlphaRotation(t *testing.T) {
	// almost all weight sits on the nearest point, yet the fit is well posed
	c := Point{Row: 20, Col: 20}
	p := []Point{{17, 20}, {23, 20}, {20, 17}, {20, 23}}
	q := make([]Point, len(p))
	for i, pi := range p {
		q[i] = rotateQuarter(pi, c)
	}
	v := Point{Row: 13, Col: 20}
	want := rotateQuarter(v, c)

	for _, alpha := range []float64{4, 12, 20, 30} {
		for _, variant := range allVariants {
			s, err := SolverFor(variant, 0)
			require.NoError(t, err)

			got, n := solveAt(t, s, v, p, q, alpha)
			assert.Equal(t, 0, n, "%s alpha=%v", variant, alpha)
			assert.True(t, pointsEqualTol(want, got, 1e-9), "%s alpha=%v got %v want %v", variant, alpha, got, want)
		}
	}
}

func TestSolverFor(t *testing.T) {
	tests := []struct {
		variant Variant
		want    Solver
	}{
		{Affine, AffineSolver{Tol: DefaultDegeneracyTol}},
		{Similarity, SimilaritySolver{Tol: DefaultDegeneracyTol}},
		{Rigid, RigidSolver{Tol: DefaultDegeneracyTol}},
	}
	for _, tt := range tests {
		s, err := SolverFor(tt.variant, 0)
		require.NoError(t, err)
		assert.Equal(t, tt.want, s)
	}

	s, err := SolverFor(Rigid, 1e-6)
	require.NoError(t, err)
	assert.Equal(t, RigidSolver{Tol: 1e-6}, s)

	_, err = SolverFor(Variant(-1), 0)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func pointsEqualTol(a, b Point, tol float64) bool {
	return math.Abs(a.Row-b.Row) < tol && math.Abs(a.Col-b.Col) < tol
}
