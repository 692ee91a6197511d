package warp

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// WeightTensor holds N normalized weights for each of Pixels query points, row-major
type WeightTensor struct {
	Pixels int
	N      int
	W      []float64
}

// Row returns the N weights of pixel i
func (t *WeightTensor) Row(i int) []float64 {
	return t.W[i*t.N : (i+1)*t.N]
}

// ComputeWeights returns, for every query point v and control point p_j, the weight
// 1 / (|p_j - v|² + eps)^alpha normalized so that each pixel's weights sum to 1.
//
// The raw weights are evaluated relative to the nearest control point,
// ((d²_min + eps) / (d²_j + eps))^alpha, which equals the raw weight up to a
// per-pixel factor that normalization removes. The nearest point always gets
// 1, so the sum never underflows to 0 or overflows to Inf for large alpha.
func ComputeWeights(v []Point, points []Point, alpha, eps float64) *WeightTensor {
	n := len(points)
	t := &WeightTensor{
		Pixels: len(v),
		N:      n,
		W:      make([]float64, len(v)*n),
	}

	for i, q := range v {
		row := t.Row(i)

		nearest := math.Inf(1)
		for j, p := range points {
			d := p.Dist2(q) + eps
			row[j] = d
			if d < nearest {
				nearest = d
			}
		}

		for j, d := range row {
			row[j] = math.Pow(nearest/d, alpha)
		}

		floats.Scale(1/floats.Sum(row), row)
	}

	return t
}
