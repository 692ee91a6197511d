package warp

// Centroids returns the weighted centroid Σ_j w[i,j]·points[j] of every pixel i
func Centroids(w *WeightTensor, points []Point) []Point {
	out := make([]Point, w.Pixels)
	for i := range out {
		var r, c float64
		for j, wj := range w.Row(i) {
			r += wj * points[j].Row
			c += wj * points[j].Col
		}
		out[i] = Point{Row: r, Col: c}
	}
	return out
}
