package warp

import "math"

// Vec is a 2-vector used as a rotation-scaling element.
// The composition (a,b)∘(c,d) = (ac−bd, ad+bc) scales by |v| and rotates by atan2(b, a),
// with Row as the first component and Col as the second.
type Vec struct {
	A float64
	B float64
}

// vecOf converts a point into its algebra element
func vecOf(p Point) Vec {
	return Vec{A: p.Row, B: p.Col}
}

// Point converts the element back into a coordinate
func (v Vec) Point() Point {
	return Point{Row: v.A, Col: v.B}
}

// Mul composes two rotation-scalings
func (v Vec) Mul(u Vec) Vec {
	return Vec{
		A: v.A*u.A - v.B*u.B,
		B: v.A*u.B + v.B*u.A,
	}
}

// Conj returns the conjugate (reflection of the rotation angle)
func (v Vec) Conj() Vec {
	return Vec{A: v.A, B: -v.B}
}

// Norm2 returns the squared magnitude
func (v Vec) Norm2() float64 {
	return v.A*v.A + v.B*v.B
}

// Abs returns the magnitude
func (v Vec) Abs() float64 {
	return math.Hypot(v.A, v.B)
}

// Scale multiplies both components by s
func (v Vec) Scale(s float64) Vec {
	return Vec{A: v.A * s, B: v.B * s}
}

// Inv returns the inverse element, so that v.Mul(v.Inv()) is (1, 0).
// The zero element has no inverse; callers check Norm2 first.
func (v Vec) Inv() Vec {
	n := v.Norm2()
	return Vec{A: v.A / n, B: -v.B / n}
}

// Div returns v ∘ u⁻¹
func (v Vec) Div(u Vec) Vec {
	return v.Mul(u.Inv())
}

// Add returns p + q
func (p Point) Add(q Point) Point {
	return Point{Row: p.Row + q.Row, Col: p.Col + q.Col}
}

// Sub returns p - q
func (p Point) Sub(q Point) Point {
	return Point{Row: p.Row - q.Row, Col: p.Col - q.Col}
}

// Dist2 returns the squared Euclidean distance between p and q
func (p Point) Dist2(q Point) float64 {
	dr := p.Row - q.Row
	dc := p.Col - q.Col
	return dr*dr + dc*dc
}

// IsFinite reports whether both components are finite
func (p Point) IsFinite() bool {
	return !math.IsNaN(p.Row) && !math.IsInf(p.Row, 0) &&
		!math.IsNaN(p.Col) && !math.IsInf(p.Col, 0)
}
