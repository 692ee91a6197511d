package warp

import (
	"fmt"
	"strings"
)

// Point represents a 2D coordinate in (row, column) order
type Point struct {
	Row float64 `yaml:"row" json:"row"`
	Col float64 `yaml:"col" json:"col"`
}

// Index is an integer pixel coordinate in (row, column) order
type Index struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// ControlPoints holds the original (P) and target (Q) control points, matched by index
type ControlPoints struct {
	P []Point
	Q []Point
}

// Len returns the number of control point pairs
func (cp ControlPoints) Len() int {
	return len(cp.P)
}

// Swapped returns the control points with the roles of P and Q exchanged
func (cp ControlPoints) Swapped() ControlPoints {
	return ControlPoints{P: cp.Q, Q: cp.P}
}

// Grid is a regular rows x cols array of query coordinates, stored row-major
type Grid struct {
	Rows   int
	Cols   int
	Coords []Point
}

// NewGrid creates a grid whose cells hold their own (row, col) position
func NewGrid(rows, cols int) *Grid {
	if rows <= 0 || cols <= 0 {
		return &Grid{Rows: rows, Cols: cols}
	}
	coords := make([]Point, rows*cols)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			coords[r*cols+c] = Point{Row: float64(r), Col: float64(c)}
		}
	}
	return &Grid{Rows: rows, Cols: cols, Coords: coords}
}

// NewGridFromAxes builds a meshgrid from a row axis and a column axis.
// Cell (i, j) holds (rowAxis[i], colAxis[j]).
func NewGridFromAxes(rowAxis, colAxis []float64) *Grid {
	rows, cols := len(rowAxis), len(colAxis)
	coords := make([]Point, rows*cols)
	for i, r := range rowAxis {
		for j, c := range colAxis {
			coords[i*cols+j] = Point{Row: r, Col: c}
		}
	}
	return &Grid{Rows: rows, Cols: cols, Coords: coords}
}

// At returns the query coordinate at (row, col)
func (g *Grid) At(row, col int) Point {
	return g.Coords[row*g.Cols+col]
}

// rowSlice returns the coordinates of rows [start, end)
func (g *Grid) rowSlice(start, end int) []Point {
	return g.Coords[start*g.Cols : end*g.Cols]
}

// MappingGrid is the backward map: for every destination cell, the source pixel to sample
type MappingGrid struct {
	Rows   int
	Cols   int
	Coords []Index

	// Degenerate counts cells where the local fit was singular and the
	// centroid-frame identity fallback was used.
	Degenerate int
}

// At returns the source index for destination cell (row, col)
func (m *MappingGrid) At(row, col int) Index {
	return m.Coords[row*m.Cols+col]
}

// Variant selects the family of local transforms fitted at each pixel
type Variant int

const (
	Affine Variant = iota
	Similarity
	Rigid
)

var variantNames = map[Variant]string{
	Affine:     "affine",
	Similarity: "similarity",
	Rigid:      "rigid",
}

func (v Variant) String() string {
	if name, ok := variantNames[v]; ok {
		return name
	}
	return fmt.Sprintf("Variant(%d)", int(v))
}

// ParseVariant parses a variant name (case-insensitive)
func ParseVariant(s string) (Variant, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for v, n := range variantNames {
		if n == name {
			return v, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown variant %q", ErrInvalidInput, s)
}

// MarshalText implements encoding.TextMarshaler so variants read naturally in YAML and JSON
func (v Variant) MarshalText() ([]byte, error) {
	name, ok := variantNames[v]
	if !ok {
		return nil, fmt.Errorf("%w: unknown variant %d", ErrInvalidInput, int(v))
	}
	return []byte(name), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (v *Variant) UnmarshalText(text []byte) error {
	parsed, err := ParseVariant(string(text))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}
