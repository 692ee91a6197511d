package warp

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// MappingStats summarizes how far a mapping moves pixels
type MappingStats struct {
	Rows             int     `json:"rows"`
	Cols             int     `json:"cols"`
	MaxDisplacement  float64 `json:"maxDisplacement"`
	MeanDisplacement float64 `json:"meanDisplacement"`
	Identity         int     `json:"identityCells"` // cells that sample their own position
	Degenerate       int     `json:"degenerateCells"`
}

// Summarize compares each cell's query coordinate with the source index it maps to
func Summarize(grid *Grid, m *MappingGrid) MappingStats {
	stats := MappingStats{
		Rows:       m.Rows,
		Cols:       m.Cols,
		Degenerate: m.Degenerate,
	}
	if grid == nil || len(m.Coords) == 0 || len(grid.Coords) != len(m.Coords) {
		return stats
	}

	var sum float64
	for i, idx := range m.Coords {
		from := toOrb(grid.Coords[i])
		to := orb.Point{float64(idx.Col), float64(idx.Row)}
		d := planar.Distance(from, to)
		sum += d
		if d > stats.MaxDisplacement {
			stats.MaxDisplacement = d
		}
		if d == 0 {
			stats.Identity++
		}
	}
	stats.MeanDisplacement = sum / float64(len(m.Coords))
	return stats
}

// toOrb converts a (row, col) point to an orb (x, y) point
func toOrb(p Point) orb.Point {
	return orb.Point{p.Col, p.Row}
}

// fromOrb converts an orb (x, y) point to a (row, col) point
func fromOrb(p orb.Point) Point {
	return Point{Row: p.Y(), Col: p.X()}
}
