package warp

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidInput is returned (wrapped) when a call is rejected before any computation
var ErrInvalidInput = errors.New("invalid input")

func invalidf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{ErrInvalidInput}, args...)...)
}

// validateInputs checks every precondition of a deformation call
func validateInputs(grid *Grid, cp ControlPoints, alpha, eps float64) error {
	if grid == nil {
		return invalidf("grid is nil")
	}
	if grid.Rows <= 0 || grid.Cols <= 0 {
		return invalidf("grid dimensions must be positive, got %dx%d", grid.Rows, grid.Cols)
	}
	if len(grid.Coords) != grid.Rows*grid.Cols {
		return invalidf("grid has %d coordinates, want %d", len(grid.Coords), grid.Rows*grid.Cols)
	}
	if len(cp.P) != len(cp.Q) {
		return invalidf("control point count mismatch: %d vs %d", len(cp.P), len(cp.Q))
	}
	if len(cp.P) == 0 {
		return invalidf("at least one control point is required")
	}
	if !(alpha > 0) || math.IsInf(alpha, 0) {
		return invalidf("alpha must be positive and finite, got %v", alpha)
	}
	if !(eps > 0) || math.IsInf(eps, 0) {
		return invalidf("eps must be positive and finite, got %v", eps)
	}
	for i := range cp.P {
		if !cp.P[i].IsFinite() || !cp.Q[i].IsFinite() {
			return invalidf("control point %d is not finite", i)
		}
	}
	for i, v := range grid.Coords {
		if !v.IsFinite() {
			return invalidf("grid coordinate (%d, %d) is not finite", i/grid.Cols, i%grid.Cols)
		}
	}
	return nil
}
