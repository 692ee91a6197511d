package warp

import (
	"context"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"
)

const (
	// DefaultAlpha is the weight decay exponent used by the convenience wrappers
	DefaultAlpha = 1.0
	// DefaultEps keeps the weight kernel finite at control points
	DefaultEps = 1e-8
)

// Options configures a Deformer
type Options struct {
	Alpha float64
	Eps   float64

	// BatchRows bounds peak memory: the weight tensor holds at most
	// BatchRows*Cols*n values per in-flight batch. 0 processes the whole grid at once.
	BatchRows int

	// Workers is the number of batches evaluated concurrently. 0 uses GOMAXPROCS.
	Workers int

	// DegeneracyTol is the solver's relative degeneracy threshold; 0 selects DefaultDegeneracyTol.
	DegeneracyTol float64
}

// DefaultOptions returns the reference parameters with single-batch evaluation
func DefaultOptions() Options {
	return Options{
		Alpha: DefaultAlpha,
		Eps:   DefaultEps,
	}
}

// Validate checks the options that do not depend on the inputs
func (o Options) Validate() error {
	if o.BatchRows < 0 {
		return invalidf("batchRows must not be negative, got %d", o.BatchRows)
	}
	if o.Workers < 0 {
		return invalidf("workers must not be negative, got %d", o.Workers)
	}
	if o.DegeneracyTol < 0 {
		return invalidf("degeneracyTol must not be negative, got %v", o.DegeneracyTol)
	}
	return nil
}

// Deformer computes MLS backward mappings
type Deformer struct {
	opts Options
}

// NewDeformer creates a deformer with the given options
func NewDeformer(opts Options) *Deformer {
	return &Deformer{opts: opts}
}

// Options returns the deformer's options
func (d *Deformer) Options() Options {
	return d.opts
}

// Deform computes, for every cell of grid, the source pixel to sample so that the
// image content at cp.P ends up at cp.Q.
//
// The MLS equations map source to destination, so the fit is run with the point
// sets exchanged: the destination grid is deformed towards the source. Mapped
// coordinates are clamped into [0, Rows-1] x [0, Cols-1] and truncated.
func (d *Deformer) Deform(ctx context.Context, grid *Grid, cp ControlPoints, variant Variant) (*MappingGrid, error) {
	solver, err := d.prepare(grid, cp, variant)
	if err != nil {
		return nil, err
	}

	out := &MappingGrid{
		Rows:   grid.Rows,
		Cols:   grid.Cols,
		Coords: make([]Index, grid.Rows*grid.Cols),
	}
	maxRow := float64(grid.Rows - 1)
	maxCol := float64(grid.Cols - 1)

	out.Degenerate, err = d.run(ctx, grid, cp.Swapped(), solver, func(offset int, mapped []Point) {
		dst := out.Coords[offset : offset+len(mapped)]
		for i, m := range mapped {
			dst[i] = Index{
				Row: int(clamp(m.Row, maxRow)),
				Col: int(clamp(m.Col, maxCol)),
			}
		}
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Map returns the real-valued mapped coordinate of every grid cell, before clamping
// and truncation, together with the number of degenerate cells.
func (d *Deformer) Map(ctx context.Context, grid *Grid, cp ControlPoints, variant Variant) ([]Point, int, error) {
	solver, err := d.prepare(grid, cp, variant)
	if err != nil {
		return nil, 0, err
	}

	out := make([]Point, len(grid.Coords))
	degenerate, err := d.run(ctx, grid, cp.Swapped(), solver, func(offset int, mapped []Point) {
		copy(out[offset:], mapped)
	})
	if err != nil {
		return nil, 0, err
	}
	return out, degenerate, nil
}

// prepare rejects invalid calls before any computation and picks the solver
func (d *Deformer) prepare(grid *Grid, cp ControlPoints, variant Variant) (Solver, error) {
	if err := d.opts.Validate(); err != nil {
		return nil, err
	}
	if err := validateInputs(grid, cp, d.opts.Alpha, d.opts.Eps); err != nil {
		return nil, err
	}
	return SolverFor(variant, d.opts.DegeneracyTol)
}

// run evaluates the fit batch by batch over rows of the grid. emit receives each
// batch's mapped points and the offset of its first cell. Batches cover disjoint
// cells, so emit may write into shared output without locking.
func (d *Deformer) run(ctx context.Context, grid *Grid, cp ControlPoints, solver Solver,
	emit func(offset int, mapped []Point)) (int, error) {
	batchRows := d.opts.BatchRows
	if batchRows == 0 || batchRows > grid.Rows {
		batchRows = grid.Rows
	}
	numBatches := (grid.Rows + batchRows - 1) / batchRows
	degenerate := make([]int, numBatches)

	workers := d.opts.Workers
	if workers == 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for b := 0; b < numBatches; b++ {
		start := b * batchRows
		end := min(start+batchRows, grid.Rows)
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			mapped, n := solveBatch(grid.rowSlice(start, end), cp, solver, d.opts)
			emit(start*grid.Cols, mapped)
			degenerate[b] = n
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	total := 0
	for _, n := range degenerate {
		total += n
	}
	return total, nil
}

// solveBatch runs weights, centroids and the solver over one batch of query points
func solveBatch(v []Point, cp ControlPoints, solver Solver, opts Options) ([]Point, int) {
	w := ComputeWeights(v, cp.P, opts.Alpha, opts.Eps)
	pstar := Centroids(w, cp.P)
	qstar := Centroids(w, cp.Q)

	mapped := make([]Point, len(v))
	n := solver.Solve(mapped, w, cp.P, cp.Q, pstar, qstar, v)
	return mapped, n
}

// clamp snaps x into [0, hi]; NaN maps to 0
func clamp(x, hi float64) float64 {
	if !(x > 0) {
		return 0
	}
	return math.Min(x, hi)
}

// ComputeDeformation is the single-call entry point: it validates the inputs and
// returns the clamped integer backward mapping for the given variant.
func ComputeDeformation(grid *Grid, p, q []Point, variant Variant, alpha, eps float64) (*MappingGrid, error) {
	d := NewDeformer(Options{Alpha: alpha, Eps: eps, Workers: 1})
	return d.Deform(context.Background(), grid, ControlPoints{P: p, Q: q}, variant)
}

// AffineDeformation computes an affine MLS mapping with default alpha and eps
func AffineDeformation(grid *Grid, p, q []Point) (*MappingGrid, error) {
	return ComputeDeformation(grid, p, q, Affine, DefaultAlpha, DefaultEps)
}

// SimilarityDeformation computes a similarity MLS mapping with default alpha and eps
func SimilarityDeformation(grid *Grid, p, q []Point) (*MappingGrid, error) {
	return ComputeDeformation(grid, p, q, Similarity, DefaultAlpha, DefaultEps)
}

// RigidDeformation computes a rigid MLS mapping with default alpha and eps
func RigidDeformation(grid *Grid, p, q []Point) (*MappingGrid, error) {
	return ComputeDeformation(grid, p, q, Rigid, DefaultAlpha, DefaultEps)
}
