package warp

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"time"
)

// Job is one warp request, as received over MQTT or HTTP.
// Zero-valued parameters fall back to the service configuration.
type Job struct {
	ID            string             `json:"id"`
	Variant       *Variant           `json:"variant,omitempty"`
	Alpha         float64            `json:"alpha,omitempty"`
	Eps           float64            `json:"eps,omitempty"`
	ControlPoints []ControlPointPair `json:"controlPoints"`
}

// Result is a completed warp
type Result struct {
	JobID     string        `json:"jobId"`
	Variant   Variant       `json:"variant"`
	Stats     MappingStats  `json:"stats"`
	Duration  time.Duration `json:"duration"`
	Completed time.Time     `json:"completed"`

	Pairs   []ControlPointPair `json:"-"`
	Mapping *MappingGrid       `json:"-"`
	Image   *image.NRGBA       `json:"-"`
}

// DecodeJob parses a JSON job payload
func DecodeJob(payload []byte) (*Job, error) {
	var job Job
	if err := json.Unmarshal(payload, &job); err != nil {
		return nil, fmt.Errorf("decoding job: %w", err)
	}
	if len(job.ControlPoints) == 0 {
		return nil, fmt.Errorf("job %q has no control points", job.ID)
	}
	if job.ID == "" {
		job.ID = fmt.Sprintf("job-%d", time.Now().UnixNano())
	}
	return &job, nil
}

// JobFromConfig builds the job described by a config file
func JobFromConfig(cfg *Config) *Job {
	variant := cfg.Variant
	return &Job{
		ID:            "config",
		Variant:       &variant,
		Alpha:         cfg.Alpha,
		Eps:           cfg.Eps,
		ControlPoints: cfg.ControlPoints,
	}
}

// Resolve returns the options and variant for a job, filling gaps from cfg
func (j *Job) Resolve(cfg *Config) (Options, Variant) {
	opts := cfg.Options()
	variant := cfg.Variant
	if j.Variant != nil {
		variant = *j.Variant
	}
	if j.Alpha != 0 {
		opts.Alpha = j.Alpha
	}
	if j.Eps != 0 {
		opts.Eps = j.Eps
	}
	return opts, variant
}

// RunJob computes the backward mapping for src's own pixel grid and resamples src with it
func RunJob(ctx context.Context, src image.Image, cfg *Config, job *Job) (*Result, error) {
	start := time.Now()
	opts, variant := job.Resolve(cfg)

	grid := GridForImage(src)
	cp := PairsToControlPoints(job.ControlPoints)

	mapping, err := NewDeformer(opts).Deform(ctx, grid, cp, variant)
	if err != nil {
		return nil, fmt.Errorf("job %s: %w", job.ID, err)
	}

	warped, err := Remap(src, mapping)
	if err != nil {
		return nil, fmt.Errorf("job %s: %w", job.ID, err)
	}

	return &Result{
		JobID:     job.ID,
		Variant:   variant,
		Stats:     Summarize(grid, mapping),
		Duration:  time.Since(start),
		Completed: time.Now(),
		Pairs:     job.ControlPoints,
		Mapping:   mapping,
		Image:     warped,
	}, nil
}
