// Package pipeline drives batch thresholding over image files: discovery,
// per-file processing, a parallel worker pool with ordered aggregation, and
// result serialization.
package pipeline

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/MeKo-Tech/thresh/internal/measure"
	"github.com/MeKo-Tech/thresh/internal/threshold"
	"github.com/MeKo-Tech/thresh/internal/utils"
)

// Pipeline binds a fixed parameter set to file processing. It is stateless
// across files and safe for concurrent use.
type Pipeline struct {
	params      threshold.Params
	constraints utils.ImageConstraints
	logger      *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger used for per-file progress and errors.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = logger }
}

// WithConstraints overrides the image size constraints.
func WithConstraints(c utils.ImageConstraints) Option {
	return func(p *Pipeline) { p.constraints = c }
}

// New builds a pipeline for the given engine parameters.
func New(params threshold.Params, opts ...Option) (*Pipeline, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("pipeline parameters: %w", err)
	}
	p := &Pipeline{
		params:      params,
		constraints: utils.DefaultImageConstraints(),
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Params returns the engine parameters the pipeline runs with.
func (p *Pipeline) Params() threshold.Params {
	return p.params
}

// FileResult is the outcome of thresholding one file.
type FileResult struct {
	Path         string               `json:"path"`
	Width        int                  `json:"width"`
	Height       int                  `json:"height"`
	Format       string               `json:"format"`
	Measurements measure.Measurements `json:"measurements"`
	Duration     time.Duration        `json:"duration_ns"`

	// Binary is the segmentation, row-major. Omitted from JSON; callers
	// write it out as a PNG instead.
	Binary []bool `json:"-"`

	// Surface is the final threshold surface: one element for the global
	// strategy, one per pixel for adaptive. Rendered as a PNG on request.
	Surface []float64 `json:"-"`
}

// ProcessFile loads, converts and thresholds a single image file.
func (p *Pipeline) ProcessFile(ctx context.Context, path string) (*FileResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	raster, meta, err := utils.LoadImage(path)
	if err != nil {
		return nil, err
	}

	res, err := p.ProcessImage(ctx, raster)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	res.Path = path
	res.Format = meta.Format
	return res, nil
}

// ProcessImage thresholds an already-decoded image. Path and Format are left
// empty in the result; ProcessFile fills them in.
func (p *Pipeline) ProcessImage(ctx context.Context, raster image.Image) (*FileResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()

	if err := utils.ValidateImageConstraints(raster, p.constraints); err != nil {
		return nil, err
	}
	raster, err := utils.ResizeImage(raster, p.constraints)
	if err != nil {
		return nil, err
	}

	img, err := utils.ToFloatImage(raster)
	if err != nil {
		return nil, err
	}
	mask := utils.MaskFromAlpha(raster)

	result, err := threshold.Threshold(img, mask, p.params)
	if err != nil {
		return nil, err
	}

	p.logger.Debug("thresholded image",
		"width", img.Width,
		"height", img.Height,
		"threshold", result.FinalMean(),
		"duration", time.Since(start).Round(time.Microsecond),
	)

	return &FileResult{
		Width:        img.Width,
		Height:       img.Height,
		Measurements: measure.FromResult(img, mask, result),
		Duration:     time.Since(start),
		Binary:       result.Binary,
		Surface:      result.FinalThreshold,
	}, nil
}
