// Package pipeline chains the analysis stages for one plate image: well
// localization, color sampling, classification, and MIC calculation.
package pipeline

import (
	"fmt"
	"image"
	"time"

	"go.uber.org/zap"

	"plate-reader/internal/assay"
	"plate-reader/internal/classify"
	"plate-reader/internal/mic"
	"plate-reader/internal/well"
)

// Options configures one pipeline run. Zero-value fields take defaults.
type Options struct {
	Spec     *assay.Spec
	Sweep    well.SweepParams
	Sample   well.SampleParams
	Classify classify.Params
}

// DefaultOptions returns the standard MIC YST configuration.
func DefaultOptions() Options {
	return Options{
		Spec:     assay.MICYSTSpec(),
		Sweep:    well.DefaultSweepParams(),
		Sample:   well.DefaultSampleParams(),
		Classify: classify.DefaultParams(),
	}
}

// Diagnostics aggregates the per-stage diagnostic records of one run.
type Diagnostics struct {
	Detection   well.DetectionDiagnostics `json:"detection"`
	Grid        well.GridDiagnostics      `json:"grid"`
	Calibration classify.Calibration      `json:"calibration"`
	Warnings    []string                  `json:"warnings,omitempty"`
	ElapsedMS   int64                     `json:"elapsed_ms"`
}

// Result holds everything a run produces.
type Result struct {
	Grid           *well.Grid                               `json:"grid"`
	Samples        [assay.Rows][assay.Cols]well.ColorSample `json:"samples"`
	Classification *classify.PlateClassification            `json:"classification"`
	MIC            *mic.Result                              `json:"mic"`
	Diagnostics    Diagnostics                              `json:"diagnostics"`
}

// Run analyzes a plate image end to end. The image should already be
// cropped to the plate region.
func Run(img image.Image, opts Options) (*Result, error) {
	finder, err := well.NewHoughFinder(img)
	if err != nil {
		return nil, fmt.Errorf("prepare circle finder: %w", err)
	}
	defer finder.Close()
	return RunWithFinder(img, finder, opts)
}

// RunWithFinder is Run with an injected circle finder, used by tests and
// callers that manage the finder lifetime themselves.
func RunWithFinder(img image.Image, finder well.CircleFinder, opts Options) (*Result, error) {
	start := time.Now()

	if opts.Spec == nil {
		opts.Spec = assay.MICYSTSpec()
	}
	if err := opts.Spec.Validate(); err != nil {
		return nil, fmt.Errorf("assay spec: %w", err)
	}

	bounds := img.Bounds()
	imgW, imgH := bounds.Dx(), bounds.Dy()

	candidates, medianRadius, detDiag := well.AggregateCandidates(finder, imgW, imgH, opts.Sweep)
	zap.L().Info("well detection complete",
		zap.Int("raw", detDiag.RawDetections),
		zap.Int("merged", detDiag.AfterMerge),
		zap.Int("kept", detDiag.AfterEdge),
		zap.Float64("median_radius", medianRadius))

	grid, gridDiag := well.FitGrid(candidates, imgW, imgH, medianRadius, opts.Sweep)
	zap.L().Info("grid fit complete",
		zap.Int("assigned", gridDiag.AssignedSlots),
		zap.Bool("fallback", gridDiag.Fallback),
		zap.Float64("step_x", grid.Model.StepX),
		zap.Float64("step_y", grid.Model.StepY))

	samples := well.SampleGrid(img, grid, opts.Sample)

	plate, err := classify.ClassifyPlate(&samples, opts.Spec.ControlWell, opts.Classify)
	if err != nil {
		return nil, fmt.Errorf("classify wells: %w", err)
	}
	zap.L().Info("classification complete",
		zap.Int("uncertain_phase1", plate.UncertainPhase1),
		zap.Int("neighbor_resolved", plate.NeighborResolved),
		zap.Int("low_confidence", plate.LowConfidence))

	micResult, err := mic.Calculate(plate, opts.Spec)
	if err != nil {
		return nil, fmt.Errorf("calculate MIC: %w", err)
	}

	res := &Result{
		Grid:           grid,
		Samples:        samples,
		Classification: plate,
		MIC:            micResult,
		Diagnostics: Diagnostics{
			Detection:   detDiag,
			Grid:        gridDiag,
			Calibration: plate.Calibration,
			ElapsedMS:   time.Since(start).Milliseconds(),
		},
	}
	res.Diagnostics.Warnings = collectWarnings(grid, plate, micResult)

	for _, w := range res.Diagnostics.Warnings {
		zap.L().Warn(w)
	}
	return res, nil
}

func collectWarnings(grid *well.Grid, plate *classify.PlateClassification, micResult *mic.Result) []string {
	var warnings []string
	if grid.Fallback {
		warnings = append(warnings, "too few wells detected, using evenly spaced fallback grid")
	} else if n := grid.DetectedCount(); n < 48 {
		warnings = append(warnings, fmt.Sprintf("only %d of 96 wells detected directly", n))
	}
	if plate.ControlWarning {
		warnings = append(warnings, "control well does not show clear growth, results may be unreliable")
	}
	if micResult.Col12EdgeArtifact {
		warnings = append(warnings, "column 12 saturation depressed, possible edge artifact")
	}
	if plate.LowConfidence > 10 {
		warnings = append(warnings, fmt.Sprintf("%d wells classified with low confidence", plate.LowConfidence))
	}
	return warnings
}
