// Package well provides 96-well localization for microdilution plate images:
// circular-feature aggregation, grid model fitting, and per-well color
// sampling.
package well

import (
	"plate-reader/internal/assay"
	"plate-reader/pkg/colorutil"
	"plate-reader/pkg/geometry"
)

// Candidate is a raw detected circular feature in plate-image pixel
// coordinates. Candidates only exist between aggregation and grid fitting.
type Candidate struct {
	Center geometry.Point2D `json:"center"`
	Radius float64          `json:"radius"`
}

// GridModel is an affine mapping from (row, col) to pixel centers:
// (OriginX + col*StepX, OriginY + row*StepY). Steps are always positive and
// the model is immutable once a Grid has been built from it.
type GridModel struct {
	OriginX float64 `json:"origin_x"`
	OriginY float64 `json:"origin_y"`
	StepX   float64 `json:"step_x"`
	StepY   float64 `json:"step_y"`
}

// CenterAt returns the predicted pixel center of a grid slot.
func (m GridModel) CenterAt(row, col int) geometry.Point2D {
	return geometry.Point2D{
		X: m.OriginX + float64(col)*m.StepX,
		Y: m.OriginY + float64(row)*m.StepY,
	}
}

// Slot is one of the 96 logical well positions. Detected reports whether a
// real candidate was assigned within tolerance; otherwise the position is
// purely model-predicted.
type Slot struct {
	Center   geometry.Point2D `json:"center"`
	Radius   float64          `json:"radius"`
	Detected bool             `json:"detected"`
}

// Grid holds the finalized slot assignment for one plate image.
// All 96 slots are always present.
type Grid struct {
	Model        GridModel                    `json:"model"`
	Slots        [assay.Rows][assay.Cols]Slot `json:"slots"`
	MedianRadius float64                      `json:"median_radius"`
	Fallback     bool                         `json:"fallback"` // naive evenly-spaced grid was used
}

// DetectedCount returns how many slots carry a real detection.
func (g *Grid) DetectedCount() int {
	n := 0
	for r := 0; r < assay.Rows; r++ {
		for c := 0; c < assay.Cols; c++ {
			if g.Slots[r][c].Detected {
				n++
			}
		}
	}
	return n
}

// ColorSample holds robust color statistics for one slot. A PixelCount of
// zero marks a degenerate (empty) sample; all other fields are zero-valued
// in that case and downstream stages must tolerate it.
type ColorSample struct {
	HSVMedian  colorutil.HSV `json:"hsv_median"`
	HSVMean    colorutil.HSV `json:"hsv_mean"`
	RGBMean    [3]float64    `json:"rgb_mean"`
	PixelCount int           `json:"pixel_count"`
}

// DetectionDiagnostics records candidate counts through the aggregation
// stages so callers and tests can assert on them.
type DetectionDiagnostics struct {
	SweepRuns     int     `json:"sweep_runs"`
	SweepFailures int     `json:"sweep_failures"`
	RawDetections int     `json:"raw_detections"`
	AfterMerge    int     `json:"after_merge"`
	AfterRadius   int     `json:"after_radius_filter"`
	AfterEdge     int     `json:"after_edge_filter"`
	MedianRadius  float64 `json:"median_radius"`
}

// GridDiagnostics records how the grid model was obtained.
type GridDiagnostics struct {
	StepPairsX     int  `json:"step_pairs_x"`
	StepPairsY     int  `json:"step_pairs_y"`
	RatioCorrected bool `json:"ratio_corrected"`
	OriginScore    int  `json:"origin_score"`
	RefineRounds   int  `json:"refine_rounds"`
	AssignedSlots  int  `json:"assigned_slots"`
	Fallback       bool `json:"fallback"`
}
