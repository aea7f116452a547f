// Package classify turns per-well color samples into growth/inhibition
// calls using a hybrid scoring model: relative scoring against the plate's
// control well combined with absolute color evidence, followed by a
// neighbor-aware resolution pass for ambiguous wells.
package classify

import (
	"encoding/json"

	"plate-reader/internal/assay"
	"plate-reader/internal/well"
	"plate-reader/pkg/colorutil"
)

// Classification is the growth call for one well. Uncertain is a transient
// phase-1 state only; ClassifyPlate guarantees it never appears in a
// finalized plate.
type Classification int

const (
	Uncertain Classification = iota
	Growth
	Inhibition
	Partial
)

func (c Classification) String() string {
	switch c {
	case Growth:
		return "growth"
	case Inhibition:
		return "inhibition"
	case Partial:
		return "partial"
	default:
		return "uncertain"
	}
}

// MarshalJSON encodes the classification as its string form.
func (c Classification) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

// Confidence grades how a classification was reached: direct threshold
// (high), neighbor resolution (medium), or fallback (low, flagged for
// manual review).
type Confidence int

const (
	ConfidenceLow Confidence = iota
	ConfidenceMedium
	ConfidenceHigh
)

func (c Confidence) String() string {
	switch c {
	case ConfidenceHigh:
		return "high"
	case ConfidenceMedium:
		return "medium"
	default:
		return "low"
	}
}

// MarshalJSON encodes the confidence as its string form.
func (c Confidence) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

// ClassifiedWell extends a color sample with scores and the final call.
type ClassifiedWell struct {
	well.ColorSample

	GrowthScore    float64        `json:"growth_score"`
	RelativeScore  float64        `json:"relative_score"`
	AbsoluteScore  float64        `json:"absolute_score"`
	Classification Classification `json:"classification"`
	Confidence     Confidence     `json:"confidence"`
}

// Calibration holds the plate-local saturation anchors and the control
// baseline used for scoring, surfaced as a queryable diagnostic record.
type Calibration struct {
	ControlHSV      colorutil.HSV `json:"control_hsv"`
	ControlRGB      [3]float64    `json:"control_rgb"`
	GrowthSatMedian float64       `json:"growth_sat_median"`
	InhibSatMedian  float64       `json:"inhib_sat_median"`
	SatMidpoint     float64       `json:"sat_midpoint"`
	GrowthSeeds     int           `json:"growth_seeds"`
	InhibitionSeeds int           `json:"inhibition_seeds"`
}

// PlateClassification is the finalized result for all 96 wells.
type PlateClassification struct {
	Wells       [assay.Rows][assay.Cols]ClassifiedWell `json:"wells"`
	Calibration Calibration                            `json:"calibration"`

	UncertainPhase1  int  `json:"uncertain_phase1"`
	NeighborResolved int  `json:"neighbor_resolved"`
	LowConfidence    int  `json:"low_confidence"`
	ControlWarning   bool `json:"control_warning"` // control well shows a non-growth color
}

// Counts returns the number of wells per final classification.
func (p *PlateClassification) Counts() map[string]int {
	counts := map[string]int{}
	for r := 0; r < assay.Rows; r++ {
		for c := 0; c < assay.Cols; c++ {
			counts[p.Wells[r][c].Classification.String()]++
		}
	}
	return counts
}
