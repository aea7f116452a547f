// Package mic derives minimum-inhibitory-concentration values from a
// classified plate by scanning each agent row for the first concentration
// that meets the agent's inhibition criterion relative to the control well.
package mic

import (
	"fmt"

	"github.com/montanaflynn/stats"

	"plate-reader/internal/assay"
	"plate-reader/internal/classify"
)

// RowResult is the MIC reading for one agent row.
type RowResult struct {
	Row       string      `json:"row"`
	Agent     assay.Agent `json:"agent"`
	AgentName string      `json:"agent_name"`

	// MIC is the determined concentration in mg/L; nil when no well met the
	// inhibition criterion. Display carries the reportable form, including
	// the ≤min / >max markers.
	MIC       *float64 `json:"mic,omitempty"`
	Display   string   `json:"display"`
	MICColumn int      `json:"mic_column"` // 0-based, -1 when undetermined

	InhibitionThreshold float64             `json:"inhibition_threshold"`
	WellScores          [assay.Cols]float64 `json:"well_scores"`
	Note                string              `json:"note,omitempty"`
}

// Result is the MIC reading for the whole plate.
type Result struct {
	Rows         []RowResult `json:"rows"`
	ControlScore float64     `json:"control_score"`

	// ControlWarning mirrors the classifier's control-quality flag: the
	// control well did not show a clear growth color, so the run is
	// unreliable per protocol (but results are still produced).
	ControlWarning bool `json:"control_warning"`

	// Col12EdgeArtifact is set when the last column's saturation is
	// systematically depressed versus column 11, a known evaporation/edge
	// effect. Affected rows carry an advisory note.
	Col12EdgeArtifact bool `json:"col12_edge_artifact"`
}

const (
	// edge-artifact detection: column 12 median saturation below this and
	// markedly lower than column 11.
	edgeArtifactSatMax   = 25.0
	edgeArtifactSatRatio = 1.5

	edgeArtifactNote = "column 12 may be an edge artifact (low saturation)"
)

// Calculate reads MIC values for every row of the plate. The inhibition of
// each well is 1 − score/control; the MIC is the first concentration from
// the row's starting column whose inhibition meets the agent threshold.
func Calculate(plate *classify.PlateClassification, spec *assay.Spec) (*Result, error) {
	ctrl := plate.Wells[spec.ControlWell.Row][spec.ControlWell.Col]
	if ctrl.PixelCount == 0 {
		return nil, fmt.Errorf("control well %s has no color sample", spec.ControlWell.Label())
	}
	ctrlScore := ctrl.GrowthScore

	result := &Result{
		ControlScore:      ctrlScore,
		ControlWarning:    plate.ControlWarning,
		Col12EdgeArtifact: detectEdgeArtifact(plate),
	}

	for rowIdx := 0; rowIdx < assay.Rows; rowIdx++ {
		rowSpec := spec.RowSpecs[rowIdx]
		rr := RowResult{
			Row:                 assay.RowLabels[rowIdx],
			Agent:               rowSpec.Agent,
			AgentName:           rowSpec.Agent.FullName(),
			MICColumn:           -1,
			InhibitionThreshold: rowSpec.InhibitionThreshold,
		}

		for col := 0; col < assay.Cols; col++ {
			rr.WellScores[col] = plate.Wells[rowIdx][col].GrowthScore
		}

		startCol := rowSpec.StartCol()

		for col := startCol; col < assay.Cols; col++ {
			if rowSpec.Concentrations[col] == nil {
				continue
			}
			inhibition := 0.0
			if ctrlScore > 0.01 {
				inhibition = 1.0 - rr.WellScores[col]/ctrlScore
			}
			if inhibition < 0 {
				inhibition = 0
			}
			if inhibition >= rowSpec.InhibitionThreshold {
				mic := *rowSpec.Concentrations[col]
				rr.MIC = &mic
				rr.MICColumn = col
				break
			}
		}

		switch {
		case rr.MIC == nil && allGrowthLike(rr.WellScores[:], startCol):
			// Full growth across the row: MIC lies above the top concentration.
			rr.Display = fmt.Sprintf(">%v", rowSpec.TopConcentration())
			rr.Note = rr.Display
			if result.Col12EdgeArtifact {
				rr.Note += "; " + edgeArtifactNote
			}
		case rr.MIC == nil:
			rr.Display = "ND"
			rr.Note = "undetermined"
		case rr.MICColumn == startCol:
			// Inhibition already at the lowest concentration: true MIC may
			// lie below the tested range.
			rr.Display = fmt.Sprintf("<=%v", *rr.MIC)
			rr.Note = rr.Display
		default:
			rr.Display = fmt.Sprintf("%v", *rr.MIC)
			if result.Col12EdgeArtifact && rr.MICColumn == assay.Cols-1 {
				rr.Note = edgeArtifactNote
			}
		}

		result.Rows = append(result.Rows, rr)
	}

	return result, nil
}

// allGrowthLike reports whether every scanned well scored above 0.5.
func allGrowthLike(scores []float64, startCol int) bool {
	for col := startCol; col < len(scores); col++ {
		if scores[col] <= 0.5 {
			return false
		}
	}
	return true
}

// detectEdgeArtifact compares the median saturation of column 12 against
// column 11. Outer-column wells evaporate faster and can lose color; when
// column 12 is clearly washed out relative to its neighbor, MIC readings
// that land there are advisory only.
func detectEdgeArtifact(plate *classify.PlateClassification) bool {
	var sat11, sat12 []float64
	for row := 0; row < assay.Rows; row++ {
		if plate.Wells[row][assay.Cols-2].PixelCount > 0 {
			sat11 = append(sat11, plate.Wells[row][assay.Cols-2].HSVMedian.S)
		}
		if plate.Wells[row][assay.Cols-1].PixelCount > 0 {
			sat12 = append(sat12, plate.Wells[row][assay.Cols-1].HSVMedian.S)
		}
	}
	if len(sat11) == 0 || len(sat12) == 0 {
		return false
	}
	med11, _ := stats.Median(sat11)
	med12, _ := stats.Median(sat12)
	return med12 < edgeArtifactSatMax && med11 > med12*edgeArtifactSatRatio
}
