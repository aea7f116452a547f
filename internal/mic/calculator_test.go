package mic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plate-reader/internal/assay"
	"plate-reader/internal/classify"
)

// plateWithScores builds a classification where every well carries the given
// growth score per (row, col), classified against 0.5.
func plateWithScores(scores func(row, col int) float64) *classify.PlateClassification {
	plate := &classify.PlateClassification{}
	for r := 0; r < assay.Rows; r++ {
		for c := 0; c < assay.Cols; c++ {
			score := scores(r, c)
			cw := classify.ClassifiedWell{
				GrowthScore:    score,
				Classification: classify.Growth,
				Confidence:     classify.ConfidenceHigh,
			}
			if score < 0.5 {
				cw.Classification = classify.Inhibition
			}
			cw.PixelCount = 500
			cw.HSVMedian.S = 100
			plate.Wells[r][c] = cw
		}
	}
	return plate
}

func TestCalculate_TransitionMidRow(t *testing.T) {
	// Control grows at 0.90; columns 7+ drop to 0.10, which is 89%
	// inhibition, so the 50% criterion is met first at column 7.
	plate := plateWithScores(func(r, c int) float64 {
		if c >= 7 {
			return 0.10
		}
		return 0.90
	})
	spec := assay.MICYSTSpec()

	result, err := Calculate(plate, spec)
	require.NoError(t, err)
	require.Len(t, result.Rows, assay.Rows)

	// Row A runs 0.004-8 mg/L; column 7 is 0.5 mg/L.
	rowA := result.Rows[0]
	require.NotNil(t, rowA.MIC)
	assert.Equal(t, 7, rowA.MICColumn)
	assert.InDelta(t, 0.5, *rowA.MIC, 1e-9)
	assert.Equal(t, "0.5", rowA.Display)

	// Row G (fluconazole) runs 0.064-128 mg/L; column 7 is 8 mg/L.
	rowG := result.Rows[6]
	require.NotNil(t, rowG.MIC)
	assert.InDelta(t, 8, *rowG.MIC, 1e-9)

	assert.InDelta(t, 0.90, result.ControlScore, 1e-9)
	assert.False(t, result.ControlWarning)
}

func TestCalculate_NinetyPercentCriterion(t *testing.T) {
	// 67% inhibition from column 5 on: enough for the 50% agents, never for
	// amphotericin B's 90% criterion.
	plate := plateWithScores(func(r, c int) float64 {
		if c >= 5 {
			return 0.30
		}
		return 0.90
	})
	spec := assay.MICYSTSpec()

	result, err := Calculate(plate, spec)
	require.NoError(t, err)

	rowA := result.Rows[0]
	require.NotNil(t, rowA.MIC)
	assert.Equal(t, 5, rowA.MICColumn)

	rowH := result.Rows[7]
	assert.Equal(t, assay.AmphotericinB, rowH.Agent)
	assert.Nil(t, rowH.MIC)
	assert.Equal(t, -1, rowH.MICColumn)
}

func TestCalculate_BelowRange(t *testing.T) {
	// Everything inhibited: the MIC sits at or below the lowest tested
	// concentration.
	plate := plateWithScores(func(r, c int) float64 {
		if r == 7 && c == 0 {
			return 0.90 // control keeps growing
		}
		return 0.05
	})
	spec := assay.MICYSTSpec()

	result, err := Calculate(plate, spec)
	require.NoError(t, err)

	rowA := result.Rows[0]
	require.NotNil(t, rowA.MIC)
	assert.Equal(t, 0, rowA.MICColumn)
	assert.Equal(t, "<=0.004", rowA.Display)

	// Row H's series starts at column 1 because H1 is the control.
	rowH := result.Rows[7]
	require.NotNil(t, rowH.MIC)
	assert.Equal(t, 1, rowH.MICColumn)
	assert.Equal(t, "<=0.008", rowH.Display)
}

func TestCalculate_AboveRange(t *testing.T) {
	// Full growth everywhere: the MIC lies above the top concentration.
	plate := plateWithScores(func(r, c int) float64 { return 0.90 })
	spec := assay.MICYSTSpec()

	result, err := Calculate(plate, spec)
	require.NoError(t, err)

	rowA := result.Rows[0]
	assert.Nil(t, rowA.MIC)
	assert.Equal(t, -1, rowA.MICColumn)
	assert.Equal(t, ">8", rowA.Display)

	rowG := result.Rows[6]
	assert.Equal(t, ">128", rowG.Display)
}

func TestCalculate_UndeterminedRow(t *testing.T) {
	// A non-monotonic row with depressed but not inhibited wells: no well
	// meets the criterion and the row is not all growth, so no MIC can be
	// read.
	plate := plateWithScores(func(r, c int) float64 {
		if r == 0 {
			if c%2 == 0 {
				return 0.90
			}
			return 0.48
		}
		return 0.90
	})
	spec := assay.MICYSTSpec()

	result, err := Calculate(plate, spec)
	require.NoError(t, err)

	rowA := result.Rows[0]
	assert.Nil(t, rowA.MIC)
	assert.Equal(t, "ND", rowA.Display)
	assert.Equal(t, "undetermined", rowA.Note)
}

func TestCalculate_MissingControlFails(t *testing.T) {
	plate := plateWithScores(func(r, c int) float64 { return 0.90 })
	plate.Wells[7][0].PixelCount = 0
	spec := assay.MICYSTSpec()

	_, err := Calculate(plate, spec)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "H1")
}

func TestCalculate_ControlWarningPropagates(t *testing.T) {
	plate := plateWithScores(func(r, c int) float64 { return 0.90 })
	plate.ControlWarning = true

	result, err := Calculate(plate, assay.MICYSTSpec())
	require.NoError(t, err)

	assert.True(t, result.ControlWarning)
}

func TestCalculate_EdgeArtifactAdvisory(t *testing.T) {
	// Column 12 washed out: low saturation and well below column 11.
	plate := plateWithScores(func(r, c int) float64 {
		if c == 11 {
			return 0.10
		}
		return 0.90
	})
	for r := 0; r < assay.Rows; r++ {
		plate.Wells[r][11].HSVMedian.S = 12
	}
	spec := assay.MICYSTSpec()

	result, err := Calculate(plate, spec)
	require.NoError(t, err)

	assert.True(t, result.Col12EdgeArtifact)

	// The MIC lands on column 12 for every row, so each reading carries the
	// advisory note.
	rowA := result.Rows[0]
	require.NotNil(t, rowA.MIC)
	assert.Equal(t, 11, rowA.MICColumn)
	assert.Contains(t, rowA.Note, "edge artifact")
}

func TestCalculate_NoEdgeArtifactOnHealthyPlate(t *testing.T) {
	plate := plateWithScores(func(r, c int) float64 { return 0.90 })

	result, err := Calculate(plate, assay.MICYSTSpec())
	require.NoError(t, err)

	assert.False(t, result.Col12EdgeArtifact)
}
