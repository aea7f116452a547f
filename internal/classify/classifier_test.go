package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plate-reader/internal/assay"
	"plate-reader/internal/well"
	"plate-reader/pkg/colorutil"
)

// growthSample mimics a pink resazurin well (RGB 220,120,140).
func growthSample() well.ColorSample {
	return well.ColorSample{
		HSVMedian:  colorutil.HSV{H: 174, S: 30, V: 220},
		HSVMean:    colorutil.HSV{H: 174, S: 30, V: 220},
		RGBMean:    [3]float64{220, 120, 140},
		PixelCount: 800,
	}
}

// inhibitionSample mimics a purple unreduced well (RGB 160,80,150).
func inhibitionSample() well.ColorSample {
	return well.ColorSample{
		HSVMedian:  colorutil.HSV{H: 153.8, S: 127.5, V: 160},
		HSVMean:    colorutil.HSV{H: 153.8, S: 127.5, V: 160},
		RGBMean:    [3]float64{160, 80, 150},
		PixelCount: 800,
	}
}

// splitPlate fills columns [0, split) with growth and the rest with
// inhibition, control well included.
func splitPlate(split int) [assay.Rows][assay.Cols]well.ColorSample {
	var samples [assay.Rows][assay.Cols]well.ColorSample
	for r := 0; r < assay.Rows; r++ {
		for c := 0; c < assay.Cols; c++ {
			if c < split {
				samples[r][c] = growthSample()
			} else {
				samples[r][c] = inhibitionSample()
			}
		}
	}
	return samples
}

var controlWell = assay.WellCoord{Row: 7, Col: 0}

func TestClassifyPlate_SplitPlate(t *testing.T) {
	samples := splitPlate(6)

	plate, err := ClassifyPlate(&samples, controlWell, DefaultParams())
	require.NoError(t, err)

	for r := 0; r < assay.Rows; r++ {
		for c := 0; c < assay.Cols; c++ {
			cw := plate.Wells[r][c]
			if c < 6 {
				assert.Equal(t, Growth, cw.Classification, "well %s", assay.WellCoord{Row: r, Col: c}.Label())
				assert.Equal(t, ConfidenceHigh, cw.Confidence)
			} else {
				assert.Equal(t, Inhibition, cw.Classification, "well %s", assay.WellCoord{Row: r, Col: c}.Label())
			}
		}
	}

	assert.False(t, plate.ControlWarning)
	counts := plate.Counts()
	assert.Equal(t, 48, counts[Growth.String()])
	assert.Equal(t, 48, counts[Inhibition.String()])
}

func TestClassifyPlate_MissingControlFails(t *testing.T) {
	samples := splitPlate(6)
	samples[controlWell.Row][controlWell.Col] = well.ColorSample{}

	_, err := ClassifyPlate(&samples, controlWell, DefaultParams())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "H1")
}

func TestClassifyPlate_NoUncertainInOutput(t *testing.T) {
	// Degenerate and odd samples sprinkled in must still finalize: the
	// post-condition is that Uncertain never appears in the result.
	samples := splitPlate(6)
	samples[2][5] = well.ColorSample{} // empty sample
	samples[4][6] = well.ColorSample{ // washed-out midpoint color
		HSVMedian:  colorutil.HSV{H: 160, S: 60, V: 200},
		RGBMean:    [3]float64{180, 140, 170},
		PixelCount: 400,
	}

	plate, err := ClassifyPlate(&samples, controlWell, DefaultParams())
	require.NoError(t, err)

	for r := 0; r < assay.Rows; r++ {
		for c := 0; c < assay.Cols; c++ {
			assert.NotEqual(t, Uncertain, plate.Wells[r][c].Classification,
				"well %s left uncertain", assay.WellCoord{Row: r, Col: c}.Label())
		}
	}
}

func TestClassifyPlate_DegenerateSampleLowConfidence(t *testing.T) {
	// Empty samples score on zero-valued statistics, which can land deep in
	// the growth band; the call must stay defined but never confident.
	samples := splitPlate(6)
	samples[1][3] = well.ColorSample{}
	samples[5][9] = well.ColorSample{}

	plate, err := ClassifyPlate(&samples, controlWell, DefaultParams())
	require.NoError(t, err)

	for _, coord := range []assay.WellCoord{{Row: 1, Col: 3}, {Row: 5, Col: 9}} {
		cw := plate.Wells[coord.Row][coord.Col]
		assert.Equal(t, 0, cw.PixelCount)
		assert.NotEqual(t, Uncertain, cw.Classification, "well %s", coord.Label())
		assert.Equal(t, ConfidenceLow, cw.Confidence, "well %s", coord.Label())
	}
	assert.GreaterOrEqual(t, plate.LowConfidence, 2)
}

func TestClassifyPlate_ControlWarning(t *testing.T) {
	// An inhibition-colored control well: scoring still works (relative to
	// the plate's growth anchor) but the run is flagged.
	samples := splitPlate(6)
	samples[controlWell.Row][controlWell.Col] = inhibitionSample()

	plate, err := ClassifyPlate(&samples, controlWell, DefaultParams())
	require.NoError(t, err)

	assert.True(t, plate.ControlWarning)
}

func TestCalibration_AnchorsFromSeeds(t *testing.T) {
	samples := splitPlate(6)

	plate, err := ClassifyPlate(&samples, controlWell, DefaultParams())
	require.NoError(t, err)

	cal := plate.Calibration
	assert.Equal(t, 48, cal.GrowthSeeds)
	assert.Equal(t, 48, cal.InhibitionSeeds)
	assert.InDelta(t, 30, cal.GrowthSatMedian, 1e-9)
	assert.InDelta(t, 127.5, cal.InhibSatMedian, 1e-9)
	assert.InDelta(t, (30+127.5)/2, cal.SatMidpoint, 1e-9)
}

func TestRelativeScore_MonotonicInSaturation(t *testing.T) {
	ctrl := growthSample()
	cal := Calibration{
		ControlHSV:      ctrl.HSVMedian,
		ControlRGB:      ctrl.RGBMean,
		GrowthSatMedian: 30,
		InhibSatMedian:  127.5,
	}

	prev := 2.0
	for sat := 0.0; sat <= 255; sat += 5 {
		s := growthSample()
		s.HSVMedian.S = sat
		score := relativeScore(s, ctrl, cal)
		assert.LessOrEqual(t, score, prev, "score must not rise with saturation (S=%.0f)", sat)
		prev = score
	}
}

func TestAbsoluteScore_Bands(t *testing.T) {
	p := DefaultParams()

	tests := []struct {
		name   string
		sample well.ColorSample
		above  float64
		below  float64
	}{
		{"clear growth color", growthSample(), 0.90, 1.01},
		{"clear inhibition color", inhibitionSample(), -0.01, 0.10},
		{
			"neutral washed-out color",
			well.ColorSample{
				HSVMedian: colorutil.HSV{H: 100, S: 42, V: 200},
				RGBMean:   [3]float64{170, 180, 165},
			},
			0.20, 0.60,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score := absoluteScore(tt.sample, p)
			assert.Greater(t, score, tt.above)
			assert.Less(t, score, tt.below)
		})
	}
}

func TestNeighborRule(t *testing.T) {
	p := DefaultParams()
	missing := Classification(-1)

	tests := []struct {
		name        string
		score       float64
		left, right Classification
		wantClass   Classification
		wantConf    Confidence
	}{
		{"growth-inhibition transition", 0.40, Growth, Inhibition, Inhibition, ConfidenceMedium},
		{"transition overrides score at band floor", 0.31, Growth, Inhibition, Inhibition, ConfidenceMedium},
		{"transition overrides score at band ceiling", 0.49, Growth, Inhibition, Inhibition, ConfidenceMedium},
		{"inside growth zone", 0.40, Growth, Uncertain, Growth, ConfidenceMedium},
		{"inside inhibition zone", 0.40, Uncertain, Inhibition, Inhibition, ConfidenceMedium},
		{"both growth", 0.40, Growth, Growth, Growth, ConfidenceMedium},
		{"both inhibition", 0.40, Inhibition, Inhibition, Inhibition, ConfidenceMedium},
		{"left edge before inhibition", 0.40, missing, Inhibition, Inhibition, ConfidenceMedium},
		{"right edge after growth", 0.40, Growth, missing, Growth, ConfidenceMedium},
		{"no evidence, score above fallback", 0.45, Uncertain, Uncertain, Growth, ConfidenceLow},
		{"no evidence, score below fallback", 0.35, Uncertain, Uncertain, Inhibition, ConfidenceLow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			class, conf := neighborRule(tt.score, tt.left, tt.right, p)
			assert.Equal(t, tt.wantClass, class)
			assert.Equal(t, tt.wantConf, conf)
		})
	}
}

func TestResolveUncertain_LeftToRight(t *testing.T) {
	// Two adjacent uncertain wells between growth and inhibition: the left
	// one resolves against the growth neighbor first, then the right one
	// sees that resolution and lands on the transition.
	var wells [assay.Rows][assay.Cols]ClassifiedWell
	for r := 0; r < assay.Rows; r++ {
		for c := 0; c < assay.Cols; c++ {
			wells[r][c] = ClassifiedWell{Classification: Growth, Confidence: ConfidenceHigh}
		}
	}
	wells[3][4] = ClassifiedWell{GrowthScore: 0.42, Classification: Uncertain, Confidence: ConfidenceLow}
	wells[3][5] = ClassifiedWell{GrowthScore: 0.38, Classification: Uncertain, Confidence: ConfidenceLow}
	for c := 6; c < assay.Cols; c++ {
		wells[3][c] = ClassifiedWell{Classification: Inhibition, Confidence: ConfidenceHigh}
	}

	resolved := resolveUncertain(&wells, DefaultParams())

	assert.Equal(t, 2, resolved)
	assert.Equal(t, Growth, wells[3][4].Classification)
	assert.Equal(t, ConfidenceMedium, wells[3][4].Confidence)
	assert.Equal(t, Inhibition, wells[3][5].Classification)
	assert.Equal(t, ConfidenceMedium, wells[3][5].Confidence)
}
