package classify

import (
	"fmt"

	"github.com/montanaflynn/stats"

	"plate-reader/internal/assay"
	"plate-reader/internal/well"
	"plate-reader/pkg/colorutil"
)

// Params holds the classifier thresholds and score weights.
type Params struct {
	GrowthThreshold     float64 // score above this: growth, high confidence
	InhibitionThreshold float64 // score below this: inhibition, high confidence
	FallbackThreshold   float64 // midpoint used when neighbors are not decisive

	RelativeWeight float64
	AbsoluteWeight float64

	// Coarse absolute bands used to seed calibration.
	GrowthSeedSatMax float64 // growth-like: saturation below this
	GrowthSeedRBMin  float64 // ...and red-minus-blue above this
	InhibSeedSatMin  float64 // inhibition-like: saturation above this
	InhibSeedHueLow  float64 // ...and hue within this purple band
	InhibSeedHueHigh float64
	DefaultInhibSat  float64 // anchor when no inhibition-like wells exist

	// ControlWarningScore flags the plate when the control well's growth
	// score falls below it (protocol: such a run is unreliable).
	ControlWarningScore float64
}

// DefaultParams returns the classifier configuration for MIC plates.
func DefaultParams() Params {
	return Params{
		GrowthThreshold:     0.50,
		InhibitionThreshold: 0.30,
		FallbackThreshold:   0.40,

		RelativeWeight: 0.65,
		AbsoluteWeight: 0.35,

		GrowthSeedSatMax: 35,
		GrowthSeedRBMin:  10,
		InhibSeedSatMin:  80,
		InhibSeedHueLow:  140,
		InhibSeedHueHigh: 165,
		DefaultInhibSat:  140,

		ControlWarningScore: 0.40,
	}
}

// ClassifyPlate scores and classifies all 96 wells. It runs in two phases:
// phase 1 computes every well's score and makes high-confidence threshold
// calls; phase 2 resolves the remaining uncertain wells from their row
// neighbors. The control well seeds the calibration baseline; a control
// sample with no pixels is fatal because every relative score depends on it.
// Any other degenerate sample gets a defined call at the fallback threshold
// but is pinned to low confidence.
func ClassifyPlate(samples *[assay.Rows][assay.Cols]well.ColorSample, control assay.WellCoord, p Params) (*PlateClassification, error) {
	ctrl := samples[control.Row][control.Col]
	if ctrl.PixelCount == 0 {
		return nil, fmt.Errorf("control well %s has no color sample", control.Label())
	}

	cal := calibrate(samples, ctrl, p)

	plate := &PlateClassification{Calibration: cal}

	// Phase 1: per-well scoring and threshold calls. Wells are independent
	// here; the calibration and control baseline are read-only.
	for r := 0; r < assay.Rows; r++ {
		for c := 0; c < assay.Cols; c++ {
			s := samples[r][c]

			rel := relativeScore(s, ctrl, cal)
			abs := absoluteScore(s, p)
			score := clip01(p.RelativeWeight*rel + p.AbsoluteWeight*abs)

			cw := ClassifiedWell{
				ColorSample:   s,
				GrowthScore:   score,
				RelativeScore: rel,
				AbsoluteScore: abs,
			}

			switch {
			case s.PixelCount == 0:
				// Degenerate sample: the score came from zero-valued
				// statistics, so the call stays defined but never confident,
				// and the neighbor pass leaves it alone.
				if score >= p.FallbackThreshold {
					cw.Classification = Growth
				} else {
					cw.Classification = Inhibition
				}
				cw.Confidence = ConfidenceLow
			case score > p.GrowthThreshold:
				cw.Classification = Growth
				cw.Confidence = ConfidenceHigh
			case score < p.InhibitionThreshold:
				cw.Classification = Inhibition
				cw.Confidence = ConfidenceHigh
			default:
				cw.Classification = Uncertain
				cw.Confidence = ConfidenceLow
				plate.UncertainPhase1++
			}
			plate.Wells[r][c] = cw
		}
	}

	// Phase 2: neighbor resolution, strictly after all phase-1 calls.
	plate.NeighborResolved = resolveUncertain(&plate.Wells, p)

	for r := 0; r < assay.Rows; r++ {
		for c := 0; c < assay.Cols; c++ {
			if plate.Wells[r][c].Confidence == ConfidenceLow {
				plate.LowConfidence++
			}
		}
	}

	if plate.Wells[control.Row][control.Col].GrowthScore < p.ControlWarningScore {
		plate.ControlWarning = true
	}

	if err := assertFinalized(plate); err != nil {
		return nil, err
	}
	return plate, nil
}

// assertFinalized enforces the post-condition that Uncertain never escapes
// into a finalized plate.
func assertFinalized(plate *PlateClassification) error {
	for r := 0; r < assay.Rows; r++ {
		for c := 0; c < assay.Cols; c++ {
			if plate.Wells[r][c].Classification == Uncertain {
				return fmt.Errorf("well %s left uncertain after resolution",
					assay.WellCoord{Row: r, Col: c}.Label())
			}
		}
	}
	return nil
}

// calibrate partitions wells into provisional growth-like and
// inhibition-like groups using coarse absolute thresholds and anchors the
// saturation decision boundary at the midpoint of the group medians.
// Empty groups fall back to the control saturation (growth) or a fixed
// default (inhibition).
func calibrate(samples *[assay.Rows][assay.Cols]well.ColorSample, ctrl well.ColorSample, p Params) Calibration {
	var growthSats, inhibSats []float64

	for r := 0; r < assay.Rows; r++ {
		for c := 0; c < assay.Cols; c++ {
			s := samples[r][c]
			if s.PixelCount == 0 {
				continue
			}
			rbDiff := s.RGBMean[0] - s.RGBMean[2]
			switch {
			case s.HSVMedian.S < p.GrowthSeedSatMax && rbDiff > p.GrowthSeedRBMin:
				growthSats = append(growthSats, s.HSVMedian.S)
			case s.HSVMedian.S > p.InhibSeedSatMin &&
				s.HSVMedian.H >= p.InhibSeedHueLow && s.HSVMedian.H <= p.InhibSeedHueHigh:
				inhibSats = append(inhibSats, s.HSVMedian.S)
			}
		}
	}

	growthSat := ctrl.HSVMedian.S
	if len(growthSats) > 0 {
		growthSat, _ = stats.Median(growthSats)
	}
	inhibSat := p.DefaultInhibSat
	if len(inhibSats) > 0 {
		inhibSat, _ = stats.Median(inhibSats)
	}

	return Calibration{
		ControlHSV:      ctrl.HSVMedian,
		ControlRGB:      ctrl.RGBMean,
		GrowthSatMedian: growthSat,
		InhibSatMedian:  inhibSat,
		SatMidpoint:     (growthSat + inhibSat) / 2,
		GrowthSeeds:     len(growthSats),
		InhibitionSeeds: len(inhibSats),
	}
}

// relativeScore measures similarity to the control (growth) well:
// 1.0 growth-like, 0.0 inhibition-like. Saturation distance against the
// calibration anchors dominates; hue distance, red-minus-blue ratio, and
// green depression each contribute a fifth.
func relativeScore(s, ctrl well.ColorSample, cal Calibration) float64 {
	// Saturation distance, normalized over the anchor span.
	satRange := cal.InhibSatMedian - cal.GrowthSatMedian
	if satRange < 30 {
		satRange = 30
	}
	satScore := 1.0 - clip01((s.HSVMedian.S-cal.GrowthSatMedian)/satRange)

	// Circular hue distance from the control, collapsed beyond 35 units.
	hueDist := colorutil.HueDistance(s.HSVMedian.H, ctrl.HSVMedian.H)
	hueScore := 1.0 - hueDist/35.0
	if hueScore < 0 {
		hueScore = 0
	}

	// Red-minus-blue ratio against the control, with a tolerance band.
	wRB := s.RGBMean[0] - s.RGBMean[2]
	cRB := ctrl.RGBMean[0] - ctrl.RGBMean[2]
	var rbScore float64
	if cRB > 3 || cRB < -3 {
		ratio := wRB / cRB
		if ratio < -0.2 {
			ratio = -0.2
		}
		if ratio > 1.2 {
			ratio = 1.2
		}
		rbScore = clip01(ratio)
	} else if wRB > 0 {
		rbScore = 1.0
	}

	// Relative green-channel depression compared to the control.
	wG := s.RGBMean[1] / ((s.RGBMean[0]+s.RGBMean[1]+s.RGBMean[2])/3 + 1)
	cG := ctrl.RGBMean[1] / ((ctrl.RGBMean[0]+ctrl.RGBMean[1]+ctrl.RGBMean[2])/3 + 1)
	gScore := clip01(1.0 + (wG-cG)*5)

	return clip01(0.40*satScore + 0.20*hueScore + 0.20*rbScore + 0.20*gScore)
}

// absoluteScore judges the well's color on fixed evidence bands with no
// control comparison, as a sanity check against the relative score. It
// starts neutral at 0.5 and applies unconditional adjustments for
// saturation bands, hue bands, the red-minus-blue sign, and a
// green-depression check.
func absoluteScore(s well.ColorSample, p Params) float64 {
	h := s.HSVMedian.H
	sat := s.HSVMedian.S
	r, g, b := s.RGBMean[0], s.RGBMean[1], s.RGBMean[2]
	rbDiff := r - b

	score := 0.5

	// Saturation bands: the strongest absolute signal.
	switch {
	case sat < 35:
		score += 0.35
	case sat > 80:
		score -= 0.40
	case sat > 50:
		score -= 0.20
	default:
		t := (sat - 35) / 15.0
		score -= t * 0.15
	}

	// Hue bands: the purple inhibition band vs. the pink wrap range.
	if h >= 145 && h <= 165 {
		score -= 0.15
		if sat > 60 {
			score -= 0.10
		}
	} else if h >= 165 || h <= 12 {
		score += 0.10
	}

	// Red-minus-blue sign.
	if rbDiff < 0 {
		score -= 0.10
	} else if rbDiff > 15 {
		score += 0.10
	}

	// Green depressed below both red and blue while saturation is elevated.
	if g < r*0.7 && g < b*0.8 && sat > 50 {
		score -= 0.15
	}

	return clip01(score)
}

func clip01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
