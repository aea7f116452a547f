package well

import "plate-reader/internal/assay"

// FinderParams parameterizes one circular-feature detection run.
// The accumulator threshold is the detector's sensitivity: lower values
// accept weaker circle evidence.
type FinderParams struct {
	BlurSize             int     // Gaussian kernel size, odd
	DP                   float64 // inverse accumulator resolution ratio
	MinDist              float64 // minimum center separation in pixels
	CannyThreshold       float64 // edge detector high threshold
	AccumulatorThreshold float64 // circle vote threshold
	MinRadius            int
	MaxRadius            int
}

// SweepParams controls the detection parameter sweep. No single setting
// reliably finds all 96 wells under uneven illumination, so the aggregator
// pools detections across the full blur × sensitivity product.
type SweepParams struct {
	BlurSizes      []int
	Sensitivities  []float64
	DP             float64
	CannyThreshold float64

	// Geometry factors relative to the expected cell size (image/12 × image/8).
	ExpectedRadiusFraction float64 // expected well radius as fraction of cell
	MinRadiusFactor        float64 // of expected radius
	MaxRadiusFactor        float64 // of expected radius
	MinDistFactor          float64 // of expected cell

	// Aggregation filters.
	MergeDistFactor  float64 // of MinDist; candidates closer than this merge
	RadiusBandLow    float64 // of median radius
	RadiusBandHigh   float64 // of median radius
	EdgeMarginFactor float64 // of median radius

	// Below this many filtered candidates the fitter falls back to a
	// naive evenly-spaced grid.
	MinCandidates int
}

// DefaultSweepParams returns the sweep used for plate photographs.
func DefaultSweepParams() SweepParams {
	return SweepParams{
		BlurSizes:      []int{7, 9, 11},
		Sensitivities:  []float64{22, 28, 35},
		DP:             1.0,
		CannyThreshold: 50,

		ExpectedRadiusFraction: 0.42,
		MinRadiusFactor:        0.5,
		MaxRadiusFactor:        1.3,
		MinDistFactor:          0.65,

		MergeDistFactor:  0.5,
		RadiusBandLow:    0.6,
		RadiusBandHigh:   1.4,
		EdgeMarginFactor: 0.5,

		MinCandidates: 20,
	}
}

// ExpectedCell returns the expected well pitch for an image of the given
// size, assuming the crop covers the full 8×12 plate.
func ExpectedCell(imgW, imgH int) float64 {
	cw := float64(imgW) / float64(assay.Cols)
	ch := float64(imgH) / float64(assay.Rows)
	if cw < ch {
		return cw
	}
	return ch
}

// SampleParams controls per-slot color sampling.
type SampleParams struct {
	// MaskRadiusFraction is the sampling circle radius as a fraction of the
	// slot radius. Deliberately conservative to stay clear of well-wall
	// shadows and edge reflections.
	MaskRadiusFraction float64

	// SpecularVThreshold excludes pixels whose V channel is at or above this
	// value (specular reflections off the liquid surface).
	SpecularVThreshold float64

	// MinSaturation excludes near-gray pixels below this S value.
	MinSaturation float64

	// MinValidPixels is the relaxation point: below this count the validity
	// predicates are dropped and the mask alone is used.
	MinValidPixels int

	// MinCropSize marks a crop degenerate when either dimension is smaller.
	MinCropSize int
}

// DefaultSampleParams returns sampling parameters for plate photographs.
func DefaultSampleParams() SampleParams {
	return SampleParams{
		MaskRadiusFraction: 0.45,
		SpecularVThreshold: 245,
		MinSaturation:      15,
		MinValidPixels:     10,
		MinCropSize:        5,
	}
}
