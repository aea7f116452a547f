package classify

import "plate-reader/internal/assay"

// resolveUncertain applies gradient-based neighbor reasoning to every well
// left uncertain by phase 1. MIC plates run a monotonic concentration
// gradient per row (growth on the left, inhibition on the right), so a
// well's immediate row neighbors are strong disambiguating evidence.
//
// Rows are scanned A→H and columns left to right, and each uncertain well
// reads its neighbors' current state. When two adjacent wells start out
// uncertain, the right one may therefore resolve against the left one's
// already-resolved class. This order dependence is inherited behavior,
// kept deliberately; see DESIGN.md.
//
// Returns the number of wells resolved with medium confidence.
func resolveUncertain(wells *[assay.Rows][assay.Cols]ClassifiedWell, p Params) int {
	resolved := 0

	for row := 0; row < assay.Rows; row++ {
		for col := 0; col < assay.Cols; col++ {
			if wells[row][col].Classification != Uncertain {
				continue
			}

			left := Classification(-1) // missing
			if col > 0 {
				left = wells[row][col-1].Classification
			}
			right := Classification(-1)
			if col < assay.Cols-1 {
				right = wells[row][col+1].Classification
			}

			class, conf := neighborRule(wells[row][col].GrowthScore, left, right, p)
			wells[row][col].Classification = class
			wells[row][col].Confidence = conf
			if conf != ConfidenceLow {
				resolved++
			}
		}
	}
	return resolved
}

// neighborRule decides an uncertain well's class from its neighbors.
// A neighbor value of -1 means the well sits at the plate edge.
func neighborRule(score float64, left, right Classification, p Params) (Classification, Confidence) {
	missing := Classification(-1)

	// The growth→inhibition transition point: this is the MIC well itself.
	if left == Growth && right == Inhibition {
		return Inhibition, ConfidenceMedium
	}

	// Still inside the growth zone.
	if left == Growth && (right == Uncertain || right == missing) {
		return Growth, ConfidenceMedium
	}

	// Already inside the inhibition zone.
	if (left == Uncertain || left == missing) && right == Inhibition {
		return Inhibition, ConfidenceMedium
	}

	// Both neighbors agree.
	if left == Growth && right == Growth {
		return Growth, ConfidenceMedium
	}
	if left == Inhibition && right == Inhibition {
		return Inhibition, ConfidenceMedium
	}

	// Edge columns with one decisive neighbor.
	if left == missing && right == Inhibition {
		return Inhibition, ConfidenceMedium
	}
	if left == Growth && right == missing {
		return Growth, ConfidenceMedium
	}

	// No decisive neighbor information: fall back to the midpoint threshold.
	// Rare, and a genuine candidate for manual review.
	if score >= p.FallbackThreshold {
		return Growth, ConfidenceLow
	}
	return Inhibition, ConfidenceLow
}
