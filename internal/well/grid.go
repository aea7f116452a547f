package well

import (
	"math"
	"sort"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/mat"

	"plate-reader/internal/assay"
	"plate-reader/pkg/geometry"
)

const (
	// stepRatioLow/High bound the plausible StepX/StepY ratio. Wells are
	// square-pitched; a larger mismatch indicates noisy estimation, not a
	// genuinely non-square grid.
	stepRatioLow  = 0.85
	stepRatioHigh = 1.15

	// assignTolerance and scoreTolerance are fractions of max(StepX, StepY).
	scoreTolerance  = 0.35
	assignTolerance = 0.45

	// minRefinePoints is the least-squares cutoff: refinement stops early
	// when fewer assignments qualify, keeping the previous estimate.
	minRefinePoints = 20

	refineRounds = 3
)

// FitGrid estimates the grid model from filtered candidates and produces a
// complete 8×12 slot assignment. Slots without a matching candidate are
// filled with the model-predicted position and the median radius.
//
// With fewer than p.MinCandidates candidates, fitting is skipped entirely
// and a naive evenly-spaced grid is returned with every slot undetected.
func FitGrid(candidates []Candidate, imgW, imgH int, medianRadius float64, p SweepParams) (*Grid, GridDiagnostics) {
	var diag GridDiagnostics

	if len(candidates) < p.MinCandidates {
		diag.Fallback = true
		return naiveGrid(imgW, imgH, medianRadius), diag
	}

	expectedSX := float64(imgW) / float64(assay.Cols)
	expectedSY := float64(imgH) / float64(assay.Rows)

	stepX, pairsX := estimateStepFromPairs(candidates, true, expectedSX, expectedSY*0.4)
	stepY, pairsY := estimateStepFromPairs(candidates, false, expectedSY, expectedSX*0.4)
	diag.StepPairsX = pairsX
	diag.StepPairsY = pairsY
	if stepX == 0 {
		stepX = expectedSX
	}
	if stepY == 0 {
		stepY = expectedSY
	}

	// Square-pitch correction.
	if ratio := stepX / stepY; ratio < stepRatioLow || ratio > stepRatioHigh {
		avg := (stepX + stepY) / 2
		stepX, stepY = avg, avg
		diag.RatioCorrected = true
	}

	originX, originY, score := searchOrigin(candidates, stepX, stepY, expectedSX, expectedSY)
	diag.OriginScore = score

	model := GridModel{OriginX: originX, OriginY: originY, StepX: stepX, StepY: stepY}
	model, diag.RefineRounds = refineLeastSquares(candidates, model)

	grid := &Grid{Model: model, MedianRadius: medianRadius}
	assigned := assignSlots(grid, candidates, medianRadius)
	diag.AssignedSlots = assigned

	return grid, diag
}

// naiveGrid returns an evenly-spaced grid: step exactly image/12 and
// image/8, origin at half a step, every slot undetected.
func naiveGrid(imgW, imgH int, medianRadius float64) *Grid {
	model := GridModel{
		StepX: float64(imgW) / float64(assay.Cols),
		StepY: float64(imgH) / float64(assay.Rows),
	}
	model.OriginX = model.StepX / 2
	model.OriginY = model.StepY / 2

	grid := &Grid{Model: model, MedianRadius: medianRadius, Fallback: true}
	for r := 0; r < assay.Rows; r++ {
		for c := 0; c < assay.Cols; c++ {
			grid.Slots[r][c] = Slot{
				Center: model.CenterAt(r, c),
				Radius: medianRadius,
			}
		}
	}
	return grid
}

// estimateStepFromPairs estimates one axis step by pairwise voting:
// candidates roughly sharing a row (for X) or column (for Y) should be an
// integer number of steps apart. Only distances whose implied unit step
// stays near the expected cell size vote, which makes the estimate robust
// to a minority of stray candidates. Returns 0 when fewer than 5 pairs
// qualify.
func estimateStepFromPairs(candidates []Candidate, xAxis bool, expectedStep, maxOtherDist float64) (float64, int) {
	axisOf := func(c Candidate) float64 {
		if xAxis {
			return c.Center.X
		}
		return c.Center.Y
	}
	otherOf := func(c Candidate) float64 {
		if xAxis {
			return c.Center.Y
		}
		return c.Center.X
	}

	var unitDists []float64
	for i := 0; i < len(candidates); i++ {
		for j := i + 1; j < len(candidates); j++ {
			if math.Abs(otherOf(candidates[i])-otherOf(candidates[j])) > maxOtherDist {
				continue
			}
			axisDiff := math.Abs(axisOf(candidates[i]) - axisOf(candidates[j]))
			if axisDiff < expectedStep*0.5 {
				continue
			}
			nSteps := math.Round(axisDiff / expectedStep)
			if nSteps < 1 || nSteps > float64(assay.Cols) {
				continue
			}
			unit := axisDiff / nSteps
			if unit > 0.7*expectedStep && unit < 1.3*expectedStep {
				unitDists = append(unitDists, unit)
			}
		}
	}

	if len(unitDists) < 5 {
		return 0, len(unitDists)
	}
	median, _ := stats.Median(unitDists)
	return median, len(unitDists)
}

// searchOrigin enumerates origin candidates by back-solving, for every
// candidate and every plausible grid index, the origin that would place it
// there. Candidate origins are quantised to 0.1 px and scored in sorted
// numeric order so the search is deterministic; ties keep the first
// (lowest) origin.
func searchOrigin(candidates []Candidate, stepX, stepY, expectedSX, expectedSY float64) (float64, float64, int) {
	oxSet := map[int64]struct{}{}
	oySet := map[int64]struct{}{}
	quant := func(v float64) int64 { return int64(math.Round(v * 10)) }

	for _, c := range candidates {
		for col := 0; col < assay.Cols; col++ {
			ox := c.Center.X - float64(col)*stepX
			if ox > -stepX*0.3 && ox < stepX*1.5 {
				oxSet[quant(ox)] = struct{}{}
			}
		}
		for row := 0; row < assay.Rows; row++ {
			oy := c.Center.Y - float64(row)*stepY
			if oy > -stepY*0.3 && oy < stepY*1.5 {
				oySet[quant(oy)] = struct{}{}
			}
		}
	}
	oxSet[quant(expectedSX/2)] = struct{}{}
	oySet[quant(expectedSY/2)] = struct{}{}

	oxList := sortedQuantised(oxSet)
	oyList := sortedQuantised(oySet)

	bestScore := -1
	var bestOX, bestOY float64
	for _, ox := range oxList {
		for _, oy := range oyList {
			s := scoreOrigin(candidates, GridModel{OriginX: ox, OriginY: oy, StepX: stepX, StepY: stepY})
			if s > bestScore {
				bestScore = s
				bestOX, bestOY = ox, oy
			}
		}
	}
	return bestOX, bestOY, bestScore
}

func sortedQuantised(set map[int64]struct{}) []float64 {
	keys := make([]int64, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	vals := make([]float64, len(keys))
	for i, k := range keys {
		vals[i] = float64(k) / 10
	}
	return vals
}

// scoreOrigin counts candidates that land within the score tolerance of
// some unique grid slot (first match claims the slot).
func scoreOrigin(candidates []Candidate, model GridModel) int {
	threshold := scoreTolerance * math.Max(model.StepX, model.StepY)
	used := map[[2]int]bool{}
	score := 0

	for _, c := range candidates {
		row, col, err := nearestSlot(model, c.Center)
		if row < 0 {
			continue
		}
		if err < threshold && !used[[2]int{row, col}] {
			used[[2]int{row, col}] = true
			score++
		}
	}
	return score
}

// nearestSlot returns the nearest in-range slot indices for a point and the
// positional error to that slot's predicted center. Row is -1 when the
// rounded indices fall outside the plate.
func nearestSlot(model GridModel, pt geometry.Point2D) (row, col int, err float64) {
	col = int(math.Round((pt.X - model.OriginX) / model.StepX))
	row = int(math.Round((pt.Y - model.OriginY) / model.StepY))
	if row < 0 || row >= assay.Rows || col < 0 || col >= assay.Cols {
		return -1, -1, math.Inf(1)
	}
	return row, col, pt.Distance(model.CenterAt(row, col))
}

// refineLeastSquares sharpens origin and step by up to three rounds of
// per-axis ordinary least squares over accepted slot assignments. A round
// with fewer than minRefinePoints acceptances stops the iteration and keeps
// the previous estimate.
func refineLeastSquares(candidates []Candidate, model GridModel) (GridModel, int) {
	rounds := 0
	for iter := 0; iter < refineRounds; iter++ {
		threshold := scoreTolerance * math.Max(model.StepX, model.StepY)

		var cols, xs, rows, ys []float64
		for _, c := range candidates {
			row, col, err := nearestSlot(model, c.Center)
			if row < 0 || err >= threshold {
				continue
			}
			cols = append(cols, float64(col))
			xs = append(xs, c.Center.X)
			rows = append(rows, float64(row))
			ys = append(ys, c.Center.Y)
		}

		if len(xs) < minRefinePoints {
			break
		}

		ox, sx, errX := fitAxisOLS(cols, xs)
		oy, sy, errY := fitAxisOLS(rows, ys)
		if errX != nil || errY != nil || sx <= 0 || sy <= 0 {
			break
		}

		model = GridModel{OriginX: ox, OriginY: oy, StepX: sx, StepY: sy}
		rounds++
	}
	return model, rounds
}

// fitAxisOLS solves coord = origin + index*step by least squares via QR.
func fitAxisOLS(indices, coords []float64) (origin, step float64, err error) {
	n := len(indices)
	a := mat.NewDense(n, 2, nil)
	b := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		a.Set(i, 0, 1)
		a.Set(i, 1, indices[i])
		b.SetVec(i, coords[i])
	}

	var qr mat.QR
	qr.Factorize(a)

	var params mat.VecDense
	if err := qr.SolveVecTo(&params, false, b); err != nil {
		return 0, 0, err
	}
	return params.AtVec(0), params.AtVec(1), nil
}

// assignSlots assigns each candidate to its nearest slot within the
// assignment tolerance, keeping the candidate with the smaller positional
// error when two compete. Unclaimed slots get the model-predicted center,
// the median radius, and Detected=false.
func assignSlots(grid *Grid, candidates []Candidate, medianRadius float64) int {
	model := grid.Model
	threshold := assignTolerance * math.Max(model.StepX, model.StepY)

	type claim struct {
		cand Candidate
		err  float64
	}
	claims := map[[2]int]claim{}

	for _, c := range candidates {
		row, col, err := nearestSlot(model, c.Center)
		if row < 0 || err >= threshold {
			continue
		}
		key := [2]int{row, col}
		if prev, ok := claims[key]; !ok || err < prev.err {
			claims[key] = claim{cand: c, err: err}
		}
	}

	assigned := 0
	for r := 0; r < assay.Rows; r++ {
		for c := 0; c < assay.Cols; c++ {
			if cl, ok := claims[[2]int{r, c}]; ok {
				grid.Slots[r][c] = Slot{
					Center:   cl.cand.Center,
					Radius:   cl.cand.Radius,
					Detected: true,
				}
				assigned++
				continue
			}
			grid.Slots[r][c] = Slot{
				Center: model.CenterAt(r, c),
				Radius: medianRadius,
			}
		}
	}
	return assigned
}
