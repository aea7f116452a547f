package well

import (
	"github.com/montanaflynn/stats"

	"plate-reader/pkg/geometry"
)

// AggregateCandidates runs the circle finder across the parameter sweep,
// merges duplicate detections, and filters the pool by radius consistency
// and image-edge proximity.
//
// A sweep setting that errors or detects nothing contributes zero
// candidates; the failure count is surfaced in the diagnostics. The
// returned median radius is the fallback radius for undetected slots
// (the expected well radius when nothing at all was detected).
func AggregateCandidates(finder CircleFinder, imgW, imgH int, p SweepParams) ([]Candidate, float64, DetectionDiagnostics) {
	expectedCell := ExpectedCell(imgW, imgH)
	expectedR := expectedCell * p.ExpectedRadiusFraction
	minDist := expectedCell * p.MinDistFactor

	var diag DetectionDiagnostics

	var pooled []Candidate
	for _, blur := range p.BlurSizes {
		for _, sens := range p.Sensitivities {
			diag.SweepRuns++
			found, err := finder.FindCircles(FinderParams{
				BlurSize:             blur,
				DP:                   p.DP,
				MinDist:              minDist,
				CannyThreshold:       p.CannyThreshold,
				AccumulatorThreshold: sens,
				MinRadius:            int(expectedR * p.MinRadiusFactor),
				MaxRadius:            int(expectedR * p.MaxRadiusFactor),
			})
			if err != nil {
				diag.SweepFailures++
				continue
			}
			pooled = append(pooled, found...)
		}
	}
	diag.RawDetections = len(pooled)

	if len(pooled) == 0 {
		diag.MedianRadius = expectedR
		return nil, expectedR, diag
	}

	merged := mergeCandidates(pooled, minDist*p.MergeDistFactor)
	diag.AfterMerge = len(merged)

	radii := make([]float64, len(merged))
	for i, c := range merged {
		radii[i] = c.Radius
	}
	medianR, _ := stats.Median(radii)

	// Radius band filter: spurious small/large detections come from noise
	// and plate border artifacts.
	var radiusOK []Candidate
	for _, c := range merged {
		if c.Radius >= medianR*p.RadiusBandLow && c.Radius <= medianR*p.RadiusBandHigh {
			radiusOK = append(radiusOK, c)
		}
	}
	diag.AfterRadius = len(radiusOK)

	// Edge filter: centers too close to the image border are typically
	// partial-circle artifacts from adjacent wells or the plate frame.
	margin := medianR * p.EdgeMarginFactor
	var filtered []Candidate
	for _, c := range radiusOK {
		if c.Center.X > margin && c.Center.X < float64(imgW)-margin &&
			c.Center.Y > margin && c.Center.Y < float64(imgH)-margin {
			filtered = append(filtered, c)
		}
	}
	diag.AfterEdge = len(filtered)
	diag.MedianRadius = medianR

	return filtered, medianR, diag
}

// mergeCandidates merges candidates closer than mergeDist into one by
// averaging center and radius. Grouping is transitive: if A merges with B
// and B with C, all three collapse to a single candidate.
func mergeCandidates(candidates []Candidate, mergeDist float64) []Candidate {
	n := len(candidates)
	if n <= 1 {
		return candidates
	}

	// Union-find over proximity pairs.
	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		for parent[i] != i {
			parent[i] = parent[parent[i]]
			i = parent[i]
		}
		return i
	}
	union := func(a, b int) {
		ra, rb := find(a), find(b)
		if ra != rb {
			parent[rb] = ra
		}
	}

	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if candidates[i].Center.Distance(candidates[j].Center) < mergeDist {
				union(i, j)
			}
		}
	}

	type cluster struct {
		sumX, sumY, sumR float64
		count            int
		first            int
	}
	clusters := make(map[int]*cluster)
	order := make([]int, 0)
	for i, c := range candidates {
		root := find(i)
		cl, ok := clusters[root]
		if !ok {
			cl = &cluster{first: i}
			clusters[root] = cl
			order = append(order, root)
		}
		cl.sumX += c.Center.X
		cl.sumY += c.Center.Y
		cl.sumR += c.Radius
		cl.count++
	}

	// Emit clusters in first-seen order so the result is deterministic.
	merged := make([]Candidate, 0, len(order))
	for _, root := range order {
		cl := clusters[root]
		k := float64(cl.count)
		merged = append(merged, Candidate{
			Center: geometry.Point2D{X: cl.sumX / k, Y: cl.sumY / k},
			Radius: cl.sumR / k,
		})
	}
	return merged
}
