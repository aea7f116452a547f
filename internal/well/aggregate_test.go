package well

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plate-reader/pkg/geometry"
)

// fakeFinder returns a fixed candidate set (or error) for every sweep run.
type fakeFinder struct {
	found []Candidate
	err   error
	calls int
}

func (f *fakeFinder) FindCircles(p FinderParams) ([]Candidate, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([]Candidate, len(f.found))
	copy(out, f.found)
	return out, nil
}

func cand(x, y, r float64) Candidate {
	return Candidate{Center: geometry.Point2D{X: x, Y: y}, Radius: r}
}

// fullPlateCandidates builds one candidate per well for a 1200x800 image
// with a 100 px pitch.
func fullPlateCandidates() []Candidate {
	var out []Candidate
	for row := 0; row < 8; row++ {
		for col := 0; col < 12; col++ {
			out = append(out, cand(50+float64(col)*100, 50+float64(row)*100, 40))
		}
	}
	return out
}

func TestAggregateCandidates_MergesSweepDuplicates(t *testing.T) {
	finder := &fakeFinder{found: fullPlateCandidates()}
	p := DefaultSweepParams()

	candidates, medianR, diag := AggregateCandidates(finder, 1200, 800, p)

	assert.Equal(t, 9, diag.SweepRuns) // 3 blurs x 3 sensitivities
	assert.Equal(t, 9, finder.calls)
	assert.Equal(t, 0, diag.SweepFailures)
	assert.Equal(t, 9*96, diag.RawDetections)

	// The same 96 wells nine times over must collapse back to 96.
	assert.Equal(t, 96, diag.AfterMerge)
	assert.Len(t, candidates, 96)
	assert.InDelta(t, 40, medianR, 1e-9)
}

func TestAggregateCandidates_AllRunsFail(t *testing.T) {
	finder := &fakeFinder{err: errors.New("detector unavailable")}
	p := DefaultSweepParams()

	candidates, medianR, diag := AggregateCandidates(finder, 1200, 800, p)

	assert.Empty(t, candidates)
	assert.Equal(t, 9, diag.SweepFailures)
	assert.Equal(t, 0, diag.RawDetections)

	// With nothing detected the fallback radius is the expected well radius.
	assert.InDelta(t, 100*p.ExpectedRadiusFraction, medianR, 1e-9)
}

func TestAggregateCandidates_RadiusBandFilter(t *testing.T) {
	found := []Candidate{
		cand(150, 150, 40), cand(250, 150, 41), cand(350, 150, 39),
		cand(450, 150, 40), cand(550, 150, 42), cand(650, 150, 40),
		// Noise: far too small and far too large versus the median.
		cand(150, 350, 10),
		cand(350, 350, 90),
	}
	finder := &fakeFinder{found: found}

	candidates, _, diag := AggregateCandidates(finder, 1200, 800, DefaultSweepParams())

	assert.Equal(t, 8, diag.AfterMerge)
	assert.Equal(t, 6, diag.AfterRadius)
	assert.Len(t, candidates, 6)
	for _, c := range candidates {
		assert.InDelta(t, 40, c.Radius, 3)
	}
}

func TestAggregateCandidates_EdgeFilter(t *testing.T) {
	found := []Candidate{
		cand(150, 150, 40), cand(250, 150, 40), cand(350, 150, 40),
		// Center closer to the border than half the median radius.
		cand(10, 400, 40),
	}
	finder := &fakeFinder{found: found}

	candidates, _, diag := AggregateCandidates(finder, 1200, 800, DefaultSweepParams())

	assert.Equal(t, 4, diag.AfterRadius)
	assert.Equal(t, 3, diag.AfterEdge)
	for _, c := range candidates {
		assert.Greater(t, c.Center.X, 20.0)
	}
}

func TestMergeCandidates_Transitive(t *testing.T) {
	// A-B and B-C are within merge distance but A-C is not; transitivity
	// must still collapse the chain into a single averaged candidate.
	chain := []Candidate{
		cand(0, 0, 38),
		cand(5, 0, 40),
		cand(10, 0, 42),
	}

	merged := mergeCandidates(chain, 6)

	require.Len(t, merged, 1)
	assert.InDelta(t, 5, merged[0].Center.X, 1e-9)
	assert.InDelta(t, 0, merged[0].Center.Y, 1e-9)
	assert.InDelta(t, 40, merged[0].Radius, 1e-9)
}

func TestMergeCandidates_KeepsDistinct(t *testing.T) {
	distinct := []Candidate{cand(0, 0, 40), cand(100, 0, 40), cand(0, 100, 40)}

	merged := mergeCandidates(distinct, 6)

	assert.Len(t, merged, 3)
}

func TestMergeCandidates_Deterministic(t *testing.T) {
	pool := fullPlateCandidates()
	pool = append(pool, fullPlateCandidates()...)

	a := mergeCandidates(pool, 30)
	b := mergeCandidates(pool, 30)

	assert.Equal(t, a, b)
}
