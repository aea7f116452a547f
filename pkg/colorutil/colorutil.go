// Package colorutil provides shared color utilities for the plate reader.
//
// Hue values follow the OpenCV convention throughout: H in 0-180,
// S and V in 0-255. Circular hue helpers treat the hue axis as an angle
// that wraps at 180, which matters for the pink/red colors that sit on
// both sides of the wrap point.
package colorutil

import (
	"image/color"
	"math"
	"sort"
)

// Common overlay colors used by the report renderer.
var (
	Black  = color.RGBA{R: 0, G: 0, B: 0, A: 255}
	White  = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	Green  = color.RGBA{R: 0, G: 200, B: 0, A: 255}
	Red    = color.RGBA{R: 220, G: 0, B: 0, A: 255}
	Yellow = color.RGBA{R: 220, G: 200, B: 0, A: 255}
	Orange = color.RGBA{R: 255, G: 165, B: 0, A: 255}
)

// HSV holds a color in OpenCV-scaled HSV space.
type HSV struct {
	H float64 `json:"h"` // 0-180
	S float64 `json:"s"` // 0-255
	V float64 `json:"v"` // 0-255
}

// RGBToHSV converts RGB (0-255) to HSV (OpenCV convention: H 0-180, S 0-255, V 0-255).
func RGBToHSV(r, g, b float64) (h, s, v float64) {
	r /= 255.0
	g /= 255.0
	b /= 255.0

	maxC := math.Max(r, math.Max(g, b))
	minC := math.Min(r, math.Min(g, b))
	diff := maxC - minC

	v = maxC * 255.0 // V in 0-255

	if maxC == 0 {
		s = 0
	} else {
		s = (diff / maxC) * 255.0 // S in 0-255
	}

	if diff == 0 {
		h = 0
	} else if maxC == r {
		h = 60 * math.Mod((g-b)/diff, 6)
	} else if maxC == g {
		h = 60 * ((b-r)/diff + 2)
	} else {
		h = 60 * ((r-g)/diff + 4)
	}

	if h < 0 {
		h += 360
	}

	h = h / 2 // Convert to OpenCV's 0-180 range

	return h, s, v
}

// HueDistance returns the shortest angular distance between two hues
// on the 0-180 circle.
func HueDistance(h1, h2 float64) float64 {
	diff := math.Abs(h1 - h2)
	return math.Min(diff, 180-diff)
}

// CircularMeanHue computes the mean hue by averaging unit vectors on the
// hue circle. A linear mean of {5, 175} would give 90 (green); the circular
// mean correctly lands near the 0/180 wrap.
func CircularMeanHue(hues []float64) float64 {
	if len(hues) == 0 {
		return 0
	}
	var sinSum, cosSum float64
	for _, h := range hues {
		a := h * (2 * math.Pi / 180)
		sinSum += math.Sin(a)
		cosSum += math.Cos(a)
	}
	n := float64(len(hues))
	mean := math.Atan2(sinSum/n, cosSum/n) * (180 / (2 * math.Pi))
	return math.Mod(mean+180, 180)
}

// CircularMedianHue computes a median hue that is robust to the 0/180 wrap.
// When the sample straddles the wrap point (values both below 30 and above
// 150), the hues are rotated by 90 before taking the median and rotated back.
func CircularMedianHue(hues []float64) float64 {
	if len(hues) == 0 {
		return 0
	}
	var low, high bool
	for _, h := range hues {
		if h < 30 {
			low = true
		}
		if h > 150 {
			high = true
		}
	}

	vals := make([]float64, len(hues))
	if low && high {
		for i, h := range hues {
			vals[i] = math.Mod(h+90, 180)
		}
		return math.Mod(linearMedian(vals)-90+180, 180)
	}
	copy(vals, hues)
	return linearMedian(vals)
}

func linearMedian(vals []float64) float64 {
	sort.Float64s(vals)
	n := len(vals)
	if n%2 == 0 {
		return (vals[n/2-1] + vals[n/2]) / 2
	}
	return vals[n/2]
}
