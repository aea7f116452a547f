// Package plate locates the 96-well plate region in a photograph and
// returns an upright, perspective-corrected crop for the well pipeline.
package plate

import (
	"image"
	"math"
	"sort"

	"gocv.io/x/gocv"

	"plate-reader/pkg/geometry"
)

// 96-well plates measure 127.76 × 85.48 mm; the acceptable aspect band for
// a bounding-rect fallback crop.
const (
	aspectMin = 1.2
	aspectMax = 1.8

	cannyLow  = 30
	cannyHigh = 100
)

// Detect finds the microplate region and returns a cropped, aligned image.
// When no plausible plate rectangle is found the full image is returned
// unchanged; the caller decides whether to proceed.
func Detect(src gocv.Mat) gocv.Mat {
	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(src, &gray, gocv.ColorBGRToGray)

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(gray, &blurred, image.Point{X: 5, Y: 5}, 0, 0, gocv.BorderDefault)

	edges := gocv.NewMat()
	defer edges.Close()
	gocv.Canny(blurred, &edges, cannyLow, cannyHigh)

	// Dilate to connect edge fragments along the plate frame.
	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Point{X: 5, Y: 5})
	defer kernel.Close()
	gocv.Dilate(edges, &edges, kernel)
	gocv.Dilate(edges, &edges, kernel)

	contours := gocv.FindContours(edges, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	if contours.Size() == 0 {
		return src.Clone()
	}

	// Largest contours first.
	idx := make([]int, contours.Size())
	areas := make([]float64, contours.Size())
	for i := 0; i < contours.Size(); i++ {
		idx[i] = i
		areas[i] = gocv.ContourArea(contours.At(i))
	}
	sort.Slice(idx, func(a, b int) bool { return areas[idx[a]] > areas[idx[b]] })

	// Among the five largest, find one that approximates to a quadrilateral.
	for rank := 0; rank < 5 && rank < len(idx); rank++ {
		cnt := contours.At(idx[rank])
		peri := gocv.ArcLength(cnt, true)
		approx := gocv.ApproxPolyDP(cnt, 0.02*peri, true)
		if approx.Size() == 4 {
			pts := make([]geometry.Point2D, 4)
			for i := 0; i < 4; i++ {
				p := approx.At(i)
				pts[i] = geometry.Point2D{X: float64(p.X), Y: float64(p.Y)}
			}
			approx.Close()
			return fourPointTransform(src, orderCorners(pts))
		}
		approx.Close()
	}

	// Fallback: bounding rect of the largest contour, accepted only when its
	// aspect ratio is plausible for a plate.
	rect := gocv.BoundingRect(contours.At(idx[0]))
	const pad = 5
	x := maxInt(0, rect.Min.X-pad)
	y := maxInt(0, rect.Min.Y-pad)
	w := minInt(src.Cols()-x, rect.Dx()+2*pad)
	h := minInt(src.Rows()-y, rect.Dy()+2*pad)

	if h > 0 {
		aspect := float64(w) / float64(h)
		if aspect > aspectMin && aspect < aspectMax {
			region := src.Region(image.Rect(x, y, x+w, y+h))
			defer region.Close()
			return region.Clone()
		}
	}

	return src.Clone()
}

// orderCorners orders 4 points as top-left, top-right, bottom-right,
// bottom-left. The top-left corner has the smallest x+y sum, the
// bottom-right the largest; the top-right has the smallest y−x difference.
func orderCorners(pts []geometry.Point2D) [4]geometry.Point2D {
	var ordered [4]geometry.Point2D
	minSum, maxSum := math.Inf(1), math.Inf(-1)
	minDiff, maxDiff := math.Inf(1), math.Inf(-1)

	for _, p := range pts {
		sum := p.X + p.Y
		diff := p.Y - p.X
		if sum < minSum {
			minSum = sum
			ordered[0] = p
		}
		if sum > maxSum {
			maxSum = sum
			ordered[2] = p
		}
		if diff < minDiff {
			minDiff = diff
			ordered[1] = p
		}
		if diff > maxDiff {
			maxDiff = diff
			ordered[3] = p
		}
	}
	return ordered
}

// fourPointTransform warps the quadrilateral spanned by the ordered corners
// into an upright rectangle sized by the longer opposing edges.
func fourPointTransform(src gocv.Mat, corners [4]geometry.Point2D) gocv.Mat {
	tl, tr, br, bl := corners[0], corners[1], corners[2], corners[3]

	maxW := int(math.Max(br.Distance(bl), tr.Distance(tl)))
	maxH := int(math.Max(tr.Distance(br), tl.Distance(bl)))
	if maxW < 1 || maxH < 1 {
		return src.Clone()
	}

	srcPts := gocv.NewPoint2fVectorFromPoints([]gocv.Point2f{
		{X: float32(tl.X), Y: float32(tl.Y)},
		{X: float32(tr.X), Y: float32(tr.Y)},
		{X: float32(br.X), Y: float32(br.Y)},
		{X: float32(bl.X), Y: float32(bl.Y)},
	})
	defer srcPts.Close()

	dstPts := gocv.NewPoint2fVectorFromPoints([]gocv.Point2f{
		{X: 0, Y: 0},
		{X: float32(maxW - 1), Y: 0},
		{X: float32(maxW - 1), Y: float32(maxH - 1)},
		{X: 0, Y: float32(maxH - 1)},
	})
	defer dstPts.Close()

	m := gocv.GetPerspectiveTransform2f(srcPts, dstPts)
	defer m.Close()

	warped := gocv.NewMat()
	gocv.WarpPerspective(src, &warped, m, image.Point{X: maxW, Y: maxH})
	return warped
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
