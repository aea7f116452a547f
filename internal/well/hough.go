package well

import (
	"fmt"
	"image"

	"plate-reader/pkg/geometry"

	"gocv.io/x/gocv"
)

// CircleFinder is the capability interface for circular-feature detection.
// A finder is bound to one grayscale plate image; the aggregator only
// controls how it is parameterized and swept. Any detector producing
// (center, radius) candidates can substitute for the Hough implementation.
type CircleFinder interface {
	FindCircles(p FinderParams) ([]Candidate, error)
}

// HoughFinder detects circles with the gradient-based circular Hough
// transform (OpenCV HoughCircles).
type HoughFinder struct {
	gray gocv.Mat
}

// NewHoughFinder converts the plate image to a grayscale Mat and returns a
// finder bound to it. Close must be called to release the Mat.
func NewHoughFinder(srcImg image.Image) (*HoughFinder, error) {
	mat, err := imageToMat(srcImg)
	if err != nil {
		return nil, fmt.Errorf("failed to convert image: %w", err)
	}
	defer mat.Close()

	gray := gocv.NewMat()
	gocv.CvtColor(mat, &gray, gocv.ColorBGRToGray)
	return &HoughFinder{gray: gray}, nil
}

// Close releases the underlying Mat.
func (f *HoughFinder) Close() {
	f.gray.Close()
}

// FindCircles runs one Hough detection pass with the given parameters.
func (f *HoughFinder) FindCircles(p FinderParams) ([]Candidate, error) {
	if f.gray.Empty() {
		return nil, fmt.Errorf("empty image")
	}

	blurSize := p.BlurSize
	if blurSize%2 == 0 {
		blurSize++
	}
	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(f.gray, &blurred, image.Point{X: blurSize, Y: blurSize}, 2, 2, gocv.BorderDefault)

	circles := gocv.NewMat()
	defer circles.Close()

	gocv.HoughCirclesWithParams(blurred, &circles, gocv.HoughGradient,
		p.DP, p.MinDist,
		p.CannyThreshold, p.AccumulatorThreshold,
		p.MinRadius, p.MaxRadius)

	if circles.Empty() || circles.Cols() == 0 {
		return nil, nil
	}

	candidates := make([]Candidate, circles.Cols())
	for i := 0; i < circles.Cols(); i++ {
		candidates[i] = Candidate{
			Center: geometry.Point2D{
				X: float64(circles.GetFloatAt(0, i*3)),
				Y: float64(circles.GetFloatAt(0, i*3+1)),
			},
			Radius: float64(circles.GetFloatAt(0, i*3+2)),
		}
	}
	return candidates, nil
}

// imageToMat converts a Go image.Image to an OpenCV Mat in BGR order.
func imageToMat(srcImg image.Image) (gocv.Mat, error) {
	bounds := srcImg.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	mat := gocv.NewMatWithSize(h, w, gocv.MatTypeCV8UC3)

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b, _ := srcImg.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			mat.SetUCharAt(y, x*3+0, uint8(b>>8))
			mat.SetUCharAt(y, x*3+1, uint8(g>>8))
			mat.SetUCharAt(y, x*3+2, uint8(r>>8))
		}
	}

	return mat, nil
}
