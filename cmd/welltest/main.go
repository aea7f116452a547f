// Command welltest runs only the well-localization stages on a plate image
// and writes a debug overlay of the detected candidates and the fitted grid.
package main

import (
	"flag"
	"fmt"
	"image"
	"os"

	"gocv.io/x/gocv"

	"plate-reader/internal/assay"
	"plate-reader/internal/plate"
	"plate-reader/internal/well"
	"plate-reader/pkg/colorutil"
)

func main() {
	var (
		imagePath = flag.String("image", "", "plate photograph")
		outPath   = flag.String("out", "welltest.jpg", "debug overlay output")
		skipCrop  = flag.Bool("no-crop", false, "skip plate boundary detection")
	)
	flag.Parse()

	if *imagePath == "" {
		fmt.Fprintln(os.Stderr, "usage: welltest -image plate.jpg [-out welltest.jpg]")
		os.Exit(2)
	}

	src := gocv.IMRead(*imagePath, gocv.IMReadColor)
	if src.Empty() {
		fmt.Fprintln(os.Stderr, "could not read", *imagePath)
		os.Exit(1)
	}
	defer src.Close()

	cropped := src.Clone()
	if !*skipCrop {
		cropped.Close()
		cropped = plate.Detect(src)
	}
	defer cropped.Close()

	img, err := cropped.ToImage()
	if err != nil {
		fmt.Fprintln(os.Stderr, "convert:", err)
		os.Exit(1)
	}

	finder, err := well.NewHoughFinder(img)
	if err != nil {
		fmt.Fprintln(os.Stderr, "finder:", err)
		os.Exit(1)
	}
	defer finder.Close()

	p := well.DefaultSweepParams()
	bounds := img.Bounds()
	candidates, medianRadius, diag := well.AggregateCandidates(finder, bounds.Dx(), bounds.Dy(), p)
	fmt.Printf("sweep: %d runs (%d failed), %d raw -> %d merged -> %d kept, median r=%.1f\n",
		diag.SweepRuns, diag.SweepFailures, diag.RawDetections, diag.AfterMerge, diag.AfterEdge, medianRadius)

	grid, gdiag := well.FitGrid(candidates, bounds.Dx(), bounds.Dy(), medianRadius, p)
	fmt.Printf("grid: step=(%.1f, %.1f) origin=(%.1f, %.1f) assigned=%d fallback=%v\n",
		grid.Model.StepX, grid.Model.StepY, grid.Model.OriginX, grid.Model.OriginY,
		gdiag.AssignedSlots, gdiag.Fallback)

	samples := well.SampleGrid(img, grid, well.DefaultSampleParams())
	fmt.Println("\nper-well median HSV (H/S/V, * = model-predicted position):")
	for r := 0; r < assay.Rows; r++ {
		fmt.Printf("%s ", assay.RowLabels[r])
		for c := 0; c < assay.Cols; c++ {
			mark := " "
			if !grid.Slots[r][c].Detected {
				mark = "*"
			}
			s := samples[r][c].HSVMedian
			fmt.Printf(" %3.0f/%3.0f/%3.0f%s", s.H, s.S, s.V, mark)
		}
		fmt.Println()
	}

	out := cropped.Clone()
	defer out.Close()

	for _, cand := range candidates {
		center := image.Point{X: int(cand.Center.X), Y: int(cand.Center.Y)}
		gocv.Circle(&out, center, int(cand.Radius), colorutil.Yellow, 1)
	}
	for r := 0; r < assay.Rows; r++ {
		for c := 0; c < assay.Cols; c++ {
			slot := grid.Slots[r][c]
			center := image.Point{X: int(slot.Center.X), Y: int(slot.Center.Y)}
			col := colorutil.Green
			if !slot.Detected {
				col = colorutil.Red
			}
			gocv.Circle(&out, center, int(slot.Radius), col, 2)
		}
	}

	if ok := gocv.IMWrite(*outPath, out); !ok {
		fmt.Fprintln(os.Stderr, "could not write", *outPath)
		os.Exit(1)
	}
	fmt.Println("wrote", *outPath)
}
