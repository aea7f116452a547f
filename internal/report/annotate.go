// Package report renders analysis results into reviewable artifacts: an
// annotated plate image, a score heatmap, and CSV/XLSX result tables.
package report

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"plate-reader/internal/assay"
	"plate-reader/internal/classify"
	"plate-reader/internal/mic"
	"plate-reader/internal/well"
	"plate-reader/pkg/colorutil"
)

// classColor maps a final classification to its overlay color.
func classColor(c classify.Classification) color.RGBA {
	switch c {
	case classify.Growth:
		return colorutil.Green
	case classify.Inhibition:
		return colorutil.Red
	default:
		return colorutil.Yellow
	}
}

// Annotate draws the well grid, per-well classifications and scores, and the
// MIC wells onto a copy of the plate image.
func Annotate(src gocv.Mat, grid *well.Grid, plate *classify.PlateClassification, micResult *mic.Result) gocv.Mat {
	out := src.Clone()

	micWells := map[[2]int]bool{}
	if micResult != nil {
		for _, rr := range micResult.Rows {
			if rr.MICColumn >= 0 {
				rowIdx := rowIndex(rr.Row)
				if rowIdx >= 0 {
					micWells[[2]int{rowIdx, rr.MICColumn}] = true
				}
			}
		}
	}

	for r := 0; r < assay.Rows; r++ {
		for c := 0; c < assay.Cols; c++ {
			slot := grid.Slots[r][c]
			cw := plate.Wells[r][c]
			center := image.Point{X: int(slot.Center.X), Y: int(slot.Center.Y)}
			radius := int(slot.Radius)

			thickness := 2
			if !slot.Detected {
				thickness = 1
			}
			gocv.Circle(&out, center, radius, classColor(cw.Classification), thickness)

			// MIC wells get a second, heavier ring.
			if micWells[[2]int{r, c}] {
				gocv.Circle(&out, center, radius+4, colorutil.Orange, 3)
			}

			label := fmt.Sprintf("%.2f", cw.GrowthScore)
			org := image.Point{X: center.X - radius/2, Y: center.Y + radius + 12}
			gocv.PutText(&out, label, org, gocv.FontHersheyPlain, 0.9, colorutil.White, 1)
		}
	}

	drawAxisLabels(&out, grid)
	return out
}

// drawAxisLabels writes row letters left of column 1 and column numbers
// above row A, placed off the grid model.
func drawAxisLabels(out *gocv.Mat, grid *well.Grid) {
	for r := 0; r < assay.Rows; r++ {
		c := grid.Slots[r][0].Center
		org := image.Point{X: int(c.X - grid.Slots[r][0].Radius*2.2), Y: int(c.Y) + 5}
		if org.X < 2 {
			org.X = 2
		}
		gocv.PutText(out, assay.RowLabels[r], org, gocv.FontHersheySimplex, 0.6, colorutil.White, 2)
	}
	for col := 0; col < assay.Cols; col++ {
		c := grid.Slots[0][col].Center
		org := image.Point{X: int(c.X) - 8, Y: int(c.Y - grid.Slots[0][col].Radius*1.8)}
		if org.Y < 14 {
			org.Y = 14
		}
		gocv.PutText(out, fmt.Sprintf("%d", col+1), org, gocv.FontHersheySimplex, 0.6, colorutil.White, 2)
	}
}

const heatCell = 60

// Heatmap renders the growth-score matrix as a colored grid image, green for
// growth through red for inhibition, with the score printed in each cell.
func Heatmap(plate *classify.PlateClassification) gocv.Mat {
	const margin = 40
	w := margin + assay.Cols*heatCell
	h := margin + assay.Rows*heatCell
	out := gocv.NewMatWithSize(h, w, gocv.MatTypeCV8UC3)

	for r := 0; r < assay.Rows; r++ {
		for c := 0; c < assay.Cols; c++ {
			score := plate.Wells[r][c].GrowthScore
			x0 := margin + c*heatCell
			y0 := margin + r*heatCell
			rect := image.Rect(x0+1, y0+1, x0+heatCell-1, y0+heatCell-1)
			gocv.Rectangle(&out, rect, scoreColor(score), -1)

			org := image.Point{X: x0 + 8, Y: y0 + heatCell/2 + 5}
			gocv.PutText(&out, fmt.Sprintf("%.2f", score), org, gocv.FontHersheyPlain, 1.0, colorutil.Black, 1)
		}
	}

	for r := 0; r < assay.Rows; r++ {
		org := image.Point{X: 12, Y: margin + r*heatCell + heatCell/2 + 5}
		gocv.PutText(&out, assay.RowLabels[r], org, gocv.FontHersheySimplex, 0.6, colorutil.White, 2)
	}
	for c := 0; c < assay.Cols; c++ {
		org := image.Point{X: margin + c*heatCell + heatCell/2 - 8, Y: 26}
		gocv.PutText(&out, fmt.Sprintf("%d", c+1), org, gocv.FontHersheySimplex, 0.6, colorutil.White, 2)
	}

	return out
}

// scoreColor interpolates red (0.0) through yellow (0.5) to green (1.0).
func scoreColor(score float64) color.RGBA {
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	var r, g float64
	if score < 0.5 {
		r = 255
		g = 255 * (score / 0.5)
	} else {
		r = 255 * ((1 - score) / 0.5)
		g = 255
	}
	return color.RGBA{R: uint8(r), G: uint8(g), B: 40, A: 255}
}

// SaveImage writes a Mat to disk.
func SaveImage(path string, m gocv.Mat) error {
	if ok := gocv.IMWrite(path, m); !ok {
		return fmt.Errorf("failed to write image %s", path)
	}
	return nil
}

func rowIndex(label string) int {
	for i, l := range assay.RowLabels {
		if l == label {
			return i
		}
	}
	return -1
}
