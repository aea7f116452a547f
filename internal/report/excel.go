package report

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"plate-reader/internal/assay"
	"plate-reader/internal/classify"
	"plate-reader/internal/mic"
)

// WriteXLSX writes a workbook with three sheets: the MIC summary, the
// score/classification matrix, and the calibration diagnostics.
func WriteXLSX(path string, spec *assay.Spec, plate *classify.PlateClassification, micResult *mic.Result) error {
	f := excelize.NewFile()
	defer f.Close()

	const summary = "MIC Summary"
	f.SetSheetName("Sheet1", summary)

	headers := []string{"Row", "Agent", "Agent Name", "MIC (mg/L)", "Threshold", "Note"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(summary, cell, h)
	}
	for i, rr := range micResult.Rows {
		row := i + 2
		f.SetCellValue(summary, fmt.Sprintf("A%d", row), rr.Row)
		f.SetCellValue(summary, fmt.Sprintf("B%d", row), string(rr.Agent))
		f.SetCellValue(summary, fmt.Sprintf("C%d", row), rr.AgentName)
		f.SetCellValue(summary, fmt.Sprintf("D%d", row), rr.Display)
		f.SetCellValue(summary, fmt.Sprintf("E%d", row), fmt.Sprintf("%.0f%%", rr.InhibitionThreshold*100))
		f.SetCellValue(summary, fmt.Sprintf("F%d", row), rr.Note)
	}

	warnRow := len(micResult.Rows) + 3
	if micResult.ControlWarning {
		f.SetCellValue(summary, fmt.Sprintf("A%d", warnRow), "WARNING: control well does not show clear growth")
		warnRow++
	}
	if micResult.Col12EdgeArtifact {
		f.SetCellValue(summary, fmt.Sprintf("A%d", warnRow), "WARNING: column 12 saturation depressed (possible edge artifact)")
	}

	const matrix = "Well Matrix"
	if _, err := f.NewSheet(matrix); err != nil {
		return err
	}
	for c := 0; c < assay.Cols; c++ {
		cell, _ := excelize.CoordinatesToCellName(c+2, 1)
		f.SetCellValue(matrix, cell, c+1)
	}
	growthStyle, _ := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"C6EFCE"}},
	})
	inhibStyle, _ := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"FFC7CE"}},
	})
	for r := 0; r < assay.Rows; r++ {
		rowCell, _ := excelize.CoordinatesToCellName(1, r+2)
		f.SetCellValue(matrix, rowCell, assay.RowLabels[r])
		for c := 0; c < assay.Cols; c++ {
			cw := plate.Wells[r][c]
			cell, _ := excelize.CoordinatesToCellName(c+2, r+2)
			f.SetCellValue(matrix, cell, fmt.Sprintf("%.2f %s", cw.GrowthScore, shortClass(cw.Classification)))
			if cw.Classification == classify.Growth {
				f.SetCellStyle(matrix, cell, cell, growthStyle)
			} else if cw.Classification == classify.Inhibition {
				f.SetCellStyle(matrix, cell, cell, inhibStyle)
			}
		}
	}

	const diag = "Diagnostics"
	if _, err := f.NewSheet(diag); err != nil {
		return err
	}
	diagRows := [][2]interface{}{
		{"Kit", spec.Name},
		{"Control well", spec.ControlWell.Label()},
		{"Control growth score", micResult.ControlScore},
		{"Growth saturation median", plate.Calibration.GrowthSatMedian},
		{"Inhibition saturation median", plate.Calibration.InhibSatMedian},
		{"Saturation midpoint", plate.Calibration.SatMidpoint},
		{"Growth seeds", plate.Calibration.GrowthSeeds},
		{"Inhibition seeds", plate.Calibration.InhibitionSeeds},
		{"Uncertain after phase 1", plate.UncertainPhase1},
		{"Neighbor resolved", plate.NeighborResolved},
		{"Low confidence wells", plate.LowConfidence},
	}
	for i, dr := range diagRows {
		f.SetCellValue(diag, fmt.Sprintf("A%d", i+1), dr[0])
		f.SetCellValue(diag, fmt.Sprintf("B%d", i+1), dr[1])
	}

	return f.SaveAs(path)
}
