package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"plate-reader/internal/assay"
	"plate-reader/internal/classify"
	"plate-reader/internal/mic"
)

// WriteCSV writes the MIC summary, the growth-score matrix, and the
// concentration reference as one CSV file with blank-line separated sections.
func WriteCSV(path string, spec *assay.Spec, plate *classify.PlateClassification, micResult *mic.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)

	// MIC summary.
	if err := w.Write([]string{"Row", "Agent", "Agent Name", "MIC (mg/L)", "Threshold", "Note"}); err != nil {
		return err
	}
	for _, rr := range micResult.Rows {
		rec := []string{
			rr.Row,
			string(rr.Agent),
			rr.AgentName,
			rr.Display,
			fmt.Sprintf("%.0f%%", rr.InhibitionThreshold*100),
			rr.Note,
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	if err := w.Write(nil); err != nil {
		return err
	}

	// Growth-score matrix with classification flags.
	header := make([]string, assay.Cols+1)
	header[0] = "Scores"
	for c := 0; c < assay.Cols; c++ {
		header[c+1] = strconv.Itoa(c + 1)
	}
	if err := w.Write(header); err != nil {
		return err
	}
	for r := 0; r < assay.Rows; r++ {
		rec := make([]string, assay.Cols+1)
		rec[0] = assay.RowLabels[r]
		for c := 0; c < assay.Cols; c++ {
			cw := plate.Wells[r][c]
			rec[c+1] = fmt.Sprintf("%.2f %s", cw.GrowthScore, shortClass(cw.Classification))
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	if err := w.Write(nil); err != nil {
		return err
	}

	// Concentration reference.
	header[0] = "Concentrations"
	if err := w.Write(header); err != nil {
		return err
	}
	for r := 0; r < assay.Rows; r++ {
		rec := make([]string, assay.Cols+1)
		rec[0] = fmt.Sprintf("%s (%s)", assay.RowLabels[r], spec.RowSpecs[r].Agent)
		for c := 0; c < assay.Cols; c++ {
			if conc := spec.RowSpecs[r].Concentrations[c]; conc != nil {
				rec[c+1] = strconv.FormatFloat(*conc, 'g', -1, 64)
			} else {
				rec[c+1] = "K"
			}
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}

	// Run-level warnings.
	if micResult.ControlWarning || micResult.Col12EdgeArtifact {
		if err := w.Write(nil); err != nil {
			return err
		}
		if micResult.ControlWarning {
			if err := w.Write([]string{"WARNING", "control well does not show clear growth"}); err != nil {
				return err
			}
		}
		if micResult.Col12EdgeArtifact {
			if err := w.Write([]string{"WARNING", "column 12 saturation depressed (possible edge artifact)"}); err != nil {
				return err
			}
		}
	}

	w.Flush()
	return w.Error()
}

func shortClass(c classify.Classification) string {
	switch c {
	case classify.Growth:
		return "G"
	case classify.Inhibition:
		return "I"
	case classify.Partial:
		return "P"
	default:
		return "?"
	}
}
