package report

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plate-reader/internal/assay"
	"plate-reader/internal/classify"
	"plate-reader/internal/mic"
)

func testFixtures() (*assay.Spec, *classify.PlateClassification, *mic.Result) {
	spec := assay.MICYSTSpec()

	plate := &classify.PlateClassification{}
	for r := 0; r < assay.Rows; r++ {
		for c := 0; c < assay.Cols; c++ {
			cw := classify.ClassifiedWell{GrowthScore: 0.9, Classification: classify.Growth, Confidence: classify.ConfidenceHigh}
			if c >= 7 {
				cw = classify.ClassifiedWell{GrowthScore: 0.1, Classification: classify.Inhibition, Confidence: classify.ConfidenceHigh}
			}
			cw.PixelCount = 500
			plate.Wells[r][c] = cw
		}
	}

	micResult, err := mic.Calculate(plate, spec)
	if err != nil {
		panic(err)
	}
	return spec, plate, micResult
}

func TestWriteCSV(t *testing.T) {
	spec, plate, micResult := testFixtures()
	path := filepath.Join(t.TempDir(), "results.csv")

	require.NoError(t, WriteCSV(path, spec, plate, micResult))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	require.NoError(t, err)

	// Header plus eight agent rows open the file.
	require.Greater(t, len(records), 9)
	assert.Equal(t, "Row", records[0][0])
	assert.Equal(t, "A", records[1][0])
	assert.Equal(t, "AND", records[1][1])
	assert.Equal(t, "0.5", records[1][3]) // MIC at column 8 of the standard series
	assert.Equal(t, "H", records[8][0])
	assert.Equal(t, "90%", records[8][4])
}

func TestWriteXLSX(t *testing.T) {
	spec, plate, micResult := testFixtures()
	path := filepath.Join(t.TempDir(), "results.xlsx")

	require.NoError(t, WriteXLSX(path, spec, plate, micResult))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}
