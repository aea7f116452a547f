package server

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gocv.io/x/gocv"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"

	"plate-reader/internal/pipeline"
	"plate-reader/internal/plate"
	"plate-reader/internal/report"
)

// handleAnalyze accepts a multipart plate photo, runs the full analysis
// pipeline, writes the rendered artifacts under the output directory, and
// returns the MIC results as JSON.
func (s *Server) handleAnalyze(c *gin.Context) {
	file, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing 'image' form file"})
		return
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	if !s.allowedType(ext) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported file type " + ext})
		return
	}
	if file.Size > s.cfg.Upload.MaxSize<<20 {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
		return
	}
	if err := validateImageHeader(file); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	runID := uuid.New().String()
	tmpPath := filepath.Join(os.TempDir(), runID+ext)
	if err := c.SaveUploadedFile(file, tmpPath); err != nil {
		zap.L().Error("save upload", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store upload"})
		return
	}
	defer os.Remove(tmpPath)

	start := time.Now()
	src := gocv.IMRead(tmpPath, gocv.IMReadColor)
	if src.Empty() {
		plateFailures.Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not decode image"})
		return
	}
	defer src.Close()

	cropped := plate.Detect(src)
	defer cropped.Close()

	img, err := cropped.ToImage()
	if err != nil {
		plateFailures.Inc()
		zap.L().Error("mat to image", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "image conversion failed"})
		return
	}

	opts := pipeline.DefaultOptions()
	result, err := pipeline.Run(img, opts)
	if err != nil {
		plateFailures.Inc()
		zap.L().Error("analysis failed", zap.String("run_id", runID), zap.Error(err))
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error(), "run_id": runID})
		return
	}

	platesProcessed.Inc()
	analysisDuration.Observe(time.Since(start).Seconds())
	if result.Grid.Fallback {
		fallbackGrids.Inc()
	}

	outDir := filepath.Join(s.cfg.Output.Dir, runID)
	artifacts, err := writeArtifacts(outDir, cropped, result, opts)
	if err != nil {
		zap.L().Warn("artifact write failed", zap.String("run_id", runID), zap.Error(err))
	}

	zap.L().Info("analysis complete",
		zap.String("run_id", runID),
		zap.Int("detected_wells", result.Grid.DetectedCount()),
		zap.Int64("elapsed_ms", result.Diagnostics.ElapsedMS))

	c.JSON(http.StatusOK, gin.H{
		"run_id":      runID,
		"mic":         result.MIC,
		"counts":      result.Classification.Counts(),
		"diagnostics": result.Diagnostics,
		"artifacts":   artifacts,
	})
}

const maxImageDim = 12000

// validateImageHeader rejects uploads that are not decodable images or have
// implausible dimensions, before any OpenCV work happens.
func validateImageHeader(file *multipart.FileHeader) error {
	f, err := file.Open()
	if err != nil {
		return fmt.Errorf("could not open upload: %w", err)
	}
	defer f.Close()

	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		return fmt.Errorf("not a decodable image: %w", err)
	}
	if cfg.Width < 100 || cfg.Height < 100 {
		return fmt.Errorf("image too small (%dx%d %s)", cfg.Width, cfg.Height, format)
	}
	if cfg.Width > maxImageDim || cfg.Height > maxImageDim {
		return fmt.Errorf("image too large (%dx%d %s)", cfg.Width, cfg.Height, format)
	}
	return nil
}

func (s *Server) allowedType(ext string) bool {
	for _, t := range s.cfg.Upload.AllowedTypes {
		if ext == t {
			return true
		}
	}
	return false
}

// writeArtifacts renders the annotated image, heatmap, CSV and XLSX reports
// into dir and returns their paths.
func writeArtifacts(dir string, cropped gocv.Mat, result *pipeline.Result, opts pipeline.Options) (map[string]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	annotated := report.Annotate(cropped, result.Grid, result.Classification, result.MIC)
	defer annotated.Close()
	heatmap := report.Heatmap(result.Classification)
	defer heatmap.Close()

	artifacts := map[string]string{
		"annotated": filepath.Join(dir, "annotated.jpg"),
		"heatmap":   filepath.Join(dir, "heatmap.png"),
		"csv":       filepath.Join(dir, "results.csv"),
		"xlsx":      filepath.Join(dir, "results.xlsx"),
	}

	if err := report.SaveImage(artifacts["annotated"], annotated); err != nil {
		return artifacts, err
	}
	if err := report.SaveImage(artifacts["heatmap"], heatmap); err != nil {
		return artifacts, err
	}
	if err := report.WriteCSV(artifacts["csv"], opts.Spec, result.Classification, result.MIC); err != nil {
		return artifacts, err
	}
	if err := report.WriteXLSX(artifacts["xlsx"], opts.Spec, result.Classification, result.MIC); err != nil {
		return artifacts, err
	}
	return artifacts, nil
}
