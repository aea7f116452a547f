// Command plate-reader analyzes a photograph of a 96-well microdilution
// plate and reports MIC values for each antifungal agent row.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"plate-reader/internal/logging"
	"plate-reader/internal/pipeline"
	"plate-reader/internal/plate"
	"plate-reader/internal/report"
)

func main() {
	var (
		imagePath = flag.String("image", "", "plate photograph to analyze")
		outDir    = flag.String("out", "results", "output directory for reports")
		skipCrop  = flag.Bool("no-crop", false, "skip plate boundary detection, image is already cropped")
		debug     = flag.Bool("debug", false, "verbose logging")
	)
	flag.Parse()

	if *imagePath == "" {
		fmt.Fprintln(os.Stderr, "usage: plate-reader -image plate.jpg [-out results] [-no-crop]")
		os.Exit(2)
	}

	mode := "release"
	if *debug {
		mode = "debug"
	}
	if err := logging.Init(mode); err != nil {
		fmt.Fprintln(os.Stderr, "logger init:", err)
		os.Exit(1)
	}
	defer logging.Sync()

	if err := run(*imagePath, *outDir, *skipCrop); err != nil {
		zap.L().Fatal("analysis failed", zap.Error(err))
	}
}

func run(imagePath, outDir string, skipCrop bool) error {
	src := gocv.IMRead(imagePath, gocv.IMReadColor)
	if src.Empty() {
		return fmt.Errorf("could not read image %s", imagePath)
	}
	defer src.Close()
	zap.L().Info("image loaded",
		zap.String("path", imagePath),
		zap.Int("width", src.Cols()),
		zap.Int("height", src.Rows()))

	cropped := src.Clone()
	if !skipCrop {
		cropped.Close()
		cropped = plate.Detect(src)
		zap.L().Info("plate region",
			zap.Int("width", cropped.Cols()),
			zap.Int("height", cropped.Rows()))
	}
	defer cropped.Close()

	img, err := cropped.ToImage()
	if err != nil {
		return fmt.Errorf("convert image: %w", err)
	}

	opts := pipeline.DefaultOptions()
	result, err := pipeline.Run(img, opts)
	if err != nil {
		return err
	}

	printSummary(result)

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	base := strings.TrimSuffix(filepath.Base(imagePath), filepath.Ext(imagePath))

	annotated := report.Annotate(cropped, result.Grid, result.Classification, result.MIC)
	defer annotated.Close()
	if err := report.SaveImage(filepath.Join(outDir, base+"_annotated.jpg"), annotated); err != nil {
		return err
	}

	heatmap := report.Heatmap(result.Classification)
	defer heatmap.Close()
	if err := report.SaveImage(filepath.Join(outDir, base+"_heatmap.png"), heatmap); err != nil {
		return err
	}

	if err := report.WriteCSV(filepath.Join(outDir, base+"_results.csv"), opts.Spec, result.Classification, result.MIC); err != nil {
		return err
	}
	if err := report.WriteXLSX(filepath.Join(outDir, base+"_results.xlsx"), opts.Spec, result.Classification, result.MIC); err != nil {
		return err
	}

	zap.L().Info("reports written", zap.String("dir", outDir))
	return nil
}

func printSummary(result *pipeline.Result) {
	fmt.Println()
	fmt.Println("MIC results")
	fmt.Println("-----------")
	for _, rr := range result.MIC.Rows {
		line := fmt.Sprintf("  %s  %-4s %-16s MIC = %s mg/L", rr.Row, rr.Agent, rr.AgentName, rr.Display)
		if rr.Note != "" && rr.Note != rr.Display {
			line += "  (" + rr.Note + ")"
		}
		fmt.Println(line)
	}
	fmt.Println()
	for _, w := range result.Diagnostics.Warnings {
		fmt.Println("  WARNING:", w)
	}
	if len(result.Diagnostics.Warnings) > 0 {
		fmt.Println()
	}
}
