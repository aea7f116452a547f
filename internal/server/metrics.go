package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	platesProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "plate_reader_plates_processed_total",
		Help: "Number of plate images analyzed successfully.",
	})
	plateFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "plate_reader_plate_failures_total",
		Help: "Number of plate analyses that failed.",
	})
	analysisDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "plate_reader_analysis_duration_seconds",
		Help:    "Wall time of one full plate analysis.",
		Buckets: prometheus.DefBuckets,
	})
	fallbackGrids = promauto.NewCounter(prometheus.CounterOpts{
		Name: "plate_reader_fallback_grids_total",
		Help: "Number of analyses that fell back to an evenly spaced grid.",
	})
)
