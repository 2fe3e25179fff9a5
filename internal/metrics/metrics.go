package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Run outcomes
const (
	OutcomeSuccess = "success"
	OutcomeSkipped = "skipped"
	OutcomeFailure = "failure"
)

// Run metrics
var (
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "video_pipeline_runs_total",
			Help: "Total number of derivative runs by job and outcome",
		},
		[]string{"job", "outcome"},
	)

	RunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "video_pipeline_run_duration_seconds",
			Help:    "Wall time of a derivative run in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 540},
		},
		[]string{"job"},
	)

	RunFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "video_pipeline_run_failures_total",
			Help: "Failed runs by job and failing stage",
		},
		[]string{"job", "kind"},
	)
)

// Encoder metrics
var (
	EncoderDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "video_pipeline_encoder_duration_seconds",
			Help:    "Duration of ffmpeg/ffprobe invocations in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"tool"},
	)

	EncoderSlotsInUse = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "video_pipeline_encoder_slots_in_use",
			Help: "Number of encoder pool slots currently held",
		},
	)

	EncoderErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "video_pipeline_encoder_errors_total",
			Help: "Failed ffmpeg/ffprobe invocations",
		},
		[]string{"tool"},
	)
)

// Storage metrics
var (
	UploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "video_pipeline_uploads_total",
			Help: "Artifact uploads by outcome",
		},
		[]string{"status"},
	)

	DownloadBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "video_pipeline_download_bytes_total",
			Help: "Bytes of source video downloaded into scratch space",
		},
	)
)

// Trigger metrics
var (
	EventsReceivedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "video_pipeline_events_received_total",
			Help: "Upload events received by trigger source",
		},
		[]string{"source"},
	)

	RedeliveriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "video_pipeline_redeliveries_total",
			Help: "Events seen more than once by the delivery ledger",
		},
	)
)
