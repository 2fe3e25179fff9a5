package runner

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/tendant/simple-video-pipeline/internal/app"
	"github.com/tendant/simple-video-pipeline/internal/config"
	"github.com/tendant/simple-video-pipeline/pkg/pipeline"
)

// Config holds the configuration for initializing the pipeline runner
type Config struct {
	DatabaseURL        string // DBOS PostgreSQL connection string
	AppName            string // Application name for DBOS
	QueueName          string // DBOS queue name
	Concurrency        int    // Runs dequeued at once per process
	ApplicationVersion string // Optional: Override binary hash for version matching
}

// Runner embeds a full pipeline worker: it registers the derivative
// workflows with DBOS and executes the runs it dequeues.
// Storage, metadata and encoder settings come from the environment.
type Runner struct {
	app *app.App
}

// New creates and initializes a new pipeline runner with DBOS integration
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Runner, error) {
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DatabaseURL is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	pc := config.FromEnv()
	pc.DBOSDatabaseURL = cfg.DatabaseURL
	if cfg.AppName != "" {
		pc.DBOSAppName = cfg.AppName
	}
	if cfg.QueueName != "" {
		pc.DBOSQueueName = cfg.QueueName
	}
	if cfg.Concurrency > 0 {
		pc.DBOSConcurrency = cfg.Concurrency
	}
	if cfg.ApplicationVersion != "" {
		pc.DBOSAppVersion = cfg.ApplicationVersion
	}

	a, err := app.New(ctx, pc, logger, app.Options{Durable: true})
	if err != nil {
		return nil, err
	}
	return &Runner{app: a}, nil
}

// RunThumbnail enqueues thumbnail extraction
func (r *Runner) RunThumbnail(ctx context.Context, ev pipeline.UploadEvent) (string, error) {
	return enqueue(ctx, r.app.Runner, ev, pipeline.JobThumbnail)
}

// RunPreview enqueues preview clip extraction
func (r *Runner) RunPreview(ctx context.Context, ev pipeline.UploadEvent) (string, error) {
	return enqueue(ctx, r.app.Runner, ev, pipeline.JobPreview)
}

// RunSpriteSheet enqueues sprite sheet generation
func (r *Runner) RunSpriteSheet(ctx context.Context, ev pipeline.UploadEvent) (string, error) {
	return enqueue(ctx, r.app.Runner, ev, pipeline.JobSpriteSheet)
}

// RunAll enqueues every job and returns the run IDs keyed by job
func (r *Runner) RunAll(ctx context.Context, ev pipeline.UploadEvent) (map[string]string, error) {
	return enqueueAll(ctx, r.app.Runner, ev)
}

// Status returns the DBOS status of a run
func (r *Runner) Status(ctx context.Context, runID string) (*pipeline.RunStatus, error) {
	return r.app.Runner.GetStatus(ctx, runID)
}

// Handler exposes the worker HTTP API for mounting in a host application
func (r *Runner) Handler() http.Handler {
	return r.app.Handler()
}

// Shutdown stops DBOS and closes the stores. timeout is ignored; DBOS
// shutdown uses its own bound.
func (r *Runner) Shutdown(timeout time.Duration) {
	r.app.Close()
}
