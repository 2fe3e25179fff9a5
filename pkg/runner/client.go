package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/tendant/simple-video-pipeline/internal/dbosruntime"
	"github.com/tendant/simple-video-pipeline/internal/workflows"
	"github.com/tendant/simple-video-pipeline/pkg/pipeline"
)

// Client provides a client-only API for starting workflows without executing them
// Use this in applications that want to enqueue workflows for workers to execute
type Client struct {
	runtime *dbosruntime.Runtime
	runner  *workflows.WorkflowRunner
}

// NewClient creates a client that can start workflows but doesn't execute them
// Workers must be running separately to execute the enqueued workflows.
// AppName and ApplicationVersion must match the workers'.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	dbosRuntime, err := dbosruntime.NewRuntime(ctx, dbosruntime.Config{
		DatabaseURL:        cfg.DatabaseURL,
		AppName:            cfg.AppName,
		QueueName:          cfg.QueueName,
		ApplicationVersion: cfg.ApplicationVersion,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize DBOS: %w", err)
	}

	// Create workflow runner (for enqueueing only, no registration)
	workflowRunner := workflows.NewWorkflowRunner(dbosRuntime)

	if err := dbosRuntime.Launch(); err != nil {
		return nil, fmt.Errorf("failed to launch DBOS: %w", err)
	}

	return &Client{
		runtime: dbosRuntime,
		runner:  workflowRunner,
	}, nil
}

// RunThumbnail enqueues thumbnail extraction for an uploaded video
func (c *Client) RunThumbnail(ctx context.Context, ev pipeline.UploadEvent) (string, error) {
	return enqueue(ctx, c.runner, ev, pipeline.JobThumbnail)
}

// RunPreview enqueues preview clip extraction
func (c *Client) RunPreview(ctx context.Context, ev pipeline.UploadEvent) (string, error) {
	return enqueue(ctx, c.runner, ev, pipeline.JobPreview)
}

// RunSpriteSheet enqueues sprite sheet generation
func (c *Client) RunSpriteSheet(ctx context.Context, ev pipeline.UploadEvent) (string, error) {
	return enqueue(ctx, c.runner, ev, pipeline.JobSpriteSheet)
}

// RunAll enqueues every job and returns the run IDs keyed by job
func (c *Client) RunAll(ctx context.Context, ev pipeline.UploadEvent) (map[string]string, error) {
	return enqueueAll(ctx, c.runner, ev)
}

// Status returns the DBOS status of a run
func (c *Client) Status(ctx context.Context, runID string) (*pipeline.RunStatus, error) {
	return c.runner.GetStatus(ctx, runID)
}

// Shutdown gracefully shuts down the client
func (c *Client) Shutdown(timeout time.Duration) error {
	if c.runtime == nil {
		return nil
	}
	return c.runtime.Shutdown(timeout)
}

func enqueue(ctx context.Context, r *workflows.WorkflowRunner, ev pipeline.UploadEvent, job string) (string, error) {
	return r.RunAsync(ctx, pipeline.ProcessRequest{Event: ev, Job: job})
}

func enqueueAll(ctx context.Context, r *workflows.WorkflowRunner, ev pipeline.UploadEvent) (map[string]string, error) {
	ids := make(map[string]string, len(pipeline.AllJobs))
	for _, job := range pipeline.AllJobs {
		id, err := enqueue(ctx, r, ev, job)
		if err != nil {
			return ids, fmt.Errorf("enqueue %s: %w", job, err)
		}
		ids[job] = id
	}
	return ids, nil
}
