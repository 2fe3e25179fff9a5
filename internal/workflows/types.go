package workflows

import (
	"context"
	"fmt"
	"time"

	"github.com/dbos-inc/dbos-transact-golang/dbos"
	"github.com/tendant/simple-video-pipeline/internal/dbosruntime"
	"github.com/tendant/simple-video-pipeline/internal/dedupe"
	"github.com/tendant/simple-video-pipeline/pkg/pipeline"
)

// WorkflowContext contains context for workflow execution
type WorkflowContext struct {
	Ctx     context.Context
	Request pipeline.ProcessRequest
	RunID   string
}

// State is a run's position in Received → Guarded → Downloaded → Generated →
// Uploaded → Persisted → CleanedUp
type State string

const (
	StateReceived   State = "received"
	StateGuarded    State = "guarded"
	StateDownloaded State = "downloaded"
	StateGenerated  State = "generated"
	StateUploaded   State = "uploaded"
	StatePersisted  State = "persisted"
	StateCleanedUp  State = "cleaned_up"
)

// WorkflowResult contains the result of workflow execution.
// Error is a string so the result survives DBOS checkpointing.
type WorkflowResult struct {
	Success    bool
	Skipped    bool
	SkipReason string
	State      State
	Error      string
	Outputs    map[string]string
}

// Summary converts the result into its wire form
func (r *WorkflowResult) Summary(runID, job string) pipeline.RunSummary {
	return pipeline.RunSummary{
		RunID:      runID,
		Job:        job,
		Success:    r.Success,
		Skipped:    r.Skipped,
		SkipReason: r.SkipReason,
		State:      string(r.State),
		Error:      r.Error,
	}
}

// Workflow defines the interface for processing workflows
type Workflow interface {
	// Execute runs the workflow
	Execute(wctx *WorkflowContext) (*WorkflowResult, error)

	// Name returns the workflow name
	Name() string
}

// WorkflowRunner executes workflows
type WorkflowRunner struct {
	workflows   map[string]Workflow
	dbosRuntime *dbosruntime.Runtime
}

// NewWorkflowRunner creates a new workflow runner. dbosRuntime may be nil,
// in which case only synchronous runs are available.
func NewWorkflowRunner(dbosRuntime *dbosruntime.Runtime) *WorkflowRunner {
	runner := &WorkflowRunner{
		workflows:   make(map[string]Workflow),
		dbosRuntime: dbosRuntime,
	}

	// Register the DBOS workflow function
	if dbosRuntime != nil {
		dbos.RegisterWorkflow(dbosRuntime.Context(), runner.executeWorkflowDBOS)
	}

	return runner
}

// Register registers a workflow
func (r *WorkflowRunner) Register(job string, workflow Workflow) {
	r.workflows[job] = workflow
}

// Jobs returns the registered job names
func (r *WorkflowRunner) Jobs() []string {
	jobs := make([]string, 0, len(r.workflows))
	for _, job := range pipeline.AllJobs {
		if _, ok := r.workflows[job]; ok {
			jobs = append(jobs, job)
		}
	}
	return jobs
}

// Async reports whether runs can be enqueued
func (r *WorkflowRunner) Async() bool {
	return r.dbosRuntime != nil
}

// Run executes a workflow for the given job type synchronously
func (r *WorkflowRunner) Run(wctx *WorkflowContext) (*WorkflowResult, error) {
	workflow, ok := r.workflows[wctx.Request.Job]
	if !ok {
		return &WorkflowResult{
			Success: false,
			State:   StateReceived,
			Error:   ErrWorkflowNotFound.Error(),
		}, ErrWorkflowNotFound
	}

	return workflow.Execute(wctx)
}

// RunAsync enqueues a workflow for async execution via DBOS
func (r *WorkflowRunner) RunAsync(ctx context.Context, req pipeline.ProcessRequest) (string, error) {
	if req.Event.Bucket == "" || req.Event.ObjectPath == "" || req.Job == "" {
		return "", ErrInvalidRequest
	}
	if r.dbosRuntime == nil {
		return "", ErrNoRuntime
	}

	handle, err := dbos.RunWorkflow[pipeline.ProcessRequest, *WorkflowResult](
		r.dbosRuntime.Context(),
		r.executeWorkflowDBOS,
		req,
		dbos.WithWorkflowID(WorkflowID(req, time.Now())),
		dbos.WithQueue(r.dbosRuntime.QueueName()),
	)
	if err != nil {
		return "", err
	}

	return handle.GetWorkflowID(), nil
}

// WorkflowID derives the DBOS workflow ID. Events carrying a generation map
// to a stable ID, so a redelivered notification resolves to the same run.
func WorkflowID(req pipeline.ProcessRequest, now time.Time) string {
	if req.Event.Generation != "" {
		return fmt.Sprintf("%s-%s", req.Job, dedupe.Key(req.Event))
	}
	return fmt.Sprintf("%s-%s-%d", req.Job, dedupe.Key(req.Event), now.UnixNano())
}

// executeWorkflowDBOS is the DBOS workflow function that wraps registered workflows
func (r *WorkflowRunner) executeWorkflowDBOS(dbosCtx dbos.DBOSContext, req pipeline.ProcessRequest) (*WorkflowResult, error) {
	workflow, ok := r.workflows[req.Job]
	if !ok {
		return &WorkflowResult{
			Success: false,
			State:   StateReceived,
			Error:   ErrWorkflowNotFound.Error(),
		}, ErrWorkflowNotFound
	}

	// Get workflow ID from DBOS context
	workflowID, err := dbosCtx.GetWorkflowID()
	if err != nil {
		return &WorkflowResult{
			Success: false,
			State:   StateReceived,
			Error:   err.Error(),
		}, err
	}

	// DBOSContext implements context.Context
	wctx := &WorkflowContext{
		Ctx:     dbosCtx,
		Request: req,
		RunID:   workflowID,
	}

	return workflow.Execute(wctx)
}

// WorkflowStatus represents the status of a workflow execution
type WorkflowStatus = pipeline.RunStatus

// GetStatus retrieves the status of a workflow execution from DBOS
func (r *WorkflowRunner) GetStatus(ctx context.Context, runID string) (*WorkflowStatus, error) {
	if r.dbosRuntime == nil {
		return nil, ErrNoRuntime
	}

	info, err := r.dbosRuntime.GetWorkflowStatus(ctx, runID)
	if err != nil {
		return nil, err
	}

	return &WorkflowStatus{
		RunID:     info.WorkflowUUID,
		State:     info.Status,
		Name:      info.Name,
		CreatedAt: time.UnixMilli(info.CreatedAt).UTC(),
		UpdatedAt: time.UnixMilli(info.UpdatedAt).UTC(),
	}, nil
}
