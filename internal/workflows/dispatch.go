package workflows

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/tendant/simple-video-pipeline/internal/dedupe"
	"github.com/tendant/simple-video-pipeline/internal/metrics"
	"github.com/tendant/simple-video-pipeline/pkg/pipeline"
)

// Dispatcher fans an upload event out to one run per job.
// Runs are independent: a failure in one never stops the others.
type Dispatcher struct {
	runner *WorkflowRunner
	ledger dedupe.Ledger
	logger *slog.Logger
}

// NewDispatcher creates a dispatcher. ledger may be nil.
func NewDispatcher(runner *WorkflowRunner, ledger dedupe.Ledger, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{runner: runner, ledger: ledger, logger: logger}
}

// Dispatch runs (or enqueues, when DBOS is configured) the requested jobs for ev.
// An empty jobs list selects every registered job.
// The response is successful only if every run succeeded, was skipped or was enqueued.
func (d *Dispatcher) Dispatch(ctx context.Context, ev pipeline.UploadEvent, jobs []string) *pipeline.ProcessResponse {
	if len(jobs) == 0 {
		jobs = d.runner.Jobs()
	}

	resp := &pipeline.ProcessResponse{Success: true}

	if d.ledger != nil {
		seen, err := d.ledger.Record(ctx, ev)
		if err != nil {
			d.logger.Warn("failed to record delivery", slog.String("object", ev.ObjectPath), slog.Any("error", err))
		} else {
			resp.DedupeSeenCount = seen
			if seen > 1 {
				metrics.RedeliveriesTotal.Inc()
				d.logger.Info("event redelivered", slog.String("object", ev.ObjectPath), slog.Int("seen_count", seen))
			}
		}
	}

	resp.Runs = make([]pipeline.RunSummary, len(jobs))
	var wg sync.WaitGroup
	for i, job := range jobs {
		wg.Add(1)
		go func(i int, job string) {
			defer wg.Done()
			resp.Runs[i] = d.runOne(ctx, ev, job)
		}(i, job)
	}
	wg.Wait()

	var failed []string
	for _, run := range resp.Runs {
		if !run.Success {
			resp.Success = false
			failed = append(failed, fmt.Sprintf("%s: %s", run.Job, run.Error))
		}
	}
	if len(failed) > 0 {
		resp.Error = fmt.Sprintf("%d of %d runs failed: %v", len(failed), len(jobs), failed)
	}
	return resp
}

func (d *Dispatcher) runOne(ctx context.Context, ev pipeline.UploadEvent, job string) pipeline.RunSummary {
	req := pipeline.ProcessRequest{Event: ev, Job: job}

	if d.runner.Async() {
		runID, err := d.runner.RunAsync(ctx, req)
		if err != nil {
			d.logger.Error("failed to enqueue run", slog.String("job", job), slog.Any("error", err))
			return pipeline.RunSummary{Job: job, Error: fmt.Sprintf("enqueue failed: %v", err)}
		}
		d.logger.Info("run enqueued", slog.String("job", job), slog.String("run_id", runID))
		return pipeline.RunSummary{RunID: runID, Job: job, Success: true, State: "enqueued"}
	}

	runID := uuid.New().String()
	result, err := d.runner.Run(&WorkflowContext{Ctx: ctx, Request: req, RunID: runID})
	if result == nil {
		return pipeline.RunSummary{RunID: runID, Job: job, Error: fmt.Sprint(err)}
	}
	return result.Summary(runID, job)
}
