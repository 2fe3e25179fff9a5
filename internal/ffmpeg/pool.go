package ffmpeg

import (
	"context"
	"path/filepath"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/tendant/simple-video-pipeline/internal/metrics"
)

// Pool bounds the number of concurrent encoder processes across all runs
type Pool struct {
	runner Runner
	sem    *semaphore.Weighted
	size   int
}

// NewPool wraps runner so that at most size invocations run at once
func NewPool(runner Runner, size int) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{
		runner: runner,
		sem:    semaphore.NewWeighted(int64(size)),
		size:   size,
	}
}

// Size returns the number of slots
func (p *Pool) Size() int {
	return p.size
}

// Run waits for a free slot, then delegates to the wrapped runner
func (p *Pool) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer p.sem.Release(1)

	metrics.EncoderSlotsInUse.Inc()
	defer metrics.EncoderSlotsInUse.Dec()

	tool := filepath.Base(name)
	start := time.Now()
	out, err := p.runner.Run(ctx, name, args...)
	metrics.EncoderDuration.WithLabelValues(tool).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.EncoderErrorsTotal.WithLabelValues(tool).Inc()
	}
	return out, err
}
