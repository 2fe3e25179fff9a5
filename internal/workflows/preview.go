package workflows

import (
	"context"
	"time"

	"github.com/tendant/simple-video-pipeline/internal/ffmpeg"
	"github.com/tendant/simple-video-pipeline/internal/metadata"
	"github.com/tendant/simple-video-pipeline/pkg/pipeline"
)

// PreviewWorkflow cuts a short stream-copied clip from each video
type PreviewWorkflow struct {
	engine *engine
	limit  time.Duration
}

// NewPreviewWorkflow creates a new preview clip workflow
func NewPreviewWorkflow(deps Deps, timeout time.Duration) *PreviewWorkflow {
	if timeout <= 0 {
		timeout = DefaultTimeouts.Preview
	}
	return &PreviewWorkflow{engine: newEngine(deps), limit: timeout}
}

// Name returns the workflow name
func (w *PreviewWorkflow) Name() string {
	return "PreviewWorkflow"
}

// Execute runs the preview clip workflow
func (w *PreviewWorkflow) Execute(wctx *WorkflowContext) (*WorkflowResult, error) {
	return w.engine.execute(wctx, w)
}

func (w *PreviewWorkflow) job() string            { return pipeline.JobPreview }
func (w *PreviewWorkflow) timeout() time.Duration { return w.limit }

func (w *PreviewWorkflow) generate(ctx context.Context, r *run) ([]Artifact, error) {
	dst := r.dir.File(r.id.PreviewFile())
	err := w.engine.deps.Encoder.ExtractPreviewClip(ctx, r.source, dst, ffmpeg.PreviewOffset, ffmpeg.PreviewDuration)
	if err != nil {
		return nil, err
	}

	// Stream copy keeps the source container
	return []Artifact{{
		Kind:        pipeline.JobPreview,
		LocalPath:   dst,
		RemotePath:  r.id.PreviewPath(),
		ContentType: r.event.ContentType,
	}}, nil
}

func (w *PreviewWorkflow) fields(r *run, urls []string) metadata.Fields {
	return metadata.Fields{PreviewURL: metadata.Ptr(urls[0])}
}
