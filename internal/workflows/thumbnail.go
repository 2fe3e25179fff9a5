package workflows

import (
	"context"
	"time"

	"github.com/tendant/simple-video-pipeline/internal/ffmpeg"
	"github.com/tendant/simple-video-pipeline/internal/metadata"
	"github.com/tendant/simple-video-pipeline/internal/naming"
	"github.com/tendant/simple-video-pipeline/pkg/pipeline"
)

// ThumbnailWorkflow captures three poster frames per video
type ThumbnailWorkflow struct {
	engine *engine
	limit  time.Duration
}

// NewThumbnailWorkflow creates a new thumbnail generation workflow
func NewThumbnailWorkflow(deps Deps, timeout time.Duration) *ThumbnailWorkflow {
	if timeout <= 0 {
		timeout = DefaultTimeouts.Thumbnail
	}
	return &ThumbnailWorkflow{engine: newEngine(deps), limit: timeout}
}

// Name returns the workflow name
func (w *ThumbnailWorkflow) Name() string {
	return "ThumbnailWorkflow"
}

// Execute runs the thumbnail generation workflow
func (w *ThumbnailWorkflow) Execute(wctx *WorkflowContext) (*WorkflowResult, error) {
	return w.engine.execute(wctx, w)
}

func (w *ThumbnailWorkflow) job() string            { return pipeline.JobThumbnail }
func (w *ThumbnailWorkflow) timeout() time.Duration { return w.limit }

func (w *ThumbnailWorkflow) generate(ctx context.Context, r *run) ([]Artifact, error) {
	names := make([]string, naming.ThumbnailCount)
	for i := range names {
		names[i] = r.id.ThumbnailFile(i + 1)
	}

	paths, err := w.engine.deps.Encoder.ExtractThumbnails(ctx, r.source, r.dir.Path(), names,
		ffmpeg.ThumbnailMaxWidth, ffmpeg.ThumbnailMaxHeight)
	if err != nil {
		return nil, err
	}

	artifacts := make([]Artifact, len(paths))
	for i, p := range paths {
		artifacts[i] = Artifact{
			Kind:        pipeline.JobThumbnail,
			LocalPath:   p,
			RemotePath:  r.id.ThumbnailPath(i + 1),
			ContentType: "image/" + naming.ThumbnailFormat,
			Index:       i + 1,
		}
	}
	return artifacts, nil
}

func (w *ThumbnailWorkflow) fields(r *run, urls []string) metadata.Fields {
	return metadata.Fields{
		IsProcessed:     metadata.Ptr(true),
		ActiveThumbnail: metadata.Ptr(1),
		DerivativeURLs:  urls,
	}
}
