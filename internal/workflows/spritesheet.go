package workflows

import (
	"context"
	"time"

	"github.com/tendant/simple-video-pipeline/internal/imagesize"
	"github.com/tendant/simple-video-pipeline/internal/metadata"
	"github.com/tendant/simple-video-pipeline/internal/naming"
	"github.com/tendant/simple-video-pipeline/pkg/pipeline"
)

// SpriteSheetWorkflow tiles periodic frames into a scrubber image
type SpriteSheetWorkflow struct {
	engine *engine
	limit  time.Duration
}

// NewSpriteSheetWorkflow creates a new sprite sheet workflow
func NewSpriteSheetWorkflow(deps Deps, timeout time.Duration) *SpriteSheetWorkflow {
	if timeout <= 0 {
		timeout = DefaultTimeouts.SpriteSheet
	}
	return &SpriteSheetWorkflow{engine: newEngine(deps), limit: timeout}
}

// Name returns the workflow name
func (w *SpriteSheetWorkflow) Name() string {
	return "SpriteSheetWorkflow"
}

// Execute runs the sprite sheet workflow
func (w *SpriteSheetWorkflow) Execute(wctx *WorkflowContext) (*WorkflowResult, error) {
	return w.engine.execute(wctx, w)
}

func (w *SpriteSheetWorkflow) job() string            { return pipeline.JobSpriteSheet }
func (w *SpriteSheetWorkflow) timeout() time.Duration { return w.limit }

func (w *SpriteSheetWorkflow) generate(ctx context.Context, r *run) ([]Artifact, error) {
	deps := w.engine.deps

	info, err := deps.Prober.Probe(ctx, r.source)
	if err != nil {
		return nil, &StageError{Stage: StateDownloaded, Kind: ErrProbe, Err: err}
	}

	dst := r.dir.File(r.id.SpriteSheetFile())
	layout, err := deps.Encoder.SpriteSheet(ctx, r.source, dst, info.DurationSeconds)
	if err != nil {
		return nil, err
	}

	cellWidth, err := imagesize.CellWidth(dst, layout.Columns)
	if err != nil {
		return nil, &StageError{Stage: StateDownloaded, Kind: ErrProbe, Err: err}
	}
	r.spriteWidth = cellWidth
	r.spriteHeight = layout.CellHeight

	return []Artifact{{
		Kind:        pipeline.JobSpriteSheet,
		LocalPath:   dst,
		RemotePath:  r.id.SpriteSheetPath(),
		ContentType: "image/" + naming.SpriteSheetFormat,
	}}, nil
}

func (w *SpriteSheetWorkflow) fields(r *run, urls []string) metadata.Fields {
	return metadata.Fields{
		SpriteSheetURL: metadata.Ptr(urls[0]),
		SpriteWidth:    metadata.Ptr(r.spriteWidth),
		SpriteHeight:   metadata.Ptr(r.spriteHeight),
	}
}
