package workflows

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/simple-video-pipeline/internal/ffmpeg"
	"github.com/tendant/simple-video-pipeline/internal/metadata"
	"github.com/tendant/simple-video-pipeline/internal/metrics"
	"github.com/tendant/simple-video-pipeline/internal/naming"
	"github.com/tendant/simple-video-pipeline/internal/probe"
	"github.com/tendant/simple-video-pipeline/internal/reporting"
	"github.com/tendant/simple-video-pipeline/internal/scratch"
	"github.com/tendant/simple-video-pipeline/internal/storage"
	"github.com/tendant/simple-video-pipeline/pkg/pipeline"
)

// Prober inspects a local media file
type Prober interface {
	Probe(ctx context.Context, path string) (*probe.Result, error)
}

// Artifact is one generated file and where it goes
type Artifact struct {
	Kind        string
	LocalPath   string
	RemotePath  string
	ContentType string
	Index       int
}

// Deps are the collaborators shared by every derivative workflow
type Deps struct {
	Store        storage.BlobStore
	Metadata     metadata.Store
	Encoder      *ffmpeg.Encoder
	Prober       Prober
	URLs         storage.URLBuilder
	ScratchDir   string
	CacheControl string
	Logger       *slog.Logger
	Reporter     reporting.Reporter
	NewToken     func() string
}

// Timeouts bound each run end to end
type Timeouts struct {
	Thumbnail   time.Duration
	Preview     time.Duration
	SpriteSheet time.Duration
}

// DefaultTimeouts are 300s for thumbnails and previews and 540s for sprite sheets
var DefaultTimeouts = Timeouts{
	Thumbnail:   300 * time.Second,
	Preview:     300 * time.Second,
	SpriteSheet: 540 * time.Second,
}

// run is the per-execution working set
type run struct {
	event  pipeline.UploadEvent
	id     naming.VideoIdentity
	dir    *scratch.Dir
	source string

	// set by sprite generation
	spriteWidth  int
	spriteHeight int
}

// derivative is implemented by each workflow kind
type derivative interface {
	job() string
	timeout() time.Duration

	generate(ctx context.Context, r *run) ([]Artifact, error)

	fields(r *run, urls []string) metadata.Fields
}

// engine drives a derivative through the run state machine
type engine struct {
	deps Deps
}

func newEngine(deps Deps) *engine {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Reporter == nil {
		deps.Reporter = reporting.Nop{}
	}
	if deps.NewToken == nil {
		deps.NewToken = func() string { return uuid.New().String() }
	}
	if deps.CacheControl == "" {
		deps.CacheControl = storage.DefaultCacheControl
	}
	return &engine{deps: deps}
}

// execute runs one derivative kind for one upload event
func (e *engine) execute(wctx *WorkflowContext, d derivative) (result *WorkflowResult, err error) {
	ev := wctx.Request.Event
	log := e.deps.Logger.With(
		slog.String("run_id", wctx.RunID),
		slog.String("job", d.job()),
		slog.String("bucket", ev.Bucket),
		slog.String("object", ev.ObjectPath),
	)
	start := time.Now()
	result = &WorkflowResult{State: StateReceived, Outputs: map[string]string{}}

	log.Info("run received", slog.String("content_type", ev.ContentType), slog.Int64("size_bytes", ev.SizeBytes))

	// Step 1: Guard
	decision := naming.ShouldProcess(ev.ObjectPath, ev.ContentType, d.job())
	if !decision.Process {
		log.Info("run skipped", slog.String("reason", decision.Reason))
		metrics.RunsTotal.WithLabelValues(d.job(), metrics.OutcomeSkipped).Inc()
		result.Success = true
		result.Skipped = true
		result.SkipReason = decision.Reason
		return result, nil
	}
	result.State = StateGuarded

	ctx, cancel := context.WithTimeout(wctx.Ctx, d.timeout())
	defer cancel()

	r := &run{event: ev, id: naming.Identify(ev.ObjectPath)}
	result.Outputs["video_id"] = r.id.VideoID()

	defer func() {
		metrics.RunDuration.WithLabelValues(d.job()).Observe(time.Since(start).Seconds())
		if err != nil {
			metrics.RunsTotal.WithLabelValues(d.job(), metrics.OutcomeFailure).Inc()
			metrics.RunFailuresTotal.WithLabelValues(d.job(), kindLabel(err)).Inc()
			e.deps.Reporter.Report(wctx.Ctx, err, map[string]string{
				"job":    d.job(),
				"run_id": wctx.RunID,
				"kind":   kindLabel(err),
			})
			log.Error("run failed", slog.String("stage", string(result.State)), slog.Any("error", err))
			return
		}
		metrics.RunsTotal.WithLabelValues(d.job(), metrics.OutcomeSuccess).Inc()
		log.Info("run completed", slog.Duration("elapsed", time.Since(start)))
	}()

	// Step 2: Scratch space, removed on every exit path below
	dir, err := scratch.New(e.deps.ScratchDir, wctx.RunID)
	if err != nil {
		return e.fail(ctx, result, ErrDownload, err)
	}
	r.dir = dir
	defer func() {
		if rmErr := dir.Remove(); rmErr != nil {
			log.Warn("failed to remove scratch dir", slog.String("dir", dir.Path()), slog.Any("error", rmErr))
		}
		if result.Success {
			result.State = StateCleanedUp
		}
	}()

	// Step 3: Download source
	r.source = dir.File(r.id.SourceFile())
	n, err := e.download(ctx, ev, r.source)
	if err != nil {
		return e.fail(ctx, result, ErrDownload, err)
	}
	metrics.DownloadBytesTotal.Add(float64(n))
	result.State = StateDownloaded
	log.Debug("source downloaded", slog.Int64("bytes", n), slog.String("path", r.source))

	// Step 4: Generate derivatives
	artifacts, err := d.generate(ctx, r)
	if err != nil {
		var se *StageError
		if errors.As(err, &se) {
			return e.fail(ctx, result, se.Kind, se.Err)
		}
		return e.fail(ctx, result, ErrEncoding, err)
	}
	result.State = StateGenerated
	log.Debug("derivatives generated", slog.Int("count", len(artifacts)))

	// Step 5: Upload artifacts
	urls := make([]string, 0, len(artifacts))
	for _, art := range artifacts {
		url, err := e.upload(ctx, ev.Bucket, art)
		if err != nil {
			metrics.UploadsTotal.WithLabelValues("error").Inc()
			return e.fail(ctx, result, ErrUpload, err)
		}
		metrics.UploadsTotal.WithLabelValues("ok").Inc()
		urls = append(urls, url)
		result.Outputs[art.RemotePath] = url
	}
	result.State = StateUploaded

	// Step 6: Persist metadata
	if err := e.deps.Metadata.UpsertVideoMetadata(ctx, r.id.VideoID(), d.fields(r, urls)); err != nil {
		return e.fail(ctx, result, ErrPersistence, err)
	}
	result.State = StatePersisted

	result.Success = true
	return result, nil
}

// fail records a stage failure. A run whose deadline passed reports ErrTimeout.
func (e *engine) fail(ctx context.Context, result *WorkflowResult, kind, cause error) (*WorkflowResult, error) {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		kind = ErrTimeout
	}
	err := &StageError{Stage: result.State, Kind: kind, Err: cause}
	result.Success = false
	result.Error = err.Error()
	return result, err
}

func (e *engine) download(ctx context.Context, ev pipeline.UploadEvent, dst string) (int64, error) {
	f, err := os.Create(dst)
	if err != nil {
		return 0, fmt.Errorf("failed to create local file: %w", err)
	}
	n, err := e.deps.Store.Download(ctx, ev.Bucket, ev.ObjectPath, f)
	if closeErr := f.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("failed to close local file: %w", closeErr)
	}
	return n, err
}

// upload stores one artifact with a fresh download token and returns its public URL
func (e *engine) upload(ctx context.Context, bucket string, art Artifact) (string, error) {
	f, err := os.Open(art.LocalPath)
	if err != nil {
		return "", fmt.Errorf("failed to open artifact: %w", err)
	}
	defer f.Close()

	token := e.deps.NewToken()
	ref, err := e.deps.Store.Upload(ctx, bucket, art.RemotePath, f, storage.UploadOptions{
		ContentType:  art.ContentType,
		CacheControl: e.deps.CacheControl,
		Metadata:     map[string]string{storage.DownloadTokenKey: token},
	})
	if err != nil {
		return "", err
	}
	return e.deps.URLs.TokenURL(ref, token), nil
}
