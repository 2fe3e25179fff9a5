package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/tendant/simple-video-pipeline/internal/config"
	"github.com/tendant/simple-video-pipeline/internal/database"
	"github.com/tendant/simple-video-pipeline/internal/dbosruntime"
	"github.com/tendant/simple-video-pipeline/internal/dedupe"
	"github.com/tendant/simple-video-pipeline/internal/events"
	"github.com/tendant/simple-video-pipeline/internal/ffmpeg"
	"github.com/tendant/simple-video-pipeline/internal/handlers"
	"github.com/tendant/simple-video-pipeline/internal/metadata"
	"github.com/tendant/simple-video-pipeline/internal/probe"
	"github.com/tendant/simple-video-pipeline/internal/reporting"
	"github.com/tendant/simple-video-pipeline/internal/storage"
	"github.com/tendant/simple-video-pipeline/internal/workers"
	"github.com/tendant/simple-video-pipeline/internal/workflows"
	"github.com/tendant/simple-video-pipeline/pkg/pipeline"
)

// Options select optional runtime features
type Options struct {
	// Durable enqueues runs through DBOS when DBOS_SYSTEM_DATABASE_URL is set
	Durable bool
	// Release is reported to Sentry
	Release string
	// Runner overrides the encoder process runner (tests)
	Runner ffmpeg.Runner
}

// App holds the wired pipeline
type App struct {
	Config     config.Config
	Logger     *slog.Logger
	Store      storage.BlobStore
	Metadata   metadata.Store
	Ledger     dedupe.Ledger
	Runner     *workflows.WorkflowRunner
	Dispatcher *workflows.Dispatcher
	DBOS       *dbosruntime.Runtime

	closers []func()
}

// New builds every component from cfg. Close must be called on success.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger, opts Options) (_ *App, err error) {
	a := &App{Config: cfg, Logger: logger}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	reporter, flush, err := reporting.Init(cfg.SentryDSN, cfg.SentryEnvironment, opts.Release)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, flush)

	if a.Store, err = newBlobStore(ctx, cfg); err != nil {
		return nil, err
	}

	if err := a.openMetadata(ctx); err != nil {
		return nil, err
	}

	runner := opts.Runner
	if runner == nil {
		runner = ffmpeg.ExecRunner{}
	}
	pool := ffmpeg.NewPool(runner, workers.ForCPU(0))

	deps := workflows.Deps{
		Store:        a.Store,
		Metadata:     a.Metadata,
		Encoder:      ffmpeg.NewEncoder(pool, cfg.FFmpegPath, cfg.FFprobePath),
		Prober:       probe.New(pool, cfg.FFprobePath),
		URLs:         storage.NewURLBuilder(cfg.PublicBaseURL),
		ScratchDir:   cfg.ScratchDir,
		CacheControl: cfg.CacheControl,
		Logger:       logger,
		Reporter:     reporter,
	}

	if opts.Durable && cfg.DBOSDatabaseURL != "" {
		concurrency := cfg.DBOSConcurrency
		if concurrency <= 0 {
			concurrency = workers.ForIO(0)
		}
		a.DBOS, err = dbosruntime.NewRuntime(ctx, dbosruntime.Config{
			DatabaseURL:        cfg.DBOSDatabaseURL,
			AppName:            cfg.DBOSAppName,
			QueueName:          cfg.DBOSQueueName,
			Concurrency:        concurrency,
			ApplicationVersion: cfg.DBOSAppVersion,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize DBOS: %w", err)
		}
	}

	// Workflows must be registered before DBOS is launched
	a.Runner = workflows.NewWorkflowRunner(a.DBOS)
	a.Runner.Register(pipeline.JobThumbnail, workflows.NewThumbnailWorkflow(deps, cfg.ThumbnailTimeout))
	a.Runner.Register(pipeline.JobPreview, workflows.NewPreviewWorkflow(deps, cfg.PreviewTimeout))
	a.Runner.Register(pipeline.JobSpriteSheet, workflows.NewSpriteSheetWorkflow(deps, cfg.SpriteSheetTimeout))

	if a.DBOS != nil {
		if err := a.DBOS.Launch(); err != nil {
			return nil, fmt.Errorf("failed to launch DBOS: %w", err)
		}
		rt := a.DBOS
		a.closers = append(a.closers, func() {
			if err := rt.Shutdown(10 * time.Second); err != nil {
				logger.Warn("DBOS shutdown failed", slog.Any("error", err))
			}
		})
		logger.Info("DBOS runtime launched",
			slog.String("queue", rt.QueueName()),
			slog.Int("concurrency", rt.Concurrency()),
		)
	}

	a.Dispatcher = workflows.NewDispatcher(a.Runner, a.Ledger, logger)

	logger.Info("pipeline ready",
		slog.String("storage", cfg.StorageBackend),
		slog.String("metadata", cfg.MetadataDriver),
		slog.Int("encoder_slots", pool.Size()),
		slog.Bool("durable", a.DBOS != nil),
	)
	return a, nil
}

func newBlobStore(ctx context.Context, cfg config.Config) (storage.BlobStore, error) {
	switch cfg.StorageBackend {
	case "s3":
		return storage.NewS3Store(ctx, storage.S3Config{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			UsePathStyle:    cfg.S3PathStyle,
		})
	case "filesystem", "":
		return storage.NewFilesystemStore(cfg.StorageDir)
	default:
		return nil, fmt.Errorf("unsupported storage backend %q", cfg.StorageBackend)
	}
}

func (a *App) openMetadata(ctx context.Context) error {
	if a.Config.MetadataDriver == "memory" {
		a.Metadata = metadata.NewMemoryStore()
		a.Ledger = dedupe.NewMemoryTracker()
		return nil
	}

	if a.Config.MetadataDriver == database.DriverSQLite {
		if dir := filepath.Dir(a.Config.MetadataDSN); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("failed to create database dir: %w", err)
			}
		}
	}

	db, dialect, err := database.Open(ctx, a.Config.MetadataDriver, a.Config.MetadataDSN)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, func() { closeDB(db, a.Logger) })

	a.Metadata = metadata.NewSQLStore(db, dialect)
	a.Ledger = dedupe.NewTracker(db, dialect)
	return nil
}

func closeDB(db *sql.DB, logger *slog.Logger) {
	if err := db.Close(); err != nil {
		logger.Warn("failed to close database", slog.Any("error", err))
	}
}

// Handler returns the HTTP surface
func (a *App) Handler() http.Handler {
	var status handlers.StatusSource
	if a.DBOS != nil {
		status = a.Runner
	}
	return handlers.NewRouter(handlers.NewEventHandler(a.Dispatcher, status, a.Logger), a.Logger)
}

// StartConsumers starts the queue triggers that are configured and returns a
// func that blocks until they have drained after ctx is cancelled.
// Every client is connected before any consumer starts.
func (a *App) StartConsumers(ctx context.Context) (wait func(), err error) {
	var rc *redis.Client
	if a.Config.RedisAddr != "" {
		rc = redis.NewClient(&redis.Options{Addr: a.Config.RedisAddr})
		if err := rc.Ping(ctx).Err(); err != nil {
			rc.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		a.closers = append(a.closers, func() { rc.Close() })
	}

	var sqsClient events.SQSAPI
	if a.Config.SQSQueueURL != "" {
		client, err := newSQSClient(ctx, a.Config)
		if err != nil {
			return nil, err
		}
		sqsClient = client
	}

	var wg sync.WaitGroup

	if sqsClient != nil {
		c := events.NewSQSConsumer(sqsClient, events.SQSConfig{
			QueueURL:          a.Config.SQSQueueURL,
			Concurrency:       workers.ForIO(0),
			VisibilityTimeout: a.Config.SpriteSheetTimeout + 2*time.Minute,
		}, a.Dispatcher, a.Store, a.Logger)

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := c.Run(ctx); err != nil {
				a.Logger.Error("sqs consumer stopped", slog.Any("error", err))
			}
		}()
	}

	if rc != nil {
		c := events.NewStreamConsumer(rc, events.StreamConfig{
			Stream:       a.Config.RedisStream,
			Group:        a.Config.RedisGroup,
			Consumer:     a.Config.RedisConsumer,
			Workers:      workers.ForIO(0),
			BlockTimeout: 5 * time.Second,
			MinIdle:      a.Config.SpriteSheetTimeout + 2*time.Minute,
		}, a.Dispatcher, a.Logger)

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := c.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				a.Logger.Error("stream consumer stopped", slog.Any("error", err))
			}
		}()
	}

	return wg.Wait, nil
}

// Close releases resources in reverse order of acquisition
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
