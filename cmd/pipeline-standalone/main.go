package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/tendant/simple-video-pipeline/internal/app"
	"github.com/tendant/simple-video-pipeline/internal/config"
	"github.com/tendant/simple-video-pipeline/internal/events"
	"github.com/tendant/simple-video-pipeline/internal/logging"
	"github.com/tendant/simple-video-pipeline/internal/naming"
	"github.com/tendant/simple-video-pipeline/internal/storage"
	"github.com/tendant/simple-video-pipeline/pkg/pipeline"
)

// Standalone pipeline for local testing.
// Uses filesystem storage and SQLite metadata; runs execute synchronously.
//
//	pipeline-standalone                      serve HTTP on PIPELINE_HTTP_ADDR
//	pipeline-standalone -file ./clip.mp4     upload a local video, process it once and print the record
func main() {
	file := flag.String("file", "", "local video to upload and process once, then exit")
	bucket := flag.String("bucket", "local", "bucket to upload -file into")
	flag.Parse()

	_ = config.Load()

	cfg := config.FromEnv()
	cfg.HTTPAddr = config.GetEnv("PIPELINE_HTTP_ADDR", ":8080")
	cfg.StorageBackend = "filesystem"
	cfg.StorageDir = config.GetEnv("STORAGE_DIR", "./dev-data/blobs")
	cfg.MetadataDriver = config.GetEnv("METADATA_DRIVER", "sqlite3")
	cfg.MetadataDSN = config.GetEnv("METADATA_DSN", "./dev-data/pipeline.db")
	cfg.PublicBaseURL = config.GetEnv("PUBLIC_BASE_URL", "http://localhost:9199")

	logger := logging.New(cfg.LogLevel, config.GetEnv("LOG_FORMAT", "text"))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p, err := app.New(ctx, cfg, logger, app.Options{})
	if err != nil {
		logger.Error("failed to initialize pipeline", slog.Any("error", err))
		os.Exit(1)
	}
	defer p.Close()

	if *file != "" {
		if err := processOnce(ctx, p, *bucket, *file); err != nil {
			logger.Error("processing failed", slog.Any("error", err))
			p.Close()
			os.Exit(1)
		}
		return
	}

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           p.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("pipeline standalone ready",
			slog.String("addr", cfg.HTTPAddr),
			slog.String("storage_dir", cfg.StorageDir),
			slog.String("metadata", cfg.MetadataDSN),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", slog.Any("error", err))
	}
	logger.Info("server stopped")
}

// processOnce uploads path into the local store, runs every job and prints
// the resulting metadata record
func processOnce(ctx context.Context, p *app.App, bucket, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	ev := pipeline.UploadEvent{Bucket: bucket, ObjectPath: filepath.Base(path)}
	if info, err := f.Stat(); err == nil {
		ev.SizeBytes = info.Size()
	}
	events.ResolveContentType(ctx, nil, &ev)

	if _, err := p.Store.Upload(ctx, ev.Bucket, ev.ObjectPath, f, storage.UploadOptions{ContentType: ev.ContentType}); err != nil {
		return fmt.Errorf("upload source: %w", err)
	}

	resp := p.Dispatcher.Dispatch(ctx, ev, nil)
	out := json.NewEncoder(os.Stdout)
	out.SetIndent("", "  ")
	if err := out.Encode(resp); err != nil {
		return err
	}
	if !resp.Success {
		return errors.New(resp.Error)
	}

	rec, err := p.Metadata.GetVideoMetadata(ctx, naming.Identify(ev.ObjectPath).VideoID())
	if err != nil {
		return err
	}
	return out.Encode(rec)
}
