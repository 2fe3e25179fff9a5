package app

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tendant/simple-video-pipeline/internal/config"
	"github.com/tendant/simple-video-pipeline/internal/logging"
	"github.com/tendant/simple-video-pipeline/internal/storage"
	"github.com/tendant/simple-video-pipeline/pkg/pipeline"
)

// writeLast stands in for ffmpeg: it writes the output file named by the last argument
type writeLast struct{}

func (writeLast) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	if filepath.Base(name) == "ffprobe" {
		return []byte("42.0\n"), nil
	}
	return nil, os.WriteFile(args[len(args)-1], []byte("clip"), 0644)
}

func testConfig(t *testing.T, driver string) config.Config {
	dir := t.TempDir()
	return config.Config{
		StorageBackend:     "filesystem",
		StorageDir:         filepath.Join(dir, "blobs"),
		MetadataDriver:     driver,
		MetadataDSN:        filepath.Join(dir, "db", "pipeline.db"),
		ScratchDir:         filepath.Join(dir, "scratch"),
		FFmpegPath:         "ffmpeg",
		FFprobePath:        "ffprobe",
		CacheControl:       storage.DefaultCacheControl,
		ThumbnailTimeout:   pipelineTimeout,
		PreviewTimeout:     pipelineTimeout,
		SpriteSheetTimeout: pipelineTimeout,
	}
}

const pipelineTimeout = 30 * time.Second

func TestEventEndToEnd(t *testing.T) {
	for _, driver := range []string{"sqlite3", "memory"} {
		t.Run(driver, func(t *testing.T) {
			ctx := context.Background()
			a, err := New(ctx, testConfig(t, driver), logging.Discard(), Options{Runner: writeLast{}})
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			defer a.Close()

			if _, err := a.Store.Upload(ctx, "media", "uploads/clip.mp4", strings.NewReader("source"), storage.UploadOptions{ContentType: "video/mp4"}); err != nil {
				t.Fatalf("seed upload: %v", err)
			}

			srv := httptest.NewServer(a.Handler())
			defer srv.Close()

			body := `{"bucket":"media","object_path":"uploads/clip.mp4","content_type":"video/mp4","jobs":["preview","thumbnail"]}`
			post := func() pipeline.ProcessResponse {
				resp, err := http.Post(srv.URL+"/v1/events", "application/json", strings.NewReader(body))
				if err != nil {
					t.Fatalf("post: %v", err)
				}
				defer resp.Body.Close()
				var out pipeline.ProcessResponse
				if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
					t.Fatalf("decode: %v", err)
				}
				if resp.StatusCode != http.StatusOK {
					t.Fatalf("status = %d: %+v", resp.StatusCode, out)
				}
				return out
			}

			first := post()
			if !first.Success || len(first.Runs) != 2 || first.DedupeSeenCount != 1 {
				t.Fatalf("first response = %+v", first)
			}

			md, err := a.Store.Stat(ctx, "media", "previews/clip/preview_clip.mp4")
			if err != nil {
				t.Fatalf("preview not stored: %v", err)
			}
			if md.ContentType != "video/mp4" || md.CacheControl != storage.DefaultCacheControl {
				t.Errorf("preview metadata = %+v", md)
			}
			if md.Custom[storage.DownloadTokenKey] == "" {
				t.Error("preview has no download token")
			}
			if _, err := a.Store.Stat(ctx, "media", "thumbnails/clip/thumb_clip_3.png"); err != nil {
				t.Errorf("thumbnail not stored: %v", err)
			}

			rec, err := a.Metadata.GetVideoMetadata(ctx, "clip")
			if err != nil {
				t.Fatalf("metadata: %v", err)
			}
			if !strings.HasPrefix(rec.PreviewURL, "https://firebasestorage.googleapis.com/v0/b/media/o/previews%2Fclip%2Fpreview_clip.mp4?alt=media&token=") {
				t.Errorf("PreviewURL = %q", rec.PreviewURL)
			}
			if len(rec.DerivativeURLs) != 3 || !rec.IsProcessed {
				t.Errorf("record = %+v", rec)
			}

			second := post()
			if second.DedupeSeenCount != 2 {
				t.Errorf("redelivery seen count = %d", second.DedupeSeenCount)
			}

			entries, _ := os.ReadDir(a.Config.ScratchDir)
			if len(entries) != 0 {
				t.Errorf("scratch not cleaned: %d entries", len(entries))
			}
		})
	}
}

func TestNewRejectsUnknownBackend(t *testing.T) {
	cfg := testConfig(t, "memory")
	cfg.StorageBackend = "ftp"
	if _, err := New(context.Background(), cfg, logging.Discard(), Options{}); err == nil {
		t.Fatal("expected error for unknown storage backend")
	}
}

func TestStatusWithoutDBOS(t *testing.T) {
	a, err := New(context.Background(), testConfig(t, "memory"), logging.Discard(), Options{Durable: true})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()

	if a.DBOS != nil {
		t.Fatal("DBOS must stay off without a database URL")
	}
	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/runs/abc", nil))
	if rec.Code != http.StatusNotImplemented {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestStartConsumersRedisDownStartsNothing(t *testing.T) {
	var polls atomic.Int32
	sqsServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		polls.Add(1)
		w.Header().Set("Content-Type", "application/x-amz-json-1.0")
		w.Write([]byte(`{"Messages":[]}`))
	}))
	defer sqsServer.Close()

	// a port nothing listens on
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	redisAddr := l.Addr().String()
	l.Close()

	cfg := testConfig(t, "memory")
	cfg.SQSQueueURL = sqsServer.URL + "/000000000000/uploads"
	cfg.SQSEndpoint = sqsServer.URL
	cfg.S3Region = "us-east-1"
	cfg.S3AccessKey = "test"
	cfg.S3SecretKey = "test"
	cfg.RedisAddr = redisAddr

	a, err := New(context.Background(), cfg, logging.Discard(), Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := a.StartConsumers(ctx); err == nil {
		t.Fatal("expected redis connection error")
	}

	time.Sleep(200 * time.Millisecond)
	if n := polls.Load(); n != 0 {
		t.Errorf("sqs consumer polled %d times after startup failed", n)
	}
}
