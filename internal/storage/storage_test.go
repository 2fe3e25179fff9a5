package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

func TestTokenURL(t *testing.T) {
	tests := []struct {
		name string
		base string
		ref  ObjectRef
		want string
	}{
		{
			name: "default host",
			ref:  ObjectRef{Bucket: "media", Path: "thumbnails/clip/thumb_clip_1.png"},
			want: "https://firebasestorage.googleapis.com/v0/b/media/o/thumbnails%2Fclip%2Fthumb_clip_1.png?alt=media&token=tok",
		},
		{
			name: "emulator host with trailing slash",
			base: "http://localhost:9199/",
			ref:  ObjectRef{Bucket: "media", Path: "previews/my clip/preview_my_clip.mp4"},
			want: "http://localhost:9199/v0/b/media/o/previews%2Fmy%20clip%2Fpreview_my_clip.mp4?alt=media&token=tok",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NewURLBuilder(tt.base).TokenURL(tt.ref, "tok"); got != tt.want {
				t.Errorf("TokenURL = %q\nwant       %q", got, tt.want)
			}
		})
	}
}

func TestFilesystemStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	fs, err := NewFilesystemStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	opts := UploadOptions{
		ContentType:  "image/webp",
		CacheControl: DefaultCacheControl,
		Metadata:     map[string]string{DownloadTokenKey: "abc"},
	}
	ref, err := fs.Upload(ctx, "media", "spritesheets/clip/sprite_clip.webp", strings.NewReader("sheet"), opts)
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if ref != (ObjectRef{Bucket: "media", Path: "spritesheets/clip/sprite_clip.webp"}) {
		t.Errorf("ref = %+v", ref)
	}

	var buf bytes.Buffer
	n, err := fs.Download(ctx, "media", ref.Path, &buf)
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if n != 5 || buf.String() != "sheet" {
		t.Errorf("Download = %d %q", n, buf.String())
	}

	md, err := fs.Stat(ctx, "media", ref.Path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if md.ContentType != "image/webp" || md.CacheControl != DefaultCacheControl || md.Custom[DownloadTokenKey] != "abc" || md.Size != 5 {
		t.Errorf("Stat = %+v", md)
	}

	// Overwrite keeps the same path
	if _, err := fs.Upload(ctx, "media", ref.Path, strings.NewReader("sheet v2"), opts); err != nil {
		t.Fatalf("second Upload: %v", err)
	}
	buf.Reset()
	fs.Download(ctx, "media", ref.Path, &buf)
	if buf.String() != "sheet v2" {
		t.Errorf("after overwrite got %q", buf.String())
	}
}

func TestFilesystemStoreSniffsContentType(t *testing.T) {
	ctx := context.Background()
	fs, _ := NewFilesystemStore(t.TempDir())

	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	if _, err := fs.Upload(ctx, "media", "raw.bin", bytes.NewReader(png), UploadOptions{}); err != nil {
		t.Fatal(err)
	}

	md, err := fs.Stat(ctx, "media", "raw.bin")
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if md.ContentType != "image/png" {
		t.Errorf("ContentType = %q, want image/png", md.ContentType)
	}
}

func TestFilesystemStoreErrors(t *testing.T) {
	ctx := context.Background()
	fs, _ := NewFilesystemStore(t.TempDir())

	if _, err := fs.Download(ctx, "media", "missing.mp4", io.Discard); !errors.Is(err, ErrNotFound) {
		t.Errorf("Download missing: %v", err)
	}
	if _, err := fs.Stat(ctx, "media", "missing.mp4"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Stat missing: %v", err)
	}
	if _, err := fs.Download(ctx, "media", "../../etc/passwd", io.Discard); err == nil || !strings.Contains(err.Error(), "traversal") {
		t.Errorf("expected traversal error, got %v", err)
	}
	if _, err := fs.Upload(ctx, "..", "../x", strings.NewReader("x"), UploadOptions{}); err == nil {
		t.Error("expected traversal error on upload")
	}
}

type fakeS3 struct {
	mu      sync.Mutex
	objects map[string]string
	puts    []*http.Request
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := strings.TrimPrefix(r.URL.Path, "/")
	switch r.Method {
	case http.MethodGet, http.MethodHead:
		body, ok := f.objects[key]
		if !ok {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			if r.Method == http.MethodGet {
				io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>missing</Message></Error>`)
			}
			return
		}
		w.Header().Set("Content-Type", "video/mp4")
		w.Header().Set("ETag", `"etag"`)
		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
		w.WriteHeader(http.StatusOK)
		if r.Method == http.MethodGet {
			io.WriteString(w, body)
		}
	case http.MethodPut:
		io.Copy(io.Discard, r.Body)
		f.puts = append(f.puts, r)
		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newTestS3Store(t *testing.T, f *fakeS3) *S3Store {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)

	client := s3.New(s3.Options{
		Region:       "us-east-1",
		BaseEndpoint: aws.String(srv.URL),
		UsePathStyle: true,
		Credentials:  credentials.NewStaticCredentialsProvider("key", "secret", ""),
	})
	return NewS3StoreFromClient(client)
}

func TestS3StoreDownloadAndStat(t *testing.T) {
	ctx := context.Background()
	f := &fakeS3{objects: map[string]string{"media/uploads/clip.mp4": "video-bytes"}}
	store := newTestS3Store(t, f)

	var buf bytes.Buffer
	n, err := store.Download(ctx, "media", "uploads/clip.mp4", &buf)
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if n != int64(len("video-bytes")) || buf.String() != "video-bytes" {
		t.Errorf("Download = %d %q", n, buf.String())
	}

	md, err := store.Stat(ctx, "media", "uploads/clip.mp4")
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if md.ContentType != "video/mp4" || md.Size != int64(len("video-bytes")) {
		t.Errorf("Stat = %+v", md)
	}

	if _, err := store.Download(ctx, "media", "uploads/missing.mp4", io.Discard); !errors.Is(err, ErrNotFound) {
		t.Errorf("Download missing: %v", err)
	}
	if _, err := store.Stat(ctx, "media", "uploads/missing.mp4"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Stat missing: %v", err)
	}
}

func TestS3StoreUploadSetsHeaders(t *testing.T) {
	f := &fakeS3{objects: map[string]string{}}
	store := newTestS3Store(t, f)

	_, err := store.Upload(context.Background(), "media", "previews/clip/preview_clip.mp4", strings.NewReader("clip"), UploadOptions{
		ContentType:  "video/mp4",
		CacheControl: DefaultCacheControl,
		Metadata:     map[string]string{DownloadTokenKey: "tok"},
	})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}

	if len(f.puts) != 1 {
		t.Fatalf("expected 1 PUT, got %d", len(f.puts))
	}
	put := f.puts[0]
	if put.URL.Path != "/media/previews/clip/preview_clip.mp4" {
		t.Errorf("path = %q", put.URL.Path)
	}
	if got := put.Header.Get("Cache-Control"); got != DefaultCacheControl {
		t.Errorf("Cache-Control = %q", got)
	}
	if got := put.Header.Get("Content-Type"); got != "video/mp4" {
		t.Errorf("Content-Type = %q", got)
	}
	if got := put.Header.Get("X-Amz-Meta-firebaseStorageDownloadTokens"); got != "tok" {
		t.Errorf("token metadata = %q", got)
	}
}
