package events

import (
	"context"
	"encoding/json"
	"fmt"
	"mime"
	"net/url"
	"path"
	"strings"

	"github.com/tendant/simple-video-pipeline/internal/storage"
	"github.com/tendant/simple-video-pipeline/pkg/pipeline"
)

// Dispatcher hands an upload event to the derivative runs
type Dispatcher interface {
	Dispatch(ctx context.Context, ev pipeline.UploadEvent, jobs []string) *pipeline.ProcessResponse
}

// Statter looks up object metadata. storage.BlobStore satisfies it.
type Statter interface {
	Stat(ctx context.Context, bucket, path string) (*storage.Metadata, error)
}

// s3Notification is the S3 event notification body delivered to SQS
type s3Notification struct {
	Event   string     `json:"Event"`
	Records []s3Record `json:"Records"`
}

type s3Record struct {
	EventName string `json:"eventName"`
	S3        struct {
		Bucket struct {
			Name string `json:"name"`
		} `json:"bucket"`
		Object struct {
			Key       string `json:"key"`
			Size      int64  `json:"size"`
			VersionID string `json:"versionId"`
			Sequencer string `json:"sequencer"`
		} `json:"object"`
	} `json:"s3"`
}

// ParseS3Notification extracts ObjectCreated records from an S3 event
// notification. The s3:TestEvent sent on subscription yields no events.
// ContentType is left empty; S3 does not include it in notifications.
func ParseS3Notification(body []byte) ([]pipeline.UploadEvent, error) {
	var n s3Notification
	if err := json.Unmarshal(body, &n); err != nil {
		return nil, fmt.Errorf("parse s3 notification: %w", err)
	}
	if n.Event == "s3:TestEvent" {
		return nil, nil
	}

	var out []pipeline.UploadEvent
	for _, r := range n.Records {
		if !strings.HasPrefix(r.EventName, "ObjectCreated:") {
			continue
		}
		// Keys arrive form-encoded: spaces as '+'
		key, err := url.QueryUnescape(r.S3.Object.Key)
		if err != nil {
			return nil, fmt.Errorf("decode object key %q: %w", r.S3.Object.Key, err)
		}
		generation := r.S3.Object.VersionID
		if generation == "" {
			generation = r.S3.Object.Sequencer
		}
		out = append(out, pipeline.UploadEvent{
			Bucket:     r.S3.Bucket.Name,
			ObjectPath: key,
			SizeBytes:  r.S3.Object.Size,
			Generation: generation,
		})
	}
	return out, nil
}

// videoTypes covers containers missing from minimal mime tables
var videoTypes = map[string]string{
	".mp4":  "video/mp4",
	".m4v":  "video/x-m4v",
	".mov":  "video/quicktime",
	".webm": "video/webm",
	".mkv":  "video/x-matroska",
	".avi":  "video/x-msvideo",
}

// ResolveContentType fills ev.ContentType from the object's stored metadata,
// falling back to the file extension.
func ResolveContentType(ctx context.Context, st Statter, ev *pipeline.UploadEvent) {
	if ev.ContentType != "" {
		return
	}
	if st != nil {
		if md, err := st.Stat(ctx, ev.Bucket, ev.ObjectPath); err == nil && md.ContentType != "" {
			ev.ContentType = md.ContentType
			return
		}
	}
	ext := strings.ToLower(path.Ext(ev.ObjectPath))
	if ct, ok := videoTypes[ext]; ok {
		ev.ContentType = ct
		return
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		ev.ContentType = ct
		return
	}
	ev.ContentType = "application/octet-stream"
}
