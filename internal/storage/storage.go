package storage

import (
	"context"
	"errors"
	"io"
)

// DownloadTokenKey is the object metadata key holding the opaque download token
const DownloadTokenKey = "firebaseStorageDownloadTokens"

// DefaultCacheControl marks derivatives as immutable for a year
const DefaultCacheControl = "public,max-age=31536000"

// ErrNotFound is returned when an object does not exist
var ErrNotFound = errors.New("object not found")

// ObjectRef identifies a stored object
type ObjectRef struct {
	Bucket string
	Path   string
}

// UploadOptions are applied to the stored object
type UploadOptions struct {
	ContentType  string
	CacheControl string
	Metadata     map[string]string
}

// Metadata contains storage object metadata
type Metadata struct {
	Size         int64
	ContentType  string
	ETag         string
	CacheControl string
	Custom       map[string]string
}

// BlobStore reads source objects and writes derivatives
type BlobStore interface {
	// Download streams the object at bucket/path into w and returns the bytes copied
	Download(ctx context.Context, bucket, path string, w io.Writer) (int64, error)

	// Upload stores r at bucket/path, overwriting any existing object
	Upload(ctx context.Context, bucket, path string, r io.Reader, opts UploadOptions) (ObjectRef, error)

	// Stat returns metadata for the object at bucket/path
	Stat(ctx context.Context, bucket, path string) (*Metadata, error)
}
