package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

const metaSuffix = ".meta.json"

// FilesystemStore implements BlobStore on a local directory.
// Buckets map to top-level directories; object options are kept in a JSON sidecar.
type FilesystemStore struct {
	baseDir string
}

// NewFilesystemStore creates a new filesystem blob store
func NewFilesystemStore(baseDir string) (*FilesystemStore, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	return &FilesystemStore{baseDir: baseDir}, nil
}

// resolve joins bucket and path under baseDir, rejecting traversal
func (fs *FilesystemStore) resolve(bucket, path string) (string, error) {
	root := filepath.Clean(fs.baseDir)
	full := filepath.Clean(filepath.Join(root, bucket, path))
	if !strings.HasPrefix(full, root+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid key: path traversal detected")
	}
	return full, nil
}

// Download copies the file at bucket/path into w
func (fs *FilesystemStore) Download(ctx context.Context, bucket, path string, w io.Writer) (int64, error) {
	full, err := fs.resolve(bucket, path)
	if err != nil {
		return 0, err
	}

	file, err := os.Open(full)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, fmt.Errorf("%w: %s/%s", ErrNotFound, bucket, path)
		}
		return 0, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	n, err := io.Copy(w, file)
	if err != nil {
		return n, fmt.Errorf("failed to copy file: %w", err)
	}
	return n, nil
}

// Upload writes r to bucket/path and records opts in the sidecar
func (fs *FilesystemStore) Upload(ctx context.Context, bucket, path string, r io.Reader, opts UploadOptions) (ObjectRef, error) {
	full, err := fs.resolve(bucket, path)
	if err != nil {
		return ObjectRef{}, err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return ObjectRef{}, fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(full), ".upload-*")
	if err != nil {
		return ObjectRef{}, fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return ObjectRef{}, fmt.Errorf("failed to write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return ObjectRef{}, fmt.Errorf("failed to close file: %w", err)
	}
	if err := os.Rename(tmp.Name(), full); err != nil {
		return ObjectRef{}, fmt.Errorf("failed to move file into place: %w", err)
	}

	meta, err := json.Marshal(sidecar{
		ContentType:  opts.ContentType,
		CacheControl: opts.CacheControl,
		Metadata:     opts.Metadata,
	})
	if err != nil {
		return ObjectRef{}, fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if err := os.WriteFile(full+metaSuffix, meta, 0644); err != nil {
		return ObjectRef{}, fmt.Errorf("failed to write metadata: %w", err)
	}

	return ObjectRef{Bucket: bucket, Path: path}, nil
}

// Stat returns metadata for bucket/path. Without a sidecar the content type
// is sniffed from the file header.
func (fs *FilesystemStore) Stat(ctx context.Context, bucket, path string) (*Metadata, error) {
	full, err := fs.resolve(bucket, path)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, bucket, path)
		}
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	md := &Metadata{Size: info.Size()}

	raw, err := os.ReadFile(full + metaSuffix)
	switch {
	case err == nil:
		var sc sidecar
		if err := json.Unmarshal(raw, &sc); err != nil {
			return nil, fmt.Errorf("failed to parse metadata: %w", err)
		}
		md.ContentType = sc.ContentType
		md.CacheControl = sc.CacheControl
		md.Custom = sc.Metadata
	case !errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("failed to read metadata: %w", err)
	}

	if md.ContentType == "" {
		mt, err := mimetype.DetectFile(full)
		if err != nil {
			return nil, fmt.Errorf("failed to detect content type: %w", err)
		}
		md.ContentType = mt.String()
	}

	return md, nil
}

type sidecar struct {
	ContentType  string            `json:"content_type,omitempty"`
	CacheControl string            `json:"cache_control,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}
