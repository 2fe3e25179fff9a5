package metadata

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when no record exists for a video
var ErrNotFound = errors.New("video metadata not found")

// Record is the stored metadata for one video
type Record struct {
	VideoID         string    `json:"video_id"`
	IsProcessed     bool      `json:"is_processed"`
	ActiveThumbnail int       `json:"active_thumbnail,omitempty"`
	DerivativeURLs  []string  `json:"derivative_urls,omitempty"`
	PreviewURL      string    `json:"preview_url,omitempty"`
	SpriteSheetURL  string    `json:"sprite_sheet_url,omitempty"`
	SpriteWidth     int       `json:"sprite_width,omitempty"`
	SpriteHeight    int       `json:"sprite_height,omitempty"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Fields is a partial update. Nil fields are left untouched by an upsert.
type Fields struct {
	IsProcessed     *bool
	ActiveThumbnail *int
	DerivativeURLs  []string
	PreviewURL      *string
	SpriteSheetURL  *string
	SpriteWidth     *int
	SpriteHeight    *int
}

// Empty reports whether no field is set
func (f Fields) Empty() bool {
	return f.IsProcessed == nil && f.ActiveThumbnail == nil && f.DerivativeURLs == nil &&
		f.PreviewURL == nil && f.SpriteSheetURL == nil && f.SpriteWidth == nil && f.SpriteHeight == nil
}

// Store persists video metadata with merge semantics
type Store interface {
	// UpsertVideoMetadata creates the record if missing and writes only the set fields
	UpsertVideoMetadata(ctx context.Context, videoID string, f Fields) error

	// GetVideoMetadata returns the record or ErrNotFound
	GetVideoMetadata(ctx context.Context, videoID string) (*Record, error)
}

// Ptr returns a pointer to v, for building Fields literals
func Ptr[T any](v T) *T {
	return &v
}

// apply merges f into r
func (f Fields) apply(r *Record) {
	if f.IsProcessed != nil {
		r.IsProcessed = *f.IsProcessed
	}
	if f.ActiveThumbnail != nil {
		r.ActiveThumbnail = *f.ActiveThumbnail
	}
	if f.DerivativeURLs != nil {
		r.DerivativeURLs = append([]string(nil), f.DerivativeURLs...)
	}
	if f.PreviewURL != nil {
		r.PreviewURL = *f.PreviewURL
	}
	if f.SpriteSheetURL != nil {
		r.SpriteSheetURL = *f.SpriteSheetURL
	}
	if f.SpriteWidth != nil {
		r.SpriteWidth = *f.SpriteWidth
	}
	if f.SpriteHeight != nil {
		r.SpriteHeight = *f.SpriteHeight
	}
}
