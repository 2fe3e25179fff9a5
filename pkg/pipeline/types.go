package pipeline

import "time"

// UploadEvent describes a finalized object in the blob store
type UploadEvent struct {
	Bucket      string `json:"bucket" validate:"required"`
	ObjectPath  string `json:"object_path" validate:"required"`
	ContentType string `json:"content_type" validate:"required"`
	SizeBytes   int64  `json:"size_bytes" validate:"gte=0"`
	Generation  string `json:"generation,omitempty"`
}

// ProcessRequest represents a request to run one derivative job for an upload
type ProcessRequest struct {
	Event UploadEvent `json:"event"`
	Job   string      `json:"job"` // thumbnail, preview, spritesheet
}

// EventRequest is the body accepted by POST /v1/events.
// Jobs may be empty, in which case every job runs.
type EventRequest struct {
	UploadEvent
	Jobs []string `json:"jobs,omitempty" validate:"omitempty,dive,oneof=thumbnail preview spritesheet"`
}

// RunSummary is the outcome of a single job run
type RunSummary struct {
	RunID      string `json:"run_id"`
	Job        string `json:"job"`
	Success    bool   `json:"success"`
	Skipped    bool   `json:"skipped,omitempty"`
	SkipReason string `json:"skip_reason,omitempty"`
	State      string `json:"state,omitempty"`
	Error      string `json:"error,omitempty"`
}

// ProcessResponse represents the response from triggering processing
type ProcessResponse struct {
	Success         bool         `json:"success"`
	Error           string       `json:"error,omitempty"`
	Runs            []RunSummary `json:"runs,omitempty"`
	DedupeSeenCount int          `json:"dedupe_seen_count"`
}

// RunStatus is returned by GET /v1/runs/{runID}
type RunStatus struct {
	RunID     string    `json:"run_id"`
	State     string    `json:"state"` // PENDING, ENQUEUED, SUCCESS, ERROR, ...
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// JobType constants
const (
	JobThumbnail   = "thumbnail"
	JobPreview     = "preview"
	JobSpriteSheet = "spritesheet"
)

// AllJobs lists every job an upload fans out to
var AllJobs = []string{JobThumbnail, JobPreview, JobSpriteSheet}

// DerivedType constants name the remote folders derivatives are written to
const (
	DerivedTypeThumbnail   = "thumbnails"
	DerivedTypePreview     = "previews"
	DerivedTypeSpriteSheet = "spritesheets"
)
