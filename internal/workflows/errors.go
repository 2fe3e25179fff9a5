package workflows

import (
	"errors"
	"fmt"
)

var (
	// ErrWorkflowNotFound is returned when a workflow is not registered
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrNoRuntime is returned by async operations when DBOS is not configured
	ErrNoRuntime = errors.New("DBOS runtime not initialized")

	// ErrInvalidRequest is returned when the request is invalid
	ErrInvalidRequest = errors.New("invalid workflow request")

	// ErrDownload is returned when the source video cannot be fetched
	ErrDownload = errors.New("download failed")

	// ErrEncoding is returned when ffmpeg exits non-zero
	ErrEncoding = errors.New("encoding failed")

	// ErrProbe is returned when media inspection or sheet measurement fails
	ErrProbe = errors.New("probe failed")

	// ErrUpload is returned when an artifact cannot be stored
	ErrUpload = errors.New("upload failed")

	// ErrPersistence is returned when the metadata record cannot be written
	ErrPersistence = errors.New("metadata write failed")

	// ErrTimeout is returned when a run exceeds its deadline
	ErrTimeout = errors.New("run timed out")
)

// StageError records which stage failed and why.
// It matches both its Kind sentinel and the underlying cause with errors.Is/As.
type StageError struct {
	Stage State
	Kind  error
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s (after %s): %v", e.Kind, e.Stage, e.Err)
}

func (e *StageError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// kindLabel is the metrics label for a failure kind
func kindLabel(err error) string {
	switch {
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrDownload):
		return "download"
	case errors.Is(err, ErrEncoding):
		return "encoding"
	case errors.Is(err, ErrProbe):
		return "probe"
	case errors.Is(err, ErrUpload):
		return "upload"
	case errors.Is(err, ErrPersistence):
		return "persistence"
	default:
		return "other"
	}
}
