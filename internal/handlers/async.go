package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/tendant/simple-video-pipeline/internal/dbosruntime"
	"github.com/tendant/simple-video-pipeline/internal/metrics"
	"github.com/tendant/simple-video-pipeline/internal/workflows"
	"github.com/tendant/simple-video-pipeline/pkg/pipeline"
)

// Dispatcher hands an upload event to the derivative runs
type Dispatcher interface {
	Dispatch(ctx context.Context, ev pipeline.UploadEvent, jobs []string) *pipeline.ProcessResponse
}

// StatusSource looks up async run status
type StatusSource interface {
	Async() bool
	GetStatus(ctx context.Context, runID string) (*workflows.WorkflowStatus, error)
}

// EventHandler handles upload event and run status requests
type EventHandler struct {
	dispatcher Dispatcher
	status     StatusSource
	validator  *validator.Validate
	logger     *slog.Logger
}

// NewEventHandler creates a new event handler
func NewEventHandler(dispatcher Dispatcher, status StatusSource, logger *slog.Logger) *EventHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventHandler{
		dispatcher: dispatcher,
		status:     status,
		validator:  newValidator(),
		logger:     logger,
	}
}

// HandleEvent handles POST /v1/events. Runs execute inline unless DBOS is
// configured, in which case they are enqueued and 202 is returned.
func (h *EventHandler) HandleEvent(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var req pipeline.EventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request: "+err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.validator.Struct(req); err != nil {
		writeJSON(w, http.StatusBadRequest, validationErrorsToMap(err))
		return
	}

	metrics.EventsReceivedTotal.WithLabelValues("http").Inc()
	h.logger.Info("event received",
		slog.String("bucket", req.Bucket),
		slog.String("object", req.ObjectPath),
		slog.Any("jobs", req.Jobs),
	)

	resp := h.dispatcher.Dispatch(r.Context(), req.UploadEvent, req.Jobs)

	code := http.StatusOK
	switch {
	case !resp.Success:
		code = http.StatusInternalServerError
	case h.status != nil && h.status.Async():
		code = http.StatusAccepted
	}
	writeJSON(w, code, resp)
}

// HandleStatus handles GET /v1/runs/{runID}
func (h *EventHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	// chi matches on the escaped path; run IDs contain the object path
	runID, err := url.PathUnescape(chi.URLParam(r, "runID"))
	if err != nil || runID == "" {
		writeJSONError(w, "run_id is required", http.StatusBadRequest)
		return
	}
	if h.status == nil {
		writeJSONError(w, workflows.ErrNoRuntime.Error(), http.StatusNotImplemented)
		return
	}

	status, err := h.status.GetStatus(r.Context(), runID)
	switch {
	case errors.Is(err, dbosruntime.ErrNotFound):
		writeJSONError(w, "run not found", http.StatusNotFound)
		return
	case errors.Is(err, workflows.ErrNoRuntime):
		writeJSONError(w, err.Error(), http.StatusNotImplemented)
		return
	case err != nil:
		h.logger.Error("failed to get run status", slog.String("run_id", runID), slog.Any("error", err))
		writeJSONError(w, "failed to get run status", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, status)
}

// HandleHealth handles GET /health
func HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
