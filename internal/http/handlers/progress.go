package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"

	"github.com/truongvando/ezstream-sub000/internal/models"
	"github.com/truongvando/ezstream-sub000/internal/progress"
)

// ProgressHandler serves progress snapshots and the SSE event feed.
type ProgressHandler struct {
	tracker           *progress.Tracker
	logger            *slog.Logger
	heartbeatInterval time.Duration
}

// NewProgressHandler creates a new progress handler.
func NewProgressHandler(tracker *progress.Tracker, logger *slog.Logger) *ProgressHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProgressHandler{
		tracker:           tracker,
		logger:            logger,
		heartbeatInterval: 30 * time.Second,
	}
}

// Register registers the snapshot routes with the API.
func (h *ProgressHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "getStreamProgress",
		Method:      http.MethodGet,
		Path:        "/api/v1/streams/{id}/progress",
		Summary:     "Get stream progress",
		Description: "Returns the current progress snapshot for a stream",
		Tags:        []string{"Progress"},
	}, h.Get)

	huma.Register(api, huma.Operation{
		OperationID: "listProgress",
		Method:      http.MethodGet,
		Path:        "/api/v1/progress",
		Summary:     "List progress snapshots",
		Description: "Returns progress snapshots for all tracked streams",
		Tags:        []string{"Progress"},
	}, h.List)
}

// RegisterSSE registers the server-sent events route on the raw router,
// since huma buffers responses.
func (h *ProgressHandler) RegisterSSE(router *chi.Mux) {
	router.Get("/api/v1/progress/events", h.handleSSE)
}

// GetProgressInput identifies a stream by path parameter.
type GetProgressInput struct {
	ID string `path:"id" doc:"Stream ULID"`
}

// ProgressOutput is a single snapshot response.
type ProgressOutput struct {
	Body progress.Snapshot
}

// Get returns the progress snapshot for a stream.
func (h *ProgressHandler) Get(ctx context.Context, input *GetProgressInput) (*ProgressOutput, error) {
	id, err := models.ParseULID(input.ID)
	if err != nil {
		return nil, huma.Error404NotFound("no progress for stream")
	}
	snap, ok := h.tracker.Get(id)
	if !ok {
		return nil, huma.Error404NotFound("no progress for stream")
	}
	return &ProgressOutput{Body: *snap}, nil
}

// ListProgressInput is the input for listing snapshots.
type ListProgressInput struct{}

// ListProgressOutput is the output for listing snapshots.
type ListProgressOutput struct {
	Body struct {
		Snapshots []*progress.Snapshot `json:"snapshots"`
	}
}

// List returns all tracked snapshots.
func (h *ProgressHandler) List(ctx context.Context, input *ListProgressInput) (*ListProgressOutput, error) {
	resp := &ListProgressOutput{}
	resp.Body.Snapshots = h.tracker.GetAll()
	return resp, nil
}

// handleSSE streams progress events to the client. An optional stream_id
// query parameter narrows the feed to one stream.
func (h *ProgressHandler) handleSSE(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	var streamID models.ULID
	if raw := r.URL.Query().Get("stream_id"); raw != "" {
		id, err := models.ParseULID(raw)
		if err != nil {
			http.Error(w, "invalid stream_id", http.StatusUnprocessableEntity)
			return
		}
		streamID = id
	}

	sub := h.tracker.Subscribe(streamID, 32)
	defer h.tracker.Unsubscribe(sub.ID)

	rc := http.NewResponseController(w)
	// SSE connections outlive the server write timeout.
	_ = rc.SetWriteDeadline(time.Time{})

	heartbeat := time.NewTicker(h.heartbeatInterval)
	defer heartbeat.Stop()

	ctx := r.Context()

	fmt.Fprintf(w, ":connected\n\n")
	if err := rc.Flush(); err != nil {
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			fmt.Fprintf(w, ":heartbeat %d\n\n", time.Now().Unix())
			if err := rc.Flush(); err != nil {
				return
			}
		case event, ok := <-sub.Events:
			if !ok {
				return
			}
			if err := writeSSEEvent(w, event); err != nil {
				h.logger.Debug("sse write failed, client likely disconnected",
					slog.String("stream_id", event.StreamID.String()),
					slog.Any("error", err),
				)
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}

func writeSSEEvent(w http.ResponseWriter, event *progress.Event) error {
	data, err := json.Marshal(event.Snapshot)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: progress\nid: %s\ndata: %s\n\n", event.StreamID, data)
	return err
}
