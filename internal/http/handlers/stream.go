package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/truongvando/ezstream-sub000/internal/models"
	"github.com/truongvando/ezstream-sub000/internal/service"
)

// LifecycleController is the orchestrator surface the stream handler drives.
type LifecycleController interface {
	RequestStart(ctx context.Context, streamID models.ULID) error
	RequestStop(ctx context.Context, streamID models.ULID) error
	Retry(ctx context.Context, streamID models.ULID) error
}

// StreamHandler handles stream API endpoints.
type StreamHandler struct {
	streamService *service.StreamService
	control       LifecycleController
}

// NewStreamHandler creates a new stream handler.
func NewStreamHandler(streamService *service.StreamService, control LifecycleController) *StreamHandler {
	return &StreamHandler{
		streamService: streamService,
		control:       control,
	}
}

// Register registers the stream routes with the API.
func (h *StreamHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "listStreams",
		Method:      http.MethodGet,
		Path:        "/api/v1/streams",
		Summary:     "List streams",
		Description: "Returns streams, optionally filtered by owner and status",
		Tags:        []string{"Streams"},
	}, h.List)

	huma.Register(api, huma.Operation{
		OperationID: "createStream",
		Method:      http.MethodPost,
		Path:        "/api/v1/streams",
		Summary:     "Create stream",
		Description: "Creates a new stream in the inactive state",
		Tags:        []string{"Streams"},
	}, h.Create)

	huma.Register(api, huma.Operation{
		OperationID: "getStream",
		Method:      http.MethodGet,
		Path:        "/api/v1/streams/{id}",
		Summary:     "Get stream",
		Description: "Returns a stream with its playlist",
		Tags:        []string{"Streams"},
	}, h.Get)

	huma.Register(api, huma.Operation{
		OperationID: "updateStream",
		Method:      http.MethodPut,
		Path:        "/api/v1/streams/{id}",
		Summary:     "Update stream",
		Description: "Reconfigures a stream; a live stream is restarted with the new configuration",
		Tags:        []string{"Streams"},
	}, h.Update)

	huma.Register(api, huma.Operation{
		OperationID: "deleteStream",
		Method:      http.MethodDelete,
		Path:        "/api/v1/streams/{id}",
		Summary:     "Delete stream",
		Description: "Deletes a stream, force-stopping it first when live",
		Tags:        []string{"Streams"},
	}, h.Delete)

	huma.Register(api, huma.Operation{
		OperationID: "replaceStreamPlaylist",
		Method:      http.MethodPut,
		Path:        "/api/v1/streams/{id}/playlist",
		Summary:     "Replace playlist",
		Description: "Replaces the stream's playlist; takes effect on the next start",
		Tags:        []string{"Streams"},
	}, h.ReplacePlaylist)

	huma.Register(api, huma.Operation{
		OperationID:   "startStream",
		Method:        http.MethodPost,
		Path:          "/api/v1/streams/{id}/start",
		Summary:       "Start stream",
		Description:   "Activates a stream: quota check, worker assignment, and dispatch",
		Tags:          []string{"Streams"},
		DefaultStatus: http.StatusAccepted,
	}, h.Start)

	huma.Register(api, huma.Operation{
		OperationID:   "stopStream",
		Method:        http.MethodPost,
		Path:          "/api/v1/streams/{id}/stop",
		Summary:       "Stop stream",
		Description:   "Halts a streaming stream",
		Tags:          []string{"Streams"},
		DefaultStatus: http.StatusAccepted,
	}, h.Stop)

	huma.Register(api, huma.Operation{
		OperationID:   "retryStream",
		Method:        http.MethodPost,
		Path:          "/api/v1/streams/{id}/retry",
		Summary:       "Retry stream",
		Description:   "Re-activates a stream that ended in the error state",
		Tags:          []string{"Streams"},
		DefaultStatus: http.StatusAccepted,
	}, h.Retry)
}

// StreamRequest is the create/update request body.
type StreamRequest struct {
	OwnerID        string              `json:"owner_id,omitempty" doc:"Owner ULID, required on create"`
	Name           string              `json:"name" minLength:"1" maxLength:"255"`
	Note           string              `json:"note,omitempty" maxLength:"1024"`
	Platform       models.Platform     `json:"platform,omitempty" enum:"youtube,facebook,twitch,custom"`
	RTMPURL        string              `json:"rtmp_url" minLength:"1"`
	StreamKey      string              `json:"stream_key,omitempty" doc:"Write-only; empty on update keeps the current key"`
	OrderMode      models.OrderMode    `json:"order_mode,omitempty" enum:"sequential,random"`
	Loop           bool                `json:"loop,omitempty"`
	Reshuffle      bool                `json:"reshuffle,omitempty"`
	ScheduledAt    *time.Time          `json:"scheduled_at,omitempty"`
	ScheduledEndAt *time.Time          `json:"scheduled_end_at,omitempty"`
	RecurrenceCron string              `json:"recurrence_cron,omitempty"`
	Ephemeral      bool                `json:"ephemeral,omitempty"`
	RetainAssets   bool                `json:"retain_assets,omitempty"`
	Playlist       []PlaylistItemInput `json:"playlist,omitempty"`
}

func (r *StreamRequest) toModel() *models.Stream {
	stream := &models.Stream{
		Name:           r.Name,
		Note:           r.Note,
		Platform:       r.Platform,
		RTMPURL:        r.RTMPURL,
		StreamKey:      r.StreamKey,
		OrderMode:      r.OrderMode,
		Loop:           r.Loop,
		Reshuffle:      r.Reshuffle,
		ScheduledAt:    r.ScheduledAt,
		ScheduledEndAt: r.ScheduledEndAt,
		RecurrenceCron: r.RecurrenceCron,
		Ephemeral:      r.Ephemeral,
		RetainAssets:   r.RetainAssets,
	}
	for _, item := range r.Playlist {
		stream.PlaylistItems = append(stream.PlaylistItems, models.PlaylistItem{
			Title:           item.Title,
			Path:            item.Path,
			DurationSeconds: item.DurationSeconds,
			SizeBytes:       item.SizeBytes,
			Disabled:        item.Disabled,
		})
	}
	return stream
}

// ListStreamsInput is the input for listing streams.
type ListStreamsInput struct {
	OwnerID string `query:"owner_id" doc:"Filter by owner ULID"`
	Status  string `query:"status" doc:"Filter by status"`
}

// ListStreamsOutput is the output for listing streams.
type ListStreamsOutput struct {
	Body struct {
		Streams []StreamResponse `json:"streams"`
	}
}

// List returns streams matching the filters.
func (h *StreamHandler) List(ctx context.Context, input *ListStreamsInput) (*ListStreamsOutput, error) {
	var ownerID *models.ULID
	if input.OwnerID != "" {
		id, err := models.ParseULID(input.OwnerID)
		if err != nil {
			return nil, huma.Error422UnprocessableEntity("invalid owner_id")
		}
		ownerID = &id
	}
	var statuses []models.StreamStatus
	if input.Status != "" {
		status := models.StreamStatus(input.Status)
		if !status.IsValid() {
			return nil, huma.Error422UnprocessableEntity("invalid status")
		}
		statuses = append(statuses, status)
	}

	streams, err := h.streamService.List(ctx, ownerID, statuses...)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to list streams", err)
	}

	resp := &ListStreamsOutput{}
	resp.Body.Streams = make([]StreamResponse, 0, len(streams))
	for _, s := range streams {
		resp.Body.Streams = append(resp.Body.Streams, StreamFromModel(s))
	}
	return resp, nil
}

// CreateStreamInput is the input for creating a stream.
type CreateStreamInput struct {
	Body StreamRequest
}

// StreamOutput is a single-stream response.
type StreamOutput struct {
	Body StreamResponse
}

// Create creates a new stream.
func (h *StreamHandler) Create(ctx context.Context, input *CreateStreamInput) (*StreamOutput, error) {
	ownerID, err := models.ParseULID(input.Body.OwnerID)
	if err != nil {
		return nil, huma.Error422UnprocessableEntity("invalid owner_id")
	}

	stream := input.Body.toModel()
	stream.OwnerID = ownerID

	if err := h.streamService.Create(ctx, stream); err != nil {
		return nil, mapStreamError(err)
	}
	return &StreamOutput{Body: StreamFromModel(stream)}, nil
}

// GetStreamInput identifies a stream by path parameter.
type GetStreamInput struct {
	ID string `path:"id" doc:"Stream ULID"`
}

// Get returns a stream with its playlist.
func (h *StreamHandler) Get(ctx context.Context, input *GetStreamInput) (*StreamOutput, error) {
	id, err := models.ParseULID(input.ID)
	if err != nil {
		return nil, huma.Error404NotFound("stream not found")
	}
	stream, err := h.streamService.GetWithPlaylist(ctx, id)
	if err != nil {
		return nil, mapStreamError(err)
	}
	return &StreamOutput{Body: StreamFromModel(stream)}, nil
}

// UpdateStreamInput is the input for updating a stream.
type UpdateStreamInput struct {
	ID   string `path:"id" doc:"Stream ULID"`
	Body StreamRequest
}

// Update reconfigures a stream.
func (h *StreamHandler) Update(ctx context.Context, input *UpdateStreamInput) (*StreamOutput, error) {
	id, err := models.ParseULID(input.ID)
	if err != nil {
		return nil, huma.Error404NotFound("stream not found")
	}
	existing, err := h.streamService.Get(ctx, id)
	if err != nil {
		return nil, mapStreamError(err)
	}

	stream := input.Body.toModel()
	stream.BaseModel = existing.BaseModel
	stream.OwnerID = existing.OwnerID
	if stream.StreamKey == "" {
		stream.StreamKey = existing.StreamKey
	}

	if err := h.streamService.Update(ctx, stream); err != nil {
		return nil, mapStreamError(err)
	}
	return &StreamOutput{Body: StreamFromModel(stream)}, nil
}

// DeleteStreamInput identifies the stream to delete.
type DeleteStreamInput struct {
	ID string `path:"id" doc:"Stream ULID"`
}

// DeleteStreamOutput is an empty response.
type DeleteStreamOutput struct{}

// Delete removes a stream.
func (h *StreamHandler) Delete(ctx context.Context, input *DeleteStreamInput) (*DeleteStreamOutput, error) {
	id, err := models.ParseULID(input.ID)
	if err != nil {
		return nil, huma.Error404NotFound("stream not found")
	}
	if err := h.streamService.Delete(ctx, id); err != nil {
		return nil, mapStreamError(err)
	}
	return &DeleteStreamOutput{}, nil
}

// ReplacePlaylistInput is the input for replacing a stream's playlist.
type ReplacePlaylistInput struct {
	ID   string `path:"id" doc:"Stream ULID"`
	Body struct {
		Playlist []PlaylistItemInput `json:"playlist"`
	}
}

// ReplacePlaylist swaps the stream's playlist content.
func (h *StreamHandler) ReplacePlaylist(ctx context.Context, input *ReplacePlaylistInput) (*StreamOutput, error) {
	id, err := models.ParseULID(input.ID)
	if err != nil {
		return nil, huma.Error404NotFound("stream not found")
	}
	items := make([]models.PlaylistItem, 0, len(input.Body.Playlist))
	for _, item := range input.Body.Playlist {
		items = append(items, models.PlaylistItem{
			Title:           item.Title,
			Path:            item.Path,
			DurationSeconds: item.DurationSeconds,
			SizeBytes:       item.SizeBytes,
			Disabled:        item.Disabled,
		})
	}
	if err := h.streamService.ReplacePlaylist(ctx, id, items); err != nil {
		return nil, mapStreamError(err)
	}
	stream, err := h.streamService.GetWithPlaylist(ctx, id)
	if err != nil {
		return nil, mapStreamError(err)
	}
	return &StreamOutput{Body: StreamFromModel(stream)}, nil
}

// LifecycleInput identifies the stream for a lifecycle operation.
type LifecycleInput struct {
	ID string `path:"id" doc:"Stream ULID"`
}

// LifecycleOutput acknowledges an accepted lifecycle operation.
type LifecycleOutput struct {
	Body struct {
		StreamID string `json:"stream_id"`
		Accepted bool   `json:"accepted"`
	}
}

func lifecycleAccepted(id models.ULID) *LifecycleOutput {
	out := &LifecycleOutput{}
	out.Body.StreamID = id.String()
	out.Body.Accepted = true
	return out
}

// Start activates a stream.
func (h *StreamHandler) Start(ctx context.Context, input *LifecycleInput) (*LifecycleOutput, error) {
	id, err := models.ParseULID(input.ID)
	if err != nil {
		return nil, huma.Error404NotFound("stream not found")
	}
	if err := h.control.RequestStart(ctx, id); err != nil {
		return nil, mapStreamError(err)
	}
	return lifecycleAccepted(id), nil
}

// Stop halts a streaming stream.
func (h *StreamHandler) Stop(ctx context.Context, input *LifecycleInput) (*LifecycleOutput, error) {
	id, err := models.ParseULID(input.ID)
	if err != nil {
		return nil, huma.Error404NotFound("stream not found")
	}
	if err := h.control.RequestStop(ctx, id); err != nil {
		return nil, mapStreamError(err)
	}
	return lifecycleAccepted(id), nil
}

// Retry re-activates an errored stream.
func (h *StreamHandler) Retry(ctx context.Context, input *LifecycleInput) (*LifecycleOutput, error) {
	id, err := models.ParseULID(input.ID)
	if err != nil {
		return nil, huma.Error404NotFound("stream not found")
	}
	if err := h.control.Retry(ctx, id); err != nil {
		return nil, mapStreamError(err)
	}
	return lifecycleAccepted(id), nil
}

// mapStreamError converts domain errors to HTTP errors.
func mapStreamError(err error) error {
	var validationErr *models.ValidationError
	var quotaErr *models.QuotaExceededError
	var transitionErr *models.TransitionError

	switch {
	case errors.Is(err, models.ErrStreamNotFound):
		return huma.Error404NotFound("stream not found")
	case errors.As(err, &quotaErr):
		return huma.Error409Conflict(quotaErr.Error(), &huma.ErrorDetail{
			Message:  "concurrent stream quota exceeded",
			Location: "owner_id",
		})
	case errors.Is(err, models.ErrStreamAlreadyActive),
		errors.Is(err, models.ErrStreamNotActive),
		errors.Is(err, models.ErrStreamBusy):
		return huma.Error409Conflict(err.Error())
	case errors.As(err, &transitionErr):
		return huma.Error409Conflict(transitionErr.Error())
	case errors.As(err, &validationErr),
		errors.Is(err, models.ErrEmptyPlaylist),
		errors.Is(err, models.ErrStreamNameRequired),
		errors.Is(err, models.ErrStreamKeyRequired),
		errors.Is(err, models.ErrRTMPURLRequired),
		errors.Is(err, models.ErrInvalidPlatform),
		errors.Is(err, models.ErrInvalidOrderMode):
		return huma.Error422UnprocessableEntity(err.Error())
	case errors.Is(err, models.ErrWorkerNotAvailable):
		return huma.Error503ServiceUnavailable(err.Error())
	default:
		return huma.Error500InternalServerError("internal error", err)
	}
}
