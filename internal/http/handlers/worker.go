package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/truongvando/ezstream-sub000/internal/models"
	"github.com/truongvando/ezstream-sub000/pkg/relayd/types"
)

// FleetRegistry is the fleet surface the worker handler drives.
type FleetRegistry interface {
	Register(ctx context.Context, req *types.RegisterRequest) (*models.WorkerNode, error)
	Heartbeat(ctx context.Context, hb *types.Heartbeat) error
	GetAll() []*models.WorkerNode
	ActiveStreams(workerID models.ULID) int
	SetEnabled(ctx context.Context, workerID models.ULID, enabled bool) error
	Remove(ctx context.Context, workerID models.ULID) error
}

// EventSink consumes asynchronous worker callbacks.
type EventSink interface {
	HandleWorkerEvent(ctx context.Context, ev *types.StreamEvent) error
}

// WorkerHandler handles the worker-facing and fleet admin endpoints.
type WorkerHandler struct {
	fleet  FleetRegistry
	events EventSink
}

// NewWorkerHandler creates a new worker handler.
func NewWorkerHandler(fleet FleetRegistry, events EventSink) *WorkerHandler {
	return &WorkerHandler{
		fleet:  fleet,
		events: events,
	}
}

// Register registers the worker routes with the API.
func (h *WorkerHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "registerWorker",
		Method:      http.MethodPost,
		Path:        "/api/v1/workers/register",
		Summary:     "Register worker",
		Description: "Called by relayd on startup to announce itself to the fleet",
		Tags:        []string{"Workers"},
	}, h.RegisterWorker)

	huma.Register(api, huma.Operation{
		OperationID: "workerHeartbeat",
		Method:      http.MethodPost,
		Path:        "/api/v1/workers/{id}/heartbeat",
		Summary:     "Worker heartbeat",
		Description: "Periodic liveness and telemetry report from a worker",
		Tags:        []string{"Workers"},
	}, h.HeartbeatWorker)

	huma.Register(api, huma.Operation{
		OperationID: "workerEvent",
		Method:      http.MethodPost,
		Path:        "/api/v1/workers/{id}/events",
		Summary:     "Worker stream event",
		Description: "Asynchronous stream lifecycle callback from a worker",
		Tags:        []string{"Workers"},
	}, h.StreamEvent)

	huma.Register(api, huma.Operation{
		OperationID: "listWorkers",
		Method:      http.MethodGet,
		Path:        "/api/v1/workers",
		Summary:     "List workers",
		Description: "Returns all known workers with load information",
		Tags:        []string{"Workers"},
	}, h.List)

	huma.Register(api, huma.Operation{
		OperationID: "setWorkerEnabled",
		Method:      http.MethodPatch,
		Path:        "/api/v1/workers/{id}",
		Summary:     "Enable or disable worker",
		Description: "A disabled worker receives no new assignments but keeps its running streams",
		Tags:        []string{"Workers"},
	}, h.SetEnabled)

	huma.Register(api, huma.Operation{
		OperationID: "removeWorker",
		Method:      http.MethodDelete,
		Path:        "/api/v1/workers/{id}",
		Summary:     "Remove worker",
		Description: "Removes a worker from the fleet; its streams fail over",
		Tags:        []string{"Workers"},
	}, h.Remove)
}

// RegisterWorkerInput is the worker registration request.
type RegisterWorkerInput struct {
	Body types.RegisterRequest
}

// RegisterWorkerOutput returns the assigned worker identity.
type RegisterWorkerOutput struct {
	Body struct {
		WorkerID          string `json:"worker_id"`
		HeartbeatInterval string `json:"heartbeat_interval"`
		ProtocolVersion   string `json:"protocol_version"`
	}
}

// RegisterWorker registers or re-registers a relayd instance.
func (h *WorkerHandler) RegisterWorker(ctx context.Context, input *RegisterWorkerInput) (*RegisterWorkerOutput, error) {
	worker, err := h.fleet.Register(ctx, &input.Body)
	if err != nil {
		var validationErr *models.ValidationError
		if errors.As(err, &validationErr) {
			return nil, huma.Error422UnprocessableEntity(validationErr.Error())
		}
		return nil, huma.Error500InternalServerError("failed to register worker", err)
	}

	resp := &RegisterWorkerOutput{}
	resp.Body.WorkerID = worker.ID.String()
	resp.Body.HeartbeatInterval = "10s"
	resp.Body.ProtocolVersion = types.ProtocolVersion
	return resp, nil
}

// HeartbeatInput is the worker heartbeat request.
type HeartbeatInput struct {
	ID   string `path:"id" doc:"Worker ULID"`
	Body types.Heartbeat
}

// HeartbeatOutput acknowledges a heartbeat.
type HeartbeatOutput struct {
	Body struct {
		OK bool `json:"ok"`
	}
}

// HeartbeatWorker records a worker liveness report. An unknown worker gets a
// 404 so relayd knows to register again.
func (h *WorkerHandler) HeartbeatWorker(ctx context.Context, input *HeartbeatInput) (*HeartbeatOutput, error) {
	hb := input.Body
	hb.WorkerID = input.ID
	if err := h.fleet.Heartbeat(ctx, &hb); err != nil {
		if errors.Is(err, models.ErrWorkerNotFound) {
			return nil, huma.Error404NotFound("worker not registered")
		}
		return nil, huma.Error500InternalServerError("failed to record heartbeat", err)
	}
	resp := &HeartbeatOutput{}
	resp.Body.OK = true
	return resp, nil
}

// StreamEventInput is a worker stream callback.
type StreamEventInput struct {
	ID   string `path:"id" doc:"Worker ULID"`
	Body types.StreamEvent
}

// StreamEventOutput acknowledges a stream event.
type StreamEventOutput struct {
	Body struct {
		OK bool `json:"ok"`
	}
}

// StreamEvent applies an asynchronous lifecycle callback.
func (h *WorkerHandler) StreamEvent(ctx context.Context, input *StreamEventInput) (*StreamEventOutput, error) {
	ev := input.Body
	ev.WorkerID = input.ID
	if err := h.events.HandleWorkerEvent(ctx, &ev); err != nil {
		if errors.Is(err, models.ErrStreamNotFound) {
			return nil, huma.Error404NotFound("stream not found")
		}
		return nil, huma.Error500InternalServerError("failed to apply stream event", err)
	}
	resp := &StreamEventOutput{}
	resp.Body.OK = true
	return resp, nil
}

// ListWorkersInput is the input for listing workers.
type ListWorkersInput struct{}

// ListWorkersOutput is the output for listing workers.
type ListWorkersOutput struct {
	Body struct {
		Workers []WorkerResponse `json:"workers"`
	}
}

// List returns all known workers.
func (h *WorkerHandler) List(ctx context.Context, input *ListWorkersInput) (*ListWorkersOutput, error) {
	workers := h.fleet.GetAll()
	resp := &ListWorkersOutput{}
	resp.Body.Workers = make([]WorkerResponse, 0, len(workers))
	for _, w := range workers {
		resp.Body.Workers = append(resp.Body.Workers, WorkerFromModel(w, h.fleet.ActiveStreams(w.ID)))
	}
	return resp, nil
}

// SetEnabledInput toggles worker assignability.
type SetEnabledInput struct {
	ID   string `path:"id" doc:"Worker ULID"`
	Body struct {
		Enabled bool `json:"enabled"`
	}
}

// SetEnabledOutput acknowledges the change.
type SetEnabledOutput struct {
	Body struct {
		OK bool `json:"ok"`
	}
}

// SetEnabled enables or disables a worker for new assignments.
func (h *WorkerHandler) SetEnabled(ctx context.Context, input *SetEnabledInput) (*SetEnabledOutput, error) {
	id, err := models.ParseULID(input.ID)
	if err != nil {
		return nil, huma.Error404NotFound("worker not found")
	}
	if err := h.fleet.SetEnabled(ctx, id, input.Body.Enabled); err != nil {
		if errors.Is(err, models.ErrWorkerNotFound) {
			return nil, huma.Error404NotFound("worker not found")
		}
		return nil, huma.Error500InternalServerError("failed to update worker", err)
	}
	resp := &SetEnabledOutput{}
	resp.Body.OK = true
	return resp, nil
}

// RemoveWorkerInput identifies the worker to remove.
type RemoveWorkerInput struct {
	ID string `path:"id" doc:"Worker ULID"`
}

// RemoveWorkerOutput is an empty response.
type RemoveWorkerOutput struct{}

// Remove removes a worker from the fleet.
func (h *WorkerHandler) Remove(ctx context.Context, input *RemoveWorkerInput) (*RemoveWorkerOutput, error) {
	id, err := models.ParseULID(input.ID)
	if err != nil {
		return nil, huma.Error404NotFound("worker not found")
	}
	if err := h.fleet.Remove(ctx, id); err != nil {
		if errors.Is(err, models.ErrWorkerNotFound) {
			return nil, huma.Error404NotFound("worker not found")
		}
		return nil, huma.Error500InternalServerError("failed to remove worker", err)
	}
	return &RemoveWorkerOutput{}, nil
}
