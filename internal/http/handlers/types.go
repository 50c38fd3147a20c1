// Package handlers provides the HTTP API handlers for ezstream.
package handlers

import (
	"time"

	"github.com/truongvando/ezstream-sub000/internal/models"
)

// StreamResponse represents a stream in API responses. The stream key never
// leaves the service.
type StreamResponse struct {
	ID               models.ULID            `json:"id"`
	CreatedAt        time.Time              `json:"created_at"`
	UpdatedAt        time.Time              `json:"updated_at"`
	OwnerID          models.ULID            `json:"owner_id"`
	Name             string                 `json:"name"`
	Note             string                 `json:"note,omitempty"`
	Platform         models.Platform        `json:"platform"`
	RTMPURL          string                 `json:"rtmp_url"`
	Status           models.StreamStatus    `json:"status"`
	LastStatusAt     *time.Time             `json:"last_status_at,omitempty"`
	ErrorMessage     string                 `json:"error_message,omitempty"`
	OrderMode        models.OrderMode       `json:"order_mode"`
	Loop             bool                   `json:"loop"`
	ScheduledAt      *time.Time             `json:"scheduled_at,omitempty"`
	ScheduledEndAt   *time.Time             `json:"scheduled_end_at,omitempty"`
	RecurrenceCron   string                 `json:"recurrence_cron,omitempty"`
	AssignedWorkerID *models.ULID           `json:"assigned_worker_id,omitempty"`
	Ephemeral        bool                   `json:"ephemeral"`
	RetainAssets     bool                   `json:"retain_assets"`
	Playlist         []PlaylistItemResponse `json:"playlist,omitempty"`
}

// PlaylistItemResponse represents a playlist item in API responses.
type PlaylistItemResponse struct {
	ID              models.ULID `json:"id"`
	Title           string      `json:"title,omitempty"`
	Path            string      `json:"path"`
	Position        int         `json:"position"`
	DurationSeconds float64     `json:"duration_seconds,omitempty"`
	SizeBytes       int64       `json:"size_bytes,omitempty"`
	Disabled        bool        `json:"disabled,omitempty"`
}

// PlaylistItemInput is a playlist item in create/update requests.
type PlaylistItemInput struct {
	Title           string  `json:"title,omitempty" maxLength:"255"`
	Path            string  `json:"path" minLength:"1" doc:"Path relative to the asset store"`
	DurationSeconds float64 `json:"duration_seconds,omitempty" minimum:"0"`
	SizeBytes       int64   `json:"size_bytes,omitempty" minimum:"0"`
	Disabled        bool    `json:"disabled,omitempty"`
}

// StreamFromModel converts a stream model to a response.
func StreamFromModel(s *models.Stream) StreamResponse {
	resp := StreamResponse{
		ID:               s.ID,
		CreatedAt:        s.CreatedAt,
		UpdatedAt:        s.UpdatedAt,
		OwnerID:          s.OwnerID,
		Name:             s.Name,
		Note:             s.Note,
		Platform:         s.Platform,
		RTMPURL:          s.RTMPURL,
		Status:           s.Status,
		LastStatusAt:     s.LastStatusAt,
		ErrorMessage:     s.ErrorMessage,
		OrderMode:        s.OrderMode,
		Loop:             s.Loop,
		ScheduledAt:      s.ScheduledAt,
		ScheduledEndAt:   s.ScheduledEndAt,
		RecurrenceCron:   s.RecurrenceCron,
		AssignedWorkerID: s.AssignedWorkerID,
		Ephemeral:        s.Ephemeral,
		RetainAssets:     s.RetainAssets,
	}
	for _, item := range s.PlaylistItems {
		resp.Playlist = append(resp.Playlist, PlaylistItemResponse{
			ID:              item.ID,
			Title:           item.Title,
			Path:            item.Path,
			Position:        item.Position,
			DurationSeconds: item.DurationSeconds,
			SizeBytes:       item.SizeBytes,
			Disabled:        item.Disabled,
		})
	}
	return resp
}

// WorkerResponse represents a worker node in API responses. The token is
// write-only.
type WorkerResponse struct {
	ID              models.ULID         `json:"id"`
	Name            string              `json:"name"`
	Addr            string              `json:"addr"`
	Status          models.WorkerStatus `json:"status"`
	Enabled         bool                `json:"enabled"`
	MaxStreams      int                 `json:"max_streams"`
	ActiveStreams   int                 `json:"active_streams"`
	LastHeartbeatAt *time.Time          `json:"last_heartbeat_at,omitempty"`
	CPUPercent      float64             `json:"cpu_percent,omitempty"`
	MemoryPercent   float64             `json:"memory_percent,omitempty"`
	Version         string              `json:"version,omitempty"`
}

// WorkerFromModel converts a worker model to a response.
func WorkerFromModel(w *models.WorkerNode, activeStreams int) WorkerResponse {
	return WorkerResponse{
		ID:              w.ID,
		Name:            w.Name,
		Addr:            w.Addr,
		Status:          w.Status,
		Enabled:         w.IsEnabled(),
		MaxStreams:      w.MaxStreams,
		ActiveStreams:   activeStreams,
		LastHeartbeatAt: w.LastHeartbeatAt,
		CPUPercent:      w.CPUPercent,
		MemoryPercent:   w.MemoryPercent,
		Version:         w.Version,
	}
}

// SubscriptionResponse represents an owner's subscription limits.
type SubscriptionResponse struct {
	OwnerID              models.ULID `json:"owner_id"`
	Plan                 string      `json:"plan"`
	Unlimited            bool        `json:"unlimited,omitempty"`
	MaxConcurrentStreams int         `json:"max_concurrent_streams"`
	MaxResolution        string      `json:"max_resolution,omitempty"`
	MaxStorageBytes      int64       `json:"max_storage_bytes,omitempty"`
}

// SubscriptionFromModel converts a subscription limit to a response.
func SubscriptionFromModel(l *models.SubscriptionLimit) SubscriptionResponse {
	return SubscriptionResponse{
		OwnerID:              l.OwnerID,
		Plan:                 l.Plan,
		Unlimited:            l.Unlimited,
		MaxConcurrentStreams: l.MaxConcurrentStreams,
		MaxResolution:        l.MaxResolution,
		MaxStorageBytes:      l.MaxStorageBytes,
	}
}
