// Package progress provides real-time stream progress tracking and SSE
// broadcasting.
package progress

import (
	"time"

	"github.com/truongvando/ezstream-sub000/internal/models"
)

// Stage represents where a stream is in its current cycle.
type Stage string

const (
	// StageIdle indicates no cycle is running.
	StageIdle Stage = "idle"
	// StagePreparing indicates the playlist is being resolved and a worker
	// selected.
	StagePreparing Stage = "preparing"
	// StageConnecting indicates the worker is establishing the RTMP session.
	StageConnecting Stage = "connecting"
	// StageStreaming indicates media is flowing to the ingest endpoint.
	StageStreaming Stage = "streaming"
	// StageStopping indicates a stop has been requested and is draining.
	StageStopping Stage = "stopping"
	// StageStopped indicates the cycle ended by request.
	StageStopped Stage = "stopped"
	// StageCompleted indicates the playlist played to its end.
	StageCompleted Stage = "completed"
	// StageError indicates the cycle ended in failure.
	StageError Stage = "error"
)

// IsTerminal reports whether the stage ends a cycle.
func (s Stage) IsTerminal() bool {
	return s == StageStopped || s == StageCompleted || s == StageError
}

// IsActive reports whether a cycle is currently running.
func (s Stage) IsActive() bool {
	return s != StageIdle && !s.IsTerminal()
}

// stageFloor is the minimum percent for each stage, keeping the percent
// monotonic as the cycle advances through stages.
var stageFloor = map[Stage]float64{
	StageIdle:       0,
	StagePreparing:  0,
	StageConnecting: 10,
	StageStreaming:  20,
	StageStopping:   95,
	StageStopped:    100,
	StageCompleted:  100,
	StageError:      0,
}

// Snapshot is a point-in-time view of a stream's cycle progress.
type Snapshot struct {
	StreamID models.ULID `json:"stream_id"`
	// Cycle counts start cycles for this stream since the tracker started.
	Cycle   int     `json:"cycle"`
	Stage   Stage   `json:"stage"`
	Percent float64 `json:"percent"`
	Message string  `json:"message,omitempty"`

	// Playback position, populated while streaming.
	ItemIndex       int     `json:"item_index"`
	ItemCount       int     `json:"item_count"`
	ItemPath        string  `json:"item_path,omitempty"`
	PositionSeconds float64 `json:"position_seconds,omitempty"`
	BitrateKbps     int     `json:"bitrate_kbps,omitempty"`

	StartedAt   time.Time  `json:"started_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Clone returns a copy safe to hand to callers.
func (s *Snapshot) Clone() *Snapshot {
	clone := *s
	if s.CompletedAt != nil {
		at := *s.CompletedAt
		clone.CompletedAt = &at
	}
	return &clone
}

// Event is a progress change delivered to subscribers.
type Event struct {
	StreamID models.ULID `json:"stream_id"`
	Snapshot *Snapshot   `json:"snapshot"`
}
