package types

import "time"

// PlaylistEntry is one media file in the resolved play order sent to a worker.
type PlaylistEntry struct {
	Path            string  `json:"path"`
	Title           string  `json:"title,omitempty"`
	DurationSeconds float64 `json:"duration_seconds,omitempty"`
}

// StartCommand instructs a worker to begin pushing a stream to its ingest
// endpoint. The playlist is already resolved into final play order; the
// worker plays it verbatim, looping from the top when Loop is set.
type StartCommand struct {
	StreamID  string          `json:"stream_id"`
	RTMPURL   string          `json:"rtmp_url"`
	StreamKey string          `json:"stream_key"`
	Playlist  []PlaylistEntry `json:"playlist"`
	Loop      bool            `json:"loop"`

	// MaxResolution caps the worker's encoding profile per the owner's plan.
	MaxResolution string `json:"max_resolution,omitempty"`
}

// StopCommand instructs a worker to halt a stream and release its slot.
type StopCommand struct {
	StreamID string `json:"stream_id"`
}

// CommandAck is the worker's synchronous response to a command. Accepted
// means the worker has taken ownership of the requested transition; the
// outcome arrives later as a StreamEvent.
type CommandAck struct {
	StreamID string `json:"stream_id"`
	Accepted bool   `json:"accepted"`
	Reason   string `json:"reason,omitempty"`
}

// StreamEventType identifies an asynchronous worker callback.
type StreamEventType string

const (
	// EventStarted reports the RTMP connection is established and media is
	// flowing.
	EventStarted StreamEventType = "started"
	// EventStopped reports a requested stop has finished.
	EventStopped StreamEventType = "stopped"
	// EventCompleted reports a non-looping playlist played to its end.
	EventCompleted StreamEventType = "completed"
	// EventFailed reports a fatal error; the worker has released the slot.
	EventFailed StreamEventType = "failed"
	// EventProgress reports playback position while streaming.
	EventProgress StreamEventType = "progress"
)

// IsValid reports whether the event type is a known value.
func (t StreamEventType) IsValid() bool {
	switch t {
	case EventStarted, EventStopped, EventCompleted, EventFailed, EventProgress:
		return true
	}
	return false
}

// IsTerminal reports whether the event ends the stream's current cycle on
// the worker.
func (t StreamEventType) IsTerminal() bool {
	switch t {
	case EventStopped, EventCompleted, EventFailed:
		return true
	}
	return false
}

// StreamEvent is an asynchronous lifecycle callback from a worker.
type StreamEvent struct {
	StreamID string          `json:"stream_id"`
	WorkerID string          `json:"worker_id"`
	Type     StreamEventType `json:"type"`
	At       time.Time       `json:"at"`

	// Reason carries the failure description for EventFailed.
	Reason string `json:"reason,omitempty"`

	// Progress fields, set for EventProgress.
	ItemIndex       int     `json:"item_index,omitempty"`
	ItemPath        string  `json:"item_path,omitempty"`
	PositionSeconds float64 `json:"position_seconds,omitempty"`
	BitrateKbps     int     `json:"bitrate_kbps,omitempty"`
}
