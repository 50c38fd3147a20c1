package models

import (
	"strings"
	"time"
)

// StreamStatus represents the lifecycle state of a stream.
type StreamStatus string

const (
	StreamStatusInactive  StreamStatus = "inactive"
	StreamStatusStarting  StreamStatus = "starting"
	StreamStatusStreaming StreamStatus = "streaming"
	StreamStatusStopping  StreamStatus = "stopping"
	StreamStatusError     StreamStatus = "error"
	StreamStatusCompleted StreamStatus = "completed"
)

// streamTransitions is the allowed edge set of the stream state machine.
// Anything not listed here is rejected.
var streamTransitions = map[StreamStatus][]StreamStatus{
	StreamStatusInactive:  {StreamStatusStarting},
	StreamStatusStarting:  {StreamStatusStreaming, StreamStatusError},
	StreamStatusStreaming: {StreamStatusStopping, StreamStatusError},
	StreamStatusStopping:  {StreamStatusInactive, StreamStatusCompleted},
	StreamStatusError:     {StreamStatusStarting},
	StreamStatusCompleted: {},
}

// CanTransition reports whether moving from one status to another is allowed.
func (s StreamStatus) CanTransition(to StreamStatus) bool {
	for _, next := range streamTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// IsActive reports whether the status counts against the owner's quota and
// holds a worker slot.
func (s StreamStatus) IsActive() bool {
	switch s {
	case StreamStatusStarting, StreamStatusStreaming, StreamStatusStopping:
		return true
	}
	return false
}

// IsValid reports whether the status is a known value.
func (s StreamStatus) IsValid() bool {
	switch s {
	case StreamStatusInactive, StreamStatusStarting, StreamStatusStreaming,
		StreamStatusStopping, StreamStatusError, StreamStatusCompleted:
		return true
	}
	return false
}

// QuotaStreamStatuses lists the statuses that hold a quota slot. A stopping
// stream is draining and no longer counts against the owner's limit.
func QuotaStreamStatuses() []StreamStatus {
	return []StreamStatus{StreamStatusStarting, StreamStatusStreaming}
}

// Platform identifies the ingest destination of a stream.
type Platform string

const (
	PlatformYouTube  Platform = "youtube"
	PlatformFacebook Platform = "facebook"
	PlatformTwitch   Platform = "twitch"
	PlatformCustom   Platform = "custom"
)

// IsValid reports whether the platform is a known value.
func (p Platform) IsValid() bool {
	switch p {
	case PlatformYouTube, PlatformFacebook, PlatformTwitch, PlatformCustom:
		return true
	}
	return false
}

// OrderMode controls how playlist items are ordered when a stream starts.
type OrderMode string

const (
	OrderModeSequential OrderMode = "sequential"
	OrderModeRandom     OrderMode = "random"
)

// IsValid reports whether the order mode is a known value.
func (m OrderMode) IsValid() bool {
	return m == OrderModeSequential || m == OrderModeRandom
}

// Stream is the central entity: an owner's configured broadcast and its
// lifecycle state.
type Stream struct {
	BaseModel

	OwnerID ULID   `gorm:"type:varchar(26);index;not null" json:"owner_id"`
	Name    string `gorm:"not null" json:"name"`
	Note    string `json:"note,omitempty"`

	Platform  Platform `gorm:"default:custom" json:"platform"`
	RTMPURL   string   `gorm:"column:rtmp_url" json:"rtmp_url"`
	StreamKey string   `gorm:"column:stream_key" masq:"secret" json:"-"`

	Status       StreamStatus `gorm:"default:inactive;index" json:"status"`
	LastStatusAt *time.Time   `json:"last_status_at,omitempty"`
	ErrorMessage string       `json:"error_message,omitempty"`

	OrderMode OrderMode `gorm:"default:sequential" json:"order_mode"`
	Loop      bool      `gorm:"default:false" json:"loop"`
	Reshuffle bool      `gorm:"default:false" json:"reshuffle"`

	ScheduledAt    *time.Time `gorm:"index" json:"scheduled_at,omitempty"`
	ScheduledEndAt *time.Time `gorm:"index" json:"scheduled_end_at,omitempty"`
	RecurrenceCron string     `json:"recurrence_cron,omitempty"`

	AssignedWorkerID *ULID `gorm:"type:varchar(26);index" json:"assigned_worker_id,omitempty"`

	// Ephemeral streams own their source assets; their files are removed
	// once the stream reaches a resting state, unless RetainAssets is set.
	Ephemeral       bool       `gorm:"default:false" json:"ephemeral"`
	RetainAssets    bool       `gorm:"default:false" json:"retain_assets"`
	AssetsDeletedAt *time.Time `json:"assets_deleted_at,omitempty"`

	PlaylistItems []PlaylistItem `gorm:"foreignKey:StreamID;constraint:OnDelete:CASCADE" json:"playlist_items,omitempty"`
}

// TableName returns the database table name.
func (Stream) TableName() string {
	return "streams"
}

// Validate checks required fields and enum values.
func (s *Stream) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return ErrStreamNameRequired
	}
	if strings.TrimSpace(s.RTMPURL) == "" {
		return ErrRTMPURLRequired
	}
	if !strings.HasPrefix(s.RTMPURL, "rtmp://") && !strings.HasPrefix(s.RTMPURL, "rtmps://") {
		return NewValidationError("rtmp_url", "must start with rtmp:// or rtmps://")
	}
	if strings.TrimSpace(s.StreamKey) == "" {
		return ErrStreamKeyRequired
	}
	if s.Platform != "" && !s.Platform.IsValid() {
		return ErrInvalidPlatform
	}
	if s.OrderMode != "" && !s.OrderMode.IsValid() {
		return ErrInvalidOrderMode
	}
	if s.ScheduledAt != nil && s.ScheduledEndAt != nil && !s.ScheduledEndAt.After(*s.ScheduledAt) {
		return NewValidationError("scheduled_end_at", "must be after scheduled_at")
	}
	return nil
}

// Transition moves the stream to a new status, recording the time. Returns a
// TransitionError if the edge is not allowed.
func (s *Stream) Transition(to StreamStatus) error {
	if !s.Status.CanTransition(to) {
		return &TransitionError{StreamID: s.ID, From: s.Status, To: to}
	}
	now := time.Now()
	s.Status = to
	s.LastStatusAt = &now
	return nil
}

// MarkStarting moves the stream into the starting state and clears any stale
// error from a previous cycle.
func (s *Stream) MarkStarting() error {
	if err := s.Transition(StreamStatusStarting); err != nil {
		return err
	}
	s.ErrorMessage = ""
	return nil
}

// MarkStreaming records a successful start acknowledged by the given worker.
func (s *Stream) MarkStreaming(workerID ULID) error {
	if err := s.Transition(StreamStatusStreaming); err != nil {
		return err
	}
	s.AssignedWorkerID = &workerID
	return nil
}

// MarkStopping moves the stream into the stopping state.
func (s *Stream) MarkStopping() error {
	return s.Transition(StreamStatusStopping)
}

// MarkInactive finishes a stop cycle and releases the worker assignment.
func (s *Stream) MarkInactive() error {
	if err := s.Transition(StreamStatusInactive); err != nil {
		return err
	}
	s.AssignedWorkerID = nil
	return nil
}

// MarkCompleted finishes a playlist run to the terminal completed state.
func (s *Stream) MarkCompleted() error {
	if err := s.Transition(StreamStatusCompleted); err != nil {
		return err
	}
	s.AssignedWorkerID = nil
	return nil
}

// MarkError records a failure message and releases the worker assignment.
func (s *Stream) MarkError(message string) error {
	if err := s.Transition(StreamStatusError); err != nil {
		return err
	}
	s.ErrorMessage = message
	s.AssignedWorkerID = nil
	return nil
}

// IsScheduledToStart reports whether the scheduler should start this stream
// at the given instant.
func (s *Stream) IsScheduledToStart(now time.Time) bool {
	return s.ScheduledAt != nil && !s.ScheduledAt.After(now) &&
		(s.Status == StreamStatusInactive || s.Status == StreamStatusError)
}

// IsScheduledToStop reports whether the scheduler should stop this stream
// at the given instant.
func (s *Stream) IsScheduledToStop(now time.Time) bool {
	return s.ScheduledEndAt != nil && !s.ScheduledEndAt.After(now) &&
		s.Status == StreamStatusStreaming
}

// AssetsEligibleForCleanup reports whether the cleanup agent should remove
// this stream's source files. Only completed streams qualify: a stream that
// never started keeps its assets, and an errored stream must stay retryable.
func (s *Stream) AssetsEligibleForCleanup() bool {
	return s.Ephemeral && !s.RetainAssets && s.AssetsDeletedAt == nil &&
		s.Status == StreamStatusCompleted
}
