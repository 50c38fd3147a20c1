package models

import (
	"strings"
	"time"
)

// WorkerStatus represents the health of a relay worker node.
type WorkerStatus string

const (
	WorkerStatusOnline   WorkerStatus = "online"
	WorkerStatusOffline  WorkerStatus = "offline"
	WorkerStatusDraining WorkerStatus = "draining"
)

// IsValid reports whether the worker status is a known value.
func (s WorkerStatus) IsValid() bool {
	switch s {
	case WorkerStatusOnline, WorkerStatusOffline, WorkerStatusDraining:
		return true
	}
	return false
}

// WorkerNode is a registered relayd instance that executes stream commands.
type WorkerNode struct {
	BaseModel

	Name string `gorm:"not null" json:"name"`

	// Addr is the base URL of the worker's command endpoint.
	Addr string `gorm:"uniqueIndex;not null" json:"addr"`

	// Token authenticates control-plane requests to this worker.
	Token string `masq:"secret" json:"-"`

	Status          WorkerStatus `gorm:"default:offline;index" json:"status"`
	Enabled         *bool        `gorm:"default:true" json:"enabled"`
	MaxStreams      int          `gorm:"default:4" json:"max_streams"`
	LastHeartbeatAt *time.Time   `json:"last_heartbeat_at,omitempty"`

	// Telemetry from the most recent heartbeat.
	CPUPercent    float64 `json:"cpu_percent,omitempty"`
	MemoryPercent float64 `json:"memory_percent,omitempty"`
	Version       string  `json:"version,omitempty"`
}

// TableName returns the database table name.
func (WorkerNode) TableName() string {
	return "worker_nodes"
}

// Validate checks required fields.
func (w *WorkerNode) Validate() error {
	if strings.TrimSpace(w.Name) == "" {
		return NewValidationError("name", "is required")
	}
	if strings.TrimSpace(w.Addr) == "" {
		return NewValidationError("addr", "is required")
	}
	if !strings.HasPrefix(w.Addr, "http://") && !strings.HasPrefix(w.Addr, "https://") {
		return NewValidationError("addr", "must start with http:// or https://")
	}
	if w.MaxStreams < 1 {
		return NewValidationError("max_streams", "must be at least 1")
	}
	return nil
}

// IsEnabled reports whether the worker accepts new assignments.
func (w *WorkerNode) IsEnabled() bool {
	return BoolVal(w.Enabled)
}

// Assignable reports whether the worker may receive new streams: enabled,
// online, and not draining.
func (w *WorkerNode) Assignable() bool {
	return w.IsEnabled() && w.Status == WorkerStatusOnline
}

// HeartbeatExpired reports whether the worker's last heartbeat is older than
// the given timeout at the given instant.
func (w *WorkerNode) HeartbeatExpired(now time.Time, timeout time.Duration) bool {
	if w.LastHeartbeatAt == nil {
		return true
	}
	return now.Sub(*w.LastHeartbeatAt) > timeout
}
