package types

import "time"

// RegisterRequest is sent by a relayd instance to announce itself.
type RegisterRequest struct {
	Name string `json:"name"`
	// Addr is the base URL where the control plane can reach this worker.
	Addr string `json:"addr"`
	// Token is the bearer token the worker expects on command requests.
	Token      string `json:"token,omitempty"`
	Version    string `json:"version,omitempty"`
	MaxStreams int    `json:"max_streams,omitempty"`
}

// Heartbeat is the periodic liveness and telemetry report from a worker.
type Heartbeat struct {
	WorkerID      string    `json:"worker_id"`
	At            time.Time `json:"at"`
	ActiveStreams int       `json:"active_streams"`
	CPUPercent    float64   `json:"cpu_percent,omitempty"`
	MemoryPercent float64   `json:"memory_percent,omitempty"`
	Version       string    `json:"version,omitempty"`
}
