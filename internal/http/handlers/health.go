package handlers

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"

	"github.com/truongvando/ezstream-sub000/internal/database"
)

// FleetStats reports worker counts for the health summary.
type FleetStats interface {
	CountOnline() int
}

// HealthHandler handles the health check endpoint.
type HealthHandler struct {
	version   string
	startTime time.Time
	db        *database.DB
	fleet     FleetStats
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(version string) *HealthHandler {
	return &HealthHandler{
		version:   version,
		startTime: time.Now(),
	}
}

// WithDB sets the database for connectivity checks.
func (h *HealthHandler) WithDB(db *database.DB) *HealthHandler {
	h.db = db
	return h
}

// WithFleet sets the fleet registry for worker counts.
func (h *HealthHandler) WithFleet(fleet FleetStats) *HealthHandler {
	h.fleet = fleet
	return h
}

// Register registers the health route with the API.
func (h *HealthHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "getHealth",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
		Description: "Returns service health including system metrics and database connectivity",
		Tags:        []string{"System"},
	}, h.GetHealth)
}

// MemoryInfo reports process and system memory usage.
type MemoryInfo struct {
	AllocBytes    uint64  `json:"alloc_bytes"`
	SysBytes      uint64  `json:"sys_bytes"`
	NumGC         uint32  `json:"num_gc"`
	SystemPercent float64 `json:"system_percent,omitempty"`
}

// HealthResponse is the health check payload.
type HealthResponse struct {
	Status        string     `json:"status" enum:"ok,degraded"`
	Version       string     `json:"version"`
	UptimeSeconds float64    `json:"uptime_seconds"`
	Goroutines    int        `json:"goroutines"`
	Load1         float64    `json:"load1,omitempty"`
	Memory        MemoryInfo `json:"memory"`
	Database      string     `json:"database" enum:"ok,error,disabled"`
	OnlineWorkers int        `json:"online_workers"`
}

// HealthInput is the input for the health check endpoint.
type HealthInput struct{}

// HealthOutput is the output for the health check endpoint.
type HealthOutput struct {
	Body HealthResponse
}

// GetHealth returns the health status of the service.
func (h *HealthHandler) GetHealth(ctx context.Context, input *HealthInput) (*HealthOutput, error) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	resp := HealthResponse{
		Status:        "ok",
		Version:       h.version,
		UptimeSeconds: time.Since(h.startTime).Seconds(),
		Goroutines:    runtime.NumGoroutine(),
		Memory: MemoryInfo{
			AllocBytes: memStats.Alloc,
			SysBytes:   memStats.Sys,
			NumGC:      memStats.NumGC,
		},
		Database: "disabled",
	}

	if avg, err := load.AvgWithContext(ctx); err == nil {
		resp.Load1 = avg.Load1
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		resp.Memory.SystemPercent = vm.UsedPercent
	}

	if h.db != nil {
		if err := h.db.Ping(ctx); err != nil {
			resp.Database = "error"
			resp.Status = "degraded"
		} else {
			resp.Database = "ok"
		}
	}

	if h.fleet != nil {
		resp.OnlineWorkers = h.fleet.CountOnline()
	}

	return &HealthOutput{Body: resp}, nil
}
