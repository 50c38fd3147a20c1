// Package repository defines data access interfaces for ezstream entities.
// All database access goes through these interfaces, enabling easy testing
// and database backend switching.
package repository

import (
	"context"
	"time"

	"github.com/truongvando/ezstream-sub000/internal/models"
)

// StreamRepository defines operations for stream persistence.
type StreamRepository interface {
	// Create creates a new stream with its playlist items.
	Create(ctx context.Context, stream *models.Stream) error
	// GetByID retrieves a stream by ID, without playlist items.
	GetByID(ctx context.Context, id models.ULID) (*models.Stream, error)
	// GetByIDWithPlaylist retrieves a stream with its playlist items ordered
	// by position.
	GetByIDWithPlaylist(ctx context.Context, id models.ULID) (*models.Stream, error)
	// GetAll retrieves all streams.
	GetAll(ctx context.Context) ([]*models.Stream, error)
	// GetByOwner retrieves all streams for an owner.
	GetByOwner(ctx context.Context, ownerID models.ULID) ([]*models.Stream, error)
	// GetByStatus retrieves streams in the given statuses.
	GetByStatus(ctx context.Context, statuses ...models.StreamStatus) ([]*models.Stream, error)
	// GetByWorker retrieves streams currently assigned to a worker.
	GetByWorker(ctx context.Context, workerID models.ULID) ([]*models.Stream, error)
	// CountActiveByOwner counts the owner's streams in an active status.
	CountActiveByOwner(ctx context.Context, ownerID models.ULID) (int64, error)
	// GetDueForStart retrieves streams whose scheduled start time has passed
	// and are in a startable status.
	GetDueForStart(ctx context.Context, now time.Time) ([]*models.Stream, error)
	// GetDueForStop retrieves streaming streams whose scheduled end time has
	// passed.
	GetDueForStop(ctx context.Context, now time.Time) ([]*models.Stream, error)
	// GetRecurring retrieves streams with a recurrence expression set.
	GetRecurring(ctx context.Context) ([]*models.Stream, error)
	// GetCleanupCandidates retrieves ephemeral resting streams whose assets
	// have not been deleted yet.
	GetCleanupCandidates(ctx context.Context) ([]*models.Stream, error)
	// Update saves all fields of an existing stream.
	Update(ctx context.Context, stream *models.Stream) error
	// ClearScheduledAt consumes a one-shot start trigger without touching
	// any other column, so it cannot race a concurrent status transition.
	ClearScheduledAt(ctx context.Context, id models.ULID) error
	// ClearScheduledEndAt consumes a one-shot stop trigger.
	ClearScheduledEndAt(ctx context.Context, id models.ULID) error
	// RecordScheduleRejection consumes the start trigger and records why
	// the scheduled start was refused.
	RecordScheduleRejection(ctx context.Context, id models.ULID, message string) error
	// SetNote replaces the stream's operational note.
	SetNote(ctx context.Context, id models.ULID, note string) error
	// ReplacePlaylist replaces a stream's playlist items.
	ReplacePlaylist(ctx context.Context, streamID models.ULID, items []models.PlaylistItem) error
	// ClaimAssetsDeleted marks assets deleted if and only if no other caller
	// has done so. Returns true when this caller won the claim.
	ClaimAssetsDeleted(ctx context.Context, id models.ULID, at time.Time) (bool, error)
	// Delete deletes a stream and its playlist items.
	Delete(ctx context.Context, id models.ULID) error
}

// WorkerRepository defines operations for worker node persistence.
type WorkerRepository interface {
	// Create registers a new worker node.
	Create(ctx context.Context, worker *models.WorkerNode) error
	// GetByID retrieves a worker by ID.
	GetByID(ctx context.Context, id models.ULID) (*models.WorkerNode, error)
	// GetByAddr retrieves a worker by its command endpoint address.
	GetByAddr(ctx context.Context, addr string) (*models.WorkerNode, error)
	// GetAll retrieves all workers.
	GetAll(ctx context.Context) ([]*models.WorkerNode, error)
	// GetEnabled retrieves all enabled workers.
	GetEnabled(ctx context.Context) ([]*models.WorkerNode, error)
	// Update saves all fields of an existing worker.
	Update(ctx context.Context, worker *models.WorkerNode) error
	// RecordHeartbeat updates the worker's heartbeat time, status, and
	// telemetry.
	RecordHeartbeat(ctx context.Context, id models.ULID, at time.Time, cpu, memory float64, version string) error
	// MarkOffline marks the given workers offline.
	MarkOffline(ctx context.Context, ids []models.ULID) error
	// Delete removes a worker node.
	Delete(ctx context.Context, id models.ULID) error
}

// SubscriptionRepository defines operations for subscription limits.
type SubscriptionRepository interface {
	// GetByOwner retrieves the owner's subscription limit, nil when none
	// exists.
	GetByOwner(ctx context.Context, ownerID models.ULID) (*models.SubscriptionLimit, error)
	// Upsert creates or replaces the owner's subscription limit.
	Upsert(ctx context.Context, limit *models.SubscriptionLimit) error
	// Delete removes the owner's subscription limit.
	Delete(ctx context.Context, ownerID models.ULID) error
}
