// Package service provides the business logic layer between the HTTP
// handlers and the lifecycle orchestrator.
package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/truongvando/ezstream-sub000/internal/cleanup"
	"github.com/truongvando/ezstream-sub000/internal/models"
	"github.com/truongvando/ezstream-sub000/internal/repository"
	"github.com/truongvando/ezstream-sub000/internal/storage"
)

// LifecycleController is the subset of the orchestrator the service drives
// for reconfiguration and deletion.
type LifecycleController interface {
	RequestStart(ctx context.Context, streamID models.ULID) error
	ForceStop(ctx context.Context, streamID models.ULID) error
}

// StreamService provides stream CRUD on top of the repository, routing
// lifecycle side effects through the orchestrator.
type StreamService struct {
	streams repository.StreamRepository
	control LifecycleController
	store   *storage.AssetStore
	logger  *slog.Logger
}

// NewStreamService creates a new stream service.
func NewStreamService(streams repository.StreamRepository, control LifecycleController, store *storage.AssetStore) *StreamService {
	return &StreamService{
		streams: streams,
		control: control,
		store:   store,
		logger:  slog.Default(),
	}
}

// WithLogger sets the logger for the service.
func (s *StreamService) WithLogger(logger *slog.Logger) *StreamService {
	s.logger = logger
	return s
}

// Create validates and persists a new stream. New streams always begin
// inactive regardless of what the caller supplied.
func (s *StreamService) Create(ctx context.Context, stream *models.Stream) error {
	stream.Status = models.StreamStatusInactive
	stream.AssignedWorkerID = nil
	stream.ErrorMessage = ""
	if stream.OrderMode == "" {
		stream.OrderMode = models.OrderModeSequential
	}
	if err := stream.Validate(); err != nil {
		return err
	}
	for i := range stream.PlaylistItems {
		stream.PlaylistItems[i].Position = i
		if err := stream.PlaylistItems[i].Validate(); err != nil {
			return err
		}
	}
	if err := s.streams.Create(ctx, stream); err != nil {
		return fmt.Errorf("creating stream: %w", err)
	}
	s.logger.InfoContext(ctx, "stream created",
		slog.String("stream_id", stream.ID.String()),
		slog.String("owner_id", stream.OwnerID.String()),
	)
	return nil
}

// Update applies configuration changes to a stream. A stream that is live is
// stopped, reconfigured, and started again, since the worker holds the old
// configuration and cannot pick up changes mid-session.
func (s *StreamService) Update(ctx context.Context, stream *models.Stream) error {
	existing, err := s.streams.GetByID(ctx, stream.ID)
	if err != nil {
		return fmt.Errorf("loading stream: %w", err)
	}
	if existing == nil {
		return models.ErrStreamNotFound
	}

	// Status and assignment are owned by the orchestrator; carry the
	// current values over so a reconfigure cannot forge a transition.
	stream.Status = existing.Status
	stream.AssignedWorkerID = existing.AssignedWorkerID
	stream.ErrorMessage = existing.ErrorMessage
	stream.LastStatusAt = existing.LastStatusAt
	if err := stream.Validate(); err != nil {
		return err
	}

	restart := existing.Status.IsActive()
	if restart {
		if err := s.control.ForceStop(ctx, stream.ID); err != nil {
			return fmt.Errorf("stopping stream for reconfigure: %w", err)
		}
		stream.Status = models.StreamStatusInactive
		stream.AssignedWorkerID = nil
	}

	if err := s.streams.Update(ctx, stream); err != nil {
		return fmt.Errorf("updating stream: %w", err)
	}

	if restart {
		if err := s.control.RequestStart(ctx, stream.ID); err != nil {
			return fmt.Errorf("restarting stream after reconfigure: %w", err)
		}
	}
	s.logger.InfoContext(ctx, "stream updated",
		slog.String("stream_id", stream.ID.String()),
		slog.Bool("restarted", restart),
	)
	return nil
}

// ReplacePlaylist swaps the stream's playlist content. Positions are
// renumbered to the given order. A live stream keeps playing its current
// resolved order; the new playlist takes effect on the next start.
func (s *StreamService) ReplacePlaylist(ctx context.Context, streamID models.ULID, items []models.PlaylistItem) error {
	stream, err := s.streams.GetByID(ctx, streamID)
	if err != nil {
		return fmt.Errorf("loading stream: %w", err)
	}
	if stream == nil {
		return models.ErrStreamNotFound
	}
	for i := range items {
		items[i].StreamID = streamID
		items[i].Position = i
		if err := items[i].Validate(); err != nil {
			return err
		}
	}
	if err := s.streams.ReplacePlaylist(ctx, streamID, items); err != nil {
		return fmt.Errorf("replacing playlist: %w", err)
	}
	return nil
}

// Delete removes a stream, force-stopping it first when live. Source assets
// are removed unless the stream is flagged to retain them.
func (s *StreamService) Delete(ctx context.Context, streamID models.ULID) error {
	stream, err := s.streams.GetByID(ctx, streamID)
	if err != nil {
		return fmt.Errorf("loading stream: %w", err)
	}
	if stream == nil {
		return models.ErrStreamNotFound
	}

	if stream.Status.IsActive() {
		if err := s.control.ForceStop(ctx, streamID); err != nil {
			return fmt.Errorf("stopping stream for deletion: %w", err)
		}
	}

	if err := s.streams.Delete(ctx, streamID); err != nil {
		return fmt.Errorf("deleting stream: %w", err)
	}

	if !stream.RetainAssets && s.store != nil {
		if err := s.store.RemoveDir(cleanup.StreamAssetDir(streamID)); err != nil {
			// The row is gone; asset removal is best effort.
			s.logger.WarnContext(ctx, "failed to remove stream assets",
				slog.String("stream_id", streamID.String()),
				slog.Any("error", err),
			)
		}
	}
	s.logger.InfoContext(ctx, "stream deleted", slog.String("stream_id", streamID.String()))
	return nil
}

// Get retrieves a stream by ID.
func (s *StreamService) Get(ctx context.Context, streamID models.ULID) (*models.Stream, error) {
	stream, err := s.streams.GetByID(ctx, streamID)
	if err != nil {
		return nil, err
	}
	if stream == nil {
		return nil, models.ErrStreamNotFound
	}
	return stream, nil
}

// GetWithPlaylist retrieves a stream and its playlist in position order.
func (s *StreamService) GetWithPlaylist(ctx context.Context, streamID models.ULID) (*models.Stream, error) {
	stream, err := s.streams.GetByIDWithPlaylist(ctx, streamID)
	if err != nil {
		return nil, err
	}
	if stream == nil {
		return nil, models.ErrStreamNotFound
	}
	return stream, nil
}

// List retrieves streams, optionally filtered by owner and status.
func (s *StreamService) List(ctx context.Context, ownerID *models.ULID, statuses ...models.StreamStatus) ([]*models.Stream, error) {
	switch {
	case ownerID != nil:
		streams, err := s.streams.GetByOwner(ctx, *ownerID)
		if err != nil {
			return nil, err
		}
		if len(statuses) == 0 {
			return streams, nil
		}
		var out []*models.Stream
		for _, stream := range streams {
			for _, status := range statuses {
				if stream.Status == status {
					out = append(out, stream)
					break
				}
			}
		}
		return out, nil
	case len(statuses) > 0:
		return s.streams.GetByStatus(ctx, statuses...)
	default:
		return s.streams.GetAll(ctx)
	}
}
