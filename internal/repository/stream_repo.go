package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/truongvando/ezstream-sub000/internal/models"
	"gorm.io/gorm"
)

// streamRepo implements StreamRepository using GORM.
type streamRepo struct {
	db *gorm.DB
}

// NewStreamRepository creates a new StreamRepository.
func NewStreamRepository(db *gorm.DB) *streamRepo {
	return &streamRepo{db: db}
}

// Create creates a new stream with its playlist items.
func (r *streamRepo) Create(ctx context.Context, stream *models.Stream) error {
	if err := r.db.WithContext(ctx).Create(stream).Error; err != nil {
		return fmt.Errorf("creating stream: %w", err)
	}
	return nil
}

// GetByID retrieves a stream by ID.
func (r *streamRepo) GetByID(ctx context.Context, id models.ULID) (*models.Stream, error) {
	var stream models.Stream
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&stream).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("getting stream by ID: %w", err)
	}
	return &stream, nil
}

// GetByIDWithPlaylist retrieves a stream with its playlist ordered by position.
func (r *streamRepo) GetByIDWithPlaylist(ctx context.Context, id models.ULID) (*models.Stream, error) {
	var stream models.Stream
	err := r.db.WithContext(ctx).
		Preload("PlaylistItems", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Where("id = ?", id).
		First(&stream).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("getting stream with playlist: %w", err)
	}
	return &stream, nil
}

// GetAll retrieves all streams.
func (r *streamRepo) GetAll(ctx context.Context) ([]*models.Stream, error) {
	var streams []*models.Stream
	if err := r.db.WithContext(ctx).Order("created_at ASC").Find(&streams).Error; err != nil {
		return nil, fmt.Errorf("getting all streams: %w", err)
	}
	return streams, nil
}

// GetByOwner retrieves all streams for an owner.
func (r *streamRepo) GetByOwner(ctx context.Context, ownerID models.ULID) ([]*models.Stream, error) {
	var streams []*models.Stream
	if err := r.db.WithContext(ctx).Where("owner_id = ?", ownerID).Order("created_at ASC").Find(&streams).Error; err != nil {
		return nil, fmt.Errorf("getting streams by owner: %w", err)
	}
	return streams, nil
}

// GetByStatus retrieves streams in the given statuses.
func (r *streamRepo) GetByStatus(ctx context.Context, statuses ...models.StreamStatus) ([]*models.Stream, error) {
	var streams []*models.Stream
	if err := r.db.WithContext(ctx).Where("status IN ?", statuses).Order("created_at ASC").Find(&streams).Error; err != nil {
		return nil, fmt.Errorf("getting streams by status: %w", err)
	}
	return streams, nil
}

// GetByWorker retrieves streams currently assigned to a worker.
func (r *streamRepo) GetByWorker(ctx context.Context, workerID models.ULID) ([]*models.Stream, error) {
	var streams []*models.Stream
	if err := r.db.WithContext(ctx).Where("assigned_worker_id = ?", workerID).Find(&streams).Error; err != nil {
		return nil, fmt.Errorf("getting streams by worker: %w", err)
	}
	return streams, nil
}

// CountActiveByOwner counts the owner's streams holding a quota slot.
func (r *streamRepo) CountActiveByOwner(ctx context.Context, ownerID models.ULID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Stream{}).
		Where("owner_id = ? AND status IN ?", ownerID, models.QuotaStreamStatuses()).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("counting active streams: %w", err)
	}
	return count, nil
}

// GetDueForStart retrieves streams whose scheduled start time has passed and
// are inactive or errored.
func (r *streamRepo) GetDueForStart(ctx context.Context, now time.Time) ([]*models.Stream, error) {
	var streams []*models.Stream
	err := r.db.WithContext(ctx).
		Where("scheduled_at IS NOT NULL AND scheduled_at <= ?", now).
		Where("status IN ?", []models.StreamStatus{models.StreamStatusInactive, models.StreamStatusError}).
		Order("scheduled_at ASC").
		Find(&streams).Error
	if err != nil {
		return nil, fmt.Errorf("getting streams due for start: %w", err)
	}
	return streams, nil
}

// GetDueForStop retrieves streaming streams whose scheduled end has passed.
func (r *streamRepo) GetDueForStop(ctx context.Context, now time.Time) ([]*models.Stream, error) {
	var streams []*models.Stream
	err := r.db.WithContext(ctx).
		Where("scheduled_end_at IS NOT NULL AND scheduled_end_at <= ?", now).
		Where("status = ?", models.StreamStatusStreaming).
		Order("scheduled_end_at ASC").
		Find(&streams).Error
	if err != nil {
		return nil, fmt.Errorf("getting streams due for stop: %w", err)
	}
	return streams, nil
}

// GetRecurring retrieves streams with a recurrence expression set.
func (r *streamRepo) GetRecurring(ctx context.Context) ([]*models.Stream, error) {
	var streams []*models.Stream
	err := r.db.WithContext(ctx).
		Where("recurrence_cron IS NOT NULL AND recurrence_cron != ''").
		Find(&streams).Error
	if err != nil {
		return nil, fmt.Errorf("getting recurring streams: %w", err)
	}
	return streams, nil
}

// GetCleanupCandidates retrieves completed ephemeral streams whose assets
// are still on disk. Inactive and errored streams are excluded: the former
// may never have started, the latter must stay retryable with their files.
func (r *streamRepo) GetCleanupCandidates(ctx context.Context) ([]*models.Stream, error) {
	var streams []*models.Stream
	err := r.db.WithContext(ctx).
		Where("ephemeral = ? AND retain_assets = ? AND assets_deleted_at IS NULL", true, false).
		Where("status = ?", models.StreamStatusCompleted).
		Find(&streams).Error
	if err != nil {
		return nil, fmt.Errorf("getting cleanup candidates: %w", err)
	}
	return streams, nil
}

// Update saves all fields of an existing stream.
func (r *streamRepo) Update(ctx context.Context, stream *models.Stream) error {
	if err := r.db.WithContext(ctx).Omit("PlaylistItems").Save(stream).Error; err != nil {
		return fmt.Errorf("updating stream: %w", err)
	}
	return nil
}

// ClearScheduledAt consumes a one-shot start trigger. Only the trigger
// column is written; a full-row save here could clobber a status transition
// committed by the orchestrator after the sweep loaded the row.
func (r *streamRepo) ClearScheduledAt(ctx context.Context, id models.ULID) error {
	err := r.db.WithContext(ctx).
		Model(&models.Stream{}).
		Where("id = ?", id).
		Update("scheduled_at", nil).Error
	if err != nil {
		return fmt.Errorf("clearing scheduled start: %w", err)
	}
	return nil
}

// ClearScheduledEndAt consumes a one-shot stop trigger.
func (r *streamRepo) ClearScheduledEndAt(ctx context.Context, id models.ULID) error {
	err := r.db.WithContext(ctx).
		Model(&models.Stream{}).
		Where("id = ?", id).
		Update("scheduled_end_at", nil).Error
	if err != nil {
		return fmt.Errorf("clearing scheduled stop: %w", err)
	}
	return nil
}

// RecordScheduleRejection consumes the start trigger and records why the
// scheduled start was refused.
func (r *streamRepo) RecordScheduleRejection(ctx context.Context, id models.ULID, message string) error {
	err := r.db.WithContext(ctx).
		Model(&models.Stream{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"scheduled_at":  nil,
			"error_message": message,
		}).Error
	if err != nil {
		return fmt.Errorf("recording schedule rejection: %w", err)
	}
	return nil
}

// SetNote replaces the stream's operational note.
func (r *streamRepo) SetNote(ctx context.Context, id models.ULID, note string) error {
	err := r.db.WithContext(ctx).
		Model(&models.Stream{}).
		Where("id = ?", id).
		Update("note", note).Error
	if err != nil {
		return fmt.Errorf("setting stream note: %w", err)
	}
	return nil
}

// ReplacePlaylist replaces the stream's playlist items in one transaction.
func (r *streamRepo) ReplacePlaylist(ctx context.Context, streamID models.ULID, items []models.PlaylistItem) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("stream_id = ?", streamID).Delete(&models.PlaylistItem{}).Error; err != nil {
			return err
		}
		for i := range items {
			items[i].StreamID = streamID
		}
		if len(items) == 0 {
			return nil
		}
		return tx.Create(&items).Error
	})
	if err != nil {
		return fmt.Errorf("replacing playlist: %w", err)
	}
	return nil
}

// ClaimAssetsDeleted performs a compare-and-set on assets_deleted_at so only
// one cleanup pass removes files for a stream.
func (r *streamRepo) ClaimAssetsDeleted(ctx context.Context, id models.ULID, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Stream{}).
		Where("id = ? AND assets_deleted_at IS NULL", id).
		Update("assets_deleted_at", at)
	if result.Error != nil {
		return false, fmt.Errorf("claiming asset cleanup: %w", result.Error)
	}
	return result.RowsAffected == 1, nil
}

// Delete deletes a stream and its playlist items.
func (r *streamRepo) Delete(ctx context.Context, id models.ULID) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("stream_id = ?", id).Delete(&models.PlaylistItem{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&models.Stream{}).Error
	})
	if err != nil {
		return fmt.Errorf("deleting stream: %w", err)
	}
	return nil
}
