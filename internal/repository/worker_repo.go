package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/truongvando/ezstream-sub000/internal/models"
	"gorm.io/gorm"
)

// workerRepo implements WorkerRepository using GORM.
type workerRepo struct {
	db *gorm.DB
}

// NewWorkerRepository creates a new WorkerRepository.
func NewWorkerRepository(db *gorm.DB) *workerRepo {
	return &workerRepo{db: db}
}

// Create registers a new worker node.
func (r *workerRepo) Create(ctx context.Context, worker *models.WorkerNode) error {
	if err := r.db.WithContext(ctx).Create(worker).Error; err != nil {
		return fmt.Errorf("creating worker: %w", err)
	}
	return nil
}

// GetByID retrieves a worker by ID.
func (r *workerRepo) GetByID(ctx context.Context, id models.ULID) (*models.WorkerNode, error) {
	var worker models.WorkerNode
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&worker).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("getting worker by ID: %w", err)
	}
	return &worker, nil
}

// GetByAddr retrieves a worker by its command endpoint address.
func (r *workerRepo) GetByAddr(ctx context.Context, addr string) (*models.WorkerNode, error) {
	var worker models.WorkerNode
	if err := r.db.WithContext(ctx).Where("addr = ?", addr).First(&worker).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("getting worker by addr: %w", err)
	}
	return &worker, nil
}

// GetAll retrieves all workers.
func (r *workerRepo) GetAll(ctx context.Context) ([]*models.WorkerNode, error) {
	var workers []*models.WorkerNode
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&workers).Error; err != nil {
		return nil, fmt.Errorf("getting all workers: %w", err)
	}
	return workers, nil
}

// GetEnabled retrieves all enabled workers.
func (r *workerRepo) GetEnabled(ctx context.Context) ([]*models.WorkerNode, error) {
	var workers []*models.WorkerNode
	if err := r.db.WithContext(ctx).Where("enabled = ?", true).Order("id ASC").Find(&workers).Error; err != nil {
		return nil, fmt.Errorf("getting enabled workers: %w", err)
	}
	return workers, nil
}

// Update saves all fields of an existing worker.
func (r *workerRepo) Update(ctx context.Context, worker *models.WorkerNode) error {
	if err := r.db.WithContext(ctx).Save(worker).Error; err != nil {
		return fmt.Errorf("updating worker: %w", err)
	}
	return nil
}

// RecordHeartbeat updates the worker's heartbeat time, status, and telemetry.
func (r *workerRepo) RecordHeartbeat(ctx context.Context, id models.ULID, at time.Time, cpu, memory float64, version string) error {
	updates := map[string]any{
		"last_heartbeat_at": at,
		"status":            models.WorkerStatusOnline,
		"cpu_percent":       cpu,
		"memory_percent":    memory,
	}
	if version != "" {
		updates["version"] = version
	}
	result := r.db.WithContext(ctx).Model(&models.WorkerNode{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("recording heartbeat: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return models.ErrWorkerNotFound
	}
	return nil
}

// MarkOffline marks the given workers offline.
func (r *workerRepo) MarkOffline(ctx context.Context, ids []models.ULID) error {
	if len(ids) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).
		Model(&models.WorkerNode{}).
		Where("id IN ?", ids).
		Update("status", models.WorkerStatusOffline).Error
	if err != nil {
		return fmt.Errorf("marking workers offline: %w", err)
	}
	return nil
}

// Delete removes a worker node.
func (r *workerRepo) Delete(ctx context.Context, id models.ULID) error {
	if err := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.WorkerNode{}).Error; err != nil {
		return fmt.Errorf("deleting worker: %w", err)
	}
	return nil
}
