package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/truongvando/ezstream-sub000/internal/models"
)

func newTestWorker(name, addr string) *models.WorkerNode {
	return &models.WorkerNode{
		Name:       name,
		Addr:       addr,
		MaxStreams: 4,
		Status:     models.WorkerStatusOffline,
	}
}

func TestWorkerRepo_CreateAndGet(t *testing.T) {
	db := setupDB(t)
	repo := NewWorkerRepository(db)
	ctx := context.Background()

	worker := newTestWorker("relay-01", "http://10.0.0.5:9200")
	require.NoError(t, repo.Create(ctx, worker))

	got, err := repo.GetByID(ctx, worker.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "relay-01", got.Name)

	byAddr, err := repo.GetByAddr(ctx, "http://10.0.0.5:9200")
	require.NoError(t, err)
	require.NotNil(t, byAddr)
	assert.Equal(t, worker.ID, byAddr.ID)

	missing, err := repo.GetByAddr(ctx, "http://10.0.0.9:9200")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestWorkerRepo_DuplicateAddrRejected(t *testing.T) {
	db := setupDB(t)
	repo := NewWorkerRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newTestWorker("a", "http://10.0.0.5:9200")))
	err := repo.Create(ctx, newTestWorker("b", "http://10.0.0.5:9200"))
	assert.Error(t, err)
}

func TestWorkerRepo_RecordHeartbeat(t *testing.T) {
	db := setupDB(t)
	repo := NewWorkerRepository(db)
	ctx := context.Background()

	worker := newTestWorker("relay-01", "http://10.0.0.5:9200")
	require.NoError(t, repo.Create(ctx, worker))

	at := time.Now()
	require.NoError(t, repo.RecordHeartbeat(ctx, worker.ID, at, 42.5, 61.0, "1.2.0"))

	got, err := repo.GetByID(ctx, worker.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WorkerStatusOnline, got.Status)
	require.NotNil(t, got.LastHeartbeatAt)
	assert.WithinDuration(t, at, *got.LastHeartbeatAt, time.Second)
	assert.InDelta(t, 42.5, got.CPUPercent, 0.01)
	assert.Equal(t, "1.2.0", got.Version)
}

func TestWorkerRepo_RecordHeartbeat_UnknownWorker(t *testing.T) {
	db := setupDB(t)
	repo := NewWorkerRepository(db)

	err := repo.RecordHeartbeat(context.Background(), models.NewULID(), time.Now(), 0, 0, "")
	assert.ErrorIs(t, err, models.ErrWorkerNotFound)
}

func TestWorkerRepo_MarkOffline(t *testing.T) {
	db := setupDB(t)
	repo := NewWorkerRepository(db)
	ctx := context.Background()

	w1 := newTestWorker("a", "http://10.0.0.5:9200")
	w1.Status = models.WorkerStatusOnline
	w2 := newTestWorker("b", "http://10.0.0.6:9200")
	w2.Status = models.WorkerStatusOnline
	require.NoError(t, repo.Create(ctx, w1))
	require.NoError(t, repo.Create(ctx, w2))

	require.NoError(t, repo.MarkOffline(ctx, []models.ULID{w1.ID}))
	require.NoError(t, repo.MarkOffline(ctx, nil))

	got, err := repo.GetByID(ctx, w1.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WorkerStatusOffline, got.Status)

	got, err = repo.GetByID(ctx, w2.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WorkerStatusOnline, got.Status)
}

func TestSubscriptionRepo_Upsert(t *testing.T) {
	db := setupDB(t)
	repo := NewSubscriptionRepository(db)
	ctx := context.Background()
	owner := models.NewULID()

	got, err := repo.GetByOwner(ctx, owner)
	require.NoError(t, err)
	assert.Nil(t, got, "no record for unknown owner")

	require.NoError(t, repo.Upsert(ctx, &models.SubscriptionLimit{
		OwnerID:              owner,
		Plan:                 "free",
		MaxConcurrentStreams: 1,
	}))

	require.NoError(t, repo.Upsert(ctx, &models.SubscriptionLimit{
		OwnerID:              owner,
		Plan:                 "pro",
		MaxConcurrentStreams: 5,
	}))

	got, err = repo.GetByOwner(ctx, owner)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "pro", got.Plan)
	assert.Equal(t, 5, got.MaxConcurrentStreams)

	var count int64
	require.NoError(t, db.Model(&models.SubscriptionLimit{}).Where("owner_id = ?", owner).Count(&count).Error)
	assert.Equal(t, int64(1), count, "upsert must not duplicate")
}
