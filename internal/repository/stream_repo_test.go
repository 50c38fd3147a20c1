package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/truongvando/ezstream-sub000/internal/config"
	"github.com/truongvando/ezstream-sub000/internal/database"
	"github.com/truongvando/ezstream-sub000/internal/database/migrations"
	"github.com/truongvando/ezstream-sub000/internal/models"
	"gorm.io/gorm"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.New(config.DatabaseConfig{
		Driver:   "sqlite",
		DSN:      filepath.Join(t.TempDir(), "repo-test.db"),
		LogLevel: "silent",
	}, nil, &database.Options{PrepareStmt: false})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, migrations.NewMigrator(db.DB, nil).Up(context.Background()))
	return db.DB
}

func newTestStream(ownerID models.ULID) *models.Stream {
	return &models.Stream{
		OwnerID:   ownerID,
		Name:      "morning show",
		Platform:  models.PlatformYouTube,
		RTMPURL:   "rtmp://a.rtmp.youtube.com/live2",
		StreamKey: "key-123",
		Status:    models.StreamStatusInactive,
		OrderMode: models.OrderModeSequential,
	}
}

func TestStreamRepo_CreateAndGet(t *testing.T) {
	db := setupDB(t)
	repo := NewStreamRepository(db)
	ctx := context.Background()

	stream := newTestStream(models.NewULID())
	stream.PlaylistItems = []models.PlaylistItem{
		{Path: "b.mp4", Position: 1},
		{Path: "a.mp4", Position: 0},
	}
	require.NoError(t, repo.Create(ctx, stream))

	got, err := repo.GetByIDWithPlaylist(ctx, stream.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "morning show", got.Name)
	require.Len(t, got.PlaylistItems, 2)
	assert.Equal(t, "a.mp4", got.PlaylistItems[0].Path, "playlist ordered by position")
	assert.Equal(t, "b.mp4", got.PlaylistItems[1].Path)
}

func TestStreamRepo_GetByID_NotFound(t *testing.T) {
	db := setupDB(t)
	repo := NewStreamRepository(db)

	got, err := repo.GetByID(context.Background(), models.NewULID())
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStreamRepo_CountActiveByOwner(t *testing.T) {
	db := setupDB(t)
	repo := NewStreamRepository(db)
	ctx := context.Background()
	owner := models.NewULID()
	other := models.NewULID()

	for _, status := range []models.StreamStatus{
		models.StreamStatusStarting,
		models.StreamStatusStreaming,
		models.StreamStatusStopping,
		models.StreamStatusInactive,
		models.StreamStatusError,
		models.StreamStatusCompleted,
	} {
		s := newTestStream(owner)
		s.Status = status
		require.NoError(t, repo.Create(ctx, s))
	}
	s := newTestStream(other)
	s.Status = models.StreamStatusStreaming
	require.NoError(t, repo.Create(ctx, s))

	count, err := repo.CountActiveByOwner(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count, "only starting and streaming hold a quota slot")
}

func TestStreamRepo_GetDueForStart(t *testing.T) {
	db := setupDB(t)
	repo := NewStreamRepository(db)
	ctx := context.Background()
	now := time.Now()

	past := now.Add(-time.Minute)
	future := now.Add(time.Hour)

	due := newTestStream(models.NewULID())
	due.ScheduledAt = &past
	require.NoError(t, repo.Create(ctx, due))

	errored := newTestStream(models.NewULID())
	errored.Status = models.StreamStatusError
	errored.ScheduledAt = &past
	require.NoError(t, repo.Create(ctx, errored))

	notYet := newTestStream(models.NewULID())
	notYet.ScheduledAt = &future
	require.NoError(t, repo.Create(ctx, notYet))

	running := newTestStream(models.NewULID())
	running.Status = models.StreamStatusStreaming
	running.ScheduledAt = &past
	require.NoError(t, repo.Create(ctx, running))

	got, err := repo.GetDueForStart(ctx, now)
	require.NoError(t, err)
	require.Len(t, got, 2)
	ids := []models.ULID{got[0].ID, got[1].ID}
	assert.Contains(t, ids, due.ID)
	assert.Contains(t, ids, errored.ID)
}

func TestStreamRepo_GetDueForStop(t *testing.T) {
	db := setupDB(t)
	repo := NewStreamRepository(db)
	ctx := context.Background()
	now := time.Now()
	past := now.Add(-time.Minute)

	streaming := newTestStream(models.NewULID())
	streaming.Status = models.StreamStatusStreaming
	streaming.ScheduledEndAt = &past
	require.NoError(t, repo.Create(ctx, streaming))

	alreadyStopping := newTestStream(models.NewULID())
	alreadyStopping.Status = models.StreamStatusStopping
	alreadyStopping.ScheduledEndAt = &past
	require.NoError(t, repo.Create(ctx, alreadyStopping))

	got, err := repo.GetDueForStop(ctx, now)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, streaming.ID, got[0].ID)
}

func TestStreamRepo_ClaimAssetsDeleted_OnlyOnce(t *testing.T) {
	db := setupDB(t)
	repo := NewStreamRepository(db)
	ctx := context.Background()

	stream := newTestStream(models.NewULID())
	stream.Ephemeral = true
	require.NoError(t, repo.Create(ctx, stream))

	won, err := repo.ClaimAssetsDeleted(ctx, stream.ID, time.Now())
	require.NoError(t, err)
	assert.True(t, won, "first claim wins")

	won, err = repo.ClaimAssetsDeleted(ctx, stream.ID, time.Now())
	require.NoError(t, err)
	assert.False(t, won, "second claim loses")

	got, err := repo.GetByID(ctx, stream.ID)
	require.NoError(t, err)
	require.NotNil(t, got.AssetsDeletedAt)
}

func TestStreamRepo_GetCleanupCandidates(t *testing.T) {
	db := setupDB(t)
	repo := NewStreamRepository(db)
	ctx := context.Background()

	candidate := newTestStream(models.NewULID())
	candidate.Ephemeral = true
	candidate.Status = models.StreamStatusCompleted
	require.NoError(t, repo.Create(ctx, candidate))

	retained := newTestStream(models.NewULID())
	retained.Ephemeral = true
	retained.RetainAssets = true
	retained.Status = models.StreamStatusCompleted
	require.NoError(t, repo.Create(ctx, retained))

	active := newTestStream(models.NewULID())
	active.Ephemeral = true
	active.Status = models.StreamStatusStreaming
	require.NoError(t, repo.Create(ctx, active))

	// Never started: its assets must survive the sweep.
	pending := newTestStream(models.NewULID())
	pending.Ephemeral = true
	require.NoError(t, repo.Create(ctx, pending))

	// Errored: retryable, keeps its files.
	errored := newTestStream(models.NewULID())
	errored.Ephemeral = true
	errored.Status = models.StreamStatusError
	require.NoError(t, repo.Create(ctx, errored))

	got, err := repo.GetCleanupCandidates(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, candidate.ID, got[0].ID)
}

func TestStreamRepo_ReplacePlaylist(t *testing.T) {
	db := setupDB(t)
	repo := NewStreamRepository(db)
	ctx := context.Background()

	stream := newTestStream(models.NewULID())
	stream.PlaylistItems = []models.PlaylistItem{{Path: "old.mp4", Position: 0}}
	require.NoError(t, repo.Create(ctx, stream))

	err := repo.ReplacePlaylist(ctx, stream.ID, []models.PlaylistItem{
		{Path: "new-1.mp4", Position: 0},
		{Path: "new-2.mp4", Position: 1},
	})
	require.NoError(t, err)

	got, err := repo.GetByIDWithPlaylist(ctx, stream.ID)
	require.NoError(t, err)
	require.Len(t, got.PlaylistItems, 2)
	assert.Equal(t, "new-1.mp4", got.PlaylistItems[0].Path)
}

func TestStreamRepo_Delete_RemovesPlaylist(t *testing.T) {
	db := setupDB(t)
	repo := NewStreamRepository(db)
	ctx := context.Background()

	stream := newTestStream(models.NewULID())
	stream.PlaylistItems = []models.PlaylistItem{{Path: "a.mp4", Position: 0}}
	require.NoError(t, repo.Create(ctx, stream))

	require.NoError(t, repo.Delete(ctx, stream.ID))

	got, err := repo.GetByID(ctx, stream.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	var count int64
	require.NoError(t, db.Model(&models.PlaylistItem{}).Where("stream_id = ?", stream.ID).Count(&count).Error)
	assert.Zero(t, count)
}
