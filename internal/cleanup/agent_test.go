package cleanup

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/truongvando/ezstream-sub000/internal/config"
	"github.com/truongvando/ezstream-sub000/internal/database"
	"github.com/truongvando/ezstream-sub000/internal/database/migrations"
	"github.com/truongvando/ezstream-sub000/internal/models"
	"github.com/truongvando/ezstream-sub000/internal/repository"
	"github.com/truongvando/ezstream-sub000/internal/storage"
)

func setup(t *testing.T) (repository.StreamRepository, *storage.AssetStore, *Agent) {
	t.Helper()

	db, err := database.New(config.DatabaseConfig{
		Driver:   "sqlite",
		DSN:      filepath.Join(t.TempDir(), "cleanup-test.db"),
		LogLevel: "silent",
	}, nil, &database.Options{PrepareStmt: false})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, migrations.NewMigrator(db.DB, nil).Up(context.Background()))

	store, err := storage.NewAssetStore(t.TempDir())
	require.NoError(t, err)

	streams := repository.NewStreamRepository(db.DB)
	return streams, store, NewAgent(streams, store, nil)
}

func createStream(t *testing.T, streams repository.StreamRepository, ephemeral bool, status models.StreamStatus) *models.Stream {
	t.Helper()
	s := &models.Stream{
		OwnerID:   models.NewULID(),
		Name:      "s",
		RTMPURL:   "rtmp://ingest.example.com/live",
		StreamKey: "k",
		Status:    status,
		Ephemeral: ephemeral,
	}
	require.NoError(t, streams.Create(context.Background(), s))
	return s
}

func writeAssets(t *testing.T, store *storage.AssetStore, streamID models.ULID) {
	t.Helper()
	_, err := store.WriteFile(StreamAssetDir(streamID)+"/a.mp4", strings.NewReader("video"))
	require.NoError(t, err)
}

func TestRunOnce_RemovesCompletedEphemeralAssets(t *testing.T) {
	streams, store, agent := setup(t)
	ctx := context.Background()

	s := createStream(t, streams, true, models.StreamStatusCompleted)
	writeAssets(t, store, s.ID)

	require.NoError(t, agent.RunOnce(ctx))

	exists, err := store.Exists(StreamAssetDir(s.ID) + "/a.mp4")
	require.NoError(t, err)
	assert.False(t, exists)

	got, err := streams.GetByID(ctx, s.ID)
	require.NoError(t, err)
	require.NotNil(t, got.AssetsDeletedAt)
	assert.WithinDuration(t, time.Now(), *got.AssetsDeletedAt, 5*time.Second)
	assert.NotEmpty(t, got.Note, "cleanup should leave a trace on the stream")
}

func TestRunOnce_SkipsNonCandidates(t *testing.T) {
	streams, store, agent := setup(t)
	ctx := context.Background()

	persistent := createStream(t, streams, false, models.StreamStatusCompleted)
	writeAssets(t, store, persistent.ID)

	live := createStream(t, streams, true, models.StreamStatusStreaming)
	writeAssets(t, store, live.ID)

	// A quick stream that never started must keep its files.
	pending := createStream(t, streams, true, models.StreamStatusInactive)
	writeAssets(t, store, pending.ID)

	// An errored quick stream must stay retryable with its files.
	errored := createStream(t, streams, true, models.StreamStatusError)
	writeAssets(t, store, errored.ID)

	require.NoError(t, agent.RunOnce(ctx))

	for _, s := range []*models.Stream{persistent, live, pending, errored} {
		exists, err := store.Exists(StreamAssetDir(s.ID) + "/a.mp4")
		require.NoError(t, err)
		assert.True(t, exists, "stream %s must keep its assets", s.ID)

		got, err := streams.GetByID(ctx, s.ID)
		require.NoError(t, err)
		assert.Nil(t, got.AssetsDeletedAt)
	}
}

func TestRunOnce_HonorsGracePeriod(t *testing.T) {
	streams, store, agent := setup(t)
	agent.WithGracePeriod(time.Hour)
	ctx := context.Background()

	recent := createStream(t, streams, true, models.StreamStatusCompleted)
	now := time.Now()
	recent.LastStatusAt = &now
	require.NoError(t, streams.Update(ctx, recent))
	writeAssets(t, store, recent.ID)

	settled := createStream(t, streams, true, models.StreamStatusCompleted)
	old := time.Now().Add(-2 * time.Hour)
	settled.LastStatusAt = &old
	require.NoError(t, streams.Update(ctx, settled))
	writeAssets(t, store, settled.ID)

	require.NoError(t, agent.RunOnce(ctx))

	exists, err := store.Exists(StreamAssetDir(recent.ID) + "/a.mp4")
	require.NoError(t, err)
	assert.True(t, exists, "stream inside the grace window keeps its assets")

	exists, err = store.Exists(StreamAssetDir(settled.ID) + "/a.mp4")
	require.NoError(t, err)
	assert.False(t, exists, "stream past the grace window is cleaned")
}

func TestRunOnce_IsIdempotent(t *testing.T) {
	streams, store, agent := setup(t)
	ctx := context.Background()

	s := createStream(t, streams, true, models.StreamStatusCompleted)
	writeAssets(t, store, s.ID)

	require.NoError(t, agent.RunOnce(ctx))
	first, err := streams.GetByID(ctx, s.ID)
	require.NoError(t, err)
	require.NotNil(t, first.AssetsDeletedAt)

	require.NoError(t, agent.RunOnce(ctx))
	second, err := streams.GetByID(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, first.AssetsDeletedAt.Unix(), second.AssetsDeletedAt.Unix(), "claim timestamp unchanged")
}

func TestRunOnce_ConcurrentPassesRemoveOnce(t *testing.T) {
	streams, store, agent := setup(t)
	ctx := context.Background()

	s := createStream(t, streams, true, models.StreamStatusCompleted)
	writeAssets(t, store, s.ID)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = agent.RunOnce(ctx)
		}()
	}
	wg.Wait()

	exists, err := store.Exists(StreamAssetDir(s.ID) + "/a.mp4")
	require.NoError(t, err)
	assert.False(t, exists)

	got, err := streams.GetByID(ctx, s.ID)
	require.NoError(t, err)
	assert.NotNil(t, got.AssetsDeletedAt)
}
