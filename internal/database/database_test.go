package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/truongvando/ezstream-sub000/internal/config"
	"github.com/truongvando/ezstream-sub000/internal/database/migrations"
	"github.com/truongvando/ezstream-sub000/internal/models"
)

func testConfig(t *testing.T) config.DatabaseConfig {
	t.Helper()
	return config.DatabaseConfig{
		Driver:   "sqlite",
		DSN:      filepath.Join(t.TempDir(), "ezstream-test.db"),
		LogLevel: "silent",
	}
}

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(testConfig(t), nil, &Options{PrepareStmt: false})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestNew_UnsupportedDriver(t *testing.T) {
	_, err := New(config.DatabaseConfig{Driver: "oracle", DSN: "x"}, nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported database driver")
}

func TestNew_SQLiteAndPing(t *testing.T) {
	db := openTestDB(t)
	assert.Equal(t, "sqlite", db.Driver())
	assert.NoError(t, db.Ping(context.Background()))
}

func TestMigrations_UpIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	migrator := migrations.NewMigrator(db.DB, nil)
	require.NoError(t, migrator.Up(ctx))
	require.NoError(t, migrator.Up(ctx), "second run must be a no-op")

	var count int64
	require.NoError(t, db.DB.Model(&migrations.MigrationRecord{}).Count(&count).Error)
	assert.Equal(t, int64(len(migrations.AllMigrations())), count)
}

func TestMigrations_SchemaSupportsModels(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	require.NoError(t, migrations.NewMigrator(db.DB, nil).Up(ctx))

	stream := &models.Stream{
		OwnerID:   models.NewULID(),
		Name:      "integration check",
		Platform:  models.PlatformCustom,
		RTMPURL:   "rtmp://ingest.example.com/live",
		StreamKey: "secret",
		Status:    models.StreamStatusInactive,
		PlaylistItems: []models.PlaylistItem{
			{Path: "a.mp4", Position: 0},
			{Path: "b.mp4", Position: 1},
		},
	}
	require.NoError(t, db.DB.Create(stream).Error)
	require.False(t, stream.ID.IsZero(), "BeforeCreate assigns a ULID")

	var loaded models.Stream
	require.NoError(t, db.DB.Preload("PlaylistItems").First(&loaded, "id = ?", stream.ID).Error)
	assert.Equal(t, stream.Name, loaded.Name)
	assert.Len(t, loaded.PlaylistItems, 2)

	worker := &models.WorkerNode{Name: "w1", Addr: "http://127.0.0.1:9200", MaxStreams: 2}
	require.NoError(t, db.DB.Create(worker).Error)

	limit := &models.SubscriptionLimit{OwnerID: stream.OwnerID, Plan: "pro", MaxConcurrentStreams: 3}
	require.NoError(t, db.DB.Create(limit).Error)
}

func TestDB_Stats(t *testing.T) {
	db := openTestDB(t)
	stats, err := db.Stats()
	require.NoError(t, err)
	assert.Contains(t, stats, "open_connections")
}
