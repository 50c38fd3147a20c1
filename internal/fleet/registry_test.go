package fleet

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/truongvando/ezstream-sub000/internal/models"
	"github.com/truongvando/ezstream-sub000/pkg/relayd/types"
)

// fakeWorkerRepo is an in-memory WorkerRepository.
type fakeWorkerRepo struct {
	mu      sync.Mutex
	workers map[models.ULID]*models.WorkerNode
}

func newFakeWorkerRepo() *fakeWorkerRepo {
	return &fakeWorkerRepo{workers: make(map[models.ULID]*models.WorkerNode)}
}

func (f *fakeWorkerRepo) Create(ctx context.Context, worker *models.WorkerNode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if worker.ID.IsZero() {
		worker.ID = models.NewULID()
	}
	f.workers[worker.ID] = worker
	return nil
}

func (f *fakeWorkerRepo) GetByID(ctx context.Context, id models.ULID) (*models.WorkerNode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.workers[id], nil
}

func (f *fakeWorkerRepo) GetByAddr(ctx context.Context, addr string) (*models.WorkerNode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, w := range f.workers {
		if w.Addr == addr {
			return w, nil
		}
	}
	return nil, nil
}

func (f *fakeWorkerRepo) GetAll(ctx context.Context) ([]*models.WorkerNode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*models.WorkerNode, 0, len(f.workers))
	for _, w := range f.workers {
		out = append(out, w)
	}
	return out, nil
}

func (f *fakeWorkerRepo) GetEnabled(ctx context.Context) ([]*models.WorkerNode, error) {
	return f.GetAll(ctx)
}

func (f *fakeWorkerRepo) Update(ctx context.Context, worker *models.WorkerNode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.workers[worker.ID] = worker
	return nil
}

func (f *fakeWorkerRepo) RecordHeartbeat(ctx context.Context, id models.ULID, at time.Time, cpu, memory float64, version string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	w, ok := f.workers[id]
	if !ok {
		return models.ErrWorkerNotFound
	}
	w.LastHeartbeatAt = &at
	w.Status = models.WorkerStatusOnline
	return nil
}

func (f *fakeWorkerRepo) MarkOffline(ctx context.Context, ids []models.ULID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range ids {
		if w, ok := f.workers[id]; ok {
			w.Status = models.WorkerStatusOffline
		}
	}
	return nil
}

func (f *fakeWorkerRepo) Delete(ctx context.Context, id models.ULID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.workers, id)
	return nil
}

func register(t *testing.T, r *Registry, name, addr string, maxStreams int) *models.WorkerNode {
	t.Helper()
	w, err := r.Register(context.Background(), &types.RegisterRequest{
		Name:       name,
		Addr:       addr,
		MaxStreams: maxStreams,
	})
	require.NoError(t, err)
	return w
}

func TestRegistry_RegisterAndReRegister(t *testing.T) {
	repo := newFakeWorkerRepo()
	r := NewRegistry(repo, nil)

	w1 := register(t, r, "relay-01", "http://10.0.0.5:9200", 2)
	assert.Equal(t, models.WorkerStatusOnline, w1.Status)

	w2 := register(t, r, "relay-01b", "http://10.0.0.5:9200", 3)
	assert.Equal(t, w1.ID, w2.ID, "same addr reuses the record")
	assert.Equal(t, 3, w2.MaxStreams)
	assert.Len(t, r.GetAll(), 1)
}

func TestRegistry_RegisterUsesDefaultCapacity(t *testing.T) {
	r := NewRegistry(newFakeWorkerRepo(), nil).WithDefaultMaxStreams(7)
	w := register(t, r, "relay-01", "http://10.0.0.5:9200", 0)
	assert.Equal(t, 7, w.MaxStreams)
}

func TestRegistry_Assign_LeastLoaded(t *testing.T) {
	r := NewRegistry(newFakeWorkerRepo(), nil)
	w1 := register(t, r, "a", "http://10.0.0.1:9200", 2)
	w2 := register(t, r, "b", "http://10.0.0.2:9200", 2)

	// Preload w1 with one stream so w2 is less loaded.
	_, err := r.Assign(models.NewULID())
	require.NoError(t, err)

	got, err := r.Assign(models.NewULID())
	require.NoError(t, err)

	// First assignment went to the lower-ID worker; second must go to the
	// other one.
	first := w1
	second := w2
	if w2.ID.String() < w1.ID.String() {
		first, second = w2, w1
	}
	assert.Equal(t, second.ID, got.ID)
	assert.Equal(t, 1, r.ActiveStreams(first.ID))
	assert.Equal(t, 1, r.ActiveStreams(second.ID))
}

func TestRegistry_Assign_TieBreaksOnLowestID(t *testing.T) {
	r := NewRegistry(newFakeWorkerRepo(), nil)
	w1 := register(t, r, "a", "http://10.0.0.1:9200", 2)
	w2 := register(t, r, "b", "http://10.0.0.2:9200", 2)

	lowest := w1
	if w2.ID.String() < w1.ID.String() {
		lowest = w2
	}

	got, err := r.Assign(models.NewULID())
	require.NoError(t, err)
	assert.Equal(t, lowest.ID, got.ID)
}

func TestRegistry_Assign_NoWorkers(t *testing.T) {
	r := NewRegistry(newFakeWorkerRepo(), nil)

	_, err := r.Assign(models.NewULID())
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrWorkerNotAvailable)

	var nce *models.NoCapacityError
	require.ErrorAs(t, err, &nce)
	assert.Zero(t, nce.Workers)
}

func TestRegistry_Assign_AllFull(t *testing.T) {
	r := NewRegistry(newFakeWorkerRepo(), nil)
	register(t, r, "a", "http://10.0.0.1:9200", 1)

	_, err := r.Assign(models.NewULID())
	require.NoError(t, err)

	_, err = r.Assign(models.NewULID())
	var nce *models.NoCapacityError
	require.ErrorAs(t, err, &nce)
	assert.Equal(t, 1, nce.Workers)
}

func TestRegistry_Assign_SkipsDisabled(t *testing.T) {
	r := NewRegistry(newFakeWorkerRepo(), nil)
	w := register(t, r, "a", "http://10.0.0.1:9200", 2)

	require.NoError(t, r.SetEnabled(context.Background(), w.ID, false))

	_, err := r.Assign(models.NewULID())
	var nce *models.NoCapacityError
	require.ErrorAs(t, err, &nce)
}

func TestRegistry_ReleaseFreesSlot(t *testing.T) {
	r := NewRegistry(newFakeWorkerRepo(), nil)
	register(t, r, "a", "http://10.0.0.1:9200", 1)

	streamID := models.NewULID()
	_, err := r.Assign(streamID)
	require.NoError(t, err)

	r.Release(streamID)
	r.Release(streamID) // second release is a no-op

	_, err = r.Assign(models.NewULID())
	assert.NoError(t, err)
}

func TestRegistry_Heartbeat_UnknownWorker(t *testing.T) {
	r := NewRegistry(newFakeWorkerRepo(), nil)

	err := r.Heartbeat(context.Background(), &types.Heartbeat{WorkerID: models.NewULID().String()})
	assert.ErrorIs(t, err, models.ErrWorkerNotFound)

	err = r.Heartbeat(context.Background(), &types.Heartbeat{WorkerID: "garbage"})
	assert.ErrorIs(t, err, models.ErrWorkerNotFound)
}

func TestRegistry_Sweep_MarksSilentWorkersLost(t *testing.T) {
	repo := newFakeWorkerRepo()
	r := NewRegistry(repo, nil).WithHeartbeatTimeout(20 * time.Millisecond)

	var mu sync.Mutex
	var lostWorker models.ULID
	var lostStreams []models.ULID
	r.OnWorkerLost(func(workerID models.ULID, streamIDs []models.ULID) {
		mu.Lock()
		defer mu.Unlock()
		lostWorker = workerID
		lostStreams = streamIDs
	})

	w := register(t, r, "a", "http://10.0.0.1:9200", 2)
	streamID := models.NewULID()
	_, err := r.Assign(streamID)
	require.NoError(t, err)

	time.Sleep(30 * time.Millisecond)
	r.sweep(context.Background())

	got, ok := r.Get(w.ID)
	require.True(t, ok)
	assert.Equal(t, models.WorkerStatusOffline, got.Status)
	assert.Zero(t, r.ActiveStreams(w.ID), "assignments cleared on loss")

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, w.ID, lostWorker)
	assert.Equal(t, []models.ULID{streamID}, lostStreams)
}

func TestRegistry_Sweep_HeartbeatKeepsWorkerOnline(t *testing.T) {
	r := NewRegistry(newFakeWorkerRepo(), nil).WithHeartbeatTimeout(50 * time.Millisecond)
	w := register(t, r, "a", "http://10.0.0.1:9200", 2)

	require.NoError(t, r.Heartbeat(context.Background(), &types.Heartbeat{WorkerID: w.ID.String()}))
	r.sweep(context.Background())

	got, _ := r.Get(w.ID)
	assert.Equal(t, models.WorkerStatusOnline, got.Status)
}

func TestRegistry_RecoveredWorkerAcceptsAssignments(t *testing.T) {
	r := NewRegistry(newFakeWorkerRepo(), nil).WithHeartbeatTimeout(10 * time.Millisecond)
	w := register(t, r, "a", "http://10.0.0.1:9200", 2)

	time.Sleep(20 * time.Millisecond)
	r.sweep(context.Background())

	_, err := r.Assign(models.NewULID())
	require.Error(t, err, "offline worker gets nothing")

	require.NoError(t, r.Heartbeat(context.Background(), &types.Heartbeat{WorkerID: w.ID.String()}))

	_, err = r.Assign(models.NewULID())
	assert.NoError(t, err)
}

func TestRegistry_Restore(t *testing.T) {
	repo := newFakeWorkerRepo()
	require.NoError(t, repo.Create(context.Background(), &models.WorkerNode{
		Name:       "persisted",
		Addr:       "http://10.0.0.9:9200",
		MaxStreams: 2,
		Status:     models.WorkerStatusOnline,
	}))

	r := NewRegistry(repo, nil)
	require.NoError(t, r.Restore(context.Background()))

	workers := r.GetAll()
	require.Len(t, workers, 1)
	assert.Equal(t, models.WorkerStatusOffline, workers[0].Status, "restored workers wait for a heartbeat")
}

func TestRegistry_Remove_ReportsOrphanedStreams(t *testing.T) {
	r := NewRegistry(newFakeWorkerRepo(), nil)

	var lostStreams []models.ULID
	r.OnWorkerLost(func(workerID models.ULID, streamIDs []models.ULID) {
		lostStreams = streamIDs
	})

	w := register(t, r, "a", "http://10.0.0.1:9200", 2)
	streamID := models.NewULID()
	_, err := r.Assign(streamID)
	require.NoError(t, err)

	require.NoError(t, r.Remove(context.Background(), w.ID))
	assert.Equal(t, []models.ULID{streamID}, lostStreams)
	assert.Empty(t, r.GetAll())

	assert.ErrorIs(t, r.Remove(context.Background(), w.ID), models.ErrWorkerNotFound)
}
