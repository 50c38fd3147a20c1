// Package fleet tracks the relayd worker fleet: registrations, heartbeats,
// capacity, and stream-to-worker assignment.
package fleet

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/truongvando/ezstream-sub000/internal/models"
	"github.com/truongvando/ezstream-sub000/internal/repository"
	"github.com/truongvando/ezstream-sub000/pkg/relayd/types"
)

// WorkerLostFunc is invoked when a worker misses enough heartbeats to be
// declared lost. It receives the streams that were assigned to the worker.
type WorkerLostFunc func(workerID models.ULID, streamIDs []models.ULID)

// workerState is the in-memory view of one worker.
type workerState struct {
	worker   *models.WorkerNode
	assigned map[models.ULID]struct{} // stream IDs
}

func (s *workerState) load() float64 {
	if s.worker.MaxStreams <= 0 {
		return 1.0
	}
	return float64(len(s.assigned)) / float64(s.worker.MaxStreams)
}

func (s *workerState) hasSlot() bool {
	return len(s.assigned) < s.worker.MaxStreams
}

// Registry manages the worker fleet. Runtime state (assignments, liveness)
// lives in memory; worker records are persisted through the repository so
// registrations survive restarts.
type Registry struct {
	logger  *slog.Logger
	workers repository.WorkerRepository

	mu    sync.RWMutex
	state map[models.ULID]*workerState

	heartbeatTimeout  time.Duration
	healthCheckPeriod time.Duration
	defaultMaxStreams int

	onWorkerLost WorkerLostFunc

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewRegistry creates a worker fleet registry.
func NewRegistry(workers repository.WorkerRepository, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		logger:            logger,
		workers:           workers,
		state:             make(map[models.ULID]*workerState),
		heartbeatTimeout:  15 * time.Second,
		healthCheckPeriod: 5 * time.Second,
		defaultMaxStreams: 4,
	}
}

// WithHeartbeatTimeout sets how long a worker may go silent before being
// declared lost.
func (r *Registry) WithHeartbeatTimeout(timeout time.Duration) *Registry {
	r.heartbeatTimeout = timeout
	return r
}

// WithHealthCheckPeriod sets the interval of the health sweep.
func (r *Registry) WithHealthCheckPeriod(period time.Duration) *Registry {
	r.healthCheckPeriod = period
	return r
}

// WithDefaultMaxStreams sets the per-worker capacity used when a worker
// registers without declaring its own.
func (r *Registry) WithDefaultMaxStreams(n int) *Registry {
	r.defaultMaxStreams = n
	return r
}

// OnWorkerLost installs the callback fired when a worker is declared lost.
// Must be called before Start.
func (r *Registry) OnWorkerLost(fn WorkerLostFunc) {
	r.onWorkerLost = fn
}

// Restore loads persisted workers into the registry. All restored workers
// start offline until their first heartbeat. Call once at startup.
func (r *Registry) Restore(ctx context.Context) error {
	workers, err := r.workers.GetAll(ctx)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, w := range workers {
		w.Status = models.WorkerStatusOffline
		r.state[w.ID] = &workerState{worker: w, assigned: make(map[models.ULID]struct{})}
	}
	r.logger.Info("worker fleet restored", slog.Int("workers", len(workers)))
	return nil
}

// Start launches the background health sweep.
func (r *Registry) Start(ctx context.Context) {
	sweepCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	r.wg.Add(1)
	go r.sweepLoop(sweepCtx)
}

// Stop halts the health sweep and waits for it to finish.
func (r *Registry) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
}

// Register adds a worker or refreshes an existing registration with the same
// address. The worker is online immediately; its heartbeat clock starts now.
func (r *Registry) Register(ctx context.Context, req *types.RegisterRequest) (*models.WorkerNode, error) {
	maxStreams := req.MaxStreams
	if maxStreams <= 0 {
		maxStreams = r.defaultMaxStreams
	}

	now := time.Now()

	existing, err := r.workers.GetByAddr(ctx, req.Addr)
	if err != nil {
		return nil, err
	}

	var worker *models.WorkerNode
	if existing != nil {
		existing.Name = req.Name
		existing.Version = req.Version
		existing.MaxStreams = maxStreams
		existing.Status = models.WorkerStatusOnline
		existing.LastHeartbeatAt = &now
		if req.Token != "" {
			existing.Token = req.Token
		}
		if err := r.workers.Update(ctx, existing); err != nil {
			return nil, err
		}
		worker = existing
		r.logger.Info("worker re-registered",
			slog.String("worker_id", worker.ID.String()),
			slog.String("name", worker.Name),
		)
	} else {
		worker = &models.WorkerNode{
			Name:            req.Name,
			Addr:            req.Addr,
			Token:           req.Token,
			Version:         req.Version,
			MaxStreams:      maxStreams,
			Status:          models.WorkerStatusOnline,
			LastHeartbeatAt: &now,
		}
		if err := worker.Validate(); err != nil {
			return nil, err
		}
		if err := r.workers.Create(ctx, worker); err != nil {
			return nil, err
		}
		r.logger.Info("worker registered",
			slog.String("worker_id", worker.ID.String()),
			slog.String("name", worker.Name),
			slog.String("addr", worker.Addr),
			slog.Int("max_streams", maxStreams),
		)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if st, ok := r.state[worker.ID]; ok {
		st.worker = worker
	} else {
		r.state[worker.ID] = &workerState{worker: worker, assigned: make(map[models.ULID]struct{})}
	}
	return worker, nil
}

// Heartbeat records a liveness report. An offline worker comes back online;
// a worker the registry has never seen is rejected so it re-registers.
func (r *Registry) Heartbeat(ctx context.Context, hb *types.Heartbeat) error {
	workerID, err := models.ParseULID(hb.WorkerID)
	if err != nil {
		return models.ErrWorkerNotFound
	}

	now := time.Now()

	r.mu.Lock()
	st, ok := r.state[workerID]
	if !ok {
		r.mu.Unlock()
		return models.ErrWorkerNotFound
	}
	recovered := st.worker.Status == models.WorkerStatusOffline
	st.worker.Status = models.WorkerStatusOnline
	st.worker.LastHeartbeatAt = &now
	st.worker.CPUPercent = hb.CPUPercent
	st.worker.MemoryPercent = hb.MemoryPercent
	if hb.Version != "" {
		st.worker.Version = hb.Version
	}
	r.mu.Unlock()

	if recovered {
		r.logger.Info("worker recovered", slog.String("worker_id", workerID.String()))
	}

	return r.workers.RecordHeartbeat(ctx, workerID, now, hb.CPUPercent, hb.MemoryPercent, hb.Version)
}

// Assign picks the least-loaded online worker with a free slot and records
// the stream against it. Ties break toward the lowest worker ID so placement
// is deterministic. Returns a NoCapacityError when no worker qualifies.
func (r *Registry) Assign(streamID models.ULID) (*models.WorkerNode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	candidates := make([]*workerState, 0, len(r.state))
	healthy := 0
	for _, st := range r.state {
		if !st.worker.Assignable() {
			continue
		}
		healthy++
		if st.hasSlot() {
			candidates = append(candidates, st)
		}
	}
	if len(candidates) == 0 {
		return nil, &models.NoCapacityError{Workers: healthy}
	}

	sort.Slice(candidates, func(i, j int) bool {
		li, lj := candidates[i].load(), candidates[j].load()
		if li != lj {
			return li < lj
		}
		return candidates[i].worker.ID.String() < candidates[j].worker.ID.String()
	})

	selected := candidates[0]
	selected.assigned[streamID] = struct{}{}

	r.logger.Debug("stream assigned to worker",
		slog.String("stream_id", streamID.String()),
		slog.String("worker_id", selected.worker.ID.String()),
		slog.Int("worker_streams", len(selected.assigned)),
	)
	return selected.worker, nil
}

// Release frees the slot a stream occupies. Releasing an unassigned stream
// is a no-op, so callers need not track whether assignment succeeded.
func (r *Registry) Release(streamID models.ULID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, st := range r.state {
		if _, ok := st.assigned[streamID]; ok {
			delete(st.assigned, streamID)
			return
		}
	}
}

// Reattach records an existing assignment, used when the control plane
// restarts while streams are running.
func (r *Registry) Reattach(workerID, streamID models.ULID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	st, ok := r.state[workerID]
	if !ok {
		return false
	}
	st.assigned[streamID] = struct{}{}
	return true
}

// Get returns a worker by ID.
func (r *Registry) Get(workerID models.ULID) (*models.WorkerNode, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	st, ok := r.state[workerID]
	if !ok {
		return nil, false
	}
	return st.worker, true
}

// ActiveStreams returns how many streams are assigned to a worker.
func (r *Registry) ActiveStreams(workerID models.ULID) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	st, ok := r.state[workerID]
	if !ok {
		return 0
	}
	return len(st.assigned)
}

// GetAll returns all registered workers sorted by ID.
func (r *Registry) GetAll() []*models.WorkerNode {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*models.WorkerNode, 0, len(r.state))
	for _, st := range r.state {
		result = append(result, st.worker)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ID.String() < result[j].ID.String()
	})
	return result
}

// CountOnline returns the number of online workers.
func (r *Registry) CountOnline() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, st := range r.state {
		if st.worker.Status == models.WorkerStatusOnline {
			count++
		}
	}
	return count
}

// SetEnabled toggles whether a worker accepts new assignments.
func (r *Registry) SetEnabled(ctx context.Context, workerID models.ULID, enabled bool) error {
	r.mu.Lock()
	st, ok := r.state[workerID]
	if !ok {
		r.mu.Unlock()
		return models.ErrWorkerNotFound
	}
	st.worker.Enabled = models.BoolPtr(enabled)
	worker := st.worker
	r.mu.Unlock()

	return r.workers.Update(ctx, worker)
}

// Remove deletes a worker from the registry and the database. Streams still
// assigned to it are reported through the worker-lost callback.
func (r *Registry) Remove(ctx context.Context, workerID models.ULID) error {
	r.mu.Lock()
	st, ok := r.state[workerID]
	if !ok {
		r.mu.Unlock()
		return models.ErrWorkerNotFound
	}
	orphaned := streamIDs(st.assigned)
	delete(r.state, workerID)
	r.mu.Unlock()

	if err := r.workers.Delete(ctx, workerID); err != nil {
		return err
	}

	r.logger.Info("worker removed",
		slog.String("worker_id", workerID.String()),
		slog.Int("orphaned_streams", len(orphaned)),
	)

	if len(orphaned) > 0 && r.onWorkerLost != nil {
		r.onWorkerLost(workerID, orphaned)
	}
	return nil
}

// sweepLoop periodically checks worker heartbeats.
func (r *Registry) sweepLoop(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.healthCheckPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sweep(ctx)
		}
	}
}

// sweep marks silent workers offline and fires the worker-lost callback with
// their assigned streams.
func (r *Registry) sweep(ctx context.Context) {
	now := time.Now()

	type lost struct {
		workerID models.ULID
		streams  []models.ULID
	}

	r.mu.Lock()
	var lostWorkers []lost
	for id, st := range r.state {
		if st.worker.Status != models.WorkerStatusOnline {
			continue
		}
		if !st.worker.HeartbeatExpired(now, r.heartbeatTimeout) {
			continue
		}

		st.worker.Status = models.WorkerStatusOffline
		lostWorkers = append(lostWorkers, lost{workerID: id, streams: streamIDs(st.assigned)})
		st.assigned = make(map[models.ULID]struct{})

		r.logger.Warn("worker lost",
			slog.String("worker_id", id.String()),
			slog.String("name", st.worker.Name),
		)
	}
	r.mu.Unlock()

	if len(lostWorkers) == 0 {
		return
	}

	ids := make([]models.ULID, len(lostWorkers))
	for i, l := range lostWorkers {
		ids[i] = l.workerID
	}
	if err := r.workers.MarkOffline(ctx, ids); err != nil {
		r.logger.Error("marking lost workers offline", slog.String("error", err.Error()))
	}

	if r.onWorkerLost != nil {
		for _, l := range lostWorkers {
			if len(l.streams) > 0 {
				r.onWorkerLost(l.workerID, l.streams)
			}
		}
	}
}

func streamIDs(set map[models.ULID]struct{}) []models.ULID {
	ids := make([]models.ULID, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids
}
