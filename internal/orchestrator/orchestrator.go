// Package orchestrator drives the stream lifecycle state machine. It owns
// every status transition: API start/stop requests, scheduler triggers,
// asynchronous worker callbacks, and fleet loss all funnel through here, each
// serialized by a per-stream lock so transitions never interleave.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/truongvando/ezstream-sub000/internal/events"
	"github.com/truongvando/ezstream-sub000/internal/metrics"
	"github.com/truongvando/ezstream-sub000/internal/models"
	"github.com/truongvando/ezstream-sub000/internal/progress"
	"github.com/truongvando/ezstream-sub000/internal/repository"
	"github.com/truongvando/ezstream-sub000/pkg/relayd/types"
)

// WorkerPool hands out worker capacity for streams.
type WorkerPool interface {
	Assign(streamID models.ULID) (*models.WorkerNode, error)
	Release(streamID models.ULID)
	Reattach(workerID, streamID models.ULID) bool
	Get(workerID models.ULID) (*models.WorkerNode, bool)
}

// CommandDispatcher delivers start and stop commands to workers.
type CommandDispatcher interface {
	Start(ctx context.Context, worker *models.WorkerNode, platform models.Platform, cmd *types.StartCommand) error
	Stop(ctx context.Context, worker *models.WorkerNode, cmd *types.StopCommand) error
}

// PlaylistResolver turns a stream's playlist into the final play order.
type PlaylistResolver interface {
	Resolve(stream *models.Stream, items []models.PlaylistItem) ([]types.PlaylistEntry, error)
}

// QuotaChecker answers whether an owner may activate another stream and
// exposes the plan's encoding ceiling.
type QuotaChecker interface {
	CanActivate(ctx context.Context, ownerID models.ULID) error
	MaxResolution(ctx context.Context, ownerID models.ULID) (string, error)
}

// Orchestrator coordinates stream lifecycle transitions across the quota
// enforcer, playlist resolver, worker fleet, and command dispatcher.
type Orchestrator struct {
	streams    repository.StreamRepository
	pool       WorkerPool
	dispatcher CommandDispatcher
	resolver   PlaylistResolver
	quota      QuotaChecker
	tracker    *progress.Tracker
	publisher  events.Publisher
	metrics    *metrics.Metrics
	logger     *slog.Logger

	streamLocks *keyedMutex
	ownerLocks  *keyedMutex

	// mu guards inFlight and pendingStop. A stop requested while the
	// stream's start is still in flight is recorded and applied once the
	// start resolves, instead of blocking the caller on the stream lock.
	mu          sync.Mutex
	inFlight    map[models.ULID]struct{}
	pendingStop map[models.ULID]struct{}
}

// NewOrchestrator creates an Orchestrator. Events default to a no-op
// publisher; use WithPublisher and WithMetrics to wire observability.
func NewOrchestrator(
	streams repository.StreamRepository,
	pool WorkerPool,
	dispatcher CommandDispatcher,
	resolver PlaylistResolver,
	quota QuotaChecker,
	tracker *progress.Tracker,
	logger *slog.Logger,
) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		streams:     streams,
		pool:        pool,
		dispatcher:  dispatcher,
		resolver:    resolver,
		quota:       quota,
		tracker:     tracker,
		publisher:   events.NoopPublisher{},
		logger:      logger.With(slog.String("component", "orchestrator")),
		streamLocks: newKeyedMutex(),
		ownerLocks:  newKeyedMutex(),
		inFlight:    make(map[models.ULID]struct{}),
		pendingStop: make(map[models.ULID]struct{}),
	}
}

// WithPublisher sets the lifecycle event publisher.
func (o *Orchestrator) WithPublisher(p events.Publisher) *Orchestrator {
	o.publisher = p
	return o
}

// WithMetrics sets the metrics collector.
func (o *Orchestrator) WithMetrics(m *metrics.Metrics) *Orchestrator {
	o.metrics = m
	return o
}

// RequestStart activates a stream: it enforces the owner's quota, resolves
// the playlist into final play order, assigns a worker, and dispatches the
// start command. On success the stream is streaming on the assigned worker;
// any failure after the starting transition lands the stream in the error
// state with a message.
func (o *Orchestrator) RequestStart(ctx context.Context, streamID models.ULID) error {
	o.streamLocks.Lock(streamID)
	defer o.streamLocks.Unlock(streamID)

	stream, err := o.streams.GetByIDWithPlaylist(ctx, streamID)
	if err != nil {
		return fmt.Errorf("loading stream: %w", err)
	}
	if stream == nil {
		return models.ErrStreamNotFound
	}
	if stream.Status.IsActive() {
		return models.ErrStreamAlreadyActive
	}

	// Quota check and the starting transition commit under the owner lock,
	// so two concurrent starts by the same owner cannot both pass the
	// check against the same active count.
	entries, err := o.admitStart(ctx, stream)
	if err != nil {
		return err
	}

	o.markInFlight(streamID)
	defer o.finishStart(ctx, stream)

	worker, err := o.pool.Assign(streamID)
	if err != nil {
		o.failStart(ctx, stream, "no_capacity", err.Error())
		return err
	}

	o.tracker.SetStage(streamID, progress.StageConnecting, "dispatching to "+worker.Name)

	// Plan lookup failure must not block an admitted start.
	maxResolution, err := o.quota.MaxResolution(ctx, stream.OwnerID)
	if err != nil {
		o.logger.Warn("plan resolution lookup failed",
			slog.String("owner_id", stream.OwnerID.String()),
			slog.String("error", err.Error()),
		)
	}

	cmd := &types.StartCommand{
		StreamID:      streamID.String(),
		RTMPURL:       stream.RTMPURL,
		StreamKey:     stream.StreamKey,
		Playlist:      entries,
		Loop:          stream.Loop,
		MaxResolution: maxResolution,
	}
	began := time.Now()
	err = o.dispatcher.Start(ctx, worker, stream.Platform, cmd)
	if o.metrics != nil {
		o.metrics.ObserveDispatch(time.Since(began).Seconds())
	}
	if err != nil {
		o.pool.Release(streamID)
		o.failStart(ctx, stream, startFailureReason(err), err.Error())
		return err
	}

	if err := stream.MarkStreaming(worker.ID); err != nil {
		return err
	}
	if err := o.streams.Update(ctx, stream); err != nil {
		return fmt.Errorf("persisting streaming transition: %w", err)
	}
	if o.metrics != nil {
		o.metrics.IncStreamStart("accepted")
	}
	o.publish(ctx, events.EventStreamStreaming, stream, "")
	o.logger.InfoContext(ctx, "stream started",
		slog.String("stream_id", streamID.String()),
		slog.String("worker_id", worker.ID.String()),
	)
	return nil
}

// admitStart runs the quota check, playlist resolution, and the transition
// into starting under the owner lock. The caller holds the stream lock.
func (o *Orchestrator) admitStart(ctx context.Context, stream *models.Stream) ([]types.PlaylistEntry, error) {
	o.ownerLocks.Lock(stream.OwnerID)
	defer o.ownerLocks.Unlock(stream.OwnerID)

	if err := o.quota.CanActivate(ctx, stream.OwnerID); err != nil {
		var quotaErr *models.QuotaExceededError
		if errors.As(err, &quotaErr) && o.metrics != nil {
			o.metrics.IncQuotaReject()
			o.metrics.IncStreamStart("quota_rejected")
		}
		return nil, err
	}

	entries, err := o.resolver.Resolve(stream, stream.PlaylistItems)
	if err != nil {
		return nil, err
	}

	if err := stream.MarkStarting(); err != nil {
		return nil, err
	}
	if err := o.streams.Update(ctx, stream); err != nil {
		return nil, fmt.Errorf("persisting starting transition: %w", err)
	}

	o.tracker.BeginCycle(stream.ID, len(entries))
	o.tracker.SetStage(stream.ID, progress.StagePreparing, "")
	o.publish(ctx, events.EventStreamStarting, stream, "")
	return entries, nil
}

// failStart moves a starting stream into the error state.
func (o *Orchestrator) failStart(ctx context.Context, stream *models.Stream, reason, message string) {
	if err := stream.MarkError(message); err != nil {
		o.logger.ErrorContext(ctx, "failed to mark stream errored",
			slog.String("stream_id", stream.ID.String()), slog.Any("error", err))
		return
	}
	if err := o.streams.Update(ctx, stream); err != nil {
		o.logger.ErrorContext(ctx, "failed to persist error transition",
			slog.String("stream_id", stream.ID.String()), slog.Any("error", err))
	}
	o.tracker.SetStage(stream.ID, progress.StageError, message)
	o.publish(ctx, events.EventStreamFailed, stream, message)
	if o.metrics != nil {
		o.metrics.IncStreamStart("failed")
		o.metrics.IncStreamFailure(reason)
	}
}

// finishStart clears the in-flight record and applies a stop that arrived
// while the start was resolving. The caller still holds the stream lock.
func (o *Orchestrator) finishStart(ctx context.Context, stream *models.Stream) {
	o.mu.Lock()
	delete(o.inFlight, stream.ID)
	_, stopRequested := o.pendingStop[stream.ID]
	delete(o.pendingStop, stream.ID)
	o.mu.Unlock()

	if stopRequested && stream.Status == models.StreamStatusStreaming {
		o.logger.InfoContext(ctx, "applying stop requested during start",
			slog.String("stream_id", stream.ID.String()))
		if err := o.stopLocked(ctx, stream); err != nil {
			o.logger.ErrorContext(ctx, "deferred stop failed",
				slog.String("stream_id", stream.ID.String()), slog.Any("error", err))
		}
	}
}

func (o *Orchestrator) markInFlight(streamID models.ULID) {
	o.mu.Lock()
	o.inFlight[streamID] = struct{}{}
	o.mu.Unlock()
}

func startFailureReason(err error) string {
	var unreachable *models.WorkerUnreachableError
	var ackTimeout *models.AckTimeoutError
	var failure *models.WorkerFailureError
	switch {
	case errors.As(err, &ackTimeout):
		return "ack_timeout"
	case errors.As(err, &unreachable):
		return "worker_unreachable"
	case errors.As(err, &failure):
		return "worker_rejected"
	default:
		return "dispatch"
	}
}

// RequestStop halts a streaming stream. If the stream's start is still in
// flight, the stop is recorded and applied as soon as the start resolves; the
// caller does not block. The stream moves to stopping here and lands in
// inactive when the worker confirms with a stopped event.
func (o *Orchestrator) RequestStop(ctx context.Context, streamID models.ULID) error {
	o.mu.Lock()
	if _, starting := o.inFlight[streamID]; starting {
		o.pendingStop[streamID] = struct{}{}
		o.mu.Unlock()
		o.logger.InfoContext(ctx, "stop queued behind in-flight start",
			slog.String("stream_id", streamID.String()))
		return nil
	}
	o.mu.Unlock()

	o.streamLocks.Lock(streamID)
	defer o.streamLocks.Unlock(streamID)

	stream, err := o.streams.GetByID(ctx, streamID)
	if err != nil {
		return fmt.Errorf("loading stream: %w", err)
	}
	if stream == nil {
		return models.ErrStreamNotFound
	}
	if stream.Status != models.StreamStatusStreaming {
		return models.ErrStreamNotActive
	}
	return o.stopLocked(ctx, stream)
}

// stopLocked dispatches the stop command and transitions streaming to
// stopping. The caller holds the stream lock and the stream is streaming.
func (o *Orchestrator) stopLocked(ctx context.Context, stream *models.Stream) error {
	workerID := stream.AssignedWorkerID

	if err := stream.MarkStopping(); err != nil {
		return err
	}
	if err := o.streams.Update(ctx, stream); err != nil {
		return fmt.Errorf("persisting stopping transition: %w", err)
	}
	o.tracker.SetStage(stream.ID, progress.StageStopping, "")
	o.publish(ctx, events.EventStreamStopping, stream, "")

	if workerID != nil {
		if worker, ok := o.pool.Get(*workerID); ok {
			cmd := &types.StopCommand{StreamID: stream.ID.String()}
			err := o.dispatcher.Stop(ctx, worker, cmd)
			if err == nil {
				// The worker confirms with a stopped event, which
				// finishes the transition to inactive.
				return nil
			}
			o.logger.WarnContext(ctx, "stop command failed, releasing stream anyway",
				slog.String("stream_id", stream.ID.String()),
				slog.String("worker_id", workerID.String()),
				slog.Any("error", err),
			)
		}
	}

	// The worker is gone or unreachable; finish the stop on our side so
	// the slot and quota are not held by a dead session.
	return o.completeStop(ctx, stream)
}

// completeStop finishes the stopping transition and releases the worker
// slot. Ephemeral one-off streams settle in the terminal completed state so
// the cleanup agent can reclaim their assets; everything else returns to
// inactive and can be started again. The caller holds the stream lock.
func (o *Orchestrator) completeStop(ctx context.Context, stream *models.Stream) error {
	finalType := events.EventStreamStopped
	stage := progress.StageStopped
	if stream.Ephemeral && stream.RecurrenceCron == "" {
		if err := stream.MarkCompleted(); err != nil {
			return err
		}
		finalType = events.EventStreamCompleted
		stage = progress.StageCompleted
	} else {
		if err := stream.MarkInactive(); err != nil {
			return err
		}
	}
	if err := o.streams.Update(ctx, stream); err != nil {
		return fmt.Errorf("persisting stop completion: %w", err)
	}
	o.pool.Release(stream.ID)
	o.tracker.SetStage(stream.ID, stage, "")
	o.publish(ctx, finalType, stream, "")
	if o.metrics != nil {
		o.metrics.IncStreamStop()
	}
	return nil
}

// ForceStop halts a stream in any active state, used before deletion. Errors
// from the worker are logged and ignored; the stream always ends inactive.
func (o *Orchestrator) ForceStop(ctx context.Context, streamID models.ULID) error {
	o.streamLocks.Lock(streamID)
	defer o.streamLocks.Unlock(streamID)

	stream, err := o.streams.GetByID(ctx, streamID)
	if err != nil {
		return fmt.Errorf("loading stream: %w", err)
	}
	if stream == nil {
		return models.ErrStreamNotFound
	}
	if !stream.Status.IsActive() {
		return nil
	}

	if workerID := stream.AssignedWorkerID; workerID != nil {
		if worker, ok := o.pool.Get(*workerID); ok {
			cmd := &types.StopCommand{StreamID: streamID.String()}
			if err := o.dispatcher.Stop(ctx, worker, cmd); err != nil {
				o.logger.WarnContext(ctx, "force stop command failed",
					slog.String("stream_id", streamID.String()),
					slog.Any("error", err),
				)
			}
		}
	}

	if stream.Status == models.StreamStatusStreaming || stream.Status == models.StreamStatusStarting {
		// starting has no edge to stopping; route through error instead
		// so the transition history stays legal.
		if stream.Status == models.StreamStatusStarting {
			if err := stream.MarkError("force stopped"); err != nil {
				return err
			}
		} else {
			if err := stream.MarkStopping(); err != nil {
				return err
			}
		}
	}
	if stream.Status == models.StreamStatusStopping {
		if err := stream.MarkInactive(); err != nil {
			return err
		}
	}
	if err := o.streams.Update(ctx, stream); err != nil {
		return fmt.Errorf("persisting forced stop: %w", err)
	}
	o.pool.Release(streamID)
	o.tracker.SetStage(streamID, progress.StageStopped, "force stopped")
	o.publish(ctx, events.EventStreamStopped, stream, "force stopped")
	if o.metrics != nil {
		o.metrics.IncStreamStop()
	}
	return nil
}

// Retry re-activates a stream that ended in the error state.
func (o *Orchestrator) Retry(ctx context.Context, streamID models.ULID) error {
	stream, err := o.streams.GetByID(ctx, streamID)
	if err != nil {
		return fmt.Errorf("loading stream: %w", err)
	}
	if stream == nil {
		return models.ErrStreamNotFound
	}
	if stream.Status != models.StreamStatusError {
		return &models.TransitionError{StreamID: streamID, From: stream.Status, To: models.StreamStatusStarting}
	}
	return o.RequestStart(ctx, streamID)
}

// HandleWorkerEvent applies an asynchronous lifecycle callback from a worker.
// Events referencing an unassigned worker or an already-settled stream are
// ignored, so redelivered callbacks are harmless.
func (o *Orchestrator) HandleWorkerEvent(ctx context.Context, ev *types.StreamEvent) error {
	streamID, err := models.ParseULID(ev.StreamID)
	if err != nil {
		return fmt.Errorf("parsing stream id %q: %w", ev.StreamID, err)
	}

	if ev.Type == types.EventProgress {
		// Progress is high-frequency and only touches the tracker; skip
		// the stream lock and the database entirely.
		return o.tracker.UpdatePlayback(streamID, ev.ItemIndex, ev.ItemPath, ev.PositionSeconds, ev.BitrateKbps)
	}

	o.streamLocks.Lock(streamID)
	defer o.streamLocks.Unlock(streamID)

	stream, err := o.streams.GetByID(ctx, streamID)
	if err != nil {
		return fmt.Errorf("loading stream: %w", err)
	}
	if stream == nil {
		return models.ErrStreamNotFound
	}

	if stream.AssignedWorkerID != nil && ev.WorkerID != "" {
		workerID, err := models.ParseULID(ev.WorkerID)
		if err != nil {
			return fmt.Errorf("parsing worker id %q: %w", ev.WorkerID, err)
		}
		if workerID != *stream.AssignedWorkerID {
			o.logger.WarnContext(ctx, "ignoring event from stale worker",
				slog.String("stream_id", ev.StreamID),
				slog.String("worker_id", ev.WorkerID),
			)
			return nil
		}
	}

	switch ev.Type {
	case types.EventStarted:
		return o.handleStarted(ctx, stream)
	case types.EventStopped:
		return o.handleStopped(ctx, stream)
	case types.EventCompleted:
		return o.handleCompleted(ctx, stream)
	case types.EventFailed:
		return o.handleFailed(ctx, stream, ev.Reason)
	default:
		return fmt.Errorf("unknown worker event type %q", ev.Type)
	}
}

func (o *Orchestrator) handleStarted(ctx context.Context, stream *models.Stream) error {
	if stream.Status != models.StreamStatusStreaming {
		return nil
	}
	return o.tracker.SetStage(stream.ID, progress.StageStreaming, "")
}

func (o *Orchestrator) handleStopped(ctx context.Context, stream *models.Stream) error {
	switch stream.Status {
	case models.StreamStatusStopping:
		return o.completeStop(ctx, stream)
	case models.StreamStatusStreaming:
		// Worker-side stop we did not request, e.g. an operator draining
		// the node. Walk the same edges a requested stop takes.
		if err := stream.MarkStopping(); err != nil {
			return err
		}
		return o.completeStop(ctx, stream)
	default:
		return nil
	}
}

func (o *Orchestrator) handleCompleted(ctx context.Context, stream *models.Stream) error {
	switch stream.Status {
	case models.StreamStatusStreaming:
		if err := stream.MarkStopping(); err != nil {
			return err
		}
	case models.StreamStatusStopping:
	default:
		return nil
	}
	if err := stream.MarkCompleted(); err != nil {
		return err
	}
	if err := o.streams.Update(ctx, stream); err != nil {
		return fmt.Errorf("persisting completed transition: %w", err)
	}
	o.pool.Release(stream.ID)
	o.tracker.SetStage(stream.ID, progress.StageCompleted, "")
	o.publish(ctx, events.EventStreamCompleted, stream, "")
	return nil
}

func (o *Orchestrator) handleFailed(ctx context.Context, stream *models.Stream, reason string) error {
	switch stream.Status {
	case models.StreamStatusStarting, models.StreamStatusStreaming:
		if err := stream.MarkError(reason); err != nil {
			return err
		}
		if err := o.streams.Update(ctx, stream); err != nil {
			return fmt.Errorf("persisting error transition: %w", err)
		}
		o.pool.Release(stream.ID)
		o.tracker.SetStage(stream.ID, progress.StageError, reason)
		o.publish(ctx, events.EventStreamFailed, stream, reason)
		if o.metrics != nil {
			o.metrics.IncStreamFailure("worker_reported")
		}
		return nil
	case models.StreamStatusStopping:
		// The session died while draining; the stop still took effect.
		return o.completeStop(ctx, stream)
	default:
		return nil
	}
}

// HandleWorkerLost moves every stream assigned to a lost worker into the
// error state so it can be retried. The fleet registry calls this after a
// heartbeat sweep marks the worker offline; assignments are already cleared.
func (o *Orchestrator) HandleWorkerLost(workerID models.ULID, streamIDs []models.ULID) {
	ctx := context.Background()
	if o.metrics != nil {
		o.metrics.IncWorkerLost()
	}
	o.publishWorkerLost(ctx, workerID)

	for _, streamID := range streamIDs {
		o.streamLocks.Lock(streamID)
		if err := o.failLostStream(ctx, streamID, workerID); err != nil {
			o.logger.ErrorContext(ctx, "failed to fail over lost stream",
				slog.String("stream_id", streamID.String()),
				slog.String("worker_id", workerID.String()),
				slog.Any("error", err),
			)
		}
		o.streamLocks.Unlock(streamID)
	}
}

func (o *Orchestrator) failLostStream(ctx context.Context, streamID, workerID models.ULID) error {
	stream, err := o.streams.GetByID(ctx, streamID)
	if err != nil {
		return err
	}
	if stream == nil || !stream.Status.IsActive() {
		return nil
	}

	const reason = "worker lost"
	if stream.Status == models.StreamStatusStopping {
		// The stop was already in progress; the worker dying finishes it.
		return o.completeStop(ctx, stream)
	}
	if err := stream.MarkError(reason); err != nil {
		return err
	}
	if err := o.streams.Update(ctx, stream); err != nil {
		return err
	}
	o.tracker.SetStage(streamID, progress.StageError, reason)
	o.publish(ctx, events.EventStreamFailed, stream, reason)
	if o.metrics != nil {
		o.metrics.IncStreamFailure("worker_lost")
	}
	return nil
}

// Recover reconciles stream state after a control plane restart. Streams
// caught mid-start are failed, streaming streams are reattached to their
// workers when those are still known, and half-finished stops are completed.
func (o *Orchestrator) Recover(ctx context.Context) error {
	starting, err := o.streams.GetByStatus(ctx, models.StreamStatusStarting)
	if err != nil {
		return fmt.Errorf("loading starting streams: %w", err)
	}
	for _, stream := range starting {
		o.failStart(ctx, stream, "restart", "interrupted by control plane restart")
	}

	streaming, err := o.streams.GetByStatus(ctx, models.StreamStatusStreaming)
	if err != nil {
		return fmt.Errorf("loading streaming streams: %w", err)
	}
	for _, stream := range streaming {
		if stream.AssignedWorkerID != nil && o.pool.Reattach(*stream.AssignedWorkerID, stream.ID) {
			o.tracker.BeginCycle(stream.ID, len(stream.PlaylistItems))
			o.tracker.SetStage(stream.ID, progress.StageStreaming, "reattached after restart")
			o.logger.InfoContext(ctx, "reattached stream to worker",
				slog.String("stream_id", stream.ID.String()),
				slog.String("worker_id", stream.AssignedWorkerID.String()),
			)
			continue
		}
		if err := stream.MarkError("worker unavailable after restart"); err != nil {
			return err
		}
		if err := o.streams.Update(ctx, stream); err != nil {
			return fmt.Errorf("persisting restart failover: %w", err)
		}
		o.publish(ctx, events.EventStreamFailed, stream, "worker unavailable after restart")
	}

	stopping, err := o.streams.GetByStatus(ctx, models.StreamStatusStopping)
	if err != nil {
		return fmt.Errorf("loading stopping streams: %w", err)
	}
	for _, stream := range stopping {
		if err := o.completeStop(ctx, stream); err != nil {
			return fmt.Errorf("completing interrupted stop: %w", err)
		}
	}
	return nil
}

func (o *Orchestrator) publish(ctx context.Context, typ events.EventType, stream *models.Stream, reason string) {
	event := &events.LifecycleEvent{
		Type:     typ,
		StreamID: stream.ID,
		OwnerID:  stream.OwnerID,
		WorkerID: stream.AssignedWorkerID,
		Status:   stream.Status,
		Reason:   reason,
		At:       time.Now().UTC(),
	}
	if err := o.publisher.Publish(ctx, event); err != nil {
		o.logger.WarnContext(ctx, "failed to publish lifecycle event",
			slog.String("type", string(typ)),
			slog.String("stream_id", stream.ID.String()),
			slog.Any("error", err),
		)
	}
}

func (o *Orchestrator) publishWorkerLost(ctx context.Context, workerID models.ULID) {
	event := &events.LifecycleEvent{
		Type:     events.EventWorkerLost,
		WorkerID: &workerID,
		At:       time.Now().UTC(),
	}
	if err := o.publisher.Publish(ctx, event); err != nil {
		o.logger.WarnContext(ctx, "failed to publish worker lost event",
			slog.String("worker_id", workerID.String()),
			slog.Any("error", err),
		)
	}
}
