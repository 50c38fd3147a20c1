package progress

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/truongvando/ezstream-sub000/internal/models"
)

// ErrNoCycle is returned when updating a stream with no running cycle.
var ErrNoCycle = errors.New("no progress cycle for stream")

// Subscriber is a client receiving progress events. A zero StreamID
// subscribes to all streams.
type Subscriber struct {
	ID       string
	StreamID models.ULID
	Events   chan *Event
}

// Tracker maintains per-stream progress snapshots and broadcasts updates.
// The percent is monotonic within one cycle; BeginCycle resets it.
type Tracker struct {
	mu          sync.RWMutex
	snapshots   map[models.ULID]*Snapshot
	subscribers map[string]*Subscriber
	logger      *slog.Logger

	snapshotTTL   time.Duration
	cleanupTicker *time.Ticker
	stopCleanup   chan struct{}
}

// NewTracker creates a progress tracker.
func NewTracker(logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		snapshots:   make(map[models.ULID]*Snapshot),
		subscribers: make(map[string]*Subscriber),
		logger:      logger.With("component", "progress_tracker"),
		snapshotTTL: 5 * time.Minute,
		stopCleanup: make(chan struct{}),
	}
}

// WithSnapshotTTL sets how long terminal snapshots are retained.
func (t *Tracker) WithSnapshotTTL(ttl time.Duration) *Tracker {
	t.snapshotTTL = ttl
	return t
}

// Start begins background cleanup of stale terminal snapshots.
func (t *Tracker) Start() {
	t.cleanupTicker = time.NewTicker(time.Minute)
	go t.cleanupLoop()
}

// Stop halts the background cleanup.
func (t *Tracker) Stop() {
	if t.cleanupTicker != nil {
		t.cleanupTicker.Stop()
		close(t.stopCleanup)
	}
}

func (t *Tracker) cleanupLoop() {
	for {
		select {
		case <-t.cleanupTicker.C:
			t.cleanupStale()
		case <-t.stopCleanup:
			return
		}
	}
}

func (t *Tracker) cleanupStale() {
	t.mu.Lock()
	defer t.mu.Unlock()

	cutoff := time.Now().Add(-t.snapshotTTL)
	removed := 0
	for id, snap := range t.snapshots {
		if snap.Stage.IsTerminal() && snap.CompletedAt != nil && snap.CompletedAt.Before(cutoff) {
			delete(t.snapshots, id)
			removed++
		}
	}
	if removed > 0 {
		t.logger.Debug("cleaned up stale snapshots", "count", removed)
	}
}

// BeginCycle starts a new progress cycle for a stream. The percent resets to
// zero and the cycle counter increments.
func (t *Tracker) BeginCycle(streamID models.ULID, itemCount int) *Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	cycle := 1
	if prev, ok := t.snapshots[streamID]; ok {
		cycle = prev.Cycle + 1
	}

	snap := &Snapshot{
		StreamID:  streamID,
		Cycle:     cycle,
		Stage:     StagePreparing,
		Percent:   0,
		Message:   "preparing playlist",
		ItemCount: itemCount,
		StartedAt: now,
		UpdatedAt: now,
	}
	t.snapshots[streamID] = snap
	t.broadcastLocked(snap)
	return snap.Clone()
}

// SetStage advances the stream's cycle to a new stage. The percent never
// moves backwards within the cycle.
func (t *Tracker) SetStage(streamID models.ULID, stage Stage, message string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	snap, ok := t.snapshots[streamID]
	if !ok {
		return ErrNoCycle
	}

	now := time.Now()
	snap.Stage = stage
	snap.Message = message
	snap.UpdatedAt = now
	if floor := stageFloor[stage]; floor > snap.Percent {
		snap.Percent = floor
	}
	if stage.IsTerminal() {
		snap.CompletedAt = &now
		if stage == StageCompleted || stage == StageStopped {
			snap.Percent = 100
		}
	}

	t.broadcastLocked(snap)
	return nil
}

// UpdatePlayback records a playback position report from the worker. The
// derived percent is clamped so it never decreases within the cycle, even
// when a looping playlist wraps back to its first item.
func (t *Tracker) UpdatePlayback(streamID models.ULID, itemIndex int, itemPath string, positionSeconds float64, bitrateKbps int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	snap, ok := t.snapshots[streamID]
	if !ok {
		return ErrNoCycle
	}

	snap.Stage = StageStreaming
	snap.ItemIndex = itemIndex
	snap.ItemPath = itemPath
	snap.PositionSeconds = positionSeconds
	snap.BitrateKbps = bitrateKbps
	snap.UpdatedAt = time.Now()

	percent := playbackPercent(itemIndex, snap.ItemCount)
	if percent > snap.Percent {
		snap.Percent = percent
	}

	t.broadcastLocked(snap)
	return nil
}

// playbackPercent maps playlist position into the 20..95 band reserved for
// the streaming stage.
func playbackPercent(itemIndex, itemCount int) float64 {
	if itemCount <= 0 {
		return stageFloor[StageStreaming]
	}
	if itemIndex >= itemCount {
		itemIndex = itemCount - 1
	}
	frac := float64(itemIndex) / float64(itemCount)
	return stageFloor[StageStreaming] + frac*(stageFloor[StageStopping]-stageFloor[StageStreaming])
}

// Get returns a copy of the stream's current snapshot.
func (t *Tracker) Get(streamID models.ULID) (*Snapshot, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	snap, ok := t.snapshots[streamID]
	if !ok {
		return nil, false
	}
	return snap.Clone(), true
}

// GetAll returns copies of all tracked snapshots.
func (t *Tracker) GetAll() []*Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]*Snapshot, 0, len(t.snapshots))
	for _, snap := range t.snapshots {
		out = append(out, snap.Clone())
	}
	return out
}

// Subscribe registers a progress event channel. Pass a zero streamID to
// receive events for every stream.
func (t *Tracker) Subscribe(streamID models.ULID, buffer int) *Subscriber {
	if buffer <= 0 {
		buffer = 16
	}
	sub := &Subscriber{
		ID:       ulid.Make().String(),
		StreamID: streamID,
		Events:   make(chan *Event, buffer),
	}

	t.mu.Lock()
	t.subscribers[sub.ID] = sub
	t.mu.Unlock()
	return sub
}

// Unsubscribe removes a subscriber and closes its channel.
func (t *Tracker) Unsubscribe(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if sub, ok := t.subscribers[id]; ok {
		delete(t.subscribers, id)
		close(sub.Events)
	}
}

// broadcastLocked delivers a snapshot to matching subscribers. Slow
// subscribers drop events rather than blocking the tracker.
func (t *Tracker) broadcastLocked(snap *Snapshot) {
	for _, sub := range t.subscribers {
		if !sub.StreamID.IsZero() && sub.StreamID != snap.StreamID {
			continue
		}
		select {
		case sub.Events <- &Event{StreamID: snap.StreamID, Snapshot: snap.Clone()}:
		default:
		}
	}
}
