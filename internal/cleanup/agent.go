// Package cleanup removes source assets of ephemeral streams once they come
// to rest.
package cleanup

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/truongvando/ezstream-sub000/internal/metrics"
	"github.com/truongvando/ezstream-sub000/internal/models"
	"github.com/truongvando/ezstream-sub000/internal/repository"
	"github.com/truongvando/ezstream-sub000/internal/storage"
)

// StreamAssetDir returns the asset store directory holding a stream's media.
func StreamAssetDir(streamID models.ULID) string {
	return "streams/" + streamID.String()
}

// Agent periodically deletes assets of ephemeral streams that reached a
// resting state. Deletion is claimed through a database compare-and-set, so
// concurrent agents or repeated passes remove each stream's files at most
// once.
type Agent struct {
	streams  repository.StreamRepository
	store    *storage.AssetStore
	logger   *slog.Logger
	metrics  *metrics.Metrics
	interval time.Duration
	grace    time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewAgent creates a cleanup agent.
func NewAgent(streams repository.StreamRepository, store *storage.AssetStore, logger *slog.Logger) *Agent {
	if logger == nil {
		logger = slog.Default()
	}
	return &Agent{
		streams:  streams,
		store:    store,
		logger:   logger.With("component", "cleanup_agent"),
		interval: time.Minute,
	}
}

// WithInterval sets how often the agent scans for cleanup candidates.
func (a *Agent) WithInterval(interval time.Duration) *Agent {
	a.interval = interval
	return a
}

// WithGracePeriod delays asset removal until a stream has been at rest for at
// least the given duration.
func (a *Agent) WithGracePeriod(grace time.Duration) *Agent {
	a.grace = grace
	return a
}

// WithMetrics sets the metrics collector.
func (a *Agent) WithMetrics(m *metrics.Metrics) *Agent {
	a.metrics = m
	return a
}

// Start launches the background cleanup loop.
func (a *Agent) Start(ctx context.Context) {
	loopCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	a.wg.Add(1)
	go a.loop(loopCtx)
}

// Stop halts the cleanup loop and waits for it to finish.
func (a *Agent) Stop() {
	if a.cancel != nil {
		a.cancel()
	}
	a.wg.Wait()
}

func (a *Agent) loop(ctx context.Context) {
	defer a.wg.Done()

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := a.RunOnce(ctx); err != nil {
				a.logger.Error("cleanup pass failed", slog.String("error", err.Error()))
			}
		}
	}
}

// RunOnce performs a single cleanup pass. Safe to call concurrently; the
// per-stream claim guarantees each stream's assets are removed once.
func (a *Agent) RunOnce(ctx context.Context) error {
	candidates, err := a.streams.GetCleanupCandidates(ctx)
	if err != nil {
		return err
	}

	for _, stream := range candidates {
		if err := ctx.Err(); err != nil {
			return err
		}
		a.cleanupStream(ctx, stream)
	}
	return nil
}

func (a *Agent) cleanupStream(ctx context.Context, stream *models.Stream) {
	if a.grace > 0 && stream.LastStatusAt != nil && time.Since(*stream.LastStatusAt) < a.grace {
		// Still inside the grace window; a later pass picks it up.
		return
	}

	won, err := a.streams.ClaimAssetsDeleted(ctx, stream.ID, time.Now())
	if err != nil {
		a.logger.Error("claiming asset cleanup",
			slog.String("stream_id", stream.ID.String()),
			slog.String("error", err.Error()),
		)
		return
	}
	if !won {
		// Another pass already owns this stream.
		return
	}

	if err := a.store.RemoveDir(StreamAssetDir(stream.ID)); err != nil {
		a.logger.Error("removing stream assets",
			slog.String("stream_id", stream.ID.String()),
			slog.String("error", err.Error()),
		)
		return
	}

	if a.metrics != nil {
		a.metrics.IncAssetsCleaned()
	}

	// Leave a durable trace on the stream itself, not just in the logs.
	if err := a.streams.SetNote(ctx, stream.ID, "source assets removed after completion"); err != nil {
		a.logger.Warn("recording cleanup note",
			slog.String("stream_id", stream.ID.String()),
			slog.String("error", err.Error()),
		)
	}

	a.logger.Info("stream assets removed",
		slog.String("stream_id", stream.ID.String()),
		slog.String("status", string(stream.Status)),
	)
}
