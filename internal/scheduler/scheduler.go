// Package scheduler fires time-based stream transitions: one-shot scheduled
// starts and stops, and cron-style recurring starts. It only decides WHEN a
// transition should happen; the orchestrator owns whether it may.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/truongvando/ezstream-sub000/internal/models"
	"github.com/truongvando/ezstream-sub000/internal/repository"
)

// Controller is the subset of the orchestrator the scheduler drives.
type Controller interface {
	RequestStart(ctx context.Context, streamID models.ULID) error
	RequestStop(ctx context.Context, streamID models.ULID) error
}

// Scheduler periodically sweeps for streams whose scheduled start or stop
// time has arrived. Sweeps are idempotent: a trigger that already happened is
// not repeated because the one-shot timestamp is consumed and the stream's
// status has moved on.
type Scheduler struct {
	streams  repository.StreamRepository
	control  Controller
	logger   *slog.Logger
	interval time.Duration
	parser   cron.Parser

	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	lastSweep time.Time
}

// NewScheduler creates a Scheduler with a 15 second sweep interval.
func NewScheduler(streams repository.StreamRepository, control Controller, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		streams:  streams,
		control:  control,
		logger:   logger.With(slog.String("component", "scheduler")),
		interval: 15 * time.Second,
		parser:   cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow),
	}
}

// WithInterval sets the sweep interval.
func (s *Scheduler) WithInterval(interval time.Duration) *Scheduler {
	s.interval = interval
	return s
}

// Start launches the sweep loop. Recurrence windows open at this moment;
// cron fire times that passed while the process was down are not replayed.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Lock()
	s.lastSweep = time.Now()
	s.mu.Unlock()

	s.wg.Add(1)
	go s.run(ctx)
	s.logger.Info("scheduler started", slog.Duration("interval", s.interval))
}

// Stop halts the sweep loop and waits for an in-flight sweep to finish.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) run(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep runs one scheduling pass: due one-shot starts, due stops, then
// recurrence fires since the previous sweep.
func (s *Scheduler) Sweep(ctx context.Context) {
	now := time.Now()
	s.mu.Lock()
	since := s.lastSweep
	s.lastSweep = now
	s.mu.Unlock()

	s.sweepStarts(ctx, now)
	s.sweepStops(ctx, now)
	s.sweepRecurring(ctx, since, now)
}

func (s *Scheduler) sweepStarts(ctx context.Context, now time.Time) {
	due, err := s.streams.GetDueForStart(ctx, now)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to query due starts", slog.Any("error", err))
		return
	}
	for _, stream := range due {
		if err := s.control.RequestStart(ctx, stream.ID); err != nil {
			if errors.Is(err, models.ErrStreamAlreadyActive) {
				continue
			}
			var quotaErr *models.QuotaExceededError
			if errors.As(err, &quotaErr) {
				// The owner was over quota at the scheduled moment.
				// Record why the stream did not go up and consume the
				// trigger; retrying every sweep would just hammer the
				// quota gate.
				if err := s.streams.RecordScheduleRejection(ctx, stream.ID, quotaErr.Error()); err != nil {
					s.logger.ErrorContext(ctx, "failed to record quota rejection",
						slog.String("stream_id", stream.ID.String()),
						slog.Any("error", err),
					)
				}
			}
			s.logger.WarnContext(ctx, "scheduled start failed",
				slog.String("stream_id", stream.ID.String()),
				slog.Any("error", err),
			)
			continue
		}
		// One-shot: consume the trigger so a later stop does not
		// bounce the stream straight back up. The targeted update leaves
		// the status the orchestrator just committed untouched.
		if err := s.streams.ClearScheduledAt(ctx, stream.ID); err != nil {
			s.logger.ErrorContext(ctx, "failed to clear scheduled start",
				slog.String("stream_id", stream.ID.String()),
				slog.Any("error", err),
			)
		}
		s.logger.InfoContext(ctx, "scheduled start fired", slog.String("stream_id", stream.ID.String()))
	}
}

func (s *Scheduler) sweepStops(ctx context.Context, now time.Time) {
	due, err := s.streams.GetDueForStop(ctx, now)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to query due stops", slog.Any("error", err))
		return
	}
	for _, stream := range due {
		if err := s.control.RequestStop(ctx, stream.ID); err != nil {
			if errors.Is(err, models.ErrStreamNotActive) {
				continue
			}
			s.logger.WarnContext(ctx, "scheduled stop failed",
				slog.String("stream_id", stream.ID.String()),
				slog.Any("error", err),
			)
			continue
		}
		if err := s.streams.ClearScheduledEndAt(ctx, stream.ID); err != nil {
			s.logger.ErrorContext(ctx, "failed to clear scheduled stop",
				slog.String("stream_id", stream.ID.String()),
				slog.Any("error", err),
			)
		}
		s.logger.InfoContext(ctx, "scheduled stop fired", slog.String("stream_id", stream.ID.String()))
	}
}

// sweepRecurring fires streams whose cron expression had an occurrence in
// (since, now]. Streams still active from the previous occurrence are left
// alone.
func (s *Scheduler) sweepRecurring(ctx context.Context, since, now time.Time) {
	recurring, err := s.streams.GetRecurring(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to query recurring streams", slog.Any("error", err))
		return
	}
	for _, stream := range recurring {
		if stream.Status.IsActive() {
			continue
		}
		schedule, err := s.parser.Parse(stream.RecurrenceCron)
		if err != nil {
			s.logger.WarnContext(ctx, "invalid recurrence expression",
				slog.String("stream_id", stream.ID.String()),
				slog.String("expression", stream.RecurrenceCron),
				slog.Any("error", err),
			)
			continue
		}
		next := schedule.Next(since)
		if next.After(now) {
			continue
		}
		if err := s.control.RequestStart(ctx, stream.ID); err != nil {
			if errors.Is(err, models.ErrStreamAlreadyActive) {
				continue
			}
			s.logger.WarnContext(ctx, "recurring start failed",
				slog.String("stream_id", stream.ID.String()),
				slog.Any("error", err),
			)
			continue
		}
		s.logger.InfoContext(ctx, "recurring start fired",
			slog.String("stream_id", stream.ID.String()),
			slog.String("expression", stream.RecurrenceCron),
		)
	}
}
