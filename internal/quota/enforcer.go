// Package quota enforces per-owner concurrent stream limits.
package quota

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/truongvando/ezstream-sub000/internal/models"
)

// defaultMaxResolution applies to owners without a stored plan.
const defaultMaxResolution = "1080p"

// SubscriptionStore is the subset of the subscription repository the
// enforcer needs.
type SubscriptionStore interface {
	GetByOwner(ctx context.Context, ownerID models.ULID) (*models.SubscriptionLimit, error)
}

// ActiveCounter counts an owner's streams in an active status.
type ActiveCounter interface {
	CountActiveByOwner(ctx context.Context, ownerID models.ULID) (int64, error)
}

// Enforcer answers whether an owner may activate another stream.
type Enforcer struct {
	subscriptions SubscriptionStore
	streams       ActiveCounter
	defaultLimit  int
	logger        *slog.Logger
}

// NewEnforcer creates an Enforcer. defaultLimit applies to owners without a
// subscription record.
func NewEnforcer(subscriptions SubscriptionStore, streams ActiveCounter, defaultLimit int, logger *slog.Logger) *Enforcer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Enforcer{
		subscriptions: subscriptions,
		streams:       streams,
		defaultLimit:  defaultLimit,
		logger:        logger,
	}
}

// LimitFor returns the owner's concurrent stream limit.
func (e *Enforcer) LimitFor(ctx context.Context, ownerID models.ULID) (int, error) {
	limit, err := e.subscriptions.GetByOwner(ctx, ownerID)
	if err != nil {
		return 0, fmt.Errorf("looking up subscription: %w", err)
	}
	if limit == nil {
		return e.defaultLimit, nil
	}
	return limit.MaxConcurrentStreams, nil
}

// MaxResolution returns the highest output resolution the owner's plan
// allows, falling back to the free-tier default when no plan is stored.
func (e *Enforcer) MaxResolution(ctx context.Context, ownerID models.ULID) (string, error) {
	limit, err := e.subscriptions.GetByOwner(ctx, ownerID)
	if err != nil {
		return "", fmt.Errorf("looking up subscription: %w", err)
	}
	if limit == nil || limit.MaxResolution == "" {
		return defaultMaxResolution, nil
	}
	return limit.MaxResolution, nil
}

// CanActivate returns nil when the owner has a free quota slot, or a
// QuotaExceededError when every slot is occupied by an active stream.
//
// The caller must flip the stream into an active status under the same
// per-stream lock it used for this check, so the count cannot race with a
// concurrent activation of the same stream. Concurrent activations of the
// owner's other streams are bounded by the orchestrator re-checking inside
// the transition.
func (e *Enforcer) CanActivate(ctx context.Context, ownerID models.ULID) error {
	limit, err := e.subscriptions.GetByOwner(ctx, ownerID)
	if err != nil {
		return fmt.Errorf("looking up subscription: %w", err)
	}

	// Administrative accounts are exempt from the quota entirely.
	if limit != nil && limit.Unlimited {
		return nil
	}

	allowed := e.defaultLimit
	if limit != nil {
		allowed = limit.MaxConcurrentStreams
	}

	active, err := e.streams.CountActiveByOwner(ctx, ownerID)
	if err != nil {
		return fmt.Errorf("counting active streams: %w", err)
	}

	if active >= int64(allowed) {
		e.logger.DebugContext(ctx, "quota exhausted",
			slog.String("owner_id", ownerID.String()),
			slog.Int64("active", active),
			slog.Int("allowed", allowed),
		)
		return &models.QuotaExceededError{OwnerID: ownerID, Active: int(active), Allowed: allowed}
	}
	return nil
}
