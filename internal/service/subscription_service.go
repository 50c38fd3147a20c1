package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/truongvando/ezstream-sub000/internal/models"
	"github.com/truongvando/ezstream-sub000/internal/repository"
)

// SubscriptionService manages per-owner subscription limits.
type SubscriptionService struct {
	subscriptions repository.SubscriptionRepository
	defaultLimit  int
	logger        *slog.Logger
}

// NewSubscriptionService creates a new subscription service. Owners without
// a stored limit fall back to defaultLimit concurrent streams.
func NewSubscriptionService(subscriptions repository.SubscriptionRepository, defaultLimit int) *SubscriptionService {
	return &SubscriptionService{
		subscriptions: subscriptions,
		defaultLimit:  defaultLimit,
		logger:        slog.Default(),
	}
}

// WithLogger sets the logger for the service.
func (s *SubscriptionService) WithLogger(logger *slog.Logger) *SubscriptionService {
	s.logger = logger
	return s
}

// Get retrieves the owner's subscription limit. Owners with no stored row
// get a synthesized default plan.
func (s *SubscriptionService) Get(ctx context.Context, ownerID models.ULID) (*models.SubscriptionLimit, error) {
	limit, err := s.subscriptions.GetByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("loading subscription: %w", err)
	}
	if limit == nil {
		return &models.SubscriptionLimit{
			OwnerID:              ownerID,
			Plan:                 "default",
			MaxConcurrentStreams: s.defaultLimit,
			MaxResolution:        "1080p",
		}, nil
	}
	return limit, nil
}

// Set creates or replaces the owner's subscription limit.
func (s *SubscriptionService) Set(ctx context.Context, limit *models.SubscriptionLimit) error {
	if err := limit.Validate(); err != nil {
		return err
	}
	if err := s.subscriptions.Upsert(ctx, limit); err != nil {
		return fmt.Errorf("storing subscription: %w", err)
	}
	s.logger.InfoContext(ctx, "subscription limit set",
		slog.String("owner_id", limit.OwnerID.String()),
		slog.String("plan", limit.Plan),
		slog.Int("max_concurrent_streams", limit.MaxConcurrentStreams),
	)
	return nil
}

// Remove deletes the owner's stored limit, reverting them to the default.
func (s *SubscriptionService) Remove(ctx context.Context, ownerID models.ULID) error {
	if err := s.subscriptions.Delete(ctx, ownerID); err != nil {
		return fmt.Errorf("deleting subscription: %w", err)
	}
	return nil
}
