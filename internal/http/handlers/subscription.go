package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/truongvando/ezstream-sub000/internal/models"
	"github.com/truongvando/ezstream-sub000/internal/service"
)

// SubscriptionHandler handles subscription limit endpoints.
type SubscriptionHandler struct {
	subscriptionService *service.SubscriptionService
}

// NewSubscriptionHandler creates a new subscription handler.
func NewSubscriptionHandler(subscriptionService *service.SubscriptionService) *SubscriptionHandler {
	return &SubscriptionHandler{subscriptionService: subscriptionService}
}

// Register registers the subscription routes with the API.
func (h *SubscriptionHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "getSubscription",
		Method:      http.MethodGet,
		Path:        "/api/v1/subscription/{owner}",
		Summary:     "Get subscription limits",
		Description: "Returns the owner's subscription limits, synthesized from the default plan when unset",
		Tags:        []string{"Subscription"},
	}, h.Get)

	huma.Register(api, huma.Operation{
		OperationID: "setSubscription",
		Method:      http.MethodPut,
		Path:        "/api/v1/subscription/{owner}",
		Summary:     "Set subscription limits",
		Description: "Creates or replaces the owner's subscription limits",
		Tags:        []string{"Subscription"},
	}, h.Set)

	huma.Register(api, huma.Operation{
		OperationID: "deleteSubscription",
		Method:      http.MethodDelete,
		Path:        "/api/v1/subscription/{owner}",
		Summary:     "Delete subscription limits",
		Description: "Removes the stored limits, reverting the owner to the default plan",
		Tags:        []string{"Subscription"},
	}, h.Delete)
}

// GetSubscriptionInput identifies the owner.
type GetSubscriptionInput struct {
	Owner string `path:"owner" doc:"Owner ULID"`
}

// SubscriptionOutput is a single subscription response.
type SubscriptionOutput struct {
	Body SubscriptionResponse
}

// Get returns the owner's limits.
func (h *SubscriptionHandler) Get(ctx context.Context, input *GetSubscriptionInput) (*SubscriptionOutput, error) {
	ownerID, err := models.ParseULID(input.Owner)
	if err != nil {
		return nil, huma.Error422UnprocessableEntity("invalid owner id")
	}
	limit, err := h.subscriptionService.Get(ctx, ownerID)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to load subscription", err)
	}
	return &SubscriptionOutput{Body: SubscriptionFromModel(limit)}, nil
}

// SetSubscriptionInput carries the new limits.
type SetSubscriptionInput struct {
	Owner string `path:"owner" doc:"Owner ULID"`
	Body  struct {
		Plan                 string `json:"plan,omitempty" maxLength:"64"`
		Unlimited            bool   `json:"unlimited,omitempty" doc:"Exempts the owner from the concurrent-stream quota (admin accounts)"`
		MaxConcurrentStreams int    `json:"max_concurrent_streams" minimum:"0"`
		MaxResolution        string `json:"max_resolution,omitempty" maxLength:"16" doc:"Highest allowed output resolution, e.g. 1080p"`
		MaxStorageBytes      int64  `json:"max_storage_bytes,omitempty" minimum:"0"`
	}
}

// Set creates or replaces the owner's limits.
func (h *SubscriptionHandler) Set(ctx context.Context, input *SetSubscriptionInput) (*SubscriptionOutput, error) {
	ownerID, err := models.ParseULID(input.Owner)
	if err != nil {
		return nil, huma.Error422UnprocessableEntity("invalid owner id")
	}
	limit := &models.SubscriptionLimit{
		OwnerID:              ownerID,
		Plan:                 input.Body.Plan,
		Unlimited:            input.Body.Unlimited,
		MaxConcurrentStreams: input.Body.MaxConcurrentStreams,
		MaxResolution:        input.Body.MaxResolution,
		MaxStorageBytes:      input.Body.MaxStorageBytes,
	}
	if err := h.subscriptionService.Set(ctx, limit); err != nil {
		var validationErr *models.ValidationError
		if errors.As(err, &validationErr) {
			return nil, huma.Error422UnprocessableEntity(validationErr.Error())
		}
		return nil, huma.Error500InternalServerError("failed to store subscription", err)
	}
	return &SubscriptionOutput{Body: SubscriptionFromModel(limit)}, nil
}

// DeleteSubscriptionInput identifies the owner.
type DeleteSubscriptionInput struct {
	Owner string `path:"owner" doc:"Owner ULID"`
}

// DeleteSubscriptionOutput is an empty response.
type DeleteSubscriptionOutput struct{}

// Delete removes the owner's stored limits.
func (h *SubscriptionHandler) Delete(ctx context.Context, input *DeleteSubscriptionInput) (*DeleteSubscriptionOutput, error) {
	ownerID, err := models.ParseULID(input.Owner)
	if err != nil {
		return nil, huma.Error422UnprocessableEntity("invalid owner id")
	}
	if err := h.subscriptionService.Remove(ctx, ownerID); err != nil {
		return nil, huma.Error500InternalServerError("failed to delete subscription", err)
	}
	return &DeleteSubscriptionOutput{}, nil
}
