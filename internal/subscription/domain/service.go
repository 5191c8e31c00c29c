package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	billingdomain "github.com/storelane/storelane/internal/billing/domain"
)

var (
	ErrSubscriptionNotFound = errors.New("subscription_not_found")
	ErrInvalidOwner         = errors.New("invalid_owner")
	ErrNoActiveSubscription = errors.New("no_active_subscription")
)

// Service owns the subscription lifecycle driven by billing provider events.
// Handlers are idempotent: the provider delivers at least once, unordered.
type Service interface {
	// HandleCreated records a subscription for created-class events
	// (checkout completed, subscription created). Duplicate deliveries
	// return the existing row and perform no further writes.
	HandleCreated(ctx context.Context, event *billingdomain.Event) (*Subscription, error)
	HandleUpdated(ctx context.Context, event *billingdomain.Event) error
	HandleDeleted(ctx context.Context, event *billingdomain.Event) error
	HandleInvoicePaid(ctx context.Context, event *billingdomain.Event) error
	HandleInvoicePaymentFailed(ctx context.Context, event *billingdomain.Event) error

	GetByProviderID(ctx context.Context, providerSubscriptionID string) (Subscription, error)
	// ReconcileOwner re-runs quota reconciliation against the owner's
	// current subscription. Used by the operator endpoint.
	ReconcileOwner(ctx context.Context, ownerID snowflake.ID) error
}
