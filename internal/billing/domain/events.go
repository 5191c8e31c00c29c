// Package domain defines the decoded billing provider events and the
// contracts for authenticating and ingesting them.
package domain

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// EventType is the closed set of provider event variants we act on.
type EventType string

const (
	EventCheckoutCompleted    EventType = "checkout.session.completed"
	EventSubscriptionCreated  EventType = "customer.subscription.created"
	EventSubscriptionUpdated  EventType = "customer.subscription.updated"
	EventSubscriptionDeleted  EventType = "customer.subscription.deleted"
	EventInvoicePaid          EventType = "invoice.paid"
	EventInvoicePaymentFailed EventType = "invoice.payment_failed"
)

// Metadata keys our checkout flow attaches to provider objects.
const (
	MetadataUserID    = "user_id"
	MetadataPlanID    = "plan_id"
	MetadataStoreSlug = "store_slug"
)

// Event is the decoded, authenticated webhook payload. It lives for the
// duration of one handler invocation and is never persisted.
type Event struct {
	ID         string
	Type       EventType
	OccurredAt time.Time

	// Exactly one of the following is set, matching Type.
	Checkout     *CheckoutSession
	Subscription *ProviderSubscription
	Invoice      *ProviderInvoice
}

// CheckoutSession is the provider checkout object carried by
// checkout.session.completed.
type CheckoutSession struct {
	ID             string
	CustomerID     string
	SubscriptionID string
	Metadata       map[string]string
}

// ProviderSubscription is the provider-owned subscription object.
// Period bounds are unix seconds; zero means the provider omitted them.
type ProviderSubscription struct {
	ID                 string
	CustomerID         string
	Status             string
	PriceID            string
	Interval           string
	CurrentPeriodStart int64
	CurrentPeriodEnd   int64
	CanceledAt         int64
	Metadata           map[string]string
}

// ProviderInvoice references the subscription an invoice event belongs to.
type ProviderInvoice struct {
	ID             string
	CustomerID     string
	SubscriptionID string
}

var (
	ErrInvalidSignature = errors.New("invalid_signature")
	ErrInvalidPayload   = errors.New("invalid_payload")
	ErrInvalidEvent     = errors.New("invalid_event")
	ErrEventIgnored     = errors.New("event_ignored")
	ErrMissingMetadata  = errors.New("missing_metadata")
)

// Adapter authenticates and decodes one provider's webhook payloads.
type Adapter interface {
	Verify(ctx context.Context, payload []byte, headers http.Header) error
	Parse(ctx context.Context, payload []byte) (*Event, error)
}

// Service ingests a raw webhook delivery end to end.
type Service interface {
	IngestWebhook(ctx context.Context, payload []byte, headers http.Header) error
}
