// Package webhook ingests signed billing deliveries end to end: verify,
// decode, route to the lifecycle handlers, and absorb the conditions the
// provider must not retry.
package webhook

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/bwmarrin/snowflake"
	billingdomain "github.com/storelane/storelane/internal/billing/domain"
	"github.com/storelane/storelane/internal/billing/stripe"
	"github.com/storelane/storelane/internal/observability/logger"
	"github.com/storelane/storelane/internal/observability/metrics"
	plandomain "github.com/storelane/storelane/internal/plan/domain"
	storedomain "github.com/storelane/storelane/internal/store/domain"
	subscriptiondomain "github.com/storelane/storelane/internal/subscription/domain"
	transferdomain "github.com/storelane/storelane/internal/transfer/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log           *zap.Logger
	Metrics       *metrics.Metrics
	Adapter       *stripe.Adapter
	Subscriptions subscriptiondomain.Service
	Transfers     transferdomain.Service
}

type Service struct {
	log           *zap.Logger
	metrics       *metrics.Metrics
	adapter       billingdomain.Adapter
	subscriptions subscriptiondomain.Service
	transfers     transferdomain.Service
}

func NewService(p Params) billingdomain.Service {
	return &Service{
		log:           p.Log.Named("billing.webhook"),
		metrics:       p.Metrics,
		adapter:       p.Adapter,
		subscriptions: p.Subscriptions,
		transfers:     p.Transfers,
	}
}

func (s *Service) IngestWebhook(ctx context.Context, payload []byte, headers http.Header) error {
	if err := s.adapter.Verify(ctx, payload, headers); err != nil {
		s.metrics.RecordBillingEvent(ctx, "unknown", "auth_failed")
		return err
	}
	event, err := s.adapter.Parse(ctx, payload)
	if err != nil {
		switch {
		case errors.Is(err, billingdomain.ErrEventIgnored):
			s.metrics.RecordBillingEvent(ctx, "unknown", "ignored")
			return nil
		case errors.Is(err, billingdomain.ErrInvalidPayload),
			errors.Is(err, billingdomain.ErrInvalidEvent):
			// Same bytes on redelivery, same defect. Acknowledge.
			logger.WithContext(ctx, s.log).Warn("billing payload malformed, acknowledged without processing", zap.Error(err))
			s.metrics.RecordBillingEvent(ctx, "unknown", "malformed")
			return nil
		default:
			s.metrics.RecordBillingEvent(ctx, "unknown", "malformed")
			return err
		}
	}

	log := logger.WithContext(ctx, s.log).With(
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.Type)),
	)

	err = s.route(ctx, event)
	outcome := s.absorb(log, event, err)
	s.metrics.RecordBillingEvent(ctx, string(event.Type), outcome.label)
	return outcome.err
}

func (s *Service) route(ctx context.Context, event *billingdomain.Event) error {
	switch event.Type {
	case billingdomain.EventCheckoutCompleted:
		return s.handleCheckout(ctx, event)
	case billingdomain.EventSubscriptionCreated:
		_, err := s.subscriptions.HandleCreated(ctx, event)
		return err
	case billingdomain.EventSubscriptionUpdated:
		return s.subscriptions.HandleUpdated(ctx, event)
	case billingdomain.EventSubscriptionDeleted:
		return s.subscriptions.HandleDeleted(ctx, event)
	case billingdomain.EventInvoicePaid:
		return s.subscriptions.HandleInvoicePaid(ctx, event)
	case billingdomain.EventInvoicePaymentFailed:
		return s.subscriptions.HandleInvoicePaymentFailed(ctx, event)
	default:
		return billingdomain.ErrEventIgnored
	}
}

// handleCheckout runs the ownership transfer before quota reconciliation so
// a store bought via checkout counts against the buyer's quota in the same
// delivery.
func (s *Service) handleCheckout(ctx context.Context, event *billingdomain.Event) error {
	checkout := event.Checkout
	if checkout == nil {
		return billingdomain.ErrInvalidEvent
	}

	if slug := checkout.Metadata[billingdomain.MetadataStoreSlug]; slug != "" {
		ownerID, err := ownerFromCheckout(checkout)
		if err != nil {
			return err
		}
		if err := s.transfers.TransferFromCheckout(ctx, slug, ownerID); err != nil {
			return err
		}
	}

	_, err := s.subscriptions.HandleCreated(ctx, event)
	return err
}

type outcome struct {
	label string
	err   error
}

// absorb maps handler errors onto the acknowledgment contract: conditions a
// redelivery cannot fix are logged and acknowledged, everything else
// surfaces so the provider retries.
func (s *Service) absorb(log *zap.Logger, event *billingdomain.Event, err error) outcome {
	switch {
	case err == nil:
		return outcome{label: "processed"}
	case errors.Is(err, billingdomain.ErrEventIgnored):
		return outcome{label: "ignored"}
	case errors.Is(err, billingdomain.ErrMissingMetadata),
		errors.Is(err, billingdomain.ErrInvalidEvent):
		log.Warn("billing event structurally incomplete, acknowledged without processing", zap.Error(err))
		return outcome{label: "malformed"}
	case errors.Is(err, subscriptiondomain.ErrSubscriptionNotFound),
		errors.Is(err, plandomain.ErrPlanNotFound),
		errors.Is(err, storedomain.ErrStoreNotFound):
		log.Warn("billing event references an unknown entity, acknowledged as skip", zap.Error(err))
		return outcome{label: "skipped"}
	default:
		log.Error("billing event processing failed", zap.Error(err))
		return outcome{label: "failed", err: err}
	}
}

func ownerFromCheckout(checkout *billingdomain.CheckoutSession) (snowflake.ID, error) {
	raw := checkout.Metadata[billingdomain.MetadataUserID]
	if raw == "" {
		return 0, billingdomain.ErrMissingMetadata
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, billingdomain.ErrMissingMetadata
	}
	return snowflake.ID(id), nil
}
