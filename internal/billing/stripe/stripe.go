// Package stripe decodes and authenticates Stripe webhook deliveries into
// the internal billing event variants.
package stripe

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	billingdomain "github.com/storelane/storelane/internal/billing/domain"
	"github.com/storelane/storelane/internal/config"
)

type Adapter struct {
	webhookSecret string
}

func NewAdapter(cfg config.Config) (*Adapter, error) {
	secret := strings.TrimSpace(cfg.BillingWebhookSecret)
	if secret == "" {
		return nil, errors.New("billing webhook secret is required")
	}
	return &Adapter{webhookSecret: secret}, nil
}

func (a *Adapter) Verify(ctx context.Context, payload []byte, headers http.Header) error {
	sigHeader := strings.TrimSpace(headers.Get("Stripe-Signature"))
	if sigHeader == "" {
		return billingdomain.ErrInvalidSignature
	}

	timestamp, signatures, err := parseSignatureHeader(sigHeader)
	if err != nil {
		return billingdomain.ErrInvalidSignature
	}

	signedPayload := fmt.Sprintf("%s.%s", timestamp, string(payload))
	mac := hmac.New(sha256.New, []byte(a.webhookSecret))
	_, _ = mac.Write([]byte(signedPayload))
	expected := hex.EncodeToString(mac.Sum(nil))

	for _, signature := range signatures {
		if hmac.Equal([]byte(signature), []byte(expected)) {
			return nil
		}
	}

	return billingdomain.ErrInvalidSignature
}

func (a *Adapter) Parse(ctx context.Context, payload []byte) (*billingdomain.Event, error) {
	var event stripeEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, billingdomain.ErrInvalidPayload
	}
	if strings.TrimSpace(event.ID) == "" {
		return nil, billingdomain.ErrInvalidEvent
	}

	switch billingdomain.EventType(strings.TrimSpace(event.Type)) {
	case billingdomain.EventCheckoutCompleted:
		return a.parseCheckout(event)
	case billingdomain.EventSubscriptionCreated,
		billingdomain.EventSubscriptionUpdated,
		billingdomain.EventSubscriptionDeleted:
		return a.parseSubscription(event)
	case billingdomain.EventInvoicePaid,
		billingdomain.EventInvoicePaymentFailed:
		return a.parseInvoice(event)
	default:
		return nil, billingdomain.ErrEventIgnored
	}
}

type stripeEvent struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Created int64           `json:"created"`
	Data    stripeEventData `json:"data"`
}

type stripeEventData struct {
	Object json.RawMessage `json:"object"`
}

type stripeCheckoutSession struct {
	ID           string            `json:"id"`
	Customer     string            `json:"customer"`
	Subscription string            `json:"subscription"`
	Metadata     map[string]string `json:"metadata"`
}

type stripeSubscription struct {
	ID                 string            `json:"id"`
	Customer           string            `json:"customer"`
	Status             string            `json:"status"`
	CurrentPeriodStart int64             `json:"current_period_start"`
	CurrentPeriodEnd   int64             `json:"current_period_end"`
	CanceledAt         int64             `json:"canceled_at"`
	Metadata           map[string]string `json:"metadata"`
	Items              stripeItemList    `json:"items"`
}

type stripeItemList struct {
	Data []stripeItem `json:"data"`
}

type stripeItem struct {
	Price stripePrice `json:"price"`
}

type stripePrice struct {
	ID        string          `json:"id"`
	Recurring stripeRecurring `json:"recurring"`
}

type stripeRecurring struct {
	Interval string `json:"interval"`
}

type stripeInvoice struct {
	ID           string `json:"id"`
	Customer     string `json:"customer"`
	Subscription string `json:"subscription"`
}

func (a *Adapter) parseCheckout(event stripeEvent) (*billingdomain.Event, error) {
	var session stripeCheckoutSession
	if err := json.Unmarshal(event.Data.Object, &session); err != nil {
		return nil, billingdomain.ErrInvalidPayload
	}
	if strings.TrimSpace(session.ID) == "" {
		return nil, billingdomain.ErrInvalidEvent
	}

	return &billingdomain.Event{
		ID:         event.ID,
		Type:       billingdomain.EventType(event.Type),
		OccurredAt: occurredAt(event.Created),
		Checkout: &billingdomain.CheckoutSession{
			ID:             session.ID,
			CustomerID:     strings.TrimSpace(session.Customer),
			SubscriptionID: strings.TrimSpace(session.Subscription),
			Metadata:       session.Metadata,
		},
	}, nil
}

func (a *Adapter) parseSubscription(event stripeEvent) (*billingdomain.Event, error) {
	var subscription stripeSubscription
	if err := json.Unmarshal(event.Data.Object, &subscription); err != nil {
		return nil, billingdomain.ErrInvalidPayload
	}
	if strings.TrimSpace(subscription.ID) == "" {
		return nil, billingdomain.ErrInvalidEvent
	}

	priceID, interval := "", ""
	if len(subscription.Items.Data) > 0 {
		priceID = strings.TrimSpace(subscription.Items.Data[0].Price.ID)
		interval = strings.TrimSpace(subscription.Items.Data[0].Price.Recurring.Interval)
	}

	return &billingdomain.Event{
		ID:         event.ID,
		Type:       billingdomain.EventType(event.Type),
		OccurredAt: occurredAt(event.Created),
		Subscription: &billingdomain.ProviderSubscription{
			ID:                 subscription.ID,
			CustomerID:         strings.TrimSpace(subscription.Customer),
			Status:             strings.TrimSpace(subscription.Status),
			PriceID:            priceID,
			Interval:           interval,
			CurrentPeriodStart: subscription.CurrentPeriodStart,
			CurrentPeriodEnd:   subscription.CurrentPeriodEnd,
			CanceledAt:         subscription.CanceledAt,
			Metadata:           subscription.Metadata,
		},
	}, nil
}

func (a *Adapter) parseInvoice(event stripeEvent) (*billingdomain.Event, error) {
	var invoice stripeInvoice
	if err := json.Unmarshal(event.Data.Object, &invoice); err != nil {
		return nil, billingdomain.ErrInvalidPayload
	}
	if strings.TrimSpace(invoice.ID) == "" {
		return nil, billingdomain.ErrInvalidEvent
	}

	return &billingdomain.Event{
		ID:         event.ID,
		Type:       billingdomain.EventType(event.Type),
		OccurredAt: occurredAt(event.Created),
		Invoice: &billingdomain.ProviderInvoice{
			ID:             invoice.ID,
			CustomerID:     strings.TrimSpace(invoice.Customer),
			SubscriptionID: strings.TrimSpace(invoice.Subscription),
		},
	}, nil
}

func parseSignatureHeader(header string) (string, []string, error) {
	parts := strings.Split(header, ",")
	var timestamp string
	signatures := []string{}
	for _, part := range parts {
		piece := strings.TrimSpace(part)
		if piece == "" {
			continue
		}
		keyValue := strings.SplitN(piece, "=", 2)
		if len(keyValue) != 2 {
			continue
		}
		key := strings.TrimSpace(keyValue[0])
		value := strings.TrimSpace(keyValue[1])
		if key == "t" {
			timestamp = value
		}
		if key == "v1" {
			signatures = append(signatures, value)
		}
	}
	if timestamp == "" || len(signatures) == 0 {
		return "", nil, errors.New("invalid_signature")
	}
	return timestamp, signatures, nil
}

func occurredAt(created int64) time.Time {
	if created == 0 {
		return time.Now().UTC()
	}
	return time.Unix(created, 0).UTC()
}
