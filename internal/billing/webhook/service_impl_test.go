package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	billingdomain "github.com/storelane/storelane/internal/billing/domain"
	"github.com/storelane/storelane/internal/billing/stripe"
	"github.com/storelane/storelane/internal/config"
	subscriptiondomain "github.com/storelane/storelane/internal/subscription/domain"
	"go.uber.org/zap"
)

const testSecret = "whsec_test"

type subscriptionStub struct {
	created      []string
	createErr    error
	updatedErr   error
	handledTypes []billingdomain.EventType
}

func (s *subscriptionStub) HandleCreated(ctx context.Context, event *billingdomain.Event) (*subscriptiondomain.Subscription, error) {
	s.handledTypes = append(s.handledTypes, event.Type)
	if s.createErr != nil {
		return nil, s.createErr
	}
	id := ""
	if event.Checkout != nil {
		id = event.Checkout.SubscriptionID
	} else if event.Subscription != nil {
		id = event.Subscription.ID
	}
	s.created = append(s.created, id)
	return &subscriptiondomain.Subscription{ProviderSubscriptionID: id}, nil
}

func (s *subscriptionStub) HandleUpdated(ctx context.Context, event *billingdomain.Event) error {
	s.handledTypes = append(s.handledTypes, event.Type)
	return s.updatedErr
}

func (s *subscriptionStub) HandleDeleted(ctx context.Context, event *billingdomain.Event) error {
	s.handledTypes = append(s.handledTypes, event.Type)
	return nil
}

func (s *subscriptionStub) HandleInvoicePaid(ctx context.Context, event *billingdomain.Event) error {
	s.handledTypes = append(s.handledTypes, event.Type)
	return nil
}

func (s *subscriptionStub) HandleInvoicePaymentFailed(ctx context.Context, event *billingdomain.Event) error {
	s.handledTypes = append(s.handledTypes, event.Type)
	return nil
}

func (s *subscriptionStub) GetByProviderID(ctx context.Context, providerSubscriptionID string) (subscriptiondomain.Subscription, error) {
	return subscriptiondomain.Subscription{}, subscriptiondomain.ErrSubscriptionNotFound
}

func (s *subscriptionStub) ReconcileOwner(ctx context.Context, ownerID snowflake.ID) error {
	return nil
}

type transferStub struct {
	slugs  []string
	owners []snowflake.ID
	err    error
}

func (s *transferStub) TransferFromCheckout(ctx context.Context, storeSlug string, newOwnerID snowflake.ID) error {
	s.slugs = append(s.slugs, storeSlug)
	s.owners = append(s.owners, newOwnerID)
	return s.err
}

func setupWebhook(t *testing.T, subs *subscriptionStub, transfers *transferStub) billingdomain.Service {
	t.Helper()
	adapter, err := stripe.NewAdapter(config.Config{BillingWebhookSecret: testSecret})
	if err != nil {
		t.Fatalf("new adapter: %v", err)
	}
	return NewService(Params{
		Log:           zap.NewNop(),
		Adapter:       adapter,
		Subscriptions: subs,
		Transfers:     transfers,
	})
}

func signedHeaders(t *testing.T, payload []byte) http.Header {
	t.Helper()
	timestamp := time.Now().Unix()
	signedPayload := fmt.Sprintf("%d.%s", timestamp, string(payload))
	mac := hmac.New(sha256.New, []byte(testSecret))
	_, _ = mac.Write([]byte(signedPayload))
	headers := http.Header{}
	headers.Set("Stripe-Signature", fmt.Sprintf("t=%d,v1=%s", timestamp, hex.EncodeToString(mac.Sum(nil))))
	return headers
}

func marshalEvent(t *testing.T, event map[string]any) []byte {
	t.Helper()
	payload, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	return payload
}

func checkoutPayload(t *testing.T, metadata map[string]string) []byte {
	return marshalEvent(t, map[string]any{
		"id":   "evt_1",
		"type": "checkout.session.completed",
		"data": map[string]any{
			"object": map[string]any{
				"id":           "cs_1",
				"customer":     "cus_1",
				"subscription": "sub_1",
				"metadata":     metadata,
			},
		},
	})
}

func TestIngestRejectsBadSignature(t *testing.T) {
	svc := setupWebhook(t, &subscriptionStub{}, &transferStub{})
	payload := checkoutPayload(t, map[string]string{"user_id": "42"})

	headers := http.Header{}
	headers.Set("Stripe-Signature", "t=1,v1=deadbeef")

	err := svc.IngestWebhook(context.Background(), payload, headers)
	if !errors.Is(err, billingdomain.ErrInvalidSignature) {
		t.Fatalf("expected invalid signature, got %v", err)
	}
}

func TestIngestAcknowledgesUnknownEventTypes(t *testing.T) {
	subs := &subscriptionStub{}
	svc := setupWebhook(t, subs, &transferStub{})
	payload := marshalEvent(t, map[string]any{
		"id":   "evt_2",
		"type": "customer.created",
		"data": map[string]any{"object": map[string]any{}},
	})

	if err := svc.IngestWebhook(context.Background(), payload, signedHeaders(t, payload)); err != nil {
		t.Fatalf("expected unknown event acknowledged, got %v", err)
	}
	if len(subs.handledTypes) != 0 {
		t.Fatalf("expected no handler calls, got %v", subs.handledTypes)
	}
}

func TestIngestAcknowledgesStructurallyIncompleteEvents(t *testing.T) {
	subs := &subscriptionStub{}
	svc := setupWebhook(t, subs, &transferStub{})
	payload := marshalEvent(t, map[string]any{
		"id":   "evt_3",
		"type": "checkout.session.completed",
		"data": map[string]any{
			"object": map[string]any{
				"id":       "",
				"metadata": map[string]string{"user_id": "42"},
			},
		},
	})

	if err := svc.IngestWebhook(context.Background(), payload, signedHeaders(t, payload)); err != nil {
		t.Fatalf("expected incomplete event acknowledged, got %v", err)
	}
	if len(subs.handledTypes) != 0 {
		t.Fatalf("expected no handler calls, got %v", subs.handledTypes)
	}
}

func TestIngestAcknowledgesUnparsablePayload(t *testing.T) {
	subs := &subscriptionStub{}
	svc := setupWebhook(t, subs, &transferStub{})
	payload := []byte(`{"id": "evt_4", "type": "checkout.session.completed"`)

	if err := svc.IngestWebhook(context.Background(), payload, signedHeaders(t, payload)); err != nil {
		t.Fatalf("expected truncated payload acknowledged, got %v", err)
	}
	if len(subs.handledTypes) != 0 {
		t.Fatalf("expected no handler calls, got %v", subs.handledTypes)
	}
}

func TestIngestCheckoutRunsTransferBeforeCreate(t *testing.T) {
	subs := &subscriptionStub{}
	transfers := &transferStub{}
	svc := setupWebhook(t, subs, transfers)
	payload := checkoutPayload(t, map[string]string{
		"user_id":    "42",
		"plan_id":    "7",
		"store_slug": "coffee-corner",
	})

	if err := svc.IngestWebhook(context.Background(), payload, signedHeaders(t, payload)); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	if len(transfers.slugs) != 1 || transfers.slugs[0] != "coffee-corner" {
		t.Fatalf("expected transfer for coffee-corner, got %v", transfers.slugs)
	}
	if transfers.owners[0] != snowflake.ID(42) {
		t.Fatalf("expected owner 42, got %v", transfers.owners[0])
	}
	if len(subs.created) != 1 || subs.created[0] != "sub_1" {
		t.Fatalf("expected subscription created for sub_1, got %v", subs.created)
	}
}

func TestIngestCheckoutWithoutSlugSkipsTransfer(t *testing.T) {
	subs := &subscriptionStub{}
	transfers := &transferStub{}
	svc := setupWebhook(t, subs, transfers)
	payload := checkoutPayload(t, map[string]string{"user_id": "42", "plan_id": "7"})

	if err := svc.IngestWebhook(context.Background(), payload, signedHeaders(t, payload)); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if len(transfers.slugs) != 0 {
		t.Fatalf("expected no transfer, got %v", transfers.slugs)
	}
	if len(subs.created) != 1 {
		t.Fatalf("expected subscription created, got %v", subs.created)
	}
}

func TestIngestAbsorbsConditionsRetriesCannotFix(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"missing metadata", billingdomain.ErrMissingMetadata},
		{"unknown subscription", subscriptiondomain.ErrSubscriptionNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			subs := &subscriptionStub{createErr: tt.err}
			svc := setupWebhook(t, subs, &transferStub{})
			payload := checkoutPayload(t, map[string]string{"user_id": "42"})

			if err := svc.IngestWebhook(context.Background(), payload, signedHeaders(t, payload)); err != nil {
				t.Fatalf("expected %v absorbed, got %v", tt.err, err)
			}
		})
	}
}

func TestIngestSurfacesInternalErrors(t *testing.T) {
	boom := errors.New("db down")
	subs := &subscriptionStub{createErr: boom}
	svc := setupWebhook(t, subs, &transferStub{})
	payload := checkoutPayload(t, map[string]string{"user_id": "42"})

	err := svc.IngestWebhook(context.Background(), payload, signedHeaders(t, payload))
	if !errors.Is(err, boom) {
		t.Fatalf("expected internal error surfaced for provider retry, got %v", err)
	}
}
