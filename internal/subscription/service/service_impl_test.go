package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	billingdomain "github.com/storelane/storelane/internal/billing/domain"
	"github.com/storelane/storelane/internal/clock"
	"github.com/storelane/storelane/internal/config"
	planrepository "github.com/storelane/storelane/internal/plan/repository"
	"github.com/storelane/storelane/internal/store/reconciler"
	storerepository "github.com/storelane/storelane/internal/store/repository"
	"github.com/storelane/storelane/internal/subscription/domain"
	subscriptionrepository "github.com/storelane/storelane/internal/subscription/repository"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type fixture struct {
	svc   domain.Service
	db    *gorm.DB
	node  *snowflake.Node
	clock *clock.FakeClock
}

func setupService(t *testing.T) *fixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_loc=auto", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	prepareSchema(t, db)

	node, err := snowflake.NewNode(2)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	fake := clock.NewFakeClock(time.Date(2024, 6, 15, 9, 30, 0, 0, time.UTC))

	rec := reconciler.New(reconciler.Params{
		DB:         db,
		Log:        zap.NewNop(),
		Clock:      fake,
		Guardrails: config.StaticGuardrails(config.DefaultGuardrails()),
		Stores:     storerepository.Provide(),
	})

	svc := Provide(Params{
		DB:            db,
		Log:           zap.NewNop(),
		GenID:         node,
		Clock:         fake,
		Plans:         planrepository.Provide(),
		Subscriptions: subscriptionrepository.Provide(),
		Reconciler:    rec,
	})

	return &fixture{svc: svc, db: db, node: node, clock: fake}
}

func prepareSchema(t *testing.T, db *gorm.DB) {
	t.Helper()
	statements := []string{
		`CREATE TABLE plans (
			id BIGINT PRIMARY KEY,
			code TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL,
			max_active_stores INTEGER NOT NULL DEFAULT 1,
			monthly_price_id TEXT NOT NULL,
			yearly_price_id TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE TABLE subscriptions (
			id BIGINT PRIMARY KEY,
			owner_user_id BIGINT NOT NULL,
			plan_id BIGINT NOT NULL,
			status TEXT NOT NULL,
			billing_interval TEXT NOT NULL,
			provider_customer_id TEXT NOT NULL,
			provider_subscription_id TEXT NOT NULL UNIQUE,
			provider_price_id TEXT NOT NULL,
			current_period_start DATETIME NOT NULL,
			current_period_end DATETIME NOT NULL,
			canceled_at DATETIME,
			ai_usage_count INTEGER NOT NULL DEFAULT 0,
			ai_usage_reset_at DATETIME NOT NULL,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE TABLE stores (
			id BIGINT PRIMARY KEY,
			owner_user_id BIGINT NOT NULL,
			slug TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL,
			category TEXT NOT NULL,
			city TEXT NOT NULL,
			custom_domain TEXT,
			is_active BOOLEAN NOT NULL DEFAULT FALSE,
			metadata JSON,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
	}
	for _, stmt := range statements {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("prepare schema: %v", err)
		}
	}
}

func (f *fixture) seedPlan(t *testing.T, code string, quota int, monthlyPrice, yearlyPrice string) snowflake.ID {
	t.Helper()
	id := f.node.Generate()
	now := f.clock.Now()
	if err := f.db.Exec(
		`INSERT INTO plans (id, code, name, max_active_stores, monthly_price_id, yearly_price_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, code, code, quota, monthlyPrice, yearlyPrice, now, now,
	).Error; err != nil {
		t.Fatalf("seed plan: %v", err)
	}
	return id
}

func (f *fixture) seedStore(t *testing.T, ownerID snowflake.ID, slug string, active bool, createdAt time.Time) {
	t.Helper()
	if err := f.db.Exec(
		`INSERT INTO stores (id, owner_user_id, slug, name, category, city, custom_domain, is_active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, 'bakery', 'hamburg', '', ?, ?, ?)`,
		f.node.Generate(), ownerID, slug, slug, active, createdAt, createdAt,
	).Error; err != nil {
		t.Fatalf("seed store %s: %v", slug, err)
	}
}

func (f *fixture) countSubscriptions(t *testing.T) int {
	t.Helper()
	var count int
	if err := f.db.Raw(`SELECT COUNT(1) FROM subscriptions`).Scan(&count).Error; err != nil {
		t.Fatalf("count subscriptions: %v", err)
	}
	return count
}

func (f *fixture) countActiveStores(t *testing.T, ownerID snowflake.ID) int {
	t.Helper()
	var count int
	if err := f.db.Raw(
		`SELECT COUNT(1) FROM stores WHERE owner_user_id = ? AND is_active = TRUE`,
		ownerID,
	).Scan(&count).Error; err != nil {
		t.Fatalf("count active stores: %v", err)
	}
	return count
}

func checkoutEvent(ownerID, planID snowflake.ID, providerSubID string) *billingdomain.Event {
	return &billingdomain.Event{
		ID:   "evt_" + providerSubID,
		Type: billingdomain.EventCheckoutCompleted,
		Checkout: &billingdomain.CheckoutSession{
			ID:             "cs_" + providerSubID,
			CustomerID:     "cus_1",
			SubscriptionID: providerSubID,
			Metadata: map[string]string{
				billingdomain.MetadataUserID: strconv.FormatInt(int64(ownerID), 10),
				billingdomain.MetadataPlanID: strconv.FormatInt(int64(planID), 10),
			},
		},
	}
}

func subscriptionEvent(eventType billingdomain.EventType, providerSubID, status, priceID string) *billingdomain.Event {
	return &billingdomain.Event{
		ID:   "evt_upd_" + providerSubID,
		Type: eventType,
		Subscription: &billingdomain.ProviderSubscription{
			ID:         providerSubID,
			CustomerID: "cus_1",
			Status:     status,
			PriceID:    priceID,
			Interval:   "month",
		},
	}
}

func TestHandleCreatedIsIdempotent(t *testing.T) {
	f := setupService(t)
	ownerID := f.node.Generate()
	planID := f.seedPlan(t, "growth", 2, "price_m", "price_y")
	base := f.clock.Now().Add(-48 * time.Hour)
	f.seedStore(t, ownerID, "first", false, base)
	f.seedStore(t, ownerID, "second", false, base.Add(time.Hour))
	f.seedStore(t, ownerID, "third", false, base.Add(2*time.Hour))

	event := checkoutEvent(ownerID, planID, "sub_100")

	first, err := f.svc.HandleCreated(context.Background(), event)
	if err != nil {
		t.Fatalf("first create: %v", err)
	}
	second, err := f.svc.HandleCreated(context.Background(), event)
	if err != nil {
		t.Fatalf("second create: %v", err)
	}

	if first.ID != second.ID {
		t.Fatalf("expected idempotent create, got %s vs %s", first.ID, second.ID)
	}
	if count := f.countSubscriptions(t); count != 1 {
		t.Fatalf("expected 1 subscription, got %d", count)
	}
	if first.Status != domain.StatusActive {
		t.Fatalf("expected active status, got %s", first.Status)
	}
	if active := f.countActiveStores(t, ownerID); active != 2 {
		t.Fatalf("expected quota of 2 active stores, got %d", active)
	}
}

func TestHandleCreatedComputesUsageReset(t *testing.T) {
	f := setupService(t)
	ownerID := f.node.Generate()
	planID := f.seedPlan(t, "starter", 1, "price_m", "price_y")

	created, err := f.svc.HandleCreated(context.Background(), checkoutEvent(ownerID, planID, "sub_200"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	want := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	if !created.AIUsageResetAt.Equal(want) {
		t.Fatalf("expected usage reset %v, got %v", want, created.AIUsageResetAt)
	}
	if created.AIUsageCount != 0 {
		t.Fatalf("expected zeroed usage counter, got %d", created.AIUsageCount)
	}
	if created.CurrentPeriodEnd.Sub(created.CurrentPeriodStart) != 30*24*time.Hour {
		t.Fatalf("expected 30 day fallback period, got %v", created.CurrentPeriodEnd.Sub(created.CurrentPeriodStart))
	}
}

func TestHandleCreatedMissingOwnerMetadata(t *testing.T) {
	f := setupService(t)
	planID := f.seedPlan(t, "starter", 1, "price_m", "price_y")

	event := checkoutEvent(0, planID, "sub_300")
	delete(event.Checkout.Metadata, billingdomain.MetadataUserID)

	if _, err := f.svc.HandleCreated(context.Background(), event); !errors.Is(err, billingdomain.ErrMissingMetadata) {
		t.Fatalf("expected missing metadata error, got %v", err)
	}
	if count := f.countSubscriptions(t); count != 0 {
		t.Fatalf("expected no subscription rows, got %d", count)
	}
}

func TestHandleUpdatedCancellationDeactivatesStores(t *testing.T) {
	f := setupService(t)
	ownerID := f.node.Generate()
	planID := f.seedPlan(t, "growth", 2, "price_m", "price_y")
	base := f.clock.Now().Add(-48 * time.Hour)
	f.seedStore(t, ownerID, "one", false, base)
	f.seedStore(t, ownerID, "two", false, base.Add(time.Hour))

	if _, err := f.svc.HandleCreated(context.Background(), checkoutEvent(ownerID, planID, "sub_400")); err != nil {
		t.Fatalf("create: %v", err)
	}
	if active := f.countActiveStores(t, ownerID); active != 2 {
		t.Fatalf("expected 2 active stores after create, got %d", active)
	}

	err := f.svc.HandleUpdated(context.Background(), subscriptionEvent(billingdomain.EventSubscriptionUpdated, "sub_400", "canceled", "price_m"))
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	updated, err := f.svc.GetByProviderID(context.Background(), "sub_400")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if updated.Status != domain.StatusCanceled {
		t.Fatalf("expected canceled, got %s", updated.Status)
	}
	if active := f.countActiveStores(t, ownerID); active != 0 {
		t.Fatalf("expected all stores deactivated, got %d active", active)
	}
}

func TestHandleUpdatedUnknownSubscriptionSkips(t *testing.T) {
	f := setupService(t)

	err := f.svc.HandleUpdated(context.Background(), subscriptionEvent(billingdomain.EventSubscriptionUpdated, "sub_missing", "active", "price_m"))
	if !errors.Is(err, domain.ErrSubscriptionNotFound) {
		t.Fatalf("expected subscription not found, got %v", err)
	}
}

func TestHandleUpdatedPriceChangeSwitchesPlan(t *testing.T) {
	f := setupService(t)
	ownerID := f.node.Generate()
	starterID := f.seedPlan(t, "starter", 1, "price_starter_m", "price_starter_y")
	scaleID := f.seedPlan(t, "scale", 10, "price_scale_m", "price_scale_y")
	base := f.clock.Now().Add(-48 * time.Hour)
	f.seedStore(t, ownerID, "one", false, base)
	f.seedStore(t, ownerID, "two", false, base.Add(time.Hour))

	if _, err := f.svc.HandleCreated(context.Background(), checkoutEvent(ownerID, starterID, "sub_500")); err != nil {
		t.Fatalf("create: %v", err)
	}
	if active := f.countActiveStores(t, ownerID); active != 1 {
		t.Fatalf("expected starter quota of 1, got %d", active)
	}

	err := f.svc.HandleUpdated(context.Background(), subscriptionEvent(billingdomain.EventSubscriptionUpdated, "sub_500", "active", "price_scale_y"))
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	updated, err := f.svc.GetByProviderID(context.Background(), "sub_500")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if updated.PlanID != scaleID {
		t.Fatalf("expected plan switch to scale, got %s", updated.PlanID)
	}
	if active := f.countActiveStores(t, ownerID); active != 2 {
		t.Fatalf("expected upgraded quota to activate both stores, got %d", active)
	}
}

func TestHandleUpdatedUnmatchedPriceKeepsPlan(t *testing.T) {
	f := setupService(t)
	ownerID := f.node.Generate()
	planID := f.seedPlan(t, "growth", 2, "price_m", "price_y")

	if _, err := f.svc.HandleCreated(context.Background(), checkoutEvent(ownerID, planID, "sub_600")); err != nil {
		t.Fatalf("create: %v", err)
	}

	err := f.svc.HandleUpdated(context.Background(), subscriptionEvent(billingdomain.EventSubscriptionUpdated, "sub_600", "active", "price_unknown"))
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	updated, err := f.svc.GetByProviderID(context.Background(), "sub_600")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if updated.PlanID != planID {
		t.Fatalf("expected plan kept on unmatched price, got %s", updated.PlanID)
	}
	if updated.ProviderPriceID != "price_unknown" {
		t.Fatalf("expected price id persisted, got %s", updated.ProviderPriceID)
	}
}

func TestHandleDeletedCancelsAndDeactivates(t *testing.T) {
	f := setupService(t)
	ownerID := f.node.Generate()
	planID := f.seedPlan(t, "growth", 2, "price_m", "price_y")
	base := f.clock.Now().Add(-48 * time.Hour)
	f.seedStore(t, ownerID, "one", false, base)

	if _, err := f.svc.HandleCreated(context.Background(), checkoutEvent(ownerID, planID, "sub_700")); err != nil {
		t.Fatalf("create: %v", err)
	}

	err := f.svc.HandleDeleted(context.Background(), subscriptionEvent(billingdomain.EventSubscriptionDeleted, "sub_700", "canceled", "price_m"))
	if err != nil {
		t.Fatalf("delete: %v", err)
	}

	deleted, err := f.svc.GetByProviderID(context.Background(), "sub_700")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if deleted.Status != domain.StatusCanceled {
		t.Fatalf("expected canceled, got %s", deleted.Status)
	}
	if deleted.CanceledAt == nil {
		t.Fatalf("expected canceled_at set")
	}
	if active := f.countActiveStores(t, ownerID); active != 0 {
		t.Fatalf("expected all stores inactive, got %d", active)
	}
}

func TestInvoiceEventsFlipStatusWithoutReconciling(t *testing.T) {
	f := setupService(t)
	ownerID := f.node.Generate()
	planID := f.seedPlan(t, "growth", 2, "price_m", "price_y")
	base := f.clock.Now().Add(-48 * time.Hour)
	f.seedStore(t, ownerID, "one", false, base)

	if _, err := f.svc.HandleCreated(context.Background(), checkoutEvent(ownerID, planID, "sub_800")); err != nil {
		t.Fatalf("create: %v", err)
	}
	if active := f.countActiveStores(t, ownerID); active != 1 {
		t.Fatalf("expected 1 active store, got %d", active)
	}

	failed := &billingdomain.Event{
		ID:   "evt_inv_fail",
		Type: billingdomain.EventInvoicePaymentFailed,
		Invoice: &billingdomain.ProviderInvoice{
			ID:             "in_1",
			CustomerID:     "cus_1",
			SubscriptionID: "sub_800",
		},
	}
	if err := f.svc.HandleInvoicePaymentFailed(context.Background(), failed); err != nil {
		t.Fatalf("invoice failed: %v", err)
	}

	afterFail, err := f.svc.GetByProviderID(context.Background(), "sub_800")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if afterFail.Status != domain.StatusPastDue {
		t.Fatalf("expected past_due, got %s", afterFail.Status)
	}
	// Deactivation is deferred to the subscription-level events.
	if active := f.countActiveStores(t, ownerID); active != 1 {
		t.Fatalf("expected store still active after invoice failure, got %d", active)
	}

	paid := &billingdomain.Event{
		ID:   "evt_inv_paid",
		Type: billingdomain.EventInvoicePaid,
		Invoice: &billingdomain.ProviderInvoice{
			ID:             "in_2",
			CustomerID:     "cus_1",
			SubscriptionID: "sub_800",
		},
	}
	if err := f.svc.HandleInvoicePaid(context.Background(), paid); err != nil {
		t.Fatalf("invoice paid: %v", err)
	}
	afterPaid, err := f.svc.GetByProviderID(context.Background(), "sub_800")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if afterPaid.Status != domain.StatusActive {
		t.Fatalf("expected active, got %s", afterPaid.Status)
	}
}
