package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/bwmarrin/snowflake"
	billingdomain "github.com/storelane/storelane/internal/billing/domain"
	"github.com/storelane/storelane/internal/clock"
	"github.com/storelane/storelane/internal/observability/logger"
	plandomain "github.com/storelane/storelane/internal/plan/domain"
	"github.com/storelane/storelane/internal/store/reconciler"
	"github.com/storelane/storelane/internal/subscription/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const defaultPeriodLength = 30 * 24 * time.Hour

type Params struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	GenID         *snowflake.Node
	Clock         clock.Clock
	Plans         plandomain.Repository
	Subscriptions domain.Repository
	Reconciler    *reconciler.Reconciler
}

type service struct {
	db            *gorm.DB
	log           *zap.Logger
	genID         *snowflake.Node
	clock         clock.Clock
	plans         plandomain.Repository
	subscriptions domain.Repository
	reconciler    *reconciler.Reconciler
}

func Provide(p Params) domain.Service {
	return &service{
		db:            p.DB,
		log:           p.Log.Named("subscription.service"),
		genID:         p.GenID,
		clock:         p.Clock,
		plans:         p.Plans,
		subscriptions: p.Subscriptions,
		reconciler:    p.Reconciler,
	}
}

// createInput normalizes the two created-class event shapes into one record.
type createInput struct {
	providerSubscriptionID string
	providerCustomerID     string
	providerPriceID        string
	interval               domain.BillingInterval
	periodStart            int64
	periodEnd              int64
	metadata               map[string]string
}

func (s *service) HandleCreated(ctx context.Context, event *billingdomain.Event) (*domain.Subscription, error) {
	in, err := createInputFromEvent(event)
	if err != nil {
		return nil, err
	}

	ownerID, err := ownerFromMetadata(in.metadata)
	if err != nil {
		return nil, err
	}

	plan, err := s.resolvePlanForCreate(ctx, in)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	start, end := periodBounds(in.periodStart, in.periodEnd, now)

	subscription := &domain.Subscription{
		ID:                     s.genID.Generate(),
		OwnerUserID:            ownerID,
		PlanID:                 plan.ID,
		Status:                 domain.StatusActive,
		BillingInterval:        in.interval,
		ProviderCustomerID:     in.providerCustomerID,
		ProviderSubscriptionID: in.providerSubscriptionID,
		ProviderPriceID:        in.providerPriceID,
		CurrentPeriodStart:     start,
		CurrentPeriodEnd:       end,
		AIUsageCount:           0,
		AIUsageResetAt:         firstOfNextMonth(now),
		CreatedAt:              now,
		UpdatedAt:              now,
	}

	inserted, err := s.subscriptions.InsertIgnoreDuplicate(ctx, s.db, subscription)
	if err != nil {
		return nil, fmt.Errorf("insert subscription: %w", err)
	}
	if !inserted {
		existing, err := s.subscriptions.FindByProviderID(ctx, s.db, in.providerSubscriptionID)
		if err != nil {
			return nil, err
		}
		if existing == nil {
			return nil, domain.ErrSubscriptionNotFound
		}
		logger.WithContext(ctx, s.log).Info("duplicate subscription delivery ignored",
			zap.String("provider_subscription_id", in.providerSubscriptionID),
		)
		return existing, nil
	}

	if err := s.reconciler.Reconcile(ctx, ownerID, plan.MaxActiveStores); err != nil {
		return nil, err
	}
	return subscription, nil
}

func (s *service) HandleUpdated(ctx context.Context, event *billingdomain.Event) error {
	provider := event.Subscription
	if provider == nil || provider.ID == "" {
		return billingdomain.ErrInvalidEvent
	}

	log := logger.WithContext(ctx, s.log)

	existing, err := s.subscriptions.FindByProviderID(ctx, s.db, provider.ID)
	if err != nil {
		return err
	}
	if existing == nil {
		return domain.ErrSubscriptionNotFound
	}

	status := domain.StatusFromProvider(provider.Status)
	if !domain.IsKnownProviderStatus(provider.Status) {
		log.Warn("unknown provider status, falling back to active",
			zap.String("provider_subscription_id", provider.ID),
			zap.String("provider_status", provider.Status),
		)
	}

	planID := existing.PlanID
	if provider.PriceID != "" && provider.PriceID != existing.ProviderPriceID {
		plan, err := s.resolvePlanByPrice(ctx, provider.PriceID)
		if err != nil {
			return err
		}
		if plan == nil {
			log.Warn("no plan matches updated price, keeping current plan",
				zap.String("provider_subscription_id", provider.ID),
				zap.String("provider_price_id", provider.PriceID),
			)
		} else {
			planID = plan.ID
		}
	}

	now := s.clock.Now()
	start, end := periodBounds(provider.CurrentPeriodStart, provider.CurrentPeriodEnd, now)

	existing.PlanID = planID
	existing.Status = status
	existing.BillingInterval = intervalFromProvider(provider.Interval, existing.BillingInterval)
	if provider.PriceID != "" {
		existing.ProviderPriceID = provider.PriceID
	}
	existing.CurrentPeriodStart = start
	existing.CurrentPeriodEnd = end
	existing.CanceledAt = canceledAtFromUnix(provider.CanceledAt)
	existing.UpdatedAt = now

	if err := s.subscriptions.Update(ctx, s.db, existing); err != nil {
		return fmt.Errorf("update subscription: %w", err)
	}

	switch {
	case status == domain.StatusActive:
		plan, err := s.plans.FindByID(ctx, s.db, planID)
		if err != nil {
			return err
		}
		if plan == nil {
			return plandomain.ErrPlanNotFound
		}
		return s.reconciler.Reconcile(ctx, existing.OwnerUserID, plan.MaxActiveStores)
	case status.ShouldDeactivate():
		return s.reconciler.Reconcile(ctx, existing.OwnerUserID, 0)
	default:
		return nil
	}
}

func (s *service) HandleDeleted(ctx context.Context, event *billingdomain.Event) error {
	provider := event.Subscription
	if provider == nil || provider.ID == "" {
		return billingdomain.ErrInvalidEvent
	}

	existing, err := s.subscriptions.FindByProviderID(ctx, s.db, provider.ID)
	if err != nil {
		return err
	}
	if existing == nil {
		return domain.ErrSubscriptionNotFound
	}

	now := s.clock.Now()
	existing.Status = domain.StatusCanceled
	existing.CanceledAt = &now
	existing.UpdatedAt = now
	if err := s.subscriptions.Update(ctx, s.db, existing); err != nil {
		return fmt.Errorf("cancel subscription: %w", err)
	}

	return s.reconciler.Reconcile(ctx, existing.OwnerUserID, 0)
}

// Invoice events only flip the status. Deactivation waits for the
// subscription-level updated/deleted events so a single missed payment inside
// the provider's retry window does not lock the tenant out.
func (s *service) HandleInvoicePaid(ctx context.Context, event *billingdomain.Event) error {
	return s.flipStatusFromInvoice(ctx, event, domain.StatusActive)
}

func (s *service) HandleInvoicePaymentFailed(ctx context.Context, event *billingdomain.Event) error {
	return s.flipStatusFromInvoice(ctx, event, domain.StatusPastDue)
}

func (s *service) flipStatusFromInvoice(ctx context.Context, event *billingdomain.Event, status domain.Status) error {
	invoice := event.Invoice
	if invoice == nil || invoice.SubscriptionID == "" {
		return billingdomain.ErrEventIgnored
	}
	return s.subscriptions.UpdateStatus(ctx, s.db, invoice.SubscriptionID, status, s.clock.Now())
}

func (s *service) GetByProviderID(ctx context.Context, providerSubscriptionID string) (domain.Subscription, error) {
	item, err := s.subscriptions.FindByProviderID(ctx, s.db, providerSubscriptionID)
	if err != nil {
		return domain.Subscription{}, err
	}
	if item == nil {
		return domain.Subscription{}, domain.ErrSubscriptionNotFound
	}
	return *item, nil
}

func (s *service) ReconcileOwner(ctx context.Context, ownerID snowflake.ID) error {
	if ownerID == 0 {
		return domain.ErrInvalidOwner
	}

	subscription, err := s.subscriptions.FindLatestByOwner(ctx, s.db, ownerID)
	if err != nil {
		return err
	}
	if subscription == nil {
		return domain.ErrNoActiveSubscription
	}

	quota := 0
	if !subscription.Status.ShouldDeactivate() {
		plan, err := s.plans.FindByID(ctx, s.db, subscription.PlanID)
		if err != nil {
			return err
		}
		if plan == nil {
			return plandomain.ErrPlanNotFound
		}
		quota = plan.MaxActiveStores
	}

	return s.reconciler.Reconcile(ctx, ownerID, quota)
}

func (s *service) resolvePlanForCreate(ctx context.Context, in createInput) (*plandomain.Plan, error) {
	if raw, ok := in.metadata[billingdomain.MetadataPlanID]; ok && raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, billingdomain.ErrMissingMetadata
		}
		plan, err := s.plans.FindByID(ctx, s.db, snowflake.ID(id))
		if err != nil {
			return nil, err
		}
		if plan != nil {
			return plan, nil
		}
	}

	plan, err := s.resolvePlanByPrice(ctx, in.providerPriceID)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, plandomain.ErrPlanNotFound
	}
	return plan, nil
}

// resolvePlanByPrice searches the monthly price column first, then yearly.
func (s *service) resolvePlanByPrice(ctx context.Context, priceID string) (*plandomain.Plan, error) {
	plan, err := s.plans.FindByMonthlyPriceID(ctx, s.db, priceID)
	if err != nil {
		return nil, err
	}
	if plan != nil {
		return plan, nil
	}
	return s.plans.FindByYearlyPriceID(ctx, s.db, priceID)
}

func createInputFromEvent(event *billingdomain.Event) (createInput, error) {
	switch {
	case event.Checkout != nil:
		c := event.Checkout
		if c.SubscriptionID == "" {
			return createInput{}, billingdomain.ErrInvalidEvent
		}
		return createInput{
			providerSubscriptionID: c.SubscriptionID,
			providerCustomerID:     c.CustomerID,
			interval:               domain.IntervalMonth,
			metadata:               c.Metadata,
		}, nil
	case event.Subscription != nil:
		p := event.Subscription
		if p.ID == "" {
			return createInput{}, billingdomain.ErrInvalidEvent
		}
		return createInput{
			providerSubscriptionID: p.ID,
			providerCustomerID:     p.CustomerID,
			providerPriceID:        p.PriceID,
			interval:               intervalFromProvider(p.Interval, domain.IntervalMonth),
			periodStart:            p.CurrentPeriodStart,
			periodEnd:              p.CurrentPeriodEnd,
			metadata:               p.Metadata,
		}, nil
	default:
		return createInput{}, billingdomain.ErrInvalidEvent
	}
}

func ownerFromMetadata(metadata map[string]string) (snowflake.ID, error) {
	raw, ok := metadata[billingdomain.MetadataUserID]
	if !ok || raw == "" {
		return 0, billingdomain.ErrMissingMetadata
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, billingdomain.ErrMissingMetadata
	}
	return snowflake.ID(id), nil
}

// periodBounds falls back to now / now+30d when the provider omits the
// period. The fallback is defensive, not a billing rule.
func periodBounds(startUnix, endUnix int64, now time.Time) (time.Time, time.Time) {
	start := now
	if startUnix > 0 {
		start = time.Unix(startUnix, 0).UTC()
	}
	end := now.Add(defaultPeriodLength)
	if endUnix > 0 {
		end = time.Unix(endUnix, 0).UTC()
	}
	return start, end
}

func firstOfNextMonth(now time.Time) time.Time {
	year, month, _ := now.UTC().Date()
	return time.Date(year, month+1, 1, 0, 0, 0, 0, time.UTC)
}

func intervalFromProvider(raw string, fallback domain.BillingInterval) domain.BillingInterval {
	switch raw {
	case "year":
		return domain.IntervalYear
	case "month":
		return domain.IntervalMonth
	default:
		return fallback
	}
}

func canceledAtFromUnix(unix int64) *time.Time {
	if unix <= 0 {
		return nil
	}
	t := time.Unix(unix, 0).UTC()
	return &t
}
