package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	subscriptiondomain "github.com/storelane/storelane/internal/subscription/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() subscriptiondomain.Repository {
	return &repo{}
}

const selectColumns = `id, owner_user_id, plan_id, status, billing_interval,
	provider_customer_id, provider_subscription_id, provider_price_id,
	current_period_start, current_period_end, canceled_at,
	ai_usage_count, ai_usage_reset_at, created_at, updated_at`

func (r *repo) InsertIgnoreDuplicate(ctx context.Context, db *gorm.DB, subscription *subscriptiondomain.Subscription) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`INSERT INTO subscriptions (
			id, owner_user_id, plan_id, status, billing_interval,
			provider_customer_id, provider_subscription_id, provider_price_id,
			current_period_start, current_period_end, canceled_at,
			ai_usage_count, ai_usage_reset_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (provider_subscription_id) DO NOTHING`,
		subscription.ID,
		subscription.OwnerUserID,
		subscription.PlanID,
		subscription.Status,
		subscription.BillingInterval,
		subscription.ProviderCustomerID,
		subscription.ProviderSubscriptionID,
		subscription.ProviderPriceID,
		subscription.CurrentPeriodStart,
		subscription.CurrentPeriodEnd,
		subscription.CanceledAt,
		subscription.AIUsageCount,
		subscription.AIUsageResetAt,
		subscription.CreatedAt,
		subscription.UpdatedAt,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) FindByProviderID(ctx context.Context, db *gorm.DB, providerSubscriptionID string) (*subscriptiondomain.Subscription, error) {
	var item subscriptiondomain.Subscription
	err := db.WithContext(ctx).Raw(
		`SELECT `+selectColumns+` FROM subscriptions WHERE provider_subscription_id = ? LIMIT 1`,
		providerSubscriptionID,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) FindLatestByOwner(ctx context.Context, db *gorm.DB, ownerID snowflake.ID) (*subscriptiondomain.Subscription, error) {
	var item subscriptiondomain.Subscription
	err := db.WithContext(ctx).Raw(
		`SELECT `+selectColumns+` FROM subscriptions
		 WHERE owner_user_id = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT 1`,
		ownerID,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, subscription *subscriptiondomain.Subscription) error {
	return db.WithContext(ctx).Exec(
		`UPDATE subscriptions SET
			plan_id = ?,
			status = ?,
			billing_interval = ?,
			provider_price_id = ?,
			current_period_start = ?,
			current_period_end = ?,
			canceled_at = ?,
			updated_at = ?
		 WHERE provider_subscription_id = ?`,
		subscription.PlanID,
		subscription.Status,
		subscription.BillingInterval,
		subscription.ProviderPriceID,
		subscription.CurrentPeriodStart,
		subscription.CurrentPeriodEnd,
		subscription.CanceledAt,
		subscription.UpdatedAt,
		subscription.ProviderSubscriptionID,
	).Error
}

func (r *repo) UpdateStatus(ctx context.Context, db *gorm.DB, providerSubscriptionID string, status subscriptiondomain.Status, updatedAt time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE subscriptions SET status = ?, updated_at = ? WHERE provider_subscription_id = ?`,
		status,
		updatedAt,
		providerSubscriptionID,
	).Error
}
