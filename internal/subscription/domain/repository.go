package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	// InsertIgnoreDuplicate inserts the subscription, relying on the
	// uniqueness constraint on provider_subscription_id to absorb
	// duplicate deliveries. Returns whether a row was actually written.
	InsertIgnoreDuplicate(ctx context.Context, db *gorm.DB, subscription *Subscription) (bool, error)
	FindByProviderID(ctx context.Context, db *gorm.DB, providerSubscriptionID string) (*Subscription, error)
	FindLatestByOwner(ctx context.Context, db *gorm.DB, ownerID snowflake.ID) (*Subscription, error)
	Update(ctx context.Context, db *gorm.DB, subscription *Subscription) error
	UpdateStatus(ctx context.Context, db *gorm.DB, providerSubscriptionID string, status Status, updatedAt time.Time) error
}
