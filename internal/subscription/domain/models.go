// Package domain contains persistence models for billing subscriptions.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Status represents lifecycle states for a subscription.
type Status string

const (
	StatusActive            Status = "ACTIVE"
	StatusCanceled          Status = "CANCELED"
	StatusIncomplete        Status = "INCOMPLETE"
	StatusIncompleteExpired Status = "INCOMPLETE_EXPIRED"
	StatusPastDue           Status = "PAST_DUE"
	StatusTrialing          Status = "TRIALING"
	StatusUnpaid            Status = "UNPAID"
)

// BillingInterval is the purchased billing cadence.
type BillingInterval string

const (
	IntervalMonth BillingInterval = "month"
	IntervalYear  BillingInterval = "year"
)

// Subscription captures one billing relationship with the provider.
// Rows are never hard-deleted; terminal lifecycles land on StatusCanceled.
type Subscription struct {
	ID                     snowflake.ID    `gorm:"primaryKey"`
	OwnerUserID            snowflake.ID    `gorm:"not null;index"`
	PlanID                 snowflake.ID    `gorm:"not null"`
	Status                 Status          `gorm:"type:text;not null"`
	BillingInterval        BillingInterval `gorm:"type:text;not null"`
	ProviderCustomerID     string          `gorm:"type:text;not null"`
	ProviderSubscriptionID string          `gorm:"type:text;not null;uniqueIndex"`
	ProviderPriceID        string          `gorm:"type:text;not null"`
	CurrentPeriodStart     time.Time       `gorm:"not null"`
	CurrentPeriodEnd       time.Time       `gorm:"not null"`
	CanceledAt             *time.Time      `gorm:""`
	AIUsageCount           int             `gorm:"not null;default:0"`
	AIUsageResetAt         time.Time       `gorm:"not null"`
	CreatedAt              time.Time       `gorm:"not null"`
	UpdatedAt              time.Time       `gorm:"not null"`
}

// TableName sets the database table name.
func (Subscription) TableName() string { return "subscriptions" }
