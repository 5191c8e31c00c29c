// Package domain contains the store ownership transfer audit trail.
package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// StoreTransfer is an immutable audit entry recording one ownership change.
type StoreTransfer struct {
	ID              snowflake.ID `gorm:"primaryKey"`
	StoreID         snowflake.ID `gorm:"not null;index"`
	PreviousOwnerID snowflake.ID `gorm:"not null"`
	NewOwnerID      snowflake.ID `gorm:"not null"`
	InitiatedBy     string       `gorm:"type:text;not null"`
	WasActivated    bool         `gorm:"not null"`
	CreatedAt       time.Time    `gorm:"not null"`
}

// TableName sets the database table name.
func (StoreTransfer) TableName() string { return "store_transfers" }

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, transfer *StoreTransfer) error
}

// Service reassigns a store to the paying user during checkout.
type Service interface {
	// TransferFromCheckout moves the store identified by slug to newOwnerID,
	// forcing it active and recording one audit entry. A store already owned
	// by newOwnerID is a no-op.
	TransferFromCheckout(ctx context.Context, storeSlug string, newOwnerID snowflake.ID) error
}
