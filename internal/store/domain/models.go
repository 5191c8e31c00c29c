// Package domain contains the storefront catalog models owned by the
// reconciliation engine.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Store is one storefront in a user's catalog. Only is_active is owned by
// the reconciler; everything else is managed by the catalog surface.
type Store struct {
	ID           snowflake.ID      `gorm:"primaryKey"`
	OwnerUserID  snowflake.ID      `gorm:"not null;index"`
	Slug         string            `gorm:"type:text;not null;uniqueIndex"`
	Name         string            `gorm:"type:text;not null"`
	Category     string            `gorm:"type:text;not null"`
	City         string            `gorm:"type:text;not null"`
	CustomDomain string            `gorm:"type:text"`
	IsActive     bool              `gorm:"not null;default:false"`
	Metadata     datatypes.JSONMap `gorm:"type:jsonb"`
	CreatedAt    time.Time         `gorm:"not null"`
	UpdatedAt    time.Time         `gorm:"not null"`
}

// TableName sets the database table name.
func (Store) TableName() string { return "stores" }

var (
	ErrStoreNotFound = errors.New("store_not_found")
)

type Repository interface {
	// ListByOwner returns the owner's stores newest-first, ties broken by
	// descending id. The reconciler depends on this ordering being stable.
	ListByOwner(ctx context.Context, db *gorm.DB, ownerID snowflake.ID) ([]Store, error)
	FindBySlug(ctx context.Context, db *gorm.DB, slug string) (*Store, error)
	SetActive(ctx context.Context, db *gorm.DB, id snowflake.ID, active bool, updatedAt time.Time) error
	UpdateOwner(ctx context.Context, db *gorm.DB, id snowflake.ID, ownerID snowflake.ID, active bool, updatedAt time.Time) error
}
