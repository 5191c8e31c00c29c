// Package domain contains the purchasable plan catalog read by the billing engine.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Plan is a purchasable tier. Read-only to the reconciliation engine.
type Plan struct {
	ID              snowflake.ID `gorm:"primaryKey"`
	Code            string       `gorm:"type:text;not null"`
	Name            string       `gorm:"type:text;not null"`
	MaxActiveStores int          `gorm:"not null;default:1"`
	MonthlyPriceID  string       `gorm:"type:text;not null"`
	YearlyPriceID   string       `gorm:"type:text;not null"`
	CreatedAt       time.Time    `gorm:"not null"`
	UpdatedAt       time.Time    `gorm:"not null"`
}

// TableName sets the database table name.
func (Plan) TableName() string { return "plans" }

var (
	ErrPlanNotFound = errors.New("plan_not_found")
)

type Repository interface {
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Plan, error)
	FindByCode(ctx context.Context, db *gorm.DB, code string) (*Plan, error)
	FindByMonthlyPriceID(ctx context.Context, db *gorm.DB, priceID string) (*Plan, error)
	FindByYearlyPriceID(ctx context.Context, db *gorm.DB, priceID string) (*Plan, error)
	Insert(ctx context.Context, db *gorm.DB, plan *Plan) error
}
