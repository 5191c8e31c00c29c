package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	plandomain "github.com/storelane/storelane/internal/plan/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() plandomain.Repository {
	return &repo{}
}

const selectColumns = `id, code, name, max_active_stores, monthly_price_id, yearly_price_id, created_at, updated_at`

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*plandomain.Plan, error) {
	var item plandomain.Plan
	err := db.WithContext(ctx).Raw(
		`SELECT `+selectColumns+` FROM plans WHERE id = ? LIMIT 1`,
		id,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) FindByCode(ctx context.Context, db *gorm.DB, code string) (*plandomain.Plan, error) {
	var item plandomain.Plan
	err := db.WithContext(ctx).Raw(
		`SELECT `+selectColumns+` FROM plans WHERE code = ? LIMIT 1`,
		code,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) FindByMonthlyPriceID(ctx context.Context, db *gorm.DB, priceID string) (*plandomain.Plan, error) {
	return r.findByPriceColumn(ctx, db, "monthly_price_id", priceID)
}

func (r *repo) FindByYearlyPriceID(ctx context.Context, db *gorm.DB, priceID string) (*plandomain.Plan, error) {
	return r.findByPriceColumn(ctx, db, "yearly_price_id", priceID)
}

func (r *repo) findByPriceColumn(ctx context.Context, db *gorm.DB, column, priceID string) (*plandomain.Plan, error) {
	if priceID == "" {
		return nil, nil
	}
	var item plandomain.Plan
	err := db.WithContext(ctx).Raw(
		`SELECT `+selectColumns+` FROM plans WHERE `+column+` = ? LIMIT 1`,
		priceID,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, plan *plandomain.Plan) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO plans (id, code, name, max_active_stores, monthly_price_id, yearly_price_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		plan.ID,
		plan.Code,
		plan.Name,
		plan.MaxActiveStores,
		plan.MonthlyPriceID,
		plan.YearlyPriceID,
		plan.CreatedAt,
		plan.UpdatedAt,
	).Error
}
