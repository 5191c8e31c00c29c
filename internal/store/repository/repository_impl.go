package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	storedomain "github.com/storelane/storelane/internal/store/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() storedomain.Repository {
	return &repo{}
}

const selectColumns = `id, owner_user_id, slug, name, category, city,
	custom_domain, is_active, metadata, created_at, updated_at`

func (r *repo) ListByOwner(ctx context.Context, db *gorm.DB, ownerID snowflake.ID) ([]storedomain.Store, error) {
	var items []storedomain.Store
	err := db.WithContext(ctx).Raw(
		`SELECT `+selectColumns+` FROM stores
		 WHERE owner_user_id = ?
		 ORDER BY created_at DESC, id DESC`,
		ownerID,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) FindBySlug(ctx context.Context, db *gorm.DB, slug string) (*storedomain.Store, error) {
	var item storedomain.Store
	err := db.WithContext(ctx).Raw(
		`SELECT `+selectColumns+` FROM stores WHERE slug = ? LIMIT 1`,
		slug,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) SetActive(ctx context.Context, db *gorm.DB, id snowflake.ID, active bool, updatedAt time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE stores SET is_active = ?, updated_at = ? WHERE id = ?`,
		active,
		updatedAt,
		id,
	).Error
}

func (r *repo) UpdateOwner(ctx context.Context, db *gorm.DB, id snowflake.ID, ownerID snowflake.ID, active bool, updatedAt time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE stores SET owner_user_id = ?, is_active = ?, updated_at = ? WHERE id = ?`,
		ownerID,
		active,
		updatedAt,
		id,
	).Error
}
