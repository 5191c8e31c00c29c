package repository

import (
	"context"

	transferdomain "github.com/storelane/storelane/internal/transfer/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() transferdomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, transfer *transferdomain.StoreTransfer) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO store_transfers (id, store_id, previous_owner_id, new_owner_id, initiated_by, was_activated, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		transfer.ID,
		transfer.StoreID,
		transfer.PreviousOwnerID,
		transfer.NewOwnerID,
		transfer.InitiatedBy,
		transfer.WasActivated,
		transfer.CreatedAt,
	).Error
}
