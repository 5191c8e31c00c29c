// Package seed provisions the default plan catalog for startup bootstrap.
package seed

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	plandomain "github.com/storelane/storelane/internal/plan/domain"
	"gorm.io/gorm"
)

type defaultPlan struct {
	Code            string
	Name            string
	MaxActiveStores int
}

var defaultPlans = []defaultPlan{
	{Code: "starter", Name: "Starter", MaxActiveStores: 1},
	{Code: "growth", Name: "Growth", MaxActiveStores: 3},
	{Code: "scale", Name: "Scale", MaxActiveStores: 10},
}

// EnsureDefaultPlans inserts the built-in plans when absent. Provider price
// identifiers are attached later through the catalog admin, so they start empty.
func EnsureDefaultPlans(db *gorm.DB) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, item := range defaultPlans {
			if err := ensurePlanTx(ctx, tx, node, item); err != nil {
				return err
			}
		}
		return nil
	})
}

func ensurePlanTx(ctx context.Context, tx *gorm.DB, node *snowflake.Node, item defaultPlan) error {
	var existing plandomain.Plan
	err := tx.WithContext(ctx).Raw(
		`SELECT id FROM plans WHERE code = ? LIMIT 1`,
		item.Code,
	).Scan(&existing).Error
	if err != nil {
		return err
	}
	if existing.ID != 0 {
		return nil
	}

	now := time.Now().UTC()
	return tx.WithContext(ctx).Exec(
		`INSERT INTO plans (id, code, name, max_active_stores, monthly_price_id, yearly_price_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, '', '', ?, ?)`,
		node.Generate(),
		item.Code,
		item.Name,
		item.MaxActiveStores,
		now,
		now,
	).Error
}
