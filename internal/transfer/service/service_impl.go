package service

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	slugify "github.com/gosimple/slug"
	"github.com/storelane/storelane/internal/clock"
	"github.com/storelane/storelane/internal/effects"
	"github.com/storelane/storelane/internal/observability/logger"
	"github.com/storelane/storelane/internal/observability/metrics"
	storedomain "github.com/storelane/storelane/internal/store/domain"
	"github.com/storelane/storelane/internal/transfer/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const initiatedByCheckout = "checkout"

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Clock     clock.Clock
	Metrics   *metrics.Metrics
	Stores    storedomain.Repository
	Transfers domain.Repository
	Effects   *effects.Orchestrator
}

type service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	clock     clock.Clock
	metrics   *metrics.Metrics
	stores    storedomain.Repository
	transfers domain.Repository
	effects   *effects.Orchestrator
}

func Provide(p Params) domain.Service {
	return &service{
		db:        p.DB,
		log:       p.Log.Named("transfer.service"),
		genID:     p.GenID,
		clock:     p.Clock,
		metrics:   p.Metrics,
		stores:    p.Stores,
		transfers: p.Transfers,
		effects:   p.Effects,
	}
}

func (s *service) TransferFromCheckout(ctx context.Context, storeSlug string, newOwnerID snowflake.ID) error {
	normalized := slugify.Make(storeSlug)
	if normalized == "" || newOwnerID == 0 {
		return storedomain.ErrStoreNotFound
	}

	store, err := s.stores.FindBySlug(ctx, s.db, normalized)
	if err != nil {
		return err
	}
	if store == nil {
		return storedomain.ErrStoreNotFound
	}
	if store.OwnerUserID == newOwnerID {
		return nil
	}

	now := s.clock.Now()
	transfer := &domain.StoreTransfer{
		ID:              s.genID.Generate(),
		StoreID:         store.ID,
		PreviousOwnerID: store.OwnerUserID,
		NewOwnerID:      newOwnerID,
		InitiatedBy:     initiatedByCheckout,
		WasActivated:    !store.IsActive,
		CreatedAt:       now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.stores.UpdateOwner(ctx, tx, store.ID, newOwnerID, true, now); err != nil {
			return err
		}
		return s.transfers.Insert(ctx, tx, transfer)
	})
	if err != nil {
		return fmt.Errorf("transfer store ownership: %w", err)
	}

	s.metrics.RecordStoreTransfer(ctx)
	logger.WithContext(ctx, s.log).Info("store ownership transferred",
		zap.String("store_slug", store.Slug),
		zap.Int64("previous_owner_id", int64(transfer.PreviousOwnerID)),
		zap.Int64("new_owner_id", int64(newOwnerID)),
		zap.Bool("was_activated", transfer.WasActivated),
	)

	store.OwnerUserID = newOwnerID
	store.IsActive = true
	store.UpdatedAt = now
	s.effects.Dispatch([]effects.StoreChange{{Store: *store, Activated: true}})
	return nil
}
