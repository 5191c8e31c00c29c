// Package reconciler converges a user's store activations onto the quota
// granted by their subscription.
package reconciler

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/storelane/storelane/internal/clock"
	"github.com/storelane/storelane/internal/config"
	"github.com/storelane/storelane/internal/effects"
	"github.com/storelane/storelane/internal/lock"
	"github.com/storelane/storelane/internal/observability/metrics"
	storedomain "github.com/storelane/storelane/internal/store/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const lockKeyFormat = "reconcile:owner:%d"

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	Metrics    *metrics.Metrics
	Clock      clock.Clock
	Guardrails *config.GuardrailsHolder
	Locker     *lock.Locker
	Stores     storedomain.Repository
	Effects    *effects.Orchestrator
}

type Reconciler struct {
	db         *gorm.DB
	log        *zap.Logger
	metrics    *metrics.Metrics
	clock      clock.Clock
	guardrails *config.GuardrailsHolder
	locker     *lock.Locker
	stores     storedomain.Repository
	effects    *effects.Orchestrator
}

func New(p Params) *Reconciler {
	return &Reconciler{
		db:         p.DB,
		log:        p.Log.Named("store.reconciler"),
		metrics:    p.Metrics,
		clock:      p.Clock,
		guardrails: p.Guardrails,
		locker:     p.Locker,
		stores:     p.Stores,
		effects:    p.Effects,
	}
}

// Reconcile converges the owner's catalog so exactly min(quota, total) stores
// are active, preferring the newest stores. Only stores whose flag actually
// changes are written, so re-running with the same quota is a no-op.
func (r *Reconciler) Reconcile(ctx context.Context, ownerID snowflake.ID, quota int) error {
	if quota < 0 {
		quota = 0
	}

	release, err := r.acquireLock(ctx, ownerID)
	if err != nil {
		return err
	}
	defer release()

	stores, err := r.stores.ListByOwner(ctx, r.db, ownerID)
	if err != nil {
		return fmt.Errorf("list stores: %w", err)
	}

	changes := r.plan(stores, quota)
	if len(changes) == 0 {
		return nil
	}

	if max := r.guardrails.Get().MaxReconcileBatch; max > 0 && len(changes) > max {
		// The cap bounds activations only. Deactivations are never dropped:
		// an acknowledged run must not leave the owner above quota.
		keep := max
		if d := deactivationCount(changes); keep < d {
			keep = d
		}
		r.log.Warn("reconcile batch capped",
			zap.Int64("owner_user_id", int64(ownerID)),
			zap.Int("planned", len(changes)),
			zap.Int("kept", keep),
			zap.Int("cap", max),
		)
		changes = changes[:keep]
	}

	now := r.clock.Now()
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, change := range changes {
			if err := r.stores.SetActive(ctx, tx, change.Store.ID, change.Activated, now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("persist activation changes: %w", err)
	}

	activated, deactivated := 0, 0
	for i := range changes {
		changes[i].Store.IsActive = changes[i].Activated
		changes[i].Store.UpdatedAt = now
		if changes[i].Activated {
			activated++
		} else {
			deactivated++
		}
	}
	r.metrics.RecordStoreTransition(ctx, "activate", activated)
	r.metrics.RecordStoreTransition(ctx, "deactivate", deactivated)
	r.log.Info("reconciled stores",
		zap.Int64("owner_user_id", int64(ownerID)),
		zap.Int("quota", quota),
		zap.Int("total", len(stores)),
		zap.Int("activated", activated),
		zap.Int("deactivated", deactivated),
	)

	r.effects.Dispatch(changes)
	return nil
}

// plan returns the delta between current flags and the desired state where
// the first quota stores of the newest-first listing are active. Deactivations
// are ordered ahead of activations so the batch cap can truncate only the
// activation tail.
func (r *Reconciler) plan(stores []storedomain.Store, quota int) []effects.StoreChange {
	var activate, deactivate []effects.StoreChange
	for i, store := range stores {
		desired := i < quota
		if store.IsActive == desired {
			continue
		}
		change := effects.StoreChange{Store: store, Activated: desired}
		if desired {
			activate = append(activate, change)
		} else {
			deactivate = append(deactivate, change)
		}
	}
	return append(deactivate, activate...)
}

func deactivationCount(changes []effects.StoreChange) int {
	count := 0
	for _, change := range changes {
		if !change.Activated {
			count++
		}
	}
	return count
}

func (r *Reconciler) acquireLock(ctx context.Context, ownerID snowflake.ID) (func(), error) {
	if r.locker == nil {
		return func() {}, nil
	}
	g := r.guardrails.Get()
	key := fmt.Sprintf(lockKeyFormat, ownerID)
	token, err := r.locker.Acquire(ctx, key, g.LockTTL, g.LockAttempts, g.LockRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("acquire reconcile lock: %w", err)
	}
	return func() {
		if err := r.locker.Release(context.Background(), key, token); err != nil {
			r.log.Warn("release reconcile lock failed", zap.String("key", key), zap.Error(err))
		}
	}, nil
}

var Module = fx.Module("reconciler",
	fx.Provide(New),
)
