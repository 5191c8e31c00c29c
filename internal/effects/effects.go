// Package effects runs the non-transactional side effects that follow a
// store activation change: cache invalidation and search-engine pings.
// Failures here are logged and counted, never propagated to the caller.
package effects

import (
	"context"
	"time"

	"github.com/storelane/storelane/internal/config"
	"github.com/storelane/storelane/internal/observability/metrics"
	storedomain "github.com/storelane/storelane/internal/store/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// StoreChange describes one store whose visibility flipped.
type StoreChange struct {
	Store     storedomain.Store
	Activated bool
}

// Notifier performs one kind of side effect for one changed store.
type Notifier interface {
	Name() string
	NotifyStoreChanged(ctx context.Context, change StoreChange) error
}

// Invalidator performs batch-level cache invalidation once per dispatch.
type Invalidator interface {
	Name() string
	InvalidateBatch(ctx context.Context, changes []StoreChange) error
}

type Orchestrator struct {
	log          *zap.Logger
	metrics      *metrics.Metrics
	guardrails   *config.GuardrailsHolder
	notifiers    []Notifier
	invalidators []Invalidator
}

type OrchestratorParams struct {
	fx.In

	Log        *zap.Logger
	Metrics    *metrics.Metrics
	Guardrails *config.GuardrailsHolder
	IndexNow   *IndexNowNotifier
	SiteCache  *SiteCacheInvalidator
}

func NewOrchestrator(p OrchestratorParams) *Orchestrator {
	o := &Orchestrator{
		log:        p.Log.Named("effects.orchestrator"),
		metrics:    p.Metrics,
		guardrails: p.Guardrails,
	}
	if p.IndexNow != nil {
		o.notifiers = append(o.notifiers, p.IndexNow)
	}
	if p.SiteCache != nil {
		o.invalidators = append(o.invalidators, p.SiteCache)
	}
	return o
}

// Dispatch runs the side effects for a batch of changes on a background
// goroutine, detached from the caller's context so an HTTP response going
// out does not cancel them. Always returns immediately.
func (o *Orchestrator) Dispatch(changes []StoreChange) {
	if o == nil || len(changes) == 0 {
		return
	}
	timeout := o.guardrails.Get().SideEffectTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		o.Process(ctx, changes)
	}()
}

// Process runs the side effects synchronously. Per-store notifications run
// first, batch invalidation after the whole batch is notified. Each store and
// each effect kind is isolated: one failure is recorded and the rest still run.
func (o *Orchestrator) Process(ctx context.Context, changes []StoreChange) {
	for _, change := range changes {
		for _, n := range o.notifiers {
			if err := n.NotifyStoreChanged(ctx, change); err != nil {
				o.metrics.RecordSideEffectFailure(ctx, n.Name())
				o.log.Warn("store notification failed",
					zap.String("kind", n.Name()),
					zap.String("store_slug", change.Store.Slug),
					zap.Bool("activated", change.Activated),
					zap.Error(err),
				)
			}
		}
	}
	for _, inv := range o.invalidators {
		if err := inv.InvalidateBatch(ctx, changes); err != nil {
			o.metrics.RecordSideEffectFailure(ctx, inv.Name())
			o.log.Warn("batch invalidation failed",
				zap.String("kind", inv.Name()),
				zap.Int("changes", len(changes)),
				zap.Error(err),
			)
		}
	}
}
