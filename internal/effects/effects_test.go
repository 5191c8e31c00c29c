package effects

import (
	"context"
	"errors"
	"testing"

	storedomain "github.com/storelane/storelane/internal/store/domain"
	"go.uber.org/zap"
)

type captureNotifier struct {
	failSlug string
	calls    []string
}

func (c *captureNotifier) Name() string { return "capture" }

func (c *captureNotifier) NotifyStoreChanged(ctx context.Context, change StoreChange) error {
	c.calls = append(c.calls, change.Store.Slug)
	if change.Store.Slug == c.failSlug {
		return errors.New("notify boom")
	}
	return nil
}

type captureInvalidator struct {
	batches [][]StoreChange
	err     error
}

func (c *captureInvalidator) Name() string { return "capture_cache" }

func (c *captureInvalidator) InvalidateBatch(ctx context.Context, changes []StoreChange) error {
	c.batches = append(c.batches, changes)
	return c.err
}

func testChanges() []StoreChange {
	return []StoreChange{
		{Store: storedomain.Store{Slug: "a", Category: "coffee", City: "berlin"}, Activated: true},
		{Store: storedomain.Store{Slug: "b", Category: "coffee", City: "hamburg"}, Activated: false},
	}
}

func TestProcessIsolatesNotifierFailures(t *testing.T) {
	notifier := &captureNotifier{failSlug: "a"}
	invalidator := &captureInvalidator{}
	o := &Orchestrator{
		log:          zap.NewNop(),
		notifiers:    []Notifier{notifier},
		invalidators: []Invalidator{invalidator},
	}

	o.Process(context.Background(), testChanges())

	if len(notifier.calls) != 2 {
		t.Fatalf("expected both stores attempted, got %v", notifier.calls)
	}
	if notifier.calls[1] != "b" {
		t.Fatalf("expected b attempted after a failed, got %v", notifier.calls)
	}
	if len(invalidator.batches) != 1 {
		t.Fatalf("expected one batch invalidation, got %d", len(invalidator.batches))
	}
}

func TestProcessRunsNotifiersDespiteInvalidatorFailure(t *testing.T) {
	notifier := &captureNotifier{}
	invalidator := &captureInvalidator{err: errors.New("cache boom")}
	o := &Orchestrator{
		log:          zap.NewNop(),
		notifiers:    []Notifier{notifier},
		invalidators: []Invalidator{invalidator},
	}

	o.Process(context.Background(), testChanges())

	if len(notifier.calls) != 2 {
		t.Fatalf("expected notifications despite cache failure, got %v", notifier.calls)
	}
}

type seqNotifier struct {
	sequence *[]string
}

func (s *seqNotifier) Name() string { return "seq" }

func (s *seqNotifier) NotifyStoreChanged(ctx context.Context, change StoreChange) error {
	*s.sequence = append(*s.sequence, "notify:"+change.Store.Slug)
	return nil
}

type seqInvalidator struct {
	sequence *[]string
}

func (s *seqInvalidator) Name() string { return "seq_cache" }

func (s *seqInvalidator) InvalidateBatch(ctx context.Context, changes []StoreChange) error {
	*s.sequence = append(*s.sequence, "invalidate")
	return nil
}

func TestProcessNotifiesBeforeBatchInvalidation(t *testing.T) {
	var sequence []string
	o := &Orchestrator{
		log:          zap.NewNop(),
		notifiers:    []Notifier{&seqNotifier{sequence: &sequence}},
		invalidators: []Invalidator{&seqInvalidator{sequence: &sequence}},
	}

	o.Process(context.Background(), testChanges())

	want := []string{"notify:a", "notify:b", "invalidate"}
	if len(sequence) != len(want) {
		t.Fatalf("unexpected sequence %v", sequence)
	}
	for i := range want {
		if sequence[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, sequence)
		}
	}
}

func TestDispatchNilAndEmptyAreNoOps(t *testing.T) {
	var o *Orchestrator
	o.Dispatch(testChanges())

	real := &Orchestrator{log: zap.NewNop()}
	real.Dispatch(nil)
}
