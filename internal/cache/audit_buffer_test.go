package cache

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"catalogsync-api/internal/model"
	"catalogsync-api/internal/obs"
)

func TestWriteClaimedSkipsUndecodable(t *testing.T) {
	var flushed []model.AuditEvent
	b := &RedisAuditBuffer{
		flushFunc: func(ctx context.Context, events []model.AuditEvent) error {
			flushed = append(flushed, events...)
			return nil
		},
		log: obs.Logger,
	}

	good, _ := json.Marshal(model.NewSystemEvent(model.ActionSync, "{}"))
	if err := b.writeClaimed(context.Background(), []string{"{broken", string(good)}); err != nil {
		t.Fatalf("write claimed: %v", err)
	}
	if len(flushed) != 1 || flushed[0].Action != model.ActionSync {
		t.Fatalf("unexpected flushed events: %+v", flushed)
	}

	calls := 0
	b.flushFunc = func(ctx context.Context, events []model.AuditEvent) error {
		calls++
		return nil
	}
	if err := b.writeClaimed(context.Background(), []string{"{broken", "also broken"}); err != nil {
		t.Fatalf("all-undecodable batch: %v", err)
	}
	if calls != 0 {
		t.Errorf("flush func called for an empty batch")
	}
}

func TestWriteClaimedReportsStoreFailure(t *testing.T) {
	storeErr := errors.New("store down")
	b := &RedisAuditBuffer{
		flushFunc: func(ctx context.Context, events []model.AuditEvent) error { return storeErr },
		log:       obs.Logger,
	}
	good, _ := json.Marshal(model.NewSystemEvent(model.ActionSync, "{}"))
	if err := b.writeClaimed(context.Background(), []string{string(good)}); !errors.Is(err, storeErr) {
		t.Fatalf("expected store error, got %v", err)
	}
}

func TestDrainContinuesUntilEmpty(t *testing.T) {
	// claimed counts per batch; a batch of only undecodable items still counts
	batches := []int{100, 100, 3, 0}
	calls := 0
	n, err := drain(context.Background(), func(context.Context) (int, error) {
		v := batches[calls]
		calls++
		return v, nil
	})
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if n != 203 || calls != 4 {
		t.Errorf("flushed %d in %d calls, want 203 in 4", n, calls)
	}
}

func TestDrainStopsOnError(t *testing.T) {
	flushErr := errors.New("claim failed")
	calls := 0
	n, err := drain(context.Background(), func(context.Context) (int, error) {
		calls++
		if calls == 2 {
			return 0, flushErr
		}
		return 10, nil
	})
	if !errors.Is(err, flushErr) || n != 10 {
		t.Errorf("got %d, %v", n, err)
	}
}

func TestDrainHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	n, err := drain(ctx, func(context.Context) (int, error) {
		calls++
		if calls == 3 {
			cancel()
		}
		return 1, nil
	})
	if !errors.Is(err, context.Canceled) || n != 3 {
		t.Errorf("got %d, %v", n, err)
	}
}
