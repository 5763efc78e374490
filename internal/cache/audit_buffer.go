package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"catalogsync-api/internal/model"
	"catalogsync-api/internal/obs"
	"catalogsync-api/pkg/uid"

	"github.com/redis/go-redis/v9"
)

const (
	// AuditBatchSize caps the number of events written per flush.
	AuditBatchSize = 100
	// AuditFlushTimeout bounds one flush against the audit store.
	AuditFlushTimeout = 30 * time.Second
)

// AuditFlushFunc persists a batch of buffered audit events.
type AuditFlushFunc func(ctx context.Context, events []model.AuditEvent) error

// claimBatchScript moves up to ARGV[1] events from the pending list to this
// instance's in-flight list and returns them.
var claimBatchScript = redis.NewScript(`
	local items = redis.call("LRANGE", KEYS[1], 0, tonumber(ARGV[1]) - 1)
	if #items == 0 then
		return items
	end
	redis.call("LTRIM", KEYS[1], #items, -1)
	redis.call("RPUSH", KEYS[2], unpack(items))
	return items
`)

// requeueScript puts in-flight events back at the head of the pending list.
var requeueScript = redis.NewScript(`
	local items = redis.call("LRANGE", KEYS[2], 0, -1)
	for i = #items, 1, -1 do
		redis.call("LPUSH", KEYS[1], items[i])
	end
	redis.call("DEL", KEYS[2])
	return #items
`)

// RedisAuditBuffer is a write-behind buffer for audit events. Events are
// appended to a Redis list and flushed to the audit store in batches.
type RedisAuditBuffer struct {
	client    *redis.Client
	flushFunc AuditFlushFunc
	keyPrefix string
	instance  string
	interval  time.Duration

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	log      *slog.Logger
}

// NewRedisAuditBuffer connects to Redis and starts the background flusher.
func NewRedisAuditBuffer(cfg RedisConfig, interval time.Duration, flushFunc AuditFlushFunc) (*RedisAuditBuffer, error) {
	client, err := newRedisClient(cfg)
	if err != nil {
		return nil, err
	}

	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "catalogsync:audit"
	}
	if interval <= 0 {
		interval = 10 * time.Second
	}

	b := &RedisAuditBuffer{
		client:    client,
		flushFunc: flushFunc,
		keyPrefix: prefix,
		instance:  uid.New(),
		interval:  interval,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
		log:       obs.Logger.With("component", "audit_buffer"),
	}

	go b.backgroundFlush()

	b.log.Info("redis audit buffer started", "db", cfg.DB, "prefix", prefix, "flush_interval", interval, "batch", AuditBatchSize)
	return b, nil
}

func (b *RedisAuditBuffer) pendingKey() string {
	return b.keyPrefix + ":pending"
}

func (b *RedisAuditBuffer) inflightKey() string {
	return b.keyPrefix + ":inflight:" + b.instance
}

// Add appends ev to the pending list.
func (b *RedisAuditBuffer) Add(ctx context.Context, ev model.AuditEvent) error {
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode audit event: %w", err)
	}
	return b.client.RPush(ctx, b.pendingKey(), data).Err()
}

// Count returns the number of pending events.
func (b *RedisAuditBuffer) Count(ctx context.Context) (int64, error) {
	return b.client.LLen(ctx, b.pendingKey()).Result()
}

// FlushBatch writes up to AuditBatchSize events to the audit store and
// returns how many were claimed. On a store failure the batch is returned to
// the pending list.
func (b *RedisAuditBuffer) FlushBatch(ctx context.Context) (int, error) {
	keys := []string{b.pendingKey(), b.inflightKey()}
	raw, err := claimBatchScript.Run(ctx, b.client, keys, AuditBatchSize).StringSlice()
	if err != nil && err != redis.Nil {
		return 0, fmt.Errorf("failed to claim audit batch: %w", err)
	}
	if len(raw) == 0 {
		return 0, nil
	}

	if err := b.writeClaimed(ctx, raw); err != nil {
		if rqErr := requeueScript.Run(ctx, b.client, keys).Err(); rqErr != nil {
			b.log.Error("failed to requeue audit batch", "error", rqErr)
		}
		return 0, err
	}

	if err := b.client.Del(ctx, b.inflightKey()).Err(); err != nil {
		b.log.Warn("failed to clear in-flight audit batch", "error", err)
	}
	return len(raw), nil
}

// writeClaimed decodes a claimed batch and hands it to the flush func.
// Undecodable items are logged and discarded.
func (b *RedisAuditBuffer) writeClaimed(ctx context.Context, raw []string) error {
	events := make([]model.AuditEvent, 0, len(raw))
	for _, item := range raw {
		var ev model.AuditEvent
		if err := json.Unmarshal([]byte(item), &ev); err != nil {
			b.log.Error("dropping undecodable audit event", "error", err)
			continue
		}
		events = append(events, ev)
	}
	if len(events) == 0 {
		return nil
	}
	if err := b.flushFunc(ctx, events); err != nil {
		return fmt.Errorf("failed to flush audit batch: %w", err)
	}
	return nil
}

// drain calls flush until it reports an empty batch, fails, or ctx ends.
// It returns the number of items flushed.
func drain(ctx context.Context, flush func(ctx context.Context) (int, error)) (int, error) {
	total := 0
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		n, err := flush(ctx)
		if err != nil {
			return total, err
		}
		if n == 0 {
			return total, nil
		}
		total += n
	}
}

func (b *RedisAuditBuffer) backgroundFlush() {
	defer close(b.done)

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), AuditFlushTimeout)
			n, err := drain(ctx, b.FlushBatch)
			if err != nil {
				b.log.Error("background flush failed", "error", err, "flushed", n)
			} else if n > 0 {
				b.log.Debug("flushed audit events", "count", n)
			}
			cancel()
		case <-b.stop:
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
			n, err := drain(ctx, b.FlushBatch)
			cancel()
			if err != nil {
				b.log.Error("shutdown flush failed", "error", err, "flushed", n)
			}
			b.log.Info("shutdown flush complete", "flushed", n)
			return
		}
	}
}

// Close stops the flusher after a final drain and closes the Redis client.
func (b *RedisAuditBuffer) Close() error {
	b.stopOnce.Do(func() { close(b.stop) })
	<-b.done
	return b.client.Close()
}
