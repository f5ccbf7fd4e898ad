package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "gavel:dup:"

// RedisLedger stores claim fingerprints in Redis so that multiple nodes
// share one duplicate set. CheckAndRecord uses SETNX, which is atomic
// across nodes.
type RedisLedger struct {
	client *redis.Client
}

// NewRedisLedger creates a Redis-backed ledger.
func NewRedisLedger(addr, password string, db int) (*RedisLedger, error) {
	if addr == "" {
		addr = "localhost:6379"
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisLedger{client: client}, nil
}

// Seen reports whether the key has been recorded, without recording it.
func (l *RedisLedger) Seen(ctx context.Context, key string) (bool, error) {
	n, err := l.client.Exists(ctx, keyPrefix+key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Record adds a key to the ledger. Fingerprints carry no value; only
// existence matters.
func (l *RedisLedger) Record(ctx context.Context, key string) error {
	return l.client.Set(ctx, keyPrefix+key, "1", 0).Err()
}

// CheckAndRecord atomically records the key and reports whether it was
// already present. SETNX returns false when the key existed.
func (l *RedisLedger) CheckAndRecord(ctx context.Context, key string) (bool, error) {
	set, err := l.client.SetNX(ctx, keyPrefix+key, "1", 0).Result()
	if err != nil {
		return false, err
	}
	return !set, nil
}

// Reset removes all recorded fingerprints. Scans rather than FLUSHDB so a
// shared Redis instance is not wiped.
func (l *RedisLedger) Reset(ctx context.Context) error {
	iter := l.client.Scan(ctx, 0, keyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := l.client.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}

// Ping checks Redis connectivity.
func (l *RedisLedger) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (l *RedisLedger) Close() error {
	return l.client.Close()
}
