package middleware

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// CallbackDeduper tracks processed provider callbacks so a redelivered
// webhook is dropped before it reaches the ledger. The ledger's finalize is
// idempotent on its own; this just keeps duplicate deliveries out of the
// logs and the notification path.
type CallbackDeduper interface {
	Seen(ctx context.Context, key string) (bool, error)
}

type redisCallbackDeduper struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func (d *redisCallbackDeduper) Seen(ctx context.Context, key string) (bool, error) {
	ok, err := d.client.SetNX(ctx, d.prefix+":"+key, "1", d.ttl).Result()
	if err != nil {
		return false, err
	}
	// false => already exists => duplicate
	return !ok, nil
}

type memoryCallbackDeduper struct {
	mu     sync.Mutex
	seen   map[string]time.Time
	ttl    time.Duration
	nextGC time.Time
}

func newMemoryCallbackDeduper(ttl time.Duration) *memoryCallbackDeduper {
	now := time.Now()
	return &memoryCallbackDeduper{
		seen:   make(map[string]time.Time),
		ttl:    ttl,
		nextGC: now.Add(ttl),
	}
}

func (d *memoryCallbackDeduper) Seen(_ context.Context, key string) (bool, error) {
	now := time.Now()

	d.mu.Lock()
	defer d.mu.Unlock()

	if exp, ok := d.seen[key]; ok && exp.After(now) {
		return true, nil
	}

	d.seen[key] = now.Add(d.ttl)
	if now.After(d.nextGC) {
		for k, exp := range d.seen {
			if exp.Before(now) {
				delete(d.seen, k)
			}
		}
		d.nextGC = now.Add(d.ttl)
	}

	return false, nil
}

// NewCallbackDeduper builds a Redis deduper and falls back to in-memory on
// failure.
func NewCallbackDeduper(addr, pass string, db int, ttl time.Duration) (CallbackDeduper, error) {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if addr == "" {
		return newMemoryCallbackDeduper(ttl), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: pass,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return newMemoryCallbackDeduper(ttl), err
	}

	return &redisCallbackDeduper{
		client: client,
		prefix: "provider:callback",
		ttl:    ttl,
	}, nil
}
