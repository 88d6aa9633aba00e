package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ledgerly/invoicing/internal/domain/shared"
)

const (
	claimPrefix = "invoicing:inflight:"
	sweepEvery  = 5 * time.Minute
)

// MemoryClaims keeps claims in this process. A janitor drops expired ones.
type MemoryClaims struct {
	mu      sync.Mutex
	expires map[string]time.Time
	now     func() time.Time
	done    chan struct{}
	stopped sync.WaitGroup
	once    sync.Once
}

func NewMemoryClaims() *MemoryClaims {
	m := &MemoryClaims{
		expires: make(map[string]time.Time),
		now:     time.Now,
		done:    make(chan struct{}),
	}
	m.stopped.Add(1)
	go m.janitor(sweepEvery)
	return m
}

func (m *MemoryClaims) Claim(_ context.Context, key string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	if until, ok := m.expires[key]; ok && now.Before(until) {
		return false, nil
	}
	m.expires[key] = now.Add(ttl)
	return true, nil
}

func (m *MemoryClaims) Held(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	until, ok := m.expires[key]
	return ok && m.now().Before(until), nil
}

func (m *MemoryClaims) Release(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.expires, key)
	m.mu.Unlock()
	return nil
}

// Close stops the janitor. Claims stay readable.
func (m *MemoryClaims) Close() error {
	m.once.Do(func() {
		close(m.done)
		m.stopped.Wait()
	})
	return nil
}

func (m *MemoryClaims) janitor(every time.Duration) {
	defer m.stopped.Done()
	tick := time.NewTicker(every)
	defer tick.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-tick.C:
			m.sweep()
		}
	}
}

// sweep drops expired claims and returns how many are left.
func (m *MemoryClaims) sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	for key, until := range m.expires {
		if !now.Before(until) {
			delete(m.expires, key)
		}
	}
	return len(m.expires)
}

// RedisClaims keeps claims in Redis so every instance sees them.
type RedisClaims struct {
	rdb    redis.UniversalClient
	prefix string
}

// NewRedisClaims stores claims under prefix on rdb. The caller keeps
// ownership of rdb.
func NewRedisClaims(rdb redis.UniversalClient, prefix string) *RedisClaims {
	if prefix == "" {
		prefix = claimPrefix
	}
	return &RedisClaims{rdb: rdb, prefix: prefix}
}

func (r *RedisClaims) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	won, err := r.rdb.SetNX(ctx, r.prefix+key, time.Now().UTC().Format(time.RFC3339), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claim %s: %w", key, err)
	}
	return won, nil
}

func (r *RedisClaims) Held(ctx context.Context, key string) (bool, error) {
	n, err := r.rdb.Exists(ctx, r.prefix+key).Result()
	if err != nil {
		return false, fmt.Errorf("read claim %s: %w", key, err)
	}
	return n == 1, nil
}

func (r *RedisClaims) Release(ctx context.Context, key string) error {
	if err := r.rdb.Del(ctx, r.prefix+key).Err(); err != nil {
		return fmt.Errorf("release claim %s: %w", key, err)
	}
	return nil
}

// Close is a no-op; the client belongs to the caller.
func (r *RedisClaims) Close() error { return nil }

var (
	_ shared.Claims = (*MemoryClaims)(nil)
	_ shared.Claims = (*RedisClaims)(nil)
)
