package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	appbilling "github.com/ledgerly/invoicing/internal/application/billing"
	"github.com/ledgerly/invoicing/internal/domain/billing"
)

const planPrefix = "invoicing:plan_features:"

type cachedPlan struct {
	rows  []billing.PlanFeature
	until time.Time
}

// MemoryPlans caches stored plan rows in this process. Readers get copies.
type MemoryPlans struct {
	mu     sync.Mutex
	plans  map[billing.PlanCode]cachedPlan
	now    func() time.Time
	hits   int64
	misses int64
}

func NewMemoryPlans() *MemoryPlans {
	return &MemoryPlans{plans: make(map[billing.PlanCode]cachedPlan), now: time.Now}
}

func (m *MemoryPlans) Get(_ context.Context, plan billing.PlanCode) ([]billing.PlanFeature, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.plans[plan]
	if !ok || !m.now().Before(c.until) {
		m.misses++
		return nil, false, nil
	}
	m.hits++
	return slices.Clone(c.rows), true, nil
}

func (m *MemoryPlans) Set(_ context.Context, plan billing.PlanCode, rows []billing.PlanFeature, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.plans[plan] = cachedPlan{rows: slices.Clone(rows), until: m.now().Add(ttl)}
	return nil
}

func (m *MemoryPlans) Invalidate(_ context.Context, plan billing.PlanCode) error {
	m.mu.Lock()
	delete(m.plans, plan)
	m.mu.Unlock()
	return nil
}

// Stats returns the hit and miss counts so far.
func (m *MemoryPlans) Stats() (hits, misses int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hits, m.misses
}

// RedisPlans shares stored plan rows across instances, so invalidating a
// plan after an admin edit reaches all of them.
type RedisPlans struct {
	rdb redis.UniversalClient
	log *zap.Logger
}

func NewRedisPlans(rdb redis.UniversalClient, log *zap.Logger) *RedisPlans {
	if log == nil {
		log = zap.NewNop()
	}
	return &RedisPlans{rdb: rdb, log: log}
}

func (r *RedisPlans) Get(ctx context.Context, plan billing.PlanCode) ([]billing.PlanFeature, bool, error) {
	key := planPrefix + string(plan)
	raw, err := r.rdb.Get(ctx, key).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return nil, false, nil
	case err != nil:
		return nil, false, fmt.Errorf("read cached plan %s: %w", plan, err)
	}
	var rows []billing.PlanFeature
	if err := json.Unmarshal(raw, &rows); err != nil {
		// an unreadable entry is a miss; the next Set replaces it
		r.log.Warn("Discarding unreadable plan cache entry", zap.String("plan", string(plan)), zap.Error(err))
		r.rdb.Del(ctx, key)
		return nil, false, nil
	}
	return rows, true, nil
}

func (r *RedisPlans) Set(ctx context.Context, plan billing.PlanCode, rows []billing.PlanFeature, ttl time.Duration) error {
	if rows == nil {
		rows = []billing.PlanFeature{}
	}
	raw, err := json.Marshal(rows)
	if err != nil {
		return fmt.Errorf("encode plan %s: %w", plan, err)
	}
	if err := r.rdb.Set(ctx, planPrefix+string(plan), raw, ttl).Err(); err != nil {
		return fmt.Errorf("cache plan %s: %w", plan, err)
	}
	return nil
}

func (r *RedisPlans) Invalidate(ctx context.Context, plan billing.PlanCode) error {
	if err := r.rdb.Del(ctx, planPrefix+string(plan)).Err(); err != nil {
		return fmt.Errorf("invalidate plan %s: %w", plan, err)
	}
	return nil
}

var (
	_ appbilling.FeatureCache = (*MemoryPlans)(nil)
	_ appbilling.FeatureCache = (*RedisPlans)(nil)
)
