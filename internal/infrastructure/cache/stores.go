package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	appbilling "github.com/ledgerly/invoicing/internal/application/billing"
	"github.com/ledgerly/invoicing/internal/domain/shared"
	"github.com/ledgerly/invoicing/internal/infrastructure/config"
)

const dialTimeout = 5 * time.Second

// Stores are the caches the services run on.
type Stores struct {
	Claims shared.Claims
	Plans  appbilling.FeatureCache
	rdb    *redis.Client
}

// Local returns process-local stores.
func Local() *Stores {
	return &Stores{Claims: NewMemoryClaims(), Plans: NewMemoryPlans()}
}

// Shared reports whether the stores live in Redis.
func (s *Stores) Shared() bool { return s.rdb != nil }

// Ping checks Redis. Local stores are always reachable.
func (s *Stores) Ping(ctx context.Context) error {
	if s.rdb == nil {
		return nil
	}
	return s.rdb.Ping(ctx).Err()
}

func (s *Stores) Close() error {
	var errs []error
	if s.Claims != nil {
		errs = append(errs, s.Claims.Close())
	}
	if s.rdb != nil {
		errs = append(errs, s.rdb.Close())
	}
	return errors.Join(errs...)
}

type openOptions struct {
	log          *zap.Logger
	requireRedis bool
}

// Option tunes Open.
type Option func(*openOptions)

func WithLogger(log *zap.Logger) Option {
	return func(o *openOptions) { o.log = log }
}

// RequireRedis makes an unreachable Redis fail Open instead of falling back
// to local stores.
func RequireRedis() Option {
	return func(o *openOptions) { o.requireRedis = true }
}

// Open connects the stores to Redis when cfg enables it. An unreachable
// Redis degrades to local stores unless RequireRedis is given; validations
// may then be queued once per instance.
func Open(ctx context.Context, cfg config.RedisConfig, opts ...Option) (*Stores, error) {
	o := openOptions{log: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	if !cfg.Enabled {
		o.log.Info("Redis disabled, caches are process-local")
		return Local(), nil
	}

	rdb, err := Dial(ctx, cfg)
	if err != nil {
		if o.requireRedis {
			return nil, err
		}
		o.log.Warn("Redis unreachable, caches are process-local", zap.Error(err))
		return Local(), nil
	}
	o.log.Info("Caches on Redis", zap.String("addr", rdb.Options().Addr), zap.Int("db", cfg.DB))
	return &Stores{
		Claims: NewRedisClaims(rdb, ""),
		Plans:  NewRedisPlans(rdb, o.log),
		rdb:    rdb,
	}, nil
}

// Dial connects to Redis and waits for a PONG.
func Dial(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	ctx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis %s unreachable: %w", rdb.Options().Addr, err)
	}
	return rdb, nil
}
