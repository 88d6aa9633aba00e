package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ledgerly/invoicing/internal/infrastructure/config"
)

// connectTimeout bounds the first ping of Open
const connectTimeout = 10 * time.Second

// Database is the PostgreSQL connection shared by the repositories.
type Database struct {
	DB  *gorm.DB
	sql *sql.DB
}

// Option adjusts the gorm configuration before connecting.
type Option func(*gorm.Config)

// WithGormLogger routes gorm's statement log to l. Without it gorm is silent.
func WithGormLogger(l logger.Interface) Option {
	return func(c *gorm.Config) { c.Logger = l }
}

// Open connects to cfg's database, sizes its pool and pings it. Timestamps
// are written in UTC. Repositories open their own transactions, so gorm's
// implicit per-write transaction is disabled.
func Open(ctx context.Context, cfg *config.DatabaseConfig, opts ...Option) (*Database, error) {
	gormCfg := &gorm.Config{
		Logger:                 logger.Discard,
		SkipDefaultTransaction: true,
		PrepareStmt:            true,
		NowFunc:                func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(gormCfg)
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN()), gormCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	d, err := wrap(db)
	if err != nil {
		return nil, err
	}
	d.sql.SetMaxOpenConns(cfg.MaxOpenConns)
	d.sql.SetMaxIdleConns(cfg.MaxIdleConns)
	d.sql.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	d.sql.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := d.PingContext(pingCtx); err != nil {
		_ = d.Close()
		return nil, fmt.Errorf("ping database %s:%d: %w", cfg.Host, cfg.Port, err)
	}
	return d, nil
}

func wrap(db *gorm.DB) (*Database, error) {
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("database handle: %w", err)
	}
	return &Database{DB: db, sql: sqlDB}, nil
}

// SQL is the underlying pool, used by the migrator
func (d *Database) SQL() *sql.DB { return d.sql }

// PingContext backs the readiness probe
func (d *Database) PingContext(ctx context.Context) error {
	return d.sql.PingContext(ctx)
}

// Stats reports the connection pool
func (d *Database) Stats() sql.DBStats { return d.sql.Stats() }

func (d *Database) Close() error { return d.sql.Close() }

// SellerScope restricts a query to rows owned by sellerID.
func SellerScope(sellerID uuid.UUID) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("seller_id = ?", sellerID)
	}
}
