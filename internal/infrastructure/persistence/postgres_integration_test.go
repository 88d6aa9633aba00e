//go:build integration

package persistence

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	appinvoicing "github.com/ledgerly/invoicing/internal/application/invoicing"
	"github.com/ledgerly/invoicing/internal/domain/invoicing"
	"github.com/ledgerly/invoicing/internal/domain/party"
	"github.com/ledgerly/invoicing/internal/domain/shared"
	"github.com/ledgerly/invoicing/internal/domain/shared/valueobject"
	"github.com/ledgerly/invoicing/internal/infrastructure/migration"
	"github.com/ledgerly/invoicing/migrations"
)

// newPostgres starts a PostgreSQL container and applies the embedded migrations.
func newPostgres(t *testing.T) *gorm.DB {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("invoicing_test"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err, "start postgres container")
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := gorm.Open(gormpostgres.Open(dsn), &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	schema, err := migration.New(sqlDB, migration.FromFS(migrations.FS, "."), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = schema.Close() })
	require.NoError(t, schema.Up())
	state, err := schema.State()
	require.NoError(t, err)
	assert.False(t, state.Dirty)
	assert.Positive(t, state.Version)
	return db
}

func TestPostgres_ConcurrentIssuanceIsGapless(t *testing.T) {
	db := newPostgres(t)
	ctx := context.Background()

	seller, err := party.NewSeller("DE", decimal.NewFromInt(19), party.LegalIdentity{
		LegalName: "Muster GmbH",
		Address:   valueobject.NewAddress("Hauptstr. 1", "Berlin", "10115", "", "DE"),
	})
	require.NoError(t, err)
	require.NoError(t, NewGormSellerRepository(db).Save(ctx, seller))

	scope := NewGormTransactionScope(db)
	key := invoicing.SequenceKey{SellerID: seller.ID, Year: 2026, Prefix: "INV"}

	const workers = 16
	var (
		mu  sync.Mutex
		got []int64
		wg  sync.WaitGroup
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// Compare-and-set losers retry like the allocator does.
			for attempt := 0; attempt < 10; attempt++ {
				var n int64
				err := scope.Execute(ctx, func(repos appinvoicing.TransactionalRepositories) error {
					var err error
					n, err = repos.Sequences().Increment(ctx, key)
					return err
				})
				if cat, _ := shared.CategoryOf(err); cat == shared.CategoryConcurrency {
					continue
				}
				assert.NoError(t, err)
				mu.Lock()
				got = append(got, n)
				mu.Unlock()
				return
			}
			t.Error("sequence contention did not settle")
		}()
	}
	wg.Wait()

	sort.Slice(got, func(i, j int) bool { return got[i] < got[j] })
	want := make([]int64, workers)
	for i := range want {
		want[i] = int64(i + 1)
	}
	assert.Equal(t, want, got)

	current, err := NewGormSequenceRepository(db).Current(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, int64(workers), current)
}
