// Package persistencetest opens throwaway SQLite databases carrying the
// invoicing schema for repository, service and handler tests.
package persistencetest

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ledgerly/invoicing/internal/infrastructure/persistence/models"
)

// InvoiceNumberIndexDDL enforces one number per seller.
const InvoiceNumberIndexDDL = "CREATE UNIQUE INDEX IF NOT EXISTS uq_invoices_seller_number ON invoices (seller_id, number)"

// NewSQLite returns a file-backed SQLite database in t's temp dir. A file
// rather than :memory: lets a transaction and plain reads use separate
// connections, as they do on PostgreSQL.
func NewSQLite(t testing.TB) *gorm.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "invoicing.db")
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("migrate sqlite: %v", err)
	}
	// Mirrors the migration; SellerID lives on an embedded model.
	if err := db.Exec(InvoiceNumberIndexDDL).Error; err != nil {
		t.Fatalf("invoice number index: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sqlite handle: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}
