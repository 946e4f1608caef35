package testutil

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"gorm.io/gorm"

	"github.com/yungbote/minutes-backend/internal/data/db"
	"github.com/yungbote/minutes-backend/internal/platform/logger"
)

var (
	logOnce sync.Once
	logg    *logger.Logger
	logErr  error
)

func Logger(tb testing.TB) *logger.Logger {
	tb.Helper()
	logOnce.Do(func() {
		logg, logErr = logger.New("test")
	})
	if logErr != nil {
		tb.Fatalf("failed to init logger: %v", logErr)
	}
	return logg
}

// DB opens a migrated sqlite database private to the test.
func DB(tb testing.TB) *gorm.DB {
	tb.Helper()
	svc, err := db.Open(Logger(tb), db.Config{
		Driver:     db.DriverSQLite,
		SQLitePath: filepath.Join(tb.TempDir(), "meetings.db"),
		Silent:     true,
	})
	if err != nil {
		tb.Fatalf("failed to open test db: %v", err)
	}
	tb.Cleanup(func() { _ = svc.Close() })
	return svc.DB()
}

// PostgresDB opens TEST_POSTGRES_DSN, skipping the test when it is unset.
func PostgresDB(tb testing.TB) *gorm.DB {
	tb.Helper()
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		tb.Skip("set TEST_POSTGRES_DSN to run repo integration tests")
	}
	svc, err := db.Open(Logger(tb), db.Config{Driver: db.DriverPostgres, PostgresDSN: dsn, Silent: true})
	if err != nil {
		tb.Fatalf("failed to init test db: %v", err)
	}
	return svc.DB()
}

func Tx(tb testing.TB, db *gorm.DB) *gorm.DB {
	tb.Helper()
	tx := db.Begin()
	if tx.Error != nil {
		tb.Fatalf("begin tx: %v", tx.Error)
	}
	tb.Cleanup(func() {
		_ = tx.Rollback().Error
	})
	return tx
}
