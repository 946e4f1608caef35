package db

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/yungbote/minutes-backend/internal/domain/meetings"
	"github.com/yungbote/minutes-backend/internal/platform/logger"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Config struct {
	Driver      string
	SQLitePath  string
	PostgresDSN string
	// Silent disables gorm's own query logging.
	Silent bool
}

type Service struct {
	db     *gorm.DB
	driver string
	log    *logger.Logger
}

// Open connects to the configured database and migrates the meeting tables.
func Open(logg *logger.Logger, cfg Config) (*Service, error) {
	serviceLog := logg.With("service", "DatabaseService")

	gormLog := gormLogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormLogger.Config{
			SlowThreshold:             1 * time.Second,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	if cfg.Silent {
		gormLog = gormLogger.Default.LogMode(gormLogger.Silent)
	}
	gcfg := &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   gormLog,
	}

	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	var (
		db  *gorm.DB
		err error
	)
	switch driver {
	case DriverPostgres:
		if strings.TrimSpace(cfg.PostgresDSN) == "" {
			return nil, fmt.Errorf("postgres driver selected but no DSN configured")
		}
		db, err = gorm.Open(postgres.Open(cfg.PostgresDSN), gcfg)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
		}
	case DriverSQLite, "":
		driver = DriverSQLite
		path := strings.TrimSpace(cfg.SQLitePath)
		if path == "" {
			path = "data/meetings.db"
		}
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create sqlite dir: %w", err)
			}
		}
		db, err = gorm.Open(sqlite.Open(path+"?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on"), gcfg)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite %s: %w", path, err)
		}
		// A single connection serializes writers and keeps transactions on
		// one handle.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.Driver)
	}

	if err := db.AutoMigrate(meetings.Models()...); err != nil {
		return nil, fmt.Errorf("migrate meeting tables: %w", err)
	}
	serviceLog.Info("Database ready", "driver", driver)
	return &Service{db: db, driver: driver, log: serviceLog}, nil
}

func (s *Service) DB() *gorm.DB { return s.db }

func (s *Service) Driver() string { return s.driver }

func (s *Service) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
