// internal/storage/gormstore/gormstore.go
package gormstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/rovshanmuradov/token-scanner/internal/storage"
	"github.com/rovshanmuradov/token-scanner/internal/storage/models"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	migrationLockID = 101
)

// gormStorage реализует интерфейс Storage
type gormStorage struct {
	db     *gorm.DB
	driver string
	logger *zap.Logger
}

var _ storage.Storage = (*gormStorage)(nil)

// NewStorage opens dsn with the named driver (sqlite or postgres).
func NewStorage(driver, dsn string, zapLogger *zap.Logger) (storage.Storage, error) {
	if zapLogger == nil {
		zapLogger = zap.NewNop()
	}

	var dialector gorm.Dialector
	switch driver {
	case DriverSQLite, "":
		driver = DriverSQLite
		dialector = sqlite.Open(dsn)
	case DriverPostgres:
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: newGormLogger(zapLogger.Named("gorm")),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
		DisableForeignKeyConstraintWhenMigrating: true,
		SkipDefaultTransaction:                   true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	// Настройка пула соединений
	if driver == DriverSQLite {
		// каждое соединение к :memory: видит свою базу
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetMaxOpenConns(100)
		sqlDB.SetConnMaxLifetime(time.Hour)
	}

	return &gormStorage{
		db:     db,
		driver: driver,
		logger: zapLogger,
	}, nil
}

// RunMigrations использует GORM AutoMigrate; на postgres под advisory lock
func (s *gormStorage) RunMigrations() error {
	if s.driver == DriverPostgres {
		var lockObtained bool
		err := s.db.Raw("SELECT pg_try_advisory_lock(?)", migrationLockID).Scan(&lockObtained).Error
		if err != nil {
			return fmt.Errorf("failed to acquire migration lock: %w", err)
		}
		if !lockObtained {
			return fmt.Errorf("another migration is in progress")
		}
		defer s.db.Exec("SELECT pg_advisory_unlock(?)", migrationLockID)
	}

	if err := s.db.AutoMigrate(&models.ThrottleRecord{}); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

func (s *gormStorage) GetThrottle(ctx context.Context, userID string) (*models.ThrottleRecord, error) {
	var rec models.ThrottleRecord
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// SaveThrottle upserts the record by user id.
func (s *gormStorage) SaveThrottle(ctx context.Context, rec *models.ThrottleRecord) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"next_allowed_at", "updated_at"}),
	}).Create(rec).Error
}

func (s *gormStorage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
