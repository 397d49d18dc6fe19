// internal/storage/storage.go
package storage

import (
	"context"
	"errors"

	"github.com/rovshanmuradov/token-scanner/internal/storage/models"
)

// ErrNotFound возникает, когда запись отсутствует
var ErrNotFound = errors.New("record not found")

// Storage определяет интерфейс для работы с хранилищем
type Storage interface {
	// Throttle
	GetThrottle(ctx context.Context, userID string) (*models.ThrottleRecord, error)
	SaveThrottle(ctx context.Context, rec *models.ThrottleRecord) error

	// Миграции
	RunMigrations() error
	Close() error
}
