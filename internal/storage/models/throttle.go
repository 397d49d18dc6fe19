// internal/storage/models/throttle.go
package models

import "time"

// ThrottleRecord хранит момент, с которого пользователю снова разрешен скан
type ThrottleRecord struct {
	UserID        string    `gorm:"primaryKey;size:128"`
	NextAllowedAt time.Time `gorm:"not null"`
	UpdatedAt     time.Time
}

func (ThrottleRecord) TableName() string {
	return "throttle_records"
}
