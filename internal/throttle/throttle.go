// internal/throttle/throttle.go
package throttle

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/token-scanner/internal/storage"
	"github.com/rovshanmuradov/token-scanner/internal/storage/models"
)

// Decision is the outcome of CheckAndSet. Denied decisions always carry the wait.
type Decision struct {
	Allowed   bool          `json:"allowed"`
	Remaining time.Duration `json:"remaining_ns,omitempty"`
}

// RemainingSeconds rounds the wait up so a denied caller never sees 0.
func (d Decision) RemainingSeconds() int {
	if d.Allowed || d.Remaining <= 0 {
		return 0
	}
	return int(math.Ceil(d.Remaining.Seconds()))
}

// DecisionRecorder counts allowed and denied attempts.
type DecisionRecorder interface {
	RecordThrottle(allowed bool)
}

// Store enforces per-user cooldowns on top of persisted throttle records.
type Store struct {
	mu       sync.Mutex
	backend  storage.Storage
	now      func() time.Time
	recorder DecisionRecorder
	logger   *zap.Logger
}

func NewStore(backend storage.Storage, rec DecisionRecorder, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		backend:  backend,
		now:      time.Now,
		recorder: rec,
		logger:   logger.Named("throttle"),
	}
}

// CheckAndSet allows the call when now >= nextAllowedAt and moves nextAllowedAt
// to now+cooldown. A denied call leaves the record untouched.
func (s *Store) CheckAndSet(ctx context.Context, userID string, cooldown time.Duration) (Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	rec, err := s.backend.GetThrottle(ctx, userID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return Decision{}, fmt.Errorf("load throttle for %s: %w", userID, err)
	}

	if rec != nil && now.Before(rec.NextAllowedAt) {
		d := Decision{Remaining: rec.NextAllowedAt.Sub(now)}
		s.record(false)
		s.logger.Debug("scan throttled",
			zap.String("user_id", userID),
			zap.Duration("remaining", d.Remaining))
		return d, nil
	}

	next := &models.ThrottleRecord{UserID: userID, NextAllowedAt: now.Add(cooldown)}
	if err := s.backend.SaveThrottle(ctx, next); err != nil {
		return Decision{}, fmt.Errorf("save throttle for %s: %w", userID, err)
	}
	s.record(true)
	return Decision{Allowed: true}, nil
}

func (s *Store) record(allowed bool) {
	if s.recorder != nil {
		s.recorder.RecordThrottle(allowed)
	}
}
