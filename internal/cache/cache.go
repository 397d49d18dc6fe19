// internal/cache/cache.go
package cache

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/token-scanner/internal/domain"
)

// Entry is the single shared discovery snapshot.
type Entry struct {
	FetchedAt time.Time              `json:"fetched_at"`
	Items     []domain.PairCandidate `json:"items"`
}

// Cache is a global single-slot store for the discovery result.
// Get never returns a slice aliasing the stored one.
type Cache interface {
	Get(ctx context.Context) ([]domain.PairCandidate, bool)
	Put(ctx context.Context, items []domain.PairCandidate)
}

// LookupRecorder counts cache hits and misses.
type LookupRecorder interface {
	RecordCacheLookup(hit bool)
}

// Memory is the in-process Cache.
type Memory struct {
	mu       sync.RWMutex
	entry    *Entry
	ttl      time.Duration
	now      func() time.Time
	recorder LookupRecorder
	logger   *zap.Logger
}

// NewMemory creates an in-process cache holding a snapshot for ttl.
func NewMemory(ttl time.Duration, rec LookupRecorder, logger *zap.Logger) *Memory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Memory{
		ttl:      ttl,
		now:      time.Now,
		recorder: rec,
		logger:   logger.Named("cache"),
	}
}

// Get returns a copy of the stored items while now-fetchedAt < ttl.
func (m *Memory) Get(ctx context.Context) ([]domain.PairCandidate, bool) {
	m.mu.RLock()
	entry := m.entry
	m.mu.RUnlock()

	hit := entry != nil && fresh(entry.FetchedAt, m.now(), m.ttl)
	m.record(hit)
	if !hit {
		return nil, false
	}
	return domain.ClonePairs(entry.Items), true
}

// Put overwrites the slot wholesale.
func (m *Memory) Put(ctx context.Context, items []domain.PairCandidate) {
	entry := &Entry{FetchedAt: m.now(), Items: domain.ClonePairs(items)}

	m.mu.Lock()
	m.entry = entry
	m.mu.Unlock()

	m.logger.Debug("discovery snapshot stored", zap.Int("items", len(items)))
}

func (m *Memory) record(hit bool) {
	if m.recorder != nil {
		m.recorder.RecordCacheLookup(hit)
	}
}

func fresh(fetchedAt, now time.Time, ttl time.Duration) bool {
	return now.Sub(fetchedAt) < ttl
}
