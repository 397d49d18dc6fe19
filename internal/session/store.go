// internal/session/store.go
package session

import (
	"crypto/rand"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mr-tron/base58"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/token-scanner/internal/domain"
)

// ErrSessionNotFound возникает, когда сессия неизвестна или истекла
var ErrSessionNotFound = errors.New("session not found")

const idBytes = 9

// EventRecorder counts session store events.
type EventRecorder interface {
	RecordSession(event string, n int)
}

// Session is a frozen discovery snapshot addressed by an opaque id.
type Session struct {
	ID        string
	CreatedAt time.Time
	items     []domain.PairCandidate
}

// Len returns the number of items in the session.
func (s Session) Len() int { return len(s.items) }

// Cursor is one clamped position inside a session.
type Cursor struct {
	SessionID string
	Index     int
	Total     int
	Item      domain.PairCandidate
	AtStart   bool
	AtEnd     bool
	// Clamped reports that the requested index was outside [0, Total).
	Clamped bool
}

// Store keeps sessions in memory and purges expired ones on every access.
type Store struct {
	mu       sync.Mutex
	sessions map[string]Session
	ttl      time.Duration
	now      func() time.Time
	recorder EventRecorder
	logger   *zap.Logger
}

func NewStore(ttl time.Duration, rec EventRecorder, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		sessions: make(map[string]Session),
		ttl:      ttl,
		now:      time.Now,
		recorder: rec,
		logger:   logger.Named("session"),
	}
}

// Create stores a deep copy of items and returns the new session id.
func (s *Store) Create(items []domain.PairCandidate) (string, error) {
	id, err := newID()
	if err != nil {
		return "", fmt.Errorf("generate session id: %w", err)
	}

	s.mu.Lock()
	now := s.now()
	expired := s.gcLocked(now)
	s.sessions[id] = Session{ID: id, CreatedAt: now, items: domain.ClonePairs(items)}
	total := len(s.sessions)
	s.mu.Unlock()

	s.record("expired", expired)
	s.record("created", 1)
	s.logger.Debug("session created",
		zap.String("session_id", id),
		zap.Int("items", len(items)),
		zap.Int("live_sessions", total))
	return id, nil
}

// Get returns a copy of the session items or ErrSessionNotFound.
func (s *Store) Get(id string) ([]domain.PairCandidate, error) {
	sess, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	return domain.ClonePairs(sess.items), nil
}

// At resolves index inside the session, clamping it to the nearest valid bound.
// An empty session yields ErrSessionNotFound since there is nothing to show.
func (s *Store) At(id string, index int) (Cursor, error) {
	sess, err := s.lookup(id)
	if err != nil {
		return Cursor{}, err
	}
	if sess.Len() == 0 {
		return Cursor{}, fmt.Errorf("%w: session %s is empty", ErrSessionNotFound, id)
	}

	idx, clamped := Clamp(index, sess.Len())
	return Cursor{
		SessionID: id,
		Index:     idx,
		Total:     sess.Len(),
		Item:      sess.items[idx].Clone(),
		AtStart:   idx == 0,
		AtEnd:     idx == sess.Len()-1,
		Clamped:   clamped,
	}, nil
}

func (s *Store) lookup(id string) (Session, error) {
	s.mu.Lock()
	expired := s.gcLocked(s.now())
	sess, ok := s.sessions[id]
	s.mu.Unlock()

	s.record("expired", expired)
	if !ok {
		s.record("not_found", 1)
		return Session{}, ErrSessionNotFound
	}
	s.record("found", 1)
	return sess, nil
}

// Len returns the number of live sessions without running GC.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *Store) gcLocked(now time.Time) int {
	n := 0
	for id, sess := range s.sessions {
		if now.Sub(sess.CreatedAt) >= s.ttl {
			delete(s.sessions, id)
			n++
		}
	}
	return n
}

func (s *Store) record(event string, n int) {
	if s.recorder != nil {
		s.recorder.RecordSession(event, n)
	}
}

// Clamp maps index into [0, n). It reports whether the index had to move.
func Clamp(index, n int) (int, bool) {
	switch {
	case n <= 0:
		return 0, index != 0
	case index < 0:
		return 0, true
	case index >= n:
		return n - 1, true
	default:
		return index, false
	}
}

// newID returns a short base58 token; the alphabet has no ':' so ids are safe in callback payloads.
func newID() (string, error) {
	b := make([]byte, idBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base58.Encode(b), nil
}
