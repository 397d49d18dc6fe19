// internal/ratelimit/gate.go
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// WaitObserver receives the time each caller spent queued at a gate.
type WaitObserver interface {
	ObserveGateWait(gate string, wait time.Duration)
}

// Gate spaces calls to one upstream provider class by a minimum interval.
// A burst of one makes x/time/rate hand out reservations in arrival order,
// so waiting callers are served FIFO and never starve.
type Gate struct {
	name     string
	interval time.Duration
	limiter  *rate.Limiter
	observer WaitObserver

	mu       sync.Mutex
	lastCall time.Time
}

// NewGate creates a gate. A non-positive interval disables spacing.
func NewGate(name string, interval time.Duration) *Gate {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &Gate{
		name:     name,
		interval: interval,
		limiter:  rate.NewLimiter(limit, 1),
	}
}

// Name returns the provider class guarded by the gate.
func (g *Gate) Name() string { return g.name }

// Interval returns the configured minimum spacing.
func (g *Gate) Interval() time.Duration { return g.interval }

// Acquire blocks until the caller's slot arrives or ctx is done.
// If ctx's deadline is earlier than the slot, it fails without waiting.
func (g *Gate) Acquire(ctx context.Context) error {
	start := time.Now()
	if err := g.limiter.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("gate %s: %w", g.name, ctxErr)
		}
		// the slot lies beyond the deadline, report it as one
		return fmt.Errorf("gate %s: %w: %v", g.name, context.DeadlineExceeded, err)
	}
	now := time.Now()

	g.mu.Lock()
	g.lastCall = now
	obs := g.observer
	g.mu.Unlock()

	if obs != nil {
		obs.ObserveGateWait(g.name, now.Sub(start))
	}
	return nil
}

// LastCall returns when the most recent acquisition was granted.
func (g *Gate) LastCall() time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastCall
}

func (g *Gate) setObserver(o WaitObserver) {
	g.mu.Lock()
	g.observer = o
	g.mu.Unlock()
}

// Manager owns one gate per provider class.
type Manager struct {
	mu       sync.RWMutex
	gates    map[string]*Gate
	observer WaitObserver
}

// NewManager creates gates for every entry of spacing.
func NewManager(spacing map[string]time.Duration, observer WaitObserver) *Manager {
	m := &Manager{
		gates:    make(map[string]*Gate, len(spacing)),
		observer: observer,
	}
	for name, interval := range spacing {
		m.AddProvider(name, interval)
	}
	return m
}

// AddProvider registers (or replaces) the gate for a provider class.
func (m *Manager) AddProvider(name string, interval time.Duration) *Gate {
	g := NewGate(name, interval)
	g.setObserver(m.observer)

	m.mu.Lock()
	m.gates[name] = g
	m.mu.Unlock()
	return g
}

// Gate returns the gate for name, creating an unspaced one if it's missing.
func (m *Manager) Gate(name string) *Gate {
	m.mu.RLock()
	g, ok := m.gates[name]
	m.mu.RUnlock()
	if ok {
		return g
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if g, ok := m.gates[name]; ok {
		return g
	}
	g = NewGate(name, 0)
	g.observer = m.observer
	m.gates[name] = g
	return g
}

// Acquire waits on the named gate.
func (m *Manager) Acquire(ctx context.Context, name string) error {
	return m.Gate(name).Acquire(ctx)
}
