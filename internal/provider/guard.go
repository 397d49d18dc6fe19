// internal/provider/guard.go
package provider

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rovshanmuradov/token-scanner/internal/ratelimit"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// Recorder receives one sample per finished provider call.
type Recorder interface {
	RecordProviderCall(provider, op, outcome string)
}

// GuardConfig tunes the call guard of one provider.
type GuardConfig struct {
	Timeout          time.Duration // bound for the whole call including retries
	MaxTries         uint
	RetryInitial     time.Duration
	BreakerFailures  uint32
	BreakerOpenFor   time.Duration
	BreakerInterval  time.Duration
	BreakerHalfOpenN uint32
}

// DefaultGuardConfig returns settings suitable for HTTP providers.
func DefaultGuardConfig() GuardConfig {
	return GuardConfig{
		Timeout:          12 * time.Second,
		MaxTries:         2,
		RetryInitial:     250 * time.Millisecond,
		BreakerFailures:  5,
		BreakerOpenFor:   30 * time.Second,
		BreakerInterval:  time.Minute,
		BreakerHalfOpenN: 1,
	}
}

// gateWaitError marks a call that never left the local rate gate.
type gateWaitError struct {
	err error
}

func (e *gateWaitError) Error() string { return e.err.Error() }

func (e *gateWaitError) Unwrap() error { return e.err }

// guard wraps every upstream call of a provider: bounded timeout, circuit
// breaker, retry of transient failures and one gate acquisition per attempt.
type guard struct {
	name     string
	gate     *ratelimit.Gate
	breaker  *gobreaker.CircuitBreaker
	cfg      GuardConfig
	recorder Recorder
	logger   *zap.Logger
}

func newGuard(name string, gate *ratelimit.Gate, cfg GuardConfig, rec Recorder, logger *zap.Logger) *guard {
	if gate == nil {
		gate = ratelimit.NewGate(name, 0)
	}
	if cfg.MaxTries == 0 {
		cfg.MaxTries = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	g := &guard{
		name:     name,
		gate:     gate,
		cfg:      cfg,
		recorder: rec,
		logger:   logger,
	}

	failures := cfg.BreakerFailures
	g.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.BreakerHalfOpenN,
		Interval:    cfg.BreakerInterval,
		Timeout:     cfg.BreakerOpenFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return failures > 0 && counts.ConsecutiveFailures >= failures
		},
		IsSuccessful: func(err error) bool {
			// a caller giving up or a well-formed empty payload says nothing about provider health
			var gateErr *gateWaitError
			return err == nil || errors.Is(err, context.Canceled) || errors.Is(err, ErrEmpty) ||
				errors.Is(err, ErrNotConfigured) || errors.As(err, &gateErr)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("provider", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	return g
}

// run executes fn under the guard and returns a classified *Error on failure.
func (g *guard) run(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	if g.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.cfg.Timeout)
		defer cancel()
	}

	_, err := g.breaker.Execute(func() (interface{}, error) {
		return nil, g.retry(ctx, op, fn)
	})
	if err == nil {
		g.record(op, "ok")
		return nil
	}

	reason := classify(err)
	g.record(op, string(reason))
	g.logger.Debug("provider call failed",
		zap.String("provider", g.name),
		zap.String("op", op),
		zap.String("reason", string(reason)),
		zap.Error(err))
	return &Error{Provider: g.name, Op: op, Reason: reason, Err: err}
}

func (g *guard) retry(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	policy := backoff.NewExponentialBackOff()
	if g.cfg.RetryInitial > 0 {
		policy.InitialInterval = g.cfg.RetryInitial
		policy.MaxInterval = g.cfg.RetryInitial * 8
	}

	operation := func() (struct{}, error) {
		if err := g.gate.Acquire(ctx); err != nil {
			return struct{}{}, backoff.Permanent(&gateWaitError{err: err})
		}
		err := fn(ctx)
		if err != nil && !transient(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	}

	notify := func(err error, d time.Duration) {
		g.logger.Debug("retrying provider call",
			zap.String("provider", g.name),
			zap.String("op", op),
			zap.Duration("backoff", d),
			zap.Error(err))
	}

	_, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(g.cfg.MaxTries),
		backoff.WithNotify(notify))
	return err
}

func (g *guard) record(op, outcome string) {
	if g.recorder != nil {
		g.recorder.RecordProviderCall(g.name, op, outcome)
	}
}

// transient reports whether another attempt could succeed.
func transient(err error) bool {
	var statusErr *StatusError
	switch {
	case errors.As(err, &statusErr):
		return statusErr.retryable()
	case errors.Is(err, ErrEmpty), errors.Is(err, ErrNotConfigured):
		return false
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	}
	var decodeErr *DecodeError
	if errors.As(err, &decodeErr) {
		return false
	}
	return classify(err) == ReasonTransport
}

// Name returns the provider name used in logs, metrics and detail sources.
func (g *guard) Name() string { return g.name }
