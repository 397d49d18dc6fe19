// internal/provider/errors.go
package provider

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/gagliardetto/solana-go/rpc"
	"github.com/sony/gobreaker"
)

// Reason tags why a provider call produced no usable data.
type Reason string

const (
	ReasonTimeout       Reason = "timeout"
	ReasonStatus        Reason = "status"
	ReasonDecode        Reason = "decode"
	ReasonTransport     Reason = "transport"
	ReasonCircuitOpen   Reason = "circuit_open"
	ReasonNotConfigured Reason = "not_configured"
	ReasonNotFound      Reason = "not_found"
	ReasonEmpty         Reason = "empty"
	ReasonCanceled      Reason = "canceled"
)

var (
	// ErrUnavailable matches every provider failure via errors.Is
	ErrUnavailable = errors.New("provider unavailable")

	// ErrNotConfigured возникает, когда у провайдера нет ключа или URL
	ErrNotConfigured = errors.New("provider not configured")

	// ErrEmpty возникает, когда ответ валиден, но данных нет
	ErrEmpty = errors.New("empty response")
)

// Error представляет ошибку провайдера с дополнительным контекстом
type Error struct {
	Provider string
	Op       string
	Reason   Reason
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %s: %v", e.Provider, e.Op, e.Reason, e.Err)
}

// Unwrap возвращает оригинальную ошибку
func (e *Error) Unwrap() error { return e.Err }

// Is makes every *Error match ErrUnavailable.
func (e *Error) Is(target error) bool { return target == ErrUnavailable }

// ReasonOf extracts the reason tag, or "" when err isn't a provider error.
func ReasonOf(err error) Reason {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Reason
	}
	return ""
}

// StatusError is a non-success HTTP status.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code: %d, body: %s", e.Code, e.Body)
}

func (e *StatusError) retryable() bool {
	return e.Code == 429 || e.Code >= 500
}

// DecodeError is a body that couldn't be parsed.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string { return "decode response: " + e.Err.Error() }
func (e *DecodeError) Unwrap() error { return e.Err }

func classify(err error) Reason {
	var (
		statusErr *StatusError
		decodeErr *DecodeError
		netErr    net.Error
	)
	switch {
	case errors.Is(err, ErrNotConfigured):
		return ReasonNotConfigured
	case errors.Is(err, ErrEmpty):
		return ReasonEmpty
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return ReasonCircuitOpen
	case errors.Is(err, context.DeadlineExceeded):
		return ReasonTimeout
	case errors.Is(err, context.Canceled):
		return ReasonCanceled
	case errors.Is(err, rpc.ErrNotFound):
		return ReasonNotFound
	case errors.As(err, &statusErr):
		if statusErr.Code == 404 {
			return ReasonNotFound
		}
		return ReasonStatus
	case errors.As(err, &decodeErr):
		return ReasonDecode
	case errors.As(err, &netErr) && netErr.Timeout():
		return ReasonTimeout
	default:
		return ReasonTransport
	}
}
