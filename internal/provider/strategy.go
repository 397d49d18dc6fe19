package provider

import (
	"context"

	"github.com/rovshanmuradov/token-scanner/internal/domain"
)

// DiscoveryStrategy is one named attempt in the discovery waterfall.
type DiscoveryStrategy struct {
	name     string
	discover func(ctx context.Context, limit int) ([]domain.PairCandidate, error)
}

// NewDiscoveryStrategy wraps fn as a named strategy.
func NewDiscoveryStrategy(name string, fn func(ctx context.Context, limit int) ([]domain.PairCandidate, error)) DiscoveryStrategy {
	return DiscoveryStrategy{name: name, discover: fn}
}

func (s DiscoveryStrategy) Name() string { return s.name }

// Discover fetches up to limit raw candidates.
func (s DiscoveryStrategy) Discover(ctx context.Context, limit int) ([]domain.PairCandidate, error) {
	return s.discover(ctx, limit)
}
