// internal/fetcher/discovery.go
package fetcher

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/token-scanner/internal/domain"
	"github.com/rovshanmuradov/token-scanner/internal/provider"
)

// Status is the outcome of a discovery run.
type Status string

const (
	StatusOK     Status = "ok"
	StatusNoData Status = "no_data"
)

// Strategy is one attempt in the discovery waterfall.
type Strategy interface {
	Name() string
	Discover(ctx context.Context, limit int) ([]domain.PairCandidate, error)
}

// DiscoveryRecorder receives one sample per discovery run.
type DiscoveryRecorder interface {
	RecordDiscovery(status, strategy string)
}

// Attempt describes how one strategy fared.
type Attempt struct {
	Strategy string
	Count    int
	Reason   provider.Reason
}

// DiscoveryResult is the canonical outcome of DiscoverRecentPairs.
// NoData means every strategy failed or returned nothing.
type DiscoveryResult struct {
	Status    Status
	Strategy  string
	Items     []domain.PairCandidate
	Attempts  []Attempt
	FetchedAt time.Time
}

// Discovery runs the sequential provider waterfall.
type Discovery struct {
	strategies []Strategy
	rawLimit   int
	recorder   DiscoveryRecorder
	logger     *zap.Logger
	now        func() time.Time
}

// NewDiscovery создает waterfall из стратегий в порядке приоритета.
// rawLimit is how many raw records each strategy is asked for before dedupe.
func NewDiscovery(strategies []Strategy, rawLimit int, rec DiscoveryRecorder, logger *zap.Logger) *Discovery {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Discovery{
		strategies: strategies,
		rawLimit:   rawLimit,
		recorder:   rec,
		logger:     logger.Named("discovery"),
		now:        time.Now,
	}
}

// DiscoverRecentPairs returns at most limit distinct candidates, newest first.
// The first strategy yielding at least one valid candidate wins; its output is
// never merged with the others.
func (d *Discovery) DiscoverRecentPairs(ctx context.Context, limit int) DiscoveryResult {
	res := DiscoveryResult{Status: StatusNoData, FetchedAt: d.now()}
	if limit <= 0 {
		return res
	}
	raw := d.rawLimit
	if raw < limit {
		raw = limit
	}

	for _, s := range d.strategies {
		items, err := s.Discover(ctx, raw)
		attempt := Attempt{Strategy: s.Name(), Count: len(items)}
		if err != nil {
			attempt.Reason = provider.ReasonOf(err)
			attempt.Count = 0
			res.Attempts = append(res.Attempts, attempt)
			d.logger.Debug("strategy failed",
				zap.String("strategy", s.Name()),
				zap.String("reason", string(attempt.Reason)),
				zap.Error(err))
			continue
		}

		items = Normalize(items, limit)
		attempt.Count = len(items)
		if len(items) == 0 {
			attempt.Reason = provider.ReasonEmpty
			res.Attempts = append(res.Attempts, attempt)
			d.logger.Debug("strategy returned no candidates", zap.String("strategy", s.Name()))
			continue
		}

		res.Attempts = append(res.Attempts, attempt)
		res.Status = StatusOK
		res.Strategy = s.Name()
		res.Items = items
		d.record(res)
		d.logger.Info("discovery complete",
			zap.String("strategy", s.Name()),
			zap.Int("count", len(items)))
		return res
	}

	d.record(res)
	d.logger.Warn("all discovery providers exhausted", zap.Int("strategies", len(d.strategies)))
	return res
}

func (d *Discovery) record(res DiscoveryResult) {
	if d.recorder != nil {
		d.recorder.RecordDiscovery(string(res.Status), res.Strategy)
	}
}

// Normalize drops invalid records, deduplicates by mint keeping the first
// occurrence, sorts by CreatedAt descending with unknown ages last and
// truncates to limit.
func Normalize(items []domain.PairCandidate, limit int) []domain.PairCandidate {
	seen := make(map[string]struct{}, len(items))
	out := make([]domain.PairCandidate, 0, len(items))
	for _, it := range items {
		if err := it.Validate(); err != nil {
			continue
		}
		if _, dup := seen[it.Mint]; dup {
			continue
		}
		seen[it.Mint] = struct{}{}
		out = append(out, it)
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].CreatedAt, out[j].CreatedAt
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.After(*b)
		}
	})

	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
