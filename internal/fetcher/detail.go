// internal/fetcher/detail.go
package fetcher

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/rovshanmuradov/token-scanner/internal/domain"
	"github.com/rovshanmuradov/token-scanner/internal/provider"
)

// OverviewSource supplies market fields for one mint.
type OverviewSource interface {
	Overview(ctx context.Context, mint string) (domain.TokenDetail, error)
}

// SecuritySource supplies authority flags and holder concentration.
type SecuritySource interface {
	Security(ctx context.Context, mint string) (domain.Security, error)
}

// ExchangeSource lists venues trading the mint.
type ExchangeSource interface {
	Exchanges(ctx context.Context, mint string) ([]domain.Exchange, error)
}

// PriceSource is a price-only oracle.
type PriceSource interface {
	Price(ctx context.Context, mint string) (float64, error)
}

// DetailSources wires the detail fan-out. Any source may be nil.
type DetailSources struct {
	Overview  OverviewSource
	Fallback  OverviewSource
	Security  SecuritySource
	Exchanges ExchangeSource
	Price     PriceSource
}

// DetailRecorder tracks in-flight assemblies.
type DetailRecorder interface {
	TrackDetail() (done func())
}

// Detail assembles TokenDetail records from concurrent provider calls.
type Detail struct {
	src      DetailSources
	sem      *semaphore.Weighted
	recorder DetailRecorder
	logger   *zap.Logger
}

// NewDetail создает сборщик деталей; maxInFlight ограничивает число одновременных сборок.
func NewDetail(src DetailSources, maxInFlight int, rec DetailRecorder, logger *zap.Logger) *Detail {
	if maxInFlight <= 0 {
		maxInFlight = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Detail{
		src:      src,
		sem:      semaphore.NewWeighted(int64(maxInFlight)),
		recorder: rec,
		logger:   logger.Named("detail"),
	}
}

// FetchTokenDetail assembles the detail record for mint.
func (d *Detail) FetchTokenDetail(ctx context.Context, mint string) (domain.TokenDetail, error) {
	return d.Assemble(ctx, domain.PairCandidate{Mint: mint})
}

// Assemble fans out to every source and joins whatever succeeded. Failed
// sub-calls leave their fields unknown. Only name, symbol and creation time
// are taken from seed when the providers don't know them; market numbers
// always come from a fresh call.
func (d *Detail) Assemble(ctx context.Context, seed domain.PairCandidate) (domain.TokenDetail, error) {
	if _, err := domain.ParseMint(seed.Mint); err != nil {
		return domain.TokenDetail{}, fmt.Errorf("assemble detail: %w", err)
	}
	if err := d.sem.Acquire(ctx, 1); err != nil {
		return domain.TokenDetail{}, fmt.Errorf("wait for detail slot: %w", err)
	}
	defer d.sem.Release(1)

	if d.recorder != nil {
		defer d.recorder.TrackDetail()()
	}

	mint := seed.Mint
	var (
		overview    domain.TokenDetail
		overviewSrc string
		security    domain.Security
		securityOK  bool
		exchanges   []domain.Exchange
		exchangesOK bool
	)

	// каждая подзадача возвращает nil: сбой одного источника не прерывает остальные
	var g errgroup.Group
	g.Go(func() error {
		overview, overviewSrc = d.overview(ctx, mint)
		return nil
	})
	if d.src.Security != nil {
		g.Go(func() error {
			sec, err := d.src.Security.Security(ctx, mint)
			if err != nil {
				d.soft("security", mint, err)
				return nil
			}
			security, securityOK = sec, true
			return nil
		})
	}
	if d.src.Exchanges != nil {
		g.Go(func() error {
			ex, err := d.src.Exchanges.Exchanges(ctx, mint)
			if err != nil {
				d.soft("exchanges", mint, err)
				return nil
			}
			exchanges, exchangesOK = ex, true
			return nil
		})
	}
	_ = g.Wait()

	detail := overview
	detail.Mint = mint
	detail.Sources = nil
	if overviewSrc != "" {
		detail.Sources = append(detail.Sources, overviewSrc)
	}
	if securityOK {
		detail.MintAuthorityActive = security.MintAuthorityActive
		detail.FreezeAuthorityActive = security.FreezeAuthorityActive
		detail.Top10Pct = security.Top10Pct
		detail.Sources = append(detail.Sources, sourceName(d.src.Security, "security"))
	}
	detail.Exchanges = []domain.Exchange{}
	if exchangesOK && exchanges != nil {
		detail.Exchanges = exchanges
		detail.Sources = append(detail.Sources, sourceName(d.src.Exchanges, "exchanges"))
	}

	if detail.PriceUSD == nil && d.src.Price != nil {
		price, err := d.src.Price.Price(ctx, mint)
		if err != nil {
			d.soft("price", mint, err)
		} else if p := domain.Amount(price); p != nil {
			detail.PriceUSD = p
			detail.Sources = append(detail.Sources, sourceName(d.src.Price, "price"))
		}
	}

	if detail.Name == "" {
		detail.Name = seed.Name
	}
	if detail.Symbol == "" {
		detail.Symbol = seed.Symbol
	}
	if detail.CreatedAt == nil && seed.CreatedAt != nil {
		t := *seed.CreatedAt
		detail.CreatedAt = &t
	}
	return detail, nil
}

// overview queries the primary overview source, then the whole-record fallback.
func (d *Detail) overview(ctx context.Context, mint string) (domain.TokenDetail, string) {
	if d.src.Overview != nil {
		o, err := d.src.Overview.Overview(ctx, mint)
		if err == nil {
			return o, sourceName(d.src.Overview, "overview")
		}
		d.soft("overview", mint, err)
	}
	if d.src.Fallback != nil {
		o, err := d.src.Fallback.Overview(ctx, mint)
		if err == nil {
			return o, sourceName(d.src.Fallback, "fallback")
		}
		d.soft("fallback", mint, err)
	}
	return domain.TokenDetail{}, ""
}

func (d *Detail) soft(part, mint string, err error) {
	d.logger.Debug("detail source unavailable",
		zap.String("part", part),
		zap.String("mint", mint),
		zap.String("reason", string(provider.ReasonOf(err))),
		zap.Error(err))
}

func sourceName(src interface{}, fallback string) string {
	if n, ok := src.(interface{ Name() string }); ok {
		return n.Name()
	}
	return fallback
}
