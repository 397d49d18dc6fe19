// internal/domain/token.go
package domain

import (
	"errors"
	"math"
	"time"
)

var (
	// ErrEmptyMint возникает, когда у записи нет идентификатора актива
	ErrEmptyMint = errors.New("empty mint")
)

// PairCandidate is a newly listed asset as seen by a discovery provider.
// Numeric fields are either a finite non-negative value or nil.
type PairCandidate struct {
	Mint         string     `json:"mint"`
	Symbol       string     `json:"symbol"`
	Name         string     `json:"name"`
	PriceUSD     *float64   `json:"price_usd,omitempty"`
	LiquidityUSD *float64   `json:"liquidity_usd,omitempty"`
	FDVUSD       *float64   `json:"fdv_usd,omitempty"`
	Volume24hUSD *float64   `json:"volume_24h_usd,omitempty"`
	CreatedAt    *time.Time `json:"created_at,omitempty"`
}

// Exchange is a single venue listing the asset.
type Exchange struct {
	Name         string   `json:"name"`
	LiquidityUSD *float64 `json:"liquidity_usd,omitempty"`
}

// TokenDetail extends PairCandidate with holder and authority data.
// Authority flags stay false when the on-chain lookup is unavailable.
type TokenDetail struct {
	PairCandidate

	Holders               *int64     `json:"holders,omitempty"`
	LPLockPct             *float64   `json:"lp_lock_pct,omitempty"`
	MintAuthorityActive   bool       `json:"mint_authority_active"`
	FreezeAuthorityActive bool       `json:"freeze_authority_active"`
	Top10Pct              *float64   `json:"top10_pct,omitempty"`
	Exchanges             []Exchange `json:"exchanges"`

	// Sources lists providers that contributed at least one field.
	Sources []string `json:"sources,omitempty"`
}

// Validate checks the candidate invariants and normalises numeric fields.
func (p *PairCandidate) Validate() error {
	if p.Mint == "" {
		return ErrEmptyMint
	}
	if _, err := ParseMint(p.Mint); err != nil {
		return err
	}
	p.PriceUSD = sanitize(p.PriceUSD)
	p.LiquidityUSD = sanitize(p.LiquidityUSD)
	p.FDVUSD = sanitize(p.FDVUSD)
	p.Volume24hUSD = sanitize(p.Volume24hUSD)
	if p.CreatedAt != nil && p.CreatedAt.IsZero() {
		p.CreatedAt = nil
	}
	return nil
}

// AgeHours returns hours elapsed since CreatedAt, or nil when unknown.
func (p PairCandidate) AgeHours(now time.Time) *float64 {
	if p.CreatedAt == nil {
		return nil
	}
	h := now.Sub(*p.CreatedAt).Hours()
	if h < 0 {
		h = 0
	}
	return &h
}

// Clone returns a deep copy so callers can't mutate shared snapshots.
func (p PairCandidate) Clone() PairCandidate {
	out := p
	out.PriceUSD = cloneFloat(p.PriceUSD)
	out.LiquidityUSD = cloneFloat(p.LiquidityUSD)
	out.FDVUSD = cloneFloat(p.FDVUSD)
	out.Volume24hUSD = cloneFloat(p.Volume24hUSD)
	if p.CreatedAt != nil {
		t := *p.CreatedAt
		out.CreatedAt = &t
	}
	return out
}

// ClonePairs deep-copies a candidate slice.
func ClonePairs(items []PairCandidate) []PairCandidate {
	if items == nil {
		return nil
	}
	out := make([]PairCandidate, len(items))
	for i := range items {
		out[i] = items[i].Clone()
	}
	return out
}

// Amount wraps v as a known metric. NaN, Inf and negative values are unknown.
func Amount(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return nil
	}
	return &v
}

// Percent wraps v as a known percentage in [0, 100].
func Percent(v float64) *float64 {
	p := Amount(v)
	if p == nil || *p > 100 {
		return nil
	}
	return p
}

func sanitize(v *float64) *float64 {
	if v == nil {
		return nil
	}
	return Amount(*v)
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// Security is the on-chain view of a mint: live authorities and holder concentration.
type Security struct {
	MintAuthorityActive   bool
	FreezeAuthorityActive bool
	Top10Pct              *float64
}
