// internal/risk/scorer.go
package risk

import (
	"fmt"

	"github.com/rovshanmuradov/token-scanner/internal/domain"
)

// ReasonCode identifies a single risk penalty.
type ReasonCode string

const (
	LowLiquidity          ReasonCode = "LOW_LIQUIDITY"
	LowVolume             ReasonCode = "LOW_VOLUME"
	LowLPLock             ReasonCode = "LOW_LP_LOCK"
	NewToken              ReasonCode = "NEW_TOKEN"
	MintAuthorityActive   ReasonCode = "MINT_AUTHORITY_ACTIVE"
	FreezeAuthorityActive ReasonCode = "FREEZE_AUTHORITY_ACTIVE"
	Top10Concentration    ReasonCode = "TOP10_CONCENTRATION"
)

// Пороги и штрафы
const (
	maxScore = 100

	minLiquidityUSD = 10_000
	minVolumeUSD    = 10_000
	minLPLockPct    = 20
	minAgeHours     = 6
	maxTop10Pct     = 50

	penaltyLiquidity = 15
	penaltyVolume    = 10
	penaltyLPLock    = 15
	penaltyNewToken  = 20
	penaltyMintAuth  = 15
	penaltyFreeze    = 15
	penaltyTop10     = 10
)

// Reason is a penalty that was applied. Value is set for parameterised codes.
type Reason struct {
	Code  ReasonCode `json:"code"`
	Value *float64   `json:"value,omitempty"`
}

func (r Reason) String() string {
	if r.Value != nil {
		return fmt.Sprintf("%s(%.0f)", r.Code, *r.Value)
	}
	return string(r.Code)
}

// MarshalText keeps reasons as plain strings in JSON output.
func (r Reason) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// Assessment is the score in [0,100] and the ordered penalties behind it.
type Assessment struct {
	Score   int      `json:"score"`
	Reasons []Reason `json:"reasons"`
}

// Metrics are the scorer inputs. A nil metric never yields a penalty.
type Metrics struct {
	LiquidityUSD          *float64
	Volume24hUSD          *float64
	LPLockPct             *float64
	AgeHours              *float64
	MintAuthorityActive   bool
	FreezeAuthorityActive bool
	Top10Pct              *float64
}

// FromDetail collects scorer inputs from an assembled detail record.
func FromDetail(d domain.TokenDetail, ageHours *float64) Metrics {
	return Metrics{
		LiquidityUSD:          d.LiquidityUSD,
		Volume24hUSD:          d.Volume24hUSD,
		LPLockPct:             d.LPLockPct,
		AgeHours:              ageHours,
		MintAuthorityActive:   d.MintAuthorityActive,
		FreezeAuthorityActive: d.FreezeAuthorityActive,
		Top10Pct:              d.Top10Pct,
	}
}

// Score applies the penalties in fixed order. Pure and deterministic.
func Score(m Metrics) Assessment {
	score := maxScore
	reasons := make([]Reason, 0, 7)

	penalize := func(points int, code ReasonCode, value *float64) {
		score -= points
		reasons = append(reasons, Reason{Code: code, Value: value})
	}

	if m.LiquidityUSD != nil && *m.LiquidityUSD < minLiquidityUSD {
		penalize(penaltyLiquidity, LowLiquidity, nil)
	}
	if m.Volume24hUSD != nil && *m.Volume24hUSD < minVolumeUSD {
		penalize(penaltyVolume, LowVolume, nil)
	}
	if m.LPLockPct != nil && *m.LPLockPct < minLPLockPct {
		penalize(penaltyLPLock, LowLPLock, nil)
	}
	if m.AgeHours != nil && *m.AgeHours < minAgeHours {
		penalize(penaltyNewToken, NewToken, nil)
	}
	if m.MintAuthorityActive {
		penalize(penaltyMintAuth, MintAuthorityActive, nil)
	}
	if m.FreezeAuthorityActive {
		penalize(penaltyFreeze, FreezeAuthorityActive, nil)
	}
	if m.Top10Pct != nil && *m.Top10Pct > maxTop10Pct {
		pct := *m.Top10Pct
		penalize(penaltyTop10, Top10Concentration, &pct)
	}

	return Assessment{Score: clamp(score, 0, maxScore), Reasons: reasons}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
