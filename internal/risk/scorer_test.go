package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func f(v float64) *float64 { return &v }

func codes(a Assessment) []string {
	out := make([]string, len(a.Reasons))
	for i, r := range a.Reasons {
		out[i] = r.String()
	}
	return out
}

func TestScore_LowLiquidityOnly(t *testing.T) {
	got := Score(Metrics{
		LiquidityUSD: f(5000),
		Volume24hUSD: f(20000),
		LPLockPct:    f(50),
		AgeHours:     f(10),
	})

	assert.Equal(t, 85, got.Score)
	assert.Equal(t, []string{"LOW_LIQUIDITY"}, codes(got))
}

func TestScore_UnknownMetricsWithAuthorities(t *testing.T) {
	got := Score(Metrics{
		AgeHours:              f(2),
		MintAuthorityActive:   true,
		FreezeAuthorityActive: true,
		Top10Pct:              f(80),
	})

	assert.Equal(t, 40, got.Score)
	assert.Equal(t, []string{
		"NEW_TOKEN",
		"MINT_AUTHORITY_ACTIVE",
		"FREEZE_AUTHORITY_ACTIVE",
		"TOP10_CONCENTRATION(80)",
	}, codes(got))
	assert.Equal(t, 80.0, *got.Reasons[3].Value)
}

func TestScore_NilNeverPenalizes(t *testing.T) {
	got := Score(Metrics{})

	assert.Equal(t, 100, got.Score)
	assert.Empty(t, got.Reasons)
}

func TestScore_AllPenaltiesClamped(t *testing.T) {
	got := Score(Metrics{
		LiquidityUSD:          f(1),
		Volume24hUSD:          f(1),
		LPLockPct:             f(0),
		AgeHours:              f(0),
		MintAuthorityActive:   true,
		FreezeAuthorityActive: true,
		Top10Pct:              f(99),
	})

	assert.Equal(t, 0, got.Score)
	assert.Equal(t, []string{
		"LOW_LIQUIDITY",
		"LOW_VOLUME",
		"LOW_LP_LOCK",
		"NEW_TOKEN",
		"MINT_AUTHORITY_ACTIVE",
		"FREEZE_AUTHORITY_ACTIVE",
		"TOP10_CONCENTRATION(99)",
	}, codes(got))
}

func TestScore_Thresholds(t *testing.T) {
	tests := []struct {
		name    string
		metrics Metrics
		want    int
	}{
		{"liquidity at threshold", Metrics{LiquidityUSD: f(10_000)}, 100},
		{"volume below threshold", Metrics{Volume24hUSD: f(9_999.99)}, 90},
		{"lp lock at threshold", Metrics{LPLockPct: f(20)}, 100},
		{"age at threshold", Metrics{AgeHours: f(6)}, 100},
		{"top10 at threshold", Metrics{Top10Pct: f(50)}, 100},
		{"top10 above threshold", Metrics{Top10Pct: f(50.1)}, 90},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Score(tt.metrics).Score)
		})
	}
}

func TestScore_Deterministic(t *testing.T) {
	m := Metrics{LiquidityUSD: f(100), AgeHours: f(1), Top10Pct: f(70)}
	first := Score(m)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Score(m))
	}
}
