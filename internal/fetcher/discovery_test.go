package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rovshanmuradov/token-scanner/internal/domain"
	"github.com/rovshanmuradov/token-scanner/internal/provider"
)

func testMint(i int) string {
	var b [32]byte
	b[0] = byte(i + 1)
	b[1] = byte(i >> 8)
	b[31] = 0xCD
	return solana.PublicKeyFromBytes(b[:]).String()
}

type fakeStrategy struct {
	name  string
	items []domain.PairCandidate
	err   error
	calls int
}

func (f *fakeStrategy) Name() string { return f.name }

func (f *fakeStrategy) Discover(ctx context.Context, limit int) ([]domain.PairCandidate, error) {
	f.calls++
	return f.items, f.err
}

type discoveryCounter map[string]int

func (c discoveryCounter) RecordDiscovery(status, strategy string) { c[status+"/"+strategy]++ }

func at(h int) *time.Time {
	t := time.Date(2024, 5, 1, h, 0, 0, 0, time.UTC)
	return &t
}

// Scenario A: 50 raw records, 12 duplicates and 3 malformed entries from the primary provider.
func TestDiscoveryPrimaryDedupeSortTruncate(t *testing.T) {
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	var raw []interface{}
	for i := 0; i < 35; i++ {
		raw = append(raw, map[string]interface{}{
			"address":             testMint(i),
			"symbol":              "T",
			"recent_listing_time": base.Add(time.Duration(i) * time.Minute).Unix(),
		})
	}
	for i := 0; i < 12; i++ {
		raw = append(raw, map[string]interface{}{
			"address":             testMint(i),
			"symbol":              "DUP",
			"recent_listing_time": base.Add(48 * time.Hour).Unix(),
		})
	}
	raw = append(raw, "broken", map[string]interface{}{"symbol": "NOMINT"}, map[string]interface{}{"address": 42})
	require.Len(t, raw, 50)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "50", r.URL.Query().Get("limit"))
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": true,
			"data":    map[string]interface{}{"items": raw},
		})
	}))
	defer srv.Close()

	logger := zaptest.NewLogger(t)
	birdeye := provider.NewBirdeye("key", provider.Options{BaseURL: srv.URL, Logger: logger})
	secondary := &fakeStrategy{name: "secondary"}
	rec := discoveryCounter{}

	d := NewDiscovery([]Strategy{birdeye.TokenListStrategy(), secondary}, 50, rec, logger)
	res := d.DiscoverRecentPairs(context.Background(), 8)

	require.Equal(t, StatusOK, res.Status)
	assert.Equal(t, "birdeye_token_list", res.Strategy)
	require.Len(t, res.Items, 8)
	assert.Equal(t, 0, secondary.calls)
	assert.Equal(t, 1, rec["ok/birdeye_token_list"])

	seen := map[string]bool{}
	for i, it := range res.Items {
		assert.False(t, seen[it.Mint], "duplicate mint %s", it.Mint)
		seen[it.Mint] = true
		assert.Equal(t, "T", it.Symbol, "first occurrence must win")
		assert.Equal(t, testMint(34-i), it.Mint)
		if i > 0 {
			assert.True(t, !it.CreatedAt.After(*res.Items[i-1].CreatedAt))
		}
	}
}

func TestDiscoveryFallsThroughWithoutMerging(t *testing.T) {
	failing := &fakeStrategy{name: "primary", err: &provider.Error{Provider: "birdeye", Reason: provider.ReasonTimeout, Err: context.DeadlineExceeded}}
	empty := &fakeStrategy{name: "secondary", items: []domain.PairCandidate{{Mint: "bad"}}}
	winner := &fakeStrategy{name: "tertiary", items: []domain.PairCandidate{
		{Mint: testMint(1), CreatedAt: at(1)},
		{Mint: testMint(2), CreatedAt: at(3)},
	}}
	never := &fakeStrategy{name: "unused", items: []domain.PairCandidate{{Mint: testMint(9)}}}

	d := NewDiscovery([]Strategy{failing, empty, winner, never}, 10, nil, zaptest.NewLogger(t))
	res := d.DiscoverRecentPairs(context.Background(), 8)

	require.Equal(t, StatusOK, res.Status)
	assert.Equal(t, "tertiary", res.Strategy)
	require.Len(t, res.Items, 2)
	assert.Equal(t, testMint(2), res.Items[0].Mint)
	assert.Equal(t, 0, never.calls)

	require.Len(t, res.Attempts, 3)
	assert.Equal(t, provider.ReasonTimeout, res.Attempts[0].Reason)
	assert.Equal(t, provider.ReasonEmpty, res.Attempts[1].Reason)
	assert.Equal(t, 2, res.Attempts[2].Count)
}

// Scenario B: every provider returns zero candidates.
func TestDiscoveryNoData(t *testing.T) {
	rec := discoveryCounter{}
	d := NewDiscovery([]Strategy{
		&fakeStrategy{name: "a"},
		&fakeStrategy{name: "b", err: errors.New("boom")},
		&fakeStrategy{name: "c", items: []domain.PairCandidate{}},
	}, 50, rec, zaptest.NewLogger(t))

	res := d.DiscoverRecentPairs(context.Background(), 8)
	assert.Equal(t, StatusNoData, res.Status)
	assert.Empty(t, res.Items)
	assert.Len(t, res.Attempts, 3)
	assert.Equal(t, 1, rec["no_data/"])
}

func TestNormalizeNilCreatedAtLast(t *testing.T) {
	items := []domain.PairCandidate{
		{Mint: testMint(1)},
		{Mint: testMint(2), CreatedAt: at(1)},
		{Mint: testMint(3)},
		{Mint: testMint(4), CreatedAt: at(5)},
	}
	got := Normalize(items, 10)
	require.Len(t, got, 4)
	assert.Equal(t, []string{testMint(4), testMint(2), testMint(1), testMint(3)},
		[]string{got[0].Mint, got[1].Mint, got[2].Mint, got[3].Mint})

	assert.Len(t, Normalize(items, 2), 2)
	assert.Empty(t, Normalize(items, 0))
}
