package scanner

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rovshanmuradov/token-scanner/internal/cache"
	"github.com/rovshanmuradov/token-scanner/internal/domain"
	"github.com/rovshanmuradov/token-scanner/internal/fetcher"
	"github.com/rovshanmuradov/token-scanner/internal/risk"
	"github.com/rovshanmuradov/token-scanner/internal/session"
	"github.com/rovshanmuradov/token-scanner/internal/throttle"
)

func testMint(i int) string {
	var b [32]byte
	b[0] = byte(i + 1)
	b[31] = 0xEF
	return solana.PublicKeyFromBytes(b[:]).String()
}

type fakeDiscovery struct {
	mu    sync.Mutex
	res   fetcher.DiscoveryResult
	calls int
}

func (f *fakeDiscovery) DiscoverRecentPairs(ctx context.Context, limit int) fetcher.DiscoveryResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.res
}

type fakeDetail struct {
	details map[string]domain.TokenDetail
	err     error
}

func (f fakeDetail) Assemble(ctx context.Context, seed domain.PairCandidate) (domain.TokenDetail, error) {
	if f.err != nil {
		return domain.TokenDetail{}, f.err
	}
	d, ok := f.details[seed.Mint]
	if !ok {
		d = domain.TokenDetail{PairCandidate: seed, Exchanges: []domain.Exchange{}}
	}
	d.Mint = seed.Mint
	return d, nil
}

type fakeThrottle struct {
	decisions map[string]time.Duration
	err       error
}

func (f *fakeThrottle) CheckAndSet(ctx context.Context, userID string, cooldown time.Duration) (throttle.Decision, error) {
	if f.err != nil {
		return throttle.Decision{}, f.err
	}
	if f.decisions == nil {
		f.decisions = map[string]time.Duration{}
	}
	if _, seen := f.decisions[userID]; seen {
		return throttle.Decision{Remaining: cooldown}, nil
	}
	f.decisions[userID] = cooldown
	return throttle.Decision{Allowed: true}, nil
}

func fp(v float64) *float64 { return &v }

type fixture struct {
	svc       *Service
	discovery *fakeDiscovery
	throttle  *fakeThrottle
	now       time.Time
}

func newFixture(t *testing.T, items []domain.PairCandidate, details map[string]domain.TokenDetail) *fixture {
	t.Helper()
	logger := zaptest.NewLogger(t)
	status := fetcher.StatusOK
	if len(items) == 0 {
		status = fetcher.StatusNoData
	}
	disc := &fakeDiscovery{res: fetcher.DiscoveryResult{Status: status, Strategy: "birdeye_token_list", Items: items}}
	thr := &fakeThrottle{}

	svc := NewService(disc, fakeDetail{details: details},
		cache.NewMemory(15*time.Second, nil, logger),
		session.NewStore(5*time.Minute, nil, logger),
		thr,
		Options{Limit: 8, Cooldown: 30 * time.Second, PrivilegedCooldown: 10 * time.Second},
		logger)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }
	return &fixture{svc: svc, discovery: disc, throttle: thr, now: now}
}

func candidates(n int, newest time.Time) []domain.PairCandidate {
	out := make([]domain.PairCandidate, n)
	for i := range out {
		created := newest.Add(-time.Duration(i) * time.Hour)
		out[i] = domain.PairCandidate{Mint: testMint(i), Symbol: "T", CreatedAt: &created}
	}
	return out
}

func TestScanFirstPage(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	items := candidates(3, now.Add(-2*time.Hour))
	details := map[string]domain.TokenDetail{
		testMint(0): {
			PairCandidate:       domain.PairCandidate{CreatedAt: items[0].CreatedAt, LiquidityUSD: fp(5000)},
			MintAuthorityActive: true,
		},
	}
	f := newFixture(t, items, details)

	res, err := f.svc.Scan(context.Background(), "u1", false)
	require.NoError(t, err)
	assert.True(t, res.Decision.Allowed)
	assert.Equal(t, fetcher.StatusOK, res.Status)
	assert.False(t, res.FromCache)
	require.NotNil(t, res.Page)

	p := res.Page
	assert.Equal(t, 0, p.Index)
	assert.Equal(t, 3, p.Total)
	assert.True(t, p.AtStart)
	assert.False(t, p.AtEnd)
	require.NotNil(t, p.AgeHours)
	assert.InDelta(t, 2.0, *p.AgeHours, 1e-9)
	assert.Equal(t, 100-15-20-15, p.Risk.Score)
	assert.Equal(t, []risk.Reason{{Code: risk.LowLiquidity}, {Code: risk.NewToken}, {Code: risk.MintAuthorityActive}}, p.Risk.Reasons)

	assert.Empty(t, p.Nav.Prev)
	assert.Equal(t, "scan:"+p.SessionID+":1", p.Nav.Next)
	assert.Equal(t, "token:"+testMint(0)+":details:"+p.SessionID+":0", p.Nav.Details)
	assert.Equal(t, 30*time.Second, f.throttle.decisions["u1"])
}

func TestScanUsesCacheAndPrivilegedCooldown(t *testing.T) {
	f := newFixture(t, candidates(2, time.Now()), nil)

	_, err := f.svc.Scan(context.Background(), "u1", false)
	require.NoError(t, err)
	res, err := f.svc.Scan(context.Background(), "vip", true)
	require.NoError(t, err)

	assert.True(t, res.FromCache)
	assert.Equal(t, 1, f.discovery.calls)
	assert.Equal(t, 10*time.Second, f.throttle.decisions["vip"])
}

func TestScanDenied(t *testing.T) {
	f := newFixture(t, candidates(2, time.Now()), nil)

	_, err := f.svc.Scan(context.Background(), "u1", false)
	require.NoError(t, err)
	res, err := f.svc.Scan(context.Background(), "u1", false)
	require.NoError(t, err)

	assert.False(t, res.Decision.Allowed)
	assert.Equal(t, 30, res.Decision.RemainingSeconds())
	assert.Nil(t, res.Page)
	assert.Equal(t, 1, f.discovery.calls)
}

func TestScanNoData(t *testing.T) {
	f := newFixture(t, nil, nil)

	res, err := f.svc.Scan(context.Background(), "u1", false)
	require.NoError(t, err)
	assert.Equal(t, fetcher.StatusNoData, res.Status)
	assert.Nil(t, res.Page)
}

func TestScanThrottleStoreDownFailsOpen(t *testing.T) {
	f := newFixture(t, candidates(1, time.Now()), nil)
	f.throttle.err = errors.New("db locked")

	res, err := f.svc.Scan(context.Background(), "u1", false)
	require.NoError(t, err)
	assert.True(t, res.Decision.Allowed)
	assert.NotNil(t, res.Page)
}

func TestPageClampsAndUnknownSession(t *testing.T) {
	f := newFixture(t, candidates(5, time.Now()), nil)
	res, err := f.svc.Scan(context.Background(), "u1", false)
	require.NoError(t, err)
	sid := res.Page.SessionID

	p, err := f.svc.Page(context.Background(), sid, 10)
	require.NoError(t, err)
	assert.Equal(t, 4, p.Index)
	assert.True(t, p.Clamped)
	assert.True(t, p.AtEnd)
	assert.Empty(t, p.Nav.Next)
	assert.Equal(t, testMint(4), p.Detail.Mint)

	_, err = f.svc.Page(context.Background(), "missing", 0)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestPageUnknownAgeNeverNewToken(t *testing.T) {
	items := []domain.PairCandidate{{Mint: testMint(1)}}
	f := newFixture(t, items, nil)

	res, err := f.svc.Scan(context.Background(), "u1", false)
	require.NoError(t, err)
	assert.Nil(t, res.Page.AgeHours)
	assert.Equal(t, 100, res.Page.Risk.Score)
	assert.Empty(t, res.Page.Risk.Reasons)
}

func TestTokenLookup(t *testing.T) {
	f := newFixture(t, nil, nil)
	mint := testMint(9)

	p, err := f.svc.Token(context.Background(), "https://birdeye.so/token/"+mint+"?chain=solana")
	require.NoError(t, err)
	assert.Equal(t, mint, p.Detail.Mint)
	assert.Equal(t, 1, p.Total)
	assert.True(t, p.AtStart && p.AtEnd)

	_, err = f.svc.Token(context.Background(), "hello world")
	assert.ErrorIs(t, err, ErrInvalidMint)
}

func TestCallbackRoundTrip(t *testing.T) {
	f := newFixture(t, candidates(3, time.Now()), nil)
	res, err := f.svc.Scan(context.Background(), "u1", false)
	require.NoError(t, err)

	p, view, err := f.svc.Callback(context.Background(), res.Page.Nav.Next)
	require.NoError(t, err)
	assert.Equal(t, ViewSummary, view)
	assert.Equal(t, 1, p.Index)

	p, view, err = f.svc.Callback(context.Background(), p.Nav.Details)
	require.NoError(t, err)
	assert.Equal(t, ViewDetails, view)
	assert.Equal(t, 1, p.Index)

	_, _, err = f.svc.Callback(context.Background(), "fav:whatever")
	assert.ErrorIs(t, err, ErrBadCallback)
}

func TestDetailFailureSurfaces(t *testing.T) {
	f := newFixture(t, candidates(1, time.Now()), nil)
	f.svc.detail = fakeDetail{err: context.Canceled}

	_, err := f.svc.Scan(context.Background(), "u1", false)
	assert.ErrorIs(t, err, context.Canceled)
}
