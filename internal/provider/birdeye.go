// internal/provider/birdeye.go
package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/token-scanner/internal/domain"
)

const (
	BirdeyeName    = "birdeye"
	BirdeyeBaseURL = "https://public-api.birdeye.so"
	birdeyeChain   = "solana"
)

// Birdeye adapts the Birdeye public API: token list, new listings and overview.
type Birdeye struct {
	http   *httpClient
	apiKey string
	logger *zap.Logger
}

// NewBirdeye создает адаптер Birdeye. Без ключа все вызовы завершаются not_configured.
func NewBirdeye(apiKey string, opts Options) *Birdeye {
	if opts.BaseURL == "" {
		opts.BaseURL = BirdeyeBaseURL
	}
	headers := http.Header{}
	headers.Set("X-API-KEY", apiKey)
	headers.Set("x-chain", birdeyeChain)

	c := newHTTPClient(BirdeyeName, opts, headers)
	return &Birdeye{http: c, apiKey: apiKey, logger: c.logger}
}

type birdeyeEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
}

type birdeyeItems struct {
	Items  []json.RawMessage `json:"items"`
	Tokens []json.RawMessage `json:"tokens"`
}

type birdeyeListItem struct {
	Address           string    `json:"address"`
	Symbol            string    `json:"symbol"`
	Name              string    `json:"name"`
	Price             number    `json:"price"`
	Liquidity         number    `json:"liquidity"`
	FDV               number    `json:"fdv"`
	Volume24hUSD      number    `json:"volume_24h_usd"`
	V24hUSD           number    `json:"v24hUSD"`
	RecentListingTime timestamp `json:"recent_listing_time"`
	LiquidityAddedAt  timestamp `json:"liquidityAddedAt"`
	CreatedAt         timestamp `json:"created_at"`
}

func (it birdeyeListItem) candidate() domain.PairCandidate {
	created := it.RecentListingTime.Ptr()
	if created == nil {
		created = it.LiquidityAddedAt.Ptr()
	}
	if created == nil {
		created = it.CreatedAt.Ptr()
	}
	return domain.PairCandidate{
		Mint:         it.Address,
		Symbol:       it.Symbol,
		Name:         it.Name,
		PriceUSD:     it.Price.Ptr(),
		LiquidityUSD: it.Liquidity.Ptr(),
		FDVUSD:       it.FDV.Ptr(),
		Volume24hUSD: firstOf(it.Volume24hUSD, it.V24hUSD),
		CreatedAt:    created,
	}
}

// TokenList returns tokens sorted by listing time, newest first.
func (b *Birdeye) TokenList(ctx context.Context, offset, limit int) ([]domain.PairCandidate, error) {
	q := url.Values{}
	q.Set("sort_by", "recent_listing_time")
	q.Set("sort_type", "desc")
	q.Set("offset", strconv.Itoa(offset))
	q.Set("limit", strconv.Itoa(limit))
	return b.list(ctx, "token_list", "/defi/v3/token/list", q)
}

// NewListings returns the recently added assets feed.
func (b *Birdeye) NewListings(ctx context.Context, limit int) ([]domain.PairCandidate, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("meme_platform_enabled", "false")
	return b.list(ctx, "new_listing", "/defi/v2/tokens/new_listing", q)
}

func (b *Birdeye) list(ctx context.Context, op, path string, q url.Values) ([]domain.PairCandidate, error) {
	if b.apiKey == "" {
		return nil, &Error{Provider: BirdeyeName, Op: op, Reason: ReasonNotConfigured, Err: ErrNotConfigured}
	}

	var env birdeyeEnvelope
	if err := b.http.getJSON(ctx, op, path, q, &env); err != nil {
		return nil, err
	}

	var raw []json.RawMessage
	var wrapped birdeyeItems
	if err := json.Unmarshal(env.Data, &wrapped); err == nil {
		raw = append(wrapped.Items, wrapped.Tokens...)
	} else if err := json.Unmarshal(env.Data, &raw); err != nil {
		return nil, &Error{Provider: BirdeyeName, Op: op, Reason: ReasonDecode, Err: &DecodeError{Err: err}}
	}

	items, skipped := decodeEach(raw, parseBirdeyeItem)
	if skipped > 0 {
		b.logger.Debug("dropped malformed entries", zap.String("op", op), zap.Int("skipped", skipped))
	}
	return items, nil
}

func parseBirdeyeItem(r json.RawMessage) (domain.PairCandidate, error) {
	var it birdeyeListItem
	if err := json.Unmarshal(r, &it); err != nil {
		return domain.PairCandidate{}, err
	}
	c := it.candidate()
	if err := c.Validate(); err != nil {
		return domain.PairCandidate{}, err
	}
	return c, nil
}

type birdeyeOverview struct {
	Address           string    `json:"address"`
	Symbol            string    `json:"symbol"`
	Name              string    `json:"name"`
	Price             number    `json:"price"`
	Liquidity         number    `json:"liquidity"`
	FDV               number    `json:"fdv"`
	MC                number    `json:"mc"`
	V24hUSD           number    `json:"v24hUSD"`
	Volume24h         number    `json:"volume_24h"`
	Holder            count     `json:"holder"`
	Holders           count     `json:"holders"`
	LPLockPercentage  number    `json:"lp_lock_percentage"`
	LPLockPct         number    `json:"lpLockPct"`
	CreatedAt         timestamp `json:"created_at"`
	CreationTime      timestamp `json:"creationTime"`
	RecentListingTime timestamp `json:"recent_listing_time"`
}

// Overview returns price, liquidity, fdv, volume, creation, holders and LP lock.
func (b *Birdeye) Overview(ctx context.Context, mint string) (domain.TokenDetail, error) {
	const op = "token_overview"
	if b.apiKey == "" {
		return domain.TokenDetail{}, &Error{Provider: BirdeyeName, Op: op, Reason: ReasonNotConfigured, Err: ErrNotConfigured}
	}

	var env struct {
		Success bool             `json:"success"`
		Data    *birdeyeOverview `json:"data"`
	}
	q := url.Values{}
	q.Set("address", mint)
	if err := b.http.getJSON(ctx, op, "/defi/token_overview", q, &env); err != nil {
		return domain.TokenDetail{}, err
	}
	if env.Data == nil {
		return domain.TokenDetail{}, &Error{Provider: BirdeyeName, Op: op, Reason: ReasonEmpty, Err: ErrEmpty}
	}

	o := env.Data
	created := o.CreatedAt.Ptr()
	if created == nil {
		created = o.CreationTime.Ptr()
	}
	if created == nil {
		created = o.RecentListingTime.Ptr()
	}
	holders := o.Holder.Ptr()
	if holders == nil {
		holders = o.Holders.Ptr()
	}
	var lp *float64
	if v := firstOf(o.LPLockPercentage, o.LPLockPct); v != nil {
		lp = domain.Percent(*v)
	}

	d := domain.TokenDetail{
		PairCandidate: domain.PairCandidate{
			Mint:         mint,
			Symbol:       o.Symbol,
			Name:         o.Name,
			PriceUSD:     o.Price.Ptr(),
			LiquidityUSD: o.Liquidity.Ptr(),
			FDVUSD:       firstOf(o.FDV, o.MC),
			Volume24hUSD: firstOf(o.V24hUSD, o.Volume24h),
			CreatedAt:    created,
		},
		Holders:   holders,
		LPLockPct: lp,
	}
	if !hasOverviewData(d) {
		return domain.TokenDetail{}, &Error{Provider: BirdeyeName, Op: op, Reason: ReasonEmpty,
			Err: fmt.Errorf("%w: no fields for %s", ErrEmpty, mint)}
	}
	return d, nil
}

// TokenListStrategy is the primary discovery strategy.
func (b *Birdeye) TokenListStrategy() DiscoveryStrategy {
	return NewDiscoveryStrategy("birdeye_token_list", func(ctx context.Context, limit int) ([]domain.PairCandidate, error) {
		return b.TokenList(ctx, 0, limit)
	})
}

// NewListingStrategy is the secondary discovery strategy.
func (b *Birdeye) NewListingStrategy() DiscoveryStrategy {
	return NewDiscoveryStrategy("birdeye_new_listing", b.NewListings)
}

func hasOverviewData(d domain.TokenDetail) bool {
	return d.PriceUSD != nil || d.LiquidityUSD != nil || d.FDVUSD != nil || d.Volume24hUSD != nil ||
		d.CreatedAt != nil || d.Holders != nil || d.LPLockPct != nil
}

func (b *Birdeye) Name() string { return BirdeyeName }
