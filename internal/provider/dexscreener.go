// internal/provider/dexscreener.go
package provider

import (
	"context"
	"encoding/json"
	"net/url"
	"sort"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/token-scanner/internal/domain"
)

const (
	DexScreenerName    = "dexscreener"
	DexScreenerBaseURL = "https://api.dexscreener.com"
	solanaChain        = "solana"
	wsolMint           = "So11111111111111111111111111111111111111112"
)

// dexScreenerResponse представляет основную структуру ответа
type dexScreenerResponse struct {
	SchemaVersion string            `json:"schemaVersion"`
	Pairs         []json.RawMessage `json:"pairs"`
}

// pairInfo содержит информацию о паре
type pairInfo struct {
	ChainID       string        `json:"chainId"`
	DexID         string        `json:"dexId"`
	PairAddress   string        `json:"pairAddress"`
	BaseToken     tokenInfo     `json:"baseToken"`
	QuoteToken    tokenInfo     `json:"quoteToken"`
	PriceUSD      number        `json:"priceUsd"`
	Liquidity     liquidityInfo `json:"liquidity"`
	FDV           number        `json:"fdv"`
	Volume        volumeInfo    `json:"volume"`
	PairCreatedAt timestamp     `json:"pairCreatedAt"`
}

type tokenInfo struct {
	Address string `json:"address"`
	Name    string `json:"name"`
	Symbol  string `json:"symbol"`
}

type liquidityInfo struct {
	USD number `json:"usd"`
}

type volumeInfo struct {
	H24 number `json:"h24"`
}

// DexScreener is the tertiary discovery source and the exchange listing source.
type DexScreener struct {
	http   *httpClient
	logger *zap.Logger
}

// NewDexScreener создает адаптер DexScreener
func NewDexScreener(opts Options) *DexScreener {
	if opts.BaseURL == "" {
		opts.BaseURL = DexScreenerBaseURL
	}
	c := newHTTPClient(DexScreenerName, opts, nil)
	return &DexScreener{http: c, logger: c.logger}
}

func (s *DexScreener) pairs(ctx context.Context, op, path string, q url.Values) ([]pairInfo, error) {
	var resp dexScreenerResponse
	if err := s.http.getJSON(ctx, op, path, q, &resp); err != nil {
		return nil, err
	}
	pairs, skipped := decodeEach(resp.Pairs, func(r json.RawMessage) (pairInfo, error) {
		var p pairInfo
		err := json.Unmarshal(r, &p)
		return p, err
	})
	if skipped > 0 {
		s.logger.Debug("dropped malformed pairs", zap.String("op", op), zap.Int("skipped", skipped))
	}
	return pairs, nil
}

// Search returns Solana pairs matching the query as candidates keyed by base token.
func (s *DexScreener) Search(ctx context.Context, query string, limit int) ([]domain.PairCandidate, error) {
	q := url.Values{}
	q.Set("q", query)
	pairs, err := s.pairs(ctx, "search", "/latest/dex/search", q)
	if err != nil {
		return nil, err
	}

	out := make([]domain.PairCandidate, 0, len(pairs))
	for _, p := range pairs {
		// Проверяем сеть
		if p.ChainID != solanaChain || p.BaseToken.Address == wsolMint {
			continue
		}
		c := domain.PairCandidate{
			Mint:         p.BaseToken.Address,
			Symbol:       p.BaseToken.Symbol,
			Name:         p.BaseToken.Name,
			PriceUSD:     p.PriceUSD.Ptr(),
			LiquidityUSD: p.Liquidity.USD.Ptr(),
			FDVUSD:       p.FDV.Ptr(),
			Volume24hUSD: p.Volume.H24.Ptr(),
			CreatedAt:    p.PairCreatedAt.Ptr(),
		}
		if err := c.Validate(); err != nil {
			continue
		}
		out = append(out, c)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// SearchStrategy is the tertiary discovery strategy.
func (s *DexScreener) SearchStrategy() DiscoveryStrategy {
	return NewDiscoveryStrategy("dexscreener_search", func(ctx context.Context, limit int) ([]domain.PairCandidate, error) {
		return s.Search(ctx, solanaChain, limit)
	})
}

// Exchanges lists venues trading the mint, one per dex, sorted by liquidity desc.
func (s *DexScreener) Exchanges(ctx context.Context, mint string) ([]domain.Exchange, error) {
	pairs, err := s.pairs(ctx, "token_pairs", "/latest/dex/tokens/"+url.PathEscape(mint), nil)
	if err != nil {
		return nil, err
	}

	byDex := make(map[string]*domain.Exchange)
	order := make([]string, 0)
	for _, p := range pairs {
		if p.DexID == "" || (p.ChainID != "" && p.ChainID != solanaChain) {
			continue
		}
		ex, ok := byDex[p.DexID]
		if !ok {
			ex = &domain.Exchange{Name: p.DexID}
			byDex[p.DexID] = ex
			order = append(order, p.DexID)
		}
		if liq := p.Liquidity.USD.Ptr(); liq != nil {
			sum := *liq
			if ex.LiquidityUSD != nil {
				sum += *ex.LiquidityUSD
			}
			ex.LiquidityUSD = &sum
		}
	}

	out := make([]domain.Exchange, 0, len(order))
	for _, name := range order {
		out = append(out, *byDex[name])
	}
	sort.SliceStable(out, func(i, j int) bool {
		return liquidityOf(out[i]) > liquidityOf(out[j])
	})
	return out, nil
}

func liquidityOf(e domain.Exchange) float64 {
	if e.LiquidityUSD == nil {
		return -1
	}
	return *e.LiquidityUSD
}

func (s *DexScreener) Name() string { return DexScreenerName }
