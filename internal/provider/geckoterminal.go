// internal/provider/geckoterminal.go
package provider

import (
	"context"
	"net/url"

	"github.com/rovshanmuradov/token-scanner/internal/domain"
)

const (
	GeckoTerminalName    = "geckoterminal"
	GeckoTerminalBaseURL = "https://api.geckoterminal.com"
)

// GeckoTerminal is the whole-record fallback used when the overview source fails.
type GeckoTerminal struct {
	http *httpClient
}

func NewGeckoTerminal(opts Options) *GeckoTerminal {
	if opts.BaseURL == "" {
		opts.BaseURL = GeckoTerminalBaseURL
	}
	return &GeckoTerminal{http: newHTTPClient(GeckoTerminalName, opts, nil)}
}

type geckoTokenResponse struct {
	Data *struct {
		Attributes struct {
			Address       string    `json:"address"`
			Name          string    `json:"name"`
			Symbol        string    `json:"symbol"`
			PriceUSD      number    `json:"price_usd"`
			FDVUSD        number    `json:"fdv_usd"`
			TotalReserve  number    `json:"total_reserve_in_usd"`
			VolumeUSD     volumeH24 `json:"volume_usd"`
			PoolCreatedAt timestamp `json:"pool_created_at"`
		} `json:"attributes"`
	} `json:"data"`
}

type volumeH24 struct {
	H24 number `json:"h24"`
}

// Overview returns the subset of detail fields GeckoTerminal knows about.
func (g *GeckoTerminal) Overview(ctx context.Context, mint string) (domain.TokenDetail, error) {
	const op = "token"
	var resp geckoTokenResponse
	path := "/api/v2/networks/solana/tokens/" + url.PathEscape(mint)
	if err := g.http.getJSON(ctx, op, path, nil, &resp); err != nil {
		return domain.TokenDetail{}, err
	}
	if resp.Data == nil {
		return domain.TokenDetail{}, &Error{Provider: GeckoTerminalName, Op: op, Reason: ReasonEmpty, Err: ErrEmpty}
	}

	a := resp.Data.Attributes
	d := domain.TokenDetail{
		PairCandidate: domain.PairCandidate{
			Mint:         mint,
			Symbol:       a.Symbol,
			Name:         a.Name,
			PriceUSD:     a.PriceUSD.Ptr(),
			LiquidityUSD: a.TotalReserve.Ptr(),
			FDVUSD:       a.FDVUSD.Ptr(),
			Volume24hUSD: a.VolumeUSD.H24.Ptr(),
			CreatedAt:    a.PoolCreatedAt.Ptr(),
		},
	}
	if !hasOverviewData(d) {
		return domain.TokenDetail{}, &Error{Provider: GeckoTerminalName, Op: op, Reason: ReasonEmpty, Err: ErrEmpty}
	}
	return d, nil
}

func (g *GeckoTerminal) Name() string { return GeckoTerminalName }
