// internal/provider/jupiter.go
package provider

import (
	"context"
	"fmt"
	"net/url"
)

const (
	JupiterName    = "jupiter"
	JupiterBaseURL = "https://lite-api.jup.ag"
)

// Jupiter is the price oracle consulted when no other source knew the price.
type Jupiter struct {
	http *httpClient
}

func NewJupiter(opts Options) *Jupiter {
	if opts.BaseURL == "" {
		opts.BaseURL = JupiterBaseURL
	}
	return &Jupiter{http: newHTTPClient(JupiterName, opts, nil)}
}

type jupiterPriceResponse struct {
	Data map[string]*struct {
		ID    string `json:"id"`
		Price number `json:"price"`
	} `json:"data"`
}

// Price returns the USD price of mint.
func (j *Jupiter) Price(ctx context.Context, mint string) (float64, error) {
	const op = "price"
	q := url.Values{}
	q.Set("ids", mint)

	var resp jupiterPriceResponse
	if err := j.http.getJSON(ctx, op, "/price/v2", q, &resp); err != nil {
		return 0, err
	}
	entry, ok := resp.Data[mint]
	if !ok || entry == nil || entry.Price.Ptr() == nil {
		return 0, &Error{Provider: JupiterName, Op: op, Reason: ReasonEmpty,
			Err: fmt.Errorf("%w: no price for %s", ErrEmpty, mint)}
	}
	return *entry.Price.Ptr(), nil
}

func (j *Jupiter) Name() string { return JupiterName }
