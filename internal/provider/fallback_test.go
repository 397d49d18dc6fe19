package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeckoTerminalOverview(t *testing.T) {
	mint := testMint(8)
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v2/networks/solana/tokens/"+mint, r.URL.Path)
		w.Write([]byte(`{"data":{"id":"solana_x","type":"token","attributes":{
			"name":"Gecko","symbol":"GKO","price_usd":"0.002","fdv_usd":"20000",
			"total_reserve_in_usd":"1500.5","volume_usd":{"h24":"75"}}}}`))
	})

	d, err := NewGeckoTerminal(testOptions(t, srv)).Overview(context.Background(), mint)
	require.NoError(t, err)
	assert.Equal(t, "GKO", d.Symbol)
	assert.Equal(t, 0.002, *d.PriceUSD)
	assert.Equal(t, 1500.5, *d.LiquidityUSD)
	assert.Equal(t, 20000.0, *d.FDVUSD)
	assert.Equal(t, 75.0, *d.Volume24hUSD)
	assert.Nil(t, d.CreatedAt)
}

func TestGeckoTerminalNotFound(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"errors":[{"status":"404"}]}`, http.StatusNotFound)
	})

	_, err := NewGeckoTerminal(testOptions(t, srv)).Overview(context.Background(), testMint(1))
	require.Error(t, err)
	assert.Equal(t, ReasonNotFound, ReasonOf(err))
}

func TestJupiterPrice(t *testing.T) {
	mint := testMint(9)
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/price/v2", r.URL.Path)
		if r.URL.Query().Get("ids") == mint {
			fmt.Fprintf(w, `{"data":{%q:{"id":%q,"type":"derivedPrice","price":"0.0315"}}}`, mint, mint)
			return
		}
		w.Write([]byte(`{"data":{}}`))
	})
	j := NewJupiter(testOptions(t, srv))

	price, err := j.Price(context.Background(), mint)
	require.NoError(t, err)
	assert.Equal(t, 0.0315, price)

	_, err = j.Price(context.Background(), testMint(10))
	assert.True(t, errors.Is(err, ErrEmpty))
}
