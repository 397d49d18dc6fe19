// internal/provider/helpers_test.go
package provider

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap/zaptest"
)

// testMint возвращает детерминированный валидный mint для индекса i
func testMint(i int) string {
	var b [32]byte
	b[0] = byte(i + 1)
	b[1] = byte(i >> 8)
	b[31] = 0xAB
	return solana.PublicKeyFromBytes(b[:]).String()
}

func newTestServer(t *testing.T, h http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

func testOptions(t *testing.T, srv *httptest.Server) Options {
	return Options{
		BaseURL: srv.URL,
		Logger:  zaptest.NewLogger(t),
	}
}

type countingRecorder struct {
	calls map[string]int
}

func (r *countingRecorder) RecordProviderCall(provider, op, outcome string) {
	if r.calls == nil {
		r.calls = make(map[string]int)
	}
	r.calls[provider+"/"+op+"/"+outcome]++
}
