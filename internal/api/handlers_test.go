package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rovshanmuradov/token-scanner/internal/fetcher"
	"github.com/rovshanmuradov/token-scanner/internal/scanner"
	"github.com/rovshanmuradov/token-scanner/internal/throttle"
	"github.com/rovshanmuradov/token-scanner/internal/utils/metrics"
)

type fakeScanner struct {
	scan       scanner.ScanResult
	scanErr    error
	page       scanner.Page
	pageErr    error
	privileged map[string]bool
	lastIndex  int
}

func (f *fakeScanner) Scan(ctx context.Context, userID string, privileged bool) (scanner.ScanResult, error) {
	if f.privileged == nil {
		f.privileged = map[string]bool{}
	}
	f.privileged[userID] = privileged
	return f.scan, f.scanErr
}

func (f *fakeScanner) Page(ctx context.Context, sessionID string, index int) (scanner.Page, error) {
	f.lastIndex = index
	return f.page, f.pageErr
}

func (f *fakeScanner) Token(ctx context.Context, input string) (scanner.Page, error) {
	if input == "bad" {
		return scanner.Page{}, scanner.ErrInvalidMint
	}
	return f.page, f.pageErr
}

func (f *fakeScanner) Callback(ctx context.Context, data string) (scanner.Page, scanner.View, error) {
	if _, err := scanner.ParseCallback(data); err != nil {
		return scanner.Page{}, "", err
	}
	return f.page, scanner.ViewDetails, f.pageErr
}

func newTestServer(t *testing.T, f *fakeScanner) http.Handler {
	t.Helper()
	logger := zaptest.NewLogger(t)
	h := NewHandlers(f, scanner.NewStaticEntitlements([]string{"vip"}), logger)
	return NewServer(DefaultServerConfig(":0"), h, metrics.NewCollector().Handler(), logger).Handler()
}

func do(t *testing.T, h http.Handler, method, target, body string, header map[string]string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out map[string]interface{}
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	}
	return rec, out
}

func TestScanEndpoint(t *testing.T) {
	f := &fakeScanner{scan: scanner.ScanResult{
		Decision: throttle.Decision{Allowed: true},
		Status:   fetcher.StatusOK,
		Strategy: "birdeye_token_list",
		Page:     &scanner.Page{SessionID: "sid", Total: 3},
	}}
	h := newTestServer(t, f)

	rec, body := do(t, h, http.MethodPost, "/scan", `{"user_id":"vip"}`, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "birdeye_token_list", body["strategy"])
	assert.Equal(t, "sid", body["page"].(map[string]interface{})["session_id"])
	assert.True(t, f.privileged["vip"])

	_, _ = do(t, h, http.MethodPost, "/scan", "", map[string]string{userHeader: "plain"})
	assert.False(t, f.privileged["plain"])

	rec, body = do(t, h, http.MethodPost, "/scan", `{}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "missing_user", body["error"])
}

func TestScanThrottled(t *testing.T) {
	f := &fakeScanner{scan: scanner.ScanResult{Decision: throttle.Decision{Remaining: 12500 * time.Millisecond}}}
	rec, body := do(t, newTestServer(t, f), http.MethodPost, "/scan", "", map[string]string{userHeader: "u"})

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "13", rec.Header().Get("Retry-After"))
	assert.Equal(t, "throttled", body["status"])
	assert.Equal(t, float64(13), body["retry_after_seconds"])
}

func TestScanNoData(t *testing.T) {
	f := &fakeScanner{scan: scanner.ScanResult{Decision: throttle.Decision{Allowed: true}, Status: fetcher.StatusNoData}}
	rec, body := do(t, newTestServer(t, f), http.MethodPost, "/scan", "", map[string]string{userHeader: "u"})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no_data", body["status"])
	assert.Nil(t, body["page"])
}

func TestPageEndpoint(t *testing.T) {
	f := &fakeScanner{page: scanner.Page{SessionID: "sid", Index: 4, Total: 5, Clamped: true, AtEnd: true}}
	h := newTestServer(t, f)

	rec, body := do(t, h, http.MethodGet, "/sessions/sid/10", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 10, f.lastIndex)
	assert.Equal(t, float64(4), body["index"])
	assert.Equal(t, true, body["clamped"])

	_, _ = do(t, h, http.MethodGet, "/sessions/sid/-2", "", nil)
	assert.Equal(t, -2, f.lastIndex)

	f.pageErr = fmt.Errorf("lookup: %w", scanner.ErrSessionNotFound)
	rec, body = do(t, h, http.MethodGet, "/sessions/gone/0", "", nil)
	assert.Equal(t, http.StatusGone, rec.Code)
	assert.Equal(t, "session_not_found", body["error"])
}

func TestTokenAndCallbackEndpoints(t *testing.T) {
	f := &fakeScanner{page: scanner.Page{SessionID: "sid", Total: 1}}
	h := newTestServer(t, f)

	rec, _ := do(t, h, http.MethodGet, "/tokens/whatever", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, body := do(t, h, http.MethodGet, "/tokens/bad", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_mint", body["error"])

	rec, body = do(t, h, http.MethodGet, "/callback?data=scan:sid:1", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "details", body["view"])

	rec, body = do(t, h, http.MethodGet, "/callback?data=nope", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_callback", body["error"])
}

func TestInfraEndpoints(t *testing.T) {
	h := newTestServer(t, &fakeScanner{})

	rec, body := do(t, h, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec, _ = do(t, h, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "token_scanner_detail_assemblies_in_flight")

	rec, body = do(t, h, http.MethodGet, "/nowhere", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", body["error"])
}

func TestInternalErrorIsOpaque(t *testing.T) {
	f := &fakeScanner{scanErr: fmt.Errorf("rand: entropy exhausted")}
	rec, body := do(t, newTestServer(t, f), http.MethodPost, "/scan", "", map[string]string{userHeader: "u"})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal", body["error"])
}
