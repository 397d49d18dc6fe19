// internal/provider/http.go
package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/token-scanner/internal/ratelimit"
)

const maxBodyBytes = 8 << 20

// httpClient is the shared JSON-over-HTTPS plumbing of the adapters.
type httpClient struct {
	*guard
	client  *http.Client
	baseURL string
	headers http.Header
}

// Options wires a provider adapter to its gate, guard settings and sinks.
type Options struct {
	BaseURL    string
	Gate       *ratelimit.Gate
	Guard      GuardConfig
	HTTPClient *http.Client
	Recorder   Recorder
	Logger     *zap.Logger
}

func newHTTPClient(name string, opts Options, headers http.Header) *httpClient {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: opts.Guard.Timeout}
	}
	if headers == nil {
		headers = http.Header{}
	}
	headers.Set("Accept", "application/json")

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &httpClient{
		guard:   newGuard(name, opts.Gate, opts.Guard, opts.Recorder, logger.Named(name)),
		client:  client,
		baseURL: opts.BaseURL,
		headers: headers,
	}
}

// getJSON performs a guarded GET of baseURL+path and decodes the body into dst.
func (c *httpClient) getJSON(ctx context.Context, op, path string, query url.Values, dst interface{}) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	return c.run(ctx, op, func(ctx context.Context) error {
		return c.do(ctx, endpoint, dst)
	})
}

func (c *httpClient) do(ctx context.Context, endpoint string, dst interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	for k, v := range c.headers {
		req.Header[k] = v
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	body := io.LimitReader(resp.Body, maxBodyBytes)
	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(body, 512))
		return &StatusError{Code: resp.StatusCode, Body: string(snippet)}
	}

	if err := json.NewDecoder(body).Decode(dst); err != nil {
		return &DecodeError{Err: err}
	}
	return nil
}
