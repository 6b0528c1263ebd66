// Package rpc provides a minimal JSON-RPC client shared by the Bitcoin
// Core, monero-wallet-rpc, and seed authority clients.
package rpc

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	walleterr "github.com/eigenix/walletd/pkg/errors"
)

// DefaultTimeout bounds every RPC call. Timeouts classify as
// connectivity failures, eligible for retry.
const DefaultTimeout = 30 * time.Second

// Client is a minimal JSON-RPC client over HTTP POST.
type Client struct {
	url        string
	version    string // "1.0" for bitcoind, "2.0" for monero-wallet-rpc and the authority
	authHeader string
	httpClient *http.Client
	limiter    *rate.Limiter
	idCounter  atomic.Uint64
}

// Option configures a Client.
type Option func(*Client)

// WithVersion sets the jsonrpc version field. Bitcoin Core speaks "1.0".
func WithVersion(v string) Option {
	return func(c *Client) { c.version = v }
}

// WithBasicAuth sets an Authorization header from a raw credential string
// (e.g. the contents of bitcoind's cookie file, "user:password").
func WithBasicAuth(credential string) Option {
	return func(c *Client) {
		c.authHeader = "Basic " + base64.StdEncoding.EncodeToString([]byte(strings.TrimSpace(credential)))
	}
}

// WithTimeout overrides the per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithRateLimit applies a token-bucket limit to outgoing calls.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst) }
}

// WithHTTPClient replaces the underlying HTTP client. Used in tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates a new RPC client for the given endpoint.
func NewClient(url string, opts ...Option) *Client {
	c := &Client{
		url:        url,
		version:    "2.0",
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// URL returns the endpoint this client talks to.
func (c *Client) URL() string {
	return c.url
}

// request represents a JSON-RPC request.
type request struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
	ID      uint64 `json:"id"`
}

// response represents a JSON-RPC response.
type response struct {
	Result json.RawMessage `json:"result"`
	Error  *Error          `json:"error,omitempty"`
}

// Error is a JSON-RPC error as reported by the remote host. Reconcilers
// inspect Message to classify benign-redundant host responses.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// Call performs a JSON-RPC call against the client's endpoint.
func (c *Client) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	return c.CallPath(ctx, "", method, params)
}

// CallPath performs a JSON-RPC call against the endpoint plus a path
// suffix. Bitcoin Core scopes wallet methods under /wallet/<name>.
func (c *Client) CallPath(ctx context.Context, path, method string, params any) (json.RawMessage, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	if params == nil {
		params = []any{}
	}

	req := request{
		JSONRPC: c.version,
		Method:  method,
		Params:  params,
		ID:      c.idCounter.Add(1),
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.authHeader != "" {
		httpReq.Header.Set("Authorization", c.authHeader)
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	// Body.Close error is intentionally ignored as it only fails if the
	// connection is already broken, and there's no recovery action.
	defer func() { _ = httpResp.Body.Close() }()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, classifyTransportError(err)
	}

	// Bitcoin Core answers RPC-level errors with non-2xx status codes but
	// still carries the JSON-RPC error object in the body, so the body is
	// parsed regardless of status.
	var resp response
	if err := json.Unmarshal(respBody, &resp); err != nil {
		if httpResp.StatusCode == http.StatusUnauthorized || httpResp.StatusCode == http.StatusForbidden {
			return nil, walleterr.Wrap(walleterr.ErrHostRejected, "HTTP %d from %s", httpResp.StatusCode, method)
		}
		return nil, walleterr.Wrap(walleterr.ErrMalformedResponse, "calling %s", method)
	}

	if resp.Error != nil {
		return nil, resp.Error
	}

	if resp.Result == nil || string(resp.Result) == "null" {
		// Some methods (e.g. monero close_wallet) legitimately return an
		// empty result object; null with no error is treated as empty.
		return json.RawMessage("{}"), nil
	}

	return resp.Result, nil
}

// CallInto performs a call and unmarshals the result into out.
func (c *Client) CallInto(ctx context.Context, out any, method string, params any) error {
	return c.CallPathInto(ctx, out, "", method, params)
}

// CallPathInto performs a path-scoped call and unmarshals the result into out.
func (c *Client) CallPathInto(ctx context.Context, out any, path, method string, params any) error {
	result, err := c.CallPath(ctx, path, method, params)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(result, out); err != nil {
		return walleterr.Wrap(walleterr.ErrMalformedResponse, "decoding %s result", method)
	}
	return nil
}

// classifyTransportError maps transport failures onto the connectivity
// sentinel so callers can apply the retry policy uniformly.
func classifyTransportError(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return walleterr.Wrap(walleterr.ErrConnectivity, "request timed out")
	}

	return &walleterr.WalletError{
		Code:     walleterr.ErrConnectivity.Code,
		Message:  walleterr.ErrConnectivity.Message,
		Cause:    err,
		ExitCode: walleterr.ErrConnectivity.ExitCode,
	}
}

// IsRPCError reports whether err is a JSON-RPC error from the remote
// host, returning it for inspection.
func IsRPCError(err error) (*Error, bool) {
	var rpcErr *Error
	if errors.As(err, &rpcErr) {
		return rpcErr, true
	}
	return nil, false
}
