// Package authority implements the JSON-RPC client for the upstream
// seed authority, the service that owns the canonical swap wallet keys.
package authority

import (
	"context"
	"encoding/json"

	"github.com/eigenix/walletd/internal/rpc"
	"github.com/eigenix/walletd/internal/secmem"
	"github.com/eigenix/walletd/internal/wallet"
	walleterr "github.com/eigenix/walletd/pkg/errors"
)

// Client fetches wallet key material from the seed authority.
// Material is fetched at most once per reconciliation attempt, returned
// in locked memory, and never logged.
type Client struct {
	rpc   *rpc.Client
	retry rpc.RetryConfig
}

// New creates a client for the given authority endpoint.
func New(url string) *Client {
	return &Client{
		rpc:   rpc.NewClient(url, rpc.WithVersion("2.0"), rpc.WithRateLimit(5, 10)),
		retry: rpc.DefaultRetryConfig(),
	}
}

// NewWithRPC creates a client around an existing RPC client. Used in tests.
func NewWithRPC(rc *rpc.Client) *Client {
	return &Client{rpc: rc, retry: rpc.DefaultRetryConfig()}
}

// CheckConnection verifies the authority is reachable.
func (c *Client) CheckConnection(ctx context.Context) error {
	_, err := rpc.RetryWithConfig(ctx, c.retry, func() (json.RawMessage, error) {
		return c.rpc.Call(ctx, "get_swaps", map[string]any{})
	})
	return walleterr.Wrap(err, "checking seed authority connection")
}

// Fetch retrieves the key material for the given wallet identity.
// Connectivity failures are retried with bounded backoff; an authority
// rejection means the identity is not provisioned and is not retried.
func (c *Client) Fetch(ctx context.Context, id wallet.Identity) (*wallet.SeedMaterial, error) {
	switch id.Currency {
	case wallet.Bitcoin:
		return c.fetchBitcoinDescriptor(ctx)
	case wallet.Monero:
		return c.fetchMoneroSeed(ctx)
	default:
		return nil, walleterr.New("UNSUPPORTED_CURRENCY", "no authority method for currency "+string(id.Currency))
	}
}

// fetchBitcoinDescriptor retrieves the Bitcoin wallet descriptor.
// The authority may answer with a bare string or a {"descriptor": ...}
// object; both are accepted.
func (c *Client) fetchBitcoinDescriptor(ctx context.Context) (*wallet.SeedMaterial, error) {
	result, err := c.call(ctx, "bitcoin_seed")
	if err != nil {
		return nil, err
	}

	descriptor, ok := stringField(result, "descriptor")
	if !ok || descriptor == "" {
		return nil, walleterr.Wrap(walleterr.ErrMalformedResponse, "bitcoin_seed")
	}

	return &wallet.SeedMaterial{
		Currency:   wallet.Bitcoin,
		Descriptor: secmem.FromString(descriptor),
	}, nil
}

// fetchMoneroSeed retrieves the Monero mnemonic and restore height.
func (c *Client) fetchMoneroSeed(ctx context.Context) (*wallet.SeedMaterial, error) {
	result, err := c.call(ctx, "monero_seed")
	if err != nil {
		return nil, err
	}

	var payload struct {
		Seed          string `json:"seed"`
		RestoreHeight uint64 `json:"restore_height"`
	}
	if err := json.Unmarshal(result, &payload); err != nil || payload.Seed == "" {
		// The seed itself must never leak into the error message.
		return nil, walleterr.Wrap(walleterr.ErrMalformedResponse, "monero_seed")
	}

	return &wallet.SeedMaterial{
		Currency:      wallet.Monero,
		Seed:          secmem.FromString(payload.Seed),
		RestoreHeight: payload.RestoreHeight,
	}, nil
}

// call performs one authority method call with the retry policy applied.
func (c *Client) call(ctx context.Context, method string) (json.RawMessage, error) {
	result, err := rpc.RetryWithConfig(ctx, c.retry, func() (json.RawMessage, error) {
		return c.rpc.Call(ctx, method, map[string]any{})
	})
	if err == nil {
		return result, nil
	}

	// An explicit RPC-level rejection means the authority has no material
	// for us; retrying cannot change that without operator intervention.
	if _, ok := rpc.IsRPCError(err); ok {
		return nil, walleterr.Wrap(walleterr.ErrNotProvisioned, "%s", method)
	}
	return nil, walleterr.Wrap(err, "calling seed authority %s", method)
}

// stringField extracts a string that may arrive bare or wrapped in an
// object under the given key.
func stringField(raw json.RawMessage, key string) (string, bool) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, true
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return "", false
	}
	inner, ok := obj[key]
	if !ok {
		return "", false
	}
	if err := json.Unmarshal(inner, &s); err != nil {
		return "", false
	}
	return s, true
}
