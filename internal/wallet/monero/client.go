// Package monero reconciles a monero-wallet-rpc host to an open wallet.
package monero

import (
	"context"
	"strings"
	"time"

	"github.com/eigenix/walletd/internal/rpc"
	"github.com/eigenix/walletd/internal/secmem"
)

// piconero is the number of atomic units in one XMR.
const piconero = 1e12

// Client wraps the monero-wallet-rpc methods needed for reconciliation
// and read access. Unlike bitcoind, the RPC daemon owns at most one
// open wallet at a time, so every method here implicitly targets it.
type Client struct {
	rpc        *rpc.Client
	walletName string
	password   string
}

// NewClient creates a client for a monero-wallet-rpc endpoint. The
// /json_rpc suffix is appended when the configured URL omits it.
func NewClient(url, walletName, password string) *Client {
	if !strings.HasSuffix(url, "/json_rpc") {
		url = strings.TrimSuffix(url, "/") + "/json_rpc"
	}
	return &Client{
		rpc: rpc.NewClient(url,
			rpc.WithVersion("2.0"),
			// Restores with a deep rescan can take a long time.
			rpc.WithTimeout(5*time.Minute),
			rpc.WithRateLimit(10, 20),
		),
		walletName: walletName,
		password:   password,
	}
}

// NewClientWithRPC creates a client around an existing RPC client. Used in tests.
func NewClientWithRPC(rc *rpc.Client, walletName, password string) *Client {
	return &Client{rpc: rc, walletName: walletName, password: password}
}

// WalletName returns the wallet file name this client drives.
func (c *Client) WalletName() string {
	return c.walletName
}

// OpenWallet opens the wallet file by name.
func (c *Client) OpenWallet(ctx context.Context) error {
	return c.rpc.CallInto(ctx, nil, "open_wallet", map[string]any{
		"filename": c.walletName,
		"password": c.password,
	})
}

// CloseWallet closes whatever wallet the daemon currently has open.
func (c *Client) CloseWallet(ctx context.Context) error {
	return c.rpc.CallInto(ctx, nil, "close_wallet", map[string]any{})
}

// Restore recreates the wallet file from its mnemonic, scanning from
// restoreHeight. The daemon leaves the restored wallet open. The seed
// is read directly from locked memory and never copied into the error
// path.
func (c *Client) Restore(ctx context.Context, seed *secmem.SecureBytes, restoreHeight uint64) error {
	return c.rpc.CallInto(ctx, nil, "restore_deterministic_wallet", map[string]any{
		"filename":         c.walletName,
		"password":         c.password,
		"seed":             seed.String(),
		"restore_height":   restoreHeight,
		"language":         "English",
		"autosave_current": true,
	})
}

// Refresh syncs the open wallet with the daemon's chain tip.
func (c *Client) Refresh(ctx context.Context) error {
	return c.rpc.CallInto(ctx, nil, "refresh", map[string]any{})
}

// Height returns the wallet's current sync height.
func (c *Client) Height(ctx context.Context) (uint64, error) {
	var result struct {
		Height uint64 `json:"height"`
	}
	if err := c.rpc.CallInto(ctx, &result, "get_height", map[string]any{}); err != nil {
		return 0, err
	}
	return result.Height, nil
}

// Balance returns the wallet's total balance in XMR.
func (c *Client) Balance(ctx context.Context) (float64, error) {
	var result struct {
		Balance         uint64 `json:"balance"`
		UnlockedBalance uint64 `json:"unlocked_balance"`
	}
	if err := c.rpc.CallInto(ctx, &result, "get_balance", map[string]any{
		"account_index": 0,
	}); err != nil {
		return 0, err
	}
	return float64(result.Balance) / piconero, nil
}

// Address returns the wallet's primary address.
func (c *Client) Address(ctx context.Context) (string, error) {
	var result struct {
		Address string `json:"address"`
	}
	if err := c.rpc.CallInto(ctx, &result, "get_address", map[string]any{
		"account_index": 0,
	}); err != nil {
		return "", err
	}
	return result.Address, nil
}

// Ready implements wallet.Session: the daemon still has our wallet open
// when it answers height queries.
func (c *Client) Ready(ctx context.Context) bool {
	_, err := c.Height(ctx)
	return err == nil
}
