// Package bitcoin reconciles a Bitcoin Core descriptor wallet to a
// loaded state.
package bitcoin

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/eigenix/walletd/internal/rpc"
	walleterr "github.com/eigenix/walletd/pkg/errors"
)

// Client wraps the Bitcoin Core wallet RPC surface needed for
// reconciliation and read access. Wallet-scoped methods go through the
// /wallet/<name> endpoint.
type Client struct {
	rpc        *rpc.Client
	walletName string
}

// NewClient creates a client for a Bitcoin Core node, authenticating
// with the node's cookie file. Only a readable path to the cookie is
// needed; its contents are passed through opaquely.
func NewClient(url, cookiePath, walletName string) (*Client, error) {
	cookie, err := os.ReadFile(cookiePath) // #nosec G304 -- cookie path is from validated config
	if err != nil {
		return nil, walleterr.WithSuggestion(
			walleterr.Wrap(err, "reading bitcoind cookie file"),
			fmt.Sprintf("check that %s exists and is readable by this process", cookiePath),
		)
	}

	return &Client{
		rpc: rpc.NewClient(url,
			rpc.WithVersion("1.0"),
			rpc.WithBasicAuth(string(cookie)),
			rpc.WithTimeout(time.Minute),
			rpc.WithRateLimit(10, 20),
		),
		walletName: walletName,
	}, nil
}

// NewClientWithRPC creates a client around an existing RPC client. Used in tests.
func NewClientWithRPC(rc *rpc.Client, walletName string) *Client {
	return &Client{rpc: rc, walletName: walletName}
}

// WalletName returns the logical wallet name this client drives.
func (c *Client) WalletName() string {
	return c.walletName
}

// walletPath is the endpoint suffix for wallet-scoped RPC methods.
func (c *Client) walletPath() string {
	return "/wallet/" + c.walletName
}

// WalletInfo queries getwalletinfo for the expected wallet. An error
// whose text indicates the wallet is unknown or unloaded classifies as
// not-found; a transport failure classifies as connectivity.
func (c *Client) WalletInfo(ctx context.Context) error {
	var info struct {
		WalletName string `json:"walletname"`
	}
	return c.rpc.CallPathInto(ctx, &info, c.walletPath(), "getwalletinfo", []any{})
}

// CreateWallet creates a descriptor wallet with private keys enabled
// and load_on_startup set, matching what importdescriptors requires.
func (c *Client) CreateWallet(ctx context.Context) error {
	params := []any{
		c.walletName,
		false, // disable_private_keys
		false, // blank
		"",    // passphrase
		false, // avoid_reuse
		true,  // descriptors
		true,  // load_on_startup
	}
	return c.rpc.CallInto(ctx, nil, "createwallet", params)
}

// LoadWallet loads an existing wallet by name.
func (c *Client) LoadWallet(ctx context.Context) error {
	return c.rpc.CallInto(ctx, nil, "loadwallet", []any{c.walletName})
}

// importRequest is one entry of an importdescriptors call.
type importRequest struct {
	Desc      string `json:"desc"`
	Timestamp any    `json:"timestamp"` // "now" or a unix timestamp
	Active    bool   `json:"active"`
}

// importResult is one entry of an importdescriptors response.
type importResult struct {
	Success  bool     `json:"success"`
	Warnings []string `json:"warnings"`
	Error    *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// ImportDescriptors imports the given checksummed descriptor into the
// wallet. With rescan set the host scans the chain from genesis;
// otherwise only new transactions are tracked.
func (c *Client) ImportDescriptors(ctx context.Context, desc string, rescan bool) error {
	var timestamp any = "now"
	if rescan {
		timestamp = 0
	}

	reqs := []importRequest{{
		Desc:      desc,
		Timestamp: timestamp,
		Active:    true,
	}}

	var results []importResult
	if err := c.rpc.CallPathInto(ctx, &results, c.walletPath(), "importdescriptors", []any{reqs}); err != nil {
		return err
	}

	for _, res := range results {
		if res.Success {
			continue
		}
		msg := "import failed"
		if res.Error != nil {
			msg = res.Error.Message
		}
		// The descriptor itself is deliberately omitted from the error.
		return walleterr.Wrap(walleterr.ErrHostRejected, "importdescriptors: %s", msg)
	}
	return nil
}

// Balances returns the wallet's confirmed spendable balance in BTC.
func (c *Client) Balances(ctx context.Context) (float64, error) {
	var result struct {
		Mine struct {
			Trusted          float64 `json:"trusted"`
			UntrustedPending float64 `json:"untrusted_pending"`
			Immature         float64 `json:"immature"`
		} `json:"mine"`
	}
	if err := c.rpc.CallPathInto(ctx, &result, c.walletPath(), "getbalances", []any{}); err != nil {
		return 0, err
	}
	return result.Mine.Trusted, nil
}

// NewAddress returns a fresh receive address from the wallet.
func (c *Client) NewAddress(ctx context.Context) (string, error) {
	var address string
	if err := c.rpc.CallPathInto(ctx, &address, c.walletPath(), "getnewaddress", []any{}); err != nil {
		return "", err
	}
	return address, nil
}

// Balance implements wallet.Session.
func (c *Client) Balance(ctx context.Context) (float64, error) {
	return c.Balances(ctx)
}

// Address implements wallet.Session.
func (c *Client) Address(ctx context.Context) (string, error) {
	return c.NewAddress(ctx)
}

// Ready implements wallet.Session: the wallet is ready when it still
// answers wallet-scoped queries.
func (c *Client) Ready(ctx context.Context) bool {
	_, err := c.Balances(ctx)
	return err == nil
}
