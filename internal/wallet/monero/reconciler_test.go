package monero

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eigenix/walletd/internal/rpc"
	"github.com/eigenix/walletd/internal/secmem"
	"github.com/eigenix/walletd/internal/wallet"
	walleterr "github.com/eigenix/walletd/pkg/errors"
)

// fakeDaemon emulates the slice of monero-wallet-rpc the reconciler
// touches. It holds at most one open wallet, like the real daemon.
type fakeDaemon struct {
	mu              sync.Mutex
	fileExists      bool
	openWallet      string
	restoreConflict bool // fail the next restore as if the file raced into existence
	rejectSeed      bool

	closeCalls   int
	restoreCalls int
	refreshCalls int
	lastSeed     string
	lastHeight   uint64
}

func (d *fakeDaemon) handler(t *testing.T) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Method string         `json:"method"`
			Params map[string]any `json:"params"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		d.mu.Lock()
		defer d.mu.Unlock()

		fail := func(msg string) {
			fmt.Fprintf(w, `{"jsonrpc":"2.0","id":"0","error":{"code":-1,"message":%q}}`, msg)
		}
		ok := func(result string) {
			fmt.Fprintf(w, `{"jsonrpc":"2.0","id":"0","result":%s}`, result)
		}

		switch req.Method {
		case "open_wallet":
			name, _ := req.Params["filename"].(string)
			if d.openWallet != "" && d.openWallet != name {
				fail("Wallet already open")
				return
			}
			if !d.fileExists {
				fail("Failed to open wallet")
				return
			}
			d.openWallet = name
			ok(`{}`)

		case "close_wallet":
			d.closeCalls++
			d.openWallet = ""
			ok(`{}`)

		case "restore_deterministic_wallet":
			d.restoreCalls++
			if d.rejectSeed {
				fail("Electrum-style word list failed verification")
				return
			}
			if d.fileExists || d.restoreConflict {
				d.fileExists = true
				fail("Cannot create wallet. Already exists.")
				return
			}
			seed, _ := req.Params["seed"].(string)
			height, _ := req.Params["restore_height"].(float64)
			d.lastSeed = seed
			d.lastHeight = uint64(height)
			d.fileExists = true
			name, _ := req.Params["filename"].(string)
			d.openWallet = name
			ok(`{"address":"44AfFq5kSiGBoZ","seed":"","info":"Wallet has been restored successfully."}`)

		case "refresh":
			d.refreshCalls++
			if d.openWallet == "" {
				fail("No wallet file")
				return
			}
			ok(`{"blocks_fetched":0,"received_money":false}`)

		case "get_balance":
			if d.openWallet == "" {
				fail("No wallet file")
				return
			}
			ok(`{"balance":2500000000000,"unlocked_balance":2500000000000}`)

		case "get_address":
			if d.openWallet == "" {
				fail("No wallet file")
				return
			}
			ok(`{"address":"44AfFq5kSiGBoZ"}`)

		case "get_height":
			if d.openWallet == "" {
				fail("No wallet file")
				return
			}
			ok(`{"height":300000}`)

		default:
			fail("Method not found")
		}
	}
}

// fakeSource is a MaterialSource returning a canned mnemonic.
type fakeSource struct {
	mu     sync.Mutex
	calls  int
	seed   string
	height uint64
	err    error
}

func (s *fakeSource) Fetch(_ context.Context, _ wallet.Identity) (*wallet.SeedMaterial, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &wallet.SeedMaterial{
		Currency:      wallet.Monero,
		Seed:          secmem.FromString(s.seed),
		RestoreHeight: s.height,
	}, nil
}

func (s *fakeSource) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func newTestReconciler(url string, source MaterialSource) *Reconciler {
	client := NewClientWithRPC(rpc.NewClient(url, rpc.WithVersion("2.0"), rpc.WithTimeout(2*time.Second)), "eigenix", "pw")
	return NewReconciler(client, source, nil)
}

func TestReconcile_OpensExistingWallet(t *testing.T) {
	t.Parallel()

	daemon := &fakeDaemon{fileExists: true}
	srv := httptest.NewServer(daemon.handler(t))
	defer srv.Close()

	source := &fakeSource{seed: "abbey abbey abbey"}
	handle, err := newTestReconciler(srv.URL, source).Reconcile(context.Background())
	require.NoError(t, err)

	assert.Equal(t, wallet.StateLoadedExisting, handle.State)
	assert.Equal(t, 0, source.callCount(), "existing wallet must not trigger a seed fetch")
	assert.Equal(t, 1, daemon.refreshCalls)
}

func TestReconcile_RestoresMissingWallet(t *testing.T) {
	t.Parallel()

	daemon := &fakeDaemon{}
	srv := httptest.NewServer(daemon.handler(t))
	defer srv.Close()

	source := &fakeSource{seed: "abbey abbey abbey", height: 123456}
	handle, err := newTestReconciler(srv.URL, source).Reconcile(context.Background())
	require.NoError(t, err)

	assert.Equal(t, wallet.StateLoadedFromSeed, handle.State)
	assert.Equal(t, 1, source.callCount())
	assert.Equal(t, 1, daemon.restoreCalls)
	assert.Equal(t, "abbey abbey abbey", daemon.lastSeed)
	assert.Equal(t, uint64(123456), daemon.lastHeight)

	balance, err := handle.Session.Balance(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 2.5, balance, 1e-9)

	address, err := handle.Session.Address(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "44AfFq5kSiGBoZ", address)
}

func TestReconcile_ClosesStaleWallet(t *testing.T) {
	t.Parallel()

	daemon := &fakeDaemon{fileExists: true, openWallet: "other"}
	srv := httptest.NewServer(daemon.handler(t))
	defer srv.Close()

	source := &fakeSource{seed: "abbey"}
	handle, err := newTestReconciler(srv.URL, source).Reconcile(context.Background())
	require.NoError(t, err)

	assert.Equal(t, wallet.StateLoadedExisting, handle.State)
	assert.Equal(t, 1, daemon.closeCalls)
	assert.Equal(t, 0, source.callCount())
}

func TestReconcile_StaleWalletAndMissingFile(t *testing.T) {
	t.Parallel()

	daemon := &fakeDaemon{openWallet: "other"}
	srv := httptest.NewServer(daemon.handler(t))
	defer srv.Close()

	source := &fakeSource{seed: "abbey", height: 7}
	handle, err := newTestReconciler(srv.URL, source).Reconcile(context.Background())
	require.NoError(t, err)

	assert.Equal(t, wallet.StateLoadedFromSeed, handle.State)
	assert.Equal(t, 1, daemon.closeCalls)
	assert.Equal(t, 1, daemon.restoreCalls)
}

func TestReconcile_RedundantRestoreOpensOnce(t *testing.T) {
	t.Parallel()

	daemon := &fakeDaemon{restoreConflict: true}
	srv := httptest.NewServer(daemon.handler(t))
	defer srv.Close()

	source := &fakeSource{seed: "abbey"}
	handle, err := newTestReconciler(srv.URL, source).Reconcile(context.Background())
	require.NoError(t, err)

	assert.Equal(t, wallet.StateLoadedExisting, handle.State)
	assert.Equal(t, 1, daemon.restoreCalls, "a redundant restore settles with one open, not another restore")
}

func TestReconcile_NotProvisioned(t *testing.T) {
	t.Parallel()

	daemon := &fakeDaemon{}
	srv := httptest.NewServer(daemon.handler(t))
	defer srv.Close()

	source := &fakeSource{err: walleterr.Wrap(walleterr.ErrNotProvisioned, "monero_seed")}
	_, err := newTestReconciler(srv.URL, source).Reconcile(context.Background())

	require.Error(t, err)
	assert.True(t, walleterr.Is(err, walleterr.ErrNotProvisioned))
	assert.Equal(t, 0, daemon.restoreCalls)
}

func TestReconcile_SeedNeverInErrors(t *testing.T) {
	t.Parallel()

	daemon := &fakeDaemon{rejectSeed: true}
	srv := httptest.NewServer(daemon.handler(t))
	defer srv.Close()

	source := &fakeSource{seed: "abbey abduct ability"}
	_, err := newTestReconciler(srv.URL, source).Reconcile(context.Background())

	require.Error(t, err)
	assert.NotContains(t, err.Error(), "abbey", "mnemonic must never appear in error text")
	assert.NotContains(t, err.Error(), "abduct")
}

func TestReconcile_UnreachableDaemon(t *testing.T) {
	t.Parallel()

	source := &fakeSource{seed: "abbey"}
	_, err := newTestReconciler("http://192.0.2.1:1", source).Reconcile(context.Background())

	require.Error(t, err)
	assert.True(t, walleterr.Is(err, walleterr.ErrConnectivity))
	assert.Equal(t, 0, source.callCount())
}
