package bitcoin

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
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

// fakeNode emulates the slice of the Bitcoin Core wallet RPC surface
// the reconciler touches, tracking wallet file existence and load state
// separately the way the real node does.
type fakeNode struct {
	mu          sync.Mutex
	exists      bool
	loaded      bool
	createCalls int
	imported    []string
}

func (n *fakeNode) handler(t *testing.T) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Method string            `json:"method"`
			Params []json.RawMessage `json:"params"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		n.mu.Lock()
		defer n.mu.Unlock()

		fail := func(code int, msg string) {
			fmt.Fprintf(w, `{"result":null,"error":{"code":%d,"message":%q}}`, code, msg)
		}
		ok := func(result string) {
			fmt.Fprintf(w, `{"result":%s,"error":null}`, result)
		}

		switch req.Method {
		case "getwalletinfo":
			if !n.loaded {
				fail(-18, "Requested wallet does not exist or is not loaded")
				return
			}
			ok(`{"walletname":"eigenix"}`)

		case "createwallet":
			n.createCalls++
			if n.exists {
				fail(-4, "Wallet file verification failed. Failed to create database path. Database already exists.")
				return
			}
			n.exists = true
			n.loaded = true
			ok(`{"name":"eigenix","warning":""}`)

		case "loadwallet":
			if !n.exists {
				fail(-18, "Wallet file verification failed. Path does not exist.")
				return
			}
			if n.loaded {
				fail(-35, `Wallet "eigenix" is already loaded.`)
				return
			}
			n.loaded = true
			ok(`{"name":"eigenix","warning":""}`)

		case "importdescriptors":
			if !n.loaded {
				fail(-18, "Requested wallet does not exist or is not loaded")
				return
			}
			var reqs []struct {
				Desc string `json:"desc"`
			}
			require.NoError(t, json.Unmarshal(req.Params[0], &reqs))
			for _, ir := range reqs {
				n.imported = append(n.imported, ir.Desc)
			}
			ok(`[{"success":true,"warnings":[]}]`)

		case "getbalances":
			if !n.loaded {
				fail(-18, "Requested wallet does not exist or is not loaded")
				return
			}
			ok(`{"mine":{"trusted":1.5,"untrusted_pending":0.25,"immature":0}}`)

		default:
			fail(-32601, "Method not found")
		}
	}
}

// fakeSource is a MaterialSource returning a canned descriptor.
type fakeSource struct {
	mu         sync.Mutex
	calls      int
	descriptor string
	err        error
}

func (s *fakeSource) Fetch(_ context.Context, _ wallet.Identity) (*wallet.SeedMaterial, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &wallet.SeedMaterial{
		Currency:   wallet.Bitcoin,
		Descriptor: secmem.FromString(s.descriptor),
	}, nil
}

func (s *fakeSource) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func newTestReconciler(url string, source MaterialSource) *Reconciler {
	client := NewClientWithRPC(rpc.NewClient(url, rpc.WithTimeout(2*time.Second)), "eigenix")
	return NewReconciler(client, source, nil, false)
}

func TestReconcile_AlreadyLoaded(t *testing.T) {
	t.Parallel()

	node := &fakeNode{exists: true, loaded: true}
	srv := httptest.NewServer(node.handler(t))
	defer srv.Close()

	source := &fakeSource{descriptor: "raw(deadbeef)"}
	handle, err := newTestReconciler(srv.URL, source).Reconcile(context.Background())
	require.NoError(t, err)

	assert.Equal(t, wallet.StateLoadedExisting, handle.State)
	assert.Equal(t, 0, source.callCount(), "loaded wallet must not trigger a seed fetch")
	assert.Equal(t, 0, node.createCalls)
}

func TestReconcile_CreatesMissingWallet(t *testing.T) {
	t.Parallel()

	node := &fakeNode{}
	srv := httptest.NewServer(node.handler(t))
	defer srv.Close()

	source := &fakeSource{descriptor: "raw(deadbeef)"}
	handle, err := newTestReconciler(srv.URL, source).Reconcile(context.Background())
	require.NoError(t, err)

	assert.Equal(t, wallet.StateLoadedFromSeed, handle.State)
	assert.Equal(t, 1, source.callCount())
	assert.Equal(t, 1, node.createCalls)
	require.Len(t, node.imported, 1)
	// The checksum is appended before import.
	assert.Equal(t, "raw(deadbeef)#89f8spxm", node.imported[0])

	// The handle's session reads through the now-loaded wallet.
	balance, err := handle.Session.Balance(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 1.5, balance, 1e-9)
}

func TestReconcile_LoadsExistingUnloadedWallet(t *testing.T) {
	t.Parallel()

	node := &fakeNode{exists: true}
	srv := httptest.NewServer(node.handler(t))
	defer srv.Close()

	source := &fakeSource{descriptor: "raw(deadbeef)"}
	handle, err := newTestReconciler(srv.URL, source).Reconcile(context.Background())
	require.NoError(t, err)

	assert.Equal(t, wallet.StateLoadedExisting, handle.State)
	assert.Empty(t, node.imported, "existing wallet must not be re-imported into")
}

func TestReconcile_UnreachableHost(t *testing.T) {
	t.Parallel()

	source := &fakeSource{descriptor: "raw(deadbeef)"}
	_, err := newTestReconciler("http://192.0.2.1:1", source).Reconcile(context.Background())

	require.Error(t, err)
	assert.True(t, walleterr.Is(err, walleterr.ErrConnectivity))
	assert.Equal(t, 0, source.callCount(), "unreachable host must not trigger a seed fetch")
}

func TestReconcile_NotProvisioned(t *testing.T) {
	t.Parallel()

	node := &fakeNode{}
	srv := httptest.NewServer(node.handler(t))
	defer srv.Close()

	source := &fakeSource{err: walleterr.Wrap(walleterr.ErrNotProvisioned, "bitcoin_seed")}
	_, err := newTestReconciler(srv.URL, source).Reconcile(context.Background())

	require.Error(t, err)
	assert.True(t, walleterr.Is(err, walleterr.ErrNotProvisioned))
	assert.Equal(t, 0, node.createCalls)
}

func TestReconcile_RejectsBadChecksum(t *testing.T) {
	t.Parallel()

	node := &fakeNode{}
	srv := httptest.NewServer(node.handler(t))
	defer srv.Close()

	source := &fakeSource{descriptor: "raw(deadbeef)#00000000"}
	_, err := newTestReconciler(srv.URL, source).Reconcile(context.Background())

	require.Error(t, err)
	assert.True(t, walleterr.Is(err, walleterr.ErrInvalidDescriptor))
	assert.Equal(t, 0, node.createCalls, "invalid material must never reach the host")
}

func TestReconcile_Idempotent(t *testing.T) {
	t.Parallel()

	node := &fakeNode{}
	srv := httptest.NewServer(node.handler(t))
	defer srv.Close()

	source := &fakeSource{descriptor: "raw(deadbeef)"}
	r := newTestReconciler(srv.URL, source)

	first, err := r.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, wallet.StateLoadedFromSeed, first.State)

	second, err := r.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, wallet.StateLoadedExisting, second.State)

	assert.Equal(t, 1, node.createCalls, "repeat reconciliation must not re-create the wallet")
	assert.Equal(t, 1, source.callCount())
}

func TestImportDescriptors_HostRejection(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"result":[{"success":false,"error":{"message":"Descriptor is invalid"}}],"error":null}`))
	}))
	defer srv.Close()

	client := NewClientWithRPC(rpc.NewClient(srv.URL, rpc.WithTimeout(2*time.Second)), "eigenix")
	err := client.ImportDescriptors(context.Background(), "raw(deadbeef)#89f8spxm", false)

	require.Error(t, err)
	assert.True(t, walleterr.Is(err, walleterr.ErrHostRejected))
	assert.False(t, strings.Contains(err.Error(), "deadbeef"), "descriptor must not leak into errors")
}
