// Package wallet defines the shared wallet reconciliation model: wallet
// identities, reconciliation states, ready-wallet handles, and the
// classification of ambiguous wallet host errors.
package wallet

import (
	"context"
	"fmt"

	"github.com/eigenix/walletd/internal/secmem"
)

// Currency identifies which wallet host an identity belongs to.
type Currency string

// Supported currencies.
const (
	Bitcoin Currency = "bitcoin"
	Monero  Currency = "monero"
)

// Identity names one logical wallet on one host. The name is configured
// and stable across restarts; the wallet it denotes outlives this process.
type Identity struct {
	Currency Currency
	Name     string
}

// Key returns a stable map/single-flight key for the identity.
func (id Identity) Key() string {
	return string(id.Currency) + "/" + id.Name
}

func (id Identity) String() string {
	return fmt.Sprintf("%s wallet %q", id.Currency, id.Name)
}

// State is the outcome of one reconciliation attempt. It is recomputed
// on every attempt and never persisted; the wallet host is the source
// of truth.
type State int

// Reconciliation states.
const (
	StateUnknown State = iota
	StateNotPresent
	StatePresentNotLoaded
	StateLoadedExisting
	StateLoadedFromSeed
	StateFailed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateUnknown:
		return "unknown"
	case StateNotPresent:
		return "not-present"
	case StatePresentNotLoaded:
		return "present-not-loaded"
	case StateLoadedExisting:
		return "loaded-existing"
	case StateLoadedFromSeed:
		return "loaded-from-seed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether the state ends a reconciliation attempt.
func (s State) Terminal() bool {
	switch s {
	case StateLoadedExisting, StateLoadedFromSeed, StateFailed:
		return true
	default:
		return false
	}
}

// Loaded reports whether the state represents a usable wallet.
func (s State) Loaded() bool {
	return s == StateLoadedExisting || s == StateLoadedFromSeed
}

// Session is the read surface of a loaded wallet, consumed by the
// metrics collector and the REST API.
type Session interface {
	// Balance returns the spendable balance in whole coins.
	Balance(ctx context.Context) (float64, error)
	// Address returns a receive address for the wallet.
	Address(ctx context.Context) (string, error)
	// Ready reports whether the wallet is still loaded and answering.
	Ready(ctx context.Context) bool
}

// Handle is an opaque reference to a ready wallet on a specific host.
// It is created by a successful reconciliation, owned by the Manager,
// and shared read-only with downstream consumers.
type Handle struct {
	Identity Identity
	State    State // terminal state that produced the handle
	Session  Session
}

// Reconciler drives one wallet host to a single loaded wallet,
// regardless of starting state.
type Reconciler interface {
	Identity() Identity
	Reconcile(ctx context.Context) (*Handle, error)
}

// SeedMaterial is currency-tagged key material fetched from the seed
// authority. It is held only for the duration of one reconciliation
// attempt and must be destroyed immediately after use.
type SeedMaterial struct {
	Currency Currency

	// Descriptor is the Bitcoin output descriptor, possibly without its
	// checksum suffix. Set only for Bitcoin.
	Descriptor *secmem.SecureBytes

	// Seed is the Monero mnemonic. Set only for Monero.
	Seed *secmem.SecureBytes

	// RestoreHeight is the block height to rescan from when restoring a
	// Monero wallet. Zero means a full rescan.
	RestoreHeight uint64
}

// Destroy wipes all secret material. Safe to call multiple times.
func (m *SeedMaterial) Destroy() {
	if m == nil {
		return
	}
	if m.Descriptor != nil {
		m.Descriptor.Destroy()
	}
	if m.Seed != nil {
		m.Seed.Destroy()
	}
}
