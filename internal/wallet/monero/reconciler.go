package monero

import (
	"context"

	"github.com/eigenix/walletd/internal/config"
	"github.com/eigenix/walletd/internal/wallet"
	walleterr "github.com/eigenix/walletd/pkg/errors"
)

// MaterialSource provides the wallet mnemonic when the daemon has no
// wallet file to open. In production this is the seed authority client.
type MaterialSource interface {
	Fetch(ctx context.Context, id wallet.Identity) (*wallet.SeedMaterial, error)
}

// Reconciler drives a monero-wallet-rpc daemon to having the expected
// wallet open. The daemon holds at most one wallet, so reconciliation
// may need to close a stale one first.
type Reconciler struct {
	client *Client
	source MaterialSource
	log    *config.Logger
}

// NewReconciler creates a Monero reconciler.
func NewReconciler(client *Client, source MaterialSource, log *config.Logger) *Reconciler {
	if log == nil {
		log = config.NullLogger()
	}
	return &Reconciler{client: client, source: source, log: log}
}

// Identity implements wallet.Reconciler.
func (r *Reconciler) Identity() wallet.Identity {
	return wallet.Identity{Currency: wallet.Monero, Name: r.client.WalletName()}
}

// Reconcile converges the daemon to the expected open wallet. A wallet
// the daemon already holds open is closed and reopened by name so that
// a stale foreign wallet cannot be mistaken for ours; a missing wallet
// file is restored from the authority mnemonic. Mnemonic material is
// fetched only on the restore path and wiped before returning.
func (r *Reconciler) Reconcile(ctx context.Context) (*wallet.Handle, error) {
	id := r.Identity()

	err := r.client.OpenWallet(ctx)
	if err == nil {
		return r.opened(ctx, wallet.StateLoadedExisting), nil
	}

	switch wallet.Classify(err) {
	case wallet.OutcomeAlreadyLoaded:
		// Some wallet is open and blocking ours. Close it and retry the
		// open once; a second refusal is real.
		r.log.Debug("%s blocked by an open wallet, closing it", id)
		if err := r.client.CloseWallet(ctx); err != nil {
			return nil, walleterr.Wrap(err, "closing stale wallet before opening %s", id)
		}
		if err := r.client.OpenWallet(ctx); err != nil {
			if wallet.Classify(err) != wallet.OutcomeNotFound {
				return nil, walleterr.Wrap(err, "opening %s", id)
			}
			return r.restore(ctx, id)
		}
		return r.opened(ctx, wallet.StateLoadedExisting), nil

	case wallet.OutcomeNotFound:
		return r.restore(ctx, id)

	default:
		return nil, walleterr.Wrap(err, "opening %s", id)
	}
}

// restore recreates the wallet file from the authority mnemonic. When
// the daemon reports the file already exists, the restore was redundant
// and a single open attempt settles it; any further refusal propagates.
func (r *Reconciler) restore(ctx context.Context, id wallet.Identity) (*wallet.Handle, error) {
	material, err := r.source.Fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	defer material.Destroy()

	if material.Seed == nil {
		return nil, walleterr.Wrap(walleterr.ErrMalformedResponse, "authority returned no mnemonic for %s", id)
	}

	r.log.Info("%s missing, restoring from mnemonic (restore height %d)", id, material.RestoreHeight)
	err = r.client.Restore(ctx, material.Seed, material.RestoreHeight)
	if err == nil {
		return r.opened(ctx, wallet.StateLoadedFromSeed), nil
	}

	if wallet.Classify(err) != wallet.OutcomeAlreadyExists {
		return nil, walleterr.Wrap(err, "restoring %s", id)
	}

	// The file appeared between probe and restore. One open attempt; no
	// looping back into restore.
	if err := r.client.OpenWallet(ctx); err != nil {
		return nil, walleterr.Wrap(err, "opening %s after redundant restore", id)
	}
	return r.opened(ctx, wallet.StateLoadedExisting), nil
}

// opened runs a best-effort refresh so balances are current soon after
// startup, then builds the handle.
func (r *Reconciler) opened(ctx context.Context, state wallet.State) *wallet.Handle {
	if err := r.client.Refresh(ctx); err != nil {
		r.log.Debug("%s refresh after open: %v", r.Identity(), err)
	}
	return &wallet.Handle{
		Identity: r.Identity(),
		State:    state,
		Session:  r.client,
	}
}
