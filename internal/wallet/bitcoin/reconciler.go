package bitcoin

import (
	"context"

	"github.com/eigenix/walletd/internal/config"
	"github.com/eigenix/walletd/internal/descriptor"
	"github.com/eigenix/walletd/internal/wallet"
	walleterr "github.com/eigenix/walletd/pkg/errors"
)

// MaterialSource provides wallet key material when the host has no
// wallet to load. In production this is the seed authority client.
type MaterialSource interface {
	Fetch(ctx context.Context, id wallet.Identity) (*wallet.SeedMaterial, error)
}

// Reconciler drives a Bitcoin Core host to a single loaded descriptor
// wallet. Each attempt probes the host fresh; no state is carried
// between attempts.
type Reconciler struct {
	client *Client
	source MaterialSource
	log    *config.Logger
	rescan bool
}

// NewReconciler creates a Bitcoin reconciler.
func NewReconciler(client *Client, source MaterialSource, log *config.Logger, rescan bool) *Reconciler {
	if log == nil {
		log = config.NullLogger()
	}
	return &Reconciler{client: client, source: source, log: log, rescan: rescan}
}

// Identity implements wallet.Reconciler.
func (r *Reconciler) Identity() wallet.Identity {
	return wallet.Identity{Currency: wallet.Bitcoin, Name: r.client.WalletName()}
}

// Reconcile probes the host and converges it to a loaded wallet:
// an already loaded wallet is reused, an unloaded one is loaded, and a
// missing one is created from authority material. Key material is
// fetched only on the missing-wallet path and wiped before returning.
func (r *Reconciler) Reconcile(ctx context.Context) (*wallet.Handle, error) {
	id := r.Identity()

	err := r.client.WalletInfo(ctx)
	if err == nil {
		r.log.Debug("%s already loaded", id)
		return r.handle(wallet.StateLoadedExisting), nil
	}

	switch wallet.Classify(err) {
	case wallet.OutcomeNotFound:
		// Not loaded, possibly not present. Fall through to creation,
		// which itself tolerates wallet files already existing on disk.
	case wallet.OutcomeAlreadyLoaded:
		return r.handle(wallet.StateLoadedExisting), nil
	default:
		return nil, walleterr.Wrap(err, "probing %s", id)
	}

	material, err := r.source.Fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	defer material.Destroy()

	if material.Descriptor == nil {
		return nil, walleterr.Wrap(walleterr.ErrMalformedResponse, "authority returned no descriptor for %s", id)
	}

	desc, err := descriptor.Normalize(material.Descriptor.String())
	if err != nil {
		return nil, err
	}

	return r.loadFromDescriptor(ctx, id, desc)
}

// loadFromDescriptor creates the wallet and imports its descriptor, or
// loads the existing wallet when the host reports the files already
// exist. Descriptors are only imported into a wallet this attempt
// created; an existing wallet already watches its keys.
func (r *Reconciler) loadFromDescriptor(ctx context.Context, id wallet.Identity, desc string) (*wallet.Handle, error) {
	err := r.client.CreateWallet(ctx)
	if err == nil {
		r.log.Info("%s created, importing descriptor", id)
		if err := r.client.ImportDescriptors(ctx, desc, r.rescan); err != nil {
			if !wallet.Classify(err).Benign() {
				return nil, walleterr.Wrap(err, "importing descriptor into %s", id)
			}
		}
		return r.handle(wallet.StateLoadedFromSeed), nil
	}

	switch wallet.Classify(err) {
	case wallet.OutcomeAlreadyLoaded:
		// Raced another load of the same wallet.
		return r.handle(wallet.StateLoadedExisting), nil
	case wallet.OutcomeAlreadyExists:
		r.log.Debug("%s exists on disk, loading", id)
	default:
		return nil, walleterr.Wrap(err, "creating %s", id)
	}

	if err := r.client.LoadWallet(ctx); err != nil {
		if wallet.Classify(err) != wallet.OutcomeAlreadyLoaded {
			return nil, walleterr.Wrap(err, "loading %s", id)
		}
	}
	return r.handle(wallet.StateLoadedExisting), nil
}

func (r *Reconciler) handle(state wallet.State) *wallet.Handle {
	return &wallet.Handle{
		Identity: r.Identity(),
		State:    state,
		Session:  r.client,
	}
}
