package wallet

import (
	"strings"

	walleterr "github.com/eigenix/walletd/pkg/errors"
)

// Outcome is the classified meaning of a wallet host RPC error. The
// hosts conflate "operation redundant" with "operation invalid" in
// their error text, so the reconcilers map a small fixed set of known
// substrings to benign outcomes and treat everything else as fatal.
type Outcome int

// Classified outcomes.
const (
	// OutcomeFatal is any host error with no benign interpretation.
	OutcomeFatal Outcome = iota
	// OutcomeAlreadyLoaded: the wallet is already loaded/open, the
	// requested operation was redundant.
	OutcomeAlreadyLoaded
	// OutcomeAlreadyExists: the wallet files already exist on the host,
	// creation/restore was redundant.
	OutcomeAlreadyExists
	// OutcomeNotFound: the host knows no wallet by that name.
	OutcomeNotFound
)

// String returns the outcome name.
func (o Outcome) String() string {
	switch o {
	case OutcomeAlreadyLoaded:
		return "already-loaded"
	case OutcomeAlreadyExists:
		return "already-exists"
	case OutcomeNotFound:
		return "not-found"
	default:
		return "fatal"
	}
}

// Benign reports whether the outcome means the wallet is (or can
// trivially be made) usable.
func (o Outcome) Benign() bool {
	return o == OutcomeAlreadyLoaded || o == OutcomeAlreadyExists
}

// classification is one entry of the central substring table. Matching
// is case-insensitive. Order matters: first match wins.
type classification struct {
	substring string
	outcome   Outcome
}

// classifications is the single, auditable table of known host error
// texts. Sources: Bitcoin Core createwallet/loadwallet/getwalletinfo and
// monero-wallet-rpc open_wallet/restore_deterministic_wallet.
var classifications = []classification{
	// Redundant load/open.
	{"already loaded", OutcomeAlreadyLoaded},
	{"already open", OutcomeAlreadyLoaded},
	{"duplicate -wallet filename", OutcomeAlreadyLoaded},

	// Redundant create/restore.
	{"already exists", OutcomeAlreadyExists},
	{"cannot create", OutcomeAlreadyExists},

	// Wallet unknown to the host.
	{"not loaded", OutcomeNotFound},
	{"not found", OutcomeNotFound},
	{"does not exist", OutcomeNotFound},
	{"failed to open wallet", OutcomeNotFound},
	{"no wallet file", OutcomeNotFound},
}

// Classify maps a wallet host error onto an Outcome. Connectivity
// failures are never classified benign or not-found; an unreachable
// host says nothing about wallet presence.
func Classify(err error) Outcome {
	if err == nil {
		return OutcomeFatal
	}
	if walleterr.Is(err, walleterr.ErrConnectivity) {
		return OutcomeFatal
	}

	msg := strings.ToLower(err.Error())
	for _, c := range classifications {
		if strings.Contains(msg, c.substring) {
			return c.outcome
		}
	}
	return OutcomeFatal
}
