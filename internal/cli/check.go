package cli

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/eigenix/walletd/internal/authority"
	"github.com/eigenix/walletd/internal/config"
	"github.com/eigenix/walletd/internal/wallet"
)

var checkTimeout time.Duration

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Reconcile all wallet hosts once and report their state",
	Long: `Run a single reconciliation pass against the configured hosts and
print the resulting wallet states as JSON. Exits non-zero when any
wallet could not be brought to a loaded state. Useful as a deployment
smoke test.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), checkTimeout)
		defer cancel()
		return runCheck(ctx)
	},
}

// checkReport is the JSON document printed by walletd check.
type checkReport struct {
	Wallets []checkWallet `json:"wallets"`
}

type checkWallet struct {
	Currency string `json:"currency"`
	Name     string `json:"name"`
	State    string `json:"state"`
	Error    string `json:"error,omitempty"`
}

func runCheck(ctx context.Context) error {
	if err := config.Validate(cfg); err != nil {
		return err
	}
	if err := ensureMoneroPassword(cfg); err != nil {
		return err
	}

	source := authority.New(cfg.Authority.RPCURL)
	if err := source.CheckConnection(ctx); err != nil {
		return err
	}

	manager, err := buildManager(cfg, source)
	if err != nil {
		return err
	}

	initErr := manager.Initialize(ctx)

	report := checkReport{}
	var failures map[wallet.Currency]error
	var ie *wallet.InitError
	if errors.As(initErr, &ie) {
		failures = ie.Failures
	}

	for _, currency := range manager.Currencies() {
		entry := checkWallet{Currency: string(currency)}
		if handle, ok := manager.Handle(currency); ok {
			entry.Name = handle.Identity.Name
			entry.State = handle.State.String()
		} else {
			entry.State = wallet.StateFailed.String()
			if err, ok := failures[currency]; ok {
				entry.Error = err.Error()
			}
		}
		report.Wallets = append(report.Wallets, entry)
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(report); err != nil {
		return err
	}
	return initErr
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	checkCmd.Flags().DurationVar(&checkTimeout, "timeout", 2*time.Minute, "overall check timeout")
	rootCmd.AddCommand(checkCmd)
}
