package cli

import (
	"context"
	"fmt"
	"net"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/eigenix/walletd/internal/api"
	"github.com/eigenix/walletd/internal/authority"
	"github.com/eigenix/walletd/internal/config"
	"github.com/eigenix/walletd/internal/metrics"
	"github.com/eigenix/walletd/internal/wallet"
	"github.com/eigenix/walletd/internal/wallet/bitcoin"
	"github.com/eigenix/walletd/internal/wallet/monero"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the wallet reconciliation daemon",
	Long: `Reconcile the configured Bitcoin and Monero wallet hosts to a loaded
wallet, then serve balances, health, and Prometheus metrics over HTTP
until interrupted.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return runServe(ctx)
	},
}

func runServe(ctx context.Context) error {
	if err := config.Validate(cfg); err != nil {
		return err
	}
	if err := ensureMoneroPassword(cfg); err != nil {
		return err
	}

	source := authority.New(cfg.Authority.RPCURL)
	logger.Info("checking seed authority at %s", cfg.Authority.RPCURL)
	if err := source.CheckConnection(ctx); err != nil {
		return err
	}

	manager, err := buildManager(cfg, source)
	if err != nil {
		return err
	}

	// A host that is down at startup should not kill the daemon; the
	// collector keeps retrying it and /api/wallets/health reports it.
	if err := manager.Initialize(ctx); err != nil {
		logger.Error("initial reconciliation incomplete: %v", err)
	}

	interval := time.Duration(cfg.Collector.IntervalSeconds) * time.Second
	collector := metrics.New(logger, manager, interval, cfg.Collector.UnhealthyAfter)

	addr := net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port))
	server := api.New(logger, collector, addr)

	var g errgroup.Group
	g.Go(func() error {
		collector.Run(ctx)
		return nil
	})
	g.Go(server.ListenAndServe)
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// buildManager wires the per-currency clients and reconcilers.
func buildManager(cfg *config.Config, source *authority.Client) (*wallet.Manager, error) {
	btcClient, err := bitcoin.NewClient(cfg.Bitcoin.RPCURL, cfg.Bitcoin.CookiePath, cfg.Bitcoin.WalletName)
	if err != nil {
		return nil, err
	}
	xmrClient := monero.NewClient(cfg.Monero.RPCURL, cfg.Monero.WalletName, cfg.Monero.Password)

	return wallet.NewManager(logger,
		bitcoin.NewReconciler(btcClient, source, logger, cfg.Bitcoin.Rescan),
		monero.NewReconciler(xmrClient, source, logger),
	), nil
}

// ensureMoneroPassword prompts for the wallet password when it is
// neither configured nor provided via environment. Non-interactive runs
// proceed with an empty password.
func ensureMoneroPassword(cfg *config.Config) error {
	if cfg.Monero.Password != "" || !stdinIsTerminal() {
		return nil
	}
	password, err := promptPassword(fmt.Sprintf("Password for monero wallet %q (empty for none): ", cfg.Monero.WalletName))
	if err != nil {
		return err
	}
	cfg.Monero.Password = string(password)
	zeroBytes(password)
	return nil
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(serveCmd)
}
