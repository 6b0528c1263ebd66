// Package metrics exposes wallet balances and health as Prometheus
// metrics, scraping the wallet sessions on a fixed interval.
package metrics

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/eigenix/walletd/internal/config"
	"github.com/eigenix/walletd/internal/wallet"
)

// Collector polls every managed wallet for its balance and publishes
// the results as gauges. A wallet that keeps failing its scrape is
// handed back to the manager for a fresh reconciliation.
type Collector struct {
	log            *config.Logger
	manager        *wallet.Manager
	interval       time.Duration
	unhealthyAfter int

	registry     *prometheus.Registry
	balance      *prometheus.GaugeVec
	up           *prometheus.GaugeVec
	scrapeErrors *prometheus.CounterVec
	reconciles   *prometheus.CounterVec

	mu       sync.Mutex
	failures map[wallet.Currency]int
	statuses map[wallet.Currency]WalletStatus
}

// WalletStatus is the last observed state of one wallet, served by the
// REST API alongside the Prometheus metrics.
type WalletStatus struct {
	Currency  wallet.Currency `json:"currency"`
	State     string          `json:"state"`
	Balance   float64         `json:"balance"`
	Healthy   bool            `json:"healthy"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// New creates a collector over the manager's wallets. interval is the
// scrape period; unhealthyAfter is how many consecutive scrape failures
// a wallet survives before it is reconciled again.
func New(log *config.Logger, manager *wallet.Manager, interval time.Duration, unhealthyAfter int) *Collector {
	if log == nil {
		log = config.NullLogger()
	}
	if unhealthyAfter < 1 {
		unhealthyAfter = 1
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	c := &Collector{
		log:            log,
		manager:        manager,
		interval:       interval,
		unhealthyAfter: unhealthyAfter,
		registry:       registry,
		balance: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "walletd_wallet_balance",
			Help: "Confirmed wallet balance in whole coins.",
		}, []string{"currency"}),
		up: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "walletd_wallet_up",
			Help: "Whether the wallet answered its last balance scrape.",
		}, []string{"currency"}),
		scrapeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "walletd_wallet_scrape_errors_total",
			Help: "Total failed balance scrapes per wallet.",
		}, []string{"currency"}),
		reconciles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "walletd_wallet_reconciliations_total",
			Help: "Reconciliations triggered by scrape failures.",
		}, []string{"currency"}),
		failures: make(map[wallet.Currency]int),
		statuses: make(map[wallet.Currency]WalletStatus),
	}
	registry.MustRegister(c.balance, c.up, c.scrapeErrors, c.reconciles)
	return c
}

// Registry returns the Prometheus registry backing this collector, for
// mounting under /metrics.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Run scrapes immediately and then on every interval tick until the
// context is canceled.
func (c *Collector) Run(ctx context.Context) {
	c.Scrape(ctx)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Scrape(ctx)
		}
	}
}

// Scrape polls every managed wallet once.
func (c *Collector) Scrape(ctx context.Context) {
	for _, currency := range c.manager.Currencies() {
		c.scrapeWallet(ctx, currency)
	}
}

func (c *Collector) scrapeWallet(ctx context.Context, currency wallet.Currency) {
	label := string(currency)

	handle, ok := c.manager.Handle(currency)
	if !ok {
		c.recordFailure(ctx, currency)
		return
	}

	balance, err := handle.Session.Balance(ctx)
	if err != nil {
		c.log.Error("scraping %s balance: %v", handle.Identity, err)
		c.scrapeErrors.WithLabelValues(label).Inc()
		c.recordFailure(ctx, currency)
		return
	}

	c.balance.WithLabelValues(label).Set(balance)
	c.up.WithLabelValues(label).Set(1)

	c.mu.Lock()
	c.failures[currency] = 0
	c.statuses[currency] = WalletStatus{
		Currency:  currency,
		State:     handle.State.String(),
		Balance:   balance,
		Healthy:   true,
		UpdatedAt: time.Now().UTC(),
	}
	c.mu.Unlock()
}

// recordFailure marks the wallet down and, after unhealthyAfter
// consecutive failures, asks the manager for a fresh reconciliation.
func (c *Collector) recordFailure(ctx context.Context, currency wallet.Currency) {
	c.up.WithLabelValues(string(currency)).Set(0)

	c.mu.Lock()
	c.failures[currency]++
	count := c.failures[currency]
	status := c.statuses[currency]
	status.Currency = currency
	status.Healthy = false
	status.UpdatedAt = time.Now().UTC()
	c.statuses[currency] = status
	c.mu.Unlock()

	if count < c.unhealthyAfter {
		return
	}

	c.log.Info("%s unhealthy after %d failed scrapes, reconciling", currency, count)
	c.reconciles.WithLabelValues(string(currency)).Inc()
	c.manager.Invalidate(currency)

	if _, err := c.manager.Ensure(ctx, currency); err != nil {
		c.log.Error("reconciling %s after scrape failures: %v", currency, err)
		return
	}

	c.mu.Lock()
	c.failures[currency] = 0
	c.mu.Unlock()
}

// Status returns the last observed status of every managed wallet,
// ordered by currency. Wallets never scraped successfully report as
// unhealthy with a zero timestamp.
func (c *Collector) Status() []WalletStatus {
	c.mu.Lock()
	defer c.mu.Unlock()

	statuses := make([]WalletStatus, 0, len(c.statuses))
	for _, currency := range c.manager.Currencies() {
		status, ok := c.statuses[currency]
		if !ok {
			status = WalletStatus{Currency: currency, State: wallet.StateUnknown.String()}
		}
		statuses = append(statuses, status)
	}
	return statuses
}

// Healthy reports whether every managed wallet passed its last scrape.
func (c *Collector) Healthy() bool {
	for _, status := range c.Status() {
		if !status.Healthy {
			return false
		}
	}
	return true
}
