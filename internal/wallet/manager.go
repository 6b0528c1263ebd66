package wallet

import (
	"context"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/eigenix/walletd/internal/config"
	walleterr "github.com/eigenix/walletd/pkg/errors"
)

// Manager owns the wallet handles for all configured currencies. It
// reconciles each host to a loaded wallet, deduplicates concurrent
// reconciliation of the same identity, and hands out the resulting
// handles to downstream consumers.
type Manager struct {
	log         *config.Logger
	reconcilers map[Currency]Reconciler
	flight      singleflight.Group

	mu      sync.RWMutex
	handles map[Currency]*Handle
}

// NewManager creates a manager over the given reconcilers. Passing two
// reconcilers for the same currency is a programming error; the later
// one wins.
func NewManager(log *config.Logger, reconcilers ...Reconciler) *Manager {
	if log == nil {
		log = config.NullLogger()
	}
	m := &Manager{
		log:         log,
		reconcilers: make(map[Currency]Reconciler, len(reconcilers)),
		handles:     make(map[Currency]*Handle),
	}
	for _, r := range reconcilers {
		m.reconcilers[r.Identity().Currency] = r
	}
	return m
}

// InitError aggregates per-currency reconciliation failures. Currencies
// absent from the map initialized successfully.
type InitError struct {
	Failures map[Currency]error
}

// Error implements error.
func (e *InitError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for currency, err := range e.Failures {
		parts = append(parts, string(currency)+": "+err.Error())
	}
	sort.Strings(parts)
	return "wallet initialization failed: " + strings.Join(parts, "; ")
}

// Unwrap exposes the underlying failures to errors.Is/As.
func (e *InitError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, err := range e.Failures {
		errs = append(errs, err)
	}
	return errs
}

// Initialize reconciles every configured currency concurrently. A
// failure on one host does not stop the others; the combined result is
// an *InitError naming each failed currency. Initialize is safe to call
// repeatedly: handles whose sessions still answer are reused, the rest
// are reconciled again.
func (m *Manager) Initialize(ctx context.Context) error {
	var (
		g        errgroup.Group
		mu       sync.Mutex
		failures = make(map[Currency]error)
	)

	for currency := range m.reconcilers {
		g.Go(func() error {
			if _, err := m.Ensure(ctx, currency); err != nil {
				mu.Lock()
				failures[currency] = err
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	if len(failures) > 0 {
		return &InitError{Failures: failures}
	}
	return nil
}

// Ensure returns a ready handle for the currency, reconciling the host
// if the cached handle is missing or its session no longer answers.
// Concurrent calls for the same identity share a single reconciliation.
func (m *Manager) Ensure(ctx context.Context, currency Currency) (*Handle, error) {
	reconciler, ok := m.reconcilers[currency]
	if !ok {
		return nil, walleterr.Wrap(walleterr.ErrHandleUnavailable, "no reconciler configured for %s", currency)
	}

	if handle, ok := m.Handle(currency); ok && handle.Session.Ready(ctx) {
		return handle, nil
	}

	id := reconciler.Identity()
	result, err, shared := m.flight.Do(id.Key(), func() (any, error) {
		m.log.Info("reconciling %s", id)
		handle, err := reconciler.Reconcile(ctx)
		if err != nil {
			m.log.Error("reconciling %s: %v", id, err)
			return nil, err
		}
		m.log.Info("%s ready (%s)", id, handle.State)

		m.mu.Lock()
		m.handles[currency] = handle
		m.mu.Unlock()
		return handle, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		m.log.Debug("shared in-flight reconciliation of %s", id)
	}
	return result.(*Handle), nil
}

// Handle returns the cached handle for a currency, if one exists.
func (m *Manager) Handle(currency Currency) (*Handle, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	handle, ok := m.handles[currency]
	return handle, ok
}

// Handles returns all cached handles, ordered by currency for stable
// iteration.
func (m *Manager) Handles() []*Handle {
	m.mu.RLock()
	defer m.mu.RUnlock()

	handles := make([]*Handle, 0, len(m.handles))
	for _, h := range m.handles {
		handles = append(handles, h)
	}
	sort.Slice(handles, func(i, j int) bool {
		return handles[i].Identity.Currency < handles[j].Identity.Currency
	})
	return handles
}

// Currencies returns the currencies this manager is configured for,
// sorted, whether or not they currently have a handle.
func (m *Manager) Currencies() []Currency {
	currencies := make([]Currency, 0, len(m.reconcilers))
	for c := range m.reconcilers {
		currencies = append(currencies, c)
	}
	sort.Slice(currencies, func(i, j int) bool { return currencies[i] < currencies[j] })
	return currencies
}

// Invalidate drops the cached handle for a currency so the next Ensure
// reconciles from scratch. Used when a session goes stale.
func (m *Manager) Invalidate(currency Currency) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.handles, currency)
}
