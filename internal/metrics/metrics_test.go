package metrics

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eigenix/walletd/internal/wallet"
)

// fakeSession is a wallet.Session with a settable balance and error.
type fakeSession struct {
	mu      sync.Mutex
	balance float64
	err     error
}

func (s *fakeSession) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *fakeSession) Balance(context.Context) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balance, s.err
}

func (s *fakeSession) Address(context.Context) (string, error) { return "addr", nil }

func (s *fakeSession) Ready(ctx context.Context) bool {
	_, err := s.Balance(ctx)
	return err == nil
}

// fakeReconciler hands out a fixed session and counts invocations.
type fakeReconciler struct {
	currency wallet.Currency
	session  *fakeSession
	calls    atomic.Int32
}

func (r *fakeReconciler) Identity() wallet.Identity {
	return wallet.Identity{Currency: r.currency, Name: "eigenix"}
}

func (r *fakeReconciler) Reconcile(context.Context) (*wallet.Handle, error) {
	r.calls.Add(1)
	return &wallet.Handle{
		Identity: r.Identity(),
		State:    wallet.StateLoadedExisting,
		Session:  r.session,
	}, nil
}

func newTestCollector(t *testing.T, unhealthyAfter int, reconcilers ...wallet.Reconciler) (*Collector, *wallet.Manager) {
	t.Helper()
	manager := wallet.NewManager(nil, reconcilers...)
	require.NoError(t, manager.Initialize(context.Background()))
	return New(nil, manager, time.Minute, unhealthyAfter), manager
}

func TestCollector_Scrape(t *testing.T) {
	t.Parallel()

	btc := &fakeReconciler{currency: wallet.Bitcoin, session: &fakeSession{balance: 1.5}}
	xmr := &fakeReconciler{currency: wallet.Monero, session: &fakeSession{balance: 2.5}}
	c, _ := newTestCollector(t, 3, btc, xmr)

	c.Scrape(context.Background())

	assert.InDelta(t, 1.5, testutil.ToFloat64(c.balance.WithLabelValues("bitcoin")), 1e-9)
	assert.InDelta(t, 2.5, testutil.ToFloat64(c.balance.WithLabelValues("monero")), 1e-9)
	assert.InDelta(t, 1, testutil.ToFloat64(c.up.WithLabelValues("bitcoin")), 1e-9)
	assert.True(t, c.Healthy())

	statuses := c.Status()
	require.Len(t, statuses, 2)
	assert.Equal(t, wallet.Bitcoin, statuses[0].Currency)
	assert.True(t, statuses[0].Healthy)
	assert.False(t, statuses[0].UpdatedAt.IsZero())
}

func TestCollector_ScrapeFailureMarksDown(t *testing.T) {
	t.Parallel()

	session := &fakeSession{balance: 1.5, err: errors.New("connection refused")}
	btc := &fakeReconciler{currency: wallet.Bitcoin, session: session}
	c, _ := newTestCollector(t, 5, btc)

	c.Scrape(context.Background())

	assert.InDelta(t, 0, testutil.ToFloat64(c.up.WithLabelValues("bitcoin")), 1e-9)
	assert.InDelta(t, 1, testutil.ToFloat64(c.scrapeErrors.WithLabelValues("bitcoin")), 1e-9)
	assert.False(t, c.Healthy())
	assert.Equal(t, int32(1), btc.calls.Load(), "a single failure must not trigger reconciliation")
}

func TestCollector_RepeatedFailureTriggersReconcile(t *testing.T) {
	t.Parallel()

	session := &fakeSession{balance: 1.5}
	btc := &fakeReconciler{currency: wallet.Bitcoin, session: session}
	c, _ := newTestCollector(t, 2, btc)

	session.setErr(errors.New("connection refused"))
	c.Scrape(context.Background())
	assert.Equal(t, int32(1), btc.calls.Load())

	c.Scrape(context.Background())
	assert.Equal(t, int32(2), btc.calls.Load(), "crossing the threshold must reconcile")
	assert.InDelta(t, 1, testutil.ToFloat64(c.reconciles.WithLabelValues("bitcoin")), 1e-9)

	// Host recovers; the next scrape succeeds without further churn.
	session.setErr(nil)
	c.Scrape(context.Background())
	assert.True(t, c.Healthy())
	assert.Equal(t, int32(2), btc.calls.Load(), "a healthy wallet must not keep reconciling")
}

func TestCollector_RunStopsOnCancel(t *testing.T) {
	t.Parallel()

	btc := &fakeReconciler{currency: wallet.Bitcoin, session: &fakeSession{balance: 1}}
	c, _ := newTestCollector(t, 3, btc)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop on context cancellation")
	}

	assert.True(t, c.Healthy(), "the initial scrape runs before the ticker")
}
