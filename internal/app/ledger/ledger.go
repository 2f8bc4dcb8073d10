// Package ledger computes and republishes the user's spendable credit
// balance.
//
// The balance is never mutated in place. Every credit-affecting operation
// (paid generation, purchase, test grant) ends with Refresh, which fetches
// the transaction window and the aggregate in parallel and re-runs
// Reconcile. Concurrent paid operations are not serialized: the ledger
// trusts the backend's deduction as authoritative and reconciles after.
package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/adstudio/studio/internal/domain"
	"github.com/adstudio/studio/internal/infra/logging"
	"github.com/adstudio/studio/internal/infra/observability"
)

// Store is the part of the data store the ledger reads and grants through.
type Store interface {
	domain.TransactionSource
	domain.BalanceAggregator
	domain.CreditGranter
}

// Deductor records paid usage with the backend.
type Deductor interface {
	DeductCredits(ctx context.Context, userID string, amount int64, description string) error
}

// Checkout is the external payment collaborator: it returns a URL the UI
// redirects to.
type Checkout interface {
	CheckoutURL(ctx context.Context, userID, pack string) (string, error)
}

// Config wires a Ledger.
type Config struct {
	Store    Store
	Deductor Deductor
	Checkout Checkout // optional
	Identity domain.Identity
	Notifier domain.Notifier // optional
	Window   int
	Logger   *logrus.Entry
}

// Snapshot is the ledger's published state.
type Snapshot struct {
	Balance   domain.CreditBalance `json:"balance"`
	Refreshed bool                 `json:"refreshed"`
	Error     *string              `json:"error"`
}

// Ledger owns balance computation for the session user.
type Ledger struct {
	store    Store
	deductor Deductor
	checkout Checkout
	identity domain.Identity
	notifier domain.Notifier
	window   int
	log      *logrus.Entry
	now      func() time.Time

	mu        sync.RWMutex
	balance   domain.CreditBalance
	history   []domain.CreditTransaction
	refreshed bool
	lastErr   *string
	clients   map[chan domain.CreditBalance]struct{}
}

// New creates a Ledger.
func New(cfg Config) *Ledger {
	if cfg.Window <= 0 {
		cfg.Window = domain.DefaultTransactionWindow
	}
	return &Ledger{
		store:    cfg.Store,
		deductor: cfg.Deductor,
		checkout: cfg.Checkout,
		identity: cfg.Identity,
		notifier: cfg.Notifier,
		window:   cfg.Window,
		log:      logging.OrDiscard(cfg.Logger),
		now:      time.Now,
		clients:  make(map[chan domain.CreditBalance]struct{}),
	}
}

func (l *Ledger) userID() (string, error) {
	if l.identity == nil {
		return "", domain.ErrNotAuthenticated
	}
	id := l.identity.UserID()
	if id == "" {
		return "", domain.ErrNotAuthenticated
	}
	return id, nil
}

// ─── Refresh ────────────────────────────────────────────────────────────────

// Refresh fetches the transaction window and the aggregate concurrently and
// publishes the reconciled balance. A failure of one source degrades to the
// other; only when both fail is the previous balance kept and an error
// returned.
func (l *Ledger) Refresh(ctx context.Context) (domain.CreditBalance, error) {
	userID, err := l.userID()
	if err != nil {
		return l.Balance(), err
	}
	log := l.log.WithField("user_id", userID)

	var (
		txs       []domain.CreditTransaction
		aggregate any
		txErr     error
		aggErr    error
	)
	var g errgroup.Group
	g.Go(func() error {
		txs, txErr = l.store.RecentTransactions(ctx, userID, l.window)
		return nil
	})
	g.Go(func() error {
		aggregate, aggErr = l.store.AggregateBalance(ctx, userID)
		return nil
	})
	g.Wait()

	if txErr != nil && aggErr != nil {
		err := fmt.Errorf("refresh balance: %w", txErr)
		log.WithError(err).WithField("aggregate_error", aggErr.Error()).Warn("both balance sources failed")
		l.fail(err, "Could not refresh credits")
		return l.Balance(), err
	}
	if txErr != nil {
		log.WithError(txErr).Warn("transactions unavailable; using aggregate only")
		txs = nil
	}
	if aggErr != nil {
		log.WithError(aggErr).Warn("aggregate unavailable; using transactions only")
		aggregate = nil
	}
	if len(txs) > l.window {
		txs = txs[:l.window]
	}
	if aggregate != nil {
		if _, ok := ValidAggregate(aggregate); !ok {
			observability.LedgerAggregateRejected.Inc()
			log.WithField("aggregate", fmt.Sprintf("%v", aggregate)).Warn("aggregate rejected")
		}
	}

	bal := Reconcile(txs, aggregate)
	bal.ComputedAt = l.now()
	observability.LedgerReconciliations.WithLabelValues(string(bal.Source)).Inc()
	log.WithFields(logrus.Fields{
		"balance": bal.Balance,
		"source":  bal.Source,
	}).Debug("balance reconciled")

	if txErr != nil {
		l.publish(bal, l.History())
	} else {
		l.publish(bal, txs)
	}
	return bal, nil
}

func (l *Ledger) publish(bal domain.CreditBalance, history []domain.CreditTransaction) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balance = bal
	l.history = append([]domain.CreditTransaction(nil), history...)
	l.refreshed = true
	l.lastErr = nil
	for ch := range l.clients {
		select {
		case ch <- bal:
		default:
		}
	}
}

// fail records err as the ledger's local error and raises a notification.
func (l *Ledger) fail(err error, title string) {
	msg := err.Error()
	l.mu.Lock()
	l.lastErr = &msg
	l.mu.Unlock()
	if l.notifier != nil {
		l.notifier.Publish(domain.LevelError, title, msg)
	}
}

// ─── Credit-Affecting Operations ────────────────────────────────────────────

// Deduct records a paid usage with the backend, then refreshes. A rejected
// deduction is recorded on the ledger and notified; the caller keeps
// whatever artifact it already has.
func (l *Ledger) Deduct(ctx context.Context, amount int64, description string) error {
	userID, err := l.userID()
	if err != nil {
		return err
	}
	if err := l.deductor.DeductCredits(ctx, userID, amount, description); err != nil {
		observability.LedgerDeductions.WithLabelValues("failed").Inc()
		wrapped := fmt.Errorf("%w: %v", domain.ErrDeductionFailed, err)
		l.log.WithError(err).WithFields(logrus.Fields{"user_id": userID, "amount": amount}).Warn("deduction failed")
		l.fail(wrapped, "Credit deduction failed")
		return wrapped
	}
	observability.LedgerDeductions.WithLabelValues("ok").Inc()
	l.Refresh(ctx)
	return nil
}

// GrantTestCredits appends a completed purchase through the store's grant
// function, then refreshes.
func (l *Ledger) GrantTestCredits(ctx context.Context, amount int64) (domain.CreditBalance, error) {
	userID, err := l.userID()
	if err != nil {
		return l.Balance(), err
	}
	if amount <= 0 {
		return l.Balance(), fmt.Errorf("grant amount must be positive, got %d", amount)
	}
	if err := l.store.GrantCredits(ctx, userID, amount, "Test credits"); err != nil {
		err = fmt.Errorf("grant test credits: %w", err)
		l.fail(err, "Could not add test credits")
		return l.Balance(), err
	}
	bal, err := l.Refresh(ctx)
	if err == nil && l.notifier != nil {
		l.notifier.Publish(domain.LevelSuccess, "Test credits added", fmt.Sprintf("%d credits added", amount))
	}
	return bal, err
}

// StartCheckout asks the payment collaborator for a redirect URL.
func (l *Ledger) StartCheckout(ctx context.Context, pack string) (string, error) {
	userID, err := l.userID()
	if err != nil {
		return "", err
	}
	if l.checkout == nil {
		return "", fmt.Errorf("checkout is not configured")
	}
	u, err := l.checkout.CheckoutURL(ctx, userID, pack)
	if err != nil {
		err = fmt.Errorf("start checkout: %w", err)
		l.fail(err, "Checkout unavailable")
		return "", err
	}
	return u, nil
}

// CompletePurchase is called when the payment collaborator redirects back.
// The purchase transaction is written server-side; this only re-polls.
func (l *Ledger) CompletePurchase(ctx context.Context) (domain.CreditBalance, error) {
	bal, err := l.Refresh(ctx)
	if err == nil && l.notifier != nil {
		l.notifier.Publish(domain.LevelSuccess, "Purchase complete", fmt.Sprintf("Balance: %d credits", bal.Balance))
	}
	return bal, err
}

// ─── Queries ────────────────────────────────────────────────────────────────

// Balance returns the last published balance.
func (l *Ledger) Balance() domain.CreditBalance {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balance
}

// History returns the transaction window behind the last published
// balance, newest first. A refresh that could only read the aggregate keeps
// the previous window.
func (l *Ledger) History() []domain.CreditTransaction {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]domain.CreditTransaction(nil), l.history...)
}

// HasSufficient reports whether the last published balance covers cost.
// This is a fast-fail hint; the backend deduction is authoritative.
func (l *Ledger) HasSufficient(cost int64) bool {
	return l.Balance().Balance >= cost
}

// Snapshot returns the published state including the local error field.
func (l *Ledger) Snapshot() Snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	s := Snapshot{Balance: l.balance, Refreshed: l.refreshed}
	if l.lastErr != nil {
		msg := *l.lastErr
		s.Error = &msg
	}
	return s
}

// Subscribe registers for balance updates. Returns the channel and an
// unsubscribe func.
func (l *Ledger) Subscribe() (<-chan domain.CreditBalance, func()) {
	ch := make(chan domain.CreditBalance, 8)
	l.mu.Lock()
	l.clients[ch] = struct{}{}
	l.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.clients, ch)
			l.mu.Unlock()
			close(ch)
		})
	}
}
