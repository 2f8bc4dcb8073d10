package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adstudio/studio/internal/app/notify"
	"github.com/adstudio/studio/internal/app/session"
	"github.com/adstudio/studio/internal/domain"
)

var sampleTxs = []domain.CreditTransaction{
	{ID: "t3", Type: domain.TxUsage, Amount: -5, Status: domain.TxPending},
	{ID: "t2", Type: domain.TxUsage, Amount: -20, Status: domain.TxCompleted},
	{ID: "t1", Type: domain.TxPurchase, Amount: 50, Status: domain.TxCompleted},
}

// ─── Reconcile ──────────────────────────────────────────────────────────────

func TestReconcile(t *testing.T) {
	tests := []struct {
		name       string
		txs        []domain.CreditTransaction
		aggregate  any
		want       int64
		wantSource domain.BalanceSource
	}{
		{"transactions only, pending excluded", sampleTxs, nil, 30, domain.SourceTransactions},
		{"valid aggregate wins", sampleTxs, 12, 12, domain.SourceAggregate},
		{"aggregate as json number", sampleTxs, json.Number("12"), 12, domain.SourceAggregate},
		{"aggregate zero is valid", sampleTxs, 0.0, 0, domain.SourceAggregate},
		{"negative aggregate rejected", sampleTxs, -1, 30, domain.SourceTransactions},
		{"string aggregate rejected", sampleTxs, "12", 30, domain.SourceTransactions},
		{"NaN aggregate rejected", sampleTxs, math.NaN(), 30, domain.SourceTransactions},
		{"empty history, no aggregate", nil, nil, 0, domain.SourceNone},
		{"empty history, valid aggregate", nil, int64(40), 40, domain.SourceAggregate},
		{"empty history, negative aggregate", nil, -1, 0, domain.SourceNone},
		{"empty history, non-numeric aggregate", nil, map[string]any{"x": 1}, 0, domain.SourceNone},
		{"overspent clamps to zero", []domain.CreditTransaction{
			{Type: domain.TxPurchase, Amount: 5, Status: domain.TxCompleted},
			{Type: domain.TxUsage, Amount: -9, Status: domain.TxCompleted},
		}, nil, 0, domain.SourceTransactions},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Reconcile(tt.txs, tt.aggregate)
			assert.Equal(t, tt.want, got.Balance)
			assert.Equal(t, tt.wantSource, got.Source)
		})
	}
}

func TestRollups_CompletedOnly(t *testing.T) {
	txs := append([]domain.CreditTransaction{
		{Type: domain.TxPurchase, Amount: 100, Status: domain.TxFailed},
		{Type: domain.TxRefund, Amount: 7, Status: domain.TxCompleted},
		{Type: domain.TxUsage, Amount: 3, Status: domain.TxCompleted},
	}, sampleTxs...)
	earned, spent := Rollups(txs)
	assert.Equal(t, int64(50), earned)
	assert.Equal(t, int64(23), spent)
}

func TestValidAggregate(t *testing.T) {
	tests := []struct {
		in   any
		want int64
		ok   bool
	}{
		{int(3), 3, true},
		{int64(0), 0, true},
		{float64(7.9), 7, true},
		{json.Number("15"), 15, true},
		{json.Number("2.5"), 2, true},
		{json.Number("-4"), 0, false},
		{math.Inf(1), 0, false},
		{nil, 0, false},
		{true, 0, false},
		{"5", 0, false},
	}
	for _, tt := range tests {
		got, ok := ValidAggregate(tt.in)
		assert.Equal(t, tt.ok, ok, "ValidAggregate(%#v)", tt.in)
		assert.Equal(t, tt.want, got, "ValidAggregate(%#v)", tt.in)
	}
}

// ─── Ledger ─────────────────────────────────────────────────────────────────

type fakeStore struct {
	mu        sync.Mutex
	txs       []domain.CreditTransaction
	aggregate any
	txErr     error
	aggErr    error
	grantErr  error
	grants    []int64
}

func (f *fakeStore) RecentTransactions(_ context.Context, _ string, limit int) ([]domain.CreditTransaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.txErr != nil {
		return nil, f.txErr
	}
	return append([]domain.CreditTransaction(nil), f.txs...), nil
}

func (f *fakeStore) AggregateBalance(context.Context, string) (any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.aggregate, f.aggErr
}

func (f *fakeStore) GrantCredits(_ context.Context, _ string, amount int64, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.grantErr != nil {
		return f.grantErr
	}
	f.grants = append(f.grants, amount)
	f.txs = append([]domain.CreditTransaction{{Type: domain.TxPurchase, Amount: amount, Status: domain.TxCompleted}}, f.txs...)
	return nil
}

type fakeDeductor struct {
	err   error
	store *fakeStore
	calls int
}

func (d *fakeDeductor) DeductCredits(_ context.Context, _ string, amount int64, _ string) error {
	d.calls++
	if d.err != nil {
		return d.err
	}
	if d.store != nil {
		d.store.mu.Lock()
		d.store.txs = append([]domain.CreditTransaction{{Type: domain.TxUsage, Amount: -amount, Status: domain.TxCompleted}}, d.store.txs...)
		d.store.mu.Unlock()
	}
	return nil
}

func newTestLedger(store *fakeStore, ded *fakeDeductor, userID string) (*Ledger, *notify.Bus) {
	bus := notify.NewBus(notify.Config{})
	l := New(Config{
		Store:    store,
		Deductor: ded,
		Identity: session.New(userID),
		Notifier: bus,
		Checkout: LinkCheckout{BaseURL: "https://pay.example.com/b/abc"},
	})
	return l, bus
}

func TestRefresh_PublishesReconciledBalance(t *testing.T) {
	store := &fakeStore{txs: sampleTxs}
	l, _ := newTestLedger(store, &fakeDeductor{}, "u1")

	bal, err := l.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(30), bal.Balance)
	assert.Equal(t, int64(50), bal.TotalEarned)
	assert.Equal(t, int64(20), bal.TotalSpent)
	assert.False(t, bal.ComputedAt.IsZero())
	assert.True(t, l.Snapshot().Refreshed)

	store.aggregate = json.Number("12")
	bal, _ = l.Refresh(context.Background())
	assert.Equal(t, int64(12), bal.Balance)
}

func TestRefresh_DegradesToSurvivingSource(t *testing.T) {
	store := &fakeStore{txs: sampleTxs, aggErr: errors.New("rpc down")}
	l, _ := newTestLedger(store, &fakeDeductor{}, "u1")
	bal, err := l.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(30), bal.Balance)

	store.aggErr = nil
	store.txErr = errors.New("table down")
	store.aggregate = 9
	bal, err = l.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(9), bal.Balance)
}

func TestRefresh_BothFailKeepsPreviousAndNotifies(t *testing.T) {
	store := &fakeStore{txs: sampleTxs}
	l, bus := newTestLedger(store, &fakeDeductor{}, "u1")
	_, err := l.Refresh(context.Background())
	require.NoError(t, err)

	store.txErr = errors.New("table down")
	store.aggErr = errors.New("rpc down")
	bal, err := l.Refresh(context.Background())
	require.Error(t, err)
	assert.Equal(t, int64(30), bal.Balance)

	snap := l.Snapshot()
	require.NotNil(t, snap.Error)
	assert.Contains(t, *snap.Error, "table down")
	require.NotEmpty(t, bus.Recent(0))
	assert.Equal(t, domain.LevelError, bus.Recent(0)[0].Level)

	store.txErr, store.aggErr = nil, nil
	_, err = l.Refresh(context.Background())
	require.NoError(t, err)
	assert.Nil(t, l.Snapshot().Error, "successful refresh clears the error")
}

func TestHistory_TracksLastReadableWindow(t *testing.T) {
	store := &fakeStore{txs: sampleTxs}
	l, _ := newTestLedger(store, &fakeDeductor{}, "u1")
	assert.Empty(t, l.History())

	_, err := l.Refresh(context.Background())
	require.NoError(t, err)
	hist := l.History()
	require.Len(t, hist, 3)
	assert.Equal(t, "t3", hist[0].ID)

	hist[0].ID = "mutated"
	assert.Equal(t, "t3", l.History()[0].ID, "History returns a copy")

	store.txErr = errors.New("table down")
	store.aggregate = 4
	_, err = l.Refresh(context.Background())
	require.NoError(t, err)
	assert.Len(t, l.History(), 3, "aggregate-only refresh keeps the previous window")
}

func TestRefresh_RequiresUser(t *testing.T) {
	l, _ := newTestLedger(&fakeStore{}, &fakeDeductor{}, "")
	_, err := l.Refresh(context.Background())
	assert.ErrorIs(t, err, domain.ErrNotAuthenticated)
}

func TestDeduct_RefreshesAfterSuccess(t *testing.T) {
	store := &fakeStore{txs: sampleTxs}
	ded := &fakeDeductor{store: store}
	l, _ := newTestLedger(store, ded, "u1")

	require.NoError(t, l.Deduct(context.Background(), 5, "Content Planner"))
	assert.Equal(t, 1, ded.calls)
	assert.Equal(t, int64(25), l.Balance().Balance)
}

func TestDeduct_FailureRecordedAndNotified(t *testing.T) {
	store := &fakeStore{txs: sampleTxs}
	ded := &fakeDeductor{err: errors.New("insufficient credits")}
	l, bus := newTestLedger(store, ded, "u1")
	l.Refresh(context.Background())

	err := l.Deduct(context.Background(), 5, "Content Planner")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDeductionFailed)
	assert.NotNil(t, l.Snapshot().Error)
	assert.Equal(t, int64(30), l.Balance().Balance)
	assert.Equal(t, "Credit deduction failed", bus.Recent(0)[0].Title)
}

func TestGrantTestCredits(t *testing.T) {
	store := &fakeStore{txs: sampleTxs}
	l, bus := newTestLedger(store, &fakeDeductor{}, "u1")

	bal, err := l.GrantTestCredits(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, int64(130), bal.Balance)
	assert.Equal(t, []int64{100}, store.grants)
	assert.Equal(t, domain.LevelSuccess, bus.Recent(0)[0].Level)

	_, err = l.GrantTestCredits(context.Background(), -3)
	assert.Error(t, err)

	store.grantErr = errors.New("rpc missing")
	_, err = l.GrantTestCredits(context.Background(), 10)
	assert.Error(t, err)
	assert.NotNil(t, l.Snapshot().Error)
}

func TestHasSufficient(t *testing.T) {
	l, _ := newTestLedger(&fakeStore{txs: sampleTxs}, &fakeDeductor{}, "u1")
	assert.False(t, l.HasSufficient(1), "nothing published yet")
	l.Refresh(context.Background())
	assert.True(t, l.HasSufficient(30))
	assert.False(t, l.HasSufficient(31))
}

func TestCheckout(t *testing.T) {
	store := &fakeStore{}
	l, bus := newTestLedger(store, &fakeDeductor{}, "u1")

	u, err := l.StartCheckout(context.Background(), "starter")
	require.NoError(t, err)
	assert.Equal(t, "https://pay.example.com/b/abc?client_reference_id=u1&pack=starter", u)

	store.txs = []domain.CreditTransaction{{Type: domain.TxPurchase, Amount: 200, Status: domain.TxCompleted}}
	bal, err := l.CompletePurchase(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(200), bal.Balance)
	assert.Equal(t, "Purchase complete", bus.Recent(0)[0].Title)

	_, err = LinkCheckout{}.CheckoutURL(context.Background(), "u1", "")
	assert.Error(t, err)
}

func TestSubscribe(t *testing.T) {
	l, _ := newTestLedger(&fakeStore{txs: sampleTxs}, &fakeDeductor{}, "u1")
	ch, unsub := l.Subscribe()
	defer unsub()

	l.Refresh(context.Background())
	got := <-ch
	assert.Equal(t, int64(30), got.Balance)
}
