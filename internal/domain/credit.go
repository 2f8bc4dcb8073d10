package domain

import "time"

// ─── Credit Types ───────────────────────────────────────────────────────────
// Transactions are written server-side and only read here. The spendable
// balance is always derived from them (or from the backend aggregate) and is
// never stored locally as ground truth.

// TransactionType represents the business reason for a credit movement.
type TransactionType string

const (
	TxPurchase TransactionType = "purchase"
	TxUsage    TransactionType = "usage"
	TxRefund   TransactionType = "refund"
)

// TransactionStatus is the only mutable field of a transaction, and it only
// transitions server-side.
type TransactionStatus string

const (
	TxCompleted TransactionStatus = "completed"
	TxPending   TransactionStatus = "pending"
	TxFailed    TransactionStatus = "failed"
)

// DefaultTransactionWindow bounds how many transactions (newest first) are
// considered when deriving the balance and rollups.
const DefaultTransactionWindow = 100

// CreditTransaction is a single immutable row of the user's credit history.
// Amount is signed; usage rows are usually negative.
type CreditTransaction struct {
	ID          string            `json:"id"`
	UserID      string            `json:"user_id,omitempty"`
	Type        TransactionType   `json:"type"`
	Amount      int64             `json:"amount"`
	Status      TransactionStatus `json:"status"`
	Description string            `json:"description,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}

// Settled reports whether the transaction counts toward balance and rollups.
func (t CreditTransaction) Settled() bool {
	return t.Status == TxCompleted
}

// BalanceSource names which signal produced a published balance.
type BalanceSource string

const (
	SourceAggregate    BalanceSource = "aggregate"
	SourceTransactions BalanceSource = "transactions"
	SourceNone         BalanceSource = "none"
)

// CreditBalance is the derived, published view of a user's credits.
type CreditBalance struct {
	Balance      int64         `json:"balance"`
	TotalEarned  int64         `json:"total_earned"`
	TotalSpent   int64         `json:"total_spent"`
	Source       BalanceSource `json:"source"`
	Transactions int           `json:"transactions"`
	ComputedAt   time.Time     `json:"computed_at"`
}
