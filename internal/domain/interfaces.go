package domain

import "context"

// ─── Collaborator Interfaces ────────────────────────────────────────────────
// These interfaces define boundaries between layers.
// Infrastructure implements them; application layer depends on them.

// TransactionSource reads the user's credit history, newest first.
type TransactionSource interface {
	RecentTransactions(ctx context.Context, userID string, limit int) ([]CreditTransaction, error)
}

// BalanceAggregator invokes the server-side balance function. The value is
// returned exactly as decoded from the store (number, string, null, ...);
// validating it is the ledger's job.
type BalanceAggregator interface {
	AggregateBalance(ctx context.Context, userID string) (any, error)
}

// CreditGranter appends a completed purchase (used for test-credit grants).
type CreditGranter interface {
	GrantCredits(ctx context.Context, userID string, amount int64, description string) error
}

// ProfileStore reads the user profile record.
type ProfileStore interface {
	GetProfile(ctx context.Context, userID string) (*Profile, error)
}

// ActivityLog appends to and reads the user's activity log.
type ActivityLog interface {
	LogActivity(ctx context.Context, a Activity) error
	RecentActivity(ctx context.Context, userID string, limit int) ([]Activity, error)
}

// GenerationCounter counts persisted generation records for a user.
type GenerationCounter interface {
	CountGenerations(ctx context.Context, userID string) (int, error)
}

// DataStore is the full relational data-store contract.
type DataStore interface {
	TransactionSource
	BalanceAggregator
	CreditGranter
	ProfileStore
	ActivityLog
	GenerationCounter
}

// Notifier publishes UI notifications.
type Notifier interface {
	Publish(level NotificationLevel, title, message string) (Notification, bool)
}

// Identity exposes the authenticated user, if any.
type Identity interface {
	UserID() string
}
