package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/adstudio/studio/internal/domain"
)

var _ domain.DataStore = (*DB)(nil)

// ─── Schema ─────────────────────────────────────────────────────────────────

// Migrations returns the schema statements.
// Each string is a single SQL statement (SQLite executes one at a time).
func Migrations() []string {
	return []string{
		// Credit history, append-only
		`CREATE TABLE IF NOT EXISTS credit_transactions (
			id          TEXT PRIMARY KEY,
			user_id     TEXT NOT NULL,
			type        TEXT NOT NULL CHECK (type IN ('purchase','usage','refund')),
			amount      INTEGER NOT NULL,
			status      TEXT NOT NULL DEFAULT 'completed',
			description TEXT NOT NULL DEFAULT '',
			created_at  TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_credit_tx_user ON credit_transactions(user_id, created_at)`,

		// Generation records, never deduplicated
		`CREATE TABLE IF NOT EXISTS generations (
			id          TEXT PRIMARY KEY,
			user_id     TEXT NOT NULL,
			tool_id     TEXT NOT NULL,
			inputs      TEXT,
			result      TEXT,
			status      TEXT NOT NULL DEFAULT 'completed',
			created_at  TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_generations_user_tool ON generations(user_id, tool_id, created_at)`,

		`CREATE TABLE IF NOT EXISTS profiles (
			id           TEXT PRIMARY KEY,
			email        TEXT NOT NULL DEFAULT '',
			full_name    TEXT NOT NULL DEFAULT '',
			company_name TEXT NOT NULL DEFAULT '',
			plan         TEXT NOT NULL DEFAULT 'free',
			created_at   TEXT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS activity_log (
			id          TEXT PRIMARY KEY,
			user_id     TEXT NOT NULL,
			action      TEXT NOT NULL,
			tool_id     TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			created_at  TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_activity_user ON activity_log(user_id, created_at)`,
	}
}

// ─── Credit Transactions ────────────────────────────────────────────────────

// InsertTransaction appends a transaction. Empty id and timestamp are filled.
func (db *DB) InsertTransaction(ctx context.Context, tx domain.CreditTransaction) (string, error) {
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if tx.Status == "" {
		tx.Status = domain.TxCompleted
	}
	created := db.stamp()
	if !tx.CreatedAt.IsZero() {
		created = tx.CreatedAt.UTC().Format(timeLayout)
	}
	_, err := db.db.ExecContext(ctx, `
		INSERT INTO credit_transactions (id, user_id, type, amount, status, description, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, tx.ID, tx.UserID, string(tx.Type), tx.Amount, string(tx.Status), tx.Description, created)
	if err != nil {
		return "", fmt.Errorf("insert transaction: %w", err)
	}
	return tx.ID, nil
}

// RecentTransactions returns up to limit transactions, newest first.
func (db *DB) RecentTransactions(ctx context.Context, userID string, limit int) ([]domain.CreditTransaction, error) {
	if limit <= 0 {
		limit = domain.DefaultTransactionWindow
	}
	rows, err := db.db.QueryContext(ctx, `
		SELECT id, user_id, type, amount, status, description, created_at
		FROM credit_transactions WHERE user_id = ?
		ORDER BY created_at DESC, rowid DESC LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var out []domain.CreditTransaction
	for rows.Next() {
		var tx domain.CreditTransaction
		var typ, status, created string
		if err := rows.Scan(&tx.ID, &tx.UserID, &typ, &tx.Amount, &status, &tx.Description, &created); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		tx.Type = domain.TransactionType(typ)
		tx.Status = domain.TransactionStatus(status)
		tx.CreatedAt = parseTime(created)
		out = append(out, tx)
	}
	return out, rows.Err()
}

// AggregateBalance mirrors the hosted get_user_credits function: completed
// purchases minus completed usage over the full history, floored at zero.
// It returns nil for a user with no history.
func (db *DB) AggregateBalance(ctx context.Context, userID string) (any, error) {
	var count int64
	var balance sql.NullInt64
	err := db.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			SUM(CASE WHEN status = 'completed' AND type = 'purchase' THEN ABS(amount) ELSE 0 END) -
			SUM(CASE WHEN status = 'completed' AND type = 'usage' THEN ABS(amount) ELSE 0 END)
		FROM credit_transactions WHERE user_id = ?
	`, userID).Scan(&count, &balance)
	if err != nil {
		return nil, fmt.Errorf("aggregate balance: %w", err)
	}
	if count == 0 || !balance.Valid {
		return nil, nil
	}
	if balance.Int64 < 0 {
		return int64(0), nil
	}
	return balance.Int64, nil
}

// GrantCredits appends a completed purchase.
func (db *DB) GrantCredits(ctx context.Context, userID string, amount int64, description string) error {
	if amount <= 0 {
		return fmt.Errorf("grant amount must be positive, got %d", amount)
	}
	_, err := db.InsertTransaction(ctx, domain.CreditTransaction{
		UserID:      userID,
		Type:        domain.TxPurchase,
		Amount:      amount,
		Status:      domain.TxCompleted,
		Description: description,
	})
	return err
}

// ─── Profiles ───────────────────────────────────────────────────────────────

// UpsertProfile inserts or updates a profile.
func (db *DB) UpsertProfile(ctx context.Context, p domain.Profile) error {
	if p.Plan == "" {
		p.Plan = "free"
	}
	_, err := db.db.ExecContext(ctx, `
		INSERT INTO profiles (id, email, full_name, company_name, plan, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			email        = excluded.email,
			full_name    = excluded.full_name,
			company_name = excluded.company_name,
			plan         = excluded.plan
	`, p.UserID, p.Email, p.FullName, p.CompanyName, p.Plan, db.stamp())
	return err
}

// GetProfile returns the profile, or nil if none exists.
func (db *DB) GetProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	var p domain.Profile
	var created string
	err := db.db.QueryRowContext(ctx, `
		SELECT id, email, full_name, company_name, plan, created_at
		FROM profiles WHERE id = ?
	`, userID).Scan(&p.UserID, &p.Email, &p.FullName, &p.CompanyName, &p.Plan, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	p.CreatedAt = parseTime(created)
	return &p, nil
}

// ─── Activity Log ───────────────────────────────────────────────────────────

// LogActivity appends an activity row.
func (db *DB) LogActivity(ctx context.Context, a domain.Activity) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	_, err := db.db.ExecContext(ctx, `
		INSERT INTO activity_log (id, user_id, action, tool_id, description, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, a.ID, a.UserID, a.Action, string(a.ToolID), a.Description, db.stamp())
	if err != nil {
		return fmt.Errorf("log activity: %w", err)
	}
	return nil
}

// RecentActivity returns up to limit activity rows, newest first.
func (db *DB) RecentActivity(ctx context.Context, userID string, limit int) ([]domain.Activity, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.db.QueryContext(ctx, `
		SELECT id, user_id, action, tool_id, description, created_at
		FROM activity_log WHERE user_id = ?
		ORDER BY created_at DESC, rowid DESC LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query activity: %w", err)
	}
	defer rows.Close()

	var out []domain.Activity
	for rows.Next() {
		var a domain.Activity
		var tool, created string
		if err := rows.Scan(&a.ID, &a.UserID, &a.Action, &tool, &a.Description, &created); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		a.ToolID = domain.ToolID(tool)
		a.CreatedAt = parseTime(created)
		out = append(out, a)
	}
	return out, rows.Err()
}

// ─── Generation Records ─────────────────────────────────────────────────────

// InsertGeneration stores a new generation record and returns its id.
// Identical content produces a new row every time.
func (db *DB) InsertGeneration(ctx context.Context, rec domain.GenerationRecord) (string, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Status == "" {
		rec.Status = domain.GenerationCompleted
	}
	_, err := db.db.ExecContext(ctx, `
		INSERT INTO generations (id, user_id, tool_id, inputs, result, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.UserID, string(rec.ToolID), nullableJSON(rec.Inputs), nullableJSON(rec.Result), string(rec.Status), db.stamp())
	if err != nil {
		return "", fmt.Errorf("insert generation: %w", err)
	}
	return rec.ID, nil
}

// CountGenerations counts all of a user's records.
func (db *DB) CountGenerations(ctx context.Context, userID string) (int, error) {
	var n int
	err := db.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM generations WHERE user_id = ?`, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count generations: %w", err)
	}
	return n, nil
}

func nullableJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
