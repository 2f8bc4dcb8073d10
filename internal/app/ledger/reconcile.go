package ledger

import (
	"encoding/json"
	"math"

	"github.com/adstudio/studio/internal/domain"
)

// ─── Reconciliation ─────────────────────────────────────────────────────────
// Two signals compete for the published balance: the store's aggregate
// function and a local sum over the transaction window. A well-formed
// aggregate always wins; otherwise the local sum is used when there is any
// history, and zero when there is none.

// Reconcile derives the published balance from the transaction window
// (newest first) and the raw aggregate value. It never fails: a malformed
// aggregate is treated as absent.
func Reconcile(txs []domain.CreditTransaction, aggregate any) domain.CreditBalance {
	earned, spent := Rollups(txs)
	out := domain.CreditBalance{
		TotalEarned:  earned,
		TotalSpent:   spent,
		Transactions: len(txs),
	}

	agg, aggOK := ValidAggregate(aggregate)
	switch {
	case aggOK:
		out.Balance = agg
		out.Source = domain.SourceAggregate
	case len(txs) > 0:
		out.Balance = max(earned-spent, 0)
		out.Source = domain.SourceTransactions
	default:
		out.Balance = 0
		out.Source = domain.SourceNone
	}
	return out
}

// Rollups sums completed purchases and completed usage. Magnitudes are used
// so that usage rows count the same whether stored negative or positive.
// Pending, failed and refund rows are excluded.
func Rollups(txs []domain.CreditTransaction) (earned, spent int64) {
	for _, tx := range txs {
		if !tx.Settled() {
			continue
		}
		switch tx.Type {
		case domain.TxPurchase:
			earned += abs(tx.Amount)
		case domain.TxUsage:
			spent += abs(tx.Amount)
		}
	}
	return earned, spent
}

// ValidAggregate reports whether v is a usable aggregate balance: a finite,
// non-negative number. Fractions are truncated. Strings, nil and every other
// type are rejected.
func ValidAggregate(v any) (int64, bool) {
	var f float64
	switch n := v.(type) {
	case int:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		if n < 0 {
			return 0, false
		}
		return n, true
	case uint32:
		f = float64(n)
	case uint64:
		f = float64(n)
	case float32:
		f = float64(n)
	case float64:
		f = n
	case json.Number:
		if i, err := n.Int64(); err == nil {
			if i < 0 {
				return 0, false
			}
			return i, true
		}
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 || f >= math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}

func abs(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}
