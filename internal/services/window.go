package services

import (
	"fmt"
	"time"

	"fincoach/internal/core"
)

// DefaultWindowDays is the trailing window every standing aggregation uses.
const DefaultWindowDays = 30

// FilterWindow selects transactions dated within the trailing window of
// `days` days ending at `now`. The lower bound is inclusive and there is no
// upper bound, so future-dated transactions pass. Callers pass time.Now()
// so repeated calls across real time see a rolling window.
func FilterWindow(txs []core.Transaction, days int, now time.Time) ([]core.Transaction, error) {
	if days <= 0 {
		return nil, fmt.Errorf("window days must be positive, got %d", days)
	}

	cutoff := now.Add(-time.Duration(days) * 24 * time.Hour)
	out := make([]core.Transaction, 0, len(txs))
	for _, tx := range txs {
		if !tx.Date.Before(cutoff) {
			out = append(out, tx)
		}
	}
	return out, nil
}

// AggregateByCategory reduces a transaction set into per-category sums.
// The map is sparse: categories absent from the input never appear as
// zero-valued keys. Sums are accumulated in input order with no rounding;
// two-decimal rounding happens only at presentation time.
func AggregateByCategory(txs []core.Transaction) map[string]float64 {
	totals := make(map[string]float64)
	for _, tx := range txs {
		totals[tx.Category] += tx.Amount
	}
	return totals
}

// Total sums all transaction amounts in input order.
func Total(txs []core.Transaction) float64 {
	var sum float64
	for _, tx := range txs {
		sum += tx.Amount
	}
	return sum
}
