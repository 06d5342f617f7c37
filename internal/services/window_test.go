package services

import (
	"math"
	"testing"
	"time"

	"fincoach/internal/core"
)

func tx(id, merchant, category string, amount float64, date time.Time) core.Transaction {
	return core.Transaction{
		ID:       id,
		Date:     date,
		Merchant: merchant,
		Category: category,
		Amount:   amount,
	}
}

func TestFilterWindow(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	t.Run("boundary is inclusive at exactly 30 days", func(t *testing.T) {
		onBoundary := tx("a", "Starbucks", "Coffee & Cafes", 5, now.Add(-30*24*time.Hour))
		justOutside := tx("b", "Starbucks", "Coffee & Cafes", 5, now.Add(-31*24*time.Hour))

		got, err := FilterWindow([]core.Transaction{onBoundary, justOutside}, 30, now)
		if err != nil {
			t.Fatalf("FilterWindow() error = %v", err)
		}
		if len(got) != 1 {
			t.Fatalf("FilterWindow() returned %d transactions, want 1", len(got))
		}
		if got[0].ID != "a" {
			t.Errorf("FilterWindow() kept %q, want boundary transaction %q", got[0].ID, "a")
		}
	})

	t.Run("future-dated transactions pass", func(t *testing.T) {
		future := tx("f", "Netflix", "Entertainment", 15.99, now.Add(24*time.Hour))
		got, err := FilterWindow([]core.Transaction{future}, 30, now)
		if err != nil {
			t.Fatalf("FilterWindow() error = %v", err)
		}
		if len(got) != 1 {
			t.Errorf("FilterWindow() dropped a future transaction")
		}
	})

	t.Run("non-positive window is rejected", func(t *testing.T) {
		for _, days := range []int{0, -5} {
			if _, err := FilterWindow(nil, days, now); err == nil {
				t.Errorf("FilterWindow(days=%d) error = nil, want error", days)
			}
		}
	})

	t.Run("empty input yields empty output", func(t *testing.T) {
		got, err := FilterWindow(nil, 30, now)
		if err != nil {
			t.Fatalf("FilterWindow() error = %v", err)
		}
		if len(got) != 0 {
			t.Errorf("FilterWindow() = %v, want empty", got)
		}
	})
}

func TestAggregateByCategory(t *testing.T) {
	now := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	txs := []core.Transaction{
		tx("1", "Starbucks", "Coffee & Cafes", 4.50, now),
		tx("2", "Blue Bottle", "Coffee & Cafes", 6.25, now),
		tx("3", "Whole Foods", "Groceries", 82.10, now),
		tx("4", "Chipotle", "Dining", 12.80, now),
	}

	totals := AggregateByCategory(txs)

	if got := totals["Coffee & Cafes"]; math.Abs(got-10.75) > 1e-9 {
		t.Errorf("Coffee & Cafes total = %v, want 10.75", got)
	}
	if _, ok := totals["Utilities"]; ok {
		t.Error("AggregateByCategory() materialized a zero-valued category")
	}

	// Sum of category totals must equal the overall total.
	var sum float64
	for _, v := range totals {
		sum += v
	}
	if diff := math.Abs(sum - Total(txs)); diff > 1e-9 {
		t.Errorf("category totals sum differs from overall total by %v", diff)
	}
}

func TestTotal(t *testing.T) {
	now := time.Now()
	txs := []core.Transaction{
		tx("1", "Uber", "Transportation", 18.40, now),
		tx("2", "Lyft", "Transportation", 11.60, now),
	}
	if got := Total(txs); math.Abs(got-30.0) > 1e-9 {
		t.Errorf("Total() = %v, want 30.0", got)
	}
	if got := Total(nil); got != 0 {
		t.Errorf("Total(nil) = %v, want 0", got)
	}
}
