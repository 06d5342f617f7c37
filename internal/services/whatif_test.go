package services

import (
	"errors"
	"math"
	"testing"
	"time"

	"fincoach/internal/core"
)

func TestSimulateWhatIf(t *testing.T) {
	now := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	// 1000 spend in the window, so estimated income is 1300 and savings 300.
	txs := []core.Transaction{
		tx("1", "Whole Foods", "Groceries", 1000, now.AddDate(0, 0, -10)),
	}

	t.Run("salary increase adds ten percent of estimated income", func(t *testing.T) {
		sim, err := SimulateWhatIf(txs, nil, ScenarioChoice{Type: core.ScenarioSalaryIncrease}, now)
		if err != nil {
			t.Fatalf("SimulateWhatIf() error = %v", err)
		}
		if math.Abs(sim.Current.Income-1300) > 1e-9 {
			t.Errorf("Current.Income = %v, want 1300", sim.Current.Income)
		}
		if math.Abs(sim.Scenario.IncomeChange-130) > 1e-9 {
			t.Errorf("IncomeChange = %v, want 130", sim.Scenario.IncomeChange)
		}
		if sim.Scenario.TimeframeMonths != 12 {
			t.Errorf("TimeframeMonths = %d, want default 12", sim.Scenario.TimeframeMonths)
		}
		// Savings delta 130 over 12 months.
		if math.Abs(sim.TotalImpact-1560) > 1e-6 {
			t.Errorf("TotalImpact = %v, want 1560", sim.TotalImpact)
		}
	})

	t.Run("side hustle adds a flat 500", func(t *testing.T) {
		sim, err := SimulateWhatIf(txs, nil, ScenarioChoice{Type: core.ScenarioSideHustle, TimeframeMonths: 6}, now)
		if err != nil {
			t.Fatalf("SimulateWhatIf() error = %v", err)
		}
		if sim.Scenario.IncomeChange != 500 {
			t.Errorf("IncomeChange = %v, want 500", sim.Scenario.IncomeChange)
		}
		if math.Abs(sim.TotalImpact-3000) > 1e-6 {
			t.Errorf("TotalImpact = %v, want 3000 over 6 months", sim.TotalImpact)
		}
	})

	t.Run("rent reduction requires a positive rent", func(t *testing.T) {
		_, err := SimulateWhatIf(txs, nil, ScenarioChoice{Type: core.ScenarioRentReduction}, now)
		if !errors.Is(err, core.ErrInvalidAmount) {
			t.Errorf("SimulateWhatIf() error = %v, want ErrInvalidAmount", err)
		}

		sim, err := SimulateWhatIf(txs, nil, ScenarioChoice{Type: core.ScenarioRentReduction, Rent: 2000}, now)
		if err != nil {
			t.Fatalf("SimulateWhatIf() error = %v", err)
		}
		if math.Abs(sim.Scenario.ExpenseChange-(-400)) > 1e-9 {
			t.Errorf("ExpenseChange = %v, want -400", sim.Scenario.ExpenseChange)
		}
	})

	t.Run("subscription purge uses only active subscriptions", func(t *testing.T) {
		subs := []core.Subscription{
			{ID: "sub_Netflix", Merchant: "Netflix", Amount: 15.99, Active: true},
			{ID: "sub_Spotify", Merchant: "Spotify", Amount: 9.99, Active: false},
		}
		sim, err := SimulateWhatIf(txs, subs, ScenarioChoice{Type: core.ScenarioSubscriptionPurge}, now)
		if err != nil {
			t.Fatalf("SimulateWhatIf() error = %v", err)
		}
		if math.Abs(sim.Scenario.ExpenseChange-(-15.99)) > 1e-9 {
			t.Errorf("ExpenseChange = %v, want -15.99 (cancelled sub excluded)", sim.Scenario.ExpenseChange)
		}
	})

	t.Run("custom scenario rejects NaN and Inf", func(t *testing.T) {
		for _, bad := range []float64{math.NaN(), math.Inf(1)} {
			_, err := SimulateWhatIf(txs, nil, ScenarioChoice{Type: core.ScenarioCustom, CustomIncome: bad}, now)
			if !errors.Is(err, core.ErrInvalidAmount) {
				t.Errorf("SimulateWhatIf(custom income %v) error = %v, want ErrInvalidAmount", bad, err)
			}
		}
	})

	t.Run("unknown scenario type fails", func(t *testing.T) {
		if _, err := SimulateWhatIf(txs, nil, ScenarioChoice{Type: "lottery_win"}, now); err == nil {
			t.Error("SimulateWhatIf() error = nil, want error for unknown type")
		}
	})

	t.Run("negative timeframe fails", func(t *testing.T) {
		_, err := SimulateWhatIf(txs, nil, ScenarioChoice{Type: core.ScenarioSideHustle, TimeframeMonths: -1}, now)
		if !errors.Is(err, core.ErrInvalidMonths) {
			t.Errorf("SimulateWhatIf() error = %v, want ErrInvalidMonths", err)
		}
	})

	t.Run("projected savings follow the cash flow identity", func(t *testing.T) {
		sim, err := SimulateWhatIf(txs, nil, ScenarioChoice{
			Type:          core.ScenarioCustom,
			CustomIncome:  200,
			CustomExpense: -50,
		}, now)
		if err != nil {
			t.Fatalf("SimulateWhatIf() error = %v", err)
		}
		wantSavings := sim.Projected.Income - sim.Projected.Expenses
		if math.Abs(sim.Projected.Savings-wantSavings) > 1e-9 {
			t.Errorf("Projected.Savings = %v, want income-expenses = %v", sim.Projected.Savings, wantSavings)
		}
	})
}

func TestEstimateIncome(t *testing.T) {
	if got := EstimateIncome(1000); math.Abs(got-1300) > 1e-9 {
		t.Errorf("EstimateIncome(1000) = %v, want 1300", got)
	}
}
