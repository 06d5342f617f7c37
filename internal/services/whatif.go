package services

import (
	"fmt"
	"math"
	"time"

	"fincoach/internal/core"
)

// incomeFactor estimates monthly income as a multiple of observed spending.
// No real income data exists anywhere in the system; this heuristic proxy
// is the only income figure the simulator ever sees.
const incomeFactor = 1.3

const defaultTimeframeMonths = 12

// EstimateIncome turns an observed 30-day spend into the income proxy used
// across projections.
func EstimateIncome(monthlySpend float64) float64 {
	return monthlySpend * incomeFactor
}

// ScenarioChoice is the user's raw scenario selection before resolution.
// Rent is required for the rent-reduction scenario; the custom fields apply
// only to the custom scenario.
type ScenarioChoice struct {
	Type            core.ScenarioType `json:"type"`
	Rent            float64           `json:"rent,omitempty"`
	CustomIncome    float64           `json:"customIncome,omitempty"`
	CustomExpense   float64           `json:"customExpense,omitempty"`
	TimeframeMonths int               `json:"timeframeMonths,omitempty"`
}

// SimulateWhatIf resolves a scenario choice against the trailing 30-day
// aggregates and the active subscription list, and projects the resulting
// monthly cash flow. The narrative field is left empty for the caller to
// merge gateway advice into.
func SimulateWhatIf(txs []core.Transaction, subs []core.Subscription, choice ScenarioChoice, now time.Time) (core.WhatIfSimulation, error) {
	window, err := FilterWindow(txs, DefaultWindowDays, now)
	if err != nil {
		return core.WhatIfSimulation{}, err
	}

	spending := Total(window)
	income := spending * incomeFactor

	scenario, err := resolveScenario(choice, income, subs)
	if err != nil {
		return core.WhatIfSimulation{}, err
	}

	current := core.CashFlow{
		Income:   income,
		Expenses: spending,
		Savings:  income - spending,
	}
	projected := core.CashFlow{
		Income:   income + scenario.IncomeChange,
		Expenses: spending + scenario.ExpenseChange,
	}
	projected.Savings = projected.Income - projected.Expenses

	return core.WhatIfSimulation{
		Scenario:    scenario,
		Current:     current,
		Projected:   projected,
		TotalImpact: (projected.Savings - current.Savings) * float64(scenario.TimeframeMonths),
		Timestamp:   now,
	}, nil
}

func resolveScenario(choice ScenarioChoice, estimatedIncome float64, subs []core.Subscription) (core.WhatIfScenario, error) {
	timeframe := choice.TimeframeMonths
	if timeframe == 0 {
		timeframe = defaultTimeframeMonths
	}
	if timeframe < 0 {
		return core.WhatIfScenario{}, core.ErrInvalidMonths
	}

	switch choice.Type {
	case core.ScenarioSalaryIncrease:
		return core.WhatIfScenario{
			Type:            choice.Type,
			Description:     "10% raise",
			IncomeChange:    estimatedIncome * 0.1,
			TimeframeMonths: timeframe,
		}, nil

	case core.ScenarioSideHustle:
		return core.WhatIfScenario{
			Type:            choice.Type,
			Description:     "$500/month side income",
			IncomeChange:    500,
			TimeframeMonths: timeframe,
		}, nil

	case core.ScenarioRentReduction:
		if choice.Rent <= 0 || math.IsNaN(choice.Rent) || math.IsInf(choice.Rent, 0) {
			return core.WhatIfScenario{}, core.ErrInvalidAmount
		}
		return core.WhatIfScenario{
			Type:            choice.Type,
			Description:     "20% cheaper rent",
			ExpenseChange:   -(choice.Rent * 0.2),
			TimeframeMonths: timeframe,
		}, nil

	case core.ScenarioSubscriptionPurge:
		var subTotal float64
		for _, s := range subs {
			if s.Active {
				subTotal += s.Amount
			}
		}
		return core.WhatIfScenario{
			Type:            choice.Type,
			Description:     "Cancel all active subscriptions",
			ExpenseChange:   -subTotal,
			TimeframeMonths: timeframe,
		}, nil

	case core.ScenarioCustom:
		if math.IsNaN(choice.CustomIncome) || math.IsNaN(choice.CustomExpense) ||
			math.IsInf(choice.CustomIncome, 0) || math.IsInf(choice.CustomExpense, 0) {
			return core.WhatIfScenario{}, core.ErrInvalidAmount
		}
		return core.WhatIfScenario{
			Type:            choice.Type,
			Description:     "Custom financial change",
			IncomeChange:    choice.CustomIncome,
			ExpenseChange:   choice.CustomExpense,
			TimeframeMonths: timeframe,
		}, nil

	default:
		return core.WhatIfScenario{}, fmt.Errorf("unknown scenario type: %s", choice.Type)
	}
}
