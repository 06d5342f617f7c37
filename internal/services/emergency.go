package services

import (
	"math"
	"time"

	"fincoach/internal/core"
)

// Essential-expense category allowlist used by the job-loss scenario.
var essentialCategories = map[string]bool{
	"Groceries":      true,
	"Utilities":      true,
	"Transportation": true,
}

const (
	medicalEmergencyCost = 5000.0
	carRepairCost        = 2000.0
	recommendedMonths    = 6.0
)

// RunStressTest computes the emergency-fund stress test over the trailing
// 30-day window ending at now. currentFund is the user-supplied balance and
// is validated before any computation proceeds. The narrative field is left
// empty; the caller merges gateway advice separately.
func RunStressTest(txs []core.Transaction, currentFund float64, now time.Time) (core.EmergencyFundAnalysis, error) {
	if math.IsNaN(currentFund) || math.IsInf(currentFund, 0) || currentFund < 0 {
		return core.EmergencyFundAnalysis{}, core.ErrInvalidBalance
	}

	window, err := FilterWindow(txs, DefaultWindowDays, now)
	if err != nil {
		return core.EmergencyFundAnalysis{}, err
	}

	var essentials float64
	for _, tx := range window {
		if essentialCategories[tx.Category] {
			essentials += tx.Amount
		}
	}
	total := Total(window)

	analysis := core.EmergencyFundAnalysis{
		CurrentFund:          currentFund,
		MonthlyEssentials:    essentials,
		TotalMonthlySpending: total,
		JobLoss: coverScenario("Job Loss",
			"Essential expenses only (groceries, utilities, transport)",
			0, essentials, currentFund),
		MedicalEmergency: coverScenario("Medical Emergency",
			"$5,000 medical bill + regular expenses",
			medicalEmergencyCost, total, currentFund),
		CarRepair: coverScenario("Major Car Repair",
			"$2,000 repair + regular expenses",
			carRepairCost, total, currentFund),
		RecommendedFund: essentials * recommendedMonths,
		Timestamp:       now,
	}
	analysis.Risk = classifyRisk(analysis.JobLoss)

	return analysis, nil
}

// coverScenario computes months of coverage after an optional one-time cost.
// A zero monthly expense makes the ratio undefined; a depleted fund is
// reported as insufficient rather than as a negative duration.
func coverScenario(name, description string, oneTimeCost, monthlyExpense, fund float64) core.StressScenario {
	s := core.StressScenario{
		Name:           name,
		Description:    description,
		OneTimeCost:    oneTimeCost,
		MonthlyExpense: monthlyExpense,
	}

	remaining := fund - oneTimeCost
	switch {
	case monthlyExpense == 0:
		s.Coverage = core.CoverageNoData
	case remaining < 0:
		s.Coverage = core.CoverageInsufficient
	default:
		s.MonthsCovered = remaining / monthlyExpense
		s.Coverage = core.CoverageOK
	}
	return s
}

// classifyRisk maps job-loss coverage to a risk level: below three months is
// High, below six is Medium, six or more is Low.
func classifyRisk(jobLoss core.StressScenario) core.RiskLevel {
	if jobLoss.Coverage == core.CoverageNoData {
		return core.RiskUnknown
	}

	months := jobLoss.MonthsCovered
	if jobLoss.Coverage == core.CoverageInsufficient {
		months = 0
	}
	switch {
	case months < 3:
		return core.RiskHigh
	case months < 6:
		return core.RiskMedium
	default:
		return core.RiskLow
	}
}
