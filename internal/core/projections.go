package core

import "time"

// Coverage describes how a stress scenario's months-covered figure should be
// read. Degenerate arithmetic never leaks NaN or Inf into a snapshot; it is
// reported through one of the sentinel values below instead.
type Coverage string

const (
	CoverageOK           Coverage = "ok"
	CoverageInsufficient Coverage = "insufficient_funds" // fund depleted by the one-time cost
	CoverageNoData       Coverage = "insufficient_data"  // zero spending recorded, ratio undefined
)

// RiskLevel classifies emergency-fund readiness from the job-loss scenario.
type RiskLevel string

const (
	RiskHigh    RiskLevel = "High"
	RiskMedium  RiskLevel = "Medium"
	RiskLow     RiskLevel = "Low"
	RiskUnknown RiskLevel = "Unknown"
)

// StressScenario is one named emergency scenario inside a stress test.
type StressScenario struct {
	Name           string  `json:"name"`
	Description    string  `json:"description"`
	OneTimeCost    float64 `json:"oneTimeCost,omitempty"`
	MonthlyExpense float64 `json:"monthlyExpense"`
	// MonthsCovered is meaningful only when Coverage is CoverageOK.
	MonthsCovered float64  `json:"monthsCovered"`
	Coverage      Coverage `json:"coverage"`
}

// EmergencyFundAnalysis is the full stress-test snapshot. Re-running the
// test replaces the prior snapshot wholesale.
type EmergencyFundAnalysis struct {
	CurrentFund          float64        `json:"currentFund"`
	MonthlyEssentials    float64        `json:"monthlyEssentials"`
	TotalMonthlySpending float64        `json:"totalMonthlySpending"`
	JobLoss              StressScenario `json:"jobLoss"`
	MedicalEmergency     StressScenario `json:"medicalEmergency"`
	CarRepair            StressScenario `json:"carRepair"`
	Risk                 RiskLevel      `json:"risk"`
	RecommendedFund      float64        `json:"recommendedFund"`
	Narrative            string         `json:"narrative,omitempty"`
	Timestamp            time.Time      `json:"timestamp"`
}

// ScenarioType selects a what-if simulation.
type ScenarioType string

const (
	ScenarioSalaryIncrease    ScenarioType = "salary_increase"
	ScenarioSideHustle        ScenarioType = "side_hustle"
	ScenarioRentReduction     ScenarioType = "rent_reduction"
	ScenarioSubscriptionPurge ScenarioType = "subscription_purge"
	ScenarioCustom            ScenarioType = "custom"
)

// Valid reports whether the scenario type is one of the known values.
func (st ScenarioType) Valid() bool {
	switch st {
	case ScenarioSalaryIncrease, ScenarioSideHustle, ScenarioRentReduction,
		ScenarioSubscriptionPurge, ScenarioCustom:
		return true
	default:
		return false
	}
}

// WhatIfScenario is the resolved scenario transform applied by the simulator.
type WhatIfScenario struct {
	Type            ScenarioType `json:"type"`
	Description     string       `json:"description"`
	IncomeChange    float64      `json:"incomeChange"`
	ExpenseChange   float64      `json:"expenseChange"`
	TimeframeMonths int          `json:"timeframeMonths"`
}

// CashFlow holds one side of the before/after comparison.
type CashFlow struct {
	Income   float64 `json:"income"`
	Expenses float64 `json:"expenses"`
	Savings  float64 `json:"savings"`
}

// WhatIfSimulation is a point-in-time simulation result. It is deliberately
// not persisted across reloads.
type WhatIfSimulation struct {
	Scenario    WhatIfScenario `json:"scenario"`
	Current     CashFlow       `json:"current"`
	Projected   CashFlow       `json:"projected"`
	TotalImpact float64        `json:"totalImpact"`
	Narrative   string         `json:"narrative,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
}

// Recommendation is the optimizer's verdict for one subscription.
type Recommendation string

const (
	RecommendKeep      Recommendation = "Keep"
	RecommendDowngrade Recommendation = "Downgrade"
	RecommendCancel    Recommendation = "Cancel"
	RecommendSwitch    Recommendation = "Switch"
	RecommendReview    Recommendation = "Review"
)

// SubscriptionOptimization is one per-subscription recommendation record.
type SubscriptionOptimization struct {
	Merchant         string         `json:"merchant"`
	CurrentCost      float64        `json:"currentCost"`
	Recommendation   Recommendation `json:"recommendation"`
	Alternative      string         `json:"alternative,omitempty"`
	PotentialSavings float64        `json:"potentialSavings"`
	Reason           string         `json:"reason,omitempty"`
	ActionSteps      []string       `json:"actionSteps,omitempty"`
}
