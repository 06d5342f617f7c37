package services

import (
	"encoding/json"
	"fmt"
	"strings"

	"fincoach/internal/core"
)

// Prompt builders embed the literal computed numbers so the gateway's
// narrative can reference the user's actual figures. Currency is formatted
// to two decimals at this presentation boundary only.

// BuildAnalysisPrompt constructs the spending-analysis prompt from the
// 30-day aggregates. The gateway is asked to respond with an embedded JSON
// object holding the insight list.
func BuildAnalysisPrompt(totalSpent float64, categoryTotals map[string]float64, potentialSubs []string, txCount int) string {
	breakdown, err := json.MarshalIndent(categoryTotals, "", "  ")
	if err != nil {
		breakdown = []byte("{}")
	}

	var b strings.Builder
	b.WriteString("You are a friendly financial coach analyzing a user's spending data. ")
	b.WriteString("Be conversational, encouraging, and provide actionable advice.\n\n")
	b.WriteString("Transaction Summary (Last 30 days):\n")
	fmt.Fprintf(&b, "- Total Spent: $%.2f\n", totalSpent)
	fmt.Fprintf(&b, "- Category Breakdown: %s\n", breakdown)
	fmt.Fprintf(&b, "- Potential Subscriptions: %s\n", strings.Join(potentialSubs, ", "))
	fmt.Fprintf(&b, "- Total Transactions: %d\n\n", txCount)
	b.WriteString("Please provide:\n")
	b.WriteString("1. Three key spending insights with specific dollar amounts and friendly suggestions\n")
	b.WriteString("2. Identify any concerning spending patterns or anomalies\n")
	b.WriteString("3. One positive reinforcement about their financial behavior\n")
	b.WriteString("4. A specific, actionable recommendation to save money this month\n\n")
	b.WriteString("Format as JSON:\n")
	b.WriteString(`{
  "insights": [
    {"type": "warning|info|success", "title": "...", "message": "...", "amount": 0, "category": "..."}
  ],
  "recommendation": "..."
}`)
	return b.String()
}

// BuildStressTestPrompt constructs the emergency-fund prompt from a computed
// analysis. Degenerate scenarios are described in words, never as NaN.
func BuildStressTestPrompt(a core.EmergencyFundAnalysis) string {
	var b strings.Builder
	b.WriteString("Analyze this emergency fund situation and provide advice:\n\n")
	fmt.Fprintf(&b, "Current Emergency Fund: $%.2f\n", a.CurrentFund)
	fmt.Fprintf(&b, "Monthly Essential Expenses: $%.2f\n", a.MonthlyEssentials)
	fmt.Fprintf(&b, "Total Monthly Spending: $%.2f\n\n", a.TotalMonthlySpending)
	b.WriteString("Scenarios:\n")
	fmt.Fprintf(&b, "1. Job Loss: %s\n", describeCoverage(a.JobLoss))
	fmt.Fprintf(&b, "2. Medical Emergency ($5k): %s\n", describeCoverage(a.MedicalEmergency))
	fmt.Fprintf(&b, "3. Car Repair ($2k): %s\n\n", describeCoverage(a.CarRepair))
	b.WriteString("Provide:\n")
	b.WriteString("1. Overall risk assessment (Low/Medium/High)\n")
	b.WriteString("2. Recommended emergency fund target (3-6 months of expenses)\n")
	b.WriteString("3. Specific action items to build the fund\n")
	b.WriteString("4. One encouraging statement\n\n")
	b.WriteString("Keep it under 200 words and actionable.")
	return b.String()
}

func describeCoverage(s core.StressScenario) string {
	switch s.Coverage {
	case core.CoverageOK:
		return fmt.Sprintf("Can cover %.1f months", s.MonthsCovered)
	case core.CoverageInsufficient:
		return "Would deplete fund"
	default:
		return "No spending recorded, coverage undefined"
	}
}

// BuildWhatIfPrompt constructs the scenario-analysis prompt from a computed
// simulation.
func BuildWhatIfPrompt(sim core.WhatIfSimulation) string {
	var b strings.Builder
	b.WriteString("Analyze this financial scenario change:\n\n")
	b.WriteString("Current Situation:\n")
	fmt.Fprintf(&b, "- Monthly Income: $%.2f\n", sim.Current.Income)
	fmt.Fprintf(&b, "- Monthly Spending: $%.2f\n", sim.Current.Expenses)
	fmt.Fprintf(&b, "- Monthly Savings: $%.2f\n\n", sim.Current.Savings)
	fmt.Fprintf(&b, "Proposed Change: %s - %s\n", sim.Scenario.Type, sim.Scenario.Description)
	fmt.Fprintf(&b, "- Income Change: %s/month\n", signedAmount(sim.Scenario.IncomeChange))
	fmt.Fprintf(&b, "- Expense Change: %s/month\n\n", signedAmount(sim.Scenario.ExpenseChange))
	b.WriteString("Projected Outcome:\n")
	fmt.Fprintf(&b, "- New Monthly Income: $%.2f\n", sim.Projected.Income)
	fmt.Fprintf(&b, "- New Monthly Spending: $%.2f\n", sim.Projected.Expenses)
	fmt.Fprintf(&b, "- New Monthly Savings: $%.2f\n", sim.Projected.Savings)
	fmt.Fprintf(&b, "- Total Savings Over %d Months: $%.2f\n\n", sim.Scenario.TimeframeMonths, sim.TotalImpact)
	b.WriteString("Provide:\n")
	b.WriteString("1. Is this change worthwhile? (Yes/No and why)\n")
	b.WriteString("2. Hidden costs or considerations\n")
	b.WriteString("3. Opportunity cost analysis\n")
	b.WriteString("4. Action steps to implement\n\n")
	b.WriteString("Keep it under 200 words and practical.")
	return b.String()
}

func signedAmount(v float64) string {
	if v >= 0 {
		return fmt.Sprintf("+$%.2f", v)
	}
	return fmt.Sprintf("-$%.2f", -v)
}

// BuildOptimizationPrompt constructs the per-subscription optimization
// prompt. The gateway is asked for an embedded JSON object with one record
// per subscription.
func BuildOptimizationPrompt(active []core.Subscription) string {
	var total float64
	for _, s := range active {
		total += s.Amount
	}

	var b strings.Builder
	b.WriteString("Analyze these subscriptions and provide optimization recommendations:\n\n")
	fmt.Fprintf(&b, "Current Subscriptions (%d active, $%.2f/month):\n", len(active), total)
	for _, s := range active {
		fmt.Fprintf(&b, "- %s: $%.2f/month (%s)\n", s.Merchant, s.Amount, s.Category)
	}
	b.WriteString("\nFor EACH subscription, provide as JSON:\n")
	b.WriteString(`{
  "optimizations": [
    {
      "merchant": "subscription name",
      "currentCost": 15.99,
      "recommendation": "Keep|Downgrade|Cancel|Switch",
      "alternative": "specific alternative service or plan",
      "potentialSavings": 5.00,
      "reason": "why this recommendation",
      "actionSteps": ["step 1", "step 2"]
    }
  ],
  "totalPotentialSavings": 50.00,
  "priorityActions": ["most impactful action 1", "action 2"]
}`)
	b.WriteString("\n\nConsider:\n")
	b.WriteString("- Family plan opportunities\n")
	b.WriteString("- Free alternatives\n")
	b.WriteString("- Bundling discounts\n")
	b.WriteString("- Underutilization (if they have multiple streaming services)\n")
	b.WriteString("- Cheaper tiers\n\n")
	b.WriteString("Be specific with alternative services and actual pricing.")
	return b.String()
}

// BuildGoalForecastPrompt constructs the goal pacing prompt from a computed
// forecast.
func BuildGoalForecastPrompt(f GoalForecast) string {
	var b strings.Builder
	b.WriteString("As a financial advisor, analyze if this savings goal is achievable:\n\n")
	fmt.Fprintf(&b, "Goal: %s\n", f.Goal.Name)
	fmt.Fprintf(&b, "Target Amount: $%.2f\n", f.Goal.TargetAmount)
	fmt.Fprintf(&b, "Timeframe: %d months\n", f.MonthsToGoal)
	fmt.Fprintf(&b, "Monthly Target: $%.2f\n\n", f.Goal.MonthlyTarget)
	b.WriteString("User's Financial Situation:\n")
	fmt.Fprintf(&b, "- Estimated Monthly Income: $%.2f\n", f.EstimatedIncome)
	fmt.Fprintf(&b, "- Current Monthly Spending: $%.2f\n\n", f.MonthlySpending)
	b.WriteString("Provide a friendly, encouraging forecast with:\n")
	b.WriteString("1. Whether they're on track (yes/no)\n")
	b.WriteString("2. If not, specific categories to reduce spending\n")
	b.WriteString("3. Realistic monthly savings target\n")
	b.WriteString("4. One motivating tip\n\n")
	b.WriteString("Keep it conversational and under 150 words.")
	return b.String()
}
