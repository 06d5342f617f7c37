package services

import (
	"fmt"

	"fincoach/internal/core"
)

// Category names and thresholds for the rule-based insight fallback.
const (
	coffeeCategory    = "Coffee & Cafes"
	diningCategory    = "Dining"
	groceriesCategory = "Groceries"

	coffeeThreshold     = 50.0
	diningThreshold     = 200.0
	homeCookingRatio    = 1.5
	coffeeSavingsFactor = 0.7 // brewing at home most days keeps ~70% of the spend
)

// RuleBasedInsights substitutes for AI insights when the advice gateway is
// unreachable. It is a fixed, total function of the 30-day category
// aggregate: no gateway call, no randomness, always 0-3 insights.
func RuleBasedInsights(categoryTotals map[string]float64) []core.Insight {
	insights := make([]core.Insight, 0, 3)

	if coffee := categoryTotals[coffeeCategory]; coffee > coffeeThreshold {
		annualSavings := coffee * 12 * coffeeSavingsFactor
		insights = append(insights, core.Insight{
			Type:  core.InsightWarning,
			Title: "Coffee Spending Alert",
			Message: fmt.Sprintf(
				"You spent $%.2f on coffee this month. Brewing at home 3 days a week could save you over $%.0f annually!",
				coffee, annualSavings),
			Amount:   coffee,
			Category: coffeeCategory,
		})
	}

	if dining := categoryTotals[diningCategory]; dining > diningThreshold {
		insights = append(insights, core.Insight{
			Type:  core.InsightInfo,
			Title: "Dining Out Frequently",
			Message: fmt.Sprintf(
				"Your dining expenses are $%.2f this month. Meal prepping 2-3 times a week could reduce this by 30-40%%.",
				dining),
			Amount:   dining,
			Category: diningCategory,
		})
	}

	groceries, hasGroceries := categoryTotals[groceriesCategory]
	dining, hasDining := categoryTotals[diningCategory]
	if hasGroceries && hasDining && dining > 0 && groceries/dining > homeCookingRatio {
		insights = append(insights, core.Insight{
			Type:     core.InsightSuccess,
			Title:    "Great Job on Home Cooking!",
			Message:  "You're spending more on groceries than dining out. This shows excellent financial discipline and healthy habits!",
			Amount:   0,
			Category: groceriesCategory,
		})
	}

	return insights
}
