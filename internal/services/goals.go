package services

import (
	"math"
	"time"

	"fincoach/internal/core"

	"github.com/google/uuid"
)

// monthLength approximates one month for goal date arithmetic.
const monthLength = 30 * 24 * time.Hour

// NewGoal builds a validated goal from user input. The monthly target is
// fixed at creation: targetAmount / months.
func NewGoal(name string, targetAmount float64, months int, now time.Time) (core.Goal, error) {
	if months <= 0 {
		return core.Goal{}, core.ErrInvalidMonths
	}

	goal := core.Goal{
		ID:            "goal_" + uuid.NewString(),
		Name:          name,
		TargetAmount:  targetAmount,
		CurrentAmount: 0,
		TargetDate:    now.Add(time.Duration(months) * monthLength),
		CreatedAt:     now,
		MonthlyTarget: targetAmount / float64(months),
	}
	if err := goal.Validate(); err != nil {
		return core.Goal{}, err
	}
	return goal, nil
}

// GoalForecast is the numeric pacing result for one goal. It stands on its
// own when the gateway narrative is unavailable.
type GoalForecast struct {
	Goal             core.Goal `json:"goal"`
	MonthsToGoal     int       `json:"monthsToGoal"`
	EstimatedIncome  float64   `json:"estimatedIncome"`
	MonthlySpending  float64   `json:"monthlySpending"`
	ProjectedSavings float64   `json:"projectedSavings"`
	OnTrack          bool      `json:"onTrack"`
	Narrative        string    `json:"narrative,omitempty"`
}

// PaceGoal computes goal pacing against the trailing 30-day spend.
func PaceGoal(goal core.Goal, txs []core.Transaction, now time.Time) (GoalForecast, error) {
	if err := goal.Validate(); err != nil {
		return GoalForecast{}, err
	}

	window, err := FilterWindow(txs, DefaultWindowDays, now)
	if err != nil {
		return GoalForecast{}, err
	}

	spending := Total(window)
	income := spending * incomeFactor
	savings := income - spending

	months := int(math.Ceil(goal.TargetDate.Sub(now).Hours() / 24 / 30))
	if months < 1 {
		months = 1
	}

	remaining := goal.TargetAmount - goal.CurrentAmount
	return GoalForecast{
		Goal:             goal,
		MonthsToGoal:     months,
		EstimatedIncome:  income,
		MonthlySpending:  spending,
		ProjectedSavings: savings,
		OnTrack:          savings*float64(months) >= remaining,
	}, nil
}
