package core

import (
	"errors"
	"math"
	"strings"
	"time"
)

const (
	Monthly Frequency = "Monthly"
)

type (
	// Frequency is the billing cadence inferred for a subscription.
	// Monthly is the only cadence the detector currently infers.
	Frequency string

	// Transaction is a single dated charge. Immutable once created;
	// removed only by bulk reset.
	Transaction struct {
		ID        string    `json:"id"`
		Date      time.Time `json:"date"`
		Merchant  string    `json:"merchant"`
		Category  string    `json:"category"`
		Amount    float64   `json:"amount"`
		Recurring bool      `json:"recurring"` // advisory hint, not authoritative
	}

	// Subscription is a derived entity emitted by the detector. Every field
	// except Active is overwritten wholesale on each detector run.
	Subscription struct {
		ID         string    `json:"id"`
		Merchant   string    `json:"merchant"`
		Amount     float64   `json:"amount"` // mean of observed charges
		Category   string    `json:"category"`
		Frequency  Frequency `json:"frequency"`
		LastCharge time.Time `json:"lastCharge"`
		Active     bool      `json:"active"`
	}

	// Goal is a user-authored savings target.
	Goal struct {
		ID            string    `json:"id"`
		Name          string    `json:"name"`
		TargetAmount  float64   `json:"targetAmount"`
		CurrentAmount float64   `json:"currentAmount"`
		TargetDate    time.Time `json:"targetDate"`
		CreatedAt     time.Time `json:"createdAt"`
		MonthlyTarget float64   `json:"monthlyTarget"`
	}

	// Insight is one piece of spending feedback, AI-sourced or rule-based.
	Insight struct {
		Type     InsightType `json:"type"`
		Title    string      `json:"title"`
		Message  string      `json:"message"`
		Amount   float64     `json:"amount"`
		Category string      `json:"category"`
	}

	InsightType string

	// ChatMessage is one turn of the advisor conversation.
	ChatMessage struct {
		ID        string    `json:"id"`
		Role      string    `json:"role"` // "user" or "assistant"
		Content   string    `json:"content"`
		Timestamp time.Time `json:"timestamp"`
	}
)

const (
	InsightWarning InsightType = "warning"
	InsightInfo    InsightType = "info"
	InsightSuccess InsightType = "success"
)

// Chat roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

var (
	ErrEmptyID        = errors.New("empty id")
	ErrEmptyMerchant  = errors.New("empty merchant")
	ErrEmptyCategory  = errors.New("empty category")
	ErrEmptyName      = errors.New("empty name")
	ErrInvalidAmount  = errors.New("invalid amount")
	ErrInvalidDate    = errors.New("invalid date")
	ErrInvalidTarget  = errors.New("invalid target amount")
	ErrInvalidMonths  = errors.New("invalid timeframe in months")
	ErrInvalidBalance = errors.New("invalid fund balance")
	ErrEmptyMessage   = errors.New("empty message")
)

func (t Transaction) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return ErrEmptyID
	}
	if t.Date.IsZero() {
		return ErrInvalidDate
	}
	if strings.TrimSpace(t.Merchant) == "" {
		return ErrEmptyMerchant
	}
	if strings.TrimSpace(t.Category) == "" {
		return ErrEmptyCategory
	}
	if t.Amount < 0 || math.IsNaN(t.Amount) || math.IsInf(t.Amount, 0) {
		return ErrInvalidAmount
	}
	return nil
}

func (g Goal) Validate() error {
	if strings.TrimSpace(g.ID) == "" {
		return ErrEmptyID
	}
	if len(strings.TrimSpace(g.Name)) == 0 {
		return ErrEmptyName
	}
	if len(g.Name) > 200 {
		return errors.New("name too long (max 200 characters)")
	}
	if g.TargetAmount <= 0 || math.IsNaN(g.TargetAmount) || math.IsInf(g.TargetAmount, 0) {
		return ErrInvalidTarget
	}
	if g.CurrentAmount < 0 || math.IsNaN(g.CurrentAmount) {
		return ErrInvalidAmount
	}
	if g.TargetDate.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// Valid reports whether the insight type is one of the known values.
func (it InsightType) Valid() bool {
	switch it {
	case InsightWarning, InsightInfo, InsightSuccess:
		return true
	default:
		return false
	}
}
