package services

import (
	"sort"
	"strings"
	"time"

	"fincoach/internal/core"
)

// Detection thresholds for recurring-charge classification.
const (
	// minOccurrences is the floor below which recurrence cannot be
	// established at all.
	minOccurrences = 2
	// strongOccurrences accepts a low-variance group regardless of spacing.
	strongOccurrences = 3
	// maxAmountVariance is the max-min price spread (exclusive) a group may
	// show and still count as a near-constant recurring charge.
	maxAmountVariance = 1.0
	// Monthly spacing band, inclusive on both ends, in days.
	minMonthlyGapDays = 25.0
	maxMonthlyGapDays = 35.0
)

// merchantGroup accumulates the charge history for one exact merchant name.
type merchantGroup struct {
	merchant string
	category string
	amounts  []float64
	dates    []time.Time
}

// DetectSubscriptions infers recurring monthly subscriptions from the full
// transaction history (not a trailing window).
//
// A merchant group becomes a subscription when it has at least two charges,
// its price spread is below one currency unit, and either every consecutive
// charge gap falls within the monthly band or the group has at least three
// charges (strong-enough recurrence evidence even with billing-date drift).
//
// The function is a pure function of its input: running it twice over an
// unchanged history yields the identical output set. Active is always true;
// the detector has no memory of prior cancellations, which the caller
// preserves separately if desired.
func DetectSubscriptions(txs []core.Transaction) []core.Subscription {
	groups := make(map[string]*merchantGroup)
	order := make([]string, 0)

	for _, tx := range txs {
		g, ok := groups[tx.Merchant]
		if !ok {
			g = &merchantGroup{merchant: tx.Merchant, category: tx.Category}
			groups[tx.Merchant] = g
			order = append(order, tx.Merchant)
		}
		g.amounts = append(g.amounts, tx.Amount)
		g.dates = append(g.dates, tx.Date)
	}

	// Deterministic output order regardless of map iteration.
	sort.Strings(order)

	subs := make([]core.Subscription, 0)
	for _, merchant := range order {
		g := groups[merchant]
		if sub, ok := g.toSubscription(); ok {
			subs = append(subs, sub)
		}
	}
	return subs
}

func (g *merchantGroup) toSubscription() (core.Subscription, bool) {
	if len(g.amounts) < minOccurrences {
		return core.Subscription{}, false
	}

	minAmount, maxAmount := g.amounts[0], g.amounts[0]
	var sum float64
	for _, a := range g.amounts {
		if a < minAmount {
			minAmount = a
		}
		if a > maxAmount {
			maxAmount = a
		}
		sum += a
	}
	if maxAmount-minAmount >= maxAmountVariance {
		return core.Subscription{}, false
	}

	dates := make([]time.Time, len(g.dates))
	copy(dates, g.dates)
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	isMonthly := true
	for i := 1; i < len(dates); i++ {
		gapDays := dates[i].Sub(dates[i-1]).Hours() / 24
		if gapDays < minMonthlyGapDays || gapDays > maxMonthlyGapDays {
			isMonthly = false
			break
		}
	}

	if !isMonthly && len(g.amounts) < strongOccurrences {
		return core.Subscription{}, false
	}

	return core.Subscription{
		ID:         SubscriptionID(g.merchant),
		Merchant:   g.merchant,
		Amount:     sum / float64(len(g.amounts)),
		Category:   g.category,
		Frequency:  core.Monthly,
		LastCharge: dates[len(dates)-1],
		Active:     true,
	}, true
}

// SubscriptionID derives the stable subscription identifier from a merchant
// name. Matching is exact-string, so "Starbucks" and "Starbucks #402" map to
// different subscriptions.
func SubscriptionID(merchant string) string {
	return "sub_" + strings.ReplaceAll(merchant, " ", "_")
}

// MergeActiveState carries a previously persisted cancellation forward onto a
// freshly detected subscription set. The detector itself always emits
// Active=true; cancellations survive re-runs only through this merge.
func MergeActiveState(detected, prior []core.Subscription) []core.Subscription {
	cancelled := make(map[string]bool, len(prior))
	for _, s := range prior {
		if !s.Active {
			cancelled[s.ID] = true
		}
	}

	out := make([]core.Subscription, len(detected))
	for i, s := range detected {
		if cancelled[s.ID] {
			s.Active = false
		}
		out[i] = s
	}
	return out
}
