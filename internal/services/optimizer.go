package services

import "fincoach/internal/core"

// Fixed fallback thresholds applied when the advice gateway is unreachable.
// They guarantee the dashboard always has one recommendation per active
// subscription.
const (
	netflixDowngradeAbove = 15.0
	netflixSavings        = 6.0
	spotifySwitchAbove    = 10.0
	spotifySavings        = 11.0
	manualReviewAbove     = 50.0
)

var fallbackActionSteps = []string{
	"Review account settings",
	"Compare alternatives",
	"Make decision",
}

// FallbackOptimizations applies the fixed rule table to the active
// subscriptions. Deterministic, total, no gateway involvement.
func FallbackOptimizations(subs []core.Subscription) []core.SubscriptionOptimization {
	opts := make([]core.SubscriptionOptimization, 0, len(subs))
	for _, sub := range subs {
		if !sub.Active {
			continue
		}

		opt := core.SubscriptionOptimization{
			Merchant:       sub.Merchant,
			CurrentCost:    sub.Amount,
			Recommendation: core.RecommendKeep,
			ActionSteps:    fallbackActionSteps,
		}

		switch {
		case sub.Merchant == "Netflix" && sub.Amount > netflixDowngradeAbove:
			opt.Recommendation = core.RecommendDowngrade
			opt.PotentialSavings = netflixSavings
			opt.Alternative = "Netflix Basic ($9.99)"
			opt.Reason = "Basic plan sufficient for most users"
		case sub.Merchant == "Spotify" && sub.Amount > spotifySwitchAbove:
			opt.Recommendation = core.RecommendSwitch
			opt.PotentialSavings = spotifySavings
			opt.Alternative = "Spotify Free with ads"
			opt.Reason = "Free tier available if ads are acceptable"
		case sub.Amount > manualReviewAbove:
			opt.Recommendation = core.RecommendReview
			opt.Alternative = "Check for annual plan discount"
			opt.Reason = "High-cost subscription - verify necessity"
		}

		opts = append(opts, opt)
	}
	return opts
}

// ActiveSubscriptions filters a subscription list down to the active ones.
func ActiveSubscriptions(subs []core.Subscription) []core.Subscription {
	active := make([]core.Subscription, 0, len(subs))
	for _, s := range subs {
		if s.Active {
			active = append(active, s)
		}
	}
	return active
}
