package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"fincoach/internal/advice"
	"fincoach/internal/core"
	"fincoach/internal/storage"

	"golang.org/x/sync/errgroup"
)

// Adviser is the narrative gateway dependency. Implemented by advice.Client.
type Adviser interface {
	Advise(ctx context.Context, prompt string) (string, error)
}

// Store is the persistence dependency. Implemented by storage.SQLiteRepository.
type Store interface {
	ListTransactions(ctx context.Context) ([]core.Transaction, error)
	InsertTransactions(ctx context.Context, txs []core.Transaction) error
	ResetTransactions(ctx context.Context) error
	CreateGoal(ctx context.Context, g core.Goal) error
	ListGoals(ctx context.Context) ([]core.Goal, error)
	PutSnapshot(ctx context.Context, key string, v any) error
	GetSnapshot(ctx context.Context, key string, v any) (bool, error)
	DeleteSnapshot(ctx context.Context, key string) error
}

// EventPublisher notifies downstream consumers that the transaction history
// changed. Implemented by amqp.Client; nil disables publishing.
type EventPublisher interface {
	PublishTransactionsChanged(ctx context.Context, count int) error
}

// AnalysisService orchestrates the engine: it reads a read-only snapshot of
// the transaction store, runs the pure calculators over it, merges gateway
// narrative, and commits derived results only after the full computation
// succeeds. Concurrent invocations are independent computations over their
// own snapshots; the service holds no mutable state of its own.
type AnalysisService struct {
	store   Store
	adviser Adviser
	events  EventPublisher
	now     func() time.Time
}

func NewAnalysisService(store Store, adviser Adviser, events EventPublisher) *AnalysisService {
	return &AnalysisService{
		store:   store,
		adviser: adviser,
		events:  events,
		now:     time.Now,
	}
}

// ImportTransactions validates and stores a batch, then notifies consumers.
// Every record is validated before any mutation happens.
func (s *AnalysisService) ImportTransactions(ctx context.Context, txs []core.Transaction) error {
	for _, tx := range txs {
		if err := tx.Validate(); err != nil {
			return fmt.Errorf("transaction %s: %w", tx.ID, err)
		}
	}

	if err := s.store.InsertTransactions(ctx, txs); err != nil {
		return fmt.Errorf("store transactions: %w", err)
	}

	if s.events != nil {
		if err := s.events.PublishTransactionsChanged(ctx, len(txs)); err != nil {
			// The import already succeeded locally; downstream refresh is
			// best-effort.
			slog.ErrorContext(ctx, "Failed to publish transactions-changed event",
				"count", len(txs), "error", err)
		}
	}
	return nil
}

// ResetAll wipes the transaction history and every derived snapshot.
func (s *AnalysisService) ResetAll(ctx context.Context) error {
	if err := s.store.ResetTransactions(ctx); err != nil {
		return err
	}
	for _, key := range []string{
		storage.SnapshotInsights,
		storage.SnapshotSubscriptions,
		storage.SnapshotEmergencyFund,
		storage.SnapshotOptimizations,
		storage.SnapshotChatHistory,
	} {
		if err := s.store.DeleteSnapshot(ctx, key); err != nil {
			return err
		}
	}
	return nil
}

// AnalysisResult is what one spending-analysis run produces.
type AnalysisResult struct {
	Insights      []core.Insight      `json:"insights"`
	Subscriptions []core.Subscription `json:"subscriptions"`
	// Source is "ai" when the gateway produced the insights, "rules" when
	// the deterministic fallback did.
	Source string `json:"source"`
}

// analysisReply is the JSON object the gateway embeds in its reply.
type analysisReply struct {
	Insights       []core.Insight `json:"insights"`
	Recommendation string         `json:"recommendation"`
}

// AnalyzeSpending runs the full analysis: 30-day aggregation, gateway
// insights (with rule-based fallback), and subscription detection over the
// full history. Both derived snapshots are committed only after the whole
// computation succeeds.
func (s *AnalysisService) AnalyzeSpending(ctx context.Context) (AnalysisResult, error) {
	txs, err := s.store.ListTransactions(ctx)
	if err != nil {
		return AnalysisResult{}, fmt.Errorf("load transactions: %w", err)
	}

	now := s.now()
	window, err := FilterWindow(txs, DefaultWindowDays, now)
	if err != nil {
		return AnalysisResult{}, err
	}
	totals := AggregateByCategory(window)
	total := Total(window)

	var result AnalysisResult
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		result.Insights, result.Source = s.fetchInsights(gctx, total, totals, window)
		return nil
	})
	g.Go(func() error {
		detected := DetectSubscriptions(txs)
		var prior []core.Subscription
		if _, err := s.store.GetSnapshot(gctx, storage.SnapshotSubscriptions, &prior); err != nil {
			return fmt.Errorf("load prior subscriptions: %w", err)
		}
		result.Subscriptions = MergeActiveState(detected, prior)
		return nil
	})
	if err := g.Wait(); err != nil {
		return AnalysisResult{}, err
	}

	if err := s.store.PutSnapshot(ctx, storage.SnapshotInsights, result.Insights); err != nil {
		return AnalysisResult{}, err
	}
	if err := s.store.PutSnapshot(ctx, storage.SnapshotSubscriptions, result.Subscriptions); err != nil {
		return AnalysisResult{}, err
	}

	slog.InfoContext(ctx, "Spending analysis complete",
		"insights", len(result.Insights),
		"subscriptions", len(result.Subscriptions),
		"source", result.Source)
	return result, nil
}

// fetchInsights asks the gateway for insights and falls back to the rule set
// on any gateway or parse failure. Never returns an error: the fallback is
// total.
func (s *AnalysisService) fetchInsights(ctx context.Context, total float64, totals map[string]float64, window []core.Transaction) ([]core.Insight, string) {
	prompt := BuildAnalysisPrompt(total, totals, potentialSubscriptionMerchants(window), len(window))

	text, err := s.adviser.Advise(ctx, prompt)
	if err == nil {
		var reply analysisReply
		if err := advice.UnmarshalEmbedded(text, &reply); err == nil && len(reply.Insights) > 0 {
			return reply.Insights, "ai"
		}
		slog.WarnContext(ctx, "Gateway reply had no parseable insights, using rule-based fallback")
	} else {
		slog.WarnContext(ctx, "Advice gateway unavailable, using rule-based insights", "error", err)
	}

	return RuleBasedInsights(totals), "rules"
}

// potentialSubscriptionMerchants lists merchants charged at least twice in
// the window, for prompt context only. The detector works on full history.
func potentialSubscriptionMerchants(window []core.Transaction) []string {
	counts := make(map[string]int)
	var order []string
	for _, tx := range window {
		if counts[tx.Merchant] == 0 {
			order = append(order, tx.Merchant)
		}
		counts[tx.Merchant]++
	}

	var merchants []string
	for _, m := range order {
		if counts[m] >= 2 {
			merchants = append(merchants, m)
		}
	}
	return merchants
}

// RefreshSubscriptions re-runs detection over the full history and persists
// the result, preserving prior cancellations.
func (s *AnalysisService) RefreshSubscriptions(ctx context.Context) ([]core.Subscription, error) {
	txs, err := s.store.ListTransactions(ctx)
	if err != nil {
		return nil, fmt.Errorf("load transactions: %w", err)
	}

	detected := DetectSubscriptions(txs)
	var prior []core.Subscription
	if _, err := s.store.GetSnapshot(ctx, storage.SnapshotSubscriptions, &prior); err != nil {
		return nil, fmt.Errorf("load prior subscriptions: %w", err)
	}
	subs := MergeActiveState(detected, prior)

	if err := s.store.PutSnapshot(ctx, storage.SnapshotSubscriptions, subs); err != nil {
		return nil, err
	}
	return subs, nil
}

// Subscriptions returns the persisted subscription set, empty when detection
// has not run yet.
func (s *AnalysisService) Subscriptions(ctx context.Context) ([]core.Subscription, error) {
	var subs []core.Subscription
	if _, err := s.store.GetSnapshot(ctx, storage.SnapshotSubscriptions, &subs); err != nil {
		return nil, err
	}
	return subs, nil
}

// CancelSubscription marks one subscription inactive. The cancellation
// survives detector re-runs through MergeActiveState.
func (s *AnalysisService) CancelSubscription(ctx context.Context, id string) error {
	var subs []core.Subscription
	found, err := s.store.GetSnapshot(ctx, storage.SnapshotSubscriptions, &subs)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("subscription %s not found", id)
	}

	cancelled := false
	for i := range subs {
		if subs[i].ID == id {
			subs[i].Active = false
			cancelled = true
			break
		}
	}
	if !cancelled {
		return fmt.Errorf("subscription %s not found", id)
	}

	if err := s.store.PutSnapshot(ctx, storage.SnapshotSubscriptions, subs); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Subscription cancelled", "id", id)
	return nil
}

// Insights returns the persisted insight set from the last analysis run.
func (s *AnalysisService) Insights(ctx context.Context) ([]core.Insight, error) {
	var insights []core.Insight
	if _, err := s.store.GetSnapshot(ctx, storage.SnapshotInsights, &insights); err != nil {
		return nil, err
	}
	return insights, nil
}

// StressTest runs the emergency-fund stress test and persists the snapshot.
// Gateway failure degrades to a numeric-only result; it never blocks the
// computation or corrupts the prior snapshot.
func (s *AnalysisService) StressTest(ctx context.Context, currentFund float64) (core.EmergencyFundAnalysis, error) {
	txs, err := s.store.ListTransactions(ctx)
	if err != nil {
		return core.EmergencyFundAnalysis{}, fmt.Errorf("load transactions: %w", err)
	}

	analysis, err := RunStressTest(txs, currentFund, s.now())
	if err != nil {
		return core.EmergencyFundAnalysis{}, err
	}

	if narrative, err := s.adviser.Advise(ctx, BuildStressTestPrompt(analysis)); err == nil {
		analysis.Narrative = narrative
	} else {
		slog.WarnContext(ctx, "Stress test proceeding without narrative", "error", err)
	}

	if err := s.store.PutSnapshot(ctx, storage.SnapshotEmergencyFund, analysis); err != nil {
		return core.EmergencyFundAnalysis{}, err
	}
	return analysis, nil
}

// EmergencyFund returns the persisted stress-test snapshot.
func (s *AnalysisService) EmergencyFund(ctx context.Context) (core.EmergencyFundAnalysis, bool, error) {
	var analysis core.EmergencyFundAnalysis
	found, err := s.store.GetSnapshot(ctx, storage.SnapshotEmergencyFund, &analysis)
	return analysis, found, err
}

// WhatIf runs a scenario simulation. The result is returned but deliberately
// not persisted.
func (s *AnalysisService) WhatIf(ctx context.Context, choice ScenarioChoice) (core.WhatIfSimulation, error) {
	txs, err := s.store.ListTransactions(ctx)
	if err != nil {
		return core.WhatIfSimulation{}, fmt.Errorf("load transactions: %w", err)
	}
	subs, err := s.Subscriptions(ctx)
	if err != nil {
		return core.WhatIfSimulation{}, err
	}

	sim, err := SimulateWhatIf(txs, subs, choice, s.now())
	if err != nil {
		return core.WhatIfSimulation{}, err
	}

	if narrative, err := s.adviser.Advise(ctx, BuildWhatIfPrompt(sim)); err == nil {
		sim.Narrative = narrative
	} else {
		slog.WarnContext(ctx, "What-if simulation proceeding without narrative", "error", err)
	}
	return sim, nil
}

// optimizationReply is the JSON object the gateway embeds in its reply.
type optimizationReply struct {
	Optimizations         []core.SubscriptionOptimization `json:"optimizations"`
	TotalPotentialSavings float64                         `json:"totalPotentialSavings"`
	PriorityActions       []string                        `json:"priorityActions"`
}

// OptimizeSubscriptions asks the gateway for per-subscription
// recommendations, applying the fixed rule table when the gateway fails or
// replies without parseable structure. The persisted snapshot always holds
// one record per active subscription.
func (s *AnalysisService) OptimizeSubscriptions(ctx context.Context) ([]core.SubscriptionOptimization, error) {
	subs, err := s.Subscriptions(ctx)
	if err != nil {
		return nil, err
	}
	active := ActiveSubscriptions(subs)
	if len(active) == 0 {
		return nil, fmt.Errorf("no active subscriptions detected; run analysis first")
	}

	opts := s.fetchOptimizations(ctx, active)

	if err := s.store.PutSnapshot(ctx, storage.SnapshotOptimizations, opts); err != nil {
		return nil, err
	}
	return opts, nil
}

func (s *AnalysisService) fetchOptimizations(ctx context.Context, active []core.Subscription) []core.SubscriptionOptimization {
	text, err := s.adviser.Advise(ctx, BuildOptimizationPrompt(active))
	if err == nil {
		var reply optimizationReply
		if err := advice.UnmarshalEmbedded(text, &reply); err == nil && len(reply.Optimizations) > 0 {
			return reply.Optimizations
		}
		slog.WarnContext(ctx, "Gateway reply had no parseable optimizations, using rule table")
	} else {
		slog.WarnContext(ctx, "Advice gateway unavailable, using optimization rule table", "error", err)
	}

	return FallbackOptimizations(active)
}

// Optimizations returns the persisted optimization records.
func (s *AnalysisService) Optimizations(ctx context.Context) ([]core.SubscriptionOptimization, error) {
	var opts []core.SubscriptionOptimization
	if _, err := s.store.GetSnapshot(ctx, storage.SnapshotOptimizations, &opts); err != nil {
		return nil, err
	}
	return opts, nil
}

// CreateGoal validates, stores, and forecasts a new savings goal. Gateway
// failure degrades the forecast to numeric-only; the goal itself is already
// saved by then.
func (s *AnalysisService) CreateGoal(ctx context.Context, name string, targetAmount float64, months int) (GoalForecast, error) {
	goal, err := NewGoal(name, targetAmount, months, s.now())
	if err != nil {
		return GoalForecast{}, err
	}

	if err := s.store.CreateGoal(ctx, goal); err != nil {
		return GoalForecast{}, err
	}

	txs, err := s.store.ListTransactions(ctx)
	if err != nil {
		return GoalForecast{}, fmt.Errorf("load transactions: %w", err)
	}

	forecast, err := PaceGoal(goal, txs, s.now())
	if err != nil {
		return GoalForecast{}, err
	}

	if narrative, err := s.adviser.Advise(ctx, BuildGoalForecastPrompt(forecast)); err == nil {
		forecast.Narrative = narrative
	} else {
		slog.WarnContext(ctx, "Goal forecast proceeding without narrative", "error", err)
	}
	return forecast, nil
}

// Goals lists the stored goals.
func (s *AnalysisService) Goals(ctx context.Context) ([]core.Goal, error) {
	return s.store.ListGoals(ctx)
}
