package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"fincoach/internal/core"
	"fincoach/internal/storage"
)

// fakeStore keeps transactions in a slice and snapshots as JSON documents,
// matching how the SQLite repository round-trips them.
type fakeStore struct {
	txs       []core.Transaction
	goals     []core.Goal
	snapshots map[string][]byte

	insertErr error
	listErr   error
	putErr    error
}

func newFakeStore() *fakeStore {
	return &fakeStore{snapshots: make(map[string][]byte)}
}

func (f *fakeStore) ListTransactions(ctx context.Context) ([]core.Transaction, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.txs, nil
}

func (f *fakeStore) InsertTransactions(ctx context.Context, txs []core.Transaction) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.txs = append(f.txs, txs...)
	return nil
}

func (f *fakeStore) ResetTransactions(ctx context.Context) error {
	f.txs = nil
	return nil
}

func (f *fakeStore) CreateGoal(ctx context.Context, g core.Goal) error {
	f.goals = append(f.goals, g)
	return nil
}

func (f *fakeStore) ListGoals(ctx context.Context) ([]core.Goal, error) {
	return f.goals, nil
}

func (f *fakeStore) PutSnapshot(ctx context.Context, key string, v any) error {
	if f.putErr != nil {
		return f.putErr
	}
	body, err := json.Marshal(v)
	if err != nil {
		return err
	}
	f.snapshots[key] = body
	return nil
}

func (f *fakeStore) GetSnapshot(ctx context.Context, key string, v any) (bool, error) {
	body, ok := f.snapshots[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(body, v)
}

func (f *fakeStore) DeleteSnapshot(ctx context.Context, key string) error {
	delete(f.snapshots, key)
	return nil
}

// fakeAdviser returns a canned reply or error and records prompts.
type fakeAdviser struct {
	reply   string
	err     error
	prompts []string
}

func (f *fakeAdviser) Advise(ctx context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

type fakePublisher struct {
	counts []int
	err    error
}

func (f *fakePublisher) PublishTransactionsChanged(ctx context.Context, count int) error {
	f.counts = append(f.counts, count)
	if f.err != nil {
		return f.err
	}
	return nil
}

var testNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestService(store *fakeStore, adviser *fakeAdviser, events EventPublisher) *AnalysisService {
	s := NewAnalysisService(store, adviser, events)
	s.now = func() time.Time { return testNow }
	return s
}

// monthlyCharges produces charges for one merchant on the same day of three
// consecutive months ending just before testNow, enough for the detector.
func monthlyCharges(merchant, category string, amount float64) []core.Transaction {
	var txs []core.Transaction
	for i := 0; i < 3; i++ {
		date := testNow.AddDate(0, -i, 0).AddDate(0, 0, -5)
		txs = append(txs, tx(fmt.Sprintf("%s-%d", merchant, i), merchant, category, amount, date))
	}
	return txs
}

func TestAnalysisService_ImportTransactions(t *testing.T) {
	t.Run("valid batch is stored and published", func(t *testing.T) {
		store := newFakeStore()
		events := &fakePublisher{}
		svc := newTestService(store, &fakeAdviser{}, events)

		batch := []core.Transaction{
			tx("1", "Whole Foods", "Groceries", 82.50, testNow.AddDate(0, 0, -1)),
			tx("2", "Shell", "Transport", 40.00, testNow.AddDate(0, 0, -2)),
		}
		if err := svc.ImportTransactions(context.Background(), batch); err != nil {
			t.Fatalf("ImportTransactions() error = %v", err)
		}
		if len(store.txs) != 2 {
			t.Errorf("stored %d transactions, want 2", len(store.txs))
		}
		if len(events.counts) != 1 || events.counts[0] != 2 {
			t.Errorf("published counts = %v, want [2]", events.counts)
		}
	})

	t.Run("one invalid record rejects the whole batch", func(t *testing.T) {
		store := newFakeStore()
		svc := newTestService(store, &fakeAdviser{}, nil)

		batch := []core.Transaction{
			tx("1", "Whole Foods", "Groceries", 82.50, testNow),
			tx("2", "", "Transport", 40.00, testNow),
		}
		err := svc.ImportTransactions(context.Background(), batch)
		if !errors.Is(err, core.ErrEmptyMerchant) {
			t.Fatalf("ImportTransactions() error = %v, want ErrEmptyMerchant", err)
		}
		if len(store.txs) != 0 {
			t.Errorf("stored %d transactions, want 0 after validation failure", len(store.txs))
		}
	})

	t.Run("publish failure does not fail the import", func(t *testing.T) {
		store := newFakeStore()
		events := &fakePublisher{err: errors.New("broker down")}
		svc := newTestService(store, &fakeAdviser{}, events)

		batch := []core.Transaction{tx("1", "Shell", "Transport", 40, testNow)}
		if err := svc.ImportTransactions(context.Background(), batch); err != nil {
			t.Fatalf("ImportTransactions() error = %v, want nil on publish failure", err)
		}
		if len(store.txs) != 1 {
			t.Errorf("stored %d transactions, want 1", len(store.txs))
		}
	})
}

func TestAnalysisService_ResetAll(t *testing.T) {
	store := newFakeStore()
	store.txs = monthlyCharges("Netflix", "Entertainment", 15.99)
	for _, key := range []string{
		storage.SnapshotInsights,
		storage.SnapshotSubscriptions,
		storage.SnapshotEmergencyFund,
		storage.SnapshotOptimizations,
		storage.SnapshotChatHistory,
	} {
		store.snapshots[key] = []byte(`{}`)
	}
	svc := newTestService(store, &fakeAdviser{}, nil)

	if err := svc.ResetAll(context.Background()); err != nil {
		t.Fatalf("ResetAll() error = %v", err)
	}
	if len(store.txs) != 0 {
		t.Errorf("transactions remain after reset: %d", len(store.txs))
	}
	if len(store.snapshots) != 0 {
		t.Errorf("snapshots remain after reset: %v", store.snapshots)
	}
}

func TestAnalysisService_AnalyzeSpending(t *testing.T) {
	seed := func(store *fakeStore) {
		store.txs = append(store.txs, monthlyCharges("Netflix", "Entertainment", 15.99)...)
		store.txs = append(store.txs, tx("c1", "Starbucks", "Coffee", 60, testNow.AddDate(0, 0, -3)))
	}

	t.Run("gateway insights are used when parseable", func(t *testing.T) {
		store := newFakeStore()
		seed(store)
		adviser := &fakeAdviser{reply: `Here is my take: {"insights":[{"type":"warning","title":"Coffee habit","message":"Cut back","amount":60,"category":"Coffee"}],"recommendation":"Brew at home"}`}
		svc := newTestService(store, adviser, nil)

		result, err := svc.AnalyzeSpending(context.Background())
		if err != nil {
			t.Fatalf("AnalyzeSpending() error = %v", err)
		}
		if result.Source != "ai" {
			t.Errorf("Source = %q, want ai", result.Source)
		}
		if len(result.Insights) != 1 || result.Insights[0].Title != "Coffee habit" {
			t.Errorf("Insights = %+v, want the gateway insight", result.Insights)
		}
		if len(result.Subscriptions) != 1 || result.Subscriptions[0].Merchant != "Netflix" {
			t.Errorf("Subscriptions = %+v, want detected Netflix", result.Subscriptions)
		}
		if _, ok := store.snapshots[storage.SnapshotInsights]; !ok {
			t.Error("insights snapshot not persisted")
		}
		if _, ok := store.snapshots[storage.SnapshotSubscriptions]; !ok {
			t.Error("subscriptions snapshot not persisted")
		}
	})

	t.Run("gateway failure falls back to rules", func(t *testing.T) {
		store := newFakeStore()
		seed(store)
		svc := newTestService(store, &fakeAdviser{err: errors.New("timeout")}, nil)

		result, err := svc.AnalyzeSpending(context.Background())
		if err != nil {
			t.Fatalf("AnalyzeSpending() error = %v", err)
		}
		if result.Source != "rules" {
			t.Errorf("Source = %q, want rules", result.Source)
		}
		// Coffee at 60 trips the rule threshold.
		if len(result.Insights) == 0 {
			t.Error("want at least one rule-based insight")
		}
	})

	t.Run("unparseable gateway reply falls back to rules", func(t *testing.T) {
		store := newFakeStore()
		seed(store)
		svc := newTestService(store, &fakeAdviser{reply: "I suggest you just spend less money overall."}, nil)

		result, err := svc.AnalyzeSpending(context.Background())
		if err != nil {
			t.Fatalf("AnalyzeSpending() error = %v", err)
		}
		if result.Source != "rules" {
			t.Errorf("Source = %q, want rules for prose-only reply", result.Source)
		}
	})

	t.Run("cancellation survives a re-run", func(t *testing.T) {
		store := newFakeStore()
		seed(store)
		svc := newTestService(store, &fakeAdviser{err: errors.New("down")}, nil)

		if _, err := svc.AnalyzeSpending(context.Background()); err != nil {
			t.Fatalf("first AnalyzeSpending() error = %v", err)
		}
		if err := svc.CancelSubscription(context.Background(), "sub_Netflix"); err != nil {
			t.Fatalf("CancelSubscription() error = %v", err)
		}

		result, err := svc.AnalyzeSpending(context.Background())
		if err != nil {
			t.Fatalf("second AnalyzeSpending() error = %v", err)
		}
		if len(result.Subscriptions) != 1 || result.Subscriptions[0].Active {
			t.Errorf("Subscriptions = %+v, want Netflix still cancelled", result.Subscriptions)
		}
	})

	t.Run("store failure aborts without committing", func(t *testing.T) {
		store := newFakeStore()
		store.listErr = errors.New("disk gone")
		svc := newTestService(store, &fakeAdviser{}, nil)

		if _, err := svc.AnalyzeSpending(context.Background()); err == nil {
			t.Error("AnalyzeSpending() error = nil, want store failure")
		}
		if len(store.snapshots) != 0 {
			t.Errorf("snapshots committed despite failure: %v", store.snapshots)
		}
	})
}

func TestAnalysisService_CancelSubscription(t *testing.T) {
	t.Run("unknown id before any analysis", func(t *testing.T) {
		svc := newTestService(newFakeStore(), &fakeAdviser{}, nil)
		err := svc.CancelSubscription(context.Background(), "sub_Netflix")
		if err == nil || !strings.Contains(err.Error(), "not found") {
			t.Errorf("CancelSubscription() error = %v, want not-found", err)
		}
	})

	t.Run("unknown id among known subscriptions", func(t *testing.T) {
		store := newFakeStore()
		store.snapshots[storage.SnapshotSubscriptions] = mustJSON(t, []core.Subscription{
			{ID: "sub_Netflix", Merchant: "Netflix", Active: true},
		})
		svc := newTestService(store, &fakeAdviser{}, nil)

		if err := svc.CancelSubscription(context.Background(), "sub_Hulu"); err == nil {
			t.Error("CancelSubscription() error = nil, want not-found")
		}
	})

	t.Run("cancellation is persisted", func(t *testing.T) {
		store := newFakeStore()
		store.snapshots[storage.SnapshotSubscriptions] = mustJSON(t, []core.Subscription{
			{ID: "sub_Netflix", Merchant: "Netflix", Active: true},
			{ID: "sub_Spotify", Merchant: "Spotify", Active: true},
		})
		svc := newTestService(store, &fakeAdviser{}, nil)

		if err := svc.CancelSubscription(context.Background(), "sub_Netflix"); err != nil {
			t.Fatalf("CancelSubscription() error = %v", err)
		}

		subs, err := svc.Subscriptions(context.Background())
		if err != nil {
			t.Fatalf("Subscriptions() error = %v", err)
		}
		for _, sub := range subs {
			want := sub.ID != "sub_Netflix"
			if sub.Active != want {
				t.Errorf("%s Active = %v, want %v", sub.ID, sub.Active, want)
			}
		}
	})
}

func TestAnalysisService_OptimizeSubscriptions(t *testing.T) {
	t.Run("no active subscriptions is an error", func(t *testing.T) {
		store := newFakeStore()
		store.snapshots[storage.SnapshotSubscriptions] = mustJSON(t, []core.Subscription{
			{ID: "sub_Netflix", Merchant: "Netflix", Active: false},
		})
		svc := newTestService(store, &fakeAdviser{}, nil)

		if _, err := svc.OptimizeSubscriptions(context.Background()); err == nil {
			t.Error("OptimizeSubscriptions() error = nil, want error with no active subscriptions")
		}
	})

	t.Run("gateway optimizations win when parseable", func(t *testing.T) {
		store := newFakeStore()
		store.snapshots[storage.SnapshotSubscriptions] = mustJSON(t, []core.Subscription{
			{ID: "sub_Netflix", Merchant: "Netflix", Amount: 15.99, Active: true},
		})
		adviser := &fakeAdviser{reply: `{"optimizations":[{"merchant":"Netflix","currentCost":15.99,"recommendation":"Downgrade","potentialSavings":6,"reason":"Basic tier covers one screen"}],"totalPotentialSavings":6,"priorityActions":["Downgrade Netflix"]}`}
		svc := newTestService(store, adviser, nil)

		opts, err := svc.OptimizeSubscriptions(context.Background())
		if err != nil {
			t.Fatalf("OptimizeSubscriptions() error = %v", err)
		}
		if len(opts) != 1 || opts[0].Reason != "Basic tier covers one screen" {
			t.Errorf("opts = %+v, want gateway reasoning", opts)
		}
		if _, ok := store.snapshots[storage.SnapshotOptimizations]; !ok {
			t.Error("optimizations snapshot not persisted")
		}
	})

	t.Run("gateway failure applies the rule table", func(t *testing.T) {
		store := newFakeStore()
		store.snapshots[storage.SnapshotSubscriptions] = mustJSON(t, []core.Subscription{
			{ID: "sub_Netflix", Merchant: "Netflix", Amount: 17.99, Active: true},
			{ID: "sub_Spotify", Merchant: "Spotify", Amount: 11.99, Active: true},
		})
		svc := newTestService(store, &fakeAdviser{err: errors.New("503")}, nil)

		opts, err := svc.OptimizeSubscriptions(context.Background())
		if err != nil {
			t.Fatalf("OptimizeSubscriptions() error = %v", err)
		}
		if len(opts) != 2 {
			t.Fatalf("len(opts) = %d, want one record per active subscription", len(opts))
		}
	})
}

func TestAnalysisService_StressTest(t *testing.T) {
	store := newFakeStore()
	store.txs = []core.Transaction{
		tx("1", "Whole Foods", "Groceries", 900, testNow.AddDate(0, 0, -10)),
	}

	t.Run("narrative attached on gateway success", func(t *testing.T) {
		svc := newTestService(store, &fakeAdviser{reply: "You are in decent shape."}, nil)

		analysis, err := svc.StressTest(context.Background(), 3000)
		if err != nil {
			t.Fatalf("StressTest() error = %v", err)
		}
		if analysis.Narrative != "You are in decent shape." {
			t.Errorf("Narrative = %q, want gateway text", analysis.Narrative)
		}
		if _, ok := store.snapshots[storage.SnapshotEmergencyFund]; !ok {
			t.Error("emergency fund snapshot not persisted")
		}
	})

	t.Run("numeric result survives gateway failure", func(t *testing.T) {
		svc := newTestService(store, &fakeAdviser{err: errors.New("down")}, nil)

		analysis, err := svc.StressTest(context.Background(), 3000)
		if err != nil {
			t.Fatalf("StressTest() error = %v", err)
		}
		if analysis.Narrative != "" {
			t.Errorf("Narrative = %q, want empty on gateway failure", analysis.Narrative)
		}
		if analysis.JobLoss.MonthsCovered <= 0 {
			t.Errorf("JobLoss.MonthsCovered = %v, want positive", analysis.JobLoss.MonthsCovered)
		}
	})

	t.Run("invalid fund is rejected", func(t *testing.T) {
		svc := newTestService(store, &fakeAdviser{}, nil)
		if _, err := svc.StressTest(context.Background(), -1); !errors.Is(err, core.ErrInvalidBalance) {
			t.Errorf("StressTest() error = %v, want ErrInvalidBalance", err)
		}
	})
}

func TestAnalysisService_EmergencyFund(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, &fakeAdviser{}, nil)

	if _, found, err := svc.EmergencyFund(context.Background()); err != nil || found {
		t.Errorf("EmergencyFund() = found %v, err %v; want not found, nil", found, err)
	}

	store.snapshots[storage.SnapshotEmergencyFund] = mustJSON(t, core.EmergencyFundAnalysis{CurrentFund: 3000})
	analysis, found, err := svc.EmergencyFund(context.Background())
	if err != nil || !found {
		t.Fatalf("EmergencyFund() = found %v, err %v; want found, nil", found, err)
	}
	if analysis.CurrentFund != 3000 {
		t.Errorf("CurrentFund = %v, want 3000", analysis.CurrentFund)
	}
}

func TestAnalysisService_WhatIf(t *testing.T) {
	store := newFakeStore()
	store.txs = []core.Transaction{
		tx("1", "Whole Foods", "Groceries", 1000, testNow.AddDate(0, 0, -10)),
	}
	svc := newTestService(store, &fakeAdviser{err: errors.New("down")}, nil)

	sim, err := svc.WhatIf(context.Background(), ScenarioChoice{Type: core.ScenarioSalaryIncrease})
	if err != nil {
		t.Fatalf("WhatIf() error = %v", err)
	}
	if sim.Narrative != "" {
		t.Errorf("Narrative = %q, want empty on gateway failure", sim.Narrative)
	}
	// What-if results are transient: nothing gets persisted.
	if len(store.snapshots) != 0 {
		t.Errorf("snapshots written by WhatIf: %v", store.snapshots)
	}
}

func TestAnalysisService_CreateGoal(t *testing.T) {
	store := newFakeStore()
	store.txs = []core.Transaction{
		tx("1", "Whole Foods", "Groceries", 1000, testNow.AddDate(0, 0, -10)),
	}
	svc := newTestService(store, &fakeAdviser{reply: "Looks achievable."}, nil)

	forecast, err := svc.CreateGoal(context.Background(), "Vacation", 3000, 12)
	if err != nil {
		t.Fatalf("CreateGoal() error = %v", err)
	}
	if forecast.Narrative != "Looks achievable." {
		t.Errorf("Narrative = %q, want gateway text", forecast.Narrative)
	}
	if len(store.goals) != 1 {
		t.Fatalf("stored %d goals, want 1", len(store.goals))
	}

	goals, err := svc.Goals(context.Background())
	if err != nil {
		t.Fatalf("Goals() error = %v", err)
	}
	if len(goals) != 1 || goals[0].Name != "Vacation" {
		t.Errorf("Goals() = %+v, want the stored goal", goals)
	}

	if _, err := svc.CreateGoal(context.Background(), "Bad", 100, 0); !errors.Is(err, core.ErrInvalidMonths) {
		t.Errorf("CreateGoal() error = %v, want ErrInvalidMonths", err)
	}
}

func TestAnalysisService_Chat(t *testing.T) {
	seedStore := func() *fakeStore {
		store := newFakeStore()
		store.txs = []core.Transaction{
			tx("1", "Whole Foods", "Groceries", 400, testNow.AddDate(0, 0, -5)),
		}
		return store
	}

	t.Run("empty message is rejected", func(t *testing.T) {
		svc := newTestService(seedStore(), &fakeAdviser{}, nil)
		if _, err := svc.Chat(context.Background(), "   "); !errors.Is(err, core.ErrEmptyMessage) {
			t.Errorf("Chat() error = %v, want ErrEmptyMessage", err)
		}
	})

	t.Run("reply and history are persisted", func(t *testing.T) {
		store := seedStore()
		adviser := &fakeAdviser{reply: "Try cutting groceries by 10%."}
		svc := newTestService(store, adviser, nil)

		msg, err := svc.Chat(context.Background(), "How can I save more?")
		if err != nil {
			t.Fatalf("Chat() error = %v", err)
		}
		if msg.Role != core.RoleAssistant {
			t.Errorf("Role = %q, want assistant", msg.Role)
		}
		if msg.Content != "Try cutting groceries by 10%." {
			t.Errorf("Content = %q, want gateway reply", msg.Content)
		}

		history, err := svc.ChatHistory(context.Background())
		if err != nil {
			t.Fatalf("ChatHistory() error = %v", err)
		}
		if len(history) != 2 {
			t.Fatalf("len(history) = %d, want user + assistant", len(history))
		}
		if history[0].Role != core.RoleUser || history[1].Role != core.RoleAssistant {
			t.Errorf("history roles = %q, %q", history[0].Role, history[1].Role)
		}

		// The prompt carries the user's actual numbers.
		if len(adviser.prompts) != 1 || !strings.Contains(adviser.prompts[0], "$400.00") {
			t.Errorf("prompt missing spending figure: %q", adviser.prompts)
		}
	})

	t.Run("gateway failure produces apologetic reply", func(t *testing.T) {
		store := seedStore()
		svc := newTestService(store, &fakeAdviser{err: errors.New("503")}, nil)

		msg, err := svc.Chat(context.Background(), "Hello?")
		if err != nil {
			t.Fatalf("Chat() error = %v", err)
		}
		if msg.Content != chatFallbackReply {
			t.Errorf("Content = %q, want fallback reply", msg.Content)
		}

		history, err := svc.ChatHistory(context.Background())
		if err != nil {
			t.Fatalf("ChatHistory() error = %v", err)
		}
		if len(history) != 2 {
			t.Errorf("len(history) = %d, want conversation persisted despite failure", len(history))
		}
	})

	t.Run("prompt window trims old messages", func(t *testing.T) {
		store := seedStore()
		var history []core.ChatMessage
		for i := 0; i < 10; i++ {
			history = append(history, core.ChatMessage{
				ID:        fmt.Sprintf("m%d", i),
				Role:      core.RoleUser,
				Content:   fmt.Sprintf("message %d", i),
				Timestamp: testNow,
			})
		}
		store.snapshots[storage.SnapshotChatHistory] = mustJSON(t, history)
		adviser := &fakeAdviser{reply: "ok"}
		svc := newTestService(store, adviser, nil)

		if _, err := svc.Chat(context.Background(), "latest"); err != nil {
			t.Fatalf("Chat() error = %v", err)
		}
		prompt := adviser.prompts[0]
		if strings.Contains(prompt, "message 0") {
			t.Error("prompt contains message 0, want it trimmed")
		}
		if !strings.Contains(prompt, "latest") {
			t.Error("prompt missing the newest message")
		}

		full, err := svc.ChatHistory(context.Background())
		if err != nil {
			t.Fatalf("ChatHistory() error = %v", err)
		}
		// Full history keeps everything; only the prompt window trims.
		if len(full) != 12 {
			t.Errorf("len(history) = %d, want 12", len(full))
		}
	})

	t.Run("clear drops the conversation", func(t *testing.T) {
		store := seedStore()
		svc := newTestService(store, &fakeAdviser{reply: "ok"}, nil)

		if _, err := svc.Chat(context.Background(), "hi"); err != nil {
			t.Fatalf("Chat() error = %v", err)
		}
		if err := svc.ClearChat(context.Background()); err != nil {
			t.Fatalf("ClearChat() error = %v", err)
		}
		history, err := svc.ChatHistory(context.Background())
		if err != nil {
			t.Fatalf("ChatHistory() error = %v", err)
		}
		if len(history) != 0 {
			t.Errorf("len(history) = %d after clear, want 0", len(history))
		}
	})
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	body, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return body
}
