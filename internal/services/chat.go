package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"fincoach/internal/core"
	"fincoach/internal/storage"

	"github.com/google/uuid"
)

// chatHistoryWindow bounds how many prior messages accompany each prompt.
const chatHistoryWindow = 6

const chatFallbackReply = "Sorry, I couldn't reach the advice service just now. Please try again in a moment."

// chatContext is the financial snapshot injected into every chat prompt so
// the advisor can answer with the user's actual numbers.
type chatContext struct {
	TotalSpent      float64
	EstimatedIncome float64
	MonthlySavings  float64
	CategoryTotals  map[string]float64
	ActiveSubCount  int
	ActiveSubCost   float64
	Goals           []core.Goal
}

// Chat appends the user message to the persisted conversation, asks the
// gateway with full financial context, and returns the assistant reply. A
// gateway failure produces an apologetic assistant message instead of an
// error so the conversation stays usable.
func (s *AnalysisService) Chat(ctx context.Context, message string) (core.ChatMessage, error) {
	if strings.TrimSpace(message) == "" {
		return core.ChatMessage{}, fmt.Errorf("chat message: %w", core.ErrEmptyMessage)
	}

	var history []core.ChatMessage
	if _, err := s.store.GetSnapshot(ctx, storage.SnapshotChatHistory, &history); err != nil {
		return core.ChatMessage{}, err
	}

	now := s.now()
	history = append(history, core.ChatMessage{
		ID:        uuid.NewString(),
		Role:      core.RoleUser,
		Content:   message,
		Timestamp: now,
	})

	chatCtx, err := s.buildChatContext(ctx)
	if err != nil {
		return core.ChatMessage{}, err
	}

	reply, err := s.adviser.Advise(ctx, buildChatPrompt(chatCtx, lastMessages(history, chatHistoryWindow)))
	if err != nil {
		slog.WarnContext(ctx, "Chat falling back to apology reply", "error", err)
		reply = chatFallbackReply
	}

	assistant := core.ChatMessage{
		ID:        uuid.NewString(),
		Role:      core.RoleAssistant,
		Content:   reply,
		Timestamp: s.now(),
	}
	history = append(history, assistant)

	if err := s.store.PutSnapshot(ctx, storage.SnapshotChatHistory, history); err != nil {
		return core.ChatMessage{}, err
	}
	return assistant, nil
}

// ChatHistory returns the persisted conversation, oldest first.
func (s *AnalysisService) ChatHistory(ctx context.Context) ([]core.ChatMessage, error) {
	var history []core.ChatMessage
	if _, err := s.store.GetSnapshot(ctx, storage.SnapshotChatHistory, &history); err != nil {
		return nil, err
	}
	return history, nil
}

// ClearChat drops the persisted conversation.
func (s *AnalysisService) ClearChat(ctx context.Context) error {
	return s.store.DeleteSnapshot(ctx, storage.SnapshotChatHistory)
}

func (s *AnalysisService) buildChatContext(ctx context.Context) (chatContext, error) {
	txs, err := s.store.ListTransactions(ctx)
	if err != nil {
		return chatContext{}, fmt.Errorf("load transactions: %w", err)
	}

	window, err := FilterWindow(txs, DefaultWindowDays, s.now())
	if err != nil {
		return chatContext{}, err
	}
	total := Total(window)
	income := total * incomeFactor

	subs, err := s.Subscriptions(ctx)
	if err != nil {
		return chatContext{}, err
	}
	active := ActiveSubscriptions(subs)
	var subCost float64
	for _, sub := range active {
		subCost += sub.Amount
	}

	goals, err := s.store.ListGoals(ctx)
	if err != nil {
		return chatContext{}, err
	}

	return chatContext{
		TotalSpent:      total,
		EstimatedIncome: income,
		MonthlySavings:  income - total,
		CategoryTotals:  AggregateByCategory(window),
		ActiveSubCount:  len(active),
		ActiveSubCost:   subCost,
		Goals:           goals,
	}, nil
}

func buildChatPrompt(c chatContext, history []core.ChatMessage) string {
	var b strings.Builder

	b.WriteString("You are a friendly personal finance coach. Answer using the user's real numbers below. Keep replies short and practical.\n\n")
	b.WriteString("Financial snapshot (last 30 days):\n")
	fmt.Fprintf(&b, "- Total spending: $%.2f\n", c.TotalSpent)
	fmt.Fprintf(&b, "- Estimated monthly income: $%.2f\n", c.EstimatedIncome)
	fmt.Fprintf(&b, "- Estimated monthly savings: $%.2f\n", c.MonthlySavings)
	fmt.Fprintf(&b, "- Active subscriptions: %d costing $%.2f/month\n", c.ActiveSubCount, c.ActiveSubCost)

	if len(c.CategoryTotals) > 0 {
		b.WriteString("- Spending by category:\n")
		categories := make([]string, 0, len(c.CategoryTotals))
		for cat := range c.CategoryTotals {
			categories = append(categories, cat)
		}
		sort.Strings(categories)
		for _, cat := range categories {
			fmt.Fprintf(&b, "  - %s: $%.2f\n", cat, c.CategoryTotals[cat])
		}
	}

	if len(c.Goals) > 0 {
		b.WriteString("- Savings goals:\n")
		for _, g := range c.Goals {
			fmt.Fprintf(&b, "  - %s: $%.2f of $%.2f\n", g.Name, g.CurrentAmount, g.TargetAmount)
		}
	}

	if len(history) > 0 {
		b.WriteString("\nConversation so far:\n")
		for _, msg := range history {
			fmt.Fprintf(&b, "%s: %s\n", msg.Role, msg.Content)
		}
	}

	b.WriteString("\nReply to the user's last message.")
	return b.String()
}

func lastMessages(history []core.ChatMessage, n int) []core.ChatMessage {
	if len(history) <= n {
		return history
	}
	return history[len(history)-n:]
}
