// Package worker keeps derived data fresh in the background: it re-runs
// subscription detection when the transaction history changes and mirrors the
// history to Google Sheets when an exporter is configured.
package worker

import (
	"context"
	"fmt"
	"log/slog"

	"fincoach/internal/amqp"
	"fincoach/internal/core"
)

// Refresher re-runs subscription detection over the stored history.
// Implemented by services.AnalysisService.
type Refresher interface {
	RefreshSubscriptions(ctx context.Context) ([]core.Subscription, error)
}

// HistoryReader loads the stored transaction history for export.
type HistoryReader interface {
	ListTransactions(ctx context.Context) ([]core.Transaction, error)
}

// Exporter mirrors the history to an external sheet. Optional.
type Exporter interface {
	Export(ctx context.Context, txs []core.Transaction) error
}

type RefreshWorker struct {
	refresher Refresher
	history   HistoryReader
	exporter  Exporter
}

func NewRefreshWorker(refresher Refresher, history HistoryReader, exporter Exporter) *RefreshWorker {
	return &RefreshWorker{
		refresher: refresher,
		history:   history,
		exporter:  exporter,
	}
}

// HandleChangeMessage processes one transactions-changed notification.
func (w *RefreshWorker) HandleChangeMessage(ctx context.Context, msg *amqp.TransactionsChangedMessage) error {
	slog.InfoContext(ctx, "Processing change notification", "count", msg.Count)
	return w.Refresh(ctx)
}

// Refresh re-detects subscriptions and, when configured, exports the history.
func (w *RefreshWorker) Refresh(ctx context.Context) error {
	subs, err := w.refresher.RefreshSubscriptions(ctx)
	if err != nil {
		return fmt.Errorf("refresh subscriptions: %w", err)
	}
	slog.InfoContext(ctx, "Subscriptions refreshed", "count", len(subs))

	if w.exporter == nil {
		return nil
	}

	txs, err := w.history.ListTransactions(ctx)
	if err != nil {
		return fmt.Errorf("load history for export: %w", err)
	}
	if err := w.exporter.Export(ctx, txs); err != nil {
		return fmt.Errorf("export history: %w", err)
	}
	return nil
}
