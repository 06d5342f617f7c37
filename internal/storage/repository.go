package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"fincoach/internal/core"

	_ "modernc.org/sqlite"
)

// Snapshot keys for derived state. Each key holds one independently
// read/written JSON document; there is no cross-key consistency.
const (
	SnapshotInsights      = "financial-insights"
	SnapshotSubscriptions = "financial-subscriptions"
	SnapshotEmergencyFund = "emergency-fund"
	SnapshotOptimizations = "subscription-optimizations"
	SnapshotChatHistory   = "chat-history"
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// InsertTransactions stores a batch atomically. Transactions are immutable
// once created, so conflicts on id are rejected rather than merged.
func (r *SQLiteRepository) InsertTransactions(ctx context.Context, txs []core.Transaction) error {
	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer dbTx.Rollback()

	stmt, err := dbTx.PrepareContext(ctx,
		`INSERT INTO transactions (id, date, merchant, category, amount, recurring)
		 VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, tx := range txs {
		recurring := 0
		if tx.Recurring {
			recurring = 1
		}
		if _, err := stmt.ExecContext(ctx,
			tx.ID, tx.Date.UTC().Format(time.RFC3339Nano),
			tx.Merchant, tx.Category, tx.Amount, recurring); err != nil {
			return fmt.Errorf("insert transaction %s: %w", tx.ID, err)
		}
	}

	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("commit transactions: %w", err)
	}

	slog.InfoContext(ctx, "Transactions saved to SQLite", "count", len(txs))
	return nil
}

// ListTransactions returns the full history, most recent first.
func (r *SQLiteRepository) ListTransactions(ctx context.Context) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, date, merchant, category, amount, recurring
		 FROM transactions ORDER BY date DESC`)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var txs []core.Transaction
	for rows.Next() {
		var (
			tx        core.Transaction
			dateStr   string
			recurring int
		)
		if err := rows.Scan(&tx.ID, &dateStr, &tx.Merchant, &tx.Category, &tx.Amount, &recurring); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		tx.Date, err = time.Parse(time.RFC3339Nano, dateStr)
		if err != nil {
			return nil, fmt.Errorf("parse transaction date %q: %w", dateStr, err)
		}
		tx.Recurring = recurring != 0
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

// ResetTransactions removes the full history. The only mutation transactions
// support besides insert.
func (r *SQLiteRepository) ResetTransactions(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM transactions`); err != nil {
		return fmt.Errorf("reset transactions: %w", err)
	}
	slog.InfoContext(ctx, "Transaction history reset")
	return nil
}

func (r *SQLiteRepository) CreateGoal(ctx context.Context, g core.Goal) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO goals (id, name, target_amount, current_amount, target_date, created_at, monthly_target)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		g.ID, g.Name, g.TargetAmount, g.CurrentAmount,
		g.TargetDate.UTC().Format(time.RFC3339Nano),
		g.CreatedAt.UTC().Format(time.RFC3339Nano),
		g.MonthlyTarget)
	if err != nil {
		return fmt.Errorf("create goal: %w", err)
	}

	slog.InfoContext(ctx, "Goal saved", "id", g.ID, "name", g.Name, "target", g.TargetAmount)
	return nil
}

func (r *SQLiteRepository) ListGoals(ctx context.Context) ([]core.Goal, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, target_amount, current_amount, target_date, created_at, monthly_target
		 FROM goals ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("query goals: %w", err)
	}
	defer rows.Close()

	var goals []core.Goal
	for rows.Next() {
		var (
			g                     core.Goal
			targetDate, createdAt string
		)
		if err := rows.Scan(&g.ID, &g.Name, &g.TargetAmount, &g.CurrentAmount, &targetDate, &createdAt, &g.MonthlyTarget); err != nil {
			return nil, fmt.Errorf("scan goal: %w", err)
		}
		if g.TargetDate, err = time.Parse(time.RFC3339Nano, targetDate); err != nil {
			return nil, fmt.Errorf("parse goal target date %q: %w", targetDate, err)
		}
		if g.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, fmt.Errorf("parse goal created date %q: %w", createdAt, err)
		}
		goals = append(goals, g)
	}
	return goals, rows.Err()
}

// UpdateGoalProgress sets the current amount for a goal. Progress updates
// come from outside the engine; nothing here auto-increments them.
func (r *SQLiteRepository) UpdateGoalProgress(ctx context.Context, id string, amount float64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE goals SET current_amount = ? WHERE id = ?`, amount, id)
	if err != nil {
		return fmt.Errorf("update goal progress: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("goal %s not found", id)
	}
	return nil
}

// PutSnapshot replaces one derived-state document wholesale.
func (r *SQLiteRepository) PutSnapshot(ctx context.Context, key string, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal snapshot %s: %w", key, err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO snapshots (key, body, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at`,
		key, string(body), time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("put snapshot %s: %w", key, err)
	}

	slog.DebugContext(ctx, "Snapshot stored", "key", key, "bytes", len(body))
	return nil
}

// GetSnapshot loads one derived-state document into v. Returns false with a
// nil error when the key has never been written.
func (r *SQLiteRepository) GetSnapshot(ctx context.Context, key string, v any) (bool, error) {
	var body string
	err := r.db.QueryRowContext(ctx,
		`SELECT body FROM snapshots WHERE key = ?`, key).Scan(&body)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get snapshot %s: %w", key, err)
	}

	if err := json.Unmarshal([]byte(body), v); err != nil {
		return false, fmt.Errorf("unmarshal snapshot %s: %w", key, err)
	}
	return true, nil
}

func (r *SQLiteRepository) DeleteSnapshot(ctx context.Context, key string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM snapshots WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete snapshot %s: %w", key, err)
	}
	return nil
}
