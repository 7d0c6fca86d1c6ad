// Package usage keeps a persistent ledger of per-request token usage.
// Only accounting data is stored, never conversation content.
package usage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	// SQLite driver (required for database/sql registration).
	_ "github.com/mattn/go-sqlite3"

	"github.com/flynn-ai/llmgate/pkg/protocol"
)

// Request outcomes stored in the ledger.
const (
	StatusSuccess       = "success"
	StatusMaxIterations = "max_iterations"
	StatusBackendError  = "backend_error"
)

// Entry is one ledger row.
type Entry struct {
	ID         string         `json:"id"`
	CreatedAt  time.Time      `json:"created_at"`
	Provider   string         `json:"provider"`
	Model      string         `json:"model"`
	Usage      protocol.Usage `json:"usage"`
	Iterations int            `json:"iterations"`
	ToolCalls  int            `json:"tool_calls"`
	Status     string         `json:"status"`
}

// Total aggregates the ledger for one provider and model.
type Total struct {
	Provider         string `json:"provider" yaml:"provider"`
	Model            string `json:"model" yaml:"model"`
	Requests         int64  `json:"requests" yaml:"requests"`
	Failures         int64  `json:"failures" yaml:"failures"`
	PromptTokens     int64  `json:"prompt_tokens" yaml:"prompt_tokens"`
	CompletionTokens int64  `json:"completion_tokens" yaml:"completion_tokens"`
	TotalTokens      int64  `json:"total_tokens" yaml:"total_tokens"`
	ToolCalls        int64  `json:"tool_calls" yaml:"tool_calls"`
}

// DailyStats aggregates the ledger for one calendar day (UTC).
type DailyStats struct {
	Date        string `json:"date" yaml:"date"`
	Requests    int64  `json:"requests" yaml:"requests"`
	TotalTokens int64  `json:"total_tokens" yaml:"total_tokens"`
	ToolCalls   int64  `json:"tool_calls" yaml:"tool_calls"`
}

// Ledger is the SQLite-backed usage store.
type Ledger struct {
	db   *sql.DB
	path string
}

// Open opens the ledger at path, creating the file and schema if needed.
func Open(path string) (*Ledger, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("create usage dir: %w", err)
		}
	}

	db, err := openDB(path)
	if err != nil {
		return nil, err
	}

	l := &Ledger{db: db, path: path}
	if err := l.init(); err != nil {
		db.Close()
		return nil, err
	}
	return l, nil
}

// openDB opens a single SQLite database with optimal settings.
func openDB(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	pragmas := []string{
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, err
		}
	}

	return db, nil
}

func (l *Ledger) init() error {
	schema := `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
		description TEXT
	);

	CREATE TABLE IF NOT EXISTS requests (
		id                TEXT PRIMARY KEY,
		created_at        INTEGER NOT NULL,
		provider          TEXT NOT NULL,
		model             TEXT NOT NULL,
		prompt_tokens     INTEGER NOT NULL DEFAULT 0,
		completion_tokens INTEGER NOT NULL DEFAULT 0,
		total_tokens      INTEGER NOT NULL DEFAULT 0,
		iterations        INTEGER NOT NULL DEFAULT 0,
		tool_calls        INTEGER NOT NULL DEFAULT 0,
		status            TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_requests_created ON requests(created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_requests_provider ON requests(provider, model);

	INSERT OR IGNORE INTO schema_migrations (version, description) VALUES (1, 'usage ledger');
	`
	if _, err := l.db.Exec(schema); err != nil {
		return fmt.Errorf("init usage schema: %w", err)
	}
	return nil
}

// Record appends an entry. Missing ID and timestamp are filled in.
func (l *Ledger) Record(ctx context.Context, e Entry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	if e.Status == "" {
		e.Status = StatusSuccess
	}

	_, err := l.db.ExecContext(ctx, `
		INSERT INTO requests (id, created_at, provider, model, prompt_tokens, completion_tokens,
			total_tokens, iterations, tool_calls, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.CreatedAt.Unix(), e.Provider, e.Model,
		e.Usage.PromptTokens, e.Usage.CompletionTokens, e.Usage.TotalTokens,
		e.Iterations, e.ToolCalls, e.Status)
	if err != nil {
		return fmt.Errorf("record usage: %w", err)
	}
	return nil
}

// Totals returns usage grouped by provider and model.
func (l *Ledger) Totals(ctx context.Context) ([]Total, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT provider, model, COUNT(*),
			SUM(CASE WHEN status = ? THEN 0 ELSE 1 END),
			SUM(prompt_tokens), SUM(completion_tokens), SUM(total_tokens), SUM(tool_calls)
		FROM requests
		GROUP BY provider, model
		ORDER BY provider, model`, StatusSuccess)
	if err != nil {
		return nil, fmt.Errorf("query usage totals: %w", err)
	}
	defer rows.Close()

	var totals []Total
	for rows.Next() {
		var t Total
		if err := rows.Scan(&t.Provider, &t.Model, &t.Requests, &t.Failures,
			&t.PromptTokens, &t.CompletionTokens, &t.TotalTokens, &t.ToolCalls); err != nil {
			return nil, err
		}
		totals = append(totals, t)
	}
	return totals, rows.Err()
}

// Daily returns per-day usage for the last n days, newest first.
func (l *Ledger) Daily(ctx context.Context, days int) ([]DailyStats, error) {
	if days <= 0 {
		days = 30
	}
	since := time.Now().UTC().AddDate(0, 0, -days).Unix()

	rows, err := l.db.QueryContext(ctx, `
		SELECT date(created_at, 'unixepoch') AS day, COUNT(*), SUM(total_tokens), SUM(tool_calls)
		FROM requests
		WHERE created_at >= ?
		GROUP BY day
		ORDER BY day DESC`, since)
	if err != nil {
		return nil, fmt.Errorf("query daily usage: %w", err)
	}
	defer rows.Close()

	var out []DailyStats
	for rows.Next() {
		var d DailyStats
		if err := rows.Scan(&d.Date, &d.Requests, &d.TotalTokens, &d.ToolCalls); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Recent returns the latest entries, newest first.
func (l *Ledger) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, created_at, provider, model, prompt_tokens, completion_tokens, total_tokens,
			iterations, tool_calls, status
		FROM requests
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent usage: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var created int64
		if err := rows.Scan(&e.ID, &created, &e.Provider, &e.Model,
			&e.Usage.PromptTokens, &e.Usage.CompletionTokens, &e.Usage.TotalTokens,
			&e.Iterations, &e.ToolCalls, &e.Status); err != nil {
			return nil, err
		}
		e.CreatedAt = time.Unix(created, 0)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Path returns the database file path.
func (l *Ledger) Path() string { return l.path }

// Size returns the database file size in bytes, or 0 if unknown.
func (l *Ledger) Size() int64 {
	info, err := os.Stat(l.path)
	if err != nil {
		return 0
	}
	return info.Size()
}

// Close closes the database connection.
func (l *Ledger) Close() error {
	return l.db.Close()
}
