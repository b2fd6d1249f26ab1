// Package ledger records conversion-run history in SQLite: one row per run
// plus a per-chunk event timeline. The ledger is observability, not pipeline
// state. Resume correctness comes from the chunk store alone, so every
// write here is best-effort from the orchestrator's point of view.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/inkvoice/inkvoice/internal/config"
	_ "modernc.org/sqlite"
)

// Run is one conversion attempt over a fingerprint.
type Run struct {
	ID          string
	Fingerprint string
	Input       string
	Engine      string
	Voice       string
	UnitsTotal  int
	UnitsDone   int
	Status      string
	StartedAt   time.Time
	FinishedAt  time.Time
}

// Event is a timeline entry within a run.
type Event struct {
	ID         int64
	RunID      string
	Type       string
	ChunkIndex int
	Detail     string
	CreatedAt  time.Time
}

// Ledger wraps the SQLite-backed run history.
type Ledger struct {
	db    *sql.DB
	cfg   config.LedgerConfig
	log   *slog.Logger
	clock func() time.Time
}

// Open initializes the ledger according to config. Retention mode "off"
// yields a no-op ledger.
func Open(ctx context.Context, cfg config.LedgerConfig, log *slog.Logger) (*Ledger, error) {
	if cfg.RetentionMode == "off" {
		return &Ledger{cfg: cfg, log: log, clock: time.Now}, nil
	}

	// Session mode keeps history in memory only: queryable while the
	// process lives, gone afterwards.
	dsn := "file::memory:?_pragma=foreign_keys(ON)"
	if cfg.RetentionMode == "persistent" {
		dir := filepath.Dir(cfg.Path)
		if dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create ledger dir: %w", err)
			}
		}
		dsn = fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)", cfg.Path)
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if cfg.RetentionMode == "session" {
		// Every pooled connection would otherwise see its own empty
		// in-memory database.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	l := &Ledger{db: db, cfg: cfg, log: log, clock: time.Now}

	if err := l.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}

	if cfg.VacuumOnStart {
		if _, err := db.ExecContext(ctx, "VACUUM"); err != nil {
			log.Warn("ledger vacuum failed", slog.String("error", err.Error()))
		}
	}

	if err := l.Prune(ctx); err != nil {
		log.Warn("ledger prune on start failed", slog.String("error", err.Error()))
	}

	return l, nil
}

func (l *Ledger) initSchema(ctx context.Context) error {
	if l.db == nil {
		return nil
	}
	ddl := `
CREATE TABLE IF NOT EXISTS runs (
    run_id TEXT PRIMARY KEY,
    fingerprint TEXT NOT NULL,
    input TEXT,
    engine TEXT,
    voice TEXT,
    units_total INTEGER NOT NULL,
    units_done INTEGER NOT NULL DEFAULT 0,
    status TEXT NOT NULL,
    started_at TIMESTAMP NOT NULL,
    finished_at TIMESTAMP
);
CREATE TABLE IF NOT EXISTS run_events (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id TEXT NOT NULL,
    event_type TEXT,
    chunk_index INTEGER,
    detail TEXT,
    created_at TIMESTAMP NOT NULL,
    FOREIGN KEY(run_id) REFERENCES runs(run_id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_run_events_run_created ON run_events(run_id, created_at);
CREATE INDEX IF NOT EXISTS idx_runs_fingerprint ON runs(fingerprint, started_at);
`
	_, err := l.db.ExecContext(ctx, ddl)
	return err
}

// Close releases underlying resources.
func (l *Ledger) Close() error {
	if l.db == nil {
		return nil
	}
	return l.db.Close()
}

// StartRun inserts a run row in the "running" state.
func (l *Ledger) StartRun(ctx context.Context, run Run) error {
	if l.db == nil {
		return nil
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = l.clock().UTC()
	}
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO runs(run_id, fingerprint, input, engine, voice, units_total, units_done, status, started_at)
		 VALUES(?, ?, ?, ?, ?, ?, ?, 'running', ?)`,
		run.ID, run.Fingerprint, run.Input, run.Engine, run.Voice, run.UnitsTotal, run.UnitsDone, run.StartedAt)
	return err
}

// FinishRun stamps the terminal status and final unit count on a run.
func (l *Ledger) FinishRun(ctx context.Context, runID, status string, unitsDone int) error {
	if l.db == nil {
		return nil
	}
	_, err := l.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, units_done = ?, finished_at = ? WHERE run_id = ?`,
		status, unitsDone, l.clock().UTC(), runID)
	return err
}

// RecordEvent appends a timeline entry for a run.
func (l *Ledger) RecordEvent(ctx context.Context, evt Event) error {
	if l.db == nil {
		return nil
	}
	if evt.CreatedAt.IsZero() {
		evt.CreatedAt = l.clock().UTC()
	}
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO run_events(run_id, event_type, chunk_index, detail, created_at)
		 VALUES(?, ?, ?, ?, ?)`,
		evt.RunID, evt.Type, evt.ChunkIndex, evt.Detail, evt.CreatedAt)
	return err
}

// ListRunEvents retrieves up to limit events for a run ordered ascending by time.
func (l *Ledger) ListRunEvents(ctx context.Context, runID string, limit int) ([]Event, error) {
	if l.db == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 100
	}
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, run_id, event_type, chunk_index, detail, created_at
		 FROM run_events WHERE run_id = ? ORDER BY created_at ASC, id ASC LIMIT ?`, runID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		var created string
		if err := rows.Scan(&e.ID, &e.RunID, &e.Type, &e.ChunkIndex, &e.Detail, &created); err != nil {
			return nil, err
		}
		if ts, err := time.Parse(time.RFC3339Nano, created); err == nil {
			e.CreatedAt = ts
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// LastRun returns the most recent run for a fingerprint, or nil when none
// exists. Used to report resumed progress across invocations.
func (l *Ledger) LastRun(ctx context.Context, fingerprint string) (*Run, error) {
	if l.db == nil {
		return nil, nil
	}
	row := l.db.QueryRowContext(ctx,
		`SELECT run_id, fingerprint, input, engine, voice, units_total, units_done, status, started_at
		 FROM runs WHERE fingerprint = ? ORDER BY started_at DESC LIMIT 1`, fingerprint)

	var run Run
	var started string
	err := row.Scan(&run.ID, &run.Fingerprint, &run.Input, &run.Engine, &run.Voice,
		&run.UnitsTotal, &run.UnitsDone, &run.Status, &started)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if ts, err := time.Parse(time.RFC3339Nano, started); err == nil {
		run.StartedAt = ts
	}
	return &run, nil
}

// Prune applies configured retention.
func (l *Ledger) Prune(ctx context.Context) error {
	if l.db == nil {
		return nil
	}
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if l.cfg.RetentionDays > 0 {
		cutoff := l.clock().Add(-time.Duration(l.cfg.RetentionDays) * 24 * time.Hour)
		if _, err = tx.ExecContext(ctx, `DELETE FROM run_events WHERE created_at < ?`, cutoff.UTC()); err != nil {
			return err
		}
		if _, err = tx.ExecContext(ctx, `DELETE FROM runs WHERE started_at < ?`, cutoff.UTC()); err != nil {
			return err
		}
	}
	if l.cfg.MaxRuns > 0 {
		_, err = tx.ExecContext(ctx, `DELETE FROM runs WHERE run_id IN (
			SELECT run_id FROM runs ORDER BY started_at DESC LIMIT -1 OFFSET ?
		)`, l.cfg.MaxRuns)
		if err != nil {
			return err
		}
	}
	err = tx.Commit()
	return err
}
