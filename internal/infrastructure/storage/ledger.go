// Package storage persists run history in an embedded SQLite ledger.
//
// The ledger is an audit trail, not pipeline state: resumption is driven
// entirely by the checkpoint files, so a lost or disabled ledger never
// changes what the harvester does.
package storage

import (
	"context"
	"crypto/rand"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"CorpusHarvester/internal/domain"
	"CorpusHarvester/internal/ports"
)

type Ledger struct {
	db      *sql.DB
	builder squirrel.StatementBuilderType
	entropy *ulid.MonotonicEntropy
	logger  *slog.Logger
}

var _ ports.RunLedger = (*Ledger)(nil)

// OpenLedger opens (or creates) the ledger database with WAL mode and
// foreign keys enabled.
func OpenLedger(ctx context.Context, path string, logger *slog.Logger) (*Ledger, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open ledger %s: %w", path, err)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("init ledger schema: %w", err)
	}

	return &Ledger{
		db:      db,
		builder: squirrel.StatementBuilder,
		entropy: ulid.Monotonic(rand.Reader, 0),
		logger:  logger,
	}, nil
}

func initSchema(ctx context.Context, db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS harvest_runs (
	id TEXT PRIMARY KEY,
	started_at TEXT NOT NULL,
	finished_at TEXT,
	issues INTEGER NOT NULL DEFAULT 0,
	articles INTEGER NOT NULL DEFAULT 0,
	processed INTEGER NOT NULL DEFAULT 0,
	skipped INTEGER NOT NULL DEFAULT 0,
	failed INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS harvest_articles (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL,
	article_id TEXT NOT NULL,
	issue_url TEXT,
	title TEXT,
	outcome TEXT NOT NULL,
	reason TEXT,
	recorded_at TEXT NOT NULL,
	FOREIGN KEY(run_id) REFERENCES harvest_runs(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_harvest_articles_run ON harvest_articles(run_id);
`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return err
	}
	return nil
}

// BeginRun opens a run row and returns its ULID.
func (l *Ledger) BeginRun(ctx context.Context, startedAt time.Time) (string, error) {
	id := ulid.MustNew(ulid.Timestamp(startedAt), l.entropy).String()

	query, args, err := l.builder.
		Insert("harvest_runs").
		Columns("id", "started_at").
		Values(id, startedAt.UTC().Format(time.RFC3339)).
		ToSql()
	if err != nil {
		return "", fmt.Errorf("build run insert: %w", err)
	}
	if _, err := l.db.ExecContext(ctx, query, args...); err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	l.logger.Info("ledger run opened", "run", id)
	return id, nil
}

// RecordArticle appends one article disposition to the run.
func (l *Ledger) RecordArticle(ctx context.Context, entry domain.LedgerEntry) error {
	query, args, err := l.builder.
		Insert("harvest_articles").
		Columns("run_id", "article_id", "issue_url", "title", "outcome", "reason", "recorded_at").
		Values(
			entry.RunID,
			entry.ArticleID,
			entry.IssueURL,
			entry.Title,
			string(entry.Outcome),
			entry.Reason,
			time.Now().UTC().Format(time.RFC3339),
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build article insert: %w", err)
	}
	if _, err := l.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert article outcome: %w", err)
	}
	return nil
}

// FinishRun closes the run row with its final counters.
func (l *Ledger) FinishRun(ctx context.Context, runID string, stats domain.HarvestStats, finishedAt time.Time) error {
	query, args, err := l.builder.
		Update("harvest_runs").
		Set("finished_at", finishedAt.UTC().Format(time.RFC3339)).
		Set("issues", stats.Issues).
		Set("articles", stats.Articles).
		Set("processed", stats.Processed).
		Set("skipped", stats.Skipped).
		Set("failed", stats.Failed).
		Where(squirrel.Eq{"id": runID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build run update: %w", err)
	}
	if _, err := l.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("finish run: %w", err)
	}

	l.logger.Info("ledger run closed", "run", runID, "processed", stats.Processed)
	return nil
}

func (l *Ledger) Close() error {
	return l.db.Close()
}
