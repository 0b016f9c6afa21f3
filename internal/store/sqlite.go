package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ashureev/truthguard/internal/domain"
	"github.com/ashureev/truthguard/internal/shared"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db    *sql.DB
	retry shared.RetryPolicy
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(5 * time.Minute)
	if dbPath == ":memory:" {
		// Every connection would otherwise see its own empty database.
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db, retry: shared.DefaultRetryPolicy}
	if err := store.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS verifications (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		identity TEXT NOT NULL,
		channel TEXT NOT NULL,
		query TEXT NOT NULL,
		status TEXT NOT NULL,
		verdict TEXT NOT NULL,
		confidence REAL NOT NULL,
		diagnostic TEXT,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_verifications_created ON verifications(created_at);
	CREATE INDEX IF NOT EXISTS idx_verifications_identity ON verifications(identity, created_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// RecordVerification appends one verification outcome. SQLite conflicts are
// retried with exponential backoff.
func (s *SQLiteStore) RecordVerification(ctx context.Context, rec *domain.VerificationRecord) error {
	query := `
	INSERT INTO verifications (id, identity, channel, query, status, verdict, confidence, diagnostic, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	var diagnostic interface{}
	if rec.Diagnostic != "" {
		diagnostic = rec.Diagnostic
	}

	err := shared.RetryOnConflict(ctx, s.retry, "record_verification", func() error {
		_, err := s.db.ExecContext(ctx, query,
			rec.ID, rec.Identity, string(rec.Channel), rec.Query,
			string(rec.Status), string(rec.Verdict), rec.Confidence,
			diagnostic, rec.CreatedAt.UnixMilli(),
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("insert verification: %w", err)
	}
	return nil
}

// ListHistory returns records newest first.
func (s *SQLiteStore) ListHistory(ctx context.Context, filter domain.HistoryFilter) ([]*domain.VerificationRecord, error) {
	query := `
		SELECT id, identity, channel, query, status, verdict, confidence, diagnostic, created_at
		FROM verifications`
	var args []interface{}
	if filter.Identity != "" {
		query += ` WHERE identity = ?`
		args = append(args, filter.Identity)
	}
	query += ` ORDER BY created_at DESC, seq DESC LIMIT ?`
	args = append(args, clampLimit(filter.Limit))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close history rows", "error", closeErr)
		}
	}()

	records := make([]*domain.VerificationRecord, 0)
	for rows.Next() {
		var rec domain.VerificationRecord
		var channel, status, verdict string
		var diagnostic sql.NullString
		var createdAt int64

		if err := rows.Scan(
			&rec.ID, &rec.Identity, &channel, &rec.Query,
			&status, &verdict, &rec.Confidence, &diagnostic, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}

		rec.Channel = domain.Channel(channel)
		rec.Status = domain.Status(status)
		rec.Verdict = domain.Verdict(verdict)
		rec.Diagnostic = diagnostic.String
		rec.CreatedAt = time.UnixMilli(createdAt).UTC()
		records = append(records, &rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}

	return records, nil
}

// Summary aggregates every stored record. Accuracy is the percentage of
// records where the agent produced an answer.
func (s *SQLiteStore) Summary(ctx context.Context) (*domain.VerificationSummary, error) {
	query := `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN status = 'ok' AND verdict = 'verified' THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN status = 'ok' AND verdict = 'unverified' THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN status = 'error' THEN 1 ELSE 0 END), 0)
		FROM verifications`

	sum := &domain.VerificationSummary{ByChannel: map[string]int64{}}
	if err := s.db.QueryRowContext(ctx, query).Scan(
		&sum.Total, &sum.Verified, &sum.Unverified, &sum.Errors,
	); err != nil {
		return nil, fmt.Errorf("scan summary: %w", err)
	}
	if sum.Total > 0 {
		sum.Accuracy = float64(sum.Total-sum.Errors) / float64(sum.Total) * 100
	}

	rows, err := s.db.QueryContext(ctx, `SELECT channel, COUNT(*) FROM verifications GROUP BY channel`)
	if err != nil {
		return nil, fmt.Errorf("query channel counts: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close channel count rows", "error", closeErr)
		}
	}()

	for rows.Next() {
		var channel string
		var n int64
		if err := rows.Scan(&channel, &n); err != nil {
			return nil, fmt.Errorf("scan channel count: %w", err)
		}
		sum.ByChannel[channel] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate channel counts: %w", err)
	}

	return sum, nil
}

// PruneBefore deletes records created before cutoff.
func (s *SQLiteStore) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var deleted int64
	err := shared.RetryOnConflict(ctx, s.retry, "prune_history", func() error {
		result, err := s.db.ExecContext(ctx, `DELETE FROM verifications WHERE created_at < ?`, cutoff.UnixMilli())
		if err != nil {
			return err
		}
		deleted, err = result.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("prune history: %w", err)
	}
	return deleted, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

var _ Repository = (*SQLiteStore)(nil)
