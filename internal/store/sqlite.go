package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ashureev/handoff-chat/internal/domain"
	"github.com/ashureev/handoff-chat/internal/shared"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const (
	writeRetries   = 3
	writeBaseDelay = 50 * time.Millisecond
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db       *sql.DB
	ledgerMu sync.Mutex // serializes ledger writes to avoid SQLITE_BUSY
	nowFunc  func() time.Time
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (Repository, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	if dbPath == ":memory:" {
		// Each connection would otherwise see its own empty database.
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db, nowFunc: time.Now}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS users (
		user_id TEXT PRIMARY KEY,
		username TEXT NOT NULL,
		last_seen_at INTEGER NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_users_last_seen ON users(last_seen_at);

	CREATE TABLE IF NOT EXISTS escalations (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		session_id TEXT NOT NULL,
		model TEXT NOT NULL,
		reason TEXT NOT NULL,
		transcript_json TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		acknowledged_at INTEGER
	);
	CREATE INDEX IF NOT EXISTS idx_escalations_pending ON escalations(created_at) WHERE acknowledged_at IS NULL;
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

// GetUser retrieves a user by their user ID.
func (s *SQLiteStore) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	query := `
		SELECT user_id, username, last_seen_at, created_at, updated_at
		FROM users WHERE user_id = ?`

	row := s.db.QueryRowContext(ctx, query, userID)

	var user domain.User
	var lastSeen, createdAt, updatedAt int64

	err := row.Scan(&user.UserID, &user.Username, &lastSeen, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan user row: %w", err)
	}

	user.LastSeenAt = time.Unix(lastSeen, 0)
	user.CreatedAt = time.Unix(createdAt, 0)
	user.UpdatedAt = time.Unix(updatedAt, 0)

	return &user, nil
}

// UpsertUser creates or updates a user record.
func (s *SQLiteStore) UpsertUser(ctx context.Context, user *domain.User) error {
	query := `
	INSERT INTO users (user_id, username, last_seen_at, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(user_id) DO UPDATE SET
		username = excluded.username,
		last_seen_at = excluded.last_seen_at,
		updated_at = excluded.updated_at`

	err := shared.RetryOnConflict(ctx, "upsert_user", writeRetries, writeBaseDelay, func() error {
		_, err := s.db.ExecContext(ctx, query,
			user.UserID, user.Username, user.LastSeenAt.Unix(),
			user.CreatedAt.Unix(), user.UpdatedAt.Unix(),
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

// UpdateLastSeen updates the last_seen_at timestamp for a user.
func (s *SQLiteStore) UpdateLastSeen(ctx context.Context, userID string, lastSeen time.Time) error {
	query := `UPDATE users SET last_seen_at = ?, updated_at = ? WHERE user_id = ?`

	var rows int64
	err := shared.RetryOnConflict(ctx, "update_last_seen", writeRetries, writeBaseDelay, func() error {
		result, err := s.db.ExecContext(ctx, query, lastSeen.Unix(), s.nowFunc().Unix(), userID)
		if err != nil {
			return err
		}
		rows, err = result.RowsAffected()
		return err
	})
	if err != nil {
		return fmt.Errorf("update last_seen: %w", err)
	}
	if rows == 0 {
		slog.Warn("UpdateLastSeen affected 0 rows", "user_id", userID)
	}
	return nil
}

// DeleteIdleUsers removes users whose last activity is older than idle.
// Their escalation ledger entries are kept.
func (s *SQLiteStore) DeleteIdleUsers(ctx context.Context, idle time.Duration) (int64, error) {
	threshold := s.nowFunc().Add(-idle).Unix()
	result, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE last_seen_at < ?`, threshold)
	if err != nil {
		return 0, fmt.Errorf("delete idle users: %w", err)
	}
	return result.RowsAffected()
}

// CreateEscalation appends an entry to the ledger. A missing ID is filled
// with a random UUID and a zero CreatedAt with the current time.
func (s *SQLiteStore) CreateEscalation(ctx context.Context, e *domain.Escalation) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.nowFunc()
	}

	transcript, err := json.Marshal(e.Transcript)
	if err != nil {
		return fmt.Errorf("marshal transcript: %w", err)
	}

	s.ledgerMu.Lock()
	defer s.ledgerMu.Unlock()

	query := `
		INSERT INTO escalations (id, user_id, session_id, model, reason, transcript_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	err = shared.RetryOnConflict(ctx, "create_escalation", writeRetries, writeBaseDelay, func() error {
		_, err := s.db.ExecContext(ctx, query,
			e.ID, e.UserID, e.SessionID, e.Model, e.Reason, string(transcript), e.CreatedAt.Unix(),
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("insert escalation: %w", err)
	}
	return nil
}

// GetEscalation retrieves a ledger entry by ID.
func (s *SQLiteStore) GetEscalation(ctx context.Context, id string) (*domain.Escalation, error) {
	query := `
		SELECT id, user_id, session_id, model, reason, transcript_json, created_at, acknowledged_at
		FROM escalations WHERE id = ?`

	e, err := scanEscalation(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

// ListEscalations returns ledger entries matching filter, newest first.
func (s *SQLiteStore) ListEscalations(ctx context.Context, filter EscalationFilter) ([]*domain.Escalation, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.PendingOnly {
		where = append(where, "acknowledged_at IS NULL")
	}
	if filter.UserID != "" {
		where = append(where, "user_id = ?")
		args = append(args, filter.UserID)
	}

	query := `
		SELECT id, user_id, session_id, model, reason, transcript_json, created_at, acknowledged_at
		FROM escalations`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, rowid DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query escalations: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close escalation rows", "error", closeErr)
		}
	}()

	var out []*domain.Escalation
	for rows.Next() {
		e, err := scanEscalation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate escalations: %w", err)
	}
	return out, nil
}

// AcknowledgeEscalation marks a pending ledger entry as handled.
func (s *SQLiteStore) AcknowledgeEscalation(ctx context.Context, id string, at time.Time) error {
	s.ledgerMu.Lock()
	defer s.ledgerMu.Unlock()

	var rows int64
	err := shared.RetryOnConflict(ctx, "ack_escalation", writeRetries, writeBaseDelay, func() error {
		result, err := s.db.ExecContext(ctx,
			`UPDATE escalations SET acknowledged_at = ? WHERE id = ? AND acknowledged_at IS NULL`,
			at.Unix(), id,
		)
		if err != nil {
			return err
		}
		rows, err = result.RowsAffected()
		return err
	})
	if err != nil {
		return fmt.Errorf("acknowledge escalation: %w", err)
	}
	if rows > 0 {
		return nil
	}

	var exists int
	err = s.db.QueryRowContext(ctx, `SELECT 1 FROM escalations WHERE id = ?`, id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("check escalation: %w", err)
	}
	return ErrAlreadyAcknowledged
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEscalation(row rowScanner) (*domain.Escalation, error) {
	var e domain.Escalation
	var transcriptJSON string
	var createdAt int64
	var ackAt sql.NullInt64

	err := row.Scan(&e.ID, &e.UserID, &e.SessionID, &e.Model, &e.Reason, &transcriptJSON, &createdAt, &ackAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan escalation row: %w", err)
	}

	if err := json.Unmarshal([]byte(transcriptJSON), &e.Transcript); err != nil {
		return nil, fmt.Errorf("decode escalation transcript: %w", err)
	}
	e.CreatedAt = time.Unix(createdAt, 0)
	if ackAt.Valid {
		ts := time.Unix(ackAt.Int64, 0)
		e.AcknowledgedAt = &ts
	}
	return &e, nil
}
