// Package sqlite provides a SQLite-backed implementation of the storage.Store interface.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/ontime/billsplit/internal/models"
	"github.com/ontime/billsplit/internal/storage"
)

// Ensure SQLiteStore implements storage.Store
var _ storage.Store = (*SQLiteStore)(nil)

// SQLiteStore implements storage.Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New creates a new SQLiteStore with the given database path.
// It creates the parent directories and runs migrations automatically.
func New(dbPath string) (*SQLiteStore, error) {
	// Create parent directory if it doesn't exist
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateSession persists a newly opened off-chain session.
func (s *SQLiteStore) CreateSession(ctx context.Context, session *models.OffchainSession) error {
	if session.OpenedAt == 0 {
		session.OpenedAt = time.Now().Unix()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, identity, expense_id, state, opened_at, closed_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		session.ID, strings.ToLower(session.Identity), session.ExpenseID, session.State,
		session.OpenedAt, session.ClosedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}
	return nil
}

// UpdateSessionState records the latest lifecycle state of a session.
func (s *SQLiteStore) UpdateSessionState(ctx context.Context, sessionID, state string, closedAt int64) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE sessions SET state = ?, closed_at = ? WHERE id = ?",
		state, closedAt, sessionID,
	)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	return expectOneRow(res, "session", sessionID)
}

// GetSession retrieves a session by ID.
func (s *SQLiteStore) GetSession(ctx context.Context, sessionID string) (*models.OffchainSession, error) {
	session := &models.OffchainSession{}
	err := s.db.QueryRowContext(ctx,
		"SELECT id, identity, expense_id, state, opened_at, closed_at FROM sessions WHERE id = ?",
		sessionID,
	).Scan(&session.ID, &session.Identity, &session.ExpenseID, &session.State, &session.OpenedAt, &session.ClosedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: session %s", storage.ErrNotFound, sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return session, nil
}

func expectOneRow(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check %s update: %w", kind, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s %s", storage.ErrNotFound, kind, id)
	}
	return nil
}
