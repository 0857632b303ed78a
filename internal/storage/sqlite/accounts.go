package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/ontime/billsplit/internal/models"
	"github.com/ontime/billsplit/internal/storage"
)

// UpsertAccount inserts an account or refreshes its identity and last login.
func (s *SQLiteStore) UpsertAccount(ctx context.Context, account *models.Account) error {
	query := `
		INSERT INTO accounts (address, ens_name, avatar, created_at, last_login_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(address) DO UPDATE SET
			ens_name = excluded.ens_name,
			avatar = excluded.avatar,
			last_login_at = excluded.last_login_at
	`

	_, err := s.db.ExecContext(ctx, query,
		strings.ToLower(account.Address),
		account.ENSName,
		account.Avatar,
		account.CreatedAt,
		account.LastLoginAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert account: %w", err)
	}

	return nil
}

// GetAccount retrieves an account by address.
func (s *SQLiteStore) GetAccount(ctx context.Context, address string) (*models.Account, error) {
	query := `
		SELECT address, ens_name, avatar, created_at, last_login_at
		FROM accounts
		WHERE address = ?
	`

	account := &models.Account{}
	err := s.db.QueryRowContext(ctx, query, strings.ToLower(address)).Scan(
		&account.Address,
		&account.ENSName,
		&account.Avatar,
		&account.CreatedAt,
		&account.LastLoginAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil // Never signed in
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	return account, nil
}

// GetAccountsByAddresses retrieves multiple accounts keyed by lower-case address.
func (s *SQLiteStore) GetAccountsByAddresses(ctx context.Context, addresses []string) (map[string]*models.Account, error) {
	if len(addresses) == 0 {
		return make(map[string]*models.Account), nil
	}

	query := `
		SELECT address, ens_name, avatar, created_at, last_login_at
		FROM accounts
		WHERE address IN (?` + repeatPlaceholder(len(addresses)-1) + `)`

	args := make([]interface{}, len(addresses))
	for i, a := range addresses {
		args[i] = strings.ToLower(a)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get accounts: %w", err)
	}
	defer rows.Close()

	accounts := make(map[string]*models.Account)
	for rows.Next() {
		account := &models.Account{}
		if err := rows.Scan(
			&account.Address,
			&account.ENSName,
			&account.Avatar,
			&account.CreatedAt,
			&account.LastLoginAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts[account.Address] = account
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating accounts: %w", err)
	}

	return accounts, nil
}

// CreateNonce stores a sign-in nonce.
func (s *SQLiteStore) CreateNonce(ctx context.Context, address, nonce string, expiresAt int64) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO nonces (address, nonce, expires_at) VALUES (?, ?, ?)",
		strings.ToLower(address), nonce, expiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert nonce: %w", err)
	}
	return nil
}

// ConsumeNonce deletes a live nonce. Expired nonces for the address are
// purged on the way.
func (s *SQLiteStore) ConsumeNonce(ctx context.Context, address, nonce string, now int64) error {
	address = strings.ToLower(address)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		"DELETE FROM nonces WHERE address = ? AND nonce = ? AND expires_at > ?",
		address, nonce, now,
	)
	if err != nil {
		return fmt.Errorf("failed to consume nonce: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check nonce: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM nonces WHERE address = ? AND expires_at <= ?",
		address, now,
	); err != nil {
		return fmt.Errorf("failed to purge nonces: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	if n == 0 {
		return storage.ErrNonceInvalid
	}
	return nil
}

// repeatPlaceholder returns a string of ", ?" repeated n times.
// Used for building IN clauses with multiple placeholders.
func repeatPlaceholder(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat(", ?", n)
}
