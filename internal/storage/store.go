// Package storage provides abstractions for persistent data storage.
//
// The ledger owns expenses. The store only indexes what the server itself did:
// payments it submitted, off-chain sessions it opened, and wallets that signed in.
package storage

import (
	"context"
	"errors"

	"github.com/ontime/billsplit/internal/models"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrNonceInvalid = errors.New("sign-in nonce is unknown, used, or expired")
)

// Store defines the interface for local index operations.
// This abstraction allows swapping storage backends (SQLite, PostgreSQL, etc.)
// without changing the service layer.
type Store interface {
	// CreatePayment persists a payment. ID and CreatedAt are filled in when empty.
	CreatePayment(ctx context.Context, payment *models.Payment) error

	// UpdatePaymentStatus sets the confirmation status of a payment.
	UpdatePaymentStatus(ctx context.Context, paymentID string, status models.PaymentStatus) error

	// ListPaymentsByExpense returns payments for an expense, newest first.
	ListPaymentsByExpense(ctx context.Context, expenseID string) ([]*models.Payment, error)

	// ListPaymentsByParticipant returns payments made by an address, newest first.
	ListPaymentsByParticipant(ctx context.Context, participant string) ([]*models.Payment, error)

	CreateSession(ctx context.Context, session *models.OffchainSession) error
	UpdateSessionState(ctx context.Context, sessionID, state string, closedAt int64) error
	GetSession(ctx context.Context, sessionID string) (*models.OffchainSession, error)

	// UpsertAccount creates the account or refreshes its identity and login time.
	UpsertAccount(ctx context.Context, account *models.Account) error

	// GetAccount returns nil and no error if the address never signed in.
	GetAccount(ctx context.Context, address string) (*models.Account, error)

	// GetAccountsByAddresses returns known accounts keyed by address.
	// Unknown addresses are omitted.
	GetAccountsByAddresses(ctx context.Context, addresses []string) (map[string]*models.Account, error)

	// CreateNonce stores a single-use sign-in nonce for address.
	CreateNonce(ctx context.Context, address, nonce string, expiresAt int64) error

	// ConsumeNonce deletes the nonce if it is valid at now, or returns ErrNonceInvalid.
	ConsumeNonce(ctx context.Context, address, nonce string, now int64) error

	// Close releases any resources held by the store.
	Close() error
}
