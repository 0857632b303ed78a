package auth

import (
	"context"
	"time"

	"github.com/ontime/billsplit/internal/models"
)

// Authenticator defines the interface for authentication implementations.
// This abstraction allows swapping between different sign-in methods (wallet
// signatures, passkeys, etc.) without changing the service layer code.
type Authenticator interface {
	// Challenge issues a single-use message for address to sign.
	Challenge(ctx context.Context, address string) (message string, expiresAt time.Time, err error)

	// Authenticate verifies the signed challenge and returns the account.
	Authenticate(ctx context.Context, address, message, signature string) (*models.Account, error)
}
