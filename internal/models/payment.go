package models

// PaymentStatus is the confirmation state of a settlement transaction.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentConfirmed PaymentStatus = "confirmed"
	PaymentFailed    PaymentStatus = "failed"
)

// Payment records one participant settling their share of an expense.
type Payment struct {
	// ID is the unique identifier for the payment (UUID format).
	ID string

	// ExpenseID is the ledger id of the expense, as a decimal string.
	ExpenseID string

	// Participant is the hex address of the payer of this share.
	Participant string

	// Amount is the value sent, in wei, as a decimal string.
	Amount string

	// TxHash is the settlement transaction hash. Empty until submitted.
	TxHash string

	// RewardLabel and Reward are the tier computed when the payment was made.
	RewardLabel string
	Reward      int64

	// SessionID is the off-chain session the payment was announced on.
	// Empty when no session could be opened.
	SessionID string

	// Notified is true when the off-chain transport acknowledged the payment message.
	Notified bool

	Status PaymentStatus

	// CreatedAt is the Unix timestamp when the payment was recorded.
	CreatedAt int64
}
