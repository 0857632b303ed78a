package models

// OffchainSession is the persisted record of an off-chain messaging session.
type OffchainSession struct {
	// ID is the session id returned by the transport.
	ID string

	// Identity is the hex address that opened the session.
	Identity string

	// ExpenseID links the session to the expense it announced payments for.
	ExpenseID string

	// State is the last lifecycle state reached (see session.State).
	State string

	// OpenedAt and ClosedAt are Unix timestamps. ClosedAt is zero while open.
	OpenedAt int64
	ClosedAt int64
}
