package models

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Expense represents a shared cost with one payer and N participants.
type Expense struct {
	// ID is the identifier assigned by the ledger.
	ID *big.Int

	// Payer created the expense and fronted TotalAmount.
	Payer common.Address

	// Description is a free-form label (e.g., "Dinner at Olive Garden").
	Description string

	// TotalAmount is the full cost in wei.
	TotalAmount *big.Int

	// AmountPerPerson is TotalAmount split evenly across Participants,
	// rounded down. The payer absorbs the remainder.
	AmountPerPerson *big.Int

	// Participants lists everyone splitting the expense, payer first.
	Participants []common.Address

	// CreatedAt is set once by the ledger and never changes.
	CreatedAt time.Time

	// IsSettled is true once every participant has paid.
	IsSettled bool

	// PaidBy tracks individual settlement state. It is only populated when
	// the caller asked the ledger for it.
	PaidBy map[common.Address]bool
}

// HasParticipant reports whether addr is one of the expense's participants.
func (e *Expense) HasParticipant(addr common.Address) bool {
	for _, p := range e.Participants {
		if p == addr {
			return true
		}
	}
	return false
}

// AllPaid reports whether every participant is marked paid in PaidBy.
func (e *Expense) AllPaid() bool {
	if len(e.PaidBy) == 0 {
		return false
	}
	for _, p := range e.Participants {
		if !e.PaidBy[p] {
			return false
		}
	}
	return true
}
