package calculator

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
)

var (
	// ErrInvalidInput is returned for malformed numeric or timestamp arguments.
	ErrInvalidInput = errors.New("invalid input")
	// ErrEmptyParticipantList is returned when an expense has nobody besides the payer.
	ErrEmptyParticipantList = errors.New("please add at least one participant")
	// ErrEmptyDescription is returned for a blank expense description.
	ErrEmptyDescription = errors.New("please enter description")
	// ErrInvalidAmount is returned for a missing or non-positive total amount.
	ErrInvalidAmount = errors.New("please enter valid amount")
)

// ExpenseInput is everything needed to validate a new expense before it is submitted.
type ExpenseInput struct {
	Payer        string
	Description  string
	TotalAmount  *big.Int // wei
	Participants []string // not including the payer
}

// ComputeShare returns the amount each participant owes: floor(total / participantCount).
// participantCount includes the payer. The remainder, if any, stays with the payer
// (see Remainder).
func ComputeShare(total *big.Int, participantCount int) (*big.Int, error) {
	if total == nil {
		return nil, fmt.Errorf("%w: total amount is required", ErrInvalidInput)
	}
	if total.Sign() < 0 {
		return nil, fmt.Errorf("%w: total amount cannot be negative", ErrInvalidInput)
	}
	if participantCount < 1 {
		return nil, fmt.Errorf("%w: must have at least one participant, got %d", ErrInvalidInput, participantCount)
	}
	if participantCount == 1 {
		return new(big.Int).Set(total), nil
	}

	// Quo truncates toward zero, which is floor for non-negative totals.
	return new(big.Int).Quo(total, big.NewInt(int64(participantCount))), nil
}

// Remainder returns the part of total that an even split cannot hand out.
// It is absorbed by the payer.
func Remainder(total *big.Int, participantCount int) (*big.Int, error) {
	share, err := ComputeShare(total, participantCount)
	if err != nil {
		return nil, err
	}
	distributed := new(big.Int).Mul(share, big.NewInt(int64(participantCount)))
	return new(big.Int).Sub(total, distributed), nil
}

// ValidateParticipants normalizes a participant list for submission.
// Blank entries are dropped, duplicates (compared case-insensitively) are removed,
// and the payer is placed first. The payer must not be the only participant.
func ValidateParticipants(participants []string, payer string) ([]string, error) {
	payer = strings.TrimSpace(payer)
	if payer == "" {
		return nil, fmt.Errorf("%w: payer is required", ErrInvalidInput)
	}

	seen := map[string]bool{strings.ToLower(payer): true}
	all := make([]string, 0, len(participants)+1)
	all = append(all, payer)

	for _, p := range participants {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		key := strings.ToLower(p)
		if seen[key] {
			continue
		}
		seen[key] = true
		all = append(all, p)
	}

	if len(all) == 1 {
		return nil, ErrEmptyParticipantList
	}
	return all, nil
}

// ValidateExpense runs every local guard for a new expense, in the order a user
// would fix them: description, amount, then participants. It returns the full
// participant list with the payer first.
func ValidateExpense(in ExpenseInput) ([]string, error) {
	if strings.TrimSpace(in.Description) == "" {
		return nil, ErrEmptyDescription
	}
	if in.TotalAmount == nil || in.TotalAmount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	return ValidateParticipants(in.Participants, in.Payer)
}
