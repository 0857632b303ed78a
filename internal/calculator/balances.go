package calculator

import (
	"fmt"
	"math/big"
	"sort"
	"strings"
)

// ExpenseForBalance represents an expense with the minimal information needed for balance calculations.
type ExpenseForBalance struct {
	Payer           string
	AmountPerPerson *big.Int
	Participants    []string
	PaidBy          map[string]bool // keyed by lower-cased identity
	IsSettled       bool
}

// DebtEdge represents a debt from one person to another.
type DebtEdge struct {
	From   string // Person who owes
	To     string // Person who is owed
	Amount *big.Int
}

// BalanceSummary is one identity's outstanding position across expenses.
type BalanceSummary struct {
	Identity string
	Owed     *big.Int // others owe identity
	Owing    *big.Int // identity owes others
	Net      *big.Int // Owed - Owing
	Debts    []DebtEdge
}

// SummarizeBalances computes what identity is owed and owes across the given expenses.
//
// Algorithm:
// - Settled expenses are skipped
// - If identity paid the expense: every other unpaid participant owes it one share
// - If identity is an unpaid participant: it owes the payer one share
// - Edges are merged per counterparty and sorted for stable output
func SummarizeBalances(identity string, expenses []ExpenseForBalance) (*BalanceSummary, error) {
	self := strings.ToLower(identity)
	if self == "" {
		return nil, fmt.Errorf("%w: identity is required", ErrInvalidInput)
	}

	// owedBy[counterparty] = amount counterparty owes identity
	owedBy := make(map[string]*big.Int)
	// owes[counterparty] = amount identity owes counterparty
	owes := make(map[string]*big.Int)
	names := make(map[string]string)

	add := func(m map[string]*big.Int, who string, amount *big.Int) {
		key := strings.ToLower(who)
		names[key] = who
		if _, ok := m[key]; !ok {
			m[key] = new(big.Int)
		}
		m[key].Add(m[key], amount)
	}

	for i, exp := range expenses {
		if exp.IsSettled {
			continue
		}
		if exp.AmountPerPerson == nil || exp.AmountPerPerson.Sign() < 0 {
			return nil, fmt.Errorf("%w: expense %d has no valid share", ErrInvalidInput, i)
		}
		payer := strings.ToLower(exp.Payer)

		if payer == self {
			for _, p := range exp.Participants {
				key := strings.ToLower(p)
				if key == self || exp.PaidBy[key] {
					continue
				}
				add(owedBy, p, exp.AmountPerPerson)
			}
			continue
		}

		for _, p := range exp.Participants {
			if strings.ToLower(p) == self && !exp.PaidBy[self] {
				add(owes, exp.Payer, exp.AmountPerPerson)
				break
			}
		}
	}

	summary := &BalanceSummary{
		Identity: identity,
		Owed:     new(big.Int),
		Owing:    new(big.Int),
	}

	// Net out mutual debts so each counterparty gets at most one edge.
	counterparties := make(map[string]bool)
	for k := range owedBy {
		counterparties[k] = true
	}
	for k := range owes {
		counterparties[k] = true
	}
	keys := make([]string, 0, len(counterparties))
	for k := range counterparties {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		in := owedBy[k]
		if in == nil {
			in = new(big.Int)
		}
		out := owes[k]
		if out == nil {
			out = new(big.Int)
		}
		summary.Owed.Add(summary.Owed, in)
		summary.Owing.Add(summary.Owing, out)

		diff := new(big.Int).Sub(in, out)
		switch diff.Sign() {
		case 1:
			summary.Debts = append(summary.Debts, DebtEdge{From: names[k], To: identity, Amount: diff})
		case -1:
			summary.Debts = append(summary.Debts, DebtEdge{From: identity, To: names[k], Amount: diff.Neg(diff)})
		}
	}

	summary.Net = new(big.Int).Sub(summary.Owed, summary.Owing)
	return summary, nil
}
