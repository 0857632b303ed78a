package models

import "time"

// Account represents a wallet that has signed in.
type Account struct {
	// Address is the checksummed hex address.
	Address string

	// ENSName and Avatar are the last resolved identity. Either may be empty.
	ENSName string
	Avatar  string

	// CreatedAt is the Unix timestamp of the first sign-in.
	CreatedAt int64

	// LastLoginAt is the Unix timestamp of the most recent sign-in.
	LastLoginAt int64
}

// NewAccount creates an account for a first sign-in.
func NewAccount(address string) *Account {
	now := time.Now().Unix()
	return &Account{
		Address:     address,
		CreatedAt:   now,
		LastLoginAt: now,
	}
}
