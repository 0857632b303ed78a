// Package models defines the core domain models for onTime.
//
// # Source of truth
//
// Expenses live on-chain in the BillSplit contract. The Expense type mirrors
// the contract's getExpense tuple plus the per-participant paid flags that are
// read separately with hasPaid.
//
// Everything else here is a local index kept by the server:
//   - Payment: one settlement attempt, with the reward tier computed at payment time
//   - OffchainSession: the lifecycle record of an optional off-chain session
//   - Account: a wallet that has signed in, with its cached ENS identity
//
// Local records are informational. When they disagree with the ledger, the
// ledger wins.
package models
