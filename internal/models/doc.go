// Package models defines the core domain models for splitledger.
//
// # Models
//
//   - User: a registered account that can belong to groups
//   - Group: a set of users who share expenses
//   - Expense: a shared cost paid by one user on behalf of a group
//   - ExpenseSplit: one user's paid and owed share of an expense
//
// # Money
//
// Every amount is a shopspring decimal at two fractional digits (see
// internal/money). The owed shares of an expense always add up to its
// amount exactly; that is checked before anything is written.
//
// # Relationships
//
// Models reference each other by ID string. Read paths may also resolve the
// related records (Expense.Payer, Expense.Group, ExpenseSplit.User) so callers
// get a complete aggregate without extra lookups.
package models
