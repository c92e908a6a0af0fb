// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"
	"errors"

	"github.com/mmynk/splitledger/internal/models"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrConstraintViolation is returned when a write breaks a uniqueness or
	// foreign key rule, e.g. two splits for the same user on one expense.
	ErrConstraintViolation = errors.New("constraint violation")
)

// Store defines the interface for ledger storage operations.
// This abstraction allows swapping storage backends (SQLite, in-memory, etc.)
// without changing the service layer.
type Store interface {
	ExpenseStore
	GroupStore
	UserStore

	// WithTx runs fn inside a single transaction. If fn returns an error every
	// write made through tx is discarded; otherwise all of them are committed
	// together. Calling WithTx on a store that is already a transaction runs
	// fn in that same transaction.
	WithTx(ctx context.Context, fn func(tx Store) error) error

	// Close releases any resources held by the store.
	Close() error
}

// ExpenseStore persists expenses and their splits.
type ExpenseStore interface {
	// CreateExpense inserts the expense header only (no splits).
	// The ID and CreatedAt fields are populated by the store when empty.
	CreateExpense(ctx context.Context, expense *models.Expense) error

	// CreateSplits inserts the splits of an existing expense. Fails with
	// ErrConstraintViolation for unknown users or repeated user IDs.
	CreateSplits(ctx context.Context, expenseID string, splits []models.ExpenseSplit) error

	// GetExpense retrieves an expense with its splits.
	// Returns ErrNotFound if the expense does not exist.
	GetExpense(ctx context.Context, expenseID string) (*models.Expense, error)

	// ListExpensesByGroup returns the group's expenses with their splits,
	// newest expense date first, then newest created first. Undated
	// expenses come after dated ones.
	ListExpensesByGroup(ctx context.Context, groupID string) ([]*models.Expense, error)

	// DeleteExpense removes an expense and its splits.
	// Returns false if nothing was deleted.
	DeleteExpense(ctx context.Context, expenseID string) (bool, error)
}

// GroupStore persists groups and their membership.
type GroupStore interface {
	// CreateGroup inserts the group and its Members.
	// The ID and CreatedAt fields are populated by the store when empty.
	CreateGroup(ctx context.Context, group *models.Group) error

	// GetGroup retrieves a group with its members.
	// Returns ErrNotFound if the group does not exist.
	GetGroup(ctx context.Context, groupID string) (*models.Group, error)

	// ListGroupsByUser returns the groups userID belongs to, newest first.
	ListGroupsByUser(ctx context.Context, userID string) ([]*models.Group, error)

	// UpdateGroup changes name and description. Membership is untouched.
	// Returns ErrNotFound if the group does not exist.
	UpdateGroup(ctx context.Context, group *models.Group) error

	// DeleteGroup removes a group together with its expenses and splits.
	// Returns ErrNotFound if the group does not exist.
	DeleteGroup(ctx context.Context, groupID string) error

	// AddGroupMembers adds users to a group. Existing members are skipped.
	AddGroupMembers(ctx context.Context, groupID string, userIDs []string) error

	// RemoveGroupMember removes one user from a group.
	// Returns ErrNotFound if the user was not a member.
	RemoveGroupMember(ctx context.Context, groupID, userID string) error

	// IsGroupMember reports whether userID belongs to groupID.
	IsGroupMember(ctx context.Context, groupID, userID string) (bool, error)
}

// UserStore persists user accounts.
type UserStore interface {
	// CreateUser inserts a user. Fails with ErrConstraintViolation when the
	// email is already registered.
	CreateUser(ctx context.Context, user *models.User) error

	// GetUserByEmail returns nil and no error if the user does not exist.
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)

	// GetUserByID returns nil and no error if the user does not exist.
	GetUserByID(ctx context.Context, id string) (*models.User, error)

	// GetUsersByIDs returns a map of user ID to user.
	// Users that don't exist are omitted from the result.
	GetUsersByIDs(ctx context.Context, ids []string) (map[string]*models.User, error)
}
