// Package expense records shared expenses together with their splits.
//
// AddExpense checks that the owed shares add up to the amount before it
// touches storage, then writes the expense header and every split in one
// transaction. Either all rows are stored or none are.
package expense

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mmynk/splitledger/internal/calculator"
	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/money"
	"github.com/mmynk/splitledger/internal/storage"
)

// PersistenceError wraps a storage failure. Op names the step that failed.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("failed to %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Service implements the expense operations on top of a storage.Store.
type Service struct {
	store storage.Store
}

// NewService creates a Service backed by store.
func NewService(store storage.Store) *Service {
	return &Service{store: store}
}

// AddExpense validates the splits and stores the expense atomically.
//
// A *calculator.SplitMismatchError (or money.ErrExcessPrecision) is returned
// before any storage call. Storage failures come back as *PersistenceError
// and leave nothing behind. The returned expense has its splits, split
// users, payer and group resolved.
func (s *Service) AddExpense(ctx context.Context, in models.ExpenseInput) (*models.Expense, error) {
	if err := calculator.ValidateSplits(in.Amount, in.Splits); err != nil {
		slog.Warn("Expense rejected",
			"group_id", in.GroupID,
			"amount", money.Format(in.Amount),
			"error", err,
		)
		return nil, err
	}

	header := &models.Expense{
		Description:  in.Description,
		Amount:       in.Amount,
		CurrencyCode: in.CurrencyCode,
		PaidBy:       in.PaidBy,
		GroupID:      in.GroupID,
		ExpenseDate:  in.ExpenseDate,
		Notes:        in.Notes,
	}
	if header.CurrencyCode == "" {
		header.CurrencyCode = models.DefaultCurrencyCode
	}

	splits := make([]models.ExpenseSplit, len(in.Splits))
	for i, split := range in.Splits {
		splits[i] = models.ExpenseSplit{
			UserID:    split.UserID,
			PaidShare: split.PaidShare,
			OwedShare: split.OwedShare,
		}
	}

	var created *models.Expense
	err := s.store.WithTx(ctx, func(tx storage.Store) error {
		if err := tx.CreateExpense(ctx, header); err != nil {
			return &PersistenceError{Op: "create expense", Err: err}
		}
		if err := tx.CreateSplits(ctx, header.ID, splits); err != nil {
			return &PersistenceError{Op: "create splits", Err: err}
		}

		loaded, err := loadExpense(ctx, tx, header.ID)
		if err != nil {
			return &PersistenceError{Op: "load expense", Err: err}
		}
		created = loaded
		return nil
	})
	if err != nil {
		var persistErr *PersistenceError
		if !errors.As(err, &persistErr) {
			err = &PersistenceError{Op: "commit expense", Err: err}
		}
		slog.Error("AddExpense failed", "group_id", in.GroupID, "error", err)
		return nil, err
	}

	slog.Info("Expense created",
		"expense_id", created.ID,
		"group_id", created.GroupID,
		"amount", money.Format(created.Amount),
		"splits", len(created.Splits),
	)
	return created, nil
}

// GetExpense returns the expense with its relations resolved, or nil if it
// does not exist.
func (s *Service) GetExpense(ctx context.Context, expenseID string) (*models.Expense, error) {
	expense, err := loadExpense(ctx, s.store, expenseID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, &PersistenceError{Op: "get expense", Err: err}
	}
	return expense, nil
}

// GetExpensesByGroup returns the group's expenses, latest expense date first
// and latest created first within a date. Payer and split users are resolved.
func (s *Service) GetExpensesByGroup(ctx context.Context, groupID string) ([]*models.Expense, error) {
	expenses, err := s.store.ListExpensesByGroup(ctx, groupID)
	if err != nil {
		return nil, &PersistenceError{Op: "list expenses", Err: err}
	}
	if len(expenses) == 0 {
		return expenses, nil
	}

	group, err := s.store.GetGroup(ctx, groupID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, &PersistenceError{Op: "get group", Err: err}
	}

	if err := resolveUsers(ctx, s.store, expenses...); err != nil {
		return nil, &PersistenceError{Op: "resolve users", Err: err}
	}
	for _, expense := range expenses {
		expense.Group = group
	}

	return expenses, nil
}

// DeleteExpense removes the expense and its splits. It reports whether
// anything was deleted.
func (s *Service) DeleteExpense(ctx context.Context, expenseID string) (bool, error) {
	deleted, err := s.store.DeleteExpense(ctx, expenseID)
	if err != nil {
		return false, &PersistenceError{Op: "delete expense", Err: err}
	}
	if deleted {
		slog.Info("Expense deleted", "expense_id", expenseID)
	}
	return deleted, nil
}

// loadExpense reads one expense and resolves its payer, group and split users.
func loadExpense(ctx context.Context, store storage.Store, expenseID string) (*models.Expense, error) {
	expense, err := store.GetExpense(ctx, expenseID)
	if err != nil {
		return nil, err
	}

	group, err := store.GetGroup(ctx, expense.GroupID)
	if err != nil {
		return nil, err
	}
	expense.Group = group

	if err := resolveUsers(ctx, store, expense); err != nil {
		return nil, err
	}
	return expense, nil
}

// resolveUsers fills Payer and every split's User with one batched lookup.
func resolveUsers(ctx context.Context, store storage.Store, expenses ...*models.Expense) error {
	seen := make(map[string]bool)
	var ids []string
	add := func(id string) {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	for _, expense := range expenses {
		add(expense.PaidBy)
		for _, split := range expense.Splits {
			add(split.UserID)
		}
	}

	users, err := store.GetUsersByIDs(ctx, ids)
	if err != nil {
		return err
	}

	for _, expense := range expenses {
		expense.Payer = users[expense.PaidBy]
		for i := range expense.Splits {
			expense.Splits[i].User = users[expense.Splits[i].UserID]
		}
	}
	return nil
}
