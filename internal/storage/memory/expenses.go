package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/storage"
)

// CreateExpense inserts the expense header.
func (s *Store) CreateExpense(ctx context.Context, expense *models.Expense) error {
	if err := s.enter(ctx, OpCreateExpense); err != nil {
		return err
	}

	if expense.ID == "" {
		expense.ID = uuid.New().String()
	}
	if expense.CreatedAt == 0 {
		expense.CreatedAt = time.Now().UnixNano()
	}
	if expense.CurrencyCode == "" {
		expense.CurrencyCode = models.DefaultCurrencyCode
	}

	return s.write(ctx, func(d *dataset) error {
		if _, exists := d.expenses[expense.ID]; exists {
			return fmt.Errorf("%w: expense %s already exists", storage.ErrConstraintViolation, expense.ID)
		}
		if _, ok := d.users[expense.PaidBy]; !ok {
			return fmt.Errorf("%w: unknown payer %s", storage.ErrConstraintViolation, expense.PaidBy)
		}
		if _, ok := d.groups[expense.GroupID]; !ok {
			return fmt.Errorf("%w: unknown group %s", storage.ErrConstraintViolation, expense.GroupID)
		}

		d.expenses[expense.ID] = copyExpense(expense)
		return nil
	})
}

// CreateSplits inserts the splits of an existing expense.
func (s *Store) CreateSplits(ctx context.Context, expenseID string, splits []models.ExpenseSplit) error {
	if err := s.enter(ctx, OpCreateSplits); err != nil {
		return err
	}

	return s.write(ctx, func(d *dataset) error {
		if _, ok := d.expenses[expenseID]; !ok {
			return fmt.Errorf("%w: unknown expense %s", storage.ErrConstraintViolation, expenseID)
		}

		for i := range splits {
			split := splits[i]
			split.ExpenseID = expenseID
			split.User = nil

			if _, ok := d.users[split.UserID]; !ok {
				return fmt.Errorf("%w: unknown user %s", storage.ErrConstraintViolation, split.UserID)
			}
			for _, existing := range d.splits[expenseID] {
				if existing.UserID == split.UserID {
					return fmt.Errorf("%w: duplicate split for user %s on expense %s",
						storage.ErrConstraintViolation, split.UserID, expenseID)
				}
			}

			d.splits[expenseID] = append(d.splits[expenseID], split)
			splits[i].ExpenseID = expenseID
		}
		return nil
	})
}

// GetExpense retrieves an expense with its splits.
func (s *Store) GetExpense(ctx context.Context, expenseID string) (*models.Expense, error) {
	if err := s.enter(ctx, OpGetExpense); err != nil {
		return nil, err
	}

	var expense *models.Expense
	err := s.read(func(d *dataset) error {
		e, ok := d.expenses[expenseID]
		if !ok {
			return fmt.Errorf("expense %s: %w", expenseID, storage.ErrNotFound)
		}
		expense = d.expenseWithSplits(e)
		return nil
	})
	return expense, err
}

// ListExpensesByGroup returns the group's expenses, newest expense date first.
func (s *Store) ListExpensesByGroup(ctx context.Context, groupID string) ([]*models.Expense, error) {
	if err := s.enter(ctx, OpListExpenses); err != nil {
		return nil, err
	}

	var expenses []*models.Expense
	err := s.read(func(d *dataset) error {
		for _, e := range d.expenses {
			if e.GroupID == groupID {
				expenses = append(expenses, d.expenseWithSplits(e))
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(expenses, func(i, j int) bool {
		return newerExpense(expenses[i], expenses[j])
	})
	return expenses, nil
}

// DeleteExpense removes an expense and its splits.
func (s *Store) DeleteExpense(ctx context.Context, expenseID string) (bool, error) {
	if err := s.enter(ctx, OpDeleteExpense); err != nil {
		return false, err
	}

	deleted := false
	err := s.write(ctx, func(d *dataset) error {
		if _, ok := d.expenses[expenseID]; ok {
			d.deleteExpense(expenseID)
			deleted = true
		}
		return nil
	})
	return deleted, err
}

func (d *dataset) expenseWithSplits(e *models.Expense) *models.Expense {
	c := copyExpense(e)
	c.Splits = append([]models.ExpenseSplit(nil), d.splits[e.ID]...)
	return c
}

func (d *dataset) deleteExpense(expenseID string) {
	delete(d.expenses, expenseID)
	delete(d.splits, expenseID)
}

// newerExpense orders by expense date desc (undated last), then created-at desc.
func newerExpense(a, b *models.Expense) bool {
	switch {
	case a.ExpenseDate != nil && b.ExpenseDate == nil:
		return true
	case a.ExpenseDate == nil && b.ExpenseDate != nil:
		return false
	case a.ExpenseDate != nil && !a.ExpenseDate.Equal(*b.ExpenseDate):
		return a.ExpenseDate.After(*b.ExpenseDate)
	}
	if a.CreatedAt != b.CreatedAt {
		return a.CreatedAt > b.CreatedAt
	}
	return a.ID > b.ID
}
