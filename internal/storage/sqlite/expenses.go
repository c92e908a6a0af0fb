package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/money"
	"github.com/mmynk/splitledger/internal/storage"
)

const expenseColumns = `id, description, amount, currency_code, paid_by, group_id, expense_date, notes, created_at`

// CreateExpense inserts the expense header.
func (s *SQLiteStore) CreateExpense(ctx context.Context, expense *models.Expense) error {
	// Generate IDs if not set
	if expense.ID == "" {
		expense.ID = uuid.New().String()
	}
	if expense.CreatedAt == 0 {
		expense.CreatedAt = time.Now().UnixNano()
	}
	if expense.CurrencyCode == "" {
		expense.CurrencyCode = models.DefaultCurrencyCode
	}

	var expenseDate any
	if expense.ExpenseDate != nil {
		expenseDate = expense.ExpenseDate.Format(models.DateLayout)
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO expenses (`+expenseColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		expense.ID, expense.Description, money.Format(expense.Amount), expense.CurrencyCode,
		expense.PaidBy, expense.GroupID, expenseDate, nullString(expense.Notes), expense.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert expense: %w", mapError(err))
	}

	return nil
}

// CreateSplits inserts the splits of an expense in order.
func (s *SQLiteStore) CreateSplits(ctx context.Context, expenseID string, splits []models.ExpenseSplit) error {
	for i := range splits {
		split := &splits[i]
		split.ExpenseID = expenseID

		_, err := s.db.ExecContext(ctx,
			`INSERT INTO expense_splits (expense_id, user_id, position, paid_share, owed_share)
			 VALUES (?, ?, ?, ?, ?)`,
			expenseID, split.UserID, i, money.Format(split.PaidShare), money.Format(split.OwedShare),
		)
		if err != nil {
			return fmt.Errorf("failed to insert split for user %s: %w", split.UserID, mapError(err))
		}
	}

	return nil
}

// GetExpense retrieves an expense by ID, including its splits.
func (s *SQLiteStore) GetExpense(ctx context.Context, expenseID string) (*models.Expense, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+expenseColumns+` FROM expenses WHERE id = ?`,
		expenseID,
	)

	expense, err := scanExpense(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("expense %s: %w", expenseID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get expense: %w", err)
	}

	splits, err := s.loadSplits(ctx, `expense_id = ?`, expenseID)
	if err != nil {
		return nil, err
	}
	expense.Splits = splits[expense.ID]

	return expense, nil
}

// ListExpensesByGroup retrieves all expenses of a group with their splits.
func (s *SQLiteStore) ListExpensesByGroup(ctx context.Context, groupID string) ([]*models.Expense, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+expenseColumns+` FROM expenses
		 WHERE group_id = ?
		 ORDER BY expense_date IS NULL, expense_date DESC, created_at DESC, id DESC`,
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses by group: %w", err)
	}
	defer rows.Close()

	var expenses []*models.Expense
	for rows.Next() {
		expense, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		expenses = append(expenses, expense)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate expenses: %w", err)
	}

	if len(expenses) == 0 {
		return expenses, nil
	}

	splits, err := s.loadSplits(ctx,
		`expense_id IN (SELECT id FROM expenses WHERE group_id = ?)`, groupID)
	if err != nil {
		return nil, err
	}
	for _, expense := range expenses {
		expense.Splits = splits[expense.ID]
	}

	return expenses, nil
}

// DeleteExpense removes an expense; its splits go with it via ON DELETE CASCADE.
func (s *SQLiteStore) DeleteExpense(ctx context.Context, expenseID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, "DELETE FROM expenses WHERE id = ?", expenseID)
	if err != nil {
		return false, fmt.Errorf("failed to delete expense: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check delete result: %w", err)
	}

	return affected > 0, nil
}

// loadSplits returns splits matching where, grouped by expense ID in insertion order.
func (s *SQLiteStore) loadSplits(ctx context.Context, where string, args ...any) (map[string][]models.ExpenseSplit, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT expense_id, user_id, paid_share, owed_share FROM expense_splits
		 WHERE `+where+` ORDER BY expense_id, position`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get splits: %w", err)
	}
	defer rows.Close()

	splits := make(map[string][]models.ExpenseSplit)
	for rows.Next() {
		var split models.ExpenseSplit
		if err := rows.Scan(&split.ExpenseID, &split.UserID, &split.PaidShare, &split.OwedShare); err != nil {
			return nil, fmt.Errorf("failed to scan split: %w", err)
		}
		splits[split.ExpenseID] = append(splits[split.ExpenseID], split)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate splits: %w", err)
	}

	return splits, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanExpense(row scanner) (*models.Expense, error) {
	expense := &models.Expense{}
	var expenseDate, notes sql.NullString

	err := row.Scan(
		&expense.ID,
		&expense.Description,
		&expense.Amount,
		&expense.CurrencyCode,
		&expense.PaidBy,
		&expense.GroupID,
		&expenseDate,
		&notes,
		&expense.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if expenseDate.Valid {
		date, err := time.Parse(models.DateLayout, expenseDate.String)
		if err != nil {
			return nil, fmt.Errorf("invalid expense_date %q: %w", expenseDate.String, err)
		}
		expense.ExpenseDate = &date
	}
	if notes.Valid {
		expense.Notes = notes.String
	}

	return expense, nil
}
