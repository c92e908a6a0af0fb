// Package storagetest holds a behavioral test suite every storage.Store
// implementation must pass.
package storagetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/money"
	"github.com/mmynk/splitledger/internal/storage"
)

// Factory returns an empty store. The suite closes it.
type Factory func(t *testing.T) storage.Store

// Run executes the suite against stores produced by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("Users", func(t *testing.T) { testUsers(t, newStore(t)) })
	t.Run("Groups", func(t *testing.T) { testGroups(t, newStore(t)) })
	t.Run("Expenses", func(t *testing.T) { testExpenses(t, newStore(t)) })
	t.Run("ExpenseOrdering", func(t *testing.T) { testExpenseOrdering(t, newStore(t)) })
	t.Run("ExpenseOrderingTies", func(t *testing.T) { testExpenseOrderingTies(t, newStore(t)) })
	t.Run("Transactions", func(t *testing.T) { testTransactions(t, newStore(t)) })
	t.Run("Cascades", func(t *testing.T) { testCascades(t, newStore(t)) })
}

type seed struct {
	alice, bob, carol *models.User
	group             *models.Group
}

func seedData(t *testing.T, store storage.Store) seed {
	t.Helper()
	ctx := context.Background()

	s := seed{
		alice: models.NewUser("alice@example.com", "Alice", "hash"),
		bob:   models.NewUser("bob@example.com", "Bob", "hash"),
		carol: models.NewUser("carol@example.com", "Carol", "hash"),
	}
	for _, u := range []*models.User{s.alice, s.bob, s.carol} {
		require.NoError(t, store.CreateUser(ctx, u))
	}

	s.group = &models.Group{
		Name:        "Trip",
		Description: "Ski weekend",
		CreatedBy:   s.alice.ID,
		Members:     []string{s.alice.ID, s.bob.ID},
	}
	require.NoError(t, store.CreateGroup(ctx, s.group))
	return s
}

func createExpense(t *testing.T, store storage.Store, expense *models.Expense, splits []models.ExpenseSplit) {
	t.Helper()
	ctx := context.Background()
	err := store.WithTx(ctx, func(tx storage.Store) error {
		if err := tx.CreateExpense(ctx, expense); err != nil {
			return err
		}
		return tx.CreateSplits(ctx, expense.ID, splits)
	})
	require.NoError(t, err)
}

func splitRow(userID, paid, owed string) models.ExpenseSplit {
	return models.ExpenseSplit{
		UserID:    userID,
		PaidShare: money.MustParse(paid),
		OwedShare: money.MustParse(owed),
	}
}

func testUsers(t *testing.T, store storage.Store) {
	defer store.Close()
	ctx := context.Background()
	s := seedData(t, store)

	got, err := store.GetUserByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, s.alice.ID, got.ID)
	assert.Equal(t, "Alice", got.DisplayName)
	assert.Equal(t, "USD", got.DefaultCurrency)

	got, err = store.GetUserByID(ctx, s.bob.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "bob@example.com", got.Email)

	missing, err := store.GetUserByEmail(ctx, "nobody@example.com")
	require.NoError(t, err)
	assert.Nil(t, missing)

	missing, err = store.GetUserByID(ctx, "nobody")
	require.NoError(t, err)
	assert.Nil(t, missing)

	dup := models.NewUser("alice@example.com", "Other Alice", "hash")
	err = store.CreateUser(ctx, dup)
	assert.ErrorIs(t, err, storage.ErrConstraintViolation)

	users, err := store.GetUsersByIDs(ctx, []string{s.alice.ID, "ghost", s.carol.ID})
	require.NoError(t, err)
	assert.Len(t, users, 2)
	assert.Contains(t, users, s.alice.ID)
	assert.Contains(t, users, s.carol.ID)

	users, err = store.GetUsersByIDs(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, users)
}

func testGroups(t *testing.T, store storage.Store) {
	defer store.Close()
	ctx := context.Background()
	s := seedData(t, store)

	assert.NotEmpty(t, s.group.ID)
	assert.NotZero(t, s.group.CreatedAt)

	got, err := store.GetGroup(ctx, s.group.ID)
	require.NoError(t, err)
	assert.Equal(t, "Trip", got.Name)
	assert.Equal(t, "Ski weekend", got.Description)
	assert.Equal(t, s.alice.ID, got.CreatedBy)
	assert.ElementsMatch(t, []string{s.alice.ID, s.bob.ID}, got.Members)

	_, err = store.GetGroup(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	member, err := store.IsGroupMember(ctx, s.group.ID, s.bob.ID)
	require.NoError(t, err)
	assert.True(t, member)

	member, err = store.IsGroupMember(ctx, s.group.ID, s.carol.ID)
	require.NoError(t, err)
	assert.False(t, member)

	require.NoError(t, store.AddGroupMembers(ctx, s.group.ID, []string{s.carol.ID, s.bob.ID}))
	got, err = store.GetGroup(ctx, s.group.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{s.alice.ID, s.bob.ID, s.carol.ID}, got.Members)

	err = store.AddGroupMembers(ctx, s.group.ID, []string{"ghost"})
	assert.ErrorIs(t, err, storage.ErrConstraintViolation)

	require.NoError(t, store.RemoveGroupMember(ctx, s.group.ID, s.bob.ID))
	err = store.RemoveGroupMember(ctx, s.group.ID, s.bob.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	groups, err := store.ListGroupsByUser(ctx, s.carol.ID)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, s.group.ID, groups[0].ID)

	groups, err = store.ListGroupsByUser(ctx, s.bob.ID)
	require.NoError(t, err)
	assert.Empty(t, groups)

	update := &models.Group{ID: s.group.ID, Name: "Ski Trip", Description: ""}
	require.NoError(t, store.UpdateGroup(ctx, update))
	got, err = store.GetGroup(ctx, s.group.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ski Trip", got.Name)
	assert.Empty(t, got.Description)
	assert.Len(t, got.Members, 2, "update must not touch membership")

	err = store.UpdateGroup(ctx, &models.Group{ID: "missing", Name: "x"})
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, store.DeleteGroup(ctx, s.group.ID))
	_, err = store.GetGroup(ctx, s.group.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.ErrorIs(t, store.DeleteGroup(ctx, s.group.ID), storage.ErrNotFound)
}

func testExpenses(t *testing.T, store storage.Store) {
	defer store.Close()
	ctx := context.Background()
	s := seedData(t, store)

	date := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	expense := &models.Expense{
		Description: "Lift passes",
		Amount:      money.MustParse("100.00"),
		PaidBy:      s.alice.ID,
		GroupID:     s.group.ID,
		ExpenseDate: &date,
		Notes:       "two days",
	}
	createExpense(t, store, expense, []models.ExpenseSplit{
		splitRow(s.alice.ID, "100.00", "33.33"),
		splitRow(s.bob.ID, "0.00", "33.33"),
		splitRow(s.carol.ID, "0.00", "33.34"),
	})

	assert.NotEmpty(t, expense.ID)
	assert.NotZero(t, expense.CreatedAt)
	assert.Equal(t, "USD", expense.CurrencyCode)

	got, err := store.GetExpense(ctx, expense.ID)
	require.NoError(t, err)
	assert.Equal(t, "Lift passes", got.Description)
	assert.Equal(t, "100.00", money.Format(got.Amount))
	assert.Equal(t, "two days", got.Notes)
	require.NotNil(t, got.ExpenseDate)
	assert.Equal(t, "2024-03-15", got.ExpenseDate.Format(models.DateLayout))
	assert.Equal(t, expense.CreatedAt, got.CreatedAt)

	require.Len(t, got.Splits, 3)
	wantOwed := []string{"33.33", "33.33", "33.34"}
	wantUsers := []string{s.alice.ID, s.bob.ID, s.carol.ID}
	for i, split := range got.Splits {
		assert.Equal(t, expense.ID, split.ExpenseID)
		assert.Equal(t, wantUsers[i], split.UserID)
		assert.Equal(t, wantOwed[i], money.Format(split.OwedShare))
	}
	assert.Equal(t, "66.67", money.Format(got.Splits[0].NetBalance()))

	_, err = store.GetExpense(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	deleted, err := store.DeleteExpense(ctx, expense.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	_, err = store.GetExpense(ctx, expense.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	deleted, err = store.DeleteExpense(ctx, expense.ID)
	require.NoError(t, err)
	assert.False(t, deleted)

	list, err := store.ListExpensesByGroup(ctx, s.group.ID)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func testExpenseOrdering(t *testing.T, store storage.Store) {
	defer store.Close()
	ctx := context.Background()
	s := seedData(t, store)

	d1 := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	d2 := time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC)

	mk := func(desc string, date *time.Time, createdAt int64) *models.Expense {
		e := &models.Expense{
			Description: desc,
			Amount:      money.MustParse("10.00"),
			PaidBy:      s.alice.ID,
			GroupID:     s.group.ID,
			ExpenseDate: date,
			CreatedAt:   createdAt,
		}
		createExpense(t, store, e, []models.ExpenseSplit{splitRow(s.alice.ID, "10.00", "10.00")})
		return e
	}

	e1 := mk("e1", &d1, 300)
	e2 := mk("e2", &d2, 100)
	e3 := mk("e3", &d2, 200)
	undated := mk("undated", nil, 400)

	list, err := store.ListExpensesByGroup(ctx, s.group.ID)
	require.NoError(t, err)

	var got []string
	for _, e := range list {
		got = append(got, e.Description)
		assert.Len(t, e.Splits, 1)
	}
	assert.Equal(t, []string{e3.Description, e2.Description, e1.Description, undated.Description}, got)
}

func testExpenseOrderingTies(t *testing.T, store storage.Store) {
	defer store.Close()
	ctx := context.Background()
	s := seedData(t, store)

	date := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	for _, id := range []string{"expense-b", "expense-c", "expense-a"} {
		e := &models.Expense{
			ID:          id,
			Description: id,
			Amount:      money.MustParse("10.00"),
			PaidBy:      s.alice.ID,
			GroupID:     s.group.ID,
			ExpenseDate: &date,
			CreatedAt:   100,
		}
		createExpense(t, store, e, []models.ExpenseSplit{splitRow(s.alice.ID, "10.00", "10.00")})
	}

	list, err := store.ListExpensesByGroup(ctx, s.group.ID)
	require.NoError(t, err)

	var got []string
	for _, e := range list {
		got = append(got, e.ID)
	}
	assert.Equal(t, []string{"expense-c", "expense-b", "expense-a"}, got)
}

func testTransactions(t *testing.T, store storage.Store) {
	defer store.Close()
	ctx := context.Background()
	s := seedData(t, store)

	errAbort := errors.New("abort")
	expense := &models.Expense{
		Description: "Rolled back",
		Amount:      money.MustParse("20.00"),
		PaidBy:      s.alice.ID,
		GroupID:     s.group.ID,
	}

	err := store.WithTx(ctx, func(tx storage.Store) error {
		if err := tx.CreateExpense(ctx, expense); err != nil {
			return err
		}
		// Reads inside the transaction see its own writes.
		if _, err := tx.GetExpense(ctx, expense.ID); err != nil {
			return err
		}
		return errAbort
	})
	require.ErrorIs(t, err, errAbort)

	_, err = store.GetExpense(ctx, expense.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound, "aborted header must not be visible")

	// A duplicate user in the splits fails the whole unit of work.
	dup := &models.Expense{
		Description: "Duplicate",
		Amount:      money.MustParse("20.00"),
		PaidBy:      s.alice.ID,
		GroupID:     s.group.ID,
	}
	err = store.WithTx(ctx, func(tx storage.Store) error {
		if err := tx.CreateExpense(ctx, dup); err != nil {
			return err
		}
		return tx.CreateSplits(ctx, dup.ID, []models.ExpenseSplit{
			splitRow(s.bob.ID, "0.00", "10.00"),
			splitRow(s.bob.ID, "0.00", "10.00"),
		})
	})
	require.ErrorIs(t, err, storage.ErrConstraintViolation)

	list, err := store.ListExpensesByGroup(ctx, s.group.ID)
	require.NoError(t, err)
	assert.Empty(t, list)

	// Nested WithTx joins the outer transaction.
	outer := &models.Expense{
		Description: "Nested",
		Amount:      money.MustParse("5.00"),
		PaidBy:      s.alice.ID,
		GroupID:     s.group.ID,
	}
	err = store.WithTx(ctx, func(tx storage.Store) error {
		return tx.WithTx(ctx, func(inner storage.Store) error {
			return inner.CreateExpense(ctx, outer)
		})
	})
	require.NoError(t, err)
	_, err = store.GetExpense(ctx, outer.ID)
	assert.NoError(t, err)
}

func testCascades(t *testing.T, store storage.Store) {
	defer store.Close()
	ctx := context.Background()
	s := seedData(t, store)

	expense := &models.Expense{
		Description: "Cabin",
		Amount:      money.MustParse("400.00"),
		PaidBy:      s.bob.ID,
		GroupID:     s.group.ID,
	}
	createExpense(t, store, expense, []models.ExpenseSplit{
		splitRow(s.alice.ID, "0.00", "200.00"),
		splitRow(s.bob.ID, "400.00", "200.00"),
	})

	require.NoError(t, store.DeleteGroup(ctx, s.group.ID))

	_, err := store.GetExpense(ctx, expense.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	// Recreating the same split keys works only if the old splits are gone.
	regroup := &models.Group{Name: "Again", CreatedBy: s.alice.ID, Members: []string{s.alice.ID}}
	require.NoError(t, store.CreateGroup(ctx, regroup))
	again := &models.Expense{
		ID:          expense.ID,
		Description: "Cabin again",
		Amount:      money.MustParse("400.00"),
		PaidBy:      s.bob.ID,
		GroupID:     regroup.ID,
	}
	createExpense(t, store, again, []models.ExpenseSplit{
		splitRow(s.alice.ID, "0.00", "200.00"),
		splitRow(s.bob.ID, "400.00", "200.00"),
	})
}
