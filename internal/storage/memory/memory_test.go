package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/money"
	"github.com/mmynk/splitledger/internal/storage"
	"github.com/mmynk/splitledger/internal/storage/storagetest"
)

func TestStoreConformance(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Store {
		return New()
	})
}

func TestFailOn(t *testing.T) {
	store := New()
	ctx := context.Background()

	errBoom := errors.New("boom")
	store.FailOn(OpCreateUser, errBoom)

	err := store.CreateUser(ctx, models.NewUser("a@example.com", "A", "hash"))
	if !errors.Is(err, errBoom) {
		t.Fatalf("expected injected error, got %v", err)
	}
	if store.Calls(OpCreateUser) != 1 {
		t.Errorf("expected 1 call, got %d", store.Calls(OpCreateUser))
	}

	store.ClearFaults()
	if err := store.CreateUser(ctx, models.NewUser("a@example.com", "A", "hash")); err != nil {
		t.Fatalf("CreateUser after ClearFaults failed: %v", err)
	}
	if store.TotalCalls() != 2 {
		t.Errorf("expected 2 total calls, got %d", store.TotalCalls())
	}
}

func TestReadersNeverSeeHeaderWithoutSplits(t *testing.T) {
	store := New()
	ctx := context.Background()

	alice := models.NewUser("alice@example.com", "Alice", "hash")
	bob := models.NewUser("bob@example.com", "Bob", "hash")
	for _, u := range []*models.User{alice, bob} {
		if err := store.CreateUser(ctx, u); err != nil {
			t.Fatalf("CreateUser failed: %v", err)
		}
	}
	group := &models.Group{Name: "G", CreatedBy: alice.ID, Members: []string{alice.ID, bob.ID}}
	if err := store.CreateGroup(ctx, group); err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}

	var wg sync.WaitGroup
	stop := make(chan struct{})
	partial := make(chan string, 1)

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			list, err := store.ListExpensesByGroup(ctx, group.ID)
			if err != nil {
				continue
			}
			for _, e := range list {
				if len(e.Splits) != 2 {
					select {
					case partial <- e.ID:
					default:
					}
				}
			}
		}
	}()

	for i := 0; i < 50; i++ {
		expense := &models.Expense{
			Description: "Coffee",
			Amount:      money.MustParse("8.00"),
			PaidBy:      alice.ID,
			GroupID:     group.ID,
		}
		err := store.WithTx(ctx, func(tx storage.Store) error {
			if err := tx.CreateExpense(ctx, expense); err != nil {
				return err
			}
			return tx.CreateSplits(ctx, expense.ID, []models.ExpenseSplit{
				{UserID: alice.ID, PaidShare: money.MustParse("8.00"), OwedShare: money.MustParse("4.00")},
				{UserID: bob.ID, PaidShare: money.Zero, OwedShare: money.MustParse("4.00")},
			})
		})
		if err != nil {
			t.Fatalf("WithTx failed: %v", err)
		}
	}

	close(stop)
	wg.Wait()

	select {
	case id := <-partial:
		t.Fatalf("reader observed expense %s without all of its splits", id)
	default:
	}
}
