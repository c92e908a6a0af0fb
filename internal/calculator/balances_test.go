package calculator

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/mmynk/splitledger/internal/models"
)

func expenseWithSplits(splits ...models.SplitInput) *models.Expense {
	e := &models.Expense{}
	for _, s := range splits {
		e.Splits = append(e.Splits, models.ExpenseSplit{
			UserID:    s.UserID,
			PaidShare: s.PaidShare,
			OwedShare: s.OwedShare,
		})
	}
	return e
}

func TestCalculateGroupBalances(t *testing.T) {
	expenses := []*models.Expense{
		// alice pays 300 for three
		expenseWithSplits(
			split("alice", "300.00", "100.00"),
			split("bob", "0.00", "100.00"),
			split("carol", "0.00", "100.00"),
		),
		// bob pays 60 for himself and carol
		expenseWithSplits(
			split("bob", "60.00", "30.00"),
			split("carol", "0.00", "30.00"),
		),
	}

	balances, debts := CalculateGroupBalances([]string{"alice", "bob", "carol", "dave"}, expenses)

	want := map[string]struct{ paid, owed, net string }{
		"alice": {"300.00", "100.00", "200.00"},
		"bob":   {"60.00", "130.00", "-70.00"},
		"carol": {"0.00", "130.00", "-130.00"},
		"dave":  {"0.00", "0.00", "0.00"},
	}

	if len(balances) != len(want) {
		t.Fatalf("expected %d balances, got %d", len(want), len(balances))
	}
	for i := 1; i < len(balances); i++ {
		if balances[i-1].UserID > balances[i].UserID {
			t.Errorf("balances not sorted by user ID: %s before %s", balances[i-1].UserID, balances[i].UserID)
		}
	}
	for _, bal := range balances {
		w := want[bal.UserID]
		if got := bal.TotalPaid.StringFixed(2); got != w.paid {
			t.Errorf("%s TotalPaid = %s, want %s", bal.UserID, got, w.paid)
		}
		if got := bal.TotalOwed.StringFixed(2); got != w.owed {
			t.Errorf("%s TotalOwed = %s, want %s", bal.UserID, got, w.owed)
		}
		if got := bal.NetBalance.StringFixed(2); got != w.net {
			t.Errorf("%s NetBalance = %s, want %s", bal.UserID, got, w.net)
		}
	}

	// carol (largest debtor) settles with alice first, then bob
	if len(debts) != 2 {
		t.Fatalf("expected 2 debts, got %d: %+v", len(debts), debts)
	}
	if debts[0].From != "carol" || debts[0].To != "alice" || debts[0].Amount.StringFixed(2) != "130.00" {
		t.Errorf("debt[0] = %+v, want carol -> alice 130.00", debts[0])
	}
	if debts[1].From != "bob" || debts[1].To != "alice" || debts[1].Amount.StringFixed(2) != "70.00" {
		t.Errorf("debt[1] = %+v, want bob -> alice 70.00", debts[1])
	}
}

func TestSimplifyDebtsKeepsCents(t *testing.T) {
	balances := []MemberBalance{
		{UserID: "a", NetBalance: decimal.RequireFromString("0.01")},
		{UserID: "b", NetBalance: decimal.RequireFromString("-0.01")},
	}

	debts := SimplifyDebts(balances)
	if len(debts) != 1 {
		t.Fatalf("expected 1 debt, got %d", len(debts))
	}
	if debts[0].From != "b" || debts[0].To != "a" || debts[0].Amount.StringFixed(2) != "0.01" {
		t.Errorf("unexpected debt %+v", debts[0])
	}
}

func TestCalculateGroupBalancesEmpty(t *testing.T) {
	balances, debts := CalculateGroupBalances(nil, nil)
	if len(balances) != 0 || len(debts) != 0 {
		t.Errorf("expected no balances or debts, got %v %v", balances, debts)
	}
}
