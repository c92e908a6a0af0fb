package calculator

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/mmynk/splitledger/internal/models"
)

// MemberBalance represents the balance information for one group member.
type MemberBalance struct {
	UserID     string
	TotalPaid  decimal.Decimal // Sum of paid shares across all expenses
	TotalOwed  decimal.Decimal // Sum of owed shares across all expenses
	NetBalance decimal.Decimal // Positive = owed money, Negative = owes money
}

// DebtEdge represents a debt from one person to another.
type DebtEdge struct {
	From   string // Person who owes
	To     string // Person who is owed
	Amount decimal.Decimal
}

// CalculateGroupBalances aggregates the splits of a group's expenses into
// per-member balances and a simplified list of debts.
//
// Algorithm:
//   - For each split: the user paid PaidShare and owes OwedShare
//   - Aggregate: net_balance = total_paid - total_owed
//   - Debt list: greedy matching of the largest debtor with the largest creditor
//
// members may list users with no splits yet; they get a zero balance.
// Results are sorted by user ID.
func CalculateGroupBalances(members []string, expenses []*models.Expense) ([]MemberBalance, []DebtEdge) {
	balances := make(map[string]*MemberBalance)

	get := func(userID string) *MemberBalance {
		bal, ok := balances[userID]
		if !ok {
			bal = &MemberBalance{
				UserID:    userID,
				TotalPaid: decimal.Zero,
				TotalOwed: decimal.Zero,
			}
			balances[userID] = bal
		}
		return bal
	}

	for _, m := range members {
		get(m)
	}

	for _, expense := range expenses {
		for _, split := range expense.Splits {
			bal := get(split.UserID)
			bal.TotalPaid = bal.TotalPaid.Add(split.PaidShare)
			bal.TotalOwed = bal.TotalOwed.Add(split.OwedShare)
		}
	}

	memberBalances := make([]MemberBalance, 0, len(balances))
	for _, bal := range balances {
		bal.NetBalance = bal.TotalPaid.Sub(bal.TotalOwed)
		memberBalances = append(memberBalances, *bal)
	}
	sort.Slice(memberBalances, func(i, j int) bool {
		return memberBalances[i].UserID < memberBalances[j].UserID
	})

	return memberBalances, SimplifyDebts(memberBalances)
}

// SimplifyDebts turns net balances into a short list of payments.
// Amounts are exact; nothing is dropped as rounding noise.
func SimplifyDebts(balances []MemberBalance) []DebtEdge {
	type party struct {
		userID    string
		remaining decimal.Decimal
	}

	var creditors, debtors []party
	for _, bal := range balances {
		switch bal.NetBalance.Sign() {
		case 1:
			creditors = append(creditors, party{bal.UserID, bal.NetBalance})
		case -1:
			debtors = append(debtors, party{bal.UserID, bal.NetBalance.Neg()})
		}
	}

	byAmount := func(parties []party) {
		sort.Slice(parties, func(i, j int) bool {
			if c := parties[i].remaining.Cmp(parties[j].remaining); c != 0 {
				return c > 0
			}
			return parties[i].userID < parties[j].userID
		})
	}
	byAmount(creditors)
	byAmount(debtors)

	var edges []DebtEdge
	i, j := 0, 0
	for i < len(debtors) && j < len(creditors) {
		debtor := &debtors[i]
		creditor := &creditors[j]

		amount := decimal.Min(debtor.remaining, creditor.remaining)
		edges = append(edges, DebtEdge{
			From:   debtor.userID,
			To:     creditor.userID,
			Amount: amount,
		})

		debtor.remaining = debtor.remaining.Sub(amount)
		creditor.remaining = creditor.remaining.Sub(amount)

		if debtor.remaining.IsZero() {
			i++
		}
		if creditor.remaining.IsZero() {
			j++
		}
	}

	return edges
}
