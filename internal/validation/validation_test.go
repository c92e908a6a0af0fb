package validation

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/splitledger/pkg/api"
)

func validExpense() *api.CreateExpenseRequest {
	return &api.CreateExpenseRequest{
		Description: "Dinner",
		Amount:      "300.00",
		PaidBy:      "alice",
		GroupID:     "g1",
		ExpenseDate: "2024-03-15",
		Splits: []api.Split{
			{UserID: "alice", PaidShare: "300.00", OwedShare: "100.00"},
			{UserID: "bob", OwedShare: "100.00"},
			{UserID: "carol", OwedShare: "100.00"},
		},
	}
}

func TestCreateExpenseRequest(t *testing.T) {
	v := New()

	tests := []struct {
		name      string
		mutate    func(r *api.CreateExpenseRequest)
		wantField string
	}{
		{name: "valid", mutate: func(r *api.CreateExpenseRequest) {}},
		{name: "valid with currency", mutate: func(r *api.CreateExpenseRequest) { r.CurrencyCode = "EUR" }},
		{
			name:      "missing description",
			mutate:    func(r *api.CreateExpenseRequest) { r.Description = "" },
			wantField: "description",
		},
		{
			name:      "description too long",
			mutate:    func(r *api.CreateExpenseRequest) { r.Description = strings.Repeat("x", 256) },
			wantField: "description",
		},
		{
			name:      "zero amount",
			mutate:    func(r *api.CreateExpenseRequest) { r.Amount = "0.00" },
			wantField: "amount",
		},
		{
			name:      "amount with three decimals",
			mutate:    func(r *api.CreateExpenseRequest) { r.Amount = "300.001" },
			wantField: "amount",
		},
		{
			name:      "amount not a number",
			mutate:    func(r *api.CreateExpenseRequest) { r.Amount = "three hundred" },
			wantField: "amount",
		},
		{
			name:      "bad currency",
			mutate:    func(r *api.CreateExpenseRequest) { r.CurrencyCode = "XXXX" },
			wantField: "currency_code",
		},
		{
			name:      "bad date",
			mutate:    func(r *api.CreateExpenseRequest) { r.ExpenseDate = "15/03/2024" },
			wantField: "expense_date",
		},
		{
			name:      "no splits",
			mutate:    func(r *api.CreateExpenseRequest) { r.Splits = nil },
			wantField: "splits",
		},
		{
			name:      "negative owed share",
			mutate:    func(r *api.CreateExpenseRequest) { r.Splits[1].OwedShare = "-1.00" },
			wantField: "splits[1].owed_share",
		},
		{
			name:      "negative paid share",
			mutate:    func(r *api.CreateExpenseRequest) { r.Splits[0].PaidShare = "-300.00" },
			wantField: "splits[0].paid_share",
		},
		{
			name:      "missing split user",
			mutate:    func(r *api.CreateExpenseRequest) { r.Splits[2].UserID = "" },
			wantField: "splits[2].user_id",
		},
		{
			name:      "duplicate split user",
			mutate:    func(r *api.CreateExpenseRequest) { r.Splits[2].UserID = "bob" },
			wantField: "splits",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validExpense()
			tt.mutate(req)

			err := v.Struct(req)
			if tt.wantField == "" {
				require.NoError(t, err)
				return
			}

			var verr *Error
			require.True(t, errors.As(err, &verr), "expected *Error, got %v", err)
			assert.Contains(t, verr.Fields, tt.wantField)
			assert.NotEmpty(t, verr.Error())
		})
	}
}

func TestMoneyMessage(t *testing.T) {
	v := New()

	req := validExpense()
	req.Splits[0].OwedShare = "33.333"

	err := v.Struct(req)
	var verr *Error
	require.ErrorAs(t, err, &verr)
	assert.Equal(t,
		"owed_share must be a non-negative amount with at most 2 decimal places",
		verr.Fields["splits[0].owed_share"])
}

func TestRegisterRequest(t *testing.T) {
	v := New()

	ok := &api.RegisterRequest{Email: "a@example.com", DisplayName: "A", Password: "longenough"}
	require.NoError(t, v.Struct(ok))

	bad := &api.RegisterRequest{Email: "not-an-email", DisplayName: "", Password: "short"}
	err := v.Struct(bad)
	var verr *Error
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "email")
	assert.Contains(t, verr.Fields, "display_name")
	assert.Contains(t, verr.Fields, "password")
}
