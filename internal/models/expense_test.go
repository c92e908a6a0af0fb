package models

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestExpenseSplitNetBalance(t *testing.T) {
	tests := []struct {
		name string
		paid string
		owed string
		want string
	}{
		{name: "payer covers everyone", paid: "300.00", owed: "100.00", want: "200.00"},
		{name: "participant paid nothing", paid: "0.00", owed: "100.00", want: "-100.00"},
		{name: "even", paid: "45.50", owed: "45.50", want: "0.00"},
		{name: "cents", paid: "0.10", owed: "0.20", want: "-0.10"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			split := ExpenseSplit{
				PaidShare: decimal.RequireFromString(tt.paid),
				OwedShare: decimal.RequireFromString(tt.owed),
			}
			got := split.NetBalance().StringFixed(2)
			if got != tt.want {
				t.Errorf("NetBalance() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestGroupHasMember(t *testing.T) {
	g := &Group{Members: []string{"u1", "u2"}}
	if !g.HasMember("u2") {
		t.Error("expected u2 to be a member")
	}
	if g.HasMember("u3") {
		t.Error("expected u3 not to be a member")
	}
}
