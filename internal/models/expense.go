package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DefaultCurrencyCode is used when an expense is created without a currency.
const DefaultCurrencyCode = "USD"

// DateLayout is the wire and storage format of Expense.ExpenseDate.
const DateLayout = "2006-01-02"

// Expense represents a shared cost paid by one user for a group.
// The owed shares of Splits always add up to Amount.
type Expense struct {
	// ID is the unique identifier for the expense (UUID format).
	ID string

	// Description is a short human-readable label (e.g., "Dinner").
	Description string

	// Amount is the total cost, exact at two decimal places.
	Amount decimal.Decimal

	// CurrencyCode is a three-letter ISO 4217 code. No conversion is done.
	CurrencyCode string

	// PaidBy is the user ID of the payer.
	PaidBy string

	// GroupID is the group the expense belongs to.
	GroupID string

	// ExpenseDate is the calendar date of the expense, if known.
	ExpenseDate *time.Time

	// Notes is optional free text.
	Notes string

	// CreatedAt is the Unix timestamp in nanoseconds when the expense was stored.
	// Used to order expenses that share an ExpenseDate.
	CreatedAt int64

	// Splits holds one entry per participating user.
	Splits []ExpenseSplit

	// Payer and Group are resolved on read; nil when not loaded.
	Payer *User
	Group *Group
}

// ExpenseSplit is one user's share of an expense. It has no identity of its
// own: (ExpenseID, UserID) is unique and the row disappears with its expense.
type ExpenseSplit struct {
	ExpenseID string
	UserID    string

	// PaidShare is how much of the expense this user actually paid.
	PaidShare decimal.Decimal

	// OwedShare is how much of the expense this user is responsible for.
	OwedShare decimal.Decimal

	// User is resolved on read; nil when not loaded.
	User *User
}

// NetBalance is PaidShare minus OwedShare. Positive means the user is owed money.
func (s ExpenseSplit) NetBalance() decimal.Decimal {
	return s.PaidShare.Sub(s.OwedShare)
}

// ExpenseInput is an already field-validated request to create an expense.
type ExpenseInput struct {
	Description  string
	Amount       decimal.Decimal
	CurrencyCode string
	PaidBy       string
	GroupID      string
	ExpenseDate  *time.Time
	Notes        string
	Splits       []SplitInput
}

// SplitInput is one requested split of an ExpenseInput.
type SplitInput struct {
	UserID    string
	PaidShare decimal.Decimal
	OwedShare decimal.Decimal
}
