package api

// Split is one requested share of a new expense. PaidShare defaults to "0.00".
type Split struct {
	UserID    string `json:"user_id" validate:"required"`
	PaidShare string `json:"paid_share,omitempty" validate:"omitempty,money"`
	OwedShare string `json:"owed_share" validate:"required,money"`
}

type CreateExpenseRequest struct {
	Description  string `json:"description" validate:"required,max=255"`
	Amount       string `json:"amount" validate:"required,positive_money"`
	CurrencyCode string `json:"currency_code,omitempty" validate:"omitempty,iso4217"`
	PaidBy       string `json:"paid_by" validate:"required"`
	GroupID      string `json:"group_id" validate:"required"`
	// ExpenseDate is a calendar date, YYYY-MM-DD.
	ExpenseDate string  `json:"expense_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Notes       string  `json:"notes,omitempty" validate:"max=2000"`
	Splits      []Split `json:"splits" validate:"required,min=1,unique=UserID,dive"`
}

type CreateExpenseResponse struct {
	Expense *Expense `json:"expense"`
}

// ExpenseSplit is a stored share. NetBalance is PaidShare minus OwedShare.
type ExpenseSplit struct {
	UserID     string `json:"user_id"`
	User       *User  `json:"user,omitempty"`
	PaidShare  string `json:"paid_share"`
	OwedShare  string `json:"owed_share"`
	NetBalance string `json:"net_balance"`
}

type Expense struct {
	ID           string          `json:"id"`
	Description  string          `json:"description"`
	Amount       string          `json:"amount"`
	CurrencyCode string          `json:"currency_code"`
	PaidBy       string          `json:"paid_by"`
	Payer        *User           `json:"payer,omitempty"`
	GroupID      string          `json:"group_id"`
	GroupName    string          `json:"group_name,omitempty"`
	ExpenseDate  string          `json:"expense_date,omitempty"`
	Notes        string          `json:"notes,omitempty"`
	CreatedAt    int64           `json:"created_at"`
	Splits       []*ExpenseSplit `json:"splits"`
}

type GetExpenseRequest struct {
	ExpenseID string `json:"expense_id" validate:"required"`
}

type GetExpenseResponse struct {
	Expense *Expense `json:"expense"`
}

type ListGroupExpensesRequest struct {
	GroupID string `json:"group_id" validate:"required"`
}

type ListGroupExpensesResponse struct {
	Expenses []*Expense `json:"expenses"`
}

type DeleteExpenseRequest struct {
	ExpenseID string `json:"expense_id" validate:"required"`
}
