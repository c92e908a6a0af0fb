package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"connectrpc.com/connect"
	"github.com/shopspring/decimal"
	"google.golang.org/protobuf/types/known/emptypb"

	"github.com/mmynk/splitledger/internal/calculator"
	"github.com/mmynk/splitledger/internal/expense"
	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/money"
	"github.com/mmynk/splitledger/internal/storage"
	"github.com/mmynk/splitledger/internal/validation"
	"github.com/mmynk/splitledger/pkg/api"
	"github.com/mmynk/splitledger/pkg/api/apiconnect"
)

var errExpenseNotFound = errors.New("expense not found")

// ExpenseService implements the Connect ExpenseService.
type ExpenseService struct {
	expenses  *expense.Service
	store     storage.Store
	validator *validation.Validator
}

var _ apiconnect.ExpenseServiceHandler = (*ExpenseService)(nil)

// NewExpenseService creates a new ExpenseService with the given storage backend.
func NewExpenseService(store storage.Store, validator *validation.Validator) *ExpenseService {
	return &ExpenseService{
		expenses:  expense.NewService(store),
		store:     store,
		validator: validator,
	}
}

// CreateExpense records an expense and its splits.
func (s *ExpenseService) CreateExpense(ctx context.Context, req *connect.Request[api.CreateExpenseRequest]) (*connect.Response[api.CreateExpenseResponse], error) {
	msg := req.Msg
	slog.Info("CreateExpense request received",
		"group_id", msg.GroupID,
		"amount", msg.Amount,
		"splits_count", len(msg.Splits),
	)

	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.validator.Struct(msg); err != nil {
		slog.Warn("CreateExpense invalid request", "error", err)
		return nil, invalidArgument(err)
	}

	in, err := toExpenseInput(msg)
	if err != nil {
		return nil, invalidArgument(err)
	}

	group, err := loadMemberGroup(ctx, s.store, msg.GroupID, userID)
	if err != nil {
		return nil, err
	}

	if err := s.checkParticipants(ctx, group, in); err != nil {
		return nil, err
	}

	if in.CurrencyCode == "" {
		payer, err := s.store.GetUserByID(ctx, in.PaidBy)
		if err != nil {
			slog.Error("CreateExpense failed to load payer", "user_id", in.PaidBy, "error", err)
			return nil, connect.NewError(connect.CodeInternal, err)
		}
		in.CurrencyCode = payer.DefaultCurrency
	}

	created, err := s.expenses.AddExpense(ctx, in)
	if err != nil {
		return nil, expenseError("CreateExpense", err)
	}

	return connect.NewResponse(&api.CreateExpenseResponse{
		Expense: toAPIExpense(created),
	}), nil
}

// GetExpense retrieves one expense with its splits.
func (s *ExpenseService) GetExpense(ctx context.Context, req *connect.Request[api.GetExpenseRequest]) (*connect.Response[api.GetExpenseResponse], error) {
	slog.Info("GetExpense request received", "expense_id", req.Msg.ExpenseID)

	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req.Msg); err != nil {
		return nil, invalidArgument(err)
	}

	found, err := s.visibleExpense(ctx, req.Msg.ExpenseID, userID)
	if err != nil {
		return nil, err
	}

	return connect.NewResponse(&api.GetExpenseResponse{
		Expense: toAPIExpense(found),
	}), nil
}

// ListGroupExpenses returns a group's expenses, newest expense date first.
func (s *ExpenseService) ListGroupExpenses(ctx context.Context, req *connect.Request[api.ListGroupExpensesRequest]) (*connect.Response[api.ListGroupExpensesResponse], error) {
	slog.Info("ListGroupExpenses request received", "group_id", req.Msg.GroupID)

	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req.Msg); err != nil {
		return nil, invalidArgument(err)
	}

	if _, err := loadMemberGroup(ctx, s.store, req.Msg.GroupID, userID); err != nil {
		return nil, err
	}

	expenses, err := s.expenses.GetExpensesByGroup(ctx, req.Msg.GroupID)
	if err != nil {
		return nil, expenseError("ListGroupExpenses", err)
	}

	out := make([]*api.Expense, len(expenses))
	for i, e := range expenses {
		out[i] = toAPIExpense(e)
	}

	slog.Info("ListGroupExpenses successful", "group_id", req.Msg.GroupID, "count", len(out))

	return connect.NewResponse(&api.ListGroupExpensesResponse{Expenses: out}), nil
}

// DeleteExpense removes an expense and its splits.
func (s *ExpenseService) DeleteExpense(ctx context.Context, req *connect.Request[api.DeleteExpenseRequest]) (*connect.Response[emptypb.Empty], error) {
	slog.Info("DeleteExpense request received", "expense_id", req.Msg.ExpenseID)

	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req.Msg); err != nil {
		return nil, invalidArgument(err)
	}

	if _, err := s.visibleExpense(ctx, req.Msg.ExpenseID, userID); err != nil {
		return nil, err
	}

	deleted, err := s.expenses.DeleteExpense(ctx, req.Msg.ExpenseID)
	if err != nil {
		return nil, expenseError("DeleteExpense", err)
	}
	if !deleted {
		return nil, connect.NewError(connect.CodeNotFound, errExpenseNotFound)
	}

	slog.Info("Expense deleted", "expense_id", req.Msg.ExpenseID)

	return connect.NewResponse(&emptypb.Empty{}), nil
}

// visibleExpense loads an expense the caller may see: it must exist and
// belong to one of the caller's groups.
func (s *ExpenseService) visibleExpense(ctx context.Context, expenseID, userID string) (*models.Expense, error) {
	found, err := s.expenses.GetExpense(ctx, expenseID)
	if err != nil {
		return nil, expenseError("GetExpense", err)
	}
	if found == nil {
		return nil, connect.NewError(connect.CodeNotFound, errExpenseNotFound)
	}

	ok, err := s.store.IsGroupMember(ctx, found.GroupID, userID)
	if err != nil {
		slog.Error("Membership check failed", "group_id", found.GroupID, "error", err)
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	if !ok {
		return nil, connect.NewError(connect.CodePermissionDenied, errNotMember)
	}
	return found, nil
}

// checkParticipants requires the payer and every split user to be group members.
func (s *ExpenseService) checkParticipants(ctx context.Context, group *models.Group, in models.ExpenseInput) error {
	ids := []string{in.PaidBy}
	for _, split := range in.Splits {
		ids = append(ids, split.UserID)
	}

	users, err := s.store.GetUsersByIDs(ctx, ids)
	if err != nil {
		slog.Error("CreateExpense failed to resolve users", "error", err)
		return connect.NewError(connect.CodeInternal, err)
	}

	for _, id := range ids {
		if _, ok := users[id]; !ok {
			return connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("unknown user %s", id))
		}
		if !group.HasMember(id) {
			return connect.NewError(connect.CodeFailedPrecondition,
				fmt.Errorf("user %s is not a member of group %s", id, group.ID))
		}
	}
	return nil
}

// toExpenseInput parses the field-validated request into domain values.
func toExpenseInput(msg *api.CreateExpenseRequest) (models.ExpenseInput, error) {
	amount, err := money.ParseNonNegative(msg.Amount)
	if err != nil {
		return models.ExpenseInput{}, fmt.Errorf("amount: %w", err)
	}

	in := models.ExpenseInput{
		Description:  msg.Description,
		Amount:       amount,
		CurrencyCode: msg.CurrencyCode,
		PaidBy:       msg.PaidBy,
		GroupID:      msg.GroupID,
		Notes:        msg.Notes,
		Splits:       make([]models.SplitInput, len(msg.Splits)),
	}

	if msg.ExpenseDate != "" {
		date, err := time.Parse(models.DateLayout, msg.ExpenseDate)
		if err != nil {
			return models.ExpenseInput{}, fmt.Errorf("expense_date: %w", err)
		}
		in.ExpenseDate = &date
	}

	for i, split := range msg.Splits {
		paid := decimal.Zero
		if split.PaidShare != "" {
			if paid, err = money.ParseNonNegative(split.PaidShare); err != nil {
				return models.ExpenseInput{}, fmt.Errorf("splits[%d].paid_share: %w", i, err)
			}
		}
		owed, err := money.ParseNonNegative(split.OwedShare)
		if err != nil {
			return models.ExpenseInput{}, fmt.Errorf("splits[%d].owed_share: %w", i, err)
		}
		in.Splits[i] = models.SplitInput{UserID: split.UserID, PaidShare: paid, OwedShare: owed}
	}

	return in, nil
}

// expenseError maps core errors to Connect codes. A split mismatch carries
// the expected and actual totals as error metadata.
func expenseError(rpc string, err error) error {
	var mismatch *calculator.SplitMismatchError
	if errors.As(err, &mismatch) {
		slog.Warn(rpc+" split mismatch",
			"expected", mismatch.ExpectedString(),
			"actual", mismatch.ActualString(),
		)
		cerr := connect.NewError(connect.CodeInvalidArgument, err)
		cerr.Meta().Set(ExpectedTotalHeader, mismatch.ExpectedString())
		cerr.Meta().Set(ActualTotalHeader, mismatch.ActualString())
		return cerr
	}

	switch {
	case errors.Is(err, money.ErrExcessPrecision), errors.Is(err, money.ErrNegativeAmount):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case errors.Is(err, storage.ErrNotFound):
		return connect.NewError(connect.CodeNotFound, err)
	case errors.Is(err, storage.ErrConstraintViolation):
		slog.Warn(rpc+" constraint violation", "error", err)
		return connect.NewError(connect.CodeFailedPrecondition, err)
	}

	slog.Error(rpc+" failed", "error", err)
	return connect.NewError(connect.CodeInternal, err)
}
