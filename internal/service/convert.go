package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"connectrpc.com/connect"

	"github.com/mmynk/splitledger/internal/middleware"
	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/money"
	"github.com/mmynk/splitledger/internal/validation"
	"github.com/mmynk/splitledger/pkg/api"
)

var (
	errNotMember     = errors.New("not a member of this group")
	errGroupNotFound = errors.New("group not found")
)

// callerID returns the authenticated user or an Unauthenticated error.
func callerID(ctx context.Context) (string, error) {
	userID := middleware.GetUserID(ctx)
	if userID == "" {
		return "", connect.NewError(connect.CodeUnauthenticated, errors.New("authentication required"))
	}
	return userID, nil
}

// Error metadata keys sent with CodeInvalidArgument.
const (
	ExpectedTotalHeader = "Expected-Total"
	ActualTotalHeader   = "Actual-Total"
	FieldHeaderPrefix   = "Field-"
)

// fieldHeader makes a field path usable as a header name:
// "splits[1].owed_share" becomes "Field-Splits.1.owed_share".
var fieldHeader = strings.NewReplacer("[", ".", "]", "")

// invalidArgument turns a validation failure into CodeInvalidArgument. Each
// failing field is also sent as error metadata under "Field-<path>".
func invalidArgument(err error) *connect.Error {
	cerr := connect.NewError(connect.CodeInvalidArgument, err)
	var verr *validation.Error
	if errors.As(err, &verr) {
		for field, msg := range verr.Fields {
			cerr.Meta().Set(FieldHeaderPrefix+fieldHeader.Replace(field), msg)
		}
	}
	return cerr
}

func toAPIUser(u *models.User) *api.User {
	if u == nil {
		return nil
	}
	return &api.User{
		ID:              u.ID,
		Email:           u.Email,
		DisplayName:     u.DisplayName,
		DefaultCurrency: u.DefaultCurrency,
		CreatedAt:       u.CreatedAt,
	}
}

func toAPIGroup(g *models.Group) *api.Group {
	members := g.Members
	if members == nil {
		members = []string{}
	}
	return &api.Group{
		ID:          g.ID,
		Name:        g.Name,
		Description: g.Description,
		CreatedBy:   g.CreatedBy,
		Members:     members,
		CreatedAt:   g.CreatedAt,
		UpdatedAt:   g.UpdatedAt,
	}
}

func toAPIExpense(e *models.Expense) *api.Expense {
	out := &api.Expense{
		ID:           e.ID,
		Description:  e.Description,
		Amount:       money.Format(e.Amount),
		CurrencyCode: e.CurrencyCode,
		PaidBy:       e.PaidBy,
		Payer:        toAPIUser(e.Payer),
		GroupID:      e.GroupID,
		Notes:        e.Notes,
		// stored in nanoseconds for ordering, sent in seconds like every other timestamp
		CreatedAt: time.Unix(0, e.CreatedAt).Unix(),
		Splits:    make([]*api.ExpenseSplit, len(e.Splits)),
	}
	if e.Group != nil {
		out.GroupName = e.Group.Name
	}
	if e.ExpenseDate != nil {
		out.ExpenseDate = e.ExpenseDate.Format(models.DateLayout)
	}
	for i, s := range e.Splits {
		out.Splits[i] = &api.ExpenseSplit{
			UserID:     s.UserID,
			User:       toAPIUser(s.User),
			PaidShare:  money.Format(s.PaidShare),
			OwedShare:  money.Format(s.OwedShare),
			NetBalance: money.Format(s.NetBalance()),
		}
	}
	return out
}
