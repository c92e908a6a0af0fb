package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"connectrpc.com/connect"
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

var errNotCreator = errors.New("only the group creator can do this")

// GroupService implements the Connect GroupService
type GroupService struct {
	store     storage.Store
	expenses  *expense.Service
	validator *validation.Validator
}

var _ apiconnect.GroupServiceHandler = (*GroupService)(nil)

// NewGroupService creates a new GroupService with the given storage backend.
func NewGroupService(store storage.Store, validator *validation.Validator) *GroupService {
	return &GroupService{
		store:     store,
		expenses:  expense.NewService(store),
		validator: validator,
	}
}

// CreateGroup creates a new group. The caller becomes its first member.
func (s *GroupService) CreateGroup(ctx context.Context, req *connect.Request[api.CreateGroupRequest]) (*connect.Response[api.CreateGroupResponse], error) {
	slog.Info("CreateGroup request received",
		"name", req.Msg.Name,
		"members_count", len(req.Msg.MemberIDs),
	)

	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req.Msg); err != nil {
		return nil, invalidArgument(err)
	}

	members := dedupe(append([]string{userID}, req.Msg.MemberIDs...))
	if err := s.requireUsers(ctx, members); err != nil {
		return nil, err
	}

	group := &models.Group{
		Name:        req.Msg.Name,
		Description: req.Msg.Description,
		CreatedBy:   userID,
		Members:     members,
	}

	// Save to storage (generates ID and CreatedAt)
	if err := s.store.CreateGroup(ctx, group); err != nil {
		slog.Error("CreateGroup failed", "error", err)
		return nil, storeError(err)
	}

	slog.Info("Group created", "group_id", group.ID, "created_by", userID)

	return connect.NewResponse(&api.CreateGroupResponse{
		Group: toAPIGroup(group),
	}), nil
}

// GetGroup retrieves a group the caller belongs to.
func (s *GroupService) GetGroup(ctx context.Context, req *connect.Request[api.GetGroupRequest]) (*connect.Response[api.GetGroupResponse], error) {
	slog.Info("GetGroup request received", "group_id", req.Msg.GroupID)

	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req.Msg); err != nil {
		return nil, invalidArgument(err)
	}

	group, err := loadMemberGroup(ctx, s.store, req.Msg.GroupID, userID)
	if err != nil {
		return nil, err
	}

	return connect.NewResponse(&api.GetGroupResponse{
		Group: toAPIGroup(group),
	}), nil
}

// ListGroups returns the caller's groups, newest first.
func (s *GroupService) ListGroups(ctx context.Context, req *connect.Request[api.ListGroupsRequest]) (*connect.Response[api.ListGroupsResponse], error) {
	slog.Info("ListGroups request received")

	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}

	groups, err := s.store.ListGroupsByUser(ctx, userID)
	if err != nil {
		slog.Error("ListGroups failed", "error", err)
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	out := make([]*api.Group, len(groups))
	for i, group := range groups {
		out[i] = toAPIGroup(group)
	}

	slog.Info("ListGroups successful", "user_id", userID, "count", len(out))

	return connect.NewResponse(&api.ListGroupsResponse{Groups: out}), nil
}

// UpdateGroup changes a group's name and description.
func (s *GroupService) UpdateGroup(ctx context.Context, req *connect.Request[api.UpdateGroupRequest]) (*connect.Response[api.UpdateGroupResponse], error) {
	slog.Info("UpdateGroup request received",
		"group_id", req.Msg.GroupID,
		"name", req.Msg.Name,
	)

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

	var updated *models.Group
	err = s.store.WithTx(ctx, func(tx storage.Store) error {
		if err := tx.UpdateGroup(ctx, &models.Group{
			ID:          req.Msg.GroupID,
			Name:        req.Msg.Name,
			Description: req.Msg.Description,
		}); err != nil {
			return err
		}
		// re-read for members and timestamps
		g, err := tx.GetGroup(ctx, req.Msg.GroupID)
		updated = g
		return err
	})
	if err != nil {
		slog.Error("UpdateGroup failed", "group_id", req.Msg.GroupID, "error", err)
		return nil, storeError(err)
	}

	slog.Info("Group updated", "group_id", updated.ID)

	return connect.NewResponse(&api.UpdateGroupResponse{
		Group: toAPIGroup(updated),
	}), nil
}

// DeleteGroup removes a group with all of its expenses. Only the creator may delete.
func (s *GroupService) DeleteGroup(ctx context.Context, req *connect.Request[api.DeleteGroupRequest]) (*connect.Response[emptypb.Empty], error) {
	slog.Info("DeleteGroup request received", "group_id", req.Msg.GroupID)

	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req.Msg); err != nil {
		return nil, invalidArgument(err)
	}

	group, err := loadMemberGroup(ctx, s.store, req.Msg.GroupID, userID)
	if err != nil {
		return nil, err
	}
	if group.CreatedBy != userID {
		return nil, connect.NewError(connect.CodePermissionDenied, errNotCreator)
	}

	if err := s.store.DeleteGroup(ctx, group.ID); err != nil {
		slog.Error("DeleteGroup failed", "error", err)
		return nil, storeError(err)
	}

	slog.Info("Group deleted", "group_id", group.ID)

	return connect.NewResponse(&emptypb.Empty{}), nil
}

// AddMembers adds existing users to a group. Users already in it are skipped.
func (s *GroupService) AddMembers(ctx context.Context, req *connect.Request[api.AddMembersRequest]) (*connect.Response[api.AddMembersResponse], error) {
	slog.Info("AddMembers request received",
		"group_id", req.Msg.GroupID,
		"users_count", len(req.Msg.UserIDs),
	)

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

	userIDs := dedupe(req.Msg.UserIDs)
	if err := s.requireUsers(ctx, userIDs); err != nil {
		return nil, err
	}

	var group *models.Group
	err = s.store.WithTx(ctx, func(tx storage.Store) error {
		if err := tx.AddGroupMembers(ctx, req.Msg.GroupID, userIDs); err != nil {
			return err
		}
		g, err := tx.GetGroup(ctx, req.Msg.GroupID)
		group = g
		return err
	})
	if err != nil {
		slog.Error("AddMembers failed", "group_id", req.Msg.GroupID, "error", err)
		return nil, storeError(err)
	}

	slog.Info("Members added", "group_id", group.ID, "members_count", len(group.Members))

	return connect.NewResponse(&api.AddMembersResponse{Group: toAPIGroup(group)}), nil
}

// RemoveMember takes a user out of a group. Members may remove themselves;
// the creator may remove anyone but themselves.
func (s *GroupService) RemoveMember(ctx context.Context, req *connect.Request[api.RemoveMemberRequest]) (*connect.Response[emptypb.Empty], error) {
	slog.Info("RemoveMember request received",
		"group_id", req.Msg.GroupID,
		"user_id", req.Msg.UserID,
	)

	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req.Msg); err != nil {
		return nil, invalidArgument(err)
	}

	group, err := loadMemberGroup(ctx, s.store, req.Msg.GroupID, userID)
	if err != nil {
		return nil, err
	}

	switch {
	case req.Msg.UserID == group.CreatedBy:
		return nil, connect.NewError(connect.CodeFailedPrecondition, errors.New("the group creator cannot be removed"))
	case req.Msg.UserID != userID && userID != group.CreatedBy:
		return nil, connect.NewError(connect.CodePermissionDenied, errNotCreator)
	}

	if err := s.store.RemoveGroupMember(ctx, group.ID, req.Msg.UserID); err != nil {
		slog.Warn("RemoveMember failed", "group_id", group.ID, "user_id", req.Msg.UserID, "error", err)
		return nil, storeError(err)
	}

	slog.Info("Member removed", "group_id", group.ID, "user_id", req.Msg.UserID)

	return connect.NewResponse(&emptypb.Empty{}), nil
}

// GetGroupBalances aggregates every expense of a group into per-member
// balances and a simplified list of debts.
func (s *GroupService) GetGroupBalances(ctx context.Context, req *connect.Request[api.GetGroupBalancesRequest]) (*connect.Response[api.GetGroupBalancesResponse], error) {
	groupID := req.Msg.GroupID
	slog.Info("GetGroupBalances request received", "group_id", groupID)

	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req.Msg); err != nil {
		return nil, invalidArgument(err)
	}

	group, err := loadMemberGroup(ctx, s.store, groupID, userID)
	if err != nil {
		return nil, err
	}

	expenses, err := s.expenses.GetExpensesByGroup(ctx, groupID)
	if err != nil {
		slog.Error("GetGroupBalances failed - could not list expenses", "group_id", groupID, "error", err)
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	memberBalances, debtEdges := calculator.CalculateGroupBalances(group.Members, expenses)

	ids := make([]string, len(memberBalances))
	for i, bal := range memberBalances {
		ids[i] = bal.UserID
	}
	users, err := s.store.GetUsersByIDs(ctx, ids)
	if err != nil {
		slog.Error("GetGroupBalances failed - could not resolve users", "group_id", groupID, "error", err)
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	balances := make([]*api.MemberBalance, len(memberBalances))
	for i, bal := range memberBalances {
		balances[i] = &api.MemberBalance{
			UserID:     bal.UserID,
			TotalPaid:  money.Format(bal.TotalPaid),
			TotalOwed:  money.Format(bal.TotalOwed),
			NetBalance: money.Format(bal.NetBalance),
		}
		if u, ok := users[bal.UserID]; ok {
			balances[i].DisplayName = u.DisplayName
		}
	}

	debts := make([]*api.Debt, len(debtEdges))
	for i, debt := range debtEdges {
		debts[i] = &api.Debt{
			FromUserID: debt.From,
			ToUserID:   debt.To,
			Amount:     money.Format(debt.Amount),
		}
	}

	slog.Info("GetGroupBalances successful",
		"group_id", groupID,
		"expenses_count", len(expenses),
		"members_count", len(balances),
		"debts_count", len(debts),
	)

	return connect.NewResponse(&api.GetGroupBalancesResponse{
		Balances: balances,
		Debts:    debts,
	}), nil
}

// requireUsers fails with InvalidArgument naming the first unknown user.
func (s *GroupService) requireUsers(ctx context.Context, ids []string) error {
	users, err := s.store.GetUsersByIDs(ctx, ids)
	if err != nil {
		slog.Error("Failed to resolve users", "error", err)
		return connect.NewError(connect.CodeInternal, err)
	}
	for _, id := range ids {
		if _, ok := users[id]; !ok {
			return connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("unknown user %s", id))
		}
	}
	return nil
}

// loadMemberGroup fetches groupID and checks that userID belongs to it.
func loadMemberGroup(ctx context.Context, store storage.Store, groupID, userID string) (*models.Group, error) {
	group, err := store.GetGroup(ctx, groupID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, connect.NewError(connect.CodeNotFound, errGroupNotFound)
	}
	if err != nil {
		slog.Error("Failed to load group", "group_id", groupID, "error", err)
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	if !group.HasMember(userID) {
		return nil, connect.NewError(connect.CodePermissionDenied, errNotMember)
	}
	return group, nil
}

// storeError maps storage sentinels to Connect codes.
func storeError(err error) error {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return connect.NewError(connect.CodeNotFound, err)
	case errors.Is(err, storage.ErrConstraintViolation):
		return connect.NewError(connect.CodeFailedPrecondition, err)
	}
	return connect.NewError(connect.CodeInternal, err)
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
