package api

// Group is a set of users sharing expenses. Members holds user IDs.
type Group struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	CreatedBy   string   `json:"created_by"`
	Members     []string `json:"members"`
	CreatedAt   int64    `json:"created_at"`
	UpdatedAt   int64    `json:"updated_at"`
}

type CreateGroupRequest struct {
	Name        string `json:"name" validate:"required,max=255"`
	Description string `json:"description,omitempty" validate:"max=1000"`
	// MemberIDs are added alongside the caller, who is always a member.
	MemberIDs []string `json:"member_ids,omitempty" validate:"omitempty,dive,required"`
}

type CreateGroupResponse struct {
	Group *Group `json:"group"`
}

type GetGroupRequest struct {
	GroupID string `json:"group_id" validate:"required"`
}

type GetGroupResponse struct {
	Group *Group `json:"group"`
}

type ListGroupsRequest struct{}

type ListGroupsResponse struct {
	Groups []*Group `json:"groups"`
}

type UpdateGroupRequest struct {
	GroupID     string `json:"group_id" validate:"required"`
	Name        string `json:"name" validate:"required,max=255"`
	Description string `json:"description,omitempty" validate:"max=1000"`
}

type UpdateGroupResponse struct {
	Group *Group `json:"group"`
}

type DeleteGroupRequest struct {
	GroupID string `json:"group_id" validate:"required"`
}

type AddMembersRequest struct {
	GroupID string   `json:"group_id" validate:"required"`
	UserIDs []string `json:"user_ids" validate:"required,min=1,dive,required"`
}

type AddMembersResponse struct {
	Group *Group `json:"group"`
}

type RemoveMemberRequest struct {
	GroupID string `json:"group_id" validate:"required"`
	UserID  string `json:"user_id" validate:"required"`
}

type GetGroupBalancesRequest struct {
	GroupID string `json:"group_id" validate:"required"`
}

// MemberBalance is one member's position across the group's expenses.
// A positive NetBalance means the member is owed money.
type MemberBalance struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name,omitempty"`
	TotalPaid   string `json:"total_paid"`
	TotalOwed   string `json:"total_owed"`
	NetBalance  string `json:"net_balance"`
}

// Debt is a suggested payment that settles part of the balances.
type Debt struct {
	FromUserID string `json:"from_user_id"`
	ToUserID   string `json:"to_user_id"`
	Amount     string `json:"amount"`
}

type GetGroupBalancesResponse struct {
	Balances []*MemberBalance `json:"balances"`
	Debts    []*Debt          `json:"debts"`
}
