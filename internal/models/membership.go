package models

const (
	MembershipRoleMember = "MEMBER"
	MembershipRoleAdmin  = "ADMIN"
	MembershipRoleOwner  = "OWNER"
)

type Membership struct {
	ID       int64  `json:"id"`
	TeamID   int64  `json:"team_id"`
	UserID   int64  `json:"user_id"`
	Accepted bool   `json:"accepted"`
	Role     string `json:"role"`
	Team     *Team  `json:"team,omitempty"`
}

// UserTeams splits a user's memberships by acceptance. Teams holds the
// teams of accepted memberships only.
type UserTeams struct {
	Teams               []*Team       `json:"teams"`
	Memberships         []*Membership `json:"memberships"`
	AcceptedMemberships []*Membership `json:"accepted_memberships"`
	PendingMemberships  []*Membership `json:"pending_memberships"`
}
