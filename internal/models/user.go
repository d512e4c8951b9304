package models

import "encoding/json"

const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

type User struct {
	ID               int64   `json:"id"`
	Username         *string `json:"username"`
	Name             *string `json:"name"`
	Email            string  `json:"email"`
	Locked           bool    `json:"locked"`
	Role             string  `json:"role"`
	Locale           *string `json:"locale"`
	OrganizationID   *int64  `json:"organization_id"`
	MovedToProfileID *int64  `json:"moved_to_profile_id"`
}

// UserCredentials is the projection used by sign-in flows. Secrets are
// never serialized.
type UserCredentials struct {
	ID               int64           `json:"id"`
	Username         *string         `json:"username"`
	Name             *string         `json:"name"`
	Email            string          `json:"email"`
	Locked           bool            `json:"locked"`
	Role             string          `json:"role"`
	Metadata         json.RawMessage `json:"metadata,omitempty"`
	IdentityProvider string          `json:"identity_provider"`
	Password         *string         `json:"-"`
	TwoFactorEnabled bool            `json:"two_factor_enabled"`
	TwoFactorSecret  *string         `json:"-"`
	BackupCodes      *string         `json:"-"`
	Locale           *string         `json:"locale"`
	Teams            []*Membership   `json:"teams"`
}

type UserWithProfile struct {
	User
	Profile *UserProfile `json:"profile"`
}

type UserWithProfiles struct {
	User
	Profiles []*UserProfile `json:"profiles"`
}

type UsersResponse struct {
	Users []*UserWithProfile `json:"users"`
}

type MembershipCheckResponse struct {
	UserID         int64 `json:"user_id"`
	OrganizationID int64 `json:"organization_id"`
	IsMember       bool  `json:"is_member"`
}
