package models

import (
	"strconv"
	"time"
)

// PersonalUpIDPrefix marks an upId that refers to a user's personal
// profile rather than a stored organization profile.
const PersonalUpIDPrefix = "usr-"

type Profile struct {
	ID             int64     `json:"id"`
	UID            string    `json:"uid"`
	UserID         int64     `json:"user_id"`
	OrganizationID int64     `json:"organization_id"`
	Username       string    `json:"username"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
	Organization   *Team     `json:"organization,omitempty"`
}

type ProfileWithUser struct {
	Profile
	User *User `json:"user"`
}

// UserProfile is the uniform profile view handed to callers. ID,
// OrganizationID and Organization are nil for a personal profile.
type UserProfile struct {
	ID             *int64      `json:"id"`
	UpID           string      `json:"up_id"`
	Username       *string     `json:"username"`
	OrganizationID *int64      `json:"organization_id"`
	Organization   *ParsedTeam `json:"organization"`
}

func PersonalUpID(userID int64) string {
	return PersonalUpIDPrefix + strconv.FormatInt(userID, 10)
}

func ProfileUpID(profileID int64) string {
	return strconv.FormatInt(profileID, 10)
}

type MoveToOrganizationRequest struct {
	UserID         int64  `json:"user_id" validate:"required,gt=0"`
	OrganizationID int64  `json:"organization_id" validate:"required,gt=0"`
	Username       string `json:"username" validate:"max=255"`
}

func (r *MoveToOrganizationRequest) Validate() error {
	return validateStruct(r)
}
