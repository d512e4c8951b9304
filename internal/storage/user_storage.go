package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cloudyy74/user-directory/internal/models"
	"github.com/cloudyy74/user-directory/pkg/postgres"
)

var (
	ErrUserExists = errors.New("user already exists")
	// ErrProfileNotFoundForUser means a user fetched through a set of
	// profiles has no matching profile in that set.
	ErrProfileNotFoundForUser = errors.New("profile couldn't be found for user")
)

const (
	userColumns       = "u.id, u.username, u.name, u.email, u.locked, u.role, u.locale, u.organization_id, u.moved_to_profile_id"
	credentialColumns = "u.id, u.username, u.name, u.email, u.locked, u.role, u.metadata, u.identity_provider, u.password, u.two_factor_enabled, u.two_factor_secret, u.backup_codes, u.locale"
	membershipColumns = "m.id, m.team_id, m.user_id, m.accepted, m.role"
)

func userDest(u *models.User) []any {
	return []any{&u.ID, &u.Username, &u.Name, &u.Email, &u.Locked, &u.Role, &u.Locale, &u.OrganizationID, &u.MovedToProfileID}
}

// ProfileRepository is the organization profile lookup the user storage
// delegates to.
type ProfileRepository interface {
	FindByUpID(ctx context.Context, upID string) (*models.UserProfile, error)
	FindManyForUser(ctx context.Context, userID int64) ([]*models.UserProfile, error)
	FindManyForOrg(ctx context.Context, organizationID int64) ([]*models.ProfileWithUser, error)
	FindManyByOrgSlugOrRequestedSlug(ctx context.Context, slug string, usernames []string) ([]*models.ProfileWithUser, error)
}

type UserStorage struct {
	db       *postgres.Postgres
	profiles ProfileRepository
	log      *slog.Logger
}

func NewUserStorage(db *postgres.Postgres, profiles ProfileRepository, log *slog.Logger) (*UserStorage, error) {
	if db == nil {
		return nil, errors.New("database cannot be nil")
	}
	if profiles == nil {
		return nil, errors.New("profile repository cannot be nil")
	}
	if log == nil {
		return nil, errors.New("logger cannot be nil")
	}
	return &UserStorage{
		db:       db,
		profiles: profiles,
		log:      log,
	}, nil
}

func (s *UserStorage) CreateUser(ctx context.Context, u models.User) (*models.User, error) {
	if u.Role == "" {
		u.Role = models.RoleUser
	}
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	exec := getQueryExecer(ctx, s.db.DB)
	err := exec.QueryRowContext(
		ctx,
		`
insert into users (username, name, email, locked, role, locale, organization_id)
values ($1, $2, $3, $4, $5, $6, $7)
returning id`,
		u.Username,
		u.Name,
		u.Email,
		u.Locked,
		u.Role,
		u.Locale,
		u.OrganizationID,
	).Scan(&u.ID)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return nil, fmt.Errorf("create user: %w", ErrUserExists)
		}
		s.log.Error("failed to create user", slog.Any("error", err))
		return nil, fmt.Errorf("create user: %w", err)
	}
	return &u, nil
}

// FindTeamsByUserID returns every membership of the user split by
// acceptance.
func (s *UserStorage) FindTeamsByUserID(ctx context.Context, userID int64) (*models.UserTeams, error) {
	memberships, err := s.membershipsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return ClassifyMemberships(memberships), nil
}

// FindOrganizations returns the organizations the user accepted a
// membership in.
func (s *UserStorage) FindOrganizations(ctx context.Context, userID int64) ([]*models.Team, error) {
	teams, err := s.FindTeamsByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	orgs := make([]*models.Team, 0)
	for _, m := range teams.AcceptedMemberships {
		if models.IsOrganization(m.Team) {
			orgs = append(orgs, m.Team)
		}
	}
	return orgs, nil
}

// ClassifyMemberships partitions memberships into accepted and pending.
func ClassifyMemberships(memberships []*models.Membership) *models.UserTeams {
	res := &models.UserTeams{
		Teams:               make([]*models.Team, 0),
		Memberships:         memberships,
		AcceptedMemberships: make([]*models.Membership, 0),
		PendingMemberships:  make([]*models.Membership, 0),
	}
	if res.Memberships == nil {
		res.Memberships = make([]*models.Membership, 0)
	}
	for _, m := range memberships {
		if m.Accepted {
			res.AcceptedMemberships = append(res.AcceptedMemberships, m)
			res.Teams = append(res.Teams, m.Team)
			continue
		}
		res.PendingMemberships = append(res.PendingMemberships, m)
	}
	return res
}

func (s *UserStorage) membershipsByUser(ctx context.Context, userID int64) ([]*models.Membership, error) {
	exec := getQueryExecer(ctx, s.db.DB)
	rows, err := exec.QueryContext(
		ctx,
		`
select `+membershipColumns+`, `+teamColumns+`
from memberships m
    join teams t on t.id = m.team_id
where m.user_id = $1
order by m.id`,
		userID,
	)
	if err != nil {
		s.log.Error("failed to get memberships", slog.Any("error", err), slog.Int64("user_id", userID))
		return nil, fmt.Errorf("get memberships: %w", err)
	}
	defer rows.Close()

	memberships := make([]*models.Membership, 0)
	for rows.Next() {
		var (
			m        models.Membership
			team     models.Team
			metadata []byte
		)
		dest := append([]any{&m.ID, &m.TeamID, &m.UserID, &m.Accepted, &m.Role}, teamDest(&team, &metadata)...)
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan membership: %w", err)
		}
		team.Metadata = metadata
		m.Team = &team
		memberships = append(memberships, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get memberships: %w", err)
	}
	return memberships, nil
}

// FindUsersByUsername resolves usernames either through organization
// profiles (orgSlug set) or through the users table directly. Users found
// through profiles carry that profile; all others get a personal profile.
func (s *UserStorage) FindUsersByUsername(ctx context.Context, orgSlug string, usernames []string) ([]*models.UserWithProfile, error) {
	result := make([]*models.UserWithProfile, 0, len(usernames))
	if len(usernames) == 0 {
		return result, nil
	}

	var profiles []*models.ProfileWithUser
	if orgSlug != "" {
		var err error
		profiles, err = s.profiles.FindManyByOrgSlugOrRequestedSlug(ctx, orgSlug, usernames)
		if err != nil {
			return nil, fmt.Errorf("find users by username: %w", err)
		}
	}

	var (
		users []*models.User
		err   error
	)
	if len(profiles) > 0 {
		ids := make([]int64, 0, len(profiles))
		for _, p := range profiles {
			ids = append(ids, p.UserID)
		}
		users, err = s.findManyByIDs(ctx, ids)
	} else {
		users, err = s.findManyByUsernames(ctx, orgSlug, usernames)
	}
	if err != nil {
		return nil, fmt.Errorf("find users by username: %w", err)
	}

	for _, u := range users {
		if len(profiles) == 0 {
			result = append(result, &models.UserWithProfile{User: *u, Profile: BuildPersonalProfile(u)})
			continue
		}
		p := profileOfUser(profiles, u.ID)
		if p == nil {
			s.log.Error("profile not found for user",
				slog.Int64("user_id", u.ID),
				slog.String("org_slug", orgSlug),
				slog.Int("profiles", len(profiles)),
			)
			return nil, fmt.Errorf("find users by username: user %d: %w", u.ID, ErrProfileNotFoundForUser)
		}
		result = append(result, &models.UserWithProfile{User: *u, Profile: toUserProfile(&p.Profile)})
	}
	return result, nil
}

func profileOfUser(profiles []*models.ProfileWithUser, userID int64) *models.ProfileWithUser {
	for _, p := range profiles {
		if p.UserID == userID {
			return p
		}
	}
	return nil
}

func (s *UserStorage) findManyByIDs(ctx context.Context, ids []int64) ([]*models.User, error) {
	return s.queryUsers(ctx,
		`select `+userColumns+` from users u where u.id in (`+placeholders(1, len(ids))+`) order by u.id`,
		int64Args(ids)...,
	)
}

func (s *UserStorage) findManyByUsernames(ctx context.Context, orgSlug string, usernames []string) ([]*models.User, error) {
	if orgSlug == "" {
		return s.queryUsers(ctx,
			`
select `+userColumns+`
from users u
where u.username in (`+placeholders(1, len(usernames))+`)
  and u.organization_id is null
order by u.id`,
			stringArgs(usernames)...,
		)
	}
	return s.queryUsers(ctx,
		`
select `+userColumns+`
from users u
    join teams t on t.id = u.organization_id
where u.username in (`+placeholders(2, len(usernames))+`)
  and `+orgSlugCondition("t", 1)+`
order by u.id`,
		append([]any{orgSlug}, stringArgs(usernames)...)...,
	)
}

func (s *UserStorage) queryUsers(ctx context.Context, query string, args ...any) ([]*models.User, error) {
	exec := getQueryExecer(ctx, s.db.DB)
	rows, err := exec.QueryContext(ctx, query, args...)
	if err != nil {
		s.log.Error("failed to query users", slog.Any("error", err))
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	users := make([]*models.User, 0)
	for rows.Next() {
		var u models.User
		if err := rows.Scan(userDest(&u)...); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, &u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	return users, nil
}

// FindByEmail returns the sign-in projection of a user, or nil when no
// user has that email. Emails compare case-insensitively.
func (s *UserStorage) FindByEmail(ctx context.Context, email string) (*models.UserCredentials, error) {
	exec := getQueryExecer(ctx, s.db.DB)
	var (
		u        models.UserCredentials
		metadata []byte
	)
	err := exec.QueryRowContext(
		ctx,
		`select `+credentialColumns+` from users u where lower(u.email) = lower($1)`,
		email,
	).Scan(
		&u.ID, &u.Username, &u.Name, &u.Email, &u.Locked, &u.Role, &metadata,
		&u.IdentityProvider, &u.Password, &u.TwoFactorEnabled, &u.TwoFactorSecret,
		&u.BackupCodes, &u.Locale,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		s.log.Error("failed to find user by email", slog.Any("error", err))
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	u.Metadata = metadata

	u.Teams, err = s.membershipsByUser(ctx, u.ID)
	if err != nil {
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	return &u, nil
}

func (s *UserStorage) FindByID(ctx context.Context, userID int64) (*models.User, error) {
	exec := getQueryExecer(ctx, s.db.DB)
	var u models.User
	err := exec.QueryRowContext(
		ctx,
		`select `+userColumns+` from users u where u.id = $1`,
		userID,
	).Scan(userDest(&u)...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		s.log.Error("failed to find user by id", slog.Any("error", err), slog.Int64("user_id", userID))
		return nil, fmt.Errorf("find user by id: %w", err)
	}
	return &u, nil
}

func (s *UserStorage) FindByIDWithProfiles(ctx context.Context, userID int64) (*models.UserWithProfiles, error) {
	u, err := s.FindByID(ctx, userID)
	if err != nil || u == nil {
		return nil, err
	}
	profiles, err := s.profiles.FindManyForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("find user profiles: %w", err)
	}
	return &models.UserWithProfiles{User: *u, Profiles: profiles}, nil
}

// FindManyByOrganization lists the users holding a profile in the
// organization.
func (s *UserStorage) FindManyByOrganization(ctx context.Context, organizationID int64) ([]*models.User, error) {
	profiles, err := s.profiles.FindManyForOrg(ctx, organizationID)
	if err != nil {
		return nil, fmt.Errorf("find users by organization: %w", err)
	}
	users := make([]*models.User, 0, len(profiles))
	for _, p := range profiles {
		if p.User != nil {
			users = append(users, p.User)
		}
	}
	return users, nil
}

func (s *UserStorage) IsAMemberOfOrganization(user *models.UserWithProfiles, organizationID int64) bool {
	if user == nil {
		return false
	}
	for _, p := range user.Profiles {
		if p != nil && p.OrganizationID != nil && *p.OrganizationID == organizationID {
			return true
		}
	}
	return false
}

// EnrichUserWithProfile attaches the profile identified by upID, falling
// back to the personal profile when it does not exist.
func (s *UserStorage) EnrichUserWithProfile(ctx context.Context, user *models.User, upID string) (*models.UserWithProfile, error) {
	s.log.Debug("enrich user with profile", slog.Int64("user_id", user.ID), slog.String("up_id", upID))
	profile, err := s.profiles.FindByUpID(ctx, upID)
	if err != nil {
		return nil, fmt.Errorf("enrich user with profile: %w", err)
	}
	if profile == nil {
		profile = BuildPersonalProfile(user)
	}
	return &models.UserWithProfile{User: *user, Profile: profile}, nil
}

// EnrichUserWithItsProfile attaches the user's first organization profile,
// or the personal profile when the user has none.
func (s *UserStorage) EnrichUserWithItsProfile(ctx context.Context, user *models.User) (*models.UserWithProfile, error) {
	profiles, err := s.profiles.FindManyForUser(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("enrich user with its profile: %w", err)
	}
	if len(profiles) == 0 {
		return &models.UserWithProfile{User: *user, Profile: BuildPersonalProfile(user)}, nil
	}
	return &models.UserWithProfile{User: *user, Profile: profiles[0]}, nil
}

// EnrichEntityWithProfile turns a stored profile into the caller-facing
// shape with its organization parsed.
func (s *UserStorage) EnrichEntityWithProfile(profile *models.Profile) *models.UserProfile {
	if profile == nil {
		return nil
	}
	return toUserProfile(profile)
}

// UpdateWhereID points the user at the profile it moved to. A nil
// movedToProfileID leaves the row untouched.
func (s *UserStorage) UpdateWhereID(ctx context.Context, userID int64, movedToProfileID *int64) (*models.User, error) {
	if movedToProfileID == nil {
		return s.FindByID(ctx, userID)
	}
	exec := getQueryExecer(ctx, s.db.DB)
	var u models.User
	err := exec.QueryRowContext(
		ctx,
		`
update users u set moved_to_profile_id = $2
where u.id = $1
returning `+userColumns,
		userID,
		*movedToProfileID,
	).Scan(userDest(&u)...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		s.log.Error("failed to update user", slog.Any("error", err),
			slog.Int64("user_id", userID), slog.Int64("moved_to_profile_id", *movedToProfileID))
		return nil, fmt.Errorf("update user: %w", err)
	}
	return &u, nil
}
