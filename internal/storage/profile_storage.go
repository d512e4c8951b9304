package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/cloudyy74/user-directory/internal/models"
	"github.com/cloudyy74/user-directory/pkg/postgres"
)

var (
	ErrProfileExists        = errors.New("profile already exists")
	ErrProfileUsernameTaken = errors.New("profile username already taken in organization")
	ErrInvalidUpID          = errors.New("invalid profile id")
)

const profilesUsernameOrgKey = "profiles_username_organization_id_key"

const profileColumns = "p.id, p.uid, p.user_id, p.organization_id, p.username, p.created_at, p.updated_at"

func profileDest(p *models.Profile) []any {
	return []any{&p.ID, &p.UID, &p.UserID, &p.OrganizationID, &p.Username, &p.CreatedAt, &p.UpdatedAt}
}

func scanProfileWithOrganization(row scanner) (*models.Profile, error) {
	var (
		p        models.Profile
		org      models.Team
		metadata []byte
	)
	dest := append(profileDest(&p), teamDest(&org, &metadata)...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	org.Metadata = metadata
	p.Organization = &org
	return &p, nil
}

func scanProfileWithUser(row scanner) (*models.ProfileWithUser, error) {
	var (
		p        models.ProfileWithUser
		org      models.Team
		u        models.User
		metadata []byte
	)
	dest := append(profileDest(&p.Profile), teamDest(&org, &metadata)...)
	dest = append(dest, userDest(&u)...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	org.Metadata = metadata
	p.Organization = &org
	p.User = &u
	return &p, nil
}

// BuildPersonalProfile synthesizes the profile of a user outside any
// organization.
func BuildPersonalProfile(u *models.User) *models.UserProfile {
	return &models.UserProfile{
		UpID:     models.PersonalUpID(u.ID),
		Username: u.Username,
	}
}

func toUserProfile(p *models.Profile) *models.UserProfile {
	id := p.ID
	orgID := p.OrganizationID
	username := p.Username
	return &models.UserProfile{
		ID:             &id,
		UpID:           models.ProfileUpID(p.ID),
		Username:       &username,
		OrganizationID: &orgID,
		Organization:   models.ParseTeam(p.Organization),
	}
}

type ProfileStorage struct {
	db  *postgres.Postgres
	log *slog.Logger
}

func NewProfileStorage(db *postgres.Postgres, log *slog.Logger) (*ProfileStorage, error) {
	if db == nil {
		return nil, errors.New("database cannot be nil")
	}
	if log == nil {
		return nil, errors.New("logger cannot be nil")
	}
	return &ProfileStorage{
		db:  db,
		log: log,
	}, nil
}

func (s *ProfileStorage) CreateProfile(ctx context.Context, userID, organizationID int64, username string) (*models.Profile, error) {
	exec := getQueryExecer(ctx, s.db.DB)
	p := models.Profile{
		UID:            uuid.NewString(),
		UserID:         userID,
		OrganizationID: organizationID,
		Username:       username,
	}
	err := exec.QueryRowContext(
		ctx,
		`
insert into profiles (uid, user_id, organization_id, username)
values ($1, $2, $3, $4)
returning id, created_at, updated_at`,
		p.UID,
		p.UserID,
		p.OrganizationID,
		p.Username,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if constraint, ok := postgres.UniqueViolationConstraint(err); ok {
			if constraint == profilesUsernameOrgKey {
				return nil, fmt.Errorf("create profile: %w", ErrProfileUsernameTaken)
			}
			return nil, fmt.Errorf("create profile: %w", ErrProfileExists)
		}
		s.log.Error("failed to create profile", slog.Any("error", err),
			slog.Int64("user_id", userID), slog.Int64("organization_id", organizationID))
		return nil, fmt.Errorf("create profile: %w", err)
	}
	return &p, nil
}

func (s *ProfileStorage) FindByID(ctx context.Context, profileID int64) (*models.Profile, error) {
	exec := getQueryExecer(ctx, s.db.DB)
	p, err := scanProfileWithOrganization(exec.QueryRowContext(
		ctx,
		`
select `+profileColumns+`, `+teamColumns+`
from profiles p
    join teams t on t.id = p.organization_id
where p.id = $1`,
		profileID,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		s.log.Error("failed to get profile", slog.Any("error", err), slog.Int64("profile_id", profileID))
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}

// FindByUpID resolves either a personal upId ("usr-<id>") or a stored
// profile id.
func (s *ProfileStorage) FindByUpID(ctx context.Context, upID string) (*models.UserProfile, error) {
	if rest, ok := strings.CutPrefix(upID, models.PersonalUpIDPrefix); ok {
		userID, err := strconv.ParseInt(rest, 10, 64)
		if err != nil || userID <= 0 {
			return nil, fmt.Errorf("%w: %q", ErrInvalidUpID, upID)
		}
		user, err := s.findUser(ctx, userID)
		if err != nil || user == nil {
			return nil, err
		}
		return BuildPersonalProfile(user), nil
	}

	profileID, err := strconv.ParseInt(upID, 10, 64)
	if err != nil || profileID <= 0 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidUpID, upID)
	}
	p, err := s.FindByID(ctx, profileID)
	if err != nil || p == nil {
		return nil, err
	}
	return toUserProfile(p), nil
}

func (s *ProfileStorage) findUser(ctx context.Context, userID int64) (*models.User, error) {
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
		s.log.Error("failed to get profile user", slog.Any("error", err), slog.Int64("user_id", userID))
		return nil, fmt.Errorf("get profile user: %w", err)
	}
	return &u, nil
}

func (s *ProfileStorage) FindManyForUser(ctx context.Context, userID int64) ([]*models.UserProfile, error) {
	exec := getQueryExecer(ctx, s.db.DB)
	rows, err := exec.QueryContext(
		ctx,
		`
select `+profileColumns+`, `+teamColumns+`
from profiles p
    join teams t on t.id = p.organization_id
where p.user_id = $1
order by p.id`,
		userID,
	)
	if err != nil {
		s.log.Error("failed to get user profiles", slog.Any("error", err), slog.Int64("user_id", userID))
		return nil, fmt.Errorf("get user profiles: %w", err)
	}
	defer rows.Close()

	profiles := make([]*models.UserProfile, 0)
	for rows.Next() {
		p, err := scanProfileWithOrganization(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user profile: %w", err)
		}
		profiles = append(profiles, toUserProfile(p))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get user profiles: %w", err)
	}
	return profiles, nil
}

func (s *ProfileStorage) FindManyForOrg(ctx context.Context, organizationID int64) ([]*models.ProfileWithUser, error) {
	return s.findManyWithUser(ctx, "p.organization_id = $1", organizationID)
}

// FindManyByOrgSlugOrRequestedSlug finds profiles with one of usernames in
// the organization identified by slug or requested slug.
func (s *ProfileStorage) FindManyByOrgSlugOrRequestedSlug(ctx context.Context, slug string, usernames []string) ([]*models.ProfileWithUser, error) {
	if len(usernames) == 0 {
		return []*models.ProfileWithUser{}, nil
	}
	where := orgSlugCondition("t", 1) + " and p.username in (" + placeholders(2, len(usernames)) + ")"
	args := append([]any{slug}, stringArgs(usernames)...)
	return s.findManyWithUser(ctx, where, args...)
}

func (s *ProfileStorage) findManyWithUser(ctx context.Context, where string, args ...any) ([]*models.ProfileWithUser, error) {
	exec := getQueryExecer(ctx, s.db.DB)
	rows, err := exec.QueryContext(
		ctx,
		`
select `+profileColumns+`, `+teamColumns+`, `+userColumns+`
from profiles p
    join teams t on t.id = p.organization_id
    join users u on u.id = p.user_id
where `+where+`
order by p.id`,
		args...,
	)
	if err != nil {
		s.log.Error("failed to get profiles", slog.Any("error", err), slog.String("where", where))
		return nil, fmt.Errorf("get profiles: %w", err)
	}
	defer rows.Close()

	profiles := make([]*models.ProfileWithUser, 0)
	for rows.Next() {
		p, err := scanProfileWithUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		profiles = append(profiles, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get profiles: %w", err)
	}
	return profiles, nil
}
