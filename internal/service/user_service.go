package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/cloudyy74/user-directory/internal/models"
	"github.com/cloudyy74/user-directory/internal/storage"
)

var (
	ErrValidation   = errors.New("validation error")
	ErrUserNotFound = errors.New("user not found")
)

type UserRepository interface {
	FindByID(ctx context.Context, userID int64) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.UserCredentials, error)
	FindUsersByUsername(ctx context.Context, orgSlug string, usernames []string) ([]*models.UserWithProfile, error)
	FindTeamsByUserID(ctx context.Context, userID int64) (*models.UserTeams, error)
	FindOrganizations(ctx context.Context, userID int64) ([]*models.Team, error)
	EnrichUserWithProfile(ctx context.Context, user *models.User, upID string) (*models.UserWithProfile, error)
	EnrichUserWithItsProfile(ctx context.Context, user *models.User) (*models.UserWithProfile, error)
}

type UserService struct {
	users UserRepository
	log   *slog.Logger
}

func NewUserService(users UserRepository, log *slog.Logger) (*UserService, error) {
	if users == nil {
		return nil, errors.New("users repository cannot be nil")
	}
	if log == nil {
		return nil, errors.New("logger cannot be nil")
	}
	return &UserService{
		users: users,
		log:   log,
	}, nil
}

func parseID(field, raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fmt.Errorf("%w: %s is required", ErrValidation, field)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %s must be a positive integer", ErrValidation, field)
	}
	return id, nil
}

// normalizeUsernames trims, drops empty entries and deduplicates while
// keeping the caller's order.
func normalizeUsernames(usernames []string) []string {
	seen := make(map[string]struct{}, len(usernames))
	res := make([]string, 0, len(usernames))
	for _, u := range usernames {
		u = strings.TrimSpace(u)
		if u == "" {
			continue
		}
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		res = append(res, u)
	}
	return res
}

func (s *UserService) findUser(ctx context.Context, userID int64) (*models.User, error) {
	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if u == nil {
		return nil, fmt.Errorf("get user %d: %w", userID, ErrUserNotFound)
	}
	return u, nil
}

func (s *UserService) GetUser(ctx context.Context, rawUserID string) (*models.UserWithProfile, error) {
	userID, err := parseID("user_id", rawUserID)
	if err != nil {
		return nil, err
	}
	u, err := s.findUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.users.EnrichUserWithItsProfile(ctx, u)
}

func (s *UserService) GetUserByEmail(ctx context.Context, email string) (*models.UserCredentials, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, fmt.Errorf("%w: email is required", ErrValidation)
	}
	u, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	if u == nil {
		return nil, fmt.Errorf("get user by email: %w", ErrUserNotFound)
	}
	return u, nil
}

func (s *UserService) FindUsersByUsername(ctx context.Context, orgSlug string, usernames []string) (*models.UsersResponse, error) {
	usernames = normalizeUsernames(usernames)
	if len(usernames) == 0 {
		return nil, fmt.Errorf("%w: usernames are required", ErrValidation)
	}
	users, err := s.users.FindUsersByUsername(ctx, strings.TrimSpace(orgSlug), usernames)
	if err != nil {
		return nil, fmt.Errorf("find users by username: %w", err)
	}
	return &models.UsersResponse{Users: users}, nil
}

func (s *UserService) GetUserTeams(ctx context.Context, rawUserID string) (*models.UserTeams, error) {
	userID, err := parseID("user_id", rawUserID)
	if err != nil {
		return nil, err
	}
	teams, err := s.users.FindTeamsByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get user teams: %w", err)
	}
	return teams, nil
}

func (s *UserService) GetUserOrganizations(ctx context.Context, rawUserID string) (*models.OrganizationsResponse, error) {
	userID, err := parseID("user_id", rawUserID)
	if err != nil {
		return nil, err
	}
	orgs, err := s.users.FindOrganizations(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get user organizations: %w", err)
	}
	resp := &models.OrganizationsResponse{Organizations: make([]*models.ParsedTeam, 0, len(orgs))}
	for _, org := range orgs {
		resp.Organizations = append(resp.Organizations, models.ParseTeam(org))
	}
	return resp, nil
}

// GetUserProfile returns the user with the profile named by upID, or with
// its own first profile when upID is empty.
func (s *UserService) GetUserProfile(ctx context.Context, rawUserID, upID string) (*models.UserWithProfile, error) {
	userID, err := parseID("user_id", rawUserID)
	if err != nil {
		return nil, err
	}
	u, err := s.findUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	upID = strings.TrimSpace(upID)
	if upID == "" {
		return s.users.EnrichUserWithItsProfile(ctx, u)
	}
	res, err := s.users.EnrichUserWithProfile(ctx, u, upID)
	if err != nil {
		if errors.Is(err, storage.ErrInvalidUpID) {
			return nil, fmt.Errorf("%w: up_id %q is invalid", ErrValidation, upID)
		}
		return nil, fmt.Errorf("get user profile: %w", err)
	}
	return res, nil
}
