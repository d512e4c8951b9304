package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cloudyy74/user-directory/internal/models"
	"github.com/cloudyy74/user-directory/internal/storage"
)

var (
	ErrOrganizationNotFound = errors.New("organization not found")
	ErrAlreadyMember        = errors.New("user already has a profile in organization")
	ErrUsernameTaken        = errors.New("username already taken in organization")
)

type OrganizationUserRepository interface {
	FindByID(ctx context.Context, userID int64) (*models.User, error)
	FindByIDWithProfiles(ctx context.Context, userID int64) (*models.UserWithProfiles, error)
	FindManyByOrganization(ctx context.Context, organizationID int64) ([]*models.User, error)
	IsAMemberOfOrganization(user *models.UserWithProfiles, organizationID int64) bool
	UpdateWhereID(ctx context.Context, userID int64, movedToProfileID *int64) (*models.User, error)
	EnrichEntityWithProfile(profile *models.Profile) *models.UserProfile
}

type TeamRepository interface {
	GetTeamByID(ctx context.Context, teamID int64) (*models.Team, error)
	GetOrganizationBySlug(ctx context.Context, slug string) (*models.Team, error)
	GetChildTeams(ctx context.Context, parentID int64) ([]*models.Team, error)
}

type ProfileRepository interface {
	CreateProfile(ctx context.Context, userID, organizationID int64, username string) (*models.Profile, error)
}

type OrganizationService struct {
	tx       txManager
	users    OrganizationUserRepository
	teams    TeamRepository
	profiles ProfileRepository
	log      *slog.Logger
}

func NewOrganizationService(
	tx txManager,
	users OrganizationUserRepository,
	teams TeamRepository,
	profiles ProfileRepository,
	log *slog.Logger,
) (*OrganizationService, error) {
	if tx == nil {
		return nil, errors.New("tx manager cannot be nil")
	}
	if users == nil {
		return nil, errors.New("users repository cannot be nil")
	}
	if teams == nil {
		return nil, errors.New("teams repository cannot be nil")
	}
	if profiles == nil {
		return nil, errors.New("profiles repository cannot be nil")
	}
	if log == nil {
		return nil, errors.New("logger cannot be nil")
	}
	return &OrganizationService{
		tx:       tx,
		users:    users,
		teams:    teams,
		profiles: profiles,
		log:      log,
	}, nil
}

func (s *OrganizationService) getOrganization(ctx context.Context, organizationID int64) (*models.Team, error) {
	org, err := s.teams.GetTeamByID(ctx, organizationID)
	if err != nil {
		return nil, fmt.Errorf("get organization: %w", err)
	}
	if org == nil || !models.IsOrganization(org) {
		return nil, fmt.Errorf("get organization %d: %w", organizationID, ErrOrganizationNotFound)
	}
	return org, nil
}

// GetOrganization resolves an organization by slug or requested slug and
// lists its sub-teams.
func (s *OrganizationService) GetOrganization(ctx context.Context, slug string) (*models.OrganizationResponse, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return nil, fmt.Errorf("%w: slug is required", ErrValidation)
	}
	org, err := s.teams.GetOrganizationBySlug(ctx, slug)
	if err != nil {
		return nil, fmt.Errorf("get organization by slug: %w", err)
	}
	if org == nil {
		return nil, fmt.Errorf("get organization %q: %w", slug, ErrOrganizationNotFound)
	}
	children, err := s.teams.GetChildTeams(ctx, org.ID)
	if err != nil {
		return nil, fmt.Errorf("get organization teams: %w", err)
	}
	resp := &models.OrganizationResponse{
		Organization: models.ParseTeam(org),
		Teams:        make([]*models.ParsedTeam, 0, len(children)),
	}
	for _, t := range children {
		resp.Teams = append(resp.Teams, models.ParseTeam(t))
	}
	return resp, nil
}

func (s *OrganizationService) ListMembers(ctx context.Context, rawOrganizationID string) (*models.OrganizationMembersResponse, error) {
	orgID, err := parseID("organization_id", rawOrganizationID)
	if err != nil {
		return nil, err
	}
	if _, err := s.getOrganization(ctx, orgID); err != nil {
		return nil, err
	}
	users, err := s.users.FindManyByOrganization(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("list organization members: %w", err)
	}
	return &models.OrganizationMembersResponse{OrganizationID: orgID, Members: users}, nil
}

func (s *OrganizationService) IsMember(ctx context.Context, rawOrganizationID, rawUserID string) (*models.MembershipCheckResponse, error) {
	orgID, err := parseID("organization_id", rawOrganizationID)
	if err != nil {
		return nil, err
	}
	userID, err := parseID("user_id", rawUserID)
	if err != nil {
		return nil, err
	}
	user, err := s.users.FindByIDWithProfiles(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("check membership: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("check membership: %w", ErrUserNotFound)
	}
	return &models.MembershipCheckResponse{
		UserID:         userID,
		OrganizationID: orgID,
		IsMember:       s.users.IsAMemberOfOrganization(user, orgID),
	}, nil
}

// MoveUserToOrganization creates the user's profile in the organization
// and points the user at it, in one transaction.
func (s *OrganizationService) MoveUserToOrganization(ctx context.Context, req *models.MoveToOrganizationRequest) (*models.UserWithProfile, error) {
	if req == nil {
		return nil, fmt.Errorf("%w: empty body", ErrValidation)
	}
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrValidation, err)
	}

	var moved *models.UserWithProfile
	err := s.tx.Run(ctx, func(ctx context.Context) error {
		user, err := s.users.FindByID(ctx, req.UserID)
		if err != nil {
			return fmt.Errorf("get user: %w", err)
		}
		if user == nil {
			return ErrUserNotFound
		}
		org, err := s.getOrganization(ctx, req.OrganizationID)
		if err != nil {
			return err
		}

		username := strings.TrimSpace(req.Username)
		if username == "" && user.Username != nil {
			username = *user.Username
		}
		if username == "" {
			return fmt.Errorf("%w: username is required", ErrValidation)
		}

		profile, err := s.profiles.CreateProfile(ctx, user.ID, org.ID, username)
		if err != nil {
			if errors.Is(err, storage.ErrProfileExists) {
				return ErrAlreadyMember
			}
			if errors.Is(err, storage.ErrProfileUsernameTaken) {
				return fmt.Errorf("%w: %s", ErrUsernameTaken, username)
			}
			return fmt.Errorf("create profile: %w", err)
		}
		profile.Organization = org

		updated, err := s.users.UpdateWhereID(ctx, user.ID, &profile.ID)
		if err != nil {
			return fmt.Errorf("update user: %w", err)
		}
		if updated == nil {
			return ErrUserNotFound
		}
		moved = &models.UserWithProfile{User: *updated, Profile: s.users.EnrichEntityWithProfile(profile)}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("move user to organization: %w", err)
	}

	s.log.Info("user moved to organization",
		slog.Int64("user_id", req.UserID),
		slog.Int64("organization_id", req.OrganizationID),
	)
	return moved, nil
}
