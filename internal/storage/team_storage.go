package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cloudyy74/user-directory/internal/models"
	"github.com/cloudyy74/user-directory/pkg/postgres"
)

var (
	ErrTeamExists       = errors.New("team already exists")
	ErrMembershipExists = errors.New("membership already exists")
)

const teamColumns = "t.id, t.name, t.slug, t.parent_id, t.is_organization, t.metadata"

type scanner interface {
	Scan(dest ...any) error
}

// orgSlugCondition matches an organization aliased as alias whose slug or
// requested slug equals the positional argument arg. Teams flagged through
// metadata.isOrganization count as organizations.
func orgSlugCondition(alias string, arg int) string {
	return fmt.Sprintf(
		"((%[1]s.is_organization or %[1]s.metadata->>'isOrganization' = 'true') and "+
			"(%[1]s.slug = $%[2]d or %[1]s.metadata->>'requestedSlug' = $%[2]d))",
		alias, arg,
	)
}

func teamDest(t *models.Team, metadata *[]byte) []any {
	return []any{&t.ID, &t.Name, &t.Slug, &t.ParentID, &t.IsOrganization, metadata}
}

func scanTeam(row scanner, t *models.Team) error {
	var metadata []byte
	if err := row.Scan(teamDest(t, &metadata)...); err != nil {
		return err
	}
	t.Metadata = metadata
	return nil
}

type TeamStorage struct {
	db  *postgres.Postgres
	log *slog.Logger
}

func NewTeamStorage(db *postgres.Postgres, log *slog.Logger) (*TeamStorage, error) {
	if db == nil {
		return nil, errors.New("database cannot be nil")
	}
	if log == nil {
		return nil, errors.New("logger cannot be nil")
	}
	return &TeamStorage{
		db:  db,
		log: log,
	}, nil
}

func (s *TeamStorage) CreateTeam(ctx context.Context, team models.Team) (*models.Team, error) {
	exec := getQueryExecer(ctx, s.db.DB)
	var metadata any
	if len(team.Metadata) > 0 {
		metadata = []byte(team.Metadata)
	}
	err := exec.QueryRowContext(
		ctx,
		`
insert into teams (name, slug, parent_id, is_organization, metadata)
values ($1, $2, $3, $4, $5)
returning id`,
		team.Name,
		team.Slug,
		team.ParentID,
		team.IsOrganization,
		metadata,
	).Scan(&team.ID)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return nil, fmt.Errorf("insert team %q: %w", team.Name, ErrTeamExists)
		}
		s.log.Error("failed to create team", slog.Any("error", err), slog.String("name", team.Name))
		return nil, fmt.Errorf("insert team %q: %w", team.Name, err)
	}
	return &team, nil
}

func (s *TeamStorage) GetTeamByID(ctx context.Context, teamID int64) (*models.Team, error) {
	exec := getQueryExecer(ctx, s.db.DB)
	var team models.Team
	err := scanTeam(exec.QueryRowContext(
		ctx,
		`select `+teamColumns+` from teams t where t.id = $1`,
		teamID,
	), &team)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		s.log.Error("failed to get team", slog.Any("error", err), slog.Int64("team_id", teamID))
		return nil, fmt.Errorf("get team: %w", err)
	}
	return &team, nil
}

// GetOrganizationBySlug resolves an organization by slug or requested slug.
func (s *TeamStorage) GetOrganizationBySlug(ctx context.Context, slug string) (*models.Team, error) {
	exec := getQueryExecer(ctx, s.db.DB)
	var team models.Team
	err := scanTeam(exec.QueryRowContext(
		ctx,
		`
select `+teamColumns+`
from teams t
where `+orgSlugCondition("t", 1)+`
order by t.id
limit 1`,
		slug,
	), &team)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		s.log.Error("failed to get organization by slug", slog.Any("error", err), slog.String("slug", slug))
		return nil, fmt.Errorf("get organization by slug: %w", err)
	}
	return &team, nil
}

func (s *TeamStorage) GetChildTeams(ctx context.Context, parentID int64) ([]*models.Team, error) {
	exec := getQueryExecer(ctx, s.db.DB)
	rows, err := exec.QueryContext(
		ctx,
		`select `+teamColumns+` from teams t where t.parent_id = $1 order by t.id`,
		parentID,
	)
	if err != nil {
		s.log.Error("failed to get child teams", slog.Any("error", err), slog.Int64("parent_id", parentID))
		return nil, fmt.Errorf("get child teams: %w", err)
	}
	defer rows.Close()

	teams := make([]*models.Team, 0)
	for rows.Next() {
		var team models.Team
		if err := scanTeam(rows, &team); err != nil {
			return nil, fmt.Errorf("scan child team: %w", err)
		}
		teams = append(teams, &team)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get child teams: %w", err)
	}
	return teams, nil
}

func (s *TeamStorage) AddMembership(ctx context.Context, m models.Membership) (*models.Membership, error) {
	if m.Role == "" {
		m.Role = models.MembershipRoleMember
	}
	exec := getQueryExecer(ctx, s.db.DB)
	err := exec.QueryRowContext(
		ctx,
		`
insert into memberships (team_id, user_id, accepted, role)
values ($1, $2, $3, $4)
returning id`,
		m.TeamID,
		m.UserID,
		m.Accepted,
		m.Role,
	).Scan(&m.ID)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return nil, fmt.Errorf("add membership: %w", ErrMembershipExists)
		}
		s.log.Error("failed to add membership", slog.Any("error", err),
			slog.Int64("team_id", m.TeamID), slog.Int64("user_id", m.UserID))
		return nil, fmt.Errorf("add membership: %w", err)
	}
	return &m, nil
}
