package storage

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/cloudyy74/user-directory/internal/models"
	"github.com/cloudyy74/user-directory/pkg/postgres"
)

var (
	userRowColumns = []string{"id", "username", "name", "email", "locked", "role", "locale", "organization_id", "moved_to_profile_id"}
	teamRowColumns = []string{"id", "name", "slug", "parent_id", "is_organization", "metadata"}
)

type fakeProfiles struct {
	byUpID    map[string]*models.UserProfile
	forUser   []*models.UserProfile
	forOrg    []*models.ProfileWithUser
	bySlug    []*models.ProfileWithUser
	err       error
	slugCalls int
}

func (f *fakeProfiles) FindByUpID(_ context.Context, upID string) (*models.UserProfile, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.byUpID[upID], nil
}

func (f *fakeProfiles) FindManyForUser(context.Context, int64) ([]*models.UserProfile, error) {
	return f.forUser, f.err
}

func (f *fakeProfiles) FindManyForOrg(context.Context, int64) ([]*models.ProfileWithUser, error) {
	return f.forOrg, f.err
}

func (f *fakeProfiles) FindManyByOrgSlugOrRequestedSlug(context.Context, string, []string) ([]*models.ProfileWithUser, error) {
	f.slugCalls++
	return f.bySlug, f.err
}

func newUserStorage(t *testing.T, profiles ProfileRepository) (*UserStorage, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("create sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	pg := &postgres.Postgres{
		DB: db,
	}
	if profiles == nil {
		profiles = &fakeProfiles{}
	}
	st, err := NewUserStorage(pg, profiles, log)
	if err != nil {
		t.Fatalf("NewUserStorage: %v", err)
	}
	return st, mock
}

func userRows() *sqlmock.Rows {
	return sqlmock.NewRows(userRowColumns)
}

func addUser(rows *sqlmock.Rows, id int64, username string) *sqlmock.Rows {
	return rows.AddRow(id, username, nil, username+"@example.com", false, models.RoleUser, nil, nil, nil)
}

func int64Ptr(v int64) *int64 { return &v }

func stringPtr(v string) *string { return &v }

func orgProfile(id, userID, orgID int64, username string) *models.ProfileWithUser {
	return &models.ProfileWithUser{
		Profile: models.Profile{
			ID:             id,
			UserID:         userID,
			OrganizationID: orgID,
			Username:       username,
			Organization:   &models.Team{ID: orgID, Name: "Acme", Slug: stringPtr("acme"), IsOrganization: true},
		},
		User: &models.User{ID: userID, Username: stringPtr(username)},
	}
}

func TestNewUserStorage_Validation(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	if _, err := NewUserStorage(nil, &fakeProfiles{}, log); err == nil {
		t.Fatalf("expected error for nil database")
	}
	if _, err := NewUserStorage(&postgres.Postgres{}, nil, log); err == nil {
		t.Fatalf("expected error for nil profile repository")
	}
	if _, err := NewUserStorage(&postgres.Postgres{}, &fakeProfiles{}, nil); err == nil {
		t.Fatalf("expected error for nil logger")
	}
}

func TestUserStorage_CreateUser(t *testing.T) {
	st, mock := newUserStorage(t, nil)
	mock.ExpectQuery(regexp.QuoteMeta("insert into users (username, name, email, locked, role, locale, organization_id)")).
		WithArgs("alice", nil, "alice@example.com", false, models.RoleUser, nil, nil).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))

	u, err := st.CreateUser(context.Background(), models.User{Username: stringPtr("alice"), Email: "alice@example.com"})
	if err != nil {
		t.Fatalf("CreateUser returned err: %v", err)
	}
	if u.ID != 1 || u.Role != models.RoleUser {
		t.Fatalf("unexpected user: %#v", u)
	}
	verifyExpectations(t, mock)
}

func TestUserStorage_CreateUser_NormalizesEmail(t *testing.T) {
	st, mock := newUserStorage(t, nil)
	mock.ExpectQuery(regexp.QuoteMeta("insert into users")).
		WithArgs("alice", nil, "alice@example.com", false, models.RoleUser, nil, nil).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))

	u, err := st.CreateUser(context.Background(), models.User{Username: stringPtr("alice"), Email: " Alice@Example.COM "})
	if err != nil {
		t.Fatalf("CreateUser returned err: %v", err)
	}
	if u.Email != "alice@example.com" {
		t.Fatalf("expected lowercased email, got %q", u.Email)
	}
	verifyExpectations(t, mock)
}

func TestUserStorage_FindByEmail_MixedCase(t *testing.T) {
	st, mock := newUserStorage(t, nil)
	mock.ExpectQuery(regexp.QuoteMeta("from users u where lower(u.email) = lower($1)")).
		WithArgs("Alice@Example.com").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "username", "name", "email", "locked", "role", "metadata", "identity_provider",
			"password", "two_factor_enabled", "two_factor_secret", "backup_codes", "locale",
		}).AddRow(int64(5), "alice", nil, "Alice@Example.com", false, models.RoleUser, nil, "CAL",
			nil, false, nil, nil, nil))
	mock.ExpectQuery(regexp.QuoteMeta("from memberships m join teams t on t.id = m.team_id where m.user_id = $1")).
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows(append([]string{"id", "team_id", "user_id", "accepted", "role"}, teamRowColumns...)))

	u, err := st.FindByEmail(context.Background(), "Alice@Example.com")
	if err != nil {
		t.Fatalf("FindByEmail returned err: %v", err)
	}
	if u == nil || u.ID != 5 {
		t.Fatalf("expected user 5, got %#v", u)
	}
	verifyExpectations(t, mock)
}

func TestUserStorage_CreateUser_UniqueViolation(t *testing.T) {
	st, mock := newUserStorage(t, nil)
	mock.ExpectQuery(regexp.QuoteMeta("insert into users")).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	_, err := st.CreateUser(context.Background(), models.User{Email: "alice@example.com"})
	if !errors.Is(err, ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
	verifyExpectations(t, mock)
}

func TestUserStorage_FindByID(t *testing.T) {
	st, mock := newUserStorage(t, nil)
	mock.ExpectQuery(regexp.QuoteMeta("from users u where u.id = $1")).
		WithArgs(int64(5)).
		WillReturnRows(addUser(userRows(), 5, "alice"))

	u, err := st.FindByID(context.Background(), 5)
	if err != nil {
		t.Fatalf("FindByID returned err: %v", err)
	}
	if u == nil || u.ID != 5 || u.Username == nil || *u.Username != "alice" {
		t.Fatalf("unexpected user: %#v", u)
	}
	if u.Name != nil || u.OrganizationID != nil {
		t.Fatalf("expected null columns to stay nil: %#v", u)
	}
	verifyExpectations(t, mock)
}

func TestUserStorage_FindByID_NotFound(t *testing.T) {
	st, mock := newUserStorage(t, nil)
	mock.ExpectQuery(regexp.QuoteMeta("from users u where u.id = $1")).
		WithArgs(int64(5)).
		WillReturnRows(userRows())

	u, err := st.FindByID(context.Background(), 5)
	if err != nil {
		t.Fatalf("FindByID returned err: %v", err)
	}
	if u != nil {
		t.Fatalf("expected nil user, got %#v", u)
	}
	verifyExpectations(t, mock)
}

func TestUserStorage_FindByEmail(t *testing.T) {
	st, mock := newUserStorage(t, nil)
	mock.ExpectQuery(regexp.QuoteMeta("from users u where lower(u.email) = lower($1)")).
		WithArgs("alice@example.com").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "username", "name", "email", "locked", "role", "metadata", "identity_provider",
			"password", "two_factor_enabled", "two_factor_secret", "backup_codes", "locale",
		}).AddRow(int64(5), "alice", "Alice", "alice@example.com", true, models.RoleAdmin, []byte(`{"a":1}`), "CAL",
			"hash", true, "secret", nil, "en"))
	mock.ExpectQuery(regexp.QuoteMeta("from memberships m join teams t on t.id = m.team_id where m.user_id = $1")).
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows(append([]string{"id", "team_id", "user_id", "accepted", "role"}, teamRowColumns...)).
			AddRow(int64(1), int64(10), int64(5), true, models.MembershipRoleOwner, int64(10), "Acme", "acme", nil, true, nil))

	u, err := st.FindByEmail(context.Background(), "alice@example.com")
	if err != nil {
		t.Fatalf("FindByEmail returned err: %v", err)
	}
	if u == nil || u.ID != 5 || !u.Locked || u.Role != models.RoleAdmin {
		t.Fatalf("unexpected user: %#v", u)
	}
	if u.Password == nil || *u.Password != "hash" || u.TwoFactorSecret == nil || u.BackupCodes != nil {
		t.Fatalf("unexpected credentials: %#v", u)
	}
	if string(u.Metadata) != `{"a":1}` {
		t.Fatalf("unexpected metadata: %s", u.Metadata)
	}
	if len(u.Teams) != 1 || u.Teams[0].Team == nil || u.Teams[0].Team.Name != "Acme" {
		t.Fatalf("unexpected teams: %#v", u.Teams)
	}
	verifyExpectations(t, mock)
}

func TestUserStorage_FindByEmail_NotFound(t *testing.T) {
	st, mock := newUserStorage(t, nil)
	mock.ExpectQuery(regexp.QuoteMeta("from users u where lower(u.email) = lower($1)")).
		WithArgs("nobody@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	u, err := st.FindByEmail(context.Background(), "nobody@example.com")
	if err != nil {
		t.Fatalf("FindByEmail returned err: %v", err)
	}
	if u != nil {
		t.Fatalf("expected nil user, got %#v", u)
	}
	verifyExpectations(t, mock)
}

func membershipRows() *sqlmock.Rows {
	return sqlmock.NewRows(append([]string{"id", "team_id", "user_id", "accepted", "role"}, teamRowColumns...)).
		AddRow(int64(1), int64(10), int64(5), true, models.MembershipRoleMember, int64(10), "Acme", "acme", nil, true, nil).
		AddRow(int64(2), int64(11), int64(5), false, models.MembershipRoleMember, int64(11), "Globex", "globex", nil, true, nil).
		AddRow(int64(3), int64(12), int64(5), true, models.MembershipRoleAdmin, int64(12), "Design", "design", int64(10), false, nil).
		AddRow(int64(4), int64(13), int64(5), true, models.MembershipRoleMember, int64(13), "Legacy", nil, nil, false, []byte(`{"isOrganization":true}`))
}

func TestUserStorage_FindTeamsByUserID(t *testing.T) {
	st, mock := newUserStorage(t, nil)
	mock.ExpectQuery(regexp.QuoteMeta("from memberships m")).
		WithArgs(int64(5)).
		WillReturnRows(membershipRows())

	teams, err := st.FindTeamsByUserID(context.Background(), 5)
	if err != nil {
		t.Fatalf("FindTeamsByUserID returned err: %v", err)
	}
	if len(teams.Memberships) != 4 || len(teams.AcceptedMemberships) != 3 || len(teams.PendingMemberships) != 1 {
		t.Fatalf("unexpected classification: %#v", teams)
	}
	if len(teams.Teams) != 3 || teams.Teams[0].Name != "Acme" || teams.Teams[1].Name != "Design" {
		t.Fatalf("unexpected teams: %#v", teams.Teams)
	}
	if teams.PendingMemberships[0].TeamID != 11 {
		t.Fatalf("unexpected pending membership: %#v", teams.PendingMemberships[0])
	}
	verifyExpectations(t, mock)
}

func TestUserStorage_FindOrganizations(t *testing.T) {
	st, mock := newUserStorage(t, nil)
	mock.ExpectQuery(regexp.QuoteMeta("from memberships m")).
		WithArgs(int64(5)).
		WillReturnRows(membershipRows())

	orgs, err := st.FindOrganizations(context.Background(), 5)
	if err != nil {
		t.Fatalf("FindOrganizations returned err: %v", err)
	}
	if len(orgs) != 2 || orgs[0].ID != 10 || orgs[1].ID != 13 {
		t.Fatalf("expected accepted organizations 10 and 13, got %#v", orgs)
	}
	verifyExpectations(t, mock)
}

func TestUserStorage_FindOrganizations_QueryError(t *testing.T) {
	st, mock := newUserStorage(t, nil)
	mock.ExpectQuery(regexp.QuoteMeta("from memberships m")).
		WithArgs(int64(5)).
		WillReturnError(errors.New("db error"))

	if _, err := st.FindOrganizations(context.Background(), 5); err == nil {
		t.Fatalf("expected error, got nil")
	}
	verifyExpectations(t, mock)
}

func TestClassifyMemberships_Partition(t *testing.T) {
	memberships := []*models.Membership{
		{ID: 1, Accepted: true, Team: &models.Team{ID: 1}},
		{ID: 2, Accepted: false, Team: &models.Team{ID: 2}},
		{ID: 3, Accepted: false, Team: &models.Team{ID: 3}},
		{ID: 4, Accepted: true, Team: &models.Team{ID: 4}},
	}
	res := ClassifyMemberships(memberships)

	seen := make(map[int64]int)
	for _, m := range res.AcceptedMemberships {
		if !m.Accepted {
			t.Fatalf("pending membership %d classified as accepted", m.ID)
		}
		seen[m.ID]++
	}
	for _, m := range res.PendingMemberships {
		if m.Accepted {
			t.Fatalf("accepted membership %d classified as pending", m.ID)
		}
		seen[m.ID]++
	}
	if len(seen) != len(memberships) {
		t.Fatalf("expected full coverage, got %v", seen)
	}
	for id, n := range seen {
		if n != 1 {
			t.Fatalf("membership %d classified %d times", id, n)
		}
	}
	if len(res.Teams) != 2 || res.Teams[0].ID != 1 || res.Teams[1].ID != 4 {
		t.Fatalf("unexpected accepted teams: %#v", res.Teams)
	}
}

func TestClassifyMemberships_Empty(t *testing.T) {
	res := ClassifyMemberships(nil)
	if res.Memberships == nil || res.Teams == nil || res.AcceptedMemberships == nil || res.PendingMemberships == nil {
		t.Fatalf("expected empty non-nil slices, got %#v", res)
	}
}

func TestUserStorage_FindUsersByUsername_WithoutOrgSlug(t *testing.T) {
	profiles := &fakeProfiles{}
	st, mock := newUserStorage(t, profiles)
	mock.ExpectQuery(regexp.QuoteMeta("where u.username in ($1, $2) and u.organization_id is null")).
		WithArgs("alice", "bob").
		WillReturnRows(addUser(addUser(userRows(), 1, "alice"), 2, "bob"))

	users, err := st.FindUsersByUsername(context.Background(), "", []string{"alice", "bob"})
	if err != nil {
		t.Fatalf("FindUsersByUsername returned err: %v", err)
	}
	if profiles.slugCalls != 0 {
		t.Fatalf("profiles must not be consulted without an org slug")
	}
	if len(users) != 2 {
		t.Fatalf("expected 2 users, got %d", len(users))
	}
	for _, u := range users {
		if u.Profile == nil || u.Profile.ID != nil || u.Profile.OrganizationID != nil {
			t.Fatalf("expected personal profile for user %d, got %#v", u.ID, u.Profile)
		}
		if u.Profile.UpID != models.PersonalUpID(u.ID) || *u.Profile.Username != *u.Username {
			t.Fatalf("unexpected personal profile: %#v", u.Profile)
		}
	}
	verifyExpectations(t, mock)
}

func TestUserStorage_FindUsersByUsername_WithOrgSlug(t *testing.T) {
	profiles := &fakeProfiles{
		bySlug: []*models.ProfileWithUser{
			orgProfile(100, 1, 10, "alice"),
			orgProfile(101, 2, 10, "bob"),
		},
	}
	st, mock := newUserStorage(t, profiles)
	mock.ExpectQuery(regexp.QuoteMeta("from users u where u.id in ($1, $2) order by u.id")).
		WithArgs(int64(1), int64(2)).
		WillReturnRows(addUser(addUser(userRows(), 1, "alice-personal"), 2, "bob-personal"))

	users, err := st.FindUsersByUsername(context.Background(), "acme", []string{"alice", "bob"})
	if err != nil {
		t.Fatalf("FindUsersByUsername returned err: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("expected one entry per username, got %d", len(users))
	}
	for i, want := range []struct {
		profileID int64
		username  string
	}{{100, "alice"}, {101, "bob"}} {
		p := users[i].Profile
		if p == nil || p.ID == nil || *p.ID != want.profileID {
			t.Fatalf("user %d: unexpected profile %#v", users[i].ID, p)
		}
		if *p.Username != want.username || p.OrganizationID == nil || *p.OrganizationID != 10 {
			t.Fatalf("user %d: expected org scoped profile, got %#v", users[i].ID, p)
		}
		if p.Organization == nil || p.Organization.Slug == nil || *p.Organization.Slug != "acme" {
			t.Fatalf("user %d: expected parsed organization, got %#v", users[i].ID, p.Organization)
		}
	}
	verifyExpectations(t, mock)
}

func TestUserStorage_FindUsersByUsername_ProfileMissing(t *testing.T) {
	profiles := &fakeProfiles{
		bySlug: []*models.ProfileWithUser{orgProfile(100, 1, 10, "alice")},
	}
	st, mock := newUserStorage(t, profiles)
	mock.ExpectQuery(regexp.QuoteMeta("from users u where u.id in ($1) order by u.id")).
		WithArgs(int64(1)).
		WillReturnRows(addUser(userRows(), 2, "mallory"))

	_, err := st.FindUsersByUsername(context.Background(), "acme", []string{"alice"})
	if !errors.Is(err, ErrProfileNotFoundForUser) {
		t.Fatalf("expected ErrProfileNotFoundForUser, got %v", err)
	}
	verifyExpectations(t, mock)
}

func TestUserStorage_FindUsersByUsername_OrgSlugWithoutProfiles(t *testing.T) {
	profiles := &fakeProfiles{bySlug: []*models.ProfileWithUser{}}
	st, mock := newUserStorage(t, profiles)
	mock.ExpectQuery(regexp.QuoteMeta("join teams t on t.id = u.organization_id where u.username in ($2)")).
		WithArgs("acme", "alice").
		WillReturnRows(addUser(userRows(), 1, "alice"))

	users, err := st.FindUsersByUsername(context.Background(), "acme", []string{"alice"})
	if err != nil {
		t.Fatalf("FindUsersByUsername returned err: %v", err)
	}
	if profiles.slugCalls != 1 {
		t.Fatalf("expected profiles to be consulted once, got %d", profiles.slugCalls)
	}
	if len(users) != 1 || users[0].Profile.UpID != "usr-1" {
		t.Fatalf("expected personal profile fallback, got %#v", users)
	}
	verifyExpectations(t, mock)
}

func TestUserStorage_FindUsersByUsername_EmptyList(t *testing.T) {
	profiles := &fakeProfiles{}
	st, mock := newUserStorage(t, profiles)

	users, err := st.FindUsersByUsername(context.Background(), "acme", nil)
	if err != nil {
		t.Fatalf("FindUsersByUsername returned err: %v", err)
	}
	if users == nil || len(users) != 0 {
		t.Fatalf("expected empty slice, got %#v", users)
	}
	if profiles.slugCalls != 0 {
		t.Fatalf("expected no profile lookups")
	}
	verifyExpectations(t, mock)
}

func TestUserStorage_FindUsersByUsername_ProfileError(t *testing.T) {
	st, mock := newUserStorage(t, &fakeProfiles{err: errors.New("db error")})

	if _, err := st.FindUsersByUsername(context.Background(), "acme", []string{"alice"}); err == nil {
		t.Fatalf("expected error, got nil")
	}
	verifyExpectations(t, mock)
}

func TestUserStorage_FindManyByOrganization(t *testing.T) {
	profiles := &fakeProfiles{
		forOrg: []*models.ProfileWithUser{
			orgProfile(100, 1, 10, "alice"),
			orgProfile(101, 2, 10, "bob"),
		},
	}
	st, mock := newUserStorage(t, profiles)

	users, err := st.FindManyByOrganization(context.Background(), 10)
	if err != nil {
		t.Fatalf("FindManyByOrganization returned err: %v", err)
	}
	if len(users) != 2 || users[0].ID != 1 || users[1].ID != 2 {
		t.Fatalf("unexpected users: %#v", users)
	}
	verifyExpectations(t, mock)
}

func TestUserStorage_FindByIDWithProfiles(t *testing.T) {
	profiles := &fakeProfiles{
		forUser: []*models.UserProfile{{ID: int64Ptr(100), UpID: "100", OrganizationID: int64Ptr(10)}},
	}
	st, mock := newUserStorage(t, profiles)
	mock.ExpectQuery(regexp.QuoteMeta("from users u where u.id = $1")).
		WithArgs(int64(1)).
		WillReturnRows(addUser(userRows(), 1, "alice"))

	u, err := st.FindByIDWithProfiles(context.Background(), 1)
	if err != nil {
		t.Fatalf("FindByIDWithProfiles returned err: %v", err)
	}
	if u == nil || len(u.Profiles) != 1 || !st.IsAMemberOfOrganization(u, 10) {
		t.Fatalf("unexpected user: %#v", u)
	}
	verifyExpectations(t, mock)
}

func TestUserStorage_IsAMemberOfOrganization(t *testing.T) {
	st, _ := newUserStorage(t, nil)
	user := &models.UserWithProfiles{
		User: models.User{ID: 1},
		Profiles: []*models.UserProfile{
			{ID: int64Ptr(100), OrganizationID: int64Ptr(10)},
			{ID: int64Ptr(101), OrganizationID: int64Ptr(11)},
			nil,
			{UpID: "usr-1"},
		},
	}
	cases := []struct {
		name  string
		user  *models.UserWithProfiles
		orgID int64
		want  bool
	}{
		{name: "first org", user: user, orgID: 10, want: true},
		{name: "second org", user: user, orgID: 11, want: true},
		{name: "other org", user: user, orgID: 12, want: false},
		{name: "no profiles", user: &models.UserWithProfiles{}, orgID: 10, want: false},
		{name: "nil user", user: nil, orgID: 10, want: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := st.IsAMemberOfOrganization(tc.user, tc.orgID); got != tc.want {
				t.Fatalf("IsAMemberOfOrganization() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestUserStorage_EnrichUserWithProfile(t *testing.T) {
	orgUp := &models.UserProfile{ID: int64Ptr(100), UpID: "100", Username: stringPtr("alice"), OrganizationID: int64Ptr(10)}
	st, _ := newUserStorage(t, &fakeProfiles{byUpID: map[string]*models.UserProfile{"100": orgUp}})
	user := &models.User{ID: 1, Username: stringPtr("alice-personal")}

	got, err := st.EnrichUserWithProfile(context.Background(), user, "100")
	if err != nil {
		t.Fatalf("EnrichUserWithProfile returned err: %v", err)
	}
	if got.Profile != orgUp {
		t.Fatalf("expected organization profile, got %#v", got.Profile)
	}

	got, err = st.EnrichUserWithProfile(context.Background(), user, "999")
	if err != nil {
		t.Fatalf("EnrichUserWithProfile returned err: %v", err)
	}
	if got.Profile.UpID != "usr-1" || *got.Profile.Username != "alice-personal" {
		t.Fatalf("expected personal profile fallback, got %#v", got.Profile)
	}
}

func TestUserStorage_EnrichUserWithItsProfile(t *testing.T) {
	user := &models.User{ID: 1, Username: stringPtr("alice")}

	st, _ := newUserStorage(t, &fakeProfiles{})
	got, err := st.EnrichUserWithItsProfile(context.Background(), user)
	if err != nil {
		t.Fatalf("EnrichUserWithItsProfile returned err: %v", err)
	}
	if got.Profile.ID != nil || got.Profile.UpID != "usr-1" {
		t.Fatalf("expected personal profile, got %#v", got.Profile)
	}

	first := &models.UserProfile{ID: int64Ptr(100), UpID: "100"}
	st, _ = newUserStorage(t, &fakeProfiles{forUser: []*models.UserProfile{first, {ID: int64Ptr(101), UpID: "101"}}})
	got, err = st.EnrichUserWithItsProfile(context.Background(), user)
	if err != nil {
		t.Fatalf("EnrichUserWithItsProfile returned err: %v", err)
	}
	if got.Profile != first {
		t.Fatalf("expected first profile, got %#v", got.Profile)
	}
}

func TestUserStorage_EnrichEntityWithProfile(t *testing.T) {
	st, _ := newUserStorage(t, nil)
	if st.EnrichEntityWithProfile(nil) != nil {
		t.Fatalf("expected nil for nil profile")
	}
	got := st.EnrichEntityWithProfile(&models.Profile{
		ID:             100,
		OrganizationID: 10,
		Username:       "alice",
		Organization: &models.Team{
			ID:             10,
			Name:           "Acme",
			IsOrganization: true,
			Metadata:       []byte(`{"requestedSlug":"acme"}`),
		},
	})
	if got.UpID != "100" || *got.ID != 100 || *got.OrganizationID != 10 || *got.Username != "alice" {
		t.Fatalf("unexpected profile: %#v", got)
	}
	if got.Organization == nil || got.Organization.RequestedSlug == nil || *got.Organization.RequestedSlug != "acme" {
		t.Fatalf("expected parsed organization, got %#v", got.Organization)
	}
}

func TestUserStorage_UpdateWhereID(t *testing.T) {
	st, mock := newUserStorage(t, nil)
	mock.ExpectQuery(regexp.QuoteMeta("update users u set moved_to_profile_id = $2 where u.id = $1")).
		WithArgs(int64(1), int64(100)).
		WillReturnRows(userRows().AddRow(int64(1), "alice", nil, "alice@example.com", false, models.RoleUser, nil, int64(10), int64(100)))

	u, err := st.UpdateWhereID(context.Background(), 1, int64Ptr(100))
	if err != nil {
		t.Fatalf("UpdateWhereID returned err: %v", err)
	}
	if u.MovedToProfileID == nil || *u.MovedToProfileID != 100 {
		t.Fatalf("unexpected user: %#v", u)
	}
	verifyExpectations(t, mock)
}

func TestUserStorage_UpdateWhereID_NilProfile(t *testing.T) {
	st, mock := newUserStorage(t, nil)
	mock.ExpectQuery(regexp.QuoteMeta("from users u where u.id = $1")).
		WithArgs(int64(1)).
		WillReturnRows(addUser(userRows(), 1, "alice"))

	u, err := st.UpdateWhereID(context.Background(), 1, nil)
	if err != nil {
		t.Fatalf("UpdateWhereID returned err: %v", err)
	}
	if u == nil || u.MovedToProfileID != nil {
		t.Fatalf("unexpected user: %#v", u)
	}
	verifyExpectations(t, mock)
}

func TestUserStorage_UpdateWhereID_NotFound(t *testing.T) {
	st, mock := newUserStorage(t, nil)
	mock.ExpectQuery(regexp.QuoteMeta("update users u set moved_to_profile_id = $2")).
		WithArgs(int64(1), int64(100)).
		WillReturnRows(userRows())

	u, err := st.UpdateWhereID(context.Background(), 1, int64Ptr(100))
	if err != nil {
		t.Fatalf("UpdateWhereID returned err: %v", err)
	}
	if u != nil {
		t.Fatalf("expected nil user, got %#v", u)
	}
	verifyExpectations(t, mock)
}

func verifyExpectations(t *testing.T, mock sqlmock.Sqlmock) {
	t.Helper()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
