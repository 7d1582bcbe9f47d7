package sqlite_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/jrsteele09/go-admissions-auth/access"
	"github.com/jrsteele09/go-admissions-auth/agents"
	"github.com/jrsteele09/go-admissions-auth/audit"
	"github.com/jrsteele09/go-admissions-auth/profiles"
	"github.com/jrsteele09/go-admissions-auth/rolechange"
	"github.com/jrsteele09/go-admissions-auth/roles"
	"github.com/jrsteele09/go-admissions-auth/sessions"
	"github.com/jrsteele09/go-admissions-auth/storage/sqlite"
	"github.com/stretchr/testify/require"
)

// openInMemoryDB opens a migrated in-memory database shared by the pool's connections.
func openInMemoryDB(t *testing.T) *sql.DB {
	t.Helper()
	d, err := sqlite.Open("file:" + t.Name() + "?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func TestOpen_MigrationsAreTracked(t *testing.T) {
	d := openInMemoryDB(t)

	var count int
	require.NoError(t, d.QueryRow(`SELECT count(*) FROM schema_migrations`).Scan(&count))
	require.Equal(t, 1, count)

	again, err := sqlite.Open("file:" + t.Name() + "?mode=memory&cache=shared")
	require.NoError(t, err)
	defer again.Close()
	require.NoError(t, again.QueryRow(`SELECT count(*) FROM schema_migrations`).Scan(&count))
	require.Equal(t, 1, count)
}

func TestProfileRepo(t *testing.T) {
	ctx := context.Background()
	repo := sqlite.NewProfileRepo(openInMemoryDB(t))
	now := time.Now().UTC()

	_, err := repo.Get(ctx, "missing")
	require.ErrorIs(t, err, profiles.ErrProfileNotFound)

	p := &profiles.UserProfile{UserID: "user-1", Role: roles.RoleStudent, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, repo.Insert(ctx, p))
	require.ErrorIs(t, repo.Insert(ctx, p), profiles.ErrProfileExists)
	require.ErrorIs(t, repo.Insert(ctx, &profiles.UserProfile{}), profiles.ErrEmptyUserID)

	got, err := repo.Get(ctx, "user-1")
	require.NoError(t, err)
	require.Equal(t, roles.RoleStudent, got.Role)
	require.WithinDuration(t, now, got.CreatedAt, time.Millisecond)

	require.NoError(t, repo.UpdateRole(ctx, "user-1", roles.RoleStudent, roles.RoleCounselor))
	require.ErrorIs(t, repo.UpdateRole(ctx, "user-1", roles.RoleStudent, roles.RoleAdmin), profiles.ErrRoleConflict)
	require.ErrorIs(t, repo.UpdateRole(ctx, "missing", roles.RoleStudent, roles.RoleAdmin), profiles.ErrProfileNotFound)

	require.NoError(t, repo.Insert(ctx, &profiles.UserProfile{UserID: "user-2", Role: roles.RoleAgent, CreatedAt: now.Add(time.Second), UpdatedAt: now}))
	list, err := repo.List(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "user-1", list[0].UserID)
	require.Equal(t, roles.RoleCounselor, list[0].Role)

	list, err = repo.List(ctx, 1, 1)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "user-2", list[0].UserID)
}

func TestAgentRepo(t *testing.T) {
	ctx := context.Background()
	repo := sqlite.NewAgentRepo(openInMemoryDB(t))

	_, err := repo.GetByUserID(ctx, "agent-1")
	require.ErrorIs(t, err, agents.ErrAgentNotFound)

	a := &agents.Agent{UserID: "agent-1", CompanyName: "Bright Futures", Country: "IN", IsActive: true}
	require.NoError(t, repo.Upsert(ctx, a))
	id := a.ID

	require.NoError(t, repo.Upsert(ctx, &agents.Agent{UserID: "agent-1", CompanyName: "Bright Futures Ltd", IsActive: false}))
	got, err := repo.GetByUserID(ctx, "agent-1")
	require.NoError(t, err)
	require.Equal(t, id, got.ID)
	require.Equal(t, "Bright Futures Ltd", got.CompanyName)
	require.False(t, got.IsActive)
}

func TestAuditStore(t *testing.T) {
	ctx := context.Background()
	store := sqlite.NewAuditStore(openInMemoryDB(t))
	base := time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)
	table, record, newValues := audit.TableUserProfiles, "user-1", `{"role":"editor"}`

	require.NoError(t, store.Append(ctx, audit.Record{Action: audit.ActionUnauthorizedRoleChange, CreatedAt: base}))
	require.NoError(t, store.Append(ctx, audit.Record{
		ID:          "evt-2",
		Action:      audit.ActionRoleChanged,
		TableName:   &table,
		RecordID:    &record,
		NewValues:   &newValues,
		ActorUserID: "admin-1",
		CreatedAt:   base.Add(time.Minute),
	}))

	events, err := store.List(ctx, 0, 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Equal(t, "evt-2", events[0].ID)
	require.Equal(t, audit.ActionRoleChanged, events[0].Action)
	require.Equal(t, "admin-1", events[0].ActorUserID)
	require.Equal(t, "user_profiles", *events[0].TableName)
	require.JSONEq(t, newValues, string(events[0].NewValues))
	require.Nil(t, events[0].OldValues)
	require.Empty(t, events[1].ActorUserID)
	require.Nil(t, events[1].TableName)
}

func TestStudentFirstVisitCreatesProfile(t *testing.T) {
	ctx := context.Background()
	repo := sqlite.NewProfileRepo(openInMemoryDB(t))
	resolver, err := profiles.NewResolver(repo)
	require.NoError(t, err)
	guard, err := access.NewStudentGuard(resolver)
	require.NoError(t, err)

	d := guard.Evaluate(ctx, &sessions.Session{UserID: "new-student"})
	require.Equal(t, access.StateAuthorized, d.State)
	resolver.Wait()

	p, err := repo.Get(ctx, "new-student")
	require.NoError(t, err)
	require.Equal(t, roles.RoleStudent, p.Role)
}

func TestRoleChangeAudited(t *testing.T) {
	ctx := context.Background()
	d := openInMemoryDB(t)
	repo := sqlite.NewProfileRepo(d)
	store := sqlite.NewAuditStore(d)
	now := time.Now()
	require.NoError(t, repo.Insert(ctx, &profiles.UserProfile{UserID: "admin-1", Role: roles.RoleAdmin, CreatedAt: now, UpdatedAt: now}))
	require.NoError(t, repo.Insert(ctx, &profiles.UserProfile{UserID: "user-1", Role: roles.RoleStudent, CreatedAt: now, UpdatedAt: now}))

	resolver, err := profiles.NewResolver(repo)
	require.NoError(t, err)
	logger, err := audit.NewLogger(store)
	require.NoError(t, err)
	service, err := rolechange.NewService(repo, resolver, logger)
	require.NoError(t, err)

	res := service.UpdateUserRole(ctx, &sessions.Session{UserID: "admin-1"}, "user-1", "editor")
	require.True(t, res.Success)

	events, err := store.List(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, audit.ActionRoleChanged, events[0].Action)
	require.JSONEq(t, `{"role":"student"}`, string(events[0].OldValues))
	require.JSONEq(t, `{"role":"editor"}`, string(events[0].NewValues))
	require.Equal(t, "admin-1", events[0].ActorUserID)
}
