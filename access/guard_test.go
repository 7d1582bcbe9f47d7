package access_test

import (
	"context"
	"errors"
	"testing"

	"github.com/jrsteele09/go-admissions-auth/access"
	"github.com/jrsteele09/go-admissions-auth/agents"
	agentrepofake "github.com/jrsteele09/go-admissions-auth/agents/repofake"
	"github.com/jrsteele09/go-admissions-auth/profiles"
	profilerepofake "github.com/jrsteele09/go-admissions-auth/profiles/repofake"
	"github.com/jrsteele09/go-admissions-auth/roles"
	"github.com/jrsteele09/go-admissions-auth/sessions"
	"github.com/stretchr/testify/require"
)

type testFixture struct {
	profiles *profilerepofake.FakeProfileRepo
	agents   *agentrepofake.FakeAgentRepo
	resolver *profiles.Resolver
	admin    *access.Guard
	agent    *access.Guard
	student  *access.Guard
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()
	profileRepo := profilerepofake.NewFakeProfileRepo()
	agentRepo := agentrepofake.NewFakeAgentRepo()
	resolver, err := profiles.NewResolver(profileRepo)
	require.NoError(t, err)

	admin, err := access.NewAdminGuard(resolver)
	require.NoError(t, err)
	agent, err := access.NewAgentGuard(resolver, agentRepo)
	require.NoError(t, err)
	student, err := access.NewStudentGuard(resolver)
	require.NoError(t, err)

	return &testFixture{
		profiles: profileRepo,
		agents:   agentRepo,
		resolver: resolver,
		admin:    admin,
		agent:    agent,
		student:  student,
	}
}

func (f *testFixture) guards() map[string]*access.Guard {
	return map[string]*access.Guard{"admin": f.admin, "agent": f.agent, "student": f.student}
}

// user seeds a profile with role and returns a session for it.
func (f *testFixture) user(t *testing.T, userID string, role roles.Role) *sessions.Session {
	t.Helper()
	f.profiles.Seed(userID, role)
	if role == roles.RoleAgent {
		require.NoError(t, f.agents.Upsert(context.Background(), &agents.Agent{UserID: userID, CompanyName: "Study Abroad Ltd", IsActive: true}))
	}
	return &sessions.Session{UserID: userID}
}

func TestNewGuard_Validation(t *testing.T) {
	resolver, err := profiles.NewResolver(profilerepofake.NewFakeProfileRepo())
	require.NoError(t, err)
	valid := access.Config{Name: "g", AllowedRoles: []roles.Role{roles.RoleAdmin}, SignInRoute: "/auth"}

	_, err = access.NewGuard(valid, nil)
	require.Error(t, err)

	noName := valid
	noName.Name = ""
	_, err = access.NewGuard(noName, resolver)
	require.Error(t, err)

	noRoute := valid
	noRoute.SignInRoute = ""
	_, err = access.NewGuard(noRoute, resolver)
	require.Error(t, err)

	noRoles := valid
	noRoles.AllowedRoles = nil
	_, err = access.NewGuard(noRoles, resolver)
	require.Error(t, err)

	badRole := valid
	badRole.AllowedRoles = []roles.Role{"owner"}
	_, err = access.NewGuard(badRole, resolver)
	require.ErrorIs(t, err, roles.ErrUnknownRole)

	_, err = access.NewAgentGuard(resolver, nil)
	require.Error(t, err)
}

func TestGuard_NoSession(t *testing.T) {
	f := setupTestFixture(t)
	want := map[string]string{"admin": "/admin/auth", "agent": "/auth", "student": "/auth"}

	for name, guard := range f.guards() {
		t.Run(name, func(t *testing.T) {
			d := guard.Evaluate(context.Background(), nil)
			require.Equal(t, access.StateUnauthorized, d.State)
			require.Equal(t, want[name], d.Redirect)

			d = guard.Evaluate(context.Background(), &sessions.Session{})
			require.Equal(t, access.StateUnauthorized, d.State)
			require.Equal(t, want[name], d.Redirect)
		})
	}
}

func TestGuard_MatchingRoleIsAuthorized(t *testing.T) {
	ctx := context.Background()
	f := setupTestFixture(t)

	for _, role := range []roles.Role{roles.RoleAdmin, roles.RoleEditor, roles.RoleCounselor} {
		d := f.admin.Evaluate(ctx, f.user(t, "staff-"+string(role), role))
		require.True(t, d.Authorized(), role)
		require.Equal(t, role, d.Role)
	}

	d := f.agent.Evaluate(ctx, f.user(t, "agent-1", roles.RoleAgent))
	require.True(t, d.Authorized())

	d = f.student.Evaluate(ctx, f.user(t, "student-1", roles.RoleStudent))
	require.True(t, d.Authorized())
}

func TestGuard_WrongRoleRedirectsHome(t *testing.T) {
	ctx := context.Background()
	f := setupTestFixture(t)

	tests := []struct {
		guard    *access.Guard
		role     roles.Role
		redirect string
	}{
		{f.admin, roles.RoleAgent, "/agent"},
		{f.admin, roles.RoleStudent, "/admin/auth"},
		{f.agent, roles.RoleAdmin, "/admin"},
		{f.agent, roles.RoleEditor, "/admin"},
		{f.agent, roles.RoleCounselor, "/admin"},
		{f.agent, roles.RoleStudent, "/auth"},
		{f.student, roles.RoleAdmin, "/admin"},
		{f.student, roles.RoleCounselor, "/admin"},
		{f.student, roles.RoleAgent, "/agent"},
	}
	for _, tt := range tests {
		t.Run(tt.guard.Name()+"/"+string(tt.role), func(t *testing.T) {
			d := tt.guard.Evaluate(ctx, f.user(t, "u-"+tt.guard.Name()+"-"+string(tt.role), tt.role))
			require.Equal(t, access.StateUnauthorized, d.State)
			require.Equal(t, tt.role, d.Role)
			require.Equal(t, tt.redirect, d.Redirect)
		})
	}
}

func TestGuard_AgentRecord(t *testing.T) {
	ctx := context.Background()

	t.Run("inactive agent", func(t *testing.T) {
		f := setupTestFixture(t)
		f.profiles.Seed("agent-1", roles.RoleAgent)
		require.NoError(t, f.agents.Upsert(ctx, &agents.Agent{UserID: "agent-1", IsActive: false}))

		d := f.agent.Evaluate(ctx, &sessions.Session{UserID: "agent-1"})
		require.Equal(t, access.StateUnauthorized, d.State)
		require.Equal(t, "/auth", d.Redirect)
	})

	t.Run("missing agent record", func(t *testing.T) {
		f := setupTestFixture(t)
		f.profiles.Seed("agent-1", roles.RoleAgent)

		d := f.agent.Evaluate(ctx, &sessions.Session{UserID: "agent-1"})
		require.Equal(t, access.StateUnauthorized, d.State)
	})

	t.Run("agent lookup failure", func(t *testing.T) {
		f := setupTestFixture(t)
		s := f.user(t, "agent-1", roles.RoleAgent)
		f.agents.SetError(errors.New("connection reset"))

		d := f.agent.Evaluate(ctx, s)
		require.Equal(t, access.StateUnauthorized, d.State)
		require.Equal(t, "/auth", d.Redirect)
	})
}

func TestGuard_LookupFailurePolicy(t *testing.T) {
	ctx := context.Background()
	f := setupTestFixture(t)
	s := f.user(t, "user-1", roles.RoleAdmin)
	f.profiles.SetGetError(errors.New("statement timeout"))

	d := f.admin.Evaluate(ctx, s)
	require.Equal(t, access.StateUnauthorized, d.State)
	require.Equal(t, "/admin/auth", d.Redirect)

	d = f.agent.Evaluate(ctx, s)
	require.Equal(t, access.StateUnauthorized, d.State)
	require.Equal(t, "/auth", d.Redirect)

	d = f.student.Evaluate(ctx, s)
	require.Equal(t, access.StateAuthorized, d.State)
	require.Equal(t, roles.RoleStudent, d.Role)
}

func TestGuard_Idempotent(t *testing.T) {
	ctx := context.Background()
	f := setupTestFixture(t)
	s := f.user(t, "user-1", roles.RoleEditor)

	first := f.admin.Evaluate(ctx, s)
	second := f.admin.Evaluate(ctx, s)
	require.Equal(t, first, second)
}

func TestHomeFor(t *testing.T) {
	require.Equal(t, "/admin", access.HomeFor(roles.RoleAdmin))
	require.Equal(t, "/admin", access.HomeFor(roles.RoleEditor))
	require.Equal(t, "/admin", access.HomeFor(roles.RoleCounselor))
	require.Equal(t, "/agent", access.HomeFor(roles.RoleAgent))
	require.Equal(t, "/student-dashboard", access.HomeFor(roles.RoleStudent))
}

func TestScenario_AnonymousAdminVisit(t *testing.T) {
	f := setupTestFixture(t)

	d := f.admin.Evaluate(context.Background(), sessions.FromContext(context.Background()))
	require.Equal(t, access.StateUnauthorized, d.State)
	require.Equal(t, access.RouteAdminSignIn, d.Redirect)
}

func TestScenario_StudentOnAdminRoute(t *testing.T) {
	f := setupTestFixture(t)

	d := f.admin.Evaluate(context.Background(), f.user(t, "student-1", roles.RoleStudent))
	require.Equal(t, access.StateUnauthorized, d.State)
	require.Equal(t, access.RouteAdminSignIn, d.Redirect)
	require.NotEqual(t, access.RouteAdminHome, d.Redirect)
}

func TestScenario_FirstStudentVisitCreatesProfile(t *testing.T) {
	ctx := context.Background()
	f := setupTestFixture(t)

	d := f.student.Evaluate(ctx, &sessions.Session{UserID: "new-student"})
	require.Equal(t, access.StateAuthorized, d.State)
	require.Equal(t, roles.RoleStudent, d.Role)

	f.resolver.Wait()
	p, err := f.profiles.Get(ctx, "new-student")
	require.NoError(t, err)
	require.Equal(t, roles.RoleStudent, p.Role)
}
