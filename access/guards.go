package access

import (
	"context"

	"github.com/jrsteele09/go-admissions-auth/agents"
	"github.com/jrsteele09/go-admissions-auth/profiles"
	"github.com/jrsteele09/go-admissions-auth/roles"
	"github.com/jrsteele09/go-admissions-auth/sessions"
	"github.com/pkg/errors"
)

const (
	GuardAdmin   = "admin"
	GuardAgent   = "agent"
	GuardStudent = "student"
)

// NewAdminGuard protects the admin panel. Staff roles may enter.
func NewAdminGuard(resolver *profiles.Resolver) (*Guard, error) {
	return NewGuard(Config{
		Name:         GuardAdmin,
		AllowedRoles: []roles.Role{roles.RoleAdmin, roles.RoleEditor, roles.RoleCounselor},
		SignInRoute:  RouteAdminSignIn,
		OnError:      FailClosed,
	}, resolver)
}

// NewAgentGuard protects the agent dashboard. The agent record must be active.
func NewAgentGuard(resolver *profiles.Resolver, agentRepo agents.Repo) (*Guard, error) {
	if agentRepo == nil {
		return nil, errors.New("[NewAgentGuard] agents repo is required")
	}
	return NewGuard(Config{
		Name:         GuardAgent,
		AllowedRoles: []roles.Role{roles.RoleAgent},
		SignInRoute:  RouteSignIn,
		OnError:      FailClosed,
		ExtraCheck:   activeAgentCheck(agentRepo),
	}, resolver)
}

// NewStudentGuard protects the student dashboard. First visits create the
// profile, and lookup failures let the student through.
func NewStudentGuard(resolver *profiles.Resolver) (*Guard, error) {
	return NewGuard(Config{
		Name:                 GuardStudent,
		AllowedRoles:         []roles.Role{roles.RoleStudent},
		SignInRoute:          RouteSignIn,
		OnError:              FailOpen,
		CreateMissingProfile: true,
	}, resolver)
}

func activeAgentCheck(repo agents.Repo) ExtraCheck {
	return func(ctx context.Context, session *sessions.Session, _ roles.Role) (bool, error) {
		agent, err := repo.GetByUserID(ctx, session.UserID)
		if errors.Is(err, agents.ErrAgentNotFound) {
			return false, nil
		}
		if err != nil {
			return false, errors.Wrap(err, "[activeAgentCheck] repo.GetByUserID")
		}
		return agent.IsActive, nil
	}
}
