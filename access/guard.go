package access

import (
	"context"

	"github.com/jrsteele09/go-admissions-auth/internal/metrics"
	"github.com/jrsteele09/go-admissions-auth/profiles"
	"github.com/jrsteele09/go-admissions-auth/roles"
	"github.com/jrsteele09/go-admissions-auth/sessions"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

type State string

const (
	StatePending      State = "pending"
	StateAuthorized   State = "authorized"
	StateUnauthorized State = "unauthorized"
)

// ErrorPolicy decides the outcome when the role lookup fails.
type ErrorPolicy int

const (
	FailClosed ErrorPolicy = iota
	FailOpen
)

func (p ErrorPolicy) String() string {
	if p == FailOpen {
		return "fail_open"
	}
	return "fail_closed"
}

// ExtraCheck is an additional requirement after the role matched.
type ExtraCheck func(ctx context.Context, session *sessions.Session, role roles.Role) (bool, error)

// Config describes one guarded route subtree.
type Config struct {
	Name                 string
	AllowedRoles         []roles.Role
	SignInRoute          string
	RoleHomes            map[roles.Role]string // wrong-role redirects, defaults to ElevatedRoleHomes
	ExtraCheck           ExtraCheck
	OnError              ErrorPolicy
	CreateMissingProfile bool
}

// Decision is the result of evaluating a guard. Redirect is set when State is
// StateUnauthorized.
type Decision struct {
	State    State      `json:"state"`
	Role     roles.Role `json:"role,omitempty"`
	Redirect string     `json:"redirect,omitempty"`
}

func (d Decision) Authorized() bool {
	return d.State == StateAuthorized
}

type Guard struct {
	cfg      Config
	allowed  map[roles.Role]bool
	resolver *profiles.Resolver
}

func NewGuard(cfg Config, resolver *profiles.Resolver) (*Guard, error) {
	if resolver == nil {
		return nil, errors.New("[NewGuard] role resolver is required")
	}
	if cfg.Name == "" {
		return nil, errors.New("[NewGuard] guard name is required")
	}
	if cfg.SignInRoute == "" {
		return nil, errors.New("[NewGuard] sign-in route is required")
	}
	if len(cfg.AllowedRoles) == 0 {
		return nil, errors.New("[NewGuard] at least one allowed role is required")
	}
	if cfg.RoleHomes == nil {
		cfg.RoleHomes = ElevatedRoleHomes
	}

	allowed := make(map[roles.Role]bool, len(cfg.AllowedRoles))
	for _, r := range cfg.AllowedRoles {
		if !r.Valid() {
			return nil, errors.Wrapf(roles.ErrUnknownRole, "[NewGuard] allowed role %q", r)
		}
		allowed[r] = true
	}
	return &Guard{cfg: cfg, allowed: allowed, resolver: resolver}, nil
}

func (g *Guard) Name() string {
	return g.cfg.Name
}

func (g *Guard) SignInRoute() string {
	return g.cfg.SignInRoute
}

// Evaluate decides whether session may enter the guarded subtree.
func (g *Guard) Evaluate(ctx context.Context, session *sessions.Session) Decision {
	d := g.evaluate(ctx, session)
	metrics.GuardDecisions.WithLabelValues(g.cfg.Name, string(d.State)).Inc()
	if !d.Authorized() {
		log.Debug().Str("guard", g.cfg.Name).Str("user_id", session.Identity()).Str("role", string(d.Role)).Str("redirect", d.Redirect).Msg("Guard denied access")
	}
	return d
}

func (g *Guard) evaluate(ctx context.Context, session *sessions.Session) Decision {
	if session == nil || session.UserID == "" {
		return g.toSignIn("")
	}

	var (
		res profiles.Resolution
		err error
	)
	if g.cfg.CreateMissingProfile {
		res, err = g.resolver.ResolveOrCreate(ctx, session.UserID)
	} else {
		res, err = g.resolver.Resolve(ctx, session.UserID)
	}
	if err != nil {
		if g.cfg.OnError == FailOpen {
			return Decision{State: StateAuthorized, Role: res.Role}
		}
		return g.toSignIn(res.Role)
	}

	if !g.allowed[res.Role] {
		if home, ok := g.cfg.RoleHomes[res.Role]; ok {
			return Decision{State: StateUnauthorized, Role: res.Role, Redirect: home}
		}
		return g.toSignIn(res.Role)
	}

	if g.cfg.ExtraCheck != nil {
		ok, err := g.cfg.ExtraCheck(ctx, session, res.Role)
		if err != nil {
			log.Err(err).Str("guard", g.cfg.Name).Str("user_id", session.UserID).Msg("Guard check failed")
		}
		if err != nil || !ok {
			return g.toSignIn(res.Role)
		}
	}

	return Decision{State: StateAuthorized, Role: res.Role}
}

func (g *Guard) toSignIn(role roles.Role) Decision {
	return Decision{State: StateUnauthorized, Role: role, Redirect: g.cfg.SignInRoute}
}
