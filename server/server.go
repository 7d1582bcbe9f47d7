package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/go-chi/chi/v5"
	"github.com/jrsteele09/go-admissions-auth/access"
	"github.com/jrsteele09/go-admissions-auth/agents"
	"github.com/jrsteele09/go-admissions-auth/audit"
	"github.com/jrsteele09/go-admissions-auth/internal/config"
	"github.com/jrsteele09/go-admissions-auth/profiles"
	"github.com/jrsteele09/go-admissions-auth/rolechange"
	"github.com/jrsteele09/go-admissions-auth/server/authflowrepo"
	"github.com/jrsteele09/go-admissions-auth/server/loginsession"
	"github.com/jrsteele09/go-admissions-auth/token"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

// OidcConfig is the identity provider the sign-in flow redirects to.
type OidcConfig struct {
	OAuth2Config *oauth2.Config
	OidcVerifier *oidc.IDTokenVerifier
}

// NewOidcConfig discovers the provider at issuerURL.
func NewOidcConfig(ctx context.Context, issuerURL, clientID, clientSecret, baseURL string) (*OidcConfig, error) {
	provider, err := oidc.NewProvider(ctx, issuerURL)
	if err != nil {
		return nil, fmt.Errorf("[NewOidcConfig] failed to create OIDC provider: %w", err)
	}
	return &OidcConfig{
		OAuth2Config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     provider.Endpoint(),
			RedirectURL:  baseURL + RouteCallback,
			Scopes:       []string{oidc.ScopeOpenID, "profile", "email", oidc.ScopeOfflineAccess},
		},
		OidcVerifier: provider.Verifier(&oidc.Config{ClientID: clientID}),
	}, nil
}

// Deps are the stores the server is wired to.
type Deps struct {
	Profiles      profiles.Repo
	Agents        agents.Repo
	AuditSink     audit.Sink
	AuditReader   audit.Reader
	LoginSessions loginsession.Repo
	AuthFlows     authflowrepo.Repo
}

type guards struct {
	admin   *access.Guard
	agent   *access.Guard
	student *access.Guard
}

type Server struct {
	env           string
	router        chi.Router
	config        config.Config
	profiles      profiles.Repo
	resolver      *profiles.Resolver
	roleChanges   *rolechange.Service
	auditReader   audit.Reader
	guards        guards
	tokens        *token.Verifier
	oidc          *OidcConfig
	loginSessions loginsession.Repo
	authState     authflowrepo.Repo
	nowTime       func() time.Time
}

type Option func(*Server)

// WithTokenVerifier enables bearer token authentication.
func WithTokenVerifier(v *token.Verifier) Option {
	return func(s *Server) {
		s.tokens = v
	}
}

// WithOIDC enables the browser sign-in flow.
func WithOIDC(c *OidcConfig) Option {
	return func(s *Server) {
		s.oidc = c
	}
}

func WithNowTime(nowFunc func() time.Time) Option {
	return func(s *Server) {
		s.nowTime = nowFunc
	}
}

func New(cfg config.Config, deps Deps, options ...Option) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("[Server New] config is required")
	}
	if deps.Profiles == nil || deps.Agents == nil || deps.AuditSink == nil || deps.AuditReader == nil {
		return nil, errors.New("[Server New] profile, agent and audit stores are required")
	}
	if deps.LoginSessions == nil || deps.AuthFlows == nil {
		return nil, errors.New("[Server New] login session and auth flow repos are required")
	}

	s := &Server{
		env:           cfg.GetEnv(),
		router:        chi.NewRouter(),
		config:        cfg,
		profiles:      deps.Profiles,
		auditReader:   deps.AuditReader,
		loginSessions: deps.LoginSessions,
		authState:     deps.AuthFlows,
		nowTime:       time.Now,
	}
	for _, opt := range options {
		opt(s)
	}

	var err error
	if s.resolver, err = profiles.NewResolver(deps.Profiles); err != nil {
		return nil, fmt.Errorf("[Server New] resolver: %w", err)
	}
	auditLogger, err := audit.NewLogger(deps.AuditSink)
	if err != nil {
		return nil, fmt.Errorf("[Server New] audit logger: %w", err)
	}
	if s.roleChanges, err = rolechange.NewService(deps.Profiles, s.resolver, auditLogger); err != nil {
		return nil, fmt.Errorf("[Server New] role change service: %w", err)
	}
	if s.guards.admin, err = access.NewAdminGuard(s.resolver); err != nil {
		return nil, fmt.Errorf("[Server New] admin guard: %w", err)
	}
	if s.guards.agent, err = access.NewAgentGuard(s.resolver, deps.Agents); err != nil {
		return nil, fmt.Errorf("[Server New] agent guard: %w", err)
	}
	if s.guards.student, err = access.NewStudentGuard(s.resolver); err != nil {
		return nil, fmt.Errorf("[Server New] student guard: %w", err)
	}

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Close waits for background profile creation started by requests.
func (s *Server) Close() {
	s.resolver.Wait()
}

// PurgeLoginSessions drops expired login sessions until ctx is done.
func (s *Server) PurgeLoginSessions(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.loginSessions.DeleteExpired(s.nowTime()); n > 0 {
				log.Debug().Int("count", n).Msg("purged expired login sessions")
			}
		}
	}
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return
	}
	_ = chi.Walk(s.router, func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		logRoute(method, route)
		return nil
	})
}

func logRoute(method, path string) {
	paddedMethod := fmt.Sprintf(" %-7s", method)
	color, ok := methodColors[method]
	if !ok {
		color = Gray
	}
	log.Debug().Msgf("[%s] %s", color+paddedMethod+ResetColor, path)
}

// Helper function to determine the scheme (http/https)
func getScheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	if scheme := r.Header.Get("X-Forwarded-Proto"); scheme != "" {
		return strings.ToLower(scheme)
	}
	return "http"
}
