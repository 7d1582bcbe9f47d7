package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/jrsteele09/go-admissions-auth/access"
	"github.com/jrsteele09/go-admissions-auth/roles"
	"github.com/jrsteele09/go-admissions-auth/sessions"
	"github.com/rs/zerolog/log"
)

type decisionKey struct{}

func withDecision(ctx context.Context, d access.Decision) context.Context {
	return context.WithValue(ctx, decisionKey{}, d)
}

// decisionFromContext returns the guard decision that admitted the request.
func decisionFromContext(ctx context.Context) (access.Decision, bool) {
	d, ok := ctx.Value(decisionKey{}).(access.Decision)
	return d, ok
}

// IdentityMiddleware puts the caller's session on the request context.
// A bearer token wins over the login-session cookie.
func (s *Server) IdentityMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.tokens != nil {
			if raw, ok := bearerToken(r); ok {
				session, err := s.tokens.Verify(raw)
				if err != nil {
					log.Debug().Err(err).Str("path", r.URL.Path).Msg("rejected bearer token")
					writeJSONError(w, http.StatusUnauthorized, "invalid access token", RouteSignIn)
					return
				}
				next.ServeHTTP(w, r.WithContext(sessions.WithSession(r.Context(), session)))
				return
			}
		}

		if session := s.loginSessionFromCookie(w, r); session != nil {
			r = r.WithContext(sessions.WithSession(r.Context(), session))
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) loginSessionFromCookie(w http.ResponseWriter, r *http.Request) *sessions.Session {
	cookie, err := r.Cookie(loggedInSessionID)
	if err != nil || cookie.Value == "" {
		return nil
	}
	loginSession, err := s.loginSessions.Get(cookie.Value)
	if err != nil {
		s.clearLoginSessionCookie(w, r)
		return nil
	}
	if loginSession.Expired(s.nowTime()) {
		_ = s.loginSessions.Delete(cookie.Value)
		s.clearLoginSessionCookie(w, r)
		return nil
	}
	return loginSession.Identity()
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return "", false
	}
	return strings.TrimSpace(header[7:]), true
}

// GuardMiddleware admits requests the guard authorizes. Denied page requests
// are redirected, denied API requests get a JSON error naming the redirect.
func (s *Server) GuardMiddleware(guard *access.Guard) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session := sessions.FromContext(r.Context())
			decision := guard.Evaluate(r.Context(), session)
			if decision.Authorized() {
				next.ServeHTTP(w, r.WithContext(withDecision(r.Context(), decision)))
				return
			}

			if isAPIRequest(r) {
				status := http.StatusForbidden
				if session == nil {
					status = http.StatusUnauthorized
				}
				writeJSONError(w, status, http.StatusText(status), decision.Redirect)
				return
			}
			redirectSuccess(w, r, decision.Redirect)
		})
	}
}

// RequirePermission rejects callers whose admitted role lacks p.
func (s *Server) RequirePermission(p roles.Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			decision, ok := decisionFromContext(r.Context())
			if !ok || !roles.HasPermission(decision.Role, p) {
				writeJSONError(w, http.StatusForbidden, "Insufficient privileges", "")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
