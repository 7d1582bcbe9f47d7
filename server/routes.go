package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jrsteele09/go-admissions-auth/roles"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) initRoutes() {
	r := s.router

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.RecoverMiddleware)
	r.Use(s.LoggingMiddleware)
	r.Use(s.FrameSecurityMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.config.GetAllowedOrigins(),
		AllowedMethods:   s.config.GetAllowedMethods(),
		AllowedHeaders:   s.config.GetAllowedHeaders(),
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get(RouteHealth, s.HealthHandler())
	r.Handle(RouteMetrics, promhttp.Handler())

	// Everything below knows who is asking
	r.Group(func(r chi.Router) {
		r.Use(s.IdentityMiddleware)

		r.Get(RouteSignIn, s.SignInPageHandler(RouteSignIn))
		r.Get(RouteAdminSignIn, s.SignInPageHandler(RouteAdminSignIn))
		r.Get(RouteOAuthStart, s.OAuthStartHandler())
		r.Get(RouteCallback, s.OAuthCallbackHandler())
		r.Post(RouteCallback, s.OAuthCallbackHandler()) // form_post response mode
		r.Post(RouteAuthLogout, s.LogoutHandler())

		r.Get(RouteAPISession, s.SessionHandler())

		r.Route(RouteAdmin, func(r chi.Router) {
			r.Use(s.GuardMiddleware(s.guards.admin))

			r.With(s.RequirePermission(roles.PermManageUsers)).Get(RouteAdminAPIUsers, s.ListUsersHandler())
			// Every caller reaching the role mutation is audited, so it is not permission-gated here
			r.Put(RouteAdminAPIUserRole, s.UpdateUserRoleHandler())
			r.With(s.RequirePermission(roles.PermViewAuditLogs)).Get(RouteAdminAPIAudit, s.ListAuditLogsHandler())

			r.Get("/", s.DashboardHandler(s.guards.admin.Name()))
			r.Get("/*", s.DashboardHandler(s.guards.admin.Name()))
		})

		r.Route(RouteAgent, func(r chi.Router) {
			r.Use(s.GuardMiddleware(s.guards.agent))
			r.Get("/", s.DashboardHandler(s.guards.agent.Name()))
			r.Get("/*", s.DashboardHandler(s.guards.agent.Name()))
		})

		r.Route(RouteStudent, func(r chi.Router) {
			r.Use(s.GuardMiddleware(s.guards.student))
			r.Get("/", s.DashboardHandler(s.guards.student.Name()))
			r.Get("/*", s.DashboardHandler(s.guards.student.Name()))
		})
	})
}

func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
