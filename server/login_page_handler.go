package server

import (
	"net/http"
	"net/url"

	"github.com/jrsteele09/go-admissions-auth/access"
	"github.com/jrsteele09/go-admissions-auth/roles"
	"github.com/jrsteele09/go-admissions-auth/sessions"
	"github.com/rs/zerolog/log"
)

// SignInPageData contains data for rendering the sign-in page
type SignInPageData struct {
	AppName  string
	Title    string
	StartURL string
	Error    string
	Enabled  bool
}

// SignInPageHandler renders the sign-in page served at route. Signed-in users
// who belong to the page's area go straight to their home.
func (s *Server) SignInPageHandler(route string) http.HandlerFunc {
	tmpl, err := ParseTemplate("signin.html")
	if err != nil {
		log.Err(err).Msg("Failed to parse sign-in template")
	}

	title := "Sign in"
	defaultReturn := ""
	if route == RouteAdminSignIn {
		title = "Staff sign in"
		defaultReturn = RouteAdmin
	}

	return func(w http.ResponseWriter, r *http.Request) {
		if session := sessions.FromContext(r.Context()); session != nil {
			resolution, _ := s.resolver.Resolve(r.Context(), session.UserID)
			if route != RouteAdminSignIn || resolution.Role.IsStaff() {
				redirectSuccess(w, r, access.HomeFor(resolution.Role))
				return
			}
		}

		returnTo := safeReturnURL(r.URL.Query().Get("return_to"))
		if returnTo == "" {
			returnTo = defaultReturn
		}
		startURL := RouteOAuthStart
		if returnTo != "" {
			startURL += "?return_to=" + url.QueryEscape(returnTo)
		}

		data := SignInPageData{
			AppName:  s.config.GetAppName(),
			Title:    title,
			StartURL: startURL,
			Error:    r.URL.Query().Get("error"),
			Enabled:  s.oidc != nil,
		}
		if tmpl == nil {
			http.Error(w, "Failed to render sign-in page", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", contentTypeHTML)
		if err := tmpl.Execute(w, data); err != nil {
			log.Err(err).Msg("Failed to render sign-in template")
		}
	}
}

// DashboardPageData contains data for rendering a guarded area's landing page
type DashboardPageData struct {
	AppName     string
	Area        string
	Path        string
	Email       string
	Role        roles.Role
	Permissions roles.PermissionSet
	LogoutURL   string
}

// DashboardHandler renders the landing page of a guarded area. The guard has
// already admitted the request.
func (s *Server) DashboardHandler(area string) http.HandlerFunc {
	tmpl, err := ParseTemplate("dashboard.html")
	if err != nil {
		log.Err(err).Msg("Failed to parse dashboard template")
	}

	return func(w http.ResponseWriter, r *http.Request) {
		decision, _ := decisionFromContext(r.Context())
		data := DashboardPageData{
			AppName:     s.config.GetAppName(),
			Area:        area,
			Path:        r.URL.Path,
			Role:        decision.Role,
			Permissions: roles.PermissionsFor(decision.Role),
			LogoutURL:   RouteAuthLogout,
		}
		if session := sessions.FromContext(r.Context()); session != nil {
			data.Email = session.Email
		}
		if tmpl == nil {
			http.Error(w, "Failed to render page", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", contentTypeHTML)
		if err := tmpl.Execute(w, data); err != nil {
			log.Err(err).Msg("Failed to render dashboard template")
		}
	}
}
