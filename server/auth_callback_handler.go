package server

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-admissions-auth/access"
	"github.com/jrsteele09/go-admissions-auth/server/authflowrepo"
	"github.com/jrsteele09/go-admissions-auth/server/loginsession"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

// OAuthStartHandler redirects the browser to the identity provider with PKCE,
// state and nonce.
func (s *Server) OAuthStartHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.oidc == nil {
			http.Error(w, "Sign-in is not configured", http.StatusServiceUnavailable)
			return
		}

		state := uuid.NewString()
		nonce := uuid.NewString()
		verifier := oauth2.GenerateVerifier()

		err := s.authState.Upsert(state, &authflowrepo.AuthFlowState{
			CodeVerifier: verifier,
			Nonce:        nonce,
			ReturnURL:    safeReturnURL(r.URL.Query().Get("return_to")),
			CreatedAt:    s.nowTime(),
		})
		if err != nil {
			log.Err(err).Msg("failed to store auth flow state")
			http.Error(w, "Failed to start sign-in", http.StatusInternalServerError)
			return
		}

		authURL := s.oidc.OAuth2Config.AuthCodeURL(
			state,
			oauth2.S256ChallengeOption(verifier),
			oauth2.SetAuthURLParam("nonce", nonce),
		)
		http.Redirect(w, r, authURL, http.StatusFound)
	}
}

func (s *Server) OAuthCallbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.oidc == nil {
			http.Error(w, "Sign-in is not configured", http.StatusServiceUnavailable)
			return
		}

		// r.FormValue works for both query params and POST form data
		state := r.FormValue("state")
		code := r.FormValue("code")

		if errorParam := r.FormValue("error"); errorParam != "" {
			log.Debug().Str("error", errorParam).Str("description", r.FormValue("error_description")).Msg("authorization failed")
			redirectWithError(w, r, RouteSignIn, "Sign-in was cancelled or failed")
			return
		}
		if code == "" || state == "" {
			http.Error(w, "Missing code or state parameter", http.StatusBadRequest)
			return
		}

		authState, err := s.authState.Take(state)
		if err != nil {
			http.Error(w, "Invalid state parameter", http.StatusBadRequest)
			return
		}
		if authState.Expired(s.nowTime(), s.config.GetAuthFlowTimeout()) {
			redirectWithError(w, r, RouteSignIn, "Sign-in took too long, please try again")
			return
		}

		oauth2Token, err := s.oidc.OAuth2Config.Exchange(r.Context(), code, oauth2.VerifierOption(authState.CodeVerifier))
		if err != nil {
			log.Err(err).Msg("token exchange failed")
			http.Error(w, "Token exchange failed", http.StatusBadGateway)
			return
		}

		rawIDToken, ok := oauth2Token.Extra("id_token").(string)
		if !ok {
			http.Error(w, "No ID token in response", http.StatusBadGateway)
			return
		}
		idToken, err := s.oidc.OidcVerifier.Verify(r.Context(), rawIDToken)
		if err != nil {
			log.Err(err).Msg("ID token verification failed")
			http.Error(w, "ID token verification failed", http.StatusUnauthorized)
			return
		}

		var claims struct {
			Nonce string `json:"nonce"`
			Sub   string `json:"sub"`
			Email string `json:"email"`
			Name  string `json:"name"`
		}
		if err := idToken.Claims(&claims); err != nil {
			http.Error(w, "Failed to extract claims", http.StatusBadGateway)
			return
		}
		// Replay protection
		if claims.Nonce != authState.Nonce {
			http.Error(w, "Invalid nonce", http.StatusUnauthorized)
			return
		}

		now := s.nowTime()
		maxAge := s.config.GetLoginSessionMaxAge()
		sessionID := generateRandomString(32)
		loginSession := loginsession.Session{
			UserID:       claims.Sub,
			Email:        claims.Email,
			Name:         claims.Name,
			RefreshToken: oauth2Token.RefreshToken,
			AccessToken:  oauth2Token.AccessToken,
			ExpiresAt:    now.Add(maxAge),
			CreatedAt:    now,
		}
		if err := s.loginSessions.Upsert(sessionID, loginSession); err != nil {
			log.Err(err).Msg("failed to create login session")
			http.Error(w, "Failed to create session", http.StatusInternalServerError)
			return
		}
		s.setLoginSessionCookie(w, r, sessionID, int(maxAge/time.Second))

		returnURL := authState.ReturnURL
		if returnURL == "" {
			// Resolve logs failures and falls back to the default role
			resolution, _ := s.resolver.Resolve(r.Context(), claims.Sub)
			returnURL = access.HomeFor(resolution.Role)
		}
		redirectSuccess(w, r, returnURL)
	}
}

// LogoutHandler ends the login session and returns to the sign-in page.
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cookie, err := r.Cookie(loggedInSessionID); err == nil && cookie.Value != "" {
			if err := s.loginSessions.Delete(cookie.Value); err != nil {
				log.Err(err).Msg("failed to delete login session")
			}
		}
		s.clearLoginSessionCookie(w, r)
		redirectSuccess(w, r, RouteSignIn)
	}
}
