package server_test

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-admissions-auth/server"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

const (
	testIssuer   = "https://idp.example.com"
	testClientID = "admissions-web"
)

// fakeIdentityProvider serves the token endpoint and signs ID tokens for sub.
type fakeIdentityProvider struct {
	key *rsa.PrivateKey
	srv *httptest.Server

	mu       sync.Mutex
	sub      string
	nonce    string
	verifier string
}

func newFakeIdentityProvider(t *testing.T) *fakeIdentityProvider {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	p := &fakeIdentityProvider{key: key}
	p.srv = httptest.NewServer(http.HandlerFunc(p.token))
	t.Cleanup(p.srv.Close)
	return p
}

func (p *fakeIdentityProvider) expect(sub, nonce string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sub, p.nonce = sub, nonce
}

func (p *fakeIdentityProvider) receivedVerifier() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.verifier
}

func (p *fakeIdentityProvider) token(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	p.mu.Lock()
	p.verifier = r.PostForm.Get("code_verifier")
	sub, nonce := p.sub, p.nonce
	p.mu.Unlock()

	now := time.Now()
	idToken, err := jwtlib.NewWithClaims(jwtlib.SigningMethodRS256, jwtlib.MapClaims{
		"iss":   testIssuer,
		"aud":   testClientID,
		"sub":   sub,
		"email": sub + "@example.com",
		"nonce": nonce,
		"iat":   now.Unix(),
		"exp":   now.Add(time.Hour).Unix(),
	}).SignedString(p.key)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"access_token":  "backend-access-token",
		"refresh_token": "backend-refresh-token",
		"token_type":    "Bearer",
		"expires_in":    3600,
		"id_token":      idToken,
	})
}

func (p *fakeIdentityProvider) config() *server.OidcConfig {
	keySet := &oidc.StaticKeySet{PublicKeys: []crypto.PublicKey{&p.key.PublicKey}}
	return &server.OidcConfig{
		OAuth2Config: &oauth2.Config{
			ClientID:     testClientID,
			ClientSecret: "secret",
			Endpoint: oauth2.Endpoint{
				AuthURL:   testIssuer + "/authorize",
				TokenURL:  p.srv.URL + "/token",
				AuthStyle: oauth2.AuthStyleInParams,
			},
			RedirectURL: "http://localhost:8080/auth/callback",
			Scopes:      []string{oidc.ScopeOpenID, "email"},
		},
		OidcVerifier: oidc.NewVerifier(testIssuer, keySet, &oidc.Config{ClientID: testClientID}),
	}
}

// startSignIn runs the start handler and returns the state and nonce it sent to the provider.
func startSignIn(t *testing.T, f *testFixture, target string) (state, nonce string) {
	t.Helper()
	rec := f.do(t, http.MethodGet, target, "", "")
	require.Equal(t, http.StatusFound, rec.Code)

	authURL, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	require.Equal(t, "idp.example.com", authURL.Host)

	q := authURL.Query()
	require.Equal(t, "S256", q.Get("code_challenge_method"))
	require.NotEmpty(t, q.Get("code_challenge"))
	require.NotEmpty(t, q.Get("state"))
	require.NotEmpty(t, q.Get("nonce"))
	return q.Get("state"), q.Get("nonce")
}

func loginCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == "loggedInSessionId" {
			return c
		}
	}
	t.Fatal("login session cookie not set")
	return nil
}

func TestOAuthFlow(t *testing.T) {
	idp := newFakeIdentityProvider(t)

	t.Run("student returns to the requested page", func(t *testing.T) {
		f := setupTestFixture(t, server.WithOIDC(idp.config()))
		state, nonce := startSignIn(t, f, "/auth/oauth/start?return_to=/student-dashboard/applications")
		idp.expect(studentID, nonce)

		rec := f.do(t, http.MethodGet, "/auth/callback?code=abc&state="+url.QueryEscape(state), "", "")
		require.Equal(t, http.StatusSeeOther, rec.Code)
		require.Equal(t, "/student-dashboard/applications", rec.Header().Get("Location"))
		require.NotEmpty(t, idp.receivedVerifier())

		cookie := loginCookie(t, rec)
		require.True(t, cookie.HttpOnly)
		require.Positive(t, cookie.MaxAge)

		session, err := f.loginSessions.Get(cookie.Value)
		require.NoError(t, err)
		require.Equal(t, studentID, session.UserID)
		require.Equal(t, "backend-access-token", session.AccessToken)

		req := httptest.NewRequest(http.MethodGet, "/student-dashboard/applications", nil)
		req.AddCookie(cookie)
		page := httptest.NewRecorder()
		f.server.ServeHTTP(page, req)
		require.Equal(t, http.StatusOK, page.Code)
	})

	t.Run("admin without return url lands on the admin home", func(t *testing.T) {
		f := setupTestFixture(t, server.WithOIDC(idp.config()))
		state, nonce := startSignIn(t, f, "/auth/oauth/start")
		idp.expect(adminID, nonce)

		rec := f.do(t, http.MethodGet, "/auth/callback?code=abc&state="+url.QueryEscape(state), "", "")
		require.Equal(t, http.StatusSeeOther, rec.Code)
		require.Equal(t, "/admin", rec.Header().Get("Location"))
	})

	t.Run("open redirect is dropped", func(t *testing.T) {
		f := setupTestFixture(t, server.WithOIDC(idp.config()))
		state, nonce := startSignIn(t, f, "/auth/oauth/start?return_to="+url.QueryEscape("//evil.example.com/x"))
		idp.expect(studentID, nonce)

		rec := f.do(t, http.MethodGet, "/auth/callback?code=abc&state="+url.QueryEscape(state), "", "")
		require.Equal(t, http.StatusSeeOther, rec.Code)
		require.Equal(t, "/student-dashboard", rec.Header().Get("Location"))
	})

	t.Run("state is single use", func(t *testing.T) {
		f := setupTestFixture(t, server.WithOIDC(idp.config()))
		state, nonce := startSignIn(t, f, "/auth/oauth/start")
		idp.expect(studentID, nonce)

		rec := f.do(t, http.MethodGet, "/auth/callback?code=abc&state="+url.QueryEscape(state), "", "")
		require.Equal(t, http.StatusSeeOther, rec.Code)

		rec = f.do(t, http.MethodGet, "/auth/callback?code=abc&state="+url.QueryEscape(state), "", "")
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("nonce mismatch is rejected", func(t *testing.T) {
		f := setupTestFixture(t, server.WithOIDC(idp.config()))
		state, _ := startSignIn(t, f, "/auth/oauth/start")
		idp.expect(studentID, "replayed-nonce")

		rec := f.do(t, http.MethodGet, "/auth/callback?code=abc&state="+url.QueryEscape(state), "", "")
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Empty(t, rec.Result().Cookies())
	})

	t.Run("provider error goes back to sign-in", func(t *testing.T) {
		f := setupTestFixture(t, server.WithOIDC(idp.config()))
		rec := f.do(t, http.MethodGet, "/auth/callback?error=access_denied", "", "")
		require.Equal(t, http.StatusSeeOther, rec.Code)
		require.Contains(t, rec.Header().Get("Location"), "/auth?error=")
	})

	t.Run("missing code", func(t *testing.T) {
		f := setupTestFixture(t, server.WithOIDC(idp.config()))
		rec := f.do(t, http.MethodGet, "/auth/callback?state=x", "", "")
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
