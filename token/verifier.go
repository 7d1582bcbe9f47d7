package token

import (
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-admissions-auth/sessions"
	"github.com/pkg/errors"
)

var (
	ErrEmptyToken   = errors.New("empty access token")
	ErrInvalidToken = errors.New("invalid access token")
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// Claims are the backend access token claims this layer relies on.
type Claims struct {
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"` // backend database role, e.g. "authenticated"; not the app role
	jwtlib.RegisteredClaims
}

// Verifier validates HS256 access tokens issued by the hosted auth backend.
type Verifier struct {
	secret   []byte
	issuer   string
	audience string
	leeway   time.Duration
}

type VerifierOption func(*Verifier)

// WithLeeway allows for clock skew between this service and the backend.
func WithLeeway(d time.Duration) VerifierOption {
	return func(v *Verifier) {
		v.leeway = d
	}
}

// NewVerifier creates a verifier. issuer and audience are only checked when non-empty.
func NewVerifier(secret, issuer, audience string, options ...VerifierOption) (*Verifier, error) {
	if secret == "" {
		return nil, errors.New("[NewVerifier] secret is required")
	}
	v := &Verifier{
		secret:   []byte(secret),
		issuer:   issuer,
		audience: audience,
		leeway:   30 * time.Second,
	}
	for _, opt := range options {
		opt(v)
	}
	return v, nil
}

// Verify checks the signature and registered claims and returns the session the token represents.
func (v *Verifier) Verify(rawToken string) (*sessions.Session, error) {
	rawToken = strings.TrimSpace(rawToken)
	if rawToken == "" {
		return nil, ErrEmptyToken
	}

	parserOptions := []jwtlib.ParserOption{
		jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Name}),
		jwtlib.WithLeeway(v.leeway),
		jwtlib.WithTimeFunc(NowTimeFunc),
		jwtlib.WithExpirationRequired(),
	}
	if v.issuer != "" {
		parserOptions = append(parserOptions, jwtlib.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		parserOptions = append(parserOptions, jwtlib.WithAudience(v.audience))
	}

	claims := &Claims{}
	parsed, err := jwtlib.ParseWithClaims(rawToken, claims, func(t *jwtlib.Token) (any, error) {
		return v.secret, nil
	}, parserOptions...)
	if err != nil || !parsed.Valid {
		return nil, errors.Wrap(ErrInvalidToken, errorText(err))
	}
	if claims.Subject == "" {
		return nil, errors.Wrap(ErrInvalidToken, "missing subject")
	}

	session := &sessions.Session{
		UserID:      claims.Subject,
		Email:       claims.Email,
		AccessToken: rawToken,
	}
	if claims.ExpiresAt != nil {
		session.ExpiresAt = claims.ExpiresAt.Time
	}
	return session, nil
}

// Sign issues a token the verifier accepts. Used by tests and local tooling
// that stands in for the hosted backend.
func (v *Verifier) Sign(userID, email string, ttl time.Duration) (string, error) {
	now := NowTimeFunc()
	claims := Claims{
		Email: email,
		Role:  "authenticated",
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   userID,
			Issuer:    v.issuer,
			IssuedAt:  jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(now.Add(ttl)),
		},
	}
	if v.audience != "" {
		claims.Audience = jwtlib.ClaimStrings{v.audience}
	}
	signed, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(v.secret)
	if err != nil {
		return "", errors.Wrap(err, "[Verifier.Sign] SignedString")
	}
	return signed, nil
}

func errorText(err error) string {
	if err == nil {
		return "token not valid"
	}
	return err.Error()
}
