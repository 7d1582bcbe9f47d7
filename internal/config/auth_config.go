package config

import "time"

type AuthConfig interface {
	GetJWTSecret() string
	GetJWTIssuer() string
	GetJWTAudience() string
	GetOIDCIssuer() string
	GetOIDCClientID() string
	GetOIDCClientSecret() string
	GetAuthFlowTimeout() time.Duration
}

type Auth struct{}

var _ AuthConfig = Auth{}

// GetJWTSecret is the shared secret the backend signs access tokens with.
func (Auth) GetJWTSecret() string {
	return GetEnv("JWT_SECRET", "")
}

func (Auth) GetJWTIssuer() string {
	return GetEnv("JWT_ISSUER", "")
}

func (Auth) GetJWTAudience() string {
	return GetEnv("JWT_AUDIENCE", "authenticated")
}

func (Auth) GetOIDCIssuer() string {
	return GetEnv("OIDC_ISSUER", "")
}

func (Auth) GetOIDCClientID() string {
	return GetEnv("OIDC_CLIENT_ID", "")
}

func (Auth) GetOIDCClientSecret() string {
	return GetEnv("OIDC_CLIENT_SECRET", "")
}

func (Auth) GetAuthFlowTimeout() time.Duration {
	return 10 * time.Minute
}
