package config

import (
	"time"

	"github.com/rs/zerolog/log"
)

type SecurityConfig interface {
	GetLoginSessionMaxAge() time.Duration
	GetSecureCookies() bool
}

type Security struct{}

var _ SecurityConfig = Security{}

func (Security) GetLoginSessionMaxAge() time.Duration {
	value := GetEnv("LOGIN_SESSION_MAX_AGE", "8h")
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		log.Warn().Str("value", value).Msg("Invalid LOGIN_SESSION_MAX_AGE, using 8h")
		return 8 * time.Hour
	}
	return d
}

// GetSecureCookies is false only in DEV, where the server runs over plain http.
func (Security) GetSecureCookies() bool {
	return !EnvVars{}.IsDev()
}
