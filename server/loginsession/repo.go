package loginsession

import (
	"errors"
	"time"

	"github.com/jrsteele09/go-admissions-auth/sessions"
)

var ErrSessionNotFound = errors.New("login session not found")

// Session is the server-side record behind the login cookie.
type Session struct {
	UserID string
	Email  string
	Name   string

	RefreshToken string
	AccessToken  string

	// ExpiresAt ends the login session, independent of the access token expiry
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Expired reports whether the login session has ended at now.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// Identity converts the login session into the request identity.
func (s Session) Identity() *sessions.Session {
	return &sessions.Session{
		UserID:       s.UserID,
		Email:        s.Email,
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		ExpiresAt:    s.ExpiresAt,
	}
}

type Repo interface {
	Upsert(sessionID string, session Session) error
	Get(sessionID string) (Session, error)
	Delete(sessionID string) error
	DeleteExpired(now time.Time) int
}
