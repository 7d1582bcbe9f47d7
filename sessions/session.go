package sessions

import (
	"context"
	"time"
)

// Session is the authenticated identity of one browser context or client.
// There is at most one active session per Store.
type Session struct {
	UserID       string    // Backend user id (the JWT subject)
	Email        string    // Optional, set when the identity provider shares it
	AccessToken  string    // Opaque backend access token
	RefreshToken string    // Opaque refresh token, may be empty
	ExpiresAt    time.Time // Access token expiry, zero when unknown
}

// Expired reports whether the access token expiry has passed.
func (s *Session) Expired(now time.Time) bool {
	return s != nil && !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// Identity returns the user id, or an empty string for a nil session.
func (s *Session) Identity() string {
	if s == nil {
		return ""
	}
	return s.UserID
}

// EventType is the kind of session change reported by the backend.
type EventType string

const (
	EventInitialSession EventType = "initial_session"
	EventSignedIn       EventType = "signed_in"
	EventSignedOut      EventType = "signed_out"
	EventTokenRefreshed EventType = "token_refreshed"
	EventUserUpdated    EventType = "user_updated"
)

// Event is one session change notification. Session is nil after a sign-out.
type Event struct {
	Type    EventType
	Session *Session
}

// Provider is the backend SDK surface the Store is built on.
type Provider interface {
	// Restore returns the persisted session, nil when nobody is signed in
	Restore(ctx context.Context) (*Session, error)

	// Subscribe registers fn for every session change, in emission order
	Subscribe(fn func(Event)) (unsubscribe func())

	// SignOut ends the current session; the provider emits EventSignedOut
	SignOut(ctx context.Context) error
}

type ctxKey struct{}

// WithSession returns a copy of ctx carrying s.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// FromContext returns the session stored on ctx, or nil.
func FromContext(ctx context.Context) *Session {
	s, _ := ctx.Value(ctxKey{}).(*Session)
	return s
}
